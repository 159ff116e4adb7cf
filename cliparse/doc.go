// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles configuration from CLI flags and environment.

Flags take precedence over environment variables:

  - -p / PORT: server port (default 3324)
  - -d / DATABASE_URL: PostgreSQL connection string (required)
  - -base-url / BASE_URL: public base URL for share links
  - -admin-salt / ADMIN_KEY_SALT: admin key HMAC secret (required)
  - -slug-salt / CAMPAIGN_SLUG_SALT: share slug secret (required)
*/
package cliparse
