// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the SeatDraw API server.

SeatDraw is a course enrollment service. Campaign admins publish courses
with limited seats and attach registration procedures; students claim an
enrollment token and get seats either first-come-first-served or through
a randomized lottery over ranked priority lists.

# Starting the Server

The server requires environment variables or CLI flags for configuration:

	DATABASE_URL=postgres://... go run main.go

Or with flags:

	go run main.go -p 3324 -d "postgres://..."

A .env file in the working directory is loaded if present.

# Configuration

Required settings:

  - DATABASE_URL (-d): PostgreSQL connection string
  - ADMIN_KEY_SALT (--admin-salt): Secret for admin key HMAC
  - CAMPAIGN_SLUG_SALT (--slug-salt): Secret for share slug generation

Optional settings:

  - PORT (-p): Server port (default: 3324)
  - BASE_URL (--base-url): Public base URL used in share links

# Architecture

The server uses a handler-based architecture with dependency injection:

  - allocation: the seat allocation engine (ledger, fifo, draw)
  - rules: per-course eligibility rules
  - notify: outcome notifications
  - handlers: HTTP request handlers (campaigns, enrollment, lists, draw)
  - router: Route definitions using Go 1.22+ routing
  - middleware: CORS, logging, JSON helpers
  - models: Request/response types
  - auth: Token generation and validation
  - db: Schema creation
  - cliparse: Configuration parsing

See package documentation for each component.
*/
package main
