// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth provides token generation and validation.

# Admin Keys

Campaign admin keys are HMAC-SHA256 over the campaign ID with a server-side
salt, so they are verifiable without storage:

	adminKey := auth.GenerateAdminKey(campaignID, salt)
	err := auth.ValidateAdminKey(campaignID, adminKey, salt)

# Enrollment Tokens

Students receive a random 192-bit token when claiming a spot in a campaign.
The token identifies the student on all later requests (X-Enroll-Token).

# Share Slugs

Campaign share slugs are deterministic base62-encoded HMAC prefixes, short
enough for URLs and stable across restarts.

# IP Hashing

Client IPs on tickets are stored as salted one-way hashes for audit
deduplication without keeping raw addresses.
*/
package auth
