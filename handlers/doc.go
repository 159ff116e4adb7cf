// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package handlers contains the HTTP handlers for the SeatDraw API.
//
// Admin routes are addressed by campaign id and authenticated with the
// X-Admin-Key header; student routes are addressed by the published share
// slug and authenticated with the X-Enroll-Token header issued by Claim.
// Handlers translate between JSON and the allocation engine; every
// allocation decision itself lives in the allocation package.
package handlers
