// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the SeatDraw API.

# Route Registration

NewRouter creates a configured http.ServeMux with all endpoints:

	mux := router.NewRouter(db, cfg)

# Endpoints

Health:

	GET /health

Campaign management (admin, requires X-Admin-Key):

	POST /campaigns                     - Create campaign
	GET  /campaigns/{id}/admin          - Get campaign details
	POST /campaigns/{id}/courses        - Add course
	POST /campaigns/{id}/procedures     - Add allocation procedure
	POST /campaigns/{id}/rules          - Add registration rule
	POST /campaigns/{id}/publish        - Publish and get share slug
	POST /campaigns/{id}/registrations  - Register a student directly

Draw execution (admin, requires X-Admin-Key):

	POST /procedures/{id}/draw    - Run the lottery
	POST /procedures/{id}/cleanup - Delete leftover lists after the draw

Enrollment (public, uses share slug):

	POST /campaigns/{slug}/claim      - Claim an enrollment token
	GET  /campaigns/{slug}            - Campaign info and courses
	POST /campaigns/{slug}/register   - First-come-first-served registration
	GET  /campaigns/{slug}/my-tickets - Own registrations and lists

Priority lists (public, requires X-Enroll-Token):

	POST   /campaigns/{slug}/priority-lists            - Submit lists
	DELETE /campaigns/{slug}/priority-lists/{ticketID} - Withdraw a list

# Handler Initialization

The router creates handler instances with dependency injection:

	campaignHandler := handlers.NewCampaignHandler(db, cfg)
	enrollHandler := handlers.NewEnrollHandler(db, cfg)
	listHandler := handlers.NewListHandler(db, cfg)
	drawHandler := handlers.NewDrawHandler(db, cfg)

All handlers receive the database connection and configuration.
*/
package router
