// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"database/sql"
	"net/http"

	"github.com/danielhkuo/seatdraw/cliparse"
	"github.com/danielhkuo/seatdraw/handlers"
	"github.com/danielhkuo/seatdraw/middleware"
)

func NewRouter(db *sql.DB, cfg cliparse.Config) *http.ServeMux {
	mux := http.NewServeMux()

	// Initialize handlers
	campaignHandler := handlers.NewCampaignHandler(db, cfg)
	enrollHandler := handlers.NewEnrollHandler(db, cfg)
	listHandler := handlers.NewListHandler(db, cfg)
	drawHandler := handlers.NewDrawHandler(db, cfg)

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Campaign management (admin operations)
	mux.HandleFunc("POST /campaigns", middleware.WithLogging(campaignHandler.CreateCampaign))
	mux.HandleFunc("GET /campaigns/{id}/admin", middleware.WithLogging(campaignHandler.GetCampaignAdmin))
	mux.HandleFunc("POST /campaigns/{id}/courses", middleware.WithLogging(campaignHandler.AddCourse))
	mux.HandleFunc("POST /campaigns/{id}/procedures", middleware.WithLogging(campaignHandler.AddProcedure))
	mux.HandleFunc("POST /campaigns/{id}/rules", middleware.WithLogging(campaignHandler.AddRule))
	mux.HandleFunc("POST /campaigns/{id}/publish", middleware.WithLogging(campaignHandler.PublishCampaign))
	mux.HandleFunc("POST /campaigns/{id}/registrations", middleware.WithLogging(campaignHandler.DirectRegister))

	// Draw execution (admin operations, addressed by procedure)
	mux.HandleFunc("POST /procedures/{id}/draw", middleware.WithLogging(drawHandler.Run))
	mux.HandleFunc("POST /procedures/{id}/cleanup", middleware.WithLogging(drawHandler.Cleanup))

	// Enrollment operations (public, addressed by share slug)
	mux.HandleFunc("POST /campaigns/{slug}/claim", middleware.WithLogging(enrollHandler.Claim))
	mux.HandleFunc("GET /campaigns/{slug}", middleware.WithLogging(enrollHandler.GetCampaign))
	mux.HandleFunc("POST /campaigns/{slug}/register", middleware.WithLogging(enrollHandler.Register))
	mux.HandleFunc("GET /campaigns/{slug}/my-tickets", middleware.WithLogging(enrollHandler.MyTickets))

	// Priority lists (public, addressed by share slug)
	mux.HandleFunc("POST /campaigns/{slug}/priority-lists", middleware.WithLogging(listHandler.SubmitLists))
	mux.HandleFunc("DELETE /campaigns/{slug}/priority-lists/{ticketID}", middleware.WithLogging(listHandler.DeleteList))

	// Root endpoint
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("seatdraw API v1"))
	})

	return mux
}
