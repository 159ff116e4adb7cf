// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/danielhkuo/seatdraw/allocation"
	"github.com/danielhkuo/seatdraw/auth"
	"github.com/danielhkuo/seatdraw/cliparse"
	"github.com/danielhkuo/seatdraw/middleware"
	"github.com/danielhkuo/seatdraw/models"
)

type DrawHandler struct {
	db   *sql.DB
	cfg  cliparse.Config
	draw *allocation.Draw
}

func NewDrawHandler(db *sql.DB, cfg cliparse.Config) *DrawHandler {
	return &DrawHandler{db: db, cfg: cfg, draw: allocation.NewDraw(db, defaultNotifier)}
}

// Run handles POST /procedures/:id/draw
// Triggers the lottery. Safe to call again after a crash or timeout;
// an already-drawn procedure reports its original result time.
func (h *DrawHandler) Run(w http.ResponseWriter, r *http.Request) {
	procedureID, ok := h.requireProcedureAdmin(w, r)
	if !ok {
		return
	}

	res, err := h.draw.Run(procedureID)
	if err != nil {
		writeAllocationError(w, err)
		return
	}

	message := "Draw completed"
	if res.AlreadyDrawn {
		message = "Procedure was already drawn"
	}

	middleware.JSONResponse(w, http.StatusOK, models.RunDrawResponse{
		ProcedureID: procedureID,
		DrawnAt:     res.DrawnAt,
		Placed:      res.Placed,
		Unplaced:    res.Unplaced,
		Message:     message,
	})
}

// Cleanup handles POST /procedures/:id/cleanup
// Deletes the priority lists left over after a draw.
func (h *DrawHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	procedureID, ok := h.requireProcedureAdmin(w, r)
	if !ok {
		return
	}

	deleted, err := h.draw.AfterActive(procedureID)
	if err != nil {
		writeAllocationError(w, err)
		return
	}

	slog.Info("priority lists cleaned up", "procedure_id", procedureID, "deleted", deleted)

	middleware.JSONResponse(w, http.StatusOK, models.CleanupResponse{
		DeletedLists: deleted,
	})
}

// requireProcedureAdmin resolves the procedure's campaign and validates
// the X-Admin-Key header against it.
func (h *DrawHandler) requireProcedureAdmin(w http.ResponseWriter, r *http.Request) (string, bool) {
	procedureID := r.PathValue("id")
	if procedureID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "procedure_id is required")
		return "", false
	}

	var campaignID string
	err := h.db.QueryRow(`
		SELECT campaign_id FROM procedure WHERE id = $1
	`, procedureID).Scan(&campaignID)
	if err == sql.ErrNoRows {
		middleware.ErrorResponse(w, http.StatusNotFound, "Procedure not found")
		return "", false
	}
	if err != nil {
		slog.Error("failed to query procedure", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return "", false
	}

	adminKey := r.Header.Get("X-Admin-Key")
	if err := auth.ValidateAdminKey(campaignID, adminKey, h.cfg.AdminKeySalt); err != nil {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Invalid admin key")
		return "", false
	}

	return procedureID, true
}
