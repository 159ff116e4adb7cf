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

type ListHandler struct {
	db   *sql.DB
	cfg  cliparse.Config
	draw *allocation.Draw
}

func NewListHandler(db *sql.DB, cfg cliparse.Config) *ListHandler {
	return &ListHandler{db: db, cfg: cfg, draw: allocation.NewDraw(db, defaultNotifier)}
}

// SubmitLists handles POST /campaigns/:slug/priority-lists
// One request submits the participant's whole batch for a draw procedure.
func (h *ListHandler) SubmitLists(w http.ResponseWriter, r *http.Request) {
	campaign, ok := visibleCampaign(h.db, w, r)
	if !ok {
		return
	}

	participant, ok := requireParticipant(h.db, w, r, campaign.ID)
	if !ok {
		return
	}

	var req models.SubmitPriorityListsRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.ProcedureID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "procedure_id is required")
		return
	}

	if belongs, err := procedureBelongs(h.db, req.ProcedureID, campaign.ID); err != nil {
		slog.Error("failed to query procedure", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	} else if !belongs {
		middleware.ErrorResponse(w, http.StatusNotFound, "Procedure not found")
		return
	}

	lists := make([]allocation.ListInput, 0, len(req.Lists))
	for _, l := range req.Lists {
		lists = append(lists, allocation.ListInput{Choices: l.Choices})
	}

	ipHash := auth.HashIP(middleware.GetClientIP(r), h.cfg.AdminKeySalt)
	ticketIDs, err := h.draw.SubmitLists(req.ProcedureID, allocation.Submission{
		Participant: participant,
		InitiatorID: participant.ID,
		Lists:       lists,
		IPHash:      &ipHash,
	})
	if err != nil {
		writeAllocationError(w, err)
		return
	}

	slog.Info("priority lists submitted",
		"campaign_id", campaign.ID, "procedure_id", req.ProcedureID, "lists", len(ticketIDs))

	middleware.JSONResponse(w, http.StatusCreated, models.SubmitPriorityListsResponse{
		TicketIDs: ticketIDs,
		Message:   "Priority lists stored for the draw",
	})
}

// DeleteList handles DELETE /campaigns/:slug/priority-lists/:ticketID
// A participant may withdraw an own list any time before the draw ran.
func (h *ListHandler) DeleteList(w http.ResponseWriter, r *http.Request) {
	campaign, ok := visibleCampaign(h.db, w, r)
	if !ok {
		return
	}

	participant, ok := requireParticipant(h.db, w, r, campaign.ID)
	if !ok {
		return
	}

	ticketID := r.PathValue("ticketID")
	if ticketID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "ticketID is required")
		return
	}

	procedureID, drawn, err := listProcedure(h.db, campaign.ID, participant.ID, ticketID)
	if err == sql.ErrNoRows {
		middleware.ErrorResponse(w, http.StatusNotFound, "Priority list not found")
		return
	}
	if err != nil {
		slog.Error("failed to query priority list", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if drawn {
		middleware.ErrorResponse(w, http.StatusConflict, "Procedure has already been drawn")
		return
	}

	if err := h.draw.DeleteList(procedureID, participant.ID, ticketID); err != nil {
		writeAllocationError(w, err)
		return
	}

	slog.Info("priority list deleted", "campaign_id", campaign.ID, "ticket_id", ticketID)

	w.WriteHeader(http.StatusNoContent)
}

func procedureBelongs(db *sql.DB, procedureID, campaignID string) (bool, error) {
	var ok bool
	err := db.QueryRow(`
		SELECT EXISTS(SELECT 1 FROM procedure WHERE id = $1 AND campaign_id = $2)
	`, procedureID, campaignID).Scan(&ok)
	return ok, err
}

// listProcedure resolves the procedure holding an owned priority list and
// whether that procedure was already drawn.
func listProcedure(db *sql.DB, campaignID, participantID, ticketID string) (string, bool, error) {
	var procedureID string
	var drawnAt sql.NullTime
	err := db.QueryRow(`
		SELECT p.id, p.drawn_at
		FROM ticket t
		JOIN procedure p ON p.id = t.procedure_id
		WHERE t.id = $1 AND t.campaign_id = $2 AND t.participant_id = $3 AND t.kind = $4
	`, ticketID, campaignID, participantID, models.TicketPriorityList).Scan(&procedureID, &drawnAt)
	return procedureID, drawnAt.Valid, err
}
