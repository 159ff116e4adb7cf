// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielhkuo/seatdraw/allocation"
	"github.com/danielhkuo/seatdraw/auth"
	"github.com/danielhkuo/seatdraw/cliparse"
	"github.com/danielhkuo/seatdraw/middleware"
	"github.com/danielhkuo/seatdraw/models"
	"github.com/danielhkuo/seatdraw/rules"
)

type EnrollHandler struct {
	db   *sql.DB
	cfg  cliparse.Config
	fifo *allocation.Fifo
}

func NewEnrollHandler(db *sql.DB, cfg cliparse.Config) *EnrollHandler {
	return &EnrollHandler{db: db, cfg: cfg, fifo: allocation.NewFifo(db, defaultNotifier)}
}

// Claim handles POST /campaigns/:slug/claim
// A student claims an enrollment token for a campaign. The token carries
// their identity on all later requests.
func (h *EnrollHandler) Claim(w http.ResponseWriter, r *http.Request) {
	campaign, ok := h.visibleCampaign(w, r)
	if !ok {
		return
	}

	var req models.ClaimEnrollmentRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.StudentID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "student_id is required")
		return
	}

	// If the campaign restricts study courses, the claim must name one of
	// them. An empty restriction set admits everyone.
	allowed, err := studyCourseAllowed(h.db, campaign.ID, req.StudyCourseID)
	if err != nil {
		slog.Error("failed to check study courses", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if !allowed {
		middleware.ErrorResponse(w, http.StatusForbidden, "Campaign is not open to your study course")
		return
	}

	enrollToken, err := auth.GenerateEnrollToken()
	if err != nil {
		slog.Error("failed to generate enroll token", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to claim enrollment")
		return
	}

	_, err = h.db.Exec(`
		INSERT INTO enrollment_claim (campaign_id, student_id, study_course_id, term, enroll_token, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, campaign.ID, req.StudentID, req.StudyCourseID, req.Term, enrollToken, time.Now())
	if err != nil {
		if isUniqueViolation(err, "enrollment_claim_campaign_id_student_id_key") {
			middleware.ErrorResponse(w, http.StatusConflict, "Student already claimed this campaign")
			return
		}
		slog.Error("failed to insert enrollment claim", "error", err, "campaign_id", campaign.ID)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to claim enrollment")
		return
	}

	slog.Info("enrollment claimed", "campaign_id", campaign.ID, "student_id", req.StudentID)

	middleware.JSONResponse(w, http.StatusCreated, models.ClaimEnrollmentResponse{
		EnrollToken: enrollToken,
	})
}

// Register handles POST /campaigns/:slug/register
// Immediate first-come-first-served registration through the currently
// active fifo or confirm procedure.
func (h *EnrollHandler) Register(w http.ResponseWriter, r *http.Request) {
	campaign, ok := h.visibleCampaign(w, r)
	if !ok {
		return
	}

	participant, ok := h.requireParticipant(w, r, campaign.ID)
	if !ok {
		return
	}

	var req models.FifoRegisterRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.CourseID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "course_id is required")
		return
	}

	procedureID, err := activeImmediateProcedure(h.db, campaign.ID, time.Now())
	if err == sql.ErrNoRows {
		middleware.ErrorResponse(w, http.StatusConflict, "No registration procedure is currently active")
		return
	}
	if err != nil {
		slog.Error("failed to find active procedure", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	ipHash := auth.HashIP(middleware.GetClientIP(r), h.cfg.AdminKeySalt)
	ticket, err := h.fifo.Register(allocation.FifoRequest{
		ProcedureID: procedureID,
		Participant: participant,
		InitiatorID: participant.ID,
		CourseID:    req.CourseID,
		ExamOnly:    req.ExamOnly,
		IPHash:      &ipHash,
	})
	if err != nil {
		writeAllocationError(w, err)
		return
	}

	slog.Info("fifo registration", "campaign_id", campaign.ID, "ticket_id", ticket.ID, "course_id", req.CourseID)

	middleware.JSONResponse(w, http.StatusCreated, models.RegisterResponse{
		TicketID: ticket.ID,
		CourseID: req.CourseID,
		Message:  "Seat confirmed",
	})
}

// GetCampaign handles GET /campaigns/:slug
// Public campaign view with courses, remaining seats, and procedures.
func (h *EnrollHandler) GetCampaign(w http.ResponseWriter, r *http.Request) {
	campaign, ok := h.visibleCampaign(w, r)
	if !ok {
		return
	}

	courses, err := loadCourses(h.db, campaign.ID)
	if err != nil {
		slog.Error("failed to query courses", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	procedures, err := loadProcedures(h.db, campaign.ID)
	if err != nil {
		slog.Error("failed to query procedures", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.CampaignWithCourses{
		Campaign:   campaign,
		Courses:    courses,
		Procedures: procedures,
	})
}

// MyTickets handles GET /campaigns/:slug/my-tickets
// Returns the participant's confirmed registrations and pending priority
// lists; draw outcomes become visible here after the lottery ran.
func (h *EnrollHandler) MyTickets(w http.ResponseWriter, r *http.Request) {
	campaign, ok := h.visibleCampaign(w, r)
	if !ok {
		return
	}

	participant, ok := h.requireParticipant(w, r, campaign.ID)
	if !ok {
		return
	}

	registrations, err := loadRegistrations(h.db, campaign.ID, participant.ID)
	if err != nil {
		slog.Error("failed to query registrations", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	priorityLists, err := loadPriorityLists(h.db, campaign.ID, participant.ID)
	if err != nil {
		slog.Error("failed to query priority lists", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.MyTicketsResponse{
		Registrations: registrations,
		PriorityLists: priorityLists,
	})
}

// visibleCampaign resolves the share slug and enforces the display window.
func (h *EnrollHandler) visibleCampaign(w http.ResponseWriter, r *http.Request) (models.Campaign, bool) {
	return visibleCampaign(h.db, w, r)
}

// requireParticipant resolves the X-Enroll-Token header into a rule-checkable
// participant.
func (h *EnrollHandler) requireParticipant(w http.ResponseWriter, r *http.Request, campaignID string) (rules.Participant, bool) {
	return requireParticipant(h.db, w, r, campaignID)
}

func visibleCampaign(db *sql.DB, w http.ResponseWriter, r *http.Request) (models.Campaign, bool) {
	shareSlug := r.PathValue("slug")
	if shareSlug == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "slug is required")
		return models.Campaign{}, false
	}

	campaign, err := loadCampaignBySlug(db, shareSlug)
	if err == sql.ErrNoRows {
		middleware.ErrorResponse(w, http.StatusNotFound, "Campaign not found")
		return models.Campaign{}, false
	}
	if err != nil {
		slog.Error("failed to query campaign", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return models.Campaign{}, false
	}

	now := time.Now()
	if now.Before(campaign.StartShow) || !now.Before(campaign.EndShow) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Campaign is not currently available")
		return models.Campaign{}, false
	}

	return campaign, true
}

func requireParticipant(db *sql.DB, w http.ResponseWriter, r *http.Request, campaignID string) (rules.Participant, bool) {
	enrollToken := r.Header.Get("X-Enroll-Token")
	if enrollToken == "" {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "X-Enroll-Token header required")
		return rules.Participant{}, false
	}

	p := rules.Participant{Kind: rules.ParticipantStudent}
	err := db.QueryRow(`
		SELECT student_id, study_course_id, term FROM enrollment_claim
		WHERE campaign_id = $1 AND enroll_token = $2
	`, campaignID, enrollToken).Scan(&p.ID, &p.StudyCourseID, &p.Term)

	if err == sql.ErrNoRows {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Invalid enroll token for this campaign")
		return rules.Participant{}, false
	}
	if err != nil {
		slog.Error("failed to verify enroll token", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return rules.Participant{}, false
	}

	return p, true
}

func studyCourseAllowed(db *sql.DB, campaignID string, studyCourseID *string) (bool, error) {
	var restricted int
	err := db.QueryRow(`
		SELECT COUNT(*) FROM campaign_study_course WHERE campaign_id = $1
	`, campaignID).Scan(&restricted)
	if err != nil {
		return false, err
	}
	if restricted == 0 {
		return true, nil
	}
	if studyCourseID == nil {
		return false, nil
	}

	var ok bool
	err = db.QueryRow(`
		SELECT EXISTS(
			SELECT 1 FROM campaign_study_course
			WHERE campaign_id = $1 AND study_course_id = $2
		)
	`, campaignID, *studyCourseID).Scan(&ok)
	return ok, err
}

// activeImmediateProcedure finds the fifo/confirm procedure whose window
// contains now. Campaign procedures never overlap, so at most one matches.
func activeImmediateProcedure(db *sql.DB, campaignID string, now time.Time) (string, error) {
	var id string
	err := db.QueryRow(`
		SELECT id FROM procedure
		WHERE campaign_id = $1 AND kind IN ($2, $3) AND start_date < $4 AND end_date > $4
	`, campaignID, models.KindFifo, models.KindConfirm, now).Scan(&id)
	return id, err
}

func loadRegistrations(db *sql.DB, campaignID, participantID string) ([]models.Ticket, error) {
	rows, err := db.Query(`
		SELECT id, kind, campaign_id, procedure_id, participant_id, initiator_id, course_id, exam_only, created_at
		FROM ticket
		WHERE campaign_id = $1 AND participant_id = $2 AND kind = $3
		ORDER BY seq
	`, campaignID, participantID, models.TicketRegistration)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tickets := []models.Ticket{}
	for rows.Next() {
		var t models.Ticket
		if err := rows.Scan(&t.ID, &t.Kind, &t.CampaignID, &t.ProcedureID, &t.ParticipantID,
			&t.InitiatorID, &t.CourseID, &t.ExamOnly, &t.CreatedAt); err != nil {
			return nil, err
		}
		tickets = append(tickets, t)
	}

	return tickets, rows.Err()
}

func loadPriorityLists(db *sql.DB, campaignID, participantID string) ([]models.PriorityList, error) {
	rows, err := db.Query(`
		SELECT t.id, t.kind, t.campaign_id, t.procedure_id, t.participant_id, t.initiator_id,
		       t.exam_only, t.created_at, i.course_id, i.rank
		FROM ticket t
		JOIN priority_item i ON i.ticket_id = t.id
		WHERE t.campaign_id = $1 AND t.participant_id = $2 AND t.kind = $3
		ORDER BY t.seq, i.rank
	`, campaignID, participantID, models.TicketPriorityList)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lists := []models.PriorityList{}
	index := make(map[string]int)
	for rows.Next() {
		var t models.Ticket
		var item models.PriorityItem
		if err := rows.Scan(&t.ID, &t.Kind, &t.CampaignID, &t.ProcedureID, &t.ParticipantID,
			&t.InitiatorID, &t.ExamOnly, &t.CreatedAt, &item.CourseID, &item.Rank); err != nil {
			return nil, err
		}
		item.TicketID = t.ID

		pos, ok := index[t.ID]
		if !ok {
			pos = len(lists)
			index[t.ID] = pos
			lists = append(lists, models.PriorityList{Ticket: t})
		}
		lists[pos].Items = append(lists[pos].Items, item)
	}

	return lists, rows.Err()
}
