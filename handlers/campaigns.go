// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/danielhkuo/seatdraw/allocation"
	"github.com/danielhkuo/seatdraw/auth"
	"github.com/danielhkuo/seatdraw/cliparse"
	"github.com/danielhkuo/seatdraw/middleware"
	"github.com/danielhkuo/seatdraw/models"
	"github.com/danielhkuo/seatdraw/notify"
)

type CampaignHandler struct {
	db     *sql.DB
	cfg    cliparse.Config
	ledger *allocation.Ledger
}

func NewCampaignHandler(db *sql.DB, cfg cliparse.Config) *CampaignHandler {
	return &CampaignHandler{db: db, cfg: cfg, ledger: allocation.NewLedger(db)}
}

// CreateCampaign handles POST /campaigns
func (h *CampaignHandler) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var req models.CreateCampaignRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Name == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "name is required")
		return
	}
	if !req.EndShow.After(req.StartShow) {
		middleware.ErrorResponse(w, http.StatusBadRequest, "end_show must be after start_show")
		return
	}

	campaignID, err := auth.GenerateID(16)
	if err != nil {
		slog.Error("failed to generate campaign ID", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create campaign")
		return
	}

	adminKey := auth.GenerateAdminKey(campaignID, h.cfg.AdminKeySalt)

	tx, err := h.db.Begin()
	if err != nil {
		slog.Error("failed to begin transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO campaign (id, name, start_show, end_show, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, campaignID, req.Name, req.StartShow, req.EndShow, time.Now())
	if err != nil {
		slog.Error("failed to insert campaign", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create campaign")
		return
	}

	for _, studyCourseID := range req.StudyCourseIDs {
		_, err = tx.Exec(`
			INSERT INTO campaign_study_course (campaign_id, study_course_id)
			VALUES ($1, $2)
		`, campaignID, studyCourseID)
		if err != nil {
			slog.Error("failed to insert study course", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create campaign")
			return
		}
	}

	if err := tx.Commit(); err != nil {
		slog.Error("failed to commit transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create campaign")
		return
	}

	slog.Info("campaign created", "campaign_id", campaignID, "name", req.Name)

	middleware.JSONResponse(w, http.StatusCreated, models.CreateCampaignResponse{
		CampaignID: campaignID,
		AdminKey:   adminKey,
	})
}

// AddCourse handles POST /campaigns/:id/courses
func (h *CampaignHandler) AddCourse(w http.ResponseWriter, r *http.Request) {
	campaignID, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}

	var req models.AddCourseRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Name == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.MaxParticipants < 0 {
		middleware.ErrorResponse(w, http.StatusBadRequest, "max_participants must be >= 0")
		return
	}

	courseID, err := auth.GenerateID(12)
	if err != nil {
		slog.Error("failed to generate course ID", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create course")
		return
	}

	_, err = h.db.Exec(`
		INSERT INTO course (id, campaign_id, name, max_participants)
		VALUES ($1, $2, $3, $4)
	`, courseID, campaignID, req.Name, req.MaxParticipants)
	if err != nil {
		slog.Error("failed to insert course", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create course")
		return
	}

	slog.Info("course added", "campaign_id", campaignID, "course_id", courseID)

	middleware.JSONResponse(w, http.StatusCreated, models.AddCourseResponse{
		CourseID: courseID,
	})
}

// AddProcedure handles POST /campaigns/:id/procedures
func (h *CampaignHandler) AddProcedure(w http.ResponseWriter, r *http.Request) {
	campaignID, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}

	var req models.AddProcedureRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Name == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.Kind != models.KindFifo && req.Kind != models.KindDraw && req.Kind != models.KindConfirm {
		middleware.ErrorResponse(w, http.StatusBadRequest, "kind must be fifo, draw, or confirm")
		return
	}
	if !req.EndDate.After(req.StartDate) {
		middleware.ErrorResponse(w, http.StatusBadRequest, "end_date must be after start_date")
		return
	}

	if req.Kind == models.KindDraw {
		if req.DrawDate == nil || req.MaxPriorityLists == nil || req.MaxPriorityListItems == nil {
			middleware.ErrorResponse(w, http.StatusBadRequest,
				"draw procedures require draw_date, max_priority_lists, and max_priority_list_items")
			return
		}
		if req.DrawDate.Before(req.StartDate) {
			middleware.ErrorResponse(w, http.StatusBadRequest, "draw_date must not precede start_date")
			return
		}
		if *req.MaxPriorityLists < 1 || *req.MaxPriorityListItems < 1 {
			middleware.ErrorResponse(w, http.StatusBadRequest, "draw limits must be >= 1")
			return
		}
	}

	procedureID, err := auth.GenerateID(12)
	if err != nil {
		slog.Error("failed to generate procedure ID", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create procedure")
		return
	}

	// Sibling procedures of one campaign must not overlap in time. The
	// campaign row is locked first so concurrent inserts for the same
	// campaign serialize before the range check; without the lock two
	// transactions could both pass the check and both commit.
	tx, err := h.db.Begin()
	if err != nil {
		slog.Error("failed to begin transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer tx.Rollback()

	var locked int
	err = tx.QueryRow(`
		SELECT 1 FROM campaign WHERE id = $1 FOR UPDATE
	`, campaignID).Scan(&locked)
	if err == sql.ErrNoRows {
		middleware.ErrorResponse(w, http.StatusNotFound, "Campaign not found")
		return
	}
	if err != nil {
		slog.Error("failed to lock campaign", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	var overlaps bool
	err = tx.QueryRow(`
		SELECT EXISTS(
			SELECT 1 FROM procedure
			WHERE campaign_id = $1 AND start_date <= $2 AND end_date >= $3
		)
	`, campaignID, req.EndDate, req.StartDate).Scan(&overlaps)
	if err != nil {
		slog.Error("failed to check procedure overlap", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if overlaps {
		middleware.ErrorResponse(w, http.StatusConflict, "Procedure interval overlaps an existing procedure")
		return
	}

	_, err = tx.Exec(`
		INSERT INTO procedure (id, campaign_id, name, kind, start_date, end_date, rule_based,
		                       draw_date, max_priority_lists, max_priority_list_items)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, procedureID, campaignID, req.Name, req.Kind, req.StartDate, req.EndDate, req.RuleBased,
		req.DrawDate, req.MaxPriorityLists, req.MaxPriorityListItems)
	if err != nil {
		slog.Error("failed to insert procedure", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create procedure")
		return
	}

	if err := tx.Commit(); err != nil {
		slog.Error("failed to commit transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create procedure")
		return
	}

	slog.Info("procedure added", "campaign_id", campaignID, "procedure_id", procedureID, "kind", req.Kind)

	middleware.JSONResponse(w, http.StatusCreated, models.AddProcedureResponse{
		ProcedureID: procedureID,
	})
}

// AddRule handles POST /campaigns/:id/rules
func (h *CampaignHandler) AddRule(w http.ResponseWriter, r *http.Request) {
	campaignID, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}

	var req models.AddRuleRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.CourseID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "course_id is required")
		return
	}
	if req.Kind != models.RuleStudyCourse && req.Kind != models.RuleTerm && req.Kind != models.RuleStudyCourseAndTerm {
		middleware.ErrorResponse(w, http.StatusBadRequest, "kind must be study_course, term, or study_course_and_term")
		return
	}

	var courseCampaign string
	err := h.db.QueryRow(`SELECT campaign_id FROM course WHERE id = $1`, req.CourseID).Scan(&courseCampaign)
	if err == sql.ErrNoRows || (err == nil && courseCampaign != campaignID) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Course not found")
		return
	}
	if err != nil {
		slog.Error("failed to query course", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	ruleID, err := auth.GenerateID(12)
	if err != nil {
		slog.Error("failed to generate rule ID", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create rule")
		return
	}

	_, err = h.db.Exec(`
		INSERT INTO registration_rule (id, campaign_id, course_id, kind, study_course_id, minimum_term)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, ruleID, campaignID, req.CourseID, req.Kind, req.StudyCourseID, req.MinimumTerm)
	if err != nil {
		slog.Error("failed to insert rule", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create rule")
		return
	}

	slog.Info("rule added", "campaign_id", campaignID, "course_id", req.CourseID, "kind", req.Kind)

	middleware.JSONResponse(w, http.StatusCreated, models.AddRuleResponse{
		RuleID: ruleID,
	})
}

// PublishCampaign handles POST /campaigns/:id/publish
func (h *CampaignHandler) PublishCampaign(w http.ResponseWriter, r *http.Request) {
	campaignID, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}

	var courseCount int
	err := h.db.QueryRow(`
		SELECT COUNT(*) FROM course WHERE campaign_id = $1
	`, campaignID).Scan(&courseCount)
	if err != nil {
		slog.Error("failed to count courses", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if courseCount == 0 {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Campaign needs at least one course before publishing")
		return
	}

	shareSlug := auth.GenerateShareSlug(campaignID, h.cfg.CampaignSlugSalt)

	res, err := h.db.Exec(`
		UPDATE campaign SET share_slug = $1 WHERE id = $2
	`, shareSlug, campaignID)
	if err != nil {
		slog.Error("failed to publish campaign", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to publish campaign")
		return
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		middleware.ErrorResponse(w, http.StatusNotFound, "Campaign not found")
		return
	}

	slog.Info("campaign published", "campaign_id", campaignID, "share_slug", shareSlug)

	middleware.JSONResponse(w, http.StatusOK, models.PublishCampaignResponse{
		ShareSlug: shareSlug,
		ShareURL:  h.cfg.BaseURL + "/campaigns/" + shareSlug,
	})
}

// GetCampaignAdmin handles GET /campaigns/:id/admin
func (h *CampaignHandler) GetCampaignAdmin(w http.ResponseWriter, r *http.Request) {
	campaignID, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}

	campaign, err := loadCampaign(h.db, campaignID)
	if err == sql.ErrNoRows {
		middleware.ErrorResponse(w, http.StatusNotFound, "Campaign not found")
		return
	}
	if err != nil {
		slog.Error("failed to query campaign", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	response, err := h.campaignView(campaign)
	if err != nil {
		slog.Error("failed to build campaign view", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, response)
}

// DirectRegister handles POST /campaigns/:id/registrations
// A manual allocation by the campaign admin: the ticket carries no
// procedure and the admin is the initiator.
func (h *CampaignHandler) DirectRegister(w http.ResponseWriter, r *http.Request) {
	campaignID, ok := h.requireAdmin(w, r)
	if !ok {
		return
	}

	var req models.DirectRegisterRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.StudentID == "" || req.CourseID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "student_id and course_id are required")
		return
	}

	course, err := allocation.LoadCourse(h.db, req.CourseID)
	if err != nil {
		writeAllocationError(w, err)
		return
	}
	if course.CampaignID != campaignID {
		middleware.ErrorResponse(w, http.StatusNotFound, "Course not found")
		return
	}

	ipHash := auth.HashIP(middleware.GetClientIP(r), h.cfg.AdminKeySalt)
	ticket, err := h.ledger.RecordConfirmedRegistration(allocation.RegistrationInput{
		CampaignID:    campaignID,
		ParticipantID: req.StudentID,
		InitiatorID:   "admin:" + campaignID,
		CourseID:      req.CourseID,
		ExamOnly:      req.ExamOnly,
		IPHash:        &ipHash,
		At:            time.Now(),
	})
	if err != nil {
		writeAllocationError(w, err)
		return
	}

	slog.Info("direct registration", "campaign_id", campaignID, "ticket_id", ticket.ID, "course_id", req.CourseID)

	middleware.JSONResponse(w, http.StatusCreated, models.RegisterResponse{
		TicketID: ticket.ID,
		CourseID: req.CourseID,
		Message:  "Registration confirmed",
	})
}

// requireAdmin extracts the campaign id and validates the X-Admin-Key
// header. On failure the response is already written.
func (h *CampaignHandler) requireAdmin(w http.ResponseWriter, r *http.Request) (string, bool) {
	campaignID := r.PathValue("id")
	if campaignID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "campaign_id is required")
		return "", false
	}

	adminKey := r.Header.Get("X-Admin-Key")
	if err := auth.ValidateAdminKey(campaignID, adminKey, h.cfg.AdminKeySalt); err != nil {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Invalid admin key")
		return "", false
	}

	return campaignID, true
}

// campaignView assembles a campaign with its courses (occupancy included)
// and procedures.
func (h *CampaignHandler) campaignView(campaign models.Campaign) (models.CampaignWithCourses, error) {
	courses, err := loadCourses(h.db, campaign.ID)
	if err != nil {
		return models.CampaignWithCourses{}, err
	}

	procedures, err := loadProcedures(h.db, campaign.ID)
	if err != nil {
		return models.CampaignWithCourses{}, err
	}

	return models.CampaignWithCourses{
		Campaign:   campaign,
		Courses:    courses,
		Procedures: procedures,
	}, nil
}

func loadCampaign(db *sql.DB, id string) (models.Campaign, error) {
	var c models.Campaign
	err := db.QueryRow(`
		SELECT id, name, start_show, end_show, share_slug, created_at
		FROM campaign WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.StartShow, &c.EndShow, &c.ShareSlug, &c.CreatedAt)
	return c, err
}

func loadCampaignBySlug(db *sql.DB, slug string) (models.Campaign, error) {
	var c models.Campaign
	err := db.QueryRow(`
		SELECT id, name, start_show, end_show, share_slug, created_at
		FROM campaign WHERE share_slug = $1
	`, slug).Scan(&c.ID, &c.Name, &c.StartShow, &c.EndShow, &c.ShareSlug, &c.CreatedAt)
	return c, err
}

func loadCourses(db *sql.DB, campaignID string) ([]models.Course, error) {
	rows, err := db.Query(`
		SELECT c.id, c.campaign_id, c.name, c.max_participants,
		       COUNT(t.id) FILTER (WHERE t.kind = 'registration')
		FROM course c
		LEFT JOIN ticket t ON t.course_id = c.id
		WHERE c.campaign_id = $1
		GROUP BY c.id, c.campaign_id, c.name, c.max_participants
		ORDER BY c.id
	`, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	courses := []models.Course{}
	for rows.Next() {
		var c models.Course
		if err := rows.Scan(&c.ID, &c.CampaignID, &c.Name, &c.MaxParticipants, &c.Confirmed); err != nil {
			return nil, err
		}
		c.SeatsLeft = c.MaxParticipants - c.Confirmed
		if c.SeatsLeft < 0 {
			c.SeatsLeft = 0
		}
		courses = append(courses, c)
	}

	return courses, rows.Err()
}

func loadProcedures(db *sql.DB, campaignID string) ([]models.Procedure, error) {
	rows, err := db.Query(`
		SELECT id, campaign_id, name, kind, start_date, end_date, rule_based,
		       draw_date, max_priority_lists, max_priority_list_items, drawn_at
		FROM procedure
		WHERE campaign_id = $1
		ORDER BY start_date
	`, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	procedures := []models.Procedure{}
	for rows.Next() {
		var p models.Procedure
		if err := rows.Scan(&p.ID, &p.CampaignID, &p.Name, &p.Kind, &p.StartDate, &p.EndDate,
			&p.RuleBased, &p.DrawDate, &p.MaxPriorityLists, &p.MaxPriorityListItems, &p.DrawnAt); err != nil {
			return nil, err
		}
		procedures = append(procedures, p)
	}

	return procedures, rows.Err()
}

// isUniqueViolation matches Postgres duplicate-key failures on the named
// constraint.
func isUniqueViolation(err error, constraint string) bool {
	return err != nil && strings.Contains(err.Error(), constraint)
}

// defaultNotifier is the production notification channel shared by the
// handler constructors.
var defaultNotifier notify.Notifier = notify.LogNotifier{}
