// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package allocation

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/danielhkuo/seatdraw/models"
)

// Ledger is the append-mostly record of allocation decisions. All seat
// grants flow through RecordConfirmedRegistration; occupancy is always
// derived by counting, never cached.
type Ledger struct {
	db *sql.DB
}

func NewLedger(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

// RegistrationInput describes one confirmed-registration write.
type RegistrationInput struct {
	CampaignID    string
	ProcedureID   *string // nil for direct/manual allocations
	ParticipantID string
	InitiatorID   string
	CourseID      string
	ExamOnly      bool
	IPHash        *string
	At            time.Time
}

// RecordConfirmedRegistration grants one seat. The capacity check and the
// ticket insert happen in a single transaction with the course row locked,
// so concurrent requests serialize here and occupancy can never exceed
// max_participants. This is the only place capacity is enforced.
func (l *Ledger) RecordConfirmedRegistration(in RegistrationInput) (models.Ticket, error) {
	if in.CampaignID == "" || in.ParticipantID == "" || in.InitiatorID == "" || in.CourseID == "" {
		return models.Ticket{}, fmt.Errorf("%w: campaign, participant, initiator, and course are required", ErrInvalidArgument)
	}

	tx, err := l.db.Begin()
	if err != nil {
		return models.Ticket{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Lock the course row so concurrent capacity checks serialize.
	var maxParticipants int
	err = tx.QueryRow(`
		SELECT max_participants FROM course WHERE id = $1 FOR UPDATE
	`, in.CourseID).Scan(&maxParticipants)

	if err == sql.ErrNoRows {
		return models.Ticket{}, fmt.Errorf("%w: course %s", ErrNotFound, in.CourseID)
	}
	if err != nil {
		return models.Ticket{}, fmt.Errorf("failed to lock course: %w", err)
	}

	var confirmed int
	err = tx.QueryRow(`
		SELECT COUNT(*) FROM ticket WHERE course_id = $1 AND kind = $2
	`, in.CourseID, models.TicketRegistration).Scan(&confirmed)
	if err != nil {
		return models.Ticket{}, fmt.Errorf("failed to count registrations: %w", err)
	}

	if confirmed >= maxParticipants {
		return models.Ticket{}, fmt.Errorf("%w: course %s has %d/%d seats taken",
			ErrNoSpaceAvailable, in.CourseID, confirmed, maxParticipants)
	}

	ticket := models.Ticket{
		ID:            uuid.NewString(),
		Kind:          models.TicketRegistration,
		CampaignID:    in.CampaignID,
		ProcedureID:   in.ProcedureID,
		ParticipantID: in.ParticipantID,
		InitiatorID:   in.InitiatorID,
		CourseID:      &in.CourseID,
		ExamOnly:      in.ExamOnly,
		CreatedAt:     in.At,
		IPHash:        in.IPHash,
	}

	_, err = tx.Exec(`
		INSERT INTO ticket (id, kind, campaign_id, procedure_id, participant_id, initiator_id, course_id, exam_only, created_at, ip_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, ticket.ID, ticket.Kind, ticket.CampaignID, ticket.ProcedureID, ticket.ParticipantID,
		ticket.InitiatorID, ticket.CourseID, ticket.ExamOnly, ticket.CreatedAt, ticket.IPHash)

	if err != nil {
		return models.Ticket{}, fmt.Errorf("failed to insert ticket: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return models.Ticket{}, fmt.Errorf("failed to commit registration: %w", err)
	}

	return ticket, nil
}

// CountConfirmed returns the current occupancy of a course across all
// procedures.
func (l *Ledger) CountConfirmed(courseID string) (int, error) {
	var n int
	err := l.db.QueryRow(`
		SELECT COUNT(*) FROM ticket WHERE course_id = $1 AND kind = $2
	`, courseID, models.TicketRegistration).Scan(&n)
	return n, err
}

// CountConfirmedForProcedure returns the occupancy a single procedure
// contributed to a course.
func (l *Ledger) CountConfirmedForProcedure(courseID, procedureID string) (int, error) {
	var n int
	err := l.db.QueryRow(`
		SELECT COUNT(*) FROM ticket WHERE course_id = $1 AND procedure_id = $2 AND kind = $3
	`, courseID, procedureID, models.TicketRegistration).Scan(&n)
	return n, err
}

// LoadProcedure retrieves a procedure by id.
func LoadProcedure(db *sql.DB, id string) (models.Procedure, error) {
	var p models.Procedure
	err := db.QueryRow(`
		SELECT id, campaign_id, name, kind, start_date, end_date, rule_based,
		       draw_date, max_priority_lists, max_priority_list_items, drawn_at
		FROM procedure
		WHERE id = $1
	`, id).Scan(&p.ID, &p.CampaignID, &p.Name, &p.Kind, &p.StartDate, &p.EndDate,
		&p.RuleBased, &p.DrawDate, &p.MaxPriorityLists, &p.MaxPriorityListItems, &p.DrawnAt)

	if err == sql.ErrNoRows {
		return models.Procedure{}, fmt.Errorf("%w: procedure %s", ErrNotFound, id)
	}
	if err != nil {
		return models.Procedure{}, fmt.Errorf("failed to load procedure: %w", err)
	}
	return p, nil
}

// LoadCourse retrieves a course by id. Occupancy fields are not populated.
func LoadCourse(db *sql.DB, id string) (models.Course, error) {
	var c models.Course
	err := db.QueryRow(`
		SELECT id, campaign_id, name, max_participants FROM course WHERE id = $1
	`, id).Scan(&c.ID, &c.CampaignID, &c.Name, &c.MaxParticipants)

	if err == sql.ErrNoRows {
		return models.Course{}, fmt.Errorf("%w: course %s", ErrNotFound, id)
	}
	if err != nil {
		return models.Course{}, fmt.Errorf("failed to load course: %w", err)
	}
	return c, nil
}
