// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package allocation

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/danielhkuo/seatdraw/models"
	"github.com/danielhkuo/seatdraw/notify"
	"github.com/danielhkuo/seatdraw/rules"
)

// Fifo is the immediate first-come-first-served allocator: one request in,
// one accept/reject decision out. There is no retry; a rejected caller must
// re-request if capacity frees up later.
type Fifo struct {
	DB       *sql.DB
	Ledger   *Ledger
	Notifier notify.Notifier
	Clock    func() time.Time
}

func NewFifo(db *sql.DB, notifier notify.Notifier) *Fifo {
	return &Fifo{
		DB:       db,
		Ledger:   NewLedger(db),
		Notifier: notifier,
		Clock:    time.Now,
	}
}

// FifoRequest describes one immediate registration attempt.
type FifoRequest struct {
	ProcedureID string
	Participant rules.Participant
	InitiatorID string
	CourseID    string
	ExamOnly    bool
	IPHash      *string
}

// Register attempts to grant a seat synchronously. It fails with
// ErrInvalidArgument for malformed input, ErrProcedureNotActive outside the
// procedure window, ErrRuleRejected when eligibility fails, and
// ErrNoSpaceAvailable when the course is full. On success the confirmation
// notification is sent best-effort.
func (f *Fifo) Register(req FifoRequest) (models.Ticket, error) {
	if req.CourseID == "" || req.Participant.ID == "" || req.InitiatorID == "" {
		return models.Ticket{}, fmt.Errorf("%w: course, participant, and initiator are required", ErrInvalidArgument)
	}
	if !req.Participant.Individual() {
		return models.Ticket{}, fmt.Errorf("%w: participant %s cannot be checked individually", ErrInvalidArgument, req.Participant.ID)
	}

	proc, err := LoadProcedure(f.DB, req.ProcedureID)
	if err != nil {
		return models.Ticket{}, err
	}
	if proc.Kind != models.KindFifo && proc.Kind != models.KindConfirm {
		return models.Ticket{}, fmt.Errorf("%w: procedure %s does not take immediate registrations", ErrInvalidArgument, proc.ID)
	}
	if !proc.IsActive(f.Clock()) {
		return models.Ticket{}, fmt.Errorf("%w: procedure %s", ErrProcedureNotActive, proc.ID)
	}

	course, err := LoadCourse(f.DB, req.CourseID)
	if err != nil {
		return models.Ticket{}, err
	}
	if course.CampaignID != proc.CampaignID {
		return models.Ticket{}, fmt.Errorf("%w: course %s does not belong to campaign %s", ErrNotFound, course.ID, proc.CampaignID)
	}

	if proc.RuleBased {
		allowed, err := rules.Allowed(f.DB, proc.CampaignID, course.ID, req.Participant)
		if err != nil {
			return models.Ticket{}, fmt.Errorf("rule evaluation failed: %w", err)
		}
		if !allowed {
			return models.Ticket{}, fmt.Errorf("%w: participant %s for course %s", ErrRuleRejected, req.Participant.ID, course.ID)
		}
	}

	ticket, err := f.Ledger.RecordConfirmedRegistration(RegistrationInput{
		CampaignID:    proc.CampaignID,
		ProcedureID:   &proc.ID,
		ParticipantID: req.Participant.ID,
		InitiatorID:   req.InitiatorID,
		CourseID:      course.ID,
		ExamOnly:      req.ExamOnly,
		IPHash:        req.IPHash,
		At:            f.Clock(),
	})
	if err != nil {
		return models.Ticket{}, err
	}

	f.notifyConfirmation(ticket, proc, course)

	return ticket, nil
}

// notifyConfirmation sends the confirmation best-effort. A failed delivery
// never rolls back the committed registration.
func (f *Fifo) notifyConfirmation(ticket models.Ticket, proc models.Procedure, course models.Course) {
	if f.Notifier == nil {
		return
	}

	campaignName := campaignNameOf(f.DB, proc.CampaignID)
	err := f.Notifier.Notify(ticket.ParticipantID, notify.KindFifoConfirmation, notify.Context{
		CampaignName:  campaignName,
		ProcedureName: proc.Name,
		CourseID:      course.ID,
		CourseName:    course.Name,
	})
	if err != nil {
		slog.Warn("failed to send confirmation notification",
			"error", err, "ticket_id", ticket.ID, "participant_id", ticket.ParticipantID)
	}
}

func campaignNameOf(db *sql.DB, campaignID string) string {
	var name string
	if err := db.QueryRow(`SELECT name FROM campaign WHERE id = $1`, campaignID).Scan(&name); err != nil {
		return campaignID
	}
	return name
}
