// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package allocation

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/danielhkuo/seatdraw/models"
	"github.com/danielhkuo/seatdraw/notify"
	"github.com/danielhkuo/seatdraw/rules"
)

// Shuffler produces the random permutation for a draw run. *math/rand.Rand
// satisfies it, so tests inject a seeded source and replay identical draws.
type Shuffler interface {
	Shuffle(n int, swap func(i, j int))
}

// Draw is the batch lottery allocator. Lists are accepted while the
// procedure is open, then Run consumes all of them in one randomized pass
// once the draw date has passed.
type Draw struct {
	DB       *sql.DB
	Ledger   *Ledger
	Notifier notify.Notifier
	Clock    func() time.Time
	Shuffler Shuffler
}

func NewDraw(db *sql.DB, notifier notify.Notifier) *Draw {
	return &Draw{
		DB:       db,
		Ledger:   NewLedger(db),
		Notifier: notifier,
		Clock:    time.Now,
		Shuffler: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// ListInput is one ranked list in a submission batch. Choices are course
// ids in preference order; the first entry is rank 1. ID must be empty:
// a non-empty ID means the caller is resubmitting a stored list.
type ListInput struct {
	ID      string
	Choices []string
}

// Submission is a batch of priority lists from one participant. The shape
// enforces that all lists in a batch share participant and initiator.
type Submission struct {
	Participant rules.Participant
	InitiatorID string
	Lists       []ListInput
	IPHash      *string
}

// SubmitLists validates and persists a batch of priority lists against an
// open draw procedure. Each persisted list is immutable afterwards; the
// only permitted mutation is deletion.
func (d *Draw) SubmitLists(procedureID string, sub Submission) ([]string, error) {
	if len(sub.Lists) == 0 {
		return nil, fmt.Errorf("%w: submission batch is empty", ErrInvalidArgument)
	}
	if sub.Participant.ID == "" || sub.InitiatorID == "" {
		return nil, fmt.Errorf("%w: participant and initiator are required", ErrInvalidArgument)
	}
	if !sub.Participant.Individual() {
		return nil, fmt.Errorf("%w: participant %s cannot be checked individually", ErrInvalidArgument, sub.Participant.ID)
	}

	seen := make(map[string]bool)
	for _, list := range sub.Lists {
		if list.ID != "" {
			return nil, fmt.Errorf("%w: list %s", ErrAlreadyRegistered, list.ID)
		}
		if len(list.Choices) == 0 {
			return nil, fmt.Errorf("%w: a priority list needs at least one choice", ErrInvalidArgument)
		}
		for _, courseID := range list.Choices {
			if courseID == "" {
				return nil, fmt.Errorf("%w: empty course id in priority list", ErrInvalidArgument)
			}
			if seen[courseID] {
				return nil, fmt.Errorf("%w: course %s", ErrDuplicatePriorityListElement, courseID)
			}
			seen[courseID] = true
		}
	}

	proc, err := LoadProcedure(d.DB, procedureID)
	if err != nil {
		return nil, err
	}
	if proc.Kind != models.KindDraw {
		return nil, fmt.Errorf("%w: procedure %s does not take priority lists", ErrInvalidArgument, proc.ID)
	}
	if !d.isOpen(proc) {
		return nil, fmt.Errorf("%w: procedure %s is not open for submissions", ErrProcedureNotActive, proc.ID)
	}

	if proc.MaxPriorityListItems != nil {
		for _, list := range sub.Lists {
			if len(list.Choices) > *proc.MaxPriorityListItems {
				return nil, fmt.Errorf("%w: a list may hold at most %d choices", ErrInvalidArgument, *proc.MaxPriorityListItems)
			}
		}
	}

	if proc.MaxPriorityLists != nil {
		var existing int
		err := d.DB.QueryRow(`
			SELECT COUNT(*) FROM ticket
			WHERE procedure_id = $1 AND participant_id = $2 AND kind = $3
		`, proc.ID, sub.Participant.ID, models.TicketPriorityList).Scan(&existing)
		if err != nil {
			return nil, fmt.Errorf("failed to count existing lists: %w", err)
		}
		if existing+len(sub.Lists) > *proc.MaxPriorityLists {
			return nil, fmt.Errorf("%w: at most %d priority lists per participant", ErrInvalidArgument, *proc.MaxPriorityLists)
		}
	}

	// Every chosen course must exist in the campaign and pass eligibility.
	for courseID := range seen {
		course, err := LoadCourse(d.DB, courseID)
		if err != nil {
			return nil, err
		}
		if course.CampaignID != proc.CampaignID {
			return nil, fmt.Errorf("%w: course %s does not belong to campaign %s", ErrNotFound, courseID, proc.CampaignID)
		}
		if proc.RuleBased {
			allowed, err := rules.Allowed(d.DB, proc.CampaignID, courseID, sub.Participant)
			if err != nil {
				return nil, fmt.Errorf("rule evaluation failed: %w", err)
			}
			if !allowed {
				return nil, fmt.Errorf("%w: course %s", ErrRuleRejected, courseID)
			}
		}
	}

	tx, err := d.DB.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := d.Clock()
	ticketIDs := make([]string, 0, len(sub.Lists))
	for _, list := range sub.Lists {
		ticketID := uuid.NewString()

		_, err = tx.Exec(`
			INSERT INTO ticket (id, kind, campaign_id, procedure_id, participant_id, initiator_id, created_at, ip_hash)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, ticketID, models.TicketPriorityList, proc.CampaignID, proc.ID,
			sub.Participant.ID, sub.InitiatorID, now, sub.IPHash)
		if err != nil {
			return nil, fmt.Errorf("failed to insert priority list: %w", err)
		}

		for i, courseID := range list.Choices {
			_, err = tx.Exec(`
				INSERT INTO priority_item (ticket_id, course_id, rank)
				VALUES ($1, $2, $3)
			`, ticketID, courseID, i+1)
			if err != nil {
				return nil, fmt.Errorf("failed to insert priority item: %w", err)
			}
		}

		ticketIDs = append(ticketIDs, ticketID)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit priority lists: %w", err)
	}

	return ticketIDs, nil
}

// isOpen reports whether a draw procedure still accepts submissions:
// inside the active window, before the draw date, and not yet drawn.
func (d *Draw) isOpen(proc models.Procedure) bool {
	now := d.Clock()
	if !proc.IsActive(now) || proc.IsDrawn() {
		return false
	}
	return proc.DrawDate != nil && now.Before(*proc.DrawDate)
}

// RunResult summarizes one lottery pass.
type RunResult struct {
	DrawnAt      time.Time
	Placed       int
	Unplaced     int
	AlreadyDrawn bool
}

// drawList is one loaded priority list with its choices in ascending rank.
type drawList struct {
	TicketID      string
	ParticipantID string
	InitiatorID   string
	Choices       []string
}

// Run executes the lottery for a draw procedure. The permutation is
// computed once up front; lists are then processed strictly in that order,
// so earlier-drawn participants win any contested last seat. Re-running a
// drawn procedure is a no-op, and a retry after a crash skips participants
// that were already placed.
func (d *Draw) Run(procedureID string) (RunResult, error) {
	proc, err := LoadProcedure(d.DB, procedureID)
	if err != nil {
		return RunResult{}, err
	}
	if proc.Kind != models.KindDraw {
		return RunResult{}, fmt.Errorf("%w: procedure %s is not a draw procedure", ErrInvalidArgument, proc.ID)
	}
	if proc.IsDrawn() {
		return RunResult{DrawnAt: *proc.DrawnAt, AlreadyDrawn: true}, nil
	}
	if proc.DrawDate == nil {
		return RunResult{}, fmt.Errorf("%w: procedure %s has no draw date", ErrInvalidArgument, proc.ID)
	}

	now := d.Clock()
	if now.Before(*proc.DrawDate) {
		return RunResult{}, fmt.Errorf("%w: draw date not reached", ErrProcedureNotActive)
	}

	lists, err := d.loadLists(proc.ID)
	if err != nil {
		return RunResult{}, err
	}

	// One uniform permutation for the whole pass. This ordering is the sole
	// fairness mechanism of the draw.
	d.Shuffler.Shuffle(len(lists), func(i, j int) {
		lists[i], lists[j] = lists[j], lists[i]
	})

	campaignName := campaignNameOf(d.DB, proc.CampaignID)
	res := RunResult{DrawnAt: now}

	for _, list := range lists {
		placed, err := d.placeList(proc, list, campaignName, now)
		if err != nil {
			// One bad list never aborts the draw for other participants.
			slog.Error("failed to place priority list",
				"error", err, "ticket_id", list.TicketID, "participant_id", list.ParticipantID)
			placed = false
		}
		if placed {
			res.Placed++
		} else {
			res.Unplaced++
			d.sendNotification(list.ParticipantID, notify.KindDrawNoLuck, notify.Context{
				CampaignName:  campaignName,
				ProcedureName: proc.Name,
				DrawnAt:       now,
			})
		}
	}

	_, err = d.DB.Exec(`
		UPDATE procedure SET drawn_at = $1 WHERE id = $2 AND drawn_at IS NULL
	`, now, proc.ID)
	if err != nil {
		return res, fmt.Errorf("failed to mark procedure drawn: %w", err)
	}

	slog.Info("draw completed",
		"procedure_id", proc.ID, "lists", len(lists), "placed", res.Placed, "unplaced", res.Unplaced)

	return res, nil
}

// placeList walks one list in ascending rank and grants the first choice
// that passes eligibility and still has a seat. Full and deleted courses
// are skipped; a persistence failure after capacity was available falls
// back to no placement for this list.
func (d *Draw) placeList(proc models.Procedure, list drawList, campaignName string, now time.Time) (bool, error) {
	// A participant already holding a seat from this procedure was placed
	// by an earlier (possibly interrupted) pass.
	var alreadyPlaced bool
	err := d.DB.QueryRow(`
		SELECT EXISTS(
			SELECT 1 FROM ticket
			WHERE procedure_id = $1 AND participant_id = $2 AND kind = $3
		)
	`, proc.ID, list.ParticipantID, models.TicketRegistration).Scan(&alreadyPlaced)
	if err != nil {
		return false, fmt.Errorf("failed to check prior placement: %w", err)
	}
	if alreadyPlaced {
		return true, nil
	}

	participant := d.loadParticipant(proc.CampaignID, list.ParticipantID)

	for _, courseID := range list.Choices {
		course, err := LoadCourse(d.DB, courseID)
		if errors.Is(err, ErrNotFound) {
			// Course deleted out-of-band: this choice is simply un-placeable.
			continue
		}
		if err != nil {
			return false, err
		}

		if proc.RuleBased {
			allowed, err := rules.Allowed(d.DB, proc.CampaignID, course.ID, participant)
			if err != nil {
				slog.Warn("rule evaluation failed during draw",
					"error", err, "course_id", course.ID, "participant_id", participant.ID)
				continue
			}
			if !allowed {
				continue
			}
		}

		ticket, err := d.Ledger.RecordConfirmedRegistration(RegistrationInput{
			CampaignID:    proc.CampaignID,
			ProcedureID:   &proc.ID,
			ParticipantID: list.ParticipantID,
			InitiatorID:   list.InitiatorID,
			CourseID:      course.ID,
			At:            now,
		})
		if errors.Is(err, ErrNoSpaceAvailable) {
			continue
		}
		if err != nil {
			return false, err
		}

		d.sendNotification(ticket.ParticipantID, notify.KindDrawWon, notify.Context{
			CampaignName:  campaignName,
			ProcedureName: proc.Name,
			CourseID:      course.ID,
			CourseName:    course.Name,
			DrawnAt:       now,
		})
		return true, nil
	}

	return false, nil
}

// AfterActive deletes every priority list still attached to a drawn
// procedure. Lists already removed by their owners count as deleted, so
// repeated calls are safe.
func (d *Draw) AfterActive(procedureID string) (int, error) {
	proc, err := LoadProcedure(d.DB, procedureID)
	if err != nil {
		return 0, err
	}
	if proc.Kind != models.KindDraw {
		return 0, fmt.Errorf("%w: procedure %s is not a draw procedure", ErrInvalidArgument, proc.ID)
	}
	if !proc.IsDrawn() {
		return 0, fmt.Errorf("%w: procedure %s has not been drawn yet", ErrProcedureNotActive, proc.ID)
	}

	res, err := d.DB.Exec(`
		DELETE FROM ticket WHERE procedure_id = $1 AND kind = $2
	`, proc.ID, models.TicketPriorityList)
	if err != nil {
		return 0, fmt.Errorf("failed to delete priority lists: %w", err)
	}

	deleted, _ := res.RowsAffected()
	return int(deleted), nil
}

// DeleteList removes one priority list owned by the participant. Deleting
// an un-drawn list is side-effect-free: no seat was ever granted for it.
func (d *Draw) DeleteList(procedureID, participantID, ticketID string) error {
	res, err := d.DB.Exec(`
		DELETE FROM ticket
		WHERE id = $1 AND procedure_id = $2 AND participant_id = $3 AND kind = $4
	`, ticketID, procedureID, participantID, models.TicketPriorityList)
	if err != nil {
		return fmt.Errorf("failed to delete priority list: %w", err)
	}

	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("%w: priority list %s", ErrNotFound, ticketID)
	}
	return nil
}

// loadLists retrieves all priority lists of a procedure with their choices
// in ascending rank. Lists come back in insertion order (the seq column),
// so the pre-shuffle order is reproducible from submission order alone;
// the caller shuffles them.
func (d *Draw) loadLists(procedureID string) ([]drawList, error) {
	rows, err := d.DB.Query(`
		SELECT t.id, t.participant_id, t.initiator_id, i.course_id
		FROM ticket t
		JOIN priority_item i ON i.ticket_id = t.id
		WHERE t.procedure_id = $1 AND t.kind = $2
		ORDER BY t.seq, i.rank
	`, procedureID, models.TicketPriorityList)
	if err != nil {
		return nil, fmt.Errorf("failed to load priority lists: %w", err)
	}
	defer rows.Close()

	var lists []drawList
	index := make(map[string]int)
	for rows.Next() {
		var ticketID, participantID, initiatorID, courseID string
		if err := rows.Scan(&ticketID, &participantID, &initiatorID, &courseID); err != nil {
			return nil, fmt.Errorf("failed to scan priority list: %w", err)
		}

		pos, ok := index[ticketID]
		if !ok {
			pos = len(lists)
			index[ticketID] = pos
			lists = append(lists, drawList{
				TicketID:      ticketID,
				ParticipantID: participantID,
				InitiatorID:   initiatorID,
			})
		}
		lists[pos].Choices = append(lists[pos].Choices, courseID)
	}

	return lists, rows.Err()
}

// loadParticipant resolves rule-check attributes from the enrollment claim.
// A participant without a claim is checked with no attributes set.
func (d *Draw) loadParticipant(campaignID, participantID string) rules.Participant {
	p := rules.Participant{ID: participantID, Kind: rules.ParticipantStudent}

	err := d.DB.QueryRow(`
		SELECT study_course_id, term FROM enrollment_claim
		WHERE campaign_id = $1 AND student_id = $2
	`, campaignID, participantID).Scan(&p.StudyCourseID, &p.Term)
	if err != nil && err != sql.ErrNoRows {
		slog.Warn("failed to load participant attributes",
			"error", err, "participant_id", participantID)
	}

	return p
}

func (d *Draw) sendNotification(recipientID string, kind notify.Kind, ctx notify.Context) {
	if d.Notifier == nil {
		return
	}
	if err := d.Notifier.Notify(recipientID, kind, ctx); err != nil {
		slog.Warn("failed to send draw notification",
			"error", err, "recipient", recipientID, "kind", string(kind))
	}
}
