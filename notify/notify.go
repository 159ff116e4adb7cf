// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package notify

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
)

// Kind selects the notification template.
type Kind string

const (
	KindFifoConfirmation Kind = "fifo_confirmation"
	KindDrawWon          Kind = "draw_won"
	KindDrawNoLuck       Kind = "draw_no_luck"
)

// Context carries the data a template needs. Course fields are empty for
// a no-luck notification.
type Context struct {
	CampaignName  string
	ProcedureName string
	CourseID      string
	CourseName    string
	DrawnAt       time.Time
}

// Notifier delivers allocation outcomes to participants. Delivery is
// best-effort: callers log failures and never roll back a committed
// allocation over them.
type Notifier interface {
	Notify(recipientID string, kind Kind, ctx Context) error
}

// Message renders the user-facing text for a notification.
func Message(kind Kind, ctx Context) string {
	switch kind {
	case KindFifoConfirmation:
		return fmt.Sprintf("Your seat in %s is confirmed.", ctx.CourseName)
	case KindDrawWon:
		return fmt.Sprintf("You won a seat in %s. The draw for %s ran %s.",
			ctx.CourseName, ctx.ProcedureName, humanize.Time(ctx.DrawnAt))
	case KindDrawNoLuck:
		return fmt.Sprintf("None of your choices for %s could be allocated. The draw ran %s.",
			ctx.ProcedureName, humanize.Time(ctx.DrawnAt))
	default:
		return string(kind)
	}
}

// LogNotifier writes notifications to the structured log. It stands in for
// a real delivery channel (mail, push) behind the same interface.
type LogNotifier struct{}

func (LogNotifier) Notify(recipientID string, kind Kind, ctx Context) error {
	slog.Info("notification",
		"recipient", recipientID,
		"kind", string(kind),
		"campaign", ctx.CampaignName,
		"message", Message(kind, ctx),
	)
	return nil
}
