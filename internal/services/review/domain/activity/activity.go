// Package activity defines the activity aggregate: the per-workflow
// instance row that carries the stage pointer, escrow accounting, and
// moderation state. Stage and escrow fields are mutated only by the
// progression engine and escrow accounting.
package activity

import (
	"time"

	apperrors "github.com/rodrigolearns/paperstacks/internal/platform/errors"
	"github.com/rodrigolearns/paperstacks/internal/services/review/domain/escrow"
	"github.com/rodrigolearns/paperstacks/internal/services/review/domain/workflow"
)

// ModerationState labels moderation standing. Suspended activities refuse
// every mutating operation except moderation itself.
type ModerationState string

const (
	ModerationClear     ModerationState = "clear"
	ModerationFlagged   ModerationState = "flagged"
	ModerationSuspended ModerationState = "suspended"
)

// Valid reports whether the state is a known moderation label.
func (m ModerationState) Valid() bool {
	switch m {
	case ModerationClear, ModerationFlagged, ModerationSuspended:
		return true
	}
	return false
}

// AllowsMutation reports whether participant operations may touch the
// activity. Flagged activities still operate; suspended ones do not.
func (m ModerationState) AllowsMutation() bool {
	return m == ModerationClear || m == ModerationFlagged
}

// Activity is one instance of a templated workflow attached to a paper.
type Activity struct {
	ID             string
	ExternalUUID   string
	PaperID        string
	CreatorID      int64
	ActivityType   workflow.ActivityType
	TemplateID     string
	Escrow         escrow.Balance
	CurrentStage   string
	CurrentRound   int
	StageEnteredAt time.Time
	StageDeadline  *time.Time
	Moderation     ModerationState
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CheckMutable rejects mutations on suspended activities.
func (a Activity) CheckMutable() error {
	if !a.Moderation.AllowsMutation() {
		return apperrors.New(apperrors.CodeActivitySuspended, "activity is suspended")
	}
	return nil
}

// DeadlineElapsed reports whether the current stage's deadline has passed.
// Activities without a deadline never elapse.
func (a Activity) DeadlineElapsed(now time.Time) bool {
	return a.StageDeadline != nil && a.StageDeadline.Before(now)
}
