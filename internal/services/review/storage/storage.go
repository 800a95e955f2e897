// Package storage defines the persistence contracts for the review
// service. Every mutating method is one atomic transaction: the store
// loads the aggregate, applies the domain decision inside the
// transaction, and persists the result or nothing at all.
package storage

import (
	"context"
	"time"

	apperrors "github.com/rodrigolearns/paperstacks/internal/platform/errors"
	"github.com/rodrigolearns/paperstacks/internal/services/review/domain/activity"
	"github.com/rodrigolearns/paperstacks/internal/services/review/domain/escrow"
	"github.com/rodrigolearns/paperstacks/internal/services/review/domain/finalization"
	"github.com/rodrigolearns/paperstacks/internal/services/review/domain/ledger"
	"github.com/rodrigolearns/paperstacks/internal/services/review/domain/team"
	"github.com/rodrigolearns/paperstacks/internal/services/review/domain/workflow"
)

// ErrNotFound indicates a requested persistence record is missing.
var ErrNotFound = apperrors.New(apperrors.CodeNotFound, "record not found")

// ErrActivityNotFound indicates the referenced activity does not exist.
var ErrActivityNotFound = apperrors.New(apperrors.CodeActivityNotFound, "activity not found")

// ErrTemplateNotFound indicates the referenced template does not exist.
var ErrTemplateNotFound = apperrors.New(apperrors.CodeTemplateNotFound, "template not found")

// ErrStageConflict indicates a guarded stage update lost a race: the
// activity's current stage no longer matches the expected from-stage.
// Callers retry the whole progression attempt a bounded number of times.
var ErrStageConflict = apperrors.New(apperrors.CodeConflict, "activity stage changed concurrently")

// ErrEscrowConflict indicates a guarded escrow update lost a race with a
// concurrent disbursement. Callers retry a bounded number of times.
var ErrEscrowConflict = apperrors.New(apperrors.CodeConflict, "activity escrow changed concurrently")

// ErrTemplateInUse indicates a template edit was rejected because a live
// activity references it. Edits create new templates instead.
var ErrTemplateInUse = apperrors.New(apperrors.CodeTemplateInvalid, "template is referenced by a live activity")

// Timeline event types recorded by store operations.
const (
	EventActivitySubmitted = "activity.submitted"
	EventStageTransitioned = "stage.transitioned"
	EventReviewerJoined    = "reviewer.joined"
	EventReviewerLockedIn  = "reviewer.locked_in"
	EventReviewerRemoved   = "reviewer.removed"
	EventAwardGiven        = "award.given"
	EventAssessmentToggled = "assessment.finalized"
	EventContentChanged    = "assessment.content_changed"
	EventEscrowReleased    = "escrow.released"
	EventModerationChanged = "moderation.changed"
)

// Paper is the minimal paper row activities attach to.
type Paper struct {
	ID           string
	ExternalUUID string
	Title        string
	CreatorID    int64
	CreatedAt    time.Time
}

// TimelineEvent is one append-only audit record. Seq is gapless per
// activity and assigned inside the writing transaction.
type TimelineEvent struct {
	ID         int64
	ActivityID string
	Seq        int64
	EventType  string
	FromStage  string
	ToStage    string
	ActorID    *int64
	Payload    string
	CreatedAt  time.Time
}

// Snapshot is the latest assessment content captured from the pad
// service. Content is stored verbatim, never edited locally.
type Snapshot struct {
	ActivityID  string
	Content     string
	ContentHash string
	CapturedAt  time.Time
	UpdatedAt   time.Time
}

// PostEntryResult reports a ledger posting. Duplicate means an identical
// posting inside the idempotency window already existed; Entry is then
// the previously recorded entry and nothing was written.
type PostEntryResult struct {
	Entry     ledger.Entry
	Duplicate bool
}

// WalletStore owns wallet balances and the append-only entry log.
type WalletStore interface {
	// GetWallet returns the owner's wallet, or a zero-balance wallet when
	// none exists yet (wallets are created lazily on first posting).
	GetWallet(ctx context.Context, ownerID int64) (ledger.Wallet, error)
	// PostEntry applies one validated entry atomically: duplicate check,
	// balance guard, entry insert, wallet update.
	PostEntry(ctx context.Context, entry ledger.Entry, window time.Duration) (PostEntryResult, error)
	ListEntries(ctx context.Context, req ListEntriesRequest) (ListEntriesResult, error)
}

// ListEntriesRequest pages an owner's entries newest-first by id keyset.
type ListEntriesRequest struct {
	OwnerID      int64
	PageSize     int
	BeforeID     int64
	FilterClause string
	FilterParams []any
}

// ListEntriesResult is one page of ledger entries.
type ListEntriesResult struct {
	Entries []ledger.Entry
	HasMore bool
}

// PaperStore reads paper rows. Papers are created inside submissions.
type PaperStore interface {
	GetPaper(ctx context.Context, id string) (Paper, error)
}

// TemplateStore owns workflow templates. Templates referenced by a live
// activity are immutable.
type TemplateStore interface {
	PutTemplate(ctx context.Context, tpl workflow.Template) error
	GetTemplate(ctx context.Context, id string) (workflow.Template, error)
	ListTemplates(ctx context.Context, activityType workflow.ActivityType) ([]workflow.Template, error)
}

// Submission describes a new activity plus its funding debit. The service
// pre-generates ids; NewPaper is set when no existing paper is referenced.
type Submission struct {
	ActivityID   string
	ActivityUUID string
	ActivityType workflow.ActivityType
	TemplateID   string
	PaperID      string
	NewPaper     *Paper
	CreatorID    int64
	Funding      int64
	Now          time.Time
}

// SubmissionResult is the created aggregate set.
type SubmissionResult struct {
	Activity activity.Activity
	Paper    Paper
	Entry    ledger.Entry
}

// StageChange is the generic transition update: guarded stage pointer
// move plus its timeline event, in one transaction.
type StageChange struct {
	ActivityID string
	FromStage  string
	ToStage    string
	EnteredAt  time.Time
	Deadline   *time.Time
	ActorID    *int64
	// BumpRound increments current_round with the transition, capped at
	// RoundCap when positive. Used by re-review edges.
	BumpRound bool
	RoundCap  int
	// ReleaseEscrowTo, when set, closes the escrow and credits the
	// leftover to this admin account in the same transaction. Used by
	// terminal edges.
	ReleaseEscrowTo *int64
	// Window is the ledger idempotency window for any credit the change
	// posts.
	Window time.Duration
}

// StageChangeResult reports the applied transition's folded side effects.
type StageChangeResult struct {
	Round       int
	RoundBumped bool
	Escrow      EscrowRelease
}

// EscrowRelease reports a leftover-escrow release.
type EscrowRelease struct {
	Leftover int64
	Released bool
}

// ActivityStore owns activity rows: creation, stage movement, escrow
// release, round tracking, and moderation.
type ActivityStore interface {
	// CreateSubmission atomically creates the paper (when new), the
	// activity in its template's initial stage, the funding debit, and
	// the submission timeline event. Fails with INSUFFICIENT_FUNDS when
	// the creator's balance cannot cover the funding.
	CreateSubmission(ctx context.Context, sub Submission, window time.Duration) (SubmissionResult, error)
	GetActivity(ctx context.Context, id string) (activity.Activity, error)
	GetActivityByUUID(ctx context.Context, externalUUID string) (activity.Activity, error)
	// ApplyStageChange moves the stage pointer, guarded by the expected
	// from-stage; ErrStageConflict reports a lost race. Optional round
	// bump and escrow release instructions commit atomically with the
	// stage update.
	ApplyStageChange(ctx context.Context, change StageChange) (StageChangeResult, error)
	// IncrementRound bumps current_round unless maxRounds is reached.
	// Returns the resulting round and whether the bump happened.
	IncrementRound(ctx context.Context, activityID string, maxRounds int, now time.Time) (int, bool, error)
	// ReleaseLeftoverEscrow zeroes the escrow and credits the leftover to
	// the admin account. Idempotent: a second release reports
	// Released=false with zero leftover.
	ReleaseLeftoverEscrow(ctx context.Context, activityID string, adminID int64, window time.Duration, now time.Time) (EscrowRelease, error)
	// ListDeadlineDue returns activities whose current stage deadline has
	// elapsed, oldest deadline first. Suspended activities are skipped.
	ListDeadlineDue(ctx context.Context, now time.Time, limit int) ([]activity.Activity, error)
	SetModeration(ctx context.Context, activityID string, state activity.ModerationState, actorID int64, now time.Time) error
}

// SweepResult reports one sweep removal. Penalty is zero when the
// reviewer's balance could not cover any deduction.
type SweepResult struct {
	Removed bool
	Penalty int64
}

// TeamStore owns reviewer memberships and the commitment sweep.
type TeamStore interface {
	// JoinTeam decides and persists a join against live team state.
	JoinTeam(ctx context.Context, activityID string, userID int64, limit int, window time.Duration, now time.Time) (team.Membership, error)
	// LockInMember transitions a joined member to locked_in.
	LockInMember(ctx context.Context, activityID string, userID int64, now time.Time) (team.Membership, error)
	// RemoveMember removes an active member for cause.
	RemoveMember(ctx context.Context, activityID string, userID int64, reason string, now time.Time) (team.Membership, error)
	ListTeam(ctx context.Context, activityID string) ([]team.Membership, error)
	// ListExpiredCommitments returns joined memberships whose commitment
	// deadline elapsed, across all activities, oldest deadline first.
	ListExpiredCommitments(ctx context.Context, now time.Time, limit int) ([]team.Membership, error)
	// SweepMember removes one expired membership and posts the clamped
	// no-show penalty. Only rows still joined are touched, so re-runs
	// are no-ops reported as Removed=false.
	SweepMember(ctx context.Context, activityID string, userID int64, penalty int64, window time.Duration, now time.Time) (SweepResult, error)
}

// FinalizationResult reports an agreement toggle and the recomputed
// all-finalized state.
type FinalizationResult struct {
	IsFinalized     bool
	AllFinalized    bool
	ActiveReviewers int
	FinalizedCount  int
}

// SnapshotResult reports a pad snapshot ingest. Reset counts the
// agreement rows invalidated by a content change.
type SnapshotResult struct {
	Changed bool
	Reset   int
}

// FinalizationStore owns assessment agreement rows and pad snapshots.
type FinalizationStore interface {
	// ToggleFinalization upserts the reviewer's agreement and recomputes
	// allFinalized against active memberships. Rejects reviewers without
	// an active membership.
	ToggleFinalization(ctx context.Context, activityID string, reviewerID int64, finalized bool, contentHash string, now time.Time) (FinalizationResult, error)
	// ApplySnapshot stores the latest pad snapshot; a changed content
	// hash resets every agreement row for the activity.
	ApplySnapshot(ctx context.Context, snap Snapshot) (SnapshotResult, error)
	GetSnapshot(ctx context.Context, activityID string) (Snapshot, error)
	// ListFinalizations returns every agreement row for the activity,
	// including stale rows from removed reviewers.
	ListFinalizations(ctx context.Context, activityID string) ([]finalization.Status, error)
}

// Disbursement describes an award to disburse. The service pre-generates
// the award id and resolves the caller identities.
type Disbursement struct {
	AwardID      string
	ActivityID   string
	GiverID      int64
	ReceiverID   int64
	AwardTypeKey string
	Window       time.Duration
	Now          time.Time
}

// AwardStore owns the award-type catalog and award disbursement.
type AwardStore interface {
	PutAwardType(ctx context.Context, at escrow.AwardType) error
	GetAwardType(ctx context.Context, key string) (escrow.AwardType, error)
	ListAwardTypes(ctx context.Context) ([]escrow.AwardType, error)
	// DisburseAward atomically inserts the award, decrements the escrow,
	// and credits the receiver.
	DisburseAward(ctx context.Context, d Disbursement) (escrow.Award, error)
	ListAwards(ctx context.Context, activityID string) ([]escrow.Award, error)
}

// ListTimelineRequest pages an activity's events by seq keyset.
type ListTimelineRequest struct {
	ActivityID   string
	PageSize     int
	AfterSeq     int64
	Descending   bool
	FilterClause string
	FilterParams []any
}

// ListTimelineResult is one page of timeline events.
type ListTimelineResult struct {
	Events  []TimelineEvent
	HasMore bool
}

// TimelineStore reads the append-only audit log.
type TimelineStore interface {
	ListTimeline(ctx context.Context, req ListTimelineRequest) (ListTimelineResult, error)
}

// Store aggregates every persistence contract the review service needs.
type Store interface {
	WalletStore
	PaperStore
	TemplateStore
	ActivityStore
	TeamStore
	FinalizationStore
	AwardStore
	TimelineStore
}
