// Package app hosts the review application layer: the service operations
// behind the HTTP API, the progression driver, the commitment sweep, and
// the runtime lifecycle. Domain packages decide; the store persists; this
// package wires the two together and emits notifications after commit.
package app

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/rodrigolearns/paperstacks/internal/platform/errors"
	"github.com/rodrigolearns/paperstacks/internal/platform/id"
	"github.com/rodrigolearns/paperstacks/internal/services/review/domain/activity"
	"github.com/rodrigolearns/paperstacks/internal/services/review/domain/escrow"
	"github.com/rodrigolearns/paperstacks/internal/services/review/domain/finalization"
	"github.com/rodrigolearns/paperstacks/internal/services/review/domain/ledger"
	"github.com/rodrigolearns/paperstacks/internal/services/review/domain/team"
	"github.com/rodrigolearns/paperstacks/internal/services/review/domain/workflow"
	"github.com/rodrigolearns/paperstacks/internal/services/review/storage"
)

// DefaultDuplicateWindow is the ledger idempotency window applied when
// configuration does not override it.
const DefaultDuplicateWindow = time.Minute

// defaultAdminAccountID receives leftover escrow when no administration
// account is configured.
const defaultAdminAccountID = int64(1)

// Config holds the review service's application settings.
type Config struct {
	// DuplicateWindow is the idempotency window for ledger postings.
	DuplicateWindow time.Duration
	// CommitmentWindow is how long a joined reviewer has to lock in.
	CommitmentWindow time.Duration
	// AdminAccountID receives leftover escrow on activity close.
	AdminAccountID int64
}

// Service coordinates review activities end to end: submission, team
// lifecycle, awards, assessment finalization, and progression.
type Service struct {
	store        storage.Store
	notifier     Notifier
	cfg          Config
	clock        func() time.Time
	capabilities map[workflow.ActivityType]Capability
}

// NewService builds a review service over the given store. A nil notifier
// falls back to the logging sink.
func NewService(store storage.Store, notifier Notifier, cfg Config) *Service {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	if cfg.DuplicateWindow <= 0 {
		cfg.DuplicateWindow = DefaultDuplicateWindow
	}
	if cfg.CommitmentWindow <= 0 {
		cfg.CommitmentWindow = team.DefaultCommitmentWindow
	}
	if cfg.AdminAccountID <= 0 {
		cfg.AdminAccountID = defaultAdminAccountID
	}
	s := &Service{
		store:    store,
		notifier: notifier,
		cfg:      cfg,
		clock:    func() time.Time { return time.Now().UTC() },
	}
	s.capabilities = map[workflow.ActivityType]Capability{
		workflow.TypePeerReview:  newPeerReviewCapability(store, s.now),
		workflow.TypeJournalClub: newJournalClubCapability(store, s.now),
	}
	return s
}

func (s *Service) now() time.Time {
	return s.clock().UTC()
}

func (s *Service) capability(t workflow.ActivityType) (Capability, error) {
	c, ok := s.capabilities[t]
	if !ok {
		return nil, apperrors.WithMetadata(apperrors.CodeInvalidArgument,
			"unknown activity type",
			map[string]string{"ActivityType": string(t)})
	}
	return c, nil
}

func (s *Service) notify(ctx context.Context, event Event) {
	s.notifier.Notify(ctx, event)
}

// resolveActivity accepts either the internal id or the external UUID.
func (s *Service) resolveActivity(ctx context.Context, ref string) (activity.Activity, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return activity.Activity{}, apperrors.New(apperrors.CodeInvalidArgument, "activity reference is required")
	}
	act, err := s.store.GetActivity(ctx, ref)
	if err == nil {
		return act, nil
	}
	if !apperrors.IsCode(err, apperrors.CodeActivityNotFound) {
		return activity.Activity{}, err
	}
	return s.store.GetActivityByUUID(ctx, ref)
}

// SubmitActivity creates an activity in its template's initial stage and
// moves the funding from the creator's wallet into escrow, atomically.
// Either paperID references an existing paper or paperTitle creates one.
func (s *Service) SubmitActivity(ctx context.Context, creatorID int64, templateID, paperID, paperTitle string, funding int64) (storage.SubmissionResult, error) {
	if creatorID <= 0 {
		return storage.SubmissionResult{}, apperrors.New(apperrors.CodeInvalidArgument, "creator account is required")
	}
	if strings.TrimSpace(templateID) == "" {
		return storage.SubmissionResult{}, apperrors.New(apperrors.CodeInvalidArgument, "template id is required")
	}
	paperID = strings.TrimSpace(paperID)
	title := strings.TrimSpace(paperTitle)
	if paperID == "" && title == "" {
		return storage.SubmissionResult{}, apperrors.New(apperrors.CodePaperTitleEmpty, "paper title must not be empty")
	}

	now := s.now()
	activityID, err := id.NewID()
	if err != nil {
		return storage.SubmissionResult{}, err
	}
	sub := storage.Submission{
		ActivityID:   activityID,
		ActivityUUID: uuid.NewString(),
		TemplateID:   strings.TrimSpace(templateID),
		PaperID:      paperID,
		CreatorID:    creatorID,
		Funding:      funding,
		Now:          now,
	}
	if paperID == "" {
		newPaperID, err := id.NewID()
		if err != nil {
			return storage.SubmissionResult{}, err
		}
		sub.NewPaper = &storage.Paper{
			ID:           newPaperID,
			ExternalUUID: uuid.NewString(),
			Title:        title,
			CreatorID:    creatorID,
			CreatedAt:    now,
		}
	}

	result, err := s.store.CreateSubmission(ctx, sub, s.cfg.DuplicateWindow)
	if err != nil {
		return storage.SubmissionResult{}, err
	}
	s.notify(ctx, Event{
		Type:       storage.EventActivitySubmitted,
		ActivityID: result.Activity.ID,
		ActorID:    &creatorID,
		Payload:    map[string]any{"paper_id": result.Paper.ID, "funding": funding},
	})
	return result, nil
}

// GetActivity loads an activity by id or external UUID.
func (s *Service) GetActivity(ctx context.Context, ref string) (activity.Activity, error) {
	return s.resolveActivity(ctx, ref)
}

// GetPaper loads a paper row.
func (s *Service) GetPaper(ctx context.Context, paperID string) (storage.Paper, error) {
	return s.store.GetPaper(ctx, paperID)
}

// JoinTeam adds a reviewer to the activity's team with a fresh commitment
// deadline, then reevaluates progression.
func (s *Service) JoinTeam(ctx context.Context, activityRef string, userID int64) (team.Membership, error) {
	act, err := s.resolveActivity(ctx, activityRef)
	if err != nil {
		return team.Membership{}, err
	}
	tpl, err := s.store.GetTemplate(ctx, act.TemplateID)
	if err != nil {
		return team.Membership{}, err
	}
	m, err := s.store.JoinTeam(ctx, act.ID, userID, tpl.Parameters.ReviewerCount, s.cfg.CommitmentWindow, s.now())
	if err != nil {
		return team.Membership{}, err
	}
	s.kickProgress(ctx, act.ID, &userID)
	return m, nil
}

// LockIn commits a joined reviewer, then reevaluates progression since a
// lock-in can complete the team.
func (s *Service) LockIn(ctx context.Context, activityRef string, userID int64) (team.Membership, error) {
	act, err := s.resolveActivity(ctx, activityRef)
	if err != nil {
		return team.Membership{}, err
	}
	m, err := s.store.LockInMember(ctx, act.ID, userID, s.now())
	if err != nil {
		return team.Membership{}, err
	}
	s.kickProgress(ctx, act.ID, &userID)
	return m, nil
}

// RemoveMember removes an active reviewer for cause and reevaluates
// progression on the activity.
func (s *Service) RemoveMember(ctx context.Context, activityRef string, userID int64, reason string) (team.Membership, error) {
	act, err := s.resolveActivity(ctx, activityRef)
	if err != nil {
		return team.Membership{}, err
	}
	m, err := s.store.RemoveMember(ctx, act.ID, userID, reason, s.now())
	if err != nil {
		return team.Membership{}, err
	}
	s.notify(ctx, Event{
		Type:       storage.EventReviewerRemoved,
		ActivityID: act.ID,
		ActorID:    &userID,
		Payload:    map[string]any{"reason": reason},
	})
	s.kickProgress(ctx, act.ID, nil)
	return m, nil
}

// ListTeam returns the activity's memberships, including removed rows.
func (s *Service) ListTeam(ctx context.Context, activityRef string) ([]team.Membership, error) {
	act, err := s.resolveActivity(ctx, activityRef)
	if err != nil {
		return nil, err
	}
	return s.store.ListTeam(ctx, act.ID)
}

// GiveAward disburses one award from the activity's escrow to a reviewer,
// then reevaluates progression since an empty escrow can close the award
// stage.
func (s *Service) GiveAward(ctx context.Context, activityRef string, giverID, receiverID int64, awardTypeKey string) (escrow.Award, error) {
	act, err := s.resolveActivity(ctx, activityRef)
	if err != nil {
		return escrow.Award{}, err
	}
	awardID, err := id.NewID()
	if err != nil {
		return escrow.Award{}, err
	}
	award, err := s.store.DisburseAward(ctx, storage.Disbursement{
		AwardID:      awardID,
		ActivityID:   act.ID,
		GiverID:      giverID,
		ReceiverID:   receiverID,
		AwardTypeKey: strings.TrimSpace(awardTypeKey),
		Window:       s.cfg.DuplicateWindow,
		Now:          s.now(),
	})
	if err != nil {
		return escrow.Award{}, err
	}
	s.notify(ctx, Event{
		Type:       storage.EventAwardGiven,
		ActivityID: act.ID,
		ActorID:    &giverID,
		Payload:    map[string]any{"receiver_id": receiverID, "award_type": award.AwardType, "points": award.Points},
	})
	s.kickProgress(ctx, act.ID, &giverID)
	return award, nil
}

// ListAwards returns the awards disbursed on an activity.
func (s *Service) ListAwards(ctx context.Context, activityRef string) ([]escrow.Award, error) {
	act, err := s.resolveActivity(ctx, activityRef)
	if err != nil {
		return nil, err
	}
	return s.store.ListAwards(ctx, act.ID)
}

// ToggleFinalization flips a reviewer's agreement with the current
// assessment content. When the toggle completes the quorum the
// finalization notification fires and progression is reevaluated.
func (s *Service) ToggleFinalization(ctx context.Context, activityRef string, reviewerID int64, finalized bool) (storage.FinalizationResult, error) {
	act, err := s.resolveActivity(ctx, activityRef)
	if err != nil {
		return storage.FinalizationResult{}, err
	}
	contentHash := ""
	snap, err := s.store.GetSnapshot(ctx, act.ID)
	if err == nil {
		contentHash = snap.ContentHash
	} else if !apperrors.IsCode(err, apperrors.CodeNotFound) {
		return storage.FinalizationResult{}, err
	}

	result, err := s.store.ToggleFinalization(ctx, act.ID, reviewerID, finalized, contentHash, s.now())
	if err != nil {
		return storage.FinalizationResult{}, err
	}
	if result.AllFinalized {
		s.notify(ctx, Event{
			Type:       storage.EventAssessmentToggled,
			ActivityID: act.ID,
			ActorID:    &reviewerID,
			Payload:    map[string]any{"finalized_count": result.FinalizedCount},
		})
	}
	s.kickProgress(ctx, act.ID, &reviewerID)
	return result, nil
}

// ListFinalizations returns the agreement rows for an activity.
func (s *Service) ListFinalizations(ctx context.Context, activityRef string) ([]finalization.Status, error) {
	act, err := s.resolveActivity(ctx, activityRef)
	if err != nil {
		return nil, err
	}
	return s.store.ListFinalizations(ctx, act.ID)
}

// ApplySnapshot ingests the latest pad content for an activity. A changed
// hash invalidates every standing agreement before it can be trusted.
func (s *Service) ApplySnapshot(ctx context.Context, activityRef, content, contentHash string, capturedAt time.Time) (storage.SnapshotResult, error) {
	act, err := s.resolveActivity(ctx, activityRef)
	if err != nil {
		return storage.SnapshotResult{}, err
	}
	if err := act.CheckMutable(); err != nil {
		return storage.SnapshotResult{}, err
	}
	if strings.TrimSpace(contentHash) == "" {
		contentHash = HashContent(content)
	}
	now := s.now()
	if capturedAt.IsZero() {
		capturedAt = now
	}
	return s.store.ApplySnapshot(ctx, storage.Snapshot{
		ActivityID:  act.ID,
		Content:     content,
		ContentHash: contentHash,
		CapturedAt:  capturedAt.UTC(),
		UpdatedAt:   now,
	})
}

// GetSnapshot returns the latest stored pad snapshot for an activity.
func (s *Service) GetSnapshot(ctx context.Context, activityRef string) (storage.Snapshot, error) {
	act, err := s.resolveActivity(ctx, activityRef)
	if err != nil {
		return storage.Snapshot{}, err
	}
	return s.store.GetSnapshot(ctx, act.ID)
}

// HashContent is the canonical content hash for pad snapshots.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// GetWallet returns an owner's wallet, zero-balance when none exists.
func (s *Service) GetWallet(ctx context.Context, ownerID int64) (ledger.Wallet, error) {
	return s.store.GetWallet(ctx, ownerID)
}

// ListEntries pages an owner's ledger entries newest-first.
func (s *Service) ListEntries(ctx context.Context, req storage.ListEntriesRequest) (storage.ListEntriesResult, error) {
	return s.store.ListEntries(ctx, req)
}

// GrantTokens credits an account from the administrative supply. Used by
// seeding and operator tooling rather than the public API.
func (s *Service) GrantTokens(ctx context.Context, ownerID, amount int64, description string) (ledger.Entry, error) {
	entry, err := ledger.NewEntry(ledger.Spec{
		OwnerID:     ownerID,
		Amount:      amount,
		Kind:        ledger.KindCredit,
		Origin:      ledger.OriginAdmin,
		Description: description,
	}, s.now())
	if err != nil {
		return ledger.Entry{}, err
	}
	result, err := s.store.PostEntry(ctx, entry, s.cfg.DuplicateWindow)
	if err != nil {
		return ledger.Entry{}, err
	}
	return result.Entry, nil
}

// ListTimeline pages an activity's audit events.
func (s *Service) ListTimeline(ctx context.Context, activityRef string, req storage.ListTimelineRequest) (storage.ListTimelineResult, error) {
	act, err := s.resolveActivity(ctx, activityRef)
	if err != nil {
		return storage.ListTimelineResult{}, err
	}
	req.ActivityID = act.ID
	return s.store.ListTimeline(ctx, req)
}

// PutTemplate validates a template against its family's predicate
// registry and stores it. A missing id is assigned.
func (s *Service) PutTemplate(ctx context.Context, tpl workflow.Template) (workflow.Template, error) {
	if strings.TrimSpace(tpl.ID) == "" {
		newID, err := id.NewID()
		if err != nil {
			return workflow.Template{}, err
		}
		tpl.ID = newID
	}
	c, err := s.capability(tpl.ActivityType)
	if err != nil {
		return workflow.Template{}, err
	}
	if err := tpl.Validate(c.Registry().Known); err != nil {
		return workflow.Template{}, err
	}
	if err := s.store.PutTemplate(ctx, tpl); err != nil {
		return workflow.Template{}, err
	}
	return tpl, nil
}

// GetTemplate loads a template by id.
func (s *Service) GetTemplate(ctx context.Context, templateID string) (workflow.Template, error) {
	return s.store.GetTemplate(ctx, templateID)
}

// ListTemplates lists templates, optionally restricted to one family.
func (s *Service) ListTemplates(ctx context.Context, activityType workflow.ActivityType) ([]workflow.Template, error) {
	return s.store.ListTemplates(ctx, activityType)
}

// PutAwardType stores one award-type catalog row.
func (s *Service) PutAwardType(ctx context.Context, at escrow.AwardType) error {
	return s.store.PutAwardType(ctx, at)
}

// ListAwardTypes returns the award-type catalog.
func (s *Service) ListAwardTypes(ctx context.Context) ([]escrow.AwardType, error) {
	return s.store.ListAwardTypes(ctx)
}

// SetModeration updates an activity's moderation state. Suspension blocks
// every mutating operation until lifted.
func (s *Service) SetModeration(ctx context.Context, activityRef string, state activity.ModerationState, actorID int64) error {
	act, err := s.resolveActivity(ctx, activityRef)
	if err != nil {
		return err
	}
	return s.store.SetModeration(ctx, act.ID, state, actorID, s.now())
}
