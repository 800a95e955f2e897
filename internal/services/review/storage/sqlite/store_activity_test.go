package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "github.com/rodrigolearns/paperstacks/internal/platform/errors"
	"github.com/rodrigolearns/paperstacks/internal/services/review/domain/activity"
	"github.com/rodrigolearns/paperstacks/internal/services/review/domain/workflow"
	"github.com/rodrigolearns/paperstacks/internal/services/review/storage"
)

func TestCreateSubmission(t *testing.T) {
	store := openTempStore(t)
	now := time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)

	act := seedActivity(t, store, "act-1", 101, 100, now)

	if act.CurrentStage != "submission" {
		t.Fatalf("current stage = %q, want submission", act.CurrentStage)
	}
	if act.CurrentRound != 1 {
		t.Fatalf("current round = %d, want 1", act.CurrentRound)
	}
	if act.Escrow.Funding != 100 || act.Escrow.Remaining != 100 {
		t.Fatalf("escrow = %+v, want funding 100 remaining 100", act.Escrow)
	}
	if act.Moderation != activity.ModerationClear {
		t.Fatalf("moderation = %q, want clear", act.Moderation)
	}
	if act.StageDeadline != nil {
		t.Fatalf("submission stage declares no deadline, got %v", act.StageDeadline)
	}

	// Creator paid the funding out of the seeded grant.
	wallet, err := store.GetWallet(context.Background(), 101)
	if err != nil {
		t.Fatalf("get wallet: %v", err)
	}
	if wallet.Balance != 400 {
		t.Fatalf("creator balance = %d, want 400", wallet.Balance)
	}

	paper, err := store.GetPaper(context.Background(), "paper-act-1")
	if err != nil {
		t.Fatalf("get paper: %v", err)
	}
	if paper.CreatorID != 101 {
		t.Fatalf("paper creator = %d, want 101", paper.CreatorID)
	}

	timeline, err := store.ListTimeline(context.Background(), storage.ListTimelineRequest{ActivityID: "act-1", PageSize: 10})
	if err != nil {
		t.Fatalf("list timeline: %v", err)
	}
	if len(timeline.Events) != 1 {
		t.Fatalf("timeline len = %d, want 1", len(timeline.Events))
	}
	if timeline.Events[0].EventType != storage.EventActivitySubmitted {
		t.Fatalf("event type = %q, want %q", timeline.Events[0].EventType, storage.EventActivitySubmitted)
	}
	if timeline.Events[0].Seq != 1 {
		t.Fatalf("event seq = %d, want 1", timeline.Events[0].Seq)
	}
}

func TestCreateSubmissionInsufficientFundsAbortsAll(t *testing.T) {
	store := openTempStore(t)
	now := time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)

	putTestTemplate(t, store, "tpl-poor")
	grantTokens(t, store, 102, 50, now)

	_, err := store.CreateSubmission(context.Background(), storage.Submission{
		ActivityID:   "act-poor",
		ActivityUUID: "uuid-act-poor",
		TemplateID:   "tpl-poor",
		NewPaper: &storage.Paper{
			ID:           "paper-poor",
			ExternalUUID: "uuid-paper-poor",
			Title:        "Underfunded",
			CreatorID:    102,
			CreatedAt:    now,
		},
		CreatorID: 102,
		Funding:   60,
		Now:       now,
	}, time.Minute)
	if !apperrors.IsCode(err, apperrors.CodeLedgerInsufficientFunds) {
		t.Fatalf("error = %v, want code %s", err, apperrors.CodeLedgerInsufficientFunds)
	}

	if _, err := store.GetActivity(context.Background(), "act-poor"); !errors.Is(err, storage.ErrActivityNotFound) {
		t.Fatalf("activity error = %v, want ErrActivityNotFound", err)
	}
	if _, err := store.GetPaper(context.Background(), "paper-poor"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("paper error = %v, want ErrNotFound", err)
	}
	wallet, err := store.GetWallet(context.Background(), 102)
	if err != nil {
		t.Fatalf("get wallet: %v", err)
	}
	if wallet.Balance != 50 {
		t.Fatalf("balance = %d, want untouched 50", wallet.Balance)
	}
}

func TestCreateSubmissionMissingTemplate(t *testing.T) {
	store := openTempStore(t)
	now := time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)
	grantTokens(t, store, 103, 200, now)

	_, err := store.CreateSubmission(context.Background(), storage.Submission{
		ActivityID:   "act-nt",
		ActivityUUID: "uuid-act-nt",
		TemplateID:   "tpl-missing",
		NewPaper: &storage.Paper{
			ID:           "paper-nt",
			ExternalUUID: "uuid-paper-nt",
			Title:        "No Template",
			CreatorID:    103,
			CreatedAt:    now,
		},
		CreatorID: 103,
		Funding:   60,
		Now:       now,
	}, time.Minute)
	if !errors.Is(err, storage.ErrTemplateNotFound) {
		t.Fatalf("error = %v, want ErrTemplateNotFound", err)
	}
}

func TestCreateSubmissionInvalidFunding(t *testing.T) {
	store := openTempStore(t)
	now := time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)
	putTestTemplate(t, store, "tpl-zero")
	grantTokens(t, store, 104, 200, now)

	_, err := store.CreateSubmission(context.Background(), storage.Submission{
		ActivityID:   "act-zero",
		ActivityUUID: "uuid-act-zero",
		TemplateID:   "tpl-zero",
		NewPaper: &storage.Paper{
			ID:           "paper-zero",
			ExternalUUID: "uuid-paper-zero",
			Title:        "Zero Funding",
			CreatorID:    104,
			CreatedAt:    now,
		},
		CreatorID: 104,
		Funding:   0,
		Now:       now,
	}, time.Minute)
	if !apperrors.IsCode(err, apperrors.CodeActivityFundingInvalid) {
		t.Fatalf("error = %v, want code %s", err, apperrors.CodeActivityFundingInvalid)
	}
}

func TestGetActivityByUUID(t *testing.T) {
	store := openTempStore(t)
	now := time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)
	seedActivity(t, store, "act-uuid", 105, 80, now)

	act, err := store.GetActivityByUUID(context.Background(), "uuid-act-uuid")
	if err != nil {
		t.Fatalf("get by uuid: %v", err)
	}
	if act.ID != "act-uuid" {
		t.Fatalf("activity id = %q, want act-uuid", act.ID)
	}

	if _, err := store.GetActivityByUUID(context.Background(), "uuid-none"); !errors.Is(err, storage.ErrActivityNotFound) {
		t.Fatalf("error = %v, want ErrActivityNotFound", err)
	}
}

func TestApplyStageChangeGuarded(t *testing.T) {
	store := openTempStore(t)
	now := time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)
	seedActivity(t, store, "act-stage", 106, 90, now)

	deadline := now.Add(7 * 24 * time.Hour)
	change := storage.StageChange{
		ActivityID: "act-stage",
		FromStage:  "submission",
		ToStage:    "review",
		EnteredAt:  now.Add(time.Hour),
		Deadline:   &deadline,
	}
	if _, err := store.ApplyStageChange(context.Background(), change); err != nil {
		t.Fatalf("apply stage change: %v", err)
	}

	act, err := store.GetActivity(context.Background(), "act-stage")
	if err != nil {
		t.Fatalf("get activity: %v", err)
	}
	if act.CurrentStage != "review" {
		t.Fatalf("current stage = %q, want review", act.CurrentStage)
	}
	if act.StageDeadline == nil || !act.StageDeadline.Equal(deadline) {
		t.Fatalf("stage deadline = %v, want %v", act.StageDeadline, deadline)
	}

	// Replaying the same change now sees a stale from-stage.
	if _, err := store.ApplyStageChange(context.Background(), change); !errors.Is(err, storage.ErrStageConflict) {
		t.Fatalf("error = %v, want ErrStageConflict", err)
	}

	missing := change
	missing.ActivityID = "act-none"
	if _, err := store.ApplyStageChange(context.Background(), missing); !errors.Is(err, storage.ErrActivityNotFound) {
		t.Fatalf("error = %v, want ErrActivityNotFound", err)
	}

	timeline, err := store.ListTimeline(context.Background(), storage.ListTimelineRequest{ActivityID: "act-stage", PageSize: 10})
	if err != nil {
		t.Fatalf("list timeline: %v", err)
	}
	if len(timeline.Events) != 2 {
		t.Fatalf("timeline len = %d, want 2", len(timeline.Events))
	}
	last := timeline.Events[1]
	if last.EventType != storage.EventStageTransitioned || last.FromStage != "submission" || last.ToStage != "review" {
		t.Fatalf("last event = %+v, want stage.transitioned submission->review", last)
	}
}

func TestIncrementRoundCapped(t *testing.T) {
	store := openTempStore(t)
	now := time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)
	seedActivity(t, store, "act-round", 107, 90, now)

	round, bumped, err := store.IncrementRound(context.Background(), "act-round", 2, now)
	if err != nil {
		t.Fatalf("increment round: %v", err)
	}
	if !bumped || round != 2 {
		t.Fatalf("round = %d bumped = %v, want 2 true", round, bumped)
	}

	round, bumped, err = store.IncrementRound(context.Background(), "act-round", 2, now)
	if err != nil {
		t.Fatalf("increment round at cap: %v", err)
	}
	if bumped || round != 2 {
		t.Fatalf("round = %d bumped = %v, want 2 false at cap", round, bumped)
	}

	act, err := store.GetActivity(context.Background(), "act-round")
	if err != nil {
		t.Fatalf("get activity: %v", err)
	}
	if act.CurrentRound != 2 {
		t.Fatalf("current round = %d, want 2", act.CurrentRound)
	}
}

func TestReleaseLeftoverEscrow(t *testing.T) {
	store := openTempStore(t)
	now := time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)
	seedActivity(t, store, "act-rel", 108, 100, now)

	release, err := store.ReleaseLeftoverEscrow(context.Background(), "act-rel", 1, time.Minute, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("release escrow: %v", err)
	}
	if !release.Released || release.Leftover != 100 {
		t.Fatalf("release = %+v, want released leftover 100", release)
	}

	admin, err := store.GetWallet(context.Background(), 1)
	if err != nil {
		t.Fatalf("get admin wallet: %v", err)
	}
	if admin.Balance != 100 {
		t.Fatalf("admin balance = %d, want 100", admin.Balance)
	}

	act, err := store.GetActivity(context.Background(), "act-rel")
	if err != nil {
		t.Fatalf("get activity: %v", err)
	}
	if act.Escrow.Remaining != 0 {
		t.Fatalf("escrow remaining = %d, want 0", act.Escrow.Remaining)
	}

	// A second release is a no-op and credits nothing.
	again, err := store.ReleaseLeftoverEscrow(context.Background(), "act-rel", 1, time.Minute, now.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("second release: %v", err)
	}
	if again.Released || again.Leftover != 0 {
		t.Fatalf("second release = %+v, want no-op", again)
	}
	admin, err = store.GetWallet(context.Background(), 1)
	if err != nil {
		t.Fatalf("get admin wallet: %v", err)
	}
	if admin.Balance != 100 {
		t.Fatalf("admin balance = %d, want still 100", admin.Balance)
	}
}

func TestSetModeration(t *testing.T) {
	store := openTempStore(t)
	now := time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)
	seedActivity(t, store, "act-mod", 109, 90, now)

	if err := store.SetModeration(context.Background(), "act-mod", activity.ModerationSuspended, 1, now.Add(time.Hour)); err != nil {
		t.Fatalf("set moderation: %v", err)
	}

	act, err := store.GetActivity(context.Background(), "act-mod")
	if err != nil {
		t.Fatalf("get activity: %v", err)
	}
	if act.Moderation != activity.ModerationSuspended {
		t.Fatalf("moderation = %q, want suspended", act.Moderation)
	}

	// Suspended activities reject team mutations.
	_, err = store.JoinTeam(context.Background(), "act-mod", 201, 3, 72*time.Hour, now.Add(2*time.Hour))
	if !apperrors.IsCode(err, apperrors.CodeActivitySuspended) {
		t.Fatalf("join error = %v, want code %s", err, apperrors.CodeActivitySuspended)
	}

	if err := store.SetModeration(context.Background(), "act-mod", "bogus", 1, now); err == nil {
		t.Fatal("expected error for unknown moderation state")
	}
	if err := store.SetModeration(context.Background(), "act-none", activity.ModerationFlagged, 1, now); !errors.Is(err, storage.ErrActivityNotFound) {
		t.Fatalf("error = %v, want ErrActivityNotFound", err)
	}
}

func TestCreateSubmissionTypeMismatch(t *testing.T) {
	store := openTempStore(t)
	now := time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)
	putTestTemplate(t, store, "tpl-mm")
	grantTokens(t, store, 110, 200, now)

	_, err := store.CreateSubmission(context.Background(), storage.Submission{
		ActivityID:   "act-mm",
		ActivityUUID: "uuid-act-mm",
		ActivityType: workflow.TypeJournalClub,
		TemplateID:   "tpl-mm",
		NewPaper: &storage.Paper{
			ID:           "paper-mm",
			ExternalUUID: "uuid-paper-mm",
			Title:        "Mismatch",
			CreatorID:    110,
			CreatedAt:    now,
		},
		CreatorID: 110,
		Funding:   50,
		Now:       now,
	}, time.Minute)
	if !apperrors.IsCode(err, apperrors.CodeInvalidArgument) {
		t.Fatalf("error = %v, want code %s", err, apperrors.CodeInvalidArgument)
	}
}

func TestListDeadlineDue(t *testing.T) {
	store := openTempStore(t)
	now := time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)
	seedActivity(t, store, "act-due1", 111, 90, now)
	seedActivity(t, store, "act-due2", 112, 90, now)
	seedActivity(t, store, "act-later", 113, 90, now)

	moveWithDeadline := func(id string, deadline time.Time) {
		t.Helper()
		_, err := store.ApplyStageChange(context.Background(), storage.StageChange{
			ActivityID: id,
			FromStage:  "submission",
			ToStage:    "review",
			EnteredAt:  now,
			Deadline:   &deadline,
		})
		if err != nil {
			t.Fatalf("move %s: %v", id, err)
		}
	}
	moveWithDeadline("act-due2", now.Add(time.Hour))
	moveWithDeadline("act-due1", now.Add(30*time.Minute))
	moveWithDeadline("act-later", now.Add(48*time.Hour))

	due, err := store.ListDeadlineDue(context.Background(), now.Add(2*time.Hour), 10)
	if err != nil {
		t.Fatalf("list deadline due: %v", err)
	}
	if len(due) != 2 {
		t.Fatalf("due len = %d, want 2", len(due))
	}
	// Oldest deadline first.
	if due[0].ID != "act-due1" || due[1].ID != "act-due2" {
		t.Fatalf("due order = %s, %s, want act-due1, act-due2", due[0].ID, due[1].ID)
	}

	// Suspension hides the activity from the sweep.
	if err := store.SetModeration(context.Background(), "act-due1", activity.ModerationSuspended, 1, now); err != nil {
		t.Fatalf("suspend: %v", err)
	}
	due, err = store.ListDeadlineDue(context.Background(), now.Add(2*time.Hour), 10)
	if err != nil {
		t.Fatalf("list after suspend: %v", err)
	}
	if len(due) != 1 || due[0].ID != "act-due2" {
		t.Fatalf("due after suspend = %+v, want only act-due2", due)
	}
}

func TestApplyStageChangeFoldsRoundAndRelease(t *testing.T) {
	store := openTempStore(t)
	now := time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)
	seedActivity(t, store, "act-fold", 108, 90, now)

	forward := storage.StageChange{
		ActivityID: "act-fold",
		FromStage:  "submission",
		ToStage:    "review",
		EnteredAt:  now.Add(time.Hour),
	}
	if _, err := store.ApplyStageChange(context.Background(), forward); err != nil {
		t.Fatalf("forward change: %v", err)
	}

	// A backward edge carries the round bump with it.
	back := storage.StageChange{
		ActivityID: "act-fold",
		FromStage:  "review",
		ToStage:    "submission",
		EnteredAt:  now.Add(2 * time.Hour),
		BumpRound:  true,
		RoundCap:   2,
	}
	result, err := store.ApplyStageChange(context.Background(), back)
	if err != nil {
		t.Fatalf("backward change: %v", err)
	}
	if !result.RoundBumped || result.Round != 2 {
		t.Fatalf("result = %+v, want round bumped to 2", result)
	}

	// At the cap the transition still applies but the round holds.
	forward.EnteredAt = now.Add(3 * time.Hour)
	if _, err := store.ApplyStageChange(context.Background(), forward); err != nil {
		t.Fatalf("second forward change: %v", err)
	}
	back.EnteredAt = now.Add(4 * time.Hour)
	result, err = store.ApplyStageChange(context.Background(), back)
	if err != nil {
		t.Fatalf("second backward change: %v", err)
	}
	if result.RoundBumped || result.Round != 2 {
		t.Fatalf("result = %+v, want round capped at 2", result)
	}

	// A terminal edge folds the escrow release into the same change.
	terminal := storage.StageChange{
		ActivityID:      "act-fold",
		FromStage:       "submission",
		ToStage:         "published",
		EnteredAt:       now.Add(5 * time.Hour),
		ReleaseEscrowTo: int64Ptr(1),
		Window:          time.Minute,
	}
	result, err = store.ApplyStageChange(context.Background(), terminal)
	if err != nil {
		t.Fatalf("terminal change: %v", err)
	}
	if !result.Escrow.Released || result.Escrow.Leftover != 90 {
		t.Fatalf("escrow = %+v, want released leftover 90", result.Escrow)
	}

	admin, err := store.GetWallet(context.Background(), 1)
	if err != nil {
		t.Fatalf("get admin wallet: %v", err)
	}
	if admin.Balance != 90 {
		t.Fatalf("admin balance = %d, want 90", admin.Balance)
	}

	timeline, err := store.ListTimeline(context.Background(), storage.ListTimelineRequest{ActivityID: "act-fold", PageSize: 20})
	if err != nil {
		t.Fatalf("list timeline: %v", err)
	}
	last := timeline.Events[len(timeline.Events)-1]
	if last.EventType != storage.EventEscrowReleased {
		t.Fatalf("last event = %s, want escrow release after the transition", last.EventType)
	}
}
