package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rodrigolearns/paperstacks/internal/services/review/domain/workflow"
	"github.com/rodrigolearns/paperstacks/internal/services/review/storage"
)

func TestPutGetTemplateRoundTrip(t *testing.T) {
	store := openTempStore(t)
	want := putTestTemplate(t, store, "tpl-rt")

	got, err := store.GetTemplate(context.Background(), "tpl-rt")
	if err != nil {
		t.Fatalf("get template: %v", err)
	}
	if got.ID != want.ID {
		t.Fatalf("template id = %q, want %q", got.ID, want.ID)
	}
	if got.ActivityType != workflow.TypePeerReview {
		t.Fatalf("activity type = %q, want %q", got.ActivityType, workflow.TypePeerReview)
	}
	if got.Parameters.ReviewerCount != 3 || got.Parameters.NoShowPenalty != 15 {
		t.Fatalf("parameters = %+v, want reviewer_count 3 penalty 15", got.Parameters)
	}
	if len(got.Stages) != 3 {
		t.Fatalf("stages len = %d, want 3", len(got.Stages))
	}
	initial, ok := got.InitialStage()
	if !ok || initial.Key != "submission" {
		t.Fatalf("initial stage = %+v ok=%v, want submission", initial, ok)
	}
	review, ok := got.Stage("review")
	if !ok || review.DeadlineDays == nil || *review.DeadlineDays != 7 {
		t.Fatalf("review stage = %+v ok=%v, want deadline 7", review, ok)
	}
	if len(got.Transitions) != 2 {
		t.Fatalf("transitions len = %d, want 2", len(got.Transitions))
	}
	auto, ok := got.TransitionByID("to-review")
	if !ok || !auto.Automatic {
		t.Fatalf("to-review = %+v ok=%v, want automatic", auto, ok)
	}
	if auto.Condition == nil || auto.Condition.String() != "reviewers_locked_in[count=3]" {
		t.Fatalf("condition = %v, want reviewers_locked_in[count=3]", auto.Condition)
	}
	manual, ok := got.TransitionByID("to-published")
	if !ok || manual.Automatic || manual.Condition != nil {
		t.Fatalf("to-published = %+v ok=%v, want manual without condition", manual, ok)
	}
}

func TestGetTemplateNotFound(t *testing.T) {
	store := openTempStore(t)

	_, err := store.GetTemplate(context.Background(), "missing")
	if !errors.Is(err, storage.ErrTemplateNotFound) {
		t.Fatalf("error = %v, want ErrTemplateNotFound", err)
	}
}

func TestPutTemplateReplacesUnreferenced(t *testing.T) {
	store := openTempStore(t)
	tpl := putTestTemplate(t, store, "tpl-edit")

	tpl.Name = "revised peer review"
	tpl.Stages = append(tpl.Stages, workflow.Stage{Key: "archived", Position: 4})
	if err := store.PutTemplate(context.Background(), tpl); err != nil {
		t.Fatalf("replace template: %v", err)
	}

	got, err := store.GetTemplate(context.Background(), "tpl-edit")
	if err != nil {
		t.Fatalf("get template: %v", err)
	}
	if got.Name != "revised peer review" {
		t.Fatalf("name = %q, want revised", got.Name)
	}
	if len(got.Stages) != 4 {
		t.Fatalf("stages len = %d, want 4", len(got.Stages))
	}
}

func TestPutTemplateRejectsReferenced(t *testing.T) {
	store := openTempStore(t)
	now := time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC)
	seedActivity(t, store, "act-tref", 101, 100, now)

	tpl := testTemplate("tpl-act-tref")
	tpl.Name = "tampered"
	err := store.PutTemplate(context.Background(), tpl)
	if !errors.Is(err, storage.ErrTemplateInUse) {
		t.Fatalf("error = %v, want ErrTemplateInUse", err)
	}

	got, err := store.GetTemplate(context.Background(), "tpl-act-tref")
	if err != nil {
		t.Fatalf("get template: %v", err)
	}
	if got.Name == "tampered" {
		t.Fatal("referenced template must stay immutable")
	}
}

func TestListTemplatesByType(t *testing.T) {
	store := openTempStore(t)
	putTestTemplate(t, store, "tpl-a")

	club := testTemplate("tpl-club")
	club.ActivityType = workflow.TypeJournalClub
	club.Name = "journal club"
	if err := store.PutTemplate(context.Background(), club); err != nil {
		t.Fatalf("put club template: %v", err)
	}

	all, err := store.ListTemplates(context.Background(), "")
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("all len = %d, want 2", len(all))
	}

	clubs, err := store.ListTemplates(context.Background(), workflow.TypeJournalClub)
	if err != nil {
		t.Fatalf("list clubs: %v", err)
	}
	if len(clubs) != 1 || clubs[0].ID != "tpl-club" {
		t.Fatalf("clubs = %+v, want tpl-club only", clubs)
	}
}
