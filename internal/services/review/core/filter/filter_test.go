package filter

import (
	"reflect"
	"testing"
	"time"
)

func TestParseTimelineFilter_EventTypeEquals(t *testing.T) {
	cond, err := ParseTimelineFilter(`event_type = "reviewer.joined"`)
	if err != nil {
		t.Fatalf("parse filter: %v", err)
	}
	if cond.Clause != "event_type = ?" {
		t.Errorf("expected 'event_type = ?', got %q", cond.Clause)
	}
	if len(cond.Params) != 1 {
		t.Fatalf("expected 1 param, got %d", len(cond.Params))
	}
	if cond.Params[0] != "reviewer.joined" {
		t.Errorf("expected 'reviewer.joined', got %v", cond.Params[0])
	}
}

func TestParseTimelineFilter_Empty(t *testing.T) {
	cond, err := ParseTimelineFilter("  ")
	if err != nil {
		t.Fatalf("parse filter: %v", err)
	}
	if cond.Clause != "" || cond.Params != nil {
		t.Fatalf("expected empty condition, got %+v", cond)
	}
}

func TestParseTimelineFilter_AndOr(t *testing.T) {
	cond, err := ParseTimelineFilter(`event_type = "stage.transitioned" AND to_stage = "review"`)
	if err != nil {
		t.Fatalf("parse filter: %v", err)
	}
	if cond.Clause != "(event_type = ? AND to_stage = ?)" {
		t.Fatalf("Clause = %q", cond.Clause)
	}
	if !reflect.DeepEqual(cond.Params, []any{"stage.transitioned", "review"}) {
		t.Fatalf("Params = %v", cond.Params)
	}

	cond, err = ParseTimelineFilter(`event_type = "reviewer.joined" OR event_type = "reviewer.removed"`)
	if err != nil {
		t.Fatalf("parse filter: %v", err)
	}
	if cond.Clause != "(event_type = ? OR event_type = ?)" {
		t.Fatalf("Clause = %q", cond.Clause)
	}
}

func TestParseTimelineFilter_Not(t *testing.T) {
	cond, err := ParseTimelineFilter(`NOT event_type = "moderation.changed"`)
	if err != nil {
		t.Fatalf("parse filter: %v", err)
	}
	if cond.Clause != "(NOT event_type = ?)" {
		t.Fatalf("Clause = %q", cond.Clause)
	}
	if !reflect.DeepEqual(cond.Params, []any{"moderation.changed"}) {
		t.Fatalf("Params = %v", cond.Params)
	}
}

func TestParseTimelineFilter_TimestampBecomesMillis(t *testing.T) {
	cond, err := ParseTimelineFilter(`created_at > timestamp("2026-01-01T00:00:00Z")`)
	if err != nil {
		t.Fatalf("parse filter: %v", err)
	}
	if cond.Clause != "created_at > ?" {
		t.Fatalf("Clause = %q", cond.Clause)
	}
	want := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	if len(cond.Params) != 1 || cond.Params[0] != want {
		t.Fatalf("Params = %v, want [%d]", cond.Params, want)
	}
}

func TestParseTimelineFilter_UnknownField(t *testing.T) {
	if _, err := ParseTimelineFilter(`campaign = "x"`); err == nil {
		t.Fatal("expected error for undeclared field")
	}
}

func TestParseEntryFilter_KindAndAmount(t *testing.T) {
	cond, err := ParseEntryFilter(`kind = "debit" AND amount < 0`)
	if err != nil {
		t.Fatalf("parse filter: %v", err)
	}
	if cond.Clause != "(kind = ? AND amount < ?)" {
		t.Fatalf("Clause = %q", cond.Clause)
	}
	if len(cond.Params) != 2 {
		t.Fatalf("Params = %v", cond.Params)
	}
	if cond.Params[0] != "debit" {
		t.Fatalf("kind param = %v", cond.Params[0])
	}
	if cond.Params[1] != int64(0) {
		t.Fatalf("amount param = %v (%T)", cond.Params[1], cond.Params[1])
	}
}

func TestParseEntryFilter_RelatedActivity(t *testing.T) {
	cond, err := ParseEntryFilter(`related_activity_id = "act-1" AND origin = "activity"`)
	if err != nil {
		t.Fatalf("parse filter: %v", err)
	}
	if cond.Clause != "(related_activity_id = ? AND origin = ?)" {
		t.Fatalf("Clause = %q", cond.Clause)
	}
}

func TestParseEntryFilter_TimelineFieldRejected(t *testing.T) {
	if _, err := ParseEntryFilter(`event_type = "award.given"`); err == nil {
		t.Fatal("expected error: timeline fields are not entry fields")
	}
}
