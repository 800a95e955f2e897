package domain

import (
	"context"
	"fmt"
	"strings"
	"testing"
)

type fakeReader struct {
	wallet      WalletResult
	walletErr   error
	walletOwner int64

	activity    ActivityResult
	activityErr error
	activityRef string

	team    ListTeamResult
	teamErr error
	teamRef string

	timeline      ListTimelineResult
	timelineErr   error
	timelineRef   string
	timelineQuery TimelineQuery
}

func (f *fakeReader) Wallet(_ context.Context, ownerID int64) (WalletResult, error) {
	f.walletOwner = ownerID
	return f.wallet, f.walletErr
}

func (f *fakeReader) Activity(_ context.Context, ref string) (ActivityResult, error) {
	f.activityRef = ref
	return f.activity, f.activityErr
}

func (f *fakeReader) Team(_ context.Context, ref string) (ListTeamResult, error) {
	f.teamRef = ref
	return f.team, f.teamErr
}

func (f *fakeReader) Timeline(_ context.Context, ref string, query TimelineQuery) (ListTimelineResult, error) {
	f.timelineRef = ref
	f.timelineQuery = query
	return f.timeline, f.timelineErr
}

func TestGetWalletHandler(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		reader := &fakeReader{
			wallet: WalletResult{OwnerID: 7, Balance: 42, LastUpdated: "2026-03-01T10:00:00Z"},
		}
		handler := GetWalletHandler(reader)
		_, result, err := handler(context.Background(), nil, GetWalletInput{OwnerID: 7})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if reader.walletOwner != 7 {
			t.Errorf("expected owner 7, got %d", reader.walletOwner)
		}
		if result.Balance != 42 {
			t.Errorf("expected balance 42, got %d", result.Balance)
		}
	})

	t.Run("rejects non-positive owner", func(t *testing.T) {
		handler := GetWalletHandler(&fakeReader{})
		_, _, err := handler(context.Background(), nil, GetWalletInput{OwnerID: 0})
		if err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("API error", func(t *testing.T) {
		reader := &fakeReader{walletErr: fmt.Errorf("connection refused")}
		handler := GetWalletHandler(reader)
		_, _, err := handler(context.Background(), nil, GetWalletInput{OwnerID: 7})
		if err == nil {
			t.Fatal("expected error")
		}
		if !strings.Contains(err.Error(), "connection refused") {
			t.Errorf("expected wrapped cause, got %v", err)
		}
	})
}

func TestGetActivityHandler(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		reader := &fakeReader{
			activity: ActivityResult{ID: "act-1", CurrentStage: "review", EscrowRemaining: 30},
		}
		handler := GetActivityHandler(reader)
		_, result, err := handler(context.Background(), nil, GetActivityInput{ActivityID: "act-1"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if reader.activityRef != "act-1" {
			t.Errorf("expected ref act-1, got %q", reader.activityRef)
		}
		if result.CurrentStage != "review" {
			t.Errorf("expected stage review, got %q", result.CurrentStage)
		}
	})

	t.Run("rejects blank id", func(t *testing.T) {
		handler := GetActivityHandler(&fakeReader{})
		_, _, err := handler(context.Background(), nil, GetActivityInput{ActivityID: "  "})
		if err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestListTeamHandler(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		reader := &fakeReader{
			team: ListTeamResult{Members: []TeamMember{
				{UserID: 2, Status: "locked_in"},
				{UserID: 3, Status: "joined"},
			}},
		}
		handler := ListTeamHandler(reader)
		_, result, err := handler(context.Background(), nil, ListTeamInput{ActivityID: "act-1"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.Members) != 2 {
			t.Fatalf("expected 2 members, got %d", len(result.Members))
		}
		if result.Members[0].Status != "locked_in" {
			t.Errorf("expected first member locked_in, got %q", result.Members[0].Status)
		}
	})

	t.Run("rejects blank id", func(t *testing.T) {
		handler := ListTeamHandler(&fakeReader{})
		_, _, err := handler(context.Background(), nil, ListTeamInput{})
		if err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestListTimelineHandler(t *testing.T) {
	t.Run("forwards query", func(t *testing.T) {
		reader := &fakeReader{
			timeline: ListTimelineResult{
				Events:        []TimelineEvent{{Seq: 3, EventType: "stage_advanced"}},
				NextPageToken: "tok",
			},
		}
		handler := ListTimelineHandler(reader)
		_, result, err := handler(context.Background(), nil, ListTimelineInput{
			ActivityID: "act-1",
			Filter:     `event_type = "stage_advanced"`,
			PageSize:   10,
			Order:      "desc",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if reader.timelineQuery.PageSize != 10 {
			t.Errorf("expected page size 10, got %d", reader.timelineQuery.PageSize)
		}
		if reader.timelineQuery.Order != "desc" {
			t.Errorf("expected order desc, got %q", reader.timelineQuery.Order)
		}
		if result.NextPageToken != "tok" {
			t.Errorf("expected next page token tok, got %q", result.NextPageToken)
		}
		if result.Events[0].EventType != "stage_advanced" {
			t.Errorf("expected event stage_advanced, got %q", result.Events[0].EventType)
		}
	})

	t.Run("rejects negative page size", func(t *testing.T) {
		handler := ListTimelineHandler(&fakeReader{})
		_, _, err := handler(context.Background(), nil, ListTimelineInput{ActivityID: "act-1", PageSize: -1})
		if err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("rejects blank id", func(t *testing.T) {
		handler := ListTimelineHandler(&fakeReader{})
		_, _, err := handler(context.Background(), nil, ListTimelineInput{})
		if err == nil {
			t.Fatal("expected error")
		}
	})
}
