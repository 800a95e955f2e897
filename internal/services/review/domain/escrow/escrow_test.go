package escrow

import (
	"testing"
	"time"

	apperrors "github.com/rodrigolearns/paperstacks/internal/platform/errors"
)

var bestReview = AwardType{Key: "best_review", Label: "Best Review", AuthorPoints: 3, ReviewerPoints: 2}

func TestOpen(t *testing.T) {
	balance, err := Open(10)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if balance.Funding != 10 || balance.Remaining != 10 {
		t.Fatalf("balance = %+v, want funding 10 remaining 10", balance)
	}

	if _, err := Open(0); !apperrors.IsCode(err, apperrors.CodeActivityFundingInvalid) {
		t.Fatalf("expected ACTIVITY_FUNDING_INVALID for zero amount, got %v", err)
	}
	if _, err := Open(-5); !apperrors.IsCode(err, apperrors.CodeActivityFundingInvalid) {
		t.Fatalf("expected ACTIVITY_FUNDING_INVALID for negative amount, got %v", err)
	}
}

func TestBalanceCheck(t *testing.T) {
	tests := []struct {
		name    string
		balance Balance
		ok      bool
	}{
		{name: "full", balance: Balance{Funding: 10, Remaining: 10}, ok: true},
		{name: "partial", balance: Balance{Funding: 10, Remaining: 4}, ok: true},
		{name: "empty", balance: Balance{Funding: 10, Remaining: 0}, ok: true},
		{name: "negative", balance: Balance{Funding: 10, Remaining: -1}, ok: false},
		{name: "over funding", balance: Balance{Funding: 10, Remaining: 11}, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.balance.Check()
			if tt.ok && err != nil {
				t.Fatalf("Check: %v", err)
			}
			if !tt.ok {
				if !apperrors.IsCode(err, apperrors.CodeIntegrity) {
					t.Fatalf("expected INTEGRITY_VIOLATION, got %v", err)
				}
			}
		})
	}
}

func TestDeduct(t *testing.T) {
	balance := Balance{Funding: 10, Remaining: 3}

	got, err := balance.Deduct(2)
	if err != nil {
		t.Fatalf("Deduct: %v", err)
	}
	if got.Remaining != 1 {
		t.Fatalf("remaining = %d, want 1", got.Remaining)
	}
	if got.Funding != 10 {
		t.Fatalf("funding changed: %d", got.Funding)
	}

	if _, err := balance.Deduct(4); !apperrors.IsCode(err, apperrors.CodeEscrowExhausted) {
		t.Fatalf("expected ESCROW_EXHAUSTED, got %v", err)
	}
	if _, err := balance.Deduct(0); !apperrors.IsCode(err, apperrors.CodeInvalidArgument) {
		t.Fatalf("expected INVALID_ARGUMENT for zero deduction, got %v", err)
	}
}

func TestDeductExactRemaining(t *testing.T) {
	balance := Balance{Funding: 10, Remaining: 2}
	got, err := balance.Deduct(2)
	if err != nil {
		t.Fatalf("Deduct: %v", err)
	}
	if got.Remaining != 0 {
		t.Fatalf("remaining = %d, want 0", got.Remaining)
	}
}

func TestRelease(t *testing.T) {
	balance := Balance{Funding: 10, Remaining: 4}
	got, leftover := balance.Release()
	if leftover != 4 {
		t.Fatalf("leftover = %d, want 4", leftover)
	}
	if got.Remaining != 0 {
		t.Fatalf("remaining = %d, want 0", got.Remaining)
	}

	again, leftover := got.Release()
	if leftover != 0 || again.Remaining != 0 {
		t.Fatalf("second release should be a no-op, got leftover %d remaining %d", leftover, again.Remaining)
	}
}

func TestPointsFor(t *testing.T) {
	if got := bestReview.PointsFor(5, 5); got != 3 {
		t.Fatalf("author points = %d, want 3", got)
	}
	if got := bestReview.PointsFor(6, 5); got != 2 {
		t.Fatalf("reviewer points = %d, want 2", got)
	}
}

func TestDecideAward(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	facts := DisburseFacts{
		ActivityID: "act-1",
		CreatorID:  5,
		Round:      1,
		Escrow:     Balance{Funding: 10, Remaining: 10},
	}

	award, remaining, err := DecideAward("award-1", facts, bestReview, 6, 7, now)
	if err != nil {
		t.Fatalf("DecideAward: %v", err)
	}
	if award.Points != 2 {
		t.Fatalf("points = %d, want reviewer rate 2", award.Points)
	}
	if award.Round != 1 || award.GiverID != 6 || award.ReceiverID != 7 || award.AwardType != "best_review" {
		t.Fatalf("award = %+v", award)
	}
	if remaining.Remaining != 8 {
		t.Fatalf("escrow remaining = %d, want 8", remaining.Remaining)
	}
}

func TestDecideAwardAuthorRate(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	facts := DisburseFacts{ActivityID: "act-1", CreatorID: 5, Round: 1, Escrow: Balance{Funding: 10, Remaining: 10}}

	award, remaining, err := DecideAward("award-1", facts, bestReview, 5, 7, now)
	if err != nil {
		t.Fatalf("DecideAward: %v", err)
	}
	if award.Points != 3 {
		t.Fatalf("points = %d, want author rate 3", award.Points)
	}
	if remaining.Remaining != 7 {
		t.Fatalf("escrow remaining = %d, want 7", remaining.Remaining)
	}
}

func TestDecideAwardRejections(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		name     string
		facts    DisburseFacts
		at       AwardType
		giver    int64
		receiver int64
		wantCode apperrors.Code
	}{
		{
			name:     "self award",
			facts:    DisburseFacts{ActivityID: "act-1", CreatorID: 5, Escrow: Balance{Funding: 10, Remaining: 10}},
			at:       bestReview,
			giver:    6,
			receiver: 6,
			wantCode: apperrors.CodeAwardSelf,
		},
		{
			name:     "duplicate award",
			facts:    DisburseFacts{ActivityID: "act-1", CreatorID: 5, Round: 1, Escrow: Balance{Funding: 10, Remaining: 10}, AlreadyGiven: true},
			at:       bestReview,
			giver:    6,
			receiver: 7,
			wantCode: apperrors.CodeAwardDuplicate,
		},
		{
			name:     "escrow exhausted",
			facts:    DisburseFacts{ActivityID: "act-1", CreatorID: 5, Escrow: Balance{Funding: 10, Remaining: 1}},
			at:       bestReview,
			giver:    6,
			receiver: 7,
			wantCode: apperrors.CodeEscrowExhausted,
		},
		{
			name:     "missing award type",
			facts:    DisburseFacts{ActivityID: "act-1", CreatorID: 5, Escrow: Balance{Funding: 10, Remaining: 10}},
			at:       AwardType{},
			giver:    6,
			receiver: 7,
			wantCode: apperrors.CodeAwardTypeUnknown,
		},
		{
			name:     "corrupt escrow",
			facts:    DisburseFacts{ActivityID: "act-1", CreatorID: 5, Escrow: Balance{Funding: 10, Remaining: 12}},
			at:       bestReview,
			giver:    6,
			receiver: 7,
			wantCode: apperrors.CodeIntegrity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, remaining, err := DecideAward("award-1", tt.facts, tt.at, tt.giver, tt.receiver, now)
			if !apperrors.IsCode(err, tt.wantCode) {
				t.Fatalf("code = %v, want %v", apperrors.GetCode(err), tt.wantCode)
			}
			if remaining != tt.facts.Escrow {
				t.Fatalf("escrow changed on rejection: %+v", remaining)
			}
		})
	}
}
