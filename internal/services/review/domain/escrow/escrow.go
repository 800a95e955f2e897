// Package escrow owns per-activity funding accounting: the escrow balance
// opened at submission, award payout decisions against it, and the
// leftover release at terminal completion.
package escrow

import (
	"strconv"
	"strings"
	"time"

	apperrors "github.com/rodrigolearns/paperstacks/internal/platform/errors"
)

// AwardType is a seeded catalog row resolving the point value of an
// award. Authors and reviewers pay out at different rates.
type AwardType struct {
	Key            string
	Label          string
	AuthorPoints   int64
	ReviewerPoints int64
}

// PointsFor resolves the payout for a giver: author points when the giver
// created the activity, reviewer points otherwise.
func (at AwardType) PointsFor(giverID, creatorID int64) int64 {
	if giverID == creatorID {
		return at.AuthorPoints
	}
	return at.ReviewerPoints
}

// Award is one disbursed award. Points were already deducted from the
// activity's escrow when the row exists.
type Award struct {
	ID         string
	ActivityID string
	Round      int
	GiverID    int64
	ReceiverID int64
	AwardType  string
	Points     int64
	GivenAt    time.Time
}

// Balance is the escrow accounting pair carried on an activity. Remaining
// only ever decreases after open; Funding is fixed at open time.
type Balance struct {
	Funding   int64
	Remaining int64
}

// Open establishes a new escrow with remaining = funding = amount.
func Open(amount int64) (Balance, error) {
	if amount <= 0 {
		return Balance{}, apperrors.New(apperrors.CodeActivityFundingInvalid, "funding amount must be positive")
	}
	return Balance{Funding: amount, Remaining: amount}, nil
}

// Check verifies the escrow integrity invariant. A violation means a core
// bug wrote the activity row directly and is never repaired in place.
func (b Balance) Check() error {
	if b.Remaining < 0 || b.Remaining > b.Funding {
		return apperrors.WithMetadata(apperrors.CodeIntegrity,
			"escrow balance outside [0, funding]",
			map[string]string{
				"Funding":   strconv.FormatInt(b.Funding, 10),
				"Remaining": strconv.FormatInt(b.Remaining, 10),
			})
	}
	return nil
}

// Deduct removes an award payout from the escrow, rejecting with
// ESCROW_EXHAUSTED when the remaining balance cannot cover it.
func (b Balance) Deduct(points int64) (Balance, error) {
	if points <= 0 {
		return b, apperrors.New(apperrors.CodeInvalidArgument, "escrow deduction must be positive")
	}
	if b.Remaining < points {
		return b, apperrors.WithMetadata(apperrors.CodeEscrowExhausted,
			"escrow exhausted",
			map[string]string{
				"EscrowBalance": strconv.FormatInt(b.Remaining, 10),
				"Points":        strconv.FormatInt(points, 10),
			})
	}
	b.Remaining -= points
	return b, nil
}

// Release zeroes the escrow and returns the leftover to credit back to
// the administrator account.
func (b Balance) Release() (Balance, int64) {
	leftover := b.Remaining
	b.Remaining = 0
	return b, leftover
}

// DisburseFacts are the live-state inputs to an award decision, loaded by
// the caller inside the disbursement transaction.
type DisburseFacts struct {
	ActivityID   string
	CreatorID    int64
	Round        int
	Escrow       Balance
	AlreadyGiven bool
}

// DecideAward validates an award request against live facts and computes
// the award row plus the post-deduction escrow. No state is touched here;
// the caller persists both sides atomically or not at all.
func DecideAward(id string, facts DisburseFacts, at AwardType, giverID, receiverID int64, now time.Time) (Award, Balance, error) {
	if strings.TrimSpace(at.Key) == "" {
		return Award{}, facts.Escrow, apperrors.New(apperrors.CodeAwardTypeUnknown, "award type is required")
	}
	if giverID == receiverID {
		return Award{}, facts.Escrow, apperrors.New(apperrors.CodeAwardSelf, "giver and receiver must differ")
	}
	if facts.AlreadyGiven {
		return Award{}, facts.Escrow, apperrors.WithMetadata(apperrors.CodeAwardDuplicate,
			"award already given",
			map[string]string{
				"AwardType": at.Key,
				"Round":     strconv.Itoa(facts.Round),
			})
	}
	if err := facts.Escrow.Check(); err != nil {
		return Award{}, facts.Escrow, err
	}

	points := at.PointsFor(giverID, facts.CreatorID)
	remaining, err := facts.Escrow.Deduct(points)
	if err != nil {
		return Award{}, facts.Escrow, err
	}

	return Award{
		ID:         id,
		ActivityID: facts.ActivityID,
		Round:      facts.Round,
		GiverID:    giverID,
		ReceiverID: receiverID,
		AwardType:  at.Key,
		Points:     points,
		GivenAt:    now.UTC(),
	}, remaining, nil
}
