// Package ledger defines the append-only token ledger vocabulary: entry
// kinds, origins, posting validation, and the balance arithmetic every
// wallet mutation goes through. Entries are the only mechanism that moves
// tokens; wallets are derived state.
package ledger

import (
	"strconv"
	"strings"
	"time"

	apperrors "github.com/rodrigolearns/paperstacks/internal/platform/errors"
)

// Kind labels the direction of a ledger entry.
type Kind string

const (
	KindCredit Kind = "credit"
	KindDebit  Kind = "debit"
)

// Valid reports whether the kind is a known direction label.
func (k Kind) Valid() bool {
	return k == KindCredit || k == KindDebit
}

// Origin labels which subsystem authored a ledger entry.
type Origin string

const (
	OriginActivity Origin = "activity"
	OriginAdmin    Origin = "admin"
	OriginSystem   Origin = "system"
)

// Valid reports whether the origin is a known authoring subsystem.
func (o Origin) Valid() bool {
	switch o {
	case OriginActivity, OriginAdmin, OriginSystem:
		return true
	}
	return false
}

// maxDescriptionLen bounds entry descriptions so the duplicate-detection
// key stays index-friendly.
const maxDescriptionLen = 500

// Entry is one immutable ledger record. Amount is signed: positive for
// credits, negative for debits, so a wallet balance is always the plain
// sum of its owner's entries. ID is assigned by the store on insert, in
// commit order.
type Entry struct {
	ID                int64
	OwnerID           int64
	CounterpartyID    *int64
	Amount            int64
	Kind              Kind
	Origin            Origin
	RelatedActivityID string
	Description       string
	CreatedAt         time.Time
}

// Wallet is the derived per-account balance. LastUpdated tracks the most
// recent applied entry.
type Wallet struct {
	OwnerID     int64
	Balance     int64
	LastUpdated time.Time
}

// Spec describes a requested posting before validation. Amount is the
// positive token magnitude; Kind carries the direction.
type Spec struct {
	OwnerID           int64
	CounterpartyID    *int64
	Amount            int64
	Kind              Kind
	Origin            Origin
	RelatedActivityID string
	Description       string
}

// NewEntry validates a posting spec and materializes the immutable entry,
// folding the kind into the signed amount.
func NewEntry(spec Spec, now time.Time) (Entry, error) {
	if spec.OwnerID <= 0 {
		return Entry{}, apperrors.New(apperrors.CodeInvalidArgument, "ledger entry requires an owner account")
	}
	if spec.Amount <= 0 {
		return Entry{}, apperrors.WithMetadata(apperrors.CodeLedgerAmountInvalid,
			"ledger entry amount must be positive",
			map[string]string{"Amount": strconv.FormatInt(spec.Amount, 10)})
	}
	if !spec.Kind.Valid() {
		return Entry{}, apperrors.New(apperrors.CodeInvalidArgument, "ledger entry kind must be credit or debit")
	}
	if !spec.Origin.Valid() {
		return Entry{}, apperrors.New(apperrors.CodeInvalidArgument, "ledger entry origin must be activity, admin, or system")
	}
	description := strings.TrimSpace(spec.Description)
	if description == "" {
		return Entry{}, apperrors.New(apperrors.CodeLedgerDescriptionEmpty, "ledger entry description is required")
	}
	if len(description) > maxDescriptionLen {
		return Entry{}, apperrors.New(apperrors.CodeInvalidArgument, "ledger entry description too long")
	}

	amount := spec.Amount
	if spec.Kind == KindDebit {
		amount = -amount
	}

	return Entry{
		OwnerID:           spec.OwnerID,
		CounterpartyID:    spec.CounterpartyID,
		Amount:            amount,
		Kind:              spec.Kind,
		Origin:            spec.Origin,
		RelatedActivityID: strings.TrimSpace(spec.RelatedActivityID),
		Description:       description,
		CreatedAt:         now.UTC(),
	}, nil
}

// Apply folds an entry into a wallet. Debits that would drive the balance
// negative are rejected with INSUFFICIENT_FUNDS and leave the wallet
// untouched; callers abort the enclosing transaction.
func Apply(w Wallet, e Entry) (Wallet, error) {
	next := w.Balance + e.Amount
	if next < 0 {
		return w, apperrors.WithMetadata(apperrors.CodeLedgerInsufficientFunds,
			"insufficient funds",
			map[string]string{
				"Balance":  strconv.FormatInt(w.Balance, 10),
				"Required": strconv.FormatInt(-e.Amount, 10),
			})
	}
	w.Balance = next
	w.LastUpdated = e.CreatedAt
	return w, nil
}

// DuplicateKey is the identity used for idempotent-retry detection: two
// entries with the same key posted within the configured window are the
// same logical operation.
type DuplicateKey struct {
	OwnerID           int64
	RelatedActivityID string
	Description       string
	Magnitude         int64
}

// DuplicateKey derives the idempotency identity of an entry.
func (e Entry) DuplicateKey() DuplicateKey {
	return DuplicateKey{
		OwnerID:           e.OwnerID,
		RelatedActivityID: e.RelatedActivityID,
		Description:       e.Description,
		Magnitude:         Magnitude(e.Amount),
	}
}

// Magnitude returns the absolute token quantity of a signed amount.
func Magnitude(amount int64) int64 {
	if amount < 0 {
		return -amount
	}
	return amount
}
