package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rodrigolearns/paperstacks/internal/services/review/domain/ledger"
	"github.com/rodrigolearns/paperstacks/internal/services/review/storage"
)

// WalletStore methods (balances and the append-only entry log)

const entryColumns = "id, owner_id, counterparty_id, amount, kind, origin, related_activity_id, description, created_at"

// GetWallet returns the owner's wallet. Wallets are created lazily on
// first posting, so a missing row reads as a zero balance.
func (s *Store) GetWallet(ctx context.Context, ownerID int64) (ledger.Wallet, error) {
	if err := s.ready(ctx); err != nil {
		return ledger.Wallet{}, err
	}
	if ownerID <= 0 {
		return ledger.Wallet{}, fmt.Errorf("owner id is required")
	}
	return getWallet(ctx, s.sqlDB, ownerID)
}

func getWallet(ctx context.Context, q dbtx, ownerID int64) (ledger.Wallet, error) {
	var w ledger.Wallet
	var updated int64
	err := q.QueryRowContext(ctx,
		"SELECT owner_id, balance, last_updated FROM wallets WHERE owner_id = ?",
		ownerID,
	).Scan(&w.OwnerID, &w.Balance, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ledger.Wallet{OwnerID: ownerID}, nil
		}
		return ledger.Wallet{}, fmt.Errorf("get wallet: %w", err)
	}
	w.LastUpdated = fromMillis(updated)
	return w, nil
}

// PostEntry applies one validated entry as a single transaction.
func (s *Store) PostEntry(ctx context.Context, entry ledger.Entry, window time.Duration) (storage.PostEntryResult, error) {
	if err := s.ready(ctx); err != nil {
		return storage.PostEntryResult{}, err
	}
	if entry.OwnerID <= 0 {
		return storage.PostEntryResult{}, fmt.Errorf("entry owner id is required")
	}
	if entry.Amount == 0 {
		return storage.PostEntryResult{}, fmt.Errorf("entry amount is required")
	}

	var result storage.PostEntryResult
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		result, err = postEntryTx(ctx, tx, entry, window)
		return err
	})
	if err != nil {
		return storage.PostEntryResult{}, err
	}
	return result, nil
}

// postEntryTx runs the posting protocol inside the caller's transaction:
// duplicate lookup inside the idempotency window, balance guard, entry
// insert, wallet upsert. A duplicate returns the prior entry untouched.
func postEntryTx(ctx context.Context, tx *sql.Tx, entry ledger.Entry, window time.Duration) (storage.PostEntryResult, error) {
	if window > 0 {
		cutoff := toMillis(entry.CreatedAt.Add(-window))
		row := tx.QueryRowContext(ctx,
			fmt.Sprintf(`SELECT %s FROM ledger_entries
			 WHERE owner_id = ? AND related_activity_id = ? AND description = ? AND ABS(amount) = ? AND created_at >= ?
			 ORDER BY id DESC LIMIT 1`, entryColumns),
			entry.OwnerID,
			entry.RelatedActivityID,
			entry.Description,
			ledger.Magnitude(entry.Amount),
			cutoff,
		)
		prior, err := scanEntry(row.Scan)
		switch {
		case err == nil:
			return storage.PostEntryResult{Entry: prior, Duplicate: true}, nil
		case !errors.Is(err, sql.ErrNoRows):
			return storage.PostEntryResult{}, fmt.Errorf("check duplicate entry: %w", err)
		}
	}

	wallet, err := getWallet(ctx, tx, entry.OwnerID)
	if err != nil {
		return storage.PostEntryResult{}, err
	}
	updated, err := ledger.Apply(wallet, entry)
	if err != nil {
		return storage.PostEntryResult{}, err
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO ledger_entries (owner_id, counterparty_id, amount, kind, origin, related_activity_id, description, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.OwnerID,
		toNullInt64(entry.CounterpartyID),
		entry.Amount,
		string(entry.Kind),
		string(entry.Origin),
		entry.RelatedActivityID,
		entry.Description,
		toMillis(entry.CreatedAt),
	)
	if err != nil {
		return storage.PostEntryResult{}, fmt.Errorf("insert ledger entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return storage.PostEntryResult{}, fmt.Errorf("ledger entry id: %w", err)
	}
	entry.ID = id

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO wallets (owner_id, balance, last_updated) VALUES (?, ?, ?)
		 ON CONFLICT (owner_id) DO UPDATE SET balance = excluded.balance, last_updated = excluded.last_updated`,
		updated.OwnerID,
		updated.Balance,
		toMillis(updated.LastUpdated),
	); err != nil {
		return storage.PostEntryResult{}, fmt.Errorf("update wallet: %w", err)
	}

	return storage.PostEntryResult{Entry: entry}, nil
}

// ListEntries returns a page of an owner's entries, newest first.
// BeforeID is the id keyset cursor; zero starts from the newest entry.
func (s *Store) ListEntries(ctx context.Context, req storage.ListEntriesRequest) (storage.ListEntriesResult, error) {
	if err := s.ready(ctx); err != nil {
		return storage.ListEntriesResult{}, err
	}
	if req.OwnerID <= 0 {
		return storage.ListEntriesResult{}, fmt.Errorf("owner id is required")
	}
	pageSize := clampPageSize(req.PageSize)

	where := "owner_id = ?"
	params := []any{req.OwnerID}
	if req.BeforeID > 0 {
		where += " AND id < ?"
		params = append(params, req.BeforeID)
	}
	if strings.TrimSpace(req.FilterClause) != "" {
		where += " AND (" + req.FilterClause + ")"
		params = append(params, req.FilterParams...)
	}

	query := fmt.Sprintf(
		"SELECT %s FROM ledger_entries WHERE %s ORDER BY id DESC LIMIT ?",
		entryColumns, where,
	)
	params = append(params, pageSize+1)

	rows, err := s.sqlDB.QueryContext(ctx, query, params...)
	if err != nil {
		return storage.ListEntriesResult{}, fmt.Errorf("query ledger entries: %w", err)
	}
	defer rows.Close()

	entries := make([]ledger.Entry, 0, pageSize)
	for rows.Next() {
		entry, err := scanEntry(rows.Scan)
		if err != nil {
			return storage.ListEntriesResult{}, fmt.Errorf("scan ledger entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return storage.ListEntriesResult{}, fmt.Errorf("iterate ledger entries: %w", err)
	}

	hasMore := len(entries) > pageSize
	if hasMore {
		entries = entries[:pageSize]
	}
	return storage.ListEntriesResult{Entries: entries, HasMore: hasMore}, nil
}

func scanEntry(scan func(dest ...any) error) (ledger.Entry, error) {
	var e ledger.Entry
	var counterparty sql.NullInt64
	var kind, origin string
	var createdAt int64
	if err := scan(
		&e.ID,
		&e.OwnerID,
		&counterparty,
		&e.Amount,
		&kind,
		&origin,
		&e.RelatedActivityID,
		&e.Description,
		&createdAt,
	); err != nil {
		return ledger.Entry{}, err
	}
	e.CounterpartyID = fromNullInt64(counterparty)
	e.Kind = ledger.Kind(kind)
	e.Origin = ledger.Origin(origin)
	e.CreatedAt = fromMillis(createdAt)
	return e, nil
}
