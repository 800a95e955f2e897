package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	apperrors "github.com/rodrigolearns/paperstacks/internal/platform/errors"
	"github.com/rodrigolearns/paperstacks/internal/services/review/domain/escrow"
	"github.com/rodrigolearns/paperstacks/internal/services/review/domain/ledger"
	"github.com/rodrigolearns/paperstacks/internal/services/review/storage"
	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// AwardStore methods (award-type catalog and disbursement)

// PutAwardType creates or replaces an award type.
func (s *Store) PutAwardType(ctx context.Context, at escrow.AwardType) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(at.Key) == "" {
		return apperrors.New(apperrors.CodeInvalidArgument, "award type key is required")
	}
	if strings.TrimSpace(at.Label) == "" {
		return apperrors.New(apperrors.CodeInvalidArgument, "award type label is required")
	}
	if at.AuthorPoints <= 0 || at.ReviewerPoints <= 0 {
		return apperrors.New(apperrors.CodeInvalidArgument, "award type points must be positive")
	}

	if _, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO award_types (key, label, author_points, reviewer_points) VALUES (?, ?, ?, ?)
		 ON CONFLICT (key) DO UPDATE SET
		 label = excluded.label, author_points = excluded.author_points, reviewer_points = excluded.reviewer_points`,
		at.Key, at.Label, at.AuthorPoints, at.ReviewerPoints,
	); err != nil {
		return fmt.Errorf("upsert award type: %w", err)
	}
	return nil
}

// GetAwardType retrieves an award type by key.
func (s *Store) GetAwardType(ctx context.Context, key string) (escrow.AwardType, error) {
	if err := s.ready(ctx); err != nil {
		return escrow.AwardType{}, err
	}
	return getAwardType(ctx, s.sqlDB, key)
}

func getAwardType(ctx context.Context, q dbtx, key string) (escrow.AwardType, error) {
	if strings.TrimSpace(key) == "" {
		return escrow.AwardType{}, apperrors.New(apperrors.CodeAwardTypeUnknown, "award type is required")
	}
	var at escrow.AwardType
	err := q.QueryRowContext(ctx,
		"SELECT key, label, author_points, reviewer_points FROM award_types WHERE key = ?",
		key,
	).Scan(&at.Key, &at.Label, &at.AuthorPoints, &at.ReviewerPoints)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return escrow.AwardType{}, apperrors.WithMetadata(apperrors.CodeAwardTypeUnknown,
				"unknown award type",
				map[string]string{"AwardType": key})
		}
		return escrow.AwardType{}, fmt.Errorf("get award type: %w", err)
	}
	return at, nil
}

// ListAwardTypes returns the award-type catalog ordered by key.
func (s *Store) ListAwardTypes(ctx context.Context) ([]escrow.AwardType, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		"SELECT key, label, author_points, reviewer_points FROM award_types ORDER BY key",
	)
	if err != nil {
		return nil, fmt.Errorf("query award types: %w", err)
	}
	defer rows.Close()

	var types []escrow.AwardType
	for rows.Next() {
		var at escrow.AwardType
		if err := rows.Scan(&at.Key, &at.Label, &at.AuthorPoints, &at.ReviewerPoints); err != nil {
			return nil, fmt.Errorf("scan award type: %w", err)
		}
		types = append(types, at)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate award types: %w", err)
	}
	return types, nil
}

// DisburseAward atomically inserts the award row, decrements the escrow,
// and credits the receiver. Any rejection leaves all three untouched.
func (s *Store) DisburseAward(ctx context.Context, d storage.Disbursement) (escrow.Award, error) {
	if err := s.ready(ctx); err != nil {
		return escrow.Award{}, err
	}
	if strings.TrimSpace(d.AwardID) == "" {
		return escrow.Award{}, fmt.Errorf("award id is required")
	}
	if strings.TrimSpace(d.ActivityID) == "" {
		return escrow.Award{}, fmt.Errorf("activity id is required")
	}
	if d.GiverID <= 0 || d.ReceiverID <= 0 {
		return escrow.Award{}, fmt.Errorf("giver and receiver ids are required")
	}

	var award escrow.Award
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		act, err := getActivity(ctx, tx, "id = ?", d.ActivityID)
		if err != nil {
			return err
		}
		if err := act.CheckMutable(); err != nil {
			return err
		}

		var releasedAt sql.NullInt64
		if err := tx.QueryRowContext(ctx,
			"SELECT escrow_released_at FROM activities WHERE id = ?", d.ActivityID,
		).Scan(&releasedAt); err != nil {
			return fmt.Errorf("get escrow state: %w", err)
		}
		if releasedAt.Valid {
			return apperrors.New(apperrors.CodeEscrowClosed, "activity escrow is closed")
		}

		at, err := getAwardType(ctx, tx, d.AwardTypeKey)
		if err != nil {
			return err
		}

		var alreadyGiven bool
		if err := tx.QueryRowContext(ctx,
			"SELECT EXISTS (SELECT 1 FROM awards WHERE activity_id = ? AND round = ? AND giver_id = ? AND award_type = ?)",
			d.ActivityID, act.CurrentRound, d.GiverID, at.Key,
		).Scan(&alreadyGiven); err != nil {
			return fmt.Errorf("check prior award: %w", err)
		}

		facts := escrow.DisburseFacts{
			ActivityID:   d.ActivityID,
			CreatorID:    act.CreatorID,
			Round:        act.CurrentRound,
			Escrow:       act.Escrow,
			AlreadyGiven: alreadyGiven,
		}
		decided, next, err := escrow.DecideAward(d.AwardID, facts, at, d.GiverID, d.ReceiverID, d.Now)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO awards (id, activity_id, round, giver_id, receiver_id, award_type, points, given_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			decided.ID,
			decided.ActivityID,
			decided.Round,
			decided.GiverID,
			decided.ReceiverID,
			decided.AwardType,
			decided.Points,
			toMillis(decided.GivenAt),
		); err != nil {
			if isConstraintError(err) {
				return apperrors.New(apperrors.CodeAwardDuplicate, "award already given")
			}
			return fmt.Errorf("insert award: %w", err)
		}

		res, err := tx.ExecContext(ctx,
			"UPDATE activities SET escrow_balance = ?, updated_at = ? WHERE id = ? AND escrow_balance = ?",
			next.Remaining, toMillis(d.Now), d.ActivityID, act.Escrow.Remaining,
		)
		if err != nil {
			return fmt.Errorf("deduct escrow: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("deduct escrow: %w", err)
		}
		if affected == 0 {
			return storage.ErrEscrowConflict
		}

		// The award id in the description keeps credits from distinct
		// givers outside each other's duplicate window.
		entry, err := ledger.NewEntry(ledger.Spec{
			OwnerID:           d.ReceiverID,
			CounterpartyID:    &d.GiverID,
			Amount:            decided.Points,
			Kind:              ledger.KindCredit,
			Origin:            ledger.OriginActivity,
			RelatedActivityID: d.ActivityID,
			Description:       fmt.Sprintf("award %s (%s)", at.Key, decided.ID),
		}, d.Now)
		if err != nil {
			return err
		}
		if _, err := postEntryTx(ctx, tx, entry, d.Window); err != nil {
			return err
		}

		payload, err := eventPayload(map[string]any{
			"award_type":  at.Key,
			"points":      decided.Points,
			"receiver_id": d.ReceiverID,
			"round":       decided.Round,
		})
		if err != nil {
			return err
		}
		if _, err := appendEventTx(ctx, tx, storage.TimelineEvent{
			ActivityID: d.ActivityID,
			EventType:  storage.EventAwardGiven,
			ActorID:    &d.GiverID,
			Payload:    payload,
			CreatedAt:  d.Now,
		}); err != nil {
			return err
		}

		award = decided
		return nil
	})
	if err != nil {
		return escrow.Award{}, err
	}
	return award, nil
}

// ListAwards returns every award disbursed for an activity.
func (s *Store) ListAwards(ctx context.Context, activityID string) ([]escrow.Award, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if strings.TrimSpace(activityID) == "" {
		return nil, fmt.Errorf("activity id is required")
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, activity_id, round, giver_id, receiver_id, award_type, points, given_at
		 FROM awards WHERE activity_id = ? ORDER BY round, given_at, id`,
		activityID,
	)
	if err != nil {
		return nil, fmt.Errorf("query awards: %w", err)
	}
	defer rows.Close()

	var awards []escrow.Award
	for rows.Next() {
		var a escrow.Award
		var givenAt int64
		if err := rows.Scan(&a.ID, &a.ActivityID, &a.Round, &a.GiverID, &a.ReceiverID, &a.AwardType, &a.Points, &givenAt); err != nil {
			return nil, fmt.Errorf("scan award: %w", err)
		}
		a.GivenAt = fromMillis(givenAt)
		awards = append(awards, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate awards: %w", err)
	}
	return awards, nil
}

func isConstraintError(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3.SQLITE_CONSTRAINT || code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}
