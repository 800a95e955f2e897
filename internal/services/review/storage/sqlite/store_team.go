package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rodrigolearns/paperstacks/internal/services/review/domain/ledger"
	"github.com/rodrigolearns/paperstacks/internal/services/review/domain/team"
	"github.com/rodrigolearns/paperstacks/internal/services/review/storage"
)

// TeamStore methods (reviewer memberships and the commitment sweep)

const membershipColumns = "activity_id, user_id, status, joined_at, commitment_deadline, locked_in_at, removed_at, removal_reason"

// JoinTeam decides and persists a join against live team state. The
// activity is loaded in the same transaction so moderation and team-size
// checks see consistent rows.
func (s *Store) JoinTeam(ctx context.Context, activityID string, userID int64, limit int, window time.Duration, now time.Time) (team.Membership, error) {
	if err := s.ready(ctx); err != nil {
		return team.Membership{}, err
	}
	if strings.TrimSpace(activityID) == "" {
		return team.Membership{}, fmt.Errorf("activity id is required")
	}
	if userID <= 0 {
		return team.Membership{}, fmt.Errorf("user id is required")
	}

	var joined team.Membership
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		act, err := getActivity(ctx, tx, "id = ?", activityID)
		if err != nil {
			return err
		}
		if err := act.CheckMutable(); err != nil {
			return err
		}

		_, found, err := getMembership(ctx, tx, activityID, userID)
		if err != nil {
			return err
		}

		activeCount, err := countActiveMembers(ctx, tx, activityID)
		if err != nil {
			return err
		}

		m, err := team.Join(activityID, userID, found, activeCount, limit, now, window)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO team_memberships (activity_id, user_id, status, joined_at, commitment_deadline, locked_in_at, removed_at, removal_reason)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			m.ActivityID,
			m.UserID,
			string(m.Status),
			toMillis(m.JoinedAt),
			toNullMillis(m.CommitmentDeadline),
			toNullMillis(m.LockedInAt),
			toNullMillis(m.RemovedAt),
			m.RemovalReason,
		); err != nil {
			return fmt.Errorf("insert membership: %w", err)
		}

		if _, err := appendEventTx(ctx, tx, storage.TimelineEvent{
			ActivityID: activityID,
			EventType:  storage.EventReviewerJoined,
			ActorID:    &userID,
			CreatedAt:  now,
		}); err != nil {
			return err
		}

		joined = m
		return nil
	})
	if err != nil {
		return team.Membership{}, err
	}
	return joined, nil
}

// LockInMember transitions a joined member to locked_in.
func (s *Store) LockInMember(ctx context.Context, activityID string, userID int64, now time.Time) (team.Membership, error) {
	if err := s.ready(ctx); err != nil {
		return team.Membership{}, err
	}
	if strings.TrimSpace(activityID) == "" {
		return team.Membership{}, fmt.Errorf("activity id is required")
	}
	if userID <= 0 {
		return team.Membership{}, fmt.Errorf("user id is required")
	}

	var locked team.Membership
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		act, err := getActivity(ctx, tx, "id = ?", activityID)
		if err != nil {
			return err
		}
		if err := act.CheckMutable(); err != nil {
			return err
		}

		m, found, err := getMembership(ctx, tx, activityID, userID)
		if err != nil {
			return err
		}
		m, err = team.LockIn(m, found, now)
		if err != nil {
			return err
		}
		if err := updateMembershipTx(ctx, tx, m); err != nil {
			return err
		}

		if _, err := appendEventTx(ctx, tx, storage.TimelineEvent{
			ActivityID: activityID,
			EventType:  storage.EventReviewerLockedIn,
			ActorID:    &userID,
			CreatedAt:  now,
		}); err != nil {
			return err
		}

		locked = m
		return nil
	})
	if err != nil {
		return team.Membership{}, err
	}
	return locked, nil
}

// RemoveMember removes an active member for cause.
func (s *Store) RemoveMember(ctx context.Context, activityID string, userID int64, reason string, now time.Time) (team.Membership, error) {
	if err := s.ready(ctx); err != nil {
		return team.Membership{}, err
	}
	if strings.TrimSpace(activityID) == "" {
		return team.Membership{}, fmt.Errorf("activity id is required")
	}
	if userID <= 0 {
		return team.Membership{}, fmt.Errorf("user id is required")
	}

	var removed team.Membership
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		m, found, err := getMembership(ctx, tx, activityID, userID)
		if err != nil {
			return err
		}
		m, err = team.Remove(m, found, reason, now)
		if err != nil {
			return err
		}
		if err := updateMembershipTx(ctx, tx, m); err != nil {
			return err
		}

		payload, err := eventPayload(map[string]any{"reason": m.RemovalReason})
		if err != nil {
			return err
		}
		if _, err := appendEventTx(ctx, tx, storage.TimelineEvent{
			ActivityID: activityID,
			EventType:  storage.EventReviewerRemoved,
			ActorID:    &userID,
			Payload:    payload,
			CreatedAt:  now,
		}); err != nil {
			return err
		}

		removed = m
		return nil
	})
	if err != nil {
		return team.Membership{}, err
	}
	return removed, nil
}

// ListTeam returns every membership row for an activity in join order.
func (s *Store) ListTeam(ctx context.Context, activityID string) ([]team.Membership, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if strings.TrimSpace(activityID) == "" {
		return nil, fmt.Errorf("activity id is required")
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		fmt.Sprintf("SELECT %s FROM team_memberships WHERE activity_id = ? ORDER BY joined_at, user_id", membershipColumns),
		activityID,
	)
	if err != nil {
		return nil, fmt.Errorf("query team: %w", err)
	}
	defer rows.Close()

	var members []team.Membership
	for rows.Next() {
		m, err := scanMembership(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate team: %w", err)
	}
	return members, nil
}

// ListExpiredCommitments returns joined memberships whose commitment
// deadline elapsed, oldest deadline first, across all activities.
func (s *Store) ListExpiredCommitments(ctx context.Context, now time.Time, limit int) ([]team.Membership, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultPageSize
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		fmt.Sprintf(`SELECT %s FROM team_memberships
		 WHERE status = ? AND commitment_deadline IS NOT NULL AND commitment_deadline < ?
		 ORDER BY commitment_deadline, activity_id, user_id LIMIT ?`, membershipColumns),
		string(team.StatusJoined),
		toMillis(now),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query expired commitments: %w", err)
	}
	defer rows.Close()

	var expired []team.Membership
	for rows.Next() {
		m, err := scanMembership(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		expired = append(expired, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expired commitments: %w", err)
	}
	return expired, nil
}

// SweepMember removes one expired membership and posts the no-show
// penalty, clamped to the reviewer's balance. Rows no longer joined are
// skipped, which keeps sweep re-runs no-ops.
func (s *Store) SweepMember(ctx context.Context, activityID string, userID int64, penalty int64, window time.Duration, now time.Time) (storage.SweepResult, error) {
	if err := s.ready(ctx); err != nil {
		return storage.SweepResult{}, err
	}
	if strings.TrimSpace(activityID) == "" {
		return storage.SweepResult{}, fmt.Errorf("activity id is required")
	}
	if userID <= 0 {
		return storage.SweepResult{}, fmt.Errorf("user id is required")
	}

	var result storage.SweepResult
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		m, found, err := getMembership(ctx, tx, activityID, userID)
		if err != nil {
			return err
		}
		if !found || !team.SweepEligible(m, now) {
			return nil
		}
		m, err = team.SweepRemove(m, now)
		if err != nil {
			return err
		}
		if err := updateMembershipTx(ctx, tx, m); err != nil {
			return err
		}

		applied := int64(0)
		if penalty > 0 {
			wallet, err := getWallet(ctx, tx, userID)
			if err != nil {
				return err
			}
			applied = penalty
			if wallet.Balance < applied {
				applied = wallet.Balance
			}
			if applied > 0 {
				entry, err := ledger.NewEntry(ledger.Spec{
					OwnerID:           userID,
					Amount:            applied,
					Kind:              ledger.KindDebit,
					Origin:            ledger.OriginSystem,
					RelatedActivityID: activityID,
					Description:       "reviewer no-show penalty",
				}, now)
				if err != nil {
					return err
				}
				if _, err := postEntryTx(ctx, tx, entry, window); err != nil {
					return err
				}
			}
		}

		payload, err := eventPayload(map[string]any{
			"reason":  team.RemovalReasonCommitmentTimeout,
			"penalty": applied,
		})
		if err != nil {
			return err
		}
		if _, err := appendEventTx(ctx, tx, storage.TimelineEvent{
			ActivityID: activityID,
			EventType:  storage.EventReviewerRemoved,
			ActorID:    &userID,
			Payload:    payload,
			CreatedAt:  now,
		}); err != nil {
			return err
		}

		result = storage.SweepResult{Removed: true, Penalty: applied}
		return nil
	})
	if err != nil {
		return storage.SweepResult{}, err
	}
	return result, nil
}

func getMembership(ctx context.Context, q dbtx, activityID string, userID int64) (team.Membership, bool, error) {
	row := q.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM team_memberships WHERE activity_id = ? AND user_id = ?", membershipColumns),
		activityID, userID,
	)
	m, err := scanMembership(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return team.Membership{}, false, nil
		}
		return team.Membership{}, false, fmt.Errorf("get membership: %w", err)
	}
	return m, true, nil
}

func countActiveMembers(ctx context.Context, q dbtx, activityID string) (int, error) {
	var count int
	err := q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM team_memberships WHERE activity_id = ? AND status IN (?, ?)",
		activityID, string(team.StatusJoined), string(team.StatusLockedIn),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count active members: %w", err)
	}
	return count, nil
}

func updateMembershipTx(ctx context.Context, tx *sql.Tx, m team.Membership) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE team_memberships SET status = ?, commitment_deadline = ?, locked_in_at = ?, removed_at = ?, removal_reason = ?
		 WHERE activity_id = ? AND user_id = ?`,
		string(m.Status),
		toNullMillis(m.CommitmentDeadline),
		toNullMillis(m.LockedInAt),
		toNullMillis(m.RemovedAt),
		m.RemovalReason,
		m.ActivityID,
		m.UserID,
	)
	if err != nil {
		return fmt.Errorf("update membership: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update membership: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("membership %s/%d: %w", m.ActivityID, m.UserID, storage.ErrNotFound)
	}
	return nil
}

func scanMembership(scan func(dest ...any) error) (team.Membership, error) {
	var m team.Membership
	var status string
	var joinedAt int64
	var deadline, lockedIn, removedAt sql.NullInt64
	if err := scan(
		&m.ActivityID,
		&m.UserID,
		&status,
		&joinedAt,
		&deadline,
		&lockedIn,
		&removedAt,
		&m.RemovalReason,
	); err != nil {
		return team.Membership{}, err
	}
	m.Status = team.Status(status)
	m.JoinedAt = fromMillis(joinedAt)
	m.CommitmentDeadline = fromNullMillis(deadline)
	m.LockedInAt = fromNullMillis(lockedIn)
	m.RemovedAt = fromNullMillis(removedAt)
	return m, nil
}
