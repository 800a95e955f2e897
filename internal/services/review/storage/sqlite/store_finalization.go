package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/rodrigolearns/paperstacks/internal/platform/errors"
	"github.com/rodrigolearns/paperstacks/internal/services/review/domain/finalization"
	"github.com/rodrigolearns/paperstacks/internal/services/review/domain/team"
	"github.com/rodrigolearns/paperstacks/internal/services/review/storage"
)

// FinalizationStore methods (assessment agreement and pad snapshots)

// ToggleFinalization upserts the reviewer's agreement row and recomputes
// the all-finalized state against active memberships.
func (s *Store) ToggleFinalization(ctx context.Context, activityID string, reviewerID int64, finalized bool, contentHash string, now time.Time) (storage.FinalizationResult, error) {
	if err := s.ready(ctx); err != nil {
		return storage.FinalizationResult{}, err
	}
	if strings.TrimSpace(activityID) == "" {
		return storage.FinalizationResult{}, fmt.Errorf("activity id is required")
	}
	if reviewerID <= 0 {
		return storage.FinalizationResult{}, fmt.Errorf("reviewer id is required")
	}

	var result storage.FinalizationResult
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		act, err := getActivity(ctx, tx, "id = ?", activityID)
		if err != nil {
			return err
		}
		if err := act.CheckMutable(); err != nil {
			return err
		}

		m, found, err := getMembership(ctx, tx, activityID, reviewerID)
		if err != nil {
			return err
		}
		if !found || !m.Status.Active() {
			return apperrors.New(apperrors.CodeTeamNotAMember, "reviewer is not an active team member")
		}

		st := finalization.Toggle(activityID, reviewerID, finalized, contentHash, now)
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO finalizations (activity_id, reviewer_id, is_finalized, finalized_at, content_hash)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT (activity_id, reviewer_id) DO UPDATE SET
			 is_finalized = excluded.is_finalized, finalized_at = excluded.finalized_at, content_hash = excluded.content_hash`,
			st.ActivityID,
			st.ReviewerID,
			boolToInt(st.IsFinalized),
			toNullMillis(st.FinalizedAt),
			st.ContentHash,
		); err != nil {
			return fmt.Errorf("upsert finalization: %w", err)
		}

		activeIDs, finalizedByReviewer, err := finalizationFacts(ctx, tx, activityID)
		if err != nil {
			return err
		}
		all := finalization.AllFinalized(activeIDs, finalizedByReviewer)
		count := 0
		for _, id := range activeIDs {
			if finalizedByReviewer[id] {
				count++
			}
		}

		payload, err := eventPayload(map[string]any{
			"finalized":     st.IsFinalized,
			"all_finalized": all,
		})
		if err != nil {
			return err
		}
		if _, err := appendEventTx(ctx, tx, storage.TimelineEvent{
			ActivityID: activityID,
			EventType:  storage.EventAssessmentToggled,
			ActorID:    &reviewerID,
			Payload:    payload,
			CreatedAt:  now,
		}); err != nil {
			return err
		}

		result = storage.FinalizationResult{
			IsFinalized:     st.IsFinalized,
			AllFinalized:    all,
			ActiveReviewers: len(activeIDs),
			FinalizedCount:  count,
		}
		return nil
	})
	if err != nil {
		return storage.FinalizationResult{}, err
	}
	return result, nil
}

// ApplySnapshot stores the latest pad snapshot. A changed content hash
// resets every agreement row for the activity.
func (s *Store) ApplySnapshot(ctx context.Context, snap storage.Snapshot) (storage.SnapshotResult, error) {
	if err := s.ready(ctx); err != nil {
		return storage.SnapshotResult{}, err
	}
	if strings.TrimSpace(snap.ActivityID) == "" {
		return storage.SnapshotResult{}, fmt.Errorf("activity id is required")
	}
	if strings.TrimSpace(snap.ContentHash) == "" {
		return storage.SnapshotResult{}, fmt.Errorf("content hash is required")
	}

	var result storage.SnapshotResult
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var exists bool
		if err := tx.QueryRowContext(ctx,
			"SELECT EXISTS (SELECT 1 FROM activities WHERE id = ?)", snap.ActivityID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("check activity: %w", err)
		}
		if !exists {
			return storage.ErrActivityNotFound
		}

		storedHash := ""
		err := tx.QueryRowContext(ctx,
			"SELECT content_hash FROM assessment_snapshots WHERE activity_id = ?", snap.ActivityID,
		).Scan(&storedHash)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("get snapshot hash: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO assessment_snapshots (activity_id, content, content_hash, captured_at, updated_at)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT (activity_id) DO UPDATE SET
			 content = excluded.content, content_hash = excluded.content_hash,
			 captured_at = excluded.captured_at, updated_at = excluded.updated_at`,
			snap.ActivityID,
			snap.Content,
			snap.ContentHash,
			toMillis(snap.CapturedAt),
			toMillis(snap.UpdatedAt),
		); err != nil {
			return fmt.Errorf("upsert snapshot: %w", err)
		}

		if !finalization.ContentChanged(storedHash, snap.ContentHash) {
			return nil
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE finalizations SET is_finalized = 0, finalized_at = NULL, content_hash = ''
			 WHERE activity_id = ? AND is_finalized = 1`,
			snap.ActivityID,
		)
		if err != nil {
			return fmt.Errorf("reset finalizations: %w", err)
		}
		reset, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("reset finalizations: %w", err)
		}

		payload, err := eventPayload(map[string]any{
			"content_hash": snap.ContentHash,
			"reset":        reset,
		})
		if err != nil {
			return err
		}
		if _, err := appendEventTx(ctx, tx, storage.TimelineEvent{
			ActivityID: snap.ActivityID,
			EventType:  storage.EventContentChanged,
			Payload:    payload,
			CreatedAt:  snap.CapturedAt,
		}); err != nil {
			return err
		}

		result = storage.SnapshotResult{Changed: true, Reset: int(reset)}
		return nil
	})
	if err != nil {
		return storage.SnapshotResult{}, err
	}
	return result, nil
}

// GetSnapshot retrieves the stored assessment snapshot for an activity.
func (s *Store) GetSnapshot(ctx context.Context, activityID string) (storage.Snapshot, error) {
	if err := s.ready(ctx); err != nil {
		return storage.Snapshot{}, err
	}
	if strings.TrimSpace(activityID) == "" {
		return storage.Snapshot{}, fmt.Errorf("activity id is required")
	}

	var snap storage.Snapshot
	var capturedAt, updatedAt int64
	err := s.sqlDB.QueryRowContext(ctx,
		"SELECT activity_id, content, content_hash, captured_at, updated_at FROM assessment_snapshots WHERE activity_id = ?",
		activityID,
	).Scan(&snap.ActivityID, &snap.Content, &snap.ContentHash, &capturedAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Snapshot{}, fmt.Errorf("snapshot %s: %w", activityID, storage.ErrNotFound)
		}
		return storage.Snapshot{}, fmt.Errorf("get snapshot: %w", err)
	}
	snap.CapturedAt = fromMillis(capturedAt)
	snap.UpdatedAt = fromMillis(updatedAt)
	return snap, nil
}

// finalizationFacts loads the active reviewer ids and the finalized flags
// keyed by reviewer, the inputs to the all-finalized decision.
func finalizationFacts(ctx context.Context, q dbtx, activityID string) ([]int64, map[int64]bool, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT user_id FROM team_memberships WHERE activity_id = ? AND status IN (?, ?) ORDER BY user_id",
		activityID, string(team.StatusJoined), string(team.StatusLockedIn),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("query active members: %w", err)
	}
	defer rows.Close()

	var activeIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, nil, fmt.Errorf("scan member id: %w", err)
		}
		activeIDs = append(activeIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate active members: %w", err)
	}

	finalized := make(map[int64]bool)
	frows, err := q.QueryContext(ctx,
		"SELECT reviewer_id, is_finalized FROM finalizations WHERE activity_id = ?",
		activityID,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("query finalizations: %w", err)
	}
	defer frows.Close()

	for frows.Next() {
		var id int64
		var flag int
		if err := frows.Scan(&id, &flag); err != nil {
			return nil, nil, fmt.Errorf("scan finalization: %w", err)
		}
		finalized[id] = flag != 0
	}
	if err := frows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate finalizations: %w", err)
	}

	return activeIDs, finalized, nil
}

// ListFinalizations returns every agreement row for the activity ordered
// by reviewer id, including stale rows from removed reviewers.
func (s *Store) ListFinalizations(ctx context.Context, activityID string) ([]finalization.Status, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT activity_id, reviewer_id, is_finalized, finalized_at, content_hash
		 FROM finalizations WHERE activity_id = ? ORDER BY reviewer_id`,
		activityID,
	)
	if err != nil {
		return nil, fmt.Errorf("query finalizations: %w", err)
	}
	defer rows.Close()

	var statuses []finalization.Status
	for rows.Next() {
		var st finalization.Status
		var isFinalized int
		var finalizedAt sql.NullInt64
		if err := rows.Scan(&st.ActivityID, &st.ReviewerID, &isFinalized, &finalizedAt, &st.ContentHash); err != nil {
			return nil, fmt.Errorf("scan finalization: %w", err)
		}
		st.IsFinalized = isFinalized != 0
		st.FinalizedAt = fromNullMillis(finalizedAt)
		statuses = append(statuses, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate finalizations: %w", err)
	}
	return statuses, nil
}
