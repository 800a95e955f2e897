package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/rodrigolearns/paperstacks/internal/platform/errors"
	"github.com/rodrigolearns/paperstacks/internal/services/review/domain/activity"
	"github.com/rodrigolearns/paperstacks/internal/services/review/domain/escrow"
	"github.com/rodrigolearns/paperstacks/internal/services/review/domain/ledger"
	"github.com/rodrigolearns/paperstacks/internal/services/review/domain/progression"
	"github.com/rodrigolearns/paperstacks/internal/services/review/domain/workflow"
	"github.com/rodrigolearns/paperstacks/internal/services/review/storage"
)

// ActivityStore methods (activity rows, stage pointer, escrow lifecycle)

const activityColumns = `id, external_uuid, paper_id, creator_id, activity_type, template_id,
	funding_amount, escrow_balance, current_stage_key, current_round,
	stage_entered_at, stage_deadline, moderation_state, created_at, updated_at`

// CreateSubmission atomically creates the paper (when new), the funding
// debit, the activity in its template's initial stage, and the submission
// timeline event. An insufficient creator balance aborts everything.
func (s *Store) CreateSubmission(ctx context.Context, sub storage.Submission, window time.Duration) (storage.SubmissionResult, error) {
	if err := s.ready(ctx); err != nil {
		return storage.SubmissionResult{}, err
	}
	if strings.TrimSpace(sub.ActivityID) == "" {
		return storage.SubmissionResult{}, fmt.Errorf("activity id is required")
	}
	if strings.TrimSpace(sub.TemplateID) == "" {
		return storage.SubmissionResult{}, fmt.Errorf("template id is required")
	}
	if sub.CreatorID <= 0 {
		return storage.SubmissionResult{}, fmt.Errorf("creator id is required")
	}

	var result storage.SubmissionResult
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		tpl, err := getTemplate(ctx, tx, sub.TemplateID)
		if err != nil {
			return err
		}
		if sub.ActivityType != "" && sub.ActivityType != tpl.ActivityType {
			return apperrors.New(apperrors.CodeInvalidArgument, "activity type does not match template")
		}
		initial, ok := tpl.InitialStage()
		if !ok {
			return apperrors.New(apperrors.CodeIntegrity, "template has no initial stage")
		}

		esc, err := escrow.Open(sub.Funding)
		if err != nil {
			return err
		}

		var paper storage.Paper
		if sub.NewPaper != nil {
			paper = *sub.NewPaper
			if err := insertPaperTx(ctx, tx, paper); err != nil {
				return err
			}
		} else {
			paper, err = getPaper(ctx, tx, sub.PaperID)
			if err != nil {
				return err
			}
		}

		entry, err := ledger.NewEntry(ledger.Spec{
			OwnerID:           sub.CreatorID,
			Amount:            sub.Funding,
			Kind:              ledger.KindDebit,
			Origin:            ledger.OriginActivity,
			RelatedActivityID: sub.ActivityID,
			Description:       "activity funding",
		}, sub.Now)
		if err != nil {
			return err
		}
		posted, err := postEntryTx(ctx, tx, entry, window)
		if err != nil {
			return err
		}

		now := sub.Now.UTC()
		deadline := progression.StageDeadline(initial, now)
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO activities (id, external_uuid, paper_id, creator_id, activity_type, template_id,
			 funding_amount, escrow_balance, current_stage_key, current_round,
			 stage_entered_at, stage_deadline, moderation_state, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sub.ActivityID,
			sub.ActivityUUID,
			paper.ID,
			sub.CreatorID,
			string(tpl.ActivityType),
			tpl.ID,
			esc.Funding,
			esc.Remaining,
			initial.Key,
			1,
			toMillis(now),
			toNullMillis(deadline),
			string(activity.ModerationClear),
			toMillis(now),
			toMillis(now),
		); err != nil {
			return fmt.Errorf("insert activity: %w", err)
		}

		payload, err := eventPayload(map[string]any{
			"paper_id": paper.ID,
			"funding":  esc.Funding,
			"template": tpl.ID,
		})
		if err != nil {
			return err
		}
		if _, err := appendEventTx(ctx, tx, storage.TimelineEvent{
			ActivityID: sub.ActivityID,
			EventType:  storage.EventActivitySubmitted,
			ToStage:    initial.Key,
			ActorID:    &sub.CreatorID,
			Payload:    payload,
			CreatedAt:  now,
		}); err != nil {
			return err
		}

		result = storage.SubmissionResult{
			Activity: activity.Activity{
				ID:             sub.ActivityID,
				ExternalUUID:   sub.ActivityUUID,
				PaperID:        paper.ID,
				CreatorID:      sub.CreatorID,
				ActivityType:   tpl.ActivityType,
				TemplateID:     tpl.ID,
				Escrow:         esc,
				CurrentStage:   initial.Key,
				CurrentRound:   1,
				StageEnteredAt: now,
				StageDeadline:  deadline,
				Moderation:     activity.ModerationClear,
				CreatedAt:      now,
				UpdatedAt:      now,
			},
			Paper: paper,
			Entry: posted.Entry,
		}
		return nil
	})
	if err != nil {
		return storage.SubmissionResult{}, err
	}
	return result, nil
}

// GetActivity retrieves an activity by id.
func (s *Store) GetActivity(ctx context.Context, id string) (activity.Activity, error) {
	if err := s.ready(ctx); err != nil {
		return activity.Activity{}, err
	}
	if strings.TrimSpace(id) == "" {
		return activity.Activity{}, fmt.Errorf("activity id is required")
	}
	return getActivity(ctx, s.sqlDB, "id = ?", id)
}

// GetActivityByUUID retrieves an activity by its external identifier.
func (s *Store) GetActivityByUUID(ctx context.Context, externalUUID string) (activity.Activity, error) {
	if err := s.ready(ctx); err != nil {
		return activity.Activity{}, err
	}
	if strings.TrimSpace(externalUUID) == "" {
		return activity.Activity{}, fmt.Errorf("activity uuid is required")
	}
	return getActivity(ctx, s.sqlDB, "external_uuid = ?", externalUUID)
}

func getActivity(ctx context.Context, q dbtx, where string, arg any) (activity.Activity, error) {
	row := q.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM activities WHERE %s", activityColumns, where),
		arg,
	)
	act, err := scanActivity(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return activity.Activity{}, storage.ErrActivityNotFound
		}
		return activity.Activity{}, fmt.Errorf("get activity: %w", err)
	}
	return act, nil
}

func scanActivity(scan func(dest ...any) error) (activity.Activity, error) {
	var act activity.Activity
	var activityType, moderation string
	var enteredAt, createdAt, updatedAt int64
	var deadline sql.NullInt64
	if err := scan(
		&act.ID,
		&act.ExternalUUID,
		&act.PaperID,
		&act.CreatorID,
		&activityType,
		&act.TemplateID,
		&act.Escrow.Funding,
		&act.Escrow.Remaining,
		&act.CurrentStage,
		&act.CurrentRound,
		&enteredAt,
		&deadline,
		&moderation,
		&createdAt,
		&updatedAt,
	); err != nil {
		return activity.Activity{}, err
	}
	act.ActivityType = workflow.ActivityType(activityType)
	act.Moderation = activity.ModerationState(moderation)
	act.StageEnteredAt = fromMillis(enteredAt)
	act.StageDeadline = fromNullMillis(deadline)
	act.CreatedAt = fromMillis(createdAt)
	act.UpdatedAt = fromMillis(updatedAt)
	return act, nil
}

// ApplyStageChange moves the stage pointer guarded by the expected
// from-stage and records the transition event. Any round bump or escrow
// release instruction commits in the same transaction, so a transition
// and its hooks land atomically or not at all.
func (s *Store) ApplyStageChange(ctx context.Context, change storage.StageChange) (storage.StageChangeResult, error) {
	if err := s.ready(ctx); err != nil {
		return storage.StageChangeResult{}, err
	}
	if strings.TrimSpace(change.ActivityID) == "" {
		return storage.StageChangeResult{}, fmt.Errorf("activity id is required")
	}
	if strings.TrimSpace(change.ToStage) == "" {
		return storage.StageChangeResult{}, fmt.Errorf("target stage is required")
	}

	var result storage.StageChangeResult
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE activities SET current_stage_key = ?, stage_entered_at = ?, stage_deadline = ?, updated_at = ?
			 WHERE id = ? AND current_stage_key = ?`,
			change.ToStage,
			toMillis(change.EnteredAt),
			toNullMillis(change.Deadline),
			toMillis(change.EnteredAt),
			change.ActivityID,
			change.FromStage,
		)
		if err != nil {
			return fmt.Errorf("update activity stage: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("update activity stage: %w", err)
		}
		if affected == 0 {
			var exists bool
			if err := tx.QueryRowContext(ctx,
				"SELECT EXISTS (SELECT 1 FROM activities WHERE id = ?)", change.ActivityID,
			).Scan(&exists); err != nil {
				return fmt.Errorf("check activity: %w", err)
			}
			if !exists {
				return storage.ErrActivityNotFound
			}
			return storage.ErrStageConflict
		}

		if change.BumpRound {
			round, bumped, err := incrementRoundTx(ctx, tx, change.ActivityID, change.RoundCap, change.EnteredAt)
			if err != nil {
				return err
			}
			result.Round = round
			result.RoundBumped = bumped
		}

		payload := ""
		if result.RoundBumped {
			payload, err = eventPayload(map[string]any{"round": result.Round})
			if err != nil {
				return err
			}
		}
		if _, err := appendEventTx(ctx, tx, storage.TimelineEvent{
			ActivityID: change.ActivityID,
			EventType:  storage.EventStageTransitioned,
			FromStage:  change.FromStage,
			ToStage:    change.ToStage,
			ActorID:    change.ActorID,
			Payload:    payload,
			CreatedAt:  change.EnteredAt,
		}); err != nil {
			return err
		}

		if change.ReleaseEscrowTo != nil {
			release, err := releaseEscrowTx(ctx, tx, change.ActivityID, *change.ReleaseEscrowTo, change.Window, change.EnteredAt)
			if err != nil {
				return err
			}
			result.Escrow = release
		}
		return nil
	})
	if err != nil {
		return storage.StageChangeResult{}, err
	}
	return result, nil
}

// IncrementRound bumps the activity's round counter unless maxRounds is
// reached. Returns the resulting round and whether the bump happened.
func (s *Store) IncrementRound(ctx context.Context, activityID string, maxRounds int, now time.Time) (int, bool, error) {
	if err := s.ready(ctx); err != nil {
		return 0, false, err
	}
	if strings.TrimSpace(activityID) == "" {
		return 0, false, fmt.Errorf("activity id is required")
	}

	var round int
	var bumped bool
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		round, bumped, err = incrementRoundTx(ctx, tx, activityID, maxRounds, now)
		return err
	})
	if err != nil {
		return 0, false, err
	}
	return round, bumped, nil
}

func incrementRoundTx(ctx context.Context, tx *sql.Tx, activityID string, maxRounds int, now time.Time) (int, bool, error) {
	var current int
	err := tx.QueryRowContext(ctx,
		"SELECT current_round FROM activities WHERE id = ?", activityID,
	).Scan(&current)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, storage.ErrActivityNotFound
		}
		return 0, false, fmt.Errorf("get activity round: %w", err)
	}
	if maxRounds > 0 && current >= maxRounds {
		return current, false, nil
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE activities SET current_round = ?, updated_at = ? WHERE id = ?",
		current+1, toMillis(now), activityID,
	); err != nil {
		return 0, false, fmt.Errorf("update activity round: %w", err)
	}
	return current + 1, true, nil
}

// ReleaseLeftoverEscrow zeroes the escrow and credits the leftover to the
// administrator account. A second release is a no-op.
func (s *Store) ReleaseLeftoverEscrow(ctx context.Context, activityID string, adminID int64, window time.Duration, now time.Time) (storage.EscrowRelease, error) {
	if err := s.ready(ctx); err != nil {
		return storage.EscrowRelease{}, err
	}
	if strings.TrimSpace(activityID) == "" {
		return storage.EscrowRelease{}, fmt.Errorf("activity id is required")
	}
	if adminID <= 0 {
		return storage.EscrowRelease{}, fmt.Errorf("admin account id is required")
	}

	var release storage.EscrowRelease
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		release, err = releaseEscrowTx(ctx, tx, activityID, adminID, window, now)
		return err
	})
	if err != nil {
		return storage.EscrowRelease{}, err
	}
	return release, nil
}

func releaseEscrowTx(ctx context.Context, tx *sql.Tx, activityID string, adminID int64, window time.Duration, now time.Time) (storage.EscrowRelease, error) {
	var funding, remaining int64
	var releasedAt sql.NullInt64
	err := tx.QueryRowContext(ctx,
		"SELECT funding_amount, escrow_balance, escrow_released_at FROM activities WHERE id = ?",
		activityID,
	).Scan(&funding, &remaining, &releasedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.EscrowRelease{}, storage.ErrActivityNotFound
		}
		return storage.EscrowRelease{}, fmt.Errorf("get activity escrow: %w", err)
	}
	if releasedAt.Valid {
		return storage.EscrowRelease{}, nil
	}

	esc := escrow.Balance{Funding: funding, Remaining: remaining}
	if err := esc.Check(); err != nil {
		return storage.EscrowRelease{}, err
	}
	_, leftover := esc.Release()

	if _, err := tx.ExecContext(ctx,
		"UPDATE activities SET escrow_balance = 0, escrow_released_at = ?, updated_at = ? WHERE id = ?",
		toMillis(now), toMillis(now), activityID,
	); err != nil {
		return storage.EscrowRelease{}, fmt.Errorf("release escrow: %w", err)
	}

	if leftover > 0 {
		entry, err := ledger.NewEntry(ledger.Spec{
			OwnerID:           adminID,
			Amount:            leftover,
			Kind:              ledger.KindCredit,
			Origin:            ledger.OriginSystem,
			RelatedActivityID: activityID,
			Description:       "escrow leftover release",
		}, now)
		if err != nil {
			return storage.EscrowRelease{}, err
		}
		if _, err := postEntryTx(ctx, tx, entry, window); err != nil {
			return storage.EscrowRelease{}, err
		}
	}

	payload, err := eventPayload(map[string]any{"leftover": leftover})
	if err != nil {
		return storage.EscrowRelease{}, err
	}
	if _, err := appendEventTx(ctx, tx, storage.TimelineEvent{
		ActivityID: activityID,
		EventType:  storage.EventEscrowReleased,
		Payload:    payload,
		CreatedAt:  now,
	}); err != nil {
		return storage.EscrowRelease{}, err
	}

	return storage.EscrowRelease{Leftover: leftover, Released: true}, nil
}

// ListDeadlineDue returns activities whose stage deadline has elapsed,
// oldest deadline first. Suspended activities never surface here so the
// sweeper cannot progress them.
func (s *Store) ListDeadlineDue(ctx context.Context, now time.Time, limit int) ([]activity.Activity, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	limit = clampPageSize(limit)

	rows, err := s.sqlDB.QueryContext(ctx,
		fmt.Sprintf(`SELECT %s FROM activities
		 WHERE stage_deadline IS NOT NULL AND stage_deadline < ? AND moderation_state != ?
		 ORDER BY stage_deadline ASC LIMIT ?`, activityColumns),
		toMillis(now),
		string(activity.ModerationSuspended),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list deadline due: %w", err)
	}
	defer rows.Close()

	var out []activity.Activity
	for rows.Next() {
		act, err := scanActivity(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		out = append(out, act)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list deadline due: %w", err)
	}
	return out, nil
}

// SetModeration updates the activity's moderation state.
func (s *Store) SetModeration(ctx context.Context, activityID string, state activity.ModerationState, actorID int64, now time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(activityID) == "" {
		return fmt.Errorf("activity id is required")
	}
	if !state.Valid() {
		return apperrors.New(apperrors.CodeInvalidArgument, "unknown moderation state")
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			"UPDATE activities SET moderation_state = ?, updated_at = ? WHERE id = ?",
			string(state), toMillis(now), activityID,
		)
		if err != nil {
			return fmt.Errorf("update moderation state: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("update moderation state: %w", err)
		}
		if affected == 0 {
			return storage.ErrActivityNotFound
		}

		payload, err := eventPayload(map[string]any{"state": string(state)})
		if err != nil {
			return err
		}
		_, err = appendEventTx(ctx, tx, storage.TimelineEvent{
			ActivityID: activityID,
			EventType:  storage.EventModerationChanged,
			ActorID:    &actorID,
			Payload:    payload,
			CreatedAt:  now,
		})
		return err
	})
}
