package app

import (
	"context"
	"errors"
	"log"

	"github.com/rodrigolearns/paperstacks/internal/services/review/domain/team"
	"github.com/rodrigolearns/paperstacks/internal/services/review/storage"
)

// SweepReport summarizes one commitment sweep pass.
type SweepReport struct {
	Examined     int
	Removed      int
	PenaltyTotal int64
}

// SweepExpiredCommitments removes reviewers whose lock-in window lapsed,
// posting each template's no-show penalty clamped to the reviewer's
// balance, and reevaluates progression on every touched activity. One bad
// row is logged and skipped so the rest of the sweep proceeds.
func (s *Service) SweepExpiredCommitments(ctx context.Context, limit int) (SweepReport, error) {
	now := s.now()
	expired, err := s.store.ListExpiredCommitments(ctx, now, limit)
	if err != nil {
		return SweepReport{}, err
	}

	var report SweepReport
	for _, m := range expired {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Examined++

		penalty, err := s.noShowPenalty(ctx, m)
		if err != nil {
			log.Printf("sweep %s/%d: resolve penalty: %v", m.ActivityID, m.UserID, err)
			continue
		}
		result, err := s.store.SweepMember(ctx, m.ActivityID, m.UserID, penalty, s.cfg.DuplicateWindow, now)
		if err != nil {
			log.Printf("sweep %s/%d: %v", m.ActivityID, m.UserID, err)
			continue
		}
		if !result.Removed {
			// Someone else removed or locked in this member between the
			// listing and the sweep.
			continue
		}
		report.Removed++
		report.PenaltyTotal += result.Penalty

		userID := m.UserID
		s.notify(ctx, Event{
			Type:       storage.EventReviewerRemoved,
			ActivityID: m.ActivityID,
			ActorID:    &userID,
			Payload:    map[string]any{"reason": team.RemovalReasonCommitmentTimeout, "penalty": result.Penalty},
		})
		s.kickProgress(ctx, m.ActivityID, nil)
	}
	return report, nil
}

func (s *Service) noShowPenalty(ctx context.Context, m team.Membership) (int64, error) {
	act, err := s.store.GetActivity(ctx, m.ActivityID)
	if err != nil {
		return 0, err
	}
	tpl, err := s.store.GetTemplate(ctx, act.TemplateID)
	if err != nil {
		return 0, err
	}
	return tpl.Parameters.NoShowPenalty, nil
}

// ProgressDeadlineDue reevaluates every activity whose stage deadline has
// elapsed. Returns how many activities actually moved. Conflicts that
// survive the bounded retry are logged and left for the next pass.
func (s *Service) ProgressDeadlineDue(ctx context.Context, limit int) (int, error) {
	due, err := s.store.ListDeadlineDue(ctx, s.now(), limit)
	if err != nil {
		return 0, err
	}

	progressed := 0
	for _, act := range due {
		if err := ctx.Err(); err != nil {
			return progressed, err
		}
		result, err := s.TryProgress(ctx, act.ID, nil, "")
		if err != nil {
			if errors.Is(err, storage.ErrStageConflict) {
				log.Printf("deadline progression on %s: %v", act.ID, err)
				continue
			}
			return progressed, err
		}
		if result.Progressed {
			progressed++
		}
	}
	return progressed, nil
}
