package app

import (
	"context"
	"errors"
	"log"

	"github.com/rodrigolearns/paperstacks/internal/services/review/domain/progression"
	"github.com/rodrigolearns/paperstacks/internal/services/review/storage"
)

// maxProgressAttempts bounds retries when a guarded stage update loses a
// race. Each retry reloads state, so a handful is plenty.
const maxProgressAttempts = 3

// TryProgress evaluates the activity's declared transitions and applies
// the first match, if any. A forced transition id overrides automatic
// selection. Returning Progressed=false with a reason is the normal "no
// transition ready" outcome; concurrent stage movement retries a bounded
// number of times before surfacing the conflict.
func (s *Service) TryProgress(ctx context.Context, activityRef string, actorID *int64, forcedID string) (progression.Result, error) {
	var lastErr error
	for attempt := 0; attempt < maxProgressAttempts; attempt++ {
		result, err := s.progressOnce(ctx, activityRef, actorID, forcedID)
		if err == nil {
			return result, nil
		}
		if !errors.Is(err, storage.ErrStageConflict) {
			return progression.Result{}, err
		}
		lastErr = err
	}
	return progression.Result{}, lastErr
}

func (s *Service) progressOnce(ctx context.Context, activityRef string, actorID *int64, forcedID string) (progression.Result, error) {
	act, err := s.resolveActivity(ctx, activityRef)
	if err != nil {
		return progression.Result{}, err
	}
	if err := act.CheckMutable(); err != nil {
		return progression.Result{}, err
	}

	c, err := s.capability(act.ActivityType)
	if err != nil {
		return progression.Result{}, err
	}
	tpl, err := c.ResolveTemplate(ctx, act)
	if err != nil {
		return progression.Result{}, err
	}
	state, err := c.LoadState(ctx, act, tpl)
	if err != nil {
		return progression.Result{}, err
	}

	decision, err := progression.Decide(ctx, tpl, act.CurrentStage, forcedID, c.Env(state))
	if err != nil {
		return progression.Result{}, err
	}
	if !decision.Matched {
		return progression.Result{
			Progressed: false,
			FromStage:  act.CurrentStage,
			Reason:     decision.Reason,
		}, nil
	}

	toStage, ok := tpl.Stage(decision.Transition.ToStage)
	if !ok {
		// Validate guarantees declared endpoints; a miss here means the
		// template row was edited out from under a live activity.
		return progression.Result{}, storage.ErrTemplateNotFound
	}
	hooks := c.StageHooks(state, decision.Transition)

	now := s.now()
	change := storage.StageChange{
		ActivityID: act.ID,
		FromStage:  act.CurrentStage,
		ToStage:    toStage.Key,
		EnteredAt:  now,
		Deadline:   progression.StageDeadline(toStage, now),
		ActorID:    actorID,
		BumpRound:  hooks.BumpRound,
		RoundCap:   hooks.RoundCap,
		Window:     s.cfg.DuplicateWindow,
	}
	if hooks.ReleaseEscrow {
		admin := s.cfg.AdminAccountID
		change.ReleaseEscrowTo = &admin
	}

	applied, err := s.store.ApplyStageChange(ctx, change)
	if err != nil {
		return progression.Result{}, err
	}

	s.notify(ctx, Event{
		Type:       storage.EventStageTransitioned,
		ActivityID: act.ID,
		ActorID:    actorID,
		Payload: map[string]any{
			"from": act.CurrentStage,
			"to":   toStage.Key,
		},
	})
	if hooks.OpenAwardWindow {
		s.notify(ctx, Event{
			Type:       EventAwardWindowOpened,
			ActivityID: act.ID,
			Payload:    map[string]any{"stage": toStage.Key},
		})
	}
	if applied.Escrow.Released {
		s.notify(ctx, Event{
			Type:       storage.EventEscrowReleased,
			ActivityID: act.ID,
			Payload:    map[string]any{"leftover": applied.Escrow.Leftover},
		})
	}

	return progression.Result{
		Progressed: true,
		FromStage:  act.CurrentStage,
		ToStage:    toStage.Key,
	}, nil
}

// kickProgress reevaluates progression after a mutating operation. The
// triggering operation already committed, so failures here are logged and
// swallowed; the sweeper retries on its schedule.
func (s *Service) kickProgress(ctx context.Context, activityID string, actorID *int64) {
	result, err := s.TryProgress(ctx, activityID, actorID, "")
	if err != nil {
		log.Printf("progression after change on %s: %v", activityID, err)
		return
	}
	if result.Progressed {
		log.Printf("activity %s progressed %s -> %s", activityID, result.FromStage, result.ToStage)
	}
}
