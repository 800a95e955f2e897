package app

import (
	"context"
	"sort"
	"strconv"

	apperrors "github.com/rodrigolearns/paperstacks/internal/platform/errors"
	"github.com/rodrigolearns/paperstacks/internal/services/review/domain/activity"
	"github.com/rodrigolearns/paperstacks/internal/services/review/domain/finalization"
	"github.com/rodrigolearns/paperstacks/internal/services/review/domain/team"
	"github.com/rodrigolearns/paperstacks/internal/services/review/domain/workflow"
)

// Condition predicate names referenced by template transitions.
const (
	PredicateReviewersLockedIn   = "reviewers_locked_in"
	PredicateTeamFull            = "team_full"
	PredicateDeadlineElapsed     = "deadline_elapsed"
	PredicateAssessmentFinalized = "assessment_finalized"
	PredicateEscrowEmpty         = "escrow_empty"
	PredicateModerationClear     = "moderation_clear"
	PredicateRoundLimitReached   = "round_limit_reached"
)

// predicateFunc evaluates one named predicate against loaded state.
type predicateFunc func(state State, args map[string]string) (bool, error)

// Registry is the predicate vocabulary one activity family exposes to its
// templates. Definition-time validation and condition evaluation consult
// the same registry, so an unknown predicate can never reach evaluation.
type Registry struct {
	funcs map[string]predicateFunc
}

// Known reports whether the registry defines the named predicate.
func (r *Registry) Known(name string) bool {
	if r == nil {
		return false
	}
	_, ok := r.funcs[name]
	return ok
}

// Names returns the registered predicate names, sorted.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Env binds the registry to one loaded state snapshot for condition
// evaluation.
func (r *Registry) Env(state State) workflow.Env {
	return workflow.EnvFunc(func(_ context.Context, name string, args map[string]string) (bool, error) {
		fn, ok := r.funcs[name]
		if !ok {
			return false, apperrors.WithMetadata(apperrors.CodeTemplateUnknownPredicate,
				"condition references an unknown predicate",
				map[string]string{"Predicate": name})
		}
		return fn(state, args)
	})
}

// PeerReviewRegistry returns the predicate set peer-review templates may
// reference.
func PeerReviewRegistry() *Registry {
	return &Registry{funcs: map[string]predicateFunc{
		PredicateReviewersLockedIn:   predicateReviewersLockedIn,
		PredicateTeamFull:            predicateTeamFull,
		PredicateDeadlineElapsed:     predicateDeadlineElapsed,
		PredicateAssessmentFinalized: predicateAssessmentFinalized,
		PredicateEscrowEmpty:         predicateEscrowEmpty,
		PredicateModerationClear:     predicateModerationClear,
		PredicateRoundLimitReached:   predicateRoundLimitReached,
	}}
}

// JournalClubRegistry returns the predicate set journal-club templates may
// reference. Journal clubs have no collaborative assessment document and
// no revision rounds, so those predicates are absent.
func JournalClubRegistry() *Registry {
	return &Registry{funcs: map[string]predicateFunc{
		PredicateReviewersLockedIn: predicateReviewersLockedIn,
		PredicateTeamFull:          predicateTeamFull,
		PredicateDeadlineElapsed:   predicateDeadlineElapsed,
		PredicateEscrowEmpty:       predicateEscrowEmpty,
		PredicateModerationClear:   predicateModerationClear,
	}}
}

// predicateReviewersLockedIn is true once the locked-in reviewer count
// reaches the template's reviewer_count, or the "count" argument when the
// transition overrides it.
func predicateReviewersLockedIn(state State, args map[string]string) (bool, error) {
	required := state.Template.Parameters.ReviewerCount
	if raw, ok := args["count"]; ok {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return false, apperrors.WithMetadata(apperrors.CodeTemplateInvalid,
				"predicate argument must be a positive integer",
				map[string]string{"Predicate": PredicateReviewersLockedIn, "Arg": "count", "Value": raw})
		}
		required = parsed
	}
	if required <= 0 {
		return false, nil
	}
	return team.CountLockedIn(state.Team) >= required, nil
}

// predicateTeamFull is true once active memberships reach the template's
// reviewer_count. A non-positive reviewer_count means unbounded teams.
func predicateTeamFull(state State, _ map[string]string) (bool, error) {
	limit := state.Template.Parameters.ReviewerCount
	if limit <= 0 {
		return false, nil
	}
	return team.CountActive(state.Team) >= limit, nil
}

func predicateDeadlineElapsed(state State, _ map[string]string) (bool, error) {
	return state.Activity.DeadlineElapsed(state.Now), nil
}

// predicateAssessmentFinalized is true when every active reviewer has
// finalized against the current assessment content.
func predicateAssessmentFinalized(state State, _ map[string]string) (bool, error) {
	var activeIDs []int64
	for _, m := range state.Team {
		if m.Status.Active() {
			activeIDs = append(activeIDs, m.UserID)
		}
	}
	finalized := make(map[int64]bool, len(state.Finalizations))
	for _, f := range state.Finalizations {
		finalized[f.ReviewerID] = f.IsFinalized
	}
	return finalization.AllFinalized(activeIDs, finalized), nil
}

func predicateEscrowEmpty(state State, _ map[string]string) (bool, error) {
	return state.Activity.Escrow.Remaining == 0, nil
}

func predicateModerationClear(state State, _ map[string]string) (bool, error) {
	return state.Activity.Moderation == activity.ModerationClear, nil
}

// predicateRoundLimitReached is true once the activity's round counter
// reaches the template's review_rounds cap. Templates without a cap never
// reach the limit.
func predicateRoundLimitReached(state State, _ map[string]string) (bool, error) {
	limit := state.Template.Parameters.ReviewRounds
	if limit <= 0 {
		return false, nil
	}
	return state.Activity.CurrentRound >= limit, nil
}
