// Package progression decides which declared transition, if any, an
// activity takes from its current stage. Selection is pure: live state
// enters only through the condition evaluation environment, and the
// caller applies the chosen transition atomically.
package progression

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/rodrigolearns/paperstacks/internal/platform/errors"
	"github.com/rodrigolearns/paperstacks/internal/services/review/domain/workflow"
)

// Result is the caller-visible outcome of a progression attempt. A false
// Progressed with a Reason is a normal outcome, not an error.
type Result struct {
	Progressed bool   `json:"progressed"`
	FromStage  string `json:"from_stage"`
	ToStage    string `json:"to_stage,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// Decision is the selected transition, or the diagnostic reason none
// matched.
type Decision struct {
	Transition workflow.Transition
	Matched    bool
	Reason     string
}

// Decide picks the transition to take from the current stage. A forced
// transition id overrides automatic selection but must be declared from
// the current stage; otherwise automatic transitions are evaluated in
// ascending declared order and the first satisfied condition wins.
func Decide(ctx context.Context, tpl workflow.Template, currentStage, forcedID string, env workflow.Env) (Decision, error) {
	if _, ok := tpl.Stage(currentStage); !ok {
		// The stage pointer always names a declared stage; anything else
		// means the activity row was written outside the engine.
		return Decision{}, apperrors.WithMetadata(apperrors.CodeIntegrity,
			"activity stage not declared by template",
			map[string]string{"Stage": currentStage, "Template": tpl.ID})
	}

	if forcedID != "" {
		tr, ok := tpl.TransitionByID(forcedID)
		if !ok || tr.FromStage != currentStage {
			return Decision{}, apperrors.WithMetadata(apperrors.CodeInvalidTransition,
				"transition not declared from current stage",
				map[string]string{"TransitionID": forcedID, "Stage": currentStage})
		}
		return Decision{Transition: tr, Matched: true}, nil
	}

	evaluated := 0
	for _, tr := range tpl.TransitionsFrom(currentStage) {
		if !tr.Automatic {
			continue
		}
		evaluated++
		ok, err := tr.Condition.Eval(ctx, env)
		if err != nil {
			return Decision{}, err
		}
		if ok {
			return Decision{Transition: tr, Matched: true}, nil
		}
	}

	if evaluated == 0 {
		return Decision{Reason: fmt.Sprintf("stage %q declares no automatic transitions", currentStage)}, nil
	}
	return Decision{Reason: fmt.Sprintf("no automatic transition satisfied from stage %q (%d evaluated)", currentStage, evaluated)}, nil
}

// StageDeadline computes the deadline for entering a stage, or nil when
// the stage has no deadline policy.
func StageDeadline(stage workflow.Stage, now time.Time) *time.Time {
	if stage.DeadlineDays == nil {
		return nil
	}
	deadline := now.UTC().Add(time.Duration(*stage.DeadlineDays) * 24 * time.Hour)
	return &deadline
}
