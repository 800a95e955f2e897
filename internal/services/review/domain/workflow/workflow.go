// Package workflow holds the declarative stage-graph model for activity
// templates: stages, transitions, and the condition trees that gate them.
// Templates are pure data validated at definition time; the progression
// engine interprets them against live activity state.
package workflow

import (
	"sort"
	"strings"

	apperrors "github.com/rodrigolearns/paperstacks/internal/platform/errors"
)

// ActivityType discriminates which capability implementation drives an
// activity through its template.
type ActivityType string

const (
	TypePeerReview  ActivityType = "peer_review"
	TypeJournalClub ActivityType = "journal_club"
)

// Valid reports whether the activity type is a known workflow family.
func (t ActivityType) Valid() bool {
	return t == TypePeerReview || t == TypeJournalClub
}

// Parameters are the template knobs the engine and team rules consult.
// Stored as JSON on the template row.
type Parameters struct {
	ReviewerCount int   `json:"reviewer_count" yaml:"reviewer_count"`
	ReviewRounds  int   `json:"review_rounds" yaml:"review_rounds"`
	NoShowPenalty int64 `json:"no_show_penalty" yaml:"no_show_penalty"`
	// AwardStageKey names the stage whose entry opens the award window
	// notification. Optional; must reference a declared stage when set.
	AwardStageKey string `json:"award_stage_key,omitempty" yaml:"award_stage_key,omitempty"`
}

// Stage is one named phase of an activity's lifecycle.
type Stage struct {
	Key          string `json:"key" yaml:"key"`
	Position     int    `json:"position" yaml:"position"`
	DisplayName  string `json:"display_name" yaml:"display_name"`
	DeadlineDays *int   `json:"deadline_days,omitempty" yaml:"deadline_days,omitempty"`
	IsInitial    bool   `json:"is_initial,omitempty" yaml:"is_initial,omitempty"`
	IsTerminal   bool   `json:"is_terminal,omitempty" yaml:"is_terminal,omitempty"`
}

// Transition is a declared edge between two stages. Automatic transitions
// are evaluated by the engine in ascending Position order; manual ones
// only fire when forced by id.
type Transition struct {
	ID        string     `json:"id" yaml:"id"`
	FromStage string     `json:"from" yaml:"from"`
	ToStage   string     `json:"to" yaml:"to"`
	Condition *Condition `json:"condition,omitempty" yaml:"condition,omitempty"`
	Automatic bool       `json:"automatic" yaml:"automatic"`
	Position  int        `json:"position" yaml:"position"`
}

// Template is a reusable activity definition. Immutable once referenced
// by a live activity; edits create new templates.
type Template struct {
	ID           string       `json:"id" yaml:"id"`
	ActivityType ActivityType `json:"activity_type" yaml:"activity_type"`
	Name         string       `json:"name" yaml:"name"`
	Parameters   Parameters   `json:"parameters" yaml:"parameters"`
	Stages       []Stage      `json:"stages" yaml:"stages"`
	Transitions  []Transition `json:"transitions" yaml:"transitions"`
}

// Stage looks up a declared stage by key.
func (t Template) Stage(key string) (Stage, bool) {
	for _, s := range t.Stages {
		if s.Key == key {
			return s, true
		}
	}
	return Stage{}, false
}

// InitialStage returns the stage new activities start in.
func (t Template) InitialStage() (Stage, bool) {
	for _, s := range t.Stages {
		if s.IsInitial {
			return s, true
		}
	}
	return Stage{}, false
}

// TransitionsFrom returns the transitions declared from a stage in
// ascending declared order. The engine's first-match-wins rule depends on
// this ordering.
func (t Template) TransitionsFrom(key string) []Transition {
	var out []Transition
	for _, tr := range t.Transitions {
		if tr.FromStage == key {
			out = append(out, tr)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

// TransitionByID looks up a declared transition.
func (t Template) TransitionByID(id string) (Transition, bool) {
	for _, tr := range t.Transitions {
		if tr.ID == id {
			return tr, true
		}
	}
	return Transition{}, false
}

// Validate enforces the definition-time rules: a valid activity type,
// non-empty unique stage keys, exactly one initial stage, transition
// endpoints referencing declared stages, and condition trees that resolve
// against the known predicate set.
func (t Template) Validate(known func(name string) bool) error {
	if strings.TrimSpace(t.Name) == "" {
		return invalidTemplate("template name is required")
	}
	if !t.ActivityType.Valid() {
		return invalidTemplate("unknown activity type " + string(t.ActivityType))
	}
	if len(t.Stages) == 0 {
		return invalidTemplate("template declares no stages")
	}
	if t.Parameters.ReviewerCount < 0 || t.Parameters.ReviewRounds < 0 || t.Parameters.NoShowPenalty < 0 {
		return invalidTemplate("template parameters must be non-negative")
	}

	seen := make(map[string]bool, len(t.Stages))
	initials := 0
	for _, s := range t.Stages {
		key := strings.TrimSpace(s.Key)
		if key == "" {
			return invalidTemplate("stage key is required")
		}
		if seen[key] {
			return invalidTemplate("duplicate stage key " + key)
		}
		seen[key] = true
		if s.IsInitial {
			initials++
		}
		if s.DeadlineDays != nil && *s.DeadlineDays <= 0 {
			return invalidTemplate("stage " + key + " deadline_days must be positive")
		}
	}
	if initials != 1 {
		return invalidTemplate("template must declare exactly one initial stage")
	}
	if key := strings.TrimSpace(t.Parameters.AwardStageKey); key != "" && !seen[key] {
		return invalidTemplate("award stage key " + key + " is not a declared stage")
	}

	transitionIDs := make(map[string]bool, len(t.Transitions))
	for _, tr := range t.Transitions {
		id := strings.TrimSpace(tr.ID)
		if id == "" {
			return invalidTemplate("transition id is required")
		}
		if transitionIDs[id] {
			return invalidTemplate("duplicate transition id " + id)
		}
		transitionIDs[id] = true
		if !seen[tr.FromStage] {
			return invalidTemplate("transition " + id + " references undeclared from stage " + tr.FromStage)
		}
		if !seen[tr.ToStage] {
			return invalidTemplate("transition " + id + " references undeclared to stage " + tr.ToStage)
		}
		if err := tr.Condition.Validate(known); err != nil {
			return err
		}
	}
	return nil
}

func invalidTemplate(detail string) error {
	return apperrors.WithMetadata(apperrors.CodeTemplateInvalid,
		"invalid template",
		map[string]string{"Detail": detail})
}
