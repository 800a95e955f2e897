package app

import (
	"context"
	"errors"
	"time"

	"github.com/rodrigolearns/paperstacks/internal/services/review/domain/activity"
	"github.com/rodrigolearns/paperstacks/internal/services/review/domain/finalization"
	"github.com/rodrigolearns/paperstacks/internal/services/review/domain/team"
	"github.com/rodrigolearns/paperstacks/internal/services/review/domain/workflow"
	"github.com/rodrigolearns/paperstacks/internal/services/review/storage"
)

// State is the live snapshot condition predicates and stage hooks consult.
// One load per progression attempt; predicates never touch the store.
type State struct {
	Activity      activity.Activity
	Template      workflow.Template
	Team          []team.Membership
	Finalizations []finalization.Status
	SnapshotHash  string
	Now           time.Time
}

// Hooks are the side instructions a capability folds into a stage change.
// The store applies them in the same transaction as the stage update.
type Hooks struct {
	// BumpRound increments the activity's round counter, capped at
	// RoundCap when positive.
	BumpRound bool
	RoundCap  int
	// ReleaseEscrow closes the escrow and returns the leftover to the
	// platform administration account.
	ReleaseEscrow bool
	// OpenAwardWindow emits the award-window notification after commit.
	OpenAwardWindow bool
}

// Capability adapts one activity family to the type-agnostic progression
// driver: it resolves the governing template, loads the state predicates
// consult, exposes the predicate environment, and declares the hook
// instructions for entering a stage.
type Capability interface {
	Type() workflow.ActivityType
	Registry() *Registry
	ResolveTemplate(ctx context.Context, act activity.Activity) (workflow.Template, error)
	LoadState(ctx context.Context, act activity.Activity, tpl workflow.Template) (State, error)
	Env(state State) workflow.Env
	StageHooks(state State, tr workflow.Transition) Hooks
}

// baseCapability carries the loading and evaluation plumbing both
// activity families share.
type baseCapability struct {
	store    storage.Store
	registry *Registry
	clock    func() time.Time
}

func (c *baseCapability) Registry() *Registry {
	return c.registry
}

func (c *baseCapability) ResolveTemplate(ctx context.Context, act activity.Activity) (workflow.Template, error) {
	return c.store.GetTemplate(ctx, act.TemplateID)
}

func (c *baseCapability) LoadState(ctx context.Context, act activity.Activity, tpl workflow.Template) (State, error) {
	members, err := c.store.ListTeam(ctx, act.ID)
	if err != nil {
		return State{}, err
	}
	finals, err := c.store.ListFinalizations(ctx, act.ID)
	if err != nil {
		return State{}, err
	}
	snapshotHash := ""
	snap, err := c.store.GetSnapshot(ctx, act.ID)
	switch {
	case err == nil:
		snapshotHash = snap.ContentHash
	case errors.Is(err, storage.ErrNotFound):
		// No pad content captured yet.
	default:
		return State{}, err
	}
	return State{
		Activity:      act,
		Template:      tpl,
		Team:          members,
		Finalizations: finals,
		SnapshotHash:  snapshotHash,
		Now:           c.clock(),
	}, nil
}

func (c *baseCapability) Env(state State) workflow.Env {
	return c.registry.Env(state)
}

// sharedHooks are the structural hook rules every family uses: terminal
// stages close the escrow and the declared award stage opens the award
// window.
func sharedHooks(state State, tr workflow.Transition) Hooks {
	var hooks Hooks
	if to, ok := state.Template.Stage(tr.ToStage); ok && to.IsTerminal {
		hooks.ReleaseEscrow = true
	}
	if key := state.Template.Parameters.AwardStageKey; key != "" && key == tr.ToStage {
		hooks.OpenAwardWindow = true
	}
	return hooks
}

// peerReviewCapability drives peer-review activities. Backward edges are
// revision loops, so they bump the round counter up to the template's
// review_rounds cap.
type peerReviewCapability struct {
	baseCapability
}

func newPeerReviewCapability(store storage.Store, clock func() time.Time) *peerReviewCapability {
	return &peerReviewCapability{baseCapability{
		store:    store,
		registry: PeerReviewRegistry(),
		clock:    clock,
	}}
}

func (c *peerReviewCapability) Type() workflow.ActivityType {
	return workflow.TypePeerReview
}

func (c *peerReviewCapability) StageHooks(state State, tr workflow.Transition) Hooks {
	hooks := sharedHooks(state, tr)
	from, okFrom := state.Template.Stage(tr.FromStage)
	to, okTo := state.Template.Stage(tr.ToStage)
	if okFrom && okTo && to.Position < from.Position {
		hooks.BumpRound = true
		hooks.RoundCap = state.Template.Parameters.ReviewRounds
	}
	return hooks
}

// journalClubCapability drives journal-club activities. No revision
// rounds; only the shared structural hooks apply.
type journalClubCapability struct {
	baseCapability
}

func newJournalClubCapability(store storage.Store, clock func() time.Time) *journalClubCapability {
	return &journalClubCapability{baseCapability{
		store:    store,
		registry: JournalClubRegistry(),
		clock:    clock,
	}}
}

func (c *journalClubCapability) Type() workflow.ActivityType {
	return workflow.TypeJournalClub
}

func (c *journalClubCapability) StageHooks(state State, tr workflow.Transition) Hooks {
	return sharedHooks(state, tr)
}
