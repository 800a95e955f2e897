package workflow

import (
	"context"
	"sort"
	"strings"

	apperrors "github.com/rodrigolearns/paperstacks/internal/platform/errors"
)

// Predicate is a named check resolved against live activity state by the
// progression engine's predicate registry.
type Predicate struct {
	Name string            `json:"name" yaml:"name"`
	Args map[string]string `json:"args,omitempty" yaml:"args,omitempty"`
}

// Condition is a tagged boolean expression tree. Exactly one branch is
// set per node; a nil condition is unconditionally true. Trees are data,
// interpreted at evaluation time, never executed as code.
type Condition struct {
	All  []*Condition `json:"all,omitempty" yaml:"all,omitempty"`
	Any  []*Condition `json:"any,omitempty" yaml:"any,omitempty"`
	Not  *Condition   `json:"not,omitempty" yaml:"not,omitempty"`
	When *Predicate   `json:"when,omitempty" yaml:"when,omitempty"`
}

// Env resolves predicate truth during evaluation. Implementations load
// whatever activity state the predicate needs.
type Env interface {
	Predicate(ctx context.Context, name string, args map[string]string) (bool, error)
}

// EnvFunc adapts a function to the Env interface.
type EnvFunc func(ctx context.Context, name string, args map[string]string) (bool, error)

func (f EnvFunc) Predicate(ctx context.Context, name string, args map[string]string) (bool, error) {
	return f(ctx, name, args)
}

// Eval walks the tree against the environment. All and Any short-circuit;
// evaluation order is declaration order.
func (c *Condition) Eval(ctx context.Context, env Env) (bool, error) {
	if c == nil {
		return true, nil
	}
	switch {
	case c.All != nil:
		for _, child := range c.All {
			ok, err := child.Eval(ctx, env)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	case c.Any != nil:
		for _, child := range c.Any {
			ok, err := child.Eval(ctx, env)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case c.Not != nil:
		ok, err := c.Not.Eval(ctx, env)
		if err != nil {
			return false, err
		}
		return !ok, nil
	case c.When != nil:
		return env.Predicate(ctx, c.When.Name, c.When.Args)
	default:
		return false, apperrors.New(apperrors.CodeTemplateInvalid, "empty condition node")
	}
}

// Validate enforces the shape rules at definition time: exactly one branch
// per node, no empty combinator lists, and every predicate name known to
// the registry. Unknown predicates are rejected here, never at runtime.
func (c *Condition) Validate(known func(name string) bool) error {
	if c == nil {
		return nil
	}
	branches := 0
	if c.All != nil {
		branches++
	}
	if c.Any != nil {
		branches++
	}
	if c.Not != nil {
		branches++
	}
	if c.When != nil {
		branches++
	}
	if branches != 1 {
		return apperrors.WithMetadata(apperrors.CodeTemplateInvalid,
			"condition node must set exactly one of all, any, not, when",
			map[string]string{"Detail": "condition node must set exactly one of all, any, not, when"})
	}

	switch {
	case c.All != nil:
		if len(c.All) == 0 {
			return emptyCombinator("all")
		}
		for _, child := range c.All {
			if err := child.Validate(known); err != nil {
				return err
			}
		}
	case c.Any != nil:
		if len(c.Any) == 0 {
			return emptyCombinator("any")
		}
		for _, child := range c.Any {
			if err := child.Validate(known); err != nil {
				return err
			}
		}
	case c.Not != nil:
		return c.Not.Validate(known)
	case c.When != nil:
		name := strings.TrimSpace(c.When.Name)
		if name == "" {
			return apperrors.WithMetadata(apperrors.CodeTemplateInvalid,
				"predicate name is required",
				map[string]string{"Detail": "predicate name is required"})
		}
		if known != nil && !known(name) {
			return apperrors.WithMetadata(apperrors.CodeTemplateUnknownPredicate,
				"unknown predicate",
				map[string]string{"Predicate": name})
		}
	}
	return nil
}

// String renders the tree in a compact prefix form for diagnostics, e.g.
// "all(reviewers_locked_in, not(deadline_elapsed))".
func (c *Condition) String() string {
	if c == nil {
		return "always"
	}
	switch {
	case c.All != nil:
		return "all(" + joinConditions(c.All) + ")"
	case c.Any != nil:
		return "any(" + joinConditions(c.Any) + ")"
	case c.Not != nil:
		return "not(" + c.Not.String() + ")"
	case c.When != nil:
		if len(c.When.Args) == 0 {
			return c.When.Name
		}
		keys := make([]string, 0, len(c.When.Args))
		for k := range c.When.Args {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+"="+c.When.Args[k])
		}
		return c.When.Name + "[" + strings.Join(parts, " ") + "]"
	default:
		return "invalid"
	}
}

func joinConditions(children []*Condition) string {
	parts := make([]string, 0, len(children))
	for _, child := range children {
		parts = append(parts, child.String())
	}
	return strings.Join(parts, ", ")
}

func emptyCombinator(kind string) error {
	return apperrors.WithMetadata(apperrors.CodeTemplateInvalid,
		"combinator requires at least one child",
		map[string]string{"Detail": kind + " requires at least one child"})
}
