// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Veltrix Contributors

// Package condition implements the two-phase Condition Set described in
// spec.md §4.5: pre- and post-conditions attached to a command or
// inherited from ancestor groups, grouped by key (OR within a group, AND
// across groups), evaluated sequentially with short-circuit on the first
// decisive failure.
package condition

import (
	"context"

	"github.com/veltrix/dispatch/internal/result"
)

// Phase distinguishes pre-invoke from post-invoke evaluation.
type Phase int

const (
	Pre Phase = iota
	Post
)

// String returns "pre" or "post", used in ConditionFailure results.
func (p Phase) String() string {
	if p == Post {
		return "post"
	}
	return "pre"
}

// Evaluator is the Condition contract from spec.md §6: it may inspect the
// caller, the subject (the command before invoke, or the invoke result
// after), and the services handle, and returns nil on success or the
// rejection reason on failure.
type Evaluator func(ctx context.Context, caller any, subject any, services any) error

// Condition is a single pre- or post-condition with its group key
// (spec.md §3: "same group key ⇒ OR-grouped; distinct keys ⇒
// AND-combined").
type Condition struct {
	Phase    Phase
	GroupKey string
	Eval     Evaluator
}

// Set is the union of a command's own conditions and every ancestor
// group's, built fresh per invocation by the pipeline from the catalog
// hierarchy (spec.md §4.5 "Conditions attached to a command are the union
// of its own and every ancestor group's").
type Set struct {
	conditions []Condition
}

// NewSet builds a Set from an ordered slice of conditions. Order matters:
// groups are evaluated in first-seen order, and within a group conditions
// evaluate in the order given (registration order, ancestor-to-descendant).
func NewSet(conditions []Condition) *Set {
	return &Set{conditions: conditions}
}

// Evaluate runs every condition for the given phase, applying OR-within
// group / AND-across-groups semantics, and returns a success Result if
// every group was satisfied. It stops at the first context cancellation
// (a Canceled Result) or the first group that every one of its conditions
// rejected (a ConditionFailure Result).
func (s *Set) Evaluate(ctx context.Context, phase Phase, caller, subject, services any) result.Result {
	groups := make(map[string][]Evaluator)
	var order []string
	for _, c := range s.conditions {
		if c.Phase != phase {
			continue
		}
		if _, seen := groups[c.GroupKey]; !seen {
			order = append(order, c.GroupKey)
		}
		groups[c.GroupKey] = append(groups[c.GroupKey], c.Eval)
	}

	for _, key := range order {
		if err := ctx.Err(); err != nil {
			return result.Canceled()
		}
		var lastErr error
		satisfied := false
		for _, eval := range groups[key] {
			if err := eval(ctx, caller, subject, services); err != nil {
				lastErr = err
				continue
			}
			satisfied = true
			break
		}
		if !satisfied {
			return result.ConditionFailure(phase.String(), lastErr)
		}
	}
	return result.Result{Variant: result.VariantSuccess}
}
