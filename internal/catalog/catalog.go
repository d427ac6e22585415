// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Veltrix Contributors

// Package catalog implements the Component Catalog and Search described in
// spec.md §4.2: a trie-like hierarchy of Groups and Commands, alias lookup,
// and deterministic priority/score ranking of matching candidates.
package catalog

import (
	"math"
	"reflect"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/samber/lo"

	"github.com/veltrix/dispatch/internal/argsource"
	"github.com/veltrix/dispatch/internal/condition"
	"github.com/veltrix/dispatch/internal/parser"
	"github.com/veltrix/dispatch/internal/result"
)

// MaxConstructibleDepth bounds nested constructible parameters (spec.md §3
// "no nested constructibles beyond configured depth"). Ambient safety
// bound, not a feature.
const MaxConstructibleDepth = 8

// Invoker is a command body. It is invoked after parsing and pre-condition
// evaluation, and returns the value (or error) that flows into post
// conditions and the Result Model.
type Invoker func(ctx InvokeContext) (any, error)

// InvokeContext is the narrow view a command body receives. Callers in
// the pipeline package populate it; the catalog package only defines the
// shape so Command stays decoupled from pipeline concerns.
type InvokeContext struct {
	Caller   any
	Args     []any
	Services any
}

// Parameter is either a leaf (resolved via the Parser Registry) or a
// constructible (an aggregate built by recursively parsing child
// parameters in place), per spec.md §3's two Parameter rows.
type Parameter struct {
	Name         string
	Type         reflect.Type
	IsOptional   bool
	Default      any
	IsCollection bool
	IsRemainder  bool
	IsNullable   bool

	// Constructible-only fields. Children non-empty marks a parameter as
	// constructible; a constructible parameter must have at least one
	// child (spec.md §3 invariant).
	Children  []*Parameter
	Activator func(children []any) (any, error)

	// Parser overrides registry resolution when set; otherwise the
	// Parser Registry resolves Type on demand.
	Parser parser.Parser
}

// IsConstructible reports whether p is the constructible Parameter shape.
func (p *Parameter) IsConstructible() bool { return len(p.Children) > 0 }

// Component is the umbrella type for Groups and Commands (GLOSSARY).
type Component interface {
	Aliases() []string
	IsDefault() bool
}

// Group is a named component that contains children (spec.md §3).
type Group struct {
	aliases        []string
	parent         *Group
	children       []Component
	isDefault      bool
	PreConditions  []condition.Condition
	PostConditions []condition.Condition
}

// NewGroup creates a Group with the given aliases.
func NewGroup(aliases ...string) *Group {
	return &Group{aliases: aliases}
}

// Aliases implements Component.
func (g *Group) Aliases() []string { return g.aliases }

// IsDefault implements Component. Groups are never yielded as default
// commands themselves; this always reports false.
func (g *Group) IsDefault() bool { return false }

// Parent returns the group's parent, or nil at the root.
func (g *Group) Parent() *Group { return g.parent }

// Children returns a defensive copy of the group's children.
func (g *Group) Children() []Component {
	out := make([]Component, len(g.children))
	copy(out, g.children)
	return out
}

// Command is an executable leaf component (spec.md §3).
type Command struct {
	aliases        []string
	parent         *Group
	isDefault      bool
	Parameters     []*Parameter
	MinLength      int
	MaxLength      int // math.MaxInt32 sentinel for "infinite" (has remainder)
	HasRemainder   bool
	Invoker        Invoker
	Priority       int
	PreConditions  []condition.Condition
	PostConditions []condition.Condition

	score float64
}

// NewCommand creates a Command. aliases may be empty only when the
// command is registered as its parent's default command via
// WithDefault(true) (spec.md §3 invariant).
func NewCommand(invoker Invoker, aliases ...string) *Command {
	return &Command{Invoker: invoker, aliases: aliases, MaxLength: math.MaxInt32}
}

// WithDefault marks the command as its parent group's default command.
func (c *Command) WithDefault(isDefault bool) *Command {
	c.isDefault = isDefault
	return c
}

// WithPriority sets the search-ranking priority (higher wins ties first).
func (c *Command) WithPriority(priority int) *Command {
	c.Priority = priority
	return c
}

// WithParameters sets the command's parameters and derives MinLength,
// MaxLength, and HasRemainder from them, replacing any earlier values; call
// WithLength afterwards to override the derived lengths.
func (c *Command) WithParameters(params ...*Parameter) *Command {
	c.Parameters = params
	min, max, hasRemainder := deriveLengths(params)
	c.MinLength, c.MaxLength, c.HasRemainder = min, max, hasRemainder
	c.score = computeScore(params)
	return c
}

// WithLength overrides the derived MinLength/MaxLength.
func (c *Command) WithLength(min, max int) *Command {
	c.MinLength, c.MaxLength = min, max
	return c
}

// Aliases implements Component.
func (c *Command) Aliases() []string { return c.aliases }

// IsDefault implements Component.
func (c *Command) IsDefault() bool { return c.isDefault }

// Parent returns the command's parent group, or nil at the root.
func (c *Command) Parent() *Group { return c.parent }

// Score returns the command's structural specificity (spec.md §4.2 "Score").
func (c *Command) Score() float64 { return c.score }

// FullName joins the command's ancestor aliases with its own first alias,
// for diagnostics (e.g. "math sum").
func (c *Command) FullName() string {
	var parts []string
	for g := c.parent; g != nil; g = g.parent {
		if len(g.aliases) > 0 {
			parts = append([]string{g.aliases[0]}, parts...)
		}
	}
	if len(c.aliases) > 0 {
		parts = append(parts, c.aliases[0])
	}
	return joinSpace(parts)
}

func joinSpace(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += " "
		}
		out += p
	}
	return out
}

func deriveLengths(params []*Parameter) (min, max int, hasRemainder bool) {
	for _, p := range params {
		if p.IsRemainder {
			hasRemainder = true
			continue
		}
		max++
		if !p.IsOptional {
			min++
		}
	}
	if hasRemainder {
		max = math.MaxInt32
	}
	return min, max, hasRemainder
}

func paramContribution(p *Parameter) float64 {
	if p.IsConstructible() {
		var sum float64
		for _, child := range p.Children {
			sum += paramContribution(child)
		}
		return sum
	}
	c := 1.0
	if p.IsOptional {
		c -= 0.5
	}
	if p.IsNullable {
		c -= 0.25
	}
	return c
}

func computeScore(params []*Parameter) float64 {
	score := 1.0
	for _, p := range params {
		score += paramContribution(p)
	}
	return score
}

// Candidate is a Search result: a command paired with the number of
// leading positional tokens its name path consumed.
type Candidate struct {
	Command      *Command
	SearchHeight int
}

// tokenPeeker is the narrow slice of argsource.Source that Search needs.
// Defining it locally (rather than importing argsource.Source directly)
// keeps catalog decoupled from the argument source's mutation methods.
type tokenPeeker interface {
	TryPeekPositional(i int) (string, bool)
}

var _ tokenPeeker = (*argsource.Source)(nil)

// Catalog owns the registered Group/Command hierarchy. It is safe for
// concurrent reads once Freeze has been called; registration must not
// overlap with execution (spec.md §5).
type Catalog struct {
	mu       sync.Mutex
	root     *Group
	comparer argsource.Comparer
	frozen   atomic.Bool
}

// New creates an empty Catalog rooted at an anonymous Group.
func New(comparer argsource.Comparer) *Catalog {
	return &Catalog{root: &Group{}, comparer: comparer}
}

// Root returns the catalog's root group, the implicit parent of every
// top-level registration.
func (c *Catalog) Root() *Group { return c.root }

// Register appends component to parent's children (or the root's, if
// parent is nil). Returns BuildError on a duplicate alias among siblings
// or an invalid command shape (spec.md §4.2, §8 invariants 1–3).
func (c *Catalog) Register(component Component, parent *Group) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.frozen.Load() {
		return result.BuildError("catalog is frozen: registration and execution must not overlap")
	}
	if parent == nil {
		parent = c.root
	}
	if err := validateComponent(component); err != nil {
		return err
	}
	if err := checkDuplicateAlias(parent, component, c.comparer); err != nil {
		return err
	}
	switch v := component.(type) {
	case *Group:
		v.parent = parent
	case *Command:
		v.parent = parent
	}
	parent.children = append(parent.children, component)
	return nil
}

func validateComponent(component Component) error {
	cmd, ok := component.(*Command)
	if !ok {
		return nil
	}
	if cmd.Invoker == nil {
		return result.BuildError("command has no invoker", "command", cmd.FullName())
	}
	if cmd.MinLength > cmd.MaxLength {
		return result.BuildError("min-length exceeds max-length", "command", cmd.FullName())
	}
	if len(cmd.aliases) == 0 && !cmd.isDefault {
		return result.BuildError("non-default command requires at least one alias", "command", cmd.FullName())
	}
	remainderCount := 0
	for i, p := range cmd.Parameters {
		if p.IsRemainder {
			remainderCount++
			if i != len(cmd.Parameters)-1 {
				return result.BuildError("remainder parameter must be last", "command", cmd.FullName())
			}
		}
		if depth := constructibleDepth(p, 0); depth > MaxConstructibleDepth {
			return result.BuildError("constructible parameter nesting exceeds maximum depth",
				"command", cmd.FullName(), "max_depth", MaxConstructibleDepth)
		}
		if p.IsConstructible() && len(p.Children) == 0 {
			return result.BuildError("constructible parameter must have at least one child", "parameter", p.Name)
		}
	}
	if remainderCount > 1 {
		return result.BuildError("at most one remainder parameter is allowed", "command", cmd.FullName())
	}
	return nil
}

func constructibleDepth(p *Parameter, depth int) int {
	if !p.IsConstructible() {
		return depth
	}
	maxChild := depth
	for _, child := range p.Children {
		if d := constructibleDepth(child, depth+1); d > maxChild {
			maxChild = d
		}
	}
	return maxChild
}

// checkDuplicateAlias enforces spec.md §8 invariant 1 ("alias sets are
// pairwise disjoint among siblings") with one deliberate exception: two
// sibling Commands may share an alias to form an overload set, the basis
// for the priority/score ranking Search performs (spec.md §8 "Overload
// with higher priority chosen first"). A Group's own alias set must still
// be disjoint from every sibling, command or group, since a name path
// segment can only mean one kind of thing.
func checkDuplicateAlias(parent *Group, component Component, comparer argsource.Comparer) error {
	_, newIsCommand := component.(*Command)

	seenByGroup := make(map[string]bool, len(parent.children))
	seenByCommand := make(map[string]bool, len(parent.children))
	for _, sibling := range parent.children {
		_, siblingIsCommand := sibling.(*Command)
		for _, a := range sibling.Aliases() {
			key := normalizeAlias(a, comparer)
			if siblingIsCommand {
				seenByCommand[key] = true
			} else {
				seenByGroup[key] = true
			}
		}
	}

	for _, a := range component.Aliases() {
		key := normalizeAlias(a, comparer)
		if seenByGroup[key] {
			return result.BuildError("alias collides with a sibling group", "alias", a)
		}
		if !newIsCommand && seenByCommand[key] {
			return result.BuildError("alias collides with a sibling command", "alias", a)
		}
	}
	return nil
}

func normalizeAlias(a string, comparer argsource.Comparer) string {
	if comparer == argsource.OrdinalIgnoreCase {
		return strings.ToLower(a)
	}
	return a
}

// Freeze marks the catalog read-only. Called once before the first
// execution (spec.md §5 "freeze on first execute").
func (c *Catalog) Freeze() {
	c.frozen.Store(true)
}

// Frozen reports whether Freeze has been called.
func (c *Catalog) Frozen() bool { return c.frozen.Load() }

// Search walks the hierarchy against the given token source, yielding
// candidates ordered by priority (descending), then score (descending),
// then registration/traversal order (spec.md §4.2 "Search algorithm").
func (c *Catalog) Search(tokens tokenPeeker) []Candidate {
	var candidates []Candidate
	var walk func(group *Group, i int)
	walk = func(group *Group, i int) {
		for _, child := range group.children {
			if cmd, ok := child.(*Command); ok && cmd.isDefault {
				candidates = append(candidates, Candidate{Command: cmd, SearchHeight: i})
			}
		}
		tok, ok := tokens.TryPeekPositional(i)
		if !ok {
			return
		}
		for _, child := range group.children {
			if !aliasMatches(child.Aliases(), tok, c.comparer) {
				continue
			}
			switch v := child.(type) {
			case *Group:
				walk(v, i+1)
			case *Command:
				if !v.isDefault {
					candidates = append(candidates, Candidate{Command: v, SearchHeight: i + 1})
				}
			}
		}
	}
	walk(c.root, 0)

	sort.SliceStable(candidates, func(a, b int) bool {
		ca, cb := candidates[a].Command, candidates[b].Command
		if ca.Priority != cb.Priority {
			return ca.Priority > cb.Priority
		}
		return ca.score > cb.score
	})
	return candidates
}

func aliasMatches(aliases []string, token string, comparer argsource.Comparer) bool {
	return lo.SomeBy(aliases, func(a string) bool {
		return normalizeAlias(a, comparer) == normalizeAlias(token, comparer)
	})
}
