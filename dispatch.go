// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Veltrix Contributors

// Package dispatch is the public entry point for the command dispatch
// framework: a fluent Builder for registering Groups and Commands, and a
// Manager facade wiring the resulting catalog into the Pipeline (spec.md
// §6 "Host-facing surface").
package dispatch

import (
	"context"
	"log/slog"

	"github.com/veltrix/dispatch/internal/argsource"
	"github.com/veltrix/dispatch/internal/catalog"
	"github.com/veltrix/dispatch/internal/condition"
	"github.com/veltrix/dispatch/internal/parser"
	"github.com/veltrix/dispatch/internal/pipeline"
	"github.com/veltrix/dispatch/internal/result"
)

// Re-exported building blocks so a host only needs to import this one
// package for the common registration path.
type (
	Parameter     = catalog.Parameter
	Invoker       = catalog.Invoker
	InvokeContext = catalog.InvokeContext
	Condition     = condition.Condition
	RawValue      = argsource.RawValue
	KV            = argsource.KV
	Comparer      = argsource.Comparer
	Result        = result.Result
	Mode          = pipeline.Mode
	Options       = pipeline.Options
	ResultHandler = pipeline.ResultHandler
)

const (
	Await   = pipeline.Await
	Discard = pipeline.Discard

	OrdinalIgnoreCase = argsource.OrdinalIgnoreCase
	Ordinal           = argsource.Ordinal
)

// Str and Obj build RawValues for positional Execute calls.
func Str(s string) RawValue { return argsource.String(s) }
func Obj(v any) RawValue    { return argsource.Object(v) }

// UserMessage extracts a short, host-facing message from a Result,
// suitable for printing directly to an end user.
func UserMessage(r Result) string { return result.UserMessage(r) }

// NewCommand creates a Command with the given invoker and aliases, the
// standard starting point before chaining WithParameters/WithPriority/
// WithDefault (spec.md §3).
func NewCommand(invoker Invoker, aliases ...string) *catalog.Command {
	return catalog.NewCommand(invoker, aliases...)
}

// Builder accumulates Groups and Commands before the catalog is frozen.
// It is the only way a host constructs a Manager (spec.md §5
// "registration happens before the first execute, never concurrently
// with it").
type Builder struct {
	catalog  *catalog.Catalog
	registry *parser.Registry
	comparer argsource.Comparer
}

// NewBuilder creates an empty Builder. comparer controls both alias and
// named-argument matching (spec.md §9 Open Question 3); pass
// OrdinalIgnoreCase for the common case-insensitive default.
func NewBuilder(comparer argsource.Comparer) *Builder {
	return &Builder{
		catalog:  catalog.New(comparer),
		registry: parser.NewRegistry(),
		comparer: comparer,
	}
}

// Registry exposes the Builder's Parser Registry so a host can install
// custom parsers and enum descriptors before Build.
func (b *Builder) Registry() *parser.Registry { return b.registry }

// Root returns the catalog's root group, the implicit parent for
// top-level Group/Command registration.
func (b *Builder) Root() *catalog.Group { return b.catalog.Root() }

// Group registers a new Group under parent (or the root, if parent is
// nil) and returns it so further Commands and sub-Groups can be attached.
func (b *Builder) Group(parent *catalog.Group, aliases ...string) (*catalog.Group, error) {
	g := catalog.NewGroup(aliases...)
	if err := b.catalog.Register(g, parent); err != nil {
		return nil, err
	}
	return g, nil
}

// Command registers cmd under parent (or the root, if parent is nil).
func (b *Builder) Command(parent *catalog.Group, cmd *catalog.Command) error {
	return b.catalog.Register(cmd, parent)
}

// Build freezes the catalog and returns a Manager ready to execute.
// Registration on the Builder (or its Root group) after Build returns a
// BuildError from any further Command/Group call (spec.md §5).
func (b *Builder) Build(opts Options, logger *slog.Logger) *Manager {
	opts.NameComparer = b.comparer
	b.catalog.Freeze()
	return &Manager{inner: pipeline.New(b.catalog, b.registry, opts, logger)}
}

// Manager is the running, frozen dispatch host: the public wrapper around
// the Pipeline Manager (spec.md §4.6).
type Manager struct {
	inner *pipeline.Manager
}

// OnResult appends a handler to the Result Handler chain (spec.md §6).
func (m *Manager) OnResult(h ResultHandler) { m.inner.OnResult(h) }

// ExecuteString runs the pipeline over a whitespace-tokenized command line.
func (m *Manager) ExecuteString(ctx context.Context, caller any, line string) Result {
	return m.inner.ExecuteString(ctx, caller, line)
}

// Execute runs the pipeline over positional arguments.
func (m *Manager) Execute(ctx context.Context, caller any, positional []RawValue) Result {
	return m.inner.Execute(ctx, caller, positional)
}

// ExecuteNamed runs the pipeline over named (and optionally positional) pairs.
func (m *Manager) ExecuteNamed(ctx context.Context, caller any, pairs []KV) Result {
	return m.inner.ExecuteNamed(ctx, caller, pairs)
}

// ExecuteJSON runs the pipeline over leading positional name-path tokens
// plus a JSON object payload for the remaining arguments (spec.md §9's
// Object-variant argument path), validating the payload against the
// resolved command's declared parameters before the Parser Registry ever
// sees it.
func (m *Manager) ExecuteJSON(ctx context.Context, caller any, nameTokens []string, payload []byte) Result {
	return m.inner.ExecuteJSON(ctx, caller, nameTokens, payload)
}
