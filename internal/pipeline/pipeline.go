// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Veltrix Contributors

// Package pipeline implements the Pipeline described in spec.md §4.6: the
// ordered Search -> Parse -> pre-condition -> Invoke -> post-condition walk
// that turns raw caller input into exactly one Result, iterating over
// Search candidates in ranked order until one clears every gate or all are
// exhausted.
package pipeline

import (
	"context"
	"log/slog"
	"strings"

	"github.com/samber/oops"

	"github.com/veltrix/dispatch/internal/argsource"
	"github.com/veltrix/dispatch/internal/catalog"
	"github.com/veltrix/dispatch/internal/condition"
	"github.com/veltrix/dispatch/internal/logging"
	"github.com/veltrix/dispatch/internal/metrics"
	"github.com/veltrix/dispatch/internal/parser"
	"github.com/veltrix/dispatch/internal/result"
	"github.com/veltrix/dispatch/pkg/errutil"
)

// Mode selects how Execute delivers its Result, mirroring spec.md §6's
// "Await" and "Discard" execution modes.
type Mode int

const (
	// Await blocks until the Result is ready and returns it directly.
	Await Mode = iota
	// Discard runs the pipeline on a detached goroutine and hands the
	// Result to the ResultHandler chain only; Execute returns immediately
	// with a zero Result.
	Discard
)

// ResultHandler receives the terminal Result of an execution. Handlers run
// synchronously in registration order and must not block indefinitely;
// they are the extension point spec.md §6 calls "Result Handler chain".
type ResultHandler func(ctx context.Context, caller any, r result.Result)

// Options configures a Manager's behavior for every execution. The
// Execute* methods take no options of their own, so there is no per-call
// override.
type Options struct {
	Mode                    Mode
	SkipPreconditions       bool
	SkipPostconditions      bool
	RemainderSeparator      string
	NameComparer            argsource.Comparer
	FallbackOnInvokeFailure bool
	Services                any

	// Tokenizer splits an ExecuteString command line into positional
	// tokens. Full tokenization (quoting, escaping) is an external
	// collaborator per spec.md §1; this defaults to a strings.Fields
	// shim and exists so a host can plug in its own without forking the
	// pipeline.
	Tokenizer func(line string) []string
}

func (o Options) withDefaults() Options {
	if o.RemainderSeparator == "" {
		o.RemainderSeparator = " "
	}
	if o.Tokenizer == nil {
		o.Tokenizer = strings.Fields
	}
	return o
}

// Manager ties the Component Catalog, Parser Registry, and Condition Set
// together into the runnable pipeline (spec.md §4.6). It is safe for
// concurrent Execute calls once the underlying catalog is frozen.
type Manager struct {
	catalog  *catalog.Catalog
	registry *parser.Registry
	options  Options
	handlers []ResultHandler
	logger   *slog.Logger
}

// New creates a Manager over an already-populated catalog and parser
// registry.
func New(cat *catalog.Catalog, registry *parser.Registry, opts Options, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		catalog:  cat,
		registry: registry,
		options:  opts.withDefaults(),
		logger:   logger,
	}
}

// OnResult appends a handler to the Result Handler chain. Handlers run in
// the order they were added, after every candidate has been exhausted or
// one has fully succeeded or failed.
func (m *Manager) OnResult(h ResultHandler) {
	m.handlers = append(m.handlers, h)
}

// ExecuteString runs the pipeline over a whitespace-tokenized command line,
// the common entry point for a text-driven frontend.
func (m *Manager) ExecuteString(ctx context.Context, caller any, line string) result.Result {
	tokens := m.options.Tokenizer(line)
	src := argsource.FromStrings(tokens, m.options.NameComparer)
	return m.execute(ctx, caller, src)
}

// Execute runs the pipeline over a purely positional object sequence (for
// programmatic callers that already hold typed arguments).
func (m *Manager) Execute(ctx context.Context, caller any, positional []argsource.RawValue) result.Result {
	src := argsource.New(positional, m.options.NameComparer)
	return m.execute(ctx, caller, src)
}

// ExecuteNamed runs the pipeline over key/value pairs, letting named
// arguments satisfy parameters out of declaration order (spec.md §4.3).
func (m *Manager) ExecuteNamed(ctx context.Context, caller any, pairs []argsource.KV) result.Result {
	src := argsource.FromKV(pairs, m.options.NameComparer)
	return m.execute(ctx, caller, src)
}

// ExecuteJSON runs the pipeline over leading positional name-path tokens
// plus a JSON object payload for the remaining arguments — spec.md §9's
// Object-variant argument path. The resolved command's declared
// parameters validate the payload (internal/schema) before parseCommand
// ever reaches the Parser Registry with it.
func (m *Manager) ExecuteJSON(ctx context.Context, caller any, nameTokens []string, payload []byte) result.Result {
	src, err := argsource.FromJSON(nameTokens, payload, m.options.NameComparer)
	if err != nil {
		return result.ParseFailure("<payload>", err)
	}
	return m.execute(ctx, caller, src)
}

func (m *Manager) execute(ctx context.Context, caller any, src *argsource.Source) result.Result {
	if m.options.Mode == Discard {
		detached := context.WithoutCancel(ctx)
		go func() {
			scope := newScope(m.options.Services)
			defer scope.Close()
			scoped := logging.WithScopeID(detached, scope.ID.String())
			r := m.run(scoped, caller, src, scope)
			m.deliver(scoped, caller, r)
		}()
		return result.Result{}
	}

	scope := newScope(m.options.Services)
	defer scope.Close()
	scoped := logging.WithScopeID(ctx, scope.ID.String())
	r := m.run(scoped, caller, src, scope)
	m.deliver(scoped, caller, r)
	return r
}

func (m *Manager) deliver(ctx context.Context, caller any, r result.Result) {
	for _, h := range m.handlers {
		h(ctx, caller, r)
	}
}

// run walks ranked Search candidates until one clears every gate, matching
// spec.md §4.6: each candidate independently runs set_size, the length
// gate, parsing, pre-conditions, invocation, and post-conditions; a
// candidate's failure moves to the next candidate rather than aborting the
// whole execution, except for cancellation, a failed Invoke (terminal
// unless Options.FallbackOnInvokeFailure is set), and a successful Invoke
// (whose outcome is terminal regardless of post-condition result).
func (m *Manager) run(ctx context.Context, caller any, src *argsource.Source, scope *Scope) result.Result {
	if err := ctx.Err(); err != nil {
		return result.Canceled()
	}

	candidates := m.catalog.Search(src)
	if len(candidates) == 0 {
		return result.SearchFailure("<input>")
	}

	recorder := metrics.NewRecorder()
	var last result.Result
	for _, cand := range candidates {
		if err := ctx.Err(); err != nil {
			return result.Canceled()
		}
		recorder.SetCommandName(cand.Command.FullName())

		cmdSrc := src
		length := cmdSrc.SetSize(cand.SearchHeight)
		if gated := lengthGate(length, cand.Command); !gated.IsSuccess() {
			last = gated
			continue
		}

		args, parsed := parseCommand(ctx, m.registry, cand.Command, cmdSrc, m.options.RemainderSeparator)
		if !parsed.IsSuccess() {
			last = parsed
			continue
		}

		if !m.options.SkipPreconditions {
			if pre := m.evaluatePre(ctx, caller, cand.Command); !pre.IsSuccess() {
				last = pre
				continue
			}
		}

		invokeCtx := catalog.InvokeContext{Caller: caller, Args: args, Services: scope.Services}
		value, err := m.invoke(ctx, cand.Command, invokeCtx)
		if err != nil {
			invokeResult := result.InvokeFailure(err)
			if m.options.FallbackOnInvokeFailure {
				last = invokeResult
				continue
			}
			recorder.Finish(result.VariantInvoke)
			return invokeResult
		}

		success := result.Success(value)
		if !m.options.SkipPostconditions {
			if post := m.evaluatePost(ctx, caller, cand.Command, value); !post.IsSuccess() {
				recorder.Finish(post.Variant)
				return post
			}
		}
		recorder.Finish(result.VariantSuccess)
		return success
	}

	recorder.Finish(last.Variant)
	return last
}

// invoke runs a command body with panic isolation: a command body is
// caller-supplied code and must not be able to take down the pipeline's
// goroutine, particularly in Discard mode where nothing else would catch it.
func (m *Manager) invoke(ctx context.Context, cmd *catalog.Command, invokeCtx catalog.InvokeContext) (value any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = wrapUnexpected(rec)
			errutil.LogError(ctx, m.logger, "command body panicked: "+cmd.FullName(), err)
		}
	}()
	return cmd.Invoker(invokeCtx)
}

// inheritedConditions walks from the outermost ancestor group down to cmd,
// collecting each level's conditions in that order before appending the
// command's own, matching spec.md §4.5: "conditions attached to a command
// are the union of its own and every ancestor group's", evaluated
// ancestor-to-descendant.
func inheritedConditions(cmd *catalog.Command, pre bool) []condition.Condition {
	var groupChain []*catalog.Group
	for g := cmd.Parent(); g != nil; g = g.Parent() {
		groupChain = append(groupChain, g)
	}

	var conditions []condition.Condition
	for i := len(groupChain) - 1; i >= 0; i-- {
		g := groupChain[i]
		if pre {
			conditions = append(conditions, g.PreConditions...)
		} else {
			conditions = append(conditions, g.PostConditions...)
		}
	}
	if pre {
		conditions = append(conditions, cmd.PreConditions...)
	} else {
		conditions = append(conditions, cmd.PostConditions...)
	}
	return conditions
}

func (m *Manager) evaluatePre(ctx context.Context, caller any, cmd *catalog.Command) result.Result {
	conditions := inheritedConditions(cmd, true)
	if len(conditions) == 0 {
		return result.Result{Variant: result.VariantSuccess}
	}
	set := condition.NewSet(conditions)
	return set.Evaluate(ctx, condition.Pre, caller, cmd, m.options.Services)
}

func (m *Manager) evaluatePost(ctx context.Context, caller any, cmd *catalog.Command, value any) result.Result {
	conditions := inheritedConditions(cmd, false)
	if len(conditions) == 0 {
		return result.Success(value)
	}
	set := condition.NewSet(conditions)
	r := set.Evaluate(ctx, condition.Post, caller, value, m.options.Services)
	if !r.IsSuccess() {
		return r
	}
	return result.Success(value)
}

// wrapUnexpected gives a recovered command-body panic a consistent coded
// error shape so it flows through the ordinary InvokeFailure path.
func wrapUnexpected(v any) error {
	return oops.Code("INTERNAL_PANIC").Errorf("pipeline panic: %v", v)
}
