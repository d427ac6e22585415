// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Veltrix Contributors

package pipeline

import (
	"context"

	"github.com/veltrix/dispatch/internal/argsource"
	"github.com/veltrix/dispatch/internal/catalog"
	"github.com/veltrix/dispatch/internal/parser"
	"github.com/veltrix/dispatch/internal/result"
	"github.com/veltrix/dispatch/internal/schema"
)

// parseCommand implements the Parser Plumbing from spec.md §4.4: for each
// parameter in declared order, resolve a remainder, recurse into a
// constructible, or resolve a leaf value via the Parser Registry. The
// first failure stops the walk and is returned as the pipeline's parse
// Result. If src was built from a JSON payload (internal/argsource's
// Object-variant path, spec.md §9), the payload is validated against the
// command's schema before any parameter is touched.
func parseCommand(ctx context.Context, registry *parser.Registry, cmd *catalog.Command, src *argsource.Source, remainderSeparator string) ([]any, result.Result) {
	if payload, ok := src.RawJSON(); ok {
		if err := schema.ValidateObjectArgs(cmd, payload); err != nil {
			return nil, result.ParseFailure(cmd.FullName(), err)
		}
	}

	values := make([]any, 0, len(cmd.Parameters))
	for _, p := range cmd.Parameters {
		if err := ctx.Err(); err != nil {
			return nil, result.Canceled()
		}
		switch {
		case p.IsRemainder:
			if p.IsCollection {
				values = append(values, src.TakeRemaining())
			} else {
				values = append(values, src.JoinRemaining(remainderSeparator))
			}
			return values, result.Result{Variant: result.VariantSuccess}
		case p.IsConstructible():
			v, res := parseConstructible(ctx, registry, p, src)
			if !res.IsSuccess() {
				return nil, res
			}
			values = append(values, v)
		default:
			v, res := parseLeaf(ctx, registry, p, src)
			if !res.IsSuccess() {
				return nil, res
			}
			values = append(values, v)
		}
	}
	return values, result.Result{Variant: result.VariantSuccess}
}

func parseLeaf(ctx context.Context, registry *parser.Registry, p *catalog.Parameter, src *argsource.Source) (any, result.Result) {
	raw, found := src.TryNext(p.Name)
	if !found {
		if p.IsOptional {
			return p.Default, result.Result{Variant: result.VariantSuccess}
		}
		return nil, result.MissingArgument(p.Name)
	}

	resolved := p.Parser
	if resolved == nil {
		var err error
		resolved, err = registry.Get(p.Type)
		if err != nil {
			return nil, result.ParseFailure(p.Name, err)
		}
	}
	v, err := resolved.Parse(ctx, raw)
	if err != nil {
		return nil, result.ParseFailure(p.Name, err)
	}
	return v, result.Result{Variant: result.VariantSuccess}
}

// parseConstructible recursively parses a constructible parameter's
// children from the same source and invokes its activator (spec.md
// §4.4 step 2). If all children succeed, the activator builds the
// aggregate; if any child fails (missing or unparsable) and the
// constructible itself is optional, a Missing placeholder (nil) is
// returned instead of the child's error.
func parseConstructible(ctx context.Context, registry *parser.Registry, p *catalog.Parameter, src *argsource.Source) (any, result.Result) {
	childValues := make([]any, 0, len(p.Children))
	for _, child := range p.Children {
		switch {
		case child.IsConstructible():
			v, res := parseConstructible(ctx, registry, child, src)
			if !res.IsSuccess() {
				if p.IsOptional {
					return nil, result.Result{Variant: result.VariantSuccess}
				}
				return nil, res
			}
			childValues = append(childValues, v)
		default:
			v, res := parseLeaf(ctx, registry, child, src)
			if !res.IsSuccess() {
				if p.IsOptional {
					return nil, result.Result{Variant: result.VariantSuccess}
				}
				return nil, res
			}
			childValues = append(childValues, v)
		}
	}
	v, err := p.Activator(childValues)
	if err != nil {
		return nil, result.ParseFailure(p.Name, err)
	}
	return v, result.Result{Variant: result.VariantSuccess}
}

// lengthGate implements spec.md §4.4's gating rule: parse only if
// mn ≤ L ≤ mx, or the command has a remainder and L ≥ mn.
func lengthGate(length int, cmd *catalog.Command) result.Result {
	if cmd.HasRemainder && length >= cmd.MinLength {
		return result.Result{Variant: result.VariantSuccess}
	}
	if length < cmd.MinLength {
		return result.TooShort(length, cmd.MinLength)
	}
	if length > cmd.MaxLength {
		return result.TooLong(length, cmd.MaxLength)
	}
	return result.Result{Variant: result.VariantSuccess}
}
