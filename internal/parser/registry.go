// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Veltrix Contributors

// Package parser implements the Parser Registry: resolution of a target
// type to a Parser, including on-demand synthesis of enum, array, list,
// and set parsers (spec.md §4.1).
package parser

import (
	"context"
	"reflect"
	"sync"

	"github.com/samber/oops"

	"github.com/veltrix/dispatch/internal/argsource"
)

// Parser converts a single raw value into a typed Go value. Parsers must
// be side-effect-free (spec.md §6 "Parser contract").
type Parser interface {
	Parse(ctx context.Context, raw argsource.RawValue) (any, error)
}

// ParseFunc adapts a plain function to the Parser interface.
type ParseFunc func(ctx context.Context, raw argsource.RawValue) (any, error)

// Parse implements Parser.
func (f ParseFunc) Parse(ctx context.Context, raw argsource.RawValue) (any, error) {
	return f(ctx, raw)
}

// EnumValues describes an enum's name/ordinal table for the synthesized
// Enum Parser, which accepts case-insensitive name or ordinal text.
type EnumValues struct {
	Type      reflect.Type
	ByName    map[string]any // canonical-cased name -> value
	ByOrdinal []any          // index i holds the value for ordinal i
}

// CollectionKind distinguishes the composite shapes spec.md §4.1 step 4
// recognizes beyond plain arrays.
type CollectionKind int

const (
	KindList CollectionKind = iota
	KindSet
)

// Registry resolves a reflect.Type to a Parser, synthesizing and memoizing
// composite parsers on demand. Registries are built once at startup and
// treated as read-only afterward (spec.md §5 "Shared state").
type Registry struct {
	mu      sync.RWMutex
	direct  map[reflect.Type]Parser
	enums   map[reflect.Type]EnumValues
	synth   sync.Map // reflect.Type -> Parser, memoized composite parsers
	maxDepth int
}

// NewRegistry creates an empty registry with the built-in primitive
// parsers (string, bool, int, int64, float64) pre-registered — the
// minimal plug-in set spec.md §1 otherwise treats as an external
// collaborator, kept here so the seeded end-to-end scenarios in §8 run
// without a host wiring its own.
func NewRegistry() *Registry {
	r := &Registry{
		direct: make(map[reflect.Type]Parser),
		enums:  make(map[reflect.Type]EnumValues),
	}
	registerBuiltins(r)
	return r
}

// Register installs a parser for an exact type. Subsequent synthesis (array,
// list, set) over that type reuses it as the element parser.
func (r *Registry) Register(t reflect.Type, p Parser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.direct[t] = p
}

// RegisterEnum installs an enum descriptor so Get can synthesize an Enum
// Parser for it on first request.
func (r *Registry) RegisterEnum(values EnumValues) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enums[values.Type] = values
}

// Get resolves a parser for t following spec.md §4.1's resolution order:
// exact hit, enum synthesis, array synthesis, list/set synthesis, else
// UnsupportedType. Synthesized parsers are memoized per element type.
func (r *Registry) Get(t reflect.Type) (Parser, error) {
	r.mu.RLock()
	if p, ok := r.direct[t]; ok {
		r.mu.RUnlock()
		return p, nil
	}
	enumVals, isEnum := r.enums[t]
	r.mu.RUnlock()

	if cached, ok := r.synth.Load(t); ok {
		return cached.(Parser), nil
	}

	if isEnum {
		p := newEnumParser(enumVals)
		r.synth.Store(t, p)
		return p, nil
	}

	switch t.Kind() {
	case reflect.Slice:
		elem := t.Elem()
		if isCollectionKind(elem) {
			return nil, unsupportedType(t, "nested collections are rejected")
		}
		elemParser, err := r.Get(elem)
		if err != nil {
			return nil, err
		}
		p := newSequenceParser(elemParser, KindList, t)
		r.synth.Store(t, p)
		return p, nil
	case reflect.Map:
		if t.Elem() != reflect.TypeOf(struct{}{}) {
			return nil, unsupportedType(t, "map target types must be a set shape (map[T]struct{})")
		}
		elem := t.Key()
		if isCollectionKind(elem) {
			return nil, unsupportedType(t, "nested collections are rejected")
		}
		elemParser, err := r.Get(elem)
		if err != nil {
			return nil, err
		}
		p := newSequenceParser(elemParser, KindSet, t)
		r.synth.Store(t, p)
		return p, nil
	default:
		return nil, unsupportedType(t, "no parser registered")
	}
}

func isCollectionKind(t reflect.Type) bool {
	return t.Kind() == reflect.Slice || t.Kind() == reflect.Map
}

func unsupportedType(t reflect.Type, reason string) error {
	return oops.Code("UNSUPPORTED_TYPE").
		With("type", t.String()).
		Errorf("unsupported parameter type %s: %s", t, reason)
}
