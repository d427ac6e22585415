// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Veltrix Contributors

package parser

import (
	"context"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/samber/oops"

	"github.com/veltrix/dispatch/internal/argsource"
)

func registerBuiltins(r *Registry) {
	r.Register(reflect.TypeOf(""), ParseFunc(parseString))
	r.Register(reflect.TypeOf(false), ParseFunc(parseBool))
	r.Register(reflect.TypeOf(int(0)), ParseFunc(parseInt))
	r.Register(reflect.TypeOf(int64(0)), ParseFunc(parseInt64))
	r.Register(reflect.TypeOf(float64(0)), ParseFunc(parseFloat64))
}

func stringOf(raw argsource.RawValue) (string, bool) {
	if raw.IsObject {
		return "", false
	}
	return raw.Str, true
}

func parseString(_ context.Context, raw argsource.RawValue) (any, error) {
	s, ok := stringOf(raw)
	if !ok {
		return nil, oops.Code("PARSE_TYPE_MISMATCH").Errorf("expected a string, got an object value")
	}
	return s, nil
}

func parseBool(_ context.Context, raw argsource.RawValue) (any, error) {
	s, ok := stringOf(raw)
	if !ok {
		return nil, oops.Code("PARSE_TYPE_MISMATCH").Errorf("expected a string, got an object value")
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return nil, oops.Code("PARSE_BOOL").Wrapf(err, "%q is not a boolean", s)
	}
	return v, nil
}

func parseInt(_ context.Context, raw argsource.RawValue) (any, error) {
	s, ok := stringOf(raw)
	if !ok {
		return nil, oops.Code("PARSE_TYPE_MISMATCH").Errorf("expected a string, got an object value")
	}
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return nil, oops.Code("PARSE_INT").Wrapf(err, "%q is not an integer", s)
	}
	return v, nil
}

func parseInt64(_ context.Context, raw argsource.RawValue) (any, error) {
	s, ok := stringOf(raw)
	if !ok {
		return nil, oops.Code("PARSE_TYPE_MISMATCH").Errorf("expected a string, got an object value")
	}
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return nil, oops.Code("PARSE_INT64").Wrapf(err, "%q is not an integer", s)
	}
	return v, nil
}

func parseFloat64(_ context.Context, raw argsource.RawValue) (any, error) {
	s, ok := stringOf(raw)
	if !ok {
		return nil, oops.Code("PARSE_TYPE_MISMATCH").Errorf("expected a string, got an object value")
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil, oops.Code("PARSE_FLOAT").Wrapf(err, "%q is not a number", s)
	}
	return v, nil
}

// newEnumParser synthesizes a Parser accepting case-insensitive name or
// ordinal text, per spec.md §4.1 step 2.
func newEnumParser(values EnumValues) Parser {
	lowerByName := make(map[string]any, len(values.ByName))
	for name, v := range values.ByName {
		lowerByName[strings.ToLower(name)] = v
	}
	return ParseFunc(func(_ context.Context, raw argsource.RawValue) (any, error) {
		s, ok := stringOf(raw)
		if !ok {
			return nil, oops.Code("PARSE_TYPE_MISMATCH").Errorf("expected a string, got an object value")
		}
		if v, ok := lowerByName[strings.ToLower(s)]; ok {
			return v, nil
		}
		if ordinal, err := strconv.Atoi(s); err == nil {
			if ordinal >= 0 && ordinal < len(values.ByOrdinal) {
				return values.ByOrdinal[ordinal], nil
			}
		}
		return nil, oops.Code("PARSE_ENUM").
			With("type", values.Type.String()).
			Errorf("%q is not a valid %s value", s, values.Type.Name())
	})
}

// newSequenceParser synthesizes an Array/List/Set Parser wrapping elem.
// The input is an object sequence; each element is parsed independently
// and the first element failure short-circuits with an index-tagged error
// (spec.md §4.1).
func newSequenceParser(elem Parser, kind CollectionKind, target reflect.Type) Parser {
	return ParseFunc(func(ctx context.Context, raw argsource.RawValue) (any, error) {
		elems, err := elementsOf(raw)
		if err != nil {
			return nil, err
		}
		out := reflect.MakeSlice(reflect.SliceOf(target.Elem()), 0, len(elems))
		if kind == KindSet {
			out = reflect.MakeSlice(reflect.SliceOf(target.Key()), 0, len(elems))
		}
		seen := make(map[any]bool)
		for i, e := range elems {
			v, err := elem.Parse(ctx, e)
			if err != nil {
				return nil, oops.Code("PARSE_ELEMENT").
					With("index", i).
					Wrapf(err, "element %d failed to parse", i)
			}
			if kind == KindSet {
				if seen[v] {
					continue
				}
				seen[v] = true
			}
			out = reflect.Append(out, reflect.ValueOf(v))
		}
		if kind == KindSet {
			return buildSet(target, out), nil
		}
		return out.Interface(), nil
	})
}

func buildSet(target reflect.Type, keys reflect.Value) any {
	set := reflect.MakeMapWithSize(target, keys.Len())
	empty := reflect.ValueOf(struct{}{})
	for i := 0; i < keys.Len(); i++ {
		set.SetMapIndex(keys.Index(i), empty)
	}
	return set.Interface()
}

// elementsOf normalizes a raw value carrying a collection into a sequence
// of per-element RawValues. Accepts an Object slice, or a whitespace-split
// string as a convenience for host callers passing raw text.
func elementsOf(raw argsource.RawValue) ([]argsource.RawValue, error) {
	if raw.IsObject {
		switch v := raw.Obj.(type) {
		case []argsource.RawValue:
			return v, nil
		case []any:
			out := make([]argsource.RawValue, len(v))
			for i, e := range v {
				if s, ok := e.(string); ok {
					out[i] = argsource.String(s)
				} else {
					out[i] = argsource.Object(e)
				}
			}
			return out, nil
		default:
			return nil, oops.Code("PARSE_TYPE_MISMATCH").Errorf("expected an object sequence, got %s", fmt.Sprintf("%T", v))
		}
	}
	fields := strings.Fields(raw.Str)
	out := make([]argsource.RawValue, len(fields))
	for i, f := range fields {
		out[i] = argsource.String(f)
	}
	return out, nil
}
