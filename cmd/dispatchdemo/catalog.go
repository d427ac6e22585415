// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Veltrix Contributors

package main

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/veltrix/dispatch"
	"github.com/veltrix/dispatch/internal/condition"
)

// sessionCaller is a minimal condition.RateLimitSubject implementation so
// the demo's "greet" command can exercise the rate-limit pre-condition.
type sessionCaller struct {
	name string
	id   ulid.ULID
}

func (s sessionCaller) SessionID() ulid.ULID { return s.id }

// newBuilder creates a Builder with the framework's default comparer, for
// callers that have no loaded config to consult.
func newBuilder() *dispatch.Builder {
	return dispatch.NewBuilder(dispatch.OrdinalIgnoreCase)
}

// buildSampleCatalog registers the small math/greet catalog the demo
// binary exercises, the same scenario shape as the pipeline package's
// seeded end-to-end tests.
func buildSampleCatalog(b *dispatch.Builder, limiter *condition.RateLimiter) error {
	mathGroup, err := b.Group(nil, "math")
	if err != nil {
		return err
	}

	sum := dispatch.NewCommand(func(ctx dispatch.InvokeContext) (any, error) {
		a, b := ctx.Args[0].(int), ctx.Args[1].(int)
		return a + b, nil
	}, "sum", "add").WithParameters(
		&dispatch.Parameter{Name: "a", Type: reflect.TypeOf(int(0))},
		&dispatch.Parameter{Name: "b", Type: reflect.TypeOf(int(0))},
	)
	if err := b.Command(mathGroup, sum); err != nil {
		return err
	}

	greet := dispatch.NewCommand(func(ctx dispatch.InvokeContext) (any, error) {
		who := ctx.Args[0].(string)
		return fmt.Sprintf("Hello, %s!", who), nil
	}, "greet").WithParameters(
		&dispatch.Parameter{Name: "who", Type: reflect.TypeOf(""), IsOptional: true, Default: "world"},
	)
	greet.PreConditions = []dispatch.Condition{
		{Phase: condition.Pre, GroupKey: "ratelimit", Eval: condition.NewRateLimitCondition(limiter)},
	}
	if err := b.Command(nil, greet); err != nil {
		return err
	}

	echo := dispatch.NewCommand(func(ctx dispatch.InvokeContext) (any, error) {
		raw := ctx.Args[0].([]dispatch.RawValue)
		words := make([]string, len(raw))
		for i, v := range raw {
			words[i] = v.Str
		}
		return strings.Join(words, " "), nil
	}, "echo").WithParameters(
		&dispatch.Parameter{Name: "words", IsCollection: true, IsRemainder: true},
	)
	return b.Command(nil, echo)
}
