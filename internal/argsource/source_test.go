// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Veltrix Contributors

package argsource_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veltrix/dispatch/internal/argsource"
)

func TestSource_TryNext_PositionalOrder(t *testing.T) {
	s := argsource.FromStrings([]string{"2.5", "3"}, argsource.OrdinalIgnoreCase)

	v, ok := s.TryNext("a")
	require.True(t, ok)
	assert.Equal(t, "2.5", v.Str)

	v, ok = s.TryNext("b")
	require.True(t, ok)
	assert.Equal(t, "3", v.Str)

	_, ok = s.TryNext("c")
	assert.False(t, ok)
}

func TestSource_TryNext_NamedTakesPriority(t *testing.T) {
	s := argsource.FromKV([]argsource.KV{
		{Key: "b", Value: argsource.String("named-b")},
		{Key: "positional-one", Value: nil},
	}, argsource.OrdinalIgnoreCase)

	// Named lookup consumes "b" without touching the positional cursor.
	v, ok := s.TryNext("B")
	require.True(t, ok)
	assert.Equal(t, "named-b", v.Str)

	v, ok = s.TryNext("a")
	require.True(t, ok)
	assert.Equal(t, "positional-one", v.Str)
}

func TestSource_TryNext_NamedConsumedOnce(t *testing.T) {
	s := argsource.FromKV([]argsource.KV{{Key: "x", Value: argsource.String("v")}}, argsource.Ordinal)
	_, ok := s.TryNext("x")
	require.True(t, ok)
	_, ok = s.TryNext("x")
	assert.False(t, ok, "named entries are consumed exactly once")
}

func TestSource_TryPeekPositional(t *testing.T) {
	s := argsource.FromStrings([]string{"math", "sum", "2.5"}, argsource.OrdinalIgnoreCase)

	name, ok := s.TryPeekPositional(0)
	require.True(t, ok)
	assert.Equal(t, "math", name)

	_, ok = s.TryPeekPositional(10)
	assert.False(t, ok)
}

func TestSource_TryPeekPositional_ObjectSlotNeverMatches(t *testing.T) {
	s := argsource.New([]argsource.RawValue{argsource.Object(42)}, argsource.OrdinalIgnoreCase)
	_, ok := s.TryPeekPositional(0)
	assert.False(t, ok)
}

func TestSource_SetSize(t *testing.T) {
	s := argsource.FromStrings([]string{"math", "sum", "2.5", "3"}, argsource.OrdinalIgnoreCase)
	length := s.SetSize(2)
	assert.Equal(t, 2, length)
	assert.Equal(t, 2, s.Length())

	v, ok := s.TryNext("a")
	require.True(t, ok)
	assert.Equal(t, "2.5", v.Str)
}

func TestSource_TakeRemaining(t *testing.T) {
	s := argsource.FromStrings([]string{"echo", "hello", "world"}, argsource.OrdinalIgnoreCase)
	s.SetSize(1)
	rest := s.TakeRemaining()
	require.Len(t, rest, 2)
	assert.Equal(t, "hello", rest[0].Str)
	assert.Equal(t, "world", rest[1].Str)

	_, ok := s.TryNext("anything")
	assert.False(t, ok, "remaining values are fully consumed")
}

func TestSource_JoinRemaining(t *testing.T) {
	s := argsource.FromStrings([]string{"echo", "hello", "world"}, argsource.OrdinalIgnoreCase)
	s.SetSize(1)
	assert.Equal(t, "hello world", s.JoinRemaining(" "))
}

func TestSource_FromKV_NilValueDemotesToPositional(t *testing.T) {
	s := argsource.FromKV([]argsource.KV{{Key: "look", Value: nil}}, argsource.OrdinalIgnoreCase)
	name, ok := s.TryPeekPositional(0)
	require.True(t, ok)
	assert.Equal(t, "look", name)
}
