// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Veltrix Contributors

package errutil

import (
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veltrix/dispatch/internal/result"
)

// AssertErrorCode asserts that err is an oops error with the given code.
func AssertErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok, "expected oops error, got %T", err)
	assert.Equal(t, code, oopsErr.Code())
}

// AssertResultCode asserts that r is a failed Result whose error carries
// the given oops code — the dispatch-specific counterpart to
// AssertErrorCode for callers holding a result.Result (the terminal
// outcome internal/pipeline hands to a ResultHandler) rather than a bare
// error.
func AssertResultCode(t *testing.T, r result.Result, code string) {
	t.Helper()
	require.False(t, r.IsSuccess(), "expected a failed Result, got a success carrying %v", r.Value)
	AssertErrorCode(t, r.Err, code)
}

// AssertErrorContext asserts that err is an oops error with the given context key/value.
func AssertErrorContext(t *testing.T, err error, key string, value any) {
	t.Helper()
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok, "expected oops error, got %T", err)
	ctx := oopsErr.Context()
	assert.Contains(t, ctx, key)
	assert.Equal(t, value, ctx[key])
}
