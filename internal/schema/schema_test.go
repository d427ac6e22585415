// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Veltrix Contributors

package schema_test

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veltrix/dispatch/internal/catalog"
	"github.com/veltrix/dispatch/internal/schema"
)

func noopInvoker(catalog.InvokeContext) (any, error) { return nil, nil }

func TestDescribe_ReflectsCommandShape(t *testing.T) {
	cmd := catalog.NewCommand(noopInvoker, "sum").WithParameters(
		&catalog.Parameter{Name: "a", Type: reflect.TypeOf(int(0))},
		&catalog.Parameter{Name: "b", Type: reflect.TypeOf(int(0)), IsOptional: true},
	)
	d := schema.Describe(cmd)
	assert.Equal(t, "sum", d.Name)
	require.Len(t, d.Parameters, 2)
	assert.False(t, d.Parameters[0].Optional)
	assert.True(t, d.Parameters[1].Optional)
}

func TestGenerateCatalogSchema_ProducesValidJSON(t *testing.T) {
	data, err := schema.GenerateCatalogSchema()
	require.NoError(t, err)
	assert.Contains(t, string(data), "Dispatch Command Catalog")
}

func TestValidateObjectArgs_RejectsMissingRequiredField(t *testing.T) {
	cmd := catalog.NewCommand(noopInvoker, "sum").WithParameters(
		&catalog.Parameter{Name: "a", Type: reflect.TypeOf(int(0))},
		&catalog.Parameter{Name: "b", Type: reflect.TypeOf(int(0))},
	)
	err := schema.ValidateObjectArgs(cmd, []byte(`{"a": 1}`))
	assert.Error(t, err, "b is required and missing")
}

func TestValidateObjectArgs_AcceptsCompletePayload(t *testing.T) {
	cmd := catalog.NewCommand(noopInvoker, "sum").WithParameters(
		&catalog.Parameter{Name: "a", Type: reflect.TypeOf(int(0))},
		&catalog.Parameter{Name: "b", Type: reflect.TypeOf(int(0))},
	)
	err := schema.ValidateObjectArgs(cmd, []byte(`{"a": 1, "b": 2}`))
	assert.NoError(t, err)
}

func TestValidateObjectArgs_EmptyPayloadRejected(t *testing.T) {
	cmd := catalog.NewCommand(noopInvoker, "sum")
	err := schema.ValidateObjectArgs(cmd, nil)
	assert.Error(t, err)
}
