// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Veltrix Contributors

package main

import (
	"encoding/json"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/veltrix/dispatch/internal/catalog"
	"github.com/veltrix/dispatch/internal/condition"
	"github.com/veltrix/dispatch/internal/schema"
)

// NewSchemaCmd creates the schema subcommand, which prints both the
// sample catalog's per-command descriptors and the generated JSON Schema
// document describing that descriptor shape.
func NewSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the sample catalog's command descriptors and JSON Schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printSchema(cmd)
		},
	}
}

func printSchema(cmd *cobra.Command) error {
	registry := prometheus.NewRegistry()
	limiter := condition.NewRateLimiter(condition.RateLimiterConfig{}, registry)
	defer limiter.Close()

	builder := newBuilder()
	if err := buildSampleCatalog(builder, limiter); err != nil {
		return fmt.Errorf("failed to register sample catalog: %w", err)
	}

	descriptors := describeAll(builder.Root())
	descriptorJSON, err := json.MarshalIndent(descriptors, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal descriptors: %w", err)
	}
	cmd.Println(string(descriptorJSON))

	data, err := schema.GenerateCatalogSchema()
	if err != nil {
		return fmt.Errorf("failed to generate schema: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

// describeAll walks every Command reachable from root and returns its
// schema.Describe view, recursing into nested Groups.
func describeAll(root *catalog.Group) []schema.CommandDescriptor {
	var out []schema.CommandDescriptor
	var walk func(g *catalog.Group)
	walk = func(g *catalog.Group) {
		for _, child := range g.Children() {
			switch v := child.(type) {
			case *catalog.Command:
				out = append(out, schema.Describe(v))
			case *catalog.Group:
				walk(v)
			}
		}
	}
	walk(root)
	return out
}
