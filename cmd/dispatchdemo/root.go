// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Veltrix Contributors

package main

import (
	"github.com/spf13/cobra"
)

var configFile string

// NewRootCmd builds the dispatchdemo command tree: a single-shot demo
// binary that registers a sample catalog and runs one execution per
// invocation (no REPL, no interactive shell).
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dispatchdemo",
		Short: "dispatchdemo - sample host for the command dispatch framework",
		Long:  `dispatchdemo registers a small sample catalog and runs a single dispatch pipeline execution against the given command line.`,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewSchemaCmd())

	return cmd
}
