// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Veltrix Contributors

package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/veltrix/dispatch"
	"github.com/veltrix/dispatch/internal/condition"
	"github.com/veltrix/dispatch/internal/config"
	"github.com/veltrix/dispatch/internal/logging"
	"github.com/veltrix/dispatch/internal/observability"
)

// runConfig holds configuration for the run command.
type runConfig struct {
	discard bool
}

// NewRunCmd creates the run subcommand: it registers the sample catalog,
// runs exactly one execution against the given command line, and prints
// the Result. This is deliberately not a REPL.
func NewRunCmd() *cobra.Command {
	cfg := &runConfig{}

	cmd := &cobra.Command{
		Use:   "run [command line]",
		Short: "Run a single dispatch execution against a sample catalog",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd, strings.Join(args, " "), cfg)
		},
	}

	cmd.Flags().BoolVar(&cfg.discard, "discard", false, "run in Discard mode instead of Await")

	return cmd
}

func runOnce(cmd *cobra.Command, line string, cfg *runConfig) error {
	loaded, err := config.Load(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.Setup("dispatchdemo", "dev", "text", cmd.OutOrStderr())

	registry := prometheus.NewRegistry()
	limiter := condition.NewRateLimiter(loaded.RateLimiter, registry)
	defer limiter.Close()

	var obsServer *observability.Server
	if loaded.MetricsEnabled {
		obsServer = observability.NewServer(loaded.MetricsAddr, func() bool { return true })
		if _, err := obsServer.Start(); err != nil {
			return fmt.Errorf("failed to start observability server: %w", err)
		}
		defer func() { _ = obsServer.Stop(context.Background()) }()
	}

	builder := dispatch.NewBuilder(loaded.NameComparer)
	if err := buildSampleCatalog(builder, limiter); err != nil {
		return fmt.Errorf("failed to register sample catalog: %w", err)
	}

	mode := dispatch.Await
	if cfg.discard {
		mode = dispatch.Discard
	}

	done := make(chan dispatch.Result, 1)
	mgr := builder.Build(dispatch.Options{Mode: mode}, logger)
	mgr.OnResult(func(_ context.Context, _ any, r dispatch.Result) {
		select {
		case done <- r:
		default:
		}
	})

	caller := sessionCaller{name: "demo", id: ulid.Make()}
	r := mgr.ExecuteString(cmd.Context(), caller, line)
	if cfg.discard {
		r = <-done
	}

	if r.IsSuccess() {
		cmd.Println(fmt.Sprintf("%v", r.Value))
		return nil
	}

	cmd.Println(dispatch.UserMessage(r))
	return nil
}
