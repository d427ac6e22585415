// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Veltrix Contributors

// Package metrics records OpenTelemetry instruments for pipeline executions,
// adapted from the teacher's command-execution metrics to the dispatch
// Result taxonomy in internal/result.
package metrics

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/veltrix/dispatch/internal/result"
)

var (
	executions      metric.Int64Counter
	duration        metric.Float64Histogram
	rateLimitEvents metric.Int64Counter
	initOnce        sync.Once
)

// Init initializes the package's instruments using provider. Call once at
// startup; if never called, instruments fall back lazily to the global
// NoOp meter on first Record call. Pipeline executions run concurrently
// (Discard mode spawns one goroutine per call), so both paths share a
// single sync.Once rather than racing on the package-level instrument
// variables.
func Init(provider metric.MeterProvider) {
	initOnce.Do(func() {
		initWithMeter(provider.Meter("veltrix/dispatch"))
	})
}

func initWithMeter(meter metric.Meter) {
	executions, _ = meter.Int64Counter( //nolint:errcheck // NoOp fallback is safe
		"dispatch.pipeline.executions",
		metric.WithDescription("Number of pipeline executions by terminal result variant"),
		metric.WithUnit("{execution}"),
	)
	duration, _ = meter.Float64Histogram( //nolint:errcheck // NoOp fallback is safe
		"dispatch.pipeline.duration",
		metric.WithDescription("Pipeline execution duration"),
		metric.WithUnit("s"),
	)
	rateLimitEvents, _ = meter.Int64Counter( //nolint:errcheck // NoOp fallback is safe
		"dispatch.ratelimit.rejections",
		metric.WithDescription("Number of pre-condition rejections due to rate limiting"),
		metric.WithUnit("{rejection}"),
	)
}

func ensureInitialized() {
	initOnce.Do(func() {
		initWithMeter(otel.Meter("veltrix/dispatch"))
	})
}

// RecordExecution increments the execution counter for a command's full
// name, tagged with the terminal Result variant.
func RecordExecution(commandName string, variant result.Variant) {
	ensureInitialized()
	executions.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String("command", commandName),
			attribute.String("variant", variant.String()),
		),
	)
}

// RecordDuration records the wall-clock time a single execute call took,
// from Search through Result delivery.
func RecordDuration(commandName string, elapsed time.Duration) {
	ensureInitialized()
	duration.Record(context.Background(), elapsed.Seconds(),
		metric.WithAttributes(attribute.String("command", commandName)),
	)
}

// RecordRateLimitRejection increments the rate-limit rejection counter.
func RecordRateLimitRejection() {
	ensureInitialized()
	rateLimitEvents.Add(context.Background(), 1)
}

// Recorder accumulates metrics for a single execution and writes them once
// a terminal command name is known, mirroring the teacher's
// MetricsRecorder but keyed by Result variant rather than a status string.
type Recorder struct {
	start       time.Time
	commandName string
}

// NewRecorder starts a recorder at the current time.
func NewRecorder() *Recorder {
	return &Recorder{start: time.Now()}
}

// SetCommandName records which command the execution resolved to, set once
// Search yields a candidate; a recorder whose command name is never set
// (pure search failure) is not reported, matching the teacher's behavior.
func (r *Recorder) SetCommandName(name string) {
	r.commandName = name
}

// Finish records the execution count and duration for the given terminal
// variant.
func (r *Recorder) Finish(variant result.Variant) {
	if r.commandName == "" {
		return
	}
	RecordExecution(r.commandName, variant)
	RecordDuration(r.commandName, time.Since(r.start))
}
