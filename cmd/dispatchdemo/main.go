// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Veltrix Contributors

// Package main is the entry point for the dispatchdemo sample host.
package main

import (
	"log/slog"
	"os"
)

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		slog.Error("dispatchdemo error", "error", err)
		os.Exit(1)
	}
}
