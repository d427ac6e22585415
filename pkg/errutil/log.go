// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Veltrix Contributors

package errutil

import (
	"context"
	"log/slog"

	"github.com/samber/oops"

	"github.com/veltrix/dispatch/internal/result"
)

// severityForCode maps this framework's result error codes to a log
// severity, so a routine SEARCH_FAILURE or CONDITION_FAILURE doesn't log
// at the same level as a genuine INVOKE_FAILURE or the INTERNAL_PANIC
// code internal/pipeline.invoke wraps a recovered command-body panic in.
// Codes outside this taxonomy (a host's own oops errors, or a bare
// standard error) default to Error.
var severityForCode = map[string]slog.Level{
	result.CodeSearchFailure:    slog.LevelDebug,
	result.CodeLengthTooShort:   slog.LevelDebug,
	result.CodeLengthTooLong:    slog.LevelDebug,
	result.CodeParseError:       slog.LevelDebug,
	result.CodeConditionFailure: slog.LevelWarn,
	result.CodeCanceled:         slog.LevelDebug,
	result.CodeInvokeFailure:    slog.LevelError,
	result.CodeBuildError:       slog.LevelError,
}

// LogError logs an error with structured context if it's an oops error,
// at a severity derived from severityForCode when its code is recognized.
// For oops errors, it extracts and logs the message, code, and context.
// For standard errors, it logs the error string at Error. ctx is passed
// through to the logger so internal/logging's trace/scope-ID attributes
// attach the way they would for any other ctx-aware log call.
func LogError(ctx context.Context, logger *slog.Logger, msg string, err error) {
	level := slog.LevelError
	attrs := []any{"error", err.Error()}

	if oopsErr, ok := oops.AsOops(err); ok {
		attrs = []any{"error", oopsErr.Error()}
		if code := oopsErr.Code(); code != "" {
			attrs = append(attrs, "code", code)
			if lvl, known := severityForCode[code]; known {
				level = lvl
			}
		}
		if errCtx := oopsErr.Context(); len(errCtx) > 0 {
			attrs = append(attrs, "context", errCtx)
		}
	}

	logger.Log(ctx, level, msg, attrs...)
}
