// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Veltrix Contributors

// Package result carries the sum-type outcome of a pipeline execution and
// the coded error taxonomy that backs each failure variant.
package result

import (
	"github.com/samber/oops"
)

// Error codes, one per spec.md §7 variant. BuildError is raised directly by
// the registration API (internal/catalog) and never flows
// through a Result; the rest are carried by Variant below.
const (
	CodeBuildError       = "BUILD_ERROR"
	CodeSearchFailure    = "SEARCH_FAILURE"
	CodeLengthTooShort   = "LENGTH_TOO_SHORT"
	CodeLengthTooLong    = "LENGTH_TOO_LONG"
	CodeParseError       = "PARSE_ERROR"
	CodeConditionFailure = "CONDITION_FAILURE"
	CodeInvokeFailure    = "INVOKE_FAILURE"
	CodeCanceled         = "CANCELED"
)

// Variant identifies which field of a Result is populated. Exactly one
// Result is delivered per execute call (spec.md §8 invariant 4), so callers
// switch on Variant rather than probing fields.
type Variant int

const (
	VariantSearch Variant = iota
	VariantLength
	VariantParse
	VariantCondition
	VariantInvoke
	VariantCanceled
	VariantSuccess
)

// String returns a lowercase diagnostic name for the variant, used in log
// attributes and metric labels.
func (v Variant) String() string {
	switch v {
	case VariantSearch:
		return "search"
	case VariantLength:
		return "length"
	case VariantParse:
		return "parse"
	case VariantCondition:
		return "condition"
	case VariantInvoke:
		return "invoke"
	case VariantCanceled:
		return "canceled"
	case VariantSuccess:
		return "success"
	default:
		return "unknown"
	}
}

// Result is the terminal outcome of a single execution, delivered once to
// the Result Handler chain.
type Result struct {
	Variant Variant
	Value   any   // populated only on VariantSuccess
	Err     error // populated on every other variant
}

// IsSuccess reports whether the result is a terminal success.
func (r Result) IsSuccess() bool { return r.Variant == VariantSuccess }

// Success builds a terminal success result carrying the command's return value.
func Success(value any) Result {
	return Result{Variant: VariantSuccess, Value: value}
}

// SearchFailure builds a result for "no command matched the leading tokens".
func SearchFailure(name string) Result {
	return Result{
		Variant: VariantSearch,
		Err: oops.Code(CodeSearchFailure).
			With("name", name).
			Errorf("no command found for %q", name),
	}
}

// TooShort builds a LengthMismatch(too_short) result.
func TooShort(length, min int) Result {
	return Result{
		Variant: VariantLength,
		Err: oops.Code(CodeLengthTooShort).
			With("length", length).
			With("min", min).
			Errorf("too few arguments: got %d, need at least %d", length, min),
	}
}

// TooLong builds a LengthMismatch(too_long) result.
func TooLong(length, max int) Result {
	return Result{
		Variant: VariantLength,
		Err: oops.Code(CodeLengthTooLong).
			With("length", length).
			With("max", max).
			Errorf("too many arguments: got %d, allow at most %d", length, max),
	}
}

// ParseFailure builds a ParseError{parameter, reason} result.
func ParseFailure(parameter string, reason error) Result {
	return Result{
		Variant: VariantParse,
		Err: oops.Code(CodeParseError).
			With("parameter", parameter).
			Wrapf(reason, "failed to parse %q", parameter),
	}
}

// MissingArgument builds a ParseError result for a required argument with no value.
func MissingArgument(parameter string) Result {
	return Result{
		Variant: VariantParse,
		Err: oops.Code(CodeParseError).
			With("parameter", parameter).
			Errorf("missing required argument %q", parameter),
	}
}

// ConditionFailure builds a ConditionFailure{phase, reason} result.
func ConditionFailure(phase string, reason error) Result {
	builder := oops.Code(CodeConditionFailure).With("phase", phase)
	if reason != nil {
		return Result{Variant: VariantCondition, Err: builder.Wrapf(reason, "%s-condition rejected execution", phase)}
	}
	return Result{Variant: VariantCondition, Err: builder.Errorf("%s-condition rejected execution", phase)}
}

// InvokeFailure builds an InvokeFailure{reason} result.
func InvokeFailure(reason error) Result {
	return Result{
		Variant: VariantInvoke,
		Err:     oops.Code(CodeInvokeFailure).Wrapf(reason, "command body failed"),
	}
}

// Canceled builds a Canceled result.
func Canceled() Result {
	return Result{
		Variant: VariantCanceled,
		Err:     oops.Code(CodeCanceled).Errorf("execution canceled"),
	}
}

// UserMessage extracts a short, host-facing message from a Result's error,
// mirroring the teacher's PlayerMessage helper.
func UserMessage(r Result) string {
	if r.IsSuccess() {
		return ""
	}
	if r.Err == nil {
		return "Something went wrong."
	}
	oopsErr, ok := oops.AsOops(r.Err)
	if !ok {
		return "Something went wrong."
	}
	switch oopsErr.Code() {
	case CodeSearchFailure:
		return "Unknown command."
	case CodeLengthTooShort, CodeLengthTooLong:
		return "Wrong number of arguments."
	case CodeParseError:
		return "Invalid arguments: " + oopsErr.Error()
	case CodeConditionFailure:
		return "You can't do that."
	case CodeInvokeFailure:
		return "That command failed."
	case CodeCanceled:
		return "Canceled."
	default:
		return "Something went wrong."
	}
}

// BuildError wraps a registration-time failure. Returned directly from
// builder calls, never carried in a Result.
func BuildError(reason string, kv ...any) error {
	b := oops.Code(CodeBuildError)
	for i := 0; i+1 < len(kv); i += 2 {
		if key, ok := kv[i].(string); ok {
			b = b.With(key, kv[i+1])
		}
	}
	return b.Errorf("%s", reason)
}
