// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Veltrix Contributors

package pipeline

import "github.com/oklog/ulid/v2"

// Scope is the transient per-execution resource holder named in spec.md
// §3 ("An execution creates a transient Argument Source and a transient
// scope; both are released when the pipeline terminates"). It carries a
// correlation ID for tracing/logging and any caller-supplied services
// handle, and is always released via Close when the execution finishes:
// before Execute returns in Await mode, and on the detached goroutine
// after Execute has already returned in Discard mode.
type Scope struct {
	ID       ulid.ULID
	Services any
	released bool
}

func newScope(services any) *Scope {
	return &Scope{ID: ulid.Make(), Services: services}
}

// Close releases the scope. It is idempotent and safe to call from a
// defer on every exit path, including cancellation.
func (s *Scope) Close() {
	s.released = true
}

// Released reports whether Close has run.
func (s *Scope) Released() bool { return s.released }
