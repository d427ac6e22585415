// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Veltrix Contributors

package condition

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"

	"github.com/veltrix/dispatch/internal/metrics"
)

// Default rate limiting values, matching the teacher's defaults.
const (
	DefaultBurstCapacity   = 10
	DefaultSustainedRate   = 2.0
	MinBurstCapacity       = 1
	MinSustainedRate       = 0.1
	DefaultCleanupInterval = 5 * time.Minute
	DefaultSessionMaxAge   = time.Hour
)

// RateLimiterConfig configures a RateLimiter.
type RateLimiterConfig struct {
	BurstCapacity   int
	SustainedRate   float64
	CleanupInterval time.Duration
	SessionMaxAge   time.Duration
}

type sessionBucket struct {
	tokens    float64
	lastCheck time.Time
}

// RateLimiter implements per-subject rate limiting with a token bucket
// algorithm, adapted from the teacher's internal/command/ratelimit.go so
// that a pre-condition can exercise the same Prometheus gauge wiring.
type RateLimiter struct {
	mu            sync.Mutex
	sessions      map[ulid.ULID]*sessionBucket
	burstCapacity int
	sustainedRate float64
	sessionMaxAge time.Duration

	stopChan chan struct{}
	wg       sync.WaitGroup

	sessionGauge prometheus.Gauge
}

// NewRateLimiter creates a rate limiter and starts its background cleanup
// goroutine. Call Close to stop it.
func NewRateLimiter(cfg RateLimiterConfig, reg prometheus.Registerer) *RateLimiter {
	burstCapacity := cfg.BurstCapacity
	if burstCapacity <= 0 {
		burstCapacity = DefaultBurstCapacity
	}
	if burstCapacity < MinBurstCapacity {
		burstCapacity = MinBurstCapacity
	}
	sustainedRate := cfg.SustainedRate
	if sustainedRate <= 0 {
		sustainedRate = DefaultSustainedRate
	}
	if sustainedRate < MinSustainedRate {
		sustainedRate = MinSustainedRate
	}
	cleanupInterval := cfg.CleanupInterval
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultCleanupInterval
	}
	sessionMaxAge := cfg.SessionMaxAge
	if sessionMaxAge <= 0 {
		sessionMaxAge = DefaultSessionMaxAge
	}

	rl := &RateLimiter{
		sessions:      make(map[ulid.ULID]*sessionBucket),
		burstCapacity: burstCapacity,
		sustainedRate: sustainedRate,
		sessionMaxAge: sessionMaxAge,
		stopChan:      make(chan struct{}),
	}
	if reg != nil {
		rl.sessionGauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dispatch_ratelimiter_sessions",
			Help: "Current number of tracked rate limiter sessions",
		})
		reg.MustRegister(rl.sessionGauge)
	}

	rl.wg.Add(1)
	go rl.cleanupLoop(cleanupInterval)
	return rl
}

// Allow consumes one token for sessionID if available, returning the
// cooldown in milliseconds until the next token otherwise.
func (rl *RateLimiter) Allow(sessionID ulid.ULID) (allowed bool, cooldownMs int64) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	bucket, exists := rl.sessions[sessionID]
	if !exists {
		bucket = &sessionBucket{tokens: float64(rl.burstCapacity), lastCheck: now}
		rl.sessions[sessionID] = bucket
	}

	elapsed := now.Sub(bucket.lastCheck).Seconds()
	bucket.tokens += elapsed * rl.sustainedRate
	if bucket.tokens > float64(rl.burstCapacity) {
		bucket.tokens = float64(rl.burstCapacity)
	}
	bucket.lastCheck = now

	if bucket.tokens >= 1.0 {
		bucket.tokens -= 1.0
		return true, 0
	}
	deficit := 1.0 - bucket.tokens
	return false, int64(deficit / rl.sustainedRate * 1000)
}

// Cleanup removes sessions not seen since maxAge ago.
func (rl *RateLimiter) Cleanup(maxAge time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	threshold := time.Now().Add(-maxAge)
	for id, bucket := range rl.sessions {
		if bucket.lastCheck.Before(threshold) {
			delete(rl.sessions, id)
		}
	}
	if rl.sessionGauge != nil {
		rl.sessionGauge.Set(float64(len(rl.sessions)))
	}
}

func (rl *RateLimiter) cleanupLoop(interval time.Duration) {
	defer rl.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-rl.stopChan:
			return
		case <-ticker.C:
			rl.Cleanup(rl.sessionMaxAge)
		}
	}
}

// Close stops the background cleanup goroutine.
func (rl *RateLimiter) Close() {
	close(rl.stopChan)
	rl.wg.Wait()
}

// RateLimitSubject is the narrow interface a caller must satisfy for
// NewRateLimitCondition to key its token bucket.
type RateLimitSubject interface {
	SessionID() ulid.ULID
}

// NewRateLimitCondition builds a pre-condition evaluator backed by
// limiter, keyed on the caller's SessionID. Register it under its own
// group key so it AND-combines with unrelated conditions rather than
// letting an unrelated OR-sibling bypass it.
func NewRateLimitCondition(limiter *RateLimiter) Evaluator {
	return func(_ context.Context, caller any, _ any, _ any) error {
		subject, ok := caller.(RateLimitSubject)
		if !ok {
			return oops.Code("RATE_LIMIT_SUBJECT").Errorf("caller does not expose a session for rate limiting")
		}
		allowed, cooldownMs := limiter.Allow(subject.SessionID())
		if allowed {
			return nil
		}
		metrics.RecordRateLimitRejection()
		return oops.Code("RATE_LIMITED").
			With("cooldown_ms", cooldownMs).
			Errorf("rate limit exceeded, retry in %dms", cooldownMs)
	}
}
