// Copyright (c) 2026 The turnforge Authors.
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

// Package breaker implements the three-state circuit breaker gating
// activity execution per activity type: Closed, Open and HalfOpen. Two
// implementations share this state model: a single-process Breaker
// backed by an in-memory map, and a Redis-backed Breaker shared across
// every worker process.
package breaker

import (
	"context"
	"time"
)

// State is one of the three circuit breaker states.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// Config tunes a breaker for one activity type. Zero-value fields take
// the package defaults: failure_threshold=5, success_threshold=2,
// reset_timeout=30s, window=60s.
type Config struct {
	FailureThreshold int
	SuccessThreshold int
	ResetTimeout     time.Duration
	Window           time.Duration
}

// DefaultConfig returns the spec's stated defaults.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		ResetTimeout:     30 * time.Second,
		Window:           60 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = 2
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = 30 * time.Second
	}
	if c.Window <= 0 {
		c.Window = 60 * time.Second
	}
	return c
}

// Breaker gates execution of activities of a given type, across one or
// more worker processes depending on the implementation.
type Breaker interface {
	// Allow reports whether a call for activityType may proceed right
	// now. A false return means the circuit is Open and not yet due for
	// a half-open probe.
	Allow(ctx context.Context, activityType string) (bool, error)

	// RecordSuccess reports a successful call, possibly transitioning
	// HalfOpen -> Closed.
	RecordSuccess(ctx context.Context, activityType string) error

	// RecordFailure reports a failed call, possibly transitioning
	// Closed -> Open or HalfOpen -> Open.
	RecordFailure(ctx context.Context, activityType string) error

	// State reports the breaker's current state for activityType,
	// primarily for observability and tests.
	State(ctx context.Context, activityType string) (State, error)
}
