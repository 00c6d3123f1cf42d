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

package breaker

import (
	"context"
	"sync"
	"time"

	"github.com/facebookgo/clock"
)

type localCircuit struct {
	state            State
	consecutiveFails int
	halfOpenSuccess  int
	openUntil        time.Time
	firstFailureAt   time.Time
}

// LocalBreaker is a single-process Breaker, appropriate for tests and
// single-worker deployments. State does not survive process restart and
// is not shared across workers — use RedisBreaker when that matters.
type LocalBreaker struct {
	mu       sync.Mutex
	circuits map[string]*localCircuit
	config   func(activityType string) Config
	clock    clock.Clock
}

// LocalBreakerOption configures a LocalBreaker.
type LocalBreakerOption func(*LocalBreaker)

// WithConfigFunc overrides the per-activity-type Config lookup; the
// default always returns DefaultConfig().
func WithConfigFunc(f func(activityType string) Config) LocalBreakerOption {
	return func(b *LocalBreaker) { b.config = f }
}

// WithLocalClock overrides the breaker's clock, for deterministic tests
// of the reset-timeout transition.
func WithLocalClock(c clock.Clock) LocalBreakerOption {
	return func(b *LocalBreaker) { b.clock = c }
}

// NewLocalBreaker constructs a LocalBreaker using DefaultConfig for
// every activity type unless overridden by WithConfigFunc.
func NewLocalBreaker(opts ...LocalBreakerOption) *LocalBreaker {
	b := &LocalBreaker{
		circuits: make(map[string]*localCircuit),
		config:   func(string) Config { return DefaultConfig() },
		clock:    clock.New(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *LocalBreaker) circuit(activityType string) *localCircuit {
	c, ok := b.circuits[activityType]
	if !ok {
		c = &localCircuit{state: StateClosed}
		b.circuits[activityType] = c
	}
	return c
}

func (b *LocalBreaker) Allow(ctx context.Context, activityType string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	c := b.circuit(activityType)
	switch c.state {
	case StateClosed, StateHalfOpen:
		return true, nil
	case StateOpen:
		if !b.clock.Now().Before(c.openUntil) {
			c.state = StateHalfOpen
			c.halfOpenSuccess = 0
			return true, nil
		}
		return false, nil
	default:
		return true, nil
	}
}

func (b *LocalBreaker) RecordSuccess(ctx context.Context, activityType string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	cfg := b.config(activityType).withDefaults()
	c := b.circuit(activityType)
	switch c.state {
	case StateHalfOpen:
		c.halfOpenSuccess++
		if c.halfOpenSuccess >= cfg.SuccessThreshold {
			c.state = StateClosed
			c.consecutiveFails = 0
			c.halfOpenSuccess = 0
		}
	case StateClosed:
		c.consecutiveFails = 0
	}
	return nil
}

func (b *LocalBreaker) RecordFailure(ctx context.Context, activityType string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	cfg := b.config(activityType).withDefaults()
	c := b.circuit(activityType)
	switch c.state {
	case StateHalfOpen:
		c.state = StateOpen
		c.openUntil = b.clock.Now().Add(cfg.ResetTimeout)
		c.halfOpenSuccess = 0
	case StateClosed:
		now := b.clock.Now()
		if c.consecutiveFails == 0 || now.Sub(c.firstFailureAt) > cfg.Window {
			c.firstFailureAt = now
			c.consecutiveFails = 0
		}
		c.consecutiveFails++
		if c.consecutiveFails >= cfg.FailureThreshold {
			c.state = StateOpen
			c.openUntil = now.Add(cfg.ResetTimeout)
		}
	}
	return nil
}

func (b *LocalBreaker) State(ctx context.Context, activityType string) (State, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.circuit(activityType).state, nil
}

var _ Breaker = (*LocalBreaker)(nil)
