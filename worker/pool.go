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

// Package worker hosts the activity-type handlers of a process: a
// poller claims tasks, an executor runs them on a shared concurrency
// budget, a heartbeater keeps claims alive and checks for cooperative
// cancellation, and a reclaimer returns lost claims to Pending.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/facebookgo/clock"
	"github.com/robfig/cron/v3"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/turnforge/durable/activity"
	"github.com/turnforge/durable/deadletter"
	"github.com/turnforge/durable/engine"
	"github.com/turnforge/durable/taskqueue"
	"github.com/turnforge/durable/telemetry"
)

// HandlerFunc runs one activity attempt. The returned error, if any, is
// classified through durerr.IsRetryable to decide whether the task
// queue schedules another attempt.
type HandlerFunc func(ctx context.Context, actx *activity.Context, input []byte) ([]byte, error)

// Status is a snapshot of pool load, returned by Status.
type Status struct {
	InFlight       int64
	MaxConcurrency int64
	Load           float64
	Polling        bool
}

// Option configures a Pool.
type Option func(*Pool)

// WithLogger overrides the pool's logger; defaults to zap.NewNop().
func WithLogger(logger *zap.Logger) Option {
	return func(p *Pool) { p.logger = logger }
}

// WithClock overrides the pool's time source, for deterministic tests.
func WithClock(c clock.Clock) Option {
	return func(p *Pool) { p.clock = c }
}

// WithMaxConcurrency bounds how many activity attempts this pool runs
// at once. Defaults to 10.
func WithMaxConcurrency(n int) Option {
	return func(p *Pool) { p.maxConcurrency = n }
}

// WithPollMaxInterval bounds the poller's exponential backoff when the
// queue reports no claimable tasks. Defaults to 30s.
func WithPollMaxInterval(d time.Duration) Option {
	return func(p *Pool) { p.pollMaxInterval = d }
}

// WithPollMinInterval sets the poller's initial backoff step. Defaults
// to 200ms.
func WithPollMinInterval(d time.Duration) Option {
	return func(p *Pool) { p.pollMinInterval = d }
}

// WithReclaimInterval sets how often the reclaimer sweeps for stale
// claims. Defaults to 30s.
func WithReclaimInterval(d time.Duration) Option {
	return func(p *Pool) { p.reclaimInterval = d }
}

// WithReclaimCronSchedule additionally runs a reclaim sweep on a
// robfig/cron/v3 schedule, for off-peak DLQ and stale-claim cleanup
// independent of the steady-state reclaimInterval ticker.
func WithReclaimCronSchedule(schedule string) Option {
	return func(p *Pool) { p.reclaimCronSchedule = schedule }
}

// WithRateLimiter self-throttles the poller, mirroring the teacher
// SDK's activityTaskPoller rate limiting.
func WithRateLimiter(l *rate.Limiter) Option {
	return func(p *Pool) { p.limiter = l }
}

// WithWaterMarks sets the backpressure thresholds as a fraction of
// MaxConcurrency. Above high, polling pauses; below low, it resumes.
// Defaults to 0.9/0.7.
func WithWaterMarks(low, high float64) Option {
	return func(p *Pool) { p.lowWater, p.highWater = low, high }
}

// WithShutdownGrace bounds how long Shutdown waits for in-flight
// attempts to finish before returning. Defaults to 30s.
func WithShutdownGrace(d time.Duration) Option {
	return func(p *Pool) { p.shutdownGrace = d }
}

// WithTelemetry threads a telemetry.Recorder through the pool's claim
// and execute hot paths. Defaults to telemetry.NoOp().
func WithTelemetry(r *telemetry.Recorder) Option {
	return func(p *Pool) { p.telemetry = r }
}

// WithDeadLetterStore records a deadletter.Entry for every task whose
// retry budget is exhausted. Defaults to nil, which skips recording.
func WithDeadLetterStore(s deadletter.Store) Option {
	return func(p *Pool) { p.deadLetters = s }
}

// Pool is a worker process's activity runtime: one poller, one
// semaphore-limited executor, one heartbeater per claimed task, and a
// reclaimer, all sharing a concurrency budget.
type Pool struct {
	workerID string
	queue    taskqueue.Queue
	engine   *engine.Engine
	logger    *zap.Logger
	clock     clock.Clock
	limiter   *rate.Limiter
	telemetry *telemetry.Recorder
	deadLetters deadletter.Store

	maxConcurrency  int
	pollMinInterval time.Duration
	pollMaxInterval time.Duration
	reclaimInterval time.Duration
	reclaimCronSchedule string
	lowWater        float64
	highWater       float64
	shutdownGrace   time.Duration

	mu       sync.RWMutex
	handlers map[string]HandlerFunc

	sem      chan struct{}
	inFlight atomic.Int64
	polling  atomic.Bool

	wg       sync.WaitGroup
	cancel   context.CancelFunc
	cron     *cron.Cron
}

// NewPool constructs a Pool over queue, wired to eng for delivering
// activity outcomes back to workflows.
func NewPool(workerID string, queue taskqueue.Queue, eng *engine.Engine, opts ...Option) *Pool {
	p := &Pool{
		workerID:        workerID,
		queue:           queue,
		engine:          eng,
		logger:          zap.NewNop(),
		clock:           clock.New(),
		telemetry:       telemetry.NoOp(),
		maxConcurrency:  10,
		pollMinInterval: 200 * time.Millisecond,
		pollMaxInterval: 30 * time.Second,
		reclaimInterval: 30 * time.Second,
		lowWater:        0.7,
		highWater:       0.9,
		shutdownGrace:   30 * time.Second,
		handlers:        make(map[string]HandlerFunc),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.sem = make(chan struct{}, p.maxConcurrency)
	if p.limiter == nil {
		p.limiter = rate.NewLimiter(rate.Limit(p.maxConcurrency), p.maxConcurrency)
	}
	return p
}

// RegisterHandler associates activityType with fn. Panics if
// activityType is already registered.
func (p *Pool) RegisterHandler(activityType string, fn HandlerFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.handlers[activityType]; exists {
		panic("worker: activity type already registered: " + activityType)
	}
	p.handlers[activityType] = fn
}

func (p *Pool) supportedTypes() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	types := make([]string, 0, len(p.handlers))
	for t := range p.handlers {
		types = append(types, t)
	}
	return types
}

func (p *Pool) handlerFor(activityType string) (HandlerFunc, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	fn, ok := p.handlers[activityType]
	return fn, ok
}

// Start launches the poller and reclaimer goroutine groups. It returns
// immediately; work happens in the background until ctx is cancelled or
// Shutdown is called.
func (p *Pool) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.polling.Store(true)

	p.wg.Add(1)
	go p.pollLoop(runCtx)

	p.wg.Add(1)
	go p.reclaimLoop(runCtx)

	if p.reclaimCronSchedule != "" {
		p.cron = cron.New()
		if _, err := p.cron.AddFunc(p.reclaimCronSchedule, func() {
			p.sweepStale(runCtx)
		}); err != nil {
			return fmt.Errorf("worker: invalid reclaim cron schedule: %w", err)
		}
		p.cron.Start()
	}

	p.logger.Info("worker: pool started", zap.String("worker_id", p.workerID), zap.Int("max_concurrency", p.maxConcurrency))
	return nil
}

// Shutdown stops claiming new work, cancels the context that the
// poller, the reclaimer and in-flight attempts run under, and waits up
// to shutdownGrace for those goroutines to return. In-flight attempts
// are not left to run to completion: each handler sees its context
// cancelled as soon as Shutdown is called. Attempts still running when
// the grace period elapses are abandoned: their heartbeats stop and the
// reclaimer on some worker eventually returns them to Pending.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.polling.Store(false)
	if p.cancel != nil {
		p.cancel()
	}
	if p.cron != nil {
		p.cron.Stop()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	grace := p.shutdownGrace
	select {
	case <-done:
		return nil
	case <-time.After(grace):
		p.logger.Warn("worker: shutdown grace period elapsed with attempts still in flight",
			zap.String("worker_id", p.workerID), zap.Int64("in_flight", p.inFlight.Load()))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status reports current load.
func (p *Pool) Status() Status {
	inFlight := p.inFlight.Load()
	return Status{
		InFlight:       inFlight,
		MaxConcurrency: int64(p.maxConcurrency),
		Load:           float64(inFlight) / float64(p.maxConcurrency),
		Polling:        p.polling.Load(),
	}
}

func (p *Pool) load() float64 {
	return float64(p.inFlight.Load()) / float64(p.maxConcurrency)
}
