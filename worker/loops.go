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

package worker

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/turnforge/durable/activity"
	"github.com/turnforge/durable/deadletter"
	"github.com/turnforge/durable/durerr"
	"github.com/turnforge/durable/taskqueue"
)

// pollLoop long-polls the queue for claimable work, backing off
// exponentially (with jitter, via retry-style doubling) when nothing is
// available, and pausing entirely above the high water mark.
func (p *Pool) pollLoop(ctx context.Context) {
	defer p.wg.Done()

	backoff := p.pollMinInterval
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if !p.polling.Load() {
			return
		}

		if p.load() >= p.highWater {
			p.sleep(ctx, p.pollMinInterval)
			continue
		}

		if err := p.limiter.Wait(ctx); err != nil {
			return
		}

		freeSlots := p.maxConcurrency - int(p.inFlight.Load())
		if freeSlots <= 0 {
			p.sleep(ctx, p.pollMinInterval)
			continue
		}

		types := p.supportedTypes()
		if len(types) == 0 {
			p.sleep(ctx, p.pollMaxInterval)
			continue
		}

		spanCtx, endSpan := p.telemetry.StartSpan(ctx, "taskqueue.claim", attribute.String("worker_id", p.workerID))
		tasks, err := p.queue.Claim(spanCtx, p.workerID, types, freeSlots)
		endSpan(err)
		if err != nil {
			p.telemetry.IncCounter("claim_failed", map[string]string{"worker_id": p.workerID}, 1)
			p.logger.Error("worker: claim failed", zap.Error(err))
			p.sleep(ctx, backoff)
			backoff = nextBackoff(backoff, p.pollMaxInterval)
			continue
		}

		if len(tasks) == 0 {
			p.sleep(ctx, backoff)
			backoff = nextBackoff(backoff, p.pollMaxInterval)
			continue
		}

		backoff = p.pollMinInterval
		for _, task := range tasks {
			p.dispatch(ctx, task)
		}

		// Resume only once load drops back under the low water mark;
		// a large batch may still push us above it momentarily.
		if p.load() >= p.highWater {
			for p.load() >= p.lowWater && p.polling.Load() && ctx.Err() == nil {
				p.sleep(ctx, p.pollMinInterval)
			}
		}
	}
}

func nextBackoff(current, max time.Duration) time.Duration {
	next := time.Duration(float64(current*2) * (0.9 + 0.2*rand.Float64()))
	if next > max {
		return max
	}
	return next
}

func (p *Pool) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// dispatch acquires a semaphore permit and runs task's handler in its
// own goroutine, alongside a dedicated heartbeater.
func (p *Pool) dispatch(ctx context.Context, task taskqueue.Task) {
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return
	}

	p.inFlight.Inc()
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.inFlight.Dec()
		defer func() { <-p.sem }()
		p.execute(ctx, task)
	}()
}

// execute runs one claimed task's handler to completion, driving the
// heartbeater alongside it, and reports the outcome to the queue and
// the engine.
func (p *Pool) execute(ctx context.Context, task taskqueue.Task) {
	logger := p.logger.With(zap.String("task_id", task.TaskID), zap.String("activity_type", task.ActivityType))

	handler, ok := p.handlerFor(task.ActivityType)
	if !ok {
		logger.Error("worker: claimed task with no registered handler")
		p.fail(ctx, task, fmt.Errorf("worker: no handler registered for activity type %q", task.ActivityType))
		return
	}

	var actx *activity.Context
	actx = activity.NewContext(task.WorkflowID, task.ActivityID, task.Attempt, task.MaxAttempts, func(hbCtx context.Context, details []byte) error {
		result, err := p.queue.Heartbeat(hbCtx, task.TaskID, p.workerID, details)
		if err != nil {
			return err
		}
		if result.ShouldCancel {
			actx.CancellationHandle().Cancel()
		}
		return nil
	})
	handle := actx.CancellationHandle()

	attemptCtx := ctx
	var cancelAttempt context.CancelFunc
	if task.Timeouts.StartToClose > 0 {
		attemptCtx, cancelAttempt = context.WithTimeout(ctx, task.Timeouts.StartToClose)
		defer cancelAttempt()
	}

	heartbeatDone := make(chan struct{})
	if task.Timeouts.Heartbeat > 0 {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.heartbeatLoop(attemptCtx, task, handle, heartbeatDone)
		}()
	} else {
		close(heartbeatDone)
	}

	spanCtx, endSpan := p.telemetry.StartSpan(attemptCtx, "activity.execute",
		attribute.String("activity_type", task.ActivityType), attribute.Int("attempt", task.Attempt))
	start := p.clock.Now()
	output, err := p.runHandler(spanCtx, handler, actx, task)
	p.telemetry.RecordLatency("activity_latency_"+task.ActivityType, p.clock.Now().Sub(start))
	endSpan(err)
	close(heartbeatDone)

	if err != nil {
		if attemptCtx.Err() != nil && ctx.Err() == nil {
			err = durerr.NewTimeoutError(durerr.TimeoutTypeStartToClose, err, nil)
		}
		if actx.IsCancelled() {
			err = durerr.NewCanceledError(err, nil)
		}
		p.fail(ctx, task, err)
		return
	}

	p.complete(ctx, task, output)
}

// runHandler invokes handler, recovering a panic into a retryable
// error so one bad activity never takes the worker process down.
func (p *Pool) runHandler(ctx context.Context, handler HandlerFunc, actx *activity.Context, task taskqueue.Task) (output []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker: activity %s panicked: %v", task.ActivityType, r)
		}
	}()
	return handler(ctx, actx, task.Input)
}

func (p *Pool) heartbeatLoop(ctx context.Context, task taskqueue.Task, handle *activity.CancellationHandle, done <-chan struct{}) {
	interval := task.Timeouts.Heartbeat / 3
	if interval <= 0 {
		interval = task.Timeouts.Heartbeat
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			result, err := p.queue.Heartbeat(ctx, task.TaskID, p.workerID, nil)
			if err != nil {
				p.logger.Warn("worker: heartbeat failed", zap.String("task_id", task.TaskID), zap.Error(err))
				continue
			}
			if result.ShouldCancel {
				handle.Cancel()
			}
		}
	}
}

func (p *Pool) complete(ctx context.Context, task taskqueue.Task, output []byte) {
	if err := p.queue.Complete(ctx, task.TaskID, p.workerID, output); err != nil {
		p.logger.Error("worker: complete failed", zap.String("task_id", task.TaskID), zap.Error(err))
		return
	}
	if err := p.engine.NotifyActivityCompleted(ctx, task.WorkflowID, task.ActivityID, output); err != nil {
		p.logger.Error("worker: notify activity completed failed", zap.String("task_id", task.TaskID), zap.Error(err))
	}
}

func (p *Pool) fail(ctx context.Context, task taskqueue.Task, taskErr error) {
	result, err := p.queue.Fail(ctx, task.TaskID, p.workerID, taskErr)
	if err != nil {
		p.logger.Error("worker: fail failed", zap.String("task_id", task.TaskID), zap.Error(err))
		return
	}

	if !result.WillRetry && p.deadLetters != nil {
		entry := deadletter.Entry{
			TaskID:       task.TaskID,
			WorkflowID:   task.WorkflowID,
			ActivityID:   task.ActivityID,
			ActivityType: task.ActivityType,
			Input:        task.Input,
			FinalError:   taskErr.Error(),
			Attempt:      task.Attempt,
		}
		if dlqErr := p.deadLetters.Record(ctx, entry); dlqErr != nil {
			p.logger.Error("worker: dead-letter record failed", zap.String("task_id", task.TaskID), zap.Error(dlqErr))
		}
	}

	if err := p.engine.NotifyActivityFailed(ctx, task.WorkflowID, task.ActivityID, taskErr.Error(), result.WillRetry); err != nil {
		p.logger.Error("worker: notify activity failed failed", zap.String("task_id", task.TaskID), zap.Error(err))
	}
}

// reclaimLoop periodically returns claims whose heartbeat or
// start-to-close budget has lapsed back to Pending.
func (p *Pool) reclaimLoop(ctx context.Context) {
	defer p.wg.Done()
	ticker := time.NewTicker(p.reclaimInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.sweepStale(ctx)
		}
	}
}

func (p *Pool) sweepStale(ctx context.Context) {
	n, err := p.queue.ReclaimStale(ctx, p.clock.Now())
	if err != nil {
		p.logger.Error("worker: reclaim sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		p.logger.Info("worker: reclaimed stale claims", zap.Int("count", n))
	}
}
