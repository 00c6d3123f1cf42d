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

// Package activity defines the context handed to a running activity
// handler. It carries attempt bookkeeping and cooperative cancellation
// only; everything else a handler needs arrives through its input
// payload.
package activity

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/atomic"

	"github.com/turnforge/durable/durerr"
)

// HeartbeatFunc reports progress (and, incidentally, liveness) for the
// in-flight attempt. The worker supplies the concrete implementation;
// handlers never see the transport underneath it.
type HeartbeatFunc func(ctx context.Context, details []byte) error

// Context is passed to every activity handler invocation. Unlike
// engine.Context, it is not replayed — it exists for the lifetime of a
// single attempt and is free to touch the clock, block, or call out to
// the heartbeat channel.
type Context struct {
	attemptID   uuid.UUID
	attempt     int32
	maxAttempts int32
	workflowID  string
	activityID  string

	heartbeat HeartbeatFunc
	cancelled *atomic.Bool
	done      chan struct{}
}

// NewContext builds a Context for the given attempt. heartbeat may be
// nil, in which case Heartbeat is a no-op beyond the cancellation check.
func NewContext(workflowID, activityID string, attempt, maxAttempts int32, heartbeat HeartbeatFunc) *Context {
	return &Context{
		attemptID:   uuid.Must(uuid.NewV7()),
		attempt:     attempt,
		maxAttempts: maxAttempts,
		workflowID:  workflowID,
		activityID:  activityID,
		heartbeat:   heartbeat,
		cancelled:   atomic.NewBool(false),
		done:        make(chan struct{}),
	}
}

// AttemptID is a unique identifier for this specific attempt, distinct
// from the activity's durable identity.
func (c *Context) AttemptID() uuid.UUID { return c.attemptID }

// Attempt reports the current attempt number, 1-based.
func (c *Context) Attempt() int32 { return c.attempt }

// MaxAttempts reports the retry policy's attempt ceiling for this task.
func (c *Context) MaxAttempts() int32 { return c.maxAttempts }

// WorkflowID reports the owning workflow instance.
func (c *Context) WorkflowID() string { return c.workflowID }

// ActivityID reports the durable activity identity within the workflow.
func (c *Context) ActivityID() string { return c.activityID }

// IsLastAttempt reports whether a failure of this attempt would exhaust
// the retry budget.
func (c *Context) IsLastAttempt() bool { return c.attempt >= c.maxAttempts }

// Heartbeat reports progress details and extends the heartbeat deadline.
// It fails fast with a *durerr.CanceledError if cancellation has already
// been requested, so long-running handlers can treat a failed heartbeat
// as a signal to unwind.
func (c *Context) Heartbeat(ctx context.Context, details []byte) error {
	if c.IsCancelled() {
		return durerr.NewCanceledError(nil, details)
	}
	if c.heartbeat == nil {
		return nil
	}
	return c.heartbeat(ctx, details)
}

// IsCancelled reports whether cancellation has been requested for this
// attempt.
func (c *Context) IsCancelled() bool { return c.cancelled.Load() }

// Cancelled returns a channel that closes when cancellation is
// requested, for use in a select alongside the handler's own work.
func (c *Context) Cancelled() <-chan struct{} { return c.done }

// CancellationHandle returns a capability that can cancel this context
// without otherwise exposing it. The worker holds the Context; whatever
// triggers cancellation (a reclaimer noticing should_cancel, a signal
// handler) only needs the handle.
func (c *Context) CancellationHandle() *CancellationHandle {
	return &CancellationHandle{cancelled: c.cancelled, done: c.done}
}

// CancellationHandle cancels an activity attempt without granting
// access to its full Context. It is safe for concurrent use and safe to
// cancel more than once.
type CancellationHandle struct {
	cancelled *atomic.Bool
	done      chan struct{}
}

// Cancel requests cancellation. It is idempotent.
func (h *CancellationHandle) Cancel() {
	if h.cancelled.CAS(false, true) {
		close(h.done)
	}
}
