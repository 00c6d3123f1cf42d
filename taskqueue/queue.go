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

package taskqueue

import (
	"context"
	"time"
)

// Queue is the narrow persistence boundary a worker pool claims work
// through. Implementations must guarantee that Claim is serializable:
// concurrent claimants targeting overlapping activity types never
// observe the same task.
type Queue interface {
	// Enqueue inserts task. MemoryQueue assigns a TaskID if unset;
	// PostgresQueue rejects a task without one. Idempotent on
	// (WorkflowID, ActivityID): re-enqueuing an existing pair is a
	// no-op that returns the existing TaskID.
	Enqueue(ctx context.Context, task Task) (taskID string, err error)

	// Claim atomically selects up to maxTasks Pending tasks whose
	// ActivityType is in activityTypes, ordered by
	// priority DESC, enqueued_at ASC, task_id ASC, and marks them
	// Claimed by workerID.
	Claim(ctx context.Context, workerID string, activityTypes []string, maxTasks int) ([]Task, error)

	// Heartbeat refreshes taskID's HeartbeatAt. Returns
	// *durerr.NotOwnedError if workerID does not hold the claim.
	Heartbeat(ctx context.Context, taskID, workerID string, details []byte) (HeartbeatResult, error)

	// Complete transitions taskID to Completed and records output.
	// Returns *durerr.NotOwnedError if another worker holds the claim, or
	// *durerr.InvalidStateError if the task is already terminal.
	Complete(ctx context.Context, taskID, workerID string, output []byte) error

	// Fail records taskErr and consults the task's RetryPolicy. If
	// retryable and budget remains, the task returns to Pending and is
	// hidden from Claim until RetryPolicy.WaitBefore(Attempt+1) has
	// elapsed; the next Claim increments Attempt. Otherwise it becomes
	// DeadLettered; recording a dead-letter entry is left to the caller
	// (worker.Pool does so when given a deadletter.Store).
	Fail(ctx context.Context, taskID, workerID string, taskErr error) (FailResult, error)

	// ReclaimStale returns Claimed tasks whose heartbeat or
	// start-to-close budget has lapsed as of now back to Pending,
	// advancing their attempt counters. It also dead-letters Pending
	// tasks whose schedule-to-start budget has lapsed, and reports how
	// many tasks it changed in either way.
	ReclaimStale(ctx context.Context, now time.Time) (int, error)

	// Get returns taskID's current row.
	Get(ctx context.Context, taskID string) (Task, error)
}
