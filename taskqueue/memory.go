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
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/facebookgo/clock"
	"github.com/google/uuid"

	"github.com/turnforge/durable/durerr"
)

type enqueueKey struct {
	workflowID string
	activityID string
}

// MemoryQueue is a mutex-guarded, in-process Queue. Claim order is a
// deterministic sort rather than a database ORDER BY, but the tie-break
// rule (priority DESC, enqueued_at ASC, task_id ASC) is identical to the
// Postgres backend so callers see the same behavior in tests.
type MemoryQueue struct {
	mu      sync.Mutex
	tasks   map[string]*Task
	byKey   map[enqueueKey]string
	clock   clock.Clock
}

// NewMemoryQueue constructs an empty MemoryQueue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		tasks: make(map[string]*Task),
		byKey: make(map[enqueueKey]string),
		clock: clock.New(),
	}
}

// WithClock overrides the queue's clock source, for deterministic tests
// of timeout/reclaim behavior.
func (q *MemoryQueue) WithClock(c clock.Clock) *MemoryQueue {
	q.clock = c
	return q
}

func (q *MemoryQueue) Enqueue(ctx context.Context, task Task) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	key := enqueueKey{workflowID: task.WorkflowID, activityID: task.ActivityID}
	if existing, ok := q.byKey[key]; ok {
		return existing, nil
	}

	if task.TaskID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return "", fmt.Errorf("taskqueue: generate task id: %w", err)
		}
		task.TaskID = id.String()
	}
	task.Status = StatusPending
	task.EnqueuedAt = q.clock.Now()
	if task.MaxAttempts == 0 {
		task.MaxAttempts = task.RetryPolicy.MaxAttempts
	}

	stored := task
	q.tasks[task.TaskID] = &stored
	q.byKey[key] = task.TaskID
	return task.TaskID, nil
}

func (q *MemoryQueue) Claim(ctx context.Context, workerID string, activityTypes []string, maxTasks int) ([]Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	allowed := make(map[string]bool, len(activityTypes))
	for _, t := range activityTypes {
		allowed[t] = true
	}

	now := q.clock.Now()
	var candidates []*Task
	for _, task := range q.tasks {
		if task.Status == StatusPending && allowed[task.ActivityType] && !task.VisibleAfter.After(now) {
			candidates = append(candidates, task)
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Priority != candidates[j].Priority {
			return candidates[i].Priority > candidates[j].Priority
		}
		if !candidates[i].EnqueuedAt.Equal(candidates[j].EnqueuedAt) {
			return candidates[i].EnqueuedAt.Before(candidates[j].EnqueuedAt)
		}
		return candidates[i].TaskID < candidates[j].TaskID
	})

	if maxTasks > len(candidates) || maxTasks <= 0 {
		maxTasks = len(candidates)
	}

	claimed := make([]Task, 0, maxTasks)
	for i := 0; i < maxTasks; i++ {
		task := candidates[i]
		task.Status = StatusClaimed
		task.ClaimedBy = workerID
		task.ClaimedAt = now
		task.HeartbeatAt = now
		task.Attempt++
		claimed = append(claimed, *task)
	}
	return claimed, nil
}

func (q *MemoryQueue) Heartbeat(ctx context.Context, taskID, workerID string, details []byte) (HeartbeatResult, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	task, ok := q.tasks[taskID]
	if !ok {
		return HeartbeatResult{}, &durerr.InvalidStateError{EntityID: taskID, State: "absent", Action: "heartbeat"}
	}
	if task.ClaimedBy != workerID || task.Status != StatusClaimed {
		return HeartbeatResult{}, &durerr.NotOwnedError{TaskID: taskID, ClaimToken: workerID}
	}
	task.HeartbeatAt = q.clock.Now()
	return HeartbeatResult{Acknowledged: true}, nil
}

func (q *MemoryQueue) Complete(ctx context.Context, taskID, workerID string, output []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	task, ok := q.tasks[taskID]
	if !ok {
		return &durerr.InvalidStateError{EntityID: taskID, State: "absent", Action: "complete"}
	}
	if task.Status != StatusClaimed {
		return &durerr.InvalidStateError{EntityID: taskID, State: string(task.Status), Action: "complete"}
	}
	if task.ClaimedBy != workerID {
		return &durerr.NotOwnedError{TaskID: taskID, ClaimToken: workerID}
	}
	task.Status = StatusCompleted
	task.Output = output
	return nil
}

func (q *MemoryQueue) Fail(ctx context.Context, taskID, workerID string, taskErr error) (FailResult, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	task, ok := q.tasks[taskID]
	if !ok {
		return FailResult{}, &durerr.InvalidStateError{EntityID: taskID, State: "absent", Action: "fail"}
	}
	if task.Status != StatusClaimed {
		return FailResult{}, &durerr.InvalidStateError{EntityID: taskID, State: string(task.Status), Action: "fail"}
	}
	if task.ClaimedBy != workerID {
		return FailResult{}, &durerr.NotOwnedError{TaskID: taskID, ClaimToken: workerID}
	}

	task.LastError = taskErr.Error()
	willRetry := task.RetryPolicy.ShouldRetry(task.Attempt, taskErr)
	if willRetry {
		task.Status = StatusPending
		task.ClaimedBy = ""
		task.VisibleAfter = q.clock.Now().Add(task.RetryPolicy.WaitBefore(task.Attempt + 1))
	} else {
		task.Status = StatusDeadLettered
	}
	return FailResult{WillRetry: willRetry}, nil
}

func (q *MemoryQueue) ReclaimStale(ctx context.Context, now time.Time) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	count := 0
	for _, task := range q.tasks {
		switch task.Status {
		case StatusClaimed:
			heartbeatLapsed := task.Timeouts.Heartbeat > 0 && now.Sub(task.HeartbeatAt) > task.Timeouts.Heartbeat
			startToCloseLapsed := task.Timeouts.StartToClose > 0 && now.Sub(task.ClaimedAt) > task.Timeouts.StartToClose
			if heartbeatLapsed || startToCloseLapsed {
				task.Status = StatusPending
				task.ClaimedBy = ""
				task.Attempt++
				count++
			}
		case StatusPending:
			waitSince := task.EnqueuedAt
			if task.VisibleAfter.After(waitSince) {
				waitSince = task.VisibleAfter
			}
			if task.Timeouts.ScheduleToStart > 0 && now.Sub(waitSince) > task.Timeouts.ScheduleToStart {
				task.Status = StatusDeadLettered
				task.LastError = "schedule_to_start timeout exceeded"
				count++
			}
		}
	}
	return count, nil
}

func (q *MemoryQueue) Get(ctx context.Context, taskID string) (Task, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	task, ok := q.tasks[taskID]
	if !ok {
		return Task{}, &durerr.InvalidStateError{EntityID: taskID, State: "absent", Action: "get"}
	}
	return *task, nil
}

var _ Queue = (*MemoryQueue)(nil)
