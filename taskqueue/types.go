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

// Package taskqueue implements the priority claim queue that feeds
// activities to workers. Claim is the system's one true critical
// section: two claimants must never observe the same task.
package taskqueue

import (
	"time"

	"github.com/turnforge/durable/retry"
)

// Status is the lifecycle state of a TaskQueueEntry.
type Status string

const (
	StatusPending      Status = "pending"
	StatusClaimed      Status = "claimed"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
	StatusDeadLettered Status = "dead_lettered"
	StatusCancelled    Status = "cancelled"
)

// Timeouts bounds the three timeout axes a claimed task is subject to.
type Timeouts struct {
	ScheduleToStart time.Duration
	StartToClose    time.Duration
	Heartbeat       time.Duration
}

// Task is one entry in the queue.
type Task struct {
	TaskID       string
	WorkflowID   string
	ActivityID   string
	ActivityType string
	Input        []byte
	Output       []byte
	Priority     int32
	Status       Status
	Attempt      int32
	MaxAttempts  int32
	ClaimedBy    string
	ClaimedAt    time.Time
	HeartbeatAt  time.Time
	EnqueuedAt   time.Time
	VisibleAfter time.Time
	Timeouts     Timeouts
	RetryPolicy  retry.Policy
	LastError    string
}

// HeartbeatResult is returned from Heartbeat.
type HeartbeatResult struct {
	Acknowledged bool
	ShouldCancel bool
}

// FailResult is returned from Fail.
type FailResult struct {
	WillRetry bool
}
