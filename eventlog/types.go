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

// Package eventlog implements the append-only per-workflow event log that
// the engine replays to reconstruct workflow state. It never interprets
// event payloads; that is the engine's job.
package eventlog

import "time"

// Status is the denormalized lifecycle status of a WorkflowInstance,
// derived from the last terminal event (if any) appended to its stream.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
	StatusTimedOut  Status = "timed_out"
)

// IsTerminal reports whether s is one from which a workflow never
// transitions further.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusTimedOut:
		return true
	default:
		return false
	}
}

// EventType tags the payload carried by a WorkflowEvent.
type EventType string

const (
	EventWorkflowStarted        EventType = "WorkflowStarted"
	EventActivityScheduled      EventType = "ActivityScheduled"
	EventActivityStarted        EventType = "ActivityStarted"
	EventActivityCompleted      EventType = "ActivityCompleted"
	EventActivityFailed         EventType = "ActivityFailed"
	EventActivityTimedOut       EventType = "ActivityTimedOut"
	EventActivityCancelled      EventType = "ActivityCancelled"
	EventTimerStarted           EventType = "TimerStarted"
	EventTimerFired             EventType = "TimerFired"
	EventTimerCancelled         EventType = "TimerCancelled"
	EventSignalReceived         EventType = "SignalReceived"
	EventChildWorkflowStarted   EventType = "ChildWorkflowStarted"
	EventChildWorkflowCompleted EventType = "ChildWorkflowCompleted"
	EventChildWorkflowFailed    EventType = "ChildWorkflowFailed"
	EventWorkflowCompleted      EventType = "WorkflowCompleted"
	EventWorkflowFailed         EventType = "WorkflowFailed"
	EventWorkflowCancelled      EventType = "WorkflowCancelled"
)

// terminalEventTypes maps terminal WorkflowEvent types to the Status they
// denormalize to. Used by both in-memory and Postgres stores so the two
// backends agree on derived status.
var terminalEventTypes = map[EventType]Status{
	EventWorkflowCompleted: StatusCompleted,
	EventWorkflowFailed:    StatusFailed,
	EventWorkflowCancelled: StatusCancelled,
}

// WorkflowInstance is the denormalized head of a workflow's event stream.
type WorkflowInstance struct {
	WorkflowID   string
	WorkflowType string
	Status       Status
	Input        []byte
	Output       []byte
	Err          string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// WorkflowEvent is one append-only record in a workflow's history.
// Sequence numbers start at 1 and increase with no gaps within a single
// WorkflowID.
type WorkflowEvent struct {
	WorkflowID string
	Sequence   int64
	Type       EventType
	Payload    []byte
	CreatedAt  time.Time
}

// ActivityFailedPayload is the JSON shape of an ActivityFailed event's
// payload. WillRetry is recorded for observability even though the
// engine only invokes the workflow's OnActivityFailed callback once
// WillRetry is false.
type ActivityFailedPayload struct {
	ActivityID string `json:"activity_id"`
	Error      string `json:"error"`
	WillRetry  bool   `json:"will_retry"`
}

// ListFilter narrows ListWorkflows results.
type ListFilter struct {
	Status       Status
	WorkflowType string
	CreatedAfter time.Time
	CreatedBefore time.Time
}

// Page bounds a ListWorkflows call. Limit <= 0 means "use the store's
// default page size".
type Page struct {
	Limit  int
	Offset int
}
