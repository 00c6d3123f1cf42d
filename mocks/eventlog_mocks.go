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

package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/turnforge/durable/eventlog"
	"github.com/turnforge/durable/taskqueue"
)

// EventStore is a testify/mock double for eventlog.Store, for engine
// tests that need to assert on exactly which events were appended
// rather than exercise a real MemoryStore/PostgresStore.
type EventStore struct{ mock.Mock }

func (m *EventStore) CreateWorkflow(ctx context.Context, id, workflowType string, input []byte) error {
	args := m.Called(ctx, id, workflowType, input)
	return args.Error(0)
}

func (m *EventStore) AppendEvents(ctx context.Context, id string, expectedSequence int64, events ...eventlog.EventType) error {
	args := m.Called(ctx, id, expectedSequence, events)
	return args.Error(0)
}

func (m *EventStore) AppendEventsWithPayload(ctx context.Context, id string, expectedSequence int64, events []eventlog.PendingEvent) error {
	args := m.Called(ctx, id, expectedSequence, events)
	return args.Error(0)
}

func (m *EventStore) LoadEvents(ctx context.Context, id string, fromSequence int64) ([]eventlog.WorkflowEvent, error) {
	args := m.Called(ctx, id, fromSequence)
	events, _ := args.Get(0).([]eventlog.WorkflowEvent)
	return events, args.Error(1)
}

func (m *EventStore) GetWorkflow(ctx context.Context, id string) (eventlog.WorkflowInstance, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(eventlog.WorkflowInstance), args.Error(1)
}

func (m *EventStore) UpdateStatus(ctx context.Context, id string, status eventlog.Status, output []byte, errVal string) error {
	args := m.Called(ctx, id, status, output, errVal)
	return args.Error(0)
}

func (m *EventStore) ListWorkflows(ctx context.Context, filter eventlog.ListFilter, page eventlog.Page) ([]eventlog.WorkflowInstance, error) {
	args := m.Called(ctx, filter, page)
	instances, _ := args.Get(0).([]eventlog.WorkflowInstance)
	return instances, args.Error(1)
}

var _ eventlog.Store = (*EventStore)(nil)

// TaskQueue is a testify/mock double for taskqueue.Queue, for worker
// pool tests that need to assert on exactly which claim/complete/fail
// calls happened rather than exercise a real MemoryQueue/PostgresQueue.
type TaskQueue struct{ mock.Mock }

func (m *TaskQueue) Enqueue(ctx context.Context, task taskqueue.Task) (string, error) {
	args := m.Called(ctx, task)
	return args.String(0), args.Error(1)
}

func (m *TaskQueue) Claim(ctx context.Context, workerID string, activityTypes []string, maxTasks int) ([]taskqueue.Task, error) {
	args := m.Called(ctx, workerID, activityTypes, maxTasks)
	tasks, _ := args.Get(0).([]taskqueue.Task)
	return tasks, args.Error(1)
}

func (m *TaskQueue) Heartbeat(ctx context.Context, taskID, workerID string, details []byte) (taskqueue.HeartbeatResult, error) {
	args := m.Called(ctx, taskID, workerID, details)
	return args.Get(0).(taskqueue.HeartbeatResult), args.Error(1)
}

func (m *TaskQueue) Complete(ctx context.Context, taskID, workerID string, output []byte) error {
	args := m.Called(ctx, taskID, workerID, output)
	return args.Error(0)
}

func (m *TaskQueue) Fail(ctx context.Context, taskID, workerID string, taskErr error) (taskqueue.FailResult, error) {
	args := m.Called(ctx, taskID, workerID, taskErr)
	return args.Get(0).(taskqueue.FailResult), args.Error(1)
}

func (m *TaskQueue) ReclaimStale(ctx context.Context, now time.Time) (int, error) {
	args := m.Called(ctx, now)
	return args.Int(0), args.Error(1)
}

func (m *TaskQueue) Get(ctx context.Context, taskID string) (taskqueue.Task, error) {
	args := m.Called(ctx, taskID)
	return args.Get(0).(taskqueue.Task), args.Error(1)
}

var _ taskqueue.Queue = (*TaskQueue)(nil)
