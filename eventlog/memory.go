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

package eventlog

import (
	"context"
	"sort"
	"sync"

	"github.com/facebookgo/clock"

	"github.com/turnforge/durable/durerr"
)

type memoryStream struct {
	instance WorkflowInstance
	events   []WorkflowEvent
}

// MemoryStore is a mutex-guarded, in-process Store implementation. It is
// used by the engine's own tests and by callers that don't need
// durability (worked examples, CLI dry-runs).
type MemoryStore struct {
	mu      sync.Mutex
	streams map[string]*memoryStream
	clock   clock.Clock
}

// MemoryStoreOption configures a MemoryStore.
type MemoryStoreOption func(*MemoryStore)

// WithClock overrides the clock used to stamp CreatedAt/UpdatedAt, for
// deterministic tests.
func WithClock(c clock.Clock) MemoryStoreOption {
	return func(s *MemoryStore) { s.clock = c }
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		streams: make(map[string]*memoryStream),
		clock:   clock.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) CreateWorkflow(ctx context.Context, id, workflowType string, input []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.streams[id]; exists {
		return &durerr.ConflictError{StreamID: id, ExpectedSequence: 0, ActualSequence: int64(len(s.streams[id].events))}
	}

	now := s.clock.Now()
	stream := &memoryStream{
		instance: WorkflowInstance{
			WorkflowID:   id,
			WorkflowType: workflowType,
			Status:       StatusRunning,
			Input:        input,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
		events: []WorkflowEvent{
			{WorkflowID: id, Sequence: 1, Type: EventWorkflowStarted, Payload: input, CreatedAt: now},
		},
	}
	s.streams[id] = stream
	return nil
}

func (s *MemoryStore) AppendEvents(ctx context.Context, id string, expectedSequence int64, events ...EventType) error {
	pending := make([]PendingEvent, len(events))
	for i, t := range events {
		pending[i] = PendingEvent{Type: t}
	}
	return s.AppendEventsWithPayload(ctx, id, expectedSequence, pending)
}

func (s *MemoryStore) AppendEventsWithPayload(ctx context.Context, id string, expectedSequence int64, events []PendingEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stream, ok := s.streams[id]
	if !ok {
		return &durerr.ConflictError{StreamID: id, ExpectedSequence: expectedSequence, ActualSequence: 0}
	}

	actual := int64(len(stream.events))
	if actual != expectedSequence {
		return &durerr.ConflictError{StreamID: id, ExpectedSequence: expectedSequence, ActualSequence: actual}
	}

	now := s.clock.Now()
	seq := expectedSequence
	var newStatus Status
	var becameTerminal bool
	for _, e := range events {
		seq++
		stream.events = append(stream.events, WorkflowEvent{
			WorkflowID: id,
			Sequence:   seq,
			Type:       e.Type,
			Payload:    e.Payload,
			CreatedAt:  now,
		})
		if st, ok := terminalEventTypes[e.Type]; ok {
			newStatus = st
			becameTerminal = true
		}
	}

	stream.instance.UpdatedAt = now
	if becameTerminal {
		stream.instance.Status = newStatus
	} else if stream.instance.Status == StatusPending {
		stream.instance.Status = StatusRunning
	}
	return nil
}

func (s *MemoryStore) LoadEvents(ctx context.Context, id string, fromSequence int64) ([]WorkflowEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stream, ok := s.streams[id]
	if !ok {
		return nil, &durerr.InvalidStateError{EntityID: id, State: "absent", Action: "load events for"}
	}

	out := make([]WorkflowEvent, 0, len(stream.events))
	for _, e := range stream.events {
		if e.Sequence > fromSequence {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *MemoryStore) GetWorkflow(ctx context.Context, id string) (WorkflowInstance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stream, ok := s.streams[id]
	if !ok {
		return WorkflowInstance{}, &durerr.InvalidStateError{EntityID: id, State: "absent", Action: "get"}
	}
	return stream.instance, nil
}

func (s *MemoryStore) UpdateStatus(ctx context.Context, id string, status Status, output []byte, errVal string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stream, ok := s.streams[id]
	if !ok {
		return &durerr.InvalidStateError{EntityID: id, State: "absent", Action: "update status for"}
	}
	stream.instance.Status = status
	stream.instance.Output = output
	stream.instance.Err = errVal
	stream.instance.UpdatedAt = s.clock.Now()
	return nil
}

func (s *MemoryStore) ListWorkflows(ctx context.Context, filter ListFilter, page Page) ([]WorkflowInstance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matches := make([]WorkflowInstance, 0, len(s.streams))
	for _, stream := range s.streams {
		inst := stream.instance
		if filter.Status != "" && inst.Status != filter.Status {
			continue
		}
		if filter.WorkflowType != "" && inst.WorkflowType != filter.WorkflowType {
			continue
		}
		if !filter.CreatedAfter.IsZero() && inst.CreatedAt.Before(filter.CreatedAfter) {
			continue
		}
		if !filter.CreatedBefore.IsZero() && inst.CreatedAt.After(filter.CreatedBefore) {
			continue
		}
		matches = append(matches, inst)
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].CreatedAt.Before(matches[j].CreatedAt)
	})

	limit := page.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := page.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(matches) {
		return []WorkflowInstance{}, nil
	}
	end := offset + limit
	if end > len(matches) {
		end = len(matches)
	}
	return matches[offset:end], nil
}

var _ Store = (*MemoryStore)(nil)
