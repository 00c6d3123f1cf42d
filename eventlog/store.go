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

import "context"

// Store is the narrow persistence boundary the engine drives replay
// through. Implementations must guarantee that AppendEvents is atomic
// with any status denormalization it performs, and that LoadEvents
// observes every append that completed before the call started.
type Store interface {
	// CreateWorkflow registers a new workflow instance and appends its
	// WorkflowStarted event as sequence 1, atomically. Returns
	// *durerr.ConflictError if id already exists.
	CreateWorkflow(ctx context.Context, id, workflowType string, input []byte) error

	// AppendEvents appends events to id's stream, assigning them
	// sequence numbers starting at expectedSequence+1. Returns
	// *durerr.ConflictError if the stream's current tail sequence does
	// not equal expectedSequence.
	AppendEvents(ctx context.Context, id string, expectedSequence int64, events ...EventType) error

	// AppendEventsWithPayload is the payload-carrying form of
	// AppendEvents; callers that need to attach data use this instead.
	AppendEventsWithPayload(ctx context.Context, id string, expectedSequence int64, events []PendingEvent) error

	// LoadEvents returns id's events with sequence > fromSequence, in
	// ascending sequence order.
	LoadEvents(ctx context.Context, id string, fromSequence int64) ([]WorkflowEvent, error)

	// GetWorkflow returns the denormalized instance row for id.
	GetWorkflow(ctx context.Context, id string) (WorkflowInstance, error)

	// UpdateStatus denormalizes a terminal (or otherwise derived)
	// status onto the instance row. Implementations do not require this
	// be called atomically with the triggering event append, but the
	// in-memory and Postgres stores both do so as part of
	// AppendEventsWithPayload when a terminal event type is present.
	UpdateStatus(ctx context.Context, id string, status Status, output []byte, errVal string) error

	// ListWorkflows returns instances matching filter, paginated.
	ListWorkflows(ctx context.Context, filter ListFilter, page Page) ([]WorkflowInstance, error)
}

// PendingEvent is an event awaiting assignment of a sequence number by
// AppendEventsWithPayload.
type PendingEvent struct {
	Type    EventType
	Payload []byte
}
