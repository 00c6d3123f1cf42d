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
	"testing"

	"github.com/facebookgo/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turnforge/durable/durerr"
)

func TestMemoryStoreCreateWorkflowAppendsStartedEvent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	err := store.CreateWorkflow(ctx, "wf-1", "turn_workflow", []byte(`{"session_id":"s1"}`))
	require.NoError(t, err)

	events, err := store.LoadEvents(ctx, "wf-1", 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventWorkflowStarted, events[0].Type)
	assert.Equal(t, int64(1), events[0].Sequence)

	inst, err := store.GetWorkflow(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, inst.Status)
}

func TestMemoryStoreCreateWorkflowConflictsOnDuplicateID(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.CreateWorkflow(ctx, "wf-1", "turn_workflow", nil))
	err := store.CreateWorkflow(ctx, "wf-1", "turn_workflow", nil)

	var conflictErr *durerr.ConflictError
	require.ErrorAs(t, err, &conflictErr)
}

func TestMemoryStoreAppendEventsOptimisticConcurrency(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.CreateWorkflow(ctx, "wf-1", "turn_workflow", nil))

	err := store.AppendEvents(ctx, "wf-1", 1, EventActivityScheduled)
	require.NoError(t, err)

	// Stale expectedSequence must conflict.
	err = store.AppendEvents(ctx, "wf-1", 1, EventActivityScheduled)
	var conflictErr *durerr.ConflictError
	require.ErrorAs(t, err, &conflictErr)
	assert.Equal(t, int64(1), conflictErr.ExpectedSequence)
	assert.Equal(t, int64(2), conflictErr.ActualSequence)
}

func TestMemoryStoreAppendEventsDenormalizesTerminalStatus(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.CreateWorkflow(ctx, "wf-1", "turn_workflow", nil))

	err := store.AppendEventsWithPayload(ctx, "wf-1", 1, []PendingEvent{
		{Type: EventWorkflowCompleted, Payload: []byte(`"done"`)},
	})
	require.NoError(t, err)

	inst, err := store.GetWorkflow(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, inst.Status)
}

func TestMemoryStoreLoadEventsIsOrderedAndFiltersBySequence(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.CreateWorkflow(ctx, "wf-1", "t", nil))
	require.NoError(t, store.AppendEvents(ctx, "wf-1", 1, EventActivityScheduled, EventActivityStarted, EventActivityCompleted))

	events, err := store.LoadEvents(ctx, "wf-1", 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, EventActivityStarted, events[0].Type)
	assert.Equal(t, EventActivityCompleted, events[1].Type)
}

func TestMemoryStoreListWorkflowsFiltersAndPaginates(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.CreateWorkflow(ctx, "wf-1", "turn_workflow", nil))
	require.NoError(t, store.CreateWorkflow(ctx, "wf-2", "turn_workflow", nil))
	require.NoError(t, store.CreateWorkflow(ctx, "wf-3", "other_workflow", nil))

	results, err := store.ListWorkflows(ctx, ListFilter{WorkflowType: "turn_workflow"}, Page{})
	require.NoError(t, err)
	assert.Len(t, results, 2)

	paged, err := store.ListWorkflows(ctx, ListFilter{}, Page{Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Len(t, paged, 1)
}

func TestMemoryStoreUsesInjectedClock(t *testing.T) {
	mock := clock.NewMock()
	store := NewMemoryStore(WithClock(mock))
	ctx := context.Background()

	require.NoError(t, store.CreateWorkflow(ctx, "wf-1", "t", nil))
	inst, err := store.GetWorkflow(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, mock.Now(), inst.CreatedAt)
}
