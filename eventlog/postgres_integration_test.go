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

//go:build integration

package eventlog

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/turnforge/durable/durerr"
)

func setupPostgresStore(ctx context.Context, t *testing.T) (*PostgresStore, func()) {
	t.Helper()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("durable_test"),
		postgres.WithUsername("durable"),
		postgres.WithPassword("durable"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(2*time.Minute)),
	)
	require.NoError(t, err, "failed to start postgres container")

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sql.Open("postgres", connStr)
	require.NoError(t, err)
	require.NoError(t, db.Ping())

	_, err = db.Exec(Schema)
	require.NoError(t, err, "failed to apply schema")

	cleanup := func() {
		db.Close()
		_ = pgContainer.Terminate(ctx)
	}
	return NewPostgresStore(db), cleanup
}

func TestPostgresStoreCreateAndLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, cleanup := setupPostgresStore(ctx, t)
	defer cleanup()

	require.NoError(t, store.CreateWorkflow(ctx, "wf-pg-1", "turn_workflow", []byte(`{"session_id":"s1"}`)))

	events, err := store.LoadEvents(ctx, "wf-pg-1", 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, EventWorkflowStarted, events[0].Type)

	inst, err := store.GetWorkflow(ctx, "wf-pg-1")
	require.NoError(t, err)
	require.Equal(t, StatusRunning, inst.Status)
}

func TestPostgresStoreAppendEventsConflictsUnderConcurrentWriters(t *testing.T) {
	ctx := context.Background()
	store, cleanup := setupPostgresStore(ctx, t)
	defer cleanup()

	require.NoError(t, store.CreateWorkflow(ctx, "wf-pg-2", "turn_workflow", nil))
	require.NoError(t, store.AppendEvents(ctx, "wf-pg-2", 1, EventActivityScheduled))

	err := store.AppendEvents(ctx, "wf-pg-2", 1, EventActivityScheduled)
	var conflictErr *durerr.ConflictError
	require.ErrorAs(t, err, &conflictErr)
	require.Equal(t, int64(2), conflictErr.ActualSequence)
}

func TestPostgresStoreAppendEventsDenormalizesTerminalStatus(t *testing.T) {
	ctx := context.Background()
	store, cleanup := setupPostgresStore(ctx, t)
	defer cleanup()

	require.NoError(t, store.CreateWorkflow(ctx, "wf-pg-3", "turn_workflow", nil))
	require.NoError(t, store.AppendEventsWithPayload(ctx, "wf-pg-3", 1, []PendingEvent{
		{Type: EventWorkflowFailed, Payload: []byte(`"boom"`)},
	}))

	inst, err := store.GetWorkflow(ctx, "wf-pg-3")
	require.NoError(t, err)
	require.Equal(t, StatusFailed, inst.Status)
}

func TestPostgresStoreListWorkflowsFiltersByStatus(t *testing.T) {
	ctx := context.Background()
	store, cleanup := setupPostgresStore(ctx, t)
	defer cleanup()

	require.NoError(t, store.CreateWorkflow(ctx, "wf-pg-4", "turn_workflow", nil))
	require.NoError(t, store.CreateWorkflow(ctx, "wf-pg-5", "turn_workflow", nil))
	require.NoError(t, store.AppendEventsWithPayload(ctx, "wf-pg-5", 1, []PendingEvent{{Type: EventWorkflowCompleted}}))

	running, err := store.ListWorkflows(ctx, ListFilter{Status: StatusRunning}, Page{})
	require.NoError(t, err)
	require.Len(t, running, 1)
	require.Equal(t, "wf-pg-4", running[0].WorkflowID)
}
