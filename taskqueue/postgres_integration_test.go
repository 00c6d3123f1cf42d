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

package taskqueue

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/turnforge/durable/retry"
)

func setupPostgresQueue(ctx context.Context, t *testing.T) (*PostgresQueue, func()) {
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
	require.NoError(t, err)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sql.Open("postgres", connStr)
	require.NoError(t, err)
	require.NoError(t, db.Ping())

	_, err = db.Exec(Schema)
	require.NoError(t, err)

	cleanup := func() {
		db.Close()
		_ = pgContainer.Terminate(ctx)
	}
	return NewPostgresQueue(db, WithDefaultRetryPolicy(retry.DefaultPolicy())), cleanup
}

func TestPostgresQueueClaimIsExclusiveAcrossConcurrentWorkers(t *testing.T) {
	ctx := context.Background()
	q, cleanup := setupPostgresQueue(ctx, t)
	defer cleanup()

	for i := 0; i < 20; i++ {
		_, err := q.Enqueue(ctx, Task{
			TaskID: fmt.Sprintf("pg-task-%d", i), WorkflowID: "wf-1",
			ActivityID: fmt.Sprintf("act-%d", i), ActivityType: "call_llm",
		})
		require.NoError(t, err)
	}

	seen := make(map[string]bool)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			claimed, err := q.Claim(ctx, fmt.Sprintf("worker-%d", worker), []string{"call_llm"}, 10)
			require.NoError(t, err)
			mu.Lock()
			defer mu.Unlock()
			for _, task := range claimed {
				require.False(t, seen[task.TaskID], "task %s double-claimed", task.TaskID)
				seen[task.TaskID] = true
			}
		}(w)
	}
	wg.Wait()
	require.Len(t, seen, 20)
}

func TestPostgresQueueCompleteAndFailLifecycle(t *testing.T) {
	ctx := context.Background()
	q, cleanup := setupPostgresQueue(ctx, t)
	defer cleanup()

	_, err := q.Enqueue(ctx, Task{TaskID: "pg-task-complete", WorkflowID: "wf-1", ActivityID: "a1", ActivityType: "x"})
	require.NoError(t, err)

	claimed, err := q.Claim(ctx, "worker-1", []string{"x"}, 1)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	require.NoError(t, q.Complete(ctx, "pg-task-complete", "worker-1", []byte(`"done"`)))

	task, err := q.Get(ctx, "pg-task-complete")
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, task.Status)
}

func TestPostgresQueueFailGatesRetryBehindBackoff(t *testing.T) {
	ctx := context.Background()
	q, cleanup := setupPostgresQueue(ctx, t)
	defer cleanup()

	_, err := q.Enqueue(ctx, Task{
		TaskID: "pg-task-backoff", WorkflowID: "wf-1", ActivityID: "a1", ActivityType: "x",
		RetryPolicy: retry.Policy{MaxAttempts: 3, InitialInterval: time.Hour, BackoffMultiplier: 2, MaxInterval: 24 * time.Hour},
	})
	require.NoError(t, err)

	claimed, err := q.Claim(ctx, "worker-1", []string{"x"}, 1)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	result, err := q.Fail(ctx, "pg-task-backoff", "worker-1", fmt.Errorf("transient failure"))
	require.NoError(t, err)
	require.True(t, result.WillRetry)

	claimed, err = q.Claim(ctx, "worker-2", []string{"x"}, 1)
	require.NoError(t, err)
	require.Empty(t, claimed, "task must not be claimable before its backoff elapses")
}

func TestPostgresQueueReclaimStaleReturnsExpiredClaims(t *testing.T) {
	ctx := context.Background()
	q, cleanup := setupPostgresQueue(ctx, t)
	defer cleanup()

	_, err := q.Enqueue(ctx, Task{
		TaskID: "pg-task-stale", WorkflowID: "wf-1", ActivityID: "a1", ActivityType: "x",
		Timeouts: Timeouts{Heartbeat: time.Millisecond},
	})
	require.NoError(t, err)
	_, err = q.Claim(ctx, "worker-1", []string{"x"}, 1)
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)

	count, err := q.ReclaimStale(ctx, time.Now())
	require.NoError(t, err)
	require.Equal(t, 1, count)
}
