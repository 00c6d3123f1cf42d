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
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.opentelemetry.io/otel/attribute"

	"github.com/turnforge/durable/durerr"
	"github.com/turnforge/durable/retry"
	"github.com/turnforge/durable/telemetry"
)

// Schema is the DDL PostgresQueue expects.
const Schema = `
CREATE TABLE IF NOT EXISTS tasks (
	task_id          TEXT PRIMARY KEY,
	workflow_id      TEXT NOT NULL,
	activity_id      TEXT NOT NULL,
	activity_type    TEXT NOT NULL,
	input            BYTEA,
	output           BYTEA,
	priority         INT NOT NULL DEFAULT 0,
	status           TEXT NOT NULL,
	attempt          INT NOT NULL DEFAULT 0,
	max_attempts     INT NOT NULL DEFAULT 3,
	claimed_by       TEXT,
	claimed_at       TIMESTAMPTZ,
	heartbeat_at     TIMESTAMPTZ,
	enqueued_at      TIMESTAMPTZ NOT NULL,
	visible_after    TIMESTAMPTZ,
	retry_policy     JSONB NOT NULL DEFAULT '{}'::jsonb,
	schedule_to_start_ms BIGINT NOT NULL DEFAULT 0,
	start_to_close_ms    BIGINT NOT NULL DEFAULT 0,
	heartbeat_timeout_ms BIGINT NOT NULL DEFAULT 0,
	last_error       TEXT,
	UNIQUE (workflow_id, activity_id)
);

CREATE INDEX IF NOT EXISTS tasks_claim_idx ON tasks (status, priority DESC, enqueued_at ASC, task_id ASC);
`

// PostgresQueue is a durable Queue backed by lib/pq. Claim is implemented
// as SELECT ... FOR UPDATE SKIP LOCKED so concurrent workers never
// contend on the same row and never double-claim.
type PostgresQueue struct {
	db             *sql.DB
	defaultPolicy  retry.Policy
	telemetry      *telemetry.Recorder
}

// PostgresQueueOption configures a PostgresQueue.
type PostgresQueueOption func(*PostgresQueue)

// WithDefaultRetryPolicy sets the retry policy applied to tasks enqueued
// without one of their own.
func WithDefaultRetryPolicy(p retry.Policy) PostgresQueueOption {
	return func(q *PostgresQueue) { q.defaultPolicy = p }
}

// WithQueueTelemetry attaches a telemetry.Recorder for claim span and
// dead-letter counter instrumentation.
func WithQueueTelemetry(r *telemetry.Recorder) PostgresQueueOption {
	return func(q *PostgresQueue) { q.telemetry = r }
}

// NewPostgresQueue wraps an already-open *sql.DB.
func NewPostgresQueue(db *sql.DB, opts ...PostgresQueueOption) *PostgresQueue {
	q := &PostgresQueue{db: db, defaultPolicy: retry.DefaultPolicy(), telemetry: telemetry.NoOp()}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

func (q *PostgresQueue) Enqueue(ctx context.Context, task Task) (string, error) {
	if task.TaskID == "" {
		return "", errors.New("taskqueue: task.TaskID must be assigned by the caller before Enqueue")
	}
	if task.RetryPolicy.MaxAttempts == 0 {
		task.RetryPolicy = q.defaultPolicy
	}
	if task.MaxAttempts == 0 {
		task.MaxAttempts = task.RetryPolicy.MaxAttempts
	}

	policyJSON, err := json.Marshal(task.RetryPolicy)
	if err != nil {
		return "", fmt.Errorf("taskqueue: marshal retry policy: %w", err)
	}

	var existing string
	err = q.db.QueryRowContext(ctx, `
		INSERT INTO tasks (task_id, workflow_id, activity_id, activity_type, input, priority, status,
		                    max_attempts, enqueued_at, retry_policy, schedule_to_start_ms, start_to_close_ms, heartbeat_timeout_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), $9, $10, $11, $12)
		ON CONFLICT (workflow_id, activity_id) DO UPDATE SET workflow_id = tasks.workflow_id
		RETURNING task_id`,
		task.TaskID, task.WorkflowID, task.ActivityID, task.ActivityType, task.Input, task.Priority, StatusPending,
		task.MaxAttempts, policyJSON, task.Timeouts.ScheduleToStart.Milliseconds(), task.Timeouts.StartToClose.Milliseconds(),
		task.Timeouts.Heartbeat.Milliseconds()).Scan(&existing)
	if err != nil {
		return "", fmt.Errorf("taskqueue: enqueue: %w", err)
	}
	return existing, nil
}

func (q *PostgresQueue) Claim(ctx context.Context, workerID string, activityTypes []string, maxTasks int) (claimed []Task, err error) {
	if len(activityTypes) == 0 || maxTasks <= 0 {
		return nil, nil
	}

	ctx, endSpan := q.telemetry.StartSpan(ctx, "taskqueue.claim",
		attribute.String("worker_id", workerID), attribute.Int("max_tasks", maxTasks))
	defer func() { endSpan(err) }()

	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("taskqueue: begin claim: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT task_id FROM tasks
		WHERE status = $1 AND activity_type = ANY($2) AND (visible_after IS NULL OR visible_after <= now())
		ORDER BY priority DESC, enqueued_at ASC, task_id ASC
		LIMIT $3
		FOR UPDATE SKIP LOCKED`, StatusPending, pq.Array(activityTypes), maxTasks)
	if err != nil {
		return nil, fmt.Errorf("taskqueue: select claimable: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("taskqueue: scan claimable id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, tx.Commit()
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE tasks
		SET status = $1, claimed_by = $2, claimed_at = now(), heartbeat_at = now(), attempt = attempt + 1
		WHERE task_id = ANY($3)`, StatusClaimed, workerID, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("taskqueue: mark claimed: %w", err)
	}

	claimed = make([]Task, 0, len(ids))
	for _, id := range ids {
		task, err := scanTask(tx.QueryRowContext(ctx, selectTaskSQL, id))
		if err != nil {
			return nil, err
		}
		claimed = append(claimed, task)
	}

	return claimed, tx.Commit()
}

const selectTaskSQL = `
	SELECT task_id, workflow_id, activity_id, activity_type, input, output, priority, status,
	       attempt, max_attempts, COALESCE(claimed_by, ''), claimed_at, heartbeat_at, enqueued_at, visible_after,
	       retry_policy, schedule_to_start_ms, start_to_close_ms, heartbeat_timeout_ms, COALESCE(last_error, '')
	FROM tasks WHERE task_id = $1`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row rowScanner) (Task, error) {
	var t Task
	var claimedAt, heartbeatAt, visibleAfter sql.NullTime
	var scheduleMs, startCloseMs, heartbeatMs int64
	var policyJSON []byte
	err := row.Scan(&t.TaskID, &t.WorkflowID, &t.ActivityID, &t.ActivityType, &t.Input, &t.Output, &t.Priority, &t.Status,
		&t.Attempt, &t.MaxAttempts, &t.ClaimedBy, &claimedAt, &heartbeatAt, &t.EnqueuedAt, &visibleAfter,
		&policyJSON, &scheduleMs, &startCloseMs, &heartbeatMs, &t.LastError)
	if errors.Is(err, sql.ErrNoRows) {
		return Task{}, &durerr.InvalidStateError{EntityID: "", State: "absent", Action: "get"}
	}
	if err != nil {
		return Task{}, fmt.Errorf("taskqueue: scan task: %w", err)
	}
	if claimedAt.Valid {
		t.ClaimedAt = claimedAt.Time
	}
	if heartbeatAt.Valid {
		t.HeartbeatAt = heartbeatAt.Time
	}
	if visibleAfter.Valid {
		t.VisibleAfter = visibleAfter.Time
	}
	if len(policyJSON) > 0 {
		if err := json.Unmarshal(policyJSON, &t.RetryPolicy); err != nil {
			return Task{}, fmt.Errorf("taskqueue: unmarshal retry policy: %w", err)
		}
	}
	t.Timeouts = Timeouts{
		ScheduleToStart: time.Duration(scheduleMs) * time.Millisecond,
		StartToClose:    time.Duration(startCloseMs) * time.Millisecond,
		Heartbeat:       time.Duration(heartbeatMs) * time.Millisecond,
	}
	return t, nil
}

func (q *PostgresQueue) Heartbeat(ctx context.Context, taskID, workerID string, details []byte) (HeartbeatResult, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE tasks SET heartbeat_at = now()
		WHERE task_id = $1 AND claimed_by = $2 AND status = $3`, taskID, workerID, StatusClaimed)
	if err != nil {
		return HeartbeatResult{}, fmt.Errorf("taskqueue: heartbeat: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return HeartbeatResult{}, &durerr.NotOwnedError{TaskID: taskID, ClaimToken: workerID}
	}
	return HeartbeatResult{Acknowledged: true}, nil
}

func (q *PostgresQueue) Complete(ctx context.Context, taskID, workerID string, output []byte) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE tasks SET status = $1, output = $2
		WHERE task_id = $3 AND claimed_by = $4 AND status = $5`,
		StatusCompleted, output, taskID, workerID, StatusClaimed)
	if err != nil {
		return fmt.Errorf("taskqueue: complete: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return q.classifyNoopOwnershipFailure(ctx, taskID, workerID, "complete")
	}
	return nil
}

func (q *PostgresQueue) Fail(ctx context.Context, taskID, workerID string, taskErr error) (FailResult, error) {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return FailResult{}, fmt.Errorf("taskqueue: begin fail: %w", err)
	}
	defer tx.Rollback()

	task, err := scanTask(tx.QueryRowContext(ctx, selectTaskSQL+" FOR UPDATE", taskID))
	if err != nil {
		return FailResult{}, err
	}
	if task.ClaimedBy != workerID || task.Status != StatusClaimed {
		return FailResult{}, &durerr.NotOwnedError{TaskID: taskID, ClaimToken: workerID}
	}

	willRetry := task.RetryPolicy.ShouldRetry(task.Attempt, taskErr)
	newStatus := StatusDeadLettered
	var waitSeconds float64
	if willRetry {
		newStatus = StatusPending
		waitSeconds = task.RetryPolicy.WaitBefore(task.Attempt + 1).Seconds()
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE tasks
		SET status = $1, claimed_by = NULL, last_error = $2,
		    visible_after = CASE WHEN $4 THEN now() + make_interval(secs => $5) ELSE visible_after END
		WHERE task_id = $3`, newStatus, taskErr.Error(), taskID, willRetry, waitSeconds)
	if err != nil {
		return FailResult{}, fmt.Errorf("taskqueue: mark failed: %w", err)
	}

	if !willRetry {
		q.telemetry.IncCounter("dead_lettered", map[string]string{"activity_type": task.ActivityType}, 1)
	}

	return FailResult{WillRetry: willRetry}, tx.Commit()
}

func (q *PostgresQueue) ReclaimStale(ctx context.Context, now time.Time) (int, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE tasks
		SET status = $1, claimed_by = NULL, attempt = attempt + 1
		WHERE status = $2
		  AND (
		    (heartbeat_timeout_ms > 0 AND EXTRACT(EPOCH FROM ($3 - heartbeat_at)) * 1000 > heartbeat_timeout_ms)
		    OR
		    (start_to_close_ms > 0 AND EXTRACT(EPOCH FROM ($3 - claimed_at)) * 1000 > start_to_close_ms)
		  )`, StatusPending, StatusClaimed, now)
	if err != nil {
		return 0, fmt.Errorf("taskqueue: reclaim stale: %w", err)
	}
	n, _ := res.RowsAffected()

	res, err = q.db.ExecContext(ctx, `
		UPDATE tasks
		SET status = $1, last_error = 'schedule_to_start timeout exceeded'
		WHERE status = $2
		  AND schedule_to_start_ms > 0
		  AND EXTRACT(EPOCH FROM ($3 - GREATEST(enqueued_at, COALESCE(visible_after, enqueued_at)))) * 1000 > schedule_to_start_ms`,
		StatusDeadLettered, StatusPending, now)
	if err != nil {
		return int(n), fmt.Errorf("taskqueue: reclaim schedule-to-start: %w", err)
	}
	n2, _ := res.RowsAffected()
	return int(n) + int(n2), nil
}

func (q *PostgresQueue) Get(ctx context.Context, taskID string) (Task, error) {
	return scanTask(q.db.QueryRowContext(ctx, selectTaskSQL, taskID))
}

func (q *PostgresQueue) classifyNoopOwnershipFailure(ctx context.Context, taskID, workerID, action string) error {
	task, err := q.Get(ctx, taskID)
	if err != nil {
		return err
	}
	if task.ClaimedBy != workerID {
		return &durerr.NotOwnedError{TaskID: taskID, ClaimToken: workerID}
	}
	return &durerr.InvalidStateError{EntityID: taskID, State: string(task.Status), Action: action}
}

var _ Queue = (*PostgresQueue)(nil)
