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
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
	"go.opentelemetry.io/otel/attribute"

	"github.com/turnforge/durable/durerr"
	"github.com/turnforge/durable/telemetry"
)

// Schema is the DDL PostgresStore expects. Callers are responsible for
// running migrations; this core does not ship a migration runner.
const Schema = `
CREATE TABLE IF NOT EXISTS workflow_instances (
	workflow_id    TEXT PRIMARY KEY,
	workflow_type  TEXT NOT NULL,
	status         TEXT NOT NULL,
	input          BYTEA,
	output         BYTEA,
	error          TEXT,
	sequence       BIGINT NOT NULL DEFAULT 0,
	created_at     TIMESTAMPTZ NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS workflow_events (
	workflow_id TEXT NOT NULL REFERENCES workflow_instances(workflow_id),
	sequence    BIGINT NOT NULL,
	event_type  TEXT NOT NULL,
	payload     BYTEA,
	created_at  TIMESTAMPTZ NOT NULL,
	UNIQUE (workflow_id, sequence)
);

CREATE INDEX IF NOT EXISTS workflow_instances_status_idx ON workflow_instances (status);
CREATE INDEX IF NOT EXISTS workflow_instances_type_idx ON workflow_instances (workflow_type);
`

// PostgresStore is a durable Store backed by a *sql.DB opened against
// lib/pq. Optimistic concurrency is enforced by a row lock on
// workflow_instances (SELECT ... FOR UPDATE) held for the duration of
// the append transaction.
type PostgresStore struct {
	db        *sql.DB
	telemetry *telemetry.Recorder
}

// NewPostgresStore wraps an already-open *sql.DB. Callers own the pool's
// lifetime (DB.Close).
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, telemetry: telemetry.NoOp()}
}

// WithTelemetry attaches a telemetry.Recorder for append_events span and
// latency instrumentation.
func (s *PostgresStore) WithTelemetry(r *telemetry.Recorder) *PostgresStore {
	s.telemetry = r
	return s
}

func (s *PostgresStore) CreateWorkflow(ctx context.Context, id, workflowType string, input []byte) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("eventlog: begin create workflow: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO workflow_instances (workflow_id, workflow_type, status, input, sequence, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 1, now(), now())`,
		id, workflowType, StatusRunning, input)
	if err != nil {
		if isUniqueViolation(err) {
			return &durerr.ConflictError{StreamID: id, ExpectedSequence: 0}
		}
		return fmt.Errorf("eventlog: insert workflow_instances: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO workflow_events (workflow_id, sequence, event_type, payload, created_at)
		VALUES ($1, 1, $2, $3, now())`,
		id, EventWorkflowStarted, input)
	if err != nil {
		return fmt.Errorf("eventlog: insert WorkflowStarted: %w", err)
	}

	return tx.Commit()
}

func (s *PostgresStore) AppendEvents(ctx context.Context, id string, expectedSequence int64, events ...EventType) error {
	pending := make([]PendingEvent, len(events))
	for i, t := range events {
		pending[i] = PendingEvent{Type: t}
	}
	return s.AppendEventsWithPayload(ctx, id, expectedSequence, pending)
}

func (s *PostgresStore) AppendEventsWithPayload(ctx context.Context, id string, expectedSequence int64, events []PendingEvent) (err error) {
	ctx, endSpan := s.telemetry.StartSpan(ctx, "eventlog.append_events",
		attribute.String("workflow_id", id), attribute.Int("event_count", len(events)))
	defer func() { endSpan(err) }()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("eventlog: begin append: %w", err)
	}
	defer tx.Rollback()

	var actual int64
	err = tx.QueryRowContext(ctx, `SELECT sequence FROM workflow_instances WHERE workflow_id = $1 FOR UPDATE`, id).Scan(&actual)
	if errors.Is(err, sql.ErrNoRows) {
		return &durerr.ConflictError{StreamID: id, ExpectedSequence: expectedSequence, ActualSequence: 0}
	}
	if err != nil {
		return fmt.Errorf("eventlog: lock workflow_instances: %w", err)
	}
	if actual != expectedSequence {
		return &durerr.ConflictError{StreamID: id, ExpectedSequence: expectedSequence, ActualSequence: actual}
	}

	seq := expectedSequence
	var newStatus Status
	var becameTerminal bool
	for _, e := range events {
		seq++
		_, err = tx.ExecContext(ctx, `
			INSERT INTO workflow_events (workflow_id, sequence, event_type, payload, created_at)
			VALUES ($1, $2, $3, $4, now())`,
			id, seq, e.Type, e.Payload)
		if err != nil {
			return fmt.Errorf("eventlog: insert event %s: %w", e.Type, err)
		}
		if st, ok := terminalEventTypes[e.Type]; ok {
			newStatus = st
			becameTerminal = true
		}
	}

	if becameTerminal {
		_, err = tx.ExecContext(ctx, `
			UPDATE workflow_instances SET sequence = $2, status = $3, updated_at = now()
			WHERE workflow_id = $1`, id, seq, newStatus)
	} else {
		_, err = tx.ExecContext(ctx, `
			UPDATE workflow_instances
			SET sequence = $2, updated_at = now(),
			    status = CASE WHEN status = $3 THEN $4 ELSE status END
			WHERE workflow_id = $1`, id, seq, StatusPending, StatusRunning)
	}
	if err != nil {
		return fmt.Errorf("eventlog: update workflow_instances: %w", err)
	}

	return tx.Commit()
}

func (s *PostgresStore) LoadEvents(ctx context.Context, id string, fromSequence int64) ([]WorkflowEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT workflow_id, sequence, event_type, payload, created_at
		FROM workflow_events
		WHERE workflow_id = $1 AND sequence > $2
		ORDER BY sequence ASC`, id, fromSequence)
	if err != nil {
		return nil, fmt.Errorf("eventlog: load events: %w", err)
	}
	defer rows.Close()

	var out []WorkflowEvent
	for rows.Next() {
		var e WorkflowEvent
		if err := rows.Scan(&e.WorkflowID, &e.Sequence, &e.Type, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("eventlog: scan event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetWorkflow(ctx context.Context, id string) (WorkflowInstance, error) {
	var inst WorkflowInstance
	var output sql.NullString
	var errVal sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT workflow_id, workflow_type, status, input, output, error, created_at, updated_at
		FROM workflow_instances WHERE workflow_id = $1`, id).
		Scan(&inst.WorkflowID, &inst.WorkflowType, &inst.Status, &inst.Input, &output, &errVal, &inst.CreatedAt, &inst.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return WorkflowInstance{}, &durerr.InvalidStateError{EntityID: id, State: "absent", Action: "get"}
	}
	if err != nil {
		return WorkflowInstance{}, fmt.Errorf("eventlog: get workflow: %w", err)
	}
	inst.Output = []byte(output.String)
	inst.Err = errVal.String
	return inst, nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, id string, status Status, output []byte, errVal string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE workflow_instances SET status = $2, output = $3, error = $4, updated_at = now()
		WHERE workflow_id = $1`, id, status, output, errVal)
	if err != nil {
		return fmt.Errorf("eventlog: update status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &durerr.InvalidStateError{EntityID: id, State: "absent", Action: "update status for"}
	}
	return nil
}

func (s *PostgresStore) ListWorkflows(ctx context.Context, filter ListFilter, page Page) ([]WorkflowInstance, error) {
	limit := page.Limit
	if limit <= 0 {
		limit = 100
	}

	var clauses []string
	var args []interface{}
	add := func(clause string, val interface{}) {
		args = append(args, val)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}
	if filter.WorkflowType != "" {
		add("workflow_type = $%d", filter.WorkflowType)
	}
	if !filter.CreatedAfter.IsZero() {
		add("created_at >= $%d", filter.CreatedAfter)
	}
	if !filter.CreatedBefore.IsZero() {
		add("created_at <= $%d", filter.CreatedBefore)
	}

	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	args = append(args, limit, page.Offset)

	query := fmt.Sprintf(`
		SELECT workflow_id, workflow_type, status, input, output, error, created_at, updated_at
		FROM workflow_instances
		%s
		ORDER BY created_at ASC
		LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("eventlog: list workflows: %w", err)
	}
	defer rows.Close()

	var out []WorkflowInstance
	for rows.Next() {
		var inst WorkflowInstance
		var output, errVal sql.NullString
		if err := rows.Scan(&inst.WorkflowID, &inst.WorkflowType, &inst.Status, &inst.Input, &output, &errVal, &inst.CreatedAt, &inst.UpdatedAt); err != nil {
			return nil, fmt.Errorf("eventlog: scan workflow: %w", err)
		}
		inst.Output = []byte(output.String)
		inst.Err = errVal.String
		out = append(out, inst)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "duplicate key value violates unique constraint")
}

var _ Store = (*PostgresStore)(nil)
