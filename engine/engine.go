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

package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/turnforge/durable/durerr"
	"github.com/turnforge/durable/eventlog"
	"github.com/turnforge/durable/taskqueue"
)

// TerminalHook is notified once, synchronously, the first time a
// workflow's status transitions to a terminal eventlog.Status. It
// receives the workflow's original WorkflowStarted input alongside its
// type so a hook that only cares about one workflow type (e.g. to
// bridge into a session event stream) can decode it and ignore the
// rest. Errors are the hook's own responsibility to log; Engine does
// not retry or propagate them.
type TerminalHook func(ctx context.Context, workflowID, workflowType string, input []byte, status eventlog.Status, output []byte, errMsg string)

// Engine drives workflow instances forward: it replays a workflow's
// event history through its registered type's callbacks and applies the
// resulting actions under the event store's optimistic concurrency.
type Engine struct {
	store        eventlog.Store
	queue        taskqueue.Queue
	registry     *Registry
	logger       *zap.Logger
	terminalHook TerminalHook
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger overrides the engine's logger; defaults to zap.NewNop().
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithTerminalHook registers fn to run whenever a workflow reaches a
// terminal status. Defaults to nil, which skips the call entirely.
func WithTerminalHook(fn TerminalHook) Option {
	return func(e *Engine) { e.terminalHook = fn }
}

// NewEngine constructs an Engine over store and queue.
func NewEngine(store eventlog.Store, queue taskqueue.Queue, registry *Registry, opts ...Option) *Engine {
	e := &Engine{store: store, queue: queue, registry: registry, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// activityCompletedPayload is the JSON shape of an ActivityCompleted
// event's payload.
type activityCompletedPayload struct {
	ActivityID string          `json:"activity_id"`
	Result     json.RawMessage `json:"result"`
}

type timerFiredPayload struct {
	TimerID string `json:"timer_id"`
}

type signalReceivedPayload struct {
	SignalType string          `json:"signal_type"`
	Payload    json.RawMessage `json:"payload"`
}

// StartWorkflow creates workflowID with the given type and input, then
// drives its OnStart callback to completion.
func (e *Engine) StartWorkflow(ctx context.Context, workflowID, workflowType string, input []byte) error {
	if _, ok := e.registry.Lookup(workflowType); !ok {
		return fmt.Errorf("engine: unregistered workflow type %q", workflowType)
	}
	if err := e.store.CreateWorkflow(ctx, workflowID, workflowType, input); err != nil {
		return err
	}
	return e.drive(ctx, workflowID)
}

// NotifyActivityCompleted appends an ActivityCompleted event and drives
// the workflow's OnActivityCompleted callback.
func (e *Engine) NotifyActivityCompleted(ctx context.Context, workflowID, activityID string, result []byte) error {
	payload, err := json.Marshal(activityCompletedPayload{ActivityID: activityID, Result: result})
	if err != nil {
		return fmt.Errorf("engine: marshal ActivityCompleted payload: %w", err)
	}
	return e.appendAndDrive(ctx, workflowID, eventlog.PendingEvent{Type: eventlog.EventActivityCompleted, Payload: payload})
}

// NotifyActivityFailed appends an ActivityFailed event. The workflow's
// OnActivityFailed callback is only invoked (and the workflow thereby
// driven) when willRetry is false, matching the spec's observability
// invariant: retryable failures are recorded but not surfaced to
// workflow code.
func (e *Engine) NotifyActivityFailed(ctx context.Context, workflowID, activityID, failureErr string, willRetry bool) error {
	payload, err := json.Marshal(eventlog.ActivityFailedPayload{ActivityID: activityID, Error: failureErr, WillRetry: willRetry})
	if err != nil {
		return fmt.Errorf("engine: marshal ActivityFailed payload: %w", err)
	}
	if !willRetry {
		return e.appendAndDrive(ctx, workflowID, eventlog.PendingEvent{Type: eventlog.EventActivityFailed, Payload: payload})
	}
	return e.appendOnly(ctx, workflowID, eventlog.PendingEvent{Type: eventlog.EventActivityFailed, Payload: payload})
}

// NotifyTimerFired appends a TimerFired event and drives OnTimerFired.
func (e *Engine) NotifyTimerFired(ctx context.Context, workflowID, timerID string) error {
	payload, err := json.Marshal(timerFiredPayload{TimerID: timerID})
	if err != nil {
		return fmt.Errorf("engine: marshal TimerFired payload: %w", err)
	}
	return e.appendAndDrive(ctx, workflowID, eventlog.PendingEvent{Type: eventlog.EventTimerFired, Payload: payload})
}

// NotifySignal appends a SignalReceived event and drives OnSignal.
func (e *Engine) NotifySignal(ctx context.Context, workflowID, signalType string, signalPayload []byte) error {
	payload, err := json.Marshal(signalReceivedPayload{SignalType: signalType, Payload: signalPayload})
	if err != nil {
		return fmt.Errorf("engine: marshal SignalReceived payload: %w", err)
	}
	return e.appendAndDrive(ctx, workflowID, eventlog.PendingEvent{Type: eventlog.EventSignalReceived, Payload: payload})
}

func (e *Engine) appendOnly(ctx context.Context, workflowID string, event eventlog.PendingEvent) error {
	tail, err := e.tailSequence(ctx, workflowID)
	if err != nil {
		return err
	}
	return e.store.AppendEventsWithPayload(ctx, workflowID, tail, []eventlog.PendingEvent{event})
}

func (e *Engine) appendAndDrive(ctx context.Context, workflowID string, event eventlog.PendingEvent) error {
	if err := e.appendOnly(ctx, workflowID, event); err != nil {
		return err
	}
	return e.drive(ctx, workflowID)
}

func (e *Engine) tailSequence(ctx context.Context, workflowID string) (int64, error) {
	events, err := e.store.LoadEvents(ctx, workflowID, 0)
	if err != nil {
		return 0, err
	}
	var tail int64
	for _, ev := range events {
		if ev.Sequence > tail {
			tail = ev.Sequence
		}
	}
	return tail, nil
}

// drive reconstructs the workflow instance from its full event history,
// replays every event through the matching callback (callbacks besides
// the one for the newest event are folded only for their side effect on
// the Workflow's own internal state; their previously-applied actions
// are not reapplied), and applies the actions produced for the most
// recent event under optimistic concurrency.
func (e *Engine) drive(ctx context.Context, workflowID string) error {
	inst, err := e.store.GetWorkflow(ctx, workflowID)
	if err != nil {
		return err
	}
	if inst.Status.IsTerminal() {
		return nil
	}

	factory, ok := e.registry.Lookup(inst.WorkflowType)
	if !ok {
		return fmt.Errorf("engine: unregistered workflow type %q for workflow %s", inst.WorkflowType, workflowID)
	}
	wf, err := factory(workflowID, inst.Input)
	if err != nil {
		return e.parkFailed(ctx, workflowID, inst.WorkflowType, inst.Input, fmt.Errorf("engine: construct workflow: %w", err))
	}

	events, err := e.store.LoadEvents(ctx, workflowID, 0)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return fmt.Errorf("engine: workflow %s has no events", workflowID)
	}

	var actions []Action
	var tip eventlog.WorkflowEvent
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("engine: workflow %s panicked during replay: %v", workflowID, r)
			}
		}()
		for i, ev := range events {
			wfCtx := &Context{WorkflowID: workflowID, WorkflowType: inst.WorkflowType, Sequence: ev.Sequence}
			produced := e.dispatch(wf, wfCtx, ev)
			if i == len(events)-1 {
				actions = produced
				tip = ev
			}
		}
	}()
	if err != nil {
		return e.parkFailed(ctx, workflowID, inst.WorkflowType, inst.Input, err)
	}

	return e.applyActions(ctx, workflowID, inst.WorkflowType, inst.Input, tip.Sequence, actions)
}

func (e *Engine) dispatch(wf Workflow, ctx *Context, ev eventlog.WorkflowEvent) []Action {
	switch ev.Type {
	case eventlog.EventWorkflowStarted:
		return wf.OnStart(ctx)
	case eventlog.EventActivityCompleted:
		var p activityCompletedPayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			e.logger.Error("engine: bad ActivityCompleted payload", zap.Error(err), zap.String("workflow_id", ctx.WorkflowID))
			return nil
		}
		return wf.OnActivityCompleted(ctx, p.ActivityID, p.Result)
	case eventlog.EventActivityFailed:
		var p eventlog.ActivityFailedPayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			e.logger.Error("engine: bad ActivityFailed payload", zap.Error(err), zap.String("workflow_id", ctx.WorkflowID))
			return nil
		}
		if p.WillRetry {
			return nil
		}
		return wf.OnActivityFailed(ctx, p.ActivityID, p.Error)
	case eventlog.EventActivityTimedOut, eventlog.EventActivityCancelled:
		var p eventlog.ActivityFailedPayload
		_ = json.Unmarshal(ev.Payload, &p)
		return wf.OnActivityFailed(ctx, p.ActivityID, string(ev.Type))
	case eventlog.EventTimerFired:
		var p timerFiredPayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return nil
		}
		return wf.OnTimerFired(ctx, p.TimerID)
	case eventlog.EventSignalReceived:
		var p signalReceivedPayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return nil
		}
		return wf.OnSignal(ctx, p.SignalType, p.Payload)
	default:
		return nil
	}
}

func (e *Engine) applyActions(ctx context.Context, workflowID, workflowType string, workflowInput []byte, expectedSequence int64, actions []Action) error {
	if len(actions) == 0 {
		return nil
	}

	var pending []eventlog.PendingEvent
	var enqueues []taskqueue.Task
	var terminalStatus eventlog.Status
	var terminalOutput []byte
	var terminalErr string
	becameTerminal := false

	for _, action := range actions {
		switch action.Kind {
		case ActionNone:
			// no-op
		case ActionScheduleActivity:
			a := action.ScheduleActivity
			payload, _ := json.Marshal(map[string]string{"activity_id": a.ActivityID, "activity_type": a.ActivityType})
			pending = append(pending, eventlog.PendingEvent{Type: eventlog.EventActivityScheduled, Payload: payload})
			taskID, err := uuid.NewV7()
			if err != nil {
				return fmt.Errorf("engine: generate task id: %w", err)
			}
			enqueues = append(enqueues, taskqueue.Task{
				TaskID:       taskID.String(),
				WorkflowID:   workflowID,
				ActivityID:   a.ActivityID,
				ActivityType: a.ActivityType,
				Input:        a.Input,
				Priority:     a.Priority,
				Timeouts:     a.Timeouts,
				RetryPolicy:  a.RetryPolicy,
				MaxAttempts:  a.RetryPolicy.MaxAttempts,
			})
		case ActionStartTimer:
			a := action.StartTimer
			payload, _ := json.Marshal(map[string]interface{}{"timer_id": a.TimerID, "duration_ms": a.Duration.Milliseconds()})
			pending = append(pending, eventlog.PendingEvent{Type: eventlog.EventTimerStarted, Payload: payload})
		case ActionCancelActivity:
			a := action.CancelActivity
			payload, _ := json.Marshal(map[string]string{"activity_id": a.ActivityID})
			pending = append(pending, eventlog.PendingEvent{Type: eventlog.EventActivityCancelled, Payload: payload})
		case ActionCompleteWorkflow:
			a := action.CompleteWorkflow
			pending = append(pending, eventlog.PendingEvent{Type: eventlog.EventWorkflowCompleted, Payload: a.Output})
			becameTerminal = true
			terminalStatus = eventlog.StatusCompleted
			terminalOutput = a.Output
		case ActionFailWorkflow:
			a := action.FailWorkflow
			payload, _ := json.Marshal(map[string]string{"reason": a.Reason})
			pending = append(pending, eventlog.PendingEvent{Type: eventlog.EventWorkflowFailed, Payload: payload})
			becameTerminal = true
			terminalStatus = eventlog.StatusFailed
			terminalErr = a.Reason
		case ActionScheduleChildWorkflow:
			a := action.ScheduleChildWorkflow
			payload, _ := json.Marshal(map[string]string{"child_workflow_id": a.ChildWorkflowID, "workflow_type": a.WorkflowType})
			pending = append(pending, eventlog.PendingEvent{Type: eventlog.EventChildWorkflowStarted, Payload: payload})
		}
	}

	if err := e.store.AppendEventsWithPayload(ctx, workflowID, expectedSequence, pending); err != nil {
		return err
	}

	for _, task := range enqueues {
		if _, err := e.queue.Enqueue(ctx, task); err != nil {
			e.logger.Error("engine: enqueue activity task failed", zap.Error(err), zap.String("workflow_id", workflowID), zap.String("activity_id", task.ActivityID))
		}
	}

	if becameTerminal {
		if err := e.store.UpdateStatus(ctx, workflowID, terminalStatus, terminalOutput, terminalErr); err != nil {
			return err
		}
		if e.terminalHook != nil {
			e.terminalHook(ctx, workflowID, workflowType, workflowInput, terminalStatus, terminalOutput, terminalErr)
		}
	}
	return nil
}

func (e *Engine) parkFailed(ctx context.Context, workflowID, workflowType string, workflowInput []byte, cause error) error {
	e.logger.Error("engine: parking workflow in Failed state", zap.String("workflow_id", workflowID), zap.Error(cause))
	if err := e.store.UpdateStatus(ctx, workflowID, eventlog.StatusFailed, nil, cause.Error()); err != nil {
		return err
	}
	if e.terminalHook != nil {
		e.terminalHook(ctx, workflowID, workflowType, workflowInput, eventlog.StatusFailed, nil, cause.Error())
	}
	return durerr.NewWorkflowError(workflowID, workflowType, durerr.NewFatalError("replay panicked", cause))
}
