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

// Package turn implements the concrete workflow type that drives one
// agent turn: Input, then a bounded Reason/Act loop, to completion or
// failure. It is plain composition over engine.Workflow and the
// activities in atoms; it holds no collaborator references of its own
// — those live on the worker.Pool handlers registered for "input",
// "reason" and "act".
package turn

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/turnforge/durable/atoms"
	"github.com/turnforge/durable/codec"
	"github.com/turnforge/durable/collab"
	"github.com/turnforge/durable/engine"
	"github.com/turnforge/durable/eventlog"
)

// WorkflowType is the string registered with engine.Registry for this
// workflow.
const WorkflowType = "turn"

const defaultMaxToolIterations = 10

// AbortedToolIterationsExhausted is the Output marker a turn completes
// with when the model keeps requesting tools past MaxToolIterations.
const AbortedToolIterationsExhausted = "tool_iterations_exhausted"

// Input is the Turn Workflow's WorkflowStarted payload.
type Input struct {
	SessionID         string `json:"session_id"`
	AgentID           string `json:"agent_id"`
	InputMessageID    string `json:"input_message_id"`
	MaxToolIterations int    `json:"max_tool_iterations"`
}

// Output is the Turn Workflow's successful CompleteWorkflow payload.
type Output struct {
	FinalText string `json:"final_text"`
	Aborted   string `json:"aborted,omitempty"`
}

// Workflow implements engine.Workflow for WorkflowType. A fresh
// instance is reconstructed by Factory on every replay; its only state
// is the input it was started with, reread each callback invocation.
type Workflow struct {
	input Input
}

var _ engine.Workflow = (*Workflow)(nil)

// Factory constructs Workflow instances for engine.Registry.
func Factory(workflowID string, rawInput []byte) (engine.Workflow, error) {
	var in Input
	if err := codec.Decode(rawInput, &in); err != nil {
		return nil, fmt.Errorf("turn: decode workflow input: %w", err)
	}
	if in.SessionID == "" || in.AgentID == "" || in.InputMessageID == "" {
		return nil, fmt.Errorf("turn: workflow input missing required fields")
	}
	if in.MaxToolIterations <= 0 {
		in.MaxToolIterations = defaultMaxToolIterations
	}
	return &Workflow{input: in}, nil
}

func reasonActivityID(iteration int) string { return fmt.Sprintf("reason-%d", iteration) }
func actActivityID(iteration int) string    { return fmt.Sprintf("act-%d", iteration) }

// OnStart schedules InputAtom.
func (w *Workflow) OnStart(ctx *engine.Context) []engine.Action {
	input := atoms.InputInput{SessionID: w.input.SessionID, MessageID: w.input.InputMessageID}
	return []engine.Action{engine.Schedule(engine.ScheduleActivityAction{
		ActivityID:   "input",
		ActivityType: "input",
		Input:        codec.MustEncode(input),
	})}
}

// OnActivityCompleted advances the Input -> Reason -> Act loop.
func (w *Workflow) OnActivityCompleted(ctx *engine.Context, activityID string, result []byte) []engine.Action {
	switch {
	case activityID == "input":
		return w.scheduleReason(0)

	case strings.HasPrefix(activityID, "reason-"):
		iteration, err := parseIteration(activityID, "reason-")
		if err != nil {
			return []engine.Action{engine.Fail(err.Error())}
		}
		var reasonResult atoms.ReasonResult
		if err := codec.Decode(result, &reasonResult); err != nil {
			return []engine.Action{engine.Fail(fmt.Sprintf("turn: decode reason result: %v", err))}
		}
		if !reasonResult.HasToolCalls() {
			return []engine.Action{engine.Complete(codec.MustEncode(Output{FinalText: reasonResult.FinalText}))}
		}
		return w.scheduleAct(iteration, reasonResult)

	case strings.HasPrefix(activityID, "act-"):
		iteration, err := parseIteration(activityID, "act-")
		if err != nil {
			return []engine.Action{engine.Fail(err.Error())}
		}
		if iteration+1 < w.input.MaxToolIterations {
			return w.scheduleReason(iteration + 1)
		}
		return []engine.Action{engine.Complete(codec.MustEncode(Output{Aborted: AbortedToolIterationsExhausted}))}

	default:
		return []engine.Action{engine.None()}
	}
}

func (w *Workflow) scheduleReason(iteration int) []engine.Action {
	input := atoms.ReasonInput{SessionID: w.input.SessionID, AgentID: w.input.AgentID, Iteration: iteration}
	return []engine.Action{engine.Schedule(engine.ScheduleActivityAction{
		ActivityID:   reasonActivityID(iteration),
		ActivityType: "reason",
		Input:        codec.MustEncode(input),
	})}
}

func (w *Workflow) scheduleAct(iteration int, reasonResult atoms.ReasonResult) []engine.Action {
	input := atoms.ActInput{SessionID: w.input.SessionID, ToolCalls: reasonResult.ToolCalls}
	return []engine.Action{engine.Schedule(engine.ScheduleActivityAction{
		ActivityID:   actActivityID(iteration),
		ActivityType: "act",
		Input:        codec.MustEncode(input),
	})}
}

func parseIteration(activityID, prefix string) (int, error) {
	n, err := strconv.Atoi(strings.TrimPrefix(activityID, prefix))
	if err != nil {
		return 0, fmt.Errorf("turn: malformed activity id %q", activityID)
	}
	return n, nil
}

// OnActivityFailed fails the workflow on any final activity failure.
func (w *Workflow) OnActivityFailed(ctx *engine.Context, activityID string, failureErr string) []engine.Action {
	return []engine.Action{engine.Fail(fmt.Sprintf("activity %s failed: %s", activityID, failureErr))}
}

// OnTimerFired is unused; the Turn Workflow schedules no timers.
func (w *Workflow) OnTimerFired(ctx *engine.Context, timerID string) []engine.Action {
	return []engine.Action{engine.None()}
}

// OnSignal fails the workflow on a cancel signal; other signal types
// are ignored.
func (w *Workflow) OnSignal(ctx *engine.Context, signalType string, payload []byte) []engine.Action {
	if signalType == "cancel" {
		return []engine.Action{engine.Fail("cancelled")}
	}
	return []engine.Action{engine.None()}
}

// completedEventPayload is the Data payload of a turn.completed session
// event.
type completedEventPayload struct {
	FinalText string `json:"final_text,omitempty"`
	Aborted   string `json:"aborted,omitempty"`
}

// failedEventPayload is the Data payload of a turn.failed session
// event.
type failedEventPayload struct {
	Reason string `json:"reason"`
}

// SessionEventsHook returns an engine.TerminalHook that bridges a Turn
// Workflow's terminal transition onto its session's event stream as
// turn.completed or turn.failed, so a client subscribed only to
// collab.EventEmitter sees the same terminal signal the workflow event
// log already records. Terminal transitions of any other registered
// workflow type are ignored. Emit errors are logged, not returned —
// the workflow has already reached its terminal status in the event
// log regardless of whether the session stream bridge succeeds.
func SessionEventsHook(events collab.EventEmitter, logger *zap.Logger) engine.TerminalHook {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context, workflowID, workflowType string, input []byte, status eventlog.Status, output []byte, errMsg string) {
		if workflowType != WorkflowType {
			return
		}
		var in Input
		if err := codec.Decode(input, &in); err != nil {
			logger.Error("turn: decode workflow input for session event", zap.String("workflow_id", workflowID), zap.Error(err))
			return
		}

		var event collab.Event
		switch status {
		case eventlog.StatusCompleted:
			var out Output
			if err := codec.Decode(output, &out); err != nil {
				logger.Error("turn: decode workflow output for session event", zap.String("workflow_id", workflowID), zap.Error(err))
				return
			}
			event = collab.Event{
				SessionID: in.SessionID,
				Type:      "turn.completed",
				Data:      codec.MustEncode(completedEventPayload{FinalText: out.FinalText, Aborted: out.Aborted}),
			}
		default:
			event = collab.Event{
				SessionID: in.SessionID,
				Type:      "turn.failed",
				Data:      codec.MustEncode(failedEventPayload{Reason: errMsg}),
			}
		}

		if _, err := events.Emit(ctx, event); err != nil {
			logger.Error("turn: emit session terminal event", zap.String("workflow_id", workflowID), zap.String("type", event.Type), zap.Error(err))
		}
	}
}
