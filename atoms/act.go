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

package atoms

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/turnforge/durable/activity"
	"github.com/turnforge/durable/codec"
	"github.com/turnforge/durable/collab"
	"github.com/turnforge/durable/durerr"
)

const defaultToolTimeout = 30 * time.Second

// ActAtom dispatches a Reason result's tool calls in parallel and
// collects their terminal outcomes. A single call's failure,
// timeout, or cancellation never fails the act; those are recorded as
// ordinary outcomes.
type ActAtom struct {
	Deps Deps
}

// NewActAtom constructs an ActAtom over deps.
func NewActAtom(deps Deps) *ActAtom {
	return &ActAtom{Deps: deps}
}

// Execute implements worker.HandlerFunc.
func (a *ActAtom) Execute(ctx context.Context, actx *activity.Context, raw []byte) ([]byte, error) {
	var in ActInput
	if err := codec.Decode(raw, &in); err != nil {
		return nil, durerr.NewFatalError("atoms: invalid act atom payload", err)
	}

	if _, err := a.Deps.Events.Emit(ctx, collab.Event{SessionID: in.SessionID, Type: "act.started"}); err != nil {
		return nil, fmt.Errorf("atoms: emit act.started: %w", err)
	}

	timeout := a.Deps.ToolTimeout
	if timeout <= 0 {
		timeout = defaultToolTimeout
	}

	// P7 (act ordering): outcomes[i] always corresponds to in.ToolCalls[i].
	outcomes := make([]ToolCallOutcome, len(in.ToolCalls))
	var wg sync.WaitGroup
	for i, call := range in.ToolCalls {
		wg.Add(1)
		go func(i int, call collab.ToolCall) {
			defer wg.Done()
			outcomes[i] = a.dispatch(ctx, actx, in.SessionID, call, timeout)
		}(i, call)
	}
	wg.Wait()

	for _, outcome := range outcomes {
		if err := a.appendToolResultMessage(ctx, in.SessionID, outcome); err != nil {
			return nil, fmt.Errorf("atoms: append tool result message: %w", err)
		}
	}

	if _, err := a.Deps.Events.Emit(ctx, collab.Event{SessionID: in.SessionID, Type: "act.completed"}); err != nil {
		return nil, fmt.Errorf("atoms: emit act.completed: %w", err)
	}

	return codec.Encode(ActResult{Outcomes: outcomes})
}

func (a *ActAtom) dispatch(ctx context.Context, actx *activity.Context, sessionID string, call collab.ToolCall, timeout time.Duration) ToolCallOutcome {
	if _, err := a.Deps.Events.Emit(ctx, collab.Event{
		SessionID: sessionID,
		Type:      "tool.call_started",
		Data:      codec.MustEncode(call),
	}); err != nil {
		a.Deps.logger().Warn("atoms: emit tool.call_started", zap.String("tool_call_id", call.ID), zap.Error(err))
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type execOutcome struct {
		result collab.ToolResult
		err    error
	}
	done := make(chan execOutcome, 1)
	go func() {
		result, err := a.Deps.Tools.Execute(callCtx, call, collab.ToolContext{SessionID: sessionID, CallID: call.ID})
		done <- execOutcome{result, err}
	}()

	var outcome ToolCallOutcome
	select {
	case res := <-done:
		switch {
		case res.err != nil:
			outcome = ToolCallOutcome{ToolCallID: call.ID, Status: collab.ToolCallStatusError, Error: res.err.Error()}
		case !res.result.Success:
			outcome = ToolCallOutcome{ToolCallID: call.ID, Status: collab.ToolCallStatusError, Error: res.result.Error}
		default:
			outcome = ToolCallOutcome{ToolCallID: call.ID, Status: collab.ToolCallStatusSuccess, Result: res.result.Result}
		}
	case <-actx.Cancelled():
		outcome = ToolCallOutcome{ToolCallID: call.ID, Status: collab.ToolCallStatusCancelled, Error: "activity cancelled"}
	case <-callCtx.Done():
		outcome = ToolCallOutcome{ToolCallID: call.ID, Status: collab.ToolCallStatusTimeout, Error: "tool call timed out"}
	}

	if _, err := a.Deps.Events.Emit(ctx, collab.Event{
		SessionID: sessionID,
		Type:      "tool.call_completed",
		Data:      codec.MustEncode(outcome),
	}); err != nil {
		a.Deps.logger().Warn("atoms: emit tool.call_completed", zap.String("tool_call_id", call.ID), zap.Error(err))
	}
	return outcome
}

func (a *ActAtom) appendToolResultMessage(ctx context.Context, sessionID string, outcome ToolCallOutcome) error {
	return a.Deps.Messages.Append(ctx, sessionID, collab.Message{
		SessionID:  sessionID,
		Role:       collab.RoleToolResult,
		ToolCallID: outcome.ToolCallID,
		ToolResult: &collab.ToolResult{
			ToolCallID: outcome.ToolCallID,
			Success:    outcome.Succeeded(),
			Result:     outcome.Result,
			Error:      outcome.Error,
			Status:     outcome.Status,
		},
	})
}
