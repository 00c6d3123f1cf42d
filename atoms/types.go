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

import "github.com/turnforge/durable/collab"

// InputInput is InputAtom's activity input.
type InputInput struct {
	SessionID string `json:"session_id"`
	MessageID string `json:"message_id"`
}

// InputResult is InputAtom's activity output.
type InputResult struct {
	Message collab.Message `json:"message"`
}

// ReasonInput is ReasonAtom's activity input.
type ReasonInput struct {
	SessionID string `json:"session_id"`
	AgentID   string `json:"agent_id"`
	Iteration int    `json:"iteration"`
}

// ReasonResult is ReasonAtom's activity output. LLMFailed is true when
// the model call itself errored; the error was already recorded as a
// user-visible agent message rather than propagated as a failure.
type ReasonResult struct {
	FinalText string           `json:"final_text"`
	ToolCalls []collab.ToolCall `json:"tool_calls,omitempty"`
	LLMFailed bool             `json:"llm_failed,omitempty"`
}

// HasToolCalls reports whether the model requested any tools.
func (r ReasonResult) HasToolCalls() bool { return len(r.ToolCalls) > 0 }

// ActInput is ActAtom's activity input.
type ActInput struct {
	SessionID string            `json:"session_id"`
	ToolCalls []collab.ToolCall `json:"tool_calls"`
}

// ToolCallOutcome is the terminal status of one dispatched tool call.
type ToolCallOutcome struct {
	ToolCallID string                `json:"tool_call_id"`
	Status     collab.ToolCallStatus `json:"status"`
	Result     []byte                `json:"result,omitempty"`
	Error      string                `json:"error,omitempty"`
}

// Succeeded reports whether the call reached ToolCallStatusSuccess.
func (o ToolCallOutcome) Succeeded() bool { return o.Status == collab.ToolCallStatusSuccess }

// ActResult is ActAtom's activity output. Outcomes preserves the
// input order: Outcomes[i] is the terminal status of ActInput.ToolCalls[i].
type ActResult struct {
	Outcomes []ToolCallOutcome `json:"outcomes"`
}
