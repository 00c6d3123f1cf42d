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
	"strings"

	"github.com/turnforge/durable/activity"
	"github.com/turnforge/durable/codec"
	"github.com/turnforge/durable/collab"
	"github.com/turnforge/durable/durerr"
)

// danglingToolResultText is inserted for any tool call that reached
// the end of the session's history with no matching tool result.
const danglingToolResultText = "no result recorded"

// ReasonAtom repairs the conversation, resolves the model and tool set
// for the turn, and streams one LLM response.
type ReasonAtom struct {
	Deps Deps
}

// NewReasonAtom constructs a ReasonAtom over deps.
func NewReasonAtom(deps Deps) *ReasonAtom {
	return &ReasonAtom{Deps: deps}
}

// Execute implements worker.HandlerFunc.
func (a *ReasonAtom) Execute(ctx context.Context, actx *activity.Context, raw []byte) ([]byte, error) {
	var in ReasonInput
	if err := codec.Decode(raw, &in); err != nil {
		return nil, durerr.NewFatalError("atoms: invalid reason atom payload", err)
	}

	history, err := a.Deps.Messages.Load(ctx, in.SessionID)
	if err != nil {
		return nil, fmt.Errorf("atoms: load session history: %w", err)
	}
	history = repairDanglingToolCalls(history)

	agentCfg, err := a.Deps.Agents.Get(ctx, in.AgentID)
	if err != nil {
		return nil, fmt.Errorf("atoms: resolve agent: %w", err)
	}

	providerCfg, err := a.Deps.Providers.Resolve(ctx, agentCfg.DefaultModel)
	if err != nil {
		return nil, fmt.Errorf("atoms: resolve provider for model %s: %w", agentCfg.DefaultModel, err)
	}

	tools := effectiveTools(a.Deps.ToolCatalog, agentCfg.Capabilities)

	if _, err := a.Deps.Events.Emit(ctx, collab.Event{SessionID: in.SessionID, Type: "reason.started"}); err != nil {
		return nil, fmt.Errorf("atoms: emit reason.started: %w", err)
	}

	driver, err := a.Deps.Drivers.CreateDriver(ctx, providerCfg)
	if err != nil {
		return a.recordLLMFailure(ctx, in.SessionID, fmt.Errorf("resolve driver: %w", err))
	}

	prompt := withSystemPrompt(history, agentCfg.SystemPrompt)
	stream, err := driver.ChatCompletionStream(ctx, prompt, tools, providerCfg)
	if err != nil {
		return a.recordLLMFailure(ctx, in.SessionID, err)
	}

	var text strings.Builder
	var toolCalls []collab.ToolCall
	var usage collab.UsageMetadata

streamLoop:
	for {
		select {
		case event, ok := <-stream:
			if !ok {
				break streamLoop
			}
			switch event.Kind {
			case collab.StreamTextDelta:
				text.WriteString(event.Text)
			case collab.StreamToolCall:
				toolCalls = append(toolCalls, event.ToolCall)
			case collab.StreamDone:
				usage = event.Usage
			case collab.StreamError:
				return a.recordLLMFailure(ctx, in.SessionID, event.Err)
			}
		case <-actx.Cancelled():
			return nil, durerr.NewCanceledError(nil, nil)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if _, err := a.Deps.Events.Emit(ctx, collab.Event{
		SessionID: in.SessionID,
		Type:      "llm.generation",
		Data:      codec.MustEncode(usage),
	}); err != nil {
		return nil, fmt.Errorf("atoms: emit llm.generation: %w", err)
	}

	finalText := text.String()
	assistantMsg := collab.Message{SessionID: in.SessionID, Role: collab.RoleAssistant, Text: finalText, ToolCalls: toolCalls}
	if err := a.Deps.Messages.Append(ctx, in.SessionID, assistantMsg); err != nil {
		return nil, fmt.Errorf("atoms: append assistant message: %w", err)
	}

	if _, err := a.Deps.Events.Emit(ctx, collab.Event{
		SessionID: in.SessionID,
		Type:      "reason.completed",
		Data:      codec.MustEncode(assistantMsg),
	}); err != nil {
		return nil, fmt.Errorf("atoms: emit reason.completed: %w", err)
	}

	return codec.Encode(ReasonResult{FinalText: finalText, ToolCalls: toolCalls})
}

// recordLLMFailure turns an LLM-call error into a user-visible agent
// message rather than an activity failure, per the propagation policy:
// LLM errors never fail the workflow.
func (a *ReasonAtom) recordLLMFailure(ctx context.Context, sessionID string, cause error) ([]byte, error) {
	text := fmt.Sprintf("I ran into a problem generating a response: %v", cause)
	msg := collab.Message{SessionID: sessionID, Role: collab.RoleAssistant, Text: text}
	if err := a.Deps.Messages.Append(ctx, sessionID, msg); err != nil {
		return nil, fmt.Errorf("atoms: append llm failure message: %w", err)
	}
	if _, err := a.Deps.Events.Emit(ctx, collab.Event{
		SessionID: sessionID,
		Type:      "reason.completed",
		Data:      codec.MustEncode(msg),
	}); err != nil {
		return nil, fmt.Errorf("atoms: emit reason.completed after llm failure: %w", err)
	}
	return codec.Encode(ReasonResult{FinalText: text, LLMFailed: true})
}

// withSystemPrompt returns a copy of history prefixed with the agent's
// effective system prompt; it never mutates history.
func withSystemPrompt(history []collab.Message, systemPrompt string) []collab.Message {
	if systemPrompt == "" {
		return history
	}
	prompt := make([]collab.Message, 0, len(history)+1)
	prompt = append(prompt, collab.Message{Role: collab.RoleSystem, Text: systemPrompt})
	return append(prompt, history...)
}

// repairDanglingToolCalls returns a copy of history with a synthetic
// error tool-result inserted for any requested tool call that has no
// matching result, so the conversation is well-formed for the model.
// It never mutates the caller's slice or the persisted history.
func repairDanglingToolCalls(history []collab.Message) []collab.Message {
	answered := make(map[string]bool)
	for _, m := range history {
		if m.ToolResult != nil {
			answered[m.ToolResult.ToolCallID] = true
		}
		if m.Role == collab.RoleToolResult && m.ToolCallID != "" {
			answered[m.ToolCallID] = true
		}
	}

	var dangling []string
	for _, m := range history {
		for _, call := range m.ToolCalls {
			if !answered[call.ID] {
				dangling = append(dangling, call.ID)
			}
		}
	}
	if len(dangling) == 0 {
		return history
	}

	repaired := make([]collab.Message, len(history), len(history)+len(dangling))
	copy(repaired, history)
	for _, callID := range dangling {
		repaired = append(repaired, collab.Message{
			Role:       collab.RoleToolResult,
			ToolCallID: callID,
			ToolResult: &collab.ToolResult{
				ToolCallID: callID,
				Success:    false,
				Error:      danglingToolResultText,
				Status:     collab.ToolCallStatusError,
			},
		})
	}
	return repaired
}
