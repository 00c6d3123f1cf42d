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

// Package openai adapts github.com/sashabaranov/go-openai's streaming Chat
// Completions API to collab.LlmDriver.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"github.com/turnforge/durable/collab"
)

// StreamClient captures the subset of the go-openai client this driver
// needs, so tests can substitute a fake without a real HTTP round trip.
type StreamClient interface {
	CreateChatCompletionStream(ctx context.Context, req openai.ChatCompletionRequest) (*openai.ChatCompletionStream, error)
}

// Driver implements collab.LlmDriver over the OpenAI Chat Completions API.
type Driver struct {
	client StreamClient
}

// New builds a Driver around an existing StreamClient.
func New(client StreamClient) *Driver {
	return &Driver{client: client}
}

// NewFromAPIKey constructs a Driver using go-openai's default HTTP client.
func NewFromAPIKey(apiKey, baseURL string) *Driver {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return New(openai.NewClientWithConfig(cfg))
}

var _ collab.LlmDriver = (*Driver)(nil)

// ChatCompletionStream issues a streaming chat completion and translates
// go-openai's incremental deltas into collab.StreamEvent. Tool call
// arguments arrive split across deltas keyed by index; they are buffered
// until the stream ends (Recv returns io.EOF) and then emitted whole, in
// index order, since ToolCall.Arguments must be a complete JSON value.
func (d *Driver) ChatCompletionStream(ctx context.Context, messages []collab.Message, tools []collab.ToolDefinition, cfg collab.ProviderConfig) (<-chan collab.StreamEvent, error) {
	req := openai.ChatCompletionRequest{
		Model:    cfg.ModelName,
		Messages: encodeMessages(messages),
		Stream:   true,
	}
	if encoded, err := encodeTools(tools); err != nil {
		return nil, fmt.Errorf("openai: encode tools: %w", err)
	} else if len(encoded) > 0 {
		req.Tools = encoded
	}

	stream, err := d.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("openai: create chat completion stream: %w", err)
	}

	out := make(chan collab.StreamEvent, 8)
	go runStream(ctx, stream, out)
	return out, nil
}

type pendingToolCall struct {
	id, name string
	args     []byte
}

func runStream(ctx context.Context, stream *openai.ChatCompletionStream, out chan<- collab.StreamEvent) {
	defer close(out)
	defer stream.Close()

	pending := map[int]*pendingToolCall{}
	var usage collab.UsageMetadata

	emit := func(ev collab.StreamEvent) bool {
		select {
		case out <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			emit(collab.StreamEvent{Kind: collab.StreamError, Err: fmt.Errorf("openai: stream recv: %w", err)})
			return
		}
		if resp.Usage != nil {
			usage = collab.UsageMetadata{
				Model:            resp.Model,
				PromptTokens:     resp.Usage.PromptTokens,
				CompletionTokens: resp.Usage.CompletionTokens,
				TotalTokens:      resp.Usage.TotalTokens,
			}
		}
		for _, choice := range resp.Choices {
			if choice.Delta.Content != "" {
				if !emit(collab.StreamEvent{Kind: collab.StreamTextDelta, Text: choice.Delta.Content}) {
					return
				}
			}
			for _, tc := range choice.Delta.ToolCalls {
				idx := 0
				if tc.Index != nil {
					idx = *tc.Index
				}
				p, ok := pending[idx]
				if !ok {
					p = &pendingToolCall{}
					pending[idx] = p
				}
				if tc.ID != "" {
					p.id = tc.ID
				}
				if tc.Function.Name != "" {
					p.name = tc.Function.Name
				}
				if tc.Function.Arguments != "" {
					p.args = append(p.args, []byte(tc.Function.Arguments)...)
				}
			}
		}
	}

	for _, idx := range sortedKeys(pending) {
		p := pending[idx]
		if !emit(collab.StreamEvent{Kind: collab.StreamToolCall, ToolCall: collab.ToolCall{ID: p.id, Name: p.name, Arguments: p.args}}) {
			return
		}
	}
	emit(collab.StreamEvent{Kind: collab.StreamDone, Usage: usage})
}

func sortedKeys(m map[int]*pendingToolCall) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}

func encodeMessages(messages []collab.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case collab.RoleToolResult:
			text := m.Text
			if m.ToolResult != nil && text == "" {
				if m.ToolResult.Success {
					text = string(m.ToolResult.Result)
				} else {
					text = m.ToolResult.Error
				}
			}
			out = append(out, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    text,
				ToolCallID: m.ToolCallID,
			})
		case collab.RoleAssistant:
			msg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: m.Text}
			for _, tc := range m.ToolCalls {
				msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: string(tc.Arguments),
					},
				})
			}
			out = append(out, msg)
		case collab.RoleSystem:
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: m.Text})
		default:
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: m.Text})
		}
	}
	return out
}

func encodeTools(defs []collab.ToolDefinition) ([]openai.Tool, error) {
	if len(defs) == 0 {
		return nil, nil
	}
	tools := make([]openai.Tool, 0, len(defs))
	for _, def := range defs {
		params := json.RawMessage(def.Parameters)
		if len(params) == 0 {
			params = json.RawMessage(`{"type":"object","properties":{}}`)
		}
		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  params,
			},
		})
	}
	return tools, nil
}
