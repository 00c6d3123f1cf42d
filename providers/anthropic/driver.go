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

// Package anthropic adapts github.com/anthropics/anthropic-sdk-go's
// streaming Messages API to collab.LlmDriver.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/turnforge/durable/collab"
)

// MessagesClient captures the subset of the Anthropic SDK client this
// driver needs, so tests can substitute a fake stream.
type MessagesClient interface {
	NewStreaming(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) *ssestream.Stream[sdk.MessageStreamEventUnion]
}

// Driver implements collab.LlmDriver over the Anthropic Messages API.
type Driver struct {
	msg       MessagesClient
	maxTokens int64
}

// New builds a Driver around an existing MessagesClient.
func New(msg MessagesClient, maxTokens int64) *Driver {
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &Driver{msg: msg, maxTokens: maxTokens}
}

// NewFromAPIKey constructs a Driver using the SDK's default HTTP client.
func NewFromAPIKey(apiKey string, maxTokens int64) *Driver {
	client := sdk.NewClient(option.WithAPIKey(apiKey))
	return New(&client.Messages, maxTokens)
}

var _ collab.LlmDriver = (*Driver)(nil)

type toolBuffer struct {
	id, name string
	args     []byte
}

// ChatCompletionStream issues a streaming Messages.New request and
// translates Anthropic's content-block delta events into
// collab.StreamEvent, mirroring the block-indexed buffering the
// upstream SDK's event model requires: tool_use input arrives as
// successive input_json_delta fragments keyed by content block index,
// assembled here and emitted whole once the block closes.
func (d *Driver) ChatCompletionStream(ctx context.Context, messages []collab.Message, tools []collab.ToolDefinition, cfg collab.ProviderConfig) (<-chan collab.StreamEvent, error) {
	system, msgs := encodeMessages(messages)
	params := sdk.MessageNewParams{
		Model:     sdk.Model(cfg.ModelName),
		MaxTokens: d.maxTokens,
		Messages:  msgs,
	}
	if system != "" {
		params.System = []sdk.TextBlockParam{{Text: system}}
	}
	if encoded := encodeTools(tools); len(encoded) > 0 {
		params.Tools = encoded
	}

	stream := d.msg.NewStreaming(ctx, params)
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("anthropic: new streaming: %w", err)
	}

	out := make(chan collab.StreamEvent, 8)
	go runStream(ctx, stream, out)
	return out, nil
}

func runStream(ctx context.Context, stream *ssestream.Stream[sdk.MessageStreamEventUnion], out chan<- collab.StreamEvent) {
	defer close(out)
	defer stream.Close()

	toolBlocks := map[int64]*toolBuffer{}
	var usage collab.UsageMetadata

	emit := func(ev collab.StreamEvent) bool {
		select {
		case out <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for stream.Next() {
		event := stream.Current()
		switch ev := event.AsAny().(type) {
		case sdk.ContentBlockStartEvent:
			if toolUse, ok := ev.ContentBlock.AsAny().(sdk.ToolUseBlock); ok {
				toolBlocks[ev.Index] = &toolBuffer{id: toolUse.ID, name: toolUse.Name}
			}
		case sdk.ContentBlockDeltaEvent:
			switch delta := ev.Delta.AsAny().(type) {
			case sdk.TextDelta:
				if delta.Text != "" {
					if !emit(collab.StreamEvent{Kind: collab.StreamTextDelta, Text: delta.Text}) {
						return
					}
				}
			case sdk.InputJSONDelta:
				if tb := toolBlocks[ev.Index]; tb != nil && delta.PartialJSON != "" {
					tb.args = append(tb.args, []byte(delta.PartialJSON)...)
				}
			}
		case sdk.ContentBlockStopEvent:
			if tb := toolBlocks[ev.Index]; tb != nil {
				if !emit(collab.StreamEvent{Kind: collab.StreamToolCall, ToolCall: collab.ToolCall{ID: tb.id, Name: tb.name, Arguments: tb.args}}) {
					return
				}
				delete(toolBlocks, ev.Index)
			}
		case sdk.MessageDeltaEvent:
			if ev.Usage.OutputTokens != 0 {
				usage.CompletionTokens = int(ev.Usage.OutputTokens)
				usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
			}
		case sdk.MessageStartEvent:
			usage.Model = string(ev.Message.Model)
			usage.PromptTokens = int(ev.Message.Usage.InputTokens)
		}
	}
	if err := stream.Err(); err != nil {
		emit(collab.StreamEvent{Kind: collab.StreamError, Err: fmt.Errorf("anthropic: stream: %w", err)})
		return
	}
	emit(collab.StreamEvent{Kind: collab.StreamDone, Usage: usage})
}

func encodeMessages(messages []collab.Message) (string, []sdk.MessageParam) {
	var system string
	out := make([]sdk.MessageParam, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case collab.RoleSystem:
			system = m.Text
		case collab.RoleAssistant:
			blocks := []sdk.ContentBlockParamUnion{}
			if m.Text != "" {
				blocks = append(blocks, sdk.NewTextBlock(m.Text))
			}
			for _, tc := range m.ToolCalls {
				blocks = append(blocks, sdk.NewToolUseBlock(tc.ID, decodeArguments(tc.Arguments), tc.Name))
			}
			out = append(out, sdk.NewAssistantMessage(blocks...))
		case collab.RoleToolResult:
			text := m.Text
			if m.ToolResult != nil && text == "" {
				if m.ToolResult.Success {
					text = string(m.ToolResult.Result)
				} else {
					text = m.ToolResult.Error
				}
			}
			out = append(out, sdk.NewUserMessage(sdk.NewToolResultBlock(m.ToolCallID, text, m.ToolResult != nil && !m.ToolResult.Success)))
		default:
			out = append(out, sdk.NewUserMessage(sdk.NewTextBlock(m.Text)))
		}
	}
	return system, out
}

func decodeArguments(raw []byte) map[string]any {
	if len(raw) == 0 {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return map[string]any{}
	}
	return m
}

func encodeTools(defs []collab.ToolDefinition) []sdk.ToolUnionParam {
	if len(defs) == 0 {
		return nil
	}
	tools := make([]sdk.ToolUnionParam, 0, len(defs))
	for _, def := range defs {
		schema := sdk.ToolInputSchemaParam{ExtraFields: decodeArguments(def.Parameters)}
		u := sdk.ToolUnionParamOfTool(schema, def.Name)
		if u.OfTool != nil {
			u.OfTool.Description = sdk.String(def.Description)
		}
		tools = append(tools, u)
	}
	return tools
}
