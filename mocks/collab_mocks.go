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

package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/turnforge/durable/collab"
)

// MessageStore is a testify/mock double for collab.MessageStore, for
// callers that need per-call expectations (.On/.AssertExpectations)
// rather than collab.MemoryMessageStore's real in-memory behavior.
type MessageStore struct{ mock.Mock }

func (m *MessageStore) Append(ctx context.Context, sessionID string, message collab.Message) error {
	args := m.Called(ctx, sessionID, message)
	return args.Error(0)
}

func (m *MessageStore) Load(ctx context.Context, sessionID string) ([]collab.Message, error) {
	args := m.Called(ctx, sessionID)
	msgs, _ := args.Get(0).([]collab.Message)
	return msgs, args.Error(1)
}

func (m *MessageStore) ListMessageEvents(ctx context.Context, sessionID string) ([]collab.Event, error) {
	args := m.Called(ctx, sessionID)
	events, _ := args.Get(0).([]collab.Event)
	return events, args.Error(1)
}

var _ collab.MessageStore = (*MessageStore)(nil)

// EventEmitter is a testify/mock double for collab.EventEmitter.
type EventEmitter struct{ mock.Mock }

func (m *EventEmitter) Emit(ctx context.Context, event collab.Event) (int64, error) {
	args := m.Called(ctx, event)
	return args.Get(0).(int64), args.Error(1)
}

var _ collab.EventEmitter = (*EventEmitter)(nil)

// ToolExecutor is a testify/mock double for collab.ToolExecutor.
type ToolExecutor struct{ mock.Mock }

func (m *ToolExecutor) Execute(ctx context.Context, call collab.ToolCall, toolCtx collab.ToolContext) (collab.ToolResult, error) {
	args := m.Called(ctx, call, toolCtx)
	return args.Get(0).(collab.ToolResult), args.Error(1)
}

var _ collab.ToolExecutor = (*ToolExecutor)(nil)

// LlmDriver is a testify/mock double for collab.LlmDriver, for tests
// that need to assert on call arguments rather than script a stream.
type LlmDriver struct{ mock.Mock }

func (m *LlmDriver) ChatCompletionStream(ctx context.Context, messages []collab.Message, tools []collab.ToolDefinition, cfg collab.ProviderConfig) (<-chan collab.StreamEvent, error) {
	args := m.Called(ctx, messages, tools, cfg)
	ch, _ := args.Get(0).(<-chan collab.StreamEvent)
	return ch, args.Error(1)
}

var _ collab.LlmDriver = (*LlmDriver)(nil)

// AgentStore is a testify/mock double for collab.AgentStore.
type AgentStore struct{ mock.Mock }

func (m *AgentStore) Get(ctx context.Context, agentID string) (collab.AgentConfig, error) {
	args := m.Called(ctx, agentID)
	return args.Get(0).(collab.AgentConfig), args.Error(1)
}

var _ collab.AgentStore = (*AgentStore)(nil)

// LlmProviderStore is a testify/mock double for collab.LlmProviderStore.
type LlmProviderStore struct{ mock.Mock }

func (m *LlmProviderStore) Resolve(ctx context.Context, modelID string) (collab.ProviderConfig, error) {
	args := m.Called(ctx, modelID)
	return args.Get(0).(collab.ProviderConfig), args.Error(1)
}

var _ collab.LlmProviderStore = (*LlmProviderStore)(nil)
