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

package collab

import "context"

// MessageStore persists a session's conversation as an ordered
// sequence.
type MessageStore interface {
	Append(ctx context.Context, sessionID string, message Message) error
	Load(ctx context.Context, sessionID string) ([]Message, error)
	ListMessageEvents(ctx context.Context, sessionID string) ([]Event, error)
}

// SessionStore is the minimal session record an atom needs.
type SessionStore interface {
	Get(ctx context.Context, sessionID string) (Session, error)
	Create(ctx context.Context, session Session) error
	UpdateStatus(ctx context.Context, sessionID string, status SessionStatus) error
}

// AgentStore resolves an agent's read-only per-turn configuration.
type AgentStore interface {
	Get(ctx context.Context, agentID string) (AgentConfig, error)
}

// LlmProviderStore resolves a model ID to the configuration needed to
// construct a driver for it.
type LlmProviderStore interface {
	Resolve(ctx context.Context, modelID string) (ProviderConfig, error)
}

// EventEmitter writes to a session's event stream and returns the
// sequence number assigned to the write.
type EventEmitter interface {
	Emit(ctx context.Context, event Event) (sequence int64, err error)
}

// LlmDriver streams a chat completion for one Reason call. It is the
// single method the core depends on; everything vendor-specific lives
// behind it.
type LlmDriver interface {
	ChatCompletionStream(ctx context.Context, messages []Message, tools []ToolDefinition, cfg ProviderConfig) (<-chan StreamEvent, error)
}

// LlmDriverRegistry constructs an LlmDriver for a resolved
// ProviderConfig, dispatching on ProviderConfig.ProviderType.
type LlmDriverRegistry interface {
	CreateDriver(ctx context.Context, cfg ProviderConfig) (LlmDriver, error)
}

// ToolExecutor runs one tool call and returns its result. It is called
// once per call from ActAtom's parallel dispatch loop.
type ToolExecutor interface {
	Execute(ctx context.Context, call ToolCall, toolCtx ToolContext) (ToolResult, error)
}

// SessionFileStore is the optional virtual filesystem tool handlers
// consume. Its internal locking is its own concern; the core makes no
// assumptions about it beyond the operations below.
type SessionFileStore interface {
	Read(ctx context.Context, sessionID, path string) ([]byte, error)
	Write(ctx context.Context, sessionID, path string, data []byte) error
	List(ctx context.Context, sessionID, dir string) ([]FileInfo, error)
	Grep(ctx context.Context, sessionID, pattern string) ([]GrepMatch, error)
	Stat(ctx context.Context, sessionID, path string) (FileStat, error)
	Delete(ctx context.Context, sessionID, path string) error
}
