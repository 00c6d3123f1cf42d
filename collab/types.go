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

// Package collab declares the narrow interfaces the agent-turn atoms
// are built against, and the plain data types that cross them. Nothing
// in here performs I/O; concrete backends live in their own packages
// (an in-memory reference implementation ships alongside the
// interfaces, for tests).
package collab

import "time"

// MessageRole mirrors the conversational role of a Message.
type MessageRole string

const (
	RoleSystem     MessageRole = "system"
	RoleUser       MessageRole = "user"
	RoleAssistant  MessageRole = "assistant"
	RoleToolCall   MessageRole = "tool_call"
	RoleToolResult MessageRole = "tool_result"
)

// Message is one entry in a session's ordered conversation history.
type Message struct {
	ID          string
	SessionID   string
	Role        MessageRole
	Text        string
	ToolCallID  string
	ToolCalls   []ToolCall
	ToolResult  *ToolResult
	CreatedAt   time.Time
}

// HasToolCalls reports whether this message carries assistant tool
// call requests.
func (m Message) HasToolCalls() bool { return len(m.ToolCalls) > 0 }

// IsDanglingToolCall reports whether m is a tool_call message that a
// subsequent tool_result should, but does not yet, correspond to. The
// caller determines "does not yet" by scanning for a ToolResult whose
// ToolCallID matches; this method only identifies candidates.
func (m Message) IsDanglingToolCall() bool {
	return m.Role == RoleToolCall && m.ToolCallID != ""
}

// ToolCall is a single tool invocation requested by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments []byte
}

// ToolResult is the outcome of executing a ToolCall.
type ToolResult struct {
	ToolCallID string
	Success    bool
	Result     []byte
	Error      string
	Status     ToolCallStatus
}

// ToolCallStatus discriminates how a tool call reached its terminal
// state, distinct from plain success/failure.
type ToolCallStatus string

const (
	ToolCallStatusSuccess   ToolCallStatus = "success"
	ToolCallStatusError     ToolCallStatus = "error"
	ToolCallStatusTimeout   ToolCallStatus = "timeout"
	ToolCallStatusCancelled ToolCallStatus = "cancelled"
)

// SessionStatus is the lifecycle state of a Session.
type SessionStatus string

const (
	SessionPending   SessionStatus = "pending"
	SessionRunning   SessionStatus = "running"
	SessionCompleted SessionStatus = "completed"
	SessionFailed    SessionStatus = "failed"
)

// Session is one instance of an agentic turn loop execution.
type Session struct {
	ID         string
	AgentID    string
	Title      string
	Status     SessionStatus
	CreatedAt  time.Time
	StartedAt  time.Time
	FinishedAt time.Time
}

// AgentConfig is the read-only per-turn configuration an AgentStore
// resolves for a given agent ID.
type AgentConfig struct {
	AgentID      string
	SystemPrompt string
	DefaultModel string
	Capabilities []string
}

// ProviderConfig is what an LlmProviderStore resolves for a model ID:
// enough to construct a driver without the core knowing which vendor
// it is talking to.
type ProviderConfig struct {
	ProviderType string
	APIKey       string
	BaseURL      string
	ModelName    string
}

// ToolDefinition is the effective, capability-filtered shape of a tool
// exposed to the model for one Reason call.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  []byte // JSON schema
}

// StreamEventKind discriminates the variant carried by a StreamEvent.
type StreamEventKind int

const (
	StreamTextDelta StreamEventKind = iota
	StreamToolCall
	StreamDone
	StreamError
)

// StreamEvent is one unit of an LlmDriver's streaming response.
type StreamEvent struct {
	Kind     StreamEventKind
	Text     string
	ToolCall ToolCall
	Usage    UsageMetadata
	Err      error
}

// UsageMetadata carries token accounting reported at the end of a
// generation.
type UsageMetadata struct {
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Event is one entry in a session's event stream, the thing
// EventEmitter persists and downstream observers (SSE, audit) consume
// in per-session sequence order.
type Event struct {
	SessionID string
	Sequence  int64
	Type      string
	Data      []byte
	CreatedAt time.Time
}

// ToolContext carries per-call metadata a ToolExecutor may need beyond
// the call's own arguments.
type ToolContext struct {
	SessionID string
	TurnID    string
	CallID    string
}

// FileInfo describes one entry returned by SessionFileStore.List.
type FileInfo struct {
	Path  string
	IsDir bool
	Size  int64
}

// FileStat describes metadata returned by SessionFileStore.Stat.
type FileStat struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// GrepMatch is one hit returned by SessionFileStore.Grep.
type GrepMatch struct {
	Path string
	Line int
	Text string
}
