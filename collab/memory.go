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

import (
	"context"
	"fmt"
	"sync"

	"github.com/facebookgo/clock"

	"github.com/turnforge/durable/durerr"
)

// MemoryMessageStore is an in-process MessageStore, used by atom tests
// and the turn workflow tests.
type MemoryMessageStore struct {
	mu       sync.Mutex
	messages map[string][]Message
	clock    clock.Clock
}

// NewMemoryMessageStore constructs an empty MemoryMessageStore.
func NewMemoryMessageStore() *MemoryMessageStore {
	return &MemoryMessageStore{messages: make(map[string][]Message), clock: clock.New()}
}

func (s *MemoryMessageStore) Append(ctx context.Context, sessionID string, message Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if message.CreatedAt.IsZero() {
		message.CreatedAt = s.clock.Now()
	}
	s.messages[sessionID] = append(s.messages[sessionID], message)
	return nil
}

func (s *MemoryMessageStore) Load(ctx context.Context, sessionID string) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages[sessionID]))
	copy(out, s.messages[sessionID])
	return out, nil
}

func (s *MemoryMessageStore) ListMessageEvents(ctx context.Context, sessionID string) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.messages[sessionID]
	events := make([]Event, 0, len(msgs))
	for i, m := range msgs {
		events = append(events, Event{SessionID: sessionID, Sequence: int64(i + 1), Type: "message." + string(m.Role), CreatedAt: m.CreatedAt})
	}
	return events, nil
}

var _ MessageStore = (*MemoryMessageStore)(nil)

// MemorySessionStore is an in-process SessionStore.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]Session
}

// NewMemorySessionStore constructs an empty MemorySessionStore.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]Session)}
}

func (s *MemorySessionStore) Get(ctx context.Context, sessionID string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return Session{}, fmt.Errorf("collab: session %s not found", sessionID)
	}
	return sess, nil
}

func (s *MemorySessionStore) Create(ctx context.Context, session Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session
	return nil
}

func (s *MemorySessionStore) UpdateStatus(ctx context.Context, sessionID string, status SessionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return fmt.Errorf("collab: session %s not found", sessionID)
	}
	sess.Status = status
	s.sessions[sessionID] = sess
	return nil
}

var _ SessionStore = (*MemorySessionStore)(nil)

// MemoryAgentStore is an in-process AgentStore.
type MemoryAgentStore struct {
	mu     sync.Mutex
	agents map[string]AgentConfig
}

// NewMemoryAgentStore constructs a MemoryAgentStore seeded with agents.
func NewMemoryAgentStore(agents ...AgentConfig) *MemoryAgentStore {
	store := &MemoryAgentStore{agents: make(map[string]AgentConfig)}
	for _, a := range agents {
		store.agents[a.AgentID] = a
	}
	return store
}

func (s *MemoryAgentStore) Get(ctx context.Context, agentID string) (AgentConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, ok := s.agents[agentID]
	if !ok {
		return AgentConfig{}, fmt.Errorf("collab: agent %s not found", agentID)
	}
	return cfg, nil
}

var _ AgentStore = (*MemoryAgentStore)(nil)

// MemoryLlmProviderStore is an in-process LlmProviderStore.
type MemoryLlmProviderStore struct {
	mu        sync.Mutex
	providers map[string]ProviderConfig
}

// NewMemoryLlmProviderStore constructs a MemoryLlmProviderStore seeded
// with model -> provider mappings.
func NewMemoryLlmProviderStore(providers map[string]ProviderConfig) *MemoryLlmProviderStore {
	if providers == nil {
		providers = make(map[string]ProviderConfig)
	}
	return &MemoryLlmProviderStore{providers: providers}
}

func (s *MemoryLlmProviderStore) Resolve(ctx context.Context, modelID string) (ProviderConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, ok := s.providers[modelID]
	if !ok {
		return ProviderConfig{}, fmt.Errorf("collab: no provider configured for model %s", modelID)
	}
	return cfg, nil
}

var _ LlmProviderStore = (*MemoryLlmProviderStore)(nil)

// MemoryEventEmitter is an in-process EventEmitter, stamping each
// event with the next sequence number for its session.
type MemoryEventEmitter struct {
	mu     sync.Mutex
	tail   map[string]int64
	events map[string][]Event
	clock  clock.Clock
}

// NewMemoryEventEmitter constructs an empty MemoryEventEmitter.
func NewMemoryEventEmitter() *MemoryEventEmitter {
	return &MemoryEventEmitter{tail: make(map[string]int64), events: make(map[string][]Event), clock: clock.New()}
}

func (e *MemoryEventEmitter) Emit(ctx context.Context, event Event) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tail[event.SessionID]++
	event.Sequence = e.tail[event.SessionID]
	if event.CreatedAt.IsZero() {
		event.CreatedAt = e.clock.Now()
	}
	e.events[event.SessionID] = append(e.events[event.SessionID], event)
	return event.Sequence, nil
}

// Events returns everything emitted for sessionID, in sequence order.
func (e *MemoryEventEmitter) Events(sessionID string) []Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Event, len(e.events[sessionID]))
	copy(out, e.events[sessionID])
	return out
}

var _ EventEmitter = (*MemoryEventEmitter)(nil)

// MemoryToolExecutor dispatches tool calls to registered in-process
// functions, by tool name. It exists for tests; production tool
// execution goes through a real ToolExecutor implementation.
type MemoryToolExecutor struct {
	mu    sync.Mutex
	tools map[string]func(ctx context.Context, call ToolCall, toolCtx ToolContext) (ToolResult, error)
}

// NewMemoryToolExecutor constructs an empty MemoryToolExecutor.
func NewMemoryToolExecutor() *MemoryToolExecutor {
	return &MemoryToolExecutor{tools: make(map[string]func(context.Context, ToolCall, ToolContext) (ToolResult, error))}
}

// Register associates a tool name with a handler function.
func (e *MemoryToolExecutor) Register(name string, fn func(ctx context.Context, call ToolCall, toolCtx ToolContext) (ToolResult, error)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tools[name] = fn
}

func (e *MemoryToolExecutor) Execute(ctx context.Context, call ToolCall, toolCtx ToolContext) (ToolResult, error) {
	e.mu.Lock()
	fn, ok := e.tools[call.Name]
	e.mu.Unlock()
	if !ok {
		return ToolResult{}, durerr.NewFatalError("unknown tool: "+call.Name, nil)
	}
	return fn(ctx, call, toolCtx)
}

var _ ToolExecutor = (*MemoryToolExecutor)(nil)

// DriverRegistry is a straightforward LlmDriverRegistry: a map from
// provider_type to a constructor function, populated at process
// startup by providers/openai, providers/anthropic and any others.
type DriverRegistry struct {
	mu           sync.RWMutex
	constructors map[string]func(cfg ProviderConfig) (LlmDriver, error)
}

// NewDriverRegistry constructs an empty DriverRegistry.
func NewDriverRegistry() *DriverRegistry {
	return &DriverRegistry{constructors: make(map[string]func(ProviderConfig) (LlmDriver, error))}
}

// Register associates providerType with a driver constructor. Panics
// if providerType is already registered.
func (r *DriverRegistry) Register(providerType string, constructor func(cfg ProviderConfig) (LlmDriver, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.constructors[providerType]; exists {
		panic("collab: llm provider type already registered: " + providerType)
	}
	r.constructors[providerType] = constructor
}

func (r *DriverRegistry) CreateDriver(ctx context.Context, cfg ProviderConfig) (LlmDriver, error) {
	r.mu.RLock()
	constructor, ok := r.constructors[cfg.ProviderType]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("collab: no driver registered for provider type %q", cfg.ProviderType)
	}
	return constructor(cfg)
}

var _ LlmDriverRegistry = (*DriverRegistry)(nil)
