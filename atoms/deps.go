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

// Package atoms implements the three activities a Turn Workflow
// schedules: Input, Reason and Act. Each is a worker.HandlerFunc over
// the collab interfaces; none of them touch the workflow engine
// directly, so they can be tested against collab's in-memory
// implementations without a queue or engine in the loop.
package atoms

import (
	"time"

	"go.uber.org/zap"

	"github.com/turnforge/durable/collab"
)

// Deps is the set of collaborators every atom is built against.
type Deps struct {
	Messages  collab.MessageStore
	Sessions  collab.SessionStore
	Agents    collab.AgentStore
	Providers collab.LlmProviderStore
	Drivers   collab.LlmDriverRegistry
	Events    collab.EventEmitter
	Tools     collab.ToolExecutor

	// ToolCatalog maps a capability name (as listed in
	// AgentConfig.Capabilities) to the tool definition it unlocks.
	ToolCatalog map[string]collab.ToolDefinition

	// ToolTimeout bounds a single tool call in ActAtom. Defaults to 30s.
	ToolTimeout time.Duration

	Logger *zap.Logger
}

func (d Deps) logger() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}

func effectiveTools(catalog map[string]collab.ToolDefinition, capabilities []string) []collab.ToolDefinition {
	tools := make([]collab.ToolDefinition, 0, len(capabilities))
	for _, capability := range capabilities {
		if def, ok := catalog[capability]; ok {
			tools = append(tools, def)
		}
	}
	return tools
}
