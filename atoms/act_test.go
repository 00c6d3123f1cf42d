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

package atoms_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turnforge/durable/atoms"
	"github.com/turnforge/durable/codec"
	"github.com/turnforge/durable/collab"
)

func TestActAtomPreservesOrderAcrossMixedOutcomes(t *testing.T) {
	messages := collab.NewMemoryMessageStore()
	events := collab.NewMemoryEventEmitter()
	tools := collab.NewMemoryToolExecutor()
	tools.Register("ok", func(ctx context.Context, call collab.ToolCall, toolCtx collab.ToolContext) (collab.ToolResult, error) {
		return collab.ToolResult{ToolCallID: call.ID, Success: true, Result: []byte("done")}, nil
	})
	tools.Register("fails", func(ctx context.Context, call collab.ToolCall, toolCtx collab.ToolContext) (collab.ToolResult, error) {
		return collab.ToolResult{}, errors.New("boom")
	})
	tools.Register("slow", func(ctx context.Context, call collab.ToolCall, toolCtx collab.ToolContext) (collab.ToolResult, error) {
		<-ctx.Done()
		return collab.ToolResult{}, ctx.Err()
	})

	deps := atoms.Deps{Messages: messages, Events: events, Tools: tools, ToolTimeout: 20 * time.Millisecond}
	act := atoms.NewActAtom(deps)

	in := atoms.ActInput{SessionID: "sess-1", ToolCalls: []collab.ToolCall{
		{ID: "c1", Name: "ok"},
		{ID: "c2", Name: "fails"},
		{ID: "c3", Name: "slow"},
	}}

	raw, err := act.Execute(context.Background(), unstartedActivityContext(), codec.MustEncode(in))
	require.NoError(t, err)

	var result atoms.ActResult
	require.NoError(t, codec.Decode(raw, &result))
	require.Len(t, result.Outcomes, 3)
	assert.Equal(t, "c1", result.Outcomes[0].ToolCallID)
	assert.Equal(t, collab.ToolCallStatusSuccess, result.Outcomes[0].Status)
	assert.Equal(t, "c2", result.Outcomes[1].ToolCallID)
	assert.Equal(t, collab.ToolCallStatusError, result.Outcomes[1].Status)
	assert.Equal(t, "c3", result.Outcomes[2].ToolCallID)
	assert.Equal(t, collab.ToolCallStatusTimeout, result.Outcomes[2].Status)

	history, err := messages.Load(context.Background(), "sess-1")
	require.NoError(t, err)
	require.Len(t, history, 3)
	for _, m := range history {
		assert.Equal(t, collab.RoleToolResult, m.Role)
	}

	types := eventTypes(events.Events("sess-1"))
	assert.Equal(t, "act.started", types[0])
	assert.Equal(t, "act.completed", types[len(types)-1])
}

func TestActAtomUnknownToolNameRecordsError(t *testing.T) {
	messages := collab.NewMemoryMessageStore()
	events := collab.NewMemoryEventEmitter()
	tools := collab.NewMemoryToolExecutor()

	act := atoms.NewActAtom(atoms.Deps{Messages: messages, Events: events, Tools: tools})
	in := atoms.ActInput{SessionID: "sess-1", ToolCalls: []collab.ToolCall{{ID: "c1", Name: "missing"}}}

	raw, err := act.Execute(context.Background(), unstartedActivityContext(), codec.MustEncode(in))
	require.NoError(t, err)

	var result atoms.ActResult
	require.NoError(t, codec.Decode(raw, &result))
	require.Len(t, result.Outcomes, 1)
	assert.Equal(t, collab.ToolCallStatusError, result.Outcomes[0].Status)
}
