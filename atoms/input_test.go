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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turnforge/durable/atoms"
	"github.com/turnforge/durable/codec"
	"github.com/turnforge/durable/collab"
)

func TestInputAtomLoadsMessageAndEmitsEvent(t *testing.T) {
	messages := collab.NewMemoryMessageStore()
	events := collab.NewMemoryEventEmitter()
	require.NoError(t, messages.Append(context.Background(), "sess-1", collab.Message{ID: "m1", Role: collab.RoleUser, Text: "What is 2+2?"}))

	input := atoms.NewInputAtom(atoms.Deps{Messages: messages, Events: events})

	raw, err := input.Execute(context.Background(), nil, codec.MustEncode(atoms.InputInput{SessionID: "sess-1", MessageID: "m1"}))
	require.NoError(t, err)

	var result atoms.InputResult
	require.NoError(t, codec.Decode(raw, &result))
	assert.Equal(t, "What is 2+2?", result.Message.Text)

	evts := events.Events("sess-1")
	require.Len(t, evts, 1)
	assert.Equal(t, "input.received", evts[0].Type)
}

func TestInputAtomUnknownMessageFailsFatal(t *testing.T) {
	messages := collab.NewMemoryMessageStore()
	events := collab.NewMemoryEventEmitter()
	input := atoms.NewInputAtom(atoms.Deps{Messages: messages, Events: events})

	_, err := input.Execute(context.Background(), nil, codec.MustEncode(atoms.InputInput{SessionID: "sess-1", MessageID: "missing"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MessageNotFound")
}
