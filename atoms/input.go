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

	"github.com/turnforge/durable/activity"
	"github.com/turnforge/durable/codec"
	"github.com/turnforge/durable/collab"
	"github.com/turnforge/durable/durerr"
)

// InputAtom loads the user message that starts a turn and records
// that it was received.
type InputAtom struct {
	Deps Deps
}

// NewInputAtom constructs an InputAtom over deps.
func NewInputAtom(deps Deps) *InputAtom {
	return &InputAtom{Deps: deps}
}

// Execute implements worker.HandlerFunc.
func (a *InputAtom) Execute(ctx context.Context, actx *activity.Context, raw []byte) ([]byte, error) {
	var in InputInput
	if err := codec.Decode(raw, &in); err != nil {
		return nil, durerr.NewFatalError("atoms: invalid input atom payload", err)
	}

	messages, err := a.Deps.Messages.Load(ctx, in.SessionID)
	if err != nil {
		return nil, fmt.Errorf("atoms: load session history: %w", err)
	}

	var found *collab.Message
	for i := range messages {
		if messages[i].ID == in.MessageID {
			found = &messages[i]
			break
		}
	}
	if found == nil {
		return nil, durerr.NewFatalError(fmt.Sprintf("MessageNotFound: %s", in.MessageID), nil)
	}

	if _, err := a.Deps.Events.Emit(ctx, collab.Event{
		SessionID: in.SessionID,
		Type:      "input.received",
		Data:      codec.MustEncode(found),
	}); err != nil {
		return nil, fmt.Errorf("atoms: emit input.received: %w", err)
	}

	return codec.Encode(InputResult{Message: *found})
}
