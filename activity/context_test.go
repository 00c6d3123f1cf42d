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

package activity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turnforge/durable/durerr"
)

func TestContextIsLastAttempt(t *testing.T) {
	ctx := NewContext("wf-1", "step-1", 1, 3, nil)
	assert.False(t, ctx.IsLastAttempt())

	ctx = NewContext("wf-1", "step-1", 3, 3, nil)
	assert.True(t, ctx.IsLastAttempt())
}

func TestContextAccessors(t *testing.T) {
	ctx := NewContext("wf-1", "step-1", 2, 5, nil)
	assert.Equal(t, "wf-1", ctx.WorkflowID())
	assert.Equal(t, "step-1", ctx.ActivityID())
	assert.Equal(t, int32(2), ctx.Attempt())
	assert.Equal(t, int32(5), ctx.MaxAttempts())
	assert.NotEqual(t, ctx.AttemptID().String(), "")
}

func TestContextHeartbeatNoOpWithoutSender(t *testing.T) {
	ctx := NewContext("wf-1", "step-1", 1, 3, nil)
	require.NoError(t, ctx.Heartbeat(context.Background(), []byte("progress")))
}

func TestContextHeartbeatInvokesFunc(t *testing.T) {
	var gotDetails []byte
	hb := func(ctx context.Context, details []byte) error {
		gotDetails = details
		return nil
	}
	ctx := NewContext("wf-1", "step-1", 1, 3, hb)
	require.NoError(t, ctx.Heartbeat(context.Background(), []byte("halfway")))
	assert.Equal(t, []byte("halfway"), gotDetails)
}

func TestContextCancellationHandle(t *testing.T) {
	ctx := NewContext("wf-1", "step-1", 1, 3, nil)
	assert.False(t, ctx.IsCancelled())

	handle := ctx.CancellationHandle()
	handle.Cancel()

	assert.True(t, ctx.IsCancelled())
	select {
	case <-ctx.Cancelled():
	default:
		t.Fatal("expected Cancelled channel to be closed")
	}

	var ce *durerr.CanceledError
	err := ctx.Heartbeat(context.Background(), nil)
	require.Error(t, err)
	require.ErrorAs(t, err, &ce)
}

func TestCancellationHandleIsIdempotent(t *testing.T) {
	ctx := NewContext("wf-1", "step-1", 1, 3, nil)
	handle := ctx.CancellationHandle()
	handle.Cancel()
	assert.NotPanics(t, func() { handle.Cancel() })
}
