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

package durerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConflictErrorMessage(t *testing.T) {
	err := &ConflictError{StreamID: "wf-1", ExpectedSequence: 3, ActualSequence: 5}
	assert.Contains(t, err.Error(), "wf-1")
	assert.Contains(t, err.Error(), "expected sequence 3")
	assert.Contains(t, err.Error(), "actual 5")
}

func TestTimeoutErrorUnwrapAndType(t *testing.T) {
	cause := errors.New("boom")
	err := NewTimeoutError(TimeoutTypeHeartbeat, cause, map[string]int{"progress": 4})

	var te *TimeoutError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, TimeoutTypeHeartbeat, te.Type())
	assert.Equal(t, map[string]int{"progress": 4}, te.LastHeartbeatDetails())
	assert.Same(t, cause, errors.Unwrap(err))
	assert.True(t, IsTimeout(err))
}

func TestTimeoutTypeString(t *testing.T) {
	cases := map[TimeoutType]string{
		TimeoutTypeUnspecified:     "unspecified",
		TimeoutTypeScheduleToStart: "schedule_to_start",
		TimeoutTypeStartToClose:    "start_to_close",
		TimeoutTypeHeartbeat:       "heartbeat",
	}
	for tt, want := range cases {
		assert.Equal(t, want, tt.String())
	}
}

func TestCanceledErrorWrapping(t *testing.T) {
	cause := errors.New("context canceled")
	err := NewCanceledError(cause, "partial-result")

	assert.True(t, IsCanceled(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "partial-result", err.Details)
}

func TestFatalErrorIsNonRetryable(t *testing.T) {
	err := NewFatalError("bad input", errors.New("invalid argument"))

	assert.False(t, IsRetryable(err))

	wrapped := fmt.Errorf("wrapping: %w", err)
	assert.False(t, IsRetryable(wrapped))
}

func TestIsRetryableDefaultsTrueForPlainErrors(t *testing.T) {
	assert.True(t, IsRetryable(errors.New("transient")))
	assert.False(t, IsRetryable(nil))
}

func TestActivityErrorUnwrap(t *testing.T) {
	cause := &FatalError{Message: "nope"}
	err := NewActivityError("task-1", "send_email", 3, false, cause)

	assert.False(t, err.Retryable())
	assert.Contains(t, err.Error(), "send_email")
	assert.Contains(t, err.Error(), "task-1")

	var fe *FatalError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "nope", fe.Message)
}

func TestWorkflowErrorUnwrap(t *testing.T) {
	cause := errors.New("activity exhausted retries")
	err := NewWorkflowError("wf-42", "turn_workflow", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "wf-42")
	assert.Contains(t, err.Error(), "turn_workflow")
}

func TestCircuitOpenErrorMessage(t *testing.T) {
	err := &CircuitOpenError{ActivityType: "call_llm"}
	assert.Contains(t, err.Error(), "call_llm")
}

func TestStaleVersionAndNotOwnedAndInvalidState(t *testing.T) {
	sv := &StaleVersionError{EntityID: "wf-1", SeenVersion: 2, LatestVersion: 5}
	assert.Contains(t, sv.Error(), "saw 2")
	assert.Contains(t, sv.Error(), "latest is 5")

	no := &NotOwnedError{TaskID: "task-9", ClaimToken: "tok-abc"}
	assert.Contains(t, no.Error(), "task-9")
	assert.Contains(t, no.Error(), "tok-abc")

	is := &InvalidStateError{EntityID: "task-9", State: "completed", Action: "complete"}
	assert.Contains(t, is.Error(), "completed")
	assert.Contains(t, is.Error(), "complete")
}
