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
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/turnforge/durable/collab"
	"github.com/turnforge/durable/eventlog"
	"github.com/turnforge/durable/taskqueue"
)

func TestMessageStoreAppendAndLoad(t *testing.T) {
	m := &MessageStore{}
	msg := collab.Message{Role: collab.RoleUser, Text: "hi"}
	m.On("Append", mock.Anything, "session-1", msg).Return(nil).Once()
	m.On("Load", mock.Anything, "session-1").Return([]collab.Message{msg}, nil).Once()

	require.NoError(t, m.Append(context.Background(), "session-1", msg))
	loaded, err := m.Load(context.Background(), "session-1")
	require.NoError(t, err)
	require.Equal(t, []collab.Message{msg}, loaded)
	m.AssertExpectations(t)
}

func TestTaskQueueClaimAndFail(t *testing.T) {
	q := &TaskQueue{}
	task := taskqueue.Task{TaskID: "task-1", ActivityType: "reason"}
	q.On("Claim", mock.Anything, "worker-1", []string{"reason"}, 1).Return([]taskqueue.Task{task}, nil).Once()
	q.On("Fail", mock.Anything, "task-1", "worker-1", mock.Anything).Return(taskqueue.FailResult{WillRetry: false}, nil).Once()

	claimed, err := q.Claim(context.Background(), "worker-1", []string{"reason"}, 1)
	require.NoError(t, err)
	require.Equal(t, []taskqueue.Task{task}, claimed)

	result, err := q.Fail(context.Background(), "task-1", "worker-1", errors.New("boom"))
	require.NoError(t, err)
	require.False(t, result.WillRetry)
	q.AssertExpectations(t)
}

func TestEventStoreUpdateStatus(t *testing.T) {
	s := &EventStore{}
	s.On("UpdateStatus", mock.Anything, "wf-1", eventlog.StatusCompleted, []byte(`"done"`), "").Return(nil).Once()
	require.NoError(t, s.UpdateStatus(context.Background(), "wf-1", eventlog.StatusCompleted, []byte(`"done"`), ""))
	s.AssertExpectations(t)
}

func TestTaskQueueReclaimStale(t *testing.T) {
	q := &TaskQueue{}
	now := time.Unix(0, 0)
	q.On("ReclaimStale", mock.Anything, now).Return(2, nil).Once()
	n, err := q.ReclaimStale(context.Background(), now)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	q.AssertExpectations(t)
}
