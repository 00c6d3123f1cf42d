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

// Package deadletter stores tasks whose retry budget is exhausted, for
// operator inspection and replay. The worker pool records an Entry the
// moment taskqueue.Fail reports WillRetry == false; nothing here decides
// retry policy, it only retains what already happened.
package deadletter

import (
	"context"
	"time"
)

// Entry is one exhausted task, retained for operator replay.
type Entry struct {
	TaskID       string
	WorkflowID   string
	ActivityID   string
	ActivityType string
	Input        []byte
	FinalError   string
	Attempt      int32
	CreatedAt    time.Time
}

// Page is one page of a List call.
type Page struct {
	Entries    []Entry
	NextCursor string
}

// Store is the persistence boundary the worker pool and any operator
// tooling use. Implementations need not support concurrent Record calls
// for the same TaskID; a task is dead-lettered at most once.
type Store interface {
	// Record retains e. Implementations should treat a duplicate TaskID
	// as a no-op rather than an error, since a reclaimed-then-refailed
	// task can reach this path twice.
	Record(ctx context.Context, e Entry) error

	// List returns entries ordered oldest-first, paginated by an
	// opaque cursor. Pass an empty cursor to start from the beginning.
	List(ctx context.Context, cursor string, limit int) (Page, error)

	// Get returns the entry for taskID, or durerr.ErrNoData if absent.
	Get(ctx context.Context, taskID string) (Entry, error)
}
