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

package deadletter

import (
	"context"
	"sort"
	"sync"

	"github.com/turnforge/durable/durerr"
)

// MemoryStore is an in-process Store for tests and single-process runs.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]Entry
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

func (s *MemoryStore) Record(ctx context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[e.TaskID]; exists {
		return nil
	}
	s.entries[e.TaskID] = e
	return nil
}

func (s *MemoryStore) List(ctx context.Context, cursor string, limit int) (Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 {
		limit = 100
	}

	ordered := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		ordered = append(ordered, e)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].CreatedAt.Equal(ordered[j].CreatedAt) {
			return ordered[i].TaskID < ordered[j].TaskID
		}
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})

	start := 0
	if cursor != "" {
		for i, e := range ordered {
			if e.TaskID == cursor {
				start = i + 1
				break
			}
		}
	}
	if start >= len(ordered) {
		return Page{}, nil
	}

	end := start + limit
	if end > len(ordered) {
		end = len(ordered)
	}
	page := Page{Entries: ordered[start:end]}
	if end < len(ordered) {
		page.NextCursor = ordered[end-1].TaskID
	}
	return page, nil
}

func (s *MemoryStore) Get(ctx context.Context, taskID string) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[taskID]
	if !ok {
		return Entry{}, durerr.ErrNoData
	}
	return e, nil
}

var _ Store = (*MemoryStore)(nil)
