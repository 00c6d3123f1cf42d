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
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

func TestMongoStoreRecordIsIdempotentOnDuplicateTaskID(t *testing.T) {
	coll := &fakeCollection{}
	s := &MongoStore{coll: coll, timeout: time.Second}

	e := Entry{TaskID: "task-1", WorkflowID: "wf-1", ActivityType: "reason", FinalError: "boom", Attempt: 3}
	require.NoError(t, s.Record(context.Background(), e))
	require.NoError(t, s.Record(context.Background(), e))
	assert.Equal(t, 2, coll.upsertCalls)
}

func TestMongoStoreListNextCursor(t *testing.T) {
	cases := []struct {
		name     string
		count    int
		limit    int
		wantNext string
	}{
		{name: "fewer_than_limit", count: 2, limit: 3, wantNext: ""},
		{name: "exactly_limit_no_more", count: 3, limit: 3, wantNext: ""},
		{name: "more_than_limit_has_next", count: 4, limit: 3, wantNext: "000000000000000000000003"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			coll := &fakeCollection{findDocs: fakeEntryDocuments(tc.count)}
			s := &MongoStore{coll: coll, timeout: time.Second}

			page, err := s.List(context.Background(), "", tc.limit)
			require.NoError(t, err)
			assert.Len(t, page.Entries, min(tc.count, tc.limit))
			assert.Equal(t, tc.wantNext, page.NextCursor)

			if tc.wantNext == "" {
				return
			}
			next, err := s.List(context.Background(), page.NextCursor, tc.limit)
			require.NoError(t, err)
			assert.Len(t, next.Entries, tc.count-tc.limit)
			assert.Empty(t, next.NextCursor)
		})
	}
}

func TestMongoStoreGetReturnsNoDataWhenAbsent(t *testing.T) {
	coll := &fakeCollection{}
	s := &MongoStore{coll: coll, timeout: time.Second}

	_, err := s.Get(context.Background(), "missing")
	require.Error(t, err)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func fakeEntryDocuments(n int) []entryDocument {
	docs := make([]entryDocument, 0, n)
	for i := 1; i <= n; i++ {
		oid := bson.ObjectID{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, byte(i)}
		docs = append(docs, entryDocument{
			ID:           oid,
			TaskID:       "task",
			WorkflowID:   "wf-1",
			ActivityType: "reason",
			FinalError:   "boom",
			Attempt:      int32(i),
			CreatedAt:    time.Unix(int64(i), 0).UTC(),
		})
	}
	return docs
}

type fakeCollection struct {
	findDocs    []entryDocument
	upsertCalls int
}

func (c *fakeCollection) UpdateOne(context.Context, any, any, ...options.Lister[options.UpdateOneOptions]) (*mongodriver.UpdateResult, error) {
	c.upsertCalls++
	return &mongodriver.UpdateResult{UpsertedCount: 1}, nil
}

func (c *fakeCollection) Find(_ context.Context, filter any, opts ...options.Lister[options.FindOptions]) (cursorIface, error) {
	f, _ := filter.(bson.M)
	var after bson.ObjectID
	if id, ok := f["_id"].(bson.M); ok {
		if gt, ok := id["$gt"].(bson.ObjectID); ok {
			after = gt
		}
	}

	filtered := make([]entryDocument, 0, len(c.findDocs))
	for _, doc := range c.findDocs {
		if !after.IsZero() && bytes.Compare(doc.ID[:], after[:]) <= 0 {
			continue
		}
		filtered = append(filtered, doc)
	}

	// MongoStore.List trims to the requested page size itself once the
	// cursor is drained, so the fake doesn't need to honor SetLimit.
	return &fakeCursor{docs: filtered}, nil
}

func (c *fakeCollection) FindOne(context.Context, any, ...options.Lister[options.FindOneOptions]) singleResult {
	return &fakeSingleResult{}
}

func (c *fakeCollection) Indexes() indexView {
	return fakeIndexView{}
}

type fakeSingleResult struct{}

func (fakeSingleResult) Decode(any) error {
	return mongodriver.ErrNoDocuments
}

type fakeIndexView struct{}

func (fakeIndexView) CreateOne(context.Context, mongodriver.IndexModel, ...options.Lister[options.CreateIndexesOptions]) (string, error) {
	return "", nil
}

type fakeCursor struct {
	docs []entryDocument
	pos  int
}

func (c *fakeCursor) Next(context.Context) bool {
	if c.pos >= len(c.docs) {
		return false
	}
	c.pos++
	return true
}

func (c *fakeCursor) Decode(val any) error {
	if c.pos == 0 || c.pos > len(c.docs) {
		return nil
	}
	p, ok := val.(*entryDocument)
	if !ok {
		return nil
	}
	*p = c.docs[c.pos-1]
	return nil
}

func (c *fakeCursor) Err() error { return nil }

func (c *fakeCursor) Close(context.Context) error { return nil }
