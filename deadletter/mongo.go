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
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/turnforge/durable/durerr"
)

const (
	defaultCollection = "dead_letter"
	defaultTimeout    = 5 * time.Second
)

// MongoOptions configures MongoStore.
type MongoOptions struct {
	Client     *mongodriver.Client
	Database   string
	Collection string
	Timeout    time.Duration
}

// MongoStore is a Store backed by MongoDB, for operator-facing deployments
// that keep the dead-letter queue outside the primary Postgres database.
type MongoStore struct {
	coll    collection
	timeout time.Duration
}

type entryDocument struct {
	ID           bson.ObjectID `bson:"_id,omitempty"`
	TaskID       string        `bson:"task_id"`
	WorkflowID   string        `bson:"workflow_id"`
	ActivityID   string        `bson:"activity_id"`
	ActivityType string        `bson:"activity_type"`
	Input        []byte        `bson:"input"`
	FinalError   string        `bson:"final_error"`
	Attempt      int32         `bson:"attempt"`
	CreatedAt    time.Time     `bson:"created_at"`
}

// NewMongoStore wraps an already-connected *mongo.Client.
func NewMongoStore(ctx context.Context, opts MongoOptions) (*MongoStore, error) {
	if opts.Client == nil {
		return nil, errors.New("deadletter: mongo client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("deadletter: database name is required")
	}
	collName := opts.Collection
	if collName == "" {
		collName = defaultCollection
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	mcoll := opts.Client.Database(opts.Database).Collection(collName)
	wrapper := mongoCollection{coll: mcoll}

	indexCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := ensureIndexes(indexCtx, wrapper); err != nil {
		return nil, fmt.Errorf("deadletter: ensure indexes: %w", err)
	}

	return &MongoStore{coll: wrapper, timeout: timeout}, nil
}

func (s *MongoStore) Record(ctx context.Context, e Entry) error {
	if e.TaskID == "" {
		return errors.New("deadletter: task id is required")
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	doc := entryDocument{
		TaskID:       e.TaskID,
		WorkflowID:   e.WorkflowID,
		ActivityID:   e.ActivityID,
		ActivityType: e.ActivityType,
		Input:        append([]byte(nil), e.Input...),
		FinalError:   e.FinalError,
		Attempt:      e.Attempt,
		CreatedAt:    e.CreatedAt.UTC(),
	}

	_, err := s.coll.UpdateOne(ctx,
		bson.M{"task_id": e.TaskID},
		bson.M{"$setOnInsert": doc},
		options.UpdateOne().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("deadletter: record: %w", err)
	}
	return nil
}

func (s *MongoStore) List(ctx context.Context, cursor string, limit int) (Page, error) {
	if limit <= 0 {
		limit = 100
	}

	filter := bson.M{}
	if cursor != "" {
		oid, err := bson.ObjectIDFromHex(cursor)
		if err != nil {
			return Page{}, fmt.Errorf("deadletter: invalid cursor %q: %w", cursor, err)
		}
		filter["_id"] = bson.M{"$gt": oid}
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	cur, err := s.coll.Find(ctx, filter, options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetLimit(int64(limit+1)))
	if err != nil {
		return Page{}, fmt.Errorf("deadletter: list: %w", err)
	}
	defer cur.Close(ctx)

	var docs []entryDocument
	for cur.Next(ctx) {
		var doc entryDocument
		if err := cur.Decode(&doc); err != nil {
			return Page{}, fmt.Errorf("deadletter: decode: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := cur.Err(); err != nil {
		return Page{}, err
	}

	var next string
	if len(docs) > limit {
		next = docs[limit-1].ID.Hex()
		docs = docs[:limit]
	}

	entries := make([]Entry, len(docs))
	for i, doc := range docs {
		entries[i] = entryFromDocument(doc)
	}
	return Page{Entries: entries, NextCursor: next}, nil
}

func (s *MongoStore) Get(ctx context.Context, taskID string) (Entry, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var doc entryDocument
	err := s.coll.FindOne(ctx, bson.M{"task_id": taskID}).Decode(&doc)
	if errors.Is(err, mongodriver.ErrNoDocuments) {
		return Entry{}, durerr.ErrNoData
	}
	if err != nil {
		return Entry{}, fmt.Errorf("deadletter: get: %w", err)
	}
	return entryFromDocument(doc), nil
}

func entryFromDocument(doc entryDocument) Entry {
	return Entry{
		TaskID:       doc.TaskID,
		WorkflowID:   doc.WorkflowID,
		ActivityID:   doc.ActivityID,
		ActivityType: doc.ActivityType,
		Input:        append([]byte(nil), doc.Input...),
		FinalError:   doc.FinalError,
		Attempt:      doc.Attempt,
		CreatedAt:    doc.CreatedAt,
	}
}

func (s *MongoStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

func ensureIndexes(ctx context.Context, coll collection) error {
	_, err := coll.Indexes().CreateOne(ctx, mongodriver.IndexModel{
		Keys: bson.D{{Key: "task_id", Value: 1}},
	})
	return err
}

// collection narrows *mongo.Collection to what MongoStore needs, so tests
// can substitute a fake rather than require a live server.
type collection interface {
	UpdateOne(ctx context.Context, filter, update any, opts ...options.Lister[options.UpdateOneOptions]) (*mongodriver.UpdateResult, error)
	Find(ctx context.Context, filter any, opts ...options.Lister[options.FindOptions]) (cursorIface, error)
	FindOne(ctx context.Context, filter any, opts ...options.Lister[options.FindOneOptions]) singleResult
	Indexes() indexView
}

type singleResult interface {
	Decode(val any) error
}

type indexView interface {
	CreateOne(ctx context.Context, model mongodriver.IndexModel, opts ...options.Lister[options.CreateIndexesOptions]) (string, error)
}

type cursorIface interface {
	Next(ctx context.Context) bool
	Decode(val any) error
	Err() error
	Close(ctx context.Context) error
}

type mongoCollection struct {
	coll *mongodriver.Collection
}

func (c mongoCollection) UpdateOne(ctx context.Context, filter, update any, opts ...options.Lister[options.UpdateOneOptions]) (*mongodriver.UpdateResult, error) {
	return c.coll.UpdateOne(ctx, filter, update, opts...)
}

func (c mongoCollection) Find(ctx context.Context, filter any, opts ...options.Lister[options.FindOptions]) (cursorIface, error) {
	cur, err := c.coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	return cur, nil
}

func (c mongoCollection) FindOne(ctx context.Context, filter any, opts ...options.Lister[options.FindOneOptions]) singleResult {
	return c.coll.FindOne(ctx, filter, opts...)
}

func (c mongoCollection) Indexes() indexView {
	return mongoIndexView{view: c.coll.Indexes()}
}

type mongoIndexView struct {
	view mongodriver.IndexView
}

func (v mongoIndexView) CreateOne(ctx context.Context, model mongodriver.IndexModel, opts ...options.Lister[options.CreateIndexesOptions]) (string, error) {
	return v.view.CreateOne(ctx, model, opts...)
}

var _ Store = (*MongoStore)(nil)
