// Package mongo is the MongoDB check-in store. Transactions require a replica set.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/ministryhub/checkin-rollup/pkg/checkin"
	"github.com/ministryhub/checkin-rollup/pkg/checkinstore"
	"github.com/ministryhub/checkin-rollup/pkg/config"
	"github.com/ministryhub/checkin-rollup/pkg/rollup"
)

const (
	eventsCollection    = "checkin_events"
	summariesCollection = "daily_summaries"
)

type eventDoc struct {
	ID          string     `bson:"_id"`
	MemberID    string     `bson:"memberId"`
	MinistryID  string     `bson:"ministryId"`
	Category    string     `bson:"category"`
	Timestamp   time.Time  `bson:"timestamp"`
	Processed   bool       `bson:"processed"`
	ProcessedAt *time.Time `bson:"processedAt,omitempty"`
}

type summaryDoc struct {
	ID         string           `bson:"_id"`
	Date       time.Time        `bson:"date"`
	MinistryID string           `bson:"ministryId"`
	Counts     map[string]int64 `bson:"counts"`
	CreatedAt  time.Time        `bson:"createdAt"`
	UpdatedAt  time.Time        `bson:"updatedAt"`
}

func (d *summaryDoc) toSummary() *checkin.DailySummary {
	counts := make(checkin.Counts, len(d.Counts))
	for key, n := range d.Counts {
		counts[UnescapeKey(key)] = n
	}
	return &checkin.DailySummary{
		ID:         d.ID,
		Date:       d.Date.UTC(),
		MinistryID: d.MinistryID,
		Counts:     counts,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
}

func toEvents(docs []eventDoc) []*checkin.Event {
	events := make([]*checkin.Event, len(docs))
	for i, d := range docs {
		events[i] = &checkin.Event{
			ID:          d.ID,
			MemberID:    d.MemberID,
			MinistryID:  d.MinistryID,
			Category:    d.Category,
			Timestamp:   d.Timestamp,
			Processed:   d.Processed,
			ProcessedAt: d.ProcessedAt,
		}
	}
	return events
}

// queries runs against the collections with whatever session ctx carries.
type queries struct {
	events    *mongo.Collection
	summaries *mongo.Collection
}

// Store is the MongoDB implementation of checkinstore.Store.
type Store struct {
	queries
	client *mongo.Client
}

var _ checkinstore.Store = (*Store)(nil)

// Connect dials MongoDB, verifies the primary answers and ensures indexes.
func Connect(ctx context.Context, cfg *config.MongoConfig) (*Store, error) {
	opts := options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(cfg.ConnectTimeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongodb ping failed: %w", err)
	}

	s := NewStore(client, cfg.Database)
	if err := s.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

// NewStore creates a store over the given database.
func NewStore(client *mongo.Client, database string) *Store {
	db := client.Database(database)
	return &Store{
		queries: queries{
			events:    db.Collection(eventsCollection),
			summaries: db.Collection(summariesCollection),
		},
		client: client,
	}
}

// EnsureIndexes creates the backlog index on events and the unique
// (date, ministry) index on summaries.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.events.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "processed", Value: 1}, {Key: "timestamp", Value: 1}}},
		{Keys: bson.D{{Key: "ministryId", Value: 1}}},
		{Keys: bson.D{{Key: "memberId", Value: 1}, {Key: "timestamp", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create event indexes: %w", err)
	}

	_, err = s.summaries.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "date", Value: 1}, {Key: "ministryId", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create summary index: %w", err)
	}
	return nil
}

// RunInTx runs fn inside a multi-document transaction. The driver may call fn
// again on transient transaction errors.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, events rollup.EventStore, summaries rollup.SummaryStore) error) error {
	sess, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc, s.queries, s.queries)
	})
	return err
}

// Ping checks that the primary answers.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (q queries) InsertEvent(ctx context.Context, ev *checkin.Event) error {
	_, err := q.events.InsertOne(ctx, eventDoc{
		ID:          ev.ID,
		MemberID:    ev.MemberID,
		MinistryID:  ev.MinistryID,
		Category:    ev.Category,
		Timestamp:   ev.Timestamp.UTC(),
		Processed:   ev.Processed,
		ProcessedAt: ev.ProcessedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to insert check-in event: %w", err)
	}
	return nil
}

func (q queries) FindUnprocessed(ctx context.Context, limit int) ([]*checkin.Event, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}, {Key: "_id", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := q.events.Find(ctx, bson.M{"processed": false}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find unprocessed events: %w", err)
	}
	var docs []eventDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode unprocessed events: %w", err)
	}

	return toEvents(docs), nil
}

func (q queries) ListEvents(ctx context.Context, filter checkinstore.EventFilter) ([]*checkin.Event, error) {
	query := bson.M{}
	if filter.MemberID != "" {
		query["memberId"] = filter.MemberID
	}
	if filter.MinistryID != "" {
		query["ministryId"] = filter.MinistryID
	}
	tsRange := bson.M{}
	if !filter.From.IsZero() {
		tsRange["$gte"] = filter.From.UTC()
	}
	if !filter.To.IsZero() {
		tsRange["$lt"] = filter.To.UTC()
	}
	if len(tsRange) > 0 {
		query["timestamp"] = tsRange
	}

	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}, {Key: "_id", Value: 1}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}
	cursor, err := q.events.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	var docs []eventDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode events: %w", err)
	}
	return toEvents(docs), nil
}

func (q queries) MarkProcessed(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := q.events.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": ids}, "processed": false},
		bson.M{"$set": bson.M{"processed": true, "processedAt": time.Now().UTC()}},
	)
	if err != nil {
		return 0, fmt.Errorf("failed to mark events processed: %w", err)
	}
	return res.ModifiedCount, nil
}

func (q queries) DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := q.events.DeleteMany(ctx, bson.M{
		"processed": true,
		"timestamp": bson.M{"$lt": cutoff.UTC()},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete processed events: %w", err)
	}
	return res.DeletedCount, nil
}

func (q queries) UpsertIncrement(ctx context.Context, key checkin.SummaryKey, deltas checkin.Counts) error {
	if len(deltas) == 0 {
		return nil
	}
	inc := bson.M{}
	for category, n := range deltas {
		inc["counts."+EscapeKey(category)] = n
	}
	now := time.Now().UTC()
	filter := bson.M{"date": key.Date.UTC(), "ministryId": key.MinistryID}
	update := bson.M{
		"$inc":         inc,
		"$set":         bson.M{"updatedAt": now},
		"$setOnInsert": bson.M{"_id": uuid.NewString(), "createdAt": now},
	}
	opts := options.Update().SetUpsert(true)

	_, err := q.summaries.UpdateOne(ctx, filter, update, opts)
	if retryUpsert(err, mongo.SessionFromContext(ctx) != nil) {
		// Lost the insert race on the unique index; the row exists now.
		_, err = q.summaries.UpdateOne(ctx, filter, update, opts)
	}
	if err != nil {
		return fmt.Errorf("failed to upsert summary %s: %w", key, err)
	}
	return nil
}

// retryUpsert reports whether a failed upsert may be re-issued on its own.
// Inside a transaction the server has already aborted it, so the error goes
// back to the caller and the whole partition is retried by a later cycle.
func retryUpsert(err error, inTx bool) bool {
	return !inTx && mongo.IsDuplicateKeyError(err)
}

func (q queries) GetSummary(ctx context.Context, key checkin.SummaryKey) (*checkin.DailySummary, error) {
	var doc summaryDoc
	err := q.summaries.FindOne(ctx, bson.M{"date": key.Date.UTC(), "ministryId": key.MinistryID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, checkinstore.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get summary: %w", err)
	}
	return doc.toSummary(), nil
}

func (q queries) ListSummaries(ctx context.Context, filter checkinstore.SummaryFilter) ([]*checkin.DailySummary, error) {
	query := bson.M{}
	if filter.MinistryID != "" {
		query["ministryId"] = filter.MinistryID
	}
	dateRange := bson.M{}
	if !filter.From.IsZero() {
		dateRange["$gte"] = filter.From.UTC()
	}
	if !filter.To.IsZero() {
		dateRange["$lte"] = filter.To.UTC()
	}
	if len(dateRange) > 0 {
		query["date"] = dateRange
	}

	opts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}, {Key: "ministryId", Value: 1}})
	cursor, err := q.summaries.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list summaries: %w", err)
	}
	var docs []summaryDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode summaries: %w", err)
	}

	summaries := make([]*checkin.DailySummary, len(docs))
	for i := range docs {
		summaries[i] = docs[i].toSummary()
	}
	return summaries, nil
}
