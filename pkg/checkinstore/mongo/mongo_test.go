package mongo

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcmongo "github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/ministryhub/checkin-rollup/internal/testutil"
	"github.com/ministryhub/checkin-rollup/pkg/checkin"
	"github.com/ministryhub/checkin-rollup/pkg/checkinstore"
	"github.com/ministryhub/checkin-rollup/pkg/config"
	"github.com/ministryhub/checkin-rollup/pkg/rollup"
)

var (
	la   = mustLoad("America/Los_Angeles")
	dayD = time.Date(2025, 3, 9, 17, 0, 0, 0, time.UTC)
)

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

func setupStore(t *testing.T) (context.Context, *Store) {
	t.Helper()
	testutil.RequireDockerAccess(t)

	ctx := context.Background()
	container, err := tcmongo.Run(ctx, "mongo:7", tcmongo.WithReplicaSet("rs0"))
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	s, err := Connect(ctx, &config.MongoConfig{
		URI:            uri,
		Database:       "checkin_test",
		ConnectTimeout: 10 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return ctx, s
}

func insert(t *testing.T, s *Store, id, ministry, category string, ts time.Time) {
	t.Helper()
	require.NoError(t, s.InsertEvent(context.Background(), checkin.NewEvent(id, "member-"+id, ministry, category, ts)))
}

func dayKey(ministry string, ts time.Time) checkin.SummaryKey {
	return checkin.SummaryKey{Date: checkin.DayOf(ts, la), MinistryID: ministry}
}

func TestMongoStore_UpsertIncrement(t *testing.T) {
	ctx, s := setupStore(t)
	key := dayKey("m1", dayD)

	_, err := s.GetSummary(ctx, key)
	require.ErrorIs(t, err, checkinstore.ErrNotFound)

	require.NoError(t, s.UpsertIncrement(ctx, key, checkin.Counts{"in-person": 10, "online": 4}))
	require.NoError(t, s.UpsertIncrement(ctx, key, checkin.Counts{"event": 3, "youth.night": 2, "$where": 1, "": 1}))
	require.NoError(t, s.UpsertIncrement(ctx, key, checkin.Counts{"online": 1}))

	sum, err := s.GetSummary(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, checkin.Counts{
		"in-person":   10,
		"online":      5,
		"event":       3,
		"youth.night": 2,
		"$where":      1,
		"":            1,
	}, sum.Counts)
	assert.True(t, sum.Date.Equal(key.Date))
	assert.NotEmpty(t, sum.ID)

	// Dotted categories stay flat keys rather than nested documents.
	var raw bson.M
	require.NoError(t, s.summaries.FindOne(ctx, bson.M{"_id": sum.ID}).Decode(&raw))
	counts, ok := raw["counts"].(bson.M)
	require.True(t, ok)
	assert.Contains(t, counts, "youth%2Enight")
	assert.NotContains(t, counts, "youth")
}

func TestMongoStore_MarkAndReap(t *testing.T) {
	ctx, s := setupStore(t)
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

	insert(t, s, "old", "m1", "online", now.Add(-61*24*time.Hour))
	insert(t, s, "recent", "m1", "online", now.Add(-59*24*time.Hour))
	insert(t, s, "old-unprocessed", "m1", "online", now.Add(-90*24*time.Hour))

	n, err := s.MarkProcessed(ctx, []string{"old", "recent"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = s.MarkProcessed(ctx, []string{"old", "old-unprocessed"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "already processed events are not counted")

	_, err = s.events.UpdateOne(ctx, bson.M{"_id": "old-unprocessed"}, bson.M{"$set": bson.M{"processed": false}})
	require.NoError(t, err)

	deleted, err := s.DeleteProcessedBefore(ctx, now.Add(-rollup.DefaultRetention))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	pending, err := s.FindUnprocessed(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "old-unprocessed", pending[0].ID)

	remaining, err := s.events.CountDocuments(ctx, bson.M{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), remaining)
}

func TestMongoStore_RunInTx_Rollback(t *testing.T) {
	ctx, s := setupStore(t)
	insert(t, s, "e1", "m1", "online", dayD)
	boom := errors.New("boom")

	err := s.RunInTx(ctx, func(ctx context.Context, events rollup.EventStore, summaries rollup.SummaryStore) error {
		if _, err := events.MarkProcessed(ctx, []string{"e1"}); err != nil {
			return err
		}
		if err := summaries.UpsertIncrement(ctx, dayKey("m1", dayD), checkin.Counts{"online": 1}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	pending, err := s.FindUnprocessed(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
	_, err = s.GetSummary(ctx, dayKey("m1", dayD))
	assert.ErrorIs(t, err, checkinstore.ErrNotFound)
}

func TestMongoStore_RollupCycle(t *testing.T) {
	ctx, s := setupStore(t)
	now := time.Date(2025, 3, 10, 18, 0, 0, 0, time.UTC)
	engine := rollup.NewEngine(s, zap.NewNop(),
		rollup.WithLocation(la),
		rollup.WithClock(func() time.Time { return now }),
	)

	for i := 0; i < 3; i++ {
		insert(t, s, fmt.Sprintf("a-%d", i), "A", "online", dayD.Add(time.Duration(i)*time.Minute))
	}
	insert(t, s, "b-0", "B", "online", dayD)

	_, err := engine.RunCycle(ctx)
	require.NoError(t, err)

	insert(t, s, "a-3", "A", "online", dayD.Add(time.Hour))
	insert(t, s, "a-4", "A", "online", dayD.Add(time.Hour))
	_, err = engine.RunCycle(ctx)
	require.NoError(t, err)

	sumA, err := s.GetSummary(ctx, dayKey("A", dayD))
	require.NoError(t, err)
	assert.Equal(t, checkin.Counts{"online": 5}, sumA.Counts)

	sums, err := s.ListSummaries(ctx, checkinstore.SummaryFilter{MinistryID: "B"})
	require.NoError(t, err)
	require.Len(t, sums, 1)
	assert.Equal(t, checkin.Counts{"online": 1}, sums[0].Counts)
}

func TestMongoStore_ListEvents(t *testing.T) {
	ctx, s := setupStore(t)
	for i, id := range []string{"e3", "e1", "e2", "e4"} {
		ev := checkin.NewEvent(id, "member-1", "m1", "online", dayD.Add(time.Duration(i)*time.Hour))
		require.NoError(t, s.InsertEvent(ctx, ev))
	}
	require.NoError(t, s.InsertEvent(ctx, checkin.NewEvent("other-member", "member-2", "m1", "online", dayD)))
	require.NoError(t, s.InsertEvent(ctx, checkin.NewEvent("other-ministry", "member-1", "m2", "online", dayD)))

	got, err := s.ListEvents(ctx, checkinstore.EventFilter{
		MemberID:   "member-1",
		MinistryID: "m1",
		From:       dayD,
		To:         dayD.Add(3 * time.Hour),
	})
	require.NoError(t, err)
	require.Len(t, got, 3, "To is exclusive")
	assert.Equal(t, []string{"e3", "e1", "e2"}, []string{got[0].ID, got[1].ID, got[2].ID})

	limited, err := s.ListEvents(ctx, checkinstore.EventFilter{MemberID: "member-1", Limit: 2})
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "e3", limited[0].ID)
}

func TestMongoStore_UpsertIncrement_InsideTransactions(t *testing.T) {
	ctx, s := setupStore(t)
	key := dayKey("m1", dayD)

	for i := 0; i < 2; i++ {
		err := s.RunInTx(ctx, func(ctx context.Context, _ rollup.EventStore, summaries rollup.SummaryStore) error {
			return summaries.UpsertIncrement(ctx, key, checkin.Counts{"online": 2})
		})
		require.NoError(t, err)
	}

	sum, err := s.GetSummary(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(4), sum.Counts["online"])
}

func TestRetryUpsert(t *testing.T) {
	dup := mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000, Message: "E11000 duplicate key error"}}}

	assert.True(t, retryUpsert(dup, false))
	assert.False(t, retryUpsert(dup, true), "an aborted transaction cannot take another write")
	assert.False(t, retryUpsert(errors.New("connection reset"), false))
	assert.False(t, retryUpsert(nil, false))
}
