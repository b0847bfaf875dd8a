package pg

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ministryhub/checkin-rollup/internal/testutil"
	"github.com/ministryhub/checkin-rollup/pkg/checkin"
	"github.com/ministryhub/checkin-rollup/pkg/checkinstore"
	"github.com/ministryhub/checkin-rollup/pkg/pgutil"
	mghelper "github.com/ministryhub/checkin-rollup/pkg/pgutil/migrations"
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
	db, cleanup := pgutil.SetupTestDB(t)
	t.Cleanup(cleanup)

	if err := mghelper.CreateSchema(ctx, db, &EventDao{}, &SummaryDao{}); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}
	if err := mghelper.CreateModelCompositeIndex(ctx, db, &SummaryDao{}, true, "date", "ministry_id"); err != nil {
		t.Fatalf("failed to create summary index: %v", err)
	}

	return ctx, NewStore(db)
}

func insert(t *testing.T, s *Store, id, ministry, category string, ts time.Time) {
	t.Helper()
	require.NoError(t, s.InsertEvent(context.Background(), checkin.NewEvent(id, "member-"+id, ministry, category, ts)))
}

func dayKey(ministry string, ts time.Time) checkin.SummaryKey {
	return checkin.SummaryKey{Date: checkin.DayOf(ts, la), MinistryID: ministry}
}

func TestPGStore_UpsertIncrement(t *testing.T) {
	ctx, s := setupStore(t)
	key := dayKey("m1", dayD)

	_, err := s.GetSummary(ctx, key)
	require.ErrorIs(t, err, checkinstore.ErrNotFound)

	require.NoError(t, s.UpsertIncrement(ctx, key, checkin.Counts{"in-person": 10, "online": 4}))
	require.NoError(t, s.UpsertIncrement(ctx, key, checkin.Counts{"event": 3}))
	require.NoError(t, s.UpsertIncrement(ctx, key, checkin.Counts{"online": 1, "it's \"quoted\"": 2}))

	sum, err := s.GetSummary(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, checkin.Counts{"in-person": 10, "online": 5, "event": 3, "it's \"quoted\"": 2}, sum.Counts)
	assert.True(t, sum.Date.Equal(key.Date))
	assert.Equal(t, "m1", sum.MinistryID)
	assert.NotEmpty(t, sum.ID)
}

func TestPGStore_UpsertIncrement_Concurrent(t *testing.T) {
	ctx, s := setupStore(t)
	key := dayKey("m1", dayD)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			category := "online"
			if i%2 == 0 {
				category = "in-person"
			}
			assert.NoError(t, s.UpsertIncrement(ctx, key, checkin.Counts{category: 1}))
		}(i)
	}
	wg.Wait()

	sum, err := s.GetSummary(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, checkin.Counts{"online": 10, "in-person": 10}, sum.Counts)
}

func TestPGStore_MarkProcessed(t *testing.T) {
	ctx, s := setupStore(t)
	insert(t, s, "e1", "m1", "online", dayD)
	insert(t, s, "e2", "m1", "online", dayD.Add(time.Minute))
	insert(t, s, "e3", "m1", "online", dayD.Add(2*time.Minute))

	n, err := s.MarkProcessed(ctx, []string{"e1", "e2"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	// Already-processed rows are not flipped again.
	n, err = s.MarkProcessed(ctx, []string{"e2", "e3", "missing"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = s.MarkProcessed(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	pending, err := s.FindUnprocessed(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestPGStore_FindUnprocessed_OrderAndLimit(t *testing.T) {
	ctx, s := setupStore(t)
	insert(t, s, "b", "m1", "online", dayD)
	insert(t, s, "a", "m1", "online", dayD)
	insert(t, s, "c", "m1", "online", dayD.Add(-time.Hour))

	events, err := s.FindUnprocessed(ctx, 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "c", events[0].ID)
	assert.Equal(t, "a", events[1].ID)
	assert.False(t, events[0].Processed)
	assert.True(t, events[0].Timestamp.Equal(dayD.Add(-time.Hour)))
}

func TestPGStore_DeleteProcessedBefore(t *testing.T) {
	ctx, s := setupStore(t)
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	cutoff := now.Add(-rollup.DefaultRetention)

	insert(t, s, "old-processed", "m1", "online", now.Add(-61*24*time.Hour))
	insert(t, s, "recent-processed", "m1", "online", now.Add(-59*24*time.Hour))
	insert(t, s, "old-unprocessed", "m1", "online", now.Add(-90*24*time.Hour))
	insert(t, s, "at-cutoff", "m1", "online", cutoff)

	_, err := s.MarkProcessed(ctx, []string{"old-processed", "recent-processed", "at-cutoff"})
	require.NoError(t, err)

	n, err := s.DeleteProcessedBefore(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	pgutil.AssertRowCount(t, s.db, "checkin_events", 3)
	pending, err := s.FindUnprocessed(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "old-unprocessed", pending[0].ID)
}

func TestPGStore_RunInTx_Rollback(t *testing.T) {
	ctx, s := setupStore(t)
	insert(t, s, "e1", "m1", "online", dayD)
	boom := errors.New("boom")

	err := s.RunInTx(ctx, func(ctx context.Context, events rollup.EventStore, summaries rollup.SummaryStore) error {
		n, err := events.MarkProcessed(ctx, []string{"e1"})
		require.NoError(t, err)
		require.Equal(t, int64(1), n)
		require.NoError(t, summaries.UpsertIncrement(ctx, dayKey("m1", dayD), checkin.Counts{"online": 1}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	pending, err := s.FindUnprocessed(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
	_, err = s.GetSummary(ctx, dayKey("m1", dayD))
	assert.ErrorIs(t, err, checkinstore.ErrNotFound)
}

func TestPGStore_ListSummaries(t *testing.T) {
	ctx, s := setupStore(t)
	for i := 0; i < 5; i++ {
		ts := dayD.AddDate(0, 0, i)
		require.NoError(t, s.UpsertIncrement(ctx, dayKey("m1", ts), checkin.Counts{"online": int64(i + 1)}))
		require.NoError(t, s.UpsertIncrement(ctx, dayKey("m2", ts), checkin.Counts{"online": 100}))
	}

	sums, err := s.ListSummaries(ctx, checkinstore.SummaryFilter{
		MinistryID: "m1",
		From:       checkin.DayOf(dayD.AddDate(0, 0, 1), la),
		To:         checkin.DayOf(dayD.AddDate(0, 0, 3), la),
	})
	require.NoError(t, err)
	require.Len(t, sums, 3)
	for i, sum := range sums {
		assert.Equal(t, "m1", sum.MinistryID)
		assert.Equal(t, int64(i+2), sum.Counts["online"])
	}
	assert.True(t, sums[0].Date.Before(sums[1].Date))
}

func TestPGStore_RollupCycle(t *testing.T) {
	ctx, s := setupStore(t)
	now := time.Date(2025, 3, 10, 18, 0, 0, 0, time.UTC)
	engine := rollup.NewEngine(s, zap.NewNop(),
		rollup.WithLocation(la),
		rollup.WithBatchSize(4),
		rollup.WithClock(func() time.Time { return now }),
	)

	for i := 0; i < 3; i++ {
		insert(t, s, fmt.Sprintf("a-%d", i), "A", "online", dayD.Add(time.Duration(i)*time.Minute))
	}
	for i := 0; i < 6; i++ {
		insert(t, s, fmt.Sprintf("b-%d", i), "B", "in-person", dayD.Add(time.Duration(i)*time.Minute))
	}

	result, err := engine.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 9, result.EventsProcessed)

	insert(t, s, "a-3", "A", "online", dayD.Add(time.Hour))
	insert(t, s, "a-4", "A", "event", dayD.Add(time.Hour))
	_, err = engine.RunCycle(ctx)
	require.NoError(t, err)

	sumA, err := s.GetSummary(ctx, dayKey("A", dayD))
	require.NoError(t, err)
	assert.Equal(t, checkin.Counts{"online": 4, "event": 1}, sumA.Counts)

	sumB, err := s.GetSummary(ctx, dayKey("B", dayD))
	require.NoError(t, err)
	assert.Equal(t, checkin.Counts{"in-person": 6}, sumB.Counts)

	before, err := s.ListSummaries(ctx, checkinstore.SummaryFilter{})
	require.NoError(t, err)
	_, err = engine.RunCycle(ctx)
	require.NoError(t, err)
	after, err := s.ListSummaries(ctx, checkinstore.SummaryFilter{})
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestPGStore_ListEvents(t *testing.T) {
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
