package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ministryhub/checkin-rollup/pkg/checkin"
	"github.com/ministryhub/checkin-rollup/pkg/checkinstore"
	"github.com/ministryhub/checkin-rollup/pkg/rollup"
)

var base = time.Date(2025, 3, 9, 17, 0, 0, 0, time.UTC)

func seed(t *testing.T, s *Store, ids ...string) {
	t.Helper()
	for i, id := range ids {
		ev := checkin.NewEvent(id, "m", "youth", checkin.CategoryOnline, base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, s.InsertEvent(context.Background(), ev))
	}
}

func TestStore_InsertEvent_Rejects(t *testing.T) {
	s := New()
	seed(t, s, "a")

	require.Error(t, s.InsertEvent(context.Background(), checkin.NewEvent("a", "m", "youth", "online", base)))
	require.Error(t, s.InsertEvent(context.Background(), checkin.NewEvent("", "m", "youth", "online", base)))
	require.Error(t, s.InsertEvent(context.Background(), nil))
}

func TestStore_FindUnprocessed_OrderAndLimit(t *testing.T) {
	s := New()
	seed(t, s, "c", "a", "b")

	got, err := s.FindUnprocessed(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c", got[0].ID)
	assert.Equal(t, "a", got[1].ID)

	got[0].MinistryID = "mutated"
	again, err := s.FindUnprocessed(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, again, 3)
	assert.Equal(t, "youth", again[0].MinistryID)
}

func TestStore_MarkProcessed_OnlyFlipsUnprocessed(t *testing.T) {
	s := New()
	now := base.Add(48 * time.Hour)
	s.now = func() time.Time { return now }
	seed(t, s, "a", "b")

	n, err := s.MarkProcessed(context.Background(), []string{"a", "a", "missing"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = s.MarkProcessed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	for _, ev := range s.Events() {
		assert.True(t, ev.Processed)
		require.NotNil(t, ev.ProcessedAt)
		assert.True(t, ev.ProcessedAt.Equal(now))
	}
}

func TestStore_RunInTx_RollsBackOnError(t *testing.T) {
	s := New()
	seed(t, s, "a")
	key := checkin.SummaryKey{Date: base, MinistryID: "youth"}
	boom := errors.New("boom")

	err := s.RunInTx(context.Background(), func(ctx context.Context, events rollup.EventStore, summaries rollup.SummaryStore) error {
		n, err := events.MarkProcessed(ctx, []string{"a"})
		require.NoError(t, err)
		require.Equal(t, int64(1), n)

		pending, err := events.FindUnprocessed(ctx, 10)
		require.NoError(t, err)
		require.Empty(t, pending, "staged marks are visible inside the tx")

		require.NoError(t, summaries.UpsertIncrement(ctx, key, checkin.Counts{"online": 1}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	assert.False(t, s.Events()[0].Processed)
	_, err = s.GetSummary(context.Background(), key)
	assert.ErrorIs(t, err, checkinstore.ErrNotFound)
}

func TestStore_RunInTx_DeleteNotSupported(t *testing.T) {
	s := New()
	err := s.RunInTx(context.Background(), func(ctx context.Context, events rollup.EventStore, _ rollup.SummaryStore) error {
		_, err := events.DeleteProcessedBefore(ctx, base)
		return err
	})
	require.Error(t, err)
}

func TestStore_UpsertIncrement_Accumulates(t *testing.T) {
	s := New()
	key := checkin.SummaryKey{Date: base, MinistryID: "youth"}

	require.NoError(t, s.UpsertIncrement(context.Background(), key, checkin.Counts{"online": 2}))
	require.NoError(t, s.UpsertIncrement(context.Background(), key, checkin.Counts{"online": 1, "in-person": 4}))

	sum, err := s.GetSummary(context.Background(), key)
	require.NoError(t, err)
	assert.NotEmpty(t, sum.ID)
	assert.Equal(t, checkin.Counts{"online": 3, "in-person": 4}, sum.Counts)

	sum.Counts["online"] = 100
	again, err := s.GetSummary(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, int64(3), again.Counts["online"])
}

func TestStore_DeleteProcessedBefore(t *testing.T) {
	s := New()
	seed(t, s, "old", "cutoff", "pending")
	_, err := s.MarkProcessed(context.Background(), []string{"old", "cutoff"})
	require.NoError(t, err)

	// "cutoff" sits exactly on the boundary and is kept.
	n, err := s.DeleteProcessedBefore(context.Background(), base.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	var ids []string
	for _, ev := range s.Events() {
		ids = append(ids, ev.ID)
	}
	assert.ElementsMatch(t, []string{"cutoff", "pending"}, ids)
}

func TestStore_ListSummaries_Filter(t *testing.T) {
	s := New()
	day := func(d int) time.Time { return time.Date(2025, 3, d, 8, 0, 0, 0, time.UTC) }
	for d := 1; d <= 5; d++ {
		require.NoError(t, s.UpsertIncrement(context.Background(),
			checkin.SummaryKey{Date: day(d), MinistryID: "youth"}, checkin.Counts{"online": int64(d)}))
	}
	require.NoError(t, s.UpsertIncrement(context.Background(),
		checkin.SummaryKey{Date: day(3), MinistryID: "choir"}, checkin.Counts{"online": 9}))

	got, err := s.ListSummaries(context.Background(), checkinstore.SummaryFilter{
		MinistryID: "youth",
		From:       day(2),
		To:         day(4),
	})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, int64(2), got[0].Counts["online"])
	assert.Equal(t, int64(4), got[2].Counts["online"])

	all, err := s.ListSummaries(context.Background(), checkinstore.SummaryFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 6)
}

func TestStore_ListEvents(t *testing.T) {
	s := New()
	for i, id := range []string{"e3", "e1", "e2", "e4"} {
		ev := checkin.NewEvent(id, "member-1", "youth", checkin.CategoryOnline, base.Add(time.Duration(i)*time.Hour))
		require.NoError(t, s.InsertEvent(context.Background(), ev))
	}
	require.NoError(t, s.InsertEvent(context.Background(), checkin.NewEvent("x", "member-2", "youth", "online", base)))
	require.NoError(t, s.InsertEvent(context.Background(), checkin.NewEvent("y", "member-1", "choir", "online", base)))

	got, err := s.ListEvents(context.Background(), checkinstore.EventFilter{
		MemberID:   "member-1",
		MinistryID: "youth",
		From:       base,
		To:         base.Add(3 * time.Hour),
	})
	require.NoError(t, err)
	require.Len(t, got, 3, "To is exclusive")
	assert.Equal(t, []string{"e3", "e1", "e2"}, []string{got[0].ID, got[1].ID, got[2].ID})

	got[0].MemberID = "mutated"
	all, err := s.ListEvents(context.Background(), checkinstore.EventFilter{MemberID: "member-1", Limit: 2})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "e3", all[0].ID)
	assert.Equal(t, "member-1", all[0].MemberID)
	assert.Equal(t, "y", all[1].ID, "ties on timestamp order by id")
}
