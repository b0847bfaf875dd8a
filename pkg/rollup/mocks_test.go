package rollup_test

import (
	"context"
	"time"

	"github.com/ministryhub/checkin-rollup/pkg/checkin"
	"github.com/ministryhub/checkin-rollup/pkg/checkinstore/memory"
	"github.com/ministryhub/checkin-rollup/pkg/rollup"
)

// MockStore is a Func-field implementation of rollup.Store. RunInTx hands the
// mock itself to the callback.
type MockStore struct {
	FindUnprocessedFunc       func(ctx context.Context, limit int) ([]*checkin.Event, error)
	MarkProcessedFunc         func(ctx context.Context, ids []string) (int64, error)
	DeleteProcessedBeforeFunc func(ctx context.Context, cutoff time.Time) (int64, error)
	UpsertIncrementFunc       func(ctx context.Context, key checkin.SummaryKey, deltas checkin.Counts) error
}

func (m *MockStore) FindUnprocessed(ctx context.Context, limit int) ([]*checkin.Event, error) {
	if m.FindUnprocessedFunc != nil {
		return m.FindUnprocessedFunc(ctx, limit)
	}
	return nil, nil
}

func (m *MockStore) MarkProcessed(ctx context.Context, ids []string) (int64, error) {
	if m.MarkProcessedFunc != nil {
		return m.MarkProcessedFunc(ctx, ids)
	}
	return int64(len(ids)), nil
}

func (m *MockStore) DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if m.DeleteProcessedBeforeFunc != nil {
		return m.DeleteProcessedBeforeFunc(ctx, cutoff)
	}
	return 0, nil
}

func (m *MockStore) UpsertIncrement(ctx context.Context, key checkin.SummaryKey, deltas checkin.Counts) error {
	if m.UpsertIncrementFunc != nil {
		return m.UpsertIncrementFunc(ctx, key, deltas)
	}
	return nil
}

func (m *MockStore) RunInTx(ctx context.Context, fn func(ctx context.Context, events rollup.EventStore, summaries rollup.SummaryStore) error) error {
	return fn(ctx, m, m)
}

// flakyStore wraps the memory store and swaps the transaction's summary store
// for one that fails while failUpsert is set.
type flakyStore struct {
	*memory.Store
	failUpsert error
}

func (f *flakyStore) RunInTx(ctx context.Context, fn func(ctx context.Context, events rollup.EventStore, summaries rollup.SummaryStore) error) error {
	return f.Store.RunInTx(ctx, func(ctx context.Context, events rollup.EventStore, summaries rollup.SummaryStore) error {
		if f.failUpsert != nil {
			summaries = &MockStore{
				UpsertIncrementFunc: func(context.Context, checkin.SummaryKey, checkin.Counts) error {
					return f.failUpsert
				},
			}
		}
		return fn(ctx, events, summaries)
	})
}
