// Package memory is an in-process check-in store. It is used for local runs and
// as the reference backend in tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ministryhub/checkin-rollup/pkg/checkin"
	"github.com/ministryhub/checkin-rollup/pkg/checkinstore"
	"github.com/ministryhub/checkin-rollup/pkg/rollup"
)

// Store keeps events and summaries in maps guarded by a single mutex.
// Transactions hold the mutex for their whole duration.
type Store struct {
	mu        sync.Mutex
	events    map[string]*checkin.Event
	summaries map[string]*checkin.DailySummary
	now       func() time.Time
}

var _ checkinstore.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		events:    make(map[string]*checkin.Event),
		summaries: make(map[string]*checkin.DailySummary),
		now:       time.Now,
	}
}

// InsertEvent stores a copy of ev.
func (s *Store) InsertEvent(_ context.Context, ev *checkin.Event) error {
	if ev == nil || ev.ID == "" {
		return fmt.Errorf("failed to insert event: missing id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[ev.ID]; ok {
		return fmt.Errorf("failed to insert event: duplicate id %s", ev.ID)
	}
	cp := *ev
	s.events[ev.ID] = &cp
	return nil
}

// FindUnprocessed returns up to limit unprocessed events ordered by (timestamp, id).
func (s *Store) FindUnprocessed(_ context.Context, limit int) ([]*checkin.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*checkin.Event
	for _, ev := range s.events {
		if !ev.Processed {
			cp := *ev
			out = append(out, &cp)
		}
	}
	sortEvents(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// MarkProcessed flips processed on the given ids that are still unprocessed.
func (s *Store) MarkProcessed(ctx context.Context, ids []string) (int64, error) {
	var marked int64
	err := s.RunInTx(ctx, func(ctx context.Context, events rollup.EventStore, _ rollup.SummaryStore) error {
		var err error
		marked, err = events.MarkProcessed(ctx, ids)
		return err
	})
	return marked, err
}

// UpsertIncrement adds deltas to the summary row of key, creating it when missing.
func (s *Store) UpsertIncrement(ctx context.Context, key checkin.SummaryKey, deltas checkin.Counts) error {
	return s.RunInTx(ctx, func(ctx context.Context, _ rollup.EventStore, summaries rollup.SummaryStore) error {
		return summaries.UpsertIncrement(ctx, key, deltas)
	})
}

// DeleteProcessedBefore removes processed events older than cutoff.
func (s *Store) DeleteProcessedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, ev := range s.events {
		if ev.Processed && ev.Timestamp.Before(cutoff) {
			delete(s.events, id)
			deleted++
		}
	}
	return deleted, nil
}

// RunInTx stages every write of fn and applies them only when fn succeeds.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, events rollup.EventStore, summaries rollup.SummaryStore) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &tx{
		store:  s,
		marked: make(map[string]struct{}),
		deltas: make(map[string]*staged),
	}
	if err := fn(ctx, t, t); err != nil {
		return err
	}
	t.commit()
	return nil
}

// GetSummary returns a copy of the summary row of key.
func (s *Store) GetSummary(_ context.Context, key checkin.SummaryKey) (*checkin.DailySummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sum, ok := s.summaries[key.String()]
	if !ok {
		return nil, checkinstore.ErrNotFound
	}
	return copySummary(sum), nil
}

// ListSummaries returns summaries matching filter ordered by date.
func (s *Store) ListSummaries(_ context.Context, filter checkinstore.SummaryFilter) ([]*checkin.DailySummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*checkin.DailySummary
	for _, sum := range s.summaries {
		if filter.MinistryID != "" && sum.MinistryID != filter.MinistryID {
			continue
		}
		if !filter.From.IsZero() && sum.Date.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && sum.Date.After(filter.To) {
			continue
		}
		out = append(out, copySummary(sum))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].MinistryID < out[j].MinistryID
	})
	return out, nil
}

// ListEvents returns events matching filter ordered by (timestamp, id).
func (s *Store) ListEvents(_ context.Context, filter checkinstore.EventFilter) ([]*checkin.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*checkin.Event
	for _, ev := range s.events {
		switch {
		case filter.MemberID != "" && ev.MemberID != filter.MemberID,
			filter.MinistryID != "" && ev.MinistryID != filter.MinistryID,
			!filter.From.IsZero() && ev.Timestamp.Before(filter.From),
			!filter.To.IsZero() && !ev.Timestamp.Before(filter.To):
			continue
		}
		cp := *ev
		out = append(out, &cp)
	}
	sortEvents(out)
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Events returns a copy of every stored event, ordered by (timestamp, id).
func (s *Store) Events() []*checkin.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*checkin.Event, 0, len(s.events))
	for _, ev := range s.events {
		cp := *ev
		out = append(out, &cp)
	}
	sortEvents(out)
	return out
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error {
	return nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

func copySummary(sum *checkin.DailySummary) *checkin.DailySummary {
	cp := *sum
	cp.Counts = sum.Counts.Clone()
	return &cp
}

type staged struct {
	key    checkin.SummaryKey
	counts checkin.Counts
}

// tx is the transaction-scoped view handed to RunInTx callbacks. The store
// mutex is held by RunInTx while a tx is alive.
type tx struct {
	store  *Store
	marked map[string]struct{}
	deltas map[string]*staged
}

func (t *tx) FindUnprocessed(ctx context.Context, limit int) ([]*checkin.Event, error) {
	var out []*checkin.Event
	for _, ev := range t.store.events {
		if _, ok := t.marked[ev.ID]; ok || ev.Processed {
			continue
		}
		cp := *ev
		out = append(out, &cp)
	}
	sortEvents(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (t *tx) MarkProcessed(_ context.Context, ids []string) (int64, error) {
	var marked int64
	for _, id := range ids {
		ev, ok := t.store.events[id]
		if !ok || ev.Processed {
			continue
		}
		if _, ok := t.marked[id]; ok {
			continue
		}
		t.marked[id] = struct{}{}
		marked++
	}
	return marked, nil
}

func (t *tx) DeleteProcessedBefore(context.Context, time.Time) (int64, error) {
	return 0, fmt.Errorf("delete is not supported inside a transaction")
}

func (t *tx) UpsertIncrement(_ context.Context, key checkin.SummaryKey, deltas checkin.Counts) error {
	st, ok := t.deltas[key.String()]
	if !ok {
		st = &staged{key: key, counts: checkin.Counts{}}
		t.deltas[key.String()] = st
	}
	st.counts.Add(deltas)
	return nil
}

func (t *tx) commit() {
	now := t.store.now()
	for id := range t.marked {
		ev := t.store.events[id]
		ev.Processed = true
		processedAt := now
		ev.ProcessedAt = &processedAt
	}
	for k, st := range t.deltas {
		sum, ok := t.store.summaries[k]
		if !ok {
			sum = &checkin.DailySummary{
				ID:         uuid.NewString(),
				Date:       st.key.Date.UTC(),
				MinistryID: st.key.MinistryID,
				Counts:     checkin.Counts{},
				CreatedAt:  now,
			}
			t.store.summaries[k] = sum
		}
		sum.Counts.Add(st.counts)
		sum.UpdatedAt = now
	}
}

func sortEvents(events []*checkin.Event) {
	sort.Slice(events, func(i, j int) bool {
		if !events[i].Timestamp.Equal(events[j].Timestamp) {
			return events[i].Timestamp.Before(events[j].Timestamp)
		}
		return events[i].ID < events[j].ID
	})
}
