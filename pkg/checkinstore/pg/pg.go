// Package pg is the PostgreSQL check-in store built on bun.
package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/ministryhub/checkin-rollup/pkg/checkin"
	"github.com/ministryhub/checkin-rollup/pkg/checkinstore"
	"github.com/ministryhub/checkin-rollup/pkg/rollup"
)

// upsertIncrementQuery adds every key of the incoming counts to the stored
// counts in a single statement. The row lock taken by ON CONFLICT makes the
// key-wise sum safe against concurrent increments.
const upsertIncrementQuery = `
	INSERT INTO daily_summaries (id, date, ministry_id, counts, created_at, updated_at)
	VALUES (?, ?, ?, ?::jsonb, NOW(), NOW())
	ON CONFLICT (date, ministry_id) DO UPDATE
	SET counts = (
		SELECT COALESCE(jsonb_object_agg(
			k,
			COALESCE((daily_summaries.counts->>k)::bigint, 0) + COALESCE((EXCLUDED.counts->>k)::bigint, 0)
		), '{}'::jsonb)
		FROM (
			SELECT jsonb_object_keys(daily_summaries.counts) AS k
			UNION
			SELECT jsonb_object_keys(EXCLUDED.counts)
		) AS keys
	), updated_at = NOW()
`

// queries runs every statement against db, which is either the pool or a tx.
type queries struct {
	db bun.IDB
}

// Store is the PostgreSQL implementation of checkinstore.Store.
type Store struct {
	queries
	db *bun.DB
}

var _ checkinstore.Store = (*Store)(nil)

// NewStore creates a new postgres implementation of the check-in store
func NewStore(db *bun.DB) *Store {
	return &Store{queries: queries{db: db}, db: db}
}

// RunInTx runs fn inside a database transaction.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, events rollup.EventStore, summaries rollup.SummaryStore) error) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		q := queries{db: tx}
		return fn(ctx, q, q)
	})
}

// Ping checks the connection pool.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

func (q queries) InsertEvent(ctx context.Context, ev *checkin.Event) error {
	_, err := q.db.NewInsert().
		Model(toEventDao(ev)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to insert check-in event: %w", err)
	}
	return nil
}

func (q queries) FindUnprocessed(ctx context.Context, limit int) ([]*checkin.Event, error) {
	var daos []EventDao
	query := q.db.NewSelect().
		Model(&daos).
		Where("processed = FALSE").
		Order("checked_in_at ASC", "id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to find unprocessed events: %w", err)
	}

	events := make([]*checkin.Event, len(daos))
	for i := range daos {
		events[i] = toEvent(&daos[i])
	}
	return events, nil
}

func (q queries) ListEvents(ctx context.Context, filter checkinstore.EventFilter) ([]*checkin.Event, error) {
	var daos []EventDao
	query := q.db.NewSelect().Model(&daos)
	if filter.MemberID != "" {
		query = query.Where("member_id = ?", filter.MemberID)
	}
	if filter.MinistryID != "" {
		query = query.Where("ministry_id = ?", filter.MinistryID)
	}
	if !filter.From.IsZero() {
		query = query.Where("checked_in_at >= ?", filter.From)
	}
	if !filter.To.IsZero() {
		query = query.Where("checked_in_at < ?", filter.To)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if err := query.Order("checked_in_at ASC", "id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	events := make([]*checkin.Event, len(daos))
	for i := range daos {
		events[i] = toEvent(&daos[i])
	}
	return events, nil
}

func (q queries) MarkProcessed(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := q.db.NewUpdate().
		Model((*EventDao)(nil)).
		Set("processed = TRUE").
		Set("processed_at = NOW()").
		Where("id IN (?)", bun.In(ids)).
		Where("processed = FALSE").
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to mark events processed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n, nil
}

func (q queries) DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := q.db.NewDelete().
		Model((*EventDao)(nil)).
		Where("processed = TRUE").
		Where("checked_in_at < ?", cutoff).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to delete processed events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n, nil
}

func (q queries) UpsertIncrement(ctx context.Context, key checkin.SummaryKey, deltas checkin.Counts) error {
	if len(deltas) == 0 {
		return nil
	}
	payload, err := json.Marshal(deltas)
	if err != nil {
		return fmt.Errorf("failed to encode counts: %w", err)
	}
	_, err = q.db.NewRaw(upsertIncrementQuery,
		uuid.NewString(), key.Date, key.MinistryID, string(payload),
	).Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to upsert summary %s: %w", key, err)
	}
	return nil
}

func (q queries) GetSummary(ctx context.Context, key checkin.SummaryKey) (*checkin.DailySummary, error) {
	dao := new(SummaryDao)
	err := q.db.NewSelect().
		Model(dao).
		Where("date = ?", key.Date).
		Where("ministry_id = ?", key.MinistryID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, checkinstore.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get summary: %w", err)
	}
	return toSummary(dao), nil
}

func (q queries) ListSummaries(ctx context.Context, filter checkinstore.SummaryFilter) ([]*checkin.DailySummary, error) {
	var daos []SummaryDao
	query := q.db.NewSelect().Model(&daos)
	if filter.MinistryID != "" {
		query = query.Where("ministry_id = ?", filter.MinistryID)
	}
	if !filter.From.IsZero() {
		query = query.Where("date >= ?", filter.From)
	}
	if !filter.To.IsZero() {
		query = query.Where("date <= ?", filter.To)
	}
	if err := query.Order("date ASC", "ministry_id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list summaries: %w", err)
	}

	summaries := make([]*checkin.DailySummary, len(daos))
	for i := range daos {
		summaries[i] = toSummary(&daos[i])
	}
	return summaries, nil
}
