package rollup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ministryhub/checkin-rollup/internal/metrics"
	"github.com/ministryhub/checkin-rollup/pkg/checkin"
)

const (
	// DefaultBatchSize is the maximum number of unprocessed events read per page.
	DefaultBatchSize = 1000
	// DefaultRetention is how long processed events are kept before being reaped.
	DefaultRetention = 60 * 24 * time.Hour
	// DefaultTimezone is the zone whose calendar days bucket the check-ins.
	DefaultTimezone = "America/Los_Angeles"
)

// ErrPartitionConflict is returned inside a partition transaction when some of its
// events were already marked processed, so applying the counts would double count.
var ErrPartitionConflict = errors.New("partition events already processed")

// EventStore is the raw check-in event collection.
type EventStore interface {
	// FindUnprocessed returns up to limit events with processed = false,
	// oldest first.
	FindUnprocessed(ctx context.Context, limit int) ([]*checkin.Event, error)
	// MarkProcessed sets processed = true on the given ids that are still
	// unprocessed and returns how many rows it flipped.
	MarkProcessed(ctx context.Context, ids []string) (int64, error)
	// DeleteProcessedBefore deletes processed events with a timestamp older
	// than cutoff.
	DeleteProcessedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// SummaryStore is the per-(day, ministry) aggregate collection.
type SummaryStore interface {
	// UpsertIncrement creates or updates the row for key, adding every delta
	// to its category counter in a single atomic write.
	UpsertIncrement(ctx context.Context, key checkin.SummaryKey, deltas checkin.Counts) error
}

// Transactor runs fn with event and summary stores bound to one transaction.
// Nothing fn wrote is visible if it returns an error.
type Transactor interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, events EventStore, summaries SummaryStore) error) error
}

// Store is everything the engine needs from storage.
type Store interface {
	EventStore
	Transactor
}

// CycleResult describes the side effects of one rollup cycle.
type CycleResult struct {
	Pages              int           `json:"pages"`
	EventsProcessed    int           `json:"events_processed"`
	SummariesTouched   int           `json:"summaries_touched"`
	PartitionConflicts int           `json:"partition_conflicts"`
	EventsReaped       int64         `json:"events_reaped"`
	Duration           time.Duration `json:"duration"`
}

// Option configures an Engine.
type Option func(*Engine)

// WithBatchSize sets the page size used to read the unprocessed backlog.
func WithBatchSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// WithRetention sets how long processed events survive before being reaped.
func WithRetention(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.retention = d
		}
	}
}

// WithLocation sets the time zone that defines calendar days.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.loc = loc
		}
	}
}

// WithClock overrides time.Now, used by tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// Engine folds raw check-in events into daily per-ministry summaries.
// It holds no state between cycles; callers must not run cycles concurrently.
type Engine struct {
	store  Store
	logger *zap.Logger

	batchSize int
	retention time.Duration
	loc       *time.Location
	now       func() time.Time
}

// NewEngine creates a rollup engine over store.
func NewEngine(store Store, logger *zap.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:     store,
		logger:    logger,
		batchSize: DefaultBatchSize,
		retention: DefaultRetention,
		loc:       time.UTC,
		now:       time.Now,
	}
	if loc, err := time.LoadLocation(DefaultTimezone); err == nil {
		e.loc = loc
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Location returns the time zone used for day bucketing.
func (e *Engine) Location() *time.Location {
	return e.loc
}

// RunCycle runs one rollup cycle:
// 1. Reads the unprocessed backlog page by page
// 2. Groups each page by (day, ministry, category)
// 3. Per (day, ministry), marks the events processed and increments the summary in one transaction
// 4. Deletes processed events older than the retention window
//
// A store error aborts the cycle. Partitions committed before the failure stay
// committed; the remaining events are picked up by the next cycle.
func (e *Engine) RunCycle(ctx context.Context) (*CycleResult, error) {
	start := e.now()
	result := &CycleResult{}

	e.logger.Info("Starting rollup cycle", zap.Int("batch_size", e.batchSize))

	for {
		events, err := e.store.FindUnprocessed(ctx, e.batchSize)
		if err != nil {
			return result, fmt.Errorf("failed to find unprocessed events: %w", err)
		}
		metrics.BacklogPageSize.Observe(float64(len(events)))
		if len(events) == 0 {
			break
		}
		result.Pages++

		conflicts, err := e.applyPage(ctx, events, result)
		if err != nil {
			return result, err
		}

		// A conflicting page means another writer is touching the backlog;
		// leave the rest for the next cycle instead of re-reading it.
		if conflicts > 0 || len(events) < e.batchSize {
			break
		}
	}

	cutoff := e.now().Add(-e.retention)
	reaped, err := e.store.DeleteProcessedBefore(ctx, cutoff)
	if err != nil {
		return result, fmt.Errorf("failed to reap processed events: %w", err)
	}
	result.EventsReaped = reaped
	metrics.EventsReaped.Add(float64(reaped))

	result.Duration = e.now().Sub(start)

	e.logger.Info("Rollup cycle completed",
		zap.Int("pages", result.Pages),
		zap.Int("events_processed", result.EventsProcessed),
		zap.Int("summaries_touched", result.SummariesTouched),
		zap.Int("partition_conflicts", result.PartitionConflicts),
		zap.Int64("events_reaped", result.EventsReaped),
		zap.Time("reap_cutoff", cutoff),
		zap.Duration("duration", result.Duration))

	return result, nil
}

// applyPage commits every partition of one page and returns the number of
// partitions skipped on conflict.
func (e *Engine) applyPage(ctx context.Context, events []*checkin.Event, result *CycleResult) (int, error) {
	var conflicts int
	for _, p := range groupEvents(events, e.loc) {
		err := e.applyPartition(ctx, p)
		switch {
		case err == nil:
			result.EventsProcessed += len(p.EventIDs)
			result.SummariesTouched++
			metrics.EventsProcessed.Add(float64(len(p.EventIDs)))
			metrics.SummariesTouched.Inc()
		case errors.Is(err, ErrPartitionConflict):
			conflicts++
			result.PartitionConflicts++
			metrics.PartitionConflicts.Inc()
			e.logger.Warn("Skipping partition already applied by another cycle",
				zap.String("ministry_id", p.Key.MinistryID),
				zap.Time("date", p.Key.Date),
				zap.Int("events", len(p.EventIDs)))
		default:
			return conflicts, fmt.Errorf("failed to apply partition %s: %w", p.Key, err)
		}
	}
	return conflicts, nil
}

func (e *Engine) applyPartition(ctx context.Context, p *Partition) error {
	return e.store.RunInTx(ctx, func(ctx context.Context, events EventStore, summaries SummaryStore) error {
		marked, err := events.MarkProcessed(ctx, p.EventIDs)
		if err != nil {
			return fmt.Errorf("failed to mark events processed: %w", err)
		}
		if marked != int64(len(p.EventIDs)) {
			return fmt.Errorf("%w: marked %d of %d", ErrPartitionConflict, marked, len(p.EventIDs))
		}
		if err := summaries.UpsertIncrement(ctx, p.Key, p.Counts); err != nil {
			return fmt.Errorf("failed to increment summary: %w", err)
		}
		e.logger.Debug("Applied partition",
			zap.String("ministry_id", p.Key.MinistryID),
			zap.Time("date", p.Key.Date),
			zap.Any("counts", p.Counts))
		return nil
	})
}
