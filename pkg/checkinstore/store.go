// Package checkinstore defines the persistence contract shared by the check-in
// storage backends (memory, pg, mongo).
package checkinstore

import (
	"context"
	"errors"
	"time"

	"github.com/ministryhub/checkin-rollup/pkg/checkin"
	"github.com/ministryhub/checkin-rollup/pkg/rollup"
)

// ErrNotFound is returned when a summary lookup finds no matching row.
var ErrNotFound = errors.New("not found")

// SummaryFilter selects daily summaries of one ministry in an inclusive date range.
// Zero From or To leaves that side open.
type SummaryFilter struct {
	MinistryID string
	From       time.Time
	To         time.Time
}

// EventFilter selects raw check-in events. From is inclusive and To exclusive;
// a zero bound leaves that side open. Limit 0 means no limit.
type EventFilter struct {
	MemberID   string
	MinistryID string
	From       time.Time
	To         time.Time
	Limit      int
}

// EventReader lists raw check-in events ordered by (timestamp, id). Only
// events still inside the retention window are returned.
type EventReader interface {
	ListEvents(ctx context.Context, filter EventFilter) ([]*checkin.Event, error)
}

// EventWriter appends raw check-in events.
type EventWriter interface {
	InsertEvent(ctx context.Context, ev *checkin.Event) error
}

// SummaryReader reads daily summaries for dashboards.
type SummaryReader interface {
	GetSummary(ctx context.Context, key checkin.SummaryKey) (*checkin.DailySummary, error)
	ListSummaries(ctx context.Context, filter SummaryFilter) ([]*checkin.DailySummary, error)
}

// Store is implemented by every backend.
type Store interface {
	rollup.Store
	EventWriter
	EventReader
	SummaryReader
	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error
	Close() error
}
