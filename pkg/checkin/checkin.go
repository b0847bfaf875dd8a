// Package checkin holds the attendance domain model shared by the rollup engine,
// the storage backends and the check-in service.
package checkin

import (
	"sort"
	"time"
)

// Well-known categories used by the check-in clients. Categories are free-form,
// any other string is accepted as-is.
const (
	CategoryInPerson = "in-person"
	CategoryOnline   = "online"
	CategoryEvent    = "event"
)

// Event is a single raw check-in of a member into a ministry.
type Event struct {
	ID          string     `json:"id"`
	MemberID    string     `json:"member_id"`
	MinistryID  string     `json:"ministry_id"`
	Category    string     `json:"category"`
	Timestamp   time.Time  `json:"timestamp"`
	Processed   bool       `json:"processed"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}

// NewEvent creates an unprocessed event. A zero timestamp defaults to now.
func NewEvent(id, memberID, ministryID, category string, ts time.Time) *Event {
	if ts.IsZero() {
		ts = time.Now()
	}
	return &Event{
		ID:         id,
		MemberID:   memberID,
		MinistryID: ministryID,
		Category:   category,
		Timestamp:  ts,
	}
}

// Counts maps a category to the number of check-ins seen for it.
type Counts map[string]int64

// Add adds every counter of other into c.
func (c Counts) Add(other Counts) {
	for category, n := range other {
		c[category] += n
	}
}

// Total returns the sum over all categories.
func (c Counts) Total() int64 {
	var total int64
	for _, n := range c {
		total += n
	}
	return total
}

// Clone returns an independent copy of c. A nil map clones to an empty one.
func (c Counts) Clone() Counts {
	out := make(Counts, len(c))
	for category, n := range c {
		out[category] = n
	}
	return out
}

// Categories returns the category keys sorted.
func (c Counts) Categories() []string {
	keys := make([]string, 0, len(c))
	for category := range c {
		keys = append(keys, category)
	}
	sort.Strings(keys)
	return keys
}

// SummaryKey is the natural key of a DailySummary.
type SummaryKey struct {
	Date       time.Time
	MinistryID string
}

// String renders the key in a stable form usable as a map key.
func (k SummaryKey) String() string {
	return k.Date.UTC().Format(time.RFC3339) + "|" + k.MinistryID
}

// DailySummary aggregates check-ins of one ministry on one calendar day.
type DailySummary struct {
	ID         string    `json:"id"`
	Date       time.Time `json:"date"`
	MinistryID string    `json:"ministry_id"`
	Counts     Counts    `json:"counts"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Key returns the natural key of the summary.
func (s *DailySummary) Key() SummaryKey {
	return SummaryKey{Date: s.Date, MinistryID: s.MinistryID}
}

// DayTotal is the per-day attendance of a ministry across all categories.
type DayTotal struct {
	Date   string `json:"date"`
	Total  int64  `json:"total"`
	Counts Counts `json:"counts"`
}

// MinistryCount is the number of check-ins of a member at one ministry.
type MinistryCount struct {
	MinistryID string `json:"ministry_id"`
	Count      int64  `json:"count"`
}

// MemberDay is one calendar day of a member's check-in history, built from
// raw events.
type MemberDay struct {
	Date       string          `json:"date"`
	Total      int64           `json:"total"`
	Ministries []MinistryCount `json:"ministries"`
}

// DayOf truncates t to midnight of its calendar day in loc.
func DayOf(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}
