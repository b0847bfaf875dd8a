package pg

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/ministryhub/checkin-rollup/pkg/checkin"
)

// EventDao maps to the 'checkin_events' table.
type EventDao struct {
	bun.BaseModel `bun:"table:checkin_events,alias:ce"`
	ID            string     `bun:"id,pk,type:varchar(64)"`
	MemberID      string     `bun:"member_id,notnull,type:varchar(255)"`
	MinistryID    string     `bun:"ministry_id,notnull,type:varchar(255)"`
	Category      string     `bun:"category,notnull,type:varchar(64)"`
	CheckedInAt   time.Time  `bun:"checked_in_at,notnull,type:timestamptz"`
	Processed     bool       `bun:"processed,notnull,default:false"`
	ProcessedAt   *time.Time `bun:"processed_at,type:timestamptz"`
	CreatedAt     time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

// SummaryDao maps to the 'daily_summaries' table. Date holds the instant of
// local midnight of the summarized day.
type SummaryDao struct {
	bun.BaseModel `bun:"table:daily_summaries,alias:ds"`
	ID            string           `bun:"id,pk,type:uuid"`
	Date          time.Time        `bun:"date,notnull,type:timestamptz"`
	MinistryID    string           `bun:"ministry_id,notnull,type:varchar(255)"`
	Counts        map[string]int64 `bun:"counts,notnull,type:jsonb"`
	CreatedAt     time.Time        `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt     time.Time        `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func toEventDao(ev *checkin.Event) *EventDao {
	return &EventDao{
		ID:          ev.ID,
		MemberID:    ev.MemberID,
		MinistryID:  ev.MinistryID,
		Category:    ev.Category,
		CheckedInAt: ev.Timestamp,
		Processed:   ev.Processed,
		ProcessedAt: ev.ProcessedAt,
	}
}

func toEvent(dao *EventDao) *checkin.Event {
	return &checkin.Event{
		ID:          dao.ID,
		MemberID:    dao.MemberID,
		MinistryID:  dao.MinistryID,
		Category:    dao.Category,
		Timestamp:   dao.CheckedInAt,
		Processed:   dao.Processed,
		ProcessedAt: dao.ProcessedAt,
	}
}

func toSummary(dao *SummaryDao) *checkin.DailySummary {
	return &checkin.DailySummary{
		ID:         dao.ID,
		Date:       dao.Date.UTC(),
		MinistryID: dao.MinistryID,
		Counts:     checkin.Counts(dao.Counts).Clone(),
		CreatedAt:  dao.CreatedAt,
		UpdatedAt:  dao.UpdatedAt,
	}
}
