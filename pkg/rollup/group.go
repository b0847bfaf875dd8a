package rollup

import (
	"sort"
	"time"

	"github.com/ministryhub/checkin-rollup/pkg/checkin"
)

// Partition is the set of events of one (day, ministry) pair, counted per category.
type Partition struct {
	Key      checkin.SummaryKey
	Counts   checkin.Counts
	EventIDs []string
}

// groupEvents partitions events by (calendar day in loc, ministry) and counts them
// per category. Partitions are returned ordered by date, then ministry.
func groupEvents(events []*checkin.Event, loc *time.Location) []*Partition {
	byKey := make(map[string]*Partition)
	for _, ev := range events {
		if ev == nil {
			continue
		}
		key := checkin.SummaryKey{
			Date:       checkin.DayOf(ev.Timestamp, loc),
			MinistryID: ev.MinistryID,
		}
		p, ok := byKey[key.String()]
		if !ok {
			p = &Partition{Key: key, Counts: checkin.Counts{}}
			byKey[key.String()] = p
		}
		p.Counts[ev.Category]++
		p.EventIDs = append(p.EventIDs, ev.ID)
	}

	partitions := make([]*Partition, 0, len(byKey))
	for _, p := range byKey {
		partitions = append(partitions, p)
	}
	sort.Slice(partitions, func(i, j int) bool {
		a, b := partitions[i].Key, partitions[j].Key
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		return a.MinistryID < b.MinistryID
	})
	return partitions
}
