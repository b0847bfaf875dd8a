// Package service records raw check-ins and serves the daily attendance read
// models built by the rollup engine.
package service

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/ministryhub/checkin-rollup/internal/metrics"
	apperrors "github.com/ministryhub/checkin-rollup/pkg/app/errors"
	"github.com/ministryhub/checkin-rollup/pkg/checkin"
	"github.com/ministryhub/checkin-rollup/pkg/checkinstore"
)

const (
	// DefaultRangeDays is the window used when a read request names no dates.
	DefaultRangeDays = 30
	// MaxRangeDays bounds a single read request, both ends inclusive.
	MaxRangeDays = 366
	// DefaultListLimit and MaxListLimit bound raw check-in listings.
	DefaultListLimit = 100
	MaxListLimit     = 1000
)

// RecordRequest is the payload of a new check-in.
type RecordRequest struct {
	MemberID   string     `json:"member_id" validate:"required,max=255"`
	MinistryID string     `json:"ministry_id" validate:"required,max=255"`
	Category   string     `json:"category" validate:"required,max=64"`
	Timestamp  *time.Time `json:"timestamp,omitempty"`
}

// CheckInQuery selects raw check-ins of a member, a ministry or both over an
// inclusive range of calendar days.
type CheckInQuery struct {
	MemberID   string
	MinistryID string
	From       time.Time
	To         time.Time
	// Limit defaults to DefaultListLimit.
	Limit int
}

// Store is the narrow data-access interface of the check-in service.
type Store interface {
	InsertEvent(ctx context.Context, ev *checkin.Event) error
	ListEvents(ctx context.Context, filter checkinstore.EventFilter) ([]*checkin.Event, error)
	ListSummaries(ctx context.Context, filter checkinstore.SummaryFilter) ([]*checkin.DailySummary, error)
}

// Service defines the check-in business logic
//
//go:generate mockery --name Service --output mocks --outpkg mocks --filename service.go --with-expecter
type Service interface {
	RecordCheckIn(ctx context.Context, req *RecordRequest) (*checkin.Event, error)
	ListCheckIns(ctx context.Context, q *CheckInQuery) ([]*checkin.Event, error)
	MemberHistory(ctx context.Context, memberID string, from, to time.Time) ([]*checkin.MemberDay, error)
	ListSummaries(ctx context.Context, ministryID string, from, to time.Time) ([]*checkin.DailySummary, error)
	Attendance(ctx context.Context, ministryID string, from, to time.Time) ([]*checkin.DayTotal, error)
}

type checkinService struct {
	store    Store
	validate *validator.Validate
	loc      *time.Location
	now      func() time.Time
}

// NewService creates a check-in service. loc is the zone whose calendar days
// bucket the summaries and must match the rollup engine's.
func NewService(store Store, loc *time.Location) Service {
	if loc == nil {
		loc = time.UTC
	}
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	return &checkinService{
		store:    store,
		validate: validate,
		loc:      loc,
		now:      time.Now,
	}
}

func (s *checkinService) RecordCheckIn(ctx context.Context, req *RecordRequest) (*checkin.Event, error) {
	if req == nil {
		return nil, apperrors.BadRequestError(nil, "request body required")
	}
	req.MemberID = strings.TrimSpace(req.MemberID)
	req.MinistryID = strings.TrimSpace(req.MinistryID)
	req.Category = strings.TrimSpace(req.Category)

	if err := s.validate.Struct(req); err != nil {
		return nil, apperrors.BadRequestError(err, validationMessage(err))
	}

	ts := s.now()
	if req.Timestamp != nil && !req.Timestamp.IsZero() {
		ts = *req.Timestamp
	}
	if ts.After(s.now().Add(5 * time.Minute)) {
		return nil, apperrors.BadRequestError(nil, "timestamp is in the future")
	}

	ev := checkin.NewEvent(uuid.NewString(), req.MemberID, req.MinistryID, req.Category, ts)
	if err := s.store.InsertEvent(ctx, ev); err != nil {
		return nil, apperrors.GeneralError(fmt.Errorf("failed to record check-in: %w", err))
	}

	metrics.CheckInsRecorded.Inc()
	return ev, nil
}

func (s *checkinService) ListSummaries(ctx context.Context, ministryID string, from, to time.Time) ([]*checkin.DailySummary, error) {
	filter, err := s.filter(ministryID, from, to)
	if err != nil {
		return nil, err
	}
	summaries, err := s.store.ListSummaries(ctx, filter)
	if err != nil {
		return nil, apperrors.GeneralError(err)
	}
	return summaries, nil
}

// Attendance returns one DayTotal per calendar day in [from, to], zero-filled
// for days without check-ins.
func (s *checkinService) Attendance(ctx context.Context, ministryID string, from, to time.Time) ([]*checkin.DayTotal, error) {
	filter, err := s.filter(ministryID, from, to)
	if err != nil {
		return nil, err
	}
	summaries, err := s.store.ListSummaries(ctx, filter)
	if err != nil {
		return nil, apperrors.GeneralError(err)
	}

	byDay := make(map[string]checkin.Counts, len(summaries))
	for _, sum := range summaries {
		day := sum.Date.In(s.loc).Format(time.DateOnly)
		counts, ok := byDay[day]
		if !ok {
			counts = checkin.Counts{}
			byDay[day] = counts
		}
		counts.Add(sum.Counts)
	}

	var totals []*checkin.DayTotal
	for day := filter.From; !day.After(filter.To); day = day.AddDate(0, 0, 1) {
		key := day.Format(time.DateOnly)
		counts := byDay[key].Clone()
		totals = append(totals, &checkin.DayTotal{
			Date:   key,
			Total:  counts.Total(),
			Counts: counts,
		})
	}
	return totals, nil
}

// ListCheckIns returns raw check-ins ordered by time. Processed events older
// than the retention window have been reaped and are not returned.
func (s *checkinService) ListCheckIns(ctx context.Context, q *CheckInQuery) ([]*checkin.Event, error) {
	if q == nil {
		return nil, apperrors.BadRequestError(nil, "query required")
	}
	memberID := strings.TrimSpace(q.MemberID)
	ministryID := strings.TrimSpace(q.MinistryID)
	if memberID == "" && ministryID == "" {
		return nil, apperrors.BadRequestError(nil, "member id or ministry id required")
	}
	limit := q.Limit
	if limit == 0 {
		limit = DefaultListLimit
	}
	if limit < 0 || limit > MaxListLimit {
		return nil, apperrors.BadRequestError(nil, fmt.Sprintf("limit must be between 1 and %d", MaxListLimit))
	}
	from, to, err := s.dayRange(q.From, q.To)
	if err != nil {
		return nil, err
	}

	events, err := s.store.ListEvents(ctx, checkinstore.EventFilter{
		MemberID:   memberID,
		MinistryID: ministryID,
		From:       from,
		To:         to.AddDate(0, 0, 1),
		Limit:      limit,
	})
	if err != nil {
		return nil, apperrors.GeneralError(fmt.Errorf("failed to list check-ins: %w", err))
	}
	return events, nil
}

// MemberHistory counts a member's raw check-ins per calendar day and ministry.
// Only days with at least one check-in are returned, oldest first.
func (s *checkinService) MemberHistory(ctx context.Context, memberID string, from, to time.Time) ([]*checkin.MemberDay, error) {
	memberID = strings.TrimSpace(memberID)
	if memberID == "" {
		return nil, apperrors.BadRequestError(nil, "member id required")
	}
	from, to, err := s.dayRange(from, to)
	if err != nil {
		return nil, err
	}

	events, err := s.store.ListEvents(ctx, checkinstore.EventFilter{
		MemberID: memberID,
		From:     from,
		To:       to.AddDate(0, 0, 1),
	})
	if err != nil {
		return nil, apperrors.GeneralError(fmt.Errorf("failed to read member history: %w", err))
	}

	var days []*checkin.MemberDay
	perDay := map[string]map[string]int64{}
	for _, ev := range events {
		date := ev.Timestamp.In(s.loc).Format(time.DateOnly)
		ministries, ok := perDay[date]
		if !ok {
			ministries = map[string]int64{}
			perDay[date] = ministries
			days = append(days, &checkin.MemberDay{Date: date})
		}
		ministries[ev.MinistryID]++
	}
	for _, day := range days {
		ministries := perDay[day.Date]
		for _, ministryID := range slices.Sorted(maps.Keys(ministries)) {
			n := ministries[ministryID]
			day.Total += n
			day.Ministries = append(day.Ministries, checkin.MinistryCount{MinistryID: ministryID, Count: n})
		}
	}
	return days, nil
}

// filter resolves the summary filter of one ministry.
func (s *checkinService) filter(ministryID string, from, to time.Time) (checkinstore.SummaryFilter, error) {
	ministryID = strings.TrimSpace(ministryID)
	if ministryID == "" {
		return checkinstore.SummaryFilter{}, apperrors.BadRequestError(nil, "ministry id required")
	}
	from, to, err := s.dayRange(from, to)
	if err != nil {
		return checkinstore.SummaryFilter{}, err
	}
	return checkinstore.SummaryFilter{MinistryID: ministryID, From: from, To: to}, nil
}

// dayRange resolves an inclusive range of local calendar days and returns the
// midnights of its first and last day. A zero to means today and a zero from
// means DefaultRangeDays days ending at to.
func (s *checkinService) dayRange(from, to time.Time) (time.Time, time.Time, error) {
	if to.IsZero() {
		to = s.now()
	}
	to = checkin.DayOf(to, s.loc)
	if from.IsZero() {
		from = to.AddDate(0, 0, -(DefaultRangeDays - 1))
	}
	from = checkin.DayOf(from, s.loc)

	if from.After(to) {
		return time.Time{}, time.Time{}, apperrors.BadRequestError(nil, "from must not be after to")
	}
	if from.AddDate(0, 0, MaxRangeDays-1).Before(to) {
		return time.Time{}, time.Time{}, apperrors.BadRequestError(nil,
			fmt.Sprintf("date range must not exceed %d days", MaxRangeDays))
	}
	return from, to, nil
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request"
	}
	fe := verrs[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	default:
		return field + " is invalid"
	}
}
