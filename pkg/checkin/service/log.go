package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ministryhub/checkin-rollup/pkg/checkin"
)

const serviceName = "CheckInService"

// logService wraps Service with automatic logging of all method calls
type logService struct {
	svc    Service
	logger *zap.Logger
}

// NewLog creates a logging decorator for the check-in Service.
func NewLog(svc Service, logger *zap.Logger) Service {
	return &logService{
		svc:    svc,
		logger: logger,
	}
}

// RecordCheckIn wraps the service method with logging
func (ls *logService) RecordCheckIn(ctx context.Context, req *RecordRequest) (ev *checkin.Event, err error) {
	start := time.Now()

	defer func() {
		duration := time.Since(start)
		if err != nil {
			ls.logger.Warn("RecordCheckIn failed",
				zap.String("service", serviceName),
				zap.String("method", "RecordCheckIn"),
				zap.Bool("has_request", req != nil),
				zap.Duration("duration", duration),
				zap.Error(err),
			)
			return
		}
		ls.logger.Debug("RecordCheckIn completed",
			zap.String("service", serviceName),
			zap.String("method", "RecordCheckIn"),
			zap.String("event_id", ev.ID),
			zap.String("ministry_id", ev.MinistryID),
			zap.String("category", ev.Category),
			zap.Duration("duration", duration),
		)
	}()

	return ls.svc.RecordCheckIn(ctx, req)
}

// ListCheckIns wraps the service method with logging
func (ls *logService) ListCheckIns(ctx context.Context, q *CheckInQuery) (events []*checkin.Event, err error) {
	start := time.Now()

	defer func() {
		fields := []zap.Field{
			zap.String("service", serviceName),
			zap.String("method", "ListCheckIns"),
			zap.Duration("duration", time.Since(start)),
		}
		if q != nil {
			fields = append(fields, zap.String("member_id", q.MemberID), zap.String("ministry_id", q.MinistryID))
		}
		if err != nil {
			ls.logger.Warn("ListCheckIns failed", append(fields, zap.Error(err))...)
			return
		}
		ls.logger.Debug("ListCheckIns completed", append(fields, zap.Int("events", len(events)))...)
	}()

	return ls.svc.ListCheckIns(ctx, q)
}

// MemberHistory wraps the service method with logging
func (ls *logService) MemberHistory(
	ctx context.Context,
	memberID string,
	from, to time.Time,
) (days []*checkin.MemberDay, err error) {
	start := time.Now()

	defer func() {
		fields := []zap.Field{
			zap.String("service", serviceName),
			zap.String("method", "MemberHistory"),
			zap.String("member_id", memberID),
			zap.Duration("duration", time.Since(start)),
		}
		if err != nil {
			ls.logger.Warn("MemberHistory failed", append(fields, zap.Error(err))...)
			return
		}
		ls.logger.Debug("MemberHistory completed", append(fields, zap.Int("days", len(days)))...)
	}()

	return ls.svc.MemberHistory(ctx, memberID, from, to)
}

// ListSummaries wraps the service method with logging
func (ls *logService) ListSummaries(
	ctx context.Context,
	ministryID string,
	from, to time.Time,
) (summaries []*checkin.DailySummary, err error) {
	start := time.Now()

	defer func() {
		fields := []zap.Field{
			zap.String("service", serviceName),
			zap.String("method", "ListSummaries"),
			zap.String("ministry_id", ministryID),
			zap.Duration("duration", time.Since(start)),
		}
		if err != nil {
			ls.logger.Warn("ListSummaries failed", append(fields, zap.Error(err))...)
			return
		}
		ls.logger.Debug("ListSummaries completed", append(fields, zap.Int("summaries", len(summaries)))...)
	}()

	return ls.svc.ListSummaries(ctx, ministryID, from, to)
}

// Attendance wraps the service method with logging
func (ls *logService) Attendance(
	ctx context.Context,
	ministryID string,
	from, to time.Time,
) (days []*checkin.DayTotal, err error) {
	start := time.Now()

	defer func() {
		fields := []zap.Field{
			zap.String("service", serviceName),
			zap.String("method", "Attendance"),
			zap.String("ministry_id", ministryID),
			zap.Duration("duration", time.Since(start)),
		}
		if err != nil {
			ls.logger.Warn("Attendance failed", append(fields, zap.Error(err))...)
			return
		}
		ls.logger.Debug("Attendance completed", append(fields, zap.Int("days", len(days)))...)
	}()

	return ls.svc.Attendance(ctx, ministryID, from, to)
}
