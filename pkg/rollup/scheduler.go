package rollup

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/ministryhub/checkin-rollup/internal/metrics"
	"github.com/ministryhub/checkin-rollup/pkg/lock"
)

const (
	// DefaultLockKey names the lease that serializes rollup cycles.
	DefaultLockKey = "checkin-rollup:cycle"
	// DefaultCycleTimeout bounds a single cycle.
	DefaultCycleTimeout = 30 * time.Minute
)

// ErrCycleInProgress is returned by RunOnce when another cycle holds the lease.
var ErrCycleInProgress = errors.New("rollup cycle already in progress")

// DailySchedule fires once per day at Hour:Minute wall-clock time in Location.
type DailySchedule struct {
	Hour     int
	Minute   int
	Location *time.Location
}

// ParseDailySchedule parses runAt as "HH:MM" in the IANA zone tz.
func ParseDailySchedule(runAt, tz string) (DailySchedule, error) {
	hh, mm, ok := strings.Cut(runAt, ":")
	if !ok {
		return DailySchedule{}, fmt.Errorf("invalid run time %q: expected HH:MM", runAt)
	}
	hour, err := strconv.Atoi(hh)
	if err != nil || hour < 0 || hour > 23 {
		return DailySchedule{}, fmt.Errorf("invalid run time %q: hour must be 00-23", runAt)
	}
	minute, err := strconv.Atoi(mm)
	if err != nil || minute < 0 || minute > 59 {
		return DailySchedule{}, fmt.Errorf("invalid run time %q: minute must be 00-59", runAt)
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return DailySchedule{}, fmt.Errorf("invalid timezone %q: %w", tz, err)
	}
	return DailySchedule{Hour: hour, Minute: minute, Location: loc}, nil
}

func (d DailySchedule) location() *time.Location {
	if d.Location == nil {
		return time.UTC
	}
	return d.Location
}

// Next returns the first occurrence strictly after after. On a day where
// Hour:Minute is skipped by a DST transition the run moves forward by the
// length of the gap (02:30 becomes 03:30 on a one-hour spring-forward day).
func (d DailySchedule) Next(after time.Time) time.Time {
	loc := d.location()
	local := after.In(loc)
	next := d.on(local.Year(), local.Month(), local.Day(), loc)
	if !next.After(after) {
		next = d.on(local.Year(), local.Month(), local.Day()+1, loc)
	}
	return next
}

// on returns Hour:Minute of the given calendar day in loc.
func (d DailySchedule) on(year int, month time.Month, day int, loc *time.Location) time.Time {
	t := time.Date(year, month, day, d.Hour, d.Minute, 0, 0, loc)
	if t.Hour() == d.Hour && t.Minute() == d.Minute {
		return t
	}
	// The wall time does not exist. time.Date resolved it with an offset of
	// its choosing; reading it with the offset in force before the gap lands
	// the same distance past the transition.
	_, before := t.Add(-12 * time.Hour).Zone()
	wall := time.Date(year, month, day, d.Hour, d.Minute, 0, 0, time.UTC)
	return wall.Add(-time.Duration(before) * time.Second).In(loc)
}

// CronSpec renders the schedule as a five-field cron expression.
func (d DailySchedule) CronSpec() string {
	return fmt.Sprintf("%d %d * * *", d.Minute, d.Hour)
}

// String renders the schedule as "HH:MM Zone".
func (d DailySchedule) String() string {
	return fmt.Sprintf("%02d:%02d %s", d.Hour, d.Minute, d.location())
}

// Cycler runs one rollup cycle. *Engine implements it.
type Cycler interface {
	RunCycle(ctx context.Context) (*CycleResult, error)
}

// SchedulerConfig configures a Scheduler.
type SchedulerConfig struct {
	Schedule     DailySchedule
	CycleTimeout time.Duration
	LockKey      string
	// LockTTL defaults to CycleTimeout plus one minute.
	LockTTL time.Duration
}

// Scheduler triggers rollup cycles on a daily schedule and guarantees at most
// one cycle runs at a time across every Scheduler sharing the same Locker.
type Scheduler struct {
	cycler Cycler
	locker lock.Locker
	cfg    SchedulerConfig
	logger *zap.Logger

	now   func() time.Time
	after func(time.Duration) <-chan time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewScheduler creates a Scheduler.
func NewScheduler(cycler Cycler, locker lock.Locker, cfg SchedulerConfig, logger *zap.Logger) *Scheduler {
	if cfg.CycleTimeout <= 0 {
		cfg.CycleTimeout = DefaultCycleTimeout
	}
	if cfg.LockKey == "" {
		cfg.LockKey = DefaultLockKey
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = cfg.CycleTimeout + time.Minute
	}
	return &Scheduler{
		cycler: cycler,
		locker: locker,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
		after:  time.After,
		stopCh: make(chan struct{}),
	}
}

// Schedule returns the configured daily schedule.
func (s *Scheduler) Schedule() DailySchedule {
	return s.cfg.Schedule
}

// NextRun returns the next scheduled cycle start.
func (s *Scheduler) NextRun() time.Time {
	return s.cfg.Schedule.Next(s.now())
}

// RunOnce runs a single cycle under the cycle lease, bounded by CycleTimeout.
// A cycle that hits the timeout is reported as failed.
func (s *Scheduler) RunOnce(ctx context.Context) (*CycleResult, error) {
	lease, err := s.locker.TryLock(ctx, s.cfg.LockKey, s.cfg.LockTTL)
	if errors.Is(err, lock.ErrNotAcquired) {
		metrics.RollupCyclesTotal.WithLabelValues("skipped").Inc()
		return nil, ErrCycleInProgress
	}
	if err != nil {
		metrics.RollupCyclesTotal.WithLabelValues("failure").Inc()
		metrics.ErrorsTotal.WithLabelValues("scheduler", "lock").Inc()
		return nil, fmt.Errorf("failed to acquire cycle lock: %w", err)
	}
	defer s.release(lease)

	cycleCtx, cancel := context.WithTimeout(ctx, s.cfg.CycleTimeout)
	defer cancel()

	timer := prometheus.NewTimer(metrics.RollupCycleDuration)
	result, err := s.cycler.RunCycle(cycleCtx)
	timer.ObserveDuration()

	if err != nil {
		metrics.RollupCyclesTotal.WithLabelValues("failure").Inc()
		if errors.Is(cycleCtx.Err(), context.DeadlineExceeded) {
			metrics.ErrorsTotal.WithLabelValues("scheduler", "timeout").Inc()
			return result, fmt.Errorf("rollup cycle timed out after %s: %w", s.cfg.CycleTimeout, err)
		}
		metrics.ErrorsTotal.WithLabelValues("scheduler", "cycle").Inc()
		return result, err
	}

	metrics.RollupCyclesTotal.WithLabelValues("success").Inc()
	metrics.LastSuccessfulCycle.SetToCurrentTime()
	return result, nil
}

func (s *Scheduler) release(lease lock.Lease) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := lease.Release(ctx); err != nil {
		s.logger.Warn("Failed to release rollup cycle lock", zap.Error(err))
	}
}

// Start runs cycles on the daily schedule in a background goroutine until ctx
// is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		s.logger.Info("Started rollup scheduler", zap.Stringer("schedule", s.cfg.Schedule))

		for {
			next := s.cfg.Schedule.Next(s.now())
			s.logger.Info("Next rollup cycle scheduled", zap.Time("at", next))

			select {
			case <-s.after(next.Sub(s.now())):
				s.runScheduled(ctx)
			case <-s.stopCh:
				s.logger.Info("Stopping rollup scheduler")
				return
			case <-ctx.Done():
				s.logger.Info("Stopping rollup scheduler", zap.Error(ctx.Err()))
				return
			}
		}
	}()
}

func (s *Scheduler) runScheduled(ctx context.Context) {
	result, err := s.RunOnce(ctx)
	switch {
	case errors.Is(err, ErrCycleInProgress):
		s.logger.Info("Skipping scheduled rollup cycle, another cycle is running")
	case err != nil:
		s.logger.Error("Scheduled rollup cycle failed", zap.Error(err))
	default:
		s.logger.Debug("Scheduled rollup cycle finished",
			zap.Int("events_processed", result.EventsProcessed),
			zap.Int64("events_reaped", result.EventsReaped))
	}
}

// Stop stops the background loop and waits for an in-flight cycle to return.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
}
