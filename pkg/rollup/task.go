package rollup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const (
	// TypeRollupCycle is the asynq task type of a scheduled rollup cycle.
	TypeRollupCycle = "checkin:rollup"
	// QueueRollup is the dedicated asynq queue for rollup tasks.
	QueueRollup = "rollup"
)

// RollupCyclePayload is the payload of a TypeRollupCycle task.
type RollupCyclePayload struct {
	Trigger string `json:"trigger"`
}

// NewRollupCycleTask builds the task enqueued by the asynq scheduler.
func NewRollupCycleTask() (*asynq.Task, error) {
	payload, err := json.Marshal(RollupCyclePayload{Trigger: "schedule"})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeRollupCycle, payload), nil
}

// HandleRollupCycleTask returns the asynq handler that runs one cycle through s.
// Failed cycles are not retried; the next scheduled cycle picks up the backlog.
func HandleRollupCycleTask(s *Scheduler, logger *zap.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload RollupCyclePayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("failed to decode rollup task payload: %v: %w", err, asynq.SkipRetry)
		}

		result, err := s.RunOnce(ctx)
		if errors.Is(err, ErrCycleInProgress) {
			logger.Info("Skipping rollup task, another cycle is running", zap.String("trigger", payload.Trigger))
			return nil
		}
		if err != nil {
			return fmt.Errorf("rollup cycle failed: %v: %w", err, asynq.SkipRetry)
		}

		logger.Info("Rollup task completed",
			zap.String("trigger", payload.Trigger),
			zap.Int("events_processed", result.EventsProcessed))
		return nil
	}
}

// NewAsynqScheduler registers the daily rollup task on an asynq scheduler.
func NewAsynqScheduler(redisOpt asynq.RedisConnOpt, schedule DailySchedule, logger *zap.Logger) (*asynq.Scheduler, error) {
	sch := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{
		Location: schedule.location(),
		Logger:   logger.Sugar(),
	})

	task, err := NewRollupCycleTask()
	if err != nil {
		return nil, fmt.Errorf("failed to build rollup task: %w", err)
	}
	entryID, err := sch.Register(schedule.CronSpec(), task,
		asynq.Queue(QueueRollup),
		asynq.MaxRetry(0),
		asynq.Unique(23*time.Hour),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register rollup task: %w", err)
	}

	logger.Info("Registered rollup task",
		zap.String("entry_id", entryID),
		zap.String("cron", schedule.CronSpec()),
		zap.Stringer("schedule", schedule))
	return sch, nil
}

// NewAsynqServer builds a single-worker asynq server consuming the rollup queue,
// and the mux routing TypeRollupCycle to s.
func NewAsynqServer(redisOpt asynq.RedisConnOpt, s *Scheduler, logger *zap.Logger) (*asynq.Server, *asynq.ServeMux) {
	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 1,
		Queues:      map[string]int{QueueRollup: 1},
		Logger:      logger.Sugar(),
	})

	mux := asynq.NewServeMux()
	mux.Handle(TypeRollupCycle, HandleRollupCycleTask(s, logger))
	return srv, mux
}
