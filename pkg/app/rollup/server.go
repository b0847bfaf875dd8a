// Package rollup implements app.Runner for the check-in rollup process.
package rollup

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ministryhub/checkin-rollup/pkg/app"
	apphttp "github.com/ministryhub/checkin-rollup/pkg/app/http"
	"github.com/ministryhub/checkin-rollup/pkg/checkin/service"
	"github.com/ministryhub/checkin-rollup/pkg/config"
	"github.com/ministryhub/checkin-rollup/pkg/rollup"
)

// Server holds configuration for the rollup process.
type Server struct {
	cfg *config.Config
}

var _ app.Runner = (*Server)(nil)

// NewServer initializes a new rollup Server.
func NewServer(cfg *config.Config) *Server {
	return &Server{cfg: cfg}
}

// Run connects the storage backend, starts the daily rollup schedule and
// serves the check-in API. It blocks until an OS shutdown signal is received
// or the HTTP server fails.
func (s *Server) Run() error {
	if s.cfg == nil {
		return fmt.Errorf("nil config")
	}
	cfg := s.cfg

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("setup logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	loc, err := cfg.Rollup.Location()
	if err != nil {
		return err
	}
	schedule, err := rollup.ParseDailySchedule(cfg.Rollup.RunAt, cfg.Rollup.Timezone)
	if err != nil {
		return err
	}

	logger.Info("Starting check-in rollup server",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.String("storage", cfg.Storage.Driver),
		zap.Stringer("schedule", schedule),
	)

	store, err := openStore(ctx, &cfg.Storage, logger)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	var redisClient *redis.Client
	if cfg.Rollup.Lock == config.DriverRedis {
		redisClient, err = newRedisClient(ctx, &cfg.Redis)
		if err != nil {
			return err
		}
		defer func() { _ = redisClient.Close() }()
		logger.Info("Connected to redis", zap.String("addr", cfg.Redis.Addr))
	}

	engine := rollup.NewEngine(store, logger,
		rollup.WithBatchSize(cfg.Rollup.BatchSize),
		rollup.WithRetention(cfg.Rollup.Retention),
		rollup.WithLocation(loc),
	)

	scheduler := rollup.NewScheduler(engine, newLocker(&cfg.Rollup, redisClient), rollup.SchedulerConfig{
		Schedule:     schedule,
		CycleTimeout: cfg.Rollup.CycleTimeout,
		LockKey:      cfg.Rollup.LockKey,
	}, logger)

	stopSchedule, err := s.startSchedule(ctx, scheduler, logger)
	if err != nil {
		return err
	}
	// Called explicitly after ServeAndWait for deterministic shutdown order.
	defer stopSchedule()

	checkins := service.NewLog(service.NewService(store, loc), logger)

	router := newRouter(routerDeps{
		store:     store,
		scheduler: scheduler,
		service:   checkins,
		loc:       loc,
		metrics:   cfg.Monitoring.Enabled,
		logger:    logger,
	})

	if cfg.Shutdown.Timeout > 0 {
		cfg.Server.ShutdownTimeout = cfg.Shutdown.Timeout
	}
	err = apphttp.ServeAndWait(ctx, router, logger, &cfg.Server)

	stopSchedule()

	return err
}

// startSchedule starts the configured scheduler driver and returns its stopper.
func (s *Server) startSchedule(ctx context.Context, scheduler *rollup.Scheduler, logger *zap.Logger) (func(), error) {
	cfg := s.cfg
	if !cfg.Rollup.Enabled {
		logger.Info("Rollup schedule disabled, cycles run only on demand")
		return func() {}, nil
	}

	if cfg.Rollup.Scheduler != config.DriverAsynq {
		scheduler.Start(ctx)
		return scheduler.Stop, nil
	}

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	asynqScheduler, err := rollup.NewAsynqScheduler(redisOpt, scheduler.Schedule(), logger)
	if err != nil {
		return nil, err
	}
	if err := asynqScheduler.Start(); err != nil {
		return nil, fmt.Errorf("start asynq scheduler: %w", err)
	}

	worker, mux := rollup.NewAsynqServer(redisOpt, scheduler, logger)
	if err := worker.Start(mux); err != nil {
		asynqScheduler.Shutdown()
		return nil, fmt.Errorf("start asynq worker: %w", err)
	}

	logger.Info("Started asynq rollup scheduler", zap.String("queue", rollup.QueueRollup))

	stopped := false
	return func() {
		if stopped {
			return
		}
		stopped = true
		asynqScheduler.Shutdown()
		worker.Shutdown()
	}, nil
}
