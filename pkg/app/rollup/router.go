package rollup

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apperrors "github.com/ministryhub/checkin-rollup/pkg/app/errors"
	apphttp "github.com/ministryhub/checkin-rollup/pkg/app/http"
	"github.com/ministryhub/checkin-rollup/pkg/checkin/service"
	"github.com/ministryhub/checkin-rollup/pkg/rollup"
)

const (
	defaultHTTPMiddlewareTimeout = 60 * time.Second
	readinessTimeout             = 2 * time.Second
)

type pinger interface {
	Ping(ctx context.Context) error
}

type routerDeps struct {
	store     pinger
	scheduler *rollup.Scheduler
	service   service.Service
	loc       *time.Location
	metrics   bool
	logger    *zap.Logger
}

type statusResponse struct {
	Schedule string    `json:"schedule"`
	NextRun  time.Time `json:"next_run"`
}

func newRouter(deps routerDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(defaultHTTPMiddlewareTimeout))

		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("OK"))
		})

		r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
			defer cancel()
			if err := deps.store.Ping(ctx); err != nil {
				deps.logger.Warn("Readiness check failed", zap.Error(err))
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("NOT_READY"))
				return
			}
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("READY"))
		})

		if deps.metrics {
			r.Handle("/metrics", promhttp.Handler())
			deps.logger.Info("Metrics enabled", zap.String("path", "/metrics"))
		}
	})

	r.Route("/api/v1", func(r chi.Router) {
		// A manual cycle is bounded by the cycle timeout, not the request timeout.
		r.Post("/rollup/run", apphttp.HandleError(handleRollupRun(deps.scheduler, deps.logger)))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(defaultHTTPMiddlewareTimeout))
			service.RegisterRoutes(r, deps.service, deps.loc, deps.logger)
			r.Get("/rollup/status", apphttp.HandleError(handleRollupStatus(deps.scheduler)))
		})
	})

	return r
}

func handleRollupStatus(s *rollup.Scheduler) apphttp.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) error {
		apphttp.WriteJSON(w, http.StatusOK, &statusResponse{
			Schedule: s.Schedule().String(),
			NextRun:  s.NextRun(),
		})
		return nil
	}
}

// handleRollupRun runs a cycle through the scheduler lease. The cycle is
// detached from the request deadline and bounded by the cycle timeout instead,
// and the server write timeout is lifted so the result can still be written.
func handleRollupRun(s *rollup.Scheduler, logger *zap.Logger) apphttp.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) error {
		if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
			logger.Debug("Write deadline not cleared", zap.Error(err))
		}
		result, err := s.RunOnce(context.WithoutCancel(r.Context()))
		if errors.Is(err, rollup.ErrCycleInProgress) {
			return apperrors.ConflictError(err, "a rollup cycle is already running")
		}
		if err != nil {
			logger.Error("Manual rollup cycle failed", zap.Error(err))
			return apperrors.GeneralError(err)
		}

		logger.Info("Manual rollup cycle completed",
			zap.Int("events_processed", result.EventsProcessed),
			zap.Int("summaries_touched", result.SummariesTouched),
			zap.Int64("events_reaped", result.EventsReaped),
		)
		apphttp.WriteJSON(w, http.StatusOK, result)
		return nil
	}
}
