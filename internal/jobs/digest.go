package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"

	"commonwealth/internal/delivery/email"
	"commonwealth/internal/domain"
	"commonwealth/internal/pkg/response"
)

// DigestRunner sends one digest round for an interval.
type DigestRunner interface {
	DispatchDigest(ctx context.Context, interval domain.EmailInterval) (email.DigestReport, error)
}

type Schedule struct {
	Daily  string
	Weekly string
	// Timeout bounds a single scheduled run. Zero means one hour.
	Timeout time.Duration
}

// DigestScheduler triggers daily and weekly digests on cron schedules.
type DigestScheduler struct {
	cron    *cron.Cron
	runner  DigestRunner
	timeout time.Duration
	logger  *slog.Logger
}

func NewDigestScheduler(runner DigestRunner, schedule Schedule, logger *slog.Logger) (*DigestScheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if schedule.Timeout <= 0 {
		schedule.Timeout = time.Hour
	}
	s := &DigestScheduler{
		cron:    cron.New(cron.WithLocation(time.UTC)),
		runner:  runner,
		timeout: schedule.Timeout,
		logger:  logger,
	}

	jobs := []struct {
		spec     string
		interval domain.EmailInterval
	}{
		{schedule.Daily, domain.IntervalDaily},
		{schedule.Weekly, domain.IntervalWeekly},
	}
	for _, j := range jobs {
		interval := j.interval
		if _, err := s.cron.AddFunc(j.spec, func() { s.run(interval) }); err != nil {
			return nil, fmt.Errorf("schedule %s digest %q: %w", interval, j.spec, err)
		}
	}
	return s, nil
}

func (s *DigestScheduler) Start() {
	s.cron.Start()
	s.logger.Info("digest scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop prevents new runs and waits for a running digest to finish or ctx to end.
func (s *DigestScheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("digest scheduler stop timed out")
	}
}

func (s *DigestScheduler) run(interval domain.EmailInterval) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	if _, err := s.runner.DispatchDigest(ctx, interval); err != nil {
		s.logger.Error("scheduled digest failed", "interval", string(interval), "error", err)
		return
	}
	s.logger.Debug("scheduled digest done", "interval", string(interval), "elapsed", time.Since(start))
}

// DigestHandler exposes manual digest runs on the internal surface.
type DigestHandler struct {
	runner DigestRunner
}

func NewDigestHandler(runner DigestRunner) *DigestHandler {
	return &DigestHandler{runner: runner}
}

// Run godoc
// @Summary Run a digest now
// @Tags internal
// @Produce json
// @Param interval path string true "daily or weekly"
// @Router /internal/digests/{interval} [post]
func (h *DigestHandler) Run(c *gin.Context) {
	interval := domain.EmailInterval(c.Param("interval"))
	report, err := h.runner.DispatchDigest(c.Request.Context(), interval)
	if err != nil {
		if errors.Is(err, email.ErrUnsupportedInterval) {
			response.Error(c, http.StatusBadRequest, "INVALID_INTERVAL", err.Error())
			return
		}
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, report)
}

func RegisterInternalRoutes(r gin.IRoutes, h *DigestHandler) {
	r.POST("/digests/:interval", h.Run)
}
