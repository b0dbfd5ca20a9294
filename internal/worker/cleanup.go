package worker

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ResetCodePurger deletes spent password reset codes.
type ResetCodePurger interface {
	Purge(ctx context.Context, cutoff time.Time) (int64, error)
}

// CleanupScheduler runs housekeeping jobs on a cron schedule.
type CleanupScheduler struct {
	cron    *cron.Cron
	resets  ResetCodePurger
	logger  *zap.Logger
	now     func() time.Time
	timeout time.Duration
}

// NewCleanupScheduler registers the reset code purge under schedule, e.g.
// "@hourly" or a five field cron expression.
func NewCleanupScheduler(schedule string, resets ResetCodePurger, logger *zap.Logger) (*CleanupScheduler, error) {
	s := &CleanupScheduler{
		cron:    cron.New(),
		resets:  resets,
		logger:  logger,
		now:     time.Now,
		timeout: time.Minute,
	}
	if _, err := s.cron.AddFunc(schedule, s.purgeResetCodes); err != nil {
		return nil, err
	}
	return s, nil
}

// Start runs the scheduler in its own goroutine.
func (s *CleanupScheduler) Start() {
	s.cron.Start()
	s.logger.Info("cleanup scheduler started", zap.Int("jobs", len(s.cron.Entries())))
}

// Stop waits for running jobs to finish or ctx to expire.
func (s *CleanupScheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.logger.Warn("cleanup scheduler stop timed out")
	}
}

func (s *CleanupScheduler) purgeResetCodes() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	purged, err := s.resets.Purge(ctx, s.now())
	if err != nil {
		s.logger.Error("purge reset codes failed", zap.Error(err))
		return
	}
	if purged > 0 {
		s.logger.Info("purged reset codes", zap.Int64("count", purged))
	}
}
