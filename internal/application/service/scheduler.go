package service

import (
	"context"
	"time"

	"github.com/sangkips/bursar-api/internal/domain/enum"
	"go.uber.org/zap"
)

// Scheduler runs the periodic jobs of the finance core: the reconciliation
// sweep, the nightly summary rebuild and idempotency key cleanup.
type Scheduler struct {
	recon     *ReconciliationService
	summaries *SummaryService
	core      *Core

	lastRebuild time.Time
}

// NewScheduler creates a new scheduler
func NewScheduler(core *Core, recon *ReconciliationService, summaries *SummaryService) *Scheduler {
	return &Scheduler{core: core, recon: recon, summaries: summaries}
}

// Run blocks until ctx is done, running a tick every sweep interval.
func (s *Scheduler) Run(ctx context.Context) {
	interval := s.core.Billing.SweepInterval
	if interval <= 0 {
		interval = time.Hour
	}
	s.core.Log.Info("scheduler started", zap.Duration("sweep_interval", interval), zap.Int("summary_hour", s.core.Billing.SummaryHour))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			s.core.Log.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs whatever is due now. Job failures are logged; the next tick retries.
func (s *Scheduler) Tick(ctx context.Context) {
	if _, err := s.recon.Sweep(ctx); err != nil {
		s.core.Log.Error("reconciliation sweep failed", zap.Error(err))
	}

	now := s.core.Clock.Now().In(s.core.loc)
	today := s.core.today()
	if now.Hour() >= s.core.Billing.SummaryHour && !s.lastRebuild.Equal(today) {
		yesterday := today.AddDate(0, 0, -1)
		for _, periodType := range []enum.SummaryPeriod{enum.SummaryDaily, enum.SummaryMonthly} {
			if _, err := s.summaries.RebuildAll(ctx, &SummaryRange{PeriodType: periodType, From: yesterday, To: yesterday}); err != nil {
				s.core.Log.Error("nightly summary rebuild failed", zap.String("period_type", string(periodType)), zap.Error(err))
			}
		}
		s.lastRebuild = today
	}

	removed, err := s.core.Repos.Idempotency.DeleteExpired(ctx, s.core.Clock.Now())
	if err != nil {
		s.core.Log.Warn("idempotency key cleanup failed", zap.Error(err))
	} else if removed > 0 {
		s.core.Log.Debug("expired idempotency keys removed", zap.Int64("count", removed))
	}
}
