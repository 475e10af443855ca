package application

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"fuel-commission/internal/auth"
	commission "fuel-commission/internal/commission/domain"
)

// SchedulerActor is the identity the scheduler acts as.
var SchedulerActor = auth.Actor{Subject: "system:scheduler", Role: auth.RoleAdmin}

// Scheduler recalculates the open period once a day. On the first day of a
// month it closes out the previous period and opens the new one.
type Scheduler struct {
	lifecycle *LifecycleService
	dailyAt   string
	logger    zerolog.Logger
}

// NewScheduler constructs a Scheduler.
func NewScheduler(lifecycle *LifecycleService, dailyAt string, logger zerolog.Logger) *Scheduler {
	return &Scheduler{lifecycle: lifecycle, dailyAt: dailyAt, logger: logger}
}

// Start begins the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) {
	if s == nil || s.lifecycle == nil {
		return
	}
	if _, _, err := parseDailyAt(s.dailyAt); err != nil {
		s.logger.Error().Err(err).Str("daily_at", s.dailyAt).Msg("commission scheduler disabled")
		return
	}
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if !s.shouldRun(now.UTC()) {
				continue
			}
			s.RunOnce(ctx, now.UTC())
		}
	}
}

func (s *Scheduler) shouldRun(now time.Time) bool {
	hour, minute, err := parseDailyAt(s.dailyAt)
	if err != nil {
		return false
	}
	return now.Hour() == hour && now.Minute() == minute
}

// RunOnce performs the daily pass for now.
func (s *Scheduler) RunOnce(ctx context.Context, now time.Time) {
	current := commission.PeriodOf(now)
	if now.Day() == 1 {
		s.calculate(ctx, current.Previous())
		report, err := s.lifecycle.OpenPeriod(ctx, SchedulerActor, current, nil)
		if err != nil {
			s.logger.Error().Err(err).Str("period", current.String()).Msg("open period failed")
			return
		}
		s.logger.Info().Str("period", current.String()).Int("opened", report.Succeeded).Int("failed", report.Failed).Msg("period opened")
		return
	}
	s.calculate(ctx, current)
}

func (s *Scheduler) calculate(ctx context.Context, period commission.Period) {
	report, err := s.lifecycle.Calculate(ctx, SchedulerActor, CalculateRequest{Period: period})
	if err != nil {
		s.logger.Error().Err(err).Str("period", period.String()).Msg("scheduled calculation failed")
		return
	}
	for _, res := range report.Results {
		if res.Err != nil {
			s.logger.Debug().Str("station_id", res.StationID).Str("code", res.ErrorCode).Msg("scheduled calculation skipped station")
		}
	}
}

func parseDailyAt(value string) (int, int, error) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0, 0, err
	}
	return t.Hour(), t.Minute(), nil
}
