package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ternarybob/arbor"

	"zendesk-feedback-monitor/internal/common"
	"zendesk-feedback-monitor/internal/interfaces"
)

// RefreshJob is the work a scheduler runs on every firing.
type RefreshJob func(ctx context.Context)

type scheduler struct {
	job          RefreshJob
	interval     atomic.Int64
	refreshStart bool
	reset        chan struct{}
	trigger      chan struct{}
	running      atomic.Bool
	logger       arbor.ILogger
}

// NewScheduler creates a ticker-driven scheduler. Each firing runs job in its
// own goroutine, so a slow refresh never delays the next one.
func NewScheduler(config *common.SchedulerConfig, job RefreshJob, logger arbor.ILogger) interfaces.Scheduler {
	s := &scheduler{
		job:          job,
		refreshStart: config.RefreshOnStart,
		reset:        make(chan struct{}, 1),
		trigger:      make(chan struct{}, 1),
		logger:       logger,
	}

	minutes := config.IntervalMinutes
	if minutes <= 0 {
		minutes = 5
	}
	s.interval.Store(int64(time.Duration(minutes) * time.Minute))
	return s
}

func (s *scheduler) String() string {
	return "refresh-scheduler"
}

// Serve blocks until ctx is cancelled and waits for in-flight refreshes.
func (s *scheduler) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.Interval())
	defer ticker.Stop()

	var wg sync.WaitGroup
	defer wg.Wait()

	s.running.Store(true)
	defer s.running.Store(false)

	s.logger.Info().Dur("interval", s.Interval()).Msg("Refresh scheduler started")

	if s.refreshStart {
		s.run(ctx, &wg, "startup")
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Refresh scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.run(ctx, &wg, "interval")
		case <-s.trigger:
			s.run(ctx, &wg, "manual")
		case <-s.reset:
			ticker.Reset(s.Interval())
			s.logger.Info().Dur("interval", s.Interval()).Msg("Refresh interval changed")
		}
	}
}

// SetInterval replaces the refresh period. The next firing is one full
// period after the change.
func (s *scheduler) SetInterval(interval time.Duration) error {
	if interval <= 0 {
		return common.NewValidationError("INVALID_INTERVAL", "minutes must be a positive integer")
	}
	s.interval.Store(int64(interval))

	select {
	case s.reset <- struct{}{}:
	default:
	}
	return nil
}

func (s *scheduler) Interval() time.Duration {
	return time.Duration(s.interval.Load())
}

// TriggerRefresh requests an immediate refresh without blocking. Requests
// made while one is already pending collapse into it.
func (s *scheduler) TriggerRefresh() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

func (s *scheduler) run(ctx context.Context, wg *sync.WaitGroup, reason string) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error().Str("reason", reason).Str("panic", fmt.Sprint(r)).Msg("Refresh job panicked")
			}
		}()

		s.logger.Debug().Str("reason", reason).Msg("Running scheduled refresh")
		s.job(ctx)
	}()
}
