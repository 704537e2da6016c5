package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/arklim/digital-bank-auth/internal/usecase"
)

const sweepTimeout = 30 * time.Second

// Sweeper removes expired auth state.
type Sweeper interface {
	Sweep(ctx context.Context) (usecase.SweepResult, error)
}

// SweepObserver receives the outcome of each successful sweep.
type SweepObserver interface {
	ObserveSweep(sessions, resetTokens int64)
}

// Scheduler runs the reaper on a cron schedule with seconds precision.
type Scheduler struct {
	cron     *cron.Cron
	sweeper  Sweeper
	observer SweepObserver
	logger   *zap.Logger
}

// NewScheduler registers the sweep under schedule. The scheduler does nothing until Start.
func NewScheduler(schedule string, sweeper Sweeper, observer SweepObserver, logger *zap.Logger) (*Scheduler, error) {
	if sweeper == nil {
		return nil, fmt.Errorf("sweeper is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		sweeper:  sweeper,
		observer: observer,
		logger:   logger.Named("reaper"),
	}

	if _, err := s.cron.AddFunc(schedule, s.RunOnce); err != nil {
		return nil, fmt.Errorf("schedule reaper %q: %w", schedule, err)
	}
	return s, nil
}

// Start begins running scheduled sweeps in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("reaper scheduled")
}

// Stop halts scheduling and waits for a running sweep to finish or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce performs a single sweep.
func (s *Scheduler) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	result, err := s.sweeper.Sweep(ctx)
	if err != nil {
		s.logger.Error("sweep failed", zap.Error(err))
		return
	}
	if s.observer != nil {
		s.observer.ObserveSweep(result.Sessions, result.ResetTokens)
	}
}
