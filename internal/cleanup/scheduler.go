package cleanup

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/elskow/tourfurr/internal/config"
)

// Scheduler runs the sweeper on a fixed interval. A zero interval disables
// it.
type Scheduler struct {
	sweeper  *Sweeper
	interval time.Duration
	timeout  time.Duration
	log      *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewScheduler(sweeper *Sweeper, cfg *config.AppConfig, log *zap.Logger) *Scheduler {
	return &Scheduler{
		sweeper:  sweeper,
		interval: cfg.Cleanup.Interval,
		timeout:  cfg.Cleanup.Timeout,
		log:      log.Named("cleanup.scheduler"),
	}
}

func (s *Scheduler) Start() {
	if s.interval <= 0 {
		s.log.Info("scheduled cleanup disabled")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg.Add(1)
	go s.loop(ctx)
	s.log.Info("scheduled cleanup started", zap.Duration("interval", s.interval))
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	if _, err := s.sweeper.Run(ctx, TriggerSchedule); err != nil && !errors.Is(err, ErrAlreadyRunning) {
		s.log.Error("scheduled cleanup failed", zap.Error(err))
	}
}

// Stop cancels the loop and waits for an in-flight sweep, or for ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.cancel == nil {
		return nil
	}
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
