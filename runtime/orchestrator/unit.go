package orchestrator

import (
	"context"
	"errors"

	"github.com/viant/fluxgate/internal/clock"
	"github.com/viant/fluxgate/service/watchdog"
)

// staleTicks is how many polling intervals may pass without a tick before
// the loop is reported unhealthy.
const staleTicks = 3

// Unit exposes the Run loop to a watchdog supervisor. Start replaces any
// previous loop; the health check fails when the loop is gone or stalled.
func (s *Service) Unit() watchdog.Unit {
	return watchdog.NewUnit(s.start, s.healthCheck)
}

func (s *Service) start(ctx context.Context) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.runCancel != nil {
		s.runCancel()
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.runCancel = cancel
	s.loops.Add(1)
	s.lastTick.Store(clock.Now().UnixNano())
	go func() {
		if err := s.run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warn("orchestrator loop exited", "error", err)
		}
	}()
	return nil
}

func (s *Service) healthCheck(ctx context.Context) (bool, error) {
	if s.loops.Load() == 0 {
		return false, nil
	}
	return clock.SinceUnixNano(s.lastTick.Load()) <= staleTicks*s.config.PollingInterval, nil
}
