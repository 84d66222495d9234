package watchdog

import (
	"log/slog"
	"time"

	"github.com/viant/fluxgate/metrics"
)

const (
	DefaultCheckInterval = 60 * time.Second
	DefaultStopTimeout   = 30 * time.Second
)

// Option customises a Supervisor.
type Option func(s *Supervisor)

// WithCheckInterval sets the time between monitor passes.
func WithCheckInterval(interval time.Duration) Option {
	return func(s *Supervisor) {
		if interval > 0 {
			s.checkInterval = interval
		}
	}
}

// WithCheckTimeout bounds each health check with a context deadline.
// Units must honour the context for the deadline to take effect.
func WithCheckTimeout(timeout time.Duration) Option {
	return func(s *Supervisor) { s.checkTimeout = timeout }
}

// WithConcurrency limits how many units are checked at once; 0 means no limit.
func WithConcurrency(n int) Option {
	return func(s *Supervisor) { s.concurrency = n }
}

// WithStopTimeout bounds how long StopMonitoring waits for the loop.
func WithStopTimeout(timeout time.Duration) Option {
	return func(s *Supervisor) {
		if timeout > 0 {
			s.stopTimeout = timeout
		}
	}
}

// WithRestartPolicy enables restart storm protection.
func WithRestartPolicy(policy *RestartPolicy) Option {
	return func(s *Supervisor) { s.policy = policy }
}

// WithStatusFile writes a snapshot after every monitor pass.
func WithStatusFile(statusFile *StatusFile) Option {
	return func(s *Supervisor) { s.statusFile = statusFile }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Supervisor) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics records checks and restarts on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Supervisor) { s.metrics = m }
}
