package orchestrator

import (
	"log/slog"
	"time"

	"github.com/viant/fluxgate/metrics"
	"github.com/viant/fluxgate/service/approval"
)

// Config represents orchestrator configuration.
type Config struct {
	// PollingInterval is how often Run advances open plans.
	PollingInterval time.Duration `json:"pollingInterval,omitempty" yaml:"pollingInterval,omitempty"`
	// ApprovalExpiration is the window given to approval requests raised for steps.
	ApprovalExpiration time.Duration `json:"approvalExpiration,omitempty" yaml:"approvalExpiration,omitempty"`
}

// DefaultConfig returns the default orchestrator configuration.
func DefaultConfig() Config {
	return Config{
		PollingInterval:    5 * time.Second,
		ApprovalExpiration: approval.DefaultExpiration,
	}
}

type Option func(s *Service)

// WithConfig replaces the configuration; zero fields keep their defaults.
func WithConfig(config Config) Option {
	return func(s *Service) {
		if config.PollingInterval > 0 {
			s.config.PollingInterval = config.PollingInterval
		}
		if config.ApprovalExpiration > 0 {
			s.config.ApprovalExpiration = config.ApprovalExpiration
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics records step transitions on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}
