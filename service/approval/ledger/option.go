package ledger

import (
	"log/slog"

	"github.com/viant/fluxgate/metrics"
	"github.com/viant/fluxgate/service/approval"
	"github.com/viant/fluxgate/service/dao"
	"github.com/viant/fluxgate/service/messaging"
)

type Option func(*Service)

// WithStore sets the request store; the default is in-memory.
func WithStore(store dao.Service[string, approval.Request]) Option {
	return func(s *Service) { s.store = store }
}

// WithEvents publishes lifecycle events on queue. The queue should not block
// on a full buffer, otherwise ledger mutations wait for consumers.
func WithEvents(queue messaging.Queue[approval.Event]) Option {
	return func(s *Service) { s.events = queue }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics records transitions and executions on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}
