package fluxgate

import (
	"io"
	"log/slog"

	"github.com/viant/afs/storage"
	"github.com/viant/fluxgate/model/plan"
	"github.com/viant/fluxgate/policy"
	"github.com/viant/fluxgate/service/approval"
	"github.com/viant/fluxgate/service/dao"
	"github.com/viant/fluxgate/service/event"
)

// Option customises the Service.
type Option func(s *Service)

// WithConfig sets the configuration; DefaultConfig is used otherwise.
func WithConfig(config *Config) Option {
	return func(s *Service) {
		if config != nil {
			s.config = config
		}
	}
}

// WithLogger sets the logger shared by every component.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithExecutor registers the executor for category, replacing the dry-run default.
func WithExecutor(category approval.Category, executor approval.Executor) Option {
	return func(s *Service) { s.executors.Register(category, executor) }
}

// WithPolicy decides pending approvals automatically; it overrides the configured policy.
func WithPolicy(p *policy.Policy) Option {
	return func(s *Service) { s.policy = p }
}

// WithPlanStore replaces the configured plan store.
func WithPlanStore(store dao.Service[string, plan.Plan]) Option {
	return func(s *Service) { s.plans = store }
}

// WithApprovalStore replaces the configured approval request store.
func WithApprovalStore(store dao.Service[string, approval.Request]) Option {
	return func(s *Service) { s.requests = store }
}

// WithMetaBaseURL sets the location plan definitions are resolved against.
func WithMetaBaseURL(URL string, options ...storage.Option) Option {
	return func(s *Service) {
		s.metaBaseURL = URL
		s.metaOptions = options
	}
}

// WithTracing enables OpenTelemetry tracing. An empty outputFile writes spans to stdout.
func WithTracing(serviceName, serviceVersion, outputFile string) Option {
	return func(s *Service) {
		s.tracing = &tracingSetup{name: serviceName, version: serviceVersion, outputFile: outputFile}
	}
}

// WithDryRunOutput sets where the dry-run executor writes; stdout by default.
func WithDryRunOutput(w io.Writer) Option {
	return func(s *Service) { s.dryRun = w }
}

// WithEventHandler receives every approval lifecycle event while the runtime
// runs; events are logged at debug level otherwise.
func WithEventHandler(handler event.Handler[approval.Event]) Option {
	return func(s *Service) { s.eventHandler = handler }
}
