package fluxgate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/viant/afs"
	"github.com/viant/afs/storage"
	"github.com/viant/afs/url"
	"github.com/viant/fluxgate/metrics"
	"github.com/viant/fluxgate/model/plan"
	"github.com/viant/fluxgate/policy"
	"github.com/viant/fluxgate/runtime/orchestrator"
	"github.com/viant/fluxgate/service/action/printer"
	"github.com/viant/fluxgate/service/approval"
	"github.com/viant/fluxgate/service/approval/ledger"
	"github.com/viant/fluxgate/service/dao"
	"github.com/viant/fluxgate/service/dao/fs"
	"github.com/viant/fluxgate/service/dao/sqlite"
	"github.com/viant/fluxgate/service/event"
	"github.com/viant/fluxgate/service/messaging"
	"github.com/viant/fluxgate/service/messaging/memory"
	"github.com/viant/fluxgate/service/meta"
	"github.com/viant/fluxgate/service/watchdog"
	"github.com/viant/fluxgate/tracing"
)

// Version is reported to the tracing provider.
const Version = "0.1.0"

const (
	approvalsTable = "approvals"
	plansTable     = "plans"
)

type tracingSetup struct {
	name       string
	version    string
	outputFile string
}

// Service wires the plan store, approval ledger, orchestrator and watchdog
// supervisor into one process.
type Service struct {
	config       *Config
	logger       *slog.Logger
	dryRun       io.Writer
	tracing      *tracingSetup
	metaBaseURL  string
	metaOptions  []storage.Option
	eventHandler event.Handler[approval.Event]

	db           *sql.DB
	plans        dao.Service[string, plan.Plan]
	requests     dao.Service[string, approval.Request]
	events       *memory.Queue[approval.Event]
	executors    approval.Executors
	policy       *policy.Policy
	registry     *prometheus.Registry
	metrics      *metrics.Metrics
	meta         *meta.Service
	approvals    *ledger.Service
	orchestrator *orchestrator.Service
	supervisor   *watchdog.Supervisor
	runtime      *Runtime
}

// New builds a Service from DefaultConfig overridden by options.
func New(ctx context.Context, options ...Option) (*Service, error) {
	ret := &Service{config: DefaultConfig(), executors: approval.Executors{}}
	for _, option := range options {
		option(ret)
	}
	if err := ret.config.Validate(); err != nil {
		return nil, err
	}
	if err := ret.init(ctx); err != nil {
		_ = ret.close()
		return nil, err
	}
	return ret, nil
}

func (s *Service) init(ctx context.Context) error {
	if s.logger == nil {
		s.logger = NewLogger(os.Stderr, s.config.Log)
	}
	if s.tracing == nil && s.config.Tracing.Enabled {
		s.tracing = &tracingSetup{name: "fluxgate", version: Version, outputFile: s.config.Tracing.OutputFile}
	}
	if s.tracing != nil {
		if err := tracing.Init(s.tracing.name, s.tracing.version, s.tracing.outputFile); err != nil {
			return fmt.Errorf("failed to init tracing: %w", err)
		}
	}
	if err := s.initStores(ctx); err != nil {
		return err
	}
	s.registry, s.metrics = metrics.NewRegistry()
	s.meta = meta.New(afs.New(), s.metaBaseURL, s.metaOptions...)

	queueConfig := memory.DefaultConfig()
	queueConfig.QueueBuffer = s.config.Approval.EventBuffer
	queueConfig.DropWhenFull = true
	s.events = memory.NewQueue[approval.Event](queueConfig)

	dryRun := printer.New(s.dryRun)
	for _, category := range approval.Categories {
		if _, ok := s.executors[category]; !ok {
			s.executors.Register(category, dryRun)
		}
	}
	if s.policy == nil {
		s.policy = policy.FromConfig(s.config.Policy)
	}

	s.approvals = ledger.New(
		ledger.WithStore(s.requests),
		ledger.WithEvents(s.events),
		ledger.WithLogger(s.logger),
		ledger.WithMetrics(s.metrics),
	)
	s.orchestrator = orchestrator.New(s.plans, s.approvals, s.executors,
		orchestrator.WithConfig(orchestrator.Config{
			PollingInterval:    s.config.Orchestrator.PollingInterval,
			ApprovalExpiration: s.config.Approval.Expiration,
		}),
		orchestrator.WithLogger(s.logger),
		orchestrator.WithMetrics(s.metrics),
	)
	s.supervisor = watchdog.New(s.supervisorOptions()...)
	s.runtime = &Runtime{service: s}
	return nil
}

func (s *Service) supervisorOptions() []watchdog.Option {
	cfg := s.config.Watchdog
	options := []watchdog.Option{
		watchdog.WithCheckInterval(cfg.CheckInterval),
		watchdog.WithCheckTimeout(cfg.CheckTimeout),
		watchdog.WithStopTimeout(cfg.StopTimeout),
		watchdog.WithConcurrency(cfg.Concurrency),
		watchdog.WithLogger(s.logger),
		watchdog.WithMetrics(s.metrics),
	}
	if cfg.MaxRestarts > 0 {
		options = append(options, watchdog.WithRestartPolicy(watchdog.NewRestartPolicy(cfg.MaxRestarts, cfg.RestartWindow, cfg.Cooldown)))
	}
	if cfg.StatusFile != "" {
		options = append(options, watchdog.WithStatusFile(watchdog.NewStatusFile(cfg.StatusFile)))
	}
	return options
}

func (s *Service) initStores(ctx context.Context) error {
	if s.plans != nil && s.requests != nil {
		return nil
	}
	cfg := s.config.Store
	switch strings.ToLower(cfg.Vendor) {
	case StoreFS:
		if s.requests == nil {
			store, err := fs.New[approval.Request](ctx, url.Join(cfg.URL, approvalsTable), ledger.RequestKey, ledger.RequestStatus, fs.WithLogger[approval.Request](s.logger))
			if err != nil {
				return fmt.Errorf("failed to create approval store: %w", err)
			}
			s.requests = store
		}
		if s.plans == nil {
			store, err := fs.New[plan.Plan](ctx, url.Join(cfg.URL, plansTable), orchestrator.PlanKey, orchestrator.PlanStatus, fs.WithLogger[plan.Plan](s.logger))
			if err != nil {
				return fmt.Errorf("failed to create plan store: %w", err)
			}
			s.plans = store
		}
	case StoreSQLite:
		db, err := sql.Open("sqlite", cfg.URL)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", cfg.URL, err)
		}
		s.db = db
		db.SetMaxOpenConns(1)
		if s.requests == nil {
			if s.requests, err = sqlite.New[approval.Request](ctx, db, approvalsTable, ledger.RequestKey, ledger.RequestStatus); err != nil {
				return fmt.Errorf("failed to create approval store: %w", err)
			}
		}
		if s.plans == nil {
			if s.plans, err = sqlite.New[plan.Plan](ctx, db, plansTable, orchestrator.PlanKey, orchestrator.PlanStatus); err != nil {
				return fmt.Errorf("failed to create plan store: %w", err)
			}
		}
	default:
		if s.requests == nil {
			s.requests = ledger.NewMemoryStore()
		}
		if s.plans == nil {
			s.plans = orchestrator.NewMemoryStore()
		}
	}
	return nil
}

// Config returns the effective configuration.
func (s *Service) Config() *Config { return s.config }

// Logger returns the shared logger.
func (s *Service) Logger() *slog.Logger { return s.logger }

// Approvals returns the approval ledger.
func (s *Service) Approvals() *ledger.Service { return s.approvals }

// Orchestrator returns the plan orchestrator.
func (s *Service) Orchestrator() *orchestrator.Service { return s.orchestrator }

// Supervisor returns the watchdog supervisor.
func (s *Service) Supervisor() *watchdog.Supervisor { return s.supervisor }

// Executors returns the executors used for approved actions.
func (s *Service) Executors() approval.Executors { return s.executors }

// Events returns the approval event stream.
func (s *Service) Events() messaging.Queue[approval.Event] { return s.events }

// Registry returns the prometheus registry holding the service metrics.
func (s *Service) Registry() *prometheus.Registry { return s.registry }

// MetricsHandler serves the service metrics.
func (s *Service) MetricsHandler() http.Handler { return metrics.HandlerFor(s.registry) }

// Runtime returns the supervised runtime.
func (s *Service) Runtime() *Runtime { return s.runtime }

// LoadPlan reads a plan definition (YAML or JSON) from location and validates it.
func (s *Service) LoadPlan(ctx context.Context, location string) (*plan.Plan, error) {
	definition := &plan.Definition{}
	if err := s.meta.Load(ctx, location, definition); err != nil {
		return nil, err
	}
	ret, err := definition.Build()
	if err != nil {
		return nil, fmt.Errorf("invalid plan %s: %w", s.meta.URL(location), err)
	}
	return ret, nil
}

// SubmitPlan loads the plan definition at location and stores it for execution.
func (s *Service) SubmitPlan(ctx context.Context, location string) (*plan.Plan, error) {
	p, err := s.LoadPlan(ctx, location)
	if err != nil {
		return nil, err
	}
	return s.orchestrator.Submit(ctx, p.Objective, p.Steps, plan.WithID(p.ID))
}

// Shutdown stops the runtime and releases the store.
func (s *Service) Shutdown(ctx context.Context) error {
	return errors.Join(s.runtime.Shutdown(ctx), s.close())
}

func (s *Service) close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
