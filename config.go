package fluxgate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/viant/fluxgate/policy"
	"github.com/viant/fluxgate/service/meta"
)

// Store vendors.
const (
	StoreMemory = "memory"
	StoreFS     = "fs"
	StoreSQLite = "sqlite"
)

// Config is a serialisable representation of the service configuration. It
// can be populated from YAML, JSON or environment variables; DefaultConfig
// holds the values used for anything left unset.
type Config struct {
	Store        StoreConfig        `json:"store" yaml:"store"`
	Approval     ApprovalConfig     `json:"approval" yaml:"approval"`
	Orchestrator OrchestratorConfig `json:"orchestrator" yaml:"orchestrator"`
	Watchdog     WatchdogConfig     `json:"watchdog" yaml:"watchdog"`
	Policy       *policy.Config     `json:"policy,omitempty" yaml:"policy,omitempty"`
	Metrics      MetricsConfig      `json:"metrics" yaml:"metrics"`
	Tracing      TracingConfig      `json:"tracing" yaml:"tracing"`
	Log          LogConfig          `json:"log" yaml:"log"`
}

// StoreConfig selects where plans and approval requests live. URL is the
// base location for fs and the DSN for sqlite.
type StoreConfig struct {
	Vendor string `json:"vendor" yaml:"vendor"`
	URL    string `json:"url,omitempty" yaml:"url,omitempty"`
}

type ApprovalConfig struct {
	Expiration    time.Duration `json:"expiration" yaml:"expiration"`
	QueueInterval time.Duration `json:"queueInterval" yaml:"queueInterval"`
	EventBuffer   int           `json:"eventBuffer" yaml:"eventBuffer"`
}

type OrchestratorConfig struct {
	PollingInterval time.Duration `json:"pollingInterval" yaml:"pollingInterval"`
}

type WatchdogConfig struct {
	CheckInterval time.Duration `json:"checkInterval" yaml:"checkInterval"`
	CheckTimeout  time.Duration `json:"checkTimeout,omitempty" yaml:"checkTimeout,omitempty"`
	StopTimeout   time.Duration `json:"stopTimeout" yaml:"stopTimeout"`
	Concurrency   int           `json:"concurrency,omitempty" yaml:"concurrency,omitempty"`
	MaxRestarts   int           `json:"maxRestarts,omitempty" yaml:"maxRestarts,omitempty"`
	RestartWindow time.Duration `json:"restartWindow,omitempty" yaml:"restartWindow,omitempty"`
	Cooldown      time.Duration `json:"cooldown,omitempty" yaml:"cooldown,omitempty"`
	StatusFile    string        `json:"statusFile,omitempty" yaml:"statusFile,omitempty"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Address string `json:"address,omitempty" yaml:"address,omitempty"`
}

type TracingConfig struct {
	Enabled    bool   `json:"enabled" yaml:"enabled"`
	OutputFile string `json:"outputFile,omitempty" yaml:"outputFile,omitempty"`
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// DefaultConfig returns a Config populated with the package defaults.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{Vendor: StoreMemory},
		Approval: ApprovalConfig{
			Expiration:    24 * time.Hour,
			QueueInterval: 30 * time.Second,
			EventBuffer:   256,
		},
		Orchestrator: OrchestratorConfig{PollingInterval: 5 * time.Second},
		Watchdog: WatchdogConfig{
			CheckInterval: 60 * time.Second,
			StopTimeout:   30 * time.Second,
			RestartWindow: 10 * time.Minute,
			Cooldown:      5 * time.Minute,
		},
		Metrics: MetricsConfig{Address: ":9090"},
		Log:     LogConfig{Level: "info", Format: "text"},
	}
}

// Validate returns an aggregated error describing invalid settings or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	var errs []error
	switch strings.ToLower(c.Store.Vendor) {
	case StoreMemory:
	case StoreFS, StoreSQLite:
		if c.Store.URL == "" {
			errs = append(errs, fmt.Errorf("store.url is required for %s", c.Store.Vendor))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported store.vendor %q", c.Store.Vendor))
	}
	if c.Approval.Expiration <= 0 {
		errs = append(errs, fmt.Errorf("approval.expiration must be > 0"))
	}
	if c.Approval.QueueInterval <= 0 {
		errs = append(errs, fmt.Errorf("approval.queueInterval must be > 0"))
	}
	if c.Orchestrator.PollingInterval <= 0 {
		errs = append(errs, fmt.Errorf("orchestrator.pollingInterval must be > 0"))
	}
	if c.Watchdog.CheckInterval <= 0 {
		errs = append(errs, fmt.Errorf("watchdog.checkInterval must be > 0"))
	}
	if c.Watchdog.StopTimeout <= 0 {
		errs = append(errs, fmt.Errorf("watchdog.stopTimeout must be > 0"))
	}
	if c.Watchdog.MaxRestarts < 0 || c.Watchdog.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("watchdog.maxRestarts and watchdog.concurrency must be >= 0"))
	}
	if c.Policy != nil {
		switch strings.ToLower(c.Policy.Mode) {
		case "", policy.ModeAsk, policy.ModeAuto, policy.ModeDeny:
		default:
			errs = append(errs, fmt.Errorf("unsupported policy.mode %q", c.Policy.Mode))
		}
	}
	return errors.Join(errs...)
}

// LoadConfig reads a YAML or JSON config from URL on top of DefaultConfig.
func LoadConfig(ctx context.Context, URL string) (*Config, error) {
	ret := DefaultConfig()
	if err := meta.New(nil, "").Load(ctx, URL, ret); err != nil {
		return nil, err
	}
	if err := ret.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", URL, err)
	}
	return ret, nil
}
