package watchdog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/viant/fluxgate/internal/clock"
	"github.com/viant/fluxgate/metrics"
	"github.com/viant/fluxgate/model/types"
	"github.com/viant/fluxgate/tracing"
)

var (
	// ErrStopTimeout is returned when the monitor loop does not exit within the stop timeout.
	ErrStopTimeout = errors.New("watchdog: monitor loop did not stop in time")
	// ErrUnhealthy is recorded when a health check reports false.
	ErrUnhealthy = errors.New("health check reported unhealthy")
)

// Supervisor starts registered units, polls their health and restarts the
// unhealthy ones. Registrations are never removed.
type Supervisor struct {
	mu       sync.RWMutex
	watchers map[string]*watcher
	order    []string
	unitCtx  context.Context

	lifecycle sync.Mutex
	running   atomic.Bool
	cancel    context.CancelFunc
	done      chan struct{}

	checkInterval time.Duration
	checkTimeout  time.Duration
	stopTimeout   time.Duration
	concurrency   int
	policy        *RestartPolicy
	statusFile    *StatusFile
	logger        *slog.Logger
	metrics       *metrics.Metrics
}

// New creates a supervisor.
func New(options ...Option) *Supervisor {
	ret := &Supervisor{
		watchers:      make(map[string]*watcher),
		checkInterval: DefaultCheckInterval,
		stopTimeout:   DefaultStopTimeout,
		logger:        slog.Default(),
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

// Register adds a unit built from start and check.
func (s *Supervisor) Register(name string, start StartFunc, check HealthCheckFunc) error {
	return s.RegisterUnit(name, NewUnit(start, check))
}

// RegisterUnit adds unit under name. While monitoring, the unit is started
// right away; its start failure is recorded, not returned.
func (s *Supervisor) RegisterUnit(name string, unit Unit) error {
	if name == "" {
		return types.NewValidationError("name", "watcher name is empty")
	}
	if unit == nil {
		return types.NewValidationError("unit", "watcher %s has no unit", name)
	}
	s.mu.Lock()
	if _, ok := s.watchers[name]; ok {
		s.mu.Unlock()
		return &types.AlreadyRegisteredError{Name: name}
	}
	w := &watcher{state: Registration{Name: name}, unit: unit}
	s.watchers[name] = w
	s.order = append(s.order, name)
	unitCtx := s.unitCtx
	s.mu.Unlock()

	s.logger.Info("watcher registered", "watcher", name)
	if unitCtx != nil {
		w.op.Lock()
		_ = s.start(unitCtx, w)
		w.op.Unlock()
	}
	return nil
}

// StartMonitoring starts every unit and launches the monitor loop. Calling it
// while monitoring is a no-op. Units stay bound to ctx until StopMonitoring.
func (s *Supervisor) StartMonitoring(ctx context.Context) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	if s.running.Load() {
		return nil
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.unitCtx = loopCtx
	watchers := s.snapshot()
	s.mu.Unlock()

	var started atomic.Int32
	s.forEach(watchers, func(w *watcher) {
		w.op.Lock()
		defer w.op.Unlock()
		if s.start(loopCtx, w) == nil {
			started.Add(1)
		}
	})

	s.cancel = cancel
	s.done = make(chan struct{})
	s.running.Store(true)
	go s.loop(loopCtx, s.done)
	s.logger.Info("watchdog monitoring started", "watchers", len(s.names()), "started", started.Load(), "interval", s.checkInterval)
	return nil
}

// StopMonitoring cancels the monitor loop and waits for it to exit, at most
// the stop timeout. Units lose their context and are marked not running.
func (s *Supervisor) StopMonitoring() error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	if !s.running.Load() {
		return nil
	}
	s.cancel()
	s.running.Store(false)
	done := s.done

	s.mu.Lock()
	s.unitCtx = nil
	for _, w := range s.watchers {
		w.state.Running = false
		s.metrics.SetRunning(w.state.Name, false)
	}
	s.mu.Unlock()

	timer := time.NewTimer(s.stopTimeout)
	defer timer.Stop()
	select {
	case <-done:
		s.logger.Info("watchdog monitoring stopped")
		return nil
	case <-timer.C:
		s.logger.Error("watchdog monitoring did not stop in time", "timeout", s.stopTimeout)
		return ErrStopTimeout
	}
}

// IsMonitoring reports whether the monitor loop is active.
func (s *Supervisor) IsMonitoring() bool {
	return s.running.Load()
}

func (s *Supervisor) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	timer := time.NewTimer(s.checkInterval)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			if err := s.RunCheck(ctx); err != nil {
				s.logger.Warn("watchdog pass incomplete", "error", err)
			}
			timer.Reset(s.checkInterval)
		}
	}
}

// RunCheck performs one monitor pass over every unit. Units are checked
// concurrently so a slow unit does not delay the others.
func (s *Supervisor) RunCheck(ctx context.Context) (err error) {
	ctx, span := tracing.StartSpan(ctx, "watchdog.check", tracing.KindInternal)
	defer func() { tracing.EndSpan(span, err) }()
	s.each(func(w *watcher) {
		w.op.Lock()
		defer w.op.Unlock()
		s.check(ctx, w)
	})
	span.WithInt("watchers", len(s.names()))
	if s.statusFile != nil {
		err = s.statusFile.Write(ctx, s.Snapshot())
	}
	return err
}

// RestartWatcher restarts name out of band. The restart policy does not
// apply to manual restarts.
func (s *Supervisor) RestartWatcher(ctx context.Context, name string) error {
	s.mu.RLock()
	w, ok := s.watchers[name]
	s.mu.RUnlock()
	if !ok {
		return &types.NotRegisteredError{Name: name}
	}
	w.op.Lock()
	defer w.op.Unlock()
	s.logger.Info("manual restart requested", "watcher", name)
	return s.restart(s.unitContext(ctx), w, true)
}

// Status returns a snapshot of name.
func (s *Supervisor) Status(name string) (Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.watchers[name]
	if !ok {
		return Registration{}, &types.NotRegisteredError{Name: name}
	}
	return w.state, nil
}

// Statuses returns snapshots of every unit in registration order.
func (s *Supervisor) Statuses() []Registration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ret := make([]Registration, 0, len(s.order))
	for _, name := range s.order {
		ret = append(ret, s.watchers[name].state)
	}
	return ret
}

// Snapshot returns the state written to the status file.
func (s *Supervisor) Snapshot() *Snapshot {
	now := clock.Now()
	ret := &Snapshot{Timestamp: now.UTC(), Monitoring: s.IsMonitoring(), Watchers: s.Statuses()}
	if s.policy != nil {
		ret.RestartsInWindow = s.policy.Total(now)
	}
	return ret
}

func (s *Supervisor) check(ctx context.Context, w *watcher) {
	name := w.state.Name
	now := clock.Now()
	s.update(w, func(r *Registration) { r.LastCheck = now })

	started := time.Now()
	healthy, err := s.healthCheck(ctx, w.unit)
	took := time.Since(started)
	if err == nil && healthy {
		s.metrics.RecordCheck(name, "healthy", took)
		s.update(w, func(r *Registration) {
			r.Healthy = true
			r.ConsecutiveFailures = 0
		})
		return
	}
	if ctx.Err() != nil {
		return
	}
	result := "error"
	if err == nil {
		result = "unhealthy"
		err = types.NewTransientError(ErrUnhealthy)
	}
	s.metrics.RecordCheck(name, result, took)
	s.update(w, func(r *Registration) {
		r.Healthy = false
		r.ConsecutiveFailures++
		r.LastError = err.Error()
		r.LastFailure = types.Classify(err)
	})
	s.logger.Warn("watcher unhealthy", "watcher", name, "kind", types.Classify(err), "error", err)
	_ = s.restart(s.unitContext(ctx), w, false)
}

// restart bumps the restart counter and starts the unit again. Automatic
// restarts blocked by the restart policy leave the counter unchanged.
func (s *Supervisor) restart(ctx context.Context, w *watcher, manual bool) error {
	name := w.state.Name
	now := clock.Now()
	if !manual && s.policy != nil {
		if !s.policy.Allow(name, now) {
			err := fmt.Errorf("restart of %s suppressed: restart storm cooldown", name)
			s.update(w, func(r *Registration) { r.Running = false; r.LastError = err.Error() })
			s.metrics.RecordRestart(name, "suppressed")
			s.logger.Warn("restart suppressed", "watcher", name, "restartsInWindow", s.policy.Count(name, now))
			return err
		}
		s.policy.Record(name, now)
	}
	s.update(w, func(r *Registration) {
		r.RestartCount++
		r.LastRestart = now
		r.Running = false
	})
	s.metrics.SetRunning(name, false)
	if err := s.start(ctx, w); err != nil {
		s.metrics.RecordRestart(name, "failed")
		return err
	}
	s.metrics.RecordRestart(name, "started")
	s.logger.Info("watcher restarted", "watcher", name, "restartCount", s.state(w).RestartCount)
	return nil
}

func (s *Supervisor) start(ctx context.Context, w *watcher) error {
	err := safeStart(ctx, w.unit)
	s.update(w, func(r *Registration) {
		r.Running = err == nil
		if err == nil {
			r.LastError = ""
			r.LastFailure = types.FailureNone
			return
		}
		r.LastError = err.Error()
		r.LastFailure = types.Classify(err)
	})
	s.metrics.SetRunning(w.state.Name, err == nil)
	if err != nil {
		s.logger.Error("watcher failed to start", "watcher", w.state.Name, "kind", types.Classify(err), "error", err)
	}
	return err
}

func (s *Supervisor) healthCheck(ctx context.Context, unit Unit) (healthy bool, err error) {
	if s.checkTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.checkTimeout)
		defer cancel()
	}
	defer func() {
		if p := recover(); p != nil {
			healthy = false
			err = types.NewPermanentError(fmt.Errorf("health check panic: %v", p))
		}
	}()
	return unit.HealthCheck(ctx)
}

func safeStart(ctx context.Context, unit Unit) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = types.NewPermanentError(fmt.Errorf("start panic: %v", p))
		}
	}()
	return unit.Start(ctx)
}

// each runs fn for every unit in parallel, bounded by the concurrency option.
func (s *Supervisor) each(fn func(w *watcher)) {
	s.mu.RLock()
	watchers := s.snapshot()
	s.mu.RUnlock()
	s.forEach(watchers, fn)
}

// snapshot returns the registered watchers in order; s.mu must be held.
func (s *Supervisor) snapshot() []*watcher {
	ret := make([]*watcher, 0, len(s.order))
	for _, name := range s.order {
		ret = append(ret, s.watchers[name])
	}
	return ret
}

func (s *Supervisor) forEach(watchers []*watcher, fn func(w *watcher)) {
	var g errgroup.Group
	if s.concurrency > 0 {
		g.SetLimit(s.concurrency)
	}
	for _, w := range watchers {
		w := w
		g.Go(func() error {
			fn(w)
			return nil
		})
	}
	_ = g.Wait()
}

func (s *Supervisor) update(w *watcher, fn func(r *Registration)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&w.state)
}

func (s *Supervisor) state(w *watcher) Registration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return w.state
}

func (s *Supervisor) unitContext(ctx context.Context) context.Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.unitCtx != nil {
		return s.unitCtx
	}
	return ctx
}

func (s *Supervisor) names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...)
}
