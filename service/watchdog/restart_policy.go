package watchdog

import (
	"sync"
	"time"
)

// RestartPolicy limits automatic restarts per unit. Once a unit reaches
// MaxInWindow restarts within Window it enters Cooldown and automatic
// restarts are suppressed until the cooldown ends.
type RestartPolicy struct {
	MaxInWindow int
	Window      time.Duration
	Cooldown    time.Duration

	mu            sync.Mutex
	history       map[string][]time.Time
	cooldownUntil map[string]time.Time
}

// NewRestartPolicy creates a restart policy.
func NewRestartPolicy(maxInWindow int, window, cooldown time.Duration) *RestartPolicy {
	return &RestartPolicy{
		MaxInWindow:   maxInWindow,
		Window:        window,
		Cooldown:      cooldown,
		history:       make(map[string][]time.Time),
		cooldownUntil: make(map[string]time.Time),
	}
}

// Allow reports whether name may be restarted at now.
func (p *RestartPolicy) Allow(name string, now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if until, ok := p.cooldownUntil[name]; ok && now.Before(until) {
		return false
	}
	p.prune(name, now)
	return p.MaxInWindow <= 0 || len(p.history[name]) < p.MaxInWindow
}

// Record registers a restart at now and enters cooldown once the window is full.
// It returns the number of restarts within the window.
func (p *RestartPolicy) Record(name string, now time.Time) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prune(name, now)
	p.history[name] = append(p.history[name], now)
	count := len(p.history[name])
	if p.MaxInWindow > 0 && count >= p.MaxInWindow {
		p.cooldownUntil[name] = now.Add(p.Cooldown)
	}
	return count
}

// InCooldown reports whether name is cooling down at now.
func (p *RestartPolicy) InCooldown(name string, now time.Time) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	until, ok := p.cooldownUntil[name]
	return ok && now.Before(until)
}

// Count returns restarts of name within the window ending at now.
func (p *RestartPolicy) Count(name string, now time.Time) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prune(name, now)
	return len(p.history[name])
}

// Total returns restarts of every unit within the window ending at now.
func (p *RestartPolicy) Total(now time.Time) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	total := 0
	for name := range p.history {
		p.prune(name, now)
		total += len(p.history[name])
	}
	return total
}

// Reset forgets the history and cooldown of name.
func (p *RestartPolicy) Reset(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.history, name)
	delete(p.cooldownUntil, name)
}

func (p *RestartPolicy) prune(name string, now time.Time) {
	cutoff := now.Add(-p.Window)
	entries := p.history[name]
	pruned := entries[:0]
	for _, t := range entries {
		if !t.Before(cutoff) {
			pruned = append(pruned, t)
		}
	}
	p.history[name] = pruned
}
