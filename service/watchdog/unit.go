package watchdog

import "context"

// Unit is an independently startable, health checkable process.
//
// Start receives the monitoring context: background work should be tied to it
// and Start should return once the unit is up. HealthCheck reports false or
// an error when the unit needs a restart; both methods may panic, which the
// supervisor treats as a failure.
type Unit interface {
	Start(ctx context.Context) error
	HealthCheck(ctx context.Context) (bool, error)
}

// StartFunc brings a unit up.
type StartFunc func(ctx context.Context) error

// HealthCheckFunc reports whether a unit is healthy.
type HealthCheckFunc func(ctx context.Context) (bool, error)

type funcUnit struct {
	start StartFunc
	check HealthCheckFunc
}

func (u *funcUnit) Start(ctx context.Context) error {
	if u.start == nil {
		return nil
	}
	return u.start(ctx)
}

func (u *funcUnit) HealthCheck(ctx context.Context) (bool, error) {
	if u.check == nil {
		return true, nil
	}
	return u.check(ctx)
}

// NewUnit adapts a pair of functions to Unit. A nil check is always healthy.
func NewUnit(start StartFunc, check HealthCheckFunc) Unit {
	return &funcUnit{start: start, check: check}
}
