package watchdog

import (
	"sync"
	"time"

	"github.com/viant/fluxgate/model/types"
)

// Registration is a point-in-time snapshot of a supervised unit.
type Registration struct {
	Name                string            `json:"name"`
	Running             bool              `json:"running"`
	Healthy             bool              `json:"healthy"`
	RestartCount        int               `json:"restartCount"`
	ConsecutiveFailures int               `json:"consecutiveFailures,omitempty"`
	LastRestart         time.Time         `json:"lastRestart,omitempty"`
	LastCheck           time.Time         `json:"lastCheck,omitempty"`
	LastError           string            `json:"lastError,omitempty"`
	LastFailure         types.FailureKind `json:"lastFailure,omitempty"`
}

// watcher pairs the registration state with its unit. state is guarded by
// the supervisor mutex; op serialises start, check and restart of one unit.
type watcher struct {
	state Registration
	unit  Unit
	op    sync.Mutex
}
