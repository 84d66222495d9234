package watchdog

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/fluxgate/metrics"
	"github.com/viant/fluxgate/model/types"
)

// fakeUnit counts starts and answers health checks from a switch.
type fakeUnit struct {
	starts   atomic.Int32
	healthy  atomic.Bool
	startErr atomic.Value
	panics   atomic.Bool
}

func newFakeUnit(healthy bool) *fakeUnit {
	ret := &fakeUnit{}
	ret.healthy.Store(healthy)
	return ret
}

func (u *fakeUnit) Start(ctx context.Context) error {
	u.starts.Add(1)
	if err, ok := u.startErr.Load().(error); ok && err != nil {
		return err
	}
	return nil
}

func (u *fakeUnit) HealthCheck(ctx context.Context) (bool, error) {
	if u.panics.Load() {
		panic("health check crashed")
	}
	return u.healthy.Load(), nil
}

func newTestSupervisor(options ...Option) *Supervisor {
	return New(append([]Option{WithCheckInterval(time.Hour), WithStopTimeout(time.Second)}, options...)...)
}

func TestSupervisor_Register(t *testing.T) {
	s := newTestSupervisor()
	require.NoError(t, s.RegisterUnit("mail", newFakeUnit(true)))

	err := s.RegisterUnit("mail", newFakeUnit(true))
	var registeredErr *types.AlreadyRegisteredError
	require.True(t, errors.As(err, &registeredErr))
	assert.Equal(t, "mail", registeredErr.Name)
	assert.True(t, errors.Is(err, types.ErrAlreadyRegistered))

	assert.True(t, errors.Is(s.Register("", nil, nil), types.ErrValidation))

	_, err = s.Status("unknown")
	assert.True(t, errors.Is(err, types.ErrNotRegistered))
	assert.True(t, errors.Is(s.RestartWatcher(context.Background(), "unknown"), types.ErrNotRegistered))
}

func TestSupervisor_RunCheck(t *testing.T) {
	type testCase struct {
		name          string
		prepare       func(u *fakeUnit)
		expectRestart int
		expectRunning bool
		expectFailure types.FailureKind
	}

	tests := []testCase{
		{
			name:          "healthy unit untouched",
			prepare:       func(u *fakeUnit) {},
			expectRunning: true,
		},
		{
			name:          "unhealthy unit restarted once",
			prepare:       func(u *fakeUnit) { u.healthy.Store(false) },
			expectRestart: 1,
			expectRunning: true,
			expectFailure: types.FailureNone,
		},
		{
			name:          "panicking check treated as unhealthy",
			prepare:       func(u *fakeUnit) { u.panics.Store(true) },
			expectRestart: 1,
			expectRunning: true,
		},
		{
			name: "failed restart recorded",
			prepare: func(u *fakeUnit) {
				u.healthy.Store(false)
				u.startErr.Store(errors.New("port in use"))
			},
			expectRestart: 1,
			expectFailure: types.FailureTransient,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			_, m := metrics.NewRegistry()
			s := newTestSupervisor(WithMetrics(m))
			unit := newFakeUnit(true)
			require.NoError(t, s.RegisterUnit("unit", unit))
			require.NoError(t, s.StartMonitoring(ctx))
			defer func() { _ = s.StopMonitoring() }()
			assert.Equal(t, int32(1), unit.starts.Load())

			tc.prepare(unit)
			require.NoError(t, s.RunCheck(ctx))

			status, err := s.Status("unit")
			require.NoError(t, err)
			assert.Equal(t, tc.expectRestart, status.RestartCount)
			assert.Equal(t, int32(1+tc.expectRestart), unit.starts.Load())
			assert.Equal(t, tc.expectRunning, status.Running)
			assert.False(t, status.LastCheck.IsZero())
			if tc.expectRestart > 0 {
				assert.False(t, status.LastRestart.IsZero())
				assert.False(t, status.Healthy)
				assert.Equal(t, tc.expectFailure, status.LastFailure)
				assert.Equal(t, float64(1), testutil.ToFloat64(m.WatcherRestarts.WithLabelValues("unit", map[bool]string{true: "started", false: "failed"}[tc.expectRunning])))
			} else {
				assert.True(t, status.Healthy)
				assert.Empty(t, status.LastError)
			}
		})
	}
}

func TestSupervisor_StartFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()
	s := newTestSupervisor()
	broken := newFakeUnit(false)
	broken.startErr.Store(types.NewPermanentError(errors.New("missing credentials")))
	fine := newFakeUnit(true)
	require.NoError(t, s.RegisterUnit("broken", broken))
	require.NoError(t, s.RegisterUnit("fine", fine))

	require.NoError(t, s.StartMonitoring(ctx))
	defer func() { _ = s.StopMonitoring() }()

	statuses := s.Statuses()
	require.Len(t, statuses, 2)
	assert.Equal(t, "broken", statuses[0].Name)
	assert.False(t, statuses[0].Running)
	assert.Equal(t, types.FailurePermanent, statuses[0].LastFailure)
	assert.Contains(t, statuses[0].LastError, "missing credentials")
	assert.True(t, statuses[1].Running)
}

func TestSupervisor_StopStartKeepsCounters(t *testing.T) {
	ctx := context.Background()
	s := newTestSupervisor()
	unit := newFakeUnit(false)
	require.NoError(t, s.RegisterUnit("unit", unit))

	require.NoError(t, s.StartMonitoring(ctx))
	require.NoError(t, s.StartMonitoring(ctx))
	assert.Equal(t, int32(1), unit.starts.Load())
	require.NoError(t, s.RunCheck(ctx))

	require.NoError(t, s.StopMonitoring())
	require.NoError(t, s.StopMonitoring())
	assert.False(t, s.IsMonitoring())
	status, _ := s.Status("unit")
	assert.False(t, status.Running)

	require.NoError(t, s.StartMonitoring(ctx))
	defer func() { _ = s.StopMonitoring() }()
	status, _ = s.Status("unit")
	assert.Equal(t, 1, status.RestartCount)
	assert.True(t, status.Running)
	assert.Equal(t, int32(3), unit.starts.Load())
}

func TestSupervisor_RegisterWhileStarting(t *testing.T) {
	ctx := context.Background()
	for i := 0; i < 50; i++ {
		s := newTestSupervisor()
		require.NoError(t, s.RegisterUnit("first", newFakeUnit(true)))
		late := newFakeUnit(true)

		ready := make(chan struct{})
		errs := make(chan error, 2)
		go func() {
			<-ready
			errs <- s.StartMonitoring(ctx)
		}()
		go func() {
			<-ready
			errs <- s.RegisterUnit("late", late)
		}()
		close(ready)
		require.NoError(t, <-errs)
		require.NoError(t, <-errs)

		assert.Equal(t, int32(1), late.starts.Load())
		require.NoError(t, s.RunCheck(ctx))
		status, err := s.Status("late")
		require.NoError(t, err)
		assert.True(t, status.Running)
		require.NoError(t, s.StopMonitoring())
	}
}

func TestSupervisor_RestartWatcher(t *testing.T) {
	ctx := context.Background()
	s := newTestSupervisor()
	unit := newFakeUnit(true)
	require.NoError(t, s.RegisterUnit("unit", unit))

	require.NoError(t, s.RestartWatcher(ctx, "unit"))
	require.NoError(t, s.RestartWatcher(ctx, "unit"))
	status, err := s.Status("unit")
	require.NoError(t, err)
	assert.Equal(t, 2, status.RestartCount)
	assert.Equal(t, int32(2), unit.starts.Load())
}

func TestSupervisor_Loop(t *testing.T) {
	s := New(WithCheckInterval(5*time.Millisecond), WithStopTimeout(time.Second))
	unit := newFakeUnit(false)
	require.NoError(t, s.RegisterUnit("unit", unit))
	require.NoError(t, s.StartMonitoring(context.Background()))

	assert.Eventually(t, func() bool {
		status, _ := s.Status("unit")
		return status.RestartCount >= 2
	}, time.Second, 5*time.Millisecond)

	started := time.Now()
	require.NoError(t, s.StopMonitoring())
	assert.Less(t, time.Since(started), 500*time.Millisecond)

	status, _ := s.Status("unit")
	count := status.RestartCount
	time.Sleep(30 * time.Millisecond)
	status, _ = s.Status("unit")
	assert.Equal(t, count, status.RestartCount, "no checks after stop")
}

func TestSupervisor_SlowUnitDoesNotBlockOthers(t *testing.T) {
	ctx := context.Background()
	s := newTestSupervisor(WithCheckTimeout(50 * time.Millisecond))
	require.NoError(t, s.Register("slow", nil, func(ctx context.Context) (bool, error) {
		<-ctx.Done()
		return false, ctx.Err()
	}))
	fast := newFakeUnit(false)
	require.NoError(t, s.RegisterUnit("fast", fast))

	started := time.Now()
	require.NoError(t, s.RunCheck(ctx))
	assert.Less(t, time.Since(started), time.Second)

	slow, _ := s.Status("slow")
	assert.Equal(t, 1, slow.RestartCount)
	assert.True(t, slow.Running)
	status, _ := s.Status("fast")
	assert.Equal(t, 1, status.RestartCount)
}

func TestSupervisor_StopTimeout(t *testing.T) {
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	s := New(WithCheckInterval(5*time.Millisecond), WithStopTimeout(20*time.Millisecond))
	require.NoError(t, s.Register("stuck", nil, func(ctx context.Context) (bool, error) {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-release
		return true, nil
	}))
	require.NoError(t, s.StartMonitoring(context.Background()))
	<-entered
	assert.True(t, errors.Is(s.StopMonitoring(), ErrStopTimeout))
	close(release)
}

func TestSupervisor_RestartPolicy(t *testing.T) {
	ctx := context.Background()
	s := newTestSupervisor(WithRestartPolicy(NewRestartPolicy(2, time.Minute, time.Minute)))
	unit := newFakeUnit(false)
	require.NoError(t, s.RegisterUnit("flaky", unit))

	for i := 0; i < 4; i++ {
		require.NoError(t, s.RunCheck(ctx))
	}
	status, _ := s.Status("flaky")
	assert.Equal(t, 2, status.RestartCount)
	assert.Contains(t, status.LastError, "suppressed")
	assert.False(t, status.Running)

	require.NoError(t, s.RestartWatcher(ctx, "flaky"))
	status, _ = s.Status("flaky")
	assert.Equal(t, 3, status.RestartCount)
}

func TestSupervisor_StatusFile(t *testing.T) {
	ctx := context.Background()
	statusFile := NewStatusFile(filepath.Join(t.TempDir(), "watchdog.json"))
	s := newTestSupervisor(WithStatusFile(statusFile))
	require.NoError(t, s.RegisterUnit("a", newFakeUnit(true)))
	require.NoError(t, s.RegisterUnit("b", newFakeUnit(false)))
	require.NoError(t, s.RunCheck(ctx))
	require.NoError(t, s.RunCheck(ctx))

	snapshot, err := statusFile.Read(ctx)
	require.NoError(t, err)
	require.Len(t, snapshot.Watchers, 2)
	assert.Equal(t, "b", snapshot.Watchers[1].Name)
	assert.Equal(t, 2, snapshot.Watchers[1].RestartCount)
	assert.False(t, snapshot.Monitoring)
}
