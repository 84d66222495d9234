package watchdog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRestartPolicy(t *testing.T) {
	type testCase struct {
		name     string
		restarts []time.Duration
		at       time.Duration
		expected bool
	}

	tests := []testCase{
		{name: "empty history", at: 0, expected: true},
		{name: "below limit", restarts: []time.Duration{0}, at: time.Second, expected: true},
		{name: "limit reached", restarts: []time.Duration{0, time.Second}, at: 2 * time.Second, expected: false},
		{name: "cooldown over", restarts: []time.Duration{0, time.Second}, at: 3 * time.Minute, expected: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			base := time.Now()
			p := NewRestartPolicy(2, time.Minute, time.Minute)
			for _, offset := range tc.restarts {
				p.Record("unit", base.Add(offset))
			}
			assert.Equal(t, tc.expected, p.Allow("unit", base.Add(tc.at)))
		})
	}
}

func TestRestartPolicy_Counts(t *testing.T) {
	now := time.Now()
	p := NewRestartPolicy(5, time.Minute, time.Minute)
	p.Record("a", now.Add(-2*time.Minute))
	p.Record("a", now)
	p.Record("b", now)
	assert.Equal(t, 1, p.Count("a", now))
	assert.Equal(t, 2, p.Total(now))
	assert.False(t, p.InCooldown("a", now))
	p.Reset("a")
	assert.Equal(t, 0, p.Count("a", now))
}
