package idgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrefixed(t *testing.T) {
	type testCase struct {
		name     string
		prefix   string
		expected string
	}

	tests := []testCase{
		{name: "prefix", prefix: "apr", expected: "apr-fixed"},
		{name: "no prefix", expected: "fixed"},
	}

	previous := NewFunc
	NewFunc = func() string { return "fixed" }
	t.Cleanup(func() { NewFunc = previous })
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Prefixed(tc.prefix))
		})
	}
}
