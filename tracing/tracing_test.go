package tracing

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracingFile(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "span_test.txt")
	require.NoError(t, Init("fluxgate", "0.0.1", fname))

	ctx, span := StartSpan(context.Background(), "approval.processQueue", KindInternal)
	span.WithAttributes(map[string]string{"k": "v"}).WithInt("expired", 1)
	_, child := StartSpan(ctx, "approval.execute", KindClient)
	EndSpan(child, errors.New("executor unavailable"))
	EndSpan(span, nil)

	data, err := os.ReadFile(fname)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
	assert.Contains(t, string(data), "approval.processQueue")
}

func TestNilSpan(t *testing.T) {
	var span *Span
	assert.NotPanics(t, func() {
		span.WithAttributes(map[string]string{"a": "b"})
		span.SetStatus(nil)
		EndSpan(span, nil)
	})
}
