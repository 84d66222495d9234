package meta

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type document struct {
	Name  string   `json:"name" yaml:"name"`
	Items []string `json:"items" yaml:"items"`
}

func TestService_Load(t *testing.T) {
	type testCase struct {
		name     string
		file     string
		content  string
		expected document
	}

	tests := []testCase{
		{name: "yaml", file: "doc.yaml", content: "name: ${env.META_NAME}\nitems: [a, b]\n", expected: document{Name: "weekly", Items: []string{"a", "b"}}},
		{name: "json", file: "doc.json", content: `{"name":"${env.META_NAME}","items":["c"]}`, expected: document{Name: "weekly", Items: []string{"c"}}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("META_NAME", "weekly")
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, tc.file), []byte(tc.content), 0o644))
			srv := New(nil, dir)

			exists, err := srv.Exists(context.Background(), tc.file)
			require.NoError(t, err)
			assert.True(t, exists)

			var actual document
			require.NoError(t, srv.Load(context.Background(), tc.file, &actual))
			assert.Equal(t, tc.expected, actual)
		})
	}
}

func TestService_LoadMissing(t *testing.T) {
	srv := New(nil, t.TempDir())
	var actual document
	assert.Error(t, srv.Load(context.Background(), "absent.yaml", &actual))
}
