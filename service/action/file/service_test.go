package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/fluxgate/model/types"
	"github.com/viant/fluxgate/service/approval"
)

func TestService_Execute(t *testing.T) {
	type testCase struct {
		name      string
		payload   approval.Payload
		permanent bool
		expectErr bool
		check     func(t *testing.T, dir string)
	}

	tests := []testCase{
		{
			name:    "write",
			payload: &approval.FileOperationPayload{Operation: "write", Destination: "out/report.md", Content: "# weekly"},
			check: func(t *testing.T, dir string) {
				data, err := os.ReadFile(filepath.Join(dir, "out", "report.md"))
				require.NoError(t, err)
				assert.Equal(t, "# weekly", string(data))
			},
		},
		{
			name:    "copy",
			payload: &approval.FileOperationPayload{Operation: "copy", Source: "seed.txt", Destination: "copy.txt"},
			check: func(t *testing.T, dir string) {
				assert.FileExists(t, filepath.Join(dir, "copy.txt"))
				assert.FileExists(t, filepath.Join(dir, "seed.txt"))
			},
		},
		{
			name:    "move",
			payload: &approval.FileOperationPayload{Operation: "move", Source: "seed.txt", Destination: "moved.txt"},
			check: func(t *testing.T, dir string) {
				assert.FileExists(t, filepath.Join(dir, "moved.txt"))
				assert.NoFileExists(t, filepath.Join(dir, "seed.txt"))
			},
		},
		{
			name:    "delete",
			payload: &approval.FileOperationPayload{Operation: "delete", Source: "seed.txt"},
			check: func(t *testing.T, dir string) {
				assert.NoFileExists(t, filepath.Join(dir, "seed.txt"))
			},
		},
		{
			name:      "missing source",
			payload:   &approval.FileOperationPayload{Operation: "move", Source: "absent.txt", Destination: "x.txt"},
			expectErr: true,
			permanent: true,
		},
		{
			name:      "wrong payload",
			payload:   &approval.CustomPayload{Kind: "noop"},
			expectErr: true,
			permanent: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, "seed.txt"), []byte("seed"), 0o644))
			srv := New(WithBaseURL(dir))

			summary, err := srv.Execute(context.Background(), tc.payload)
			if tc.expectErr {
				require.Error(t, err)
				assert.Equal(t, tc.permanent, types.IsPermanent(err))
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, summary)
			tc.check(t, dir)
		})
	}
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "text/markdown", ContentType("notes.md"))
	assert.Equal(t, "application/octet-stream", ContentType("binary"))
}
