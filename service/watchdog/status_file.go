package watchdog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"
)

// Snapshot is the supervisor state written to a StatusFile.
type Snapshot struct {
	Timestamp        time.Time      `json:"ts"`
	Monitoring       bool           `json:"monitoring"`
	RestartsInWindow int            `json:"restartsInWindow,omitempty"`
	Watchers         []Registration `json:"watchers"`
}

// StatusFile writes snapshots as JSON, replacing the previous one atomically.
type StatusFile struct {
	URL string
	fs  afs.Service
	mu  sync.Mutex
}

// NewStatusFile creates a status file at URL, a local path or any afs URL.
func NewStatusFile(URL string) *StatusFile {
	return &StatusFile{URL: url.Normalize(URL, file.Scheme), fs: afs.New()}
}

// Write uploads snapshot to a temporary location and moves it over URL.
func (f *StatusFile) Write(ctx context.Context, snapshot *Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}
	tmp := f.URL + ".tmp"
	if err = f.fs.Upload(ctx, tmp, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err = f.fs.Move(ctx, tmp, f.URL); err != nil {
		return fmt.Errorf("failed to replace %s: %w", f.URL, err)
	}
	return nil
}

// Read loads the last written snapshot.
func (f *StatusFile) Read(ctx context.Context) (*Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := f.fs.DownloadWithURL(ctx, f.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", f.URL, err)
	}
	ret := &Snapshot{}
	if err = json.Unmarshal(data, ret); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", f.URL, err)
	}
	return ret, nil
}
