// Package file executes approved FILE_OPERATION requests with viant/afs, so
// sources and destinations may be local paths or any afs supported URL.
package file

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"
	"github.com/viant/fluxgate/model/types"
	"github.com/viant/fluxgate/service/approval"
)

// Service performs file moves, copies, writes and deletes.
type Service struct {
	fs      afs.Service
	baseURL string
}

// Option customises the service.
type Option func(s *Service)

// WithFileSystem replaces the afs service.
func WithFileSystem(fs afs.Service) Option {
	return func(s *Service) { s.fs = fs }
}

// WithBaseURL resolves relative locations against baseURL.
func WithBaseURL(baseURL string) Option {
	return func(s *Service) { s.baseURL = baseURL }
}

// New creates a file operation executor.
func New(options ...Option) *Service {
	ret := &Service{fs: afs.New()}
	for _, option := range options {
		option(ret)
	}
	return ret
}

// Execute implements approval.Executor.
func (s *Service) Execute(ctx context.Context, payload approval.Payload) (string, error) {
	op, ok := payload.(*approval.FileOperationPayload)
	if !ok {
		return "", types.NewPermanentError(fmt.Errorf("unsupported payload %T", payload))
	}
	if err := op.Validate(); err != nil {
		return "", types.NewPermanentError(err)
	}
	source, destination := s.location(op.Source), s.location(op.Destination)
	switch strings.ToLower(op.Operation) {
	case "write":
		if err := s.fs.Upload(ctx, destination, file.DefaultFileOsMode, bytes.NewReader([]byte(op.Content))); err != nil {
			return "", fmt.Errorf("failed to write %s: %w", destination, err)
		}
		return fmt.Sprintf("wrote %d bytes (%s) to %s", len(op.Content), ContentType(url.Path(destination)), destination), nil
	case "copy":
		if err := s.ensureSource(ctx, source); err != nil {
			return "", err
		}
		if err := s.fs.Copy(ctx, source, destination); err != nil {
			return "", fmt.Errorf("failed to copy %s: %w", source, err)
		}
		return fmt.Sprintf("copied %s to %s", source, destination), nil
	case "move":
		if err := s.ensureSource(ctx, source); err != nil {
			return "", err
		}
		if err := s.fs.Move(ctx, source, destination); err != nil {
			return "", fmt.Errorf("failed to move %s: %w", source, err)
		}
		return fmt.Sprintf("moved %s to %s", source, destination), nil
	case "delete":
		exists, err := s.fs.Exists(ctx, source)
		if err != nil {
			return "", fmt.Errorf("failed to check %s: %w", source, err)
		}
		if !exists {
			return fmt.Sprintf("%s already absent", source), nil
		}
		if err = s.fs.Delete(ctx, source); err != nil {
			return "", fmt.Errorf("failed to delete %s: %w", source, err)
		}
		return fmt.Sprintf("deleted %s", source), nil
	}
	return "", types.NewPermanentError(fmt.Errorf("unsupported operation %q", op.Operation))
}

// ensureSource fails permanently when source does not exist; retrying would not help.
func (s *Service) ensureSource(ctx context.Context, source string) error {
	exists, err := s.fs.Exists(ctx, source)
	if err != nil {
		return fmt.Errorf("failed to check %s: %w", source, err)
	}
	if !exists {
		return types.NewPermanentError(fmt.Errorf("source %s does not exist", source))
	}
	return nil
}

// location resolves relative paths against the base URL; absolute paths and URLs pass through.
func (s *Service) location(location string) string {
	if location == "" || s.baseURL == "" || strings.HasPrefix(location, "/") || strings.Contains(location, "://") {
		return location
	}
	return url.Join(s.baseURL, location)
}

var _ approval.Executor = (*Service)(nil)
