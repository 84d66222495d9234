package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/option"
	"github.com/viant/afs/url"
	"github.com/viant/fluxgate/service/dao"
	"github.com/viant/fluxgate/service/dao/criteria"
)

// Store persists entities as one JSON document per id under baseURL.
// baseURL can be a local path or any URL supported by afs.
type Store[T any] struct {
	baseURL        string
	fs             afs.Service
	mu             sync.RWMutex
	keySelector    dao.KeyFunc[string, T]
	statusSelector dao.StatusFunc[T]
	logger         *slog.Logger
}

// Save persists an entity.
func (s *Store[T]) Save(ctx context.Context, entity *T) error {
	if entity == nil {
		return dao.ErrNilEntity
	}
	id := s.keySelector(entity)
	if id == "" {
		return dao.ErrInvalidID
	}
	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	URL := s.entityURL(id)
	if err = s.fs.Upload(ctx, URL, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to save %s: %w", URL, err)
	}
	return nil
}

// Load reads an entity or returns dao.ErrNotFound.
func (s *Store[T]) Load(ctx context.Context, id string) (*T, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	URL := s.entityURL(id)
	exists, err := s.fs.Exists(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to check %s: %w", URL, err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", dao.ErrNotFound, id)
	}
	data, err := s.fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", URL, err)
	}
	var entity T
	if err := json.Unmarshal(data, &entity); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", URL, err)
	}
	return &entity, nil
}

// Delete removes an entity document.
func (s *Store[T]) Delete(ctx context.Context, id string) error {
	if id == "" {
		return dao.ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	URL := s.entityURL(id)
	exists, err := s.fs.Exists(ctx, URL)
	if err != nil {
		return fmt.Errorf("failed to check %s: %w", URL, err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", dao.ErrNotFound, id)
	}
	return s.fs.Delete(ctx, URL)
}

// List returns every stored entity matching the status parameters, sorted by id.
func (s *Store[T]) List(ctx context.Context, parameters ...*dao.Parameter) ([]*T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	objects, err := s.fs.List(ctx, s.baseURL, option.NewRecursive(false))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", s.baseURL, err)
	}
	var result []*T
	for _, object := range objects {
		if object.IsDir() || !strings.HasSuffix(object.Name(), ".json") {
			continue
		}
		data, err := s.fs.Download(ctx, object)
		if err != nil {
			s.logger.Warn("skipping unreadable document", "url", object.URL(), "error", err)
			continue
		}
		var entity T
		if err := json.Unmarshal(data, &entity); err != nil {
			s.logger.Warn("skipping malformed document", "url", object.URL(), "error", err)
			continue
		}
		if s.statusSelector != nil && !criteria.FilterByStatus(s.statusSelector(&entity), parameters) {
			continue
		}
		result = append(result, &entity)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return s.keySelector(result[i]) < s.keySelector(result[j])
	})
	return result, nil
}

func (s *Store[T]) entityURL(id string) string {
	return url.Join(s.baseURL, path.Base(id)+".json")
}

// Option customises the store.
type Option[T any] func(s *Store[T])

// WithLogger sets the logger used for skipped documents.
func WithLogger[T any](logger *slog.Logger) Option[T] {
	return func(s *Store[T]) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithFileSystem replaces the afs service.
func WithFileSystem[T any](fs afs.Service) Option[T] {
	return func(s *Store[T]) {
		if fs != nil {
			s.fs = fs
		}
	}
}

// New creates a store rooted at baseURL, creating the location when missing.
func New[T any](ctx context.Context, baseURL string, keySelector dao.KeyFunc[string, T], statusSelector dao.StatusFunc[T], options ...Option[T]) (*Store[T], error) {
	if baseURL == "" {
		return nil, errors.New("base URL cannot be empty")
	}
	ret := &Store[T]{
		baseURL:        url.Normalize(baseURL, file.Scheme),
		fs:             afs.New(),
		keySelector:    keySelector,
		statusSelector: statusSelector,
		logger:         slog.Default(),
	}
	for _, opt := range options {
		opt(ret)
	}
	exists, _ := ret.fs.Exists(ctx, ret.baseURL)
	if !exists {
		if err := ret.fs.Create(ctx, ret.baseURL, file.DefaultDirOsMode, true); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", ret.baseURL, err)
		}
	}
	return ret, nil
}

var _ dao.Service[string, struct{}] = (*Store[struct{}])(nil)
