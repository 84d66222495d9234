package store

import (
	"context"
	"sort"
	"sync"

	"github.com/viant/fluxgate/service/dao"
	"github.com/viant/fluxgate/service/dao/criteria"
)

// MemoryStore is a generic in-memory implementation of dao.Service.
// Entities are keyed by keySelector; when statusSelector is set List honours
// status parameters.
type MemoryStore[K comparable, T any] struct {
	mu             sync.RWMutex
	records        map[K]*T
	keySelector    dao.KeyFunc[K, T]
	statusSelector dao.StatusFunc[T]
}

// NewMemoryStore creates a new MemoryStore.
func NewMemoryStore[K comparable, T any](keySelector dao.KeyFunc[K, T], statusSelector dao.StatusFunc[T]) *MemoryStore[K, T] {
	return &MemoryStore[K, T]{
		records:        make(map[K]*T),
		keySelector:    keySelector,
		statusSelector: statusSelector,
	}
}

// Save stores or overwrites a record.
func (s *MemoryStore[K, T]) Save(_ context.Context, v *T) error {
	if v == nil {
		return dao.ErrNilEntity
	}
	key := s.keySelector(v)
	var zero K
	if key == zero {
		return dao.ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = v
	return nil
}

// Load returns a record by key or dao.ErrNotFound.
func (s *MemoryStore[K, T]) Load(_ context.Context, key K) (*T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.records[key]
	if !ok {
		return nil, dao.ErrNotFound
	}
	return v, nil
}

// Delete removes a record.
func (s *MemoryStore[K, T]) Delete(_ context.Context, key K) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[key]; !ok {
		return dao.ErrNotFound
	}
	delete(s.records, key)
	return nil
}

// List returns stored records matching parameters, ordered by key when K is a string.
func (s *MemoryStore[K, T]) List(_ context.Context, parameters ...*dao.Parameter) ([]*T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*T, 0, len(s.records))
	for _, v := range s.records {
		if s.statusSelector != nil && !criteria.FilterByStatus(s.statusSelector(v), parameters) {
			continue
		}
		out = append(out, v)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return lessKey(s.keySelector(out[i]), s.keySelector(out[j]))
	})
	return out, nil
}

func lessKey[K comparable](a, b K) bool {
	as, ok1 := any(a).(string)
	bs, ok2 := any(b).(string)
	if ok1 && ok2 {
		return as < bs
	}
	return false
}
