// Package printer provides a dry-run executor that prints approved actions
// instead of performing them.
package printer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/viant/fluxgate/service/approval"
)

// Service writes one line per executed payload.
type Service struct {
	mu     sync.Mutex
	writer io.Writer
}

// New creates a printer writing to w, or stdout when w is nil.
func New(w io.Writer) *Service {
	if w == nil {
		w = os.Stdout
	}
	return &Service{writer: w}
}

// Execute implements approval.Executor.
func (s *Service) Execute(ctx context.Context, payload approval.Payload) (string, error) {
	if payload == nil {
		return "", fmt.Errorf("nil payload")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err = fmt.Fprintf(s.writer, "[dry-run] %s %s\n", payload.Category(), data); err != nil {
		return "", err
	}
	return fmt.Sprintf("dry-run %s", payload.Category()), nil
}

// Executors returns executors printing every category.
func Executors(w io.Writer) approval.Executors {
	srv := New(w)
	ret := approval.Executors{}
	for _, category := range approval.Categories {
		ret.Register(category, srv)
	}
	return ret
}
