package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	_ "github.com/glebarez/go-sqlite"
	"github.com/viant/fluxgate/internal/clock"
	"github.com/viant/fluxgate/service/dao"
	"github.com/viant/fluxgate/service/dao/criteria"
)

// Store persists entities as JSON documents in a SQLite table with an
// indexed status column so that list-by-status stays in SQL.
type Store[T any] struct {
	db             *sql.DB
	table          string
	keySelector    dao.KeyFunc[string, T]
	statusSelector dao.StatusFunc[T]
}

// Open opens (or creates) the database at dsn and ensures table exists.
func Open[T any](ctx context.Context, dsn, table string, keySelector dao.KeyFunc[string, T], statusSelector dao.StatusFunc[T]) (*Store[T], error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", dsn, err)
	}
	ret, err := New[T](ctx, db, table, keySelector, statusSelector)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return ret, nil
}

// New wraps an existing database handle.
func New[T any](ctx context.Context, db *sql.DB, table string, keySelector dao.KeyFunc[string, T], statusSelector dao.StatusFunc[T]) (*Store[T], error) {
	if !isIdentifier(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	queries := []string{
		`CREATE TABLE IF NOT EXISTS ` + table + ` (
			id TEXT PRIMARY KEY,
			status TEXT,
			document TEXT NOT NULL,
			updated_at DATETIME
		);`,
		`CREATE INDEX IF NOT EXISTS ` + table + `_status ON ` + table + ` (status);`,
	}
	for _, q := range queries {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return nil, fmt.Errorf("failed to prepare table %s: %w", table, err)
		}
	}
	return &Store[T]{db: db, table: table, keySelector: keySelector, statusSelector: statusSelector}, nil
}

// Save upserts an entity.
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
	status := ""
	if s.statusSelector != nil {
		status = s.statusSelector(entity)
	}
	query := `INSERT INTO ` + s.table + ` (id, status, document, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET status = excluded.status, document = excluded.document, updated_at = excluded.updated_at`
	if _, err = s.db.ExecContext(ctx, query, id, status, string(data), clock.Now().UTC()); err != nil {
		return fmt.Errorf("failed to save %s: %w", id, err)
	}
	return nil
}

// Load reads an entity or returns dao.ErrNotFound.
func (s *Store[T]) Load(ctx context.Context, id string) (*T, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}
	var document string
	err := s.db.QueryRowContext(ctx, `SELECT document FROM `+s.table+` WHERE id = ?`, id).Scan(&document)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", dao.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", id, err)
	}
	return decode[T](document)
}

// Delete removes an entity.
func (s *Store[T]) Delete(ctx context.Context, id string) error {
	if id == "" {
		return dao.ErrInvalidID
	}
	result, err := s.db.ExecContext(ctx, `DELETE FROM `+s.table+` WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", id, err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return fmt.Errorf("%w: %s", dao.ErrNotFound, id)
	}
	return nil
}

// List returns entities ordered by id, filtered by status parameters.
func (s *Store[T]) List(ctx context.Context, parameters ...*dao.Parameter) ([]*T, error) {
	query := `SELECT document FROM ` + s.table
	var args []interface{}
	if statuses := criteria.Statuses(parameters); len(statuses) > 0 {
		query += ` WHERE status IN (?` + strings.Repeat(", ?", len(statuses)-1) + `)`
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	query += ` ORDER BY id`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", s.table, err)
	}
	defer rows.Close()

	var result []*T
	for rows.Next() {
		var document string
		if err := rows.Scan(&document); err != nil {
			return nil, err
		}
		entity, err := decode[T](document)
		if err != nil {
			return nil, err
		}
		result = append(result, entity)
	}
	return result, rows.Err()
}

// Close releases the database handle.
func (s *Store[T]) Close() error {
	return s.db.Close()
}

func decode[T any](document string) (*T, error) {
	var entity T
	if err := json.Unmarshal([]byte(document), &entity); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document: %w", err)
	}
	return &entity, nil
}

func isIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

var _ dao.Service[string, struct{}] = (*Store[struct{}])(nil)
