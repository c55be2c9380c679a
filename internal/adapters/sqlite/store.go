// Package sqlite contains SQLite implementations of repository interfaces.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/flotilla/internal/ports/secondary"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx, so every repository can run
// against the plain connection or inside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements secondary.Store over one *sql.DB.
type Store struct {
	db *sql.DB
}

// NewStore creates a new SQLite store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Repositories returns repositories bound to the plain connection.
func (s *Store) Repositories() secondary.Repositories {
	return bind(s.db)
}

// WithinTx runs fn in one transaction. With _txlock=immediate the write lock
// is taken at BEGIN, so concurrent writers queue on busy_timeout instead of
// failing at commit. fn must only use the repositories it is handed.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx secondary.Repositories) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, bind(tx)); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func bind(db DBTX) secondary.Repositories {
	return secondary.Repositories{
		Events:      NewEventRepository(db),
		Missions:    NewMissionRepository(db),
		Sorties:     NewSortieRepository(db),
		Locks:       NewLockRepository(db),
		Messages:    NewMessageRepository(db),
		Checkpoints: NewCheckpointRepository(db),
	}
}

// timeLayout is fixed-width so stored timestamps sort as text and round-trip
// to the nanosecond.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func toJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode column: %w", err)
	}
	return string(data), nil
}

func fromJSON(s string, v any) error {
	if s == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(s), v); err != nil {
		return fmt.Errorf("failed to decode column: %w", err)
	}
	return nil
}

// stringList encodes nil as [] so columns never hold "null".
func stringList(list []string) (string, error) {
	if list == nil {
		list = []string{}
	}
	return toJSON(list)
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	b := make([]byte, 0, n*3)
	for i := 0; i < n; i++ {
		if i > 0 {
			b = append(b, ", "...)
		}
		b = append(b, '?')
	}
	return string(b)
}

func stringArgs(values []string) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}

var _ secondary.Store = (*Store)(nil)
