// Package sqlite provides a SQLite-backed cooldown store.
//
// Conditional transitions are single UPDATE or DELETE statements guarded by
// the previously read state, so several processes may share one database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/keshon/interkit/internal/cooldown"
	"github.com/keshon/interkit/internal/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store implements cooldown.Store on SQLite.
type Store struct {
	sqlDB *sql.DB
}

var _ cooldown.Store = (*Store)(nil)

// Open opens the database at path and applies migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(cleanPath), 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	dsn := "file:" + cleanPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	if err := applyMigrations(context.Background(), sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close releases the SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// FindAll lists matching records ordered by key.
func (s *Store) FindAll(ctx context.Context, f cooldown.Filter) ([]cooldown.Record, error) {
	query := `SELECT id, expires_at, violation_count FROM cooldowns`
	var args []any
	if !f.ExpiredBy.IsZero() {
		query += ` WHERE expires_at <= ?`
		args = append(args, f.ExpiredBy.UnixMilli())
	}
	query += ` ORDER BY id`

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list cooldowns: %w", err)
	}
	defer rows.Close()

	var records []cooldown.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan cooldown: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cooldowns: %w", err)
	}
	return records, nil
}

// FindByID returns cooldown.ErrNotFound for an absent key.
func (s *Store) FindByID(ctx context.Context, key string) (cooldown.Record, error) {
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, expires_at, violation_count FROM cooldowns WHERE id = ?`, key)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return cooldown.Record{}, cooldown.ErrNotFound
	}
	if err != nil {
		return cooldown.Record{}, fmt.Errorf("get cooldown: %w", err)
	}
	return r, nil
}

// Create inserts r, or returns cooldown.ErrExists when the key is taken.
func (s *Store) Create(ctx context.Context, r cooldown.Record) error {
	res, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO cooldowns (id, expires_at, violation_count) VALUES (?, ?, ?)
ON CONFLICT(id) DO NOTHING
`, r.Key, r.Expires.UnixMilli(), r.Count)
	if err != nil {
		return fmt.Errorf("create cooldown: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("create cooldown: %w", err)
	} else if n == 0 {
		return cooldown.ErrExists
	}
	return nil
}

func (s *Store) IncrementCount(ctx context.Context, prev cooldown.Record) (bool, error) {
	return s.execSwapped(ctx, "increment cooldown", `
UPDATE cooldowns SET violation_count = violation_count + 1
WHERE id = ? AND violation_count = ? AND expires_at = ?
`, prev.Key, prev.Count, prev.Expires.UnixMilli())
}

func (s *Store) UpdateExpiryAndCount(ctx context.Context, prev cooldown.Record, expires time.Time, count int) (bool, error) {
	return s.execSwapped(ctx, "extend cooldown", `
UPDATE cooldowns SET expires_at = ?, violation_count = ?
WHERE id = ? AND violation_count = ? AND expires_at = ?
`, expires.UnixMilli(), count, prev.Key, prev.Count, prev.Expires.UnixMilli())
}

func (s *Store) DeleteByID(ctx context.Context, key string) error {
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM cooldowns WHERE id = ?`, key); err != nil {
		return fmt.Errorf("delete cooldown: %w", err)
	}
	return nil
}

func (s *Store) DeleteIf(ctx context.Context, prev cooldown.Record) (bool, error) {
	return s.execSwapped(ctx, "delete expired cooldown",
		`DELETE FROM cooldowns WHERE id = ? AND expires_at = ?`,
		prev.Key, prev.Expires.UnixMilli())
}

func (s *Store) DeleteWhere(ctx context.Context, f cooldown.Filter) (int, error) {
	query := `DELETE FROM cooldowns`
	var args []any
	if !f.ExpiredBy.IsZero() {
		query += ` WHERE expires_at <= ?`
		args = append(args, f.ExpiredBy.UnixMilli())
	}
	res, err := s.sqlDB.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete cooldowns: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete cooldowns: %w", err)
	}
	return int(n), nil
}

func (s *Store) execSwapped(ctx context.Context, op, query string, args ...any) (bool, error) {
	res, err := s.sqlDB.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n == 1, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (cooldown.Record, error) {
	var (
		r       cooldown.Record
		expires int64
	)
	if err := row.Scan(&r.Key, &expires, &r.Count); err != nil {
		return cooldown.Record{}, err
	}
	r.Expires = time.UnixMilli(expires).UTC()
	return r, nil
}
