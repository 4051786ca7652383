package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"

	"NewsStream/internal/ports"
)

const purgeEvery = 5 * time.Minute

var tableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// PostgresStore is a KeyValueStore backed by a single Postgres table with
// per-row expiry.
type PostgresStore struct {
	db    *sql.DB
	table string
	psql  sq.StatementBuilderType
	now    func() time.Time
	logger *slog.Logger

	purgeMu   sync.Mutex
	lastPurge time.Time
}

var _ ports.KeyValueStore = (*PostgresStore)(nil)

// OpenPostgres opens a pooled connection for dsn.
func OpenPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)
	return db, nil
}

// NewPostgresStore wires a sql.DB implementation.
func NewPostgresStore(db *sql.DB, table string, logger *slog.Logger) (*PostgresStore, error) {
	if table == "" {
		table = "kv_entries"
	}
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{
		db:     db,
		table:  table,
		psql:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		now:    time.Now,
		logger: logger,
	}, nil
}

// EnsureSchema creates the backing table when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	query := `CREATE TABLE IF NOT EXISTS ` + s.table + ` (
              key        TEXT PRIMARY KEY,
              value      TEXT NOT NULL,
              expires_at TIMESTAMPTZ
          )`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	return nil
}

// Exists reports whether an unexpired key is present.
func (s *PostgresStore) Exists(ctx context.Context, key string) (bool, error) {
	query, args, err := s.existsQuery(key).ToSql()
	if err != nil {
		return false, fmt.Errorf("build exists: %w", err)
	}
	var found int
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query exists: %w", err)
	}
	return true, nil
}

// Get returns the unexpired value of key or ErrNotFound.
func (s *PostgresStore) Get(ctx context.Context, key string) (string, error) {
	query, args, err := s.getQuery(key).ToSql()
	if err != nil {
		return "", fmt.Errorf("build get: %w", err)
	}
	var value string
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("query get: %w", err)
	}
	return value, nil
}

// SetWithExpiry upserts key; a non-positive ttl stores it without expiry.
// Expired rows are purged at most every five minutes on the write path; a
// failed purge is logged and does not fail the write.
func (s *PostgresStore) SetWithExpiry(ctx context.Context, key, value string, ttl time.Duration) error {
	query, args, err := s.upsertQuery(key, value, ttl).ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert: %w", err)
	}
	if s.purgeDue() {
		if n, err := s.PurgeExpired(ctx); err != nil {
			s.logger.Warn("purge expired rows failed", "table", s.table, "error", err)
		} else if n > 0 {
			s.logger.Debug("purged expired rows", "table", s.table, "count", n)
		}
	}
	return nil
}

func (s *PostgresStore) purgeDue() bool {
	s.purgeMu.Lock()
	defer s.purgeMu.Unlock()

	now := s.now()
	if now.Sub(s.lastPurge) < purgeEvery {
		return false
	}
	s.lastPurge = now
	return true
}

// ScanPrefix returns every unexpired key/value whose key starts with prefix.
func (s *PostgresStore) ScanPrefix(ctx context.Context, prefix string) (map[string]string, error) {
	query, args, err := s.scanQuery(prefix).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build scan: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query scan: %w", err)
	}

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out[k] = v
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}

	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}

	return out, nil
}

// DeletePrefix removes every key starting with prefix.
func (s *PostgresStore) DeletePrefix(ctx context.Context, prefix string) (int64, error) {
	query, args, err := s.psql.Delete(s.table).Where(sq.Like{"key": likePrefix(prefix)}).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete: %w", err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// PurgeExpired deletes rows whose expiry has passed.
func (s *PostgresStore) PurgeExpired(ctx context.Context) (int64, error) {
	query, args, err := s.psql.Delete(s.table).Where(sq.LtOrEq{"expires_at": s.now().UTC()}).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build purge: %w", err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("purge: %w", err)
	}
	return res.RowsAffected()
}

// Ping checks connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres ping: %w", err)
	}
	return nil
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) live() sq.Or {
	return sq.Or{sq.Eq{"expires_at": nil}, sq.Gt{"expires_at": s.now().UTC()}}
}

func (s *PostgresStore) existsQuery(key string) sq.SelectBuilder {
	return s.psql.Select("1").From(s.table).Where(sq.Eq{"key": key}).Where(s.live()).Limit(1)
}

func (s *PostgresStore) getQuery(key string) sq.SelectBuilder {
	return s.psql.Select("value").From(s.table).Where(sq.Eq{"key": key}).Where(s.live())
}

func (s *PostgresStore) scanQuery(prefix string) sq.SelectBuilder {
	return s.psql.Select("key", "value").From(s.table).Where(sq.Like{"key": likePrefix(prefix)}).Where(s.live())
}

func (s *PostgresStore) upsertQuery(key, value string, ttl time.Duration) sq.InsertBuilder {
	var expiresAt any
	if ttl > 0 {
		expiresAt = s.now().UTC().Add(ttl)
	}
	return s.psql.Insert(s.table).
		Columns("key", "value", "expires_at").
		Values(key, value, expiresAt).
		Suffix("ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at")
}

func likePrefix(prefix string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(prefix)
	return escaped + "%"
}
