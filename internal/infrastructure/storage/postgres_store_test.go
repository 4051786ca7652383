package storage

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func newTestPostgresStore(t *testing.T) *PostgresStore {
	t.Helper()
	s, err := NewPostgresStore(nil, "", quietLogger())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	s.now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	return s
}

func TestPostgresStoreRejectsBadTable(t *testing.T) {
	t.Parallel()

	if _, err := NewPostgresStore(nil, "kv; DROP TABLE x", nil); err == nil {
		t.Fatalf("expected invalid table error")
	}
}

func TestPostgresStoreQueries(t *testing.T) {
	t.Parallel()

	s := newTestPostgresStore(t)

	query, args, err := s.getQuery("article:u").ToSql()
	if err != nil {
		t.Fatalf("get sql: %v", err)
	}
	if !strings.Contains(query, "FROM kv_entries") || !strings.Contains(query, "key = $1") || !strings.Contains(query, "expires_at IS NULL") {
		t.Fatalf("unexpected get query %s", query)
	}
	if len(args) != 2 || args[0] != "article:u" {
		t.Fatalf("unexpected get args %v", args)
	}

	query, args, err = s.scanQuery("article_").ToSql()
	if err != nil {
		t.Fatalf("scan sql: %v", err)
	}
	if !strings.Contains(query, "key LIKE $1") {
		t.Fatalf("unexpected scan query %s", query)
	}
	if args[0] != `article\_%` {
		t.Fatalf("prefix not escaped: %v", args[0])
	}
}

func TestPostgresStoreUpsertExpiry(t *testing.T) {
	t.Parallel()

	s := newTestPostgresStore(t)

	query, args, err := s.upsertQuery("k", "v", time.Hour).ToSql()
	if err != nil {
		t.Fatalf("upsert sql: %v", err)
	}
	if !strings.HasPrefix(query, "INSERT INTO kv_entries (key,value,expires_at) VALUES ($1,$2,$3)") {
		t.Fatalf("unexpected upsert %s", query)
	}
	if !strings.Contains(query, "ON CONFLICT (key) DO UPDATE") {
		t.Fatalf("missing conflict clause %s", query)
	}
	if exp, ok := args[2].(time.Time); !ok || !exp.Equal(time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected expiry %v", args[2])
	}

	_, args, err = s.upsertQuery("k", "v", 0).ToSql()
	if err != nil {
		t.Fatalf("upsert sql: %v", err)
	}
	if args[2] != nil {
		t.Fatalf("expected nil expiry, got %v", args[2])
	}
}

func TestPostgresStorePurgeCadence(t *testing.T) {
	t.Parallel()

	s := newTestPostgresStore(t)
	current := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return current }

	if !s.purgeDue() {
		t.Fatalf("first write must purge")
	}
	if s.purgeDue() {
		t.Fatalf("purge must not repeat immediately")
	}
	current = current.Add(purgeEvery)
	if !s.purgeDue() {
		t.Fatalf("purge due after interval")
	}
}

func newMockPostgresStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	s, err := NewPostgresStore(db, "", quietLogger())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	s.now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	return s, mock
}

func TestPostgresStoreExists(t *testing.T) {
	t.Parallel()

	s, mock := newMockPostgresStore(t)
	ctx := context.Background()
	existsSQL := regexp.QuoteMeta("SELECT 1 FROM kv_entries WHERE key = $1 AND (expires_at IS NULL OR expires_at > $2) LIMIT 1")

	mock.ExpectQuery(existsSQL).WithArgs("article:a", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectQuery(existsSQL).WithArgs("article:b", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))
	mock.ExpectQuery(existsSQL).WillReturnError(errors.New("connection reset"))

	if ok, err := s.Exists(ctx, "article:a"); err != nil || !ok {
		t.Fatalf("expected hit, got %v %v", ok, err)
	}
	if ok, err := s.Exists(ctx, "article:b"); err != nil || ok {
		t.Fatalf("expected miss, got %v %v", ok, err)
	}
	if _, err := s.Exists(ctx, "article:c"); err == nil {
		t.Fatalf("expected query error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresStoreGet(t *testing.T) {
	t.Parallel()

	s, mock := newMockPostgresStore(t)
	ctx := context.Background()
	getSQL := regexp.QuoteMeta("SELECT value FROM kv_entries WHERE key = $1")

	mock.ExpectQuery(getSQL).WithArgs("analysis:1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(`{"article_id":"1"}`))
	mock.ExpectQuery(getSQL).WithArgs("analysis:2", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"value"}))

	v, err := s.Get(ctx, "analysis:1")
	if err != nil || v != `{"article_id":"1"}` {
		t.Fatalf("unexpected get %q %v", v, err)
	}
	if _, err := s.Get(ctx, "analysis:2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresStoreScanPrefix(t *testing.T) {
	t.Parallel()

	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT key, value FROM kv_entries WHERE key LIKE $1")).
		WithArgs("article:%", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"key", "value"}).
			AddRow("article:a", "one").
			AddRow("article:b", "two"))

	got, err := s.ScanPrefix(context.Background(), "article:")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(got) != 2 || got["article:a"] != "one" || got["article:b"] != "two" {
		t.Fatalf("unexpected scan result %v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresStoreDeletePrefix(t *testing.T) {
	t.Parallel()

	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM kv_entries WHERE key LIKE $1")).
		WithArgs("article:%").
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := s.DeletePrefix(context.Background(), "article:")
	if err != nil || n != 3 {
		t.Fatalf("unexpected delete %d %v", n, err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresStoreWriteSurvivesPurgeFailure(t *testing.T) {
	t.Parallel()

	s, mock := newMockPostgresStore(t)
	repo := NewRepository(s, time.Hour, quietLogger())
	ctx := context.Background()
	url := "https://example.com/a"

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO kv_entries (key,value,expires_at)")).
		WithArgs("article:"+url, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM kv_entries WHERE expires_at <= $1")).
		WillReturnError(errors.New("lock timeout"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM kv_entries")).
		WithArgs("article:"+url, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	article := testArticle("id-1", url, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	if err := repo.Save(ctx, url, article, nil); err != nil {
		t.Fatalf("save must succeed once the upsert committed: %v", err)
	}
	if !repo.Exists(ctx, url) {
		t.Fatalf("expected saved article to exist")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
