package docsource

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// SQLStore keeps documents in a single table keyed by (collection, id). It
// runs on SQLite (modernc driver) or PostgreSQL (lib/pq).
type SQLStore struct {
	db    *sqlx.DB
	clock func() time.Time
}

const documentsSchema = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	body       TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	PRIMARY KEY (collection, id)
);
`

// NewSQLiteStore opens (or creates) a SQLite database file.
func NewSQLiteStore(dbPath string) (*SQLStore, error) {
	db, err := sqlx.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	return newSQLStore(db)
}

// NewPostgresStore connects using a lib/pq DSN or URL.
func NewPostgresStore(dsn string) (*SQLStore, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return newSQLStore(db)
}

func newSQLStore(db *sqlx.DB) (*SQLStore, error) {
	if _, err := db.Exec(documentsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLStore{db: db, clock: time.Now}, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) Fetch(ctx context.Context, collection, id string) ([]byte, error) {
	if err := validateKey(collection, id); err != nil {
		return nil, err
	}
	var body string
	err := s.db.GetContext(ctx, &body, s.db.Rebind("SELECT body FROM documents WHERE collection = ? AND id = ?"), collection, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(collection, id)
	}
	if err != nil {
		return nil, fmt.Errorf("select %s/%s: %w", collection, id, err)
	}
	return []byte(body), nil
}

func (s *SQLStore) Put(ctx context.Context, collection, id string, body []byte) error {
	if err := validateKey(collection, id); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`INSERT INTO documents (collection, id, body, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (collection, id) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`),
		collection, id, string(body), s.clock().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("upsert %s/%s: %w", collection, id, err)
	}
	return nil
}
