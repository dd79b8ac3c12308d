// Package sqlite keeps the document in a single-row SQLite table, for
// deployments without a database server.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"smartpdv/backend/internal/domain"
	"smartpdv/backend/internal/store"
)

type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at path and migrates its schema.
// ":memory:" gives a private in-memory database.
func New(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, store.Wrap("open sqlite", err)
	}
	// one connection: every statement sees the same database, including :memory:
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, store.Wrap("migrate sqlite", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS app_state (
			id         INTEGER PRIMARY KEY CHECK (id = 1),
			document   TEXT NOT NULL,
			revision   INTEGER NOT NULL DEFAULT 0,
			updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
		)
	`)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Load(ctx context.Context) (*domain.Document, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT document FROM app_state WHERE id = 1`).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NewDocument(), nil
	}
	if err != nil {
		return nil, store.Wrap("load document", err)
	}

	doc, err := domain.DecodeDocument([]byte(raw))
	if err != nil {
		return nil, store.Wrap("load document", err)
	}
	return doc, nil
}

func (s *Store) Save(ctx context.Context, doc *domain.Document) error {
	raw, err := domain.EncodeDocument(doc)
	if err != nil {
		return store.Wrap("encode document", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO app_state (id, document, revision, updated_at)
		VALUES (1, ?, ?, strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
		ON CONFLICT(id) DO UPDATE SET
			document = excluded.document,
			revision = excluded.revision,
			updated_at = excluded.updated_at
	`, string(raw), doc.Revision)
	if err != nil {
		return store.Wrap("save document", fmt.Errorf("upsert app_state: %w", err))
	}
	return nil
}
