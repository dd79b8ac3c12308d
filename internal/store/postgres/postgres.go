package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"

	"smartpdv/backend/internal/domain"
	"smartpdv/backend/internal/store"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Store keeps the document in the single row of app_state as JSONB.
type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, store.Wrap("open postgres", err)
	}

	db.SetMaxIdleConns(4)
	db.SetMaxOpenConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, store.Wrap("ping postgres", err)
	}

	return &Store{db: db}, nil
}

// Migrate applies the embedded schema migrations.
func Migrate(databaseURL string) error {
	source, err := iofs.New(migrations, "migrations")
	if err != nil {
		return store.Wrap("load migrations", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", source, databaseURL)
	if err != nil {
		return store.Wrap("init migrations", err)
	}
	defer func() {
		_, _ = m.Close()
	}()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return store.Wrap("apply migrations", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Load(ctx context.Context) (*domain.Document, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, `SELECT document FROM app_state WHERE id = 1`).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NewDocument(), nil
	}
	if err != nil {
		return nil, store.Wrap("load document", err)
	}

	doc, err := domain.DecodeDocument(raw)
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
		VALUES (1, $1::jsonb, $2, now())
		ON CONFLICT (id)
		DO UPDATE SET document = EXCLUDED.document, revision = EXCLUDED.revision, updated_at = now()
	`, string(raw), doc.Revision)
	if err != nil {
		return store.Wrap("save document", fmt.Errorf("upsert app_state: %w", err))
	}
	return nil
}
