package repomanager

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/avolkov/filevault/internal/dbx"
	"github.com/avolkov/filevault/internal/server/migrations"
	"github.com/avolkov/filevault/internal/server/repositories/items"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// PostgresManager binds repositories to Postgres handles.
type PostgresManager struct{}

func NewPostgresManager() *PostgresManager {
	return &PostgresManager{}
}

func (m *PostgresManager) Items(db dbx.DBTX) items.Repository {
	return items.NewPostgresRepository(db)
}

// OpenPostgres opens a pgx-backed database handle and applies the embedded
// goose migrations.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return nil, fmt.Errorf("migration dialect error: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	return db, nil
}
