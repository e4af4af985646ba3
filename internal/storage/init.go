package storage

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/pressly/goose/v3"

	_ "github.com/jackc/pgx/v5"
	_ "github.com/lib/pq"

	"imageflow/internal/logger"
)

const migrationPath = "migrations"

func runMigrations(db *sql.DB) error {
	const op = "storage.migrations"

	goose.SetDialect("postgres")

	if err := goose.Up(db, migrationPath); err != nil {
		if errors.Is(err, goose.ErrNoNextVersion) {
			logger.S.Infow("no migrations to apply")
			return nil
		}
		return fmt.Errorf("%s: %v", op, err)
	}
	logger.S.Infow("database migrations applied")
	return nil
}
