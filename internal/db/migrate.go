package db

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"

	migrate "github.com/rubenv/sql-migrate"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

const dialect = "sqlite3"

// migrationSource prefers an on-disk directory and falls back to the embedded files.
func migrationSource(dir string) (migrate.MigrationSource, error) {
	if dir != "" {
		info, err := os.Stat(dir)
		switch {
		case err == nil && info.IsDir():
			return &migrate.FileMigrationSource{Dir: dir}, nil
		case err != nil && !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("read migrations: %w", err)
		}
	}
	return &migrate.EmbedFileSystemMigrationSource{FileSystem: embeddedMigrations, Root: "migrations"}, nil
}

// RunMigrations applies every pending up migration and returns how many ran.
func RunMigrations(db *sql.DB, migrationsDir string) (int, error) {
	src, err := migrationSource(migrationsDir)
	if err != nil {
		return 0, err
	}
	n, err := migrate.Exec(db, dialect, src, migrate.Up)
	if err != nil {
		return n, fmt.Errorf("apply migrations: %w", err)
	}
	return n, nil
}

// RollbackMigrations undoes at most steps migrations.
func RollbackMigrations(db *sql.DB, migrationsDir string, steps int) (int, error) {
	if steps <= 0 {
		return 0, errors.New("steps must be positive")
	}
	src, err := migrationSource(migrationsDir)
	if err != nil {
		return 0, err
	}
	n, err := migrate.ExecMax(db, dialect, src, migrate.Down, steps)
	if err != nil {
		return n, fmt.Errorf("rollback migrations: %w", err)
	}
	return n, nil
}
