package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/woozymasta/gamestatus/assets"
)

const migrationsDir = "migrations"

const migrationTableSchema = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version TEXT PRIMARY KEY,
	applied_at DATETIME
);`

// migration is one embedded SQL file, versioned by its file name.
type migration struct {
	version string
	sql     string
}

// runMigrations applies every embedded migration that is not yet recorded, in file name order.
func runMigrations(db *sql.DB) error {
	if _, err := db.Exec(migrationTableSchema); err != nil {
		return fmt.Errorf("create migration table: %w", err)
	}

	pending, err := loadMigrations()
	if err != nil {
		return err
	}

	for _, m := range pending {
		applied, err := isApplied(db, m.version)
		if err != nil {
			return err
		}
		if applied {
			continue
		}

		log.Info().Str("file", m.version).Msg("applying database migration")
		if err := applyMigration(db, m); err != nil {
			return err
		}
	}

	return nil
}

func loadMigrations() ([]migration, error) {
	entries, err := assets.ReadDir(migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	var out []migration
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		content, err := assets.ReadFile(path.Join(migrationsDir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		out = append(out, migration{version: entry.Name(), sql: string(content)})
	}

	slices.SortFunc(out, func(a, b migration) int {
		return strings.Compare(a.version, b.version)
	})

	return out, nil
}

func isApplied(db *sql.DB, version string) (bool, error) {
	var exists int
	err := db.QueryRow("SELECT 1 FROM schema_migrations WHERE version = ?", version).Scan(&exists)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	default:
		return false, fmt.Errorf("check migration %s: %w", version, err)
	}
}

// applyMigration runs one file and records it in the same transaction.
func applyMigration(db *sql.DB, m migration) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}

	if _, err := tx.Exec(m.sql); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("exec migration %s: %w", m.version, err)
	}

	if _, err := tx.Exec("INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)", m.version, time.Now().UTC()); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("record migration %s: %w", m.version, err)
	}

	return tx.Commit()
}
