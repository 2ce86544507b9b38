// Embedded-file based schema migrations. Migration SQL lives under
// migrations/<driver>/ and is discovered at runtime from the embedded
// filesystem, so adding a migration requires rebuilding the binary.
//
// Filenames must match NNNN_name.up.sql or NNNN_name.down.sql; the version
// is a four-digit integer and the direction decides apply vs rollback.
//
// Migration system influenced by Authelia's
// https://github.com/authelia/authelia/blob/master/internal/storage/migrations.go

package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
)

//go:embed migrations/**/*.sql
var migrationsFS embed.FS

var reMigrationFilename = regexp.MustCompile(`^(?P<Version>\d{4})\_(?P<Name>[^.]+)\.(?P<Direction>(up|down))\.sql$`)

var ErrUnsupportedMigrationDriver = errors.New("unsupported migration driver")

// SchemaMigration represents a single database migration
type SchemaMigration struct {
	Version int
	Name    string
	Up      bool
	SQL     string
}

func migrationDir(driver string) (string, error) {
	switch driver {
	case "sqlite3":
		return "migrations/sqlite3", nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedMigrationDriver, driver)
	}
}

func parseMigrationFile(path string) (SchemaMigration, error) {
	filename := filepath.Base(path)
	if !reMigrationFilename.MatchString(filename) {
		return SchemaMigration{}, fmt.Errorf("invalid migration filename: %s", filename)
	}

	parts := reMigrationFilename.FindStringSubmatch(filename)

	data, err := migrationsFS.ReadFile(path)
	if err != nil {
		return SchemaMigration{}, fmt.Errorf("failed to read migration file: %w", err)
	}

	version, _ := strconv.Atoi(parts[reMigrationFilename.SubexpIndex("Version")])
	return SchemaMigration{
		Version: version,
		Name:    parts[reMigrationFilename.SubexpIndex("Name")],
		Up:      parts[reMigrationFilename.SubexpIndex("Direction")] == "up",
		SQL:     string(data),
	}, nil
}

// loadUpMigrations returns the up migrations above the prior version, sorted
// ascending.
func loadUpMigrations(driver string, prior int) ([]SchemaMigration, error) {
	dirPath, err := migrationDir(driver)
	if err != nil {
		return nil, err
	}

	entries, err := migrationsFS.ReadDir(dirPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read migration directory: %w", err)
	}

	var migrations []SchemaMigration
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		migration, err := parseMigrationFile(filepath.Join(dirPath, entry.Name()))
		if err != nil {
			slog.Warn("Skipping unparsable migration file", "file", entry.Name(), "error", err)
			continue
		}
		if !migration.Up || migration.Version <= prior {
			continue
		}
		migrations = append(migrations, migration)
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// GetSchemaVersion returns the highest applied migration version, 0 for a
// fresh database.
func (p *SQLProvider) GetSchemaVersion(ctx context.Context) (int, error) {
	var version sql.NullInt64
	err := p.db.GetContext(ctx, &version, `SELECT MAX(version) FROM schema_migrations`)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	if !version.Valid {
		return 0, nil
	}
	return int(version.Int64), nil
}

// runMigrations brings the schema to the latest version. Each migration is
// applied in its own transaction together with its bookkeeping row.
func (p *SQLProvider) runMigrations(driver string) error {
	logger := p.logger.With("driver", driver)

	_, err := p.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	ctx := context.Background()
	current, err := p.GetSchemaVersion(ctx)
	if err != nil {
		return err
	}

	migrations, err := loadUpMigrations(driver, current)
	if err != nil {
		return err
	}
	if len(migrations) == 0 {
		logger.Debug("Schema is up to date", "version", current)
		return nil
	}

	for _, migration := range migrations {
		tx, err := p.db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration transaction: %w", err)
		}
		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %04d_%s failed: %w", migration.Version, migration.Name, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO schema_migrations (version, name) VALUES (?, ?)`,
			migration.Version, migration.Name); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %04d: %w", migration.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %04d: %w", migration.Version, err)
		}
		logger.Info("Applied migration", "version", migration.Version, "name", migration.Name)
	}

	return nil
}
