// Package database provides SQLite setup, schema migrations, and the Store
// that keeps task run history, notification de-duplication and redeemed
// gift codes.
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"

	"github.com/cfd24/hoyolab-auto/migrations"

	_ "modernc.org/sqlite" //revive:disable:blank-imports
)

// dsnParams are appended to plain file paths.
const dsnParams = "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_time_format=sqlite"

// NewDB opens the SQLite database at dbPath, applies pending migrations and
// returns the connection pool.
func NewDB(dbPath string, logger *slog.Logger) (*sqlx.DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "database")

	db, err := sqlx.Connect("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite doesn't support concurrent writes
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := ApplyMigrations(db.DB, ExtractDBNameFromPath(dbPath), log); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("Error closing database after migration failure", "error", closeErr)
		}
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	log.Info("Database connected and migrations applied", "path", dbPath)
	return db, nil
}

// CloseDB closes the database connection pool.
func CloseDB(db *sqlx.DB, logger *slog.Logger) {
	if db == nil {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := db.Close(); err != nil {
		logger.Error("Error closing database connection", "error", err)
		return
	}
	logger.Info("Database connection closed")
}

// ApplyMigrations runs the embedded migrations against db.
func ApplyMigrations(db *sql.DB, dbName string, logger *slog.Logger) error {
	if db == nil {
		return errors.New("database connection is nil, cannot apply migrations")
	}
	if dbName == "" {
		return errors.New("database name for migration driver is empty")
	}

	sourceDriver, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("failed to create embed source driver instance: %w", err)
	}

	dbDriver, err := sqlite.WithInstance(db, &sqlite.Config{DatabaseName: dbName})
	if err != nil {
		return fmt.Errorf("failed to create sqlite database driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", dbDriver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := migrator.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Debug("No database migrations to apply")
			return nil
		}
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, err := migrator.Version()
	if err == nil {
		logger.Info("Database migrations applied", "version", version, "dirty", dirty)
	}
	return nil
}

// ExtractDBNameFromPath strips a file: prefix and query parameters from a
// possibly URL-formatted path.
func ExtractDBNameFromPath(path string) string {
	path = strings.TrimPrefix(path, "file:")

	if idx := strings.Index(path, "?"); idx != -1 {
		path = path[:idx]
	}

	if decoded, err := url.PathUnescape(path); err == nil {
		return decoded
	}

	return path
}

func dsn(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?" + dsnParams
}
