package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"trendforge/importer/internal/database/migrations"
)

// DB represents the database connection
type DB struct {
	*sqlx.DB
	Driver string
}

// NewDB opens the configured database, applies driver specific tuning and
// runs pending migrations unless the connection is read-only.
func NewDB(cfg *Config) (*DB, error) {
	if cfg.MaxIdleConns <= 0 {
		cfg.MaxIdleConns = defaultMaxIdleConns
	}
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = defaultMaxOpenConns
	}

	var (
		db  *sqlx.DB
		err error
	)
	switch cfg.Driver {
	case DriverSQLite:
		db, err = openSQLite(cfg)
	case DriverPostgres:
		db, err = sqlx.Open(DriverPostgres, cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver: %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if cfg.Driver == DriverSQLite {
		applyPragmas(db, cfg)
	}

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err = db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db (%s): %w", modeStr(cfg.ReadOnly), err)
	}

	if !cfg.ReadOnly && !cfg.SkipMigrations {
		log.Info().Str("driver", cfg.Driver).Msg("Running database migrations...")
		migrationFiles, err := migrations.ForDriver(cfg.Driver)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to load migrations: %w", err)
		}

		if err := migrations.RunMigrations(db, migrationFiles); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info().Msg("Database migrations completed successfully")
	}

	log.Info().Str("driver", cfg.Driver).Str("mode", modeStr(cfg.ReadOnly)).Msg("Database connection successful")
	return &DB{DB: db, Driver: cfg.Driver}, nil
}

func openSQLite(cfg *Config) (*sqlx.DB, error) {
	dir := filepath.Dir(cfg.DSN)
	if dir != "." && !strings.HasPrefix(cfg.DSN, "file:") {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory for database: %w", err)
		}
	}

	// WAL mode allows concurrent reads while writing
	dsn := fmt.Sprintf("%s?_journal=WAL&_synchronous=NORMAL&_busy_timeout=%d&_foreign_keys=on",
		cfg.DSN, cfg.BusyTimeoutMS)

	if cfg.ReadOnly {
		dsn += "&mode=ro"
		log.Info().Str("path", cfg.DSN).Msg("Opening database in Read-Only mode")
	} else {
		log.Info().Str("path", cfg.DSN).Msg("Opening database in Read-Write mode")
	}

	return sqlx.Open(DriverSQLite, dsn)
}

func applyPragmas(db *sqlx.DB, cfg *Config) {
	pragmas := []string{
		fmt.Sprintf("PRAGMA cache_size = %d;", cfg.CacheSizeKB),
		"PRAGMA temp_store = MEMORY;",
	}
	if cfg.ReadOnly {
		pragmas = append(pragmas, "PRAGMA query_only = ON;")
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			log.Warn().Err(err).Str("pragma", pragma).Str("mode", modeStr(cfg.ReadOnly)).Msg("Failed to set PRAGMA")
		}
	}
}

// Rollback reverts the last n applied migrations.
func (db *DB) Rollback(n int) error {
	migrationFiles, err := migrations.ForDriver(db.Driver)
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}
	return migrations.RollbackMigrations(db.DB, migrationFiles, n)
}

// Helper for logging
func modeStr(readOnly bool) string {
	if readOnly {
		return "read-only"
	}
	return "read-write"
}
