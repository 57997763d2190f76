package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"InfoDigest/internal/config"
)

const sqlitePragmas = "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"

// Open connects to the configured database and verifies the connection.
// SQLite runs with a single writer connection in WAL mode.
func Open(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	var (
		db  *sql.DB
		err error
	)
	switch driver {
	case config.DriverSQLite:
		db, err = sql.Open("sqlite", sqliteDSN(dsn))
		if err == nil {
			db.SetMaxOpenConns(1)
		}
	case config.DriverPostgres:
		db, err = sql.Open("postgres", dsn)
		if err == nil {
			db.SetMaxOpenConns(10)
			db.SetConnMaxIdleTime(5 * time.Minute)
		}
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	return db, nil
}

func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_pragma=") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&" + sqlitePragmas
	}
	return dsn + "?" + sqlitePragmas
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS digests (
		source_url     TEXT PRIMARY KEY,
		content_type   TEXT NOT NULL,
		extracted_text TEXT NOT NULL DEFAULT '',
		title          TEXT NOT NULL DEFAULT '',
		summary        TEXT NOT NULL DEFAULT '',
		key_points     TEXT NOT NULL DEFAULT '[]',
		insight        TEXT NOT NULL DEFAULT '',
		status         TEXT NOT NULL,
		failure_reason TEXT NOT NULL DEFAULT '',
		error_message  TEXT NOT NULL DEFAULT '',
		requested_by   TEXT NOT NULL DEFAULT '',
		user_comment   TEXT NOT NULL DEFAULT '',
		processing_ms  BIGINT NOT NULL DEFAULT 0,
		created_at     BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_digests_created_at ON digests (created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_digests_status ON digests (status)`,
}

// Migrate creates the digests table and its indexes. It is idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range migrations {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
	}
	return nil
}
