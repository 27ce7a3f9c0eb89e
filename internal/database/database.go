package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"forma-server/internal/logging"
	"forma-server/internal/metrics"
)

// Default timeout for database operations.
const defaultTimeout = 5 * time.Second

// ErrNotFound is returned when a requested record does not exist or has
// been soft-deleted.
var ErrNotFound = errors.New("record not found")

// ErrAssetExists is returned by CreateAsset when a non-deleted asset with
// the same file path is already catalogued. Callers racing on the same path
// (bulk scan vs. live watcher) treat it as "already exists, skip".
var ErrAssetExists = errors.New("asset already exists for path")

// Database manages all catalog operations.
type Database struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

// New opens (or creates) the catalog database at dbPath and initializes the
// schema. The parent directory must already exist and be writable.
func New(ctx context.Context, dbPath string) (*Database, error) {
	logging.Info("Catalog database path: %s", dbPath)

	// WAL mode with a busy timeout keeps concurrent scanner/watcher writes
	// from surfacing "database is locked" errors. Foreign keys must be on
	// for the thumbnail cascade and folder set-null semantics.
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_busy_timeout=5000&_foreign_keys=on", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	d := &Database{
		db:     db,
		dbPath: dbPath,
	}

	if err := d.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	logging.Info("Catalog database initialized at %s", dbPath)
	return d, nil
}

func (d *Database) initialize(ctx context.Context) error {
	done := observeQuery("initialize_schema")

	schema := `
	CREATE TABLE IF NOT EXISTS watched_folders (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		path TEXT NOT NULL UNIQUE,
		enabled INTEGER NOT NULL DEFAULT 1,
		last_scanned INTEGER,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE TABLE IF NOT EXISTS assets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		description TEXT,
		file_path TEXT NOT NULL,
		file_size INTEGER NOT NULL DEFAULT 0,
		tags TEXT,
		folder_id INTEGER,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		is_deleted INTEGER NOT NULL DEFAULT 0,
		FOREIGN KEY (folder_id) REFERENCES watched_folders(id) ON DELETE SET NULL
	);

	-- Uniqueness is scoped to live rows so a path can be catalogued again
	-- after its asset was soft-deleted.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_assets_path_active
		ON assets(file_path) WHERE is_deleted = 0;

	CREATE INDEX IF NOT EXISTS idx_assets_name ON assets(name COLLATE NOCASE);
	CREATE INDEX IF NOT EXISTS idx_assets_folder ON assets(folder_id);
	CREATE INDEX IF NOT EXISTS idx_assets_deleted ON assets(is_deleted);

	CREATE TABLE IF NOT EXISTS thumbnails (
		asset_id INTEGER PRIMARY KEY,
		data BLOB NOT NULL,
		updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		FOREIGN KEY (asset_id) REFERENCES assets(id) ON DELETE CASCADE
	);
	`

	_, err := d.db.ExecContext(ctx, schema)
	if err != nil {
		done(err)
		return err
	}

	err = d.runMigrations(ctx)
	done(err)
	return err
}

// runMigrations applies schema migrations for databases created by older
// builds.
func (d *Database) runMigrations(ctx context.Context) error {
	// Migration 1: add is_deleted to assets if it doesn't exist.
	var columnExists bool
	err := d.db.QueryRowContext(ctx, `
		SELECT COUNT(*) > 0
		FROM pragma_table_info('assets')
		WHERE name='is_deleted'
	`).Scan(&columnExists)
	if err != nil {
		return fmt.Errorf("failed to check for is_deleted column: %w", err)
	}

	if !columnExists {
		logging.Info("Migrating database: adding is_deleted column to assets table")
		_, err = d.db.ExecContext(ctx, `
			ALTER TABLE assets ADD COLUMN is_deleted INTEGER NOT NULL DEFAULT 0
		`)
		if err != nil {
			return fmt.Errorf("failed to add is_deleted column: %w", err)
		}
	}

	return nil
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// UpdateDBMetrics refreshes database connection gauges.
func (d *Database) UpdateDBMetrics() {
	stats := d.db.Stats()
	metrics.DBConnectionsOpen.Set(float64(stats.OpenConnections))
}

// UpdateDBMetricsLoop refreshes the connection gauges every interval until
// ctx is cancelled.
func (d *Database) UpdateDBMetricsLoop(ctx context.Context, interval time.Duration) {
	d.UpdateDBMetrics()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.UpdateDBMetrics()
		}
	}
}

// observeQuery starts timing a database operation and returns a function to
// record its outcome.
func observeQuery(operation string) func(error) {
	start := time.Now()
	return func(err error) {
		duration := time.Since(start).Seconds()
		status := "success"
		if err != nil && !errors.Is(err, ErrNotFound) {
			status = "error"
		}
		metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
		metrics.DBQueryDuration.WithLabelValues(operation).Observe(duration)
	}
}
