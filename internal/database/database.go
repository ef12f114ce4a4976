package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"image-vault/internal/collection"
	"image-vault/internal/logging"
	"image-vault/internal/metrics"
	"image-vault/internal/scanner"
)

// Default timeout for database operations
const defaultTimeout = 5 * time.Second

// ScanFunc enumerates the image entries of a collection on disk. It is a
// field so store tests can substitute a fake filesystem.
type ScanFunc func(col *collection.Collection) ([]collection.Image, error)

// Database owns all persistent state: collections with their embedded image
// and artifact lists, cache folder statistics and job records.
type Database struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex

	// ScanImages is invoked by ApplySettings when a scan is triggered.
	ScanImages ScanFunc
}

// New opens (creating if necessary) the sqlite database at dbPath. The
// parent directory must already exist and be writable.
func New(ctx context.Context, dbPath string) (*Database, error) {
	logging.Info("database path: %s", dbPath)

	// WAL mode and busy_timeout prevent "database is locked" errors when
	// generation workers and sweeps overlap.
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_temp_store=MEMORY&_busy_timeout=5000", dbPath)

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
		db:         db,
		dbPath:     dbPath,
		ScanImages: scanner.ListImages,
	}

	if err := d.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	logging.Info("database initialized at %s", dbPath)
	return d, nil
}

func (d *Database) initialize(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS collections (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		path TEXT NOT NULL,
		type TEXT NOT NULL,
		auto_scan INTEGER NOT NULL DEFAULT 1,
		auto_thumbnails INTEGER NOT NULL DEFAULT 1,
		auto_cache INTEGER NOT NULL DEFAULT 0,
		thumbnail_width INTEGER NOT NULL DEFAULT 200,
		thumbnail_height INTEGER NOT NULL DEFAULT 200,
		cache_width INTEGER NOT NULL DEFAULT 1280,
		cache_height INTEGER NOT NULL DEFAULT 1280,
		allowed_formats TEXT NOT NULL DEFAULT '',
		excluded_paths TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		deleted_at INTEGER
	);

	-- Path is unique among live collections only; soft-deleted rows keep
	-- their path without blocking re-onboarding.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_collections_live_path
		ON collections(path) WHERE deleted_at IS NULL;

	CREATE TABLE IF NOT EXISTS images (
		id TEXT PRIMARY KEY,
		collection_id TEXT NOT NULL REFERENCES collections(id),
		file_name TEXT NOT NULL,
		relative_path TEXT NOT NULL,
		size INTEGER NOT NULL DEFAULT 0,
		width INTEGER NOT NULL DEFAULT 0,
		height INTEGER NOT NULL DEFAULT 0,
		format TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		UNIQUE(collection_id, relative_path)
	);

	CREATE INDEX IF NOT EXISTS idx_images_collection ON images(collection_id);

	CREATE TABLE IF NOT EXISTS artifacts (
		id TEXT PRIMARY KEY,
		image_id TEXT NOT NULL REFERENCES images(id),
		collection_id TEXT NOT NULL,
		folder_id TEXT NOT NULL DEFAULT '',
		kind TEXT NOT NULL,
		path TEXT NOT NULL,
		width INTEGER NOT NULL,
		height INTEGER NOT NULL,
		size INTEGER NOT NULL DEFAULT 0,
		format TEXT NOT NULL DEFAULT 'jpeg',
		quality INTEGER NOT NULL DEFAULT 0,
		valid INTEGER NOT NULL DEFAULT 1,
		created_at INTEGER NOT NULL,
		expires_at INTEGER NOT NULL,
		UNIQUE(image_id, kind, width, height)
	);

	CREATE INDEX IF NOT EXISTS idx_artifacts_collection ON artifacts(collection_id, kind);
	CREATE INDEX IF NOT EXISTS idx_artifacts_folder ON artifacts(folder_id);
	CREATE INDEX IF NOT EXISTS idx_artifacts_expiry ON artifacts(expires_at);

	CREATE TABLE IF NOT EXISTS cache_folders (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		path TEXT NOT NULL UNIQUE,
		priority INTEGER NOT NULL DEFAULT 0,
		max_size INTEGER NOT NULL DEFAULT 0,
		current_size INTEGER NOT NULL DEFAULT 0,
		file_count INTEGER NOT NULL DEFAULT 0,
		active INTEGER NOT NULL DEFAULT 1,
		last_used INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'running',
		total INTEGER NOT NULL DEFAULT 0,
		completed INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`

	execCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if _, err := d.db.ExecContext(execCtx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// observe records a query metric with its duration and status.
func observe(operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
