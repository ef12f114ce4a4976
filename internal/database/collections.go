package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"image-vault/internal/collection"
	"image-vault/internal/logging"
)

// CreateCollection inserts a new collection and returns its id. A live
// collection with the same path yields ErrConflict.
func (d *Database) CreateCollection(ctx context.Context, col *collection.Collection) (string, error) {
	start := time.Now()
	var err error
	defer func() { observe("create_collection", start, err) }()

	if col.ID == "" {
		col.ID = uuid.NewString()
	}
	now := time.Now()
	col.CreatedAt = now
	col.UpdatedAt = now

	d.mu.Lock()
	defer d.mu.Unlock()

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO collections (
			id, name, path, type,
			auto_scan, auto_thumbnails, auto_cache,
			thumbnail_width, thumbnail_height, cache_width, cache_height,
			allowed_formats, excluded_paths, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		col.ID, col.Name, col.Path, string(col.Type),
		boolToInt(col.Settings.AutoScan), boolToInt(col.Settings.AutoThumbnails), boolToInt(col.Settings.AutoCache),
		col.Settings.ThumbnailWidth, col.Settings.ThumbnailHeight, col.Settings.CacheWidth, col.Settings.CacheHeight,
		strings.Join(col.Settings.AllowedFormats, ","), strings.Join(col.Settings.ExcludedPaths, ","),
		now.Unix(), now.Unix(),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			err = fmt.Errorf("%w: collection path %s already exists", collection.ErrConflict, col.Path)
			return "", err
		}
		err = fmt.Errorf("failed to insert collection: %w", err)
		return "", err
	}
	return col.ID, nil
}

// GetCollectionByPath loads a live collection by its normalized path,
// including its image entries and artifact records.
func (d *Database) GetCollectionByPath(ctx context.Context, path string) (*collection.Collection, error) {
	return d.getCollection(ctx, "path = ? AND deleted_at IS NULL", path)
}

// GetCollection loads a collection by id.
func (d *Database) GetCollection(ctx context.Context, id string) (*collection.Collection, error) {
	return d.getCollection(ctx, "id = ?", id)
}

func (d *Database) getCollection(ctx context.Context, where string, arg interface{}) (*collection.Collection, error) {
	start := time.Now()
	var err error
	defer func() { observe("get_collection", start, err) }()

	d.mu.RLock()
	row := d.db.QueryRowContext(ctx, `
		SELECT id, name, path, type,
			auto_scan, auto_thumbnails, auto_cache,
			thumbnail_width, thumbnail_height, cache_width, cache_height,
			allowed_formats, excluded_paths, created_at, updated_at, deleted_at
		FROM collections WHERE `+where, arg)

	col, scanErr := scanCollection(row)
	d.mu.RUnlock()
	if scanErr != nil {
		if errors.Is(scanErr, sql.ErrNoRows) {
			err = fmt.Errorf("%w: collection %v", collection.ErrNotFound, arg)
			return nil, err
		}
		err = fmt.Errorf("failed to load collection: %w", scanErr)
		return nil, err
	}

	if err = d.hydrate(ctx, col); err != nil {
		return nil, err
	}
	return col, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCollection(row rowScanner) (*collection.Collection, error) {
	var col collection.Collection
	var colType, allowed, excluded string
	var autoScan, autoThumbs, autoCache int
	var createdAt, updatedAt int64
	var deletedAt sql.NullInt64

	err := row.Scan(
		&col.ID, &col.Name, &col.Path, &colType,
		&autoScan, &autoThumbs, &autoCache,
		&col.Settings.ThumbnailWidth, &col.Settings.ThumbnailHeight,
		&col.Settings.CacheWidth, &col.Settings.CacheHeight,
		&allowed, &excluded, &createdAt, &updatedAt, &deletedAt,
	)
	if err != nil {
		return nil, err
	}

	col.Type = collection.Type(colType)
	col.Settings.AutoScan = autoScan != 0
	col.Settings.AutoThumbnails = autoThumbs != 0
	col.Settings.AutoCache = autoCache != 0
	col.Settings.AllowedFormats = splitList(allowed)
	col.Settings.ExcludedPaths = splitList(excluded)
	col.CreatedAt = time.Unix(createdAt, 0)
	col.UpdatedAt = time.Unix(updatedAt, 0)
	if deletedAt.Valid {
		t := time.Unix(deletedAt.Int64, 0)
		col.DeletedAt = &t
	}
	return &col, nil
}

// hydrate attaches image entries and artifact lists to a collection.
func (d *Database) hydrate(ctx context.Context, col *collection.Collection) error {
	images, err := d.listImages(ctx, col.ID)
	if err != nil {
		return err
	}
	col.Images = images

	thumbs, err := d.ListArtifactsByCollection(ctx, col.ID, collection.KindThumbnail)
	if err != nil {
		return err
	}
	col.Thumbnails = thumbs

	caches, err := d.ListArtifactsByCollection(ctx, col.ID, collection.KindCache)
	if err != nil {
		return err
	}
	col.CacheImages = caches
	return nil
}

// UpdateCollection persists name, type and settings changes.
func (d *Database) UpdateCollection(ctx context.Context, col *collection.Collection) error {
	start := time.Now()
	var err error
	defer func() { observe("update_collection", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	res, execErr := d.db.ExecContext(ctx, `
		UPDATE collections SET
			name = ?, type = ?,
			auto_scan = ?, auto_thumbnails = ?, auto_cache = ?,
			thumbnail_width = ?, thumbnail_height = ?, cache_width = ?, cache_height = ?,
			allowed_formats = ?, excluded_paths = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL`,
		col.Name, string(col.Type),
		boolToInt(col.Settings.AutoScan), boolToInt(col.Settings.AutoThumbnails), boolToInt(col.Settings.AutoCache),
		col.Settings.ThumbnailWidth, col.Settings.ThumbnailHeight, col.Settings.CacheWidth, col.Settings.CacheHeight,
		strings.Join(col.Settings.AllowedFormats, ","), strings.Join(col.Settings.ExcludedPaths, ","),
		time.Now().Unix(), col.ID,
	)
	if execErr != nil {
		err = fmt.Errorf("failed to update collection %s: %w", col.ID, execErr)
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err = fmt.Errorf("%w: collection %s", collection.ErrNotFound, col.ID)
		return err
	}
	return nil
}

// SoftDeleteCollection marks a collection deleted. Rows are never removed.
func (d *Database) SoftDeleteCollection(ctx context.Context, id string) error {
	start := time.Now()
	var err error
	defer func() { observe("soft_delete_collection", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	res, execErr := d.db.ExecContext(ctx,
		`UPDATE collections SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`,
		time.Now().Unix(), id)
	if execErr != nil {
		err = fmt.Errorf("failed to soft delete collection %s: %w", id, execErr)
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err = fmt.Errorf("%w: collection %s", collection.ErrNotFound, id)
		return err
	}
	return nil
}

// ApplySettings persists new settings for a collection and optionally
// triggers a scan of its image entries. forceRescan clears derived state
// (image list and artifact metadata) before rescanning.
func (d *Database) ApplySettings(ctx context.Context, id string, settings collection.Settings, triggerScan, forceRescan bool) error {
	col, err := d.GetCollection(ctx, id)
	if err != nil {
		return err
	}

	col.Settings = settings
	if err := d.UpdateCollection(ctx, col); err != nil {
		return err
	}

	if forceRescan {
		if err := d.ClearCollectionState(ctx, id); err != nil {
			return err
		}
		col.Images = nil
	}

	if triggerScan || forceRescan {
		if err := d.rescan(ctx, col); err != nil {
			return err
		}
	}
	return nil
}

// rescan enumerates images on disk and upserts them, keyed by relative path.
func (d *Database) rescan(ctx context.Context, col *collection.Collection) error {
	if d.ScanImages == nil {
		logging.Warn("no scan function configured, skipping scan of %s", col.Name)
		return nil
	}

	images, err := d.ScanImages(col)
	if err != nil {
		return fmt.Errorf("scan of %s failed: %w", col.Path, err)
	}

	if err := d.UpsertImages(ctx, col.ID, images); err != nil {
		return err
	}
	logging.Info("scanned collection %s: %d images", col.Name, len(images))
	return nil
}

// ClearCollectionState removes all image entries and artifact metadata for
// a collection. Backing artifact files are the sweep's concern.
func (d *Database) ClearCollectionState(ctx context.Context, id string) error {
	start := time.Now()
	var err error
	defer func() { observe("clear_collection_state", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	tx, txErr := d.db.BeginTx(ctx, nil)
	if txErr != nil {
		err = fmt.Errorf("failed to begin transaction: %w", txErr)
		return err
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM artifacts WHERE collection_id = ?`, id); err != nil {
		rollback(tx)
		return fmt.Errorf("failed to clear artifacts: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM images WHERE collection_id = ?`, id); err != nil {
		rollback(tx)
		return fmt.Errorf("failed to clear images: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit clear: %w", err)
	}
	return nil
}

func rollback(tx *sql.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		logging.Error("rollback failed: %v", err)
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
