package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"image-vault/internal/collection"
	"image-vault/internal/logging"
	"image-vault/internal/metrics"
)

// UpsertCacheFolder writes one configured cache folder, keyed by path.
// Usage statistics of an existing row are preserved; configuration fields
// are replaced.
func (d *Database) UpsertCacheFolder(ctx context.Context, f *collection.CacheFolder) error {
	start := time.Now()
	var err error
	defer func() { observe("upsert_cache_folder", start, err) }()

	if f.ID == "" {
		f.ID = uuid.NewString()
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO cache_folders (id, name, path, priority, max_size, current_size, file_count, active, last_used)
		VALUES (?, ?, ?, ?, ?, 0, 0, ?, 0)
		ON CONFLICT(path) DO UPDATE SET
			name = excluded.name,
			priority = excluded.priority,
			max_size = excluded.max_size,
			active = excluded.active`,
		f.ID, f.Name, f.Path, f.Priority, f.MaxSize, boolToInt(f.Active),
	)
	if err != nil {
		err = fmt.Errorf("failed to upsert cache folder %s: %w", f.Path, err)
	}
	return err
}

// ListCacheFolders returns every configured cache folder ordered by
// priority then path, giving the selector a stable folder ordering.
func (d *Database) ListCacheFolders(ctx context.Context) ([]collection.CacheFolder, error) {
	start := time.Now()
	var err error
	defer func() { observe("list_cache_folders", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	rows, queryErr := d.db.QueryContext(ctx, `
		SELECT id, name, path, priority, max_size, current_size, file_count, active, last_used
		FROM cache_folders ORDER BY priority DESC, path`)
	if queryErr != nil {
		err = fmt.Errorf("failed to list cache folders: %w", queryErr)
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logging.Error("failed to close rows: %v", err)
		}
	}()

	var folders []collection.CacheFolder
	for rows.Next() {
		var f collection.CacheFolder
		var active int
		var lastUsed int64
		if err = rows.Scan(&f.ID, &f.Name, &f.Path, &f.Priority, &f.MaxSize, &f.CurrentSize, &f.FileCount, &active, &lastUsed); err != nil {
			err = fmt.Errorf("failed to scan cache folder row: %w", err)
			return nil, err
		}
		f.Active = active != 0
		f.LastUsed = time.Unix(lastUsed, 0)
		folders = append(folders, f)
	}
	err = rows.Err()
	return folders, err
}

// RecomputeFolderStats derives a folder's usage from the authoritative
// artifact metadata sums and persists it. Recomputing instead of tracking
// increments keeps the statistics self-correcting after partial failures.
func (d *Database) RecomputeFolderStats(ctx context.Context, folderID string) error {
	start := time.Now()
	var err error
	defer func() { observe("recompute_folder_stats", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	var size, count int64
	if err = d.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(size), 0), COUNT(*) FROM artifacts WHERE folder_id = ?`,
		folderID).Scan(&size, &count); err != nil {
		err = fmt.Errorf("failed to sum artifacts for folder %s: %w", folderID, err)
		return err
	}

	if _, err = d.db.ExecContext(ctx, `
		UPDATE cache_folders SET current_size = ?, file_count = ?, last_used = ?
		WHERE id = ?`,
		size, count, time.Now().Unix(), folderID); err != nil {
		err = fmt.Errorf("failed to update folder stats %s: %w", folderID, err)
		return err
	}

	metrics.FolderBytesUsed.WithLabelValues(folderID).Set(float64(size))
	metrics.FolderFileCount.WithLabelValues(folderID).Set(float64(count))
	return nil
}

// RecomputeAllFolderStats refreshes usage statistics for every folder.
func (d *Database) RecomputeAllFolderStats(ctx context.Context) error {
	folders, err := d.ListCacheFolders(ctx)
	if err != nil {
		return err
	}
	for _, f := range folders {
		if err := d.RecomputeFolderStats(ctx, f.ID); err != nil {
			logging.Error("failed to recompute stats for folder %s: %v", f.Name, err)
		}
	}
	return nil
}
