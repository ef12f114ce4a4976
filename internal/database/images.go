package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"image-vault/internal/collection"
	"image-vault/internal/logging"
)

// UpsertImages writes image entries in one transaction, keyed by
// (collection, relative path). Existing entries keep their ids so artifact
// references stay valid across rescans.
func (d *Database) UpsertImages(ctx context.Context, collectionID string, images []collection.Image) error {
	start := time.Now()
	var err error
	defer func() { observe("upsert_images", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	tx, txErr := d.db.BeginTx(ctx, nil)
	if txErr != nil {
		err = fmt.Errorf("failed to begin transaction: %w", txErr)
		return err
	}

	now := time.Now().Unix()
	for i := range images {
		img := &images[i]
		if img.ID == "" {
			img.ID = uuid.NewString()
		}
		img.CollectionID = collectionID

		if _, err = tx.ExecContext(ctx, `
			INSERT INTO images (id, collection_id, file_name, relative_path, size, width, height, format, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(collection_id, relative_path) DO UPDATE SET
				file_name = excluded.file_name,
				size = excluded.size,
				width = excluded.width,
				height = excluded.height,
				format = excluded.format`,
			img.ID, collectionID, img.FileName, img.RelativePath,
			img.Size, img.Width, img.Height, img.Format, now,
		); err != nil {
			logging.Warn("failed to upsert image %s: %v", img.RelativePath, err)
		}
	}
	err = nil

	if commitErr := tx.Commit(); commitErr != nil {
		err = fmt.Errorf("failed to commit image upserts: %w", commitErr)
		return err
	}
	return nil
}

// GetImage loads one image entry by id.
func (d *Database) GetImage(ctx context.Context, id string) (*collection.Image, error) {
	start := time.Now()
	var err error
	defer func() { observe("get_image", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	var img collection.Image
	var createdAt int64
	scanErr := d.db.QueryRowContext(ctx, `
		SELECT id, collection_id, file_name, relative_path, size, width, height, format, created_at
		FROM images WHERE id = ?`, id).Scan(
		&img.ID, &img.CollectionID, &img.FileName, &img.RelativePath,
		&img.Size, &img.Width, &img.Height, &img.Format, &createdAt,
	)
	if scanErr != nil {
		if errors.Is(scanErr, sql.ErrNoRows) {
			err = fmt.Errorf("%w: image %s", collection.ErrNotFound, id)
			return nil, err
		}
		err = fmt.Errorf("failed to load image %s: %w", id, scanErr)
		return nil, err
	}
	img.CreatedAt = time.Unix(createdAt, 0)
	return &img, nil
}

func (d *Database) listImages(ctx context.Context, collectionID string) ([]collection.Image, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, collection_id, file_name, relative_path, size, width, height, format, created_at
		FROM images WHERE collection_id = ? ORDER BY file_name COLLATE NOCASE`, collectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logging.Error("failed to close rows: %v", err)
		}
	}()

	var images []collection.Image
	for rows.Next() {
		var img collection.Image
		var createdAt int64
		if err := rows.Scan(
			&img.ID, &img.CollectionID, &img.FileName, &img.RelativePath,
			&img.Size, &img.Width, &img.Height, &img.Format, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan image row: %w", err)
		}
		img.CreatedAt = time.Unix(createdAt, 0)
		images = append(images, img)
	}
	return images, rows.Err()
}
