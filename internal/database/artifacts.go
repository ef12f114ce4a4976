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

// UpsertArtifact records artifact metadata. A new generation for the same
// image, kind and target dimensions replaces the previous record rather
// than appending a duplicate.
func (d *Database) UpsertArtifact(ctx context.Context, a *collection.Artifact) error {
	start := time.Now()
	var err error
	defer func() { observe("upsert_artifact", start, err) }()

	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	// On conflict the row keeps its original id; RETURNING feeds it back
	// so the caller's record matches what is actually stored.
	err = d.db.QueryRowContext(ctx, `
		INSERT INTO artifacts (id, image_id, collection_id, folder_id, kind, path, width, height, size, format, quality, valid, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(image_id, kind, width, height) DO UPDATE SET
			collection_id = excluded.collection_id,
			folder_id = excluded.folder_id,
			path = excluded.path,
			size = excluded.size,
			format = excluded.format,
			quality = excluded.quality,
			valid = excluded.valid,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at
		RETURNING id`,
		a.ID, a.ImageID, a.CollectionID, a.FolderID, string(a.Kind), a.Path,
		a.Width, a.Height, a.Size, a.Format, a.Quality, boolToInt(a.Valid),
		a.CreatedAt.Unix(), a.ExpiresAt.Unix(),
	).Scan(&a.ID)
	if err != nil {
		err = fmt.Errorf("failed to upsert artifact for image %s: %w", a.ImageID, err)
		return err
	}
	return nil
}

// GetArtifact loads the artifact record for one image, kind and target size.
func (d *Database) GetArtifact(ctx context.Context, imageID string, kind collection.ArtifactKind, width, height int) (*collection.Artifact, error) {
	start := time.Now()
	var err error
	defer func() { observe("get_artifact", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	row := d.db.QueryRowContext(ctx, artifactSelect+`
		WHERE image_id = ? AND kind = ? AND width = ? AND height = ?`,
		imageID, string(kind), width, height)

	a, scanErr := scanArtifact(row)
	if scanErr != nil {
		if errors.Is(scanErr, sql.ErrNoRows) {
			err = fmt.Errorf("%w: artifact for image %s", collection.ErrNotFound, imageID)
			return nil, err
		}
		err = fmt.Errorf("failed to load artifact: %w", scanErr)
		return nil, err
	}
	return a, nil
}

// InvalidateArtifact flips the validity flag off, used when the backing
// file turns out to be missing.
func (d *Database) InvalidateArtifact(ctx context.Context, id string) error {
	start := time.Now()
	var err error
	defer func() { observe("invalidate_artifact", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	_, err = d.db.ExecContext(ctx, `UPDATE artifacts SET valid = 0 WHERE id = ?`, id)
	if err != nil {
		err = fmt.Errorf("failed to invalidate artifact %s: %w", id, err)
	}
	return err
}

// DeleteArtifact removes an artifact metadata record.
func (d *Database) DeleteArtifact(ctx context.Context, id string) error {
	start := time.Now()
	var err error
	defer func() { observe("delete_artifact", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	_, err = d.db.ExecContext(ctx, `DELETE FROM artifacts WHERE id = ?`, id)
	if err != nil {
		err = fmt.Errorf("failed to delete artifact %s: %w", id, err)
	}
	return err
}

// ListArtifactsByCollection returns all artifacts of one kind for a collection.
func (d *Database) ListArtifactsByCollection(ctx context.Context, collectionID string, kind collection.ArtifactKind) ([]collection.Artifact, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return d.queryArtifacts(ctx, `WHERE collection_id = ? AND kind = ?`, collectionID, string(kind))
}

// ListExpiredArtifacts returns artifacts whose expiry timestamp has passed.
func (d *Database) ListExpiredArtifacts(ctx context.Context, now time.Time) ([]collection.Artifact, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return d.queryArtifacts(ctx, `WHERE expires_at > 0 AND expires_at < ?`, now.Unix())
}

// ListArtifactsOlderThan returns artifacts created before the cutoff,
// regardless of expiry. Used by the "old cache" sweep.
func (d *Database) ListArtifactsOlderThan(ctx context.Context, cutoff time.Time) ([]collection.Artifact, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return d.queryArtifacts(ctx, `WHERE created_at < ?`, cutoff.Unix())
}

const artifactSelect = `
	SELECT id, image_id, collection_id, folder_id, kind, path, width, height, size, format, quality, valid, created_at, expires_at
	FROM artifacts`

func (d *Database) queryArtifacts(ctx context.Context, where string, args ...interface{}) ([]collection.Artifact, error) {
	rows, err := d.db.QueryContext(ctx, artifactSelect+" "+where, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query artifacts: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logging.Error("failed to close rows: %v", err)
		}
	}()

	var artifacts []collection.Artifact
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan artifact row: %w", err)
		}
		artifacts = append(artifacts, *a)
	}
	return artifacts, rows.Err()
}

func scanArtifact(row rowScanner) (*collection.Artifact, error) {
	var a collection.Artifact
	var kind string
	var valid int
	var createdAt, expiresAt int64

	err := row.Scan(
		&a.ID, &a.ImageID, &a.CollectionID, &a.FolderID, &kind, &a.Path,
		&a.Width, &a.Height, &a.Size, &a.Format, &a.Quality, &valid,
		&createdAt, &expiresAt,
	)
	if err != nil {
		return nil, err
	}
	a.Kind = collection.ArtifactKind(kind)
	a.Valid = valid != 0
	a.CreatedAt = time.Unix(createdAt, 0)
	a.ExpiresAt = time.Unix(expiresAt, 0)
	return &a, nil
}
