package artifact

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"image-vault/internal/cachefolder"
	"image-vault/internal/collection"
	"image-vault/internal/database"
	"image-vault/internal/logging"
	"image-vault/internal/metrics"
)

const (
	// DefaultLifetime is how long a generated artifact stays valid before
	// expiration sweeps may remove it.
	DefaultLifetime = 30 * 24 * time.Hour

	// cacheQuality is the JPEG quality for full-view cache images.
	cacheQuality = 85

	// regenerateBatchSize bounds how many images are processed between
	// progress checkpoints during a collection rebuild.
	regenerateBatchSize = 10
)

// ImageProcessor is the opaque resizing capability.
type ImageProcessor interface {
	Resize(sourcePath string, width, height, quality int) ([]byte, error)
	Thumbnail(sourcePath string, width, height int) ([]byte, error)
}

// Store generates, serves and expires derived artifacts, keeping artifact
// metadata and cache folder statistics consistent.
type Store struct {
	db       *database.Database
	registry *cachefolder.Registry
	proc     ImageProcessor
	lifetime time.Duration
}

// NewStore creates an artifact store. lifetime <= 0 uses DefaultLifetime.
func NewStore(db *database.Database, registry *cachefolder.Registry, proc ImageProcessor, lifetime time.Duration) *Store {
	if lifetime <= 0 {
		lifetime = DefaultLifetime
	}
	return &Store{db: db, registry: registry, proc: proc, lifetime: lifetime}
}

// Generate produces one artifact for an image: resolve the source, resize,
// place via the folder snapshot, write bytes, upsert metadata and recompute
// the owning folder's statistics.
func (s *Store) Generate(ctx context.Context, collectionID, imageID string, kind collection.ArtifactKind, width, height int) (*collection.Artifact, error) {
	start := time.Now()
	var err error
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
		}
		metrics.ArtifactsGeneratedTotal.WithLabelValues(string(kind), status).Inc()
		metrics.ArtifactGenerationDuration.WithLabelValues(string(kind)).Observe(time.Since(start).Seconds())
	}()

	col, err := s.db.GetCollection(ctx, collectionID)
	if err != nil {
		return nil, err
	}
	img, err := s.db.GetImage(ctx, imageID)
	if err != nil {
		return nil, err
	}

	sourcePath, err := resolveSource(col, img)
	if err != nil {
		return nil, err
	}
	if _, statErr := os.Stat(sourcePath); statErr != nil {
		err = fmt.Errorf("source image %s: %w", sourcePath, statErr)
		return nil, err
	}

	var data []byte
	switch kind {
	case collection.KindThumbnail:
		data, err = s.proc.Thumbnail(sourcePath, width, height)
	case collection.KindCache:
		data, err = s.proc.Resize(sourcePath, width, height, cacheQuality)
	default:
		err = fmt.Errorf("%w: unknown artifact kind %q", collection.ErrInvalidInput, kind)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to process %s: %w", sourcePath, err)
	}

	snap := s.registry.Snapshot()
	var destPath string
	var folder collection.CacheFolder
	if kind == collection.KindThumbnail {
		destPath, folder, err = snap.ThumbnailPath(collectionID, img.FileName, width, height, "jpeg")
	} else {
		destPath, folder, err = snap.CachePath(collectionID, imageID, width, height, "jpeg")
	}
	if err != nil {
		return nil, err
	}

	if err = os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		err = fmt.Errorf("failed to create artifact directory: %w", err)
		return nil, err
	}
	if err = os.WriteFile(destPath, data, 0644); err != nil {
		err = fmt.Errorf("failed to write artifact %s: %w", destPath, err)
		return nil, err
	}

	now := time.Now()
	a := &collection.Artifact{
		ImageID:      imageID,
		CollectionID: collectionID,
		FolderID:     folder.ID,
		Kind:         kind,
		Path:         destPath,
		Width:        width,
		Height:       height,
		Size:         int64(len(data)),
		Format:       "jpeg",
		Quality:      qualityFor(kind),
		Valid:        true,
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.lifetime),
	}
	if err = s.db.UpsertArtifact(ctx, a); err != nil {
		return nil, err
	}

	// Folder statistics come from authoritative metadata sums, so a failed
	// recompute here only delays accuracy until the next write.
	if folder.ID != "" {
		if statsErr := s.db.RecomputeFolderStats(ctx, folder.ID); statsErr != nil {
			logging.Error("failed to recompute stats for folder %s: %v", folder.ID, statsErr)
		}
	}

	logging.Debug("generated %s for image %s at %s (%d bytes)", kind, imageID, destPath, len(data))
	return a, nil
}

// Get serves artifact bytes by image id, kind and target size. A miss is
// (nil, nil): absent metadata, invalid or expired records all miss. When
// metadata claims validity but the backing file is gone, the record is
// marked invalid before reporting the miss so the claim is not repeated.
func (s *Store) Get(ctx context.Context, imageID string, kind collection.ArtifactKind, width, height int) ([]byte, error) {
	a, err := s.db.GetArtifact(ctx, imageID, kind, width, height)
	if err != nil {
		if errors.Is(err, collection.ErrNotFound) {
			metrics.ArtifactCacheLookups.WithLabelValues("miss").Inc()
			return nil, nil
		}
		return nil, err
	}

	if !a.Valid || (!a.ExpiresAt.IsZero() && a.ExpiresAt.Before(time.Now())) {
		metrics.ArtifactCacheLookups.WithLabelValues("miss").Inc()
		return nil, nil
	}

	data, readErr := os.ReadFile(a.Path)
	if readErr != nil {
		if os.IsNotExist(readErr) {
			// The file was deleted externally; heal the metadata.
			if invErr := s.db.InvalidateArtifact(ctx, a.ID); invErr != nil {
				logging.Error("failed to invalidate artifact %s: %v", a.ID, invErr)
			}
			logging.Warn("artifact file missing, invalidated metadata: %s", a.Path)
			metrics.ArtifactCacheLookups.WithLabelValues("healed").Inc()
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read artifact %s: %w", a.Path, readErr)
	}

	metrics.ArtifactCacheLookups.WithLabelValues("hit").Inc()
	return data, nil
}

// RegenerationResult summarizes one collection rebuild.
type RegenerationResult struct {
	JobID     string `json:"jobId"`
	Total     int    `json:"total"`
	Generated int    `json:"generated"`
	Failed    int    `json:"failed"`
}

// RegenerateCollection rebuilds one artifact kind for every image in a
// collection. Images are processed in fixed-size batches with progress
// persisted after every batch, so an interrupted rebuild resumes from the
// last checkpoint instead of the beginning. One bad image is logged and
// skipped, never aborting the run; cancellation is honored between batches.
func (s *Store) RegenerateCollection(ctx context.Context, collectionID string, kind collection.ArtifactKind, width, height int) (*RegenerationResult, error) {
	col, err := s.db.GetCollection(ctx, collectionID)
	if err != nil {
		return nil, err
	}

	jobID, err := s.db.CreateJob(ctx, "regenerate", fmt.Sprintf("regenerate %s for %s", kind, col.Name))
	if err != nil {
		return nil, err
	}
	if err := s.db.SetJobTotal(ctx, jobID, len(col.Images)); err != nil {
		return nil, err
	}

	result := &RegenerationResult{JobID: jobID, Total: len(col.Images)}

	for batchStart := 0; batchStart < len(col.Images); batchStart += regenerateBatchSize {
		if ctx.Err() != nil {
			logging.Info("regeneration of %s cancelled after %d/%d images", col.Name, batchStart, len(col.Images))
			return result, ctx.Err()
		}

		end := batchStart + regenerateBatchSize
		if end > len(col.Images) {
			end = len(col.Images)
		}

		var completed, failed int
		for _, img := range col.Images[batchStart:end] {
			if _, genErr := s.Generate(ctx, collectionID, img.ID, kind, width, height); genErr != nil {
				logging.Warn("failed to generate %s for image %s: %v", kind, img.FileName, genErr)
				failed++
				continue
			}
			completed++
		}

		result.Generated += completed
		result.Failed += failed

		// Checkpoint: progress is durable before the next batch starts.
		if err := s.db.RecordJobProgress(ctx, jobID, completed, failed); err != nil {
			logging.Error("failed to checkpoint job %s: %v", jobID, err)
		}
	}

	return result, nil
}

// resolveSource maps an image entry to an absolute file path. Archive
// entry pseudo-paths are rejected: extraction belongs to the dedicated
// archive-aware worker, not this store.
func resolveSource(col *collection.Collection, img *collection.Image) (string, error) {
	if strings.Contains(img.RelativePath, collection.ArchiveEntrySeparator) {
		return "", fmt.Errorf("%w: image %s is an archive entry", collection.ErrInvalidInput, img.ID)
	}
	if filepath.IsAbs(img.RelativePath) {
		return img.RelativePath, nil
	}
	return filepath.Join(col.Path, img.RelativePath), nil
}

func qualityFor(kind collection.ArtifactKind) int {
	if kind == collection.KindCache {
		return cacheQuality
	}
	return 80
}
