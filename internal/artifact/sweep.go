package artifact

import (
	"context"
	"os"
	"strings"
	"time"

	"image-vault/internal/collection"
	"image-vault/internal/logging"
	"image-vault/internal/metrics"
)

// SweepExpired removes every artifact whose expiration time has passed:
// file, a best-effort sibling thumbnail file, and the metadata record.
// Per-entry failures are logged and skipped so one stuck file never stalls
// the sweep. Returns the number of artifacts removed.
func (s *Store) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	expired, err := s.db.ListExpiredArtifacts(ctx, now)
	if err != nil {
		return 0, err
	}
	return s.sweep(ctx, expired), nil
}

// SweepOlderThan removes every artifact created before cutoff, regardless
// of its expiration time. Used by the CLI sweep command for manual cleanup.
func (s *Store) SweepOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	old, err := s.db.ListArtifactsOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	return s.sweep(ctx, old), nil
}

func (s *Store) sweep(ctx context.Context, artifacts []collection.Artifact) int {
	removed := 0
	touched := make(map[string]bool)

	for _, a := range artifacts {
		if err := os.Remove(a.Path); err != nil && !os.IsNotExist(err) {
			logging.Warn("failed to remove artifact file %s: %v", a.Path, err)
			continue
		}

		// Cache images often have a sibling thumbnail on the same folder;
		// removing it here is opportunistic, misses are fine.
		if a.Kind == collection.KindCache {
			if sibling := siblingThumbnailPath(a.Path); sibling != "" {
				if err := os.Remove(sibling); err != nil && !os.IsNotExist(err) {
					logging.Debug("failed to remove sibling thumbnail %s: %v", sibling, err)
				}
			}
		}

		if err := s.db.DeleteArtifact(ctx, a.ID); err != nil {
			logging.Warn("failed to delete metadata for artifact %s: %v", a.ID, err)
			continue
		}

		if a.FolderID != "" {
			touched[a.FolderID] = true
		}
		removed++
		metrics.ArtifactsExpiredTotal.Inc()
	}

	for folderID := range touched {
		if err := s.db.RecomputeFolderStats(ctx, folderID); err != nil {
			logging.Error("failed to recompute stats for folder %s: %v", folderID, err)
		}
	}

	if removed > 0 {
		logging.Info("sweep removed %d artifacts", removed)
	}
	return removed
}

// siblingThumbnailPath derives a thumbnail candidate from a cache artifact
// path by substituting the subdirectory and the name marker. Returns ""
// when the path does not look like a cache artifact.
func siblingThumbnailPath(cachePath string) string {
	if !strings.Contains(cachePath, "_cache_") {
		return ""
	}
	sibling := strings.Replace(cachePath, string(os.PathSeparator)+cacheSubdirName+string(os.PathSeparator), string(os.PathSeparator)+thumbnailSubdirName+string(os.PathSeparator), 1)
	return strings.Replace(sibling, "_cache_", "_", 1)
}

const (
	cacheSubdirName     = "cache"
	thumbnailSubdirName = "thumbnails"
)
