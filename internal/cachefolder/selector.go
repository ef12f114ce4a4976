package cachefolder

import (
	"fmt"
	"hash/fnv"
	"path/filepath"
	"strings"

	"image-vault/internal/collection"
)

// Snapshot is an immutable view of the active folder set at one
// configuration version. All selection functions are pure over a snapshot.
type Snapshot struct {
	Version     int
	Folders     []collection.CacheFolder
	FallbackDir string
}

const (
	thumbnailSubdir = "thumbnails"
	cacheSubdir     = "cache"
)

// SelectFolder picks the folder authoritative for all artifacts of one
// collection: FNV-1a of the collection id modulo the active folder count.
// Co-locating a collection's artifacts on one folder keeps cleanup and
// migration simple, and the choice is repeatable as long as the active set
// is unchanged.
func (s *Snapshot) SelectFolder(collectionID string) (collection.CacheFolder, error) {
	if len(s.Folders) == 0 {
		return collection.CacheFolder{}, fmt.Errorf("%w: no active cache folders", collection.ErrUnavailable)
	}
	h := fnv.New32a()
	h.Write([]byte(collectionID))
	idx := int(h.Sum32() % uint32(len(s.Folders)))
	return s.Folders[idx], nil
}

// ThumbnailPath builds the canonical destination for a thumbnail. With no
// active folders it fails: thumbnails are considered essential and never
// fall back.
func (s *Snapshot) ThumbnailPath(collectionID, imageFileName string, width, height int, format string) (string, collection.CacheFolder, error) {
	folder, err := s.SelectFolder(collectionID)
	if err != nil {
		return "", collection.CacheFolder{}, err
	}
	stem := strings.TrimSuffix(imageFileName, filepath.Ext(imageFileName))
	name := fmt.Sprintf("%s_%dx%d%s", stem, width, height, extensionFor(format))
	return filepath.Join(folder.Path, thumbnailSubdir, collectionID, name), folder, nil
}

// CachePath builds the canonical destination for a cache image. With no
// active folders it falls back to the local default directory instead of
// failing: cache images are best-effort, thumbnails are essential.
func (s *Snapshot) CachePath(collectionID, imageID string, width, height int, format string) (string, collection.CacheFolder, error) {
	name := fmt.Sprintf("%s_cache_%dx%d%s", imageID, width, height, extensionFor(format))

	folder, err := s.SelectFolder(collectionID)
	if err != nil {
		fallback := collection.CacheFolder{Path: s.FallbackDir}
		return filepath.Join(s.FallbackDir, cacheSubdir, collectionID, name), fallback, nil
	}
	return filepath.Join(folder.Path, cacheSubdir, collectionID, name), folder, nil
}

// extensionFor maps an image format to a file extension, defaulting to .jpg.
func extensionFor(format string) string {
	switch strings.ToLower(format) {
	case "jpeg", "jpg":
		return ".jpg"
	case "png":
		return ".png"
	case "webp":
		return ".webp"
	default:
		return ".jpg"
	}
}
