package collection

import "time"

// Type identifies how a collection is stored on disk.
type Type string

const (
	// TypeFolder is a plain directory of image files.
	TypeFolder Type = "folder"
	// TypeZip is a zip or cbz archive.
	TypeZip Type = "zip"
	// TypeSevenZip is a 7z archive.
	TypeSevenZip Type = "sevenzip"
	// TypeRar is a rar or cbr archive.
	TypeRar Type = "rar"
	// TypeTar is a tar archive, optionally gzip or bzip2 compressed.
	TypeTar Type = "tar"
)

// ArtifactKind distinguishes derived artifact classes.
type ArtifactKind string

const (
	// KindThumbnail is a small preview image.
	KindThumbnail ArtifactKind = "thumbnail"
	// KindCache is a resized full-view image.
	KindCache ArtifactKind = "cache"
)

// ArchiveEntrySeparator joins an archive path and a member path in
// ImageEntry.RelativePath for images that live inside an archive.
const ArchiveEntrySeparator = "#"

// Settings holds the mutable per-collection configuration.
type Settings struct {
	AutoScan        bool     `json:"autoScan"`
	AutoThumbnails  bool     `json:"autoThumbnails"`
	AutoCache       bool     `json:"autoCache"`
	ThumbnailWidth  int      `json:"thumbnailWidth"`
	ThumbnailHeight int      `json:"thumbnailHeight"`
	CacheWidth      int      `json:"cacheWidth"`
	CacheHeight     int      `json:"cacheHeight"`
	AllowedFormats  []string `json:"allowedFormats,omitempty"`
	ExcludedPaths   []string `json:"excludedPaths,omitempty"`
}

// DefaultSettings returns the settings applied to newly created collections
// when the onboarding request does not override them.
func DefaultSettings() Settings {
	return Settings{
		AutoScan:        true,
		AutoThumbnails:  true,
		AutoCache:       false,
		ThumbnailWidth:  200,
		ThumbnailHeight: 200,
		CacheWidth:      1280,
		CacheHeight:     1280,
	}
}

// Collection is a named, path-identified aggregate of images.
// Path is unique across all non-deleted collections.
type Collection struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Path        string     `json:"path"`
	Type        Type       `json:"type"`
	Settings    Settings   `json:"settings"`
	Images      []Image    `json:"images,omitempty"`
	Thumbnails  []Artifact `json:"thumbnails,omitempty"`
	CacheImages []Artifact `json:"cacheImages,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	DeletedAt   *time.Time `json:"deletedAt,omitempty"`
}

// Image is one image inside a collection. RelativePath is relative to the
// collection root, or "archive#entry" for archive members.
type Image struct {
	ID           string    `json:"id"`
	CollectionID string    `json:"collectionId"`
	FileName     string    `json:"fileName"`
	RelativePath string    `json:"relativePath"`
	Size         int64     `json:"size"`
	Width        int       `json:"width"`
	Height       int       `json:"height"`
	Format       string    `json:"format"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Artifact is derived-artifact metadata for a thumbnail or cache image.
// At most one artifact per image, kind and target dimensions is
// authoritative at a time.
type Artifact struct {
	ID           string       `json:"id"`
	ImageID      string       `json:"imageId"`
	CollectionID string       `json:"collectionId"`
	FolderID     string       `json:"folderId"`
	Kind         ArtifactKind `json:"kind"`
	Path         string       `json:"path"`
	Width        int          `json:"width"`
	Height       int          `json:"height"`
	Size         int64        `json:"size"`
	Format       string       `json:"format"`
	Quality      int          `json:"quality"`
	Valid        bool         `json:"valid"`
	CreatedAt    time.Time    `json:"createdAt"`
	ExpiresAt    time.Time    `json:"expiresAt"`
}

// CacheFolder is a configured physical destination for artifacts.
// CurrentSize <= MaxSize is a soft target kept honest by periodic
// recomputation, not a write-time check.
type CacheFolder struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Path        string    `json:"path"`
	Priority    int       `json:"priority"`
	MaxSize     int64     `json:"maxSize"`
	CurrentSize int64     `json:"currentSize"`
	FileCount   int64     `json:"fileCount"`
	Active      bool      `json:"active"`
	LastUsed    time.Time `json:"lastUsed"`
}

// Potential is an ephemeral discovery record produced by the scanner and
// consumed once by the onboarding orchestrator. Never persisted.
type Potential struct {
	Name string
	Path string
	Type Type
}

// MissingThumbnails returns the images that have no thumbnail artifact.
func (c *Collection) MissingThumbnails() []Image {
	return c.missing(c.Thumbnails)
}

// MissingCacheImages returns the images that have no cache artifact.
func (c *Collection) MissingCacheImages() []Image {
	return c.missing(c.CacheImages)
}

func (c *Collection) missing(artifacts []Artifact) []Image {
	have := make(map[string]bool, len(artifacts))
	for _, a := range artifacts {
		have[a.ImageID] = true
	}
	var out []Image
	for _, img := range c.Images {
		if !have[img.ID] {
			out = append(out, img)
		}
	}
	return out
}

// Complete reports whether every image has both a thumbnail and, when
// cache generation is enabled, a cache artifact.
func (c *Collection) Complete() bool {
	if len(c.Images) == 0 {
		return false
	}
	if len(c.MissingThumbnails()) > 0 {
		return false
	}
	if c.Settings.AutoCache && len(c.MissingCacheImages()) > 0 {
		return false
	}
	return true
}
