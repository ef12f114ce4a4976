package scanner

import (
	"archive/zip"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"image-vault/internal/collection"
	"image-vault/internal/logging"

	// Image format decoders for dimension probing
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp" // WebP format support
)

// ListImages enumerates the image entries of a collection on disk. Folder
// collections are read non-recursively; zip collections are enumerated from
// their central directory with "archive#entry" relative paths. Rar, 7z and
// tar collections cannot be enumerated cheaply and yield no entries here;
// the archive-aware worker owns their extraction.
func ListImages(col *collection.Collection) ([]collection.Image, error) {
	switch col.Type {
	case collection.TypeFolder:
		return listFolderImages(col)
	case collection.TypeZip:
		return listZipImages(col)
	default:
		logging.Debug("collection %s type %s is not enumerable without extraction", col.Name, col.Type)
		return nil, nil
	}
}

func listFolderImages(col *collection.Collection) ([]collection.Image, error) {
	entries, err := os.ReadDir(col.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read collection directory %s: %w", col.Path, err)
	}

	var images []collection.Image
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if !ImageExtensions[ext] {
			continue
		}
		if excluded(col.Settings.ExcludedPaths, entry.Name()) {
			continue
		}
		if !formatAllowed(col.Settings.AllowedFormats, ext) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			logging.Warn("failed to stat %s: %v", entry.Name(), err)
			continue
		}

		img := collection.Image{
			CollectionID: col.ID,
			FileName:     entry.Name(),
			RelativePath: entry.Name(),
			Size:         info.Size(),
			Format:       strings.TrimPrefix(ext, "."),
		}
		if w, h, err := probeDimensions(filepath.Join(col.Path, entry.Name())); err == nil {
			img.Width, img.Height = w, h
		}
		images = append(images, img)
	}
	return images, nil
}

func listZipImages(col *collection.Collection) ([]collection.Image, error) {
	reader, err := zip.OpenReader(col.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive %s: %w", col.Path, err)
	}
	defer func() {
		if err := reader.Close(); err != nil {
			logging.Debug("failed to close archive %s: %v", col.Path, err)
		}
	}()

	var images []collection.Image
	for _, entry := range reader.File {
		if entry.FileInfo().IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name))
		if !ImageExtensions[ext] {
			continue
		}
		if excluded(col.Settings.ExcludedPaths, entry.Name) {
			continue
		}
		if !formatAllowed(col.Settings.AllowedFormats, ext) {
			continue
		}
		images = append(images, collection.Image{
			CollectionID: col.ID,
			FileName:     filepath.Base(entry.Name),
			RelativePath: col.Path + collection.ArchiveEntrySeparator + entry.Name,
			Size:         int64(entry.UncompressedSize64),
			Format:       strings.TrimPrefix(ext, "."),
		})
	}
	return images, nil
}

func probeDimensions(path string) (int, int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer func() {
		if err := file.Close(); err != nil {
			logging.Debug("failed to close %s: %v", path, err)
		}
	}()

	config, _, err := image.DecodeConfig(file)
	if err != nil {
		return 0, 0, err
	}
	return config.Width, config.Height, nil
}

func excluded(excludedPaths []string, name string) bool {
	for _, p := range excludedPaths {
		if p != "" && strings.Contains(strings.ToLower(name), strings.ToLower(p)) {
			return true
		}
	}
	return false
}

func formatAllowed(allowed []string, ext string) bool {
	if len(allowed) == 0 {
		return true
	}
	format := strings.TrimPrefix(strings.ToLower(ext), ".")
	for _, a := range allowed {
		if strings.EqualFold(strings.TrimPrefix(a, "."), format) {
			return true
		}
	}
	return false
}
