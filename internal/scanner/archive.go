package scanner

import (
	"archive/tar"
	"archive/zip"
	"compress/bzip2"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"image-vault/internal/collection"
	"image-vault/internal/logging"
	"image-vault/internal/metrics"
)

// archiveType maps a filename to its collection type. The second return is
// false when the name is not a supported archive. Unknown archive
// extensions that still look like archives default to zip.
func archiveType(name string) (collection.Type, bool) {
	lower := strings.ToLower(name)

	switch {
	case strings.HasSuffix(lower, ".tar"),
		strings.HasSuffix(lower, ".tar.gz"),
		strings.HasSuffix(lower, ".tgz"),
		strings.HasSuffix(lower, ".tar.bz2"):
		return collection.TypeTar, true
	case strings.HasSuffix(lower, ".zip"), strings.HasSuffix(lower, ".cbz"):
		return collection.TypeZip, true
	case strings.HasSuffix(lower, ".rar"), strings.HasSuffix(lower, ".cbr"):
		return collection.TypeRar, true
	case strings.HasSuffix(lower, ".7z"):
		return collection.TypeSevenZip, true
	}
	return "", false
}

// archiveStem strips the archive extension from a filename, including the
// compound tar extensions.
func archiveStem(name string) string {
	lower := strings.ToLower(name)
	for _, suffix := range []string{".tar.gz", ".tar.bz2"} {
		if strings.HasSuffix(lower, suffix) {
			return name[:len(name)-len(suffix)]
		}
	}
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// archiveHasImages reports whether the archive contains at least one entry
// with a supported image extension. Zip and tar archives are inspected
// entry by entry with the standard library. Rar and 7z cannot be opened
// without an external archive library, so their existence is treated as a
// sufficient positive signal; that is an acknowledged gap. Probe errors
// count as "no images".
func archiveHasImages(path string, colType collection.Type) bool {
	switch colType {
	case collection.TypeZip:
		return zipHasImages(path)
	case collection.TypeTar:
		return tarHasImages(path)
	case collection.TypeRar, collection.TypeSevenZip:
		return true
	default:
		return zipHasImages(path)
	}
}

func zipHasImages(path string) bool {
	reader, err := zip.OpenReader(path)
	if err != nil {
		logging.Debug("failed to open zip %s: %v", path, err)
		metrics.ScannerProbeErrors.Inc()
		return false
	}
	defer func() {
		if err := reader.Close(); err != nil {
			logging.Debug("failed to close zip %s: %v", path, err)
		}
	}()

	for _, entry := range reader.File {
		if entry.FileInfo().IsDir() {
			continue
		}
		if ImageExtensions[strings.ToLower(filepath.Ext(entry.Name))] {
			return true
		}
	}
	return false
}

func tarHasImages(path string) bool {
	file, err := os.Open(path)
	if err != nil {
		logging.Debug("failed to open tar %s: %v", path, err)
		metrics.ScannerProbeErrors.Inc()
		return false
	}
	defer func() {
		if err := file.Close(); err != nil {
			logging.Debug("failed to close tar %s: %v", path, err)
		}
	}()

	var stream io.Reader = file
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		gz, err := gzip.NewReader(file)
		if err != nil {
			logging.Debug("failed to open gzip stream %s: %v", path, err)
			metrics.ScannerProbeErrors.Inc()
			return false
		}
		defer func() {
			if err := gz.Close(); err != nil {
				logging.Debug("failed to close gzip stream %s: %v", path, err)
			}
		}()
		stream = gz
	case strings.HasSuffix(lower, ".tar.bz2"):
		stream = bzip2.NewReader(file)
	}

	tr := tar.NewReader(stream)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return false
		}
		if err != nil {
			logging.Debug("failed to read tar entry in %s: %v", path, err)
			metrics.ScannerProbeErrors.Inc()
			return false
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}
		if ImageExtensions[strings.ToLower(filepath.Ext(header.Name))] {
			return true
		}
	}
}
