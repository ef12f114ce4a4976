package scanner

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"image-vault/internal/collection"
	"image-vault/internal/logging"
	"image-vault/internal/metrics"
)

// ImageExtensions maps file extensions to whether they are supported image formats.
var ImageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".bmp": true, ".webp": true, ".tiff": true, ".tif": true,
	".heic": true, ".heif": true, ".avif": true,
}

// deniedPrefixes are absolute path prefixes the scanner refuses to touch.
// This is a safety guard against scanning system directories, not a
// completeness guarantee.
var deniedPrefixes = []string{
	"/bin", "/boot", "/dev", "/etc", "/lib", "/proc", "/run",
	"/sbin", "/sys", "/usr/bin", "/usr/sbin", "/var/lib", "/var/run",
	"/system", "/library/apple",
	`c:\windows`, `c:\program files`, `c:\program files (x86)`,
}

// Scanner discovers potential collections under a parent directory.
type Scanner struct{}

// New creates a new Scanner.
func New() *Scanner {
	return &Scanner{}
}

// Discover walks parentPath and returns every directory that directly
// contains image files and every supported archive that holds at least one
// image entry. Directories that only contain images via subdirectories are
// never candidates; with recursive set, their image-bearing descendants are
// returned instead. namePrefix is an optional case-insensitive substring
// filter on candidate names.
func (s *Scanner) Discover(parentPath string, recursive bool, namePrefix string) ([]collection.Potential, error) {
	var err error
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
		}
		metrics.ScannerRunsTotal.WithLabelValues(status).Inc()
	}()

	if strings.TrimSpace(parentPath) == "" {
		err = fmt.Errorf("%w: parent path is required", collection.ErrInvalidInput)
		return nil, err
	}

	absPath, absErr := filepath.Abs(parentPath)
	if absErr != nil {
		err = fmt.Errorf("%w: %v", collection.ErrInvalidInput, absErr)
		return nil, err
	}

	if denied(absPath) {
		err = fmt.Errorf("%w: refusing to scan system directory %s", collection.ErrUnsafePath, absPath)
		return nil, err
	}

	info, statErr := os.Stat(absPath)
	if statErr != nil {
		err = fmt.Errorf("%w: parent path %s: %v", collection.ErrInvalidInput, absPath, statErr)
		return nil, err
	}
	if !info.IsDir() {
		err = fmt.Errorf("%w: parent path %s is not a directory", collection.ErrInvalidInput, absPath)
		return nil, err
	}

	candidates := s.scanDirectory(absPath, recursive, strings.ToLower(namePrefix))

	logging.Debug("discovery of %s found %d candidates", absPath, len(candidates))
	return candidates, nil
}

// scanDirectory examines the direct children of dir and recurses into
// subdirectories when requested. Per-entry probe errors are swallowed: the
// entry is treated as containing no images.
func (s *Scanner) scanDirectory(dir string, recursive bool, namePrefix string) []collection.Potential {
	entries, err := os.ReadDir(dir)
	if err != nil {
		logging.Warn("failed to read directory %s: %v", dir, err)
		metrics.ScannerProbeErrors.Inc()
		return nil
	}

	var candidates []collection.Potential
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		metrics.ScannerEntriesProbed.Inc()

		fullPath := filepath.Join(dir, entry.Name())

		if entry.IsDir() {
			if matchesFilter(entry.Name(), namePrefix) && hasDirectImages(fullPath) {
				candidates = append(candidates, collection.Potential{
					Name: entry.Name(),
					Path: fullPath,
					Type: collection.TypeFolder,
				})
				metrics.ScannerCandidatesTotal.WithLabelValues(string(collection.TypeFolder)).Inc()
			}
			if recursive {
				candidates = append(candidates, s.scanDirectory(fullPath, recursive, namePrefix)...)
			}
			continue
		}

		colType, isArchive := archiveType(entry.Name())
		if !isArchive {
			continue
		}
		if !matchesFilter(entry.Name(), namePrefix) {
			continue
		}
		if !archiveHasImages(fullPath, colType) {
			continue
		}

		candidates = append(candidates, collection.Potential{
			Name: archiveStem(entry.Name()),
			Path: fullPath,
			Type: colType,
		})
		metrics.ScannerCandidatesTotal.WithLabelValues(string(colType)).Inc()
	}

	return candidates
}

// hasDirectImages reports whether dir contains at least one image file among
// its immediate children. Subdirectories are intentionally not considered:
// this leaf-only rule prevents a parent and its child both becoming
// collections for the same files.
func hasDirectImages(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		logging.Debug("probe of %s failed: %v", dir, err)
		metrics.ScannerProbeErrors.Inc()
		return false
	}
	for _, entry := range entries {
		// Same visibility rule as the scan itself: hidden files never
		// make a directory a candidate.
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if ImageExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			return true
		}
	}
	return false
}

func matchesFilter(name, lowerPrefix string) bool {
	if lowerPrefix == "" {
		return true
	}
	return strings.Contains(strings.ToLower(name), lowerPrefix)
}

func denied(absPath string) bool {
	p := strings.ToLower(filepath.ToSlash(absPath))
	for _, prefix := range deniedPrefixes {
		pre := strings.ToLower(filepath.ToSlash(prefix))
		if p == pre || strings.HasPrefix(p, pre+"/") {
			return true
		}
	}
	return false
}
