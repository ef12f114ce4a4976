package startup

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"image-vault/internal/collection"
	"image-vault/internal/logging"
)

// folderFile is the on-disk shape of the cache folder configuration.
type folderFile struct {
	Folders []folderEntry `toml:"folders"`
}

type folderEntry struct {
	Name     string `toml:"name"`
	Path     string `toml:"path"`
	Priority int    `toml:"priority"`
	MaxSize  int64  `toml:"max_size"`
	Active   bool   `toml:"active"`
}

// LoadCacheFolders reads the TOML cache folder configuration. A missing
// file is not an error: the engine runs with zero folders and relies on
// the fallback directory for cache images.
func LoadCacheFolders(path string) ([]collection.CacheFolder, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logging.Warn("cache folder file %s not found, running without configured folders", path)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read cache folder file %s: %w", path, err)
	}

	var file folderFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse cache folder file %s: %w", path, err)
	}

	folders := make([]collection.CacheFolder, 0, len(file.Folders))
	for i, entry := range file.Folders {
		if entry.Path == "" {
			return nil, fmt.Errorf("cache folder entry %d has no path", i)
		}
		name := entry.Name
		if name == "" {
			name = entry.Path
		}
		folders = append(folders, collection.CacheFolder{
			Name:     name,
			Path:     entry.Path,
			Priority: entry.Priority,
			MaxSize:  entry.MaxSize,
			Active:   entry.Active,
		})
	}
	return folders, nil
}
