package cachefolder

import (
	"context"
	"fmt"
	"sync"

	"image-vault/internal/collection"
	"image-vault/internal/database"
	"image-vault/internal/logging"
)

// Registry holds the configured cache folders and hands out immutable,
// versioned snapshots. Placement decisions are made against a snapshot, so
// a configuration reload never changes folder choice mid-operation.
type Registry struct {
	db          *database.Database
	fallbackDir string

	mu       sync.RWMutex
	snapshot *Snapshot
}

// NewRegistry creates a registry backed by the database. fallbackDir is the
// local directory cache artifacts fall back to when no folder is active.
func NewRegistry(db *database.Database, fallbackDir string) *Registry {
	return &Registry{
		db:          db,
		fallbackDir: fallbackDir,
		snapshot:    &Snapshot{FallbackDir: fallbackDir},
	}
}

// Reload reads the folder set from the database and publishes a new
// snapshot. Changing the active folder set reshuffles placement for
// existing collections; there is no consistent-hashing migration step.
func (r *Registry) Reload(ctx context.Context) (*Snapshot, error) {
	folders, err := r.db.ListCacheFolders(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load cache folders: %w", err)
	}

	var active []collection.CacheFolder
	for _, f := range folders {
		if f.Active {
			active = append(active, f)
		}
	}

	r.mu.Lock()
	version := r.snapshot.Version + 1
	snap := &Snapshot{
		Version:     version,
		Folders:     active,
		FallbackDir: r.fallbackDir,
	}
	r.snapshot = snap
	r.mu.Unlock()

	logging.Info("cache folder snapshot v%d: %d active of %d configured", version, len(active), len(folders))
	return snap, nil
}

// Snapshot returns the current configuration snapshot.
func (r *Registry) Snapshot() *Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot
}

// LoadConfigured writes the administratively configured folders into the
// database and reloads the snapshot.
func (r *Registry) LoadConfigured(ctx context.Context, folders []collection.CacheFolder) (*Snapshot, error) {
	for i := range folders {
		if err := r.db.UpsertCacheFolder(ctx, &folders[i]); err != nil {
			return nil, err
		}
	}
	return r.Reload(ctx)
}
