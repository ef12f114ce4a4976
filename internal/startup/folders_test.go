package startup

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCacheFolders(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache-folders.toml")
	content := `
[[folders]]
name = "fast-ssd"
path = "/mnt/fast"
priority = 10
max_size = 107374182400
active = true

[[folders]]
path = "/mnt/slow"
priority = 1
max_size = 53687091200
active = false
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	folders, err := LoadCacheFolders(path)
	if err != nil {
		t.Fatalf("LoadCacheFolders() error = %v", err)
	}
	if len(folders) != 2 {
		t.Fatalf("got %d folders, want 2", len(folders))
	}
	if folders[0].Name != "fast-ssd" || folders[0].Priority != 10 || !folders[0].Active {
		t.Errorf("first folder = %+v", folders[0])
	}
	// Name falls back to the path when omitted.
	if folders[1].Name != "/mnt/slow" {
		t.Errorf("second folder name = %q, want the path", folders[1].Name)
	}
	if folders[1].Active {
		t.Error("second folder should be inactive")
	}
}

func TestLoadCacheFoldersMissingFile(t *testing.T) {
	folders, err := LoadCacheFolders(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("LoadCacheFolders() error = %v, want nil for a missing file", err)
	}
	if folders != nil {
		t.Errorf("folders = %v, want nil", folders)
	}
}

func TestLoadCacheFoldersRejectsEmptyPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache-folders.toml")
	if err := os.WriteFile(path, []byte("[[folders]]\nname = \"broken\"\n"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	if _, err := LoadCacheFolders(path); err == nil {
		t.Error("LoadCacheFolders() should reject an entry without a path")
	}
}

func TestLoadCacheFoldersRejectsMalformedToml(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache-folders.toml")
	if err := os.WriteFile(path, []byte("[[folders\n"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	if _, err := LoadCacheFolders(path); err == nil {
		t.Error("LoadCacheFolders() should reject malformed TOML")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("LIBRARY_DIR", filepath.Join(dir, "library"))
	t.Setenv("DATABASE_DIR", filepath.Join(dir, "db"))
	t.Setenv("FALLBACK_CACHE_DIR", filepath.Join(dir, "cache"))

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Port != "8080" || cfg.MetricsPort != "9090" {
		t.Errorf("ports = %s/%s, want 8080/9090", cfg.Port, cfg.MetricsPort)
	}
	if cfg.SweepInterval.Hours() != 6 {
		t.Errorf("sweep interval = %v, want 6h", cfg.SweepInterval)
	}
	if cfg.DatabasePath != filepath.Join(dir, "db", "vault.db") {
		t.Errorf("database path = %s", cfg.DatabasePath)
	}
	if cfg.WatchEnabled {
		t.Error("watch should default off")
	}
}

func TestLoadConfigInvalidInterval(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("LIBRARY_DIR", filepath.Join(dir, "library"))
	t.Setenv("DATABASE_DIR", filepath.Join(dir, "db"))
	t.Setenv("FALLBACK_CACHE_DIR", filepath.Join(dir, "cache"))
	t.Setenv("SWEEP_INTERVAL", "often")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.SweepInterval.Hours() != 6 {
		t.Errorf("sweep interval = %v, want the 6h default", cfg.SweepInterval)
	}
}
