package scanner

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"image-vault/internal/logging"
)

// Watcher monitors a library directory and triggers a re-onboard of the
// whole library when new entries appear. Events are debounced: bulk copies
// produce one trigger after the directory settles, not one per file.
type Watcher struct {
	libraryDir string
	debounce   time.Duration
	trigger    func(parentPath string)

	mu    sync.Mutex
	timer *time.Timer
}

// NewWatcher creates a watcher over libraryDir. trigger is called with the
// library path after debounce of quiet following the last relevant event.
func NewWatcher(libraryDir string, debounce time.Duration, trigger func(parentPath string)) *Watcher {
	if debounce <= 0 {
		debounce = 5 * time.Second
	}
	return &Watcher{libraryDir: libraryDir, debounce: debounce, trigger: trigger}
}

// Watch blocks processing filesystem events until ctx is cancelled.
func (w *Watcher) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			logging.Error("failed to close file watcher: %v", err)
		}
	}()

	watchCount := w.addDirectories(watcher)
	logging.Info("library watcher started, watching %d directories under %s", watchCount, w.libraryDir)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(watcher, event)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Error("watcher error: %v", err)
		}
	}
}

func (w *Watcher) addDirectories(watcher *fsnotify.Watcher) int {
	count := 0
	err := filepath.Walk(w.libraryDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() && !strings.HasPrefix(info.Name(), ".") {
			if addErr := watcher.Add(path); addErr != nil {
				logging.Warn("failed to watch %s: %v", path, addErr)
			} else {
				count++
			}
		}
		return nil
	})
	if err != nil {
		logging.Error("failed to walk library directory for watcher: %v", err)
	}
	return count
}

func (w *Watcher) handleEvent(watcher *fsnotify.Watcher, event fsnotify.Event) {
	// Skip hidden files
	if strings.Contains(event.Name, "/.") {
		return
	}
	if event.Op&fsnotify.Create == 0 {
		return
	}

	if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
		if addErr := watcher.Add(event.Name); addErr != nil {
			logging.Warn("failed to watch new directory %s: %v", event.Name, addErr)
		} else {
			logging.Debug("watching new directory: %s", event.Name)
		}
	}

	w.schedule()
}

// schedule arms (or re-arms) the debounce timer.
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		logging.Info("library changed, triggering onboarding scan of %s", w.libraryDir)
		w.trigger(w.libraryDir)
	})
}
