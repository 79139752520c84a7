package profile

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/vitals/internal/logging"
)

// Watcher reloads a profile override file into a Registry whenever the file
// changes on disk, so pattern tweaks take effect without a restart.
type Watcher struct {
	path     string
	registry *Registry
	logger   *logging.Logger
	watcher  *fsnotify.Watcher
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewWatcher creates a watcher for the override file at path. The file does
// not need to exist yet; it is picked up on first write.
func NewWatcher(path string, registry *Registry, logger *logging.Logger) (*Watcher, error) {
	if logger == nil {
		logger = logging.NopLogger()
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		path:     path,
		registry: registry,
		logger:   logger.WithComponent("profile"),
		watcher:  fsWatcher,
		stopCh:   make(chan struct{}),
	}, nil
}

// Start loads the override file once if present and begins watching for
// changes. The containing directory is watched rather than the file itself,
// so editors that save via rename do not break the watch.
func (w *Watcher) Start() error {
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}

	if _, err := os.Stat(w.path); err == nil {
		w.reload()
	}

	go w.watchLoop()
	return nil
}

// Stop stops the watcher and releases its resources. Safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		_ = w.watcher.Close()
	})
}

// watchLoop processes filesystem events.
func (w *Watcher) watchLoop() {
	// Debounce events - many editors create multiple events for a single save
	debounceTimer := time.NewTimer(0)
	<-debounceTimer.C // drain initial timer

	pending := false

	for {
		select {
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			// Only the override file itself matters
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			pending = true
			debounceTimer.Reset(50 * time.Millisecond)

		case <-debounceTimer.C:
			if pending {
				pending = false
				w.reload()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("profile override watcher error", "error", err.Error())
		}
	}
}

// reload parses the override file and applies it to the registry. A file
// that fails to parse keeps the previously applied patterns.
func (w *Watcher) reload() {
	overrides, err := LoadOverrides(w.path)
	if err != nil {
		w.logger.Warn("failed to load profile overrides",
			"path", w.path,
			"error", err.Error())
		return
	}

	w.registry.ApplyOverrides(overrides)
	w.logger.Info("reloaded profile overrides",
		"path", w.path,
		"agent_types", len(overrides))
}

// LoadOverrides reads a profile override file mapping agent types to
// override entries:
//
//	claude:
//	  busy_patterns:
//	    - "re:Compacting.+"
//	  replace: false
//	shell:
//	  prompt_patterns:
//	    - "my-prompt> "
func LoadOverrides(path string) (map[string]Override, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	overrides := make(map[string]Override)
	if err := v.Unmarshal(&overrides); err != nil {
		return nil, err
	}
	return overrides, nil
}
