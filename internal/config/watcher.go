package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hashicorp/go-hclog"
)

const defaultReloadDebounce = 500 * time.Millisecond

// FileWatcher reloads a ConfigManager when its backing file changes.
// Watchers registered on the manager are notified after each successful
// reload, which is how a rotated origin credential reaches running modules.
type FileWatcher struct {
	manager  *ConfigManager
	path     string
	debounce time.Duration
	logger   hclog.Logger

	mu       sync.Mutex
	timer    *time.Timer
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewFileWatcher creates a watcher for the manager's config file.
func NewFileWatcher(manager *ConfigManager, logger hclog.Logger) (*FileWatcher, error) {
	path := manager.ConfigPath()
	if path == "" {
		return nil, fmt.Errorf("config path required")
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	return &FileWatcher{
		manager:  manager,
		path:     filepath.Clean(path),
		debounce: defaultReloadDebounce,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}, nil
}

// Start watches the config directory until ctx is cancelled or Stop is called.
func (w *FileWatcher) Start(ctx context.Context) error {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// Editors replace files atomically, so watch the directory.
	if err := fsWatcher.Add(filepath.Dir(w.path)); err != nil {
		fsWatcher.Close()
		return err
	}

	go w.watchLoop(fsWatcher)
	go func() {
		select {
		case <-ctx.Done():
			w.Stop()
		case <-w.stopCh:
		}
	}()

	w.logger.Info("watching configuration file", "path", w.path)
	return nil
}

// Stop terminates the watcher.
func (w *FileWatcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
			w.timer = nil
		}
		w.mu.Unlock()
	})
}

func (w *FileWatcher) watchLoop(fsWatcher *fsnotify.Watcher) {
	defer fsWatcher.Close()

	for {
		select {
		case <-w.stopCh:
			return
		case event, ok := <-fsWatcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", "error", err)
		}
	}
}

func (w *FileWatcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
		return
	}
	if filepath.Clean(event.Name) != w.path {
		return
	}
	w.scheduleReload()
}

func (w *FileWatcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		select {
		case <-w.stopCh:
			return
		default:
		}
		if err := w.manager.LoadConfig(w.path); err != nil {
			w.logger.Warn("config reload failed, keeping previous configuration", "error", err)
			return
		}
		w.logger.Info("configuration reloaded", "path", w.path)
	})
}
