package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"uiforge/internal/logging"
)

// Watcher reloads a config file when it changes on disk and hands the new
// configuration to a callback. The parent directory is watched so that
// editors which save by rename are still observed.
type Watcher struct {
	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	path        string
	onChange    func(*Config)
	debounceDur time.Duration
	pending     bool
	lastEvent   time.Time
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool
}

// NewWatcher creates a watcher for path. onChange runs on the watcher
// goroutine after each successful reload.
func NewWatcher(path string, onChange func(*Config)) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		w.Close()
		return nil, err
	}
	return &Watcher{
		watcher:     w,
		path:        abs,
		onChange:    onChange,
		debounceDur: 200 * time.Millisecond,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Start begins watching. It is non-blocking.
func (cw *Watcher) Start(ctx context.Context) error {
	cw.mu.Lock()
	if cw.running {
		cw.mu.Unlock()
		return nil
	}
	cw.running = true
	cw.mu.Unlock()

	if err := cw.watcher.Add(filepath.Dir(cw.path)); err != nil {
		cw.mu.Lock()
		cw.running = false
		cw.mu.Unlock()
		return err
	}
	logging.Boot("config watcher: watching %s", cw.path)

	go cw.run(ctx)
	return nil
}

// Stop stops the watcher and waits for its goroutine to exit.
func (cw *Watcher) Stop() {
	cw.mu.Lock()
	wasRunning := cw.running
	cw.running = false
	cw.mu.Unlock()

	if wasRunning {
		close(cw.stopCh)
		<-cw.doneCh
	}
	if err := cw.watcher.Close(); err != nil {
		logging.BootError("config watcher: error closing watcher: %v", err)
	}
}

func (cw *Watcher) run(ctx context.Context) {
	defer close(cw.doneCh)

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-cw.stopCh:
			return

		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != cw.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			cw.mu.Lock()
			cw.pending = true
			cw.lastEvent = time.Now()
			cw.mu.Unlock()

		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			logging.BootError("config watcher error: %v", err)

		case <-ticker.C:
			cw.flush()
		}
	}
}

// flush reloads once rapid saves have settled.
func (cw *Watcher) flush() {
	cw.mu.Lock()
	if !cw.pending || time.Since(cw.lastEvent) < cw.debounceDur {
		cw.mu.Unlock()
		return
	}
	cw.pending = false
	cw.mu.Unlock()

	cfg, err := Load(cw.path)
	if err != nil {
		logging.BootError("config watcher: reload failed, keeping previous config: %v", err)
		return
	}
	logging.Boot("config watcher: reloaded %s", cw.path)
	if cw.onChange != nil {
		cw.onChange(cfg)
	}
}

// ApplyLogging re-applies the logging level of a reloaded configuration.
func ApplyLogging(cfg *Config) {
	logging.SetLevel(cfg.Logging.Level)
}
