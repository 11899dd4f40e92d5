package supervisor

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"vawter.tech/stopper"

	"github.com/core-tools/hsu-init/pkg/errors"
	"github.com/core-tools/hsu-init/pkg/logging"
	"github.com/core-tools/hsu-init/pkg/units"
)

// DefaultWatchDebounce is how long a unit file must stay quiet before its path
// is reported.
const DefaultWatchDebounce = 50 * time.Millisecond

// UnitWatcher reports the paths of unit files created or written in a
// directory after boot. Feed Paths to Supervisor.WatchUnitFiles.
type UnitWatcher struct {
	dir      string
	debounce time.Duration
	logger   logging.Logger

	watcher *fsnotify.Watcher
	sctx    *stopper.Context
	paths   chan string

	mu      sync.Mutex
	pending map[string]*time.Timer
}

func WatchUnitDir(ctx context.Context, dir string, debounce time.Duration, logger logging.Logger) (*UnitWatcher, error) {
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.NewIOError("failed to create unit file watcher", err).WithContext("dir", dir)
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, errors.NewIOError("failed to watch unit directory", err).WithContext("dir", dir)
	}

	w := &UnitWatcher{
		dir:      dir,
		debounce: debounce,
		logger:   logger,
		watcher:  watcher,
		sctx:     stopper.WithContext(ctx),
		paths:    make(chan string, 16),
		pending:  make(map[string]*time.Timer),
	}

	w.sctx.Defer(func() {
		w.mu.Lock()
		for path, timer := range w.pending {
			timer.Stop()
			delete(w.pending, path)
		}
		w.mu.Unlock()
		_ = watcher.Close()
	})

	w.sctx.Go(w.run)

	logger.Infof("Watching %s for new service files", dir)
	return w, nil
}

// Paths delivers unit file paths. It is never closed; stop reading after
// Close returns.
func (w *UnitWatcher) Paths() <-chan string {
	return w.paths
}

func (w *UnitWatcher) Close() error {
	w.sctx.Stop(100 * time.Millisecond)
	return w.sctx.Wait()
}

func (w *UnitWatcher) run(sctx *stopper.Context) error {
	for !sctx.IsStopping() {
		select {
		case <-sctx.Stopping():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if units.IsHidden(filepath.Base(event.Name)) {
				continue
			}
			w.schedule(event.Name)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			if err != nil {
				w.logger.Warnf("Service directory watch error on %s: %v", w.dir, err)
			}
		}
	}
	return nil
}

// schedule (re)arms the debounce timer of path.
func (w *UnitWatcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[path]; ok {
		timer.Stop()
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		// Delivery runs under the stopper so Close waits for it.
		w.sctx.Go(func(sctx *stopper.Context) error {
			w.deliver(sctx, path)
			return nil
		})
	})
}

func (w *UnitWatcher) deliver(sctx *stopper.Context, path string) {
	if sctx.IsStopping() {
		return
	}
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return
	}
	select {
	case w.paths <- path:
	case <-sctx.Stopping():
	}
}
