package ftm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/osinto/casefile/internal/logging"
)

const (
	watcherDebounce    = 500 * time.Millisecond
	watcherReadyWait   = 5 * time.Second
	watcherStopWait    = 5 * time.Second
	watcherReAddDelay  = 50 * time.Millisecond
	watcherChangeFlags = fsnotify.Write | fsnotify.Create | fsnotify.Rename | fsnotify.Remove
)

// CatalogWatcher reloads a schema catalog file into a shared Catalog
// whenever the file changes. Change events are debounced so editor save
// sequences produce one reload. A reload that fails to parse keeps the
// previous catalog.
type CatalogWatcher struct {
	path     string
	catalog  *Catalog
	logger   *logging.Logger
	debounce time.Duration

	cancel  context.CancelFunc
	stopped chan struct{}
	ready   chan struct{}

	mu            sync.Mutex
	debounceTimer *time.Timer
}

// NewCatalogWatcher builds a watcher for the catalog file at path that
// swaps reloaded schemata into catalog.
func NewCatalogWatcher(path string, catalog *Catalog, logger *logging.Logger) (*CatalogWatcher, error) {
	if path == "" {
		return nil, fmt.Errorf("catalog path cannot be empty")
	}
	if catalog == nil {
		return nil, fmt.Errorf("catalog cannot be nil")
	}
	return &CatalogWatcher{
		path:     path,
		catalog:  catalog,
		logger:   logger.WithName("schema-watcher"),
		debounce: watcherDebounce,
		stopped:  make(chan struct{}),
		ready:    make(chan struct{}),
	}, nil
}

// Name implements lifecycle.Component.
func (w *CatalogWatcher) Name() string { return "schema-catalog-watcher" }

// Start loads the catalog file once, then watches it for changes. It
// returns once the file watch is established so later writes are not
// missed.
func (w *CatalogWatcher) Start(ctx context.Context) error {
	loaded, err := LoadCatalog(w.path)
	if err != nil {
		return fmt.Errorf("loading initial schema catalog: %w", err)
	}
	w.catalog.Replace(loaded.List())
	w.logger.InfoWithFields("loaded schema catalog",
		logging.Field("path", w.path),
		logging.Field("schemata", w.catalog.Len()))

	watchCtx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	go w.watchLoop(watchCtx)

	select {
	case <-w.ready:
		return nil
	case <-ctx.Done():
		cancel()
		return ctx.Err()
	case <-time.After(watcherReadyWait):
		cancel()
		return fmt.Errorf("timeout waiting for catalog watcher to initialize")
	}
}

// Stop cancels the watch loop and waits for it to exit.
func (w *CatalogWatcher) Stop(ctx context.Context) error {
	if w.cancel != nil {
		w.cancel()
	}
	select {
	case <-w.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(watcherStopWait):
		return fmt.Errorf("timeout waiting for catalog watcher to stop")
	}
}

func (w *CatalogWatcher) signalReady() {
	w.mu.Lock()
	defer w.mu.Unlock()
	select {
	case <-w.ready:
	default:
		close(w.ready)
	}
}

func (w *CatalogWatcher) watchLoop(ctx context.Context) {
	defer close(w.stopped)
	defer w.signalReady()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.logger.ErrorWithErr("failed to create file watcher", err)
		return
	}
	defer watcher.Close()

	if err := watcher.Add(w.path); err != nil {
		w.logger.ErrorWithErr("failed to watch catalog file", err)
		return
	}
	w.signalReady()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&watcherChangeFlags == 0 {
				continue
			}
			// Atomic writes unlink or rename the watched inode; the
			// watch must be re-added before the next event can fire.
			if event.Op&(fsnotify.Rename|fsnotify.Remove) != 0 {
				time.Sleep(watcherReAddDelay)
				if err := watcher.Add(w.path); err != nil {
					w.logger.WarnWithFields("failed to re-add catalog watch",
						logging.Field("op", event.Op.String()),
						logging.Field("error", err.Error()))
				}
			}
			w.scheduleReload()

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.logger.ErrorWithErr("catalog watcher error", err)
		}
	}
}

// scheduleReload coalesces bursts of change events into one reload.
func (w *CatalogWatcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debounce, w.reload)
}

func (w *CatalogWatcher) reload() {
	loaded, err := LoadCatalog(w.path)
	if err != nil {
		w.logger.WarnWithFields("schema catalog reload failed, keeping previous catalog",
			logging.Field("path", w.path),
			logging.Field("error", err.Error()))
		return
	}
	w.catalog.Replace(loaded.List())
	w.logger.InfoWithFields("schema catalog reloaded",
		logging.Field("path", w.path),
		logging.Field("schemata", w.catalog.Len()))
}
