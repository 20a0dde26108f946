package library

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/vertextoedge/swiftsaver/internal/domain/event"
	"github.com/vertextoedge/swiftsaver/internal/domain/vo"
	"github.com/vertextoedge/swiftsaver/internal/util/ratelimiter"
)

// Watcher publishes LibraryChanged when finished files appear, change or
// disappear in the download directory. Bursts are coalesced.
type Watcher struct {
	dir        string
	dispatcher event.EventDispatcher
	logger     *zap.Logger
	coalescer  *ratelimiter.Coalescer

	mu       sync.Mutex
	lastPath string
	lastOp   string
}

// NewWatcher creates a watcher for dir
func NewWatcher(dir string, dispatcher event.EventDispatcher, debounce time.Duration, logger *zap.Logger) *Watcher {
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	w := &Watcher{
		dir:        dir,
		dispatcher: dispatcher,
		logger:     logger,
	}
	w.coalescer = ratelimiter.NewCoalescer(debounce, w.publish)
	return w
}

// Start watches the directory until ctx is cancelled
func (w *Watcher) Start(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fw.Close()
	defer w.coalescer.Stop()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}

	w.logger.Info("library watcher started", zap.String("dir", w.dir))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("library watcher stopped")
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("library watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if vo.IsTempPath(ev.Name) || (ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write)) {
		return
	}

	w.mu.Lock()
	w.lastPath = ev.Name
	w.lastOp = strings.ToLower(ev.Op.String())
	w.mu.Unlock()

	w.coalescer.Trigger()
}

func (w *Watcher) publish() {
	w.mu.Lock()
	path, op := w.lastPath, w.lastOp
	w.mu.Unlock()

	w.logger.Debug("library changed", zap.String("path", path), zap.String("op", op))
	w.dispatcher.Dispatch(event.NewLibraryChanged(path, op))
}
