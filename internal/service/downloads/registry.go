package downloads

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vertextoedge/swiftsaver/internal/domain"
	"github.com/vertextoedge/swiftsaver/internal/domain/event"
	"github.com/vertextoedge/swiftsaver/internal/domain/vo"
	"github.com/vertextoedge/swiftsaver/internal/port"
	"github.com/vertextoedge/swiftsaver/internal/util/ratelimiter"
)

// SettingsReader supplies the concurrency cap at admission time
type SettingsReader interface {
	MaxConcurrentDownloads() int
}

// URLSource resolves a fetchable URL for a queued task
type URLSource interface {
	ResolveDownloadURL(ctx context.Context, sourceURL, quality, format string) (string, error)
}

// Config contains registry configuration
type Config struct {
	// Dir is the directory transfers write into
	Dir string

	// SnapshotInterval is the minimum gap between progress-driven snapshots
	SnapshotInterval time.Duration

	// DrainQueue starts the oldest pending task when a slot frees
	DrainQueue bool

	// ResolveTimeout bounds URL resolution during queue drain
	ResolveTimeout time.Duration
}

// DefaultConfig returns default registry configuration
func DefaultConfig() *Config {
	return &Config{
		SnapshotInterval: 200 * time.Millisecond,
		DrainQueue:       true,
		ResolveTimeout:   30 * time.Second,
	}
}

// CreateRequest describes a new download
type CreateRequest struct {
	URL       string
	Title     string
	Thumbnail string
	Quality   string
	Format    string
	Platform  domain.Platform
}

// activeJob is the registry's record of a running transfer.
// Fields are guarded by Registry.mu.
type activeJob struct {
	handle    port.JobHandle
	started   bool
	dest      string
	startedAt time.Time
}

// Registry owns download tasks and the transfers running for them.
// Subscriber callbacks run outside the state lock but are serialized, so
// snapshots arrive in mutation order. Callbacks must not call mutating
// registry methods synchronously.
type Registry struct {
	config     *Config
	transfer   port.Transfer
	fs         port.FileSystem
	settings   SettingsReader
	urls       URLSource
	dispatcher event.EventDispatcher
	logger     *zap.Logger
	now        func() time.Time

	mu        sync.Mutex
	tasks     map[string]*domain.DownloadTask
	order     []string
	active    map[string]*activeJob
	fetchBy   map[string]string
	attempted map[string]bool // tasks whose transfer has begun at least once
	closed    bool

	subMu        sync.Mutex
	nextSub      uint64
	snapshotSubs map[uint64]func([]*domain.DownloadTask)
	progressSubs map[uint64]func(domain.DownloadProgress)

	publishMu sync.Mutex
	snapshots *ratelimiter.Coalescer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Registry. settings, urls and dispatcher may be nil.
func New(cfg *Config, transfer port.Transfer, fs port.FileSystem, settings SettingsReader, urls URLSource, dispatcher event.EventDispatcher, logger *zap.Logger) *Registry {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Dir == "" {
		cfg.Dir = fs.RootDir()
	}
	if cfg.SnapshotInterval <= 0 {
		cfg.SnapshotInterval = 200 * time.Millisecond
	}
	if cfg.ResolveTimeout <= 0 {
		cfg.ResolveTimeout = 30 * time.Second
	}
	if dispatcher == nil {
		dispatcher = event.NewNullDispatcher()
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Registry{
		config:       cfg,
		transfer:     transfer,
		fs:           fs,
		settings:     settings,
		urls:         urls,
		dispatcher:   dispatcher,
		logger:       logger,
		now:          time.Now,
		tasks:        make(map[string]*domain.DownloadTask),
		active:       make(map[string]*activeJob),
		fetchBy:      make(map[string]string),
		attempted:    make(map[string]bool),
		snapshotSubs: make(map[uint64]func([]*domain.DownloadTask)),
		progressSubs: make(map[uint64]func(domain.DownloadProgress)),
		ctx:          ctx,
		cancel:       cancel,
	}
	r.snapshots = ratelimiter.NewCoalescer(cfg.SnapshotInterval, r.publishSnapshot)
	return r
}

// CreateTask registers a pending task
func (r *Registry) CreateTask(req CreateRequest) (*domain.DownloadTask, error) {
	req.URL = strings.TrimSpace(req.URL)
	req.Quality = strings.TrimSpace(req.Quality)
	req.Format = strings.TrimSpace(req.Format)
	if req.URL == "" || req.Quality == "" || req.Format == "" {
		return nil, fmt.Errorf("%w: url, quality and format are required", domain.ErrInvalidInput)
	}

	fileName := vo.NewFileName(req.Title, req.Quality, req.Format)
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = domain.DisplayTitle(fileName)
	}

	task := domain.NewDownloadTask(vo.NewTaskID(), req.URL, fileName, title, req.Quality, req.Format, r.now())
	task.Thumbnail = req.Thumbnail
	task.Platform = req.Platform

	r.mu.Lock()
	r.tasks[task.ID] = task
	r.order = append(r.order, task.ID)
	created := task.Clone()
	r.mu.Unlock()

	r.logger.Info("download task created",
		zap.String("task_id", created.ID),
		zap.String("file", created.FileName))

	r.snapshots.Flush()
	r.dispatcher.Dispatch(event.NewTaskCreated(created))
	return created, nil
}

// Task returns a copy of one task
func (r *Registry) Task(id string) (*domain.DownloadTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	return t.Clone(), nil
}

// Tasks returns copies of all tasks, newest first
func (r *Registry) Tasks() []*domain.DownloadTask {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// TasksByStatus returns copies of tasks in status, newest first
func (r *Registry) TasksByStatus(status domain.Status) []*domain.DownloadTask {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.DownloadTask, 0)
	for i := len(r.order) - 1; i >= 0; i-- {
		if t := r.tasks[r.order[i]]; t.Status == status {
			out = append(out, t.Clone())
		}
	}
	return out
}

// ActiveCount returns the number of running transfers
func (r *Registry) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}

// InProgressPaths returns the destination paths of running transfers
func (r *Registry) InProgressPaths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	paths := make([]string, 0, len(r.active))
	for _, job := range r.active {
		paths = append(paths, job.dest)
	}
	sort.Strings(paths)
	return paths
}

// RemoveTask erases a terminal task. Non-terminal tasks are left alone.
func (r *Registry) RemoveTask(id string) bool {
	r.mu.Lock()
	t, ok := r.tasks[id]
	if !ok || !t.CanRemove() {
		r.mu.Unlock()
		return false
	}
	r.deleteLocked(id)
	r.mu.Unlock()

	r.snapshots.Flush()
	return true
}

// ClearCompleted erases every completed task and returns how many were removed
func (r *Registry) ClearCompleted() int {
	r.mu.Lock()
	removed := 0
	for _, id := range append([]string(nil), r.order...) {
		if r.tasks[id].Status == domain.StatusCompleted {
			r.deleteLocked(id)
			removed++
		}
	}
	r.mu.Unlock()

	if removed > 0 {
		r.snapshots.Flush()
	}
	return removed
}

// PruneFinished erases failed and cancelled tasks not updated within
// olderThan. Completed tasks are kept until cleared by the user.
func (r *Registry) PruneFinished(olderThan time.Duration) int {
	cutoff := r.now().Add(-olderThan)

	r.mu.Lock()
	removed := 0
	for _, id := range append([]string(nil), r.order...) {
		t := r.tasks[id]
		if (t.Status == domain.StatusFailed || t.Status == domain.StatusCancelled) && t.UpdatedAt.Before(cutoff) {
			r.deleteLocked(id)
			removed++
		}
	}
	r.mu.Unlock()

	if removed > 0 {
		r.snapshots.Flush()
	}
	return removed
}

// Shutdown stops every running transfer and waits for background work.
// Interrupted tasks are left paused.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	stops := make([]port.JobHandle, 0, len(r.active))
	for id, job := range r.active {
		if job.started {
			stops = append(stops, job.handle)
		}
		if t := r.tasks[id]; t != nil {
			_ = t.MarkPaused(r.now())
		}
		delete(r.active, id)
	}
	r.mu.Unlock()

	r.cancel()
	for _, h := range stops {
		r.transfer.StopDownload(h)
	}
	r.wg.Wait()

	r.snapshots.Flush()
	r.snapshots.Stop()
	r.logger.Info("download registry stopped", zap.Int("stopped_transfers", len(stops)))
}

func (r *Registry) deleteLocked(id string) {
	delete(r.tasks, id)
	delete(r.fetchBy, id)
	delete(r.attempted, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

func (r *Registry) snapshotLocked() []*domain.DownloadTask {
	out := make([]*domain.DownloadTask, 0, len(r.order))
	for i := len(r.order) - 1; i >= 0; i-- {
		out = append(out, r.tasks[r.order[i]].Clone())
	}
	return out
}

func (r *Registry) destination(t *domain.DownloadTask) string {
	return filepath.Join(r.config.Dir, t.FileName)
}

func (r *Registry) maxConcurrent() int {
	if r.settings == nil {
		return domain.DefaultConcurrentDownloads
	}
	return domain.ClampConcurrency(r.settings.MaxConcurrentDownloads())
}
