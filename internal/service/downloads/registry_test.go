package downloads

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/vertextoedge/swiftsaver/internal/adapter/filesystem"
	"github.com/vertextoedge/swiftsaver/internal/domain"
	"github.com/vertextoedge/swiftsaver/internal/domain/event"
	"github.com/vertextoedge/swiftsaver/internal/port"
)

// fakeJob is a transfer driven by the test
type fakeJob struct {
	url        string
	dest       string
	onProgress func(port.TransferProgress)
	done       chan port.TransferResult
	finished   bool
	stopped    bool
}

type fakeTransfer struct {
	mu       sync.Mutex
	next     port.JobHandle
	jobs     map[port.JobHandle]*fakeJob
	order    []port.JobHandle
	startErr error
}

func newFakeTransfer() *fakeTransfer {
	return &fakeTransfer{jobs: make(map[port.JobHandle]*fakeJob)}
}

func (f *fakeTransfer) DownloadFile(fromURL, toFile string, onProgress func(port.TransferProgress)) (*port.TransferJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return nil, f.startErr
	}
	f.next++
	job := &fakeJob{
		url:        fromURL,
		dest:       toFile,
		onProgress: onProgress,
		done:       make(chan port.TransferResult, 1),
	}
	f.jobs[f.next] = job
	f.order = append(f.order, f.next)
	return &port.TransferJob{Handle: f.next, Done: job.done}, nil
}

func (f *fakeTransfer) StopDownload(handle port.JobHandle) {
	f.mu.Lock()
	job, ok := f.jobs[handle]
	if ok {
		job.stopped = true
	}
	f.mu.Unlock()
	if ok {
		f.end(handle, port.TransferResult{Err: context.Canceled})
	}
}

func (f *fakeTransfer) progress(handle port.JobHandle, written, total int64) {
	f.mu.Lock()
	job := f.jobs[handle]
	f.mu.Unlock()
	job.onProgress(port.TransferProgress{BytesWritten: written, ContentLength: total, BytesPerSecond: 10})
}

func (f *fakeTransfer) end(handle port.JobHandle, res port.TransferResult) {
	f.mu.Lock()
	job := f.jobs[handle]
	if job.finished {
		f.mu.Unlock()
		return
	}
	job.finished = true
	f.mu.Unlock()
	job.done <- res
	close(job.done)
}

func (f *fakeTransfer) last() port.JobHandle {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.order) == 0 {
		return 0
	}
	return f.order[len(f.order)-1]
}

func (f *fakeTransfer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.order)
}

func (f *fakeTransfer) job(handle port.JobHandle) fakeJob {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.jobs[handle]
}

type fakeSettings struct {
	max atomic.Int32
}

func newFakeSettings(n int) *fakeSettings {
	s := &fakeSettings{}
	s.max.Store(int32(n))
	return s
}

func (s *fakeSettings) MaxConcurrentDownloads() int { return int(s.max.Load()) }

type fakeURLSource struct {
	calls atomic.Int32
	err   error
}

func (s *fakeURLSource) ResolveDownloadURL(ctx context.Context, sourceURL, quality, format string) (string, error) {
	s.calls.Add(1)
	if s.err != nil {
		return "", s.err
	}
	return "https://media.example.com/" + quality + "." + format, nil
}

type eventRecorder struct {
	mu     sync.Mutex
	events []event.DomainEvent
}

func (e *eventRecorder) Handle(ev event.DomainEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
	return nil
}

func (e *eventRecorder) HandledEvents() []string {
	return []string{event.NameTaskCreated, event.NameTaskCompleted, event.NameTaskFailed, event.NameTaskCancelled}
}

func (e *eventRecorder) names() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.events))
	for _, ev := range e.events {
		out = append(out, ev.EventName())
	}
	return out
}

type testEnv struct {
	registry *Registry
	transfer *fakeTransfer
	settings *fakeSettings
	urls     *fakeURLSource
	events   *eventRecorder
	dir      string
}

func newTestEnv(t *testing.T, maxConcurrent int, mutate func(*Config)) *testEnv {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "SwiftSaver")
	fs, err := filesystem.NewManager(dir)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	cfg := &Config{Dir: dir, SnapshotInterval: 10 * time.Millisecond, DrainQueue: true, ResolveTimeout: time.Second}
	if mutate != nil {
		mutate(cfg)
	}

	env := &testEnv{
		transfer: newFakeTransfer(),
		settings: newFakeSettings(maxConcurrent),
		urls:     &fakeURLSource{},
		events:   &eventRecorder{},
		dir:      dir,
	}
	dispatcher := event.NewInMemoryDispatcher(false)
	dispatcher.Subscribe(env.events)

	env.registry = New(cfg, env.transfer, fs, env.settings, env.urls, dispatcher, zap.NewNop())
	t.Cleanup(env.registry.Shutdown)
	return env
}

func (e *testEnv) create(t *testing.T, title string) *domain.DownloadTask {
	t.Helper()
	task, err := e.registry.CreateTask(CreateRequest{
		URL:      "https://www.youtube.com/watch?v=" + title,
		Title:    title,
		Quality:  "720p",
		Format:   "mp4",
		Platform: domain.PlatformYouTube,
	})
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}
	return task
}

func (e *testEnv) status(t *testing.T, id string) *domain.DownloadTask {
	t.Helper()
	task, err := e.registry.Task(id)
	if err != nil {
		t.Fatalf("Task(%s) error = %v", id, err)
	}
	return task
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func (e *testEnv) waitStatus(t *testing.T, id string, want domain.Status) *domain.DownloadTask {
	t.Helper()
	var task *domain.DownloadTask
	waitFor(t, "status "+string(want), func() bool {
		task = e.status(t, id)
		return task.Status == want
	})
	return task
}

func TestRegistry_CreateTask(t *testing.T) {
	env := newTestEnv(t, 2, nil)

	tests := []struct {
		name    string
		req     CreateRequest
		wantErr error
	}{
		{"missing url", CreateRequest{Quality: "720p", Format: "mp4"}, domain.ErrInvalidInput},
		{"missing quality", CreateRequest{URL: "https://vimeo.com/1", Format: "mp4"}, domain.ErrInvalidInput},
		{"missing format", CreateRequest{URL: "https://vimeo.com/1", Quality: "720p", Format: "  "}, domain.ErrInvalidInput},
		{"valid", CreateRequest{URL: "https://vimeo.com/1", Title: "My Clip!", Quality: "720p", Format: "mp4"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task, err := env.registry.CreateTask(tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("CreateTask() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}
			if !strings.HasPrefix(task.ID, "download_") {
				t.Errorf("ID = %s", task.ID)
			}
			if task.Status != domain.StatusPending || task.Progress != 0 {
				t.Errorf("task = %+v, want pending at 0", task)
			}
			if task.FileName != "My_Clip__720p.mp4" {
				t.Errorf("FileName = %s", task.FileName)
			}
		})
	}

	if got := len(env.registry.Tasks()); got != 1 {
		t.Errorf("Tasks() = %d, want 1", got)
	}
	if got := env.events.names(); len(got) != 1 || got[0] != event.NameTaskCreated {
		t.Errorf("events = %v", got)
	}
}

func TestRegistry_TasksNewestFirst(t *testing.T) {
	env := newTestEnv(t, 2, nil)
	a := env.create(t, "a")
	b := env.create(t, "b")
	c := env.create(t, "c")

	tasks := env.registry.Tasks()
	if len(tasks) != 3 || tasks[0].ID != c.ID || tasks[1].ID != b.ID || tasks[2].ID != a.ID {
		t.Errorf("Tasks() order wrong: %v %v %v", tasks[0].ID, tasks[1].ID, tasks[2].ID)
	}

	tasks[0].Title = "mutated"
	if env.status(t, c.ID).Title == "mutated" {
		t.Error("Tasks() returned shared task state")
	}
}

func TestRegistry_UnknownTask(t *testing.T) {
	env := newTestEnv(t, 2, nil)
	ctx := context.Background()

	if err := env.registry.StartDownload(ctx, "nope", "https://x"); !errors.Is(err, domain.ErrTaskNotFound) {
		t.Errorf("StartDownload() error = %v", err)
	}
	if err := env.registry.PauseDownload("nope"); !errors.Is(err, domain.ErrTaskNotFound) {
		t.Errorf("PauseDownload() error = %v", err)
	}
	if err := env.registry.CancelDownload("nope"); !errors.Is(err, domain.ErrTaskNotFound) {
		t.Errorf("CancelDownload() error = %v", err)
	}
	if err := env.registry.ResumeDownload(ctx, "nope", ""); !errors.Is(err, domain.ErrTaskNotFound) {
		t.Errorf("ResumeDownload() error = %v", err)
	}
	if err := env.registry.RetryDownload(ctx, "nope", ""); !errors.Is(err, domain.ErrTaskNotFound) {
		t.Errorf("RetryDownload() error = %v", err)
	}
	if _, err := env.registry.Task("nope"); !errors.Is(err, domain.ErrTaskNotFound) {
		t.Errorf("Task() error = %v", err)
	}
}

func TestRegistry_AdmissionAtCapacity(t *testing.T) {
	env := newTestEnv(t, 1, func(c *Config) { c.DrainQueue = false })
	ctx := context.Background()
	a := env.create(t, "a")
	b := env.create(t, "b")

	if err := env.registry.StartDownload(ctx, a.ID, "https://media/a.mp4"); err != nil {
		t.Fatalf("StartDownload(a) error = %v", err)
	}
	if err := env.registry.StartDownload(ctx, b.ID, "https://media/b.mp4"); err != nil {
		t.Fatalf("StartDownload(b) error = %v", err)
	}

	if got := env.status(t, a.ID).Status; got != domain.StatusDownloading {
		t.Errorf("a status = %v, want downloading", got)
	}
	if got := env.status(t, b.ID).Status; got != domain.StatusPending {
		t.Errorf("b status = %v, want pending", got)
	}
	if got := env.registry.ActiveCount(); got != 1 {
		t.Errorf("ActiveCount() = %d, want 1", got)
	}
	if got := env.transfer.count(); got != 1 {
		t.Errorf("transfers started = %d, want 1", got)
	}

	// The cap is read at call time
	env.settings.max.Store(2)
	if err := env.registry.StartDownload(ctx, b.ID, ""); err != nil {
		t.Fatalf("StartDownload(b) error = %v", err)
	}
	if got := env.status(t, b.ID).Status; got != domain.StatusDownloading {
		t.Errorf("b status after raising cap = %v, want downloading", got)
	}
	if got := env.transfer.job(env.transfer.last()).url; got != "https://media/b.mp4" {
		t.Errorf("queued task fetched %s, want remembered url", got)
	}
}

func TestRegistry_StartDownloadStates(t *testing.T) {
	env := newTestEnv(t, 2, nil)
	ctx := context.Background()
	task := env.create(t, "a")

	if err := env.registry.StartDownload(ctx, task.ID, ""); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("StartDownload() without url error = %v, want %v", err, domain.ErrInvalidInput)
	}
	if err := env.registry.StartDownload(ctx, task.ID, "https://media/a.mp4"); err != nil {
		t.Fatal(err)
	}
	if err := env.registry.StartDownload(ctx, task.ID, "https://media/a.mp4"); err != nil {
		t.Errorf("StartDownload() while downloading error = %v, want nil", err)
	}
	if got := env.transfer.count(); got != 1 {
		t.Errorf("transfers started = %d, want 1", got)
	}

	env.transfer.end(env.transfer.last(), port.TransferResult{StatusCode: 200})
	env.waitStatus(t, task.ID, domain.StatusCompleted)

	if err := env.registry.StartDownload(ctx, task.ID, "https://media/a.mp4"); !errors.Is(err, domain.ErrInvalidStateTransition) {
		t.Errorf("StartDownload() on completed error = %v, want %v", err, domain.ErrInvalidStateTransition)
	}
}

func TestRegistry_CompletionAndProgress(t *testing.T) {
	env := newTestEnv(t, 2, nil)
	task := env.create(t, "a")

	var mu sync.Mutex
	var samples []domain.DownloadProgress
	unsubscribe := env.registry.SubscribeProgress(func(p domain.DownloadProgress) {
		mu.Lock()
		samples = append(samples, p)
		mu.Unlock()
	})
	defer unsubscribe()

	if err := env.registry.StartDownload(context.Background(), task.ID, "https://media/a.mp4"); err != nil {
		t.Fatal(err)
	}
	h := env.transfer.last()
	if got := env.transfer.job(h).dest; got != filepath.Join(env.dir, task.FileName) {
		t.Errorf("dest = %s", got)
	}
	if paths := env.registry.InProgressPaths(); len(paths) != 1 || paths[0] != filepath.Join(env.dir, task.FileName) {
		t.Errorf("InProgressPaths() = %v", paths)
	}

	env.transfer.progress(h, 25, 100)
	env.transfer.progress(h, 50, 100)

	mid := env.status(t, task.ID)
	if mid.Progress != 50 || mid.DownloadedSize != 50 || mid.TotalSize != 100 {
		t.Errorf("mid task = %+v", mid)
	}
	if mid.Speed == nil || *mid.Speed != 10 || mid.ETA == nil || *mid.ETA != 5 {
		t.Errorf("speed/eta = %v/%v", mid.Speed, mid.ETA)
	}

	env.transfer.end(h, port.TransferResult{StatusCode: 200, BytesWritten: 100})
	done := env.waitStatus(t, task.ID, domain.StatusCompleted)

	if done.Progress != 100 || done.DownloadedSize != 100 {
		t.Errorf("completed task = %+v", done)
	}
	if done.FilePath != filepath.Join(env.dir, task.FileName) || done.CompletedAt == nil || done.Error != "" {
		t.Errorf("completed outcome = %+v", done)
	}
	if got := env.registry.ActiveCount(); got != 0 {
		t.Errorf("ActiveCount() = %d, want 0", got)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(samples) != 2 {
		t.Fatalf("progress samples = %d, want 2", len(samples))
	}
	for i, s := range samples {
		if s.Progress < 0 || s.Progress > 100 || s.DownloadedSize > s.TotalSize {
			t.Errorf("sample %d out of range: %+v", i, s)
		}
		if i > 0 && s.DownloadedSize < samples[i-1].DownloadedSize {
			t.Errorf("sample %d went backwards", i)
		}
	}

	waitFor(t, "completed event", func() bool {
		for _, n := range env.events.names() {
			if n == event.NameTaskCompleted {
				return true
			}
		}
		return false
	})
}

func TestRegistry_Failure(t *testing.T) {
	tests := []struct {
		name    string
		result  port.TransferResult
		wantMsg string
	}{
		{"bad status", port.TransferResult{StatusCode: 404, Err: errors.New("grab: bad status")}, "Download failed with status 404"},
		{"transport error", port.TransferResult{Err: errors.New("connection reset")}, "connection reset"},
		{"success status with error", port.TransferResult{StatusCode: 200, Err: errors.New("rename failed")}, "rename failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, 2, nil)
			task := env.create(t, "a")
			if err := env.registry.StartDownload(context.Background(), task.ID, "https://media/a.mp4"); err != nil {
				t.Fatalf("StartDownload() error = %v", err)
			}
			env.transfer.end(env.transfer.last(), tt.result)

			failed := env.waitStatus(t, task.ID, domain.StatusFailed)
			if failed.Error != tt.wantMsg {
				t.Errorf("Error = %q, want %q", failed.Error, tt.wantMsg)
			}
			if failed.FilePath != "" {
				t.Errorf("FilePath = %q, want empty", failed.FilePath)
			}
		})
	}
}

func TestRegistry_TransferDoesNotStart(t *testing.T) {
	env := newTestEnv(t, 2, nil)
	env.transfer.startErr = errors.New("unsupported protocol")
	task := env.create(t, "a")

	if err := env.registry.StartDownload(context.Background(), task.ID, "ftp://media/a.mp4"); err != nil {
		t.Fatalf("StartDownload() error = %v, want nil", err)
	}
	failed := env.status(t, task.ID)
	if failed.Status != domain.StatusFailed || failed.Error != "unsupported protocol" {
		t.Errorf("task = %+v", failed)
	}
	if got := env.registry.ActiveCount(); got != 0 {
		t.Errorf("ActiveCount() = %d, want 0", got)
	}
}

func TestRegistry_PauseResume(t *testing.T) {
	env := newTestEnv(t, 1, nil)
	ctx := context.Background()
	task := env.create(t, "a")

	if err := env.registry.PauseDownload(task.ID); err != nil {
		t.Errorf("PauseDownload() on pending error = %v", err)
	}
	if got := env.status(t, task.ID).Status; got != domain.StatusPending {
		t.Errorf("pause on pending changed status to %v", got)
	}

	if err := env.registry.StartDownload(ctx, task.ID, "https://media/a.mp4"); err != nil {
		t.Fatal(err)
	}
	first := env.transfer.last()
	env.transfer.progress(first, 40, 100)

	if err := env.registry.PauseDownload(task.ID); err != nil {
		t.Fatalf("PauseDownload() error = %v", err)
	}
	paused := env.status(t, task.ID)
	if paused.Status != domain.StatusPaused || paused.Progress != 40 {
		t.Errorf("paused task = %+v", paused)
	}
	if !env.transfer.job(first).stopped {
		t.Error("transfer not stopped on pause")
	}
	if got := env.registry.ActiveCount(); got != 0 {
		t.Errorf("ActiveCount() = %d, want 0", got)
	}

	// Late callbacks from the stopped job are ignored
	env.transfer.progress(first, 90, 100)
	if got := env.status(t, task.ID); got.Progress != 40 || got.Status != domain.StatusPaused {
		t.Errorf("stale progress applied: %+v", got)
	}

	if err := env.registry.ResumeDownload(ctx, task.ID, ""); err != nil {
		t.Fatalf("ResumeDownload() error = %v", err)
	}
	resumed := env.status(t, task.ID)
	if resumed.Status != domain.StatusDownloading || resumed.DownloadedSize != 0 || resumed.Progress != 0 {
		t.Errorf("resumed task = %+v, want restart from zero", resumed)
	}
	second := env.transfer.last()
	if second == first {
		t.Fatal("resume did not start a new transfer")
	}
	if got := env.transfer.job(second).url; got != "https://media/a.mp4" {
		t.Errorf("resume url = %s", got)
	}

	if err := env.registry.ResumeDownload(ctx, task.ID, ""); err != nil {
		t.Errorf("ResumeDownload() on downloading error = %v", err)
	}
	if got := env.transfer.count(); got != 2 {
		t.Errorf("transfers = %d, want 2", got)
	}
}

func TestRegistry_ResumeAtCapacityQueues(t *testing.T) {
	env := newTestEnv(t, 1, func(c *Config) { c.DrainQueue = false })
	ctx := context.Background()
	a := env.create(t, "a")
	b := env.create(t, "b")

	if err := env.registry.StartDownload(ctx, a.ID, "https://media/a.mp4"); err != nil {
		t.Fatal(err)
	}
	env.transfer.progress(env.transfer.last(), 30, 100)
	if err := env.registry.PauseDownload(a.ID); err != nil {
		t.Fatal(err)
	}
	if err := env.registry.StartDownload(ctx, b.ID, "https://media/b.mp4"); err != nil {
		t.Fatal(err)
	}

	if err := env.registry.ResumeDownload(ctx, a.ID, ""); err != nil {
		t.Fatalf("ResumeDownload() error = %v", err)
	}
	queued := env.status(t, a.ID)
	if queued.Status != domain.StatusPending || queued.DownloadedSize != 0 {
		t.Errorf("resumed at capacity = %+v, want pending with counters reset", queued)
	}
}

func TestRegistry_CancelRemovesPartialFile(t *testing.T) {
	env := newTestEnv(t, 2, nil)
	task := env.create(t, "a")
	if err := env.registry.StartDownload(context.Background(), task.ID, "https://media/a.mp4"); err != nil {
		t.Fatal(err)
	}

	dest := filepath.Join(env.dir, task.FileName)
	if err := os.WriteFile(dest+".downloading", []byte("partial"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := env.registry.CancelDownload(task.ID); err != nil {
		t.Fatalf("CancelDownload() error = %v", err)
	}

	cancelled := env.status(t, task.ID)
	if cancelled.Status != domain.StatusCancelled {
		t.Errorf("status = %v, want cancelled", cancelled.Status)
	}
	if _, err := os.Stat(dest + ".downloading"); !os.IsNotExist(err) {
		t.Errorf("partial file still present: %v", err)
	}
	if !env.transfer.job(env.transfer.last()).stopped {
		t.Error("transfer not stopped on cancel")
	}

	// Cancelling a terminal task is a no-op
	if err := env.registry.CancelDownload(task.ID); err != nil {
		t.Errorf("second CancelDownload() error = %v", err)
	}
}

func TestRegistry_CancelRequeuedRemovesPartialFile(t *testing.T) {
	env := newTestEnv(t, 1, func(c *Config) { c.DrainQueue = false })
	ctx := context.Background()
	first := env.create(t, "first")
	second := env.create(t, "second")

	if err := env.registry.StartDownload(ctx, first.ID, "https://media/first.mp4"); err != nil {
		t.Fatal(err)
	}
	if err := env.registry.PauseDownload(first.ID); err != nil {
		t.Fatal(err)
	}
	if err := env.registry.StartDownload(ctx, second.ID, "https://media/second.mp4"); err != nil {
		t.Fatal(err)
	}

	// No free slot, so resuming parks the paused task back in pending
	if err := env.registry.ResumeDownload(ctx, first.ID, ""); err != nil {
		t.Fatal(err)
	}
	if got := env.status(t, first.ID).Status; got != domain.StatusPending {
		t.Fatalf("status = %v, want pending", got)
	}

	dest := filepath.Join(env.dir, first.FileName)
	if err := os.WriteFile(dest+".downloading", []byte("partial"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := env.registry.CancelDownload(first.ID); err != nil {
		t.Fatalf("CancelDownload() error = %v", err)
	}
	if _, err := os.Stat(dest + ".downloading"); !os.IsNotExist(err) {
		t.Errorf("partial file of re-queued task still present: %v", err)
	}
	if got := env.status(t, second.ID).Status; got != domain.StatusDownloading {
		t.Errorf("other task status = %v, want downloading", got)
	}
}

func TestRegistry_CancelPendingKeepsFiles(t *testing.T) {
	env := newTestEnv(t, 2, nil)
	task := env.create(t, "a")

	// A finished file of the same name belongs to an earlier task
	dest := filepath.Join(env.dir, task.FileName)
	if err := os.WriteFile(dest, []byte("done"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := env.registry.CancelDownload(task.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(dest); err != nil {
		t.Errorf("cancel of pending task removed %s: %v", dest, err)
	}
}

func TestRegistry_RemoveTask(t *testing.T) {
	env := newTestEnv(t, 2, nil)
	task := env.create(t, "a")

	if env.registry.RemoveTask(task.ID) {
		t.Error("RemoveTask() on pending = true, want false")
	}
	if err := env.registry.CancelDownload(task.ID); err != nil {
		t.Fatal(err)
	}
	if !env.registry.RemoveTask(task.ID) {
		t.Error("RemoveTask() on cancelled = false, want true")
	}
	if _, err := env.registry.Task(task.ID); !errors.Is(err, domain.ErrTaskNotFound) {
		t.Errorf("Task() after remove error = %v", err)
	}
	if env.registry.RemoveTask(task.ID) {
		t.Error("RemoveTask() on unknown = true, want false")
	}
}

func TestRegistry_Retry(t *testing.T) {
	env := newTestEnv(t, 2, func(c *Config) { c.DrainQueue = false })
	ctx := context.Background()
	ok := env.create(t, "ok")
	bad := env.create(t, "bad")

	if err := env.registry.StartDownload(ctx, ok.ID, "https://media/ok.mp4"); err != nil {
		t.Fatal(err)
	}
	env.transfer.end(env.transfer.last(), port.TransferResult{StatusCode: 200})
	env.waitStatus(t, ok.ID, domain.StatusCompleted)

	// Retry on a completed task is a no-op
	if err := env.registry.RetryDownload(ctx, ok.ID, "https://media/ok.mp4"); err != nil {
		t.Errorf("RetryDownload() on completed error = %v", err)
	}
	if got := env.status(t, ok.ID); got.Status != domain.StatusCompleted || got.Progress != 100 {
		t.Errorf("completed task changed: %+v", got)
	}

	if err := env.registry.StartDownload(ctx, bad.ID, "https://media/bad.mp4"); err != nil {
		t.Fatal(err)
	}
	env.transfer.end(env.transfer.last(), port.TransferResult{StatusCode: 500})
	env.waitStatus(t, bad.ID, domain.StatusFailed)

	if err := env.registry.RetryDownload(ctx, bad.ID, ""); err != nil {
		t.Fatalf("RetryDownload() error = %v", err)
	}
	retried := env.status(t, bad.ID)
	if retried.Status != domain.StatusDownloading || retried.Error != "" || retried.Progress != 0 {
		t.Errorf("retried task = %+v", retried)
	}
	if got := env.transfer.job(env.transfer.last()).url; got != "https://media/bad.mp4" {
		t.Errorf("retry url = %s", got)
	}
}

func TestRegistry_ClearCompleted(t *testing.T) {
	env := newTestEnv(t, 2, func(c *Config) { c.DrainQueue = false })
	ctx := context.Background()
	a := env.create(t, "a")
	b := env.create(t, "b")
	env.create(t, "c")

	for _, task := range []*domain.DownloadTask{a, b} {
		if err := env.registry.StartDownload(ctx, task.ID, "https://media/x.mp4"); err != nil {
			t.Fatal(err)
		}
		env.transfer.end(env.transfer.last(), port.TransferResult{StatusCode: 200})
		env.waitStatus(t, task.ID, domain.StatusCompleted)
	}

	if got := len(env.registry.TasksByStatus(domain.StatusCompleted)); got != 2 {
		t.Fatalf("TasksByStatus(completed) = %d, want 2", got)
	}
	if got := env.registry.ClearCompleted(); got != 2 {
		t.Errorf("ClearCompleted() = %d, want 2", got)
	}
	if got := len(env.registry.Tasks()); got != 1 {
		t.Errorf("Tasks() = %d, want 1", got)
	}
}

func TestRegistry_QueueDrain(t *testing.T) {
	t.Run("remembered url", func(t *testing.T) {
		env := newTestEnv(t, 1, nil)
		ctx := context.Background()
		a := env.create(t, "a")
		b := env.create(t, "b")

		_ = env.registry.StartDownload(ctx, a.ID, "https://media/a.mp4")
		_ = env.registry.StartDownload(ctx, b.ID, "https://media/b.mp4")
		if got := env.status(t, b.ID).Status; got != domain.StatusPending {
			t.Fatalf("b status = %v, want pending", got)
		}

		env.transfer.end(env.transfer.last(), port.TransferResult{StatusCode: 200})
		env.waitStatus(t, b.ID, domain.StatusDownloading)

		if got := env.transfer.job(env.transfer.last()).url; got != "https://media/b.mp4" {
			t.Errorf("drained url = %s", got)
		}
		if got := env.urls.calls.Load(); got != 0 {
			t.Errorf("url source calls = %d, want 0", got)
		}
	})

	t.Run("resolved url", func(t *testing.T) {
		env := newTestEnv(t, 1, nil)
		a := env.create(t, "a")
		b := env.create(t, "b")

		_ = env.registry.StartDownload(context.Background(), a.ID, "https://media/a.mp4")
		if err := env.registry.PauseDownload(a.ID); err != nil {
			t.Fatal(err)
		}

		// a is paused, so only b is pending
		env.waitStatus(t, b.ID, domain.StatusDownloading)
		if got := env.transfer.job(env.transfer.last()).url; got != "https://media.example.com/720p.mp4" {
			t.Errorf("drained url = %s", got)
		}
		if got := env.urls.calls.Load(); got != 1 {
			t.Errorf("url source calls = %d, want 1", got)
		}
	})

	t.Run("disabled", func(t *testing.T) {
		env := newTestEnv(t, 1, func(c *Config) { c.DrainQueue = false })
		ctx := context.Background()
		a := env.create(t, "a")
		b := env.create(t, "b")

		_ = env.registry.StartDownload(ctx, a.ID, "https://media/a.mp4")
		_ = env.registry.StartDownload(ctx, b.ID, "https://media/b.mp4")
		env.transfer.end(env.transfer.last(), port.TransferResult{StatusCode: 200})
		env.waitStatus(t, a.ID, domain.StatusCompleted)

		time.Sleep(30 * time.Millisecond)
		if got := env.status(t, b.ID).Status; got != domain.StatusPending {
			t.Errorf("b status = %v, want pending", got)
		}
	})
}

func TestRegistry_Subscribe(t *testing.T) {
	env := newTestEnv(t, 2, nil)
	env.create(t, "a")

	var mu sync.Mutex
	var snapshots [][]*domain.DownloadTask
	unsubscribe := env.registry.Subscribe(func(tasks []*domain.DownloadTask) {
		mu.Lock()
		snapshots = append(snapshots, tasks)
		mu.Unlock()
	})

	mu.Lock()
	if len(snapshots) != 1 || len(snapshots[0]) != 1 {
		t.Fatalf("initial snapshot = %v, want one task", snapshots)
	}
	mu.Unlock()

	env.create(t, "b")
	mu.Lock()
	if n := len(snapshots); n != 2 || len(snapshots[1]) != 2 {
		t.Errorf("snapshots after create = %d", n)
	}
	mu.Unlock()

	unsubscribe()
	unsubscribe()

	env.create(t, "c")
	mu.Lock()
	defer mu.Unlock()
	if n := len(snapshots); n != 2 {
		t.Errorf("snapshots after unsubscribe = %d, want 2", n)
	}
}

func TestRegistry_ProgressSnapshotsCoalesced(t *testing.T) {
	env := newTestEnv(t, 2, func(c *Config) { c.SnapshotInterval = 50 * time.Millisecond })
	task := env.create(t, "a")
	if err := env.registry.StartDownload(context.Background(), task.ID, "https://media/a.mp4"); err != nil {
		t.Fatal(err)
	}

	var count atomic.Int32
	var last atomic.Int64
	unsubscribe := env.registry.Subscribe(func(tasks []*domain.DownloadTask) {
		count.Add(1)
		last.Store(tasks[0].DownloadedSize)
	})
	defer unsubscribe()

	h := env.transfer.last()
	for i := int64(1); i <= 20; i++ {
		env.transfer.progress(h, i*5, 100)
	}

	// The trailing snapshot carries the final sample
	waitFor(t, "trailing snapshot", func() bool { return last.Load() == 100 })
	if got := count.Load(); got > 4 {
		t.Errorf("snapshots = %d, want progress coalesced", got)
	}
}

func TestRegistry_Shutdown(t *testing.T) {
	env := newTestEnv(t, 2, nil)
	task := env.create(t, "a")
	if err := env.registry.StartDownload(context.Background(), task.ID, "https://media/a.mp4"); err != nil {
		t.Fatal(err)
	}

	env.registry.Shutdown()

	if !env.transfer.job(env.transfer.last()).stopped {
		t.Error("transfer not stopped on shutdown")
	}
	if got := env.status(t, task.ID).Status; got != domain.StatusPaused {
		t.Errorf("status = %v, want paused", got)
	}
	if err := env.registry.StartDownload(context.Background(), task.ID, ""); !errors.Is(err, domain.ErrRegistryClosed) {
		t.Errorf("StartDownload() after shutdown error = %v, want %v", err, domain.ErrRegistryClosed)
	}
}

func TestRegistry_PruneFinished(t *testing.T) {
	env := newTestEnv(t, 2, func(c *Config) { c.DrainQueue = false })
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var clock atomic.Int64
	clock.Store(base.UnixNano())
	env.registry.now = func() time.Time { return time.Unix(0, clock.Load()).UTC() }

	old := env.create(t, "old")
	pending := env.create(t, "pending")
	if err := env.registry.CancelDownload(old.ID); err != nil {
		t.Fatal(err)
	}

	clock.Store(base.Add(2 * time.Hour).UnixNano())
	fresh := env.create(t, "fresh")
	if err := env.registry.CancelDownload(fresh.ID); err != nil {
		t.Fatal(err)
	}

	if got := env.registry.PruneFinished(time.Hour); got != 1 {
		t.Fatalf("PruneFinished() = %d, want 1", got)
	}
	if _, err := env.registry.Task(old.ID); !errors.Is(err, domain.ErrTaskNotFound) {
		t.Error("old cancelled task not pruned")
	}
	for _, id := range []string{pending.ID, fresh.ID} {
		if _, err := env.registry.Task(id); err != nil {
			t.Errorf("Task(%s) error = %v", id, err)
		}
	}
}
