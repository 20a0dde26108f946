package event

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vertextoedge/swiftsaver/internal/domain"
	"go.uber.org/zap"
)

type recordingHandler struct {
	mu     sync.Mutex
	names  []string
	events []DomainEvent
}

func (h *recordingHandler) Handle(e DomainEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, e)
	return nil
}

func (h *recordingHandler) HandledEvents() []string { return h.names }

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.events)
}

func testTask() *domain.DownloadTask {
	task := domain.NewDownloadTask("t1", "https://vimeo.com/1", "a_720p.mp4", "a", "720p", "mp4", time.Now())
	task.Platform = domain.PlatformVimeo
	return task
}

func TestInMemoryDispatcher_Sync(t *testing.T) {
	d := NewInMemoryDispatcher(false)
	specific := &recordingHandler{names: []string{NameTaskCreated}}
	wildcard := &recordingHandler{names: []string{NameAll}}
	d.Subscribe(specific)
	d.Subscribe(wildcard)

	d.Dispatch(NewTaskCreated(testTask()))
	d.Dispatch(NewTaskFailed(testTask()))

	if got := specific.count(); got != 1 {
		t.Errorf("specific handler got %d events, want 1", got)
	}
	if got := wildcard.count(); got != 2 {
		t.Errorf("wildcard handler got %d events, want 2", got)
	}
}

func TestInMemoryDispatcher_UnsubscribeIdempotent(t *testing.T) {
	d := NewInMemoryDispatcher(false)
	h := &recordingHandler{names: []string{NameTasksChanged}}
	unsubscribe := d.Subscribe(h)

	d.Dispatch(NewTasksChanged(nil))
	unsubscribe()
	unsubscribe()
	d.Unsubscribe(h)
	d.Dispatch(NewTasksChanged(nil))

	if got := h.count(); got != 1 {
		t.Errorf("handler got %d events, want 1", got)
	}
	if got := d.HandlerCount(NameTasksChanged); got != 0 {
		t.Errorf("HandlerCount() = %d, want 0", got)
	}
}

func TestInMemoryDispatcher_AsyncPreservesOrder(t *testing.T) {
	d := NewInMemoryDispatcher(true)
	h := &recordingHandler{names: []string{NameDownloadProgressed}}
	d.Subscribe(h)

	for i := 0; i < 50; i++ {
		d.Dispatch(NewDownloadProgressed(domain.DownloadProgress{TaskID: "t1", DownloadedSize: int64(i)}))
	}
	d.Close()
	d.Close()

	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.events) != 50 {
		t.Fatalf("got %d events, want 50", len(h.events))
	}
	for i, e := range h.events {
		p := e.(DownloadProgressed).Progress
		if p.DownloadedSize != int64(i) {
			t.Fatalf("event %d has DownloadedSize %d", i, p.DownloadedSize)
		}
	}
}

func TestInMemoryDispatcher_DispatchAfterClose(t *testing.T) {
	d := NewInMemoryDispatcher(true)
	h := &recordingHandler{names: []string{NameAll}}
	unsubscribe := d.Subscribe(h)
	if got := d.HandlerCount(NameAll); got != 1 {
		t.Errorf("HandlerCount(NameAll) = %d, want 1", got)
	}

	d.Close()
	d.Dispatch(NewLibraryChanged("/x", "CREATE"))
	if got := h.count(); got != 1 {
		t.Errorf("handler got %d events after Close, want 1", got)
	}

	unsubscribe()
	if got := d.HandlerCount(NameAll); got != 0 {
		t.Errorf("HandlerCount(NameAll) = %d, want 0", got)
	}
}

func TestNullDispatcher(t *testing.T) {
	d := NewNullDispatcher()
	unsubscribe := d.Subscribe(&recordingHandler{})
	unsubscribe()
	d.Dispatch(NewTasksChanged(nil))
}

func TestMetricsHandler(t *testing.T) {
	h := NewMetricsHandler()
	task := testTask()
	task.TotalSize = 1000

	_ = h.Handle(NewTaskCreated(task))
	_ = h.Handle(NewTaskCompleted(task, time.Second))
	_ = h.Handle(NewTaskFailed(task))
	_ = h.Handle(NewTaskCancelled(task.ID, true))
	_ = h.Handle(NewTasksChanged(nil))

	m := h.GetMetrics()
	want := map[string]int64{
		"tasks_created":    1,
		"tasks_completed":  1,
		"tasks_failed":     1,
		"tasks_cancelled":  1,
		"bytes_downloaded": 1000,
	}
	for k, v := range want {
		if m[k] != v {
			t.Errorf("metrics[%s] = %d, want %d", k, m[k], v)
		}
	}
}

func TestLoggingHandler(t *testing.T) {
	h := NewLoggingHandler(zap.NewNop())
	events := []DomainEvent{
		NewTaskCreated(testTask()),
		NewTaskCompleted(testTask(), time.Second),
		NewTaskFailed(testTask()),
		NewTaskCancelled("t1", false),
		NewLibraryChanged("/x", "CREATE"),
		NewTasksChanged(nil),
	}
	for _, e := range events {
		if err := h.Handle(e); err != nil {
			t.Errorf("Handle(%s) error = %v", e.EventName(), err)
		}
	}
}

type mockTracker struct {
	mu    sync.Mutex
	calls []string
	props []map[string]any
	err   error
}

func (m *mockTracker) TrackEvent(ctx context.Context, name string, props map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, name)
	m.props = append(m.props, props)
	return m.err
}

func TestAnalyticsHandler(t *testing.T) {
	tracker := &mockTracker{}
	h := NewAnalyticsHandler(tracker, time.Second, zap.NewNop())
	task := testTask()
	task.TotalSize = 42

	_ = h.Handle(NewTaskCreated(task))
	_ = h.Handle(NewTaskCompleted(task, time.Second))
	_ = h.Handle(NewTaskFailed(task))

	if len(tracker.calls) != 2 {
		t.Fatalf("TrackEvent called %d times, want 2", len(tracker.calls))
	}
	if tracker.calls[0] != "download_started" || tracker.calls[1] != "download_completed" {
		t.Errorf("calls = %v", tracker.calls)
	}
	if tracker.props[0]["quality"] != "720p" || tracker.props[0]["platform"] != "vimeo" {
		t.Errorf("download_started props = %v", tracker.props[0])
	}
	if tracker.props[1]["file_size"] != int64(42) {
		t.Errorf("download_completed props = %v", tracker.props[1])
	}
}

func TestAnalyticsHandler_Error(t *testing.T) {
	tracker := &mockTracker{err: errors.New("offline")}
	h := NewAnalyticsHandler(tracker, 0, zap.NewNop())

	if err := h.Handle(NewTaskCreated(testTask())); err == nil {
		t.Error("Handle() error = nil, want error")
	}
}
