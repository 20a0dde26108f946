package event

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/vertextoedge/swiftsaver/internal/domain/vo"
)

// LoggingHandler logs all events
type LoggingHandler struct {
	logger *zap.Logger
}

// NewLoggingHandler creates a new LoggingHandler
func NewLoggingHandler(logger *zap.Logger) *LoggingHandler {
	return &LoggingHandler{logger: logger}
}

// Handle logs the event
func (h *LoggingHandler) Handle(event DomainEvent) error {
	switch e := event.(type) {
	case TaskCreated:
		h.logger.Info("download task created",
			zap.String("task_id", e.TaskID),
			zap.String("title", e.Title),
			zap.String("platform", string(e.Platform)),
			zap.String("quality", e.Quality),
			zap.String("format", e.Format),
		)
	case TaskCompleted:
		h.logger.Info("download task completed",
			zap.String("task_id", e.TaskID),
			zap.String("file_path", e.FilePath),
			zap.String("size", vo.NewFileSize(e.Size).String()),
			zap.Duration("duration", e.Duration),
		)
	case TaskFailed:
		h.logger.Warn("download task failed",
			zap.String("task_id", e.TaskID),
			zap.String("url", e.URL),
			zap.String("error", e.Error),
		)
	case TaskCancelled:
		h.logger.Info("download task cancelled",
			zap.String("task_id", e.TaskID),
			zap.Bool("partial_removed", e.PartialRemove),
		)
	case LibraryChanged:
		h.logger.Debug("library changed",
			zap.String("path", e.Path),
			zap.String("op", e.Op),
		)
	case DownloadProgressed, TasksChanged:
		// too chatty to log
	default:
		h.logger.Debug("domain event",
			zap.String("event", event.EventName()),
			zap.Time("occurred_at", event.OccurredAt()),
		)
	}
	return nil
}

// HandledEvents returns the events this handler handles
func (h *LoggingHandler) HandledEvents() []string {
	return []string{NameAll}
}

// MetricsHandler collects counters from events
type MetricsHandler struct {
	tasksCreated    atomic.Int64
	tasksCompleted  atomic.Int64
	tasksFailed     atomic.Int64
	tasksCancelled  atomic.Int64
	bytesDownloaded atomic.Int64
}

// NewMetricsHandler creates a new MetricsHandler
func NewMetricsHandler() *MetricsHandler {
	return &MetricsHandler{}
}

// Handle updates metrics based on the event
func (h *MetricsHandler) Handle(event DomainEvent) error {
	switch e := event.(type) {
	case TaskCreated:
		h.tasksCreated.Add(1)
	case TaskCompleted:
		h.tasksCompleted.Add(1)
		h.bytesDownloaded.Add(e.Size)
	case TaskFailed:
		h.tasksFailed.Add(1)
	case TaskCancelled:
		h.tasksCancelled.Add(1)
	}
	return nil
}

// HandledEvents returns the events this handler handles
func (h *MetricsHandler) HandledEvents() []string {
	return []string{
		NameTaskCreated,
		NameTaskCompleted,
		NameTaskFailed,
		NameTaskCancelled,
	}
}

// GetMetrics returns current metrics
func (h *MetricsHandler) GetMetrics() map[string]int64 {
	return map[string]int64{
		"tasks_created":    h.tasksCreated.Load(),
		"tasks_completed":  h.tasksCompleted.Load(),
		"tasks_failed":     h.tasksFailed.Load(),
		"tasks_cancelled":  h.tasksCancelled.Load(),
		"bytes_downloaded": h.bytesDownloaded.Load(),
	}
}

// Tracker records analytics events
type Tracker interface {
	TrackEvent(ctx context.Context, name string, props map[string]any) error
}

// AnalyticsHandler forwards download lifecycle events to a Tracker
type AnalyticsHandler struct {
	tracker Tracker
	timeout time.Duration
	logger  *zap.Logger
}

// NewAnalyticsHandler creates a new AnalyticsHandler
func NewAnalyticsHandler(tracker Tracker, timeout time.Duration, logger *zap.Logger) *AnalyticsHandler {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &AnalyticsHandler{tracker: tracker, timeout: timeout, logger: logger}
}

// Handle sends the matching analytics event
func (h *AnalyticsHandler) Handle(event DomainEvent) error {
	var (
		name  string
		props map[string]any
	)
	switch e := event.(type) {
	case TaskCreated:
		name = "download_started"
		props = map[string]any{
			"platform": string(e.Platform),
			"quality":  e.Quality,
			"format":   e.Format,
		}
	case TaskCompleted:
		name = "download_completed"
		props = map[string]any{
			"platform":  string(e.Platform),
			"file_size": e.Size,
		}
	default:
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()
	if err := h.tracker.TrackEvent(ctx, name, props); err != nil {
		h.logger.Debug("analytics event dropped", zap.String("event", name), zap.Error(err))
		return err
	}
	return nil
}

// HandledEvents returns the events this handler handles
func (h *AnalyticsHandler) HandledEvents() []string {
	return []string{NameTaskCreated, NameTaskCompleted}
}
