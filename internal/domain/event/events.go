package event

import (
	"time"

	"github.com/vertextoedge/swiftsaver/internal/domain"
)

// Event names
const (
	NameTasksChanged       = "tasks.changed"
	NameDownloadProgressed = "download.progressed"
	NameTaskCreated        = "task.created"
	NameTaskCompleted      = "task.completed"
	NameTaskFailed         = "task.failed"
	NameTaskCancelled      = "task.cancelled"
	NameLibraryChanged     = "library.changed"
	NameAll                = "*"
)

// DomainEvent is the interface for all domain events
type DomainEvent interface {
	// EventName returns the name of the event
	EventName() string
	// OccurredAt returns when the event occurred
	OccurredAt() time.Time
}

// BaseEvent provides common fields for all events
type BaseEvent struct {
	Timestamp time.Time
}

// OccurredAt returns when the event occurred
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// TasksChanged carries a full task list snapshot, newest first
type TasksChanged struct {
	BaseEvent
	Tasks []*domain.DownloadTask
}

// EventName returns the event name
func (e TasksChanged) EventName() string { return NameTasksChanged }

// NewTasksChanged creates a new TasksChanged event
func NewTasksChanged(tasks []*domain.DownloadTask) TasksChanged {
	return TasksChanged{
		BaseEvent: BaseEvent{Timestamp: time.Now()},
		Tasks:     tasks,
	}
}

// DownloadProgressed is raised for every progress sample of a running task
type DownloadProgressed struct {
	BaseEvent
	Progress domain.DownloadProgress
}

// EventName returns the event name
func (e DownloadProgressed) EventName() string { return NameDownloadProgressed }

// NewDownloadProgressed creates a new DownloadProgressed event
func NewDownloadProgressed(p domain.DownloadProgress) DownloadProgressed {
	return DownloadProgressed{
		BaseEvent: BaseEvent{Timestamp: time.Now()},
		Progress:  p,
	}
}

// TaskCreated is raised when a task enters the registry
type TaskCreated struct {
	BaseEvent
	TaskID   string
	Title    string
	Platform domain.Platform
	Quality  string
	Format   string
}

// EventName returns the event name
func (e TaskCreated) EventName() string { return NameTaskCreated }

// NewTaskCreated creates a new TaskCreated event
func NewTaskCreated(t *domain.DownloadTask) TaskCreated {
	return TaskCreated{
		BaseEvent: BaseEvent{Timestamp: time.Now()},
		TaskID:    t.ID,
		Title:     t.Title,
		Platform:  t.Platform,
		Quality:   t.Quality,
		Format:    t.Format,
	}
}

// TaskCompleted is raised when a transfer finishes successfully
type TaskCompleted struct {
	BaseEvent
	TaskID   string
	Platform domain.Platform
	FilePath string
	Size     int64
	Duration time.Duration
}

// EventName returns the event name
func (e TaskCompleted) EventName() string { return NameTaskCompleted }

// NewTaskCompleted creates a new TaskCompleted event
func NewTaskCompleted(t *domain.DownloadTask, duration time.Duration) TaskCompleted {
	return TaskCompleted{
		BaseEvent: BaseEvent{Timestamp: time.Now()},
		TaskID:    t.ID,
		Platform:  t.Platform,
		FilePath:  t.FilePath,
		Size:      t.TotalSize,
		Duration:  duration,
	}
}

// TaskFailed is raised when a transfer fails
type TaskFailed struct {
	BaseEvent
	TaskID string
	URL    string
	Error  string
}

// EventName returns the event name
func (e TaskFailed) EventName() string { return NameTaskFailed }

// NewTaskFailed creates a new TaskFailed event
func NewTaskFailed(t *domain.DownloadTask) TaskFailed {
	return TaskFailed{
		BaseEvent: BaseEvent{Timestamp: time.Now()},
		TaskID:    t.ID,
		URL:       t.URL,
		Error:     t.Error,
	}
}

// TaskCancelled is raised when the user cancels a task
type TaskCancelled struct {
	BaseEvent
	TaskID        string
	PartialRemove bool
}

// EventName returns the event name
func (e TaskCancelled) EventName() string { return NameTaskCancelled }

// NewTaskCancelled creates a new TaskCancelled event
func NewTaskCancelled(taskID string, partialRemoved bool) TaskCancelled {
	return TaskCancelled{
		BaseEvent:     BaseEvent{Timestamp: time.Now()},
		TaskID:        taskID,
		PartialRemove: partialRemoved,
	}
}

// LibraryChanged is raised when the download directory changes on disk
type LibraryChanged struct {
	BaseEvent
	Path string
	Op   string
}

// EventName returns the event name
func (e LibraryChanged) EventName() string { return NameLibraryChanged }

// NewLibraryChanged creates a new LibraryChanged event
func NewLibraryChanged(path, op string) LibraryChanged {
	return LibraryChanged{
		BaseEvent: BaseEvent{Timestamp: time.Now()},
		Path:      path,
		Op:        op,
	}
}
