package domain

import (
	"math"
	"time"
)

// Status is the lifecycle state of a download task
type Status string

// Task status constants
const (
	StatusPending     Status = "pending"
	StatusDownloading Status = "downloading"
	StatusPaused      Status = "paused"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
	StatusCancelled   Status = "cancelled"
)

// AllStatuses lists every task status
var AllStatuses = []Status{
	StatusPending,
	StatusDownloading,
	StatusPaused,
	StatusCompleted,
	StatusFailed,
	StatusCancelled,
}

// IsTerminal returns true for completed, failed and cancelled
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// IsValid returns true if s is a known status
func (s Status) IsValid() bool {
	for _, st := range AllStatuses {
		if s == st {
			return true
		}
	}
	return false
}

// DownloadTask represents one user-initiated download attempt
type DownloadTask struct {
	ID        string   `json:"id"`
	URL       string   `json:"url"`
	FileName  string   `json:"fileName"`
	Title     string   `json:"title"`
	Thumbnail string   `json:"thumbnail,omitempty"`
	Quality   string   `json:"quality"`
	Format    string   `json:"format"`
	Platform  Platform `json:"platform,omitempty"`

	// State
	Status         Status `json:"status"`
	Progress       int    `json:"progress"`
	TotalSize      int64  `json:"totalSize"`
	DownloadedSize int64  `json:"downloadedSize"`
	Speed          *int64 `json:"speed,omitempty"`
	ETA            *int64 `json:"eta,omitempty"`

	// Outcome
	FilePath string `json:"filePath,omitempty"`
	Error    string `json:"error,omitempty"`

	// Timestamps
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// NewDownloadTask creates a task in the pending state
func NewDownloadTask(id, url, fileName, title, quality, format string, now time.Time) *DownloadTask {
	return &DownloadTask{
		ID:        id,
		URL:       url,
		FileName:  fileName,
		Title:     title,
		Quality:   quality,
		Format:    format,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsTerminal returns true if the task has reached a terminal state
func (t *DownloadTask) IsTerminal() bool {
	return t.Status.IsTerminal()
}

// CanRemove returns true if the task may be erased from the registry
func (t *DownloadTask) CanRemove() bool {
	return t.Status.IsTerminal()
}

// MarkDownloading starts a fresh transfer attempt.
// Resume restarts from zero, so counters are reset.
func (t *DownloadTask) MarkDownloading(now time.Time) error {
	if t.Status != StatusPending && t.Status != StatusPaused {
		return ErrInvalidStateTransition
	}
	t.Status = StatusDownloading
	t.resetCounters()
	t.Error = ""
	t.UpdatedAt = now
	return nil
}

// MarkQueued parks the task in pending because no slot is free.
func (t *DownloadTask) MarkQueued(now time.Time) error {
	switch t.Status {
	case StatusPending:
		return nil
	case StatusPaused:
		t.Status = StatusPending
		t.resetCounters()
		t.UpdatedAt = now
		return nil
	default:
		return ErrInvalidStateTransition
	}
}

// UpdateProgress records a progress sample from the transfer.
// A zero total keeps the previous percentage.
func (t *DownloadTask) UpdateProgress(written, total int64, bytesPerSecond float64, now time.Time) error {
	if t.Status != StatusDownloading {
		return ErrInvalidStateTransition
	}
	if total > 0 {
		t.TotalSize = total
	}
	if written < 0 {
		written = 0
	}
	if t.TotalSize > 0 && written > t.TotalSize {
		written = t.TotalSize
	}
	t.DownloadedSize = written

	if t.TotalSize > 0 {
		pct := int(math.Round(100 * float64(written) / float64(t.TotalSize)))
		// 100 is reserved for completion
		if pct > 99 {
			pct = 99
		}
		if pct < 0 {
			pct = 0
		}
		t.Progress = pct
	}

	speed := int64(bytesPerSecond)
	if speed < 0 {
		speed = 0
	}
	t.Speed = &speed
	if speed > 0 && t.TotalSize > 0 {
		eta := (t.TotalSize - t.DownloadedSize) / speed
		t.ETA = &eta
	} else {
		t.ETA = nil
	}

	t.UpdatedAt = now
	return nil
}

// MarkCompleted records a successful transfer
func (t *DownloadTask) MarkCompleted(filePath string, now time.Time) error {
	if t.Status != StatusDownloading {
		return ErrInvalidStateTransition
	}
	t.Status = StatusCompleted
	t.Progress = 100
	if t.TotalSize > 0 {
		t.DownloadedSize = t.TotalSize
	} else {
		t.TotalSize = t.DownloadedSize
	}
	t.FilePath = filePath
	t.Error = ""
	t.Speed = nil
	t.ETA = nil
	t.UpdatedAt = now
	completed := now
	t.CompletedAt = &completed
	return nil
}

// MarkFailed records a failed transfer
func (t *DownloadTask) MarkFailed(msg string, now time.Time) error {
	if t.Status != StatusDownloading {
		return ErrInvalidStateTransition
	}
	t.Status = StatusFailed
	t.Error = msg
	t.Speed = nil
	t.ETA = nil
	t.UpdatedAt = now
	return nil
}

// MarkPaused records a user pause
func (t *DownloadTask) MarkPaused(now time.Time) error {
	if t.Status != StatusDownloading {
		return ErrInvalidStateTransition
	}
	t.Status = StatusPaused
	t.Speed = nil
	t.ETA = nil
	t.UpdatedAt = now
	return nil
}

// MarkCancelled records a user cancel from any non-terminal state
func (t *DownloadTask) MarkCancelled(now time.Time) error {
	if t.Status.IsTerminal() {
		return ErrInvalidStateTransition
	}
	t.Status = StatusCancelled
	t.Speed = nil
	t.ETA = nil
	t.UpdatedAt = now
	return nil
}

// ResetForRetry moves a failed task back to pending
func (t *DownloadTask) ResetForRetry(now time.Time) error {
	if t.Status != StatusFailed {
		return ErrInvalidStateTransition
	}
	t.Status = StatusPending
	t.resetCounters()
	t.Error = ""
	t.UpdatedAt = now
	return nil
}

// Clone returns a deep copy safe to hand to subscribers
func (t *DownloadTask) Clone() *DownloadTask {
	c := *t
	if t.Speed != nil {
		v := *t.Speed
		c.Speed = &v
	}
	if t.ETA != nil {
		v := *t.ETA
		c.ETA = &v
	}
	if t.CompletedAt != nil {
		v := *t.CompletedAt
		c.CompletedAt = &v
	}
	return &c
}

func (t *DownloadTask) resetCounters() {
	t.Progress = 0
	t.DownloadedSize = 0
	t.Speed = nil
	t.ETA = nil
}

// DownloadProgress is a discrete progress sample for one task
type DownloadProgress struct {
	TaskID         string `json:"taskId"`
	Progress       int    `json:"progress"`
	DownloadedSize int64  `json:"downloadedSize"`
	TotalSize      int64  `json:"totalSize"`
	Speed          int64  `json:"speed"`
	ETA            *int64 `json:"eta,omitempty"`
}

// ProgressOf builds a progress sample from the current task state
func ProgressOf(t *DownloadTask) DownloadProgress {
	p := DownloadProgress{
		TaskID:         t.ID,
		Progress:       t.Progress,
		DownloadedSize: t.DownloadedSize,
		TotalSize:      t.TotalSize,
	}
	if t.Speed != nil {
		p.Speed = *t.Speed
	}
	if t.ETA != nil {
		eta := *t.ETA
		p.ETA = &eta
	}
	return p
}
