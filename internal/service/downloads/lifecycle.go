package downloads

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/vertextoedge/swiftsaver/internal/domain"
	"github.com/vertextoedge/swiftsaver/internal/domain/event"
	"github.com/vertextoedge/swiftsaver/internal/domain/vo"
	"github.com/vertextoedge/swiftsaver/internal/port"
)

// StartDownload admits a task and starts its transfer from downloadURL.
// A task that is already downloading is left alone. When every slot is
// taken the task stays pending. Transfer failures are recorded on the
// task, never returned.
func (r *Registry) StartDownload(ctx context.Context, id, downloadURL string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	limit := r.maxConcurrent()

	r.mu.Lock()
	t, ok := r.tasks[id]
	if !ok {
		r.mu.Unlock()
		return domain.ErrTaskNotFound
	}
	if r.closed {
		r.mu.Unlock()
		return domain.ErrRegistryClosed
	}
	if t.Status == domain.StatusDownloading {
		r.mu.Unlock()
		return nil
	}
	if t.IsTerminal() {
		r.mu.Unlock()
		return domain.ErrInvalidStateTransition
	}

	downloadURL = strings.TrimSpace(downloadURL)
	if downloadURL == "" {
		downloadURL = r.fetchBy[id]
	}
	if downloadURL == "" {
		r.mu.Unlock()
		return fmt.Errorf("%w: download url is required", domain.ErrInvalidInput)
	}
	r.fetchBy[id] = downloadURL

	if len(r.active) >= limit {
		if err := t.MarkQueued(r.now()); err != nil {
			r.mu.Unlock()
			return err
		}
		r.mu.Unlock()

		r.logger.Debug("download queued",
			zap.String("task_id", id),
			zap.Int("max_concurrent", limit))
		r.snapshots.Flush()
		return nil
	}

	if err := t.MarkDownloading(r.now()); err != nil {
		r.mu.Unlock()
		return err
	}
	job := &activeJob{dest: r.destination(t), startedAt: r.now()}
	r.active[id] = job
	r.attempted[id] = true
	r.mu.Unlock()

	r.snapshots.Flush()

	started, err := r.transfer.DownloadFile(downloadURL, job.dest, func(p port.TransferProgress) {
		r.onProgress(id, job, p)
	})
	if err != nil {
		r.logger.Warn("transfer did not start", zap.String("task_id", id), zap.Error(err))
		r.finish(id, job, port.TransferResult{Err: err})
		return nil
	}

	r.mu.Lock()
	job.handle = started.Handle
	job.started = true
	stale := r.active[id] != job
	if !stale {
		r.wg.Add(1)
		go r.watch(id, job, started.Done)
	}
	r.mu.Unlock()

	if stale {
		// Paused, cancelled or shut down before the handle was known
		r.transfer.StopDownload(started.Handle)
		return nil
	}

	r.logger.Info("download started",
		zap.String("task_id", id),
		zap.String("dest", job.dest))
	return nil
}

// PauseDownload stops a running transfer and marks the task paused.
// Tasks without a running transfer are left alone.
func (r *Registry) PauseDownload(id string) error {
	r.mu.Lock()
	t, ok := r.tasks[id]
	if !ok {
		r.mu.Unlock()
		return domain.ErrTaskNotFound
	}
	job, running := r.active[id]
	if !running {
		r.mu.Unlock()
		return nil
	}
	delete(r.active, id)
	if err := t.MarkPaused(r.now()); err != nil {
		r.mu.Unlock()
		return err
	}
	handle, started := job.handle, job.started
	r.mu.Unlock()

	if started {
		r.transfer.StopDownload(handle)
	}

	r.logger.Info("download paused", zap.String("task_id", id))
	r.snapshots.Flush()
	r.scheduleDrain()
	return nil
}

// ResumeDownload restarts a paused task from zero. An empty downloadURL
// reuses the URL of the previous attempt. Non-paused tasks are left alone.
func (r *Registry) ResumeDownload(ctx context.Context, id, downloadURL string) error {
	r.mu.Lock()
	t, ok := r.tasks[id]
	if !ok {
		r.mu.Unlock()
		return domain.ErrTaskNotFound
	}
	paused := t.Status == domain.StatusPaused
	r.mu.Unlock()

	if !paused {
		return nil
	}
	return r.StartDownload(ctx, id, downloadURL)
}

// CancelDownload stops the task and deletes any partial file left by an
// earlier attempt, including one that was paused and re-queued.
// Terminal tasks are left alone.
func (r *Registry) CancelDownload(id string) error {
	r.mu.Lock()
	t, ok := r.tasks[id]
	if !ok {
		r.mu.Unlock()
		return domain.ErrTaskNotFound
	}
	if t.IsTerminal() {
		r.mu.Unlock()
		return nil
	}

	hadFile := r.attempted[id]
	job, running := r.active[id]
	delete(r.active, id)
	if err := t.MarkCancelled(r.now()); err != nil {
		r.mu.Unlock()
		return err
	}
	dest := r.destination(t)
	stop := running && job.started
	var handle port.JobHandle
	if stop {
		handle = job.handle
	}
	r.mu.Unlock()

	if stop {
		r.transfer.StopDownload(handle)
	}

	removed := false
	if hadFile {
		removed = r.removePartial(dest)
	}

	r.logger.Info("download cancelled",
		zap.String("task_id", id),
		zap.Bool("partial_removed", removed))
	r.snapshots.Flush()
	r.dispatcher.Dispatch(event.NewTaskCancelled(id, removed))
	if running {
		r.scheduleDrain()
	}
	return nil
}

// RetryDownload restarts a failed task. An empty downloadURL reuses the
// URL of the failed attempt. Non-failed tasks are left alone.
func (r *Registry) RetryDownload(ctx context.Context, id, downloadURL string) error {
	r.mu.Lock()
	t, ok := r.tasks[id]
	if !ok {
		r.mu.Unlock()
		return domain.ErrTaskNotFound
	}
	if t.Status != domain.StatusFailed {
		r.mu.Unlock()
		return nil
	}
	if err := t.ResetForRetry(r.now()); err != nil {
		r.mu.Unlock()
		return err
	}
	r.mu.Unlock()

	r.logger.Info("download retried", zap.String("task_id", id))
	r.snapshots.Flush()
	return r.StartDownload(ctx, id, downloadURL)
}

// removePartial deletes the destination and its temp file.
// Missing files are not errors.
func (r *Registry) removePartial(dest string) bool {
	removed := false
	for _, p := range []string{dest, vo.TempPath(dest)} {
		if !r.fs.Exists(p) {
			continue
		}
		if err := r.fs.Remove(p); err != nil {
			r.logger.Warn("failed to remove partial file", zap.String("path", p), zap.Error(err))
			continue
		}
		removed = true
	}
	return removed
}
