package downloads

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/vertextoedge/swiftsaver/internal/domain"
	"github.com/vertextoedge/swiftsaver/internal/domain/event"
	"github.com/vertextoedge/swiftsaver/internal/port"
)

var errNoResult = errors.New("transfer ended without a result")

// Subscribe registers fn for task-list snapshots. fn receives the current
// snapshot immediately. Snapshots are shared and must be treated as read-only.
// The returned func unsubscribes and is safe to call more than once.
func (r *Registry) Subscribe(fn func([]*domain.DownloadTask)) func() {
	r.publishMu.Lock()
	r.subMu.Lock()
	r.nextSub++
	id := r.nextSub
	r.snapshotSubs[id] = fn
	r.subMu.Unlock()

	r.mu.Lock()
	snap := r.snapshotLocked()
	r.mu.Unlock()
	fn(snap)
	r.publishMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.subMu.Lock()
			delete(r.snapshotSubs, id)
			r.subMu.Unlock()
		})
	}
}

// SubscribeProgress registers fn for per-task progress samples.
// The returned func unsubscribes and is safe to call more than once.
func (r *Registry) SubscribeProgress(fn func(domain.DownloadProgress)) func() {
	r.subMu.Lock()
	r.nextSub++
	id := r.nextSub
	r.progressSubs[id] = fn
	r.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.subMu.Lock()
			delete(r.progressSubs, id)
			r.subMu.Unlock()
		})
	}
}

// onProgress applies a transfer callback. Callbacks from a job that no
// longer owns the task are dropped.
func (r *Registry) onProgress(id string, job *activeJob, p port.TransferProgress) {
	r.mu.Lock()
	if r.active[id] != job {
		r.mu.Unlock()
		return
	}
	t := r.tasks[id]
	if err := t.UpdateProgress(p.BytesWritten, p.ContentLength, p.BytesPerSecond, r.now()); err != nil {
		r.mu.Unlock()
		return
	}
	sample := domain.ProgressOf(t)
	r.mu.Unlock()

	r.publishProgress(sample)
	r.snapshots.Trigger()
}

func (r *Registry) watch(id string, job *activeJob, done <-chan port.TransferResult) {
	defer r.wg.Done()

	res, ok := <-done
	if !ok {
		res = port.TransferResult{Err: errNoResult}
	}
	r.finish(id, job, res)
}

// finish records the outcome of a transfer that still owns its task
func (r *Registry) finish(id string, job *activeJob, res port.TransferResult) {
	r.mu.Lock()
	if r.active[id] != job {
		r.mu.Unlock()
		return
	}
	delete(r.active, id)

	t := r.tasks[id]
	now := r.now()
	var evt event.DomainEvent
	if res.Err == nil && res.StatusCode == 200 {
		if t.TotalSize == 0 && res.BytesWritten > 0 {
			_ = t.UpdateProgress(res.BytesWritten, 0, 0, now)
		}
		_ = t.MarkCompleted(job.dest, now)
		evt = event.NewTaskCompleted(t.Clone(), now.Sub(job.startedAt))
	} else {
		_ = t.MarkFailed(failureMessage(res), now)
		evt = event.NewTaskFailed(t.Clone())
	}
	status, msg := t.Status, t.Error
	r.mu.Unlock()

	if status == domain.StatusCompleted {
		r.logger.Info("download completed", zap.String("task_id", id), zap.String("path", job.dest))
	} else {
		r.logger.Warn("download failed", zap.String("task_id", id), zap.String("error", msg))
	}

	r.snapshots.Flush()
	r.dispatcher.Dispatch(evt)
	r.scheduleDrain()
}

// failureMessage prefers the HTTP status over the transport error
func failureMessage(res port.TransferResult) string {
	if res.StatusCode != 0 && res.StatusCode != 200 {
		return domain.NewTransferError(res.StatusCode, nil).Error()
	}
	return domain.NewTransferError(0, res.Err).Error()
}

func (r *Registry) scheduleDrain() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.drain()
	}()
}

// drain starts the oldest pending tasks while slots are free. The fetch
// URL of an earlier attempt is reused, otherwise one is resolved.
func (r *Registry) drain() {
	if !r.config.DrainQueue {
		r.logger.Debug("queue drain disabled", zap.Int("free_slots", r.freeSlots()))
		return
	}

	for {
		limit := r.maxConcurrent()

		r.mu.Lock()
		if r.closed || len(r.active) >= limit {
			r.mu.Unlock()
			return
		}
		var next *domain.DownloadTask
		for _, id := range r.order {
			if t := r.tasks[id]; t.Status == domain.StatusPending {
				next = t
				break
			}
		}
		if next == nil {
			r.mu.Unlock()
			return
		}
		id, source, quality, format := next.ID, next.URL, next.Quality, next.Format
		fetch := r.fetchBy[id]
		r.mu.Unlock()

		if fetch == "" {
			if r.urls == nil {
				r.logger.Debug("no url source for queued task", zap.String("task_id", id))
				return
			}
			ctx, cancel := context.WithTimeout(r.ctx, r.config.ResolveTimeout)
			url, err := r.urls.ResolveDownloadURL(ctx, source, quality, format)
			cancel()
			if err != nil {
				r.logger.Warn("failed to resolve queued download", zap.String("task_id", id), zap.Error(err))
				return
			}
			fetch = url
		}

		if err := r.StartDownload(r.ctx, id, fetch); err != nil {
			r.logger.Warn("failed to start queued download", zap.String("task_id", id), zap.Error(err))
			return
		}

		r.mu.Lock()
		stillPending := r.tasks[id] != nil && r.tasks[id].Status == domain.StatusPending
		r.mu.Unlock()
		if stillPending {
			return
		}
	}
}

func (r *Registry) freeSlots() int {
	limit := r.maxConcurrent()
	r.mu.Lock()
	defer r.mu.Unlock()
	return limit - len(r.active)
}

func (r *Registry) publishSnapshot() {
	r.publishMu.Lock()
	defer r.publishMu.Unlock()

	r.mu.Lock()
	snap := r.snapshotLocked()
	r.mu.Unlock()

	r.subMu.Lock()
	subs := make([]func([]*domain.DownloadTask), 0, len(r.snapshotSubs))
	for _, fn := range r.snapshotSubs {
		subs = append(subs, fn)
	}
	r.subMu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
	r.dispatcher.Dispatch(event.NewTasksChanged(snap))
}

func (r *Registry) publishProgress(p domain.DownloadProgress) {
	r.publishMu.Lock()
	defer r.publishMu.Unlock()

	r.subMu.Lock()
	subs := make([]func(domain.DownloadProgress), 0, len(r.progressSubs))
	for _, fn := range r.progressSubs {
		subs = append(subs, fn)
	}
	r.subMu.Unlock()

	for _, fn := range subs {
		fn(p)
	}
	r.dispatcher.Dispatch(event.NewDownloadProgressed(p))
}
