package maintenance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/vertextoedge/swiftsaver/internal/port"
)

// TaskPruner drops finished tasks that have been idle too long
type TaskPruner interface {
	PruneFinished(olderThan time.Duration) int
}

// Config contains maintenance service configuration
type Config struct {
	// CleanupInterval is the gap between sweeps
	CleanupInterval time.Duration

	// FinishedTaskMaxAge is how long failed and cancelled tasks are kept
	FinishedTaskMaxAge time.Duration

	// TempFileMaxAge is how old an abandoned .downloading file must be to be removed
	TempFileMaxAge time.Duration

	// LowSpacePercent is the used-space percentage that triggers a warning.
	// Zero disables the check.
	LowSpacePercent float64
}

// DefaultConfig returns default maintenance configuration
func DefaultConfig() *Config {
	return &Config{
		CleanupInterval:    time.Hour,
		FinishedTaskMaxAge: 24 * time.Hour,
		TempFileMaxAge:     24 * time.Hour,
		LowSpacePercent:    95,
	}
}

// Report summarizes one sweep
type Report struct {
	PrunedTasks  int
	RemovedTemps int
	Usage        *port.DiskUsage
	LowSpace     bool
}

// Service sweeps stale download state on a timer
type Service struct {
	config *Config
	tasks  TaskPruner
	fs     port.FileSystem
	logger *zap.Logger

	mu     sync.Mutex
	active bool
	stop   context.CancelFunc
}

// New creates a new maintenance Service. tasks may be nil.
func New(cfg *Config, tasks TaskPruner, fs port.FileSystem, logger *zap.Logger) *Service {
	defaults := DefaultConfig()
	if cfg == nil {
		cfg = defaults
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = defaults.CleanupInterval
	}
	if cfg.FinishedTaskMaxAge <= 0 {
		cfg.FinishedTaskMaxAge = defaults.FinishedTaskMaxAge
	}
	if cfg.TempFileMaxAge <= 0 {
		cfg.TempFileMaxAge = defaults.TempFileMaxAge
	}

	return &Service{config: cfg, tasks: tasks, fs: fs, logger: logger}
}

// Start blocks until ctx is cancelled or Stop is called. Leftover temp
// files from an earlier run are swept before the first tick.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.active {
		s.mu.Unlock()
		return fmt.Errorf("maintenance service already running")
	}
	s.active = true
	ctx, s.stop = context.WithCancel(ctx)
	s.mu.Unlock()

	s.logger.Info("maintenance service started",
		zap.Duration("interval", s.config.CleanupInterval),
		zap.Duration("temp_file_max_age", s.config.TempFileMaxAge),
		zap.Duration("finished_task_max_age", s.config.FinishedTaskMaxAge))

	s.sweepTemps()

	ticker := time.NewTicker(s.config.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			s.active = false
			s.mu.Unlock()
			s.logger.Info("maintenance service stopped")
			return nil
		case <-ticker.C:
			s.RunOnce()
		}
	}
}

// Stop ends a running Start
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		s.stop()
	}
}

// RunOnce performs one sweep and reports what it did
func (s *Service) RunOnce() Report {
	var r Report

	if s.tasks != nil {
		r.PrunedTasks = s.tasks.PruneFinished(s.config.FinishedTaskMaxAge)
		if r.PrunedTasks > 0 {
			s.logger.Info("pruned finished tasks", zap.Int("count", r.PrunedTasks))
		}
	}

	r.RemovedTemps = s.sweepTemps()
	r.Usage, r.LowSpace = s.checkSpace()
	return r
}

func (s *Service) sweepTemps() int {
	n, err := s.fs.CleanOldTempFiles(s.config.TempFileMaxAge)
	if err != nil {
		s.logger.Error("temp file sweep failed", zap.Error(err))
	}
	if n > 0 {
		s.logger.Info("removed abandoned temp files", zap.Int("count", n))
	}
	return n
}

func (s *Service) checkSpace() (*port.DiskUsage, bool) {
	usage, err := s.fs.DiskUsage()
	if err != nil {
		s.logger.Debug("disk usage unavailable", zap.Error(err))
		return nil, false
	}
	low := s.config.LowSpacePercent > 0 && usage.UsedPct >= s.config.LowSpacePercent
	if low {
		s.logger.Warn("download volume almost full",
			zap.String("free", humanize.IBytes(usage.Free)),
			zap.Float64("used_pct", usage.UsedPct))
	}
	return usage, low
}
