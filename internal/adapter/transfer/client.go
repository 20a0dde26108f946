package transfer

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/cavaliergopher/grab/v3"
	"go.uber.org/zap"

	"github.com/vertextoedge/swiftsaver/internal/domain/vo"
	"github.com/vertextoedge/swiftsaver/internal/port"
)

// Config contains transfer configuration
type Config struct {
	// ProgressInterval is how often progress callbacks fire
	ProgressInterval time.Duration

	// UserAgent is sent with every request
	UserAgent string
}

// DefaultConfig returns default transfer configuration
func DefaultConfig() *Config {
	return &Config{
		ProgressInterval: 250 * time.Millisecond,
		UserAgent:        "SwiftSaver/1.0",
	}
}

// Client implements port.Transfer on top of grab.
// Bytes are written to a .downloading file and renamed on success.
type Client struct {
	config *Config
	client *grab.Client
	logger *zap.Logger

	mu   sync.Mutex
	next port.JobHandle
	jobs map[port.JobHandle]context.CancelFunc
}

// Ensure Client implements port.Transfer
var _ port.Transfer = (*Client)(nil)

// New creates a new transfer Client
func New(cfg *Config, logger *zap.Logger) *Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.ProgressInterval <= 0 {
		cfg.ProgressInterval = 250 * time.Millisecond
	}

	client := grab.NewClient()
	if cfg.UserAgent != "" {
		client.UserAgent = cfg.UserAgent
	}

	return &Client{
		config: cfg,
		client: client,
		logger: logger,
		jobs:   make(map[port.JobHandle]context.CancelFunc),
	}
}

// DownloadFile starts a transfer and returns immediately
func (c *Client) DownloadFile(fromURL, toFile string, onProgress func(port.TransferProgress)) (*port.TransferJob, error) {
	tempPath := vo.TempPath(toFile)
	req, err := grab.NewRequest(tempPath, fromURL)
	if err != nil {
		return nil, fmt.Errorf("invalid transfer request: %w", err)
	}
	// Resume always restarts from zero
	req.NoResume = true

	ctx, cancel := context.WithCancel(context.Background())
	req = req.WithContext(ctx)

	c.mu.Lock()
	c.next++
	handle := c.next
	c.jobs[handle] = cancel
	c.mu.Unlock()

	done := make(chan port.TransferResult, 1)
	go c.run(handle, req, tempPath, toFile, onProgress, done)

	return &port.TransferJob{Handle: handle, Done: done}, nil
}

// StopDownload cancels a running transfer. Unknown handles are ignored.
func (c *Client) StopDownload(handle port.JobHandle) {
	c.mu.Lock()
	cancel, ok := c.jobs[handle]
	c.mu.Unlock()
	if ok {
		cancel()
	}
}

func (c *Client) run(handle port.JobHandle, req *grab.Request, tempPath, dest string, onProgress func(port.TransferProgress), done chan<- port.TransferResult) {
	defer close(done)
	defer c.release(handle)

	start := time.Now()
	resp := c.client.Do(req)

	ticker := time.NewTicker(c.config.ProgressInterval)
	defer ticker.Stop()

Loop:
	for {
		select {
		case <-ticker.C:
			report(resp, onProgress)
		case <-resp.Done:
			break Loop
		}
	}

	result := port.TransferResult{BytesWritten: resp.BytesComplete()}
	if resp.HTTPResponse != nil {
		result.StatusCode = resp.HTTPResponse.StatusCode
	}

	if err := resp.Err(); err != nil {
		result.Err = err
		if removeErr := os.Remove(tempPath); removeErr != nil && !os.IsNotExist(removeErr) {
			c.logger.Debug("failed to remove partial file", zap.String("path", tempPath), zap.Error(removeErr))
		}
		c.logger.Debug("transfer ended with error",
			zap.Uint64("handle", uint64(handle)),
			zap.String("url", req.URL().String()),
			zap.Int("status", result.StatusCode),
			zap.Error(err))
		done <- result
		return
	}

	report(resp, onProgress)

	if err := os.Rename(tempPath, dest); err != nil {
		result.Err = fmt.Errorf("failed to rename temp file: %w", err)
		done <- result
		return
	}

	c.logger.Debug("transfer complete",
		zap.Uint64("handle", uint64(handle)),
		zap.String("dest", dest),
		zap.Int64("bytes", result.BytesWritten),
		zap.Duration("duration", time.Since(start)))
	done <- result
}

func (c *Client) release(handle port.JobHandle) {
	c.mu.Lock()
	cancel, ok := c.jobs[handle]
	delete(c.jobs, handle)
	c.mu.Unlock()
	if ok {
		cancel()
	}
}

func report(resp *grab.Response, onProgress func(port.TransferProgress)) {
	if onProgress == nil {
		return
	}
	size := resp.Size()
	if size < 0 {
		size = 0
	}
	onProgress(port.TransferProgress{
		BytesWritten:   resp.BytesComplete(),
		ContentLength:  size,
		BytesPerSecond: resp.BytesPerSecond(),
	})
}
