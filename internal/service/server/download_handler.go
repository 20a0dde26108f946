package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/vertextoedge/swiftsaver/internal/domain"
	"github.com/vertextoedge/swiftsaver/internal/service/downloads"
)

type resolveRequest struct {
	URL string `json:"url" binding:"required"`
}

type createDownloadRequest struct {
	URL         string          `json:"url" binding:"required"`
	Title       string          `json:"title"`
	Thumbnail   string          `json:"thumbnail"`
	Quality     string          `json:"quality"`
	Format      string          `json:"format"`
	Platform    domain.Platform `json:"platform"`
	DownloadURL string          `json:"downloadUrl"`
	Start       *bool           `json:"start"`
}

type startRequest struct {
	DownloadURL string `json:"downloadUrl"`
}

// handleResolve fetches metadata for a pasted URL
func (s *Server) handleResolve(c *gin.Context) {
	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondFailure(c, http.StatusBadRequest, "url is required")
		return
	}

	meta, err := s.deps.Resolver.FetchMetadata(c.Request.Context(), req.URL)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, meta)
}

// handleListDownloads lists tasks newest first, optionally by status
func (s *Server) handleListDownloads(c *gin.Context) {
	status := domain.Status(c.Query("status"))
	if status == "" {
		c.JSON(http.StatusOK, s.deps.Downloads.Tasks())
		return
	}
	if !status.IsValid() {
		respondFailure(c, http.StatusBadRequest, "unknown status: "+string(status))
		return
	}
	c.JSON(http.StatusOK, s.deps.Downloads.TasksByStatus(status))
}

// handleCreateDownload registers a task and starts it when requested
// or when auto start is enabled in settings
func (s *Server) handleCreateDownload(c *gin.Context) {
	var req createDownloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondFailure(c, http.StatusBadRequest, "url is required")
		return
	}

	settings := s.deps.Preferences.Get()
	if req.Quality == "" {
		req.Quality = settings.DefaultQuality
	}
	if req.Format == "" {
		req.Format = settings.DefaultFormat
	}

	task, err := s.deps.Downloads.CreateTask(downloads.CreateRequest{
		URL:       req.URL,
		Title:     req.Title,
		Thumbnail: req.Thumbnail,
		Quality:   req.Quality,
		Format:    req.Format,
		Platform:  req.Platform,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	start := settings.AutoStartDownload
	if req.Start != nil {
		start = *req.Start
	}
	if start {
		if err := s.start(c.Request.Context(), task, req.DownloadURL); err != nil {
			s.logger.Warn("auto start failed",
				zap.String("task_id", task.ID),
				zap.Error(err),
			)
		}
		if t, err := s.deps.Downloads.Task(task.ID); err == nil {
			task = t
		}
	}

	c.JSON(http.StatusCreated, task)
}

// handleGetDownload returns one task
func (s *Server) handleGetDownload(c *gin.Context) {
	task, err := s.deps.Downloads.Task(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// handleRemoveDownload erases a finished task
func (s *Server) handleRemoveDownload(c *gin.Context) {
	id := c.Param("id")
	if _, err := s.deps.Downloads.Task(id); err != nil {
		respondError(c, err)
		return
	}
	if !s.deps.Downloads.RemoveTask(id) {
		respondFailure(c, http.StatusConflict, "only finished tasks can be removed")
		return
	}
	c.Status(http.StatusNoContent)
}

// handleClearCompleted erases every completed task
func (s *Server) handleClearCompleted(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"removed": s.deps.Downloads.ClearCompleted()})
}

// handleStartDownload starts a pending task, resolving its media URL if none is given
func (s *Server) handleStartDownload(c *gin.Context) {
	var req startRequest
	if err := bindOptional(c, &req); err != nil {
		respondError(c, err)
		return
	}

	task, err := s.deps.Downloads.Task(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if err := s.start(c.Request.Context(), task, req.DownloadURL); err != nil {
		respondError(c, err)
		return
	}
	s.respondTask(c, task.ID)
}

func (s *Server) handlePauseDownload(c *gin.Context) {
	id := c.Param("id")
	if err := s.deps.Downloads.PauseDownload(id); err != nil {
		respondError(c, err)
		return
	}
	s.respondTask(c, id)
}

func (s *Server) handleResumeDownload(c *gin.Context) {
	var req startRequest
	if err := bindOptional(c, &req); err != nil {
		respondError(c, err)
		return
	}

	id := c.Param("id")
	if err := s.deps.Downloads.ResumeDownload(c.Request.Context(), id, req.DownloadURL); err != nil {
		respondError(c, err)
		return
	}
	s.respondTask(c, id)
}

func (s *Server) handleCancelDownload(c *gin.Context) {
	id := c.Param("id")
	if err := s.deps.Downloads.CancelDownload(id); err != nil {
		respondError(c, err)
		return
	}
	s.respondTask(c, id)
}

func (s *Server) handleRetryDownload(c *gin.Context) {
	var req startRequest
	if err := bindOptional(c, &req); err != nil {
		respondError(c, err)
		return
	}

	id := c.Param("id")
	if err := s.deps.Downloads.RetryDownload(c.Request.Context(), id, req.DownloadURL); err != nil {
		respondError(c, err)
		return
	}
	s.respondTask(c, id)
}

// start hands a task to the registry, resolving the media URL first
// when the caller did not supply one
func (s *Server) start(ctx context.Context, task *domain.DownloadTask, downloadURL string) error {
	downloadURL = strings.TrimSpace(downloadURL)
	if downloadURL == "" {
		resolved, err := s.deps.Resolver.ResolveDownloadURL(ctx, task.URL, task.Quality, task.Format)
		if err != nil {
			return err
		}
		downloadURL = resolved
	}
	return s.deps.Downloads.StartDownload(ctx, task.ID, downloadURL)
}

func (s *Server) respondTask(c *gin.Context, id string) {
	task, err := s.deps.Downloads.Task(id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}
