package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vertextoedge/swiftsaver/internal/domain/vo"
)

type fileRequest struct {
	Path string `json:"path" binding:"required"`
	Name string `json:"name"`
}

type storageResponse struct {
	Used           int64  `json:"used"`
	Available      int64  `json:"available"`
	Total          int64  `json:"total"`
	UsedHuman      string `json:"usedHuman"`
	AvailableHuman string `json:"availableHuman"`
	TotalHuman     string `json:"totalHuman"`
}

// handleListLibrary lists finished media files newest first
func (s *Server) handleListLibrary(c *gin.Context) {
	c.JSON(http.StatusOK, s.deps.Library.ListMediaFiles(c.Request.Context()))
}

// handleClearLibrary removes every finished file
func (s *Server) handleClearLibrary(c *gin.Context) {
	if !s.deps.Library.ClearAll() {
		respondFailure(c, http.StatusInternalServerError, "failed to clear library")
		return
	}
	c.Status(http.StatusNoContent)
}

// handleDeleteFile removes one file given by the path query parameter
func (s *Server) handleDeleteFile(c *gin.Context) {
	path, ok := s.libraryPath(c, c.Query("path"))
	if !ok {
		return
	}
	if !s.deps.Library.DeleteFile(path) {
		respondFailure(c, http.StatusNotFound, "file not found")
		return
	}
	c.Status(http.StatusNoContent)
}

// handleShareFile copies a file to the share directory
func (s *Server) handleShareFile(c *gin.Context) {
	var req fileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondFailure(c, http.StatusBadRequest, "path is required")
		return
	}
	path, ok := s.libraryPath(c, req.Path)
	if !ok {
		return
	}

	shared, ok := s.deps.Library.CopyToShareableLocation(path, req.Name)
	if !ok {
		respondFailure(c, http.StatusInternalServerError, "failed to copy file")
		return
	}
	c.JSON(http.StatusOK, gin.H{"path": shared})
}

// handleRenameFile renames a file in place, keeping its extension
func (s *Server) handleRenameFile(c *gin.Context) {
	var req fileRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" {
		respondFailure(c, http.StatusBadRequest, "path and name are required")
		return
	}
	path, ok := s.libraryPath(c, req.Path)
	if !ok {
		return
	}

	renamed, ok := s.deps.Library.RenameFile(path, req.Name)
	if !ok {
		respondFailure(c, http.StatusUnprocessableEntity, "failed to rename file")
		return
	}
	c.JSON(http.StatusOK, gin.H{"path": renamed})
}

// handleStorage reports library usage and free space
func (s *Server) handleStorage(c *gin.Context) {
	info := s.deps.Library.StorageUsage()
	c.JSON(http.StatusOK, storageResponse{
		Used:           info.Used,
		Available:      info.Available,
		Total:          info.Total,
		UsedHuman:      vo.NewFileSize(info.Used).String(),
		AvailableHuman: vo.NewFileSize(info.Available).String(),
		TotalHuman:     vo.NewFileSize(info.Total).String(),
	})
}

// libraryPath rejects paths outside the download directory
func (s *Server) libraryPath(c *gin.Context, raw string) (string, bool) {
	fp, err := vo.NewFilePath(raw)
	if err != nil || fp.IsEmpty() {
		respondFailure(c, http.StatusBadRequest, "path is required")
		return "", false
	}
	if !fp.Within(s.deps.Library.Dir()) {
		respondFailure(c, http.StatusForbidden, "path is outside the download directory")
		return "", false
	}
	return fp.String(), true
}
