package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vertextoedge/swiftsaver/internal/domain"
)

// settingsPatch is a partial settings update; nil fields are left alone
type settingsPatch struct {
	Theme                        *domain.Theme `json:"theme"`
	DefaultQuality               *string       `json:"defaultQuality"`
	DefaultFormat                *string       `json:"defaultFormat"`
	WifiOnlyDownload             *bool         `json:"wifiOnlyDownload"`
	AutoStartDownload            *bool         `json:"autoStartDownload"`
	MaxConcurrentDownloads       *int          `json:"maxConcurrentDownloads"`
	CustomDownloadPath           *string       `json:"customDownloadPath"`
	NotificationsEnabled         *bool         `json:"notificationsEnabled"`
	DownloadCompleteNotification *bool         `json:"downloadCompleteNotification"`
	HasCompletedOnboarding       *bool         `json:"hasCompletedOnboarding"`
}

func (p *settingsPatch) validate() bool {
	if p.Theme != nil {
		switch *p.Theme {
		case domain.ThemeLight, domain.ThemeDark, domain.ThemeSystem:
		default:
			return false
		}
	}
	if p.DefaultQuality != nil && *p.DefaultQuality == "" {
		return false
	}
	if p.DefaultFormat != nil && *p.DefaultFormat == "" {
		return false
	}
	return true
}

func (p *settingsPatch) apply(s *domain.Settings) {
	if p.Theme != nil {
		s.Theme = *p.Theme
	}
	if p.DefaultQuality != nil {
		s.DefaultQuality = *p.DefaultQuality
	}
	if p.DefaultFormat != nil {
		s.DefaultFormat = *p.DefaultFormat
	}
	if p.WifiOnlyDownload != nil {
		s.WifiOnlyDownload = *p.WifiOnlyDownload
	}
	if p.AutoStartDownload != nil {
		s.AutoStartDownload = *p.AutoStartDownload
	}
	if p.MaxConcurrentDownloads != nil {
		s.MaxConcurrentDownloads = *p.MaxConcurrentDownloads
	}
	if p.CustomDownloadPath != nil {
		path := *p.CustomDownloadPath
		s.CustomDownloadPath = &path
	}
	if p.NotificationsEnabled != nil {
		s.NotificationsEnabled = *p.NotificationsEnabled
	}
	if p.DownloadCompleteNotification != nil {
		s.DownloadCompleteNotification = *p.DownloadCompleteNotification
	}
	if p.HasCompletedOnboarding != nil {
		s.HasCompletedOnboarding = *p.HasCompletedOnboarding
	}
}

func (s *Server) handleGetSettings(c *gin.Context) {
	c.JSON(http.StatusOK, s.deps.Preferences.Get())
}

// handleUpdateSettings applies a partial update and returns the stored settings
func (s *Server) handleUpdateSettings(c *gin.Context) {
	var patch settingsPatch
	if err := c.ShouldBindJSON(&patch); err != nil || !patch.validate() {
		respondFailure(c, http.StatusBadRequest, "invalid settings")
		return
	}

	updated, err := s.deps.Preferences.Update(c.Request.Context(), patch.apply)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (s *Server) handleResetSettings(c *gin.Context) {
	settings, err := s.deps.Preferences.Reset(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}
