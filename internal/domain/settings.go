package domain

// Theme is the UI color scheme preference
type Theme string

const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeSystem Theme = "system"
)

const (
	MinConcurrentDownloads     = 1
	MaxConcurrentDownloads     = 10
	DefaultConcurrentDownloads = 2
)

// Settings holds durable user preferences
type Settings struct {
	Theme                        Theme   `json:"theme"`
	DefaultQuality               string  `json:"defaultQuality"`
	DefaultFormat                string  `json:"defaultFormat"`
	WifiOnlyDownload             bool    `json:"wifiOnlyDownload"`
	AutoStartDownload            bool    `json:"autoStartDownload"`
	MaxConcurrentDownloads       int     `json:"maxConcurrentDownloads"`
	CustomDownloadPath           *string `json:"customDownloadPath"`
	NotificationsEnabled         bool    `json:"notificationsEnabled"`
	DownloadCompleteNotification bool    `json:"downloadCompleteNotification"`
	HasCompletedOnboarding       bool    `json:"hasCompletedOnboarding"`
}

// DefaultSettings returns the settings used on first launch
func DefaultSettings() *Settings {
	return &Settings{
		Theme:                        ThemeDark,
		DefaultQuality:               "720p",
		DefaultFormat:                "mp4",
		WifiOnlyDownload:             false,
		AutoStartDownload:            true,
		MaxConcurrentDownloads:       DefaultConcurrentDownloads,
		NotificationsEnabled:         true,
		DownloadCompleteNotification: true,
		HasCompletedOnboarding:       false,
	}
}

// Normalize fills blanks with defaults and clamps the concurrency cap
func (s *Settings) Normalize() {
	def := DefaultSettings()
	switch s.Theme {
	case ThemeLight, ThemeDark, ThemeSystem:
	default:
		s.Theme = def.Theme
	}
	if s.DefaultQuality == "" {
		s.DefaultQuality = def.DefaultQuality
	}
	if s.DefaultFormat == "" {
		s.DefaultFormat = def.DefaultFormat
	}
	s.MaxConcurrentDownloads = ClampConcurrency(s.MaxConcurrentDownloads)
	if s.CustomDownloadPath != nil && *s.CustomDownloadPath == "" {
		s.CustomDownloadPath = nil
	}
}

// ClampConcurrency bounds n to the supported range
func ClampConcurrency(n int) int {
	if n < MinConcurrentDownloads {
		return MinConcurrentDownloads
	}
	if n > MaxConcurrentDownloads {
		return MaxConcurrentDownloads
	}
	return n
}

// Clone returns a deep copy
func (s *Settings) Clone() *Settings {
	c := *s
	if s.CustomDownloadPath != nil {
		p := *s.CustomDownloadPath
		c.CustomDownloadPath = &p
	}
	return &c
}
