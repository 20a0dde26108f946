package preferences

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vertextoedge/swiftsaver/internal/domain"
	"github.com/vertextoedge/swiftsaver/internal/port"
)

// SessionSource supplies the signed-in session used for preference sync
type SessionSource interface {
	Current() *domain.Session
}

// Service caches user settings in front of the settings store.
// It is safe for concurrent use.
type Service struct {
	store   port.SettingsStore
	backend port.Backend
	logger  *zap.Logger

	mu       sync.RWMutex
	settings *domain.Settings
	sessions SessionSource

	syncTimeout time.Duration
}

// New creates a new preferences Service. store and backend may be nil.
// The cache starts at defaults until Load is called.
func New(store port.SettingsStore, backend port.Backend, logger *zap.Logger) *Service {
	return &Service{
		store:       store,
		backend:     backend,
		logger:      logger,
		settings:    domain.DefaultSettings(),
		syncTimeout: 10 * time.Second,
	}
}

// SetSessionSource enables syncing saved settings to the backend
func (s *Service) SetSessionSource(src SessionSource) {
	s.mu.Lock()
	s.sessions = src
	s.mu.Unlock()
}

// Load reads settings from the store. On failure defaults stay in effect.
func (s *Service) Load(ctx context.Context) *domain.Settings {
	loaded := domain.DefaultSettings()
	if s.store != nil {
		stored, err := s.store.LoadSettings(ctx)
		if err != nil {
			s.logger.Warn("failed to load settings, using defaults", zap.Error(err))
		} else {
			loaded = stored
		}
	}
	loaded.Normalize()

	s.mu.Lock()
	s.settings = loaded
	s.mu.Unlock()
	return loaded.Clone()
}

// Get returns a copy of the current settings
func (s *Service) Get() *domain.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.Clone()
}

// MaxConcurrentDownloads returns the current concurrency cap
func (s *Service) MaxConcurrentDownloads() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings.MaxConcurrentDownloads
}

// Update applies fn to a copy of the settings, normalizes and persists it.
// The cache only changes when the store accepts the new settings.
func (s *Service) Update(ctx context.Context, fn func(*domain.Settings)) (*domain.Settings, error) {
	s.mu.Lock()
	next := s.settings.Clone()
	fn(next)
	next.Normalize()

	if s.store != nil {
		if err := s.store.SaveSettings(ctx, next); err != nil {
			s.mu.Unlock()
			return nil, fmt.Errorf("failed to save settings: %w", err)
		}
	}
	s.settings = next
	sessions := s.sessions
	s.mu.Unlock()

	s.sync(ctx, sessions, next)
	return next.Clone(), nil
}

// Reset restores defaults
func (s *Service) Reset(ctx context.Context) (*domain.Settings, error) {
	if s.store != nil {
		if err := s.store.ResetSettings(ctx); err != nil {
			return nil, fmt.Errorf("failed to reset settings: %w", err)
		}
	}

	def := domain.DefaultSettings()
	s.mu.Lock()
	s.settings = def
	s.mu.Unlock()

	s.logger.Info("settings reset to defaults")
	return def.Clone(), nil
}

// SetDefaultQuality sets the preselected quality label
func (s *Service) SetDefaultQuality(ctx context.Context, quality string) error {
	quality = strings.TrimSpace(quality)
	if quality == "" {
		return fmt.Errorf("%w: quality is empty", domain.ErrInvalidInput)
	}
	_, err := s.Update(ctx, func(st *domain.Settings) { st.DefaultQuality = quality })
	return err
}

// SetDefaultFormat sets the preselected container format
func (s *Service) SetDefaultFormat(ctx context.Context, format string) error {
	format = strings.TrimSpace(format)
	if format == "" {
		return fmt.Errorf("%w: format is empty", domain.ErrInvalidInput)
	}
	_, err := s.Update(ctx, func(st *domain.Settings) { st.DefaultFormat = format })
	return err
}

// SetMaxConcurrentDownloads sets the concurrency cap, clamped to 1..10
func (s *Service) SetMaxConcurrentDownloads(ctx context.Context, n int) error {
	_, err := s.Update(ctx, func(st *domain.Settings) { st.MaxConcurrentDownloads = n })
	return err
}

// SetTheme sets the color scheme
func (s *Service) SetTheme(ctx context.Context, theme domain.Theme) error {
	switch theme {
	case domain.ThemeLight, domain.ThemeDark, domain.ThemeSystem:
	default:
		return fmt.Errorf("%w: unknown theme %q", domain.ErrInvalidInput, theme)
	}
	_, err := s.Update(ctx, func(st *domain.Settings) { st.Theme = theme })
	return err
}

// SetWifiOnly toggles wifi-only downloads
func (s *Service) SetWifiOnly(ctx context.Context, on bool) error {
	_, err := s.Update(ctx, func(st *domain.Settings) { st.WifiOnlyDownload = on })
	return err
}

// SetAutoStart toggles starting downloads right after creation
func (s *Service) SetAutoStart(ctx context.Context, on bool) error {
	_, err := s.Update(ctx, func(st *domain.Settings) { st.AutoStartDownload = on })
	return err
}

// SetNotifications toggles notifications
func (s *Service) SetNotifications(ctx context.Context, on bool) error {
	_, err := s.Update(ctx, func(st *domain.Settings) { st.NotificationsEnabled = on })
	return err
}

// CompleteOnboarding records that onboarding was shown
func (s *Service) CompleteOnboarding(ctx context.Context) error {
	_, err := s.Update(ctx, func(st *domain.Settings) { st.HasCompletedOnboarding = true })
	return err
}

func (s *Service) sync(ctx context.Context, sessions SessionSource, settings *domain.Settings) {
	if s.backend == nil || !s.backend.Enabled() || sessions == nil {
		return
	}
	session := sessions.Current()
	if session == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.syncTimeout)
	defer cancel()
	if err := s.backend.SavePreferences(ctx, session, settings); err != nil {
		s.logger.Warn("failed to sync preferences", zap.Error(err))
	}
}
