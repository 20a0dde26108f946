package port

import (
	"context"

	"github.com/vertextoedge/swiftsaver/internal/domain"
)

// SettingsStore persists user settings and the backend session
type SettingsStore interface {
	LoadSettings(ctx context.Context) (*domain.Settings, error)
	SaveSettings(ctx context.Context, s *domain.Settings) error
	ResetSettings(ctx context.Context) error

	// LoadSession returns nil when signed out
	LoadSession(ctx context.Context) (*domain.Session, error)
	SaveSession(ctx context.Context, s *domain.Session) error
	ClearSession(ctx context.Context) error

	Ping() error
	Close() error
}
