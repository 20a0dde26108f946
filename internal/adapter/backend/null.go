package backend

import (
	"context"

	"github.com/vertextoedge/swiftsaver/internal/domain"
	"github.com/vertextoedge/swiftsaver/internal/port"
)

// NullBackend is used when no hosted backend is configured.
// Every call succeeds without doing anything.
type NullBackend struct{}

// Ensure NullBackend implements port.Backend
var _ port.Backend = NullBackend{}

// Enabled returns false
func (NullBackend) Enabled() bool { return false }

// SignIn returns a nil session
func (NullBackend) SignIn(ctx context.Context, email, password string) (*domain.Session, error) {
	return nil, nil
}

// SignUp returns a nil session
func (NullBackend) SignUp(ctx context.Context, email, password string) (*domain.Session, error) {
	return nil, nil
}

// SignOut does nothing
func (NullBackend) SignOut(ctx context.Context, session *domain.Session) error { return nil }

// TrackEvent does nothing
func (NullBackend) TrackEvent(ctx context.Context, name string, props map[string]any) error {
	return nil
}

// SavePreferences does nothing
func (NullBackend) SavePreferences(ctx context.Context, session *domain.Session, s *domain.Settings) error {
	return nil
}
