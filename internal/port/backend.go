package port

import (
	"context"

	"github.com/vertextoedge/swiftsaver/internal/domain"
)

// Backend is the optional hosted session and analytics service.
// An unconfigured backend is represented by a null implementation.
type Backend interface {
	// Enabled reports whether a real backend is configured
	Enabled() bool

	SignIn(ctx context.Context, email, password string) (*domain.Session, error)
	SignUp(ctx context.Context, email, password string) (*domain.Session, error)
	SignOut(ctx context.Context, session *domain.Session) error

	TrackEvent(ctx context.Context, name string, props map[string]any) error
	SavePreferences(ctx context.Context, session *domain.Session, s *domain.Settings) error
}
