package account

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

// Service manages the optional backend session.
// With the null backend every call succeeds and the session stays nil.
type Service struct {
	backend port.Backend
	store   port.SettingsStore
	logger  *zap.Logger
	now     func() time.Time

	mu      sync.RWMutex
	session *domain.Session
}

// New creates a new account Service. store may be nil.
func New(backend port.Backend, store port.SettingsStore, logger *zap.Logger) *Service {
	return &Service{
		backend: backend,
		store:   store,
		logger:  logger,
		now:     time.Now,
	}
}

// Enabled reports whether a real backend is configured
func (s *Service) Enabled() bool {
	return s.backend.Enabled()
}

// Restore loads the persisted session. Expired sessions are dropped.
func (s *Service) Restore(ctx context.Context) *domain.Session {
	if s.store == nil {
		return nil
	}
	session, err := s.store.LoadSession(ctx)
	if err != nil {
		s.logger.Warn("failed to load session", zap.Error(err))
		return nil
	}
	if session != nil && session.Expired(s.now()) {
		s.logger.Info("stored session expired", zap.String("email", session.Email))
		if err := s.store.ClearSession(ctx); err != nil {
			s.logger.Warn("failed to clear expired session", zap.Error(err))
		}
		session = nil
	}

	s.mu.Lock()
	s.session = session
	s.mu.Unlock()
	return clone(session)
}

// Current returns the signed-in session or nil
func (s *Service) Current() *domain.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.session)
}

// SignIn authenticates with the backend and persists the session
func (s *Service) SignIn(ctx context.Context, email, password string) (*domain.Session, error) {
	email, err := validate(email, password)
	if err != nil {
		return nil, err
	}
	session, err := s.backend.SignIn(ctx, email, password)
	if err != nil {
		return nil, fmt.Errorf("sign in failed: %w", err)
	}
	return s.adopt(ctx, session), nil
}

// SignUp registers with the backend. The session is nil when the backend
// requires email confirmation.
func (s *Service) SignUp(ctx context.Context, email, password string) (*domain.Session, error) {
	email, err := validate(email, password)
	if err != nil {
		return nil, err
	}
	session, err := s.backend.SignUp(ctx, email, password)
	if err != nil {
		return nil, fmt.Errorf("sign up failed: %w", err)
	}
	return s.adopt(ctx, session), nil
}

// SignOut ends the session locally even when the backend call fails
func (s *Service) SignOut(ctx context.Context) error {
	s.mu.Lock()
	session := s.session
	s.session = nil
	s.mu.Unlock()

	if session != nil {
		if err := s.backend.SignOut(ctx, session); err != nil {
			s.logger.Warn("backend sign out failed", zap.Error(err))
		}
	}
	if s.store != nil {
		if err := s.store.ClearSession(ctx); err != nil {
			return fmt.Errorf("failed to clear session: %w", err)
		}
	}
	return nil
}

// TrackPageView records a page_view analytics event
func (s *Service) TrackPageView(ctx context.Context, page string) error {
	props := map[string]any{"page": page}
	if session := s.Current(); session != nil {
		props["user_id"] = session.UserID
	}
	return s.backend.TrackEvent(ctx, "page_view", props)
}

func (s *Service) adopt(ctx context.Context, session *domain.Session) *domain.Session {
	if session == nil {
		return nil
	}

	s.mu.Lock()
	s.session = session
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.SaveSession(ctx, session); err != nil {
			s.logger.Warn("failed to persist session", zap.Error(err))
		}
	}
	s.logger.Info("signed in", zap.String("email", session.Email))
	return clone(session)
}

func validate(email, password string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" || !strings.Contains(email, "@") {
		return "", fmt.Errorf("%w: email is invalid", domain.ErrInvalidInput)
	}
	if password == "" {
		return "", fmt.Errorf("%w: password is empty", domain.ErrInvalidInput)
	}
	return email, nil
}

func clone(s *domain.Session) *domain.Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
