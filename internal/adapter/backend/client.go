package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/vertextoedge/swiftsaver/internal/domain"
	"github.com/vertextoedge/swiftsaver/internal/port"
)

// ErrNotConfigured is returned by New when url or api key is missing
var ErrNotConfigured = errors.New("backend not configured")

// Config contains hosted backend configuration
type Config struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

// Client talks to a hosted auth and REST backend
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
	now        func() time.Time
}

// Ensure Client implements port.Backend
var _ port.Backend = (*Client)(nil)

// New creates a backend client
func New(cfg *Config, logger *zap.Logger) (*Client, error) {
	if cfg == nil || cfg.URL == "" || cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		now:        time.Now,
	}, nil
}

// Select returns a Client when configured and NullBackend otherwise
func Select(cfg *Config, logger *zap.Logger) port.Backend {
	client, err := New(cfg, logger)
	if err != nil {
		logger.Info("hosted backend not configured, session and analytics disabled")
		return NullBackend{}
	}
	logger.Info("hosted backend enabled", zap.String("url", client.baseURL))
	return client
}

// Enabled returns true
func (c *Client) Enabled() bool { return true }

type authResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	User         struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

// SignIn exchanges email and password for a session
func (c *Client) SignIn(ctx context.Context, email, password string) (*domain.Session, error) {
	var resp authResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=password", "", body, &resp, nil); err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}
	return c.toSession(&resp), nil
}

// SignUp registers a user. The session is nil when email confirmation is pending.
func (c *Client) SignUp(ctx context.Context, email, password string) (*domain.Session, error) {
	var resp authResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/v1/signup", "", body, &resp, nil); err != nil {
		return nil, fmt.Errorf("sign up: %w", err)
	}
	return c.toSession(&resp), nil
}

// SignOut revokes the session token
func (c *Client) SignOut(ctx context.Context, session *domain.Session) error {
	if session == nil {
		return nil
	}
	if err := c.do(ctx, http.MethodPost, "/auth/v1/logout", session.AccessToken, nil, nil, nil); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	return nil
}

// TrackEvent inserts a row into analytics_events
func (c *Client) TrackEvent(ctx context.Context, name string, props map[string]any) error {
	if props == nil {
		props = map[string]any{}
	}
	row := map[string]any{
		"event_name": name,
		"properties": props,
		"created_at": c.now().UTC().Format(time.RFC3339),
	}
	headers := map[string]string{"Prefer": "return=minimal"}
	if err := c.do(ctx, http.MethodPost, "/rest/v1/analytics_events", "", row, nil, headers); err != nil {
		return fmt.Errorf("track event: %w", err)
	}
	return nil
}

// SavePreferences upserts the user's settings into user_preferences
func (c *Client) SavePreferences(ctx context.Context, session *domain.Session, s *domain.Settings) error {
	if session == nil {
		return nil
	}
	row := map[string]any{
		"user_id":     session.UserID,
		"preferences": s,
		"updated_at":  c.now().UTC().Format(time.RFC3339),
	}
	headers := map[string]string{"Prefer": "resolution=merge-duplicates,return=minimal"}
	if err := c.do(ctx, http.MethodPost, "/rest/v1/user_preferences", session.AccessToken, row, nil, headers); err != nil {
		return fmt.Errorf("save preferences: %w", err)
	}
	return nil
}

func (c *Client) toSession(resp *authResponse) *domain.Session {
	if resp.AccessToken == "" {
		return nil
	}
	s := &domain.Session{
		UserID:       resp.User.ID,
		Email:        resp.User.Email,
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
	}
	if resp.ExpiresIn > 0 {
		s.ExpiresAt = c.now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	}
	return s
}

// APIError is a non-2xx response from the backend
type APIError struct {
	StatusCode int
	Message    string
}

// Error returns the error message
func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("backend returned %d", e.StatusCode)
}

func (c *Client) do(ctx context.Context, method, path, token string, in, out any, headers map[string]string) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if token == "" {
		token = c.apiKey
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+token)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(resp.Body)}
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func errorMessage(r io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(r, 4096))
	var payload struct {
		Message          string `json:"message"`
		Msg              string `json:"msg"`
		ErrorDescription string `json:"error_description"`
	}
	if json.Unmarshal(raw, &payload) == nil {
		for _, m := range []string{payload.ErrorDescription, payload.Message, payload.Msg} {
			if m != "" {
				return m
			}
		}
	}
	return strings.TrimSpace(string(raw))
}
