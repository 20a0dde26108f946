package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vertextoedge/swiftsaver/internal/domain"
)

// LoadSettings returns stored settings layered over defaults
func (s *Store) LoadSettings(ctx context.Context) (*domain.Settings, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM settings")
	if err != nil {
		return nil, fmt.Errorf("failed to query settings: %w", err)
	}
	defer rows.Close()

	stored := make(map[string]json.RawMessage)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		stored[key] = json.RawMessage(value)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	settings := domain.DefaultSettings()
	if len(stored) == 0 {
		return settings, nil
	}

	// Re-encode as one object so missing keys keep their defaults
	raw, err := json.Marshal(stored)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, settings); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	settings.Normalize()
	return settings, nil
}

// SaveSettings writes every settings field in one transaction
func (s *Store) SaveSettings(ctx context.Context, settings *domain.Settings) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO settings (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for key, value := range fields {
		if _, err := stmt.ExecContext(ctx, key, string(value)); err != nil {
			return fmt.Errorf("failed to save setting %s: %w", key, err)
		}
	}
	return tx.Commit()
}

// ResetSettings removes all stored settings
func (s *Store) ResetSettings(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM settings")
	return err
}

// LoadSession returns the stored session, or nil when signed out
func (s *Store) LoadSession(ctx context.Context) (*domain.Session, error) {
	var (
		session             domain.Session
		email, refreshToken sql.NullString
		expiresAt           sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT user_id, email, access_token, refresh_token, expires_at FROM session WHERE id = 1",
	).Scan(&session.UserID, &email, &session.AccessToken, &refreshToken, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	session.Email = email.String
	session.RefreshToken = refreshToken.String
	if expiresAt.Valid && expiresAt.Int64 > 0 {
		session.ExpiresAt = time.UnixMilli(expiresAt.Int64)
	}
	return &session, nil
}

// SaveSession replaces the stored session
func (s *Store) SaveSession(ctx context.Context, session *domain.Session) error {
	if session == nil {
		return s.ClearSession(ctx)
	}

	var expiresAt sql.NullInt64
	if !session.ExpiresAt.IsZero() {
		expiresAt = sql.NullInt64{Int64: session.ExpiresAt.UnixMilli(), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `INSERT INTO session (id, user_id, email, access_token, refresh_token, expires_at, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			email = excluded.email,
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expires_at = excluded.expires_at,
			updated_at = CURRENT_TIMESTAMP`,
		session.UserID, session.Email, session.AccessToken, session.RefreshToken, expiresAt)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// ClearSession removes the stored session
func (s *Store) ClearSession(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM session")
	return err
}
