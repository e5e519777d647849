package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// DefaultTokenTTL is how long issued auth tokens stay valid.
const DefaultTokenTTL = 24 * time.Hour

// ErrTokenInvalid is returned when a token is unknown or expired.
var ErrTokenInvalid = errors.New("store: invalid or expired token")

// CreateToken issues an opaque bearer token for userID. A ttl <= 0 uses
// DefaultTokenTTL.
func (s *Store) CreateToken(ctx context.Context, userID string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	token := hex.EncodeToString(raw)

	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO auth_tokens (token, user_id, expires_at, created_at) VALUES (?, ?, ?, ?)",
		token, userID,
		now.Add(ttl).Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", fmt.Errorf("insert token: %w", err)
	}
	return token, nil
}

// ResolveToken returns the user ID a token belongs to. Expired tokens are
// deleted on sight and reported as ErrTokenInvalid.
func (s *Store) ResolveToken(ctx context.Context, token string) (string, error) {
	var userID, expiresAt string
	err := s.db.QueryRowContext(ctx,
		"SELECT user_id, expires_at FROM auth_tokens WHERE token = ?", token,
	).Scan(&userID, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrTokenInvalid
	}
	if err != nil {
		return "", fmt.Errorf("look up token: %w", err)
	}

	expiry, err := time.Parse(time.RFC3339Nano, expiresAt)
	if err != nil {
		return "", fmt.Errorf("parse expires_at: %w", err)
	}
	if time.Now().UTC().After(expiry) {
		s.db.ExecContext(ctx, "DELETE FROM auth_tokens WHERE token = ?", token)
		return "", ErrTokenInvalid
	}
	return userID, nil
}

// DeleteToken revokes a token. Deleting an unknown token is not an error.
func (s *Store) DeleteToken(ctx context.Context, token string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM auth_tokens WHERE token = ?", token); err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	return nil
}
