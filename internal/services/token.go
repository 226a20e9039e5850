package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dimitrije/listshub-api/internal/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var (
	ErrRefreshTokenNotFound = errors.New("refresh token not found")
	ErrRefreshTokenExpired  = errors.New("refresh token expired")
)

// TokenService persists refresh token hashes. A refresh token is single use:
// ConsumeRefreshToken removes it, and the caller issues a new pair.
type TokenService struct {
	db  *database.DB
	now func() time.Time
}

func NewTokenService(db *database.DB) *TokenService {
	return &TokenService{db: db, now: time.Now}
}

func (s *TokenService) StoreRefreshToken(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) error {
	_, err := s.db.Pool.Exec(ctx,
		`INSERT INTO refresh_tokens (user_id, token_hash, expires_at) VALUES ($1, $2, $3)`,
		userID, tokenHash, expiresAt)
	if err != nil {
		return fmt.Errorf("failed to store refresh token: %w", err)
	}
	return nil
}

// ConsumeRefreshToken deletes the stored hash and returns its owner. Two
// concurrent refreshes with the same token cannot both succeed.
func (s *TokenService) ConsumeRefreshToken(ctx context.Context, tokenHash string) (uuid.UUID, error) {
	var (
		userID    uuid.UUID
		expiresAt time.Time
	)
	err := s.db.Pool.QueryRow(ctx,
		`DELETE FROM refresh_tokens WHERE token_hash = $1 RETURNING user_id, expires_at`,
		tokenHash).Scan(&userID, &expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, ErrRefreshTokenNotFound
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to consume refresh token: %w", err)
	}
	if !expiresAt.After(s.now()) {
		return uuid.Nil, ErrRefreshTokenExpired
	}
	return userID, nil
}

func (s *TokenService) RevokeRefreshToken(ctx context.Context, tokenHash string) error {
	_, err := s.db.Pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE token_hash = $1`, tokenHash)
	return err
}

// RevokeAllUserTokens signs the user out everywhere and reports how many
// sessions were dropped.
func (s *TokenService) RevokeAllUserTokens(ctx context.Context, userID uuid.UUID) (int64, error) {
	tag, err := s.db.Pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

type CleanupStats struct {
	RefreshTokens  int64
	PasswordResets int64
}

// CleanupExpired removes expired refresh tokens and spent or expired password
// reset tokens.
func (s *TokenService) CleanupExpired(ctx context.Context) (CleanupStats, error) {
	var stats CleanupStats

	tag, err := s.db.Pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at < NOW()`)
	if err != nil {
		return stats, fmt.Errorf("failed to delete expired refresh tokens: %w", err)
	}
	stats.RefreshTokens = tag.RowsAffected()

	tag, err = s.db.Pool.Exec(ctx, `DELETE FROM password_resets WHERE expires_at < NOW() OR used_at IS NOT NULL`)
	if err != nil {
		return stats, fmt.Errorf("failed to delete expired password resets: %w", err)
	}
	stats.PasswordResets = tag.RowsAffected()

	return stats, nil
}
