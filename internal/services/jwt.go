package services

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/dimitrije/listshub-api/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenIssuer = "listshub-api"

// TokenKind separates access from refresh tokens so one cannot stand in for
// the other.
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

var ErrInvalidToken = errors.New("invalid token")

type JWTService struct {
	secret        []byte
	accessExpiry  time.Duration
	refreshExpiry time.Duration
	now           func() time.Time
}

// Claims identify the caller. Role is a snapshot taken at issue time; it is
// refreshed with the next token pair.
type Claims struct {
	UserID uuid.UUID       `json:"user_id"`
	Email  string          `json:"email,omitempty"`
	Role   models.UserRole `json:"role,omitempty"`
	Kind   TokenKind       `json:"kind"`
	jwt.RegisteredClaims
}

type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
}

func NewJWTService(secret string, accessExpiry, refreshExpiry time.Duration) *JWTService {
	return &JWTService{
		secret:        []byte(secret),
		accessExpiry:  accessExpiry,
		refreshExpiry: refreshExpiry,
		now:           time.Now,
	}
}

func (s *JWTService) GenerateTokenPair(userID uuid.UUID, email string, role models.UserRole) (*TokenPair, error) {
	now := s.now()

	access, err := s.sign(Claims{
		UserID:           userID,
		Email:            email,
		Role:             role,
		Kind:             TokenKindAccess,
		RegisteredClaims: s.registered(userID, now, s.accessExpiry),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	// The refresh token carries only the subject; a unique id keeps two
	// pairs issued in the same second distinct.
	refreshRegistered := s.registered(userID, now, s.refreshExpiry)
	refreshRegistered.ID = uuid.NewString()
	refresh, err := s.sign(Claims{
		UserID:           userID,
		Kind:             TokenKindRefresh,
		RegisteredClaims: refreshRegistered,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sign refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.accessExpiry.Seconds()),
	}, nil
}

func (s *JWTService) ValidateAccessToken(tokenString string) (*Claims, error) {
	return s.parse(tokenString, TokenKindAccess)
}

// ValidateRefreshToken checks the signature and kind only. Whether the token
// is still stored (not rotated or revoked) is TokenService's concern.
func (s *JWTService) ValidateRefreshToken(tokenString string) (uuid.UUID, error) {
	claims, err := s.parse(tokenString, TokenKindRefresh)
	if err != nil {
		return uuid.Nil, err
	}
	return claims.UserID, nil
}

func (s *JWTService) RefreshExpiry() time.Duration {
	return s.refreshExpiry
}

func (s *JWTService) registered(userID uuid.UUID, now time.Time, ttl time.Duration) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		Issuer:    tokenIssuer,
		Subject:   userID.String(),
	}
}

func (s *JWTService) sign(claims Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *JWTService) parse(tokenString string, kind TokenKind) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.Kind != kind {
		return nil, fmt.Errorf("%w: expected %s token, got %q", ErrInvalidToken, kind, claims.Kind)
	}
	if claims.UserID == uuid.Nil || claims.Subject != claims.UserID.String() {
		return nil, fmt.Errorf("%w: subject mismatch", ErrInvalidToken)
	}
	return claims, nil
}

// HashToken is how refresh and password-reset tokens are stored.
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}
