package middleware

import (
	"strings"

	"github.com/dimitrije/listshub-api/internal/models"
	"github.com/dimitrije/listshub-api/internal/services"
	"github.com/google/uuid"
	"github.com/m1z23r/drift/pkg/drift"
)

// Context keys populated by Auth.
const (
	UserIDKey    = "user_id"
	UserEmailKey = "user_email"
	UserRoleKey  = "user_role"
)

// AccessTokenValidator is satisfied by *services.JWTService.
type AccessTokenValidator interface {
	ValidateAccessToken(token string) (*services.Claims, error)
}

func Auth(tokens AccessTokenValidator) drift.HandlerFunc {
	return func(c *drift.Context) {
		raw, problem := bearerToken(c.GetHeader("Authorization"))
		if problem != "" {
			c.Unauthorized(problem)
			return
		}

		claims, err := tokens.ValidateAccessToken(raw)
		if err != nil {
			c.Unauthorized("invalid or expired token")
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(UserEmailKey, claims.Email)
		c.Set(UserRoleKey, claims.Role)
		c.Next()
	}
}

// bearerToken extracts the credential from an Authorization header. A
// non-empty problem is the message to send back.
func bearerToken(header string) (token, problem string) {
	if header == "" {
		return "", "missing authorization header"
	}
	scheme, token, ok := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "bearer") || token == "" {
		return "", "invalid authorization header format"
	}
	return token, ""
}

// RequireMaster rejects requests whose token does not carry the master role.
// It must run after Auth.
func RequireMaster() drift.HandlerFunc {
	return func(c *drift.Context) {
		if GetUserRole(c) != models.UserRoleMaster {
			c.Forbidden(services.ErrMasterOnly.Error())
			return
		}
		c.Next()
	}
}

func GetUserID(c *drift.Context) uuid.UUID {
	return value[uuid.UUID](c, UserIDKey)
}

func GetUserEmail(c *drift.Context) string {
	return value[string](c, UserEmailKey)
}

// GetUserRole returns the role the access token was issued with. It can lag
// behind the database until the next refresh.
func GetUserRole(c *drift.Context) models.UserRole {
	return value[models.UserRole](c, UserRoleKey)
}

func value[T any](c *drift.Context, key string) T {
	var zero T
	v, ok := c.Get(key)
	if !ok {
		return zero
	}
	if typed, ok := v.(T); ok {
		return typed
	}
	return zero
}
