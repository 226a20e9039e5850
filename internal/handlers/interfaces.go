package handlers

import (
	"context"
	"time"

	"github.com/dimitrije/listshub-api/internal/models"
	"github.com/dimitrije/listshub-api/internal/oauth"
	"github.com/dimitrije/listshub-api/internal/services"
	"github.com/dimitrije/listshub-api/internal/sse"
	"github.com/google/uuid"
)

// UserServiceInterface defines the methods used by handlers from UserService
type UserServiceInterface interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	Update(ctx context.Context, id uuid.UUID, input services.UpdateUserInput) (*models.User, error)
	PromoteToMaster(ctx context.Context, email string) (*models.User, error)
}

// AccountServiceInterface defines the methods used by handlers from AccountService
type AccountServiceInterface interface {
	SignUp(ctx context.Context, input services.SignUpInput) (*models.User, error)
	SignUpWithInvite(ctx context.Context, input services.SignUpInput, inviteToken uuid.UUID) (*models.User, *models.FamilyInvite, error)
	SignIn(ctx context.Context, email, password string) (*models.User, error)
	FindOrCreateFromOAuth(ctx context.Context, info *oauth.UserInfo) (*models.User, error)
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
}

// SessionServiceInterface defines the methods used by handlers from SessionService
type SessionServiceInterface interface {
	Bootstrap(ctx context.Context, userID uuid.UUID) (*services.Session, error)
}

// FamilyServiceInterface defines the methods used by handlers from FamilyService
type FamilyServiceInterface interface {
	Create(ctx context.Context, requesterID uuid.UUID, name string) (*models.Family, error)
	GetByID(ctx context.Context, familyID uuid.UUID) (*models.Family, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Family, error)
	IsActiveMember(ctx context.Context, familyID, userID uuid.UUID) (bool, error)
	AddMember(ctx context.Context, familyID, userID uuid.UUID, role models.MemberRole) error
	RemoveMember(ctx context.Context, familyID, requesterID, userID uuid.UUID) (*services.RemovalResult, error)
	SwitchPrimaryFamily(ctx context.Context, userID, familyID uuid.UUID) error
	RecountSeats(ctx context.Context, familyID *uuid.UUID) (int64, error)
}

// InviteServiceInterface defines the methods used by handlers from InviteService
type InviteServiceInterface interface {
	Create(ctx context.Context, familyID, requesterID uuid.UUID, expiresIn time.Duration) (*models.FamilyInvite, error)
	RedeemByID(ctx context.Context, familyID, inviteID, userID uuid.UUID) (*models.FamilyInvite, error)
	RedeemByToken(ctx context.Context, token, userID uuid.UUID) (*models.FamilyInvite, error)
	RedeemByCode(ctx context.Context, familyID *uuid.UUID, code string, userID uuid.UUID) (*models.FamilyInvite, error)
	Revoke(ctx context.Context, familyID, inviteID, requesterID uuid.UUID) (*models.FamilyInvite, error)
	ListPending(ctx context.Context, familyID, requesterID uuid.UUID) ([]models.FamilyInvite, error)
	GetByToken(ctx context.Context, token uuid.UUID) (*services.InvitePreview, error)
}

// ListServiceInterface defines the methods used by handlers from ListService
type ListServiceInterface interface {
	Create(ctx context.Context, familyID, requesterID uuid.UUID, name, kind string) (*models.List, error)
	AddItem(ctx context.Context, listID, requesterID uuid.UUID, name string, quantity int) (*models.ListItem, error)
	GetByID(ctx context.Context, listID uuid.UUID) (*models.List, error)
	ListByFamily(ctx context.Context, familyID uuid.UUID) ([]models.List, error)
	Items(ctx context.Context, listID uuid.UUID) ([]models.ListItem, error)
	ToggleItem(ctx context.Context, listID, itemID uuid.UUID, checked bool, expectedVersion int) (*models.ListItem, error)
	DeleteItem(ctx context.Context, listID, itemID uuid.UUID) error
	Delete(ctx context.Context, listID, requesterID uuid.UUID) error
}

// PlanServiceInterface defines the methods used by handlers from PlanService
type PlanServiceInterface interface {
	List(ctx context.Context) ([]models.Plan, error)
}

// TokenServiceInterface defines the methods used by handlers from TokenService
type TokenServiceInterface interface {
	StoreRefreshToken(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) error
	ConsumeRefreshToken(ctx context.Context, tokenHash string) (uuid.UUID, error)
	RevokeRefreshToken(ctx context.Context, tokenHash string) error
	RevokeAllUserTokens(ctx context.Context, userID uuid.UUID) (int64, error)
}

// JWTServiceInterface defines the methods used by handlers from JWTService
type JWTServiceInterface interface {
	GenerateTokenPair(userID uuid.UUID, email string, role models.UserRole) (*services.TokenPair, error)
	ValidateRefreshToken(token string) (uuid.UUID, error)
	RefreshExpiry() time.Duration
}

// HubInterface defines the methods used by handlers from the Hub
type HubInterface interface {
	Register(client *sse.Client)
	Unregister(client *sse.Client)
	SubscribeToFamily(clientID string, userID, familyID uuid.UUID) bool
	UnsubscribeFromFamily(clientID string, userID, familyID uuid.UUID) bool
	UnsubscribeUser(userID, familyID uuid.UUID)
}
