package testutil

import (
	"context"
	"time"

	"github.com/dimitrije/listshub-api/internal/models"
	"github.com/dimitrije/listshub-api/internal/oauth"
	"github.com/dimitrije/listshub-api/internal/services"
	"github.com/dimitrije/listshub-api/internal/sse"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

func userOrNil(args mock.Arguments) *models.User {
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*models.User)
}

func inviteOrNil(args mock.Arguments, i int) *models.FamilyInvite {
	if args.Get(i) == nil {
		return nil
	}
	return args.Get(i).(*models.FamilyInvite)
}

// MockUserService mocks the UserService
type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, id)
	return userOrNil(args), args.Error(1)
}

func (m *MockUserService) Update(ctx context.Context, id uuid.UUID, input services.UpdateUserInput) (*models.User, error) {
	args := m.Called(ctx, id, input)
	return userOrNil(args), args.Error(1)
}

func (m *MockUserService) PromoteToMaster(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	return userOrNil(args), args.Error(1)
}

// MockAccountService mocks the AccountService
type MockAccountService struct {
	mock.Mock
}

func (m *MockAccountService) SignUp(ctx context.Context, input services.SignUpInput) (*models.User, error) {
	args := m.Called(ctx, input)
	return userOrNil(args), args.Error(1)
}

func (m *MockAccountService) SignUpWithInvite(ctx context.Context, input services.SignUpInput, inviteToken uuid.UUID) (*models.User, *models.FamilyInvite, error) {
	args := m.Called(ctx, input, inviteToken)
	return userOrNil(args), inviteOrNil(args, 1), args.Error(2)
}

func (m *MockAccountService) SignIn(ctx context.Context, email, password string) (*models.User, error) {
	args := m.Called(ctx, email, password)
	return userOrNil(args), args.Error(1)
}

func (m *MockAccountService) FindOrCreateFromOAuth(ctx context.Context, info *oauth.UserInfo) (*models.User, error) {
	args := m.Called(ctx, info)
	return userOrNil(args), args.Error(1)
}

func (m *MockAccountService) RequestPasswordReset(ctx context.Context, email string) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}

func (m *MockAccountService) ResetPassword(ctx context.Context, token, newPassword string) error {
	args := m.Called(ctx, token, newPassword)
	return args.Error(0)
}

// MockSessionService mocks the SessionService
type MockSessionService struct {
	mock.Mock
}

func (m *MockSessionService) Bootstrap(ctx context.Context, userID uuid.UUID) (*services.Session, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.Session), args.Error(1)
}

// MockFamilyService mocks the FamilyService
type MockFamilyService struct {
	mock.Mock
}

func (m *MockFamilyService) Create(ctx context.Context, requesterID uuid.UUID, name string) (*models.Family, error) {
	args := m.Called(ctx, requesterID, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Family), args.Error(1)
}

func (m *MockFamilyService) GetByID(ctx context.Context, familyID uuid.UUID) (*models.Family, error) {
	args := m.Called(ctx, familyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Family), args.Error(1)
}

func (m *MockFamilyService) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Family, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Family), args.Error(1)
}

func (m *MockFamilyService) IsActiveMember(ctx context.Context, familyID, userID uuid.UUID) (bool, error) {
	args := m.Called(ctx, familyID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockFamilyService) AddMember(ctx context.Context, familyID, userID uuid.UUID, role models.MemberRole) error {
	args := m.Called(ctx, familyID, userID, role)
	return args.Error(0)
}

func (m *MockFamilyService) RemoveMember(ctx context.Context, familyID, requesterID, userID uuid.UUID) (*services.RemovalResult, error) {
	args := m.Called(ctx, familyID, requesterID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.RemovalResult), args.Error(1)
}

func (m *MockFamilyService) SwitchPrimaryFamily(ctx context.Context, userID, familyID uuid.UUID) error {
	args := m.Called(ctx, userID, familyID)
	return args.Error(0)
}

func (m *MockFamilyService) RecountSeats(ctx context.Context, familyID *uuid.UUID) (int64, error) {
	args := m.Called(ctx, familyID)
	return args.Get(0).(int64), args.Error(1)
}

// MockInviteService mocks the InviteService
type MockInviteService struct {
	mock.Mock
}

func (m *MockInviteService) Create(ctx context.Context, familyID, requesterID uuid.UUID, expiresIn time.Duration) (*models.FamilyInvite, error) {
	args := m.Called(ctx, familyID, requesterID, expiresIn)
	return inviteOrNil(args, 0), args.Error(1)
}

func (m *MockInviteService) RedeemByID(ctx context.Context, familyID, inviteID, userID uuid.UUID) (*models.FamilyInvite, error) {
	args := m.Called(ctx, familyID, inviteID, userID)
	return inviteOrNil(args, 0), args.Error(1)
}

func (m *MockInviteService) RedeemByToken(ctx context.Context, token, userID uuid.UUID) (*models.FamilyInvite, error) {
	args := m.Called(ctx, token, userID)
	return inviteOrNil(args, 0), args.Error(1)
}

func (m *MockInviteService) RedeemByCode(ctx context.Context, familyID *uuid.UUID, code string, userID uuid.UUID) (*models.FamilyInvite, error) {
	args := m.Called(ctx, familyID, code, userID)
	return inviteOrNil(args, 0), args.Error(1)
}

func (m *MockInviteService) Revoke(ctx context.Context, familyID, inviteID, requesterID uuid.UUID) (*models.FamilyInvite, error) {
	args := m.Called(ctx, familyID, inviteID, requesterID)
	return inviteOrNil(args, 0), args.Error(1)
}

func (m *MockInviteService) ListPending(ctx context.Context, familyID, requesterID uuid.UUID) ([]models.FamilyInvite, error) {
	args := m.Called(ctx, familyID, requesterID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.FamilyInvite), args.Error(1)
}

func (m *MockInviteService) GetByToken(ctx context.Context, token uuid.UUID) (*services.InvitePreview, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.InvitePreview), args.Error(1)
}

// MockListService mocks the ListService
type MockListService struct {
	mock.Mock
}

func (m *MockListService) Create(ctx context.Context, familyID, requesterID uuid.UUID, name, kind string) (*models.List, error) {
	args := m.Called(ctx, familyID, requesterID, name, kind)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.List), args.Error(1)
}

func (m *MockListService) AddItem(ctx context.Context, listID, requesterID uuid.UUID, name string, quantity int) (*models.ListItem, error) {
	args := m.Called(ctx, listID, requesterID, name, quantity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ListItem), args.Error(1)
}

func (m *MockListService) GetByID(ctx context.Context, listID uuid.UUID) (*models.List, error) {
	args := m.Called(ctx, listID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.List), args.Error(1)
}

func (m *MockListService) ListByFamily(ctx context.Context, familyID uuid.UUID) ([]models.List, error) {
	args := m.Called(ctx, familyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.List), args.Error(1)
}

func (m *MockListService) Items(ctx context.Context, listID uuid.UUID) ([]models.ListItem, error) {
	args := m.Called(ctx, listID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ListItem), args.Error(1)
}

func (m *MockListService) ToggleItem(ctx context.Context, listID, itemID uuid.UUID, checked bool, expectedVersion int) (*models.ListItem, error) {
	args := m.Called(ctx, listID, itemID, checked, expectedVersion)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ListItem), args.Error(1)
}

func (m *MockListService) DeleteItem(ctx context.Context, listID, itemID uuid.UUID) error {
	args := m.Called(ctx, listID, itemID)
	return args.Error(0)
}

func (m *MockListService) Delete(ctx context.Context, listID, requesterID uuid.UUID) error {
	args := m.Called(ctx, listID, requesterID)
	return args.Error(0)
}

// MockPlanService mocks the PlanService
type MockPlanService struct {
	mock.Mock
}

func (m *MockPlanService) List(ctx context.Context) ([]models.Plan, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Plan), args.Error(1)
}

// MockTokenService mocks the TokenService
type MockTokenService struct {
	mock.Mock
}

func (m *MockTokenService) StoreRefreshToken(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) error {
	args := m.Called(ctx, userID, tokenHash, expiresAt)
	return args.Error(0)
}

func (m *MockTokenService) ConsumeRefreshToken(ctx context.Context, tokenHash string) (uuid.UUID, error) {
	args := m.Called(ctx, tokenHash)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *MockTokenService) RevokeRefreshToken(ctx context.Context, tokenHash string) error {
	args := m.Called(ctx, tokenHash)
	return args.Error(0)
}

func (m *MockTokenService) RevokeAllUserTokens(ctx context.Context, userID uuid.UUID) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

// MockHub mocks the SSE hub
type MockHub struct {
	mock.Mock
}

func (m *MockHub) Register(client *sse.Client) {
	m.Called(client)
}

func (m *MockHub) Unregister(client *sse.Client) {
	m.Called(client)
}

func (m *MockHub) SubscribeToFamily(clientID string, userID, familyID uuid.UUID) bool {
	args := m.Called(clientID, userID, familyID)
	return args.Bool(0)
}

func (m *MockHub) UnsubscribeFromFamily(clientID string, userID, familyID uuid.UUID) bool {
	args := m.Called(clientID, userID, familyID)
	return args.Bool(0)
}

func (m *MockHub) UnsubscribeUser(userID, familyID uuid.UUID) {
	m.Called(userID, familyID)
}

// MockMailer mocks outgoing email
type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) SendFamilyInvite(ctx context.Context, to, familyName, inviterName, inviteURL, code string) error {
	args := m.Called(ctx, to, familyName, inviterName, inviteURL, code)
	return args.Error(0)
}

func (m *MockMailer) SendPasswordReset(ctx context.Context, to, name, resetURL string) error {
	args := m.Called(ctx, to, name, resetURL)
	return args.Error(0)
}

// MockOAuthProvider mocks an OAuth provider
type MockOAuthProvider struct {
	mock.Mock
}

func (m *MockOAuthProvider) GetConsentURL(state string) string {
	args := m.Called(state)
	return args.String(0)
}

func (m *MockOAuthProvider) ExchangeCode(ctx context.Context, code string) (*oauth.UserInfo, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*oauth.UserInfo), args.Error(1)
}

func (m *MockOAuthProvider) Name() string {
	args := m.Called()
	return args.String(0)
}

// MockJWTService mocks the JWTService
type MockJWTService struct {
	mock.Mock
}

func (m *MockJWTService) GenerateTokenPair(userID uuid.UUID, email string, role models.UserRole) (*services.TokenPair, error) {
	args := m.Called(userID, email, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.TokenPair), args.Error(1)
}

func (m *MockJWTService) ValidateRefreshToken(token string) (uuid.UUID, error) {
	args := m.Called(token)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *MockJWTService) RefreshExpiry() time.Duration {
	args := m.Called()
	return args.Get(0).(time.Duration)
}
