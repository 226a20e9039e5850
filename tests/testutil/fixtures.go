package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/dimitrije/listshub-api/internal/database"
	"github.com/dimitrije/listshub-api/internal/models"
	"github.com/dimitrije/listshub-api/internal/oauth"
	"github.com/google/uuid"
)

// Fixtures provides factory methods for creating test data
type Fixtures struct {
	db      *database.DB
	counter int
}

// NewFixtures creates a new fixtures factory
func NewFixtures(db *database.DB) *Fixtures {
	return &Fixtures{db: db}
}

// CreateUser creates a member account with no family and no billing.
func (f *Fixtures) CreateUser(t *testing.T, opts ...UserOption) *models.User {
	t.Helper()
	f.counter++

	user := &models.User{
		Email:    fmt.Sprintf("user%d@example.com", f.counter),
		Name:     fmt.Sprintf("Test User %d", f.counter),
		Locale:   "en",
		Provider: models.ProviderPassword,
		Role:     models.UserRoleMember,
		Status:   models.UserStatusActive,
	}

	for _, opt := range opts {
		opt(user)
	}

	ctx := context.Background()
	err := f.db.Pool.QueryRow(ctx, `
		INSERT INTO users (email, name, locale, provider, role, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`, user.Email, user.Name, user.Locale, user.Provider, user.Role, user.Status).Scan(
		&user.ID, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	return user
}

// UserOption configures a test user
type UserOption func(*models.User)

// WithEmail sets the user's email
func WithEmail(email string) UserOption {
	return func(u *models.User) {
		u.Email = email
	}
}

// WithName sets the user's name
func WithName(name string) UserOption {
	return func(u *models.User) {
		u.Name = name
	}
}

// WithRole sets the user's platform role
func WithRole(role models.UserRole) UserOption {
	return func(u *models.User) {
		u.Role = role
	}
}

// CreateOwner creates a titular user who owns one family and holds a
// free-tier billing snapshot, the same state a fresh sign-up produces.
func (f *Fixtures) CreateOwner(t *testing.T, opts ...UserOption) (*models.User, *models.Family) {
	t.Helper()
	owner := f.CreateUser(t, append([]UserOption{WithRole(models.UserRoleTitular)}, opts...)...)
	family := f.CreateFamily(t, owner)

	ctx := context.Background()
	_, err := f.db.Pool.Exec(ctx, `
		INSERT INTO user_billing (user_id, plan_id, status, seats_total, seats_used, invites_total, invites_used)
		VALUES ($1, $2, 'active', $3, $4, $5, 0)
	`, owner.ID, models.PlanFree, models.FreeSeatsTotal, models.FreeSeatsUsed, models.FreeInvitesTotal)
	if err != nil {
		t.Fatalf("failed to create billing: %v", err)
	}

	_, err = f.db.Pool.Exec(ctx, `UPDATE users SET primary_family_id = $1 WHERE id = $2`, family.ID, owner.ID)
	if err != nil {
		t.Fatalf("failed to set primary family: %v", err)
	}

	owner.PrimaryFamilyID = &family.ID
	owner.Billing = models.NewFreeBilling(owner.ID)
	return owner, family
}

// CreateFamily creates a family owned by owner, with the owner profile and
// the owner's family link.
func (f *Fixtures) CreateFamily(t *testing.T, owner *models.User) *models.Family {
	t.Helper()
	f.counter++

	family := &models.Family{
		Name:    fmt.Sprintf("Test Family %d", f.counter),
		OwnerID: owner.ID,
	}

	ctx := context.Background()
	tx, err := f.db.Pool.Begin(ctx)
	if err != nil {
		t.Fatalf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO families (name, owner_id)
		VALUES ($1, $2)
		RETURNING id, created_at, updated_at
	`, family.Name, family.OwnerID).Scan(&family.ID, &family.CreatedAt, &family.UpdatedAt)
	if err != nil {
		t.Fatalf("failed to create family: %v", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO family_members (family_id, user_id, role, status)
		VALUES ($1, $2, $3, $4)
	`, family.ID, owner.ID, models.MemberRoleOwner, models.MemberStatusActive)
	if err != nil {
		t.Fatalf("failed to add owner profile: %v", err)
	}

	_, err = tx.Exec(ctx, `INSERT INTO family_links (user_id, family_id) VALUES ($1, $2)`, owner.ID, family.ID)
	if err != nil {
		t.Fatalf("failed to add family link: %v", err)
	}

	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("failed to commit transaction: %v", err)
	}

	return family
}

// CreateInvite inserts a pending invite directly, bypassing seat accounting.
func (f *Fixtures) CreateInvite(t *testing.T, family *models.Family, creator *models.User, opts ...InviteOption) *models.FamilyInvite {
	t.Helper()
	f.counter++

	invite := &models.FamilyInvite{
		FamilyID:  family.ID,
		CreatedBy: creator.ID,
		Token:     uuid.New(),
		Code:      fmt.Sprintf("TST%03d", f.counter%1000),
		Status:    models.InviteStatusPending,
		MaxUses:   1,
		ExpiresAt: time.Now().Add(7 * 24 * time.Hour),
	}

	for _, opt := range opts {
		opt(invite)
	}

	ctx := context.Background()
	err := f.db.Pool.QueryRow(ctx, `
		INSERT INTO family_invites (family_id, created_by, token, code, status, max_uses, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`, invite.FamilyID, invite.CreatedBy, invite.Token, invite.Code, invite.Status,
		invite.MaxUses, invite.ExpiresAt).Scan(&invite.ID, &invite.CreatedAt, &invite.UpdatedAt)
	if err != nil {
		t.Fatalf("failed to create invite: %v", err)
	}

	return invite
}

// InviteOption configures a test invite
type InviteOption func(*models.FamilyInvite)

// WithCode sets the invite's short code
func WithCode(code string) InviteOption {
	return func(i *models.FamilyInvite) {
		i.Code = code
	}
}

// WithExpiresAt sets the invite's expiry
func WithExpiresAt(at time.Time) InviteOption {
	return func(i *models.FamilyInvite) {
		i.ExpiresAt = at
	}
}

// WithMaxUses sets how many redemptions the invite allows
func WithMaxUses(n int) InviteOption {
	return func(i *models.FamilyInvite) {
		i.MaxUses = n
	}
}

// CreateRefreshToken creates a test refresh token
func (f *Fixtures) CreateRefreshToken(t *testing.T, userID uuid.UUID, tokenHash string, expiresAt time.Time) {
	t.Helper()
	ctx := context.Background()

	_, err := f.db.Pool.Exec(ctx, `
		INSERT INTO refresh_tokens (user_id, token_hash, expires_at)
		VALUES ($1, $2, $3)
	`, userID, tokenHash, expiresAt)
	if err != nil {
		t.Fatalf("failed to create refresh token: %v", err)
	}
}

// OAuthUserInfo creates test OAuth user info
func OAuthUserInfo(email, name, provider, id string) *oauth.UserInfo {
	return &oauth.UserInfo{
		Email:     email,
		Name:      name,
		AvatarURL: "https://example.com/avatar.png",
		ID:        id,
		Provider:  provider,
	}
}
