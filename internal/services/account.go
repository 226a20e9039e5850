package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/dimitrije/listshub-api/internal/database"
	"github.com/dimitrije/listshub-api/internal/metrics"
	"github.com/dimitrije/listshub-api/internal/models"
	"github.com/dimitrije/listshub-api/internal/oauth"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

const (
	MinPasswordLength   = 8
	PasswordResetExpiry = time.Hour
)

const (
	SignupPathTitular = "titular"
	SignupPathInvite  = "invite"
	SignupPathOAuth   = "oauth"
)

type AccountService struct {
	db       *database.DB
	users    *UserService
	invites  *InviteService
	mailer   Mailer
	metrics  *metrics.Metrics
	resetURL string
}

// NewAccountService wires sign-up and sign-in. resetURL is the page that
// accepts a password reset token as its "token" query parameter.
func NewAccountService(db *database.DB, users *UserService, invites *InviteService, mailer Mailer, m *metrics.Metrics, resetURL string) *AccountService {
	return &AccountService{db: db, users: users, invites: invites, mailer: mailer, metrics: m, resetURL: resetURL}
}

type SignUpInput struct {
	Email    string
	Password string
	Name     string
	Locale   string
}

func (in *SignUpInput) normalize() error {
	in.Email = normalizeEmail(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	if in.Locale == "" {
		in.Locale = "en"
	}
	if _, err := mail.ParseAddress(in.Email); err != nil || in.Email == "" {
		return fmt.Errorf("%w: a valid email is required", ErrInvalidInput)
	}
	if len(in.Password) < MinPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, MinPasswordLength)
	}
	if in.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	return nil
}

// SignUp creates an owner account together with its family and free-tier
// billing, all in one transaction.
func (s *AccountService) SignUp(ctx context.Context, input SignUpInput) (*models.User, error) {
	if err := input.normalize(); err != nil {
		return nil, err
	}
	hash, err := hashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	var user *models.User
	err = s.db.WithTx(ctx, func(tx pgx.Tx) error {
		user, err = insertUser(ctx, tx, input, hash, models.UserRoleTitular)
		if err != nil {
			return err
		}
		familyID, err := provisionFamily(ctx, tx, user.ID, user.Name)
		if err != nil {
			return err
		}
		user.PrimaryFamilyID = &familyID
		user.Families = []models.FamilyLink{{FamilyID: familyID, JoinedAt: user.CreatedAt}}
		user.Billing = models.NewFreeBilling(user.ID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncSignup(SignupPathTitular)
	log.WithFields(log.Fields{"user_id": user.ID, "family_id": *user.PrimaryFamilyID}).Info("owner signed up")
	return user, nil
}

// SignUpWithInvite creates a member account and redeems the invite in the
// same transaction. If the redemption fails no account is left behind.
func (s *AccountService) SignUpWithInvite(ctx context.Context, input SignUpInput, inviteToken uuid.UUID) (*models.User, *models.FamilyInvite, error) {
	if err := input.normalize(); err != nil {
		return nil, nil, err
	}
	hash, err := hashPassword(input.Password)
	if err != nil {
		return nil, nil, err
	}

	var user *models.User
	var invite *models.FamilyInvite
	err = s.db.WithTx(ctx, func(tx pgx.Tx) error {
		user, err = insertUser(ctx, tx, input, hash, models.UserRoleMember)
		if err != nil {
			return err
		}
		invite, err = s.invites.redeemInTx(ctx, tx, inviteToken, user.ID)
		return err
	})
	if err != nil {
		if !errors.Is(err, ErrEmailTaken) {
			s.metrics.IncRedemption(redemptionResult(err))
		}
		return nil, nil, err
	}

	user.PrimaryFamilyID = &invite.FamilyID
	user.Families = []models.FamilyLink{{FamilyID: invite.FamilyID, JoinedAt: user.CreatedAt}}

	s.invites.RedemptionCommitted(invite, user.ID)
	s.metrics.IncSignup(SignupPathInvite)
	log.WithFields(log.Fields{"user_id": user.ID, "family_id": invite.FamilyID}).Info("member signed up with invite")
	return user, invite, nil
}

func (s *AccountService) SignIn(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if user.PasswordHash == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// FindOrCreateFromOAuth signs in a provider identity. An unknown identity
// with a known email is linked to that account; otherwise a new owner account
// is provisioned.
func (s *AccountService) FindOrCreateFromOAuth(ctx context.Context, info *oauth.UserInfo) (*models.User, error) {
	email := normalizeEmail(info.Email)

	var userID uuid.UUID
	err := s.db.Pool.QueryRow(ctx, `
		SELECT id FROM users WHERE provider = $1 AND provider_id = $2
	`, info.Provider, info.ID).Scan(&userID)
	if err == nil {
		_, err = s.db.Pool.Exec(ctx, `
			UPDATE users SET
				name = $1,
				avatar_url = COALESCE($2, avatar_url),
				updated_at = NOW()
			WHERE id = $3
		`, info.Name, nullableString(info.AvatarURL), userID)
		if err != nil {
			return nil, fmt.Errorf("failed to refresh profile: %w", err)
		}
		return s.users.GetByID(ctx, userID)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to look up identity: %w", err)
	}

	tag, err := s.db.Pool.Exec(ctx, `
		UPDATE users SET provider = $1, provider_id = $2, updated_at = NOW()
		WHERE email = $3 AND provider_id IS NULL
	`, info.Provider, info.ID, email)
	if err != nil {
		return nil, fmt.Errorf("failed to link identity: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return s.users.GetByEmail(ctx, email)
	}

	var user *models.User
	err = s.db.WithTx(ctx, func(tx pgx.Tx) error {
		user, err = scanUser(tx.QueryRow(ctx, `
			INSERT INTO users (email, name, avatar_url, provider, provider_id, role)
			VALUES ($1, $2, $3, $4, $5, 'titular')
			RETURNING `+userColumns,
			email, info.Name, nullableString(info.AvatarURL), info.Provider, info.ID,
		))
		if isUniqueViolation(err) {
			return ErrEmailTaken
		}
		if err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
		familyID, err := provisionFamily(ctx, tx, user.ID, user.Name)
		if err != nil {
			return err
		}
		user.PrimaryFamilyID = &familyID
		user.Families = []models.FamilyLink{{FamilyID: familyID, JoinedAt: user.CreatedAt}}
		user.Billing = models.NewFreeBilling(user.ID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncSignup(SignupPathOAuth)
	log.WithFields(log.Fields{"user_id": user.ID, "provider": info.Provider}).Info("owner signed up via oauth")
	return user, nil
}

// RequestPasswordReset mails a one-time reset link. Unknown emails succeed
// silently so the endpoint cannot be used to discover which emails have accounts.
func (s *AccountService) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	token := uuid.NewString()
	_, err = s.db.Pool.Exec(ctx, `
		INSERT INTO password_resets (user_id, token_hash, expires_at)
		VALUES ($1, $2, $3)
	`, user.ID, HashToken(token), time.Now().Add(PasswordResetExpiry))
	if err != nil {
		return fmt.Errorf("failed to store reset token: %w", err)
	}

	if s.mailer == nil {
		return nil
	}
	link := fmt.Sprintf("%s?token=%s", s.resetURL, token)
	if err := s.mailer.SendPasswordReset(ctx, user.Email, user.Name, link); err != nil {
		log.WithError(err).WithField("user_id", user.ID).Warn("failed to send password reset email")
	}
	return nil
}

// ResetPassword consumes a reset token and signs the user out everywhere.
func (s *AccountService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if len(newPassword) < MinPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, MinPasswordLength)
	}
	hash, err := hashPassword(newPassword)
	if err != nil {
		return err
	}

	return s.db.WithTx(ctx, func(tx pgx.Tx) error {
		var resetID, userID uuid.UUID
		err := tx.QueryRow(ctx, `
			SELECT id, user_id FROM password_resets
			WHERE token_hash = $1 AND used_at IS NULL AND expires_at > NOW()
			FOR UPDATE
		`, HashToken(token)).Scan(&resetID, &userID)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrInvalidResetToken
		}
		if err != nil {
			return fmt.Errorf("failed to load reset token: %w", err)
		}

		if _, err := tx.Exec(ctx, `UPDATE users SET password_hash = $1, updated_at = NOW() WHERE id = $2`, hash, userID); err != nil {
			return fmt.Errorf("failed to update password: %w", err)
		}
		if _, err := tx.Exec(ctx, `UPDATE password_resets SET used_at = NOW() WHERE id = $1`, resetID); err != nil {
			return fmt.Errorf("failed to consume reset token: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, userID); err != nil {
			return fmt.Errorf("failed to revoke sessions: %w", err)
		}
		return nil
	})
}

func insertUser(ctx context.Context, tx pgx.Tx, input SignUpInput, passwordHash string, role models.UserRole) (*models.User, error) {
	user, err := scanUser(tx.QueryRow(ctx, `
		INSERT INTO users (email, name, locale, provider, password_hash, role)
		VALUES ($1, $2, $3, 'password', $4, $5)
		RETURNING `+userColumns,
		input.Email, input.Name, input.Locale, passwordHash, role,
	))
	if isUniqueViolation(err) {
		return nil, ErrEmailTaken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}
