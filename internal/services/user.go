package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dimitrije/listshub-api/internal/database"
	"github.com/dimitrije/listshub-api/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	log "github.com/sirupsen/logrus"
)

// MasterSeatsTotal is the seat counter given to master billing snapshots.
// Entitlement checks never consult it, but invite sizing does.
const MasterSeatsTotal = 100

type UserService struct {
	db *database.DB
}

func NewUserService(db *database.DB) *UserService {
	return &UserService{db: db}
}

type UpdateUserInput struct {
	Name      *string
	Locale    *string
	AvatarURL *string
}

func (s *UserService) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := scanUser(s.db.Pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if err := hydrateUser(ctx, s.db.Pool, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := scanUser(s.db.Pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, normalizeEmail(email)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if err := hydrateUser(ctx, s.db.Pool, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) Update(ctx context.Context, id uuid.UUID, input UpdateUserInput) (*models.User, error) {
	if input.Name != nil && strings.TrimSpace(*input.Name) == "" {
		return nil, fmt.Errorf("%w: name cannot be empty", ErrInvalidInput)
	}

	user, err := scanUser(s.db.Pool.QueryRow(ctx, `
		UPDATE users SET
			name = COALESCE($1, name),
			locale = COALESCE($2, locale),
			avatar_url = COALESCE($3, avatar_url),
			updated_at = NOW()
		WHERE id = $4
		RETURNING `+userColumns,
		input.Name, input.Locale, input.AvatarURL, id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	if err := hydrateUser(ctx, s.db.Pool, user); err != nil {
		return nil, err
	}
	return user, nil
}

// PromoteToMaster grants the master role and an unlimited billing snapshot.
// Running it twice leaves the same state.
func (s *UserService) PromoteToMaster(ctx context.Context, email string) (*models.User, error) {
	var userID uuid.UUID
	err := s.db.WithTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			UPDATE users SET role = 'master', updated_at = NOW()
			WHERE email = $1
			RETURNING id
		`, normalizeEmail(email)).Scan(&userID)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to promote user: %w", err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO user_billing (user_id, plan_id, status, seats_total, seats_used, invites_total, invites_used)
			VALUES ($1, $2, 'active', $3, 1, $3, 0)
			ON CONFLICT (user_id) DO UPDATE SET
				plan_id = EXCLUDED.plan_id,
				status = 'active',
				seats_total = GREATEST(user_billing.seats_total, EXCLUDED.seats_total),
				invites_total = GREATEST(user_billing.invites_total, EXCLUDED.invites_total),
				updated_at = NOW()
		`, userID, models.PlanMaster, MasterSeatsTotal)
		if err != nil {
			return fmt.Errorf("failed to set master billing: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithField("user_id", userID).Info("user promoted to master")
	return s.GetByID(ctx, userID)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
