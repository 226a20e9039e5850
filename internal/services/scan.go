package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dimitrije/listshub-api/internal/database"
	"github.com/dimitrije/listshub-api/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const userColumns = `id, email, name, locale, avatar_url, provider, provider_id, password_hash, role, status, primary_family_id, created_at, updated_at`

const billingColumns = `user_id, plan_id, status, seats_total, seats_used, invites_total, invites_used, lists_created, items_tracked, updated_at`

const inviteColumns = `id, family_id, created_by, token, code, status, max_uses, used_count, accepted_by, expires_at, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID, &u.Email, &u.Name, &u.Locale, &u.AvatarURL, &u.Provider, &u.ProviderID,
		&u.PasswordHash, &u.Role, &u.Status, &u.PrimaryFamilyID, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.Families = []models.FamilyLink{}
	return &u, nil
}

func scanBilling(row pgx.Row) (*models.Billing, error) {
	var b models.Billing
	err := row.Scan(
		&b.UserID, &b.PlanID, &b.Status, &b.Seats.Total, &b.Seats.Used,
		&b.Invites.Total, &b.Invites.Used, &b.ListsCreated, &b.ItemsTracked, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func scanInvite(row pgx.Row) (*models.FamilyInvite, error) {
	var inv models.FamilyInvite
	err := row.Scan(
		&inv.ID, &inv.FamilyID, &inv.CreatedBy, &inv.Token, &inv.Code, &inv.Status,
		&inv.MaxUses, &inv.UsedCount, &inv.AcceptedBy, &inv.ExpiresAt, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if inv.AcceptedBy == nil {
		inv.AcceptedBy = []uuid.UUID{}
	}
	return &inv, nil
}

// loadBilling returns nil without error for users that carry no billing.
func loadBilling(ctx context.Context, q database.Querier, userID uuid.UUID) (*models.Billing, error) {
	b, err := scanBilling(q.QueryRow(ctx, `SELECT `+billingColumns+` FROM user_billing WHERE user_id = $1`, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load billing: %w", err)
	}
	return b, nil
}

func loadFamilyLinks(ctx context.Context, q database.Querier, userID uuid.UUID) ([]models.FamilyLink, error) {
	rows, err := q.Query(ctx, `
		SELECT family_id, joined_at, removed_at
		FROM family_links
		WHERE user_id = $1
		ORDER BY joined_at, id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load family links: %w", err)
	}
	defer rows.Close()

	links := []models.FamilyLink{}
	for rows.Next() {
		var l models.FamilyLink
		if err := rows.Scan(&l.FamilyID, &l.JoinedAt, &l.RemovedAt); err != nil {
			return nil, fmt.Errorf("failed to scan family link: %w", err)
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

// hydrateUser fills in the family history and billing snapshot.
func hydrateUser(ctx context.Context, q database.Querier, u *models.User) error {
	links, err := loadFamilyLinks(ctx, q, u.ID)
	if err != nil {
		return err
	}
	u.Families = links

	billing, err := loadBilling(ctx, q, u.ID)
	if err != nil {
		return err
	}
	u.Billing = billing
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
