package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/dimitrije/listshub-api/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// provisionFamily makes userID the owner of a brand-new family on the free
// tier: family row, owner profile, family link, billing reset, role titular and
// primary family. It must run inside the caller's transaction so a failure
// leaves the user exactly as they were.
func provisionFamily(ctx context.Context, tx pgx.Tx, userID uuid.UUID, displayName string) (uuid.UUID, error) {
	var familyID uuid.UUID
	err := tx.QueryRow(ctx, `
		INSERT INTO families (name, owner_id)
		VALUES ($1, $2)
		RETURNING id
	`, defaultFamilyName(displayName), userID).Scan(&familyID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create family: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO family_members (family_id, user_id, role, status)
		VALUES ($1, $2, 'owner', 'active')
	`, familyID, userID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to add owner profile: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO family_links (user_id, family_id)
		VALUES ($1, $2)
	`, userID, familyID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to add family link: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO user_billing (user_id, plan_id, status, seats_total, seats_used, invites_total, invites_used)
		VALUES ($1, $2, 'active', $3, $4, $5, 0)
		ON CONFLICT (user_id) DO UPDATE SET
			plan_id = EXCLUDED.plan_id,
			status = 'active',
			seats_total = EXCLUDED.seats_total,
			seats_used = EXCLUDED.seats_used,
			invites_total = EXCLUDED.invites_total,
			invites_used = 0,
			lists_created = 0,
			items_tracked = 0,
			updated_at = NOW()
	`, userID, models.PlanFree, models.FreeSeatsTotal, models.FreeSeatsUsed, models.FreeInvitesTotal)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to reset billing: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE users SET role = 'titular', primary_family_id = $2, updated_at = NOW()
		WHERE id = $1
	`, userID, familyID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to promote user: %w", err)
	}

	return familyID, nil
}

func defaultFamilyName(displayName string) string {
	first := strings.Fields(displayName)
	if len(first) == 0 {
		return "My Family"
	}
	return first[0] + "'s Family"
}
