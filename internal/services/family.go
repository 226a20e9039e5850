package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dimitrije/listshub-api/internal/database"
	"github.com/dimitrije/listshub-api/internal/entitlement"
	"github.com/dimitrije/listshub-api/internal/metrics"
	"github.com/dimitrije/listshub-api/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	log "github.com/sirupsen/logrus"
)

const (
	RemovalReassigned  = "reassigned"
	RemovalProvisioned = "provisioned"
	RemovalDetached    = "detached"
)

type FamilyService struct {
	db        *database.DB
	evaluator *entitlement.Evaluator
	events    EventPublisher
	metrics   *metrics.Metrics
}

func NewFamilyService(db *database.DB, evaluator *entitlement.Evaluator, events EventPublisher, m *metrics.Metrics) *FamilyService {
	if evaluator == nil {
		evaluator = entitlement.NewEvaluator(nil)
	}
	return &FamilyService{db: db, evaluator: evaluator, events: publisherOrNop(events), metrics: m}
}

// RemovalResult describes where a removed member ended up.
type RemovalResult struct {
	UserID          uuid.UUID `json:"user_id"`
	Outcome         string    `json:"outcome"`
	PrimaryFamilyID uuid.UUID `json:"primary_family_id"`
}

// Create adds another family owned by the requester, subject to the plan's
// family limit.
func (s *FamilyService) Create(ctx context.Context, requesterID uuid.UUID, name string) (*models.Family, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}

	var family models.Family
	err := s.db.WithTx(ctx, func(tx pgx.Tx) error {
		var role models.UserRole
		err := tx.QueryRow(ctx, `SELECT role FROM users WHERE id = $1 FOR UPDATE`, requesterID).Scan(&role)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load user: %w", err)
		}

		billing, err := loadBilling(ctx, tx, requesterID)
		if err != nil {
			return err
		}

		owned, err := countOwnedFamilies(ctx, tx, requesterID)
		if err != nil {
			return err
		}

		if d := s.evaluator.CanCreateFamily(role, billing, owned); !d.Allowed {
			s.metrics.IncEntitlementDenial(string(entitlement.ActionCreateFamily))
			return &EntitlementError{Action: entitlement.ActionCreateFamily, Decision: d}
		}

		err = tx.QueryRow(ctx, `
			INSERT INTO families (name, owner_id)
			VALUES ($1, $2)
			RETURNING id, name, owner_id, created_at, updated_at
		`, name, requesterID).Scan(&family.ID, &family.Name, &family.OwnerID, &family.CreatedAt, &family.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to create family: %w", err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO family_members (family_id, user_id, role, status)
			VALUES ($1, $2, 'owner', 'active')
		`, family.ID, requesterID)
		if err != nil {
			return fmt.Errorf("failed to add owner profile: %w", err)
		}

		_, err = tx.Exec(ctx, `INSERT INTO family_links (user_id, family_id) VALUES ($1, $2)`, requesterID, family.ID)
		if err != nil {
			return fmt.Errorf("failed to add family link: %w", err)
		}

		_, err = tx.Exec(ctx, `
			UPDATE users SET primary_family_id = $2, updated_at = NOW()
			WHERE id = $1 AND primary_family_id IS NULL
		`, requesterID, family.ID)
		if err != nil {
			return fmt.Errorf("failed to set primary family: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	family.Members = map[uuid.UUID]*models.MemberProfile{
		requesterID: {UserID: requesterID, Role: models.MemberRoleOwner, Status: models.MemberStatusActive, JoinedAt: family.CreatedAt},
	}
	log.WithFields(log.Fields{"family_id": family.ID, "owner_id": requesterID}).Info("family created")
	return &family, nil
}

// GetByID returns the family with every member profile, removed ones included.
func (s *FamilyService) GetByID(ctx context.Context, familyID uuid.UUID) (*models.Family, error) {
	return loadFamily(ctx, s.db.Pool, familyID)
}

func (s *FamilyService) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Family, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT f.id, f.name, f.owner_id, f.created_at, f.updated_at
		FROM families f
		INNER JOIN family_members m ON m.family_id = f.id
		WHERE m.user_id = $1 AND m.status = 'active'
		ORDER BY m.joined_at
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list families: %w", err)
	}
	defer rows.Close()

	families := []models.Family{}
	for rows.Next() {
		var f models.Family
		if err := rows.Scan(&f.ID, &f.Name, &f.OwnerID, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan family: %w", err)
		}
		families = append(families, f)
	}
	return families, rows.Err()
}

func (s *FamilyService) GetMembers(ctx context.Context, familyID uuid.UUID) ([]models.MemberProfile, error) {
	profiles, err := loadMembers(ctx, s.db.Pool, familyID)
	if err != nil {
		return nil, err
	}
	out := make([]models.MemberProfile, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, *p)
	}
	return out, nil
}

func (s *FamilyService) IsOwner(ctx context.Context, familyID, userID uuid.UUID) (bool, error) {
	var isOwner bool
	err := s.db.Pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM families WHERE id = $1 AND owner_id = $2)
	`, familyID, userID).Scan(&isOwner)
	return isOwner, err
}

func (s *FamilyService) IsActiveMember(ctx context.Context, familyID, userID uuid.UUID) (bool, error) {
	return isActiveMember(ctx, s.db.Pool, familyID, userID)
}

// AddMember upserts an active member profile. A new member is gated by the
// owner's plan and takes a seat exactly like an invite redemption; an already
// active member only has their role updated.
func (s *FamilyService) AddMember(ctx context.Context, familyID, userID uuid.UUID, role models.MemberRole) error {
	if role == "" {
		role = models.MemberRoleViewer
	}
	if !role.Valid() || role == models.MemberRoleOwner {
		return fmt.Errorf("%w: invalid member role %q", ErrInvalidInput, role)
	}

	err := s.db.WithTx(ctx, func(tx pgx.Tx) error {
		ownerID, err := loadFamilyOwner(ctx, tx, familyID)
		if err != nil {
			return err
		}

		active, err := isActiveMember(ctx, tx, familyID, userID)
		if err != nil {
			return err
		}
		if !active {
			if err := s.takeSeat(ctx, tx, ownerID); err != nil {
				return err
			}
		}
		return addMember(ctx, tx, familyID, userID, role)
	})
	if err != nil {
		return err
	}

	s.events.PublishFamilyEvent(familyID, EventMemberJoined, map[string]any{"user_id": userID, "role": role})
	return nil
}

// RemoveMember flips the member to removed and makes sure the removed user
// still has a usable family afterwards: either the next remaining active
// family becomes primary, or a new free-tier family is provisioned for them.
// A master left without families is only detached.
func (s *FamilyService) RemoveMember(ctx context.Context, familyID, requesterID, userID uuid.UUID) (*RemovalResult, error) {
	result := &RemovalResult{UserID: userID}

	err := s.db.WithTx(ctx, func(tx pgx.Tx) error {
		ownerID, err := loadFamilyOwner(ctx, tx, familyID)
		if err != nil {
			return err
		}

		if requesterID != ownerID {
			var role models.UserRole
			err := tx.QueryRow(ctx, `SELECT role FROM users WHERE id = $1`, requesterID).Scan(&role)
			if err != nil && !errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("failed to load requester: %w", err)
			}
			if role != models.UserRoleMaster {
				return ErrNotFamilyOwner
			}
		}

		if userID == ownerID {
			return ErrCannotRemoveOwner
		}

		tag, err := tx.Exec(ctx, `
			UPDATE family_members SET status = 'removed', removed_at = NOW()
			WHERE family_id = $1 AND user_id = $2 AND status = 'active'
		`, familyID, userID)
		if err != nil {
			return fmt.Errorf("failed to remove member: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFamilyMember
		}

		_, err = tx.Exec(ctx, `
			UPDATE family_links SET removed_at = NOW()
			WHERE user_id = $1 AND family_id = $2 AND removed_at IS NULL
		`, userID, familyID)
		if err != nil {
			return fmt.Errorf("failed to close family link: %w", err)
		}

		_, err = tx.Exec(ctx, `
			UPDATE user_billing SET seats_used = GREATEST(seats_used - 1, 1), updated_at = NOW()
			WHERE user_id = $1
		`, ownerID)
		if err != nil {
			return fmt.Errorf("failed to release seat: %w", err)
		}

		user, err := scanUser(tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, userID))
		if err != nil {
			return fmt.Errorf("failed to load removed user: %w", err)
		}
		links, err := loadFamilyLinks(ctx, tx, userID)
		if err != nil {
			return err
		}

		var remaining []models.FamilyLink
		for _, l := range links {
			if l.IsActive() && l.FamilyID != familyID {
				remaining = append(remaining, l)
			}
		}

		if len(remaining) == 0 && user.Role == models.UserRoleMaster {
			// Masters need no family of their own; their role and billing stay.
			_, err = tx.Exec(ctx, `
				UPDATE users SET primary_family_id = NULL, updated_at = NOW()
				WHERE id = $1
			`, userID)
			if err != nil {
				return fmt.Errorf("failed to clear primary family: %w", err)
			}
			result.Outcome = RemovalDetached
			return nil
		}

		if len(remaining) == 0 {
			newFamilyID, err := provisionFamily(ctx, tx, userID, user.Name)
			if err != nil {
				return err
			}
			result.Outcome = RemovalProvisioned
			result.PrimaryFamilyID = newFamilyID
			return nil
		}

		result.Outcome = RemovalReassigned
		if user.PrimaryFamilyID != nil && *user.PrimaryFamilyID != familyID {
			result.PrimaryFamilyID = *user.PrimaryFamilyID
			return nil
		}

		result.PrimaryFamilyID = remaining[0].FamilyID
		_, err = tx.Exec(ctx, `
			UPDATE users SET primary_family_id = $2, updated_at = NOW()
			WHERE id = $1
		`, userID, result.PrimaryFamilyID)
		if err != nil {
			return fmt.Errorf("failed to switch primary family: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncMemberRemoved(result.Outcome)
	s.events.PublishFamilyEvent(familyID, EventMemberRemoved, result)
	log.WithFields(log.Fields{
		"family_id":  familyID,
		"user_id":    userID,
		"outcome":    result.Outcome,
		"primary_id": result.PrimaryFamilyID,
	}).Info("member removed")
	return result, nil
}

// SwitchPrimaryFamily moves the user's working family. Members may pick any
// family they are actively linked to; owners only families they own.
func (s *FamilyService) SwitchPrimaryFamily(ctx context.Context, userID, familyID uuid.UUID) error {
	role, err := loadRole(ctx, s.db.Pool, userID)
	if err != nil {
		return err
	}

	if role == models.UserRoleTitular {
		isOwner, err := s.IsOwner(ctx, familyID, userID)
		if err != nil {
			return fmt.Errorf("failed to check ownership: %w", err)
		}
		if !isOwner {
			return ErrNotFamilyOwner
		}
	}

	tag, err := s.db.Pool.Exec(ctx, `
		UPDATE users SET primary_family_id = $2, updated_at = NOW()
		WHERE id = $1 AND EXISTS (
			SELECT 1 FROM family_links
			WHERE user_id = $1 AND family_id = $2 AND removed_at IS NULL
		)
	`, userID, familyID)
	if err != nil {
		return fmt.Errorf("failed to switch primary family: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNoActiveLink
	}
	return nil
}

// RecountSeats recomputes seats_used from active member profiles for the
// owner of familyID, or for every owner when familyID is nil. It returns the
// number of billing rows that changed.
func (s *FamilyService) RecountSeats(ctx context.Context, familyID *uuid.UUID) (int64, error) {
	tag, err := s.db.Pool.Exec(ctx, `
		UPDATE user_billing b
		SET seats_used = GREATEST(1, sub.active), updated_at = NOW()
		FROM (
			SELECT f.owner_id, COUNT(m.user_id)::int AS active
			FROM families f
			LEFT JOIN family_members m ON m.family_id = f.id AND m.status = 'active'
			WHERE $1::uuid IS NULL OR f.owner_id = (SELECT owner_id FROM families WHERE id = $1)
			GROUP BY f.owner_id
		) sub
		WHERE b.user_id = sub.owner_id AND b.seats_used <> GREATEST(1, sub.active)
	`, familyID)
	if err != nil {
		return 0, fmt.Errorf("failed to recount seats: %w", err)
	}
	return tag.RowsAffected(), nil
}

// takeSeat checks the owner's plan and claims one seat on their billing. The
// owner row is locked so concurrent adds to the same owner's families queue.
// Masters bypass the plan and the seat cap but still have seats counted when
// they carry billing.
func (s *FamilyService) takeSeat(ctx context.Context, tx pgx.Tx, ownerID uuid.UUID) error {
	var ownerRole models.UserRole
	err := tx.QueryRow(ctx, `SELECT role FROM users WHERE id = $1 FOR UPDATE`, ownerID).Scan(&ownerRole)
	if err != nil {
		return fmt.Errorf("failed to load family owner: %w", err)
	}
	billing, err := loadBilling(ctx, tx, ownerID)
	if err != nil {
		return err
	}

	if d := s.evaluator.CanInviteMember(ownerRole, billing); !d.Allowed {
		s.metrics.IncEntitlementDenial(string(entitlement.ActionInviteMember))
		return &EntitlementError{Action: entitlement.ActionInviteMember, Decision: d}
	}
	master := ownerRole == models.UserRoleMaster

	tag, err := tx.Exec(ctx, `
		UPDATE user_billing SET seats_used = seats_used + 1, updated_at = NOW()
		WHERE user_id = $1 AND (seats_used < seats_total OR $2)
	`, ownerID, master)
	if err != nil {
		return fmt.Errorf("failed to take seat: %w", err)
	}
	if tag.RowsAffected() == 0 && !master {
		return ErrSeatLimitReached
	}
	return nil
}

func loadFamilyOwner(ctx context.Context, q database.Querier, familyID uuid.UUID) (uuid.UUID, error) {
	var ownerID uuid.UUID
	err := q.QueryRow(ctx, `SELECT owner_id FROM families WHERE id = $1`, familyID).Scan(&ownerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, ErrFamilyNotFound
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to load family: %w", err)
	}
	return ownerID, nil
}

func loadFamily(ctx context.Context, q database.Querier, familyID uuid.UUID) (*models.Family, error) {
	var f models.Family
	err := q.QueryRow(ctx, `SELECT id, name, owner_id, created_at, updated_at FROM families WHERE id = $1`, familyID).Scan(&f.ID, &f.Name, &f.OwnerID, &f.CreatedAt, &f.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrFamilyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load family: %w", err)
	}

	members, err := loadMembers(ctx, q, familyID)
	if err != nil {
		return nil, err
	}
	f.Members = make(map[uuid.UUID]*models.MemberProfile, len(members))
	for _, m := range members {
		f.Members[m.UserID] = m
	}
	return &f, nil
}

func loadMembers(ctx context.Context, q database.Querier, familyID uuid.UUID) ([]*models.MemberProfile, error) {
	rows, err := q.Query(ctx, `
		SELECT m.user_id, m.role, m.status, m.joined_at, m.removed_at, m.allowed_lists,
		       u.email, u.name, u.avatar_url
		FROM family_members m
		INNER JOIN users u ON u.id = m.user_id
		WHERE m.family_id = $1
		ORDER BY m.joined_at
	`, familyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load members: %w", err)
	}
	defer rows.Close()

	members := []*models.MemberProfile{}
	for rows.Next() {
		var m models.MemberProfile
		var u models.User
		if err := rows.Scan(
			&m.UserID, &m.Role, &m.Status, &m.JoinedAt, &m.RemovedAt, &m.AllowedLists,
			&u.Email, &u.Name, &u.AvatarURL,
		); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		u.ID = m.UserID
		m.User = &u
		members = append(members, &m)
	}
	return members, rows.Err()
}

func isActiveMember(ctx context.Context, q database.Querier, familyID, userID uuid.UUID) (bool, error) {
	var active bool
	err := q.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM family_members
			WHERE family_id = $1 AND user_id = $2 AND status = 'active'
		)
	`, familyID, userID).Scan(&active)
	if err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return active, nil
}

func countOwnedFamilies(ctx context.Context, q database.Querier, userID uuid.UUID) (int, error) {
	var n int
	err := q.QueryRow(ctx, `SELECT COUNT(*)::int FROM families WHERE owner_id = $1`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count families: %w", err)
	}
	return n, nil
}

// addMember is the idempotent upsert shared by AddMember and invite
// redemption. An existing owner profile keeps its role.
func addMember(ctx context.Context, q database.Querier, familyID, userID uuid.UUID, role models.MemberRole) error {
	_, err := q.Exec(ctx, `
		INSERT INTO family_members (family_id, user_id, role, status, joined_at)
		VALUES ($1, $2, $3, 'active', NOW())
		ON CONFLICT (family_id, user_id) DO UPDATE SET
			role = CASE WHEN family_members.role = 'owner' THEN 'owner' ELSE EXCLUDED.role END,
			joined_at = CASE WHEN family_members.status = 'active' THEN family_members.joined_at ELSE NOW() END,
			status = 'active',
			removed_at = NULL
	`, familyID, userID, role)
	if err != nil {
		return fmt.Errorf("failed to upsert member: %w", err)
	}

	_, err = q.Exec(ctx, `
		INSERT INTO family_links (user_id, family_id)
		SELECT $1::uuid, $2::uuid
		WHERE NOT EXISTS (
			SELECT 1 FROM family_links
			WHERE user_id = $1 AND family_id = $2 AND removed_at IS NULL
		)
	`, userID, familyID)
	if err != nil {
		return fmt.Errorf("failed to add family link: %w", err)
	}

	_, err = q.Exec(ctx, `
		UPDATE users SET primary_family_id = $2, updated_at = NOW()
		WHERE id = $1 AND primary_family_id IS NULL
	`, userID, familyID)
	if err != nil {
		return fmt.Errorf("failed to set primary family: %w", err)
	}
	return nil
}

