package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dimitrije/listshub-api/internal/database"
	"github.com/dimitrije/listshub-api/internal/metrics"
	"github.com/dimitrije/listshub-api/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	log "github.com/sirupsen/logrus"
)

const (
	// InviteCodeAlphabet leaves out 0, O, 1, I and L.
	InviteCodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
	InviteCodeLength   = 6

	maxCodeAttempts     = 10
	DefaultInviteExpiry = 7 * 24 * time.Hour
)

type InviteService struct {
	db      *database.DB
	events  EventPublisher
	metrics *metrics.Metrics
	expiry  time.Duration

	now     func() time.Time
	codeGen func() (string, error)
}

func NewInviteService(db *database.DB, events EventPublisher, m *metrics.Metrics, expiry time.Duration) *InviteService {
	if expiry <= 0 {
		expiry = DefaultInviteExpiry
	}
	return &InviteService{
		db:      db,
		events:  publisherOrNop(events),
		metrics: m,
		expiry:  expiry,
		now:     time.Now,
		codeGen: GenerateInviteCode,
	}
}

// InvitePreview is what the public invite page shows before sign-in.
type InvitePreview struct {
	Invite      *models.FamilyInvite `json:"invite"`
	Status      models.InviteStatus  `json:"status"`
	FamilyName  string               `json:"family_name"`
	InviterName string               `json:"inviter_name"`
}

// GenerateInviteCode draws InviteCodeLength symbols uniformly from
// InviteCodeAlphabet.
func GenerateInviteCode() (string, error) {
	n := len(InviteCodeAlphabet)
	limit := 256 - 256%n
	code := make([]byte, 0, InviteCodeLength)
	buf := make([]byte, InviteCodeLength*2)
	for len(code) < InviteCodeLength {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			code = append(code, InviteCodeAlphabet[int(b)%n])
			if len(code) == InviteCodeLength {
				break
			}
		}
	}
	return string(code), nil
}

// Create mints a pending invite sized to the owner's free seats at this moment.
// expiresIn <= 0 uses the service default.
func (s *InviteService) Create(ctx context.Context, familyID, requesterID uuid.UUID, expiresIn time.Duration) (*models.FamilyInvite, error) {
	if expiresIn <= 0 {
		expiresIn = s.expiry
	}

	var invite *models.FamilyInvite
	err := s.db.WithTx(ctx, func(tx pgx.Tx) error {
		ownerID, err := loadFamilyOwner(ctx, tx, familyID)
		if err != nil {
			return err
		}
		if ownerID != requesterID {
			return ErrOnlyOwnerCanInvite
		}

		billing, err := scanBilling(tx.QueryRow(ctx,
			`SELECT `+billingColumns+` FROM user_billing WHERE user_id = $1 FOR UPDATE`, requesterID))
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNoSeatsAvailable
		}
		if err != nil {
			return fmt.Errorf("failed to load billing: %w", err)
		}

		maxUses := max(0, billing.Seats.Total-billing.Seats.Used)
		if maxUses == 0 {
			return ErrNoSeatsAvailable
		}

		code, err := s.uniqueCode(ctx, tx, familyID)
		if err != nil {
			return err
		}

		invite, err = scanInvite(tx.QueryRow(ctx, `
			INSERT INTO family_invites (family_id, created_by, token, code, status, max_uses, expires_at)
			VALUES ($1, $2, $3, $4, 'pending', $5, $6)
			RETURNING `+inviteColumns,
			familyID, requesterID, uuid.New(), code, maxUses, s.now().Add(expiresIn),
		))
		if isUniqueViolation(err) {
			return ErrCodeGeneration
		}
		if err != nil {
			return fmt.Errorf("failed to create invite: %w", err)
		}

		_, err = tx.Exec(ctx, `
			UPDATE user_billing SET invites_used = invites_used + 1, updated_at = NOW()
			WHERE user_id = $1
		`, requesterID)
		if err != nil {
			return fmt.Errorf("failed to count invite: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncInviteCreated()
	s.events.PublishFamilyEvent(familyID, EventInviteCreated, invite)
	log.WithFields(log.Fields{
		"family_id": familyID,
		"invite_id": invite.ID,
		"max_uses":  invite.MaxUses,
	}).Info("invite created")
	return invite, nil
}

func (s *InviteService) uniqueCode(ctx context.Context, tx pgx.Tx, familyID uuid.UUID) (string, error) {
	for range maxCodeAttempts {
		code, err := s.codeGen()
		if err != nil {
			return "", err
		}
		var taken bool
		err = tx.QueryRow(ctx, `
			SELECT EXISTS(
				SELECT 1 FROM family_invites
				WHERE family_id = $1 AND code = $2 AND status = 'pending'
			)
		`, familyID, code).Scan(&taken)
		if err != nil {
			return "", fmt.Errorf("failed to check invite code: %w", err)
		}
		if !taken {
			return code, nil
		}
	}
	return "", ErrCodeGeneration
}

func (s *InviteService) RedeemByID(ctx context.Context, familyID, inviteID, userID uuid.UUID) (*models.FamilyInvite, error) {
	return s.redeemWith(ctx, userID, func(tx pgx.Tx) (*models.FamilyInvite, error) {
		return findInvite(ctx, tx, `SELECT `+inviteColumns+` FROM family_invites WHERE id = $1 AND family_id = $2`, inviteID, familyID)
	})
}

func (s *InviteService) RedeemByToken(ctx context.Context, token, userID uuid.UUID) (*models.FamilyInvite, error) {
	return s.redeemWith(ctx, userID, func(tx pgx.Tx) (*models.FamilyInvite, error) {
		return findInvite(ctx, tx, `SELECT `+inviteColumns+` FROM family_invites WHERE token = $1`, token)
	})
}

// RedeemByCode looks the code up within familyID, or across every pending
// invite when familyID is nil.
func (s *InviteService) RedeemByCode(ctx context.Context, familyID *uuid.UUID, code string, userID uuid.UUID) (*models.FamilyInvite, error) {
	code = NormalizeInviteCode(code)
	if len(code) != InviteCodeLength {
		return nil, fmt.Errorf("%w: invite code must be %d characters", ErrInvalidInput, InviteCodeLength)
	}
	return s.redeemWith(ctx, userID, func(tx pgx.Tx) (*models.FamilyInvite, error) {
		return findInviteByCode(ctx, tx, familyID, code)
	})
}

// redeemInTx redeems inside a transaction owned by the caller. Used by the
// invite signup so the new account and the redemption commit together.
func (s *InviteService) redeemInTx(ctx context.Context, tx pgx.Tx, token, userID uuid.UUID) (*models.FamilyInvite, error) {
	inv, err := findInvite(ctx, tx, `SELECT `+inviteColumns+` FROM family_invites WHERE token = $1`, token)
	if err != nil {
		return nil, err
	}
	return s.redeem(ctx, tx, inv, userID)
}

func (s *InviteService) redeemWith(ctx context.Context, userID uuid.UUID, find func(tx pgx.Tx) (*models.FamilyInvite, error)) (*models.FamilyInvite, error) {
	var invite *models.FamilyInvite
	err := s.db.WithTx(ctx, func(tx pgx.Tx) error {
		inv, err := find(tx)
		if err != nil {
			return err
		}
		invite, err = s.redeem(ctx, tx, inv, userID)
		return err
	})
	if err != nil {
		s.metrics.IncRedemption(redemptionResult(err))
		return nil, err
	}
	s.RedemptionCommitted(invite, userID)
	return invite, nil
}

// RedemptionCommitted records a redemption that has been committed.
func (s *InviteService) RedemptionCommitted(invite *models.FamilyInvite, userID uuid.UUID) {
	s.metrics.IncRedemption("ok")
	s.events.PublishFamilyEvent(invite.FamilyID, EventInviteRedeemed, invite)
	s.events.PublishFamilyEvent(invite.FamilyID, EventMemberJoined, map[string]any{
		"user_id": userID,
		"role":    models.MemberRoleViewer,
	})
	log.WithFields(log.Fields{
		"family_id":  invite.FamilyID,
		"invite_id":  invite.ID,
		"user_id":    userID,
		"used_count": invite.UsedCount,
		"status":     invite.Status,
	}).Info("invite redeemed")
}

// redeem validates the invite as read and applies the redemption. The invite
// update is conditional on the used_count that was read, and the owner's seat
// increment on a free seat, so a concurrent redeemer makes one of the two
// fail instead of overshooting either counter.
func (s *InviteService) redeem(ctx context.Context, tx pgx.Tx, inv *models.FamilyInvite, userID uuid.UUID) (*models.FamilyInvite, error) {
	switch inv.Status {
	case models.InviteStatusPending:
	case models.InviteStatusRevoked:
		return nil, ErrInviteRevoked
	case models.InviteStatusAccepted:
		return nil, ErrInviteMaxUses
	default:
		return nil, ErrInviteNotPending
	}
	if inv.IsExpired(s.now()) {
		return nil, ErrInviteExpired
	}
	if inv.UsedCount >= inv.MaxUses {
		return nil, ErrInviteMaxUses
	}

	member, err := isActiveMember(ctx, tx, inv.FamilyID, userID)
	if err != nil {
		return nil, err
	}
	if member {
		return nil, ErrAlreadyMember
	}

	nextCount := inv.UsedCount + 1
	nextStatus := models.InviteStatusPending
	if nextCount == inv.MaxUses {
		nextStatus = models.InviteStatusAccepted
	}

	updated, err := scanInvite(tx.QueryRow(ctx, `
		UPDATE family_invites
		SET used_count = $1, accepted_by = array_append(accepted_by, $2), status = $3, updated_at = NOW()
		WHERE id = $4 AND used_count = $5 AND status = 'pending'
		RETURNING `+inviteColumns,
		nextCount, userID, nextStatus, inv.ID, inv.UsedCount,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrInviteConflict
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update invite: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		UPDATE user_billing SET seats_used = seats_used + 1, updated_at = NOW()
		WHERE user_id = (SELECT owner_id FROM families WHERE id = $1)
		  AND seats_used < seats_total
	`, inv.FamilyID)
	if err != nil {
		return nil, fmt.Errorf("failed to take seat: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrSeatLimitReached
	}

	if err := addMember(ctx, tx, inv.FamilyID, userID, models.MemberRoleViewer); err != nil {
		return nil, err
	}
	return updated, nil
}

// Revoke stops further redemptions of a pending invite. Members who already
// joined through it stay.
func (s *InviteService) Revoke(ctx context.Context, familyID, inviteID, requesterID uuid.UUID) (*models.FamilyInvite, error) {
	ownerID, err := loadFamilyOwner(ctx, s.db.Pool, familyID)
	if err != nil {
		return nil, err
	}
	if ownerID != requesterID {
		return nil, ErrOnlyOwnerCanRevoke
	}

	invite, err := scanInvite(s.db.Pool.QueryRow(ctx, `
		UPDATE family_invites SET status = 'revoked', updated_at = NOW()
		WHERE id = $1 AND family_id = $2 AND status = 'pending'
		RETURNING `+inviteColumns,
		inviteID, familyID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		var status models.InviteStatus
		err := s.db.Pool.QueryRow(ctx, `
			SELECT status FROM family_invites WHERE id = $1 AND family_id = $2
		`, inviteID, familyID).Scan(&status)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInviteNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load invite: %w", err)
		}
		return nil, ErrInviteNotPending
	}
	if err != nil {
		return nil, fmt.Errorf("failed to revoke invite: %w", err)
	}

	s.metrics.IncInviteRevoked()
	s.events.PublishFamilyEvent(familyID, EventInviteRevoked, invite)
	log.WithFields(log.Fields{"family_id": familyID, "invite_id": inviteID}).Info("invite revoked")
	return invite, nil
}

// ListPending returns pending invites that have not yet expired, newest first.
func (s *InviteService) ListPending(ctx context.Context, familyID, requesterID uuid.UUID) ([]models.FamilyInvite, error) {
	ownerID, err := loadFamilyOwner(ctx, s.db.Pool, familyID)
	if err != nil {
		return nil, err
	}
	if ownerID != requesterID {
		return nil, ErrNotFamilyOwner
	}

	rows, err := s.db.Pool.Query(ctx, `
		SELECT `+inviteColumns+`
		FROM family_invites
		WHERE family_id = $1 AND status = 'pending' AND expires_at > $2
		ORDER BY created_at DESC
	`, familyID, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to list invites: %w", err)
	}
	defer rows.Close()

	invites := []models.FamilyInvite{}
	for rows.Next() {
		inv, err := scanInvite(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invite: %w", err)
		}
		invites = append(invites, *inv)
	}
	return invites, rows.Err()
}

func (s *InviteService) GetByToken(ctx context.Context, token uuid.UUID) (*InvitePreview, error) {
	inv, err := findInvite(ctx, s.db.Pool, `SELECT `+inviteColumns+` FROM family_invites WHERE token = $1`, token)
	if err != nil {
		return nil, err
	}

	preview := &InvitePreview{Invite: inv, Status: inv.EffectiveStatus(s.now())}
	err = s.db.Pool.QueryRow(ctx, `
		SELECT f.name, u.name
		FROM families f
		INNER JOIN users u ON u.id = $2
		WHERE f.id = $1
	`, inv.FamilyID, inv.CreatedBy).Scan(&preview.FamilyName, &preview.InviterName)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to load invite details: %w", err)
	}
	return preview, nil
}

func NormalizeInviteCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func findInvite(ctx context.Context, q database.Querier, query string, args ...any) (*models.FamilyInvite, error) {
	inv, err := scanInvite(q.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrInviteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load invite: %w", err)
	}
	return inv, nil
}

func findInviteByCode(ctx context.Context, q database.Querier, familyID *uuid.UUID, code string) (*models.FamilyInvite, error) {
	if familyID != nil {
		return findInvite(ctx, q, `
			SELECT `+inviteColumns+` FROM family_invites
			WHERE family_id = $1 AND code = $2 AND status = 'pending'
		`, *familyID, code)
	}

	rows, err := q.Query(ctx, `
		SELECT `+inviteColumns+` FROM family_invites
		WHERE code = $1 AND status = 'pending'
		LIMIT 2
	`, code)
	if err != nil {
		return nil, fmt.Errorf("failed to look up invite code: %w", err)
	}
	defer rows.Close()

	var found []*models.FamilyInvite
	for rows.Next() {
		inv, err := scanInvite(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invite: %w", err)
		}
		found = append(found, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to look up invite code: %w", err)
	}

	switch len(found) {
	case 0:
		return nil, ErrInviteNotFound
	case 1:
		return found[0], nil
	default:
		return nil, ErrInviteCodeAmbiguous
	}
}

func redemptionResult(err error) string {
	switch {
	case errors.Is(err, ErrInviteNotFound):
		return "not_found"
	case errors.Is(err, ErrInviteExpired):
		return "expired"
	case errors.Is(err, ErrInviteRevoked):
		return "revoked"
	case errors.Is(err, ErrInviteNotPending):
		return "used"
	case errors.Is(err, ErrInviteMaxUses):
		return "max_uses"
	case errors.Is(err, ErrAlreadyMember):
		return "already_member"
	case errors.Is(err, ErrInviteConflict):
		return "conflict"
	case errors.Is(err, ErrSeatLimitReached):
		return "seat_limit"
	default:
		return "error"
	}
}
