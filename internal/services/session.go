package services

import (
	"context"

	"github.com/dimitrije/listshub-api/internal/database"
	"github.com/dimitrije/listshub-api/internal/entitlement"
	"github.com/dimitrije/listshub-api/internal/models"
	"github.com/google/uuid"
)

// Session is the derived account context a client needs after sign-in.
type Session struct {
	User            *models.User        `json:"user"`
	ActiveFamilies  []models.FamilyLink `json:"active_families"`
	ManagedFamilyID *uuid.UUID          `json:"managed_family_id"`
	Entitlements    SessionEntitlements `json:"entitlements"`
}

type SessionEntitlements struct {
	CreateList   entitlement.Decision `json:"create_list"`
	InviteMember entitlement.Decision `json:"invite_member"`
	CreateFamily entitlement.Decision `json:"create_family"`
}

// Diagnostics receives every bootstrapped session. Used by tests and debug
// tooling.
type Diagnostics func(*Session)

type SessionService struct {
	db          *database.DB
	users       *UserService
	evaluator   *entitlement.Evaluator
	diagnostics Diagnostics
}

func NewSessionService(db *database.DB, users *UserService, evaluator *entitlement.Evaluator) *SessionService {
	if evaluator == nil {
		evaluator = entitlement.NewEvaluator(nil)
	}
	return &SessionService{db: db, users: users, evaluator: evaluator}
}

// WithDiagnostics returns a copy of the service that reports to fn.
func (s *SessionService) WithDiagnostics(fn Diagnostics) *SessionService {
	cp := *s
	cp.diagnostics = fn
	return &cp
}

func (s *SessionService) Bootstrap(ctx context.Context, userID uuid.UUID) (*Session, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	owned, err := countOwnedFamilies(ctx, s.db.Pool, userID)
	if err != nil {
		return nil, err
	}

	session := &Session{
		User:            user,
		ActiveFamilies:  user.ActiveFamilies(),
		ManagedFamilyID: user.ManagedFamilyID(),
		Entitlements: SessionEntitlements{
			CreateList:   s.evaluator.CanCreateList(user.Role, user.Billing),
			InviteMember: s.evaluator.CanInviteMember(user.Role, user.Billing),
			CreateFamily: s.evaluator.CanCreateFamily(user.Role, user.Billing, owned),
		},
	}

	if s.diagnostics != nil {
		s.diagnostics(session)
	}
	return session, nil
}
