package services

import (
	"errors"

	"github.com/dimitrije/listshub-api/internal/entitlement"
)

var (
	ErrInvalidInput = errors.New("invalid input")

	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("an account with this email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidResetToken  = errors.New("reset token is invalid or has expired")
	ErrMasterOnly         = errors.New("master only")

	ErrFamilyNotFound    = errors.New("family not found")
	ErrNotFamilyOwner    = errors.New("only the owner may manage this family")
	ErrNotFamilyMember   = errors.New("user is not an active member of this family")
	ErrCannotRemoveOwner = errors.New("the family owner cannot be removed")
	ErrNoActiveLink      = errors.New("user has no active link to this family")

	ErrInviteNotFound      = errors.New("invite not found")
	ErrOnlyOwnerCanInvite  = errors.New("only the owner may create invites")
	ErrOnlyOwnerCanRevoke  = errors.New("only the owner may revoke invites")
	ErrNoSeatsAvailable    = errors.New("no seats available")
	ErrCodeGeneration      = errors.New("could not generate unique code")
	ErrInviteNotPending    = errors.New("invite already used")
	ErrInviteRevoked       = errors.New("invite has been revoked")
	ErrInviteExpired       = errors.New("invite has expired")
	ErrInviteMaxUses       = errors.New("max uses reached")
	ErrAlreadyMember       = errors.New("already a member of this family")
	ErrInviteConflict      = errors.New("invite was modified concurrently")
	ErrInviteCodeAmbiguous = errors.New("invite code matches more than one family")
	ErrSeatLimitReached    = errors.New("family has no free seats")

	ErrListNotFound    = errors.New("list not found")
	ErrItemNotFound    = errors.New("item not found")
	ErrVersionConflict = errors.New("item was modified by someone else")
	ErrBillingConflict = errors.New("billing changed concurrently, please retry")
)

// EntitlementError reports an action refused by the plan limits.
type EntitlementError struct {
	Action   entitlement.Action
	Decision entitlement.Decision
}

func (e *EntitlementError) Error() string {
	return e.Decision.Reason
}

func IsEntitlementError(err error) (*EntitlementError, bool) {
	var ee *EntitlementError
	if errors.As(err, &ee) {
		return ee, true
	}
	return nil, false
}
