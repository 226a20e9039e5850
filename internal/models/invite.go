package models

import (
	"time"

	"github.com/google/uuid"
)

type InviteStatus string

// pending is the only non-terminal status.
const (
	InviteStatusPending  InviteStatus = "pending"
	InviteStatusAccepted InviteStatus = "accepted"
	InviteStatusExpired  InviteStatus = "expired"
	InviteStatusRevoked  InviteStatus = "revoked"
)

type FamilyInvite struct {
	ID         uuid.UUID    `json:"id"`
	FamilyID   uuid.UUID    `json:"family_id"`
	CreatedBy  uuid.UUID    `json:"created_by"`
	Token      uuid.UUID    `json:"token"`
	Code       string       `json:"code"`
	Status     InviteStatus `json:"status"`
	MaxUses    int          `json:"max_uses"`
	UsedCount  int          `json:"used_count"`
	AcceptedBy []uuid.UUID  `json:"accepted_by"`
	ExpiresAt  time.Time    `json:"expires_at"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

func (i *FamilyInvite) IsExpired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}

// EffectiveStatus reports a pending invite past its expiry as expired. Expiry
// is evaluated lazily; the stored status is left untouched.
func (i *FamilyInvite) EffectiveStatus(now time.Time) InviteStatus {
	if i.Status == InviteStatusPending && i.IsExpired(now) {
		return InviteStatusExpired
	}
	return i.Status
}

func (i *FamilyInvite) RemainingUses() int {
	if i.UsedCount >= i.MaxUses {
		return 0
	}
	return i.MaxUses - i.UsedCount
}

func (i *FamilyInvite) HasAccepted(userID uuid.UUID) bool {
	for _, id := range i.AcceptedBy {
		if id == userID {
			return true
		}
	}
	return false
}
