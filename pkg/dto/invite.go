package dto

import (
	"github.com/dimitrije/listshub-api/internal/models"
	"github.com/google/uuid"
)

// CreateInviteRequest optionally mails the invite to Email. ExpiresInHours
// of zero uses the server default.
type CreateInviteRequest struct {
	ExpiresInHours int    `json:"expires_in_hours,omitempty"`
	Email          string `json:"email,omitempty"`
}

type InviteResponse struct {
	*models.FamilyInvite
	InviteURL string `json:"invite_url"`
}

type RedeemCodeRequest struct {
	Code     string     `json:"code"`
	FamilyID *uuid.UUID `json:"family_id,omitempty"`
}

type RedeemTokenRequest struct {
	Token uuid.UUID `json:"token"`
}
