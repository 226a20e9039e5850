package dto

import (
	"github.com/dimitrije/listshub-api/internal/models"
	"github.com/google/uuid"
)

type UserResponse struct {
	ID              uuid.UUID           `json:"id"`
	Email           string              `json:"email"`
	Name            string              `json:"name"`
	Locale          string              `json:"locale"`
	AvatarURL       *string             `json:"avatar_url,omitempty"`
	Provider        string              `json:"provider"`
	Role            models.UserRole     `json:"role"`
	Status          models.UserStatus   `json:"status"`
	PrimaryFamilyID *uuid.UUID          `json:"primary_family_id,omitempty"`
	Families        []models.FamilyLink `json:"families"`
	Billing         *models.Billing     `json:"billing,omitempty"`
}

func NewUserResponse(u *models.User) *UserResponse {
	if u == nil {
		return nil
	}
	families := u.Families
	if families == nil {
		families = []models.FamilyLink{}
	}
	return &UserResponse{
		ID:              u.ID,
		Email:           u.Email,
		Name:            u.Name,
		Locale:          u.Locale,
		AvatarURL:       u.AvatarURL,
		Provider:        u.Provider,
		Role:            u.Role,
		Status:          u.Status,
		PrimaryFamilyID: u.PrimaryFamilyID,
		Families:        families,
		Billing:         u.Billing,
	}
}

type UpdateUserRequest struct {
	Name      *string `json:"name,omitempty"`
	Locale    *string `json:"locale,omitempty"`
	AvatarURL *string `json:"avatar_url,omitempty"`
}

type SwitchPrimaryFamilyRequest struct {
	FamilyID uuid.UUID `json:"family_id"`
}

type PromoteMasterRequest struct {
	Email string `json:"email"`
}
