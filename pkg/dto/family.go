package dto

import (
	"github.com/dimitrije/listshub-api/internal/models"
	"github.com/google/uuid"
)

type CreateFamilyRequest struct {
	Name string `json:"name"`
}

type AddMemberRequest struct {
	UserID uuid.UUID         `json:"user_id"`
	Role   models.MemberRole `json:"role,omitempty"`
}

type FamilyResponse struct {
	ID      uuid.UUID              `json:"id"`
	Name    string                 `json:"name"`
	OwnerID uuid.UUID              `json:"owner_id"`
	Members []models.MemberProfile `json:"members"`
}

// NewFamilyResponse flattens the member map, keeping only active profiles.
func NewFamilyResponse(f *models.Family) *FamilyResponse {
	resp := &FamilyResponse{ID: f.ID, Name: f.Name, OwnerID: f.OwnerID, Members: []models.MemberProfile{}}
	for _, m := range f.Members {
		if m.Status == models.MemberStatusActive {
			resp.Members = append(resp.Members, *m)
		}
	}
	return resp
}
