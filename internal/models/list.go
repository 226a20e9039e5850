package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	ListKindShopping = "shopping"
	ListKindTasks    = "tasks"
)

type List struct {
	ID        uuid.UUID `json:"id"`
	FamilyID  uuid.UUID `json:"family_id"`
	Name      string    `json:"name"`
	Kind      string    `json:"kind"`
	CreatedBy uuid.UUID `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ListItem struct {
	ID        uuid.UUID `json:"id"`
	ListID    uuid.UUID `json:"list_id"`
	Name      string    `json:"name"`
	Quantity  int       `json:"quantity"`
	Checked   bool      `json:"checked"`
	Version   int       `json:"version"`
	CreatedBy uuid.UUID `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
