package models

import (
	"time"

	"github.com/google/uuid"
)

type MemberRole string

const (
	MemberRoleOwner        MemberRole = "owner"
	MemberRoleCollaborator MemberRole = "collaborator"
	MemberRoleViewer       MemberRole = "viewer"
)

func (r MemberRole) Valid() bool {
	switch r {
	case MemberRoleOwner, MemberRoleCollaborator, MemberRoleViewer:
		return true
	}
	return false
}

type MemberStatus string

const (
	MemberStatusActive  MemberStatus = "active"
	MemberStatusRemoved MemberStatus = "removed"
	MemberStatusPending MemberStatus = "pending"
)

type Family struct {
	ID        uuid.UUID                    `json:"id"`
	Name      string                       `json:"name"`
	OwnerID   uuid.UUID                    `json:"owner_id"`
	Members   map[uuid.UUID]*MemberProfile `json:"members,omitempty"`
	CreatedAt time.Time                    `json:"created_at"`
	UpdatedAt time.Time                    `json:"updated_at"`
}

type MemberProfile struct {
	UserID       uuid.UUID    `json:"user_id"`
	Role         MemberRole   `json:"role"`
	Status       MemberStatus `json:"status"`
	JoinedAt     time.Time    `json:"joined_at"`
	RemovedAt    *time.Time   `json:"removed_at,omitempty"`
	AllowedLists []uuid.UUID  `json:"allowed_lists,omitempty"`
	User         *User        `json:"user,omitempty"`
}

func (f *Family) IsActiveMember(userID uuid.UUID) bool {
	m, ok := f.Members[userID]
	return ok && m.Status == MemberStatusActive
}

func (f *Family) ActiveMemberCount() int {
	n := 0
	for _, m := range f.Members {
		if m.Status == MemberStatusActive {
			n++
		}
	}
	return n
}
