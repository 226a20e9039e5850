package models

import (
	"time"

	"github.com/google/uuid"
)

type UserRole string

// Platform-wide user roles. Master is a superuser flag, not tied to a family.
const (
	UserRoleMaster  UserRole = "master"
	UserRoleTitular UserRole = "titular"
	UserRoleMember  UserRole = "member"
)

type UserStatus string

const (
	UserStatusActive      UserStatus = "active"
	UserStatusGracePeriod UserStatus = "grace_period"
	UserStatusSuspended   UserStatus = "suspended"
	UserStatusCancelled   UserStatus = "cancelled"
)

const (
	ProviderPassword = "password"
	ProviderGoogle   = "google"
)

type User struct {
	ID              uuid.UUID    `json:"id"`
	Email           string       `json:"email"`
	Name            string       `json:"name"`
	Locale          string       `json:"locale"`
	AvatarURL       *string      `json:"avatar_url,omitempty"`
	Provider        string       `json:"provider"`
	ProviderID      *string      `json:"-"`
	PasswordHash    *string      `json:"-"`
	Role            UserRole     `json:"role"`
	Status          UserStatus   `json:"status"`
	PrimaryFamilyID *uuid.UUID   `json:"primary_family_id,omitempty"`
	Families        []FamilyLink `json:"families"`
	Billing         *Billing     `json:"billing,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// FamilyLink is one entry of a user's membership history. Entries are never
// deleted; leaving a family sets RemovedAt.
type FamilyLink struct {
	FamilyID  uuid.UUID  `json:"family_id"`
	JoinedAt  time.Time  `json:"joined_at"`
	RemovedAt *time.Time `json:"removed_at,omitempty"`
}

func (l FamilyLink) IsActive() bool {
	return l.RemovedAt == nil
}

func (u *User) IsMaster() bool {
	return u.Role == UserRoleMaster
}

// IsTitular is true for family owners and for masters.
func (u *User) IsTitular() bool {
	return u.Role == UserRoleTitular || u.Role == UserRoleMaster
}

func (u *User) IsFamilyMemberOnly() bool {
	return u.Role == UserRoleMember
}

// ManagedFamilyID returns the primary family, falling back to the first
// family link that has not been removed.
func (u *User) ManagedFamilyID() *uuid.UUID {
	if u.PrimaryFamilyID != nil {
		id := *u.PrimaryFamilyID
		return &id
	}
	for _, l := range u.Families {
		if l.IsActive() {
			id := l.FamilyID
			return &id
		}
	}
	return nil
}

// ActiveFamilies returns the links without RemovedAt. If the primary family is
// not represented in the history a synthetic link is prepended for it, so a
// drifted families list never hides the family the user is working in.
func (u *User) ActiveFamilies() []FamilyLink {
	active := make([]FamilyLink, 0, len(u.Families)+1)
	primarySeen := u.PrimaryFamilyID == nil
	for _, l := range u.Families {
		if !l.IsActive() {
			continue
		}
		if u.PrimaryFamilyID != nil && l.FamilyID == *u.PrimaryFamilyID {
			primarySeen = true
		}
		active = append(active, l)
	}
	if !primarySeen {
		active = append([]FamilyLink{{FamilyID: *u.PrimaryFamilyID, JoinedAt: u.CreatedAt}}, active...)
	}
	return active
}

// CanManageFamilyHint is the optimistic check: it compares only the primary
// family id and needs no family record, so it can run offline. It can be wrong
// for members whose primary family belongs to someone else; use
// CanManageFamilyFromRecord before any write.
func (u *User) CanManageFamilyHint(familyID uuid.UUID) bool {
	if u.IsMaster() {
		return true
	}
	return u.IsTitular() && u.PrimaryFamilyID != nil && *u.PrimaryFamilyID == familyID
}

// CanManageFamilyFromRecord is the authoritative check against the family
// record: the user must be the owner with an active owner profile, or a master.
func (u *User) CanManageFamilyFromRecord(f *Family) bool {
	if f == nil {
		return false
	}
	if u.IsMaster() {
		return true
	}
	if f.OwnerID != u.ID {
		return false
	}
	m, ok := f.Members[u.ID]
	return ok && m.Role == MemberRoleOwner && m.Status == MemberStatusActive
}
