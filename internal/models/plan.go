package models

import (
	"encoding/json"
	"math"
	"time"

	"github.com/google/uuid"
)

const (
	PlanFree    = "free"
	PlanPlus    = "plus"
	PlanPremium = "premium"
	PlanMaster  = "master"
)

// Limit is a plan cap. Unlimited is represented as +Inf, which every
// comparison treats as always passing.
type Limit float64

var Unlimited = Limit(math.Inf(1))

func (l Limit) IsUnlimited() bool {
	return math.IsInf(float64(l), 1)
}

// Allows reports whether usage may still grow from current.
func (l Limit) Allows(current int) bool {
	if l.IsUnlimited() {
		return true
	}
	return float64(current) < float64(l)
}

// MarshalJSON encodes unlimited as null since JSON has no infinity.
func (l Limit) MarshalJSON() ([]byte, error) {
	if l.IsUnlimited() {
		return []byte("null"), nil
	}
	return json.Marshal(float64(l))
}

func (l *Limit) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*l = Unlimited
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*l = Limit(f)
	return nil
}

type PlanLimits struct {
	Families             Limit `json:"families" yaml:"families"`
	FamilyMembers        Limit `json:"family_members" yaml:"family_members"`
	ListsPerFamily       Limit `json:"lists_per_family" yaml:"lists_per_family"`
	ItemsPerList         Limit `json:"items_per_list" yaml:"items_per_list"`
	CollaboratorsPerList Limit `json:"collaborators_per_list" yaml:"collaborators_per_list"`
}

type Plan struct {
	ID           string     `json:"id" yaml:"id"`
	Name         string     `json:"name" yaml:"name"`
	MonthlyPrice float64    `json:"monthly_price" yaml:"monthly_price"`
	IsUnlimited  bool       `json:"is_unlimited" yaml:"is_unlimited"`
	Limits       PlanLimits `json:"limits" yaml:"limits"`
	Perks        []string   `json:"perks" yaml:"perks"`
}

type BillingStatus string

const (
	BillingStatusActive    BillingStatus = "active"
	BillingStatusPastDue   BillingStatus = "past_due"
	BillingStatusCancelled BillingStatus = "cancelled"
)

type Counter struct {
	Total int `json:"total"`
	Used  int `json:"used"`
}

func (c Counter) Remaining() int {
	if c.Used >= c.Total {
		return 0
	}
	return c.Total - c.Used
}

// Billing is the entitlement snapshot stored on titular and master users.
type Billing struct {
	UserID       uuid.UUID     `json:"-"`
	PlanID       string        `json:"plan_id"`
	Status       BillingStatus `json:"status"`
	Seats        Counter       `json:"seats"`
	Invites      Counter       `json:"invites"`
	ListsCreated int           `json:"lists_created"`
	ItemsTracked int           `json:"items_tracked"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// Free-tier snapshot given to new owners: the owner occupies one seat.
const (
	FreeSeatsTotal   = 3
	FreeSeatsUsed    = 1
	FreeInvitesTotal = 3
)

func NewFreeBilling(userID uuid.UUID) *Billing {
	return &Billing{
		UserID:  userID,
		PlanID:  PlanFree,
		Status:  BillingStatusActive,
		Seats:   Counter{Total: FreeSeatsTotal, Used: FreeSeatsUsed},
		Invites: Counter{Total: FreeInvitesTotal, Used: 0},
	}
}
