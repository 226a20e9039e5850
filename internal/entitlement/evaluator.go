// Package entitlement decides whether a billing snapshot allows an action.
//
// Every decision is advisory. The layer that performs the write must re-check
// the counter it depends on in the same statement, because nothing here
// guards against concurrent writers.
package entitlement

import (
	"github.com/dimitrije/listshub-api/internal/models"
)

type Action string

const (
	ActionCreateList   Action = "create_list"
	ActionInviteMember Action = "invite_member"
	ActionCreateFamily Action = "create_family"
	ActionAddItem      Action = "add_item"
)

const (
	ReasonNotOwner        = "only family owners may perform this action"
	ReasonNoBilling       = "no billing snapshot for this account"
	ReasonListLimit       = "list limit reached for your plan"
	ReasonMemberLimit     = "family member limit reached for your plan"
	ReasonFamilyLimit     = "family limit reached for your plan"
	ReasonItemLimit       = "item limit reached for this list"
	ReasonBillingInactive = "subscription is not active"
)

type Decision struct {
	Allowed bool         `json:"allowed"`
	Reason  string       `json:"reason,omitempty"`
	Limit   models.Limit `json:"limit"`
	Current int          `json:"current"`
}

type Evaluator struct {
	catalog *Catalog
}

func NewEvaluator(catalog *Catalog) *Evaluator {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &Evaluator{catalog: catalog}
}

func (e *Evaluator) Catalog() *Catalog {
	return e.catalog
}

func (e *Evaluator) CanCreateList(role models.UserRole, billing *models.Billing) Decision {
	if role == models.UserRoleMaster {
		return allowAll()
	}
	if role != models.UserRoleTitular {
		return deny(ReasonNotOwner)
	}
	if billing == nil {
		return deny(ReasonNoBilling)
	}
	limit := e.catalog.Resolve(billing.PlanID).Limits.ListsPerFamily
	return check(limit, billing.ListsCreated, ReasonListLimit)
}

func (e *Evaluator) CanInviteMember(role models.UserRole, billing *models.Billing) Decision {
	if role == models.UserRoleMaster {
		return allowAll()
	}
	if role != models.UserRoleTitular {
		return deny(ReasonNotOwner)
	}
	if billing == nil {
		return deny(ReasonNoBilling)
	}
	if billing.Status == models.BillingStatusCancelled {
		return deny(ReasonBillingInactive)
	}
	limit := e.catalog.Resolve(billing.PlanID).Limits.FamilyMembers
	return check(limit, billing.Seats.Used, ReasonMemberLimit)
}

func (e *Evaluator) CanCreateFamily(role models.UserRole, billing *models.Billing, activeFamilyCount int) Decision {
	if role == models.UserRoleMaster {
		return allowAll()
	}
	if role != models.UserRoleTitular {
		return deny(ReasonNotOwner)
	}
	if billing == nil {
		return deny(ReasonNoBilling)
	}
	limit := e.catalog.Resolve(billing.PlanID).Limits.Families
	return check(limit, activeFamilyCount, ReasonFamilyLimit)
}

// CanAddItemToList is evaluated against the list owner's billing, so any
// member role may add items.
func (e *Evaluator) CanAddItemToList(role models.UserRole, ownerBilling *models.Billing, currentItemCount int) Decision {
	if role == models.UserRoleMaster {
		return allowAll()
	}
	if ownerBilling == nil {
		return deny(ReasonNoBilling)
	}
	limit := e.catalog.Resolve(ownerBilling.PlanID).Limits.ItemsPerList
	return check(limit, currentItemCount, ReasonItemLimit)
}

func check(limit models.Limit, current int, reason string) Decision {
	d := Decision{Allowed: limit.Allows(current), Limit: limit, Current: current}
	if !d.Allowed {
		d.Reason = reason
	}
	return d
}

func allowAll() Decision {
	return Decision{Allowed: true, Limit: models.Unlimited}
}

func deny(reason string) Decision {
	return Decision{Allowed: false, Reason: reason}
}
