package entitlement

import (
	"sort"

	"github.com/dimitrije/listshub-api/internal/models"
)

// Catalog is a read-only set of plans keyed by tier id.
type Catalog struct {
	plans map[string]models.Plan
}

func NewCatalog(plans ...models.Plan) *Catalog {
	m := make(map[string]models.Plan, len(plans))
	for _, p := range plans {
		m[p.ID] = p
	}
	return &Catalog{plans: m}
}

// DefaultPlans is the built-in catalog used when nothing has been seeded.
func DefaultPlans() []models.Plan {
	return []models.Plan{
		{
			ID:   models.PlanFree,
			Name: "Free",
			Limits: models.PlanLimits{
				Families:             1,
				FamilyMembers:        3,
				ListsPerFamily:       5,
				ItemsPerList:         50,
				CollaboratorsPerList: 3,
			},
			Perks: []string{"Shared shopping and task lists", "Up to 3 family members"},
		},
		{
			ID:           models.PlanPlus,
			Name:         "Plus",
			MonthlyPrice: 2.99,
			Limits: models.PlanLimits{
				Families:             1,
				FamilyMembers:        6,
				ListsPerFamily:       20,
				ItemsPerList:         200,
				CollaboratorsPerList: 6,
			},
			Perks: []string{"Up to 6 family members", "20 lists"},
		},
		{
			ID:           models.PlanPremium,
			Name:         "Premium",
			MonthlyPrice: 5.99,
			Limits: models.PlanLimits{
				Families:             1,
				FamilyMembers:        10,
				ListsPerFamily:       models.Unlimited,
				ItemsPerList:         models.Unlimited,
				CollaboratorsPerList: 10,
			},
			Perks: []string{"Up to 10 family members", "Unlimited lists and items"},
		},
		{
			ID:          models.PlanMaster,
			Name:        "Master",
			IsUnlimited: true,
			Limits: models.PlanLimits{
				Families:             models.Unlimited,
				FamilyMembers:        models.Unlimited,
				ListsPerFamily:       models.Unlimited,
				ItemsPerList:         models.Unlimited,
				CollaboratorsPerList: models.Unlimited,
			},
		},
	}
}

func DefaultCatalog() *Catalog {
	return NewCatalog(DefaultPlans()...)
}

func (c *Catalog) Get(id string) (models.Plan, bool) {
	p, ok := c.plans[id]
	return p, ok
}

// Resolve returns the plan for id. Unknown ids fall back to the free tier so a
// bad billing snapshot never grants more than the floor.
func (c *Catalog) Resolve(id string) models.Plan {
	if p, ok := c.plans[id]; ok {
		return p
	}
	if p, ok := c.plans[models.PlanFree]; ok {
		return p
	}
	return models.Plan{ID: models.PlanFree}
}

// Plans returns all plans ordered by price, then id.
func (c *Catalog) Plans() []models.Plan {
	out := make([]models.Plan, 0, len(c.plans))
	for _, p := range c.plans {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MonthlyPrice != out[j].MonthlyPrice {
			return out[i].MonthlyPrice < out[j].MonthlyPrice
		}
		return out[i].ID < out[j].ID
	})
	return out
}
