package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dimitrije/listshub-api/internal/database"
	"github.com/dimitrije/listshub-api/internal/entitlement"
	"github.com/dimitrije/listshub-api/internal/models"
	"github.com/jackc/pgx/v5"
)

var ErrPlanNotFound = errors.New("plan not found")

const planColumns = `id, name, monthly_price::float8, is_unlimited, families, family_members, lists_per_family, items_per_list, collaborators_per_list, perks`

type PlanService struct {
	db *database.DB
}

func NewPlanService(db *database.DB) *PlanService {
	return &PlanService{db: db}
}

func scanPlan(row pgx.Row) (*models.Plan, error) {
	var p models.Plan
	var families, members, lists, items, collaborators float64
	err := row.Scan(&p.ID, &p.Name, &p.MonthlyPrice, &p.IsUnlimited,
		&families, &members, &lists, &items, &collaborators, &p.Perks)
	if err != nil {
		return nil, err
	}
	p.Limits = models.PlanLimits{
		Families:             models.Limit(families),
		FamilyMembers:        models.Limit(members),
		ListsPerFamily:       models.Limit(lists),
		ItemsPerList:         models.Limit(items),
		CollaboratorsPerList: models.Limit(collaborators),
	}
	if p.Perks == nil {
		p.Perks = []string{}
	}
	return &p, nil
}

func (s *PlanService) List(ctx context.Context) ([]models.Plan, error) {
	rows, err := s.db.Pool.Query(ctx, `SELECT `+planColumns+` FROM plans ORDER BY monthly_price, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	defer rows.Close()

	plans := []models.Plan{}
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", err)
		}
		plans = append(plans, *p)
	}
	return plans, rows.Err()
}

func (s *PlanService) Get(ctx context.Context, id string) (*models.Plan, error) {
	p, err := scanPlan(s.db.Pool.QueryRow(ctx, `SELECT `+planColumns+` FROM plans WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPlanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	return p, nil
}

// Upsert writes a catalog entry. Unlimited limits are stored as Infinity.
func (s *PlanService) Upsert(ctx context.Context, p models.Plan) error {
	if p.ID == "" {
		return fmt.Errorf("%w: plan id is required", ErrInvalidInput)
	}
	perks := p.Perks
	if perks == nil {
		perks = []string{}
	}

	_, err := s.db.Pool.Exec(ctx, `
		INSERT INTO plans (id, name, monthly_price, is_unlimited, families, family_members,
			lists_per_family, items_per_list, collaborators_per_list, perks)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			monthly_price = EXCLUDED.monthly_price,
			is_unlimited = EXCLUDED.is_unlimited,
			families = EXCLUDED.families,
			family_members = EXCLUDED.family_members,
			lists_per_family = EXCLUDED.lists_per_family,
			items_per_list = EXCLUDED.items_per_list,
			collaborators_per_list = EXCLUDED.collaborators_per_list,
			perks = EXCLUDED.perks,
			updated_at = NOW()
	`, p.ID, p.Name, p.MonthlyPrice, p.IsUnlimited,
		float64(p.Limits.Families), float64(p.Limits.FamilyMembers), float64(p.Limits.ListsPerFamily),
		float64(p.Limits.ItemsPerList), float64(p.Limits.CollaboratorsPerList), perks)
	if err != nil {
		return fmt.Errorf("failed to upsert plan %s: %w", p.ID, err)
	}
	return nil
}

// Catalog snapshots the stored plans. An empty table yields the built-in
// default catalog.
func (s *PlanService) Catalog(ctx context.Context) (*entitlement.Catalog, error) {
	plans, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(plans) == 0 {
		return entitlement.DefaultCatalog(), nil
	}
	return entitlement.NewCatalog(plans...), nil
}
