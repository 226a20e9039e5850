package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dimitrije/listshub-api/internal/database"
	"github.com/dimitrije/listshub-api/internal/entitlement"
	"github.com/dimitrije/listshub-api/internal/metrics"
	"github.com/dimitrije/listshub-api/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	log "github.com/sirupsen/logrus"
)

const listColumns = `id, family_id, name, kind, created_by, created_at, updated_at`

const itemColumns = `id, list_id, name, quantity, checked, version, created_by, created_at, updated_at`

type ListService struct {
	db        *database.DB
	evaluator *entitlement.Evaluator
	events    EventPublisher
	metrics   *metrics.Metrics
}

func NewListService(db *database.DB, evaluator *entitlement.Evaluator, events EventPublisher, m *metrics.Metrics) *ListService {
	if evaluator == nil {
		evaluator = entitlement.NewEvaluator(nil)
	}
	return &ListService{db: db, evaluator: evaluator, events: publisherOrNop(events), metrics: m}
}

func scanList(row pgx.Row) (*models.List, error) {
	var l models.List
	if err := row.Scan(&l.ID, &l.FamilyID, &l.Name, &l.Kind, &l.CreatedBy, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return nil, err
	}
	return &l, nil
}

func scanItem(row pgx.Row) (*models.ListItem, error) {
	var it models.ListItem
	if err := row.Scan(&it.ID, &it.ListID, &it.Name, &it.Quantity, &it.Checked, &it.Version, &it.CreatedBy, &it.CreatedAt, &it.UpdatedAt); err != nil {
		return nil, err
	}
	return &it, nil
}

// Create adds a list to a family the requester owns. The lists_created
// counter is bumped only if it still holds the value the decision was made on.
func (s *ListService) Create(ctx context.Context, familyID, requesterID uuid.UUID, name, kind string) (*models.List, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if kind == "" {
		kind = models.ListKindShopping
	}
	if kind != models.ListKindShopping && kind != models.ListKindTasks {
		return nil, fmt.Errorf("%w: unknown list kind %q", ErrInvalidInput, kind)
	}

	var list *models.List
	err := s.db.WithTx(ctx, func(tx pgx.Tx) error {
		ownerID, err := loadFamilyOwner(ctx, tx, familyID)
		if err != nil {
			return err
		}

		role, err := loadRole(ctx, tx, requesterID)
		if err != nil {
			return err
		}
		if role != models.UserRoleMaster && ownerID != requesterID {
			return ErrNotFamilyOwner
		}

		billing, err := loadBilling(ctx, tx, ownerID)
		if err != nil {
			return err
		}

		if d := s.evaluator.CanCreateList(role, billing); !d.Allowed {
			s.metrics.IncEntitlementDenial(string(entitlement.ActionCreateList))
			return &EntitlementError{Action: entitlement.ActionCreateList, Decision: d}
		}

		list, err = scanList(tx.QueryRow(ctx, `
			INSERT INTO lists (family_id, name, kind, created_by)
			VALUES ($1, $2, $3, $4)
			RETURNING `+listColumns,
			familyID, name, kind, requesterID,
		))
		if err != nil {
			return fmt.Errorf("failed to create list: %w", err)
		}

		if billing == nil {
			return nil
		}
		tag, err := tx.Exec(ctx, `
			UPDATE user_billing SET lists_created = lists_created + 1, updated_at = NOW()
			WHERE user_id = $1 AND lists_created = $2
		`, ownerID, billing.ListsCreated)
		if err != nil {
			return fmt.Errorf("failed to count list: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrBillingConflict
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.events.PublishFamilyEvent(familyID, EventListCreated, list)
	log.WithFields(log.Fields{"family_id": familyID, "list_id": list.ID}).Info("list created")
	return list, nil
}

// AddItem appends an item for any active member. The limit comes from the
// family owner's plan and is re-checked by the insert itself.
func (s *ListService) AddItem(ctx context.Context, listID, requesterID uuid.UUID, name string, quantity int) (*models.ListItem, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if quantity <= 0 {
		quantity = 1
	}

	var item *models.ListItem
	var familyID uuid.UUID
	err := s.db.WithTx(ctx, func(tx pgx.Tx) error {
		var ownerID uuid.UUID
		err := tx.QueryRow(ctx, `
			SELECT l.family_id, f.owner_id
			FROM lists l
			INNER JOIN families f ON f.id = l.family_id
			WHERE l.id = $1
		`, listID).Scan(&familyID, &ownerID)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrListNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load list: %w", err)
		}

		role, err := loadRole(ctx, tx, requesterID)
		if err != nil {
			return err
		}
		if role != models.UserRoleMaster {
			member, err := isActiveMember(ctx, tx, familyID, requesterID)
			if err != nil {
				return err
			}
			if !member {
				return ErrNotFamilyMember
			}
		}

		billing, err := loadBilling(ctx, tx, ownerID)
		if err != nil {
			return err
		}

		var count int
		if err := tx.QueryRow(ctx, `SELECT COUNT(*)::int FROM list_items WHERE list_id = $1`, listID).Scan(&count); err != nil {
			return fmt.Errorf("failed to count items: %w", err)
		}

		d := s.evaluator.CanAddItemToList(role, billing, count)
		if !d.Allowed {
			s.metrics.IncEntitlementDenial(string(entitlement.ActionAddItem))
			return &EntitlementError{Action: entitlement.ActionAddItem, Decision: d}
		}

		item, err = scanItem(tx.QueryRow(ctx, `
			INSERT INTO list_items (list_id, name, quantity, created_by)
			SELECT $1::uuid, $2::text, $3::int, $4::uuid
			WHERE (SELECT COUNT(*) FROM list_items WHERE list_id = $1) < $5::float8
			RETURNING `+itemColumns,
			listID, name, quantity, requesterID, float64(d.Limit),
		))
		if errors.Is(err, pgx.ErrNoRows) {
			s.metrics.IncEntitlementDenial(string(entitlement.ActionAddItem))
			return &EntitlementError{Action: entitlement.ActionAddItem, Decision: entitlement.Decision{
				Allowed: false,
				Reason:  entitlement.ReasonItemLimit,
				Limit:   d.Limit,
				Current: count + 1,
			}}
		}
		if err != nil {
			return fmt.Errorf("failed to add item: %w", err)
		}

		if billing != nil {
			_, err = tx.Exec(ctx, `
				UPDATE user_billing SET items_tracked = items_tracked + 1, updated_at = NOW()
				WHERE user_id = $1
			`, ownerID)
			if err != nil {
				return fmt.Errorf("failed to count item: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.events.PublishFamilyEvent(familyID, EventItemAdded, item)
	return item, nil
}

func (s *ListService) GetByID(ctx context.Context, listID uuid.UUID) (*models.List, error) {
	list, err := scanList(s.db.Pool.QueryRow(ctx, `SELECT `+listColumns+` FROM lists WHERE id = $1`, listID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrListNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get list: %w", err)
	}
	return list, nil
}

func (s *ListService) ListByFamily(ctx context.Context, familyID uuid.UUID) ([]models.List, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT `+listColumns+` FROM lists
		WHERE family_id = $1
		ORDER BY created_at DESC
	`, familyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list lists: %w", err)
	}
	defer rows.Close()

	lists := []models.List{}
	for rows.Next() {
		l, err := scanList(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan list: %w", err)
		}
		lists = append(lists, *l)
	}
	return lists, rows.Err()
}

func (s *ListService) Items(ctx context.Context, listID uuid.UUID) ([]models.ListItem, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT `+itemColumns+` FROM list_items
		WHERE list_id = $1
		ORDER BY created_at
	`, listID)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	items := []models.ListItem{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, *it)
	}
	return items, rows.Err()
}

// ToggleItem sets the checked flag if the item is still at expectedVersion.
func (s *ListService) ToggleItem(ctx context.Context, listID, itemID uuid.UUID, checked bool, expectedVersion int) (*models.ListItem, error) {
	item, err := scanItem(s.db.Pool.QueryRow(ctx, `
		UPDATE list_items
		SET checked = $1, version = version + 1, updated_at = NOW()
		WHERE id = $2 AND list_id = $3 AND version = $4
		RETURNING `+itemColumns,
		checked, itemID, listID, expectedVersion,
	))
	if err != nil {
		return nil, s.checkVersionConflict(ctx, listID, itemID, expectedVersion, err)
	}
	return item, nil
}

func (s *ListService) checkVersionConflict(ctx context.Context, listID, itemID uuid.UUID, expectedVersion int, originalErr error) error {
	var currentVersion int
	err := s.db.Pool.QueryRow(ctx, `SELECT version FROM list_items WHERE id = $1 AND list_id = $2`, itemID, listID).Scan(&currentVersion)
	if err != nil {
		return ErrItemNotFound
	}
	if currentVersion != expectedVersion {
		return ErrVersionConflict
	}
	return fmt.Errorf("failed to update item: %w", originalErr)
}

func (s *ListService) DeleteItem(ctx context.Context, listID, itemID uuid.UUID) error {
	tag, err := s.db.Pool.Exec(ctx, `DELETE FROM list_items WHERE id = $1 AND list_id = $2`, itemID, listID)
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

// Delete removes a list. Only the family owner or a master may delete.
// lists_created is a lifetime counter and is not decremented.
func (s *ListService) Delete(ctx context.Context, listID, requesterID uuid.UUID) error {
	list, err := s.GetByID(ctx, listID)
	if err != nil {
		return err
	}

	ownerID, err := loadFamilyOwner(ctx, s.db.Pool, list.FamilyID)
	if err != nil {
		return err
	}
	if ownerID != requesterID {
		role, err := loadRole(ctx, s.db.Pool, requesterID)
		if err != nil {
			return err
		}
		if role != models.UserRoleMaster {
			return ErrNotFamilyOwner
		}
	}

	if _, err := s.db.Pool.Exec(ctx, `DELETE FROM lists WHERE id = $1`, listID); err != nil {
		return fmt.Errorf("failed to delete list: %w", err)
	}
	return nil
}

func loadRole(ctx context.Context, q database.Querier, userID uuid.UUID) (models.UserRole, error) {
	var role models.UserRole
	err := q.QueryRow(ctx, `SELECT role FROM users WHERE id = $1`, userID).Scan(&role)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrUserNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to load user role: %w", err)
	}
	return role, nil
}
