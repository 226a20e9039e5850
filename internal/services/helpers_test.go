package services

import (
	"testing"
	"time"

	"github.com/dimitrije/listshub-api/internal/database"
	"github.com/dimitrije/listshub-api/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
)

var (
	userCols    = []string{"id", "email", "name", "locale", "avatar_url", "provider", "provider_id", "password_hash", "role", "status", "primary_family_id", "created_at", "updated_at"}
	billingCols = []string{"user_id", "plan_id", "status", "seats_total", "seats_used", "invites_total", "invites_used", "lists_created", "items_tracked", "updated_at"}
	inviteCols  = []string{"id", "family_id", "created_by", "token", "code", "status", "max_uses", "used_count", "accepted_by", "expires_at", "created_at", "updated_at"}
	linkCols    = []string{"family_id", "joined_at", "removed_at"}
)

func newMockDB(t *testing.T) (*database.DB, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })
	return &database.DB{Pool: mock}, mock
}

func testUser(role models.UserRole, primary *uuid.UUID) *models.User {
	now := time.Now()
	return &models.User{
		ID:              uuid.New(),
		Email:           "user@example.com",
		Name:            "Test User",
		Locale:          "en",
		Provider:        models.ProviderPassword,
		Role:            role,
		Status:          models.UserStatusActive,
		PrimaryFamilyID: primary,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func userRows(u *models.User) *pgxmock.Rows {
	return pgxmock.NewRows(userCols).AddRow(
		u.ID, u.Email, u.Name, u.Locale, u.AvatarURL, u.Provider, u.ProviderID,
		u.PasswordHash, u.Role, u.Status, u.PrimaryFamilyID, u.CreatedAt, u.UpdatedAt,
	)
}

func billingRows(b *models.Billing) *pgxmock.Rows {
	return pgxmock.NewRows(billingCols).AddRow(
		b.UserID, b.PlanID, b.Status, b.Seats.Total, b.Seats.Used,
		b.Invites.Total, b.Invites.Used, b.ListsCreated, b.ItemsTracked, time.Now(),
	)
}

func inviteRows(invites ...*models.FamilyInvite) *pgxmock.Rows {
	rows := pgxmock.NewRows(inviteCols)
	for _, i := range invites {
		rows.AddRow(i.ID, i.FamilyID, i.CreatedBy, i.Token, i.Code, i.Status,
			i.MaxUses, i.UsedCount, i.AcceptedBy, i.ExpiresAt, i.CreatedAt, i.UpdatedAt)
	}
	return rows
}

func linkRows(links ...models.FamilyLink) *pgxmock.Rows {
	rows := pgxmock.NewRows(linkCols)
	for _, l := range links {
		rows.AddRow(l.FamilyID, l.JoinedAt, l.RemovedAt)
	}
	return rows
}

func testInvite(familyID, ownerID uuid.UUID, maxUses, used int, expiresAt time.Time) *models.FamilyInvite {
	now := time.Now()
	return &models.FamilyInvite{
		ID:         uuid.New(),
		FamilyID:   familyID,
		CreatedBy:  ownerID,
		Token:      uuid.New(),
		Code:       "AB23K9",
		Status:     models.InviteStatusPending,
		MaxUses:    maxUses,
		UsedCount:  used,
		AcceptedBy: []uuid.UUID{},
		ExpiresAt:  expiresAt,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// expectHydrate covers the family link and billing reads done after a user
// row is loaded.
func expectHydrate(mock pgxmock.PgxPoolIface, userID uuid.UUID, billing *models.Billing, links ...models.FamilyLink) {
	mock.ExpectQuery(`SELECT family_id, joined_at, removed_at\s+FROM family_links`).
		WithArgs(userID).
		WillReturnRows(linkRows(links...))
	if billing == nil {
		mock.ExpectQuery(`SELECT .+ FROM user_billing WHERE user_id`).
			WithArgs(userID).
			WillReturnError(pgx.ErrNoRows)
		return
	}
	mock.ExpectQuery(`SELECT .+ FROM user_billing WHERE user_id`).
		WithArgs(userID).
		WillReturnRows(billingRows(billing))
}

func expectAddMember(mock pgxmock.PgxPoolIface, familyID, userID uuid.UUID, role models.MemberRole) {
	mock.ExpectExec(`INSERT INTO family_members .+ ON CONFLICT \(family_id, user_id\) DO UPDATE`).
		WithArgs(familyID, userID, role).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO family_links .+ WHERE NOT EXISTS`).
		WithArgs(userID, familyID).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`UPDATE users SET primary_family_id .+ primary_family_id IS NULL`).
		WithArgs(userID, familyID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
}

func expectProvision(mock pgxmock.PgxPoolIface, userID, newFamilyID uuid.UUID) {
	mock.ExpectQuery(`INSERT INTO families`).
		WithArgs(pgxmock.AnyArg(), userID).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(newFamilyID))
	mock.ExpectExec(`INSERT INTO family_members`).
		WithArgs(newFamilyID, userID).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO family_links`).
		WithArgs(userID, newFamilyID).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO user_billing`).
		WithArgs(userID, models.PlanFree, models.FreeSeatsTotal, models.FreeSeatsUsed, models.FreeInvitesTotal).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`UPDATE users SET role = 'titular'`).
		WithArgs(userID, newFamilyID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
}

type recordedEvent struct {
	FamilyID uuid.UUID
	Event    string
	Data     any
}

type recordingPublisher struct {
	events []recordedEvent
}

func (p *recordingPublisher) PublishFamilyEvent(familyID uuid.UUID, event string, data any) {
	p.events = append(p.events, recordedEvent{FamilyID: familyID, Event: event, Data: data})
}

func (p *recordingPublisher) names() []string {
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Event)
	}
	return out
}
