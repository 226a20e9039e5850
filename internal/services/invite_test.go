package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/dimitrije/listshub-api/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var inviteClock = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func setupInviteService(t *testing.T) (*InviteService, pgxmock.PgxPoolIface, *recordingPublisher) {
	t.Helper()
	db, mock := newMockDB(t)
	events := &recordingPublisher{}
	svc := NewInviteService(db, events, nil, 0)
	svc.now = func() time.Time { return inviteClock }
	return svc, mock, events
}

func fixedCodes(codes ...string) func() (string, error) {
	i := 0
	return func() (string, error) {
		c := codes[i%len(codes)]
		i++
		return c, nil
	}
}

func expectFamilyOwner(mock pgxmock.PgxPoolIface, familyID, ownerID uuid.UUID) {
	mock.ExpectQuery(`SELECT owner_id FROM families WHERE id`).
		WithArgs(familyID).
		WillReturnRows(pgxmock.NewRows([]string{"owner_id"}).AddRow(ownerID))
}

func expectCodeTaken(mock pgxmock.PgxPoolIface, familyID uuid.UUID, code string, taken bool) {
	mock.ExpectQuery(`SELECT EXISTS\( SELECT 1 FROM family_invites`).
		WithArgs(familyID, code).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(taken))
}

func expectMembership(mock pgxmock.PgxPoolIface, familyID, userID uuid.UUID, active bool) {
	mock.ExpectQuery(`SELECT EXISTS\( SELECT 1 FROM family_members`).
		WithArgs(familyID, userID).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(active))
}

// expectRedeem covers a successful redemption of inv by userID inside an
// already open transaction.
func expectRedeem(mock pgxmock.PgxPoolIface, inv *models.FamilyInvite, userID uuid.UUID) *models.FamilyInvite {
	next := *inv
	next.UsedCount = inv.UsedCount + 1
	next.AcceptedBy = append(append([]uuid.UUID{}, inv.AcceptedBy...), userID)
	if next.UsedCount == inv.MaxUses {
		next.Status = models.InviteStatusAccepted
	}

	expectMembership(mock, inv.FamilyID, userID, false)
	mock.ExpectQuery(`UPDATE family_invites SET used_count`).
		WithArgs(next.UsedCount, userID, next.Status, inv.ID, inv.UsedCount).
		WillReturnRows(inviteRows(&next))
	mock.ExpectExec(`UPDATE user_billing SET seats_used = seats_used \+ 1`).
		WithArgs(inv.FamilyID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	expectAddMember(mock, inv.FamilyID, userID, models.MemberRoleViewer)
	return &next
}

func TestGenerateInviteCode(t *testing.T) {
	assert.Len(t, InviteCodeAlphabet, 31)
	for _, c := range "0O1IL" {
		assert.NotContains(t, InviteCodeAlphabet, string(c))
	}

	for range 200 {
		code, err := GenerateInviteCode()
		require.NoError(t, err)
		require.Len(t, code, InviteCodeLength)
		for _, c := range code {
			assert.True(t, strings.ContainsRune(InviteCodeAlphabet, c), "unexpected symbol %q in %s", c, code)
		}
	}
}

func TestNormalizeInviteCode(t *testing.T) {
	assert.Equal(t, "AB23K9", NormalizeInviteCode("  ab23k9 "))
}

func TestInviteService_Create(t *testing.T) {
	svc, mock, events := setupInviteService(t)
	svc.codeGen = fixedCodes("AB23K9")
	ctx := context.Background()
	familyID, ownerID := uuid.New(), uuid.New()
	billing := models.NewFreeBilling(ownerID)
	created := testInvite(familyID, ownerID, 2, 0, inviteClock.Add(DefaultInviteExpiry))

	mock.ExpectBegin()
	expectFamilyOwner(mock, familyID, ownerID)
	mock.ExpectQuery(`SELECT .+ FROM user_billing WHERE user_id = \$1 FOR UPDATE`).
		WithArgs(ownerID).
		WillReturnRows(billingRows(billing))
	expectCodeTaken(mock, familyID, "AB23K9", false)
	mock.ExpectQuery(`INSERT INTO family_invites`).
		WithArgs(familyID, ownerID, pgxmock.AnyArg(), "AB23K9", 2, inviteClock.Add(DefaultInviteExpiry)).
		WillReturnRows(inviteRows(created))
	mock.ExpectExec(`UPDATE user_billing SET invites_used = invites_used \+ 1`).
		WithArgs(ownerID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	inv, err := svc.Create(ctx, familyID, ownerID, 0)

	require.NoError(t, err)
	assert.Equal(t, 2, inv.MaxUses)
	assert.Equal(t, models.InviteStatusPending, inv.Status)
	assert.Equal(t, []string{EventInviteCreated}, events.names())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInviteService_Create_CustomExpiry(t *testing.T) {
	svc, mock, _ := setupInviteService(t)
	svc.codeGen = fixedCodes("QQQQQQ")
	familyID, ownerID := uuid.New(), uuid.New()
	billing := models.NewFreeBilling(ownerID)
	billing.Seats.Used = 2

	mock.ExpectBegin()
	expectFamilyOwner(mock, familyID, ownerID)
	mock.ExpectQuery(`SELECT .+ FROM user_billing`).
		WithArgs(ownerID).
		WillReturnRows(billingRows(billing))
	expectCodeTaken(mock, familyID, "QQQQQQ", false)
	mock.ExpectQuery(`INSERT INTO family_invites`).
		WithArgs(familyID, ownerID, pgxmock.AnyArg(), "QQQQQQ", 1, inviteClock.Add(time.Hour)).
		WillReturnRows(inviteRows(testInvite(familyID, ownerID, 1, 0, inviteClock.Add(time.Hour))))
	mock.ExpectExec(`UPDATE user_billing SET invites_used`).
		WithArgs(ownerID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	inv, err := svc.Create(context.Background(), familyID, ownerID, time.Hour)

	require.NoError(t, err)
	assert.Equal(t, 1, inv.MaxUses)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInviteService_Create_RetriesCodeCollision(t *testing.T) {
	svc, mock, _ := setupInviteService(t)
	svc.codeGen = fixedCodes("AAAAAA", "BBBBBB")
	familyID, ownerID := uuid.New(), uuid.New()
	created := testInvite(familyID, ownerID, 2, 0, inviteClock.Add(DefaultInviteExpiry))
	created.Code = "BBBBBB"

	mock.ExpectBegin()
	expectFamilyOwner(mock, familyID, ownerID)
	mock.ExpectQuery(`SELECT .+ FROM user_billing`).
		WithArgs(ownerID).
		WillReturnRows(billingRows(models.NewFreeBilling(ownerID)))
	expectCodeTaken(mock, familyID, "AAAAAA", true)
	expectCodeTaken(mock, familyID, "BBBBBB", false)
	mock.ExpectQuery(`INSERT INTO family_invites`).
		WithArgs(familyID, ownerID, pgxmock.AnyArg(), "BBBBBB", 2, pgxmock.AnyArg()).
		WillReturnRows(inviteRows(created))
	mock.ExpectExec(`UPDATE user_billing SET invites_used`).
		WithArgs(ownerID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	inv, err := svc.Create(context.Background(), familyID, ownerID, 0)

	require.NoError(t, err)
	assert.Equal(t, "BBBBBB", inv.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInviteService_Create_GivesUpAfterMaxAttempts(t *testing.T) {
	svc, mock, events := setupInviteService(t)
	svc.codeGen = fixedCodes("AAAAAA")
	familyID, ownerID := uuid.New(), uuid.New()

	mock.ExpectBegin()
	expectFamilyOwner(mock, familyID, ownerID)
	mock.ExpectQuery(`SELECT .+ FROM user_billing`).
		WithArgs(ownerID).
		WillReturnRows(billingRows(models.NewFreeBilling(ownerID)))
	for range maxCodeAttempts {
		expectCodeTaken(mock, familyID, "AAAAAA", true)
	}
	mock.ExpectRollback()

	_, err := svc.Create(context.Background(), familyID, ownerID, 0)

	assert.ErrorIs(t, err, ErrCodeGeneration)
	assert.Empty(t, events.events)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInviteService_Create_UniqueViolationOnInsert(t *testing.T) {
	svc, mock, _ := setupInviteService(t)
	svc.codeGen = fixedCodes("AAAAAA")
	familyID, ownerID := uuid.New(), uuid.New()

	mock.ExpectBegin()
	expectFamilyOwner(mock, familyID, ownerID)
	mock.ExpectQuery(`SELECT .+ FROM user_billing`).
		WithArgs(ownerID).
		WillReturnRows(billingRows(models.NewFreeBilling(ownerID)))
	expectCodeTaken(mock, familyID, "AAAAAA", false)
	mock.ExpectQuery(`INSERT INTO family_invites`).
		WithArgs(familyID, ownerID, pgxmock.AnyArg(), "AAAAAA", 2, pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectRollback()

	_, err := svc.Create(context.Background(), familyID, ownerID, 0)

	assert.ErrorIs(t, err, ErrCodeGeneration)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInviteService_Create_NonOwner(t *testing.T) {
	svc, mock, events := setupInviteService(t)
	familyID, ownerID, memberID := uuid.New(), uuid.New(), uuid.New()

	mock.ExpectBegin()
	expectFamilyOwner(mock, familyID, ownerID)
	mock.ExpectRollback()

	_, err := svc.Create(context.Background(), familyID, memberID, 0)

	assert.ErrorIs(t, err, ErrOnlyOwnerCanInvite)
	assert.Empty(t, events.events)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInviteService_Create_NoSeats(t *testing.T) {
	tests := []struct {
		name    string
		billing func(uuid.UUID) *models.Billing
	}{
		{"seats exhausted", func(id uuid.UUID) *models.Billing {
			b := models.NewFreeBilling(id)
			b.Seats.Used = b.Seats.Total
			return b
		}},
		{"no billing", func(uuid.UUID) *models.Billing { return nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, mock, _ := setupInviteService(t)
			familyID, ownerID := uuid.New(), uuid.New()

			mock.ExpectBegin()
			expectFamilyOwner(mock, familyID, ownerID)
			q := mock.ExpectQuery(`SELECT .+ FROM user_billing`).WithArgs(ownerID)
			if b := tt.billing(ownerID); b != nil {
				q.WillReturnRows(billingRows(b))
			} else {
				q.WillReturnError(pgx.ErrNoRows)
			}
			mock.ExpectRollback()

			_, err := svc.Create(context.Background(), familyID, ownerID, 0)

			assert.ErrorIs(t, err, ErrNoSeatsAvailable)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestInviteService_Create_FamilyNotFound(t *testing.T) {
	svc, mock, _ := setupInviteService(t)
	familyID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT owner_id FROM families`).
		WithArgs(familyID).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	_, err := svc.Create(context.Background(), familyID, uuid.New(), 0)

	assert.ErrorIs(t, err, ErrFamilyNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInviteService_RedeemByToken_UntilMaxUses(t *testing.T) {
	svc, mock, events := setupInviteService(t)
	ctx := context.Background()
	familyID, ownerID := uuid.New(), uuid.New()
	first, second, third := uuid.New(), uuid.New(), uuid.New()
	inv := testInvite(familyID, ownerID, 2, 0, inviteClock.Add(time.Hour))

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM family_invites WHERE token`).
		WithArgs(inv.Token).
		WillReturnRows(inviteRows(inv))
	afterFirst := expectRedeem(mock, inv, first)
	mock.ExpectCommit()

	got, err := svc.RedeemByToken(ctx, inv.Token, first)
	require.NoError(t, err)
	assert.Equal(t, 1, got.UsedCount)
	assert.Equal(t, models.InviteStatusPending, got.Status)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM family_invites WHERE token`).
		WithArgs(inv.Token).
		WillReturnRows(inviteRows(afterFirst))
	afterSecond := expectRedeem(mock, afterFirst, second)
	mock.ExpectCommit()

	got, err = svc.RedeemByToken(ctx, inv.Token, second)
	require.NoError(t, err)
	assert.Equal(t, 2, got.UsedCount)
	assert.Equal(t, models.InviteStatusAccepted, got.Status)
	assert.Equal(t, []uuid.UUID{first, second}, got.AcceptedBy)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM family_invites WHERE token`).
		WithArgs(inv.Token).
		WillReturnRows(inviteRows(afterSecond))
	mock.ExpectRollback()

	_, err = svc.RedeemByToken(ctx, inv.Token, third)
	assert.ErrorIs(t, err, ErrInviteMaxUses)

	assert.Equal(t, []string{
		EventInviteRedeemed, EventMemberJoined,
		EventInviteRedeemed, EventMemberJoined,
	}, events.names())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInviteService_Redeem_MaxUsesOnPendingRow(t *testing.T) {
	svc, mock, _ := setupInviteService(t)
	familyID := uuid.New()
	inv := testInvite(familyID, uuid.New(), 2, 2, inviteClock.Add(time.Hour))

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM family_invites WHERE id = \$1 AND family_id = \$2`).
		WithArgs(inv.ID, familyID).
		WillReturnRows(inviteRows(inv))
	mock.ExpectRollback()

	_, err := svc.RedeemByID(context.Background(), familyID, inv.ID, uuid.New())

	assert.ErrorIs(t, err, ErrInviteMaxUses)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInviteService_Redeem_Expired(t *testing.T) {
	svc, mock, events := setupInviteService(t)
	familyID := uuid.New()
	inv := testInvite(familyID, uuid.New(), 2, 0, inviteClock.Add(-time.Minute))

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM family_invites WHERE token`).
		WithArgs(inv.Token).
		WillReturnRows(inviteRows(inv))
	mock.ExpectRollback()

	_, err := svc.RedeemByToken(context.Background(), inv.Token, uuid.New())

	assert.ErrorIs(t, err, ErrInviteExpired)
	assert.Empty(t, events.events)
	assert.Equal(t, models.InviteStatusPending, inv.Status)
	assert.Equal(t, models.InviteStatusExpired, inv.EffectiveStatus(inviteClock))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInviteService_Redeem_Revoked(t *testing.T) {
	svc, mock, _ := setupInviteService(t)
	inv := testInvite(uuid.New(), uuid.New(), 2, 0, inviteClock.Add(time.Hour))
	inv.Status = models.InviteStatusRevoked

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM family_invites WHERE token`).
		WithArgs(inv.Token).
		WillReturnRows(inviteRows(inv))
	mock.ExpectRollback()

	_, err := svc.RedeemByToken(context.Background(), inv.Token, uuid.New())

	assert.ErrorIs(t, err, ErrInviteRevoked)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInviteService_Redeem_NotFound(t *testing.T) {
	svc, mock, _ := setupInviteService(t)
	token := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM family_invites WHERE token`).
		WithArgs(token).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	_, err := svc.RedeemByToken(context.Background(), token, uuid.New())

	assert.ErrorIs(t, err, ErrInviteNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInviteService_Redeem_AlreadyMember(t *testing.T) {
	svc, mock, _ := setupInviteService(t)
	userID := uuid.New()
	inv := testInvite(uuid.New(), uuid.New(), 2, 0, inviteClock.Add(time.Hour))

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM family_invites WHERE token`).
		WithArgs(inv.Token).
		WillReturnRows(inviteRows(inv))
	expectMembership(mock, inv.FamilyID, userID, true)
	mock.ExpectRollback()

	_, err := svc.RedeemByToken(context.Background(), inv.Token, userID)

	assert.ErrorIs(t, err, ErrAlreadyMember)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInviteService_Redeem_ConcurrentUpdate(t *testing.T) {
	svc, mock, events := setupInviteService(t)
	userID := uuid.New()
	inv := testInvite(uuid.New(), uuid.New(), 2, 1, inviteClock.Add(time.Hour))

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM family_invites WHERE token`).
		WithArgs(inv.Token).
		WillReturnRows(inviteRows(inv))
	expectMembership(mock, inv.FamilyID, userID, false)
	mock.ExpectQuery(`UPDATE family_invites SET used_count`).
		WithArgs(2, userID, models.InviteStatusAccepted, inv.ID, 1).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	_, err := svc.RedeemByToken(context.Background(), inv.Token, userID)

	assert.ErrorIs(t, err, ErrInviteConflict)
	assert.Empty(t, events.events)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInviteService_Redeem_SeatLimitReached(t *testing.T) {
	svc, mock, _ := setupInviteService(t)
	userID := uuid.New()
	inv := testInvite(uuid.New(), uuid.New(), 2, 0, inviteClock.Add(time.Hour))
	next := *inv
	next.UsedCount = 1
	next.AcceptedBy = []uuid.UUID{userID}

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM family_invites WHERE token`).
		WithArgs(inv.Token).
		WillReturnRows(inviteRows(inv))
	expectMembership(mock, inv.FamilyID, userID, false)
	mock.ExpectQuery(`UPDATE family_invites SET used_count`).
		WithArgs(1, userID, models.InviteStatusPending, inv.ID, 0).
		WillReturnRows(inviteRows(&next))
	mock.ExpectExec(`UPDATE user_billing SET seats_used`).
		WithArgs(inv.FamilyID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	_, err := svc.RedeemByToken(context.Background(), inv.Token, userID)

	assert.ErrorIs(t, err, ErrSeatLimitReached)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInviteService_RedeemByCode(t *testing.T) {
	svc, mock, _ := setupInviteService(t)
	userID := uuid.New()
	inv := testInvite(uuid.New(), uuid.New(), 2, 0, inviteClock.Add(time.Hour))

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM family_invites WHERE family_id = \$1 AND code = \$2`).
		WithArgs(inv.FamilyID, "AB23K9").
		WillReturnRows(inviteRows(inv))
	expectRedeem(mock, inv, userID)
	mock.ExpectCommit()

	got, err := svc.RedeemByCode(context.Background(), &inv.FamilyID, " ab23k9", userID)

	require.NoError(t, err)
	assert.Equal(t, 1, got.UsedCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInviteService_RedeemByCode_Global(t *testing.T) {
	t.Run("single match", func(t *testing.T) {
		svc, mock, _ := setupInviteService(t)
		userID := uuid.New()
		inv := testInvite(uuid.New(), uuid.New(), 2, 0, inviteClock.Add(time.Hour))

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT .+ FROM family_invites WHERE code = \$1 AND status = 'pending' LIMIT 2`).
			WithArgs("AB23K9").
			WillReturnRows(inviteRows(inv))
		expectRedeem(mock, inv, userID)
		mock.ExpectCommit()

		_, err := svc.RedeemByCode(context.Background(), nil, "AB23K9", userID)

		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ambiguous", func(t *testing.T) {
		svc, mock, _ := setupInviteService(t)
		a := testInvite(uuid.New(), uuid.New(), 2, 0, inviteClock.Add(time.Hour))
		b := testInvite(uuid.New(), uuid.New(), 2, 0, inviteClock.Add(time.Hour))

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT .+ FROM family_invites WHERE code = \$1`).
			WithArgs("AB23K9").
			WillReturnRows(inviteRows(a, b))
		mock.ExpectRollback()

		_, err := svc.RedeemByCode(context.Background(), nil, "AB23K9", uuid.New())

		assert.ErrorIs(t, err, ErrInviteCodeAmbiguous)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("none", func(t *testing.T) {
		svc, mock, _ := setupInviteService(t)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT .+ FROM family_invites WHERE code = \$1`).
			WithArgs("AB23K9").
			WillReturnRows(inviteRows())
		mock.ExpectRollback()

		_, err := svc.RedeemByCode(context.Background(), nil, "AB23K9", uuid.New())

		assert.ErrorIs(t, err, ErrInviteNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestInviteService_RedeemByCode_BadLength(t *testing.T) {
	svc, mock, _ := setupInviteService(t)

	_, err := svc.RedeemByCode(context.Background(), nil, "ABC", uuid.New())

	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInviteService_Revoke(t *testing.T) {
	svc, mock, events := setupInviteService(t)
	familyID, ownerID := uuid.New(), uuid.New()
	inv := testInvite(familyID, ownerID, 2, 1, inviteClock.Add(time.Hour))
	revoked := *inv
	revoked.Status = models.InviteStatusRevoked

	expectFamilyOwner(mock, familyID, ownerID)
	mock.ExpectQuery(`UPDATE family_invites SET status = 'revoked'`).
		WithArgs(inv.ID, familyID).
		WillReturnRows(inviteRows(&revoked))

	got, err := svc.Revoke(context.Background(), familyID, inv.ID, ownerID)

	require.NoError(t, err)
	assert.Equal(t, models.InviteStatusRevoked, got.Status)
	assert.Equal(t, 1, got.UsedCount)
	assert.Equal(t, []string{EventInviteRevoked}, events.names())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInviteService_Revoke_Errors(t *testing.T) {
	t.Run("non-owner", func(t *testing.T) {
		svc, mock, _ := setupInviteService(t)
		familyID := uuid.New()

		expectFamilyOwner(mock, familyID, uuid.New())

		_, err := svc.Revoke(context.Background(), familyID, uuid.New(), uuid.New())

		assert.ErrorIs(t, err, ErrOnlyOwnerCanRevoke)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already accepted", func(t *testing.T) {
		svc, mock, _ := setupInviteService(t)
		familyID, ownerID, inviteID := uuid.New(), uuid.New(), uuid.New()

		expectFamilyOwner(mock, familyID, ownerID)
		mock.ExpectQuery(`UPDATE family_invites SET status = 'revoked'`).
			WithArgs(inviteID, familyID).
			WillReturnError(pgx.ErrNoRows)
		mock.ExpectQuery(`SELECT status FROM family_invites`).
			WithArgs(inviteID, familyID).
			WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow(models.InviteStatusAccepted))

		_, err := svc.Revoke(context.Background(), familyID, inviteID, ownerID)

		assert.ErrorIs(t, err, ErrInviteNotPending)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing", func(t *testing.T) {
		svc, mock, _ := setupInviteService(t)
		familyID, ownerID, inviteID := uuid.New(), uuid.New(), uuid.New()

		expectFamilyOwner(mock, familyID, ownerID)
		mock.ExpectQuery(`UPDATE family_invites SET status = 'revoked'`).
			WithArgs(inviteID, familyID).
			WillReturnError(pgx.ErrNoRows)
		mock.ExpectQuery(`SELECT status FROM family_invites`).
			WithArgs(inviteID, familyID).
			WillReturnError(pgx.ErrNoRows)

		_, err := svc.Revoke(context.Background(), familyID, inviteID, ownerID)

		assert.ErrorIs(t, err, ErrInviteNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestInviteService_ListPending(t *testing.T) {
	svc, mock, _ := setupInviteService(t)
	familyID, ownerID := uuid.New(), uuid.New()
	inv := testInvite(familyID, ownerID, 2, 0, inviteClock.Add(time.Hour))

	expectFamilyOwner(mock, familyID, ownerID)
	mock.ExpectQuery(`SELECT .+ FROM family_invites WHERE family_id = \$1 AND status = 'pending' AND expires_at > \$2`).
		WithArgs(familyID, inviteClock).
		WillReturnRows(inviteRows(inv))

	got, err := svc.ListPending(context.Background(), familyID, ownerID)

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, inv.ID, got[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInviteService_GetByToken(t *testing.T) {
	svc, mock, _ := setupInviteService(t)
	familyID, ownerID := uuid.New(), uuid.New()
	inv := testInvite(familyID, ownerID, 2, 0, inviteClock.Add(-time.Hour))

	mock.ExpectQuery(`SELECT .+ FROM family_invites WHERE token`).
		WithArgs(inv.Token).
		WillReturnRows(inviteRows(inv))
	mock.ExpectQuery(`SELECT f.name, u.name FROM families f`).
		WithArgs(familyID, ownerID).
		WillReturnRows(pgxmock.NewRows([]string{"family", "inviter"}).AddRow("Ana's Family", "Ana"))

	preview, err := svc.GetByToken(context.Background(), inv.Token)

	require.NoError(t, err)
	assert.Equal(t, models.InviteStatusExpired, preview.Status)
	assert.Equal(t, models.InviteStatusPending, preview.Invite.Status)
	assert.Equal(t, "Ana's Family", preview.FamilyName)
	assert.Equal(t, "Ana", preview.InviterName)
	assert.NoError(t, mock.ExpectationsWereMet())
}
