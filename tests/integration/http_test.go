package integration

import (
	"net/http"
	"testing"

	"github.com/dimitrije/listshub-api/internal/config"
	"github.com/dimitrije/listshub-api/internal/handlers"
	authmw "github.com/dimitrije/listshub-api/internal/middleware"
	"github.com/dimitrije/listshub-api/internal/models"
	"github.com/dimitrije/listshub-api/internal/oauth"
	"github.com/dimitrije/listshub-api/internal/services"
	"github.com/dimitrije/listshub-api/internal/sse"
	"github.com/dimitrije/listshub-api/pkg/dto"
	"github.com/dimitrije/listshub-api/tests/testutil"
	"github.com/m1z23r/drift/pkg/drift"
	"github.com/m1z23r/drift/pkg/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClient mounts the invite and membership routes over the real
// services.
func newTestClient(t *testing.T, e *env) *testutil.APIClient {
	t.Helper()
	jwtService := testutil.TestJWTService()
	hub := sse.NewHub()

	authHandler := handlers.NewAuthHandler(&config.Config{}, oauth.NewRegistry(), e.accounts, e.users, e.tokens, jwtService)
	userHandler := handlers.NewUserHandler(e.users, e.sessions, e.families)
	familyHandler := handlers.NewFamilyHandler(e.families, hub)
	inviteHandler := handlers.NewInviteHandler(e.invites, e.families, e.users, e.mailer, "https://lists.example.com")

	app := drift.New()
	app.Use(middleware.BodyParser())

	app.Post("/auth/signup", authHandler.SignUp)
	app.Post("/auth/signup/invite", authHandler.SignUpWithInvite)

	protected := app.Group("")
	protected.Use(authmw.Auth(jwtService))
	protected.Get("/users/me/session", userHandler.GetSession)
	protected.Get("/families/:familyId", familyHandler.Get)
	protected.Delete("/families/:familyId/members/:userId", familyHandler.RemoveMember)
	protected.Post("/families/:familyId/invites", inviteHandler.Create)
	protected.Post("/invites/redeem-code", inviteHandler.RedeemByCode)

	return testutil.NewAPIClient(t, app)
}

func TestHTTP_Integration_InviteJoinAndRemove(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	e := setupTest(t)
	client := newTestClient(t, e)

	var owner dto.AuthResponse
	client.Post("/auth/signup", dto.SignUpRequest{
		Email:    "owner@example.com",
		Password: "owner-pass",
		Name:     "Olivera",
	}).Expect(http.StatusCreated).Decode(&owner)
	require.NotNil(t, owner.User.PrimaryFamilyID)
	familyID := *owner.User.PrimaryFamilyID
	familyPath := "/families/" + familyID.String()
	asOwner := client.As(owner.AccessToken)

	var invite dto.InviteResponse
	asOwner.Post(familyPath+"/invites", dto.CreateInviteRequest{}).Expect(http.StatusCreated).Decode(&invite)
	assert.Equal(t, 2, invite.MaxUses)
	assert.Equal(t, "https://lists.example.com/invite/"+invite.Token.String(), invite.InviteURL)

	var kid dto.AuthResponse
	client.Post("/auth/signup/invite", dto.SignUpWithInviteRequest{
		SignUpRequest: dto.SignUpRequest{Email: "kid@example.com", Password: "kid-password", Name: "Kid"},
		InviteToken:   invite.Token,
	}).Expect(http.StatusCreated).Decode(&kid)
	assert.Equal(t, models.UserRoleMember, kid.User.Role)
	assert.Equal(t, familyID, *kid.User.PrimaryFamilyID)
	asKid := client.As(kid.AccessToken)

	// members cannot invite
	asKid.Post(familyPath+"/invites", dto.CreateInviteRequest{}).Expect(http.StatusForbidden)

	var family dto.FamilyResponse
	asKid.Get(familyPath).Expect(http.StatusOK).Decode(&family)
	assert.Len(t, family.Members, 2)

	var removal services.RemovalResult
	asOwner.Delete(familyPath + "/members/" + kid.User.ID.String()).Expect(http.StatusOK).Decode(&removal)
	assert.Equal(t, services.RemovalProvisioned, removal.Outcome)

	// The removed member now works in a family of their own.
	var session services.Session
	asKid.Get("/users/me/session").Expect(http.StatusOK).Decode(&session)
	require.NotNil(t, session.ManagedFamilyID)
	assert.Equal(t, removal.PrimaryFamilyID, *session.ManagedFamilyID)
	assert.Equal(t, models.UserRoleTitular, session.User.Role)

	asKid.Get(familyPath).Expect(http.StatusNotFound)
}

func TestHTTP_Integration_RedeemExpiredCode(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	e := setupTest(t)
	client := newTestClient(t, e)

	owner, family := e.fixtures.CreateOwner(t)
	joiner := e.fixtures.CreateUser(t)
	invite := e.fixtures.CreateInvite(t, family, owner, testutil.WithCode("ZZ9XY8"))
	_, err := e.db.Pool.Exec(t.Context(), `UPDATE family_invites SET expires_at = NOW() - INTERVAL '1 hour' WHERE id = $1`, invite.ID)
	require.NoError(t, err)

	token := testutil.GenerateTestToken(t, joiner.ID, joiner.Email, joiner.Role)
	res := client.As(token).
		Post("/invites/redeem-code", dto.RedeemCodeRequest{Code: "zz9xy8", FamilyID: &family.ID}).
		Expect(http.StatusGone)
	assert.Equal(t, services.ErrInviteExpired.Error(), res.ErrorMessage())
}
