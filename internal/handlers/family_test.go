package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/dimitrije/listshub-api/internal/entitlement"
	"github.com/dimitrije/listshub-api/internal/middleware"
	"github.com/dimitrije/listshub-api/internal/models"
	"github.com/dimitrije/listshub-api/internal/services"
	"github.com/dimitrije/listshub-api/pkg/dto"
	"github.com/dimitrije/listshub-api/tests/testutil"
	"github.com/google/uuid"
	"github.com/m1z23r/drift/pkg/drift"
	driftmw "github.com/m1z23r/drift/pkg/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func setupFamilyTest(t *testing.T) (*testutil.MockFamilyService, *testutil.MockHub, *FamilyHandler, *services.JWTService) {
	t.Helper()
	families := new(testutil.MockFamilyService)
	hub := new(testutil.MockHub)
	return families, hub, NewFamilyHandler(families, hub), newTestJWTService()
}

func testFamily(ownerID uuid.UUID, members ...uuid.UUID) *models.Family {
	f := &models.Family{
		ID:      uuid.New(),
		Name:    "Ana's Family",
		OwnerID: ownerID,
		Members: map[uuid.UUID]*models.MemberProfile{
			ownerID: {UserID: ownerID, Role: models.MemberRoleOwner, Status: models.MemberStatusActive, JoinedAt: time.Now()},
		},
	}
	for _, id := range members {
		f.Members[id] = &models.MemberProfile{UserID: id, Role: models.MemberRoleCollaborator, Status: models.MemberStatusActive, JoinedAt: time.Now()}
	}
	return f
}

func TestFamilyHandler_Create(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		families, _, handler, jwtSvc := setupFamilyTest(t)

		ownerID := uuid.New()
		family := testFamily(ownerID)
		families.On("Create", mock.Anything, ownerID, "Weekend House").Return(family, nil)

		app := drift.New()
		app.Use(driftmw.BodyParser())
		app.Use(middleware.Auth(jwtSvc))
		app.Post("/families", handler.Create)

		rec := doRequest(t, app, http.MethodPost, "/families", dto.CreateFamilyRequest{Name: "Weekend House"}, generateTestToken(t, jwtSvc, ownerID, models.UserRoleTitular))

		assert.Equal(t, http.StatusCreated, rec.Code)
		var resp dto.FamilyResponse
		decode(t, rec, &resp)
		assert.Equal(t, family.ID, resp.ID)
		require.Len(t, resp.Members, 1)
		assert.Equal(t, models.MemberRoleOwner, resp.Members[0].Role)
		families.AssertExpectations(t)
	})

	t.Run("plan limit", func(t *testing.T) {
		families, _, handler, jwtSvc := setupFamilyTest(t)

		ownerID := uuid.New()
		families.On("Create", mock.Anything, ownerID, "Second").Return(nil, &services.EntitlementError{
			Action:   entitlement.ActionCreateFamily,
			Decision: entitlement.Decision{Allowed: false, Reason: entitlement.ReasonFamilyLimit, Limit: 1, Current: 1},
		})

		app := drift.New()
		app.Use(driftmw.BodyParser())
		app.Use(middleware.Auth(jwtSvc))
		app.Post("/families", handler.Create)

		rec := doRequest(t, app, http.MethodPost, "/families", dto.CreateFamilyRequest{Name: "Second"}, generateTestToken(t, jwtSvc, ownerID, models.UserRoleTitular))

		assert.Equal(t, http.StatusForbidden, rec.Code)
		var resp dto.EntitlementErrorResponse
		decode(t, rec, &resp)
		assert.Equal(t, entitlement.ActionCreateFamily, resp.Action)
		assert.False(t, resp.Decision.Allowed)
		assert.Equal(t, 1, resp.Decision.Current)
	})

	t.Run("missing name", func(t *testing.T) {
		_, _, handler, jwtSvc := setupFamilyTest(t)

		app := drift.New()
		app.Use(driftmw.BodyParser())
		app.Use(middleware.Auth(jwtSvc))
		app.Post("/families", handler.Create)

		rec := doRequest(t, app, http.MethodPost, "/families", dto.CreateFamilyRequest{}, generateTestToken(t, jwtSvc, uuid.New(), models.UserRoleTitular))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestFamilyHandler_List(t *testing.T) {
	families, _, handler, jwtSvc := setupFamilyTest(t)

	userID := uuid.New()
	families.On("ListForUser", mock.Anything, userID).Return([]models.Family{*testFamily(uuid.New(), userID)}, nil)

	app := drift.New()
	app.Use(driftmw.BodyParser())
	app.Use(middleware.Auth(jwtSvc))
	app.Get("/families", handler.List)

	rec := doRequest(t, app, http.MethodGet, "/families", nil, generateTestToken(t, jwtSvc, userID, models.UserRoleMember))

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp []models.Family
	decode(t, rec, &resp)
	assert.Len(t, resp, 1)
}

func TestFamilyHandler_Get(t *testing.T) {
	tests := []struct {
		name   string
		member bool
		role   models.UserRole
		status int
	}{
		{"active member", true, models.UserRoleMember, http.StatusOK},
		{"outsider", false, models.UserRoleTitular, http.StatusNotFound},
		{"master outsider", false, models.UserRoleMaster, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			families, _, handler, jwtSvc := setupFamilyTest(t)

			userID := uuid.New()
			family := testFamily(uuid.New())
			if tt.member {
				family = testFamily(uuid.New(), userID)
			}
			families.On("GetByID", mock.Anything, family.ID).Return(family, nil)

			app := drift.New()
			app.Use(driftmw.BodyParser())
			app.Use(middleware.Auth(jwtSvc))
			app.Get("/families/:familyId", handler.Get)

			rec := doRequest(t, app, http.MethodGet, "/families/"+family.ID.String(), nil, generateTestToken(t, jwtSvc, userID, tt.role))

			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestFamilyHandler_Get_InvalidID(t *testing.T) {
	_, _, handler, jwtSvc := setupFamilyTest(t)

	app := drift.New()
	app.Use(driftmw.BodyParser())
	app.Use(middleware.Auth(jwtSvc))
	app.Get("/families/:familyId", handler.Get)

	rec := doRequest(t, app, http.MethodGet, "/families/not-a-uuid", nil, generateTestToken(t, jwtSvc, uuid.New(), models.UserRoleMember))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid family id")
}

func TestFamilyHandler_AddMember(t *testing.T) {
	t.Run("owner adds and the service picks the role", func(t *testing.T) {
		families, _, handler, jwtSvc := setupFamilyTest(t)

		ownerID := uuid.New()
		newMember := uuid.New()
		family := testFamily(ownerID)
		joined := testFamily(ownerID, newMember)
		joined.ID = family.ID

		families.On("GetByID", mock.Anything, family.ID).Return(family, nil).Once()
		families.On("AddMember", mock.Anything, family.ID, newMember, models.MemberRole("")).Return(nil)
		families.On("GetByID", mock.Anything, family.ID).Return(joined, nil).Once()

		app := drift.New()
		app.Use(driftmw.BodyParser())
		app.Use(middleware.Auth(jwtSvc))
		app.Post("/families/:familyId/members", handler.AddMember)

		rec := doRequest(t, app, http.MethodPost, "/families/"+family.ID.String()+"/members", dto.AddMemberRequest{UserID: newMember}, generateTestToken(t, jwtSvc, ownerID, models.UserRoleTitular))

		assert.Equal(t, http.StatusOK, rec.Code)
		var resp dto.FamilyResponse
		decode(t, rec, &resp)
		assert.Len(t, resp.Members, 2)
		families.AssertExpectations(t)
	})

	t.Run("non-owner is refused", func(t *testing.T) {
		families, _, handler, jwtSvc := setupFamilyTest(t)

		memberID := uuid.New()
		family := testFamily(uuid.New(), memberID)
		families.On("GetByID", mock.Anything, family.ID).Return(family, nil)

		app := drift.New()
		app.Use(driftmw.BodyParser())
		app.Use(middleware.Auth(jwtSvc))
		app.Post("/families/:familyId/members", handler.AddMember)

		rec := doRequest(t, app, http.MethodPost, "/families/"+family.ID.String()+"/members", dto.AddMemberRequest{UserID: uuid.New()}, generateTestToken(t, jwtSvc, memberID, models.UserRoleMember))

		assert.Equal(t, http.StatusForbidden, rec.Code)
		families.AssertNotCalled(t, "AddMember", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("member limit reached", func(t *testing.T) {
		families, _, handler, jwtSvc := setupFamilyTest(t)

		ownerID := uuid.New()
		family := testFamily(ownerID, uuid.New(), uuid.New())
		families.On("GetByID", mock.Anything, family.ID).Return(family, nil)
		families.On("AddMember", mock.Anything, family.ID, mock.Anything, models.MemberRole("")).Return(&services.EntitlementError{
			Action:   entitlement.ActionInviteMember,
			Decision: entitlement.Decision{Allowed: false, Reason: entitlement.ReasonMemberLimit, Limit: 3, Current: 3},
		})

		app := drift.New()
		app.Use(driftmw.BodyParser())
		app.Use(middleware.Auth(jwtSvc))
		app.Post("/families/:familyId/members", handler.AddMember)

		rec := doRequest(t, app, http.MethodPost, "/families/"+family.ID.String()+"/members", dto.AddMemberRequest{UserID: uuid.New()}, generateTestToken(t, jwtSvc, ownerID, models.UserRoleTitular))

		assert.Equal(t, http.StatusForbidden, rec.Code)
		var resp dto.EntitlementErrorResponse
		decode(t, rec, &resp)
		assert.Equal(t, entitlement.ActionInviteMember, resp.Action)
		assert.Equal(t, entitlement.ReasonMemberLimit, resp.Decision.Reason)
		assert.Equal(t, 3, resp.Decision.Current)
	})

	t.Run("no free seat", func(t *testing.T) {
		families, _, handler, jwtSvc := setupFamilyTest(t)

		ownerID := uuid.New()
		family := testFamily(ownerID)
		families.On("GetByID", mock.Anything, family.ID).Return(family, nil).Once()
		families.On("AddMember", mock.Anything, family.ID, mock.Anything, models.MemberRoleViewer).Return(services.ErrSeatLimitReached)

		app := drift.New()
		app.Use(driftmw.BodyParser())
		app.Use(middleware.Auth(jwtSvc))
		app.Post("/families/:familyId/members", handler.AddMember)

		rec := doRequest(t, app, http.MethodPost, "/families/"+family.ID.String()+"/members", dto.AddMemberRequest{UserID: uuid.New(), Role: models.MemberRoleViewer}, generateTestToken(t, jwtSvc, ownerID, models.UserRoleTitular))

		assert.Equal(t, http.StatusConflict, rec.Code)
		families.AssertExpectations(t)
	})

	t.Run("invalid role", func(t *testing.T) {
		families, _, handler, jwtSvc := setupFamilyTest(t)

		ownerID := uuid.New()
		family := testFamily(ownerID)
		families.On("GetByID", mock.Anything, family.ID).Return(family, nil)
		families.On("AddMember", mock.Anything, family.ID, mock.Anything, models.MemberRole("admin")).Return(services.ErrInvalidInput)

		app := drift.New()
		app.Use(driftmw.BodyParser())
		app.Use(middleware.Auth(jwtSvc))
		app.Post("/families/:familyId/members", handler.AddMember)

		rec := doRequest(t, app, http.MethodPost, "/families/"+family.ID.String()+"/members", dto.AddMemberRequest{UserID: uuid.New(), Role: "admin"}, generateTestToken(t, jwtSvc, ownerID, models.UserRoleTitular))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestFamilyHandler_RemoveMember(t *testing.T) {
	t.Run("removes and drops live subscriptions", func(t *testing.T) {
		families, hub, handler, jwtSvc := setupFamilyTest(t)

		ownerID := uuid.New()
		memberID := uuid.New()
		familyID := uuid.New()
		result := &services.RemovalResult{UserID: memberID, Outcome: services.RemovalProvisioned, PrimaryFamilyID: uuid.New()}

		families.On("RemoveMember", mock.Anything, familyID, ownerID, memberID).Return(result, nil)
		hub.On("UnsubscribeUser", memberID, familyID).Return()

		app := drift.New()
		app.Use(driftmw.BodyParser())
		app.Use(middleware.Auth(jwtSvc))
		app.Delete("/families/:familyId/members/:userId", handler.RemoveMember)

		rec := doRequest(t, app, http.MethodDelete, "/families/"+familyID.String()+"/members/"+memberID.String(), nil, generateTestToken(t, jwtSvc, ownerID, models.UserRoleTitular))

		assert.Equal(t, http.StatusOK, rec.Code)
		var resp services.RemovalResult
		decode(t, rec, &resp)
		assert.Equal(t, result.PrimaryFamilyID, resp.PrimaryFamilyID)
		families.AssertExpectations(t)
		hub.AssertExpectations(t)
	})

	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"owner cannot be removed", services.ErrCannotRemoveOwner, http.StatusForbidden},
		{"not the owner", services.ErrNotFamilyOwner, http.StatusForbidden},
		{"not a member", services.ErrNotFamilyMember, http.StatusForbidden},
		{"family missing", services.ErrFamilyNotFound, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			families, hub, handler, jwtSvc := setupFamilyTest(t)
			families.On("RemoveMember", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, tt.err)

			app := drift.New()
			app.Use(driftmw.BodyParser())
			app.Use(middleware.Auth(jwtSvc))
			app.Delete("/families/:familyId/members/:userId", handler.RemoveMember)

			rec := doRequest(t, app, http.MethodDelete, "/families/"+uuid.NewString()+"/members/"+uuid.NewString(), nil, generateTestToken(t, jwtSvc, uuid.New(), models.UserRoleTitular))

			assert.Equal(t, tt.status, rec.Code)
			hub.AssertNotCalled(t, "UnsubscribeUser", mock.Anything, mock.Anything)
		})
	}
}
