package handlers

import (
	"net/http"

	"github.com/dimitrije/listshub-api/internal/middleware"
	"github.com/dimitrije/listshub-api/internal/models"
	"github.com/dimitrije/listshub-api/internal/services"
	"github.com/dimitrije/listshub-api/pkg/dto"
	"github.com/google/uuid"
	"github.com/m1z23r/drift/pkg/drift"
)

type FamilyHandler struct {
	familyService FamilyServiceInterface
	hub           HubInterface
}

func NewFamilyHandler(familyService FamilyServiceInterface, hub HubInterface) *FamilyHandler {
	return &FamilyHandler{familyService: familyService, hub: hub}
}

func (h *FamilyHandler) Create(c *drift.Context) {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		c.Unauthorized("not authenticated")
		return
	}

	var req dto.CreateFamilyRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}
	if req.Name == "" {
		c.BadRequest("name is required")
		return
	}

	family, err := h.familyService.Create(c.Request.Context(), userID, req.Name)
	if err != nil {
		respondError(c, err)
		return
	}

	_ = c.JSON(http.StatusCreated, dto.NewFamilyResponse(family))
}

func (h *FamilyHandler) List(c *drift.Context) {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		c.Unauthorized("not authenticated")
		return
	}

	families, err := h.familyService.ListForUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	_ = c.JSON(http.StatusOK, families)
}

func (h *FamilyHandler) Get(c *drift.Context) {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		c.Unauthorized("not authenticated")
		return
	}

	familyID, err := uuid.Parse(c.Param("familyId"))
	if err != nil {
		c.BadRequest("invalid family id")
		return
	}

	family, err := h.familyService.GetByID(c.Request.Context(), familyID)
	if err != nil {
		respondError(c, err)
		return
	}

	// Non-members get the same answer as for a missing family.
	if !family.IsActiveMember(userID) && middleware.GetUserRole(c) != models.UserRoleMaster {
		respondError(c, services.ErrFamilyNotFound)
		return
	}

	_ = c.JSON(http.StatusOK, dto.NewFamilyResponse(family))
}

// AddMember attaches an existing account directly. Only the owner or a
// master may do this; everyone else joins through an invite.
func (h *FamilyHandler) AddMember(c *drift.Context) {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		c.Unauthorized("not authenticated")
		return
	}

	familyID, err := uuid.Parse(c.Param("familyId"))
	if err != nil {
		c.BadRequest("invalid family id")
		return
	}

	var req dto.AddMemberRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}
	if req.UserID == uuid.Nil {
		c.BadRequest("user_id is required")
		return
	}

	ctx := c.Request.Context()
	family, err := h.familyService.GetByID(ctx, familyID)
	if err != nil {
		respondError(c, err)
		return
	}
	if family.OwnerID != userID && middleware.GetUserRole(c) != models.UserRoleMaster {
		respondError(c, services.ErrNotFamilyOwner)
		return
	}

	if err := h.familyService.AddMember(ctx, familyID, req.UserID, req.Role); err != nil {
		respondError(c, err)
		return
	}

	family, err = h.familyService.GetByID(ctx, familyID)
	if err != nil {
		respondError(c, err)
		return
	}

	_ = c.JSON(http.StatusOK, dto.NewFamilyResponse(family))
}

func (h *FamilyHandler) RemoveMember(c *drift.Context) {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		c.Unauthorized("not authenticated")
		return
	}

	familyID, err := uuid.Parse(c.Param("familyId"))
	if err != nil {
		c.BadRequest("invalid family id")
		return
	}

	memberID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		c.BadRequest("invalid user id")
		return
	}

	result, err := h.familyService.RemoveMember(c.Request.Context(), familyID, userID, memberID)
	if err != nil {
		respondError(c, err)
		return
	}

	h.hub.UnsubscribeUser(memberID, familyID)

	_ = c.JSON(http.StatusOK, result)
}
