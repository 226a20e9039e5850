package handlers

import (
	"net/http"

	"github.com/dimitrije/listshub-api/pkg/dto"
	"github.com/google/uuid"
	"github.com/m1z23r/drift/pkg/drift"
	log "github.com/sirupsen/logrus"
)

// AdminHandler serves master-only maintenance endpoints. Routes are expected
// behind middleware.RequireMaster.
type AdminHandler struct {
	userService   UserServiceInterface
	familyService FamilyServiceInterface
}

func NewAdminHandler(userService UserServiceInterface, familyService FamilyServiceInterface) *AdminHandler {
	return &AdminHandler{userService: userService, familyService: familyService}
}

func (h *AdminHandler) PromoteMaster(c *drift.Context) {
	var req dto.PromoteMasterRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}
	if req.Email == "" {
		c.BadRequest("email is required")
		return
	}

	user, err := h.userService.PromoteToMaster(c.Request.Context(), req.Email)
	if err != nil {
		respondError(c, err)
		return
	}

	log.WithField("user_id", user.ID).Info("user promoted to master")
	_ = c.JSON(http.StatusOK, dto.NewUserResponse(user))
}

// RecountSeats rebuilds seat counters from active links. An optional
// family_id query parameter limits the pass to that family's owner.
func (h *AdminHandler) RecountSeats(c *drift.Context) {
	var familyID *uuid.UUID
	if raw := c.QueryParam("family_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.BadRequest("invalid family id")
			return
		}
		familyID = &id
	}

	updated, err := h.familyService.RecountSeats(c.Request.Context(), familyID)
	if err != nil {
		respondError(c, err)
		return
	}

	_ = c.JSON(http.StatusOK, map[string]int64{"updated": updated})
}
