package handlers

import (
	"net/http"

	"github.com/dimitrije/listshub-api/internal/middleware"
	"github.com/dimitrije/listshub-api/internal/services"
	"github.com/dimitrije/listshub-api/pkg/dto"
	"github.com/google/uuid"
	"github.com/m1z23r/drift/pkg/drift"
)

type UserHandler struct {
	userService    UserServiceInterface
	sessionService SessionServiceInterface
	familyService  FamilyServiceInterface
}

func NewUserHandler(userService UserServiceInterface, sessionService SessionServiceInterface, familyService FamilyServiceInterface) *UserHandler {
	return &UserHandler{
		userService:    userService,
		sessionService: sessionService,
		familyService:  familyService,
	}
}

func (h *UserHandler) GetMe(c *drift.Context) {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		c.Unauthorized("not authenticated")
		return
	}

	user, err := h.userService.GetByID(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	_ = c.JSON(http.StatusOK, dto.NewUserResponse(user))
}

func (h *UserHandler) UpdateMe(c *drift.Context) {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		c.Unauthorized("not authenticated")
		return
	}

	var req dto.UpdateUserRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	user, err := h.userService.Update(c.Request.Context(), userID, services.UpdateUserInput{
		Name:      req.Name,
		Locale:    req.Locale,
		AvatarURL: req.AvatarURL,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	_ = c.JSON(http.StatusOK, dto.NewUserResponse(user))
}

// GetSession returns the bootstrapped session: active families, the managed
// family and the current entitlement decisions.
func (h *UserHandler) GetSession(c *drift.Context) {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		c.Unauthorized("not authenticated")
		return
	}

	session, err := h.sessionService.Bootstrap(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	_ = c.JSON(http.StatusOK, session)
}

func (h *UserHandler) SwitchPrimaryFamily(c *drift.Context) {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		c.Unauthorized("not authenticated")
		return
	}

	var req dto.SwitchPrimaryFamilyRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}
	if req.FamilyID == uuid.Nil {
		c.BadRequest("family_id is required")
		return
	}

	ctx := c.Request.Context()
	if err := h.familyService.SwitchPrimaryFamily(ctx, userID, req.FamilyID); err != nil {
		respondError(c, err)
		return
	}

	user, err := h.userService.GetByID(ctx, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	_ = c.JSON(http.StatusOK, dto.NewUserResponse(user))
}
