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

type ListHandler struct {
	listService   ListServiceInterface
	familyService FamilyServiceInterface
}

func NewListHandler(listService ListServiceInterface, familyService FamilyServiceInterface) *ListHandler {
	return &ListHandler{listService: listService, familyService: familyService}
}

type listWithItems struct {
	*models.List
	Items []models.ListItem `json:"items"`
}

// canAccessFamily reports whether the caller is an active member of the
// family. Masters can access every family.
func (h *ListHandler) canAccessFamily(c *drift.Context, familyID, userID uuid.UUID) (bool, error) {
	if middleware.GetUserRole(c) == models.UserRoleMaster {
		return true, nil
	}
	return h.familyService.IsActiveMember(c.Request.Context(), familyID, userID)
}

// loadList fetches the list named by the listId param and checks access.
// It writes the error response itself and returns nil on failure.
func (h *ListHandler) loadList(c *drift.Context, userID uuid.UUID) *models.List {
	listID, err := uuid.Parse(c.Param("listId"))
	if err != nil {
		c.BadRequest("invalid list id")
		return nil
	}

	ctx := c.Request.Context()
	list, err := h.listService.GetByID(ctx, listID)
	if err != nil {
		respondError(c, err)
		return nil
	}

	ok, err := h.canAccessFamily(c, list.FamilyID, userID)
	if err != nil {
		respondError(c, err)
		return nil
	}
	if !ok {
		respondError(c, services.ErrListNotFound)
		return nil
	}
	return list
}

func (h *ListHandler) Create(c *drift.Context) {
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

	var req dto.CreateListRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	list, err := h.listService.Create(c.Request.Context(), familyID, userID, req.Name, req.Kind)
	if err != nil {
		respondError(c, err)
		return
	}

	_ = c.JSON(http.StatusCreated, list)
}

func (h *ListHandler) ListByFamily(c *drift.Context) {
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

	ctx := c.Request.Context()
	ok, err := h.canAccessFamily(c, familyID, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	if !ok {
		respondError(c, services.ErrFamilyNotFound)
		return
	}

	lists, err := h.listService.ListByFamily(ctx, familyID)
	if err != nil {
		respondError(c, err)
		return
	}

	_ = c.JSON(http.StatusOK, lists)
}

func (h *ListHandler) Get(c *drift.Context) {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		c.Unauthorized("not authenticated")
		return
	}

	list := h.loadList(c, userID)
	if list == nil {
		return
	}

	items, err := h.listService.Items(c.Request.Context(), list.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	_ = c.JSON(http.StatusOK, listWithItems{List: list, Items: items})
}

func (h *ListHandler) Delete(c *drift.Context) {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		c.Unauthorized("not authenticated")
		return
	}

	listID, err := uuid.Parse(c.Param("listId"))
	if err != nil {
		c.BadRequest("invalid list id")
		return
	}

	if err := h.listService.Delete(c.Request.Context(), listID, userID); err != nil {
		respondError(c, err)
		return
	}

	_ = c.JSON(http.StatusOK, dto.MessageResponse{Message: "list deleted"})
}

func (h *ListHandler) AddItem(c *drift.Context) {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		c.Unauthorized("not authenticated")
		return
	}

	listID, err := uuid.Parse(c.Param("listId"))
	if err != nil {
		c.BadRequest("invalid list id")
		return
	}

	var req dto.AddItemRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	item, err := h.listService.AddItem(c.Request.Context(), listID, userID, req.Name, req.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}

	_ = c.JSON(http.StatusCreated, item)
}

func (h *ListHandler) ToggleItem(c *drift.Context) {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		c.Unauthorized("not authenticated")
		return
	}

	list := h.loadList(c, userID)
	if list == nil {
		return
	}

	itemID, err := uuid.Parse(c.Param("itemId"))
	if err != nil {
		c.BadRequest("invalid item id")
		return
	}

	var req dto.ToggleItemRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}
	if req.Version < 1 {
		c.BadRequest("version is required")
		return
	}

	item, err := h.listService.ToggleItem(c.Request.Context(), list.ID, itemID, req.Checked, req.Version)
	if err != nil {
		respondError(c, err)
		return
	}

	_ = c.JSON(http.StatusOK, item)
}

func (h *ListHandler) DeleteItem(c *drift.Context) {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		c.Unauthorized("not authenticated")
		return
	}

	list := h.loadList(c, userID)
	if list == nil {
		return
	}

	itemID, err := uuid.Parse(c.Param("itemId"))
	if err != nil {
		c.BadRequest("invalid item id")
		return
	}

	if err := h.listService.DeleteItem(c.Request.Context(), list.ID, itemID); err != nil {
		respondError(c, err)
		return
	}

	_ = c.JSON(http.StatusOK, dto.MessageResponse{Message: "item deleted"})
}
