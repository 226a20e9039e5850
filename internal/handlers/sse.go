package handlers

import (
	"fmt"
	"net/http"

	"github.com/dimitrije/listshub-api/internal/middleware"
	"github.com/dimitrije/listshub-api/internal/models"
	"github.com/dimitrije/listshub-api/internal/services"
	"github.com/dimitrije/listshub-api/internal/sse"
	"github.com/dimitrije/listshub-api/pkg/dto"
	"github.com/google/uuid"
	"github.com/m1z23r/drift/pkg/drift"
)

type SSEHandler struct {
	hub           HubInterface
	familyService FamilyServiceInterface
}

func NewSSEHandler(hub HubInterface, familyService FamilyServiceInterface) *SSEHandler {
	return &SSEHandler{
		hub:           hub,
		familyService: familyService,
	}
}

// Connect opens an event stream subscribed to every family the user is an
// active member of.
func (h *SSEHandler) Connect(c *drift.Context) {
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
	familyIDs := make([]uuid.UUID, 0, len(families))
	for _, f := range families {
		familyIDs = append(familyIDs, f.ID)
	}

	sseCtx := c.SSE()

	clientID := uuid.New().String()
	client := sse.NewClient(clientID, userID, familyIDs...)

	h.hub.Register(client)
	defer h.hub.Unregister(client)

	if err := sseCtx.SendJSON(map[string]any{
		"type":      "connected",
		"client_id": clientID,
		"families":  familyIDs,
	}, "system", ""); err != nil {
		return
	}

	done := c.Request.Context().Done()
	for {
		select {
		case msg, ok := <-client.Send:
			if !ok {
				return
			}
			if err := sseCtx.Send(string(msg), "message", ""); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// streamTarget reads the stream and family from the route. It writes the
// error response itself and returns ok=false on bad input.
func streamTarget(c *drift.Context) (userID uuid.UUID, clientID string, familyID uuid.UUID, ok bool) {
	userID = middleware.GetUserID(c)
	if userID == uuid.Nil {
		c.Unauthorized("not authenticated")
		return uuid.Nil, "", uuid.Nil, false
	}

	clientID = c.Param("clientId")
	if clientID == "" {
		c.BadRequest("client_id is required")
		return uuid.Nil, "", uuid.Nil, false
	}

	familyID, err := uuid.Parse(c.Param("familyId"))
	if err != nil {
		c.BadRequest("invalid family id")
		return uuid.Nil, "", uuid.Nil, false
	}
	return userID, clientID, familyID, true
}

// Subscribe adds a family to one of the caller's open streams. Only active
// members (or a master) may follow a family.
func (h *SSEHandler) Subscribe(c *drift.Context) {
	userID, clientID, familyID, ok := streamTarget(c)
	if !ok {
		return
	}

	if middleware.GetUserRole(c) != models.UserRoleMaster {
		isMember, err := h.familyService.IsActiveMember(c.Request.Context(), familyID, userID)
		if err != nil {
			respondError(c, err)
			return
		}
		if !isMember {
			respondError(c, services.ErrFamilyNotFound)
			return
		}
	}

	if !h.hub.SubscribeToFamily(clientID, userID, familyID) {
		c.NotFound("event stream not found")
		return
	}

	_ = c.JSON(http.StatusOK, dto.MessageResponse{
		Message: fmt.Sprintf("subscribed to family %s", familyID),
	})
}

func (h *SSEHandler) Unsubscribe(c *drift.Context) {
	userID, clientID, familyID, ok := streamTarget(c)
	if !ok {
		return
	}

	if !h.hub.UnsubscribeFromFamily(clientID, userID, familyID) {
		c.NotFound("event stream not found")
		return
	}

	_ = c.JSON(http.StatusOK, dto.MessageResponse{
		Message: fmt.Sprintf("unsubscribed from family %s", familyID),
	})
}
