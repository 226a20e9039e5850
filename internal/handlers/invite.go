package handlers

import (
	"bytes"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/dimitrije/listshub-api/internal/middleware"
	"github.com/dimitrije/listshub-api/internal/models"
	"github.com/dimitrije/listshub-api/internal/services"
	"github.com/dimitrije/listshub-api/pkg/dto"
	"github.com/google/uuid"
	"github.com/m1z23r/drift/pkg/drift"
	log "github.com/sirupsen/logrus"
)

type InviteHandler struct {
	inviteService InviteServiceInterface
	familyService FamilyServiceInterface
	userService   UserServiceInterface
	mailer        services.Mailer
	baseURL       string
}

// NewInviteHandler builds invite links as baseURL/invite/<token>. A nil
// mailer disables invite emails.
func NewInviteHandler(
	inviteService InviteServiceInterface,
	familyService FamilyServiceInterface,
	userService UserServiceInterface,
	mailer services.Mailer,
	baseURL string,
) *InviteHandler {
	return &InviteHandler{
		inviteService: inviteService,
		familyService: familyService,
		userService:   userService,
		mailer:        mailer,
		baseURL:       strings.TrimRight(baseURL, "/"),
	}
}

func (h *InviteHandler) inviteURL(token uuid.UUID) string {
	return h.baseURL + "/invite/" + token.String()
}

func (h *InviteHandler) response(inv *models.FamilyInvite) dto.InviteResponse {
	return dto.InviteResponse{FamilyInvite: inv, InviteURL: h.inviteURL(inv.Token)}
}

func (h *InviteHandler) Create(c *drift.Context) {
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

	var req dto.CreateInviteRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}
	if req.ExpiresInHours < 0 {
		c.BadRequest("expires_in_hours must not be negative")
		return
	}

	ctx := c.Request.Context()
	invite, err := h.inviteService.Create(ctx, familyID, userID, time.Duration(req.ExpiresInHours)*time.Hour)
	if err != nil {
		respondError(c, err)
		return
	}

	if req.Email != "" && h.mailer != nil {
		h.sendInvite(c, invite, req.Email, userID)
	}

	_ = c.JSON(http.StatusCreated, h.response(invite))
}

// sendInvite mails the invite link. Failures are logged; the invite stays
// valid and can be shared by code.
func (h *InviteHandler) sendInvite(c *drift.Context, invite *models.FamilyInvite, to string, inviterID uuid.UUID) {
	ctx := c.Request.Context()
	logger := log.WithFields(log.Fields{"invite_id": invite.ID, "family_id": invite.FamilyID})

	familyName := "a family"
	if family, err := h.familyService.GetByID(ctx, invite.FamilyID); err == nil {
		familyName = family.Name
	}
	inviterName := "Someone"
	if inviter, err := h.userService.GetByID(ctx, inviterID); err == nil {
		inviterName = inviter.Name
	}

	if err := h.mailer.SendFamilyInvite(ctx, to, familyName, inviterName, h.inviteURL(invite.Token), invite.Code); err != nil {
		logger.WithError(err).Warn("failed to send invite email")
	}
}

func (h *InviteHandler) ListPending(c *drift.Context) {
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

	invites, err := h.inviteService.ListPending(c.Request.Context(), familyID, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := make([]dto.InviteResponse, 0, len(invites))
	for i := range invites {
		resp = append(resp, h.response(&invites[i]))
	}
	_ = c.JSON(http.StatusOK, resp)
}

func (h *InviteHandler) Revoke(c *drift.Context) {
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

	inviteID, err := uuid.Parse(c.Param("inviteId"))
	if err != nil {
		c.BadRequest("invalid invite id")
		return
	}

	invite, err := h.inviteService.Revoke(c.Request.Context(), familyID, inviteID, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	_ = c.JSON(http.StatusOK, h.response(invite))
}

func (h *InviteHandler) RedeemByID(c *drift.Context) {
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

	inviteID, err := uuid.Parse(c.Param("inviteId"))
	if err != nil {
		c.BadRequest("invalid invite id")
		return
	}

	invite, err := h.inviteService.RedeemByID(c.Request.Context(), familyID, inviteID, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	_ = c.JSON(http.StatusOK, h.response(invite))
}

func (h *InviteHandler) RedeemByToken(c *drift.Context) {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		c.Unauthorized("not authenticated")
		return
	}

	var req dto.RedeemTokenRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}
	if req.Token == uuid.Nil {
		c.BadRequest("token is required")
		return
	}

	invite, err := h.inviteService.RedeemByToken(c.Request.Context(), req.Token, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	_ = c.JSON(http.StatusOK, h.response(invite))
}

func (h *InviteHandler) RedeemByCode(c *drift.Context) {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		c.Unauthorized("not authenticated")
		return
	}

	var req dto.RedeemCodeRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}
	if req.Code == "" {
		c.BadRequest("code is required")
		return
	}

	invite, err := h.inviteService.RedeemByCode(c.Request.Context(), req.FamilyID, req.Code, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	_ = c.JSON(http.StatusOK, h.response(invite))
}

// ViewInvite renders the public landing page for an invite link.
func (h *InviteHandler) ViewInvite(c *drift.Context) {
	token, err := uuid.Parse(c.Param("token"))
	if err != nil {
		h.renderPage(c, http.StatusBadRequest, invitePage{Message: "Invalid invite link"})
		return
	}

	preview, err := h.inviteService.GetByToken(c.Request.Context(), token)
	if err != nil {
		h.renderPage(c, http.StatusNotFound, invitePage{Message: "Invite not found"})
		return
	}

	page := invitePage{
		FamilyName:  preview.FamilyName,
		InviterName: preview.InviterName,
		Code:        preview.Invite.Code,
	}
	switch {
	case preview.Status != models.InviteStatusPending:
		page.Message = "This invite is " + string(preview.Status)
	case preview.Invite.RemainingUses() == 0:
		page.Message = "This invite has no uses left"
	}
	if page.InviterName == "" {
		page.InviterName = "Someone"
	}

	h.renderPage(c, http.StatusOK, page)
}

type invitePage struct {
	FamilyName  string
	InviterName string
	Code        string
	Message     string
}

var invitePageTemplate = template.Must(template.New("invite").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Family Invitation</title>
    <style>
        body { font-family: system-ui, sans-serif; max-width: 400px; margin: 50px auto; padding: 20px; text-align: center; }
        h1 { color: #333; }
        p { color: #666; margin: 20px 0; }
        .family-name { font-weight: bold; color: #333; }
        .code { font-family: monospace; font-size: 28px; letter-spacing: 6px; background: #f3f4f6; border-radius: 6px; padding: 12px; }
    </style>
</head>
<body>
    <h1>Family Invitation</h1>
{{- if .Message}}
    <p>{{.Message}}</p>
{{- else}}
    <p><strong>{{.InviterName}}</strong> has invited you to join</p>
    <p class="family-name">{{.FamilyName}}</p>
    <p>Open ListsHub and enter this code:</p>
    <div class="code">{{.Code}}</div>
{{- end}}
</body>
</html>`))

func (h *InviteHandler) renderPage(c *drift.Context, status int, page invitePage) {
	var buf bytes.Buffer
	if err := invitePageTemplate.Execute(&buf, page); err != nil {
		c.InternalServerError("failed to render page")
		return
	}
	_ = c.HTML(status, buf.String())
}
