package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"time"

	"github.com/dimitrije/listshub-api/internal/config"
	"github.com/dimitrije/listshub-api/internal/middleware"
	"github.com/dimitrije/listshub-api/internal/models"
	"github.com/dimitrije/listshub-api/internal/oauth"
	"github.com/dimitrije/listshub-api/internal/services"
	"github.com/dimitrije/listshub-api/pkg/dto"
	"github.com/google/uuid"
	"github.com/m1z23r/drift/pkg/drift"
	log "github.com/sirupsen/logrus"
)

const (
	stateTTL    = 10 * time.Minute
	authCodeTTL = 30 * time.Second
)

type AuthHandler struct {
	cfg            *config.Config
	providers      oauth.Registry
	accountService AccountServiceInterface
	userService    UserServiceInterface
	tokenService   TokenServiceInterface
	jwtService     JWTServiceInterface
	// states maps an OAuth state to the provider it was issued for.
	states *oauth.Ephemeral[string]
	// authCodes maps a one-time code to the signed-in user.
	authCodes *oauth.Ephemeral[uuid.UUID]
}

func NewAuthHandler(
	cfg *config.Config,
	providers oauth.Registry,
	accountService AccountServiceInterface,
	userService UserServiceInterface,
	tokenService TokenServiceInterface,
	jwtService JWTServiceInterface,
) *AuthHandler {
	if providers == nil {
		providers = oauth.NewRegistry()
	}
	return &AuthHandler{
		cfg:            cfg,
		providers:      providers,
		accountService: accountService,
		userService:    userService,
		tokenService:   tokenService,
		jwtService:     jwtService,
		states:         oauth.NewEphemeral[string](stateTTL),
		authCodes:      oauth.NewEphemeral[uuid.UUID](authCodeTTL),
	}
}

// RunCleanup drops expired OAuth states and exchange codes until ctx is done.
func (h *AuthHandler) RunCleanup(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			h.sweep(now)
		}
	}
}

func (h *AuthHandler) sweep(now time.Time) {
	states, codes := h.states.Sweep(now), h.authCodes.Sweep(now)
	if states+codes > 0 {
		log.WithFields(log.Fields{"states": states, "codes": codes}).Debug("expired oauth keys removed")
	}
}

func (h *AuthHandler) SignUp(c *drift.Context) {
	var req dto.SignUpRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	ctx := c.Request.Context()
	user, err := h.accountService.SignUp(ctx, signUpInput(req))
	if err != nil {
		respondError(c, err)
		return
	}

	h.respondWithTokens(c, http.StatusCreated, user)
}

func (h *AuthHandler) SignUpWithInvite(c *drift.Context) {
	var req dto.SignUpWithInviteRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}
	if req.InviteToken == uuid.Nil {
		c.BadRequest("invite_token is required")
		return
	}

	ctx := c.Request.Context()
	user, _, err := h.accountService.SignUpWithInvite(ctx, signUpInput(req.SignUpRequest), req.InviteToken)
	if err != nil {
		respondError(c, err)
		return
	}

	h.respondWithTokens(c, http.StatusCreated, user)
}

func (h *AuthHandler) SignIn(c *drift.Context) {
	var req dto.SignInRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		c.BadRequest("email and password are required")
		return
	}

	user, err := h.accountService.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	h.respondWithTokens(c, http.StatusOK, user)
}

func (h *AuthHandler) ForgotPassword(c *drift.Context) {
	var req dto.ForgotPasswordRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	// The response never reveals whether the address has an account.
	if err := h.accountService.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		log.WithError(err).Warn("password reset request failed")
	}

	_ = c.JSON(http.StatusAccepted, dto.MessageResponse{Message: "if the account exists, a reset link has been sent"})
}

func (h *AuthHandler) ResetPassword(c *drift.Context) {
	var req dto.ResetPasswordRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}
	if req.Token == "" {
		c.BadRequest("token is required")
		return
	}

	if err := h.accountService.ResetPassword(c.Request.Context(), req.Token, req.Password); err != nil {
		respondError(c, err)
		return
	}

	_ = c.JSON(http.StatusOK, dto.MessageResponse{Message: "password updated"})
}

func (h *AuthHandler) GetConsentURL(c *drift.Context) {
	provider := c.Param("provider")

	p, ok := h.providers.Get(provider)
	if !ok {
		c.BadRequest("unsupported provider: " + provider)
		return
	}

	state, err := h.states.Issue(p.Name())
	if err != nil {
		c.InternalServerError("failed to generate state")
		return
	}

	_ = c.JSON(http.StatusOK, dto.ConsentURLResponse{
		URL: p.GetConsentURL(state),
	})
}

func (h *AuthHandler) Callback(c *drift.Context) {
	p, ok := h.providers.Get(c.Param("provider"))
	if !ok {
		h.redirectWithError(c, "unsupported provider")
		return
	}

	state := c.QueryParam("state")
	if state == "" {
		h.redirectWithError(c, "missing state parameter")
		return
	}

	issuedFor, err := h.states.Take(state)
	switch {
	case errors.Is(err, oauth.ErrKeyExpired):
		h.redirectWithError(c, "state expired")
		return
	case err != nil || issuedFor != p.Name():
		h.redirectWithError(c, "invalid or expired state")
		return
	}

	code := c.QueryParam("code")
	if code == "" {
		h.redirectWithError(c, "missing authorization code")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	info, err := p.ExchangeCode(ctx, code)
	if err != nil {
		log.WithError(err).WithField("provider", p.Name()).Warn("oauth code exchange failed")
		h.redirectWithError(c, "failed to exchange code")
		return
	}

	user, err := h.accountService.FindOrCreateFromOAuth(ctx, info)
	if err != nil {
		log.WithError(err).WithField("provider", p.Name()).Error("oauth sign-in failed")
		h.redirectWithError(c, "failed to sign in")
		return
	}

	authCode, err := h.authCodes.Issue(user.ID)
	if err != nil {
		h.redirectWithError(c, "failed to generate auth code")
		return
	}

	redirectURL := fmt.Sprintf("%s?code=%s", h.cfg.FrontendCallbackURL, url.QueryEscape(authCode))
	h.renderCallbackPage(c, http.StatusOK, callbackPage{
		Title:    "Sign-in Successful",
		Heading:  "You're signed in!",
		Subtitle: "Redirecting you to ListsHub...",
		Redirect: redirectURL,
	})
}

func (h *AuthHandler) ExchangeCode(c *drift.Context) {
	var req dto.ExchangeCodeRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}
	if req.Code == "" {
		c.BadRequest("code is required")
		return
	}

	userID, err := h.authCodes.Take(req.Code)
	if errors.Is(err, oauth.ErrKeyExpired) {
		c.Unauthorized("code expired")
		return
	}
	if err != nil {
		c.Unauthorized("invalid or expired code")
		return
	}

	user, err := h.userService.GetByID(c.Request.Context(), userID)
	if err != nil {
		c.Unauthorized("user not found")
		return
	}

	h.respondWithTokens(c, http.StatusOK, user)
}

func (h *AuthHandler) RefreshToken(c *drift.Context) {
	var req dto.RefreshTokenRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}
	if req.RefreshToken == "" {
		c.BadRequest("refresh_token is required")
		return
	}

	userID, err := h.jwtService.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		c.Unauthorized("invalid refresh token")
		return
	}

	ctx := c.Request.Context()

	storedUserID, err := h.tokenService.ConsumeRefreshToken(ctx, services.HashToken(req.RefreshToken))
	switch {
	case errors.Is(err, services.ErrRefreshTokenNotFound), errors.Is(err, services.ErrRefreshTokenExpired):
		c.Unauthorized("refresh token not found or expired")
		return
	case err != nil:
		log.WithError(err).WithField("user_id", userID).Error("failed to consume refresh token")
		c.InternalServerError("failed to refresh session")
		return
	case storedUserID != userID:
		c.Unauthorized("refresh token not found or expired")
		return
	}

	user, err := h.userService.GetByID(ctx, userID)
	if err != nil {
		c.Unauthorized("user not found")
		return
	}

	tokens, err := h.issueTokens(ctx, user)
	if err != nil {
		c.InternalServerError("failed to generate tokens")
		return
	}

	_ = c.JSON(http.StatusOK, tokens)
}

func (h *AuthHandler) Logout(c *drift.Context) {
	var req dto.RefreshTokenRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	if req.RefreshToken != "" {
		_ = h.tokenService.RevokeRefreshToken(c.Request.Context(), services.HashToken(req.RefreshToken))
	}

	_ = c.JSON(http.StatusOK, dto.MessageResponse{Message: "logged out"})
}

func (h *AuthHandler) LogoutAll(c *drift.Context) {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		c.Unauthorized("not authenticated")
		return
	}

	dropped, err := h.tokenService.RevokeAllUserTokens(c.Request.Context(), userID)
	if err != nil {
		c.InternalServerError("failed to revoke tokens")
		return
	}
	log.WithFields(log.Fields{"user_id": userID, "sessions": dropped}).Info("signed out everywhere")

	_ = c.JSON(http.StatusOK, dto.MessageResponse{Message: "all sessions logged out"})
}

func signUpInput(req dto.SignUpRequest) services.SignUpInput {
	return services.SignUpInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Locale:   req.Locale,
	}
}

// issueTokens mints an access/refresh pair and stores the refresh token hash.
func (h *AuthHandler) issueTokens(ctx context.Context, user *models.User) (*dto.TokenResponse, error) {
	pair, err := h.jwtService.GenerateTokenPair(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, err
	}

	expiresAt := time.Now().Add(h.jwtService.RefreshExpiry())
	if err := h.tokenService.StoreRefreshToken(ctx, user.ID, services.HashToken(pair.RefreshToken), expiresAt); err != nil {
		return nil, err
	}

	return &dto.TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
	}, nil
}

func (h *AuthHandler) respondWithTokens(c *drift.Context, status int, user *models.User) {
	tokens, err := h.issueTokens(c.Request.Context(), user)
	if err != nil {
		log.WithError(err).WithField("user_id", user.ID).Error("failed to issue tokens")
		c.InternalServerError("failed to generate tokens")
		return
	}

	_ = c.JSON(status, dto.AuthResponse{
		TokenResponse: *tokens,
		User:          dto.NewUserResponse(user),
	})
}

func (h *AuthHandler) redirectWithError(c *drift.Context, errMsg string) {
	redirectURL := fmt.Sprintf("%s?error=%s", h.cfg.FrontendCallbackURL, url.QueryEscape(errMsg))
	h.renderCallbackPage(c, http.StatusBadRequest, callbackPage{
		Title:    "Sign-in Failed",
		Heading:  "Sign-in failed",
		Subtitle: errMsg,
		Redirect: redirectURL,
		Failed:   true,
	})
}

type callbackPage struct {
	Title    string
	Heading  string
	Subtitle string
	Redirect string
	Failed   bool
}

var callbackTemplate = template.Must(template.New("callback").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
    <style>
        body { font-family: system-ui, -apple-system, sans-serif; background: #f9fafb; color: #374151; margin: 0; padding: 40px 20px; }
        .container { max-width: 400px; margin: 0 auto; background: #fff; border: 1px solid #e5e7eb; border-radius: 8px; padding: 40px 32px; text-align: center; }
        h1 { font-size: 20px; font-weight: 600; margin: 0 0 8px 0; }
        h1.failed { color: #991b1b; }
        .subtitle { color: #6b7280; font-size: 14px; margin: 0 0 4px 0; }
        .close-hint { color: #9ca3af; font-size: 13px; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1{{if .Failed}} class="failed"{{end}}>{{.Heading}}</h1>
        <p class="subtitle">{{.Subtitle}}</p>
        <p class="close-hint">You can close this window.</p>
    </div>
    <script>window.location.href = {{.Redirect}};</script>
</body>
</html>`))

func (h *AuthHandler) renderCallbackPage(c *drift.Context, status int, page callbackPage) {
	var buf bytes.Buffer
	if err := callbackTemplate.Execute(&buf, page); err != nil {
		c.InternalServerError("failed to render page")
		return
	}
	_ = c.HTML(status, buf.String())
}
