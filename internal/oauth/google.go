package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/dimitrije/listshub-api/internal/config"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	googleProviderName = "google"
	googleUserInfoURL  = "https://www.googleapis.com/oauth2/v2/userinfo"
)

// ErrUnverifiedEmail is returned for Google accounts whose email is not
// verified. Accounts are linked by email, so those cannot sign in.
var ErrUnverifiedEmail = errors.New("google account email is not verified")

type GoogleProvider struct {
	config      *oauth2.Config
	userInfoURL string
}

func NewGoogleProvider(cfg config.OAuthConfig) *GoogleProvider {
	return &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		userInfoURL: googleUserInfoURL,
	}
}

func (p *GoogleProvider) Name() string {
	return googleProviderName
}

// GetConsentURL always shows the account chooser so a family member on a
// shared device does not get signed in as whoever used it last.
func (p *GoogleProvider) GetConsentURL(state string) string {
	return p.config.AuthCodeURL(state,
		oauth2.AccessTypeOnline,
		oauth2.SetAuthURLParam("prompt", "select_account"),
	)
}

func (p *GoogleProvider) ExchangeCode(ctx context.Context, code string) (*UserInfo, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}

	profile, err := p.fetchProfile(ctx, token)
	if err != nil {
		return nil, err
	}
	return profile.userInfo()
}

type googleProfile struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

func (p *GoogleProvider) fetchProfile(ctx context.Context, token *oauth2.Token) (*googleProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build user info request: %w", err)
	}

	resp, err := p.config.Client(ctx, token).Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get user info: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google userinfo returned status %d", resp.StatusCode)
	}

	var profile googleProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("failed to decode user info: %w", err)
	}
	return &profile, nil
}

func (g *googleProfile) userInfo() (*UserInfo, error) {
	if g.ID == "" || g.Email == "" {
		return nil, fmt.Errorf("google profile is missing id or email")
	}
	if !g.VerifiedEmail {
		return nil, ErrUnverifiedEmail
	}

	name := strings.TrimSpace(g.Name)
	if name == "" {
		name, _, _ = strings.Cut(g.Email, "@")
	}

	return &UserInfo{
		Provider:  googleProviderName,
		ID:        g.ID,
		Email:     g.Email,
		Name:      name,
		AvatarURL: g.Picture,
	}, nil
}
