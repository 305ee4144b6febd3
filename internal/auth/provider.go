package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

// Identity is what a provider tells us about the person who signed in.
type Identity struct {
	Subject string // stable provider-side user id
	Email   string
}

// Provider is an OAuth authorization-code provider with PKCE.
type Provider interface {
	ID() string
	AuthCodeURL(state, verifier string) string
	Exchange(ctx context.Context, code, verifier string) (Identity, error)
}

const googleUserinfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

// Google signs users in with their Google account.
type Google struct {
	cfg         *oauth2.Config
	userinfoURL string
}

// NewGoogle builds the Google provider. redirectURL must match the one
// registered in the Google console.
func NewGoogle(clientID, clientSecret, redirectURL string) *Google {
	return &Google{
		cfg: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     endpoints.Google,
		},
		userinfoURL: googleUserinfoURL,
	}
}

func (g *Google) ID() string { return "google" }

func (g *Google) AuthCodeURL(state, verifier string) string {
	return g.cfg.AuthCodeURL(state, oauth2.AccessTypeOnline, oauth2.S256ChallengeOption(verifier))
}

func (g *Google) Exchange(ctx context.Context, code, verifier string) (Identity, error) {
	tok, err := g.cfg.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return Identity{}, fmt.Errorf("token exchange: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.userinfoURL, nil)
	if err != nil {
		return Identity{}, err
	}
	resp, err := g.cfg.Client(ctx, tok).Do(req)
	if err != nil {
		return Identity{}, fmt.Errorf("userinfo: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Identity{}, fmt.Errorf("userinfo: status %d: %s", resp.StatusCode, body)
	}

	var info struct {
		Sub           string `json:"sub"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&info); err != nil {
		return Identity{}, fmt.Errorf("userinfo decode: %w", err)
	}
	if info.Sub == "" {
		return Identity{}, fmt.Errorf("userinfo: missing subject")
	}
	if info.Email != "" && !info.EmailVerified {
		info.Email = ""
	}
	return Identity{Subject: info.Sub, Email: info.Email}, nil
}
