package domain

import "time"

// ============================================================================
// Session types
// ============================================================================

// Session is the server-side record behind a signed-in browser.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Provider  string    `json:"provider"`
	CreatedAt time.Time `json:"created_at"`
}

// User returns the identity carried by the session.
func (s Session) User() User {
	return User{ID: s.UserID, Email: s.Email}
}

// OAuthState is kept between the provider redirect and the callback.
type OAuthState struct {
	Provider string `json:"provider"`
	Verifier string `json:"verifier"` // PKCE code verifier
	Next     string `json:"next,omitempty"`
}
