package auth

import "errors"

var (
	// ErrUnknownProvider is returned for a provider id that is not configured.
	ErrUnknownProvider = errors.New("unknown auth provider")
	// ErrInvalidState is returned when the callback state is unknown, expired or reused.
	ErrInvalidState = errors.New("invalid oauth state")
	// ErrExchangeFailed is returned when the provider rejects the authorization code.
	ErrExchangeFailed = errors.New("auth code exchange failed")
	// ErrInvalidToken is returned when an access token is malformed, forged or expired.
	ErrInvalidToken = errors.New("invalid token")
)
