package domain

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"
)

// Bookmark is a URL saved by a single user.
//
// Rows are only ever inserted or deleted; there is no edit path.
type Bookmark struct {
	// ─────────────────────────────
	// Identity (assigned by the store)
	// ─────────────────────────────

	// ID is the opaque unique identifier generated by Postgres.
	ID string `json:"id"`

	// UserID is the owning user. Never exposed across users.
	UserID string `json:"user_id"`

	// ─────────────────────────────
	// Content
	// ─────────────────────────────

	// Title is the non-empty, trimmed display title.
	// Example: React Docs
	Title string `json:"title"`

	// URL is the absolute URL the bookmark points to.
	// Example: https://react.dev
	URL string `json:"url"`

	// ─────────────────────────────
	// Metadata
	// ─────────────────────────────

	// CreatedAt is set by the store and drives the newest-first ordering.
	CreatedAt time.Time `json:"created_at"`
}

// User is the identity issued by the OAuth provider. This system never
// creates or mutates it.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Size limits, mirrored by CHECK constraints on the bookmarks table. They
// keep the change notification of a row under the 8000 byte NOTIFY limit.
const (
	MaxTitleLength = 500  // characters
	MaxURLLength   = 2048 // bytes
)

var (
	// ErrInvalidTitle is returned when a title is empty after trimming.
	ErrInvalidTitle = errors.New("title is required")

	// ErrTitleTooLong is returned when a title exceeds MaxTitleLength characters.
	ErrTitleTooLong = fmt.Errorf("title must be at most %d characters", MaxTitleLength)

	// ErrInvalidURL is returned when a url does not parse as an absolute URL.
	ErrInvalidURL = errors.New("url must be a valid absolute URL")

	// ErrURLTooLong is returned when a url exceeds MaxURLLength bytes.
	ErrURLTooLong = fmt.Errorf("url must be at most %d bytes", MaxURLLength)
)

// ValidationError reports which field of a bookmark draft was rejected.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// ValidateBookmark trims the submitted title and url and checks them.
// It returns the normalized values so callers persist exactly what was validated.
func ValidateBookmark(title, rawURL string) (string, string, error) {
	title = strings.TrimSpace(title)
	rawURL = strings.TrimSpace(rawURL)

	if title == "" {
		return "", "", &ValidationError{Field: "title", Err: ErrInvalidTitle}
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return "", "", &ValidationError{Field: "title", Err: ErrTitleTooLong}
	}
	if len(rawURL) > MaxURLLength {
		return "", "", &ValidationError{Field: "url", Err: ErrURLTooLong}
	}
	if !IsAbsoluteURL(rawURL) {
		return "", "", &ValidationError{Field: "url", Err: ErrInvalidURL}
	}
	return title, rawURL, nil
}

// IsAbsoluteURL reports whether s parses as an absolute URL: a scheme plus
// either a host (https://react.dev) or an opaque part (mailto:me@example.com).
func IsAbsoluteURL(s string) bool {
	if s == "" {
		return false
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	if !u.IsAbs() {
		return false
	}
	return u.Host != "" || u.Opaque != ""
}
