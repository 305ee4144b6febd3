package handlers

import (
	"errors"
	"fmt"

	"github.com/MrSnakeDoc/smartmarks/internal/domain"
)

// Error codes carried in ?error= on redirects. Pages only show the
// message mapped here, never the raw query value.
const (
	codeAuth         = "auth-code-error"
	codeInvalidTitle = "invalid-title"
	codeInvalidURL   = "invalid-url"
	codeTitleTooLong = "title-too-long"
	codeURLTooLong   = "url-too-long"
	codeSaveFailed   = "save-failed"
	codeDeleteFailed = "delete-failed"
)

var messages = map[string]string{
	codeAuth:         "Authentication failed. Please try signing in again.",
	codeInvalidTitle: "Title is required.",
	codeInvalidURL:   "Please enter a valid URL, ex: https://example.com",
	codeTitleTooLong: fmt.Sprintf("Title must be at most %d characters.", domain.MaxTitleLength),
	codeURLTooLong:   fmt.Sprintf("URL must be at most %d characters.", domain.MaxURLLength),
	codeSaveFailed:   "Could not save the bookmark. Please try again.",
	codeDeleteFailed: "Could not delete the bookmark. Please try again.",
}

func message(code string) string {
	return messages[code]
}

// classify maps a bookmark operation error to its code. validation is false for
// transport failures, which are logged.
func classify(err error, transportCode string) (code string, validation bool) {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		switch {
		case errors.Is(verr.Err, domain.ErrTitleTooLong):
			return codeTitleTooLong, true
		case errors.Is(verr.Err, domain.ErrURLTooLong):
			return codeURLTooLong, true
		case errors.Is(verr.Err, domain.ErrInvalidTitle):
			return codeInvalidTitle, true
		}
		return codeInvalidURL, true
	}
	return transportCode, false
}
