package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/smartmarks/internal/auth"
	"github.com/MrSnakeDoc/smartmarks/internal/domain"
	"github.com/MrSnakeDoc/smartmarks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/smartmarks/internal/logger"
)

type deleteResponse struct {
	Deleted string `json:"deleted"`
}

// CreateBookmark adds a bookmark through the tab's controller, so the
// stored record shows up in that tab at once. Without a mounted tab it
// writes through the repository and the feed updates open tabs.
func CreateBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := auth.UserFromContext(r.Context())
		if user == nil {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}

		title := r.PostFormValue("title")
		rawURL := r.PostFormValue("url")
		tabID := r.PostFormValue("tab")

		var (
			b   domain.Bookmark
			err error
		)
		if ctrl, ok := d.Tabs.Lookup(tabID, user.ID); ok {
			b, err = ctrl.Add(r.Context(), title, rawURL)
		} else {
			b, err = d.Bookmarks.Create(r.Context(), user.ID, title, rawURL)
		}

		if err != nil {
			fail(w, r, d, err, codeSaveFailed, "create bookmark failed", user.ID)
			return
		}

		if wantsJSON(r) {
			writeJSON(w, http.StatusCreated, b)
			return
		}
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
	}
}

// DeleteBookmark removes a bookmark. Unknown ids and bookmarks of other
// users are silent no-ops and still answer success.
func DeleteBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := auth.UserFromContext(r.Context())
		if user == nil {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}

		id := chi.URLParam(r, "id")
		tabID := r.PostFormValue("tab")

		var err error
		if ctrl, ok := d.Tabs.Lookup(tabID, user.ID); ok {
			err = ctrl.Remove(r.Context(), id)
		} else {
			err = d.Bookmarks.Delete(r.Context(), id, user.ID)
		}

		if err != nil {
			fail(w, r, d, err, codeDeleteFailed, "delete bookmark failed", user.ID)
			return
		}

		if wantsJSON(r) {
			writeJSON(w, http.StatusOK, deleteResponse{Deleted: id})
			return
		}
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
	}
}

// fail answers a failed bookmark operation: 422 for validation, 500 (logged)
// for anything else. Form posts are redirected back with the error code.
func fail(w http.ResponseWriter, r *http.Request, d deps.Deps, err error, transportCode, msg, userID string) {
	code, validation := classify(err, transportCode)
	status := http.StatusUnprocessableEntity
	if !validation {
		status = http.StatusInternalServerError
		d.Logger.Error(msg, logger.String("user_id", userID), logger.Error(err))
	}

	if wantsJSON(r) {
		writeJSON(w, status, errorResponse{Error: message(code)})
		return
	}
	redirectWithError(w, r, "/dashboard", code)
}
