package handlers

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MrSnakeDoc/smartmarks/internal/auth"
	"github.com/MrSnakeDoc/smartmarks/internal/dashboard"
	"github.com/MrSnakeDoc/smartmarks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/smartmarks/internal/httpserver/views"
	"github.com/MrSnakeDoc/smartmarks/internal/logger"
)

const (
	eventBookmarks   = "bookmarks"
	defaultKeepAlive = 25 * time.Second
)

// Events streams the rendered bookmark list of one mounted tab. A
// "bookmarks" event is sent on connect and after every change. The stream
// ends when the client leaves or the controller is closed; an unknown tab
// gets a 404 so the page reloads and mounts a fresh one.
func Events(d deps.Deps) http.HandlerFunc {
	keepAlive := d.KeepAlive
	if keepAlive <= 0 {
		keepAlive = defaultKeepAlive
	}

	return func(w http.ResponseWriter, r *http.Request) {
		user := auth.UserFromContext(r.Context())
		if user == nil {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		tabID := r.URL.Query().Get("tab")
		ctrl, ok := d.Tabs.Attach(tabID, user.ID)
		if !ok {
			http.NotFound(w, r)
			return
		}
		defer d.Tabs.Detach(tabID)

		updates, stop := ctrl.Watch()
		defer stop()

		rc := http.NewResponseController(w)
		// the server WriteTimeout would cut the stream
		_ = rc.SetWriteDeadline(time.Time{})

		h := w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		h.Set("X-Accel-Buffering", "no")
		w.WriteHeader(http.StatusOK)

		log := d.Logger.With(logger.String("tab", tabID), logger.String("user_id", user.ID))
		send := func() bool {
			if err := pushList(w, d.Views, ctrl, tabID); err != nil {
				log.Debug("event stream write failed", logger.Error(err))
				return false
			}
			return rc.Flush() == nil
		}

		if !send() {
			return
		}

		ticker := time.NewTicker(keepAlive)
		defer ticker.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case <-ctrl.Done():
				return
			case <-updates:
				if !send() {
					return
				}
			case <-ticker.C:
				if _, err := io.WriteString(w, ": keep-alive\n\n"); err != nil {
					return
				}
				if rc.Flush() != nil {
					return
				}
			}
		}
	}
}

func pushList(w io.Writer, v *views.Renderer, ctrl *dashboard.Controller, tabID string) error {
	html, err := v.List(views.ListData{Bookmarks: ctrl.Snapshot(), TabID: tabID})
	if err != nil {
		return fmt.Errorf("render list: %w", err)
	}
	return writeEvent(w, eventBookmarks, html)
}

// writeEvent writes one server-sent event. Multi-line data is split into
// data: lines, which the browser joins back with newlines.
func writeEvent(w io.Writer, event, data string) error {
	var b strings.Builder
	b.WriteString("event: ")
	b.WriteString(event)
	b.WriteByte('\n')
	for _, line := range strings.Split(strings.ReplaceAll(data, "\r\n", "\n"), "\n") {
		b.WriteString("data: ")
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	_, err := io.WriteString(w, b.String())
	return err
}
