package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/smartmarks/internal/httpserver/deps"
)

type componentStatus struct {
	OK     bool   `json:"ok"`
	Mode   string `json:"mode,omitempty"`
	Impact string `json:"impact,omitempty"`
	Error  string `json:"error,omitempty"`
	Count  *int   `json:"count,omitempty"`
}

type infraResponse struct {
	Mode       string                     `json:"mode"`
	Components map[string]componentStatus `json:"components"`
}

// Infra reports every backing service plus the mounted dashboard tabs.
func Infra(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		components := make(map[string]componentStatus, len(d.Checks)+1)
		for _, c := range d.Checks {
			if err := ping(r.Context(), c); err != nil {
				components[c.Name] = componentStatus{OK: false, Mode: "down", Impact: c.Impact, Error: err.Error()}
				continue
			}
			components[c.Name] = componentStatus{OK: true, Mode: "optimal"}
		}

		if d.Tabs != nil {
			n := d.Tabs.Count()
			components["dashboard_tabs"] = componentStatus{OK: true, Count: &n}
		}

		writeJSON(w, http.StatusOK, infraResponse{
			Mode:       overallMode(components),
			Components: components,
		})
	}
}

func overallMode(components map[string]componentStatus) string {
	for _, c := range components {
		if !c.OK {
			return "degraded"
		}
	}
	return "operational"
}
