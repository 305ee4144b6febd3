package mw

import (
	"net/http"
	"strings"

	"github.com/MrSnakeDoc/smartmarks/internal/logger"
	"github.com/MrSnakeDoc/smartmarks/internal/utils"
)

// hostMatcher holds exact hosts and "*.domain" suffixes, lowercased.
type hostMatcher struct {
	exact    map[string]struct{}
	suffixes []string // ".example.com"
}

func newHostMatcher(hosts []string) hostMatcher {
	m := hostMatcher{exact: make(map[string]struct{}, len(hosts))}
	for _, h := range hosts {
		h = strings.ToLower(strings.TrimSpace(h))
		switch {
		case h == "":
		case strings.HasPrefix(h, "*."):
			m.suffixes = append(m.suffixes, h[1:])
		default:
			m.exact[utils.ParseHostNoPort(h)] = struct{}{}
		}
	}
	return m
}

func (m hostMatcher) empty() bool { return len(m.exact) == 0 && len(m.suffixes) == 0 }

// match reports whether host is allowed. A wildcard covers subdomains only,
// never the bare domain.
func (m hostMatcher) match(host string) bool {
	if _, ok := m.exact[host]; ok {
		return true
	}
	for _, s := range m.suffixes {
		if strings.HasSuffix(host, s) {
			return true
		}
	}
	return false
}

// EnforceHost answers 421 unless the Host header, port ignored, is one of
// allowedHosts. No hosts configured means passthrough.
func EnforceHost(allowedHosts []string, log logger.Logger) func(http.Handler) http.Handler {
	m := newHostMatcher(allowedHosts)
	if m.empty() {
		log.Debug("EnforceHost: no allowed hosts, passthrough mode")
		return func(next http.Handler) http.Handler { return next }
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.match(strings.ToLower(utils.ParseHostNoPort(r.Host))) {
				next.ServeHTTP(w, r)
				return
			}
			log.Warn("unexpected host rejected", logger.String("host", r.Host))
			http.Error(w, http.StatusText(http.StatusMisdirectedRequest), http.StatusMisdirectedRequest)
		})
	}
}
