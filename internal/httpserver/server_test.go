package httpserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/smartmarks/internal/auth"
	"github.com/MrSnakeDoc/smartmarks/internal/bookmarks"
	"github.com/MrSnakeDoc/smartmarks/internal/bookmarks/bookmarkstest"
	"github.com/MrSnakeDoc/smartmarks/internal/config"
	"github.com/MrSnakeDoc/smartmarks/internal/dashboard"
	"github.com/MrSnakeDoc/smartmarks/internal/domain"
	"github.com/MrSnakeDoc/smartmarks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/smartmarks/internal/httpserver/views"
	"github.com/MrSnakeDoc/smartmarks/internal/logger"
	"github.com/MrSnakeDoc/smartmarks/internal/metrics"
	"github.com/MrSnakeDoc/smartmarks/internal/realtime"
)

var alice = domain.User{ID: "aaaaaaaa-0000-5000-8000-000000000001", Email: "alice@domain.ext"}

// cookieAuth signs in whoever presents the access cookie "alice".
type cookieAuth struct{ refreshes int }

func (c *cookieAuth) Refresh(_ http.ResponseWriter, r *http.Request) (*domain.User, error) {
	c.refreshes++
	if ck, err := r.Cookie(auth.AccessCookie); err == nil && ck.Value == "alice" {
		u := alice
		return &u, nil
	}
	return nil, nil
}

func (c *cookieAuth) CurrentUser(r *http.Request) (*domain.User, error) {
	return auth.UserFromContext(r.Context()), nil
}

func (c *cookieAuth) SignInWithProvider(context.Context, string, string) (string, error) {
	return "https://accounts.example.com/auth", nil
}

func (c *cookieAuth) ExchangeAuthCode(context.Context, http.ResponseWriter, string, string) (string, error) {
	return "", auth.ErrInvalidState
}

func (c *cookieAuth) SignOut(context.Context, http.ResponseWriter, *http.Request) error { return nil }

type testServer struct {
	handler http.Handler
	auth    *cookieAuth
	store   *bookmarkstest.Store
	tabs    *dashboard.Registry
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	v, err := views.New()
	require.NoError(t, err)

	hub := realtime.NewHub(nil, 16, nil, logger.Nop())
	store := bookmarkstest.NewStore(hub)
	tabs := dashboard.NewRegistry(logger.Nop(), 0, 0)
	t.Cleanup(tabs.Stop)
	a := &cookieAuth{}

	cfg := &config.Config{ListenPort: ":0", RequestTimeout: 5 * time.Second}
	d := deps.Deps{
		Logger:            logger.Nop(),
		StartTime:         time.Now(),
		AllowedHosts:      []string{"marks.example.com"},
		AllowedCIDRS:      []string{"10.0.0.0/8"},
		AuthRateBurst:     5,
		AuthRatePerMinute: 5,
		Auth:              a,
		Providers:         []views.Provider{{Name: "Google", Href: "/auth/signin/google"}},
		Bookmarks:         bookmarks.NewRepository(store, hub, nil, logger.Nop()),
		Tabs:              tabs,
		Views:             v,
		Metrics:           metrics.New(),
	}

	return &testServer{handler: NewRouter(cfg, logger.Nop(), d), auth: a, store: store, tabs: tabs}
}

func (s *testServer) do(method, target string, body url.Values, signedIn bool) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(body.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	req.Host = "marks.example.com"
	req.RemoteAddr = "192.0.2.1:4000"
	if signedIn {
		req.AddCookie(&http.Cookie{Name: auth.AccessCookie, Value: "alice"})
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func TestRouterGuardsPages(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name     string
		path     string
		signedIn bool
		status   int
		location string
	}{
		{"landing anonymous", "/", false, http.StatusOK, ""},
		{"dashboard anonymous", "/dashboard", false, http.StatusFound, "/login"},
		{"events anonymous", "/dashboard/events?tab=x", false, http.StatusFound, "/login"},
		{"login anonymous", "/login", false, http.StatusOK, ""},
		{"login signed in", "/login", true, http.StatusFound, "/dashboard"},
		{"dashboard signed in", "/dashboard", true, http.StatusOK, ""},
		{"healthz", "/healthz", false, http.StatusOK, ""},
		{"unknown route", "/nope", false, http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(http.MethodGet, tt.path, nil, tt.signedIn)
			assert.Equal(t, tt.status, rec.Code)
			if tt.location != "" {
				assert.Equal(t, tt.location, rec.Header().Get("Location"))
			}
		})
	}
}

func TestRouterServesStaticWithoutAuth(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/static/app.css", nil, false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, s.auth.refreshes)
}

func TestRouterRejectsUnknownHost(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = "evil.example.org"
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMisdirectedRequest, rec.Code)
}

func TestRouterRestrictsMetrics(t *testing.T) {
	s := newTestServer(t)
	s.do(http.MethodGet, "/healthz", nil, false)

	rec := s.do(http.MethodGet, "/metrics", nil, false)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Host = "marks.example.com"
	req.RemoteAddr = "10.1.1.1:4000"
	ok := httptest.NewRecorder()
	s.handler.ServeHTTP(ok, req)
	require.Equal(t, http.StatusOK, ok.Code)
	assert.Contains(t, ok.Body.String(), `smartmarks_http_requests_total{method="GET",route="/healthz",status="200"} 1`)
}

func TestRouterDashboardFlow(t *testing.T) {
	s := newTestServer(t)

	page := s.do(http.MethodGet, "/dashboard", nil, true)
	require.Equal(t, http.StatusOK, page.Code)
	m := regexp.MustCompile(`data-tab="([0-9a-f-]{36})"`).FindStringSubmatch(page.Body.String())
	require.Len(t, m, 2, "dashboard should carry a tab id")
	tab := m[1]

	rec := s.do(http.MethodPost, "/dashboard/bookmarks", url.Values{
		"title": {"React Docs"}, "url": {"https://react.dev"}, "tab": {tab},
	}, true)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, 1, s.store.Len())

	ctrl, ok := s.tabs.Lookup(tab, alice.ID)
	require.True(t, ok)
	require.Len(t, ctrl.Snapshot(), 1)
	id := ctrl.Snapshot()[0].ID

	rec = s.do(http.MethodPost, "/dashboard/bookmarks/"+id+"/delete", url.Values{"tab": {tab}}, true)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, 0, s.store.Len())
	assert.Empty(t, ctrl.Snapshot())
}

func TestRouterCallbackFailureGoesToLogin(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/auth/callback?code=c&state=s", nil, false)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login?error=auth-code-error", rec.Header().Get("Location"))
}
