package mw

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/MrSnakeDoc/smartmarks/internal/logger"
)

func TestEnforceHost(t *testing.T) {
	h := EnforceHost([]string{"marks.example.com", "*.lan.example.com"}, logger.Nop())(okHandler())

	tests := []struct {
		host string
		want int
	}{
		{"marks.example.com", http.StatusOK},
		{"MARKS.example.com:8443", http.StatusOK},
		{"box.lan.example.com", http.StatusOK},
		{"lan.example.com", http.StatusMisdirectedRequest},
		{"evil.com", http.StatusMisdirectedRequest},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Host = tt.host
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, tt.want, rec.Code, tt.host)
	}
}

func TestEnforceHostConfigForms(t *testing.T) {
	m := newHostMatcher([]string{" Localhost:8080 ", "", "[::1]"})
	assert.True(t, m.match("localhost"))
	assert.True(t, m.match("::1"))
	assert.False(t, m.match("127.0.0.1"))

	h := EnforceHost([]string{"", "  "}, logger.Nop())(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = "anything.test"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAllowOnlyCIDRS(t *testing.T) {
	h := AllowOnlyCIDRS([]string{"10.0.0.0/8"}, false, logger.Nop())(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.RemoteAddr = "10.1.2.3:999"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req.RemoteAddr = "172.16.0.1:999"
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	open := AllowOnlyCIDRS(nil, false, logger.Nop())(okHandler())
	rec = httptest.NewRecorder()
	open.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTimeoutExceptSkipsStreams(t *testing.T) {
	var streamDeadline, pageDeadline bool
	h := TimeoutExcept(time.Minute, "/dashboard/events")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, has := r.Context().Deadline()
		if r.URL.Path == "/dashboard/events" {
			streamDeadline = has
		} else {
			pageDeadline = has
		}
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/dashboard/events", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/dashboard", nil))

	assert.False(t, streamDeadline)
	assert.True(t, pageDeadline)
}

type observed struct {
	route  string
	status int
}

type recObserver struct{ got []observed }

func (o *recObserver) ObserveRequest(route, _ string, status int, _ time.Duration) {
	o.got = append(o.got, observed{route, status})
}

func TestMetricsWithoutRouter(t *testing.T) {
	obs := &recObserver{}
	h := Metrics(obs)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Equal(t, []observed{{"unmatched", http.StatusTeapot}}, obs.got)
}
