package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/smartmarks/internal/domain"
	"github.com/MrSnakeDoc/smartmarks/internal/logger"
)

type rotation struct {
	sid   string
	until time.Time
}

type memStore struct {
	mu       sync.Mutex
	states   map[string]domain.OAuthState
	sessions map[string]domain.Session
	refresh  map[string]string
	rotated  map[string]rotation
	now      func() time.Time
}

func newMemStore() *memStore {
	return &memStore{
		states:   map[string]domain.OAuthState{},
		sessions: map[string]domain.Session{},
		refresh:  map[string]string{},
		rotated:  map[string]rotation{},
		now:      time.Now,
	}
}

func (m *memStore) SaveOAuthState(_ context.Context, state string, rec domain.OAuthState, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[state] = rec
	return nil
}

func (m *memStore) ConsumeOAuthState(_ context.Context, state string) (*domain.OAuthState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.states[state]
	if !ok {
		return nil, nil
	}
	delete(m.states, state)
	return &rec, nil
}

func (m *memStore) SaveSession(_ context.Context, s domain.Session, hash string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	m.refresh[hash] = s.ID
	return nil
}

func (m *memStore) GetSession(_ context.Context, id string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *memStore) RotateRefresh(_ context.Context, oldHash, newHash string, _, reuse time.Duration) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sid, ok := m.refresh[oldHash]
	if ok {
		delete(m.refresh, oldHash)
		if reuse > 0 {
			m.rotated[oldHash] = rotation{sid: sid, until: m.now().Add(reuse)}
		}
	} else {
		r, found := m.rotated[oldHash]
		if !found || !m.now().Before(r.until) {
			return nil, nil
		}
		sid = r.sid
	}
	s, ok := m.sessions[sid]
	if !ok {
		return nil, nil
	}
	m.refresh[newHash] = sid
	return &s, nil
}

func (m *memStore) DeleteSession(_ context.Context, id, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	delete(m.refresh, hash)
	return nil
}

func (m *memStore) lastState(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.Len(t, m.states, 1)
	for k := range m.states {
		return k
	}
	return ""
}

type fakeProvider struct{}

func (fakeProvider) ID() string { return "fake" }

func (fakeProvider) AuthCodeURL(state, verifier string) string {
	return "https://provider.test/auth?" + url.Values{"state": {state}, "challenge": {verifier}}.Encode()
}

func (fakeProvider) Exchange(_ context.Context, code, verifier string) (Identity, error) {
	if code == "bad" || verifier == "" {
		return Identity{}, errors.New("invalid_grant")
	}
	return Identity{Subject: "sub-" + code, Email: code + "@domain.ext"}, nil
}

type counter struct{ events []string }

func (c *counter) AuthEvent(e string) { c.events = append(c.events, e) }

func newTestBridge(t *testing.T) (*Bridge, *memStore, *time.Time) {
	t.Helper()
	store := newMemStore()
	b := NewBridge(store, []Provider{fakeProvider{}}, Options{
		Secret:       []byte("0123456789abcdef0123456789abcdef"),
		AccessTTL:    15 * time.Minute,
		RefreshTTL:   24 * time.Hour,
		RefreshReuse: 10 * time.Second,
		StateTTL:     10 * time.Minute,
	}, &counter{}, logger.Nop())
	clock := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	b.now = func() time.Time { return clock }
	store.now = b.now
	return b, store, &clock
}

// signIn runs the full provider round trip and returns the session cookies.
func signIn(t *testing.T, b *Bridge, store *memStore, code string) []*http.Cookie {
	t.Helper()
	_, err := b.SignInWithProvider(context.Background(), "fake", "/dashboard")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	next, err := b.ExchangeAuthCode(context.Background(), rec, code, store.lastState(t))
	require.NoError(t, err)
	assert.Equal(t, "/dashboard", next)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 2)
	return cookies
}

func requestWith(cookies []*http.Cookie) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	for _, c := range cookies {
		if c.MaxAge >= 0 {
			req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
		}
	}
	return req
}

func TestSignInUnknownProvider(t *testing.T) {
	b, _, _ := newTestBridge(t)
	_, err := b.SignInWithProvider(context.Background(), "github", "")
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestSignInURLCarriesState(t *testing.T) {
	b, store, _ := newTestBridge(t)
	authURL, err := b.SignInWithProvider(context.Background(), "fake", "/dashboard")
	require.NoError(t, err)

	u, err := url.Parse(authURL)
	require.NoError(t, err)
	assert.Equal(t, store.lastState(t), u.Query().Get("state"))
}

func TestExchangeCreatesSession(t *testing.T) {
	b, store, _ := newTestBridge(t)
	cookies := signIn(t, b, store, "alice")

	names := map[string]bool{}
	for _, c := range cookies {
		names[c.Name] = true
		assert.True(t, c.HttpOnly, "%s must be HttpOnly", c.Name)
	}
	assert.True(t, names[AccessCookie])
	assert.True(t, names[RefreshCookie])
	assert.Len(t, store.sessions, 1)

	for _, s := range store.sessions {
		assert.Equal(t, UserID("fake", "sub-alice"), s.UserID)
		assert.Equal(t, "alice@domain.ext", s.Email)
	}
	for hash := range store.refresh {
		for _, c := range cookies {
			assert.NotEqual(t, c.Value, hash, "raw refresh token must not be stored")
		}
	}
}

func TestExchangeStateIsSingleUse(t *testing.T) {
	b, store, _ := newTestBridge(t)
	_, err := b.SignInWithProvider(context.Background(), "fake", "")
	require.NoError(t, err)
	state := store.lastState(t)

	_, err = b.ExchangeAuthCode(context.Background(), httptest.NewRecorder(), "alice", state)
	require.NoError(t, err)

	_, err = b.ExchangeAuthCode(context.Background(), httptest.NewRecorder(), "alice", state)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestExchangeFailures(t *testing.T) {
	b, store, _ := newTestBridge(t)

	_, err := b.ExchangeAuthCode(context.Background(), httptest.NewRecorder(), "alice", "never-issued")
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = b.ExchangeAuthCode(context.Background(), httptest.NewRecorder(), "", "x")
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = b.SignInWithProvider(context.Background(), "fake", "")
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	_, err = b.ExchangeAuthCode(context.Background(), rec, "bad", store.lastState(t))
	assert.ErrorIs(t, err, ErrExchangeFailed)
	assert.True(t, IsAuthError(err))
	assert.Empty(t, rec.Result().Cookies())
	assert.Empty(t, store.sessions)
}

func TestRefreshNoCredentials(t *testing.T) {
	b, _, _ := newTestBridge(t)
	rec := httptest.NewRecorder()
	u, err := b.Refresh(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Nil(t, u)
	assert.Empty(t, rec.Result().Cookies())
}

func TestRefreshWithValidAccessToken(t *testing.T) {
	b, store, _ := newTestBridge(t)
	cookies := signIn(t, b, store, "alice")

	rec := httptest.NewRecorder()
	u, err := b.Refresh(rec, requestWith(cookies))
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, UserID("fake", "sub-alice"), u.ID)
	assert.Empty(t, rec.Result().Cookies(), "valid access token needs no rotation")
}

func TestRefreshRotatesExpiredAccessToken(t *testing.T) {
	b, store, clock := newTestBridge(t)
	cookies := signIn(t, b, store, "alice")

	*clock = clock.Add(16 * time.Minute)

	rec := httptest.NewRecorder()
	u, err := b.Refresh(rec, requestWith(cookies))
	require.NoError(t, err)
	require.NotNil(t, u)
	rotated := rec.Result().Cookies()
	require.Len(t, rotated, 2)

	// the old refresh token was consumed by the rotation
	*clock = clock.Add(11 * time.Second)
	rec = httptest.NewRecorder()
	u, err = b.Refresh(rec, requestWith(cookies))
	require.NoError(t, err)
	assert.Nil(t, u)

	rec = httptest.NewRecorder()
	u, err = b.Refresh(rec, requestWith(rotated))
	require.NoError(t, err)
	assert.NotNil(t, u)
}

func TestRefreshToleratesRacingRequests(t *testing.T) {
	b, store, clock := newTestBridge(t)
	cookies := signIn(t, b, store, "alice")
	*clock = clock.Add(16 * time.Minute)

	// two tabs reconnect with the same expired cookies
	first := httptest.NewRecorder()
	u, err := b.Refresh(first, requestWith(cookies))
	require.NoError(t, err)
	require.NotNil(t, u)

	second := httptest.NewRecorder()
	u, err = b.Refresh(second, requestWith(cookies))
	require.NoError(t, err)
	require.NotNil(t, u, "a request racing the rotation must not sign the user out")
	assert.Equal(t, UserID("fake", "sub-alice"), u.ID)

	for _, rec := range []*httptest.ResponseRecorder{first, second} {
		got := rec.Result().Cookies()
		require.Len(t, got, 2)
		for _, c := range got {
			assert.Greater(t, c.MaxAge, 0, "%s must not be cleared", c.Name)
		}
	}

	// whichever pair the browser keeps stays valid
	*clock = clock.Add(time.Minute)
	for _, rec := range []*httptest.ResponseRecorder{first, second} {
		u, err = b.Refresh(httptest.NewRecorder(), requestWith(rec.Result().Cookies()))
		require.NoError(t, err)
		assert.NotNil(t, u)
	}

	// past the reuse window the original token is dead
	rec := httptest.NewRecorder()
	u, err = b.Refresh(rec, requestWith(cookies))
	require.NoError(t, err)
	assert.Nil(t, u)
	for _, c := range rec.Result().Cookies() {
		assert.Less(t, c.MaxAge, 0)
	}
}

func TestRefreshRejectsForgedAccessToken(t *testing.T) {
	b, _, _ := newTestBridge(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: AccessCookie, Value: "not.a.jwt"})

	rec := httptest.NewRecorder()
	u, err := b.Refresh(rec, req)
	require.NoError(t, err)
	assert.Nil(t, u)

	cleared := rec.Result().Cookies()
	require.NotEmpty(t, cleared)
	for _, c := range cleared {
		assert.Less(t, c.MaxAge, 0)
	}
}

func TestSignOut(t *testing.T) {
	b, store, _ := newTestBridge(t)
	cookies := signIn(t, b, store, "alice")

	rec := httptest.NewRecorder()
	require.NoError(t, b.SignOut(context.Background(), rec, requestWith(cookies)))
	assert.Empty(t, store.sessions)
	assert.Empty(t, store.refresh)

	u, err := b.Refresh(httptest.NewRecorder(), requestWith(cookies))
	require.NoError(t, err)
	assert.Nil(t, u, "signed out cookies must not authenticate")

	// idempotent
	require.NoError(t, b.SignOut(context.Background(), httptest.NewRecorder(), requestWith(cookies)))
	require.NoError(t, b.SignOut(context.Background(), httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", nil)))
}

func TestCurrentUser(t *testing.T) {
	b, store, _ := newTestBridge(t)

	u, err := b.CurrentUser(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Nil(t, u)

	cookies := signIn(t, b, store, "bob")
	u, err = b.CurrentUser(requestWith(cookies))
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "bob@domain.ext", u.Email)

	ctxUser := &domain.User{ID: "from-context"}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithUser(req.Context(), ctxUser))
	u, err = b.CurrentUser(req)
	require.NoError(t, err)
	assert.Same(t, ctxUser, u)
}

func TestUserIDIsStable(t *testing.T) {
	assert.Equal(t, UserID("google", "123"), UserID("google", "123"))
	assert.NotEqual(t, UserID("google", "123"), UserID("google", "124"))
	assert.NotEqual(t, UserID("google", "123"), UserID("other", "123"))
}

func TestHashRefreshToken(t *testing.T) {
	h := HashRefreshToken("token")
	assert.Len(t, h, 64)
	assert.Equal(t, h, HashRefreshToken("token"))
	assert.NotEqual(t, h, HashRefreshToken("token2"))
}
