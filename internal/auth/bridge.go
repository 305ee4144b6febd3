package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/MrSnakeDoc/smartmarks/internal/domain"
	"github.com/MrSnakeDoc/smartmarks/internal/logger"
)

// SessionStore persists sessions, refresh token hashes and OAuth states.
// Getters return (nil, nil) when the record does not exist.
type SessionStore interface {
	SaveOAuthState(ctx context.Context, state string, rec domain.OAuthState, ttl time.Duration) error
	ConsumeOAuthState(ctx context.Context, state string) (*domain.OAuthState, error)
	SaveSession(ctx context.Context, sess domain.Session, refreshHash string, ttl time.Duration) error
	GetSession(ctx context.Context, id string) (*domain.Session, error)
	RotateRefresh(ctx context.Context, oldHash, newHash string, ttl, reuse time.Duration) (*domain.Session, error)
	DeleteSession(ctx context.Context, id, refreshHash string) error
}

// EventRecorder counts auth events, ex: "signin", "refresh", "signout".
type EventRecorder interface {
	AuthEvent(event string)
}

type nopRecorder struct{}

func (nopRecorder) AuthEvent(string) {}

// Options configures the Bridge.
type Options struct {
	Secret       []byte        // HS256 key for access tokens
	AccessTTL    time.Duration // access token lifetime
	RefreshTTL   time.Duration // session and refresh token lifetime
	RefreshReuse time.Duration // a rotated refresh token stays usable this long
	StateTTL     time.Duration // pending sign-in lifetime
	CookieSecure bool
}

// userNamespace scopes derived user ids, so a provider subject always maps
// to the same user id.
var userNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://smartmarks/users"))

// UserID derives the stable user id for a provider identity.
func UserID(provider, subject string) string {
	return uuid.NewSHA1(userNamespace, []byte(provider+":"+subject)).String()
}

// Bridge ties the OAuth providers to cookie sessions. It is the only place
// that reads or writes the session cookies.
type Bridge struct {
	store     SessionStore
	providers map[string]Provider
	tokens    *tokenSigner
	opts      Options
	log       logger.Logger
	events    EventRecorder
	now       func() time.Time
}

// NewBridge creates a Bridge. events may be nil.
func NewBridge(store SessionStore, providers []Provider, opts Options, events EventRecorder, log logger.Logger) *Bridge {
	if events == nil {
		events = nopRecorder{}
	}
	b := &Bridge{
		store:     store,
		providers: make(map[string]Provider, len(providers)),
		opts:      opts,
		log:       log.Named("auth"),
		events:    events,
		now:       time.Now,
	}
	for _, p := range providers {
		b.providers[p.ID()] = p
	}
	b.tokens = &tokenSigner{secret: opts.Secret, ttl: opts.AccessTTL, now: func() time.Time { return b.now() }}
	return b
}

// Refresh resolves the user behind the request cookies. A valid access
// token is accepted while its session exists. Otherwise the refresh token is
// rotated and fresh cookies are written to w. Requests racing on the same
// refresh token within Options.RefreshReuse all succeed. Returns (nil, nil)
// when the request carries no usable credentials; stale cookies are cleared.
func (b *Bridge) Refresh(w http.ResponseWriter, r *http.Request) (*domain.User, error) {
	ctx := r.Context()
	access := cookieValue(r, AccessCookie)
	refresh := cookieValue(r, RefreshCookie)

	if access != "" {
		if claims, err := b.tokens.parse(access, true); err == nil {
			sess, err := b.store.GetSession(ctx, claims.SessionID)
			if err != nil {
				return nil, fmt.Errorf("load session: %w", err)
			}
			if sess != nil {
				u := sess.User()
				return &u, nil
			}
		}
	}

	if refresh == "" {
		if access != "" {
			b.clearCookies(w)
		}
		return nil, nil
	}

	raw, hash, err := newRefreshToken()
	if err != nil {
		return nil, err
	}
	sess, err := b.store.RotateRefresh(ctx, HashRefreshToken(refresh), hash, b.opts.RefreshTTL, b.opts.RefreshReuse)
	if err != nil {
		return nil, fmt.Errorf("rotate refresh token: %w", err)
	}
	if sess == nil {
		b.events.AuthEvent("refresh_rejected")
		b.clearCookies(w)
		return nil, nil
	}

	token, err := b.tokens.issue(*sess)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	b.setCookies(w, token, raw)
	b.events.AuthEvent("refresh")

	u := sess.User()
	return &u, nil
}

// CurrentUser returns the user placed on the context by the guard, falling
// back to verifying the access cookie. It never writes cookies.
func (b *Bridge) CurrentUser(r *http.Request) (*domain.User, error) {
	if u := UserFromContext(r.Context()); u != nil {
		return u, nil
	}
	access := cookieValue(r, AccessCookie)
	if access == "" {
		return nil, nil
	}
	claims, err := b.tokens.parse(access, true)
	if err != nil {
		return nil, nil
	}
	u := claims.User()
	return &u, nil
}

// SignInWithProvider starts the authorization-code flow and returns the
// provider URL to redirect the browser to. next is where the user lands
// after the callback.
func (b *Bridge) SignInWithProvider(ctx context.Context, providerID, next string) (string, error) {
	p, ok := b.providers[providerID]
	if !ok {
		return "", ErrUnknownProvider
	}

	state, err := randomToken(32)
	if err != nil {
		return "", err
	}
	verifier := oauth2.GenerateVerifier()

	rec := domain.OAuthState{Provider: providerID, Verifier: verifier, Next: next}
	if err := b.store.SaveOAuthState(ctx, state, rec, b.opts.StateTTL); err != nil {
		return "", fmt.Errorf("save oauth state: %w", err)
	}
	return p.AuthCodeURL(state, verifier), nil
}

// ExchangeAuthCode completes the flow: it consumes state, exchanges code,
// creates the session and writes the cookies. It returns the next path
// recorded at sign-in, possibly empty.
func (b *Bridge) ExchangeAuthCode(ctx context.Context, w http.ResponseWriter, code, state string) (string, error) {
	if code == "" || state == "" {
		return "", ErrInvalidState
	}
	rec, err := b.store.ConsumeOAuthState(ctx, state)
	if err != nil {
		return "", fmt.Errorf("consume oauth state: %w", err)
	}
	if rec == nil {
		b.events.AuthEvent("state_rejected")
		return "", ErrInvalidState
	}
	p, ok := b.providers[rec.Provider]
	if !ok {
		return "", ErrUnknownProvider
	}

	id, err := p.Exchange(ctx, code, rec.Verifier)
	if err != nil {
		b.log.Warn("auth code exchange failed",
			logger.String("provider", rec.Provider),
			logger.Error(err))
		b.events.AuthEvent("exchange_failed")
		return "", fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}

	sess := domain.Session{
		ID:        uuid.NewString(),
		UserID:    UserID(rec.Provider, id.Subject),
		Email:     id.Email,
		Provider:  rec.Provider,
		CreatedAt: b.now().UTC(),
	}
	if err := b.startSession(ctx, w, sess); err != nil {
		return "", err
	}

	b.log.Info("user signed in",
		logger.String("provider", rec.Provider),
		logger.String("user_id", sess.UserID))
	b.events.AuthEvent("signin")
	return rec.Next, nil
}

// SignOut ends the session behind the cookies and clears them. Calling it
// without a session is not an error.
func (b *Bridge) SignOut(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var sid, hash string
	if access := cookieValue(r, AccessCookie); access != "" {
		if claims, err := b.tokens.parse(access, false); err == nil {
			sid = claims.SessionID
		}
	}
	if refresh := cookieValue(r, RefreshCookie); refresh != "" {
		hash = HashRefreshToken(refresh)
	}
	b.clearCookies(w)

	if sid == "" && hash == "" {
		return nil
	}
	if err := b.store.DeleteSession(ctx, sid, hash); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	b.events.AuthEvent("signout")
	return nil
}

func (b *Bridge) startSession(ctx context.Context, w http.ResponseWriter, sess domain.Session) error {
	raw, hash, err := newRefreshToken()
	if err != nil {
		return err
	}
	if err := b.store.SaveSession(ctx, sess, hash, b.opts.RefreshTTL); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	token, err := b.tokens.issue(sess)
	if err != nil {
		return fmt.Errorf("issue access token: %w", err)
	}
	b.setCookies(w, token, raw)
	return nil
}

// IsAuthError reports whether err is one of the sign-in errors the callback
// maps to the login error page.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrExchangeFailed) ||
		errors.Is(err, ErrUnknownProvider)
}
