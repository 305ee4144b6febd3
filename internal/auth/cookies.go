package auth

import (
	"net/http"
	"time"
)

const (
	AccessCookie  = "sm_access"
	RefreshCookie = "sm_refresh"
)

func (b *Bridge) setCookies(w http.ResponseWriter, access, refresh string) {
	http.SetCookie(w, b.cookie(AccessCookie, access, b.opts.AccessTTL))
	http.SetCookie(w, b.cookie(RefreshCookie, refresh, b.opts.RefreshTTL))
}

func (b *Bridge) clearCookies(w http.ResponseWriter) {
	http.SetCookie(w, b.cookie(AccessCookie, "", -1))
	http.SetCookie(w, b.cookie(RefreshCookie, "", -1))
}

// cookie builds a session cookie. A negative ttl deletes it.
func (b *Bridge) cookie(name, value string, ttl time.Duration) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   b.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
	if ttl < 0 {
		c.MaxAge = -1
		c.Expires = time.Unix(0, 0)
		return c
	}
	c.MaxAge = int(ttl.Seconds())
	return c
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
