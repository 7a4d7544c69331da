package tokenstore

import (
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/sessions"
)

const defaultMaxAge = 12 * time.Hour

// Options controls the browser cookie that anchors a client's credential.
type Options struct {
	CookieName string
	MaxAge     time.Duration
	Secure     bool
	SameSite   http.SameSite
}

func (o Options) withDefaults() Options {
	if o.CookieName == "" {
		o.CookieName = "portal_session"
	}
	if o.MaxAge <= 0 {
		o.MaxAge = defaultMaxAge
	}
	if o.SameSite == 0 {
		o.SameSite = http.SameSiteLaxMode
	}
	return o
}

// apply sets cookie attributes on session; a non-positive lifetime expires it.
func (o Options) apply(session *sessions.Session, lifetime time.Duration) {
	if session.Options == nil {
		session.Options = &sessions.Options{}
	}
	session.Options.Path = "/"
	session.Options.HttpOnly = true
	session.Options.Secure = o.Secure
	session.Options.SameSite = o.SameSite
	if lifetime <= 0 {
		session.Options.MaxAge = -1
		return
	}
	session.Options.MaxAge = int(lifetime.Seconds())
}

// SameSiteFromString maps a config value to an http.SameSite mode.
func SameSiteFromString(v string) http.SameSite {
	switch strings.ToLower(v) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

// lifetime is how long a credential is kept. JWT credentials are kept until
// their exp claim (read without verification), capped at fallback; anything
// else is kept for fallback.
func lifetime(token string, fallback time.Duration) time.Duration {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return fallback
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return fallback
	}
	if d := time.Until(exp.Time); d > 0 && d < fallback {
		return d
	}
	return fallback
}
