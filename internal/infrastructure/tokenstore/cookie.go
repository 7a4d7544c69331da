package tokenstore

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/sessions"

	"github.com/typeapproval/portal/internal/core/domain"
)

const tokenKey = "token"

// Cookie keeps the credential inside the client's sealed session cookie. It is
// bound to a single request/response pair.
type Cookie struct {
	store sessions.Store
	opts  Options
	r     *http.Request
	w     http.ResponseWriter
	sess  *sessions.Session
}

func NewCookie(store sessions.Store, opts Options, r *http.Request, w http.ResponseWriter) *Cookie {
	return &Cookie{store: store, opts: opts.withDefaults(), r: r, w: w}
}

func (c *Cookie) Save(_ context.Context, token string) error {
	session := c.session()
	session.Values[tokenKey] = token
	c.opts.apply(session, lifetime(token, c.opts.MaxAge))
	if err := session.Save(c.r, c.w); err != nil {
		return fmt.Errorf("save session cookie: %w", err)
	}
	return nil
}

func (c *Cookie) Read(_ context.Context) (string, error) {
	token, _ := c.session().Values[tokenKey].(string)
	if token == "" {
		return "", domain.ErrNoToken
	}
	return token, nil
}

func (c *Cookie) Clear(_ context.Context) error {
	session := c.session()
	if _, held := session.Values[tokenKey]; !held && session.IsNew {
		return nil
	}
	delete(session.Values, tokenKey)
	c.opts.apply(session, 0)
	if err := session.Save(c.r, c.w); err != nil {
		return fmt.Errorf("expire session cookie: %w", err)
	}
	return nil
}

// session returns the request's cookie session, loading it on first use. A
// cookie that cannot be decoded yields an empty session that later writes of
// this request share.
func (c *Cookie) session() *sessions.Session {
	if c.sess == nil {
		c.sess = loadSession(c.store, c.r, c.opts.CookieName)
	}
	return c.sess
}

// loadSession keeps the session gorilla hands back even when decoding failed;
// it is new and empty in that case.
func loadSession(store sessions.Store, r *http.Request, name string) *sessions.Session {
	session, err := store.Get(r, name)
	if session == nil {
		return sessions.NewSession(store, name)
	}
	if err != nil {
		session.IsNew = true
		clear(session.Values)
	}
	return session
}
