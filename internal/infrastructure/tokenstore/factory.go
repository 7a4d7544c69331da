package tokenstore

import (
	"fmt"
	"net/http"

	"github.com/gorilla/sessions"
	"github.com/redis/go-redis/v9"

	"github.com/typeapproval/portal/internal/core/ports"
)

const (
	KindCookie = "cookie"
	KindRedis  = "redis"
)

// Factory binds a TokenStore of the configured kind to one request.
type Factory struct {
	kind    string
	cookies sessions.Store
	rdb     *redis.Client
	opts    Options
}

// NewFactory validates kind. rdb is only required for KindRedis.
func NewFactory(kind string, cookies sessions.Store, rdb *redis.Client, opts Options) (*Factory, error) {
	switch kind {
	case KindCookie:
	case KindRedis:
		if rdb == nil {
			return nil, fmt.Errorf("token store %q requires a redis client", kind)
		}
	default:
		return nil, fmt.Errorf("unknown token store %q", kind)
	}
	return &Factory{kind: kind, cookies: cookies, rdb: rdb, opts: opts.withDefaults()}, nil
}

func (f *Factory) For(r *http.Request, w http.ResponseWriter) ports.TokenStore {
	if f.kind == KindRedis {
		return NewRedis(f.rdb, f.cookies, f.opts, r, w)
	}
	return NewCookie(f.cookies, f.opts, r, w)
}
