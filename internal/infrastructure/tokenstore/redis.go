package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/redis/go-redis/v9"

	"github.com/typeapproval/portal/internal/core/domain"
)

const sidKey = "sid"

// Redis keeps the credential server-side. The client's cookie carries only an
// opaque session id; the credential lives under portal:token:<sid>.
type Redis struct {
	client *redis.Client
	store  sessions.Store
	opts   Options
	r      *http.Request
	w      http.ResponseWriter
	sess   *sessions.Session
}

func NewRedis(client *redis.Client, store sessions.Store, opts Options, r *http.Request, w http.ResponseWriter) *Redis {
	return &Redis{client: client, store: store, opts: opts.withDefaults(), r: r, w: w}
}

// Save stores token under a freshly issued session id, dropping the previous one.
func (s *Redis) Save(ctx context.Context, token string) error {
	session := s.session()
	if old, _ := session.Values[sidKey].(string); old != "" {
		if err := s.client.Del(ctx, key(old)).Err(); err != nil {
			return fmt.Errorf("drop previous credential: %w", err)
		}
	}

	sid := uuid.NewString()
	ttl := lifetime(token, s.opts.MaxAge)
	if err := s.client.Set(ctx, key(sid), token, ttl).Err(); err != nil {
		return fmt.Errorf("store credential: %w", err)
	}

	session.Values[sidKey] = sid
	s.opts.apply(session, ttl)
	if err := session.Save(s.r, s.w); err != nil {
		return fmt.Errorf("save session cookie: %w", err)
	}
	return nil
}

func (s *Redis) Read(ctx context.Context) (string, error) {
	sid, _ := s.session().Values[sidKey].(string)
	if sid == "" {
		return "", domain.ErrNoToken
	}
	token, err := s.client.Get(ctx, key(sid)).Result()
	if errors.Is(err, redis.Nil) {
		return "", domain.ErrNoToken
	}
	if err != nil {
		return "", fmt.Errorf("read credential: %w", err)
	}
	return token, nil
}

func (s *Redis) Clear(ctx context.Context) error {
	session := s.session()
	sid, _ := session.Values[sidKey].(string)
	if sid == "" {
		return nil
	}
	if err := s.client.Del(ctx, key(sid)).Err(); err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	delete(session.Values, sidKey)
	s.opts.apply(session, 0)
	if err := session.Save(s.r, s.w); err != nil {
		return fmt.Errorf("expire session cookie: %w", err)
	}
	return nil
}

func (s *Redis) session() *sessions.Session {
	if s.sess == nil {
		s.sess = loadSession(s.store, s.r, s.opts.CookieName)
	}
	return s.sess
}

func key(sid string) string {
	return "portal:token:" + sid
}
