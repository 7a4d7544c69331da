package middleware

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/typeapproval/portal/internal/core/domain"
	"github.com/typeapproval/portal/internal/core/ports"
	"github.com/typeapproval/portal/internal/core/service"
	"github.com/typeapproval/portal/internal/infrastructure/backend"
	"github.com/typeapproval/portal/internal/pkg/metrics"
)

const scopeKey = "portal.scope"

// TokenStoreFactory binds a TokenStore to one request.
type TokenStoreFactory interface {
	For(r *http.Request, w http.ResponseWriter) ports.TokenStore
}

// Scope is what the Session middleware provides to the rest of the request:
// the client's resolved SessionManager and an API client carrying its credential.
type Scope struct {
	Session *service.SessionManager
	Backend *backend.Client
}

// Session resolves the caller's session before the handler runs. The session
// is hydrated from the stored credential on every request.
func Session(tokens TokenStoreFactory, client *backend.Client, audit ports.AuditSink, log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			requestID := c.Response().Header().Get(echo.HeaderXRequestID)

			store := tokens.For(req, c.Response())
			scoped := client.WithTokens(store)
			mgr := service.NewSessionManager(store, scoped, log.With().Str("request_id", requestID).Logger())

			unsubscribe := mgr.Subscribe(func(s domain.Session) {
				metrics.SessionTransitionsTotal.WithLabelValues(stateLabel(s)).Inc()
			})
			defer unsubscribe()

			if audit != nil {
				mgr.OnHydrationFailure(func(err error) {
					audit.Record(domain.AuthEvent{
						Type:      domain.EventHydrationFailed,
						Path:      req.URL.Path,
						RequestID: requestID,
						Detail:    err.Error(),
						At:        time.Now().UTC(),
					})
				})
			}

			mgr.Init(req.Context())
			c.Set(scopeKey, &Scope{Session: mgr, Backend: scoped})
			return next(c)
		}
	}
}

// ScopeFrom returns the request's Scope, or nil when the Session middleware
// did not run.
func ScopeFrom(c echo.Context) *Scope {
	s, _ := c.Get(scopeKey).(*Scope)
	return s
}

// SetScope installs s on c. Tests use it to drive guards with a prepared session.
func SetScope(c echo.Context, s *Scope) {
	c.Set(scopeKey, s)
}

// sessionState reads the request's session; a missing scope reads as anonymous.
func sessionState(c echo.Context) domain.Session {
	s := ScopeFrom(c)
	if s == nil || s.Session == nil {
		return domain.Anonymous()
	}
	return s.Session.State()
}

func stateLabel(s domain.Session) string {
	if s.IsAuthenticated {
		return "authenticated"
	}
	return "anonymous"
}
