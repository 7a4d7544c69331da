package middleware

import (
	"net/http"
	"net/url"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/typeapproval/portal/internal/core/domain"
	"github.com/typeapproval/portal/internal/core/guard"
	"github.com/typeapproval/portal/internal/core/ports"
	"github.com/typeapproval/portal/internal/core/rbac"
	"github.com/typeapproval/portal/internal/pkg/metrics"
)

type accessDeniedResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// RequireAuth lets authenticated sessions through and redirects everyone else
// to signInPath, carrying the requested location in returnTo. While the
// session is still loading it renders nothing.
func RequireAuth(signInPath string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			outcome := guard.Authenticated(sessionState(c))
			metrics.GuardDecisionsTotal.WithLabelValues("auth", outcome.String()).Inc()

			switch outcome {
			case guard.Allow:
				return next(c)
			case guard.Wait:
				return c.NoContent(http.StatusNoContent)
			default:
				return c.Redirect(http.StatusFound, SignInLocation(signInPath, c.Request().URL.RequestURI()))
			}
		}
	}
}

// RequireRole renders the access-denied placeholder with message unless the
// session's user holds one of roles.
func RequireRole(message string, audit ports.AuditSink, roles ...domain.Role) echo.MiddlewareFunc {
	return RequirePredicate(message, audit, rbac.RequireRoles(roles...))
}

// RequirePredicate renders the access-denied placeholder with message unless
// pred holds for the session's user. It never redirects.
func RequirePredicate(message string, audit ports.AuditSink, pred rbac.Predicate) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			return authorize(c, next, message, audit, pred)
		}
	}
}

// RequireForMethod applies read to safe methods and write to everything else.
func RequireForMethod(message string, audit ports.AuditSink, read, write rbac.Predicate) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			pred := write
			switch c.Request().Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				pred = read
			}
			return authorize(c, next, message, audit, pred)
		}
	}
}

func authorize(c echo.Context, next echo.HandlerFunc, message string, audit ports.AuditSink, pred rbac.Predicate) error {
	state := sessionState(c)
	outcome := guard.Authorized(state, pred)
	metrics.GuardDecisionsTotal.WithLabelValues("role", outcome.String()).Inc()

	if outcome == guard.Allow {
		return next(c)
	}

	if audit != nil {
		ev := domain.AuthEvent{
			Type:      domain.EventAccessDenied,
			Path:      c.Request().URL.Path,
			RequestID: c.Response().Header().Get(echo.HeaderXRequestID),
			Detail:    c.Request().Method,
			At:        time.Now().UTC(),
		}
		if state.User != nil {
			ev.UserID = state.User.ID
			ev.Email = state.User.Email
		}
		audit.Record(ev)
	}
	return c.JSON(http.StatusForbidden, accessDeniedResponse{Error: "access denied", Message: message})
}

// SignInLocation builds the sign-in redirect target for a requested URI.
func SignInLocation(signInPath, requested string) string {
	return signInPath + "?" + url.Values{"returnTo": {requested}}.Encode()
}
