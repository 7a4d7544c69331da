package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/typeapproval/portal/internal/api/middleware"
	"github.com/typeapproval/portal/internal/core/service"
)

// ctxScope extracts the per-request scope installed by the Session middleware.
// A missing scope means the route was registered outside the session group.
func ctxScope(c echo.Context) (*middleware.Scope, error) {
	s := middleware.ScopeFrom(c)
	if s == nil || s.Session == nil || s.Backend == nil {
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "session not resolved")
	}
	return s, nil
}

func requestMeta(c echo.Context) service.RequestMeta {
	return service.RequestMeta{
		Path:      c.Request().URL.Path,
		RequestID: c.Response().Header().Get(echo.HeaderXRequestID),
	}
}

// bindAndValidate decodes the body into req and runs the registered validator.
func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}
