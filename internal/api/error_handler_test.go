package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/typeapproval/portal/internal/core/domain"
)

func TestHTTPErrorHandler(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"invalid credentials", domain.ErrInvalidCredentials, http.StatusUnauthorized, "invalid credentials"},
		{"unauthenticated", fmt.Errorf("profile: %w", domain.ErrUnauthenticated), http.StatusUnauthorized, "authentication required"},
		{"forbidden", domain.ErrForbidden, http.StatusForbidden, "access forbidden"},
		{"not found", fmt.Errorf("get user 9: %w", domain.ErrUserNotFound), http.StatusNotFound, "user not found"},
		{"exists", domain.ErrUserExists, http.StatusConflict, "user already exists"},
		{"unknown role", fmt.Errorf("%w: %q", domain.ErrUnknownRole, "ADMIN"), http.StatusUnprocessableEntity, `unknown role: "ADMIN"`},
		{"superseded", domain.ErrSessionSuperseded, http.StatusConflict, "session changed during sign-in"},
		{"backend validation", fmt.Errorf("signup: %w", &domain.BackendError{Status: http.StatusBadRequest, Message: "email must be an email"}), http.StatusBadRequest, "email must be an email"},
		{"backend down", fmt.Errorf("signin: %w", domain.ErrBackendUnavailable), http.StatusBadGateway, "certification backend unavailable"},
		{"echo error", echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded"), http.StatusTooManyRequests, "rate limit exceeded"},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, "internal server error"},
	}

	h := NewHTTPErrorHandler(zerolog.Nop())
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

			h(tc.err, c)

			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d", rec.Code, tc.status)
			}
			var body errorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Error != tc.message {
				t.Fatalf("error = %q, want %q", body.Error, tc.message)
			}
		})
	}
}
