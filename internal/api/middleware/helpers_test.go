package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/typeapproval/portal/internal/core/domain"
	"github.com/typeapproval/portal/internal/core/service"
	"github.com/typeapproval/portal/internal/infrastructure/tokenstore"
)

type fixedProfile struct {
	user *domain.User
}

func (f fixedProfile) Profile(context.Context) (*domain.User, error) {
	if f.user == nil {
		return nil, domain.ErrUnauthenticated
	}
	cp := *f.user
	return &cp, nil
}

type recordingAudit struct {
	mu     sync.Mutex
	events []domain.AuthEvent
}

func (a *recordingAudit) Record(ev domain.AuthEvent) {
	a.mu.Lock()
	a.events = append(a.events, ev)
	a.mu.Unlock()
}

func (a *recordingAudit) snapshot() []domain.AuthEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]domain.AuthEvent(nil), a.events...)
}

// manager builds a SessionManager. With resolve false it stays loading.
func manager(u *domain.User, resolve bool) *service.SessionManager {
	store := tokenstore.NewMemory()
	if u != nil {
		_ = store.Save(context.Background(), "token")
	}
	m := service.NewSessionManager(store, fixedProfile{user: u}, zerolog.Nop())
	if resolve {
		m.Init(context.Background())
	}
	return m
}

func newContext(method, target string, m *service.SessionManager) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(method, target, nil), rec)
	if m != nil {
		SetScope(c, &Scope{Session: m})
	}
	return c, rec
}

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "page")
}

func loading() *service.SessionManager { return manager(nil, false) }

func anonymous() *service.SessionManager { return manager(nil, true) }

func signedInAs(u *domain.User) func() *service.SessionManager {
	return func() *service.SessionManager { return manager(u, true) }
}
