package service

import (
	"context"
	"sync"

	"github.com/typeapproval/portal/internal/core/domain"
	"github.com/typeapproval/portal/internal/core/ports"
)

type stubTokens struct {
	mu      sync.Mutex
	token   string
	set     bool
	readErr error
	saveErr error
	clears  int

	// beforeClear runs at the start of Clear, before the credential is dropped.
	beforeClear func()
}

func (s *stubTokens) Save(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.token, s.set = token, true
	return nil
}

func (s *stubTokens) Read(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return "", s.readErr
	}
	if !s.set {
		return "", domain.ErrNoToken
	}
	return s.token, nil
}

func (s *stubTokens) Clear(_ context.Context) error {
	if s.beforeClear != nil {
		s.beforeClear()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token, s.set = "", false
	s.clears++
	return nil
}

func (s *stubTokens) held() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, s.set
}

// stubProfiles answers Profile with fn, keyed by the credential currently in tokens.
type stubProfiles struct {
	tokens *stubTokens
	fn     func(ctx context.Context, token string) (*domain.User, error)

	mu    sync.Mutex
	calls int
}

func (s *stubProfiles) Profile(ctx context.Context) (*domain.User, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	token, err := s.tokens.Read(ctx)
	if err != nil {
		return nil, domain.ErrUnauthenticated
	}
	return s.fn(ctx, token)
}

func (s *stubProfiles) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// profilesByToken serves fixed users per credential; unknown credentials are rejected.
func profilesByToken(tokens *stubTokens, users map[string]*domain.User) *stubProfiles {
	return &stubProfiles{tokens: tokens, fn: func(_ context.Context, token string) (*domain.User, error) {
		u, ok := users[token]
		if !ok {
			return nil, domain.ErrUnauthenticated
		}
		cp := *u
		return &cp, nil
	}}
}

type stubAudit struct {
	mu     sync.Mutex
	events []domain.AuthEvent
}

func (a *stubAudit) Record(ev domain.AuthEvent) {
	a.mu.Lock()
	a.events = append(a.events, ev)
	a.mu.Unlock()
}

func (a *stubAudit) types() []domain.AuthEventType {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]domain.AuthEventType, len(a.events))
	for i, ev := range a.events {
		out[i] = ev.Type
	}
	return out
}

type stubAuthBackend struct {
	tokens    map[string]string // email -> credential
	signInErr error
	signUpErr error
	signUps   []ports.SignUpInput
}

func (b *stubAuthBackend) SignIn(_ context.Context, email, _ string) (string, error) {
	if b.signInErr != nil {
		return "", b.signInErr
	}
	token, ok := b.tokens[email]
	if !ok {
		return "", domain.ErrUnauthenticated
	}
	return token, nil
}

func (b *stubAuthBackend) SignUp(_ context.Context, in ports.SignUpInput) error {
	if b.signUpErr != nil {
		return b.signUpErr
	}
	b.signUps = append(b.signUps, in)
	return nil
}

type stubDirectory struct {
	users    map[int64]*domain.User
	setCalls int
	lastSet  []domain.Role
}

func (d *stubDirectory) ListUsers(context.Context) ([]domain.User, error) {
	out := make([]domain.User, 0, len(d.users))
	for _, u := range d.users {
		out = append(out, *u)
	}
	return out, nil
}

func (d *stubDirectory) GetUser(_ context.Context, id int64) (*domain.User, error) {
	u, ok := d.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (d *stubDirectory) SetUserRoles(_ context.Context, id int64, roles []domain.Role) (*domain.User, error) {
	d.setCalls++
	d.lastSet = roles
	u, ok := d.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	u.Roles = append(domain.RoleSet(nil), roles...)
	cp := *u
	return &cp, nil
}
