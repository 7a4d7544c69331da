package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/typeapproval/portal/internal/core/domain"
	"github.com/typeapproval/portal/internal/core/ports"
	"github.com/typeapproval/portal/internal/pkg/metrics"
)

// SessionManager owns the authentication state of one client.
//
// It starts in the loading state, resolves once through Init, and afterwards
// moves between authenticated and anonymous through Login and Logout. Every
// state-changing call bumps a generation counter; a hydration only commits its
// result while its generation is still current, so a slow profile fetch cannot
// re-authenticate a session that was logged out in the meantime.
type SessionManager struct {
	tokens   ports.TokenStore
	profiles ports.ProfileFetcher
	log      zerolog.Logger

	// writeMu orders credential writes against generation changes: a stale
	// attempt cannot clear a credential saved by a newer one. Taken before mu.
	writeMu sync.Mutex

	mu         sync.Mutex
	state      domain.Session
	generation uint64
	subs       map[int]func(domain.Session)
	nextSub    int
	onFailure  func(error)
}

func NewSessionManager(tokens ports.TokenStore, profiles ports.ProfileFetcher, log zerolog.Logger) *SessionManager {
	return &SessionManager{
		tokens:   tokens,
		profiles: profiles,
		log:      log,
		state:    domain.Session{Loading: true},
		subs:     make(map[int]func(domain.Session)),
	}
}

// State returns a snapshot of the current session.
func (m *SessionManager) State() domain.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot()
}

// Subscribe registers fn to be called after every committed state change.
func (m *SessionManager) Subscribe(fn func(domain.Session)) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// OnHydrationFailure sets fn to be called when Init finds a stored credential
// that the backend rejects.
func (m *SessionManager) OnHydrationFailure(fn func(error)) {
	m.mu.Lock()
	m.onFailure = fn
	m.mu.Unlock()
}

// Init performs the initial hydration. Failures demote the session to
// anonymous and are never returned.
func (m *SessionManager) Init(ctx context.Context) {
	gen := m.begin()

	token, err := m.tokens.Read(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrNoToken) {
			m.log.Warn().Err(err).Msg("token store read failed, continuing anonymous")
		}
		metrics.SessionHydrationsTotal.WithLabelValues("no_token").Inc()
		m.commit(gen, domain.Anonymous())
		return
	}
	if token == "" {
		metrics.SessionHydrationsTotal.WithLabelValues("no_token").Inc()
		m.commit(gen, domain.Anonymous())
		return
	}

	err = m.hydrate(ctx, gen)
	if err != nil && !errors.Is(err, domain.ErrSessionSuperseded) {
		m.mu.Lock()
		fn := m.onFailure
		m.mu.Unlock()
		if fn != nil {
			fn(err)
		}
	}
}

// Login stores token and hydrates the session from it. It returns once the
// profile fetch has completed. On failure the credential is discarded, the
// session stays anonymous and the fetch error is returned.
func (m *SessionManager) Login(ctx context.Context, token string) error {
	m.writeMu.Lock()
	gen := m.begin()
	err := m.tokens.Save(ctx, token)
	m.writeMu.Unlock()

	if err != nil {
		m.log.Error().Err(err).Msg("failed to persist credential")
		m.commit(gen, domain.Anonymous())
		return err
	}

	return m.hydrate(ctx, gen)
}

// Logout discards the credential and the user. It never touches the network.
func (m *SessionManager) Logout(ctx context.Context) {
	m.writeMu.Lock()
	gen := m.begin()
	err := m.tokens.Clear(ctx)
	m.writeMu.Unlock()

	if err != nil {
		m.log.Warn().Err(err).Msg("failed to clear credential on logout")
	}
	m.commit(gen, domain.Anonymous())
}

func (m *SessionManager) hydrate(ctx context.Context, gen uint64) error {
	start := time.Now()
	user, err := m.profiles.Profile(ctx)
	metrics.SessionHydrationDuration.Observe(time.Since(start).Seconds())

	if err != nil || user == nil {
		if err == nil {
			err = domain.ErrUnauthenticated
		}
		if !m.clearIfCurrent(ctx, gen) {
			metrics.SessionHydrationsTotal.WithLabelValues("superseded").Inc()
			return domain.ErrSessionSuperseded
		}
		m.log.Info().Err(err).Msg("session hydration failed, demoted to anonymous")
		metrics.SessionHydrationsTotal.WithLabelValues("failed").Inc()
		m.commit(gen, domain.Anonymous())
		return err
	}

	if !m.commit(gen, domain.Session{IsAuthenticated: true, User: user}) {
		metrics.SessionHydrationsTotal.WithLabelValues("superseded").Inc()
		return domain.ErrSessionSuperseded
	}
	metrics.SessionHydrationsTotal.WithLabelValues("authenticated").Inc()
	m.log.Debug().Int64("user_id", user.ID).Msg("session hydrated")
	return nil
}

// begin starts a new attempt and invalidates every attempt still in flight.
func (m *SessionManager) begin() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generation++
	return m.generation
}

func (m *SessionManager) current(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generation == gen
}

// clearIfCurrent drops the rejected credential of attempt gen unless a newer
// attempt has started. It reports whether gen was still current.
func (m *SessionManager) clearIfCurrent(ctx context.Context, gen uint64) bool {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	if !m.current(gen) {
		return false
	}
	if err := m.tokens.Clear(ctx); err != nil {
		m.log.Warn().Err(err).Msg("failed to clear rejected credential")
	}
	return true
}

// commit applies next if gen is still current, then notifies subscribers.
// Loading is cleared by the first commit and never set again.
func (m *SessionManager) commit(gen uint64, next domain.Session) bool {
	m.mu.Lock()
	if m.generation != gen {
		m.mu.Unlock()
		return false
	}
	next.Loading = false
	m.state = next
	snap := m.snapshot()
	subs := make([]func(domain.Session), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
	return true
}

// snapshot copies the state so callers cannot mutate the held user.
// Caller must hold m.mu.
func (m *SessionManager) snapshot() domain.Session {
	s := m.state
	if s.User != nil {
		u := *s.User
		u.Roles = append(domain.RoleSet(nil), s.User.Roles...)
		s.User = &u
	}
	return s
}
