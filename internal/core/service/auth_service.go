package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/typeapproval/portal/internal/core/domain"
	"github.com/typeapproval/portal/internal/core/ports"
)

// RequestMeta identifies the HTTP request an audit event originated from.
type RequestMeta struct {
	Path      string
	RequestID string
}

// AuthService drives sign-in, sign-up and logout against the backend and the
// client's SessionManager.
type AuthService struct {
	backend ports.AuthBackend
	audit   ports.AuditSink
	log     zerolog.Logger
}

func NewAuthService(backend ports.AuthBackend, audit ports.AuditSink, log zerolog.Logger) *AuthService {
	return &AuthService{backend: backend, audit: audit, log: log}
}

// SignIn exchanges email and password for a credential and logs the session in
// with it. Rejected credentials are reported as domain.ErrInvalidCredentials.
func (s *AuthService) SignIn(ctx context.Context, session *SessionManager, email, password string, meta RequestMeta) (domain.Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return session.State(), domain.ErrInvalidCredentials
	}

	token, err := s.backend.SignIn(ctx, email, password)
	if err != nil {
		err = credentialError(err)
		s.record(domain.EventSignInFailed, nil, email, meta, err.Error())
		return session.State(), err
	}

	if err := session.Login(ctx, token); err != nil {
		err = credentialError(err)
		s.record(domain.EventSignInFailed, nil, email, meta, err.Error())
		return session.State(), err
	}

	state := session.State()
	s.record(domain.EventSignIn, state.User, email, meta, "")
	s.log.Info().Int64("user_id", state.User.ID).Msg("user signed in")
	return state, nil
}

// SignUp creates an account. It does not sign the new user in.
func (s *AuthService) SignUp(ctx context.Context, in ports.SignUpInput, meta RequestMeta) error {
	in.Email = strings.TrimSpace(in.Email)
	if err := s.backend.SignUp(ctx, in); err != nil {
		return err
	}
	s.record(domain.EventSignUp, nil, in.Email, meta, "")
	return nil
}

// Logout ends the session. Calling it on an anonymous session is harmless.
func (s *AuthService) Logout(ctx context.Context, session *SessionManager, meta RequestMeta) {
	prev := session.State()
	session.Logout(ctx)
	if prev.IsAuthenticated {
		s.record(domain.EventLogout, prev.User, "", meta, "")
	}
}

func (s *AuthService) record(kind domain.AuthEventType, u *domain.User, email string, meta RequestMeta, detail string) {
	if s.audit == nil {
		return
	}
	ev := domain.AuthEvent{
		Type:      kind,
		Email:     email,
		Path:      meta.Path,
		RequestID: meta.RequestID,
		Detail:    detail,
		At:        time.Now().UTC(),
	}
	if u != nil {
		ev.UserID = u.ID
		ev.Email = u.Email
	}
	s.audit.Record(ev)
}

// credentialError folds backend rejections of a sign-in into ErrInvalidCredentials.
func credentialError(err error) error {
	if errors.Is(err, domain.ErrUnauthenticated) || errors.Is(err, domain.ErrForbidden) || errors.Is(err, domain.ErrUserNotFound) {
		return domain.ErrInvalidCredentials
	}
	var be *domain.BackendError
	if errors.As(err, &be) && (be.Status == http.StatusBadRequest || be.Status == http.StatusUnauthorized) {
		return domain.ErrInvalidCredentials
	}
	return err
}
