package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/typeapproval/portal/internal/core/domain"
	"github.com/typeapproval/portal/internal/core/ports"
)

// UserAdminService backs the director-only user management pages. The
// directory is passed per call because it is bound to the caller's credential.
type UserAdminService struct {
	audit ports.AuditSink
	log   zerolog.Logger
}

func NewUserAdminService(audit ports.AuditSink, log zerolog.Logger) *UserAdminService {
	return &UserAdminService{audit: audit, log: log}
}

func (s *UserAdminService) ListUsers(ctx context.Context, dir ports.UserDirectory) ([]domain.User, error) {
	users, err := dir.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (s *UserAdminService) GetUser(ctx context.Context, dir ports.UserDirectory, id int64) (*domain.User, error) {
	u, err := dir.GetUser(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	return u, nil
}

// SetRoles replaces the role set of user id. Roles outside the fixed domain
// are rejected; duplicates are collapsed.
func (s *UserAdminService) SetRoles(ctx context.Context, dir ports.UserDirectory, actor *domain.User, id int64, roles []domain.Role, meta RequestMeta) (*domain.User, error) {
	set := make([]domain.Role, 0, len(roles))
	for _, r := range roles {
		if !r.Valid() {
			return nil, fmt.Errorf("%w: %q", domain.ErrUnknownRole, r)
		}
		if domain.RoleSet(set).Contains(r) {
			continue
		}
		set = append(set, r)
	}

	u, err := dir.SetUserRoles(ctx, id, set)
	if err != nil {
		return nil, fmt.Errorf("set roles of user %d: %w", id, err)
	}

	s.log.Info().Int64("user_id", id).Interface("roles", set).Msg("user roles changed")
	if s.audit != nil {
		ev := domain.AuthEvent{
			Type:      domain.EventRolesChanged,
			Path:      meta.Path,
			RequestID: meta.RequestID,
			Detail:    "target=" + strconv.FormatInt(id, 10) + " roles=" + joinRoles(set),
			At:        time.Now().UTC(),
		}
		if actor != nil {
			ev.UserID = actor.ID
			ev.Email = actor.Email
		}
		s.audit.Record(ev)
	}
	return u, nil
}

func joinRoles(roles []domain.Role) string {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return strings.Join(names, ",")
}
