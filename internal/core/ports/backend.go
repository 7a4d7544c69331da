package ports

import (
	"context"

	"github.com/typeapproval/portal/internal/core/domain"
)

// SignUpInput carries the account fields accepted by POST /auth/signup.
type SignUpInput struct {
	FirstName  string
	Patronymic string
	SecondName string
	Email      string
	Password   string
}

// ProfileFetcher resolves the stored credential into a user. Implementations
// attach the credential themselves.
type ProfileFetcher interface {
	Profile(ctx context.Context) (*domain.User, error)
}

// AuthBackend covers the credential-issuing endpoints of the REST backend.
type AuthBackend interface {
	SignIn(ctx context.Context, email, password string) (string, error)
	SignUp(ctx context.Context, in SignUpInput) error
}

// UserDirectory covers the admin user-management endpoints.
type UserDirectory interface {
	ListUsers(ctx context.Context) ([]domain.User, error)
	GetUser(ctx context.Context, id int64) (*domain.User, error)
	SetUserRoles(ctx context.Context, id int64, roles []domain.Role) (*domain.User, error)
}
