package ports

import "context"

// TokenStore persists the bearer credential of one client across reloads.
// Read returns domain.ErrNoToken when nothing is stored.
type TokenStore interface {
	Save(ctx context.Context, token string) error
	Read(ctx context.Context) (string, error)
	Clear(ctx context.Context) error
}
