package ports

import (
	"context"

	"github.com/typeapproval/portal/internal/core/domain"
)

// AuditRepository persists audit trail records.
type AuditRepository interface {
	Insert(ctx context.Context, event *domain.AuthEvent) error
}

// AuditSink accepts audit events without blocking the caller.
type AuditSink interface {
	Record(event domain.AuthEvent)
}

// DeniedThrottle suppresses repeated access-denied events.
// Allow reports whether the event for key should be recorded.
type DeniedThrottle interface {
	Allow(ctx context.Context, key string) (bool, error)
}
