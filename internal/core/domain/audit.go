package domain

import "time"

// AuthEventType classifies entries of the authentication audit trail.
type AuthEventType string

const (
	EventSignIn          AuthEventType = "signin"
	EventSignInFailed    AuthEventType = "signin_failed"
	EventSignUp          AuthEventType = "signup"
	EventLogout          AuthEventType = "logout"
	EventHydrationFailed AuthEventType = "hydration_failed"
	EventAccessDenied    AuthEventType = "access_denied"
	EventRolesChanged    AuthEventType = "roles_changed"
)

// AuthEvent is one audit trail record.
type AuthEvent struct {
	Type      AuthEventType
	UserID    int64
	Email     string
	Path      string
	RequestID string
	Detail    string
	At        time.Time
}
