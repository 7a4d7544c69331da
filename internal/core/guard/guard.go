// Package guard decides what a protected route renders for a given session.
// Decisions depend only on the session and the static guard configuration.
package guard

import (
	"github.com/typeapproval/portal/internal/core/domain"
	"github.com/typeapproval/portal/internal/core/rbac"
)

// Outcome is the rendering decision of a guard.
type Outcome int

const (
	// Wait renders nothing: the session has not resolved yet.
	Wait Outcome = iota
	// Allow renders the protected content.
	Allow
	// Redirect sends the client to the sign-in entry point.
	Redirect
	// Deny renders the access-denied placeholder in place.
	Deny
)

func (o Outcome) String() string {
	switch o {
	case Wait:
		return "wait"
	case Allow:
		return "allow"
	case Redirect:
		return "redirect"
	case Deny:
		return "deny"
	default:
		return "unknown"
	}
}

// Authenticated is the authentication guard.
func Authenticated(s domain.Session) Outcome {
	if s.Loading {
		return Wait
	}
	if s.IsAuthenticated {
		return Allow
	}
	return Redirect
}

// Authorized is the role guard. A nil predicate denies.
func Authorized(s domain.Session, pred rbac.Predicate) Outcome {
	if pred == nil || !pred(s.User) {
		return Deny
	}
	return Allow
}
