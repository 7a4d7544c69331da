package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNoToken            = errors.New("no credential stored")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthenticated    = errors.New("credential rejected by backend")
	ErrForbidden          = errors.New("access forbidden")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrBackendUnavailable = errors.New("backend unavailable")
	ErrSessionSuperseded  = errors.New("session changed during sign-in")
	ErrUnknownRole        = errors.New("unknown role")
)

// BackendError is a 4xx answer from the backend that carries a message meant
// for the user (validation failures and the like).
type BackendError struct {
	Status  int
	Message string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Message)
}
