package backend

import (
	"net/http"

	"github.com/typeapproval/portal/internal/core/ports"
)

// bearerTransport attaches the stored credential to every outgoing request.
// Requests go out unauthenticated when the store is empty or unreadable.
type bearerTransport struct {
	base   http.RoundTripper
	tokens ports.TokenStore
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.tokens != nil {
		if token, err := t.tokens.Read(req.Context()); err == nil && token != "" {
			req = req.Clone(req.Context())
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	return t.base.RoundTrip(req)
}
