// Package tokenstore provides the TokenStore implementations that keep a
// client's backend credential between requests.
package tokenstore

import (
	"context"
	"sync"

	"github.com/typeapproval/portal/internal/core/domain"
)

// Memory keeps the credential in process memory.
type Memory struct {
	mu    sync.Mutex
	token string
	set   bool
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Save(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token, m.set = token, true
	return nil
}

func (m *Memory) Read(_ context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.set {
		return "", domain.ErrNoToken
	}
	return m.token, nil
}

func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token, m.set = "", false
	return nil
}
