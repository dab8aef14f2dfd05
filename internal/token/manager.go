// Package token manages the vendor-level bearer token: one credential for
// the whole process, acquired at startup, refreshed only when the vendor
// rejects it, never persisted.
package token

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrNotReady means no vendor token is available yet. Callers are expected
// to degrade to a no-op rather than surface this to the user.
var ErrNotReady = errors.New("vendor token not ready")

// Authenticator is the single vendor operation the manager depends on.
type Authenticator interface {
	AcquireVendorToken(ctx context.Context, clientID, secret string) (string, error)
}

// Manager holds the process-wide vendor token. Writes happen at startup and
// on explicit invalidation; reads come from every orchestrator.
type Manager struct {
	auth     Authenticator
	clientID string
	secret   string

	mu    sync.RWMutex
	token string
}

// NewManager creates a Manager. No network call happens until Acquire.
func NewManager(auth Authenticator, clientID, secret string) *Manager {
	return &Manager{auth: auth, clientID: clientID, secret: secret}
}

// Acquire exchanges the credential pair for a fresh vendor token and stores
// it. Called once at startup; safe to call again after Invalidate.
func (m *Manager) Acquire(ctx context.Context) error {
	tok, err := m.auth.AcquireVendorToken(ctx, m.clientID, m.secret)
	if err != nil {
		return fmt.Errorf("acquire vendor token: %w", err)
	}
	if tok == "" {
		return fmt.Errorf("acquire vendor token: vendor returned empty token")
	}

	m.mu.Lock()
	m.token = tok
	m.mu.Unlock()
	return nil
}

// Get returns the current token. ok is false when no token is held, which
// readers treat as "not ready".
func (m *Manager) Get() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token, m.token != ""
}

// Token returns the current token, lazily re-acquiring when none is held.
// Returns ErrNotReady (wrapping the acquisition failure) when the vendor
// cannot be reached.
func (m *Manager) Token(ctx context.Context) (string, error) {
	if tok, ok := m.Get(); ok {
		return tok, nil
	}
	if err := m.Acquire(ctx); err != nil {
		return "", fmt.Errorf("%w: %w", ErrNotReady, err)
	}
	tok, _ := m.Get()
	return tok, nil
}

// Invalidate drops the held token so the next Token call re-acquires.
// Called when a vendor operation comes back 401.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	m.token = ""
	m.mu.Unlock()
	slog.Info("vendor token invalidated")
}
