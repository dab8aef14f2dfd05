// Package session tracks per-user session state: the tenant list known to
// the session, the selected tenant, and the tenant-switch state machine.
// All durable session data lives with the vendor; this is a mirror keyed by
// the verified subject claim.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"tenantbridge/pkg/models"
)

var (
	// ErrNoSession means no session state exists for the user yet.
	ErrNoSession = errors.New("no session state for user")

	// ErrSwitchVerification means the vendor accepted the switch call but
	// the target tenant is not in the session's tenant list, e.g. because
	// it was revoked mid-flight.
	ErrSwitchVerification = errors.New("tenant switch verification failed")
)

// SwitchState is the tenant-switch state machine. The displayed selection
// only advances on SwitchConfirmed; there is no optimistic update.
type SwitchState string

const (
	SwitchIdle       SwitchState = "idle"
	SwitchInProgress SwitchState = "switching"
	SwitchConfirmed  SwitchState = "confirmed"
	SwitchFailed     SwitchState = "failed"
)

// Claims are the verified fields of the user's vendor-issued access token.
type Claims struct {
	UserID            string
	Name              string
	Email             string
	ProfilePictureURL string
	ActiveTenantID    string
	TenantIDs         []string
}

// State is a snapshot of one user's session.
type State struct {
	User             models.User
	Tenants          []models.Tenant
	ClaimTenantIDs   []string
	SelectedTenantID string
	Switch           SwitchState
	LastError        string
}

// Identity is the subset of vendor operations the session layer needs. Both
// run with the user's own bearer token, never the vendor token.
type Identity interface {
	SwitchUserTenant(ctx context.Context, userToken, tenantID string) error
	ListUserTenants(ctx context.Context, userToken string) ([]models.Tenant, error)
}

// Manager holds session state for all users.
type Manager struct {
	idp Identity

	mu       sync.Mutex
	sessions map[string]*State
}

// NewManager creates an empty session manager.
func NewManager(idp Identity) *Manager {
	return &Manager{idp: idp, sessions: make(map[string]*State)}
}

// Begin creates or refreshes the session for the given claims and returns a
// snapshot. The selected tenant is initialized from the session tenant list
// when present, otherwise from the token's tenant claims, and is never
// cleared once set.
func (m *Manager) Begin(claims Claims) State {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.sessions[claims.UserID]
	if !ok {
		st = &State{Switch: SwitchIdle}
		m.sessions[claims.UserID] = st
	}

	st.User = models.User{
		ID:                claims.UserID,
		Name:              claims.Name,
		Email:             claims.Email,
		ProfilePictureURL: claims.ProfilePictureURL,
	}
	st.ClaimTenantIDs = append([]string(nil), claims.TenantIDs...)

	if st.SelectedTenantID == "" {
		switch {
		case len(st.Tenants) > 0:
			st.SelectedTenantID = st.Tenants[0].TenantID
		case claims.ActiveTenantID != "":
			st.SelectedTenantID = claims.ActiveTenantID
		case len(claims.TenantIDs) > 0:
			st.SelectedTenantID = claims.TenantIDs[0]
		}
	}

	return snapshot(st)
}

// Get returns a snapshot of the user's session.
func (m *Manager) Get(userID string) (State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.sessions[userID]
	if !ok {
		return State{}, false
	}
	return snapshot(st), true
}

// Reload refreshes the session tenant list from the vendor.
func (m *Manager) Reload(ctx context.Context, userToken, userID string) error {
	tenants, err := m.idp.ListUserTenants(ctx, userToken)
	if err != nil {
		return fmt.Errorf("reload session tenants: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.sessions[userID]
	if !ok {
		return ErrNoSession
	}
	st.Tenants = tenants
	if st.SelectedTenantID == "" && len(tenants) > 0 {
		st.SelectedTenantID = tenants[0].TenantID
	}
	return nil
}

// Switch runs the tenant-switch orchestration:
//
//	Switching -> vendor switch call -> verify membership -> Confirmed -> reload
//
// The selection advances only after verification. A verification failure
// returns ErrSwitchVerification, leaves the selection unchanged, and does
// not trigger a tenant-list reload.
func (m *Manager) Switch(ctx context.Context, userToken, userID, tenantID string) error {
	m.mu.Lock()
	st, ok := m.sessions[userID]
	if !ok {
		m.mu.Unlock()
		return ErrNoSession
	}
	st.Switch = SwitchInProgress
	st.LastError = ""
	known := knownIDs(st)
	m.mu.Unlock()

	if err := m.idp.SwitchUserTenant(ctx, userToken, tenantID); err != nil {
		m.fail(userID, err)
		return err
	}

	if !contains(known, tenantID) {
		err := fmt.Errorf("%w: tenant %s not in session tenant list", ErrSwitchVerification, tenantID)
		m.fail(userID, err)
		return err
	}

	m.mu.Lock()
	st.Switch = SwitchConfirmed
	st.SelectedTenantID = tenantID
	m.mu.Unlock()

	slog.Info("tenant switch confirmed", "user_id", userID, "tenant_id", tenantID)

	if err := m.Reload(ctx, userToken, userID); err != nil {
		// The switch itself is confirmed; the stale list heals on the
		// next reload.
		return err
	}
	return nil
}

func (m *Manager) fail(userID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if st, ok := m.sessions[userID]; ok {
		st.Switch = SwitchFailed
		st.LastError = err.Error()
	}
}

// knownIDs is the union of the session tenant list and the token's tenant
// claims, claims covering the window before the first reload.
func knownIDs(st *State) []string {
	ids := make([]string, 0, len(st.Tenants)+len(st.ClaimTenantIDs))
	for _, t := range st.Tenants {
		ids = append(ids, t.TenantID)
	}
	ids = append(ids, st.ClaimTenantIDs...)
	return ids
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func snapshot(st *State) State {
	out := *st
	out.Tenants = append([]models.Tenant(nil), st.Tenants...)
	out.ClaimTenantIDs = append([]string(nil), st.ClaimTenantIDs...)
	return out
}
