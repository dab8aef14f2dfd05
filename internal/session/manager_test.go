package session

import (
	"context"
	"errors"
	"testing"

	"tenantbridge/pkg/models"
)

// --- fakes ---

type fakeIdentity struct {
	switchErr   error
	listErr     error
	listResult  []models.Tenant
	switchCalls int
	listCalls   int
}

func (f *fakeIdentity) SwitchUserTenant(ctx context.Context, userToken, tenantID string) error {
	f.switchCalls++
	return f.switchErr
}

func (f *fakeIdentity) ListUserTenants(ctx context.Context, userToken string) ([]models.Tenant, error) {
	f.listCalls++
	return f.listResult, f.listErr
}

func claimsFor(userID string, tenantIDs ...string) Claims {
	c := Claims{UserID: userID, Name: "Test User", Email: "test@example.com", TenantIDs: tenantIDs}
	if len(tenantIDs) > 0 {
		c.ActiveTenantID = tenantIDs[0]
	}
	return c
}

// --- Begin tests ---

func TestBegin_CreatesSession(t *testing.T) {
	m := NewManager(&fakeIdentity{})

	st := m.Begin(claimsFor("u1", "T1", "T2"))

	if st.User.ID != "u1" {
		t.Errorf("expected user u1, got %q", st.User.ID)
	}
	if st.Switch != SwitchIdle {
		t.Errorf("expected idle switch state, got %q", st.Switch)
	}
	if st.SelectedTenantID != "T1" {
		t.Errorf("expected selection from active tenant claim, got %q", st.SelectedTenantID)
	}
}

func TestBegin_SelectionFromClaimListWhenNoActiveTenant(t *testing.T) {
	m := NewManager(&fakeIdentity{})

	st := m.Begin(Claims{UserID: "u1", TenantIDs: []string{"T5", "T6"}})

	if st.SelectedTenantID != "T5" {
		t.Errorf("expected T5, got %q", st.SelectedTenantID)
	}
}

func TestBegin_SelectionPrefersLoadedTenantList(t *testing.T) {
	idp := &fakeIdentity{listResult: []models.Tenant{{TenantID: "T9"}}}
	m := NewManager(idp)

	// Session exists with a loaded tenant list but no selection yet.
	m.Begin(Claims{UserID: "u1"})
	if err := m.Reload(context.Background(), "user-jwt", "u1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	st := m.Begin(Claims{UserID: "u1", ActiveTenantID: "T-claim"})
	if st.SelectedTenantID != "T9" {
		t.Errorf("expected selection from loaded list, got %q", st.SelectedTenantID)
	}
}

func TestBegin_SelectionIsNeverCleared(t *testing.T) {
	idp := &fakeIdentity{listResult: []models.Tenant{{TenantID: "T1"}, {TenantID: "T2"}}}
	m := NewManager(idp)

	m.Begin(claimsFor("u1", "T1", "T2"))
	if err := m.Reload(context.Background(), "user-jwt", "u1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.Switch(context.Background(), "user-jwt", "u1", "T2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A later Begin with different claims must not reset the selection.
	st := m.Begin(claimsFor("u1", "T1"))
	if st.SelectedTenantID != "T2" {
		t.Errorf("expected selection to stick at T2, got %q", st.SelectedTenantID)
	}
}

// --- Reload tests ---

func TestReload_SetsTenantList(t *testing.T) {
	idp := &fakeIdentity{listResult: []models.Tenant{{TenantID: "T1"}, {TenantID: "T2"}}}
	m := NewManager(idp)
	m.Begin(claimsFor("u1", "T1"))

	if err := m.Reload(context.Background(), "user-jwt", "u1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	st, ok := m.Get("u1")
	if !ok {
		t.Fatal("expected session")
	}
	if len(st.Tenants) != 2 {
		t.Fatalf("expected 2 tenants, got %d", len(st.Tenants))
	}
}

func TestReload_NoSession(t *testing.T) {
	m := NewManager(&fakeIdentity{})

	err := m.Reload(context.Background(), "user-jwt", "nobody")
	if !errors.Is(err, ErrNoSession) {
		t.Errorf("expected ErrNoSession, got: %v", err)
	}
}

func TestReload_VendorFailure(t *testing.T) {
	idp := &fakeIdentity{listErr: errors.New("vendor down")}
	m := NewManager(idp)
	m.Begin(claimsFor("u1", "T1"))

	if err := m.Reload(context.Background(), "user-jwt", "u1"); err == nil {
		t.Fatal("expected error")
	}
}

// --- Switch tests ---

func TestSwitch_ConfirmedAdvancesSelectionAndReloads(t *testing.T) {
	idp := &fakeIdentity{listResult: []models.Tenant{{TenantID: "T1"}, {TenantID: "T2"}}}
	m := NewManager(idp)
	m.Begin(claimsFor("u1", "T1", "T2"))

	if err := m.Switch(context.Background(), "user-jwt", "u1", "T2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	st, _ := m.Get("u1")
	if st.Switch != SwitchConfirmed {
		t.Errorf("expected confirmed state, got %q", st.Switch)
	}
	if st.SelectedTenantID != "T2" {
		t.Errorf("expected selection T2, got %q", st.SelectedTenantID)
	}
	if idp.listCalls != 1 {
		t.Errorf("expected one reload after confirmation, got %d", idp.listCalls)
	}
}

func TestSwitch_VendorFailureDoesNotAdvanceSelection(t *testing.T) {
	idp := &fakeIdentity{switchErr: errors.New("vendor rejected")}
	m := NewManager(idp)
	m.Begin(claimsFor("u1", "T1", "T2"))

	err := m.Switch(context.Background(), "user-jwt", "u1", "T2")
	if err == nil {
		t.Fatal("expected error")
	}

	st, _ := m.Get("u1")
	if st.Switch != SwitchFailed {
		t.Errorf("expected failed state, got %q", st.Switch)
	}
	if st.SelectedTenantID != "T1" {
		t.Errorf("expected selection unchanged at T1, got %q", st.SelectedTenantID)
	}
	if st.LastError == "" {
		t.Error("expected last error to be recorded")
	}
}

func TestSwitch_VerificationFailure(t *testing.T) {
	// Vendor accepts the switch but the target tenant is not in the
	// session's tenant list.
	idp := &fakeIdentity{}
	m := NewManager(idp)
	m.Begin(claimsFor("u1", "T1", "T2"))

	err := m.Switch(context.Background(), "user-jwt", "u1", "T-unknown")
	if !errors.Is(err, ErrSwitchVerification) {
		t.Fatalf("expected ErrSwitchVerification, got: %v", err)
	}

	st, _ := m.Get("u1")
	if st.Switch != SwitchFailed {
		t.Errorf("expected failed state, got %q", st.Switch)
	}
	if st.SelectedTenantID != "T1" {
		t.Errorf("expected selection unchanged at T1, got %q", st.SelectedTenantID)
	}
	if idp.listCalls != 0 {
		t.Errorf("verification failure must not trigger a reload, got %d calls", idp.listCalls)
	}
}

func TestSwitch_VerifiesAgainstClaimTenantsBeforeFirstReload(t *testing.T) {
	// No Reload has happened yet, so the token's tenant claims are the
	// only membership evidence.
	idp := &fakeIdentity{listResult: []models.Tenant{{TenantID: "T1"}, {TenantID: "T2"}}}
	m := NewManager(idp)
	m.Begin(claimsFor("u1", "T1", "T2"))

	if err := m.Switch(context.Background(), "user-jwt", "u1", "T2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSwitch_NoSession(t *testing.T) {
	m := NewManager(&fakeIdentity{})

	err := m.Switch(context.Background(), "user-jwt", "nobody", "T1")
	if !errors.Is(err, ErrNoSession) {
		t.Errorf("expected ErrNoSession, got: %v", err)
	}
}

func TestSwitch_ReloadFailureKeepsConfirmedState(t *testing.T) {
	idp := &fakeIdentity{listErr: errors.New("vendor down")}
	m := NewManager(idp)
	m.Begin(claimsFor("u1", "T1", "T2"))

	err := m.Switch(context.Background(), "user-jwt", "u1", "T2")
	if err == nil {
		t.Fatal("expected reload error to surface")
	}

	st, _ := m.Get("u1")
	if st.Switch != SwitchConfirmed {
		t.Errorf("expected confirmed state despite reload failure, got %q", st.Switch)
	}
	if st.SelectedTenantID != "T2" {
		t.Errorf("expected selection T2, got %q", st.SelectedTenantID)
	}
}

// --- snapshot isolation ---

func TestGet_SnapshotIsIsolated(t *testing.T) {
	idp := &fakeIdentity{listResult: []models.Tenant{{TenantID: "T1"}}}
	m := NewManager(idp)
	m.Begin(claimsFor("u1", "T1"))
	if err := m.Reload(context.Background(), "user-jwt", "u1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	st, _ := m.Get("u1")
	st.Tenants[0].TenantID = "mutated"

	again, _ := m.Get("u1")
	if again.Tenants[0].TenantID != "T1" {
		t.Error("snapshot mutation leaked into the session state")
	}
}
