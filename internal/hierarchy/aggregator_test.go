package hierarchy

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"tenantbridge/pkg/models"
)

// --- fakes ---

type fakeVendor struct {
	records []models.Tenant
	err     error
	calls   int
}

func (f *fakeVendor) GetHierarchy(ctx context.Context, vendorToken, tenantID string) ([]models.Tenant, error) {
	f.calls++
	return f.records, f.err
}

type fakeTokens struct {
	token string
	ready bool
}

func (f *fakeTokens) Get() (string, bool) { return f.token, f.ready }

type memCache struct {
	data   map[string][]byte
	setErr error
	getErr error
}

func newMemCache() *memCache { return &memCache{data: make(map[string][]byte)} }

func (m *memCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = value
	return nil
}

func (m *memCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memCache) Delete(ctx context.Context, key string) error { delete(m.data, key); return nil }
func (m *memCache) Ping(ctx context.Context) error               { return nil }
func (m *memCache) IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error) {
	return 0, nil
}

func tenants(ids ...string) []models.Tenant {
	out := make([]models.Tenant, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.Tenant{TenantID: id})
	}
	return out
}

// --- tests ---

func TestAggregate_MergesKnownAndDiscovered(t *testing.T) {
	vendor := &fakeVendor{records: tenants("T2", "T3")}
	svc := NewService(vendor, &fakeTokens{token: "jwt", ready: true}, newMemCache(), time.Minute)

	ids, err := svc.Aggregate(context.Background(), "T1", tenants("T1", "T2"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"T1", "T2", "T3"}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("expected %v, got %v", want, ids)
	}
}

func TestAggregate_DeduplicatesPreservingFirstSeenOrder(t *testing.T) {
	vendor := &fakeVendor{records: tenants("T3", "T1", "T3")}
	svc := NewService(vendor, &fakeTokens{token: "jwt", ready: true}, newMemCache(), time.Minute)

	ids, err := svc.Aggregate(context.Background(), "T1", tenants("T1", "T2"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"T1", "T2", "T3"}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("expected %v, got %v", want, ids)
	}
}

func TestAggregate_NoOpWhenTokenNotReady(t *testing.T) {
	vendor := &fakeVendor{records: tenants("T2")}
	svc := NewService(vendor, &fakeTokens{ready: false}, newMemCache(), time.Minute)

	ids, err := svc.Aggregate(context.Background(), "T1", tenants("T1"))
	if err != nil {
		t.Fatalf("expected nil error for deferred aggregation, got: %v", err)
	}
	if ids != nil {
		t.Errorf("expected nil list, got %v", ids)
	}
	if vendor.calls != 0 {
		t.Errorf("expected no vendor calls, got %d", vendor.calls)
	}
}

func TestAggregate_NoOpWhenNothingToResolve(t *testing.T) {
	vendor := &fakeVendor{}
	svc := NewService(vendor, &fakeTokens{token: "jwt", ready: true}, newMemCache(), time.Minute)

	ids, err := svc.Aggregate(context.Background(), "", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ids != nil {
		t.Errorf("expected nil list, got %v", ids)
	}
	if vendor.calls != 0 {
		t.Errorf("expected no vendor calls, got %d", vendor.calls)
	}
}

func TestAggregate_FallsBackToFirstKnownTenant(t *testing.T) {
	vendor := &fakeVendor{records: tenants("T9")}
	svc := NewService(vendor, &fakeTokens{token: "jwt", ready: true}, newMemCache(), time.Minute)

	ids, err := svc.Aggregate(context.Background(), "", tenants("T1", "T2"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"T1", "T2", "T9"}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("expected %v, got %v", want, ids)
	}
}

func TestAggregate_WritesLookupToCache(t *testing.T) {
	vendor := &fakeVendor{records: tenants("T2", "T3")}
	c := newMemCache()
	svc := NewService(vendor, &fakeTokens{token: "jwt", ready: true}, c, time.Minute)

	if _, err := svc.Aggregate(context.Background(), "T1", tenants("T1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	b, ok := c.data["hierarchy:T1"]
	if !ok {
		t.Fatal("expected cached hierarchy lookup")
	}
	var cached []string
	if err := json.Unmarshal(b, &cached); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(cached, []string{"T2", "T3"}) {
		t.Errorf("expected cached [T2 T3], got %v", cached)
	}
}

func TestAggregate_ServesStaleOnVendorFailure(t *testing.T) {
	c := newMemCache()
	b, _ := json.Marshal([]string{"T2", "T3"})
	c.data["hierarchy:T1"] = b

	vendor := &fakeVendor{err: errors.New("vendor down")}
	svc := NewService(vendor, &fakeTokens{token: "jwt", ready: true}, c, time.Minute)

	ids, err := svc.Aggregate(context.Background(), "T1", tenants("T1"))
	if err != nil {
		t.Fatalf("expected stale data instead of error, got: %v", err)
	}

	want := []string{"T1", "T2", "T3"}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("expected %v, got %v", want, ids)
	}
}

func TestAggregate_ErrorWhenNoCachedFallback(t *testing.T) {
	vendor := &fakeVendor{err: errors.New("vendor down")}
	svc := NewService(vendor, &fakeTokens{token: "jwt", ready: true}, newMemCache(), time.Minute)

	_, err := svc.Aggregate(context.Background(), "T1", tenants("T1"))
	if err == nil {
		t.Fatal("expected error when vendor fails and nothing is cached")
	}
}

func TestAggregate_CacheWriteFailureIsNotFatal(t *testing.T) {
	vendor := &fakeVendor{records: tenants("T2")}
	c := newMemCache()
	c.setErr = errors.New("redis down")
	svc := NewService(vendor, &fakeTokens{token: "jwt", ready: true}, c, time.Minute)

	ids, err := svc.Aggregate(context.Background(), "T1", tenants("T1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(ids, []string{"T1", "T2"}) {
		t.Errorf("expected [T1 T2], got %v", ids)
	}
}

// cancelAwareVendor fails when the context it receives is already done.
type cancelAwareVendor struct {
	records []models.Tenant
	calls   int
}

func (f *cancelAwareVendor) GetHierarchy(ctx context.Context, vendorToken, tenantID string) ([]models.Tenant, error) {
	f.calls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.records, nil
}

func TestAggregate_LookupDetachedFromCallerCancellation(t *testing.T) {
	vendor := &cancelAwareVendor{records: tenants("T2")}
	svc := NewService(vendor, &fakeTokens{token: "jwt", ready: true}, newMemCache(), time.Minute)

	// The in-flight lookup is shared by coalesced callers, so the winner's
	// cancellation must not propagate into the vendor call.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ids, err := svc.Aggregate(ctx, "T1", tenants("T1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vendor.calls != 1 {
		t.Fatalf("expected 1 vendor call, got %d", vendor.calls)
	}
	if !reflect.DeepEqual(ids, []string{"T1", "T2"}) {
		t.Errorf("expected [T1 T2], got %v", ids)
	}
}

func TestDedupe(t *testing.T) {
	got := dedupe([]string{"a", "b", "a", "c", "b"})
	want := []string{"a", "b", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}
