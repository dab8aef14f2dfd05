// Package hierarchy builds the tenant display list: the tenants the session
// already knows about merged with the descendants discovered through the
// vendor's hierarchy lookup.
package hierarchy

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"tenantbridge/internal/cache"
	"tenantbridge/pkg/models"
)

// VendorAPI is the single vendor operation the aggregator needs.
type VendorAPI interface {
	GetHierarchy(ctx context.Context, vendorToken, tenantID string) ([]models.Tenant, error)
}

// TokenSource reads the shared vendor token. ok=false means not ready.
type TokenSource interface {
	Get() (string, bool)
}

// Service aggregates tenant hierarchies. Lookups for the same resolved
// tenant id are coalesced, and the last good result is cached so a vendor
// outage serves stale data instead of clearing the display list.
type Service struct {
	vendor VendorAPI
	tokens TokenSource
	cache  cache.Cache
	ttl    time.Duration

	group singleflight.Group
}

// NewService creates a hierarchy aggregation service. ttl bounds how long a
// cached lookup may be served, fresh or stale.
func NewService(vendor VendorAPI, tokens TokenSource, c cache.Cache, ttl time.Duration) *Service {
	return &Service{vendor: vendor, tokens: tokens, cache: c, ttl: ttl}
}

// Aggregate returns the display list for the session: known tenant ids
// first, hierarchy-discovered ids second, deduplicated preserving first-seen
// order.
//
// The operation is a deliberate no-op (nil list, nil error) when the vendor
// token is not ready or when there is nothing to resolve; callers keep
// whatever display state they already have.
func (s *Service) Aggregate(ctx context.Context, tenantID string, known []models.Tenant) ([]string, error) {
	vendorToken, ok := s.tokens.Get()
	if !ok {
		slog.Debug("hierarchy aggregation deferred, vendor token not ready")
		return nil, nil
	}

	if tenantID == "" && len(known) == 0 {
		return nil, nil
	}

	knownIDs := make([]string, 0, len(known))
	for _, t := range known {
		knownIDs = append(knownIDs, t.TenantID)
	}

	resolved := tenantID
	if resolved == "" {
		resolved = knownIDs[0]
	}

	discovered, err := s.lookup(ctx, vendorToken, resolved)
	if err != nil {
		stale, ok := s.cached(ctx, resolved)
		if !ok {
			return nil, err
		}
		slog.Warn("hierarchy fetch failed, serving cached lookup",
			"tenant_id", resolved, "error", err)
		discovered = stale
	}

	return dedupe(append(knownIDs, discovered...)), nil
}

// lookup fetches the hierarchy for one tenant id, coalescing concurrent
// callers onto one vendor request, and refreshes the cache on success.
func (s *Service) lookup(ctx context.Context, vendorToken, tenantID string) ([]string, error) {
	v, err, _ := s.group.Do(tenantID, func() (any, error) {
		// The closure outlives the winning caller: coalesced callers must
		// not fail because the winner's request was cancelled mid-flight.
		// The vendor client's own timeout still bounds the call.
		ctx := context.WithoutCancel(ctx)

		records, err := s.vendor.GetHierarchy(ctx, vendorToken, tenantID)
		if err != nil {
			return nil, err
		}

		ids := make([]string, 0, len(records))
		for _, r := range records {
			ids = append(ids, r.TenantID)
		}

		if b, err := json.Marshal(ids); err == nil {
			if err := s.cache.Set(ctx, cache.HierarchyKey(tenantID), b, s.ttl); err != nil {
				slog.Warn("hierarchy cache write failed", "tenant_id", tenantID, "error", err)
			}
		}
		return ids, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}

func (s *Service) cached(ctx context.Context, tenantID string) ([]string, bool) {
	b, found, err := s.cache.Get(ctx, cache.HierarchyKey(tenantID))
	if err != nil || !found {
		return nil, false
	}
	var ids []string
	if err := json.Unmarshal(b, &ids); err != nil {
		return nil, false
	}
	return ids, true
}

// dedupe removes duplicate ids preserving first-seen order.
func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
