package cache

import "fmt"

// HierarchyKey stores the last good hierarchy lookup for a tenant. Served
// stale when the vendor is unavailable.
func HierarchyKey(tenantID string) string {
	return fmt.Sprintf("hierarchy:%s", tenantID)
}

// RateLimitKey counts requests per authenticated subject (user id or API
// key prefix) per window.
func RateLimitKey(subject string) string {
	return fmt.Sprintf("ratelimit:%s", subject)
}
