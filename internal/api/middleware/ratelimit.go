package middleware

import (
	"net/http"
	"strconv"
	"time"

	"tenantbridge/internal/api/response"
	"tenantbridge/internal/cache"
)

const defaultRequestsPerMinute = 60

// RateLimit provides per-subject rate limiting via Redis. The subject is
// the authenticated user id or, on the admin surface, the API key prefix.
type RateLimit struct {
	cache          cache.Cache
	requestsPerMin int
}

// NewRateLimit creates a new RateLimit middleware.
func NewRateLimit(c cache.Cache, requestsPerMin int) *RateLimit {
	if requestsPerMin <= 0 {
		requestsPerMin = defaultRequestsPerMinute
	}
	return &RateLimit{cache: c, requestsPerMin: requestsPerMin}
}

// Limit applies rate limiting keyed on whatever identity the auth
// middleware established. Unidentified requests pass through.
func (rl *RateLimit) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject := rateLimitSubject(r)
		if subject == "" {
			next.ServeHTTP(w, r)
			return
		}

		key := cache.RateLimitKey(subject)
		count, err := rl.cache.IncrWithExpiry(r.Context(), key, 60*time.Second)
		if err != nil {
			// On Redis error, allow the request (fail open)
			next.ServeHTTP(w, r)
			return
		}

		remaining := rl.requestsPerMin - int(count)
		if remaining < 0 {
			remaining = 0
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.requestsPerMin))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(60*time.Second).Unix(), 10))

		if count > int64(rl.requestsPerMin) {
			w.Header().Set("Retry-After", "60")
			response.Error(w, http.StatusTooManyRequests,
				"RATE_LIMIT_EXCEEDED", "Too many requests", nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func rateLimitSubject(r *http.Request) string {
	if claims, ok := GetClaims(r); ok {
		return claims.UserID
	}
	if prefix, ok := getKeyPrefix(r); ok {
		return prefix
	}
	return ""
}
