package middleware

import (
	"context"
	"crypto/rsa"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"tenantbridge/internal/api/response"
	"tenantbridge/internal/session"
	"tenantbridge/internal/store"
)

const keyPrefixLen = 8

// Auth provides the two authentication modes of the service: vendor-issued
// user session tokens for the tenant surface, and service API keys for the
// admin surface.
type Auth struct {
	store      store.Store
	sessionKey *rsa.PublicKey
}

// NewAuth creates Auth middleware. sessionKeyPEM is the vendor's JWT
// signing public key.
func NewAuth(s store.Store, sessionKeyPEM string) (*Auth, error) {
	pub, err := jwt.ParseRSAPublicKeyFromPEM([]byte(sessionKeyPEM))
	if err != nil {
		return nil, fmt.Errorf("parse session public key: %w", err)
	}
	return &Auth{store: s, sessionKey: pub}, nil
}

// sessionTokenClaims mirrors the vendor's access-token claim names.
type sessionTokenClaims struct {
	Name              string   `json:"name"`
	Email             string   `json:"email"`
	ProfilePictureURL string   `json:"profilePictureUrl"`
	TenantID          string   `json:"tenantId"`
	TenantIDs         []string `json:"tenantIds"`
	jwt.RegisteredClaims
}

// Session validates the user's vendor-issued bearer token and sets the
// verified claims plus the raw token in the request context. Token issuance
// and refresh stay with the vendor; only signature and expiry are checked
// here.
func (a *Auth) Session(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := extractBearerToken(r)
		if raw == "" {
			response.Error(w, http.StatusUnauthorized,
				"INVALID_TOKEN", "Missing or invalid Authorization header", nil)
			return
		}

		var claims sessionTokenClaims
		_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
				return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
			}
			return a.sessionKey, nil
		})
		if err != nil {
			response.Error(w, http.StatusUnauthorized,
				"INVALID_TOKEN", "Session token rejected", nil)
			return
		}

		ctx := r.Context()
		ctx = SetClaims(ctx, session.Claims{
			UserID:            claims.Subject,
			Name:              claims.Name,
			Email:             claims.Email,
			ProfilePictureURL: claims.ProfilePictureURL,
			ActiveTenantID:    claims.TenantID,
			TenantIDs:         claims.TenantIDs,
		})
		ctx = SetUserToken(ctx, raw)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// APIKey validates a service API key, looks it up by prefix, and sets
// key_prefix and scopes in the request context.
func (a *Auth) APIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawKey := extractBearerToken(r)
		if rawKey == "" || len(rawKey) < keyPrefixLen {
			response.Error(w, http.StatusUnauthorized,
				"INVALID_TOKEN", "Missing or invalid API key", nil)
			return
		}

		prefix := rawKey[:keyPrefixLen]

		keys, err := a.store.GetAPIKeyByPrefix(r.Context(), prefix)
		if err != nil {
			response.Error(w, http.StatusInternalServerError,
				"INTERNAL_ERROR", "Failed to validate API key", nil)
			return
		}

		var matched bool
		for _, key := range keys {
			if bcrypt.CompareHashAndPassword([]byte(key.KeyHash), []byte(rawKey)) == nil {
				ctx := r.Context()
				ctx = setKeyPrefix(ctx, prefix)
				ctx = setScopes(ctx, key.Scopes)
				r = r.WithContext(ctx)
				matched = true

				// Update last_used_at async
				go a.store.UpdateAPIKeyLastUsed(context.Background(), key.ID)
				break
			}
		}

		if !matched {
			response.Error(w, http.StatusUnauthorized,
				"INVALID_TOKEN", "Invalid API key", nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RequireScope returns middleware that checks whether the authenticated
// API key has the specified scope.
func (a *Auth) RequireScope(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, s := range getScopes(r) {
				if s == scope {
					next.ServeHTTP(w, r)
					return
				}
			}
			response.Error(w, http.StatusForbidden,
				"FORBIDDEN", "Insufficient permissions", nil)
		})
	}
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
