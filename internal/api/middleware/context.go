package middleware

import (
	"context"
	"net/http"

	"tenantbridge/internal/session"
)

type contextKey string

const (
	sessionClaimsKey contextKey = "session_claims"
	userTokenKey     contextKey = "user_token"
	keyPrefixKey     contextKey = "key_prefix"
	apiKeyScopesKey  contextKey = "api_key_scopes"
)

// SetClaims stores the verified session claims in the context.
func SetClaims(ctx context.Context, claims session.Claims) context.Context {
	return context.WithValue(ctx, sessionClaimsKey, claims)
}

// GetClaims returns the verified session claims set by Auth.Session.
func GetClaims(r *http.Request) (session.Claims, bool) {
	claims, ok := r.Context().Value(sessionClaimsKey).(session.Claims)
	return claims, ok
}

// SetUserToken stores the raw user bearer token, forwarded on vendor calls
// that act on the user's behalf.
func SetUserToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, userTokenKey, token)
}

// GetUserToken returns the raw user bearer token.
func GetUserToken(r *http.Request) (string, bool) {
	token, ok := r.Context().Value(userTokenKey).(string)
	return token, ok
}

func setKeyPrefix(ctx context.Context, prefix string) context.Context {
	return context.WithValue(ctx, keyPrefixKey, prefix)
}

func getKeyPrefix(r *http.Request) (string, bool) {
	prefix, ok := r.Context().Value(keyPrefixKey).(string)
	return prefix, ok
}

func setScopes(ctx context.Context, scopes []string) context.Context {
	return context.WithValue(ctx, apiKeyScopesKey, scopes)
}

func getScopes(r *http.Request) []string {
	scopes, _ := r.Context().Value(apiKeyScopesKey).([]string)
	return scopes
}
