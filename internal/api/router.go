package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	mw "tenantbridge/internal/api/middleware"
	"tenantbridge/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth      *mw.Auth
	RateLimit *mw.RateLimit

	HealthHandler http.HandlerFunc

	SessionHandler http.HandlerFunc
	LinksHandler   http.HandlerFunc

	ListTenantsHandler  http.HandlerFunc
	SwitchTenantHandler http.HandlerFunc
	CreateTenantHandler http.HandlerFunc
	GetProvisionHandler http.HandlerFunc

	ListProvisionsHandler http.HandlerFunc
	CreateKeyHandler      http.HandlerFunc
	ListKeysHandler       http.HandlerFunc
	RevokeKeyHandler      http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	// Public health check
	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))

	// Session routes: the SPA calls these with the user's vendor-issued
	// access token.
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Session)
		r.Use(deps.RateLimit.Limit)

		r.Get("/api/v1/session", orNotImplemented(deps.SessionHandler))
		r.Get("/api/v1/session/links", orNotImplemented(deps.LinksHandler))

		r.Get("/api/v1/tenants", orNotImplemented(deps.ListTenantsHandler))
		r.Post("/api/v1/tenants", orNotImplemented(deps.CreateTenantHandler))
		r.Post("/api/v1/tenants/switch", orNotImplemented(deps.SwitchTenantHandler))
		r.Get("/api/v1/tenants/provisions/{sagaID}", orNotImplemented(deps.GetProvisionHandler))
	})

	// Admin routes: service API keys with the admin scope.
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.APIKey)
		r.Use(deps.RateLimit.Limit)
		r.Use(deps.Auth.RequireScope("admin"))

		r.Get("/api/v1/admin/provisions", orNotImplemented(deps.ListProvisionsHandler))
		r.Post("/api/v1/admin/keys", orNotImplemented(deps.CreateKeyHandler))
		r.Get("/api/v1/admin/keys", orNotImplemented(deps.ListKeysHandler))
		r.Delete("/api/v1/admin/keys/{keyID}", orNotImplemented(deps.RevokeKeyHandler))
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
