package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	mw "tenantbridge/internal/api/middleware"
	"tenantbridge/internal/api/response"
	"tenantbridge/internal/frontegg"
	"tenantbridge/internal/session"
	"tenantbridge/pkg/models"
)

// Aggregator builds the tenant display list.
type Aggregator interface {
	Aggregate(ctx context.Context, tenantID string, known []models.Tenant) ([]string, error)
}

// NewListTenantsHandler returns an http.HandlerFunc for GET /api/v1/tenants.
// A no-op aggregation (vendor token not ready, nothing to resolve) returns
// an empty list; the frontend keeps whatever it already shows.
func NewListTenantsHandler(sessions Sessions, agg Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := mw.GetClaims(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing session", nil)
			return
		}

		st := sessions.Begin(claims)

		ids, err := agg.Aggregate(r.Context(), st.SelectedTenantID, st.Tenants)
		if err != nil {
			response.Error(w, http.StatusBadGateway,
				"HIERARCHY_FETCH_FAILED", "Failed to fetch tenant hierarchy", nil)
			return
		}
		if ids == nil {
			ids = []string{}
		}

		response.JSON(w, map[string]any{
			"tenant_ids":         ids,
			"selected_tenant_id": st.SelectedTenantID,
		})
	}
}

// NewSwitchTenantHandler returns an http.HandlerFunc for
// POST /api/v1/tenants/switch.
func NewSwitchTenantHandler(sessions Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := mw.GetClaims(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing session", nil)
			return
		}
		userToken, _ := mw.GetUserToken(r)

		var req struct {
			TenantID string `json:"tenant_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TenantID == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "tenant_id is required", nil)
			return
		}

		sessions.Begin(claims)

		if err := sessions.Switch(r.Context(), userToken, claims.UserID, req.TenantID); err != nil {
			switch {
			case errors.Is(err, session.ErrSwitchVerification):
				response.Error(w, http.StatusConflict,
					"SWITCH_VERIFICATION_FAILED",
					"Tenant switch did not land; the tenant is not in the session tenant list",
					map[string]string{"tenant_id": req.TenantID})
			case errors.Is(err, frontegg.ErrTenantSwitch):
				response.Error(w, http.StatusBadGateway,
					"SWITCH_FAILED", "The identity provider rejected the tenant switch", nil)
			default:
				response.Error(w, http.StatusBadGateway,
					"SWITCH_FAILED", "Tenant switch failed", nil)
			}
			return
		}

		response.JSON(w, map[string]string{"selected_tenant_id": req.TenantID})
	}
}
