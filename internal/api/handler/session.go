package handler

import (
	"context"
	"net/http"
	"net/url"

	mw "tenantbridge/internal/api/middleware"
	"tenantbridge/internal/api/response"
	"tenantbridge/internal/session"
	"tenantbridge/pkg/models"
)

// Sessions is the session-layer surface the handlers depend on.
type Sessions interface {
	Begin(claims session.Claims) session.State
	Switch(ctx context.Context, userToken, userID, tenantID string) error
}

type sessionResponse struct {
	User             models.User         `json:"user"`
	Tenants          []models.Tenant     `json:"tenants"`
	SelectedTenantID string              `json:"selected_tenant_id"`
	SwitchState      session.SwitchState `json:"switch_state"`
	LastError        string              `json:"last_error,omitempty"`
}

// NewSessionHandler returns an http.HandlerFunc for GET /api/v1/session.
func NewSessionHandler(sessions Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := mw.GetClaims(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing session", nil)
			return
		}

		st := sessions.Begin(claims)
		response.JSON(w, sessionResponse{
			User:             st.User,
			Tenants:          st.Tenants,
			SelectedTenantID: st.SelectedTenantID,
			SwitchState:      st.Switch,
			LastError:        st.LastError,
		})
	}
}

// NewLinksHandler returns an http.HandlerFunc for GET /api/v1/session/links.
// The login box, logout flow, and admin portal are all vendor-hosted; this
// only assembles the URLs the frontend redirects to.
func NewLinksHandler(vendorBaseURL, appURL string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, map[string]string{
			"login_url":        vendorBaseURL + "/oauth/account/login",
			"logout_url":       vendorBaseURL + "/oauth/logout?post_logout_redirect_uri=" + url.QueryEscape(appURL),
			"admin_portal_url": vendorBaseURL + "/oauth/account/admin-box",
		})
	}
}
