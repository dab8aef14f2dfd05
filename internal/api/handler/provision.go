package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	mw "tenantbridge/internal/api/middleware"
	"tenantbridge/internal/api/response"
	"tenantbridge/internal/frontegg"
	"tenantbridge/internal/store"
	"tenantbridge/internal/token"
	"tenantbridge/pkg/models"
)

// Provisioner runs the tenant-provisioning saga.
type Provisioner interface {
	Provision(ctx context.Context, userToken, userID string, draft models.NewTenantDraft, parentTenantID string) (*models.ProvisionSaga, error)
}

// SagaReader reads saga records.
type SagaReader interface {
	GetSaga(ctx context.Context, id uuid.UUID) (*models.ProvisionSaga, error)
	ListSagas(ctx context.Context, filter store.SagaFilter) ([]*models.ProvisionSaga, int, error)
}

type provisionResponse struct {
	Saga *models.ProvisionSaga `json:"saga"`
	// ClearDraft tells the frontend whether the creation form should be
	// reset: true once the tenant itself was created, regardless of how
	// the later steps fared.
	ClearDraft bool `json:"clear_draft"`
}

// NewCreateTenantHandler returns an http.HandlerFunc for POST /api/v1/tenants.
func NewCreateTenantHandler(sessions Sessions, prov Provisioner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := mw.GetClaims(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing session", nil)
			return
		}
		userToken, _ := mw.GetUserToken(r)

		var req struct {
			Name         string `json:"name"`
			Website      string `json:"website"`
			CreatorName  string `json:"creator_name"`
			CreatorEmail string `json:"creator_email"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		if req.Name == "" || req.CreatorEmail == "" {
			response.Error(w, http.StatusBadRequest,
				"INVALID_REQUEST", "name and creator_email are required", nil)
			return
		}

		// The parent is the tenant selected when the request arrives; the
		// saga pins it so a concurrent switch cannot change it mid-run.
		st := sessions.Begin(claims)
		if st.SelectedTenantID == "" {
			response.Error(w, http.StatusConflict,
				"NO_PARENT_TENANT", "No tenant selected to parent the new tenant", nil)
			return
		}

		draft := models.NewTenantDraft{
			Name:         req.Name,
			Website:      req.Website,
			CreatorName:  req.CreatorName,
			CreatorEmail: req.CreatorEmail,
		}

		saga, err := prov.Provision(r.Context(), userToken, claims.UserID, draft, st.SelectedTenantID)
		if err != nil {
			if errors.Is(err, token.ErrNotReady) {
				response.Error(w, http.StatusServiceUnavailable,
					"VENDOR_TOKEN_NOT_READY", "Vendor credential not available yet, try again", nil)
				return
			}

			// The saga record, not the error type, says whether the tenant
			// exists: TenantID is only set once step 1 succeeded. The draft
			// is kept until then, whatever made step 1 fail.
			clearDraft := saga != nil && saga.TenantID != nil

			code, msg := "PROVISION_FAILED", "Failed to create tenant or signup user"
			if errors.Is(err, frontegg.ErrTenantCreation) {
				code, msg = "TENANT_CREATE_FAILED", "Tenant creation failed"
			}
			response.Error(w, http.StatusBadGateway, code, msg,
				provisionResponse{Saga: saga, ClearDraft: clearDraft})
			return
		}

		response.Created(w, provisionResponse{Saga: saga, ClearDraft: true})
	}
}

// NewGetProvisionHandler returns an http.HandlerFunc for
// GET /api/v1/tenants/provisions/{sagaID}.
func NewGetProvisionHandler(sagas SagaReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "sagaID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid saga id", nil)
			return
		}

		saga, err := sagas.GetSaga(r.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Saga not found", nil)
			return
		}
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load saga", nil)
			return
		}

		response.JSON(w, saga)
	}
}

// NewListProvisionsHandler returns an http.HandlerFunc for
// GET /api/v1/admin/provisions.
func NewListProvisionsHandler(sagas SagaReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page, _ := strconv.Atoi(q.Get("page"))
		limit, _ := strconv.Atoi(q.Get("limit"))
		if page < 1 {
			page = 1
		}
		if limit < 1 || limit > 100 {
			limit = 20
		}

		filter := store.SagaFilter{
			UserID: q.Get("user_id"),
			Status: q.Get("status"),
			Page:   page,
			Limit:  limit,
		}

		list, total, err := sagas.ListSagas(r.Context(), filter)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list sagas", nil)
			return
		}
		if list == nil {
			list = []*models.ProvisionSaga{}
		}

		response.Collection(w, list, response.PaginationMeta{
			Page:    page,
			Limit:   limit,
			Total:   total,
			HasNext: page*limit < total,
		})
	}
}
