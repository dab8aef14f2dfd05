package handler

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"tenantbridge/internal/api/response"
	"tenantbridge/internal/store"
	"tenantbridge/pkg/models"
)

const keyPrefixLen = 8

// KeyStore is the API-key persistence surface.
type KeyStore interface {
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID) error
}

// generateKey returns a cryptographically random raw API key.
func generateKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// NewCreateKeyHandler returns an http.HandlerFunc for POST /api/v1/admin/keys.
// The raw key appears once in the response; only its hash is stored.
func NewCreateKeyHandler(keys KeyStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name   string   `json:"name"`
			Scopes []string `json:"scopes"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "name is required", nil)
			return
		}
		if req.Scopes == nil {
			req.Scopes = []string{}
		}

		raw, err := generateKey()
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to generate key", nil)
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to hash key", nil)
			return
		}

		key := &models.APIKey{
			ID:        uuid.New(),
			Name:      req.Name,
			KeyHash:   string(hash),
			KeyPrefix: raw[:keyPrefixLen],
			Scopes:    req.Scopes,
		}
		if err := keys.CreateAPIKey(r.Context(), key); err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to store key", nil)
			return
		}

		response.Created(w, map[string]any{
			"key":     raw,
			"api_key": key,
		})
	}
}

// NewListKeysHandler returns an http.HandlerFunc for GET /api/v1/admin/keys.
func NewListKeysHandler(keys KeyStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := keys.ListAPIKeys(r.Context())
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list keys", nil)
			return
		}
		if list == nil {
			list = []*models.APIKey{}
		}
		response.JSON(w, list)
	}
}

// NewRevokeKeyHandler returns an http.HandlerFunc for
// DELETE /api/v1/admin/keys/{keyID}.
func NewRevokeKeyHandler(keys KeyStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "keyID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid key id", nil)
			return
		}

		if err := keys.RevokeAPIKey(r.Context(), id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "Key not found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to revoke key", nil)
			return
		}

		response.NoContent(w)
	}
}
