package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"tenantbridge/pkg/models"
)

var ErrNotFound = errors.New("resource not found")

// Store is the data access interface. The only durable state this service
// owns is the provisioning audit trail and its own API keys; tenant data
// stays with the vendor.
type Store interface {
	Ping(ctx context.Context) error

	CreateSaga(ctx context.Context, saga *models.ProvisionSaga) error
	RecordSagaStep(ctx context.Context, sagaID uuid.UUID, step models.SagaStep) error
	SetSagaTenant(ctx context.Context, sagaID uuid.UUID, tenantID string) error
	FinishSaga(ctx context.Context, sagaID uuid.UUID, status string, errorMessage *string) error
	GetSaga(ctx context.Context, id uuid.UUID) (*models.ProvisionSaga, error)
	ListSagas(ctx context.Context, filter SagaFilter) ([]*models.ProvisionSaga, int, error)

	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	ListAPIKeys(ctx context.Context) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID) error
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
}

// SagaFilter narrows ListSagas results.
type SagaFilter struct {
	UserID string
	Status string
	Page   int
	Limit  int
}
