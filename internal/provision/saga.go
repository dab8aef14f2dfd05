// Package provision runs the tenant-provisioning workflow: create tenant,
// sign up the owning user, reload the session tenant list, register the
// hierarchy edge. The four steps are strictly sequential and there is no
// automatic rollback; every run leaves an audited saga record.
package provision

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"tenantbridge/internal/frontegg"
	"tenantbridge/pkg/models"
)

// VendorAPI covers the vendor operations the saga performs with the vendor
// token.
type VendorAPI interface {
	CreateTenant(ctx context.Context, vendorToken string, draft models.NewTenantDraft) (models.Tenant, error)
	SignUpUser(ctx context.Context, vendorToken string, req frontegg.SignUpRequest) error
	AddHierarchyEdge(ctx context.Context, vendorToken, parentTenantID, childTenantID string) error
}

// TokenSource supplies the shared vendor token and accepts invalidation
// when the vendor rejects it.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Invalidate()
}

// SessionReloader refreshes the caller's session tenant list (step 3).
type SessionReloader interface {
	Reload(ctx context.Context, userToken, userID string) error
}

// SagaStore persists saga records and step outcomes. Auditing is
// best-effort: a store failure never aborts the vendor workflow.
type SagaStore interface {
	CreateSaga(ctx context.Context, saga *models.ProvisionSaga) error
	RecordSagaStep(ctx context.Context, sagaID uuid.UUID, step models.SagaStep) error
	SetSagaTenant(ctx context.Context, sagaID uuid.UUID, tenantID string) error
	FinishSaga(ctx context.Context, sagaID uuid.UUID, status string, errorMessage *string) error
}

// Service orchestrates provisioning sagas.
type Service struct {
	vendor   VendorAPI
	tokens   TokenSource
	sessions SessionReloader
	store    SagaStore
}

// NewService creates a provisioning service.
func NewService(vendor VendorAPI, tokens TokenSource, sessions SessionReloader, store SagaStore) *Service {
	return &Service{vendor: vendor, tokens: tokens, sessions: sessions, store: store}
}

// Provision runs the four-step saga. parentTenantID is the tenant selected
// at the moment the request was made; it is resolved once so a concurrent
// switch cannot change the parent mid-saga.
//
// The returned saga is non-nil whenever the workflow started, so callers
// can report partial progress alongside the error:
//
//   - step 1 failure: saga failed, TenantID unset, nothing else attempted;
//     the caller's draft should be kept.
//   - step 2 or 4 failure: saga quarantined, TenantID set; the created
//     tenant is orphaned or unlinked and needs manual cleanup.
//   - step 3 failure: logged, recorded, saga continues.
func (s *Service) Provision(ctx context.Context, userToken, userID string, draft models.NewTenantDraft, parentTenantID string) (*models.ProvisionSaga, error) {
	vendorToken, err := s.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	saga := &models.ProvisionSaga{
		ID:             uuid.New(),
		UserID:         userID,
		ParentTenantID: parentTenantID,
		Status:         models.SagaStatusRunning,
		CreatedAt:      time.Now().UTC(),
		UpdatedAt:      time.Now().UTC(),
	}
	if err := s.store.CreateSaga(ctx, saga); err != nil {
		slog.Warn("saga record creation failed, continuing unaudited", "saga_id", saga.ID, "error", err)
	}

	// Step 1: create the tenant. Failure aborts the whole workflow.
	created, err := s.vendor.CreateTenant(ctx, vendorToken, draft)
	if err != nil {
		s.stepFailed(ctx, saga, 1, models.StepCreateTenant, err)
		s.finish(ctx, saga, models.SagaStatusFailed, err)
		return saga, err
	}
	saga.TenantID = &created.TenantID
	if err := s.store.SetSagaTenant(ctx, saga.ID, created.TenantID); err != nil {
		slog.Warn("saga tenant update failed", "saga_id", saga.ID, "error", err)
	}
	s.stepOK(ctx, saga, 1, models.StepCreateTenant)

	// Step 2: sign up the owning user under the new tenant. Failure leaves
	// the tenant orphaned; the saga is quarantined, not rolled back.
	signup := frontegg.SignUpRequest{
		Provider:        "local",
		Email:           draft.CreatorEmail,
		Name:            draft.CreatorName,
		TenantID:        created.TenantID,
		Metadata:        "{}",
		CompanyName:     draft.Name,
		SkipInviteEmail: true,
		RoleIDs:         []string{},
	}
	if err := s.vendor.SignUpUser(ctx, vendorToken, signup); err != nil {
		s.stepFailed(ctx, saga, 2, models.StepSignUpOwner, err)
		s.finish(ctx, saga, models.SagaStatusQuarantined, err)
		return saga, err
	}
	s.stepOK(ctx, saga, 2, models.StepSignUpOwner)

	// Step 3: reload the session tenant list. Failure is logged and the
	// saga continues; the list heals on the next reload.
	if err := s.sessions.Reload(ctx, userToken, userID); err != nil {
		slog.Warn("tenant list reload failed during provisioning",
			"saga_id", saga.ID, "user_id", userID, "error", err)
		s.stepFailed(ctx, saga, 3, models.StepReloadTenants, err)
	} else {
		s.stepOK(ctx, saga, 3, models.StepReloadTenants)
	}

	// Step 4: register the new tenant as a child of the parent resolved at
	// saga start.
	if err := s.vendor.AddHierarchyEdge(ctx, vendorToken, parentTenantID, created.TenantID); err != nil {
		s.stepFailed(ctx, saga, 4, models.StepHierarchyEdge, err)
		s.finish(ctx, saga, models.SagaStatusQuarantined, err)
		return saga, err
	}
	s.stepOK(ctx, saga, 4, models.StepHierarchyEdge)

	s.finish(ctx, saga, models.SagaStatusCompleted, nil)
	slog.Info("tenant provisioned",
		"saga_id", saga.ID, "tenant_id", created.TenantID, "parent_tenant_id", parentTenantID)
	return saga, nil
}

func (s *Service) stepOK(ctx context.Context, saga *models.ProvisionSaga, seq int, name string) {
	s.record(ctx, saga, models.SagaStep{
		Seq: seq, Name: name, Status: models.StepStatusSucceeded, CompletedAt: time.Now().UTC(),
	})
}

func (s *Service) stepFailed(ctx context.Context, saga *models.ProvisionSaga, seq int, name string, stepErr error) {
	if errors.Is(stepErr, frontegg.ErrVendorAuth) {
		s.tokens.Invalidate()
	}
	msg := stepErr.Error()
	s.record(ctx, saga, models.SagaStep{
		Seq: seq, Name: name, Status: models.StepStatusFailed, Error: &msg, CompletedAt: time.Now().UTC(),
	})
}

func (s *Service) record(ctx context.Context, saga *models.ProvisionSaga, step models.SagaStep) {
	saga.Steps = append(saga.Steps, step)
	if err := s.store.RecordSagaStep(ctx, saga.ID, step); err != nil {
		slog.Warn("saga step record failed", "saga_id", saga.ID, "step", step.Name, "error", err)
	}
}

func (s *Service) finish(ctx context.Context, saga *models.ProvisionSaga, status string, sagaErr error) {
	saga.Status = status
	saga.UpdatedAt = time.Now().UTC()
	var msg *string
	if sagaErr != nil {
		m := sagaErr.Error()
		msg = &m
		saga.ErrorMessage = msg
	}
	if err := s.store.FinishSaga(ctx, saga.ID, status, msg); err != nil {
		slog.Warn("saga finish record failed", "saga_id", saga.ID, "error", err)
	}
	if status == models.SagaStatusQuarantined {
		slog.Warn("provisioning saga quarantined, manual cleanup required",
			"saga_id", saga.ID, "tenant_id", deref(saga.TenantID))
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
