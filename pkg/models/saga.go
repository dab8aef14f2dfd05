package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	SagaStatusRunning     = "running"
	SagaStatusCompleted   = "completed"
	SagaStatusFailed      = "failed"
	SagaStatusQuarantined = "quarantined"
)

const (
	StepStatusSucceeded = "succeeded"
	StepStatusFailed    = "failed"
)

// Step names for the provisioning saga, in execution order.
const (
	StepCreateTenant  = "create_tenant"
	StepSignUpOwner   = "signup_owner"
	StepReloadTenants = "reload_tenants"
	StepHierarchyEdge = "hierarchy_edge"
)

// ProvisionSaga records one run of the tenant-provisioning workflow.
// There is no automatic rollback: a failure after the tenant was created
// marks the saga quarantined so the orphaned tenant can be cleaned up
// manually.
type ProvisionSaga struct {
	ID             uuid.UUID  `db:"id"               json:"id"`
	UserID         string     `db:"user_id"          json:"user_id"`
	ParentTenantID string     `db:"parent_tenant_id" json:"parent_tenant_id"`
	TenantID       *string    `db:"tenant_id"        json:"tenant_id,omitempty"`
	Status         string     `db:"status"           json:"status"`
	ErrorMessage   *string    `db:"error_message"    json:"error_message,omitempty"`
	Steps          []SagaStep `db:"-"                json:"steps"`
	CreatedAt      time.Time  `db:"created_at"       json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at"       json:"updated_at"`
}

// SagaStep is the recorded outcome of a single saga step.
type SagaStep struct {
	Seq         int       `db:"seq"          json:"seq"`
	Name        string    `db:"name"         json:"name"`
	Status      string    `db:"status"       json:"status"`
	Error       *string   `db:"error"        json:"error,omitempty"`
	CompletedAt time.Time `db:"completed_at" json:"completed_at"`
}
