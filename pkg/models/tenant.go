package models

import "time"

// Tenant mirrors a tenant record owned by the vendor platform. Nothing here
// is durable on our side; records are refetched from the vendor as needed.
type Tenant struct {
	TenantID       string    `json:"tenantId"`
	Name           string    `json:"name"`
	Website        string    `json:"website,omitempty"`
	ParentTenantID string    `json:"parentTenantId,omitempty"`
	CreatedAt      time.Time `json:"createdAt,omitempty"`
}

// NewTenantDraft is the transient form state for tenant creation. Field
// names follow the vendor's tenant-creation wire format.
type NewTenantDraft struct {
	Name         string `json:"name"`
	Website      string `json:"website"`
	CreatorName  string `json:"creatorName"`
	CreatorEmail string `json:"creatorEmail"`
}
