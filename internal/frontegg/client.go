// Package frontegg is the single integration point with the vendor identity
// platform. Every vendor path, header, and body shape lives here; the rest
// of the service only sees the Client interface and sentinel errors.
package frontegg

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"tenantbridge/pkg/models"
)

// Sentinel errors for vendor API failures. Operation errors carry the HTTP
// status text of the vendor response; transport failures are classified
// into unreachable/timeout.
var (
	ErrVendorUnreachable = errors.New("vendor unreachable")
	ErrVendorTimeout     = errors.New("vendor request timeout")
	ErrVendorAuth        = errors.New("vendor rejected credential")

	ErrTokenAcquisition = errors.New("vendor token acquisition failed")
	ErrHierarchyFetch   = errors.New("tenant hierarchy fetch failed")
	ErrTenantFetch      = errors.New("tenant fetch failed")
	ErrTenantCreation   = errors.New("tenant creation failed")
	ErrSignup           = errors.New("user signup failed")
	ErrHierarchyEdge    = errors.New("hierarchy edge registration failed")
	ErrTenantSwitch     = errors.New("tenant switch failed")
)

// Client is the interface for calling the vendor platform.
type Client interface {
	AcquireVendorToken(ctx context.Context, clientID, secret string) (string, error)
	GetHierarchy(ctx context.Context, vendorToken, tenantID string) ([]models.Tenant, error)
	ListTenants(ctx context.Context, vendorToken string) ([]models.Tenant, error)
	CreateTenant(ctx context.Context, vendorToken string, draft models.NewTenantDraft) (models.Tenant, error)
	SignUpUser(ctx context.Context, vendorToken string, req SignUpRequest) error
	AddHierarchyEdge(ctx context.Context, vendorToken, parentTenantID, childTenantID string) error
	SwitchUserTenant(ctx context.Context, userToken, tenantID string) error
	ListUserTenants(ctx context.Context, userToken string) ([]models.Tenant, error)
}

// SignUpRequest is the body of the vendor's user-signup operation. The
// provisioning workflow always uses the local provider with the invite
// email suppressed and no roles assigned.
type SignUpRequest struct {
	Provider        string   `json:"provider"`
	Email           string   `json:"email"`
	Name            string   `json:"name"`
	TenantID        string   `json:"tenantId"`
	Metadata        string   `json:"metadata"`
	CompanyName     string   `json:"companyName"`
	SkipInviteEmail bool     `json:"skipInviteEmail"`
	RoleIDs         []string `json:"roleIds"`
}

// HTTPClient implements Client against the vendor's REST API.
type HTTPClient struct {
	baseURL       string
	applicationID string
	vendorHost    string
	client        *http.Client
}

// NewHTTPClient creates a new vendor HTTP client. applicationID and
// vendorHost are required by the signup operation only.
func NewHTTPClient(baseURL, applicationID, vendorHost string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL:       baseURL,
		applicationID: applicationID,
		vendorHost:    vendorHost,
		client:        &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) AcquireVendorToken(ctx context.Context, clientID, secret string) (string, error) {
	body := map[string]string{"clientId": clientID, "secret": secret}

	resp, err := c.do(ctx, http.MethodPost, "/auth/vendor", "", nil, body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if !success(resp) {
		return "", apiError(ErrTokenAcquisition, resp)
	}

	var tokenResp struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", fmt.Errorf("decoding token response: %w", err)
	}
	return tokenResp.Token, nil
}

func (c *HTTPClient) GetHierarchy(ctx context.Context, vendorToken, tenantID string) ([]models.Tenant, error) {
	headers := map[string]string{"frontegg-tenant-id": tenantID}

	resp, err := c.do(ctx, http.MethodGet, "/tenants/resources/hierarchy/v1", vendorToken, headers, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if !success(resp) {
		return nil, apiError(ErrHierarchyFetch, resp)
	}

	var records []models.Tenant
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("decoding hierarchy response: %w", err)
	}
	return records, nil
}

func (c *HTTPClient) ListTenants(ctx context.Context, vendorToken string) ([]models.Tenant, error) {
	resp, err := c.do(ctx, http.MethodGet, "/tenants/resources/tenants/v1", vendorToken, nil, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if !success(resp) {
		return nil, apiError(ErrTenantFetch, resp)
	}

	var tenants []models.Tenant
	if err := json.NewDecoder(resp.Body).Decode(&tenants); err != nil {
		return nil, fmt.Errorf("decoding tenants response: %w", err)
	}
	return tenants, nil
}

func (c *HTTPClient) CreateTenant(ctx context.Context, vendorToken string, draft models.NewTenantDraft) (models.Tenant, error) {
	resp, err := c.do(ctx, http.MethodPost, "/tenants/resources/tenants/v1", vendorToken, nil, draft)
	if err != nil {
		return models.Tenant{}, err
	}
	defer resp.Body.Close()

	if !success(resp) {
		return models.Tenant{}, apiError(ErrTenantCreation, resp)
	}

	var created models.Tenant
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return models.Tenant{}, fmt.Errorf("decoding created tenant: %w", err)
	}
	return created, nil
}

func (c *HTTPClient) SignUpUser(ctx context.Context, vendorToken string, req SignUpRequest) error {
	headers := map[string]string{
		"frontegg-application-id": c.applicationID,
		"frontegg-vendor-host":    c.vendorHost,
	}

	resp, err := c.do(ctx, http.MethodPost, "/identity/resources/users/v1/signUp", vendorToken, headers, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if !success(resp) {
		return apiError(ErrSignup, resp)
	}
	return nil
}

func (c *HTTPClient) AddHierarchyEdge(ctx context.Context, vendorToken, parentTenantID, childTenantID string) error {
	body := map[string]string{
		"parentTenantId": parentTenantID,
		"childTenantId":  childTenantID,
	}

	resp, err := c.do(ctx, http.MethodPost, "/tenants/resources/hierarchy/v1", vendorToken, nil, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if !success(resp) {
		return apiError(ErrHierarchyEdge, resp)
	}
	return nil
}

func (c *HTTPClient) SwitchUserTenant(ctx context.Context, userToken, tenantID string) error {
	body := map[string]string{"tenantId": tenantID}

	resp, err := c.do(ctx, http.MethodPut, "/identity/resources/users/v1/tenant", userToken, nil, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if !success(resp) {
		return apiError(ErrTenantSwitch, resp)
	}
	return nil
}

func (c *HTTPClient) ListUserTenants(ctx context.Context, userToken string) ([]models.Tenant, error) {
	resp, err := c.do(ctx, http.MethodGet, "/identity/resources/users/v2/me/tenants", userToken, nil, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if !success(resp) {
		return nil, apiError(ErrTenantFetch, resp)
	}

	var tenants []models.Tenant
	if err := json.NewDecoder(resp.Body).Decode(&tenants); err != nil {
		return nil, fmt.Errorf("decoding user tenants response: %w", err)
	}
	return tenants, nil
}

// do builds and executes one vendor request. An empty token means no
// Authorization header; otherwise the token is sent exactly as
// "Bearer <token>".
func (c *HTTPClient) do(ctx context.Context, method, path, token string, headers map[string]string, body any) (*http.Response, error) {
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, classifyError(err)
	}
	return resp, nil
}

func success(resp *http.Response) bool {
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// apiError wraps a non-success vendor response in the operation's sentinel
// error, carrying the HTTP status text. A 401 additionally wraps
// ErrVendorAuth so callers can invalidate the cached vendor token.
func apiError(op error, resp *http.Response) error {
	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%w: %w (%s)", op, ErrVendorAuth, resp.Status)
	}
	return fmt.Errorf("%w: %s", op, resp.Status)
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrVendorTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return fmt.Errorf("%w: %v", ErrVendorTimeout, err)
		}
	}

	return fmt.Errorf("%w: %v", ErrVendorUnreachable, err)
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)
