package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tenantbridge/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Provisioning sagas ---

func (s *PostgresStore) CreateSaga(ctx context.Context, saga *models.ProvisionSaga) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO provision_sagas (id, user_id, parent_tenant_id, tenant_id, status, error_message)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at, updated_at`,
		saga.ID, saga.UserID, saga.ParentTenantID, saga.TenantID, saga.Status, saga.ErrorMessage,
	).Scan(&saga.CreatedAt, &saga.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create saga: %w", err)
	}
	return nil
}

func (s *PostgresStore) RecordSagaStep(ctx context.Context, sagaID uuid.UUID, step models.SagaStep) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO saga_steps (saga_id, seq, name, status, error, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		sagaID, step.Seq, step.Name, step.Status, step.Error, step.CompletedAt)
	if err != nil {
		return fmt.Errorf("record saga step: %w", err)
	}
	return nil
}

func (s *PostgresStore) SetSagaTenant(ctx context.Context, sagaID uuid.UUID, tenantID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE provision_sagas SET tenant_id = $2, updated_at = NOW() WHERE id = $1`,
		sagaID, tenantID)
	if err != nil {
		return fmt.Errorf("set saga tenant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) FinishSaga(ctx context.Context, sagaID uuid.UUID, status string, errorMessage *string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE provision_sagas SET status = $2, error_message = $3, updated_at = NOW() WHERE id = $1`,
		sagaID, status, errorMessage)
	if err != nil {
		return fmt.Errorf("finish saga: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) GetSaga(ctx context.Context, id uuid.UUID) (*models.ProvisionSaga, error) {
	var saga models.ProvisionSaga
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, parent_tenant_id, tenant_id, status, error_message, created_at, updated_at
		 FROM provision_sagas WHERE id = $1`, id,
	).Scan(&saga.ID, &saga.UserID, &saga.ParentTenantID, &saga.TenantID,
		&saga.Status, &saga.ErrorMessage, &saga.CreatedAt, &saga.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get saga: %w", err)
	}

	steps, err := s.sagaSteps(ctx, id)
	if err != nil {
		return nil, err
	}
	saga.Steps = steps
	return &saga, nil
}

func (s *PostgresStore) sagaSteps(ctx context.Context, sagaID uuid.UUID) ([]models.SagaStep, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT seq, name, status, error, completed_at
		 FROM saga_steps WHERE saga_id = $1 ORDER BY seq`, sagaID)
	if err != nil {
		return nil, fmt.Errorf("get saga steps: %w", err)
	}
	defer rows.Close()

	var steps []models.SagaStep
	for rows.Next() {
		var st models.SagaStep
		if err := rows.Scan(&st.Seq, &st.Name, &st.Status, &st.Error, &st.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan saga step: %w", err)
		}
		steps = append(steps, st)
	}
	return steps, rows.Err()
}

func (s *PostgresStore) ListSagas(ctx context.Context, filter SagaFilter) ([]*models.ProvisionSaga, int, error) {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit < 1 || limit > 100 {
		limit = 20
	}

	where := `WHERE ($1 = '' OR user_id = $1) AND ($2 = '' OR status = $2)`

	var total int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM provision_sagas `+where, filter.UserID, filter.Status,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count sagas: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, parent_tenant_id, tenant_id, status, error_message, created_at, updated_at
		 FROM provision_sagas `+where+`
		 ORDER BY created_at DESC LIMIT $3 OFFSET $4`,
		filter.UserID, filter.Status, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list sagas: %w", err)
	}
	defer rows.Close()

	var sagas []*models.ProvisionSaga
	for rows.Next() {
		var saga models.ProvisionSaga
		if err := rows.Scan(&saga.ID, &saga.UserID, &saga.ParentTenantID, &saga.TenantID,
			&saga.Status, &saga.ErrorMessage, &saga.CreatedAt, &saga.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan saga: %w", err)
		}
		sagas = append(sagas, &saga)
	}
	return sagas, total, rows.Err()
}

// --- API Keys ---

func (s *PostgresStore) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO api_keys (id, name, key_hash, key_prefix, scopes)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at, updated_at`,
		key.ID, key.Name, key.KeyHash, key.KeyPrefix, key.Scopes,
	).Scan(&key.CreatedAt, &key.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at
		 FROM api_keys WHERE key_prefix = $1 AND deleted_at IS NULL`, prefix)
	if err != nil {
		return nil, fmt.Errorf("get api key by prefix: %w", err)
	}
	defer rows.Close()

	return scanAPIKeys(rows)
}

func (s *PostgresStore) ListAPIKeys(ctx context.Context) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at
		 FROM api_keys WHERE deleted_at IS NULL ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	return scanAPIKeys(rows)
}

func (s *PostgresStore) RevokeAPIKey(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET deleted_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET last_used_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("update api key last used: %w", err)
	}
	return nil
}

func scanAPIKeys(rows pgx.Rows) ([]*models.APIKey, error) {
	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Scopes,
			&k.LastUsedAt, &k.DeletedAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

// Compile-time check that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)
