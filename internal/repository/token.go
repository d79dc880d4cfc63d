package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/crmkit/dispatchd/internal/models"
)

type TokenRepository struct {
	db *sql.DB
}

func NewTokenRepository(db *sql.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// Create stores a new API token hash
func (r *TokenRepository) Create(t *models.APIToken) error {
	t.ID = uuid.New().String()
	t.CreatedAt = time.Now()

	_, err := r.db.Exec(`
		INSERT INTO api_tokens (id, tenant_id, name, token_hash, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		t.ID, t.TenantID, t.Name, t.TokenHash, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create api token: %w", err)
	}
	return nil
}

// ListByTenant returns all token records for a tenant
func (r *TokenRepository) ListByTenant(tenantID string) ([]models.APIToken, error) {
	rows, err := r.db.Query(`
		SELECT id, tenant_id, name, token_hash, created_at
		FROM api_tokens WHERE tenant_id = ?`, tenantID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tokens := []models.APIToken{}
	for rows.Next() {
		var t models.APIToken
		if err := rows.Scan(&t.ID, &t.TenantID, &t.Name, &t.TokenHash, &t.CreatedAt); err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}

	return tokens, rows.Err()
}

// CreateTenant inserts a tenant record
func (r *TokenRepository) CreateTenant(t *models.Tenant) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	t.CreatedAt = time.Now()

	_, err := r.db.Exec(`
		INSERT INTO tenants (id, name, created_at) VALUES (?, ?, ?)`,
		t.ID, t.Name, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create tenant: %w", err)
	}
	return nil
}

// GetTenant returns a tenant by id, or nil if not found
func (r *TokenRepository) GetTenant(id string) (*models.Tenant, error) {
	t := &models.Tenant{}
	err := r.db.QueryRow(`SELECT id, name, created_at FROM tenants WHERE id = ?`, id).
		Scan(&t.ID, &t.Name, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}
