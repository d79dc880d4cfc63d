package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/crmkit/dispatchd/internal/models"
)

type CredentialRepository struct {
	db *sql.DB
}

func NewCredentialRepository(db *sql.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// Create creates a new sending identity
func (r *CredentialRepository) Create(c *models.Credential) error {
	c.ID = uuid.New().String()
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	if c.Status == "" {
		c.Status = models.CredentialStatusActive
	}

	_, err := r.db.Exec(`
		INSERT INTO credentials (id, tenant_id, provider, from_address, encrypted_secret, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.TenantID, c.Provider, c.FromAddress, c.EncryptedSecret, c.Status, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create credential: %w", err)
	}
	return nil
}

// GetByID returns a credential by ID, scoped to the tenant. Returns nil if not found.
func (r *CredentialRepository) GetByID(tenantID, id string) (*models.Credential, error) {
	c := &models.Credential{}
	err := r.db.QueryRow(`
		SELECT id, tenant_id, provider, from_address, encrypted_secret, status, created_at, updated_at
		FROM credentials WHERE id = ? AND tenant_id = ?`, id, tenantID,
	).Scan(&c.ID, &c.TenantID, &c.Provider, &c.FromAddress, &c.EncryptedSecret, &c.Status, &c.CreatedAt, &c.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// GetActive returns the tenant's first active credential, or nil if the
// tenant has none.
func (r *CredentialRepository) GetActive(tenantID string) (*models.Credential, error) {
	c := &models.Credential{}
	err := r.db.QueryRow(`
		SELECT id, tenant_id, provider, from_address, encrypted_secret, status, created_at, updated_at
		FROM credentials WHERE tenant_id = ? AND status = ?
		ORDER BY created_at LIMIT 1`, tenantID, models.CredentialStatusActive,
	).Scan(&c.ID, &c.TenantID, &c.Provider, &c.FromAddress, &c.EncryptedSecret, &c.Status, &c.CreatedAt, &c.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// List returns all credentials for a tenant
func (r *CredentialRepository) List(tenantID string) ([]models.Credential, error) {
	rows, err := r.db.Query(`
		SELECT id, tenant_id, provider, from_address, encrypted_secret, status, created_at, updated_at
		FROM credentials WHERE tenant_id = ? ORDER BY created_at`, tenantID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	credentials := []models.Credential{}
	for rows.Next() {
		var c models.Credential
		err := rows.Scan(&c.ID, &c.TenantID, &c.Provider, &c.FromAddress, &c.EncryptedSecret, &c.Status, &c.CreatedAt, &c.UpdatedAt)
		if err != nil {
			return nil, err
		}
		credentials = append(credentials, c)
	}

	return credentials, rows.Err()
}

// UpdateStatus toggles a credential between active and inactive
func (r *CredentialRepository) UpdateStatus(tenantID, id, status string) error {
	_, err := r.db.Exec(`
		UPDATE credentials SET status = ?, updated_at = ? WHERE id = ? AND tenant_id = ?`,
		status, time.Now(), id, tenantID,
	)
	return err
}

// Delete deletes a credential
func (r *CredentialRepository) Delete(tenantID, id string) error {
	_, err := r.db.Exec("DELETE FROM credentials WHERE id = ? AND tenant_id = ?", id, tenantID)
	return err
}
