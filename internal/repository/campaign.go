package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/crmkit/dispatchd/internal/models"
)

type CampaignRepository struct {
	db *sql.DB
}

func NewCampaignRepository(db *sql.DB) *CampaignRepository {
	return &CampaignRepository{db: db}
}

// Create creates a new campaign
func (r *CampaignRepository) Create(c *models.Campaign) error {
	c.ID = uuid.New().String()
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	if c.Status == "" {
		c.Status = models.CampaignStatusDraft
	}
	if c.Channel == "" {
		c.Channel = models.ChannelEmail
	}

	_, err := r.db.Exec(`
		INSERT INTO campaigns (id, tenant_id, name, channel, recipient_source, recipient_list, spreadsheet_emails,
			manual_recipients, from_name, subject, body_html, cta_text, credential_id, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.TenantID, c.Name, c.Channel, c.RecipientSource, c.RecipientList, c.SpreadsheetEmails,
		c.ManualRecipients, c.FromName, c.Subject, c.BodyHTML, c.CTAText, nullString(c.CredentialID),
		c.Status, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create campaign: %w", err)
	}
	return nil
}

// GetByID returns a campaign by ID, scoped to the tenant. Returns nil if not found.
func (r *CampaignRepository) GetByID(tenantID, id string) (*models.Campaign, error) {
	c := &models.Campaign{}
	var credentialID sql.NullString
	var sentAt sql.NullTime
	err := r.db.QueryRow(`
		SELECT id, tenant_id, name, channel, recipient_source, recipient_list, spreadsheet_emails,
			manual_recipients, from_name, subject, body_html, cta_text, credential_id, status, sent_at, created_at, updated_at
		FROM campaigns WHERE id = ? AND tenant_id = ?`, id, tenantID,
	).Scan(&c.ID, &c.TenantID, &c.Name, &c.Channel, &c.RecipientSource, &c.RecipientList, &c.SpreadsheetEmails,
		&c.ManualRecipients, &c.FromName, &c.Subject, &c.BodyHTML, &c.CTAText, &credentialID, &c.Status, &sentAt, &c.CreatedAt, &c.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if credentialID.Valid {
		c.CredentialID = credentialID.String
	}
	if sentAt.Valid {
		c.SentAt = &sentAt.Time
	}
	return c, nil
}

// List returns campaigns for a tenant with optional filtering
func (r *CampaignRepository) List(tenantID string, filter models.CampaignListFilter) ([]models.Campaign, error) {
	query := `
		SELECT id, tenant_id, name, channel, recipient_source, recipient_list, spreadsheet_emails,
			manual_recipients, from_name, subject, body_html, cta_text, credential_id, status, sent_at, created_at, updated_at
		FROM campaigns WHERE tenant_id = ?`
	args := []any{tenantID}

	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, filter.Status)
	}

	query += " ORDER BY updated_at DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	campaigns := []models.Campaign{}
	for rows.Next() {
		var c models.Campaign
		var credentialID sql.NullString
		var sentAt sql.NullTime
		err := rows.Scan(&c.ID, &c.TenantID, &c.Name, &c.Channel, &c.RecipientSource, &c.RecipientList,
			&c.SpreadsheetEmails, &c.ManualRecipients, &c.FromName, &c.Subject, &c.BodyHTML, &c.CTAText,
			&credentialID, &c.Status, &sentAt, &c.CreatedAt, &c.UpdatedAt)
		if err != nil {
			return nil, err
		}
		if credentialID.Valid {
			c.CredentialID = credentialID.String
		}
		if sentAt.Valid {
			c.SentAt = &sentAt.Time
		}
		campaigns = append(campaigns, c)
	}

	return campaigns, rows.Err()
}

// Update updates a campaign's editable fields
func (r *CampaignRepository) Update(c *models.Campaign) error {
	c.UpdatedAt = time.Now()
	_, err := r.db.Exec(`
		UPDATE campaigns SET name = ?, channel = ?, recipient_source = ?, recipient_list = ?,
			spreadsheet_emails = ?, manual_recipients = ?, from_name = ?, subject = ?, body_html = ?,
			cta_text = ?, credential_id = ?, updated_at = ?
		WHERE id = ? AND tenant_id = ?`,
		c.Name, c.Channel, c.RecipientSource, c.RecipientList, c.SpreadsheetEmails, c.ManualRecipients,
		c.FromName, c.Subject, c.BodyHTML, c.CTAText, nullString(c.CredentialID), c.UpdatedAt,
		c.ID, c.TenantID,
	)
	return err
}

// Delete deletes a campaign
func (r *CampaignRepository) Delete(tenantID, id string) error {
	_, err := r.db.Exec("DELETE FROM campaigns WHERE id = ? AND tenant_id = ?", id, tenantID)
	return err
}

// MarkSent transitions a campaign to sent and stamps sent_at. The status
// guard makes the transition idempotent: a campaign already marked sent is
// left untouched.
func (r *CampaignRepository) MarkSent(tenantID, id string, sentAt time.Time) error {
	_, err := r.db.Exec(`
		UPDATE campaigns SET status = ?, sent_at = ?, updated_at = ?
		WHERE id = ? AND tenant_id = ? AND status != ?`,
		models.CampaignStatusSent, sentAt, sentAt, id, tenantID, models.CampaignStatusSent,
	)
	if err != nil {
		return fmt.Errorf("failed to mark campaign sent: %w", err)
	}
	return nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
