package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/crmkit/dispatchd/internal/models"
)

type DeliveryLogRepository struct {
	db *sql.DB
}

func NewDeliveryLogRepository(db *sql.DB) *DeliveryLogRepository {
	return &DeliveryLogRepository{db: db}
}

// Create appends one delivery log entry. Entries are never updated or
// deleted afterwards; the log is the audit trail of a dispatch run.
func (r *DeliveryLogRepository) Create(e *models.DeliveryLogEntry) error {
	e.ID = uuid.New().String()
	e.CreatedAt = time.Now()

	_, err := r.db.Exec(`
		INSERT INTO delivery_logs (id, tenant_id, campaign_id, recipient, status, error, sent_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.TenantID, e.CampaignID, e.Recipient, e.Status, e.Error, e.SentAt, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create delivery log entry: %w", err)
	}
	return nil
}

// List returns log entries for a tenant, newest first
func (r *DeliveryLogRepository) List(tenantID string, filter models.DeliveryLogFilter) ([]models.DeliveryLogEntry, error) {
	query := `
		SELECT id, tenant_id, campaign_id, recipient, status, error, sent_at, created_at
		FROM delivery_logs WHERE tenant_id = ?`
	args := []any{tenantID}

	if filter.CampaignID != "" {
		query += " AND campaign_id = ?"
		args = append(args, filter.CampaignID)
	}
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, filter.Status)
	}

	query += " ORDER BY created_at DESC"

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

	entries := []models.DeliveryLogEntry{}
	for rows.Next() {
		var e models.DeliveryLogEntry
		var errMsg sql.NullString
		var sentAt sql.NullTime
		err := rows.Scan(&e.ID, &e.TenantID, &e.CampaignID, &e.Recipient, &e.Status, &errMsg, &sentAt, &e.CreatedAt)
		if err != nil {
			return nil, err
		}
		if errMsg.Valid {
			e.Error = errMsg.String
		}
		if sentAt.Valid {
			e.SentAt = &sentAt.Time
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// Stats returns aggregated delivery counts for a campaign
func (r *DeliveryLogRepository) Stats(tenantID, campaignID string) (*models.DeliveryStats, error) {
	stats := &models.DeliveryStats{}
	err := r.db.QueryRow(`
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0)
		FROM delivery_logs WHERE tenant_id = ? AND campaign_id = ?`,
		models.DeliveryStatusSent, models.DeliveryStatusFailed, tenantID, campaignID,
	).Scan(&stats.Total, &stats.Sent, &stats.Failed)
	if err != nil {
		return nil, err
	}
	return stats, nil
}
