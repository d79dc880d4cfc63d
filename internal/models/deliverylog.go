package models

import "time"

// Delivery statuses
const (
	DeliveryStatusSent   = "sent"
	DeliveryStatusFailed = "failed"
)

// DeliveryLogEntry is one immutable audit record per attempted recipient.
// Entries are created exactly once per recipient per dispatch run and never
// updated afterwards.
type DeliveryLogEntry struct {
	ID         string     `json:"id"`
	TenantID   string     `json:"tenant_id"`
	CampaignID string     `json:"campaign_id"`
	Recipient  string     `json:"recipient"`
	Status     string     `json:"status"`
	Error      string     `json:"error,omitempty"`
	SentAt     *time.Time `json:"sent_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// DeliveryLogFilter for listing log entries
type DeliveryLogFilter struct {
	CampaignID string
	Status     string
	Limit      int
	Offset     int
}

// DeliveryStats holds aggregated delivery counts for a campaign
type DeliveryStats struct {
	Total  int `json:"total"`
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}
