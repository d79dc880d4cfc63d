package models

import "time"

// Campaign channels
const (
	ChannelEmail   = "email"
	ChannelMessage = "message"
)

// Recipient sources
const (
	SourceSegment     = "segment"
	SourceSpreadsheet = "spreadsheet"
	SourceManual      = "manual"
)

// Campaign statuses
const (
	CampaignStatusDraft     = "draft"
	CampaignStatusScheduled = "scheduled"
	CampaignStatusSent      = "sent"
)

// Campaign represents a CRM campaign. The dispatch engine consumes it
// read-only; only the status/sent_at fields are updated after a run.
type Campaign struct {
	ID                string     `json:"id"`
	TenantID          string     `json:"tenant_id"`
	Name              string     `json:"name"`
	Channel           string     `json:"channel"`
	RecipientSource   string     `json:"recipient_source"`
	RecipientList     string     `json:"recipient_list"`     // JSON array of addresses
	SpreadsheetEmails string     `json:"spreadsheet_emails"` // JSON array of addresses
	ManualRecipients  string     `json:"manual_recipients"`  // comma/newline separated
	FromName          string     `json:"from_name"`
	Subject           string     `json:"subject"`
	BodyHTML          string     `json:"body_html"`
	CTAText           string     `json:"cta_text"`
	CredentialID      string     `json:"credential_id,omitempty"`
	Status            string     `json:"status"`
	SentAt            *time.Time `json:"sent_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// CampaignListFilter for filtering campaigns
type CampaignListFilter struct {
	Status string
	Limit  int
	Offset int
}
