package models

import "time"

// Credential statuses
const (
	CredentialStatusActive   = "active"
	CredentialStatusInactive = "inactive"
)

// Credential is a sending identity: a provider account used to originate
// outbound messages. The secret is stored encrypted and decrypted only for
// the duration of a dispatch run.
type Credential struct {
	ID              string    `json:"id"`
	TenantID        string    `json:"tenant_id"`
	Provider        string    `json:"provider"`
	FromAddress     string    `json:"from_address"`
	EncryptedSecret string    `json:"-"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
