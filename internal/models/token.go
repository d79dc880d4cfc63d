package models

import "time"

// APIToken is a bearer token granting API access scoped to a single tenant.
// Only the bcrypt hash of the secret is stored.
type APIToken struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Name      string    `json:"name"`
	TokenHash string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// Tenant is an isolated owning organization. All data is scoped by tenant id.
type Tenant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
