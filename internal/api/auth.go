package api

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/crmkit/dispatchd/internal/repository"
)

// ErrInvalidToken is returned for tokens that do not resolve to a tenant.
var ErrInvalidToken = errors.New("api: invalid token")

// TokenVerifier resolves a bearer token to a tenant id.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (tenantID string, err error)
}

// DBTokenVerifier verifies tokens of the form "<tenantID>.<secret>" against
// bcrypt hashes stored per tenant.
type DBTokenVerifier struct {
	tokens *repository.TokenRepository
}

func NewDBTokenVerifier(tokens *repository.TokenRepository) *DBTokenVerifier {
	return &DBTokenVerifier{tokens: tokens}
}

func (v *DBTokenVerifier) Verify(ctx context.Context, token string) (string, error) {
	tenantID, secret, found := strings.Cut(token, ".")
	if !found || tenantID == "" || secret == "" {
		return "", ErrInvalidToken
	}

	records, err := v.tokens.ListByTenant(tenantID)
	if err != nil {
		return "", err
	}

	for _, record := range records {
		if bcrypt.CompareHashAndPassword([]byte(record.TokenHash), []byte(secret)) == nil {
			return tenantID, nil
		}
	}

	return "", ErrInvalidToken
}
