// Package transport builds send-capable delivery channels for the fixed set
// of supported mail providers.
package transport

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/crmkit/dispatchd/internal/models"
)

// ErrUnsupportedProvider is returned when a credential names a provider the
// engine does not know how to reach. Unknown providers are rejected, never
// guessed at.
var ErrUnsupportedProvider = errors.New("transport: unsupported provider")

// Transport delivers a single message. Implementations do not retry; retry
// policy, if any, belongs to the caller.
type Transport interface {
	Send(ctx context.Context, msg *Message) error
}

// Endpoint describes how to reach a provider's submission service.
type Endpoint struct {
	Host        string
	Port        int
	ImplicitTLS bool // true: TLS from byte one; false: STARTTLS upgrade
}

// Addr returns the host:port dial address.
func (e Endpoint) Addr() string {
	return fmt.Sprintf("%s:%d", e.Host, e.Port)
}

// providers maps normalized provider names to submission endpoints.
var providers = map[string]Endpoint{
	"gmail":     {Host: "smtp.gmail.com", Port: 465, ImplicitTLS: true},
	"outlook":   {Host: "smtp.office365.com", Port: 587},
	"office365": {Host: "smtp.office365.com", Port: 587},
	"hotmail":   {Host: "smtp.office365.com", Port: 587},
	"yahoo":     {Host: "smtp.mail.yahoo.com", Port: 465, ImplicitTLS: true},
}

// Lookup resolves a provider name, case-insensitively, to its endpoint.
func Lookup(provider string) (Endpoint, error) {
	ep, ok := providers[strings.ToLower(strings.TrimSpace(provider))]
	if !ok {
		return Endpoint{}, fmt.Errorf("%w: %q", ErrUnsupportedProvider, provider)
	}
	return ep, nil
}

// Build constructs a transport for a credential and its decrypted secret.
// At most one transport is built per dispatch run.
func Build(cred *models.Credential, secret string) (Transport, error) {
	ep, err := Lookup(cred.Provider)
	if err != nil {
		return nil, err
	}
	return NewSMTPTransport(ep, cred.FromAddress, secret), nil
}

// DeliveryError represents a delivery error with type information.
type DeliveryError struct {
	Temporary bool
	Message   string
}

func (e *DeliveryError) Error() string {
	return e.Message
}

// smtpCodePattern matches SMTP response codes at word boundaries
var smtpCodePattern = regexp.MustCompile(`\b(4\d{2}|5\d{2})\b`)

// categorizeError determines if an SMTP error is temporary or permanent.
func categorizeError(err error, stage string) *DeliveryError {
	msg := fmt.Sprintf("%s failed: %v", stage, err)

	matches := smtpCodePattern.FindStringSubmatch(err.Error())
	if len(matches) > 1 {
		code := matches[1]
		// 5xx codes are permanent errors
		if strings.HasPrefix(code, "5") {
			return &DeliveryError{Temporary: false, Message: msg}
		}
		// 4xx codes are temporary errors
		if strings.HasPrefix(code, "4") {
			return &DeliveryError{Temporary: true, Message: msg}
		}
	}

	// Assume temporary by default
	return &DeliveryError{Temporary: true, Message: msg}
}

// IsTemporaryError checks if the error is temporary.
func IsTemporaryError(err error) bool {
	var de *DeliveryError
	if errors.As(err, &de) {
		return de.Temporary
	}
	return true // Assume temporary if unknown
}
