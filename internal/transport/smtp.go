package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

// SMTPTransport submits messages through a provider's authenticated
// submission endpoint. One instance serves a whole dispatch run; each Send
// opens its own connection so a stuck session cannot poison later sends.
type SMTPTransport struct {
	endpoint Endpoint
	username string
	password string
	timeout  time.Duration
}

// NewSMTPTransport creates a transport for one provider endpoint and account.
func NewSMTPTransport(ep Endpoint, username, password string) *SMTPTransport {
	return &SMTPTransport{
		endpoint: ep,
		username: username,
		password: password,
		timeout:  30 * time.Second,
	}
}

// SetTimeout overrides the per-connection timeout.
func (t *SMTPTransport) SetTimeout(d time.Duration) {
	if d > 0 {
		t.timeout = d
	}
}

// Send delivers one message. SMTP errors are categorized as temporary or
// permanent from the response code.
func (t *SMTPTransport) Send(ctx context.Context, msg *Message) error {
	dialer := &net.Dialer{Timeout: t.timeout}

	conn, err := dialer.DialContext(ctx, "tcp", t.endpoint.Addr())
	if err != nil {
		return &DeliveryError{
			Temporary: true,
			Message:   fmt.Sprintf("connection failed to %s: %v", t.endpoint.Addr(), err),
		}
	}

	tlsConfig := &tls.Config{
		ServerName: t.endpoint.Host,
		MinVersion: tls.VersionTLS12,
	}

	// Set deadline
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	} else {
		conn.SetDeadline(time.Now().Add(t.timeout))
	}

	var client *smtp.Client
	if t.endpoint.ImplicitTLS {
		client = smtp.NewClient(tls.Client(conn, tlsConfig))
	} else {
		client, err = smtp.NewClientStartTLS(conn, tlsConfig)
		if err != nil {
			return categorizeError(err, "STARTTLS")
		}
	}
	defer client.Close()

	if err := client.Hello("dispatchd"); err != nil {
		return categorizeError(err, "HELO")
	}

	if err := client.Auth(sasl.NewPlainClient("", t.username, t.password)); err != nil {
		return categorizeError(err, "AUTH")
	}

	if err := client.SendMail(t.username, []string{msg.To}, bytes.NewReader(msg.Bytes())); err != nil {
		return categorizeError(err, "SEND")
	}

	client.Quit()
	return nil
}
