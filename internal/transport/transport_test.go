package transport

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/crmkit/dispatchd/internal/models"
)

func TestLookup(t *testing.T) {
	tests := []struct {
		provider string
		wantHost string
		wantErr  bool
	}{
		{provider: "gmail", wantHost: "smtp.gmail.com"},
		{provider: "GMAIL", wantHost: "smtp.gmail.com"},
		{provider: " Outlook ", wantHost: "smtp.office365.com"},
		{provider: "office365", wantHost: "smtp.office365.com"},
		{provider: "yahoo", wantHost: "smtp.mail.yahoo.com"},
		{provider: "sendgrid", wantErr: true},
		{provider: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			ep, err := Lookup(tt.provider)
			if tt.wantErr {
				if !errors.Is(err, ErrUnsupportedProvider) {
					t.Errorf("Lookup(%q) error = %v, want ErrUnsupportedProvider", tt.provider, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Lookup(%q) error = %v", tt.provider, err)
			}
			if ep.Host != tt.wantHost {
				t.Errorf("Lookup(%q).Host = %q, want %q", tt.provider, ep.Host, tt.wantHost)
			}
		})
	}
}

func TestBuildUnsupportedProvider(t *testing.T) {
	cred := &models.Credential{Provider: "carrier-pigeon", FromAddress: "a@x.com"}
	if _, err := Build(cred, "secret"); !errors.Is(err, ErrUnsupportedProvider) {
		t.Errorf("Build() error = %v, want ErrUnsupportedProvider", err)
	}
}

func TestBuildSupportedProvider(t *testing.T) {
	cred := &models.Credential{Provider: "gmail", FromAddress: "a@x.com"}
	tr, err := Build(cred, "secret")
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if tr == nil {
		t.Fatal("Build() returned nil transport")
	}
}

func TestSendDialFailure(t *testing.T) {
	// Grab a local port with nothing listening on it.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to reserve port: %v", err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()

	tests := []struct {
		name string
		ep   Endpoint
	}{
		{name: "implicit tls", ep: Endpoint{Host: "127.0.0.1", Port: port, ImplicitTLS: true}},
		{name: "starttls", ep: Endpoint{Host: "127.0.0.1", Port: port}},
	}

	msg := &Message{From: "user@x.com", To: "a@x.com", Subject: "Hi", HTML: "<p>Hi</p>"}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewSMTPTransport(tt.ep, "user@x.com", "pw")

			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()

			err := tr.Send(ctx, msg)
			if err == nil {
				t.Fatal("Send() error = nil, want dial failure")
			}
			var de *DeliveryError
			if !errors.As(err, &de) {
				t.Fatalf("Send() error = %T, want *DeliveryError", err)
			}
			if !de.Temporary {
				t.Errorf("dial failure categorized permanent: %v", de)
			}
		})
	}
}

func TestSetTimeout(t *testing.T) {
	tr := NewSMTPTransport(Endpoint{Host: "smtp.gmail.com", Port: 465, ImplicitTLS: true}, "u@x.com", "pw")
	if tr.timeout != 30*time.Second {
		t.Errorf("default timeout = %v, want 30s", tr.timeout)
	}

	tr.SetTimeout(5 * time.Second)
	if tr.timeout != 5*time.Second {
		t.Errorf("timeout = %v, want 5s", tr.timeout)
	}

	// Non-positive values keep the current timeout.
	tr.SetTimeout(0)
	if tr.timeout != 5*time.Second {
		t.Errorf("timeout after SetTimeout(0) = %v, want unchanged 5s", tr.timeout)
	}
}

func TestMessageBytes(t *testing.T) {
	msg := &Message{
		From:     "sender@x.com",
		FromName: "Sender",
		To:       "rcpt@y.com",
		Subject:  "Hello",
		HTML:     "<p>Hi there</p>\n<p>Bye</p>",
	}

	data := string(msg.Bytes())

	for _, want := range []string{
		"From: Sender <sender@x.com>\r\n",
		"To: rcpt@y.com\r\n",
		"Subject: Hello\r\n",
		"MIME-Version: 1.0\r\n",
		"Content-Type: text/html; charset=utf-8\r\n",
		"<p>Hi there</p>\r\n<p>Bye</p>",
	} {
		if !strings.Contains(data, want) {
			t.Errorf("message data missing %q:\n%s", want, data)
		}
	}

	headers, _, found := strings.Cut(data, "\r\n\r\n")
	if !found {
		t.Fatal("message has no header/body separator")
	}
	if strings.Contains(headers, "<p>") {
		t.Error("body leaked into headers")
	}
}

func TestCategorizeError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		temporary bool
	}{
		{name: "permanent 550", err: errors.New("550 5.1.1 user unknown"), temporary: false},
		{name: "temporary 421", err: errors.New("421 service not available"), temporary: true},
		{name: "no code defaults temporary", err: errors.New("connection reset"), temporary: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			de := categorizeError(tt.err, "SEND")
			if de.Temporary != tt.temporary {
				t.Errorf("categorizeError(%v).Temporary = %v, want %v", tt.err, de.Temporary, tt.temporary)
			}
		})
	}
}

func TestIsTemporaryError(t *testing.T) {
	if IsTemporaryError(&DeliveryError{Temporary: false}) {
		t.Error("IsTemporaryError(permanent) = true")
	}
	if !IsTemporaryError(&DeliveryError{Temporary: true}) {
		t.Error("IsTemporaryError(temporary) = false")
	}
	if !IsTemporaryError(errors.New("unknown")) {
		t.Error("IsTemporaryError(unknown) = false, want true")
	}
}
