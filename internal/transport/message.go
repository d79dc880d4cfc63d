package transport

import (
	"bytes"
	"fmt"
	"mime"
	"strings"
	"time"
)

// Message is a single outbound email.
type Message struct {
	From     string
	FromName string
	To       string
	Subject  string
	HTML     string
}

// Bytes renders the message as RFC 5322 data with a single text/html part.
func (m *Message) Bytes() []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "From: %s\r\n", formatFrom(m.From, m.FromName))
	fmt.Fprintf(&buf, "To: %s\r\n", m.To)
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", m.Subject))
	fmt.Fprintf(&buf, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/html; charset=utf-8\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(normalizeCRLF(m.HTML))
	buf.WriteString("\r\n")

	return buf.Bytes()
}

func formatFrom(email, name string) string {
	if name == "" {
		return email
	}
	return mime.QEncoding.Encode("utf-8", name) + " <" + email + ">"
}

// normalizeCRLF rewrites bare LF line endings to CRLF as SMTP requires.
func normalizeCRLF(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\n", "\r\n")
}
