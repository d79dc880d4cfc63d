// Package recipients resolves a campaign's recipient source into a raw
// candidate list and normalizes it into the final send list.
package recipients

import (
	"encoding/json"
	"strings"

	"github.com/crmkit/dispatchd/internal/models"
)

// Resolve returns the raw address candidates for a campaign, chosen by its
// recipient source. The result may contain duplicates and invalid entries;
// an unknown or empty source yields an empty slice.
func Resolve(c *models.Campaign) []string {
	switch c.RecipientSource {
	case models.SourceSegment:
		return decodeList(c.RecipientList)
	case models.SourceSpreadsheet:
		return decodeList(c.SpreadsheetEmails)
	case models.SourceManual:
		return splitManual(c.ManualRecipients)
	default:
		return nil
	}
}

// Normalize lowercases, trims and dedupes the raw candidates, dropping
// entries that fail the syntactic email check. First-seen order is kept.
// Normalize is idempotent.
func Normalize(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))

	for _, candidate := range raw {
		email := strings.ToLower(strings.TrimSpace(candidate))
		if !ValidEmail(email) {
			continue
		}
		if _, ok := seen[email]; ok {
			continue
		}
		seen[email] = struct{}{}
		out = append(out, email)
	}

	return out
}

// ValidEmail reports whether the address has a local@domain.tld shape:
// non-empty local part, a domain containing at least one dot with non-empty
// labels, and no embedded whitespace.
func ValidEmail(email string) bool {
	if email == "" || strings.ContainsAny(email, " \t\r\n") {
		return false
	}
	local, domain, found := strings.Cut(email, "@")
	if !found || local == "" || domain == "" {
		return false
	}
	if strings.Contains(domain, "@") {
		return false
	}
	dot := strings.LastIndex(domain, ".")
	if dot <= 0 || dot == len(domain)-1 {
		return false
	}
	return true
}

// decodeList parses a JSON array column into a string slice. Malformed or
// empty content yields nil.
func decodeList(raw string) []string {
	if raw == "" {
		return nil
	}
	var list []string
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil
	}
	return list
}

// splitManual splits free-form text on commas and newlines, collapsing runs
// of either into a single delimiter.
func splitManual(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == '\n' || r == '\r'
	})

	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
