// Package tracking layers optional open/click tracking onto outbound
// message bodies. The fragments it appends are opaque to the dispatch
// engine and dispatch correctness never depends on them.
package tracking

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Tracker mints tokens, decorates message bodies and records hits.
type Tracker struct {
	store   *Store
	baseURL string
	logger  *slog.Logger
}

// New creates a tracker serving links under baseURL.
func New(store *Store, baseURL string, logger *slog.Logger) *Tracker {
	return &Tracker{
		store:   store,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger.With("component", "tracking"),
	}
}

var hrefPattern = regexp.MustCompile(`href="(https?://[^"]+)"`)

// Decorate wraps links for click tracking and appends an open pixel.
// On any storage error the body is returned undecorated; a lost tracking
// fragment must never fail a send.
func (t *Tracker) Decorate(campaignID, recipient, html string) string {
	out := hrefPattern.ReplaceAllStringFunc(html, func(match string) string {
		target := hrefPattern.FindStringSubmatch(match)[1]
		token := &Token{
			ID:         uuid.New().String(),
			CampaignID: campaignID,
			Recipient:  recipient,
			TargetURL:  target,
			CreatedAt:  time.Now(),
		}
		if err := t.store.SaveToken(token); err != nil {
			t.logger.Warn("failed to save click token", "campaign_id", campaignID, "error", err)
			return match
		}
		return fmt.Sprintf(`href="%s/t/c/%s"`, t.baseURL, token.ID)
	})

	pixel := &Token{
		ID:         uuid.New().String(),
		CampaignID: campaignID,
		Recipient:  recipient,
		CreatedAt:  time.Now(),
	}
	if err := t.store.SaveToken(pixel); err != nil {
		t.logger.Warn("failed to save open token", "campaign_id", campaignID, "error", err)
		return out
	}

	return out + fmt.Sprintf(`<img src="%s/t/o/%s.png" width="1" height="1" alt="">`, t.baseURL, pixel.ID)
}

// RecordOpen records an open hit for a pixel token. Returns the token, or
// nil if it is unknown.
func (t *Tracker) RecordOpen(tokenID string) (*Token, error) {
	token, err := t.store.GetToken(tokenID)
	if err != nil || token == nil {
		return nil, err
	}

	err = t.store.RecordEvent(&Event{
		TokenID:    token.ID,
		CampaignID: token.CampaignID,
		Recipient:  token.Recipient,
		Kind:       "open",
		OccurredAt: time.Now(),
	})
	return token, err
}

// Events returns all recorded opens and clicks for a campaign.
func (t *Tracker) Events(campaignID string) ([]Event, error) {
	return t.store.EventsByCampaign(campaignID)
}

// RecordClick records a click hit and returns the token whose TargetURL the
// caller should redirect to. Returns nil for unknown or non-link tokens.
func (t *Tracker) RecordClick(tokenID string) (*Token, error) {
	token, err := t.store.GetToken(tokenID)
	if err != nil || token == nil {
		return nil, err
	}
	if token.TargetURL == "" {
		return nil, nil
	}

	err = t.store.RecordEvent(&Event{
		TokenID:    token.ID,
		CampaignID: token.CampaignID,
		Recipient:  token.Recipient,
		Kind:       "click",
		OccurredAt: time.Now(),
	})
	return token, err
}
