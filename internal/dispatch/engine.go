// Package dispatch implements the campaign dispatch engine: recipient
// resolution, credential acquisition, transport construction and the
// per-recipient send-and-log loop.
package dispatch

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/crmkit/dispatchd/internal/metrics"
	"github.com/crmkit/dispatchd/internal/models"
	"github.com/crmkit/dispatchd/internal/recipients"
	"github.com/crmkit/dispatchd/internal/repository"
	"github.com/crmkit/dispatchd/internal/secrets"
	"github.com/crmkit/dispatchd/internal/transport"
)

// BuildFunc constructs a transport for a credential. Swappable in tests.
type BuildFunc func(cred *models.Credential, secret string) (transport.Transport, error)

// Decorator appends tracking fragments to a message body. The fragments are
// opaque to the engine; dispatch correctness never depends on them.
type Decorator interface {
	Decorate(campaignID, recipient, html string) string
}

// Result summarizes a completed dispatch run. Per-recipient detail lives in
// the delivery log, not here.
type Result struct {
	Attempted int `json:"attempted"`
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
}

// Config holds engine tuning knobs
type Config struct {
	Concurrency int
	SendTimeout time.Duration
}

// DefaultConfig returns default engine configuration
func DefaultConfig() Config {
	return Config{
		Concurrency: 5,
		SendTimeout: 30 * time.Second,
	}
}

// Engine executes dispatch runs. A single Engine serves all tenants; each
// run owns its own transport and recipient list. Callers must not dispatch
// the same campaign concurrently.
type Engine struct {
	campaigns   *repository.CampaignRepository
	credentials *repository.CredentialRepository
	logs        *repository.DeliveryLogRepository
	codec       *secrets.Codec
	metrics     *metrics.Metrics
	logger      *slog.Logger

	concurrency int
	sendTimeout time.Duration

	build     BuildFunc
	decorator Decorator
}

// New creates a dispatch engine
func New(db *sql.DB, codec *secrets.Codec, m *metrics.Metrics, logger *slog.Logger, cfg Config) *Engine {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConfig().Concurrency
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = DefaultConfig().SendTimeout
	}

	return &Engine{
		campaigns:   repository.NewCampaignRepository(db),
		credentials: repository.NewCredentialRepository(db),
		logs:        repository.NewDeliveryLogRepository(db),
		codec:       codec,
		metrics:     m,
		logger:      logger.With("component", "dispatch"),
		concurrency: cfg.Concurrency,
		sendTimeout: cfg.SendTimeout,
		build:       transport.Build,
	}
}

// SetBuildFunc overrides transport construction, primarily for tests.
func (e *Engine) SetBuildFunc(build BuildFunc) {
	e.build = build
}

// SetDecorator installs a body decorator for tracking fragments.
func (e *Engine) SetDecorator(d Decorator) {
	e.decorator = d
}

// Dispatch runs one campaign end to end: resolve recipients, acquire and
// decrypt the sending identity, build the transport, send to every
// recipient with one log entry each, then mark the campaign sent.
//
// Precondition failures return an error with zero side effects. Once the
// loop starts, per-recipient failures are isolated and the run completes.
func (e *Engine) Dispatch(ctx context.Context, tenantID, campaignID string) (*Result, error) {
	logger := e.logger.With("tenant_id", tenantID, "campaign_id", campaignID)

	campaign, err := e.campaigns.GetByID(tenantID, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to load campaign: %w", err)
	}
	if campaign == nil {
		return nil, ErrCampaignNotFound
	}
	if campaign.Channel != models.ChannelEmail {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedChannel, campaign.Channel)
	}

	list := recipients.Normalize(recipients.Resolve(campaign))
	if len(list) == 0 {
		e.metrics.DispatchRunsTotal.WithLabelValues("no_recipients").Inc()
		return nil, ErrNoRecipients
	}

	cred, err := e.resolveCredential(campaign)
	if err != nil {
		e.metrics.DispatchRunsTotal.WithLabelValues("no_credential").Inc()
		return nil, err
	}

	secret, err := e.codec.Decrypt(cred.EncryptedSecret)
	if err != nil {
		// Fail closed: never fall back to an unrelated identity.
		logger.Warn("credential secret decryption failed", "credential_id", cred.ID)
		e.metrics.DispatchRunsTotal.WithLabelValues("decryption_failed").Inc()
		return nil, ErrDecryptionFailed
	}

	tr, err := e.build(cred, secret)
	if err != nil {
		e.metrics.DispatchRunsTotal.WithLabelValues("unsupported_provider").Inc()
		return nil, err
	}
	if st, ok := tr.(interface{ SetTimeout(time.Duration) }); ok {
		st.SetTimeout(e.sendTimeout)
	}

	logger.Info("dispatch started",
		"recipients", len(list),
		"provider", cred.Provider,
		"from", cred.FromAddress,
	)

	e.metrics.DispatchInFlight.Inc()
	start := time.Now()

	// Once the loop starts the run completes even if the caller goes away;
	// only the per-send timeout bounds each attempt.
	result, logFailures := e.runLoop(context.WithoutCancel(ctx), campaign, cred, tr, list)

	e.metrics.DispatchInFlight.Dec()
	e.metrics.DispatchDurationSeconds.WithLabelValues(cred.Provider).Observe(time.Since(start).Seconds())
	e.metrics.DispatchRunsTotal.WithLabelValues("completed").Inc()

	// Partial failure still marks the campaign sent; delivery failure is
	// recorded per recipient in the log.
	if err := e.campaigns.MarkSent(tenantID, campaignID, time.Now()); err != nil {
		return result, err
	}

	logger.Info("dispatch completed",
		"attempted", result.Attempted,
		"sent", result.Sent,
		"failed", result.Failed,
		"duration", time.Since(start),
	)

	// The delivery log is the audit trail; losing rows is a run failure even
	// though the sends themselves went out.
	if logFailures > 0 {
		return result, fmt.Errorf("%w: %d of %d entries not written", ErrLogWrite, logFailures, result.Attempted)
	}

	return result, nil
}

// resolveCredential picks the campaign-pinned identity, or falls back to the
// tenant's first active one.
func (e *Engine) resolveCredential(campaign *models.Campaign) (*models.Credential, error) {
	var cred *models.Credential
	var err error

	if campaign.CredentialID != "" {
		cred, err = e.credentials.GetByID(campaign.TenantID, campaign.CredentialID)
	} else {
		cred, err = e.credentials.GetActive(campaign.TenantID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load credential: %w", err)
	}
	if cred == nil {
		return nil, ErrNoCredential
	}
	return cred, nil
}

// runLoop sends to every recipient with bounded concurrency. Every recipient
// produces exactly one log entry; one recipient's failure never cancels
// another's in-flight attempt. Returns only after all attempts finished,
// along with the number of log entries that could not be written.
func (e *Engine) runLoop(ctx context.Context, campaign *models.Campaign, cred *models.Credential, tr transport.Transport, list []string) (*Result, int) {
	sem := make(chan struct{}, e.concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex

	result := &Result{Attempted: len(list)}
	logFailures := 0

	for _, recipient := range list {
		sem <- struct{}{}
		wg.Add(1)

		go func(recipient string) {
			defer func() {
				<-sem
				wg.Done()
			}()

			sent, logErr := e.sendOne(ctx, campaign, cred, tr, recipient)

			mu.Lock()
			if sent {
				result.Sent++
			} else {
				result.Failed++
			}
			if logErr != nil {
				logFailures++
			}
			mu.Unlock()
		}(recipient)
	}

	wg.Wait()
	return result, logFailures
}

// sendOne attempts exactly one send and writes exactly one log entry. The
// returned error reports a failed log write, never a failed send.
func (e *Engine) sendOne(ctx context.Context, campaign *models.Campaign, cred *models.Credential, tr transport.Transport, recipient string) (bool, error) {
	body := campaign.BodyHTML
	if e.decorator != nil {
		body = e.decorator.Decorate(campaign.ID, recipient, body)
	}

	msg := &transport.Message{
		From:     cred.FromAddress,
		FromName: campaign.FromName,
		To:       recipient,
		Subject:  campaign.Subject,
		HTML:     body,
	}

	sendCtx, cancel := context.WithTimeout(ctx, e.sendTimeout)
	defer cancel()

	err := tr.Send(sendCtx, msg)

	entry := &models.DeliveryLogEntry{
		TenantID:   campaign.TenantID,
		CampaignID: campaign.ID,
		Recipient:  recipient,
	}

	if err != nil {
		entry.Status = models.DeliveryStatusFailed
		entry.Error = err.Error()
		e.metrics.RecipientsFailedTotal.WithLabelValues(cred.Provider).Inc()
		e.logger.Debug("send failed", "campaign_id", campaign.ID, "recipient", recipient, "error", err)
	} else {
		now := time.Now()
		entry.Status = models.DeliveryStatusSent
		entry.SentAt = &now
		e.metrics.RecipientsSentTotal.WithLabelValues(cred.Provider).Inc()
	}

	if logErr := e.logs.Create(entry); logErr != nil {
		e.logger.Error("failed to write delivery log entry",
			"campaign_id", campaign.ID,
			"recipient", recipient,
			"error", logErr,
		)
		return err == nil, logErr
	}

	return err == nil, nil
}
