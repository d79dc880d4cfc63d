package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/crmkit/dispatchd/internal/dispatch"
	"github.com/crmkit/dispatchd/internal/models"
	"github.com/crmkit/dispatchd/internal/recipients"
	"github.com/crmkit/dispatchd/internal/transport"
)

// CampaignRequest is the request body for POST /campaigns
type CampaignRequest struct {
	Name              string   `json:"name"`
	Channel           string   `json:"channel,omitempty"`
	RecipientSource   string   `json:"recipient_source"`
	RecipientList     []string `json:"recipient_list,omitempty"`
	SpreadsheetEmails []string `json:"spreadsheet_emails,omitempty"`
	ManualRecipients  string   `json:"manual_recipients,omitempty"`
	FromName          string   `json:"from_name,omitempty"`
	Subject           string   `json:"subject"`
	BodyHTML          string   `json:"body_html"`
	CTAText           string   `json:"cta_text,omitempty"`
	CredentialID      string   `json:"credential_id,omitempty"`
}

// CredentialRequest is the request body for POST /credentials
type CredentialRequest struct {
	Provider    string `json:"provider"`
	FromAddress string `json:"from_address"`
	Secret      string `json:"secret"`
}

// ErrorResponse is the error response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleDispatch handles POST /api/v1/campaigns/{id}/dispatch. The run is
// synchronous; the response carries only aggregate counts, per-recipient
// detail is available from the logs endpoint.
func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	tenantID := TenantID(r.Context())
	id := chi.URLParam(r, "id")

	result, err := s.engine.Dispatch(r.Context(), tenantID, id)
	if err != nil {
		s.sendDispatchError(w, err)
		return
	}

	s.sendJSON(w, http.StatusOK, result)
}

// sendDispatchError maps engine precondition failures to structured codes.
func (s *Server) sendDispatchError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, dispatch.ErrCampaignNotFound):
		s.sendJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "not_found"})
	case errors.Is(err, dispatch.ErrNoRecipients):
		s.sendJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error(), Code: "no_recipients"})
	case errors.Is(err, dispatch.ErrNoCredential):
		s.sendJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error(), Code: "no_credential"})
	case errors.Is(err, dispatch.ErrDecryptionFailed):
		s.sendJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error(), Code: "decryption_failed"})
	case errors.Is(err, dispatch.ErrUnsupportedChannel):
		s.sendJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error(), Code: "unsupported_channel"})
	case errors.Is(err, transport.ErrUnsupportedProvider):
		s.sendJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error(), Code: "unsupported_provider"})
	default:
		s.logger.Error("dispatch failed", "error", err)
		s.sendError(w, http.StatusInternalServerError, "dispatch failed")
	}
}

// handleCampaignCreate handles POST /api/v1/campaigns
func (s *Server) handleCampaignCreate(w http.ResponseWriter, r *http.Request) {
	tenantID := TenantID(r.Context())

	var req CampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		s.sendError(w, http.StatusBadRequest, "name is required")
		return
	}

	campaign := &models.Campaign{
		TenantID:          tenantID,
		Name:              req.Name,
		Channel:           req.Channel,
		RecipientSource:   req.RecipientSource,
		RecipientList:     encodeList(req.RecipientList),
		SpreadsheetEmails: encodeList(req.SpreadsheetEmails),
		ManualRecipients:  req.ManualRecipients,
		FromName:          req.FromName,
		Subject:           req.Subject,
		BodyHTML:          req.BodyHTML,
		CTAText:           req.CTAText,
		CredentialID:      req.CredentialID,
	}

	if err := s.campaigns.Create(campaign); err != nil {
		s.logger.Error("failed to create campaign", "error", err)
		s.sendError(w, http.StatusInternalServerError, "failed to create campaign")
		return
	}

	s.sendJSON(w, http.StatusCreated, campaign)
}

// handleCampaignList handles GET /api/v1/campaigns
func (s *Server) handleCampaignList(w http.ResponseWriter, r *http.Request) {
	tenantID := TenantID(r.Context())

	filter := models.CampaignListFilter{
		Status: r.URL.Query().Get("status"),
		Limit:  queryInt(r, "limit", 50),
		Offset: queryInt(r, "offset", 0),
	}

	campaigns, err := s.campaigns.List(tenantID, filter)
	if err != nil {
		s.logger.Error("failed to list campaigns", "error", err)
		s.sendError(w, http.StatusInternalServerError, "failed to list campaigns")
		return
	}

	s.sendJSON(w, http.StatusOK, campaigns)
}

// handleCampaignGet handles GET /api/v1/campaigns/{id}
func (s *Server) handleCampaignGet(w http.ResponseWriter, r *http.Request) {
	tenantID := TenantID(r.Context())

	campaign, err := s.campaigns.GetByID(tenantID, chi.URLParam(r, "id"))
	if err != nil {
		s.logger.Error("failed to get campaign", "error", err)
		s.sendError(w, http.StatusInternalServerError, "failed to get campaign")
		return
	}
	if campaign == nil {
		s.sendError(w, http.StatusNotFound, "campaign not found")
		return
	}

	s.sendJSON(w, http.StatusOK, campaign)
}

// handleCampaignUpdate handles PUT /api/v1/campaigns/{id}. Sent campaigns
// are immutable.
func (s *Server) handleCampaignUpdate(w http.ResponseWriter, r *http.Request) {
	tenantID := TenantID(r.Context())

	campaign, err := s.campaigns.GetByID(tenantID, chi.URLParam(r, "id"))
	if err != nil {
		s.logger.Error("failed to get campaign", "error", err)
		s.sendError(w, http.StatusInternalServerError, "failed to get campaign")
		return
	}
	if campaign == nil {
		s.sendError(w, http.StatusNotFound, "campaign not found")
		return
	}
	if campaign.Status == models.CampaignStatusSent {
		s.sendError(w, http.StatusConflict, "campaign already sent")
		return
	}

	var req CampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		s.sendError(w, http.StatusBadRequest, "name is required")
		return
	}

	campaign.Name = req.Name
	if req.Channel != "" {
		campaign.Channel = req.Channel
	}
	campaign.RecipientSource = req.RecipientSource
	campaign.RecipientList = encodeList(req.RecipientList)
	campaign.SpreadsheetEmails = encodeList(req.SpreadsheetEmails)
	campaign.ManualRecipients = req.ManualRecipients
	campaign.FromName = req.FromName
	campaign.Subject = req.Subject
	campaign.BodyHTML = req.BodyHTML
	campaign.CTAText = req.CTAText
	campaign.CredentialID = req.CredentialID

	if err := s.campaigns.Update(campaign); err != nil {
		s.logger.Error("failed to update campaign", "error", err)
		s.sendError(w, http.StatusInternalServerError, "failed to update campaign")
		return
	}

	s.sendJSON(w, http.StatusOK, campaign)
}

// handleCampaignDelete handles DELETE /api/v1/campaigns/{id}
func (s *Server) handleCampaignDelete(w http.ResponseWriter, r *http.Request) {
	tenantID := TenantID(r.Context())

	if err := s.campaigns.Delete(tenantID, chi.URLParam(r, "id")); err != nil {
		s.logger.Error("failed to delete campaign", "error", err)
		s.sendError(w, http.StatusInternalServerError, "failed to delete campaign")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleLogs handles GET /api/v1/campaigns/{id}/logs
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	tenantID := TenantID(r.Context())

	filter := models.DeliveryLogFilter{
		CampaignID: chi.URLParam(r, "id"),
		Status:     r.URL.Query().Get("status"),
		Limit:      queryInt(r, "limit", 100),
		Offset:     queryInt(r, "offset", 0),
	}

	entries, err := s.logs.List(tenantID, filter)
	if err != nil {
		s.logger.Error("failed to list delivery logs", "error", err)
		s.sendError(w, http.StatusInternalServerError, "failed to list delivery logs")
		return
	}

	s.sendJSON(w, http.StatusOK, entries)
}

// handleStats handles GET /api/v1/campaigns/{id}/stats
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	tenantID := TenantID(r.Context())

	stats, err := s.logs.Stats(tenantID, chi.URLParam(r, "id"))
	if err != nil {
		s.logger.Error("failed to get delivery stats", "error", err)
		s.sendError(w, http.StatusInternalServerError, "failed to get delivery stats")
		return
	}

	s.sendJSON(w, http.StatusOK, stats)
}

// handleEngagement handles GET /api/v1/campaigns/{id}/engagement. Only
// routed when tracking is enabled.
func (s *Server) handleEngagement(w http.ResponseWriter, r *http.Request) {
	tenantID := TenantID(r.Context())
	id := chi.URLParam(r, "id")

	// Events are keyed by campaign only; confirm ownership first.
	campaign, err := s.campaigns.GetByID(tenantID, id)
	if err != nil {
		s.logger.Error("failed to get campaign", "error", err)
		s.sendError(w, http.StatusInternalServerError, "failed to get campaign")
		return
	}
	if campaign == nil {
		s.sendError(w, http.StatusNotFound, "campaign not found")
		return
	}

	events, err := s.tracker.Events(id)
	if err != nil {
		s.logger.Error("failed to load engagement events", "error", err)
		s.sendError(w, http.StatusInternalServerError, "failed to load engagement events")
		return
	}

	s.sendJSON(w, http.StatusOK, events)
}

// handleCredentialCreate handles POST /api/v1/credentials. The secret is
// encrypted before it touches the database and never echoed back.
func (s *Server) handleCredentialCreate(w http.ResponseWriter, r *http.Request) {
	tenantID := TenantID(r.Context())

	var req CredentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Provider == "" || req.FromAddress == "" || req.Secret == "" {
		s.sendError(w, http.StatusBadRequest, "provider, from_address and secret are required")
		return
	}
	if _, err := transport.Lookup(req.Provider); err != nil {
		s.sendJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error(), Code: "unsupported_provider"})
		return
	}
	if !recipients.ValidEmail(req.FromAddress) {
		s.sendError(w, http.StatusBadRequest, "from_address is not a valid email")
		return
	}

	encrypted, err := s.codec.Encrypt(req.Secret)
	if err != nil {
		s.logger.Error("failed to encrypt credential secret", "error", err)
		s.sendError(w, http.StatusInternalServerError, "failed to store credential")
		return
	}

	cred := &models.Credential{
		TenantID:        tenantID,
		Provider:        req.Provider,
		FromAddress:     req.FromAddress,
		EncryptedSecret: encrypted,
	}

	if err := s.credentials.Create(cred); err != nil {
		s.logger.Error("failed to create credential", "error", err)
		s.sendError(w, http.StatusInternalServerError, "failed to store credential")
		return
	}

	s.sendJSON(w, http.StatusCreated, cred)
}

// handleCredentialList handles GET /api/v1/credentials
func (s *Server) handleCredentialList(w http.ResponseWriter, r *http.Request) {
	tenantID := TenantID(r.Context())

	creds, err := s.credentials.List(tenantID)
	if err != nil {
		s.logger.Error("failed to list credentials", "error", err)
		s.sendError(w, http.StatusInternalServerError, "failed to list credentials")
		return
	}

	s.sendJSON(w, http.StatusOK, creds)
}

// handleCredentialStatus handles PATCH /api/v1/credentials/{id}/status
func (s *Server) handleCredentialStatus(w http.ResponseWriter, r *http.Request) {
	tenantID := TenantID(r.Context())

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Status != models.CredentialStatusActive && req.Status != models.CredentialStatusInactive {
		s.sendError(w, http.StatusBadRequest, "status must be active or inactive")
		return
	}

	if err := s.credentials.UpdateStatus(tenantID, chi.URLParam(r, "id"), req.Status); err != nil {
		s.logger.Error("failed to update credential status", "error", err)
		s.sendError(w, http.StatusInternalServerError, "failed to update credential")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleCredentialDelete handles DELETE /api/v1/credentials/{id}
func (s *Server) handleCredentialDelete(w http.ResponseWriter, r *http.Request) {
	tenantID := TenantID(r.Context())

	if err := s.credentials.Delete(tenantID, chi.URLParam(r, "id")); err != nil {
		s.logger.Error("failed to delete credential", "error", err)
		s.sendError(w, http.StatusInternalServerError, "failed to delete credential")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// transparentPixel is a 1x1 transparent PNG.
var transparentPixel = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0d, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x62, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

// handleTrackOpen handles GET /t/o/{token}.png
func (s *Server) handleTrackOpen(w http.ResponseWriter, r *http.Request) {
	if _, err := s.tracker.RecordOpen(chi.URLParam(r, "token")); err != nil {
		s.logger.Warn("failed to record open", "error", err)
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(transparentPixel)
}

// handleTrackClick handles GET /t/c/{token}
func (s *Server) handleTrackClick(w http.ResponseWriter, r *http.Request) {
	token, err := s.tracker.RecordClick(chi.URLParam(r, "token"))
	if err != nil {
		s.logger.Warn("failed to record click", "error", err)
	}
	if token == nil {
		http.NotFound(w, r)
		return
	}

	http.Redirect(w, r, token.TargetURL, http.StatusFound)
}

func (s *Server) sendJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) sendError(w http.ResponseWriter, status int, message string) {
	s.sendJSON(w, status, ErrorResponse{Error: message})
}

func encodeList(list []string) string {
	if len(list) == 0 {
		return ""
	}
	data, err := json.Marshal(list)
	if err != nil {
		return ""
	}
	return string(data)
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}
