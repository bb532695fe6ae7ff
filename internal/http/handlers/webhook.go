// Package handlers holds the HTTP endpoints of the bridge: the WPPConnect
// webhook, the outbound message store and the dashboard read APIs.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/wefixico/whatsapp-crm-bridge/internal/booking"
	"github.com/wefixico/whatsapp-crm-bridge/internal/closure"
	"github.com/wefixico/whatsapp-crm-bridge/internal/messages"
	"github.com/wefixico/whatsapp-crm-bridge/internal/observability/metrics"
	"github.com/wefixico/whatsapp-crm-bridge/internal/staging"
	"github.com/wefixico/whatsapp-crm-bridge/pkg/logging"
)

// WebhookConfig wires the inbound webhook handler.
type WebhookConfig struct {
	Messages   *messages.Store
	Staging    *staging.Store
	Booking    *booking.Service
	Closure    *closure.Evaluator
	Metrics    *metrics.BridgeMetrics
	Logger     *logging.Logger
	Secret     string
	BrandID    string
	Session    string
	Automation bool
}

// WebhookHandler receives WhatsApp messages pushed by WPPConnect.
type WebhookHandler struct {
	cfg    WebhookConfig
	logger *logging.Logger
	// dispatch runs the automation pipeline; swapped for a synchronous
	// version in tests.
	dispatch func(fn func())
}

// NewWebhookHandler creates the webhook handler.
func NewWebhookHandler(cfg WebhookConfig) *WebhookHandler {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &WebhookHandler{
		cfg:      cfg,
		logger:   logger.Component("webhook"),
		dispatch: func(fn func()) { go fn() },
	}
}

type webhookRequest struct {
	Session string `json:"session"`
	From    string `json:"from"`
	Body    string `json:"body"`
	Type    string `json:"type"`
}

// Handle processes POST /whatsapp/webhook.
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() {
		h.cfg.Metrics.ObserveWebhookLatency("webhook", time.Since(start).Seconds())
	}()

	if h.cfg.Secret != "" && r.Header.Get("x-webhook-secret") != h.cfg.Secret {
		h.cfg.Metrics.ObserveInbound("unauthorized")
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	var req webhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.cfg.Metrics.ObserveInbound("bad_request")
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}

	session := req.Session
	if session == "" {
		session = h.cfg.Session
	}
	phone := messages.FromWhatsAppPhone(req.From)

	h.logger.Info("received whatsapp message",
		"from", phone,
		"type", req.Type,
		"length", len(req.Body),
	)

	ctx := r.Context()
	if _, err := h.cfg.Messages.InsertInbound(ctx, h.cfg.BrandID, session, req.From, req.Body, req.Type); err != nil {
		h.logger.Error("failed to store inbound message", "error", err)
		h.cfg.Metrics.ObserveInbound("error")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to store message"})
		return
	}

	if err := h.cfg.Staging.Append(ctx, h.cfg.BrandID, session, phone, staging.Message{
		Direction: "inbound",
		Body:      req.Body,
		Type:      req.Type,
	}); err != nil {
		// Staging is best effort; the Postgres row is the source of truth.
		h.logger.Warn("failed to stage inbound message", "error", err)
	}

	automation := "disabled"
	if h.cfg.Automation && h.cfg.Booking != nil {
		automation = "enabled"
		from := req.From
		h.dispatch(func() {
			bctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if _, err := h.cfg.Booking.ProcessMessage(bctx, booking.Inbound{
				BrandID: h.cfg.BrandID,
				Session: session,
				Phone:   from,
				Body:    req.Body,
			}); err != nil {
				h.logger.Error("booking pipeline failed", "error", err)
			}
			if _, err := h.cfg.Closure.TryClose(bctx, h.cfg.BrandID, session, phone); err != nil {
				h.logger.Warn("closure check failed", "error", err)
			}
		})
	}

	h.cfg.Metrics.ObserveInbound("stored")
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":         true,
		"message":    "Message stored in database",
		"automation": automation,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
