package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/wefixico/whatsapp-crm-bridge/internal/messages"
	"github.com/wefixico/whatsapp-crm-bridge/internal/observability/metrics"
	"github.com/wefixico/whatsapp-crm-bridge/internal/staging"
	"github.com/wefixico/whatsapp-crm-bridge/pkg/logging"
)

// OutboundConfig wires the outgoing-message store handler.
type OutboundConfig struct {
	Messages *messages.Store
	Staging  *staging.Store
	Metrics  *metrics.BridgeMetrics
	Logger   *logging.Logger
	BrandID  string
	Session  string
}

// OutboundHandler records messages sent to customers from other systems so
// the dashboard sees both directions of a thread.
type OutboundHandler struct {
	cfg    OutboundConfig
	logger *logging.Logger
}

// NewOutboundHandler creates the handler.
func NewOutboundHandler(cfg OutboundConfig) *OutboundHandler {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &OutboundHandler{cfg: cfg, logger: logger.Component("outbound")}
}

type outboundRequest struct {
	Session string `json:"session"`
	To      string `json:"to"`
	Body    string `json:"body"`
	Type    string `json:"type"`
}

// Handle processes POST /api/store-outgoing-message.
func (h *OutboundHandler) Handle(w http.ResponseWriter, r *http.Request) {
	var req outboundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	if req.To == "" || req.Body == "" {
		h.cfg.Metrics.ObserveOutbound("bad_request")
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "to and body are required"})
		return
	}

	session := req.Session
	if session == "" {
		session = h.cfg.Session
	}

	ctx := r.Context()
	id, err := h.cfg.Messages.InsertOutbound(ctx, h.cfg.BrandID, session, req.To, req.Body, req.Type)
	if err != nil {
		h.logger.Error("failed to store outgoing message", "error", err)
		h.cfg.Metrics.ObserveOutbound("error")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to store message"})
		return
	}

	phone := messages.FromWhatsAppPhone(req.To)
	if err := h.cfg.Staging.Append(ctx, h.cfg.BrandID, session, phone, staging.Message{
		Direction: "outbound",
		Body:      req.Body,
		Type:      req.Type,
	}); err != nil {
		h.logger.Warn("failed to stage outgoing message", "error", err)
	}

	h.cfg.Metrics.ObserveOutbound("stored")
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Outgoing message stored",
		"id":      id,
	})
}
