package handlers

import (
	"net/http"

	"github.com/wefixico/whatsapp-crm-bridge/internal/messages"
	"github.com/wefixico/whatsapp-crm-bridge/pkg/logging"
)

// ConversationsHandler serves the grouped conversation view for the
// dashboard.
type ConversationsHandler struct {
	store  *messages.Store
	logger *logging.Logger
}

// NewConversationsHandler creates the handler.
func NewConversationsHandler(store *messages.Store, logger *logging.Logger) *ConversationsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &ConversationsHandler{store: store, logger: logger.Component("conversations")}
}

// Handle processes GET /api/conversations.
func (h *ConversationsHandler) Handle(w http.ResponseWriter, r *http.Request) {
	convs, err := h.store.Conversations(r.Context(), messages.DefaultListLimit)
	if err != nil {
		h.logger.Error("failed to load conversations", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load conversations"})
		return
	}
	if convs == nil {
		convs = []messages.ConversationSummary{}
	}
	writeJSON(w, http.StatusOK, convs)
}
