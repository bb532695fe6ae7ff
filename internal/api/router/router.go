// Package router assembles the chi router for the bridge API.
package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wefixico/whatsapp-crm-bridge/internal/http/handlers"
	httpmiddleware "github.com/wefixico/whatsapp-crm-bridge/internal/http/middleware"
	"github.com/wefixico/whatsapp-crm-bridge/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger        *logging.Logger
	Webhook       *handlers.WebhookHandler
	Outbound      *handlers.OutboundHandler
	Conversations *handlers.ConversationsHandler
	Health        *handlers.HealthHandler

	MetricsHandler http.Handler

	AdminAuthSecret   string
	RateLimitMaxCalls int
	RateLimitWindow   time.Duration
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}
	if cfg.RateLimitMaxCalls > 0 && cfg.RateLimitWindow > 0 {
		r.Use(httpmiddleware.RateLimit(cfg.RateLimitMaxCalls, cfg.RateLimitWindow))
	}

	// Public endpoints (webhook, health, metrics).
	r.Group(func(public chi.Router) {
		if cfg.Health != nil {
			public.Get("/health", cfg.Health.Handle)
		}
		if cfg.Webhook != nil {
			public.Post("/whatsapp/webhook", cfg.Webhook.Handle)
		}
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	// Dashboard endpoints, behind admin JWT when a secret is configured.
	// An empty secret leaves them open rather than locking everyone out.
	r.Route("/api", func(api chi.Router) {
		if cfg.AdminAuthSecret != "" {
			api.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
		}
		if cfg.Outbound != nil {
			api.Post("/store-outgoing-message", cfg.Outbound.Handle)
		}
		if cfg.Conversations != nil {
			api.Get("/conversations", cfg.Conversations.Handle)
		}
	})

	return r
}
