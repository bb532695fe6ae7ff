package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wefixico/whatsapp-crm-bridge/internal/api/router"
	"github.com/wefixico/whatsapp-crm-bridge/internal/archive"
	"github.com/wefixico/whatsapp-crm-bridge/internal/booking"
	"github.com/wefixico/whatsapp-crm-bridge/internal/closure"
	"github.com/wefixico/whatsapp-crm-bridge/internal/config"
	"github.com/wefixico/whatsapp-crm-bridge/internal/crm"
	"github.com/wefixico/whatsapp-crm-bridge/internal/delivery"
	"github.com/wefixico/whatsapp-crm-bridge/internal/http/handlers"
	"github.com/wefixico/whatsapp-crm-bridge/internal/messages"
	"github.com/wefixico/whatsapp-crm-bridge/internal/observability/metrics"
	"github.com/wefixico/whatsapp-crm-bridge/internal/staging"
	"github.com/wefixico/whatsapp-crm-bridge/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Postgres is the message log; the service still boots without it.
	var db *sql.DB
	if cfg.DatabaseURL != "" {
		var err error
		db, err = sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to open postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		db.SetMaxOpenConns(10)
		db.SetConnMaxIdleTime(5 * time.Minute)
		if err := db.PingContext(ctx); err != nil {
			logger.Warn("postgres unreachable at startup", "error", err)
		}
	} else {
		logger.Warn("DATABASE_URL not set, message persistence disabled")
	}

	// The closure archive writes through pgx.
	var pgxPool *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		var err error
		pgxPool, err = pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to open pgx pool", "error", err)
			os.Exit(1)
		}
		defer pgxPool.Close()
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		opts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable at startup", "error", err)
		}
	}

	reg := prometheus.NewRegistry()
	bridgeMetrics := metrics.NewBridgeMetrics(reg)

	messageStore := messages.NewStore(db)
	stagingStore := staging.NewStore(redisClient)

	crmClient := crm.NewClient(crm.ClientConfig{
		BaseURL:    cfg.CRMBaseURL,
		APIKey:     cfg.CRMAPIKey,
		LocationID: cfg.CRMLocationID,
		Logger:     logger,
		OnFallback: bridgeMetrics.ObserveCRMFallback,
	})
	if !crmClient.Configured() {
		logger.Warn("crm credentials missing, contacts will be stored locally")
	}

	wppClient := delivery.NewWPPClient(cfg.WPPBaseURL, cfg.SessionName, cfg.WPPToken, logger)

	var exporter *archive.Exporter
	if cfg.ArchiveBucket != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			logger.Warn("aws config load failed, s3 export disabled", "error", err)
		} else {
			exporter = archive.NewExporter(s3.NewFromConfig(awsCfg), cfg.ArchiveBucket, logger)
		}
	}

	var closureRepo *closure.Repository
	if pgxPool != nil {
		closureRepo = closure.NewRepository(pgxPool)
	}
	evaluator := closure.NewEvaluator(closure.EvaluatorConfig{
		Source:    stagingStore,
		Repo:      closureRepo,
		Exporter:  exporter,
		Threshold: cfg.ClosureThreshold,
		Logger:    logger,
		OnClose:   bridgeMetrics.ObserveClosure,
	})

	bookingSvc := booking.NewService(booking.ServiceConfig{
		CRM:       crmClient,
		Sender:    wppClient,
		Messages:  messageStore,
		Staging:   stagingStore,
		BasePrice: cfg.QuoteBasePrice,
		Logger:    logger,
	})

	handler := router.New(&router.Config{
		Logger: logger,
		Webhook: handlers.NewWebhookHandler(handlers.WebhookConfig{
			Messages:   messageStore,
			Staging:    stagingStore,
			Booking:    bookingSvc,
			Closure:    evaluator,
			Metrics:    bridgeMetrics,
			Logger:     logger,
			Secret:     cfg.WebhookSecret,
			BrandID:    cfg.BrandID,
			Session:    cfg.SessionName,
			Automation: cfg.AutomationEnabled,
		}),
		Outbound: handlers.NewOutboundHandler(handlers.OutboundConfig{
			Messages: messageStore,
			Staging:  stagingStore,
			Metrics:  bridgeMetrics,
			Logger:   logger,
			BrandID:  cfg.BrandID,
			Session:  cfg.SessionName,
		}),
		Conversations:     handlers.NewConversationsHandler(messageStore, logger),
		Health:            handlers.NewHealthHandler(db, redisClient),
		MetricsHandler:    promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		AdminAuthSecret:   cfg.AdminJWTSecret,
		RateLimitMaxCalls: cfg.RateLimitMaxCalls,
		RateLimitWindow:   cfg.RateLimitWindow,
	})

	// Background sweep closes idle threads even when no webhook fires.
	go func() {
		ticker := time.NewTicker(cfg.ClosureSweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				closed, err := evaluator.Sweep(ctx)
				if err != nil {
					logger.Warn("closure sweep failed", "error", err)
				} else if closed > 0 {
					logger.Info("closure sweep finished", "closed", closed)
				}
			}
		}
	}()

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Port, "env", cfg.Env,
			"automation", cfg.AutomationEnabled)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}
