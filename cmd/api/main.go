package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/aiagentwithdhruv/ai-sales-coach-sub004/cmd/mainconfig"
	"github.com/aiagentwithdhruv/ai-sales-coach-sub004/internal/api/router"
	"github.com/aiagentwithdhruv/ai-sales-coach-sub004/internal/campaign"
	appconfig "github.com/aiagentwithdhruv/ai-sales-coach-sub004/internal/config"
	"github.com/aiagentwithdhruv/ai-sales-coach-sub004/internal/conversation"
	"github.com/aiagentwithdhruv/ai-sales-coach-sub004/internal/crm"
	"github.com/aiagentwithdhruv/ai-sales-coach-sub004/internal/http/handlers"
	"github.com/aiagentwithdhruv/ai-sales-coach-sub004/internal/observability/metrics"
	"github.com/aiagentwithdhruv/ai-sales-coach-sub004/internal/recording"
	"github.com/aiagentwithdhruv/ai-sales-coach-sub004/internal/telephony"
	"github.com/aiagentwithdhruv/ai-sales-coach-sub004/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting ai-sales-coach calling engine",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Session and campaign progress state. Redis keeps calls alive across
	// instances; the in-memory fallback is for single-node development.
	var (
		sessions conversation.SessionStore
		progress campaign.ProgressStore
	)
	if rdb := connectRedis(ctx, cfg, logger); rdb != nil {
		sessions = conversation.NewRedisSessionStore(rdb)
		progress = campaign.NewRedisProgressStore(rdb)
	} else {
		logger.Warn("redis not configured, using in-memory session state")
		sessions = conversation.NewMemorySessionStore()
		progress = campaign.NewMemoryProgressStore()
	}

	// CRM persistence.
	var (
		agents    crm.AgentSource
		campaigns crm.CampaignSource
		calls     crm.CallRecords
	)
	if pool := connectPostgresPool(ctx, cfg.DatabaseURL, logger); pool != nil {
		defer pool.Close()
		store := crm.NewPostgresStore(pool)
		agents, campaigns, calls = store, store, store
	} else {
		logger.Warn("database not configured, using in-memory CRM store")
		store := crm.NewMemoryStore()
		agents, campaigns, calls = store, store, store
	}

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}
	s3Client := s3.NewFromConfig(awsCfg)
	bedrockClient := bedrockruntime.NewFromConfig(awsCfg)

	llmClient := conversation.NewBedrockLLMClient(bedrockClient)
	orchestrator := conversation.NewOrchestrator(conversation.OrchestratorConfig{
		Store:         sessions,
		TurnProcessor: conversation.NewTurnProcessor(llmClient, cfg.BedrockModelID),
		TurnTimeout:   cfg.TurnTimeout,
		Logger:        logger,
	})
	analyzer := conversation.NewTranscriptAnalyzer(llmClient, cfg.BedrockModelID)

	dialer := telephony.NewTwilioDialer(telephony.DialerConfig{
		AccountSID: cfg.TwilioAccountSID,
		AuthToken:  cfg.TwilioAuthToken,
		FromNumber: cfg.TwilioFromNumber,
		BaseURL:    cfg.PublicBaseURL,
		Logger:     logger,
	})

	metricsHandler, callMetrics := setupCallMetrics()

	executor := campaign.NewExecutor(campaign.ExecutorConfig{
		Progress:  progress,
		Campaigns: campaigns,
		Agents:    agents,
		Calls:     calls,
		Dialer:    dialer,
		Metrics:   callMetrics,
		Logger:    logger,
	})

	chainClient := campaign.NewChainClient(campaign.ChainClientConfig{
		BaseURL: cfg.PublicBaseURL,
		Secret:  cfg.CampaignChainSecret,
		Logger:  logger,
	})

	archiver := recording.NewArchiver(recording.ArchiverConfig{
		S3:         s3Client,
		Presigner:  s3.NewPresignClient(s3Client),
		Bucket:     cfg.RecordingsBucket,
		AccountSID: cfg.TwilioAccountSID,
		AuthToken:  cfg.TwilioAuthToken,
		URLTTL:     cfg.RecordingURLTTL,
		Calls:      calls,
		Logger:     logger,
	})

	webhooks := handlers.NewTwilioWebhookHandler(handlers.TwilioWebhookConfig{
		Engine:   orchestrator,
		Agents:   agents,
		Calls:    calls,
		Chain:    chainClient,
		Archiver: archiver,
		Analyzer: analyzer,
		Metrics:  callMetrics,
		BaseURL:  cfg.PublicBaseURL,
		Logger:   logger,
	})
	campaignHandler := handlers.NewCampaignHandler(handlers.CampaignHandlerConfig{
		Runner: executor,
		Logger: logger,
	})
	callHandler := handlers.NewCallHandler(handlers.CallHandlerConfig{
		Agents: agents,
		Calls:  calls,
		Dialer: dialer,
		Logger: logger,
	})

	r := router.New(&router.Config{
		Logger:         logger,
		Webhooks:       webhooks,
		Campaigns:      campaignHandler,
		Calls:          callHandler,
		AuthSecret:     cfg.APIJWTSecret,
		ChainSecret:    cfg.CampaignChainSecret,
		MetricsHandler: metricsHandler,
	})

	go sweepSessions(ctx, orchestrator, cfg, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

// connectRedis returns nil when Redis is not configured or unreachable.
func connectRedis(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}
	opts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Error("redis unreachable", "addr", cfg.RedisAddr, "error", err)
		_ = rdb.Close()
		return nil
	}
	logger.Info("redis connected", "addr", cfg.RedisAddr)
	return rdb
}

// connectPostgresPool returns nil when no database URL is configured.
func connectPostgresPool(ctx context.Context, databaseURL string, logger *logging.Logger) *pgxpool.Pool {
	if databaseURL == "" {
		return nil
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		logger.Error("postgres pool create failed", "error", err)
		return nil
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		logger.Error("postgres unreachable", "error", err)
		pool.Close()
		return nil
	}
	logger.Info("postgres connected")
	return pool
}

func setupCallMetrics() (http.Handler, *metrics.CallMetrics) {
	registry := prometheus.NewRegistry()
	callMetrics := metrics.NewCallMetrics(registry)
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), callMetrics
}

// sweepSessions reaps sessions whose status webhook never arrived, e.g.
// when an instance died mid-call.
func sweepSessions(ctx context.Context, orch *conversation.Orchestrator, cfg *appconfig.Config, logger *logging.Logger) {
	interval := cfg.SessionSweepInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reaped, err := orch.SweepExpired(ctx, cfg.SessionGracePeriod)
			if err != nil {
				logger.Error("session sweep failed", "error", err)
				continue
			}
			if reaped > 0 {
				logger.Info("reaped expired call sessions", "count", reaped)
			}
		}
	}
}
