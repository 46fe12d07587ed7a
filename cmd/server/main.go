package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"coachpay/internal/app"
	"coachpay/internal/clock"
	"coachpay/internal/config"
	"coachpay/internal/events"
	"coachpay/internal/handler"
	"coachpay/internal/metrics"
	"coachpay/internal/processor"
	internalRedis "coachpay/internal/redis"
	"coachpay/internal/repository/postgres"
	"coachpay/internal/service"
	"coachpay/migrations"
)

// paymentProcessor is satisfied by both the Stripe adapter and the in-memory mock.
type paymentProcessor interface {
	service.CaptureGateway
	service.TransferGateway
	service.AccountGateway
	service.WebhookVerifier
}

// server bundles what main has to shut down.
type server struct {
	http      *http.Server
	scheduler *app.Scheduler
	audit     *service.AuditService
	publisher *events.AnomalyPublisher
}

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	log := app.NewLogger(cfg.Log)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize New Relic FIRST (before database so we can instrument DB).
	var nrApp *newrelic.Application
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			log.WithError(err).Warn("failed to initialize New Relic")
		} else {
			log.WithField("app", cfg.NewRelic.AppName).Info("New Relic enabled (with DB instrumentation)")
		}
	}

	// Initialize database with New Relic instrumentation.
	db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	defer db.Close()
	log.Info("connected to PostgreSQL")

	if cfg.Database.MigrationsAutoApply {
		if err := migrations.Apply(db); err != nil {
			log.WithError(err).Fatal("failed to apply migrations")
		}
		log.Info("migrations applied")
	}

	// Initialize Redis with New Relic instrumentation.
	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info("connected to Redis")

	// Wire dependencies.
	srv, err := wireServer(db, redisClient, nrApp, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to wire server")
	}

	// Start server in goroutine.
	go func() {
		log.WithField("port", cfg.Server.Port).Info("starting server")
		if err := srv.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server error")
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := srv.http.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server forced to shutdown")
	}
	if err := srv.scheduler.Stop(shutdownCtx); err != nil {
		log.WithError(err).Warn("settlement sweep still running at shutdown")
	}
	if err := srv.audit.Close(shutdownCtx); err != nil {
		log.WithError(err).Warn("audit queue not drained")
	}
	if srv.publisher != nil {
		if err := srv.publisher.Close(); err != nil {
			log.WithError(err).Warn("failed to close audit publisher")
		}
	}
	if nrApp != nil {
		nrApp.Shutdown(5 * time.Second)
	}

	log.Info("server exited")
}

// wireServer wires all dependencies, starts the sweep scheduler and returns the HTTP server.
func wireServer(db *sql.DB, redisClient *redis.Client, nrApp *newrelic.Application, cfg *config.Config, log *logrus.Logger) (*server, error) {
	clk := clock.NewSystem()

	// Metrics.
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Initialize Redis stores.
	lockStore := internalRedis.NewLockStore(redisClient)
	cacheStore := internalRedis.NewCacheStore(redisClient)

	// Initialize repositories.
	orderRepo := postgres.NewOrderRepository(db)
	attemptRepo := postgres.NewTransferAttemptRepository(db)
	eventRepo := postgres.NewWebhookEventRepository(db)
	anomalyRepo := postgres.NewAnomalyRepository(db)
	accountRepo := postgres.NewProviderAccountRepository(db)
	txManager := postgres.NewTxManager(db)

	// Payment processor.
	var psp paymentProcessor
	if cfg.Stripe.SecretKey != "" {
		psp = processor.NewStripe(processor.Config{
			SecretKey:     cfg.Stripe.SecretKey,
			WebhookSecret: cfg.Stripe.WebhookSecret,
			SuccessURL:    cfg.Stripe.SuccessURL,
			CancelURL:     cfg.Stripe.CancelURL,
			RefreshURL:    cfg.Stripe.RefreshURL,
			ReturnURL:     cfg.Stripe.ReturnURL,
			RatePerSecond: cfg.Stripe.RatePerSecond,
			BackendURL:    cfg.Stripe.BackendURL,
		})
		log.Info("using Stripe processor")
	} else {
		psp = processor.NewMock(cfg.Server.PublicBaseURL, cfg.Stripe.WebhookSecret)
		log.Warn("STRIPE_SECRET_KEY not set, using in-memory processor")
	}

	// Audit sink, with Kafka fan-out when brokers are configured.
	var (
		publisher *events.AnomalyPublisher
		fanout    service.AnomalyPublisher
	)
	kafkaClient := events.NewClient(cfg.Kafka.Brokers)
	if kafkaClient.Enabled() {
		p, err := events.NewAnomalyPublisher(kafkaClient, cfg.Kafka.AuditTopic)
		if err != nil {
			return nil, err
		}
		publisher, fanout = p, p
		log.WithField("topic", cfg.Kafka.AuditTopic).Info("publishing anomalies to Kafka")
	}
	auditService := service.NewAuditService(anomalyRepo, fanout, m, clk, log, cfg.Audit.QueueSize)

	// Initialize services.
	settlementCfg := service.SettlementConfig{
		MaxAttempts:      cfg.Settlement.MaxAttempts,
		ProcessorTimeout: cfg.Settlement.ProcessorTimeout,
		ClaimLease:       cfg.Settlement.ClaimLease,
		SweepBatch:       cfg.Settlement.SweepBatch,
	}
	notificationService := service.NewNotificationService(log)
	providerService := service.NewProviderService(accountRepo, psp, cacheStore, clk, log)
	settlementService := service.NewSettlementService(orderRepo, attemptRepo, psp, auditService, notificationService, m, clk, log, settlementCfg)
	triggerService := service.NewTriggerService(orderRepo, settlementService, m, clk, log, settlementCfg)
	checkoutService := service.NewCheckoutService(orderRepo, txManager, psp, providerService, auditService, notificationService, cfg.Fees, cfg.Settlement.ProcessorTimeout, clk, log)
	webhookService := service.NewWebhookService(psp, orderRepo, eventRepo, txManager, providerService, auditService, notificationService, m, clk, log)
	receiptService := service.NewReceiptService(orderRepo, clk)

	// Initialize handlers.
	orderHandler := handler.NewOrderHandler(checkoutService, receiptService, triggerService)
	feeHandler := handler.NewFeeHandler(checkoutService)
	providerHandler := handler.NewProviderHandler(providerService)
	webhookHandler := handler.NewWebhookHandler(webhookService)
	opsHandler := handler.NewOpsHandler(auditService, triggerService)

	// Create router.
	router := app.NewRouter(app.RouterDeps{
		OrderHandler:    orderHandler,
		FeeHandler:      feeHandler,
		ProviderHandler: providerHandler,
		WebhookHandler:  webhookHandler,
		OpsHandler:      opsHandler,
		Logger:          log,
		Metrics:         m,
		Gatherer:        reg,
		RedisClient:     redisClient,
		NewRelicApp:     nrApp,
	})

	// Settlement sweep.
	scheduler := app.NewScheduler(triggerService, lockStore, cfg.Settlement.SweepLockTTL, nrApp, log)
	if err := scheduler.Start(cfg.Settlement.SweepSchedule); err != nil {
		return nil, err
	}

	// Create HTTP server.
	return &server{
		http: &http.Server{
			Addr:         ":" + cfg.Server.Port,
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
		scheduler: scheduler,
		audit:     auditService,
		publisher: publisher,
	}, nil
}
