package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"hermes/internal/adapters/config"
	"hermes/internal/adapters/errors/noop"
	"hermes/internal/adapters/errors/sentry"
	"hermes/internal/adapters/exchanges"
	"hermes/internal/adapters/exchanges/binance"
	"hermes/internal/adapters/exchanges/bybit"
	"hermes/internal/adapters/exchanges/ratelimit"
	"hermes/internal/adapters/kafka"
	"hermes/internal/adapters/postgres"
	"hermes/internal/adapters/redis"
	"hermes/internal/consumers"
	"hermes/internal/domain/credential"
	"hermes/internal/events"
	"hermes/internal/metrics"
	pgrepo "hermes/internal/repository/postgres"
	"hermes/internal/services/credentials"
	"hermes/internal/services/dispatch"
	"hermes/internal/services/gate"
	"hermes/internal/services/ledger"
	"hermes/internal/services/pipeline"
	"hermes/internal/services/risk"
	"hermes/internal/services/sizing"
	"hermes/internal/workers"
	sentimentworker "hermes/internal/workers/sentiment"
	"hermes/internal/workers/trading"
	"hermes/pkg/crypto"
	"hermes/pkg/errors"
	"hermes/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	defer logger.Sync()

	log := logger.Get()
	log.Infof("Starting %s in %s mode", cfg.App.Name, cfg.App.Env)

	errorTracker := initErrorTracker(cfg, log)
	logger.SetErrorTracker(errorTracker)

	// Storage
	pg, err := postgres.NewClient(cfg.Postgres)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer pg.Close()

	rdb, err := redis.NewClient(cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer rdb.Close()

	producer := kafka.NewProducer(kafka.ProducerConfig{Brokers: cfg.Kafka.Brokers})
	defer producer.Close()

	encryptor, err := crypto.NewEncryptor(cfg.Crypto.EncryptionKey)
	if err != nil {
		log.Fatalf("Failed to init encryptor: %v", err)
	}

	// Repositories
	sentimentRepo := pgrepo.NewSentimentRepository(pg.DB())
	profileRepo := pgrepo.NewRiskProfileRepository(pg.DB())
	credentialRepo := pgrepo.NewCredentialRepository(pg.DB())
	signalRepo := pgrepo.NewSignalRepository(pg.DB())
	operationRepo := pgrepo.NewOperationRepository(pg.DB())

	// Exchange adapters
	adapters := map[credential.Exchange]exchanges.Exchange{
		credential.ExchangeBybit:   bybit.NewClient(bybit.Config{RecvWindow: cfg.Dispatch.RecvWindow}),
		credential.ExchangeBinance: binance.NewClient(binance.Config{RecvWindow: cfg.Dispatch.RecvWindow}),
	}

	// Services
	gateSvc := gate.NewService(
		[]gate.Provider{gate.NewAlternativeMeProvider(cfg.Gate.ProviderTimeout)},
		sentimentRepo,
		cfg.Gate.StalenessThreshold,
		log.With("component", "gate"),
	)

	riskSvc := risk.NewEvaluator(
		profileRepo,
		cfg.Risk.NotionalBalanceFraction,
		log.With("component", "risk"),
	)

	resolver := credentials.NewResolver(
		credentialRepo,
		encryptor,
		sharedKeys(cfg.SharedKeys),
		log.With("component", "credentials"),
	)

	sizer := sizing.NewSizer(
		cfg.Sizing.StopLossPct,
		cfg.Sizing.TakeProfitPct,
		log.With("component", "sizing"),
	)

	dispatcher := dispatch.NewDispatcher(
		adapters,
		credentialRepo,
		ratelimit.NewRegistry(),
		dispatch.Config{
			PerExchangeParallel: cfg.Dispatch.PerExchangeParallel,
			MaxRetries:          cfg.Dispatch.MaxRetries,
			ProbeOnFirstUse:     cfg.Dispatch.ProbeOnFirstUse,
		},
		log.With("component", "dispatch"),
	)

	ledgerSvc := ledger.NewService(
		operationRepo,
		profileRepo,
		dispatcher,
		log.With("component", "ledger"),
	)

	publisher := events.NewPublisher(producer, log.With("component", "events"))

	pipe := pipeline.NewPipeline(
		signalRepo,
		profileRepo,
		operationRepo,
		gateSvc,
		riskSvc,
		resolver,
		sizer,
		dispatcher,
		ledgerSvc,
		publisher,
		rdb,
		credential.Exchange(cfg.Dispatch.DefaultExchange),
		log.With("component", "pipeline"),
	)

	// Workers
	scheduler := workers.NewScheduler()
	scheduler.RegisterWorker(sentimentworker.NewFearGreedRefresher(gateSvc, cfg.Gate.RefreshInterval, true))
	scheduler.RegisterWorker(trading.NewPnLReconciler(ledgerSvc, cfg.Ledger.ReconcileInterval, true))
	scheduler.RegisterWorker(trading.NewCredentialProber(credentialRepo, dispatcher, cfg.Ledger.ProbeInterval, true))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := scheduler.Start(ctx); err != nil {
		log.Fatalf("Failed to start workers: %v", err)
	}

	// Inbound signals
	signalConsumer := consumers.NewSignalConsumer(
		kafka.NewConsumer(kafka.ConsumerConfig{
			Brokers: cfg.Kafka.Brokers,
			GroupID: cfg.Kafka.GroupID,
			Topic:   kafka.TopicSignalsInbound,
		}),
		pipe,
		log.With("component", "signal_consumer"),
	)
	go func() {
		if err := signalConsumer.Start(ctx); err != nil {
			log.Errorf("Signal consumer stopped: %v", err)
		}
	}()

	startMetricsServer(cfg.App.MetricsAddr, log)

	log.Info("System initialized successfully")

	waitForShutdown(ctx, cancel, scheduler, errorTracker, log)
}

// initErrorTracker initializes error tracking (Sentry or no-op)
func initErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		log.Info("Error tracking disabled")
		return noop.New()
	}

	tracker, err := sentry.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment)
	if err != nil {
		log.Warnf("Failed to initialize Sentry: %v", err)
		return noop.New()
	}

	log.Info("Error tracking initialized (Sentry)")
	return tracker
}

// sharedKeys maps configured fallback key pairs per exchange, skipping
// exchanges with no keys configured.
func sharedKeys(cfg config.SharedCredentialsConfig) map[credential.Exchange]credentials.SharedKeys {
	keys := make(map[credential.Exchange]credentials.SharedKeys)
	if cfg.BybitAPIKey != "" {
		keys[credential.ExchangeBybit] = credentials.SharedKeys{
			APIKey:    cfg.BybitAPIKey,
			APISecret: cfg.BybitSecret,
		}
	}
	if cfg.BinanceAPIKey != "" {
		keys[credential.ExchangeBinance] = credentials.SharedKeys{
			APIKey:    cfg.BinanceAPIKey,
			APISecret: cfg.BinanceSecret,
		}
	}
	return keys
}

func startMetricsServer(addr string, log *logger.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	go func() {
		log.Infow("Metrics server listening", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
			log.Errorf("Metrics server failed: %v", err)
		}
	}()
}

// waitForShutdown blocks on SIGINT/SIGTERM and performs graceful shutdown
func waitForShutdown(ctx context.Context, cancel context.CancelFunc, scheduler *workers.Scheduler, errorTracker errors.Tracker, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	log.Info("Shutting down...")

	cancel()

	if err := scheduler.Stop(); err != nil {
		log.Warnf("Worker shutdown: %v", err)
	}

	if errorTracker != nil {
		if err := errorTracker.Flush(context.Background()); err != nil {
			log.Warnf("Failed to flush error tracker: %v", err)
		}
	}

	log.Info("Shutdown complete")
}
