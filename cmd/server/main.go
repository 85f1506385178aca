package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"govdociq/internal/adapters"
	"govdociq/internal/decision"
	decisionmetrics "govdociq/internal/decision/metrics"
	"govdociq/internal/document"
	documentmetrics "govdociq/internal/document/metrics"
	"govdociq/internal/document/store/memory"
	"govdociq/internal/document/store/postgres"
	"govdociq/internal/events"
	"govdociq/internal/notify"
	notifymetrics "govdociq/internal/notify/metrics"
	"govdociq/internal/offline"
	"govdociq/internal/pipeline"
	pipelinemetrics "govdociq/internal/pipeline/metrics"
	"govdociq/internal/pipeline/modules"
	"govdociq/internal/platform/config"
	"govdociq/internal/platform/httpserver"
	"govdociq/internal/platform/logger"
	httptransport "govdociq/internal/transport/http"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	log := logger.New(slog.LevelInfo)
	slog.SetDefault(log)

	store, cleanup, err := buildStore(cfg)
	if err != nil {
		log.Error("build store", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	bus := events.NewInMemoryBus(log)
	if len(cfg.KafkaBrokers) > 0 {
		kafka, err := events.NewKafkaBus(cfg.KafkaBrokers, cfg.KafkaTopic, log)
		if err != nil {
			log.Error("connect kafka", "error", err)
			os.Exit(1)
		}
		defer kafka.Close()
		// Mirror every local event onto the topic for downstream consumers.
		bus.Subscribe(events.Wildcard, func(ctx context.Context, env events.Envelope) {
			if err := kafka.Publish(ctx, env); err != nil {
				log.WarnContext(ctx, "kafka publish failed", "event_type", env.EventType, "error", err)
			}
		})
	}

	calibration := decision.NewCalibration(cfg.FraudWeights, log)
	var registryAdapter *adapters.HTTPIssuerRegistry
	if cfg.RegistryBaseURL != "" {
		registryAdapter = adapters.NewHTTPIssuerRegistry(cfg.RegistryBaseURL, os.Getenv("GOVDOCIQ_REGISTRY_TOKEN"), log)
	}

	deps := pipeline.Deps{
		Preprocessor: modules.NewPreprocessor(adapters.NewHeuristicOCR()),
		Classifier:   modules.NewClassifier(adapters.NewHeuristicClassifier()),
		Templates:    modules.NewTemplateResolver(document.NewStoreRuleSource(store)),
		Extractor:    modules.NewExtractor(adapters.NewHeuristicExtractor()),
		Validator:    modules.NewValidator(),
		Visual:       modules.NewVisualAuthenticity(adapters.NewHeuristicAuthenticity()),
		Registry:     modules.NewRegistryVerifier(registryAdapter),
		Fraud:        modules.NewFraudEngine(calibration),
		Engine:       decision.NewEngine(decisionmetrics.New()),
		Dedup:        store,
		Policies:     document.NewStorePolicySource(store),
	}
	engine, err := pipeline.New(pipeline.StandardNodes(deps), pipelinemetrics.New())
	if err != nil {
		log.Error("build pipeline", "error", err)
		os.Exit(1)
	}

	documents := document.NewService(store, engine, bus,
		document.WithLogger(log),
		document.WithMetrics(documentmetrics.New()),
	)
	notifier := notify.NewService(store, bus,
		notify.WithLogger(log),
		notify.WithMetrics(notifymetrics.New()),
	)
	notifier.Register(bus)
	offlineService := offline.NewService(documents, store, bus, log,
		offline.WithDefaultCapacity(cfg.SyncCapacityPerMinute),
		offline.WithFetchLimit(cfg.SyncFetchLimit),
	)

	router := httptransport.NewRouter(log,
		httptransport.NewDocumentHandler(documents, notifier, log),
		httptransport.NewOfflineHandler(offlineService, log),
	)
	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting govdociq", "addr", cfg.Addr, "store", cfg.Store)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}

func buildStore(cfg config.Config) (document.Store, func(), error) {
	switch cfg.Store {
	case "postgres":
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := db.Ping(); err != nil {
			db.Close()
			return nil, nil, err
		}
		store := postgres.New(db)
		if err := store.EnsureSchema(context.Background()); err != nil {
			db.Close()
			return nil, nil, err
		}
		return store, func() { db.Close() }, nil
	default:
		return memory.New(), func() {}, nil
	}
}
