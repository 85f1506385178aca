// The syncworker binary serves the offline-first flow on both sides of the
// connectivity gap. On the central side it drains offline backlogs for one or
// more tenants; on a field node it queues captures in a local sqlite outbox
// (capture) and ships them to the central intake when a link is available
// (ship). It shares the server's store and pipeline wiring but runs no HTTP
// listener.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"govdociq/internal/adapters"
	"govdociq/internal/decision"
	"govdociq/internal/document"
	"govdociq/internal/document/store/postgres"
	"govdociq/internal/domain"
	"govdociq/internal/events"
	"govdociq/internal/offline"
	"govdociq/internal/offline/lock"
	"govdociq/internal/offline/store/sqlite"
	"govdociq/internal/pipeline"
	"govdociq/internal/pipeline/modules"
	"govdociq/internal/platform/config"
	"govdociq/internal/platform/logger"
	platformredis "govdociq/internal/platform/redis"
)

func main() {
	root := newRootCmd()
	root.AddCommand(newCaptureCmd(), newShipCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		slog.Error("syncworker failed", "error", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		tenants  []string
		interval time.Duration
		once     bool
	)

	cmd := &cobra.Command{
		Use:   "syncworker",
		Short: "Reconcile offline-provisional documents against the central pipeline",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if len(tenants) == 0 {
				return fmt.Errorf("at least one --tenant is required")
			}
			return run(cmd.Context(), tenants, interval, once)
		},
	}
	cmd.Flags().StringSliceVar(&tenants, "tenant", nil, "tenant to drain (repeatable)")
	cmd.Flags().DurationVar(&interval, "interval", time.Minute, "drain cadence")
	cmd.Flags().BoolVar(&once, "once", false, "run one batch per tenant and exit")
	return cmd
}

func newCaptureCmd() *cobra.Command {
	var (
		dbPath    string
		tenantID  string
		citizenID string
		fileName  string
		rawText   string
		nodeID    string
		officerID string
		verdict   string
	)

	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Queue a field capture in the local outbox",
		RunE: func(cmd *cobra.Command, _ []string) error {
			outbox, err := sqlite.Open(dbPath)
			if err != nil {
				return err
			}
			defer outbox.Close()
			if err := outbox.EnsureSchema(cmd.Context()); err != nil {
				return err
			}

			c := &sqlite.Capture{
				ID:                  uuid.NewString(),
				TenantID:            tenantID,
				CitizenID:           citizenID,
				FileName:            fileName,
				RawText:             rawText,
				NodeID:              nodeID,
				OfficerID:           officerID,
				ProvisionalDecision: domain.Decision(strings.ToUpper(verdict)),
				CapturedAt:          time.Now().UTC(),
			}
			if err := outbox.Enqueue(cmd.Context(), c); err != nil {
				return err
			}
			slog.Info("capture queued", "capture_id", c.ID, "db", dbPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "captures.db", "local outbox database path")
	cmd.Flags().StringVar(&tenantID, "tenant", "", "tenant the document belongs to")
	cmd.Flags().StringVar(&citizenID, "citizen", "", "submitting citizen")
	cmd.Flags().StringVar(&fileName, "file", "", "captured file name")
	cmd.Flags().StringVar(&rawText, "text", "", "raw scanned text")
	cmd.Flags().StringVar(&nodeID, "node", "", "field node identifier")
	cmd.Flags().StringVar(&officerID, "officer", "", "capturing officer")
	cmd.Flags().StringVar(&verdict, "decision", "REVIEW", "provisional decision (APPROVE, REJECT or REVIEW)")
	_ = cmd.MarkFlagRequired("tenant")
	_ = cmd.MarkFlagRequired("citizen")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newShipCmd() *cobra.Command {
	var (
		dbPath     string
		limit      int
		purgeAfter time.Duration
	)

	cmd := &cobra.Command{
		Use:   "ship",
		Short: "Ship queued captures to the central provisional intake",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			log := logger.New(slog.LevelInfo)
			slog.SetDefault(log)

			outbox, err := sqlite.Open(dbPath)
			if err != nil {
				return err
			}
			defer outbox.Close()
			if err := outbox.EnsureSchema(ctx); err != nil {
				return err
			}

			service, cleanup, err := buildCentralService(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer cleanup()

			report, err := service.ShipCaptures(ctx, outbox, limit)
			if err != nil {
				return err
			}
			log.Info("outbox shipped", "shipped", report.Shipped, "failed", report.Failed, "db", dbPath)

			if purgeAfter > 0 {
				purged, err := outbox.PurgeShipped(ctx, time.Now().Add(-purgeAfter))
				if err != nil {
					return err
				}
				log.Info("outbox purged", "purged", purged)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "captures.db", "local outbox database path")
	cmd.Flags().IntVar(&limit, "limit", 0, "max captures per shipment (0 uses the configured fetch limit)")
	cmd.Flags().DurationVar(&purgeAfter, "purge-after", 0, "purge shipped captures older than this age (0 disables)")
	return cmd
}

func run(ctx context.Context, tenants []string, interval time.Duration, once bool) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	log := logger.New(slog.LevelInfo)
	slog.SetDefault(log)

	service, cleanup, err := buildCentralService(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	var locker lock.Locker = lock.NewMemory()
	if cfg.RedisURL != "" {
		client, err := platformredis.New(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer client.Close()
		locker = lock.NewRedis(client.Client)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, tenantID := range tenants {
		worker := offline.NewWorker(service, locker, tenantID, interval, log)
		g.Go(func() error {
			if once {
				result, err := worker.SyncBatch(gctx)
				if err != nil {
					return err
				}
				log.Info("batch complete",
					"tenant_id", tenantID,
					"synced", result.Synced,
					"failed", result.Failed,
					"overflow", result.Overflow,
					"backlog", result.Backlog,
				)
				return nil
			}
			return worker.Run(gctx)
		})
	}
	err = g.Wait()
	if err != nil && ctx.Err() != nil {
		// Signal-driven shutdown is a clean exit.
		return nil
	}
	return err
}

// buildCentralService wires the postgres store, event buses and analysis
// pipeline behind an offline service, the same stack cmd/server runs.
func buildCentralService(ctx context.Context, cfg config.Config, log *slog.Logger) (*offline.Service, func(), error) {
	if cfg.Store != "postgres" || cfg.DatabaseURL == "" {
		return nil, nil, fmt.Errorf("syncworker requires the postgres store (GOVDOCIQ_STORE=postgres)")
	}
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	closers := []func(){func() { _ = db.Close() }}
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	if err := db.PingContext(ctx); err != nil {
		cleanup()
		return nil, nil, err
	}
	store := postgres.New(db)

	bus := events.NewInMemoryBus(log)
	if len(cfg.KafkaBrokers) > 0 {
		kafka, err := events.NewKafkaBus(cfg.KafkaBrokers, cfg.KafkaTopic, log)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		closers = append(closers, kafka.Close)
		bus.Subscribe(events.Wildcard, func(ctx context.Context, env events.Envelope) {
			if err := kafka.Publish(ctx, env); err != nil {
				log.WarnContext(ctx, "kafka publish failed", "event_type", env.EventType, "error", err)
			}
		})
	}

	deps := pipeline.Deps{
		Preprocessor: modules.NewPreprocessor(adapters.NewHeuristicOCR()),
		Classifier:   modules.NewClassifier(adapters.NewHeuristicClassifier()),
		Templates:    modules.NewTemplateResolver(document.NewStoreRuleSource(store)),
		Extractor:    modules.NewExtractor(adapters.NewHeuristicExtractor()),
		Validator:    modules.NewValidator(),
		Visual:       modules.NewVisualAuthenticity(adapters.NewHeuristicAuthenticity()),
		Registry:     modules.NewRegistryVerifier(nil),
		Fraud:        modules.NewFraudEngine(decision.NewCalibration(cfg.FraudWeights, log)),
		Engine:       decision.NewEngine(nil),
		Dedup:        store,
		Policies:     document.NewStorePolicySource(store),
	}
	engine, err := pipeline.New(pipeline.StandardNodes(deps), nil)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	documents := document.NewService(store, engine, bus, document.WithLogger(log))
	service := offline.NewService(documents, store, bus, log,
		offline.WithDefaultCapacity(cfg.SyncCapacityPerMinute),
		offline.WithFetchLimit(cfg.SyncFetchLimit),
	)
	return service, cleanup, nil
}
