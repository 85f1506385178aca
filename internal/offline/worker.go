package offline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"govdociq/internal/offline/lock"
)

// syncParallelism bounds concurrent central re-runs per batch.
const syncParallelism = 4

// Worker drains a tenant's offline backlog on a fixed cadence. The per-tenant
// lock keeps exactly one worker per tenant active across nodes.
type Worker struct {
	service  *Service
	locker   lock.Locker
	tenantID string
	interval time.Duration
	logger   *slog.Logger
}

func NewWorker(service *Service, locker lock.Locker, tenantID string, interval time.Duration, logger *slog.Logger) *Worker {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		service:  service,
		locker:   locker,
		tenantID: tenantID,
		interval: interval,
		logger:   logger,
	}
}

// Run drains the backlog every interval until the context is canceled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.SyncBatch(ctx); err != nil {
				w.logger.ErrorContext(ctx, "sync batch failed", "tenant_id", w.tenantID, "error", err)
			}
		}
	}
}

// BatchResult summarizes one drain pass.
type BatchResult struct {
	Synced   int
	Failed   int
	Overflow bool
	Backlog  int
	LockMiss bool
}

// SyncBatch applies backpressure and then reconciles up to the tenant's sync
// capacity. Individual sync failures are logged and counted; they never
// abort the rest of the batch.
func (w *Worker) SyncBatch(ctx context.Context) (BatchResult, error) {
	acquired, err := w.locker.Acquire(ctx, "offline-sync:"+w.tenantID, w.interval)
	if err != nil {
		return BatchResult{}, err
	}
	if !acquired {
		return BatchResult{LockMiss: true}, nil
	}
	defer func() {
		if err := w.locker.Release(ctx, "offline-sync:"+w.tenantID); err != nil {
			w.logger.WarnContext(ctx, "lock release failed", "tenant_id", w.tenantID, "error", err)
		}
	}()

	report, err := w.service.ApplyBackpressure(ctx, w.tenantID)
	if err != nil {
		return BatchResult{}, err
	}
	result := BatchResult{Overflow: report.QueueOverflow, Backlog: report.BacklogSize}
	if report.QueueOverflow {
		return result, nil
	}

	pending, err := w.service.store.ListPendingOffline(ctx, w.tenantID)
	if err != nil {
		return result, err
	}
	if limit := w.service.fetchLimit; limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	if len(pending) > report.Capacity {
		pending = pending[:report.Capacity]
	}

	var synced, failed int
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(syncParallelism)
	results := make([]error, len(pending))
	for i, doc := range pending {
		g.Go(func() error {
			_, err := w.service.Sync(gctx, doc.ID)
			results[i] = err
			// Failures are recorded per document, not propagated.
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return result, err
	}

	for i, doc := range pending {
		if results[i] != nil {
			failed++
			w.logger.WarnContext(ctx, "offline sync failed", "document_id", doc.ID, "error", results[i])
			continue
		}
		synced++
	}

	result.Synced = synced
	result.Failed = failed
	return result, nil
}
