package offline_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"govdociq/internal/adapters"
	"govdociq/internal/decision"
	"govdociq/internal/document"
	"govdociq/internal/document/store/memory"
	"govdociq/internal/domain"
	"govdociq/internal/events"
	"govdociq/internal/offline"
	"govdociq/internal/offline/lock"
	"govdociq/internal/offline/store/sqlite"
	"govdociq/internal/pipeline"
	"govdociq/internal/pipeline/modules"
	dErrors "govdociq/pkg/domain-errors"
)

type OfflineSuite struct {
	suite.Suite
	ctx     context.Context
	store   *memory.Store
	bus     *events.InMemoryBus
	docs    *document.Service
	service *offline.Service

	// The worker publishes from errgroup goroutines, so capture is guarded.
	mu       sync.Mutex
	captured []events.Envelope
}

func (s *OfflineSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = memory.New()
	s.bus = events.NewInMemoryBus(nil)
	s.mu.Lock()
	s.captured = nil
	s.mu.Unlock()
	s.bus.Subscribe(events.Wildcard, func(_ context.Context, env events.Envelope) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.captured = append(s.captured, env)
	})

	deps := pipeline.Deps{
		Preprocessor: modules.NewPreprocessor(adapters.NewHeuristicOCR()),
		Classifier:   modules.NewClassifier(adapters.NewHeuristicClassifier()),
		Templates:    modules.NewTemplateResolver(document.NewStoreRuleSource(s.store)),
		Extractor:    modules.NewExtractor(adapters.NewHeuristicExtractor()),
		Validator:    modules.NewValidator(),
		Visual:       modules.NewVisualAuthenticity(adapters.NewHeuristicAuthenticity()),
		Registry:     modules.NewRegistryVerifier(nil),
		Fraud:        modules.NewFraudEngine(decision.NewCalibration("", nil)),
		Engine:       decision.NewEngine(nil),
		Dedup:        s.store,
		Policies:     document.NewStorePolicySource(s.store),
	}
	engine, err := pipeline.New(pipeline.StandardNodes(deps), nil)
	s.Require().NoError(err)

	s.docs = document.NewService(s.store, engine, s.bus)
	s.service = offline.NewService(s.docs, s.store, s.bus, nil)
}

// SetupSubTest rebuilds the store, bus and services so documents and events
// from one subtest never leak into the next.
func (s *OfflineSuite) SetupSubTest() {
	s.SetupTest()
}

func TestOfflineSuite(t *testing.T) {
	suite.Run(t, new(OfflineSuite))
}

func (s *OfflineSuite) eventsOfType(eventType string) []events.Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []events.Envelope
	for _, env := range s.captured {
		if env.EventType == eventType {
			out = append(out, env)
		}
	}
	return out
}

func (s *OfflineSuite) provisional(n int, decision domain.Decision) *domain.Document {
	doc, err := s.service.CreateProvisional(s.ctx, offline.ProvisionalInput{
		TenantID:            "tenant-a",
		CitizenID:           "citizen-1",
		FileName:            fmt.Sprintf("field_scan_%d.pdf", n),
		RawText:             "short unreadable scan " + strings.Repeat("x", n),
		NodeID:              "node-7",
		ModelVersions:       map[string]string{"ocr": "edge-1.2"},
		ProvisionalDecision: decision,
	})
	s.Require().NoError(err)
	return doc
}

func (s *OfflineSuite) TestCreateProvisional() {
	s.Run("records a pending offline document without legal standing", func() {
		doc := s.provisional(1, domain.DecisionApprove)

		s.Require().NotNil(doc.Offline)
		s.Equal(domain.SyncPending, doc.Offline.SyncStatus)
		s.Equal("node-7", doc.Offline.OfflineNodeID)
		s.Equal(domain.DecisionApprove, doc.Offline.ProvisionalDecision)
		s.Equal(true, doc.Metadata["offline_processed"])
		s.Equal("NONE", doc.Metadata["provisional_legal_standing"])
	})

	s.Run("rejects an unknown provisional decision", func() {
		_, err := s.service.CreateProvisional(s.ctx, offline.ProvisionalInput{
			TenantID:            "tenant-a",
			CitizenID:           "citizen-1",
			FileName:            "f.pdf",
			RawText:             "text",
			ProvisionalDecision: "MAYBE",
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *OfflineSuite) TestSync() {
	s.Run("central verdict replaces the provisional and flags the conflict", func() {
		// Low-signal text lands in review centrally; the field node approved.
		doc := s.provisional(1, domain.DecisionApprove)

		synced, err := s.service.Sync(s.ctx, doc.ID)
		s.Require().NoError(err)
		s.Equal(domain.SyncSynced, synced.Offline.SyncStatus)
		s.Equal(domain.DecisionReview, synced.Decision)

		conflicts := s.eventsOfType(events.OfflineConflictDetected)
		s.Require().Len(conflicts, 1)
		s.Equal("APPROVE", conflicts[0].Payload["local_provisional"])
		s.Equal("REVIEW", conflicts[0].Payload["central_decision"])
	})

	s.Run("agreement raises no conflict", func() {
		doc := s.provisional(2, domain.DecisionReview)

		synced, err := s.service.Sync(s.ctx, doc.ID)
		s.Require().NoError(err)
		s.Equal(domain.SyncSynced, synced.Offline.SyncStatus)
		s.Empty(s.eventsOfType(events.OfflineConflictDetected))
	})

	s.Run("refuses a second sync", func() {
		doc := s.provisional(3, domain.DecisionReview)
		_, err := s.service.Sync(s.ctx, doc.ID)
		s.Require().NoError(err)

		_, err = s.service.Sync(s.ctx, doc.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("refuses a document never processed offline", func() {
		doc, err := s.docs.Create(s.ctx, document.CreateInput{
			TenantID:  "tenant-a",
			CitizenID: "citizen-1",
			FileName:  "online.pdf",
			RawText:   "regular online submission",
		})
		s.Require().NoError(err)

		_, err = s.service.Sync(s.ctx, doc.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *OfflineSuite) TestBackpressure() {
	setCapacity := func(capacity int) {
		policy := domain.DefaultTenantPolicy("tenant-a")
		policy.SyncCapacityPerMinute = capacity
		s.Require().NoError(s.docs.SetTenantPolicy(s.ctx, policy))
	}

	s.Run("backlog over capacity overflows the whole batch", func() {
		setCapacity(50)
		for i := 0; i < 120; i++ {
			s.provisional(i, domain.DecisionReview)
		}

		report, err := s.service.ApplyBackpressure(s.ctx, "tenant-a")
		s.Require().NoError(err)
		s.True(report.QueueOverflow)
		s.Equal(120, report.BacklogSize)
		s.Equal(50, report.Capacity)

		pending, err := s.store.ListPendingOffline(s.ctx, "tenant-a")
		s.Require().NoError(err)
		s.Empty(pending)

		all, err := s.docs.List(s.ctx, "tenant-a")
		s.Require().NoError(err)
		overflowed := 0
		for _, doc := range all {
			if doc.Offline != nil && doc.Offline.SyncStatus == domain.SyncQueueOverflow {
				overflowed++
			}
		}
		s.Equal(120, overflowed)

		overflow := s.eventsOfType(events.OfflineQueueOverflow)
		s.Require().Len(overflow, 1)
		s.Equal("OFFLINE_BACKLOG", overflow[0].DocumentID)
		s.Equal(120, overflow[0].Payload["backlog_size"])
		s.Equal(50, overflow[0].Payload["sync_capacity_per_minute"])
	})

	s.Run("backlog within capacity is left alone", func() {
		setCapacity(50)
		for i := 0; i < 30; i++ {
			s.provisional(i, domain.DecisionReview)
		}

		report, err := s.service.ApplyBackpressure(s.ctx, "tenant-a")
		s.Require().NoError(err)
		s.False(report.QueueOverflow)
		s.Equal(30, report.BacklogSize)

		pending, err := s.store.ListPendingOffline(s.ctx, "tenant-a")
		s.Require().NoError(err)
		s.Len(pending, 30)
		s.Empty(s.eventsOfType(events.OfflineQueueOverflow))
	})

	s.Run("release returns overflowed documents to pending", func() {
		setCapacity(2)
		for i := 0; i < 5; i++ {
			s.provisional(i, domain.DecisionReview)
		}
		_, err := s.service.ApplyBackpressure(s.ctx, "tenant-a")
		s.Require().NoError(err)

		released, err := s.service.ReleaseOverflow(s.ctx, "tenant-a")
		s.Require().NoError(err)
		s.Equal(5, released)

		pending, err := s.store.ListPendingOffline(s.ctx, "tenant-a")
		s.Require().NoError(err)
		s.Len(pending, 5)
	})
}

func (s *OfflineSuite) TestWorker() {
	s.Run("drains pending documents up to capacity", func() {
		policy := domain.DefaultTenantPolicy("tenant-a")
		policy.SyncCapacityPerMinute = 3
		s.Require().NoError(s.docs.SetTenantPolicy(s.ctx, policy))
		for i := 0; i < 3; i++ {
			s.provisional(i, domain.DecisionReview)
		}

		worker := offline.NewWorker(s.service, lock.NewMemory(), "tenant-a", time.Minute, nil)
		result, err := worker.SyncBatch(s.ctx)
		s.Require().NoError(err)
		s.Equal(3, result.Synced)
		s.Zero(result.Failed)

		pending, err := s.store.ListPendingOffline(s.ctx, "tenant-a")
		s.Require().NoError(err)
		s.Empty(pending)
	})

	s.Run("skips the batch when the lock is held", func() {
		locker := lock.NewMemory()
		held, err := locker.Acquire(s.ctx, "offline-sync:tenant-a", time.Minute)
		s.Require().NoError(err)
		s.Require().True(held)

		worker := offline.NewWorker(s.service, locker, "tenant-a", time.Minute, nil)
		result, err := worker.SyncBatch(s.ctx)
		s.Require().NoError(err)
		s.True(result.LockMiss)
	})

	s.Run("stops at backpressure instead of draining", func() {
		policy := domain.DefaultTenantPolicy("tenant-a")
		policy.SyncCapacityPerMinute = 1
		s.Require().NoError(s.docs.SetTenantPolicy(s.ctx, policy))
		for i := 0; i < 4; i++ {
			s.provisional(i, domain.DecisionReview)
		}

		worker := offline.NewWorker(s.service, lock.NewMemory(), "tenant-a", time.Minute, nil)
		result, err := worker.SyncBatch(s.ctx)
		s.Require().NoError(err)
		s.True(result.Overflow)
		s.Zero(result.Synced)
	})
}

func (s *OfflineSuite) openOutbox() *sqlite.Store {
	outbox, err := sqlite.Open(":memory:")
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = outbox.Close() })
	s.Require().NoError(outbox.EnsureSchema(s.ctx))
	return outbox
}

func (s *OfflineSuite) enqueueCapture(outbox *sqlite.Store, n int, decision domain.Decision) {
	s.Require().NoError(outbox.Enqueue(s.ctx, &sqlite.Capture{
		ID:                  fmt.Sprintf("cap-%d", n),
		TenantID:            "tenant-a",
		CitizenID:           "citizen-1",
		FileName:            fmt.Sprintf("field_scan_%d.pdf", n),
		RawText:             "short unreadable scan " + strings.Repeat("x", n),
		NodeID:              "node-7",
		OfficerID:           "officer-1",
		ProvisionalDecision: decision,
		ModelVersions:       map[string]string{"ocr": "edge-1.2"},
		CapturedAt:          time.Now().Add(time.Duration(n) * time.Second),
	}))
}

func (s *OfflineSuite) TestShipCaptures() {
	s.Run("drains the outbox into provisional intake", func() {
		outbox := s.openOutbox()
		for i := 0; i < 3; i++ {
			s.enqueueCapture(outbox, i, domain.DecisionReview)
		}

		report, err := s.service.ShipCaptures(s.ctx, outbox, 0)
		s.Require().NoError(err)
		s.Equal(3, report.Shipped)
		s.Zero(report.Failed)

		unshipped, err := outbox.ListUnshipped(s.ctx, 0)
		s.Require().NoError(err)
		s.Empty(unshipped)

		pending, err := s.store.ListPendingOffline(s.ctx, "tenant-a")
		s.Require().NoError(err)
		s.Require().Len(pending, 3)
		s.Equal("node-7", pending[0].Offline.OfflineNodeID)
		s.Equal(true, pending[0].Metadata["offline_processed"])
	})

	s.Run("a rejected capture stays queued for the next pass", func() {
		outbox := s.openOutbox()
		s.enqueueCapture(outbox, 0, "MAYBE")
		s.enqueueCapture(outbox, 1, domain.DecisionApprove)

		report, err := s.service.ShipCaptures(s.ctx, outbox, 0)
		s.Require().NoError(err)
		s.Equal(1, report.Shipped)
		s.Equal(1, report.Failed)

		unshipped, err := outbox.ListUnshipped(s.ctx, 0)
		s.Require().NoError(err)
		s.Require().Len(unshipped, 1)
		s.Equal("cap-0", unshipped[0].ID)
	})
}

func (s *OfflineSuite) TestConfiguredDefaults() {
	s.Run("configured capacity applies when the tenant has no policy", func() {
		service := offline.NewService(s.docs, s.store, s.bus, nil, offline.WithDefaultCapacity(2))
		for i := 0; i < 3; i++ {
			s.provisional(i, domain.DecisionReview)
		}

		report, err := service.ApplyBackpressure(s.ctx, "tenant-a")
		s.Require().NoError(err)
		s.True(report.QueueOverflow)
		s.Equal(2, report.Capacity)
	})

	s.Run("fetch limit caps a batch below tenant capacity", func() {
		policy := domain.DefaultTenantPolicy("tenant-a")
		policy.SyncCapacityPerMinute = 10
		s.Require().NoError(s.docs.SetTenantPolicy(s.ctx, policy))
		service := offline.NewService(s.docs, s.store, s.bus, nil, offline.WithFetchLimit(2))
		for i := 0; i < 4; i++ {
			s.provisional(i, domain.DecisionReview)
		}

		worker := offline.NewWorker(service, lock.NewMemory(), "tenant-a", time.Minute, nil)
		result, err := worker.SyncBatch(s.ctx)
		s.Require().NoError(err)
		s.Equal(2, result.Synced)

		pending, err := s.store.ListPendingOffline(s.ctx, "tenant-a")
		s.Require().NoError(err)
		s.Len(pending, 2)
	})
}
