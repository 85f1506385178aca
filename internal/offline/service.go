// Package offline implements the reconciliation framework for documents
// processed at disconnected field nodes. Local results are provisional and
// carry no legal standing; the central pipeline re-runs every document and
// its verdict wins any conflict.
package offline

import (
	"context"
	"log/slog"
	"time"

	"govdociq/internal/document"
	"govdociq/internal/domain"
	"govdociq/internal/events"
	dErrors "govdociq/pkg/domain-errors"
)

// Store is the slice of document persistence the reconciler needs.
type Store interface {
	GetDocument(ctx context.Context, id string) (*domain.Document, error)
	UpdateDocument(ctx context.Context, doc *domain.Document) error
	ListPendingOffline(ctx context.Context, tenantID string) ([]*domain.Document, error)
	SetSyncStatus(ctx context.Context, documentID string, from, to domain.SyncStatus) error
	GetTenantPolicy(ctx context.Context, tenantID string) (domain.TenantPolicy, error)
}

// Service reconciles offline-provisional documents against the central
// pipeline.
type Service struct {
	docs            *document.Service
	store           Store
	bus             events.Bus
	logger          *slog.Logger
	defaultCapacity int
	fetchLimit      int
}

type ServiceOption func(*Service)

// WithDefaultCapacity sets the sync capacity used for tenants without a
// stored policy.
func WithDefaultCapacity(perMinute int) ServiceOption {
	return func(s *Service) {
		if perMinute > 0 {
			s.defaultCapacity = perMinute
		}
	}
}

// WithFetchLimit caps how many pending documents a single batch or shipment
// pass will pull, regardless of tenant capacity.
func WithFetchLimit(limit int) ServiceOption {
	return func(s *Service) {
		if limit > 0 {
			s.fetchLimit = limit
		}
	}
}

func NewService(docs *document.Service, store Store, bus events.Bus, logger *slog.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		docs:            docs,
		store:           store,
		bus:             bus,
		logger:          logger,
		defaultCapacity: domain.DefaultTenantPolicy("").SyncCapacityPerMinute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ProvisionalInput is the intake payload from a field node.
type ProvisionalInput struct {
	TenantID            string
	CitizenID           string
	FileName            string
	RawText             string
	OfficerID           string
	NodeID              string
	ModelVersions       map[string]string
	ProvisionalDecision domain.Decision
	Metadata            map[string]any
}

// CreateProvisional registers an offline-processed document pending central
// reconciliation.
func (s *Service) CreateProvisional(ctx context.Context, in ProvisionalInput) (*domain.Document, error) {
	switch in.ProvisionalDecision {
	case domain.DecisionApprove, domain.DecisionReject, domain.DecisionReview:
	default:
		return nil, dErrors.Newf(dErrors.CodeValidation, "unsupported provisional decision %q", in.ProvisionalDecision)
	}

	metadata := in.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadata["offline_processed"] = true
	metadata["provisional_legal_standing"] = "NONE"

	doc, err := s.docs.Create(ctx, document.CreateInput{
		TenantID:  in.TenantID,
		CitizenID: in.CitizenID,
		FileName:  in.FileName,
		RawText:   in.RawText,
		Metadata:  metadata,
	})
	if err != nil {
		return nil, err
	}

	doc.Offline = &domain.OfflineSyncRecord{
		ProcessedOffline:    true,
		OfflineNodeID:       in.NodeID,
		ModelVersions:       in.ModelVersions,
		ProvisionalDecision: in.ProvisionalDecision,
		SyncStatus:          domain.SyncPending,
		ProcessedOfflineAt:  time.Now().UTC(),
	}
	if err := s.store.UpdateDocument(ctx, doc); err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "persist offline record", err)
	}
	return doc, nil
}

// Sync runs the central pipeline for one pending offline document and marks
// it reconciled. A provisional decision that disagrees with the central
// verdict raises an offline.conflict.detected event; the central verdict
// stands either way.
func (s *Service) Sync(ctx context.Context, documentID string) (*domain.Document, error) {
	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.Offline == nil {
		return nil, dErrors.New(dErrors.CodeValidation, "document was not processed offline")
	}
	if doc.Offline.SyncStatus != domain.SyncPending {
		return nil, dErrors.Newf(dErrors.CodeConflict, "document sync status is %s", doc.Offline.SyncStatus)
	}

	central, err := s.docs.Process(ctx, documentID)
	if err != nil {
		return nil, err
	}

	if err := s.store.SetSyncStatus(ctx, documentID, domain.SyncPending, domain.SyncSynced); err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "mark synced", err)
	}

	provisional := doc.Offline.ProvisionalDecision
	if provisional != "" && provisional != central.Decision {
		s.publish(ctx, events.OfflineConflictDetected, central.TenantID, central.ID, map[string]any{
			"local_provisional": string(provisional),
			"central_decision":  string(central.Decision),
		})
		s.logger.InfoContext(ctx, "offline conflict resolved centrally",
			"document_id", central.ID,
			"local_provisional", provisional,
			"central_decision", central.Decision,
		)
	}

	return s.store.GetDocument(ctx, documentID)
}

// BackpressureReport summarizes one backpressure pass.
type BackpressureReport struct {
	QueueOverflow bool
	BacklogSize   int
	Capacity      int
}

// ApplyBackpressure checks the tenant's pending backlog against its sync
// capacity. When the backlog exceeds capacity, the entire batch is marked
// QUEUE_OVERFLOW and one overflow event is raised; nothing partial.
func (s *Service) ApplyBackpressure(ctx context.Context, tenantID string) (BackpressureReport, error) {
	pending, err := s.store.ListPendingOffline(ctx, tenantID)
	if err != nil {
		return BackpressureReport{}, dErrors.Wrap(dErrors.CodeInternal, "list pending offline", err)
	}

	capacity := s.defaultCapacity
	if policy, err := s.store.GetTenantPolicy(ctx, tenantID); err == nil && policy.SyncCapacityPerMinute > 0 {
		capacity = policy.SyncCapacityPerMinute
	}

	report := BackpressureReport{BacklogSize: len(pending), Capacity: capacity}
	if len(pending) <= capacity {
		return report, nil
	}

	report.QueueOverflow = true
	for _, doc := range pending {
		if err := s.store.SetSyncStatus(ctx, doc.ID, domain.SyncPending, domain.SyncQueueOverflow); err != nil {
			s.logger.WarnContext(ctx, "overflow mark failed", "document_id", doc.ID, "error", err)
		}
	}

	s.publish(ctx, events.OfflineQueueOverflow, tenantID, "OFFLINE_BACKLOG", map[string]any{
		"backlog_size":             len(pending),
		"sync_capacity_per_minute": capacity,
	})
	return report, nil
}

// ReleaseOverflow returns QUEUE_OVERFLOW documents to PENDING once capacity
// recovers.
func (s *Service) ReleaseOverflow(ctx context.Context, tenantID string) (int, error) {
	// ListPendingOffline returns PENDING only; overflowed documents are
	// found through the full tenant listing.
	released := 0
	all, err := s.docs.List(ctx, tenantID)
	if err != nil {
		return 0, err
	}
	for _, doc := range all {
		if doc.Offline == nil || doc.Offline.SyncStatus != domain.SyncQueueOverflow {
			continue
		}
		if err := s.store.SetSyncStatus(ctx, doc.ID, domain.SyncQueueOverflow, domain.SyncPending); err != nil {
			s.logger.WarnContext(ctx, "overflow release failed", "document_id", doc.ID, "error", err)
			continue
		}
		released++
	}
	return released, nil
}

func (s *Service) publish(ctx context.Context, eventType, tenantID, documentID string, payload map[string]any) {
	if s.bus == nil {
		return
	}
	env, err := events.NewEnvelope(eventType, tenantID, documentID, "SYSTEM", "", payload)
	if err != nil {
		s.logger.ErrorContext(ctx, "event rejected by contract", "event_type", eventType, "error", err)
		return
	}
	if err := s.bus.Publish(ctx, env); err != nil {
		s.logger.WarnContext(ctx, "event publish failed", "event_type", eventType, "error", err)
	}
}
