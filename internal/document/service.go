// Package document orchestrates the document lifecycle: intake, pipeline
// execution, lifecycle transitions, human review, disputes and archival.
// Handlers stay thin; every state change goes through this service so the
// transition audit trail is complete.
package document

import (
	"context"
	"log/slog"
	"time"

	"govdociq/internal/decision"
	"govdociq/internal/document/metrics"
	"govdociq/internal/domain"
	"govdociq/internal/events"
	"govdociq/internal/pipeline"
	"govdociq/internal/pipeline/modules"
	dErrors "govdociq/pkg/domain-errors"
)

// Service orchestrates document intake, processing and review.
type Service struct {
	store   Store
	engine  *pipeline.Engine
	bus     events.Bus
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService constructs a Service.
func NewService(store Store, engine *pipeline.Engine, bus events.Bus, opts ...Option) *Service {
	s := &Service{store: store, engine: engine, bus: bus, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateInput is the intake payload for a new document.
type CreateInput struct {
	TenantID    string
	CitizenID   string
	FileName    string
	RawText     string
	DocTypeHint string
	Prefilled   map[string]string
	Metadata    map[string]any
}

// Create registers a document in the RECEIVED state and announces it.
func (s *Service) Create(ctx context.Context, in CreateInput) (*domain.Document, error) {
	if in.TenantID == "" || in.CitizenID == "" || in.FileName == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "tenant_id, citizen_id and file_name are required")
	}

	metadata := in.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	if in.DocTypeHint != "" {
		metadata["doc_type_hint"] = in.DocTypeHint
	}
	if len(in.Prefilled) > 0 {
		metadata["prefilled"] = in.Prefilled
	}

	doc := domain.NewDocument(in.TenantID, in.CitizenID, in.FileName, in.RawText, metadata)
	if err := s.store.CreateDocument(ctx, doc); err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "create document", err)
	}

	s.metrics.IncrementCreated(in.TenantID)
	s.publish(ctx, events.DocumentReceived, doc, map[string]any{"file_name": in.FileName})
	return doc, nil
}

// Process runs the analysis pipeline and walks the document through its
// lifecycle. A pipeline failure lands the document in FAILED with the error
// recorded; the document is never left in an intermediate state silently.
func (s *Service) Process(ctx context.Context, documentID string) (*domain.Document, error) {
	doc, err := s.getDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.State != domain.StateReceived {
		return nil, dErrors.Newf(dErrors.CodeInvalidTransition, "document in state %s cannot be processed", doc.State)
	}

	start := time.Now()
	if err := s.transition(ctx, doc, domain.StatePreprocessing, "SYSTEM", "pipeline started"); err != nil {
		return nil, err
	}

	res, runErr := s.engine.Run(ctx, pipeline.Seed{
		TenantID:    doc.TenantID,
		DocumentID:  doc.ID,
		CitizenID:   doc.CitizenID,
		FileName:    doc.FileName,
		RawText:     doc.RawText,
		DocTypeHint: metadataString(doc.Metadata, "doc_type_hint"),
		Prefilled:   metadataPrefilled(doc.Metadata),
		JobID:       doc.ID + ":" + start.UTC().Format(time.RFC3339Nano),
	})
	if runErr != nil {
		return s.failDocument(ctx, doc, runErr)
	}

	pre := res.Output(pipeline.NodePreprocessing).(modules.PreprocessResult)
	ocr := res.Output(pipeline.NodeOCR).(modules.OCRResult)
	fraud := res.Output(pipeline.NodeFraud).(modules.FraudScore)
	fusion := res.Output(pipeline.NodeMerge).(decision.Fusion)
	outcome := res.Output(pipeline.NodeDecision).(decision.Outcome)

	s.publish(ctx, events.DocumentPreprocessed, doc, map[string]any{
		"quality_score": pre.QualityScore,
		"dedup_hash":    pre.DedupHash,
	})
	if err := s.transition(ctx, doc, domain.StateOCRComplete, "SYSTEM", "ocr completed"); err != nil {
		return nil, err
	}
	s.publish(ctx, events.OCRCompleted, doc, map[string]any{"ocr_confidence": ocr.Confidence})

	s.publish(ctx, events.BranchStarted, doc, map[string]any{"modules": pipeline.BranchNodes})
	if err := s.transition(ctx, doc, domain.StateBranched, "SYSTEM", "branch analysis started"); err != nil {
		return nil, err
	}
	for _, branch := range pipeline.BranchNodes {
		s.publish(ctx, events.BranchCompleted(branch), doc, map[string]any{
			"module": branch,
			"status": "COMPLETED",
		})
	}

	if err := s.transition(ctx, doc, domain.StateMerged, "SYSTEM", "branches merged"); err != nil {
		return nil, err
	}
	s.publish(ctx, events.DocumentMerged, doc, map[string]any{
		"confidence": fusion.Confidence,
		"risk_score": fusion.RiskScore,
	})
	if fraud.RiskLevel == "HIGH" || fraud.RiskLevel == "CRITICAL" {
		s.publish(ctx, events.DocumentFraudFlagged, doc, map[string]any{
			"risk_level":                 fraud.RiskLevel,
			"aggregate_fraud_risk_score": fraud.Score,
		})
	}

	doc.DedupHash = pre.DedupHash
	doc.Confidence = outcome.Confidence
	doc.RiskScore = outcome.RiskScore
	doc.Decision = domain.Decision(outcome.Decision)

	switch outcome.Decision {
	case "APPROVE":
		if err := s.transition(ctx, doc, domain.StateApproved, "SYSTEM", "auto approved"); err != nil {
			return nil, err
		}
		s.publish(ctx, events.DocumentApproved, doc, map[string]any{"decision": outcome.Decision})
	case "REJECT":
		if err := s.transition(ctx, doc, domain.StateRejected, "SYSTEM", "auto rejected"); err != nil {
			return nil, err
		}
		s.publish(ctx, events.DocumentRejected, doc, map[string]any{
			"decision":     outcome.Decision,
			"reason_codes": outcome.ReasonCodes,
		})
	default:
		if err := s.transition(ctx, doc, domain.StateWaitingForReview, "SYSTEM", "routed to human review"); err != nil {
			return nil, err
		}
		s.publish(ctx, events.DocumentFlaggedForReview, doc, map[string]any{"reason_codes": outcome.ReasonCodes})
	}

	if err := s.store.UpdateDocument(ctx, doc); err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "persist decision", err)
	}

	s.metrics.ObserveProcessLatency(time.Since(start))
	s.logger.InfoContext(ctx, "document processed",
		"document_id", doc.ID,
		"tenant_id", doc.TenantID,
		"decision", outcome.Decision,
		"risk_score", outcome.RiskScore,
		"nodes", len(res.ExecutionOrder),
	)
	return doc, nil
}

// StartReview moves a waiting or disputed document into active review. The
// officer must belong to the document's tenant.
func (s *Service) StartReview(ctx context.Context, documentID, officerID string) (*domain.Document, error) {
	doc, err := s.getDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if err := s.requireOfficer(ctx, officerID, doc.TenantID); err != nil {
		return nil, err
	}
	if doc.State != domain.StateWaitingForReview && doc.State != domain.StateDisputed {
		return nil, dErrors.Newf(dErrors.CodeInvalidTransition, "review cannot start from %s", doc.State)
	}

	if err := s.transition(ctx, doc, domain.StateReviewInProgress, officerID, "review started"); err != nil {
		return nil, err
	}
	if err := s.store.UpdateDocument(ctx, doc); err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "persist review start", err)
	}
	s.publish(ctx, events.ReviewStarted, doc, map[string]any{"review_level": 1})
	return doc, nil
}

// ManualDecision records an officer verdict on a document under review.
func (s *Service) ManualDecision(ctx context.Context, documentID, officerID string, verdict domain.Decision) (*domain.Document, error) {
	doc, err := s.getDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if err := s.requireOfficer(ctx, officerID, doc.TenantID); err != nil {
		return nil, err
	}
	if doc.State != domain.StateReviewInProgress {
		return nil, dErrors.Newf(dErrors.CodeInvalidTransition, "manual decision requires %s, document is %s", domain.StateReviewInProgress, doc.State)
	}

	var target domain.DocumentState
	switch verdict {
	case domain.DecisionApprove:
		target = domain.StateApproved
	case domain.DecisionReject:
		target = domain.StateRejected
	default:
		return nil, dErrors.Newf(dErrors.CodeValidation, "unsupported manual decision %q", verdict)
	}

	if err := s.transition(ctx, doc, target, officerID, "manual review decision"); err != nil {
		return nil, err
	}
	doc.Decision = verdict
	if err := s.store.UpdateDocument(ctx, doc); err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "persist manual decision", err)
	}

	s.publish(ctx, events.ReviewCompleted, doc, map[string]any{"decision": string(verdict)})
	if verdict == domain.DecisionApprove {
		s.publish(ctx, events.DocumentApproved, doc, map[string]any{"decision": string(verdict)})
	} else {
		s.publish(ctx, events.DocumentRejected, doc, map[string]any{
			"decision":     string(verdict),
			"reason_codes": []string{"MANUAL_REVIEW"},
		})
	}
	return doc, nil
}

// OpenDispute lets a citizen challenge a rejection.
func (s *Service) OpenDispute(ctx context.Context, documentID, reason, evidenceNote string) (domain.Dispute, error) {
	doc, err := s.getDocument(ctx, documentID)
	if err != nil {
		return domain.Dispute{}, err
	}
	if reason == "" {
		return domain.Dispute{}, dErrors.New(dErrors.CodeValidation, "dispute reason is required")
	}
	if doc.State != domain.StateRejected {
		return domain.Dispute{}, dErrors.Newf(dErrors.CodeInvalidTransition, "disputes are allowed against rejected documents only, document is %s", doc.State)
	}

	if err := s.transition(ctx, doc, domain.StateDisputed, doc.CitizenID, "dispute opened"); err != nil {
		return domain.Dispute{}, err
	}
	if err := s.store.UpdateDocument(ctx, doc); err != nil {
		return domain.Dispute{}, dErrors.Wrap(dErrors.CodeInternal, "persist dispute state", err)
	}

	dispute := domain.NewDispute(doc.ID, doc.TenantID, reason, evidenceNote)
	if err := s.store.CreateDispute(ctx, dispute); err != nil {
		return domain.Dispute{}, dErrors.Wrap(dErrors.CodeInternal, "create dispute", err)
	}
	s.publish(ctx, events.DocumentDisputed, doc, map[string]any{"reason": reason})
	return dispute, nil
}

// Archive retires a finished document. Archival is the only terminal move;
// documents are never deleted.
func (s *Service) Archive(ctx context.Context, documentID, reason string) (*domain.Document, error) {
	doc, err := s.getDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if reason == "" {
		reason = "RETENTION_POLICY"
	}

	if err := s.transition(ctx, doc, domain.StateArchived, "SYSTEM", reason); err != nil {
		return nil, err
	}
	if err := s.store.UpdateDocument(ctx, doc); err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "persist archive", err)
	}
	s.publish(ctx, events.DocumentArchived, doc, map[string]any{"archive_reason": reason})
	return doc, nil
}

// ExpireStale expires documents that sat in WAITING_FOR_REVIEW past the
// tenant's review SLA. Returns the number of documents expired.
func (s *Service) ExpireStale(ctx context.Context, now time.Time) (int, error) {
	expired := 0
	// The cutoff is per tenant, so list everything waiting and filter.
	waiting, err := s.store.ListByStateBefore(ctx, domain.StateWaitingForReview, now)
	if err != nil {
		return 0, dErrors.Wrap(dErrors.CodeInternal, "list waiting documents", err)
	}

	for _, doc := range waiting {
		policy, err := s.store.GetTenantPolicy(ctx, doc.TenantID)
		if err != nil {
			policy = domain.DefaultTenantPolicy(doc.TenantID)
		}
		deadline := doc.UpdatedAt.AddDate(0, 0, policy.ReviewSLADays)
		if now.Before(deadline) {
			continue
		}

		if err := s.transition(ctx, doc, domain.StateExpired, "SYSTEM", "review SLA exceeded"); err != nil {
			s.logger.WarnContext(ctx, "expire transition failed", "document_id", doc.ID, "error", err)
			continue
		}
		if err := s.store.UpdateDocument(ctx, doc); err != nil {
			s.logger.WarnContext(ctx, "persist expiry failed", "document_id", doc.ID, "error", err)
			continue
		}
		s.publish(ctx, events.DocumentRequiresReupload, doc, map[string]any{
			"message":     "review window expired, please resubmit the document",
			"reason_code": "REVIEW_SLA_EXPIRED",
		})
		expired++
	}
	return expired, nil
}

// RegisterOfficer creates or updates a tenant-scoped reviewer account.
func (s *Service) RegisterOfficer(ctx context.Context, officerID, tenantID, role string) (domain.Officer, error) {
	if officerID == "" || tenantID == "" {
		return domain.Officer{}, dErrors.New(dErrors.CodeValidation, "officer_id and tenant_id are required")
	}
	if role == "" {
		role = "REVIEWER"
	}
	officer := domain.Officer{
		OfficerID: officerID,
		TenantID:  tenantID,
		Role:      role,
		Status:    "ACTIVE",
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.PutOfficer(ctx, officer); err != nil {
		return domain.Officer{}, dErrors.Wrap(dErrors.CodeInternal, "register officer", err)
	}
	return officer, nil
}

// Get returns a document by ID.
func (s *Service) Get(ctx context.Context, documentID string) (*domain.Document, error) {
	return s.getDocument(ctx, documentID)
}

// List returns a tenant's documents.
func (s *Service) List(ctx context.Context, tenantID string) ([]*domain.Document, error) {
	return s.store.ListDocuments(ctx, tenantID)
}

// History returns the transition audit trail for a document.
func (s *Service) History(ctx context.Context, documentID string) ([]domain.StateTransition, error) {
	return s.store.ListTransitions(ctx, documentID)
}

// Disputes returns a tenant's disputes.
func (s *Service) Disputes(ctx context.Context, tenantID string) ([]domain.Dispute, error) {
	return s.store.ListDisputes(ctx, tenantID)
}

// SetTenantPolicy stores per-tenant configuration.
func (s *Service) SetTenantPolicy(ctx context.Context, policy domain.TenantPolicy) error {
	if policy.TenantID == "" {
		return dErrors.New(dErrors.CodeValidation, "tenant_id is required")
	}
	if policy.SyncCapacityPerMinute <= 0 {
		policy.SyncCapacityPerMinute = domain.DefaultTenantPolicy(policy.TenantID).SyncCapacityPerMinute
	}
	if policy.ReviewSLADays <= 0 {
		policy.ReviewSLADays = domain.DefaultTenantPolicy(policy.TenantID).ReviewSLADays
	}
	return s.store.PutTenantPolicy(ctx, policy)
}

// TenantPolicy returns the tenant policy, falling back to defaults.
func (s *Service) TenantPolicy(ctx context.Context, tenantID string) domain.TenantPolicy {
	policy, err := s.store.GetTenantPolicy(ctx, tenantID)
	if err != nil {
		return domain.DefaultTenantPolicy(tenantID)
	}
	return policy
}

func (s *Service) failDocument(ctx context.Context, doc *domain.Document, cause error) (*domain.Document, error) {
	if err := s.transition(ctx, doc, domain.StateFailed, "SYSTEM", cause.Error()); err != nil {
		s.logger.ErrorContext(ctx, "failed-state transition rejected", "document_id", doc.ID, "error", err)
	}
	s.metrics.IncrementProcessFailure()
	s.publish(ctx, events.DocumentFailed, doc, map[string]any{"error": cause.Error()})
	return nil, cause
}

func (s *Service) getDocument(ctx context.Context, documentID string) (*domain.Document, error) {
	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// transition validates the move, mutates the document and appends the audit
// record. Callers persist the document afterwards.
func (s *Service) transition(ctx context.Context, doc *domain.Document, target domain.DocumentState, by, reason string) error {
	next, err := domain.Transition(doc.State, target)
	if err != nil {
		return err
	}
	tr := domain.NewStateTransition(doc.ID, doc.TenantID, doc.State, next, by, reason)
	if err := s.store.AppendTransition(ctx, tr); err != nil {
		return dErrors.Wrap(dErrors.CodeInternal, "append transition", err)
	}
	doc.State = next
	doc.UpdatedAt = tr.At
	if err := s.store.UpdateDocument(ctx, doc); err != nil {
		return dErrors.Wrap(dErrors.CodeInternal, "persist transition", err)
	}
	s.metrics.IncrementTransition(string(next))
	return nil
}

// requireOfficer enforces tenant isolation for review actions.
func (s *Service) requireOfficer(ctx context.Context, officerID, tenantID string) error {
	officer, err := s.store.GetOfficer(ctx, officerID)
	if err != nil {
		return dErrors.Newf(dErrors.CodeAccessDenied, "unknown officer %s", officerID)
	}
	if officer.TenantID != tenantID {
		return dErrors.New(dErrors.CodeAccessDenied, "officer does not belong to the document's tenant")
	}
	if officer.Status != "ACTIVE" {
		return dErrors.Newf(dErrors.CodeAccessDenied, "officer %s is not active", officerID)
	}
	return nil
}

func (s *Service) publish(ctx context.Context, eventType string, doc *domain.Document, payload map[string]any) {
	if s.bus == nil {
		return
	}
	env, err := events.NewEnvelope(eventType, doc.TenantID, doc.ID, "SYSTEM", "", payload)
	if err != nil {
		s.logger.ErrorContext(ctx, "event rejected by contract", "event_type", eventType, "error", err)
		return
	}
	if err := s.bus.Publish(ctx, env); err != nil {
		s.logger.WarnContext(ctx, "event publish failed", "event_type", eventType, "error", err)
	}
}

func metadataString(metadata map[string]any, key string) string {
	if v, ok := metadata[key].(string); ok {
		return v
	}
	return ""
}

func metadataPrefilled(metadata map[string]any) map[string]string {
	switch v := metadata["prefilled"].(type) {
	case map[string]string:
		return v
	case map[string]any:
		out := make(map[string]string, len(v))
		for k, val := range v {
			if s, ok := val.(string); ok {
				out[k] = s
			}
		}
		return out
	default:
		return nil
	}
}
