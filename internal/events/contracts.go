// Package events defines the typed event contract every publisher in the
// platform goes through. Event types and their required payload keys are
// fixed here; a payload that misses a required key never reaches the bus.
package events

import (
	"strings"
	"time"

	dErrors "govdociq/pkg/domain-errors"
)

// Core lifecycle event types.
const (
	DocumentReceived         = "document.received"
	DocumentPreprocessed     = "document.preprocessed"
	OCRCompleted             = "ocr.completed"
	BranchStarted            = "branch.started"
	DocumentMerged           = "document.merged"
	DocumentFlaggedForReview = "document.flagged.for_review"
	ReviewAssignmentCreated  = "review.assignment.created"
	ReviewStarted            = "review.started"
	ReviewCompleted          = "review.completed"
	ReviewEscalated          = "review.escalated"
	DocumentApproved         = "document.approved"
	DocumentRejected         = "document.rejected"
	DocumentDisputed         = "document.disputed"
	DocumentFraudFlagged     = "document.fraud_flagged"
	DocumentRequiresReupload = "document.requires_reupload"
	DocumentArchived         = "document.archived"
	DocumentFailed           = "document.failed"
	OfflineConflictDetected  = "offline.conflict.detected"
	OfflineQueueOverflow     = "offline.queue_overflow"
	NotificationSent         = "notification.sent"
	WebhookQueued            = "webhook.queued"
	CorrectionLogged         = "correction.logged"
)

const branchCompletedPrefix = "branch.completed."

// branchModules are the pipeline branches that publish per-branch completion
// events.
var branchModules = map[string]struct{}{
	"classification":               {},
	"dedup_cross_submission":       {},
	"stamps_seals":                 {},
	"tamper_forensics":             {},
	"fraud_behavioral_engine":      {},
	"issuer_registry_verification": {},
}

// BranchCompleted returns the completion event type for a branch module.
func BranchCompleted(module string) string {
	return branchCompletedPrefix + module
}

var requiredKeys = map[string][]string{
	DocumentReceived:         {"file_name"},
	DocumentPreprocessed:     {"quality_score", "dedup_hash"},
	OCRCompleted:             {"ocr_confidence"},
	BranchStarted:            {"modules"},
	DocumentMerged:           {"confidence", "risk_score"},
	DocumentFlaggedForReview: {"reason_codes"},
	ReviewAssignmentCreated:  {"assignment_id", "queue_name", "policy"},
	ReviewStarted:            {"review_level"},
	ReviewCompleted:          {"decision"},
	ReviewEscalated:          {"escalation_level", "assignee_role"},
	DocumentApproved:         {"decision"},
	DocumentRejected:         {"decision", "reason_codes"},
	DocumentDisputed:         {"reason"},
	DocumentFraudFlagged:     {"risk_level", "aggregate_fraud_risk_score"},
	DocumentRequiresReupload: {"message", "reason_code"},
	DocumentArchived:         {"archive_reason"},
	DocumentFailed:           {"error"},
	OfflineConflictDetected:  {"local_provisional", "central_decision"},
	OfflineQueueOverflow:     {"backlog_size", "sync_capacity_per_minute"},
	NotificationSent:         {"channels", "message"},
	WebhookQueued:            {"event_type", "outbox_id"},
	CorrectionLogged:         {"field_name", "officer_id", "gate_status"},
}

// Envelope is the wire form every event shares.
type Envelope struct {
	EventType     string         `json:"event_type"`
	TenantID      string         `json:"tenant_id"`
	DocumentID    string         `json:"document_id"`
	ActorType     string         `json:"actor_type"`
	ActorID       string         `json:"actor_id,omitempty"`
	Payload       map[string]any `json:"payload"`
	Reason        string         `json:"reason,omitempty"`
	PolicyVersion int            `json:"policy_version,omitempty"`
	ModelVersions map[string]any `json:"model_versions,omitempty"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	CausationID   string         `json:"causation_id,omitempty"`
	OccurredAt    time.Time      `json:"occurred_at"`
}

// IsValidType reports whether the event type belongs to the contract.
func IsValidType(eventType string) bool {
	if _, ok := requiredKeys[eventType]; ok {
		return true
	}
	if module, ok := strings.CutPrefix(eventType, branchCompletedPrefix); ok {
		_, known := branchModules[module]
		return known
	}
	return false
}

// ValidatePayload checks the payload carries every key the event type
// requires. Branch completion events all require module and status.
func ValidatePayload(eventType string, payload map[string]any) error {
	if !IsValidType(eventType) {
		return dErrors.Newf(dErrors.CodeValidation, "unsupported event type: %s", eventType)
	}

	required, ok := requiredKeys[eventType]
	if !ok {
		required = []string{"module", "status"}
	}

	var missing []string
	for _, key := range required {
		if _, present := payload[key]; !present {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return dErrors.Newf(dErrors.CodeValidation, "event payload missing required keys for %s: %v", eventType, missing)
	}
	return nil
}

// NewEnvelope validates the payload and builds the envelope.
func NewEnvelope(eventType, tenantID, documentID, actorType, actorID string, payload map[string]any) (Envelope, error) {
	if err := ValidatePayload(eventType, payload); err != nil {
		return Envelope{}, err
	}
	if payload == nil {
		payload = map[string]any{}
	}
	return Envelope{
		EventType:  eventType,
		TenantID:   tenantID,
		DocumentID: documentID,
		ActorType:  actorType,
		ActorID:    actorID,
		Payload:    payload,
		OccurredAt: time.Now().UTC(),
	}, nil
}
