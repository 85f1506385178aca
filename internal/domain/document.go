// Package domain holds the core entities of the document intelligence
// platform. Keep it free of storage and transport concerns so every layer
// can depend on it.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Decision enumerates the outcomes the fusion engine can produce.
type Decision string

const (
	DecisionApprove Decision = "APPROVE"
	DecisionReject  Decision = "REJECT"
	DecisionReview  Decision = "REVIEW"
)

// SyncStatus tracks an offline-submitted document through reconciliation.
// PENDING -> SYNCED is the happy path; PENDING -> QUEUE_OVERFLOW when the
// backlog exceeds sync capacity. SYNCED is terminal.
type SyncStatus string

const (
	SyncPending       SyncStatus = "PENDING"
	SyncQueueOverflow SyncStatus = "QUEUE_OVERFLOW"
	SyncSynced        SyncStatus = "SYNCED"
)

// Document is the unit of work: one submitted government document owned by
// exactly one tenant. Mutated only through state-machine-gated operations;
// never deleted, only transitioned to ARCHIVED.
type Document struct {
	ID        string
	TenantID  string
	CitizenID string
	FileName  string
	RawText   string
	Metadata  map[string]any

	State      DocumentState
	DedupHash  string
	Confidence float64
	RiskScore  float64
	Decision   Decision

	Offline   *OfflineSyncRecord
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewDocument constructs a document in the RECEIVED state.
func NewDocument(tenantID, citizenID, fileName, rawText string, metadata map[string]any) *Document {
	now := time.Now().UTC()
	if metadata == nil {
		metadata = map[string]any{}
	}
	return &Document{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		CitizenID: citizenID,
		FileName:  fileName,
		RawText:   rawText,
		Metadata:  metadata,
		State:     StateReceived,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// OfflineSyncRecord tags a document submitted from an offline field node.
// The provisional decision carries no legal standing; the central re-run is
// the source of truth.
type OfflineSyncRecord struct {
	ProcessedOffline    bool
	OfflineNodeID       string
	ModelVersions       map[string]string
	ProvisionalDecision Decision
	SyncStatus          SyncStatus
	ProcessedOfflineAt  time.Time
	SyncedToCentralAt   time.Time
}

// StateTransition is one append-only audit record per lifecycle move.
type StateTransition struct {
	ID         string
	DocumentID string
	TenantID   string
	FromState  DocumentState
	ToState    DocumentState
	At         time.Time
	By         string
	Reason     string
}

// NewStateTransition records a gated state change for the audit history.
func NewStateTransition(documentID, tenantID string, from, to DocumentState, by, reason string) StateTransition {
	return StateTransition{
		ID:         uuid.NewString(),
		DocumentID: documentID,
		TenantID:   tenantID,
		FromState:  from,
		ToState:    to,
		At:         time.Now().UTC(),
		By:         by,
		Reason:     reason,
	}
}

// Dispute is a citizen challenge against a rejection.
type Dispute struct {
	ID           string
	DocumentID   string
	TenantID     string
	Reason       string
	EvidenceNote string
	Status       string
	CreatedAt    time.Time
}

// NewDispute opens a dispute in the OPEN status.
func NewDispute(documentID, tenantID, reason, evidenceNote string) Dispute {
	return Dispute{
		ID:           uuid.NewString(),
		DocumentID:   documentID,
		TenantID:     tenantID,
		Reason:       reason,
		EvidenceNote: evidenceNote,
		Status:       "OPEN",
		CreatedAt:    time.Now().UTC(),
	}
}

// TenantPolicy captures per-department configuration the pipeline consults.
type TenantPolicy struct {
	TenantID                string
	CrossTenantFraudEnabled bool
	SMSEnabled              bool
	EmailEnabled            bool
	PortalEnabled           bool
	WhatsAppEnabled         bool
	ReviewSLADays           int
	SyncCapacityPerMinute   int
}

// DefaultTenantPolicy mirrors the defaults applied when a tenant has no
// explicit policy row.
func DefaultTenantPolicy(tenantID string) TenantPolicy {
	return TenantPolicy{
		TenantID:              tenantID,
		SMSEnabled:            true,
		EmailEnabled:          true,
		PortalEnabled:         true,
		ReviewSLADays:         3,
		SyncCapacityPerMinute: 50,
	}
}

// Officer is a tenant-scoped reviewer/service account.
type Officer struct {
	OfficerID string
	TenantID  string
	Role      string
	Status    string
	CreatedAt time.Time
}

// Notification is a persisted outbound message to a citizen.
type Notification struct {
	ID         string
	TenantID   string
	DocumentID string
	CitizenID  string
	Channel    string
	EventType  string
	Message    string
	CreatedAt  time.Time
}
