package document

import (
	"context"
	"time"

	"govdociq/internal/domain"
	"govdociq/internal/pipeline/modules"
)

// Store is the persistence contract for documents and their satellite
// records. Implementations: in-memory (tests, single node) and Postgres
// (central deployment).
type Store interface {
	CreateDocument(ctx context.Context, doc *domain.Document) error
	GetDocument(ctx context.Context, id string) (*domain.Document, error)
	UpdateDocument(ctx context.Context, doc *domain.Document) error
	ListDocuments(ctx context.Context, tenantID string) ([]*domain.Document, error)
	ListByStateBefore(ctx context.Context, state domain.DocumentState, cutoff time.Time) ([]*domain.Document, error)

	// Dedup queries exclude the document under analysis so resubmitting the
	// same document never counts itself.
	CountByHash(ctx context.Context, tenantID, dedupHash, excludeDocumentID string) (int, error)
	CountByHashGlobal(ctx context.Context, dedupHash, excludeDocumentID string) (int, error)

	AppendTransition(ctx context.Context, tr domain.StateTransition) error
	ListTransitions(ctx context.Context, documentID string) ([]domain.StateTransition, error)

	CreateDispute(ctx context.Context, d domain.Dispute) error
	ListDisputes(ctx context.Context, tenantID string) ([]domain.Dispute, error)

	GetTenantPolicy(ctx context.Context, tenantID string) (domain.TenantPolicy, error)
	PutTenantPolicy(ctx context.Context, policy domain.TenantPolicy) error

	PutOfficer(ctx context.Context, o domain.Officer) error
	GetOfficer(ctx context.Context, officerID string) (domain.Officer, error)

	PutRuleSet(ctx context.Context, tenantID, docType string, rules modules.RuleSet) error
	GetRuleSet(ctx context.Context, tenantID, docType string) (modules.RuleSet, bool, error)

	CreateNotification(ctx context.Context, n domain.Notification) error
	ListNotifications(ctx context.Context, documentID string) ([]domain.Notification, error)

	// Offline reconciliation. ListPendingOffline returns documents whose sync
	// status is PENDING, oldest first. SetSyncStatus is compare-and-set: it
	// fails with a conflict when the current status is not `from`.
	ListPendingOffline(ctx context.Context, tenantID string) ([]*domain.Document, error)
	SetSyncStatus(ctx context.Context, documentID string, from, to domain.SyncStatus) error
}
