// Package memory provides the in-memory document store used by tests and
// single-node deployments.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"govdociq/internal/domain"
	"govdociq/internal/pipeline/modules"
	"govdociq/pkg/sentinel"
)

type Store struct {
	mu            sync.RWMutex
	documents     map[string]*domain.Document
	transitions   map[string][]domain.StateTransition
	disputes      map[string][]domain.Dispute
	policies      map[string]domain.TenantPolicy
	officers      map[string]domain.Officer
	rules         map[string]modules.RuleSet
	notifications map[string][]domain.Notification
}

func New() *Store {
	return &Store{
		documents:     make(map[string]*domain.Document),
		transitions:   make(map[string][]domain.StateTransition),
		disputes:      make(map[string][]domain.Dispute),
		policies:      make(map[string]domain.TenantPolicy),
		officers:      make(map[string]domain.Officer),
		rules:         make(map[string]modules.RuleSet),
		notifications: make(map[string][]domain.Notification),
	}
}

func (s *Store) CreateDocument(_ context.Context, doc *domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.documents[doc.ID]; exists {
		return sentinel.ErrConflict
	}
	s.documents[doc.ID] = cloneDocument(doc)
	return nil
}

func (s *Store) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneDocument(doc), nil
}

func (s *Store) UpdateDocument(_ context.Context, doc *domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.documents[doc.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.documents[doc.ID] = cloneDocument(doc)
	return nil
}

func (s *Store) ListDocuments(_ context.Context, tenantID string) ([]*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Document
	for _, doc := range s.documents {
		if doc.TenantID == tenantID {
			out = append(out, cloneDocument(doc))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) ListByStateBefore(_ context.Context, state domain.DocumentState, cutoff time.Time) ([]*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Document
	for _, doc := range s.documents {
		if doc.State == state && doc.UpdatedAt.Before(cutoff) {
			out = append(out, cloneDocument(doc))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	return out, nil
}

func (s *Store) CountByHash(_ context.Context, tenantID, dedupHash, excludeDocumentID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, doc := range s.documents {
		if doc.TenantID == tenantID && doc.DedupHash == dedupHash && doc.ID != excludeDocumentID && dedupHash != "" {
			count++
		}
	}
	return count, nil
}

func (s *Store) CountByHashGlobal(_ context.Context, dedupHash, excludeDocumentID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, doc := range s.documents {
		if doc.DedupHash == dedupHash && doc.ID != excludeDocumentID && dedupHash != "" {
			count++
		}
	}
	return count, nil
}

func (s *Store) AppendTransition(_ context.Context, tr domain.StateTransition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transitions[tr.DocumentID] = append(s.transitions[tr.DocumentID], tr)
	return nil
}

func (s *Store) ListTransitions(_ context.Context, documentID string) ([]domain.StateTransition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.StateTransition(nil), s.transitions[documentID]...), nil
}

func (s *Store) CreateDispute(_ context.Context, d domain.Dispute) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disputes[d.TenantID] = append(s.disputes[d.TenantID], d)
	return nil
}

func (s *Store) ListDisputes(_ context.Context, tenantID string) ([]domain.Dispute, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Dispute(nil), s.disputes[tenantID]...), nil
}

func (s *Store) GetTenantPolicy(_ context.Context, tenantID string) (domain.TenantPolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	policy, ok := s.policies[tenantID]
	if !ok {
		return domain.TenantPolicy{}, sentinel.ErrNotFound
	}
	return policy, nil
}

func (s *Store) PutTenantPolicy(_ context.Context, policy domain.TenantPolicy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policies[policy.TenantID] = policy
	return nil
}

func (s *Store) PutOfficer(_ context.Context, o domain.Officer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.officers[o.OfficerID] = o
	return nil
}

func (s *Store) GetOfficer(_ context.Context, officerID string) (domain.Officer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	officer, ok := s.officers[officerID]
	if !ok {
		return domain.Officer{}, sentinel.ErrNotFound
	}
	return officer, nil
}

func (s *Store) PutRuleSet(_ context.Context, tenantID, docType string, rules modules.RuleSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules[ruleKey(tenantID, docType)] = rules
	return nil
}

func (s *Store) GetRuleSet(_ context.Context, tenantID, docType string) (modules.RuleSet, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rules, ok := s.rules[ruleKey(tenantID, docType)]
	return rules, ok, nil
}

func (s *Store) CreateNotification(_ context.Context, n domain.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications[n.DocumentID] = append(s.notifications[n.DocumentID], n)
	return nil
}

func (s *Store) ListNotifications(_ context.Context, documentID string) ([]domain.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Notification(nil), s.notifications[documentID]...), nil
}

func (s *Store) ListPendingOffline(_ context.Context, tenantID string) ([]*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Document
	for _, doc := range s.documents {
		if doc.TenantID != tenantID || doc.Offline == nil {
			continue
		}
		if doc.Offline.SyncStatus == domain.SyncPending {
			out = append(out, cloneDocument(doc))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) SetSyncStatus(_ context.Context, documentID string, from, to domain.SyncStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.documents[documentID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if doc.Offline == nil || doc.Offline.SyncStatus != from {
		return sentinel.ErrConflict
	}
	doc.Offline.SyncStatus = to
	if to == domain.SyncSynced {
		doc.Offline.SyncedToCentralAt = time.Now().UTC()
	}
	return nil
}

func ruleKey(tenantID, docType string) string {
	return tenantID + ":" + strings.ToUpper(docType)
}

func cloneDocument(doc *domain.Document) *domain.Document {
	out := *doc
	out.Metadata = make(map[string]any, len(doc.Metadata))
	for k, v := range doc.Metadata {
		out.Metadata[k] = v
	}
	if doc.Offline != nil {
		offline := *doc.Offline
		out.Offline = &offline
	}
	return &out
}
