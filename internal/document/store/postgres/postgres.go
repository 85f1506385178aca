// Package postgres persists documents in PostgreSQL for the central
// deployment. Structured columns carry everything queries filter on;
// metadata, offline records and rule sets ride along as JSONB.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"govdociq/internal/domain"
	"govdociq/internal/pipeline/modules"
	"govdociq/pkg/sentinel"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the tables when they do not exist yet. Deployments
// with managed migrations can skip this.
func (s *Store) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			citizen_id TEXT NOT NULL,
			file_name TEXT NOT NULL,
			raw_text TEXT NOT NULL DEFAULT '',
			metadata JSONB NOT NULL DEFAULT '{}',
			state TEXT NOT NULL,
			dedup_hash TEXT NOT NULL DEFAULT '',
			confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
			risk_score DOUBLE PRECISION NOT NULL DEFAULT 0,
			decision TEXT NOT NULL DEFAULT '',
			offline JSONB,
			sync_status TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_tenant ON documents (tenant_id)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_hash ON documents (tenant_id, dedup_hash)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_sync ON documents (tenant_id, sync_status)`,
		`CREATE TABLE IF NOT EXISTS state_transitions (
			id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL,
			tenant_id TEXT NOT NULL,
			from_state TEXT NOT NULL,
			to_state TEXT NOT NULL,
			at TIMESTAMPTZ NOT NULL,
			by_actor TEXT NOT NULL DEFAULT '',
			reason TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transitions_document ON state_transitions (document_id, at)`,
		`CREATE TABLE IF NOT EXISTS disputes (
			id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL,
			tenant_id TEXT NOT NULL,
			reason TEXT NOT NULL,
			evidence_note TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS tenant_policies (
			tenant_id TEXT PRIMARY KEY,
			policy JSONB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS officers (
			officer_id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			role TEXT NOT NULL,
			status TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS rule_sets (
			tenant_id TEXT NOT NULL,
			doc_type TEXT NOT NULL,
			rules JSONB NOT NULL,
			PRIMARY KEY (tenant_id, doc_type)
		)`,
		`CREATE TABLE IF NOT EXISTS notifications (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			document_id TEXT NOT NULL,
			citizen_id TEXT NOT NULL,
			channel TEXT NOT NULL,
			event_type TEXT NOT NULL,
			message TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_document ON notifications (document_id)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

const documentColumns = `id, tenant_id, citizen_id, file_name, raw_text, metadata, state,
	dedup_hash, confidence, risk_score, decision, offline, created_at, updated_at`

func (s *Store) CreateDocument(ctx context.Context, doc *domain.Document) error {
	metadata, offline, syncStatus, err := encodeDocument(doc)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (`+documentColumns+`, sync_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		doc.ID, doc.TenantID, doc.CitizenID, doc.FileName, doc.RawText, metadata,
		string(doc.State), doc.DedupHash, doc.Confidence, doc.RiskScore,
		string(doc.Decision), offline, doc.CreatedAt, doc.UpdatedAt, syncStatus,
	)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (s *Store) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)
	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

func (s *Store) UpdateDocument(ctx context.Context, doc *domain.Document) error {
	metadata, offline, syncStatus, err := encodeDocument(doc)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE documents
		SET metadata = $2, state = $3, dedup_hash = $4, confidence = $5,
			risk_score = $6, decision = $7, offline = $8, sync_status = $9, updated_at = $10
		WHERE id = $1`,
		doc.ID, metadata, string(doc.State), doc.DedupHash, doc.Confidence,
		doc.RiskScore, string(doc.Decision), offline, syncStatus, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Store) ListDocuments(ctx context.Context, tenantID string) ([]*domain.Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+documentColumns+` FROM documents
		WHERE tenant_id = $1 ORDER BY created_at`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()
	return scanDocuments(rows)
}

func (s *Store) ListByStateBefore(ctx context.Context, state domain.DocumentState, cutoff time.Time) ([]*domain.Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+documentColumns+` FROM documents
		WHERE state = $1 AND updated_at < $2 ORDER BY updated_at`, string(state), cutoff)
	if err != nil {
		return nil, fmt.Errorf("list by state: %w", err)
	}
	defer rows.Close()
	return scanDocuments(rows)
}

func (s *Store) CountByHash(ctx context.Context, tenantID, dedupHash, excludeDocumentID string) (int, error) {
	if dedupHash == "" {
		return 0, nil
	}
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM documents
		WHERE tenant_id = $1 AND dedup_hash = $2 AND id <> $3`,
		tenantID, dedupHash, excludeDocumentID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count by hash: %w", err)
	}
	return count, nil
}

func (s *Store) CountByHashGlobal(ctx context.Context, dedupHash, excludeDocumentID string) (int, error) {
	if dedupHash == "" {
		return 0, nil
	}
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM documents
		WHERE dedup_hash = $1 AND id <> $2`,
		dedupHash, excludeDocumentID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count by hash global: %w", err)
	}
	return count, nil
}

func (s *Store) AppendTransition(ctx context.Context, tr domain.StateTransition) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO state_transitions (id, document_id, tenant_id, from_state, to_state, at, by_actor, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		tr.ID, tr.DocumentID, tr.TenantID, string(tr.FromState), string(tr.ToState), tr.At, tr.By, tr.Reason,
	)
	if err != nil {
		return fmt.Errorf("append transition: %w", err)
	}
	return nil
}

func (s *Store) ListTransitions(ctx context.Context, documentID string) ([]domain.StateTransition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, tenant_id, from_state, to_state, at, by_actor, reason
		FROM state_transitions WHERE document_id = $1 ORDER BY at`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list transitions: %w", err)
	}
	defer rows.Close()

	var out []domain.StateTransition
	for rows.Next() {
		var tr domain.StateTransition
		var from, to string
		if err := rows.Scan(&tr.ID, &tr.DocumentID, &tr.TenantID, &from, &to, &tr.At, &tr.By, &tr.Reason); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		tr.FromState = domain.DocumentState(from)
		tr.ToState = domain.DocumentState(to)
		out = append(out, tr)
	}
	return out, rows.Err()
}

func (s *Store) CreateDispute(ctx context.Context, d domain.Dispute) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO disputes (id, document_id, tenant_id, reason, evidence_note, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		d.ID, d.DocumentID, d.TenantID, d.Reason, d.EvidenceNote, d.Status, d.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create dispute: %w", err)
	}
	return nil
}

func (s *Store) ListDisputes(ctx context.Context, tenantID string) ([]domain.Dispute, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, tenant_id, reason, evidence_note, status, created_at
		FROM disputes WHERE tenant_id = $1 ORDER BY created_at`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list disputes: %w", err)
	}
	defer rows.Close()

	var out []domain.Dispute
	for rows.Next() {
		var d domain.Dispute
		if err := rows.Scan(&d.ID, &d.DocumentID, &d.TenantID, &d.Reason, &d.EvidenceNote, &d.Status, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan dispute: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) GetTenantPolicy(ctx context.Context, tenantID string) (domain.TenantPolicy, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, `SELECT policy FROM tenant_policies WHERE tenant_id = $1`, tenantID).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.TenantPolicy{}, sentinel.ErrNotFound
		}
		return domain.TenantPolicy{}, fmt.Errorf("get tenant policy: %w", err)
	}
	var policy domain.TenantPolicy
	if err := json.Unmarshal(raw, &policy); err != nil {
		return domain.TenantPolicy{}, fmt.Errorf("decode tenant policy: %w", err)
	}
	return policy, nil
}

func (s *Store) PutTenantPolicy(ctx context.Context, policy domain.TenantPolicy) error {
	raw, err := json.Marshal(policy)
	if err != nil {
		return fmt.Errorf("encode tenant policy: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tenant_policies (tenant_id, policy) VALUES ($1, $2)
		ON CONFLICT (tenant_id) DO UPDATE SET policy = EXCLUDED.policy`,
		policy.TenantID, raw,
	)
	if err != nil {
		return fmt.Errorf("put tenant policy: %w", err)
	}
	return nil
}

func (s *Store) PutOfficer(ctx context.Context, o domain.Officer) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO officers (officer_id, tenant_id, role, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (officer_id) DO UPDATE SET tenant_id = EXCLUDED.tenant_id,
			role = EXCLUDED.role, status = EXCLUDED.status`,
		o.OfficerID, o.TenantID, o.Role, o.Status, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("put officer: %w", err)
	}
	return nil
}

func (s *Store) GetOfficer(ctx context.Context, officerID string) (domain.Officer, error) {
	var o domain.Officer
	err := s.db.QueryRowContext(ctx, `
		SELECT officer_id, tenant_id, role, status, created_at
		FROM officers WHERE officer_id = $1`, officerID).
		Scan(&o.OfficerID, &o.TenantID, &o.Role, &o.Status, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Officer{}, sentinel.ErrNotFound
		}
		return domain.Officer{}, fmt.Errorf("get officer: %w", err)
	}
	return o, nil
}

func (s *Store) PutRuleSet(ctx context.Context, tenantID, docType string, rules modules.RuleSet) error {
	raw, err := json.Marshal(rules)
	if err != nil {
		return fmt.Errorf("encode rule set: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO rule_sets (tenant_id, doc_type, rules) VALUES ($1, $2, $3)
		ON CONFLICT (tenant_id, doc_type) DO UPDATE SET rules = EXCLUDED.rules`,
		tenantID, strings.ToUpper(docType), raw,
	)
	if err != nil {
		return fmt.Errorf("put rule set: %w", err)
	}
	return nil
}

func (s *Store) GetRuleSet(ctx context.Context, tenantID, docType string) (modules.RuleSet, bool, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT rules FROM rule_sets WHERE tenant_id = $1 AND doc_type = $2`,
		tenantID, strings.ToUpper(docType)).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return modules.RuleSet{}, false, nil
		}
		return modules.RuleSet{}, false, fmt.Errorf("get rule set: %w", err)
	}
	var rules modules.RuleSet
	if err := json.Unmarshal(raw, &rules); err != nil {
		return modules.RuleSet{}, false, fmt.Errorf("decode rule set: %w", err)
	}
	return rules, true, nil
}

func (s *Store) CreateNotification(ctx context.Context, n domain.Notification) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, tenant_id, document_id, citizen_id, channel, event_type, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		n.ID, n.TenantID, n.DocumentID, n.CitizenID, n.Channel, n.EventType, n.Message, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

func (s *Store) ListNotifications(ctx context.Context, documentID string) ([]domain.Notification, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, document_id, citizen_id, channel, event_type, message, created_at
		FROM notifications WHERE document_id = $1 ORDER BY created_at`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []domain.Notification
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.ID, &n.TenantID, &n.DocumentID, &n.CitizenID, &n.Channel, &n.EventType, &n.Message, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *Store) ListPendingOffline(ctx context.Context, tenantID string) ([]*domain.Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+documentColumns+` FROM documents
		WHERE tenant_id = $1 AND sync_status = $2 ORDER BY created_at`,
		tenantID, string(domain.SyncPending))
	if err != nil {
		return nil, fmt.Errorf("list pending offline: %w", err)
	}
	defer rows.Close()
	return scanDocuments(rows)
}

// SetSyncStatus is compare-and-set on the denormalized sync_status column
// plus the embedded offline record, so concurrent sync workers cannot both
// claim a document.
func (s *Store) SetSyncStatus(ctx context.Context, documentID string, from, to domain.SyncStatus) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE documents
		SET sync_status = $3,
			offline = jsonb_set(offline, '{SyncStatus}', to_jsonb($3::text))
		WHERE id = $1 AND sync_status = $2 AND offline IS NOT NULL`,
		documentID, string(from), string(to),
	)
	if err != nil {
		return fmt.Errorf("set sync status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set sync status: %w", err)
	}
	if affected == 0 {
		var exists bool
		if err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM documents WHERE id = $1)`, documentID).Scan(&exists); err != nil {
			return fmt.Errorf("set sync status: %w", err)
		}
		if !exists {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrConflict
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var (
		doc             domain.Document
		metadata        []byte
		offline         []byte
		state, decision string
	)
	err := row.Scan(&doc.ID, &doc.TenantID, &doc.CitizenID, &doc.FileName, &doc.RawText,
		&metadata, &state, &doc.DedupHash, &doc.Confidence, &doc.RiskScore,
		&decision, &offline, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	doc.State = domain.DocumentState(state)
	doc.Decision = domain.Decision(decision)
	doc.Metadata = map[string]any{}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &doc.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}
	if len(offline) > 0 {
		var record domain.OfflineSyncRecord
		if err := json.Unmarshal(offline, &record); err != nil {
			return nil, fmt.Errorf("decode offline record: %w", err)
		}
		doc.Offline = &record
	}
	return &doc, nil
}

func scanDocuments(rows *sql.Rows) ([]*domain.Document, error) {
	var out []*domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

func encodeDocument(doc *domain.Document) (metadata, offline []byte, syncStatus string, err error) {
	metadata, err = json.Marshal(doc.Metadata)
	if err != nil {
		return nil, nil, "", fmt.Errorf("encode metadata: %w", err)
	}
	if doc.Offline != nil {
		offline, err = json.Marshal(doc.Offline)
		if err != nil {
			return nil, nil, "", fmt.Errorf("encode offline record: %w", err)
		}
		syncStatus = string(doc.Offline.SyncStatus)
	}
	return metadata, offline, syncStatus, nil
}
