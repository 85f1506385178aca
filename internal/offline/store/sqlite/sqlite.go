// Package sqlite is the local outbox a disconnected field node writes
// captures to. Records accumulate on disk until connectivity returns and the
// node ships them to the central intake, which re-runs every document.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"govdociq/internal/domain"
	"govdociq/pkg/sentinel"
)

// Capture is one field-node submission awaiting shipment.
type Capture struct {
	ID                  string
	TenantID            string
	CitizenID           string
	FileName            string
	RawText             string
	NodeID              string
	OfficerID           string
	ProvisionalDecision domain.Decision
	ModelVersions       map[string]string
	Metadata            map[string]any
	Shipped             bool
	CapturedAt          time.Time
	ShippedAt           *time.Time
}

type Store struct {
	db *sql.DB
}

// Open opens (or creates) the node's local database file.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// One writer at a time; sqlite handles its own file locking poorly
	// under concurrent connections.
	db.SetMaxOpenConns(1)
	return &Store{db: db}, nil
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS captures (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			citizen_id TEXT NOT NULL,
			file_name TEXT NOT NULL,
			raw_text TEXT NOT NULL DEFAULT '',
			node_id TEXT NOT NULL DEFAULT '',
			officer_id TEXT NOT NULL DEFAULT '',
			provisional_decision TEXT NOT NULL DEFAULT '',
			model_versions TEXT NOT NULL DEFAULT '{}',
			metadata TEXT NOT NULL DEFAULT '{}',
			shipped INTEGER NOT NULL DEFAULT 0,
			captured_at TIMESTAMP NOT NULL,
			shipped_at TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_captures_unshipped ON captures (shipped, captured_at)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (s *Store) Enqueue(ctx context.Context, c *Capture) error {
	modelVersions, err := json.Marshal(c.ModelVersions)
	if err != nil {
		return fmt.Errorf("encode model versions: %w", err)
	}
	metadata, err := json.Marshal(c.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO captures (id, tenant_id, citizen_id, file_name, raw_text, node_id, officer_id,
			provisional_decision, model_versions, metadata, shipped, captured_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?)`,
		c.ID, c.TenantID, c.CitizenID, c.FileName, c.RawText, c.NodeID, c.OfficerID,
		string(c.ProvisionalDecision), string(modelVersions), string(metadata), c.CapturedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("enqueue capture %s: %w", c.ID, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*Capture, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, citizen_id, file_name, raw_text, node_id, officer_id,
			provisional_decision, model_versions, metadata, shipped, captured_at, shipped_at
		 FROM captures WHERE id = ?`, id)
	c, err := scanCapture(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get capture %s: %w", id, err)
	}
	return c, nil
}

// ListUnshipped returns captures awaiting shipment, oldest first, capped at
// limit. limit <= 0 means no cap.
func (s *Store) ListUnshipped(ctx context.Context, limit int) ([]*Capture, error) {
	query := `SELECT id, tenant_id, citizen_id, file_name, raw_text, node_id, officer_id,
			provisional_decision, model_versions, metadata, shipped, captured_at, shipped_at
		 FROM captures WHERE shipped = 0 ORDER BY captured_at`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list unshipped: %w", err)
	}
	defer rows.Close()

	var out []*Capture
	for rows.Next() {
		c, err := scanCapture(rows)
		if err != nil {
			return nil, fmt.Errorf("scan capture: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// MarkShipped records that the central intake accepted the capture.
func (s *Store) MarkShipped(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE captures SET shipped = 1, shipped_at = ? WHERE id = ? AND shipped = 0`,
		at.UTC(), id)
	if err != nil {
		return fmt.Errorf("mark shipped %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark shipped %s: %w", id, err)
	}
	if affected == 0 {
		if _, err := s.Get(ctx, id); err != nil {
			return err
		}
		return sentinel.ErrConflict
	}
	return nil
}

// PurgeShipped deletes shipped captures older than the cutoff and reports how
// many were removed. Field nodes run this to keep the local file small.
func (s *Store) PurgeShipped(ctx context.Context, olderThan time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM captures WHERE shipped = 1 AND shipped_at < ?`, olderThan.UTC())
	if err != nil {
		return 0, fmt.Errorf("purge shipped: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge shipped: %w", err)
	}
	return int(affected), nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCapture(row rowScanner) (*Capture, error) {
	var (
		c             Capture
		decision      string
		modelVersions string
		metadata      string
		shipped       int
		shippedAt     sql.NullTime
	)
	err := row.Scan(&c.ID, &c.TenantID, &c.CitizenID, &c.FileName, &c.RawText, &c.NodeID,
		&c.OfficerID, &decision, &modelVersions, &metadata, &shipped, &c.CapturedAt, &shippedAt)
	if err != nil {
		return nil, err
	}
	c.ProvisionalDecision = domain.Decision(decision)
	c.Shipped = shipped != 0
	if shippedAt.Valid {
		t := shippedAt.Time
		c.ShippedAt = &t
	}
	if err := json.Unmarshal([]byte(modelVersions), &c.ModelVersions); err != nil {
		return nil, fmt.Errorf("decode model versions: %w", err)
	}
	if err := json.Unmarshal([]byte(metadata), &c.Metadata); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return &c, nil
}
