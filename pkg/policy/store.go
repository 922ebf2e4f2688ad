package policy

import (
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// Store persists policy configuration, pending approvals, and a
// tool-execution audit trail in sqlite — distinct from the per-run
// JSON audit.Logger record, this is a durable cross-run ledger of
// every decision the Engine made. Grounded on the teacher's
// pkg/storage/sqlite.go embed-schema/open/migrate pattern (WAL mode,
// foreign keys on, busy timeout), simplified to a single idempotent
// schema file since this store has no accumulated migration history
// to track yet.
type Store struct {
	db *sql.DB
}

// NewStore opens (creating if absent) a sqlite-backed Store at dbPath.
func NewStore(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return nil, fmt.Errorf("policy: create store dir: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("policy: open store: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("policy: enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("policy: set busy_timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("policy: enable foreign_keys: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("policy: apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error { return s.db.Close() }

// SaveConfig persists cfg as the store's single current configuration
// snapshot, replacing any prior snapshot.
func (s *Store) SaveConfig(cfg Config) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("policy: marshal config: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO policy_config (id, config_json, updated_at) VALUES (1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET config_json = excluded.config_json, updated_at = excluded.updated_at`,
		string(data), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("policy: save config: %w", err)
	}
	return nil
}

// LoadConfig returns the persisted configuration snapshot, if any.
func (s *Store) LoadConfig() (Config, bool, error) {
	var data string
	err := s.db.QueryRow(`SELECT config_json FROM policy_config WHERE id = 1`).Scan(&data)
	if err == sql.ErrNoRows {
		return Config{}, false, nil
	}
	if err != nil {
		return Config{}, false, fmt.Errorf("policy: load config: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal([]byte(data), &cfg); err != nil {
		return Config{}, false, fmt.Errorf("policy: unmarshal config: %w", err)
	}
	return cfg, true, nil
}

// ApprovalRequest is one durable pending_approvals row.
type ApprovalRequest struct {
	ID          string
	ToolName    string
	Permission  string
	RunID       string
	StepID      string
	RequestedAt time.Time
	ResolvedAt  *time.Time
	Granted     *bool
}

// RecordApprovalRequest persists a new confirm-pending approval,
// surfaced to an operator out of band (e.g. a CLI or UI polling
// PendingApprovals).
func (s *Store) RecordApprovalRequest(id, toolName, permission, runID, stepID string) error {
	_, err := s.db.Exec(
		`INSERT INTO pending_approvals (id, tool_name, permission, run_id, step_id, requested_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, toolName, permission, runID, stepID, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("policy: record approval request: %w", err)
	}
	return nil
}

// ResolveApproval marks a pending approval resolved, granted or denied.
func (s *Store) ResolveApproval(id string, granted bool) error {
	res, err := s.db.Exec(
		`UPDATE pending_approvals SET resolved_at = ?, granted = ? WHERE id = ? AND resolved_at IS NULL`,
		time.Now().UTC().Format(time.RFC3339Nano), granted, id,
	)
	if err != nil {
		return fmt.Errorf("policy: resolve approval: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("policy: resolve approval: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("policy: approval %q not found or already resolved", id)
	}
	return nil
}

// PendingApprovals returns every approval request awaiting resolution,
// oldest first.
func (s *Store) PendingApprovals() ([]ApprovalRequest, error) {
	rows, err := s.db.Query(
		`SELECT id, tool_name, permission, run_id, step_id, requested_at
		 FROM pending_approvals WHERE resolved_at IS NULL ORDER BY requested_at ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("policy: list pending approvals: %w", err)
	}
	defer rows.Close()

	var out []ApprovalRequest
	for rows.Next() {
		var req ApprovalRequest
		var requestedAt string
		if err := rows.Scan(&req.ID, &req.ToolName, &req.Permission, &req.RunID, &req.StepID, &requestedAt); err != nil {
			return nil, fmt.Errorf("policy: scan pending approval: %w", err)
		}
		t, err := time.Parse(time.RFC3339Nano, requestedAt)
		if err != nil {
			return nil, fmt.Errorf("policy: parse requested_at: %w", err)
		}
		req.RequestedAt = t
		out = append(out, req)
	}
	return out, rows.Err()
}

// RecordToolAudit appends one durable decision record: every Check or
// scope_check outcome the Engine makes, independent of the per-run
// audit.Logger event stream.
func (s *Store) RecordToolAudit(runID, stepID, toolName, permission, decision, detail string) error {
	_, err := s.db.Exec(
		`INSERT INTO tool_audit (run_id, step_id, tool_name, permission, decision, detail, occurred_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID, stepID, toolName, permission, decision, detail, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("policy: record tool audit: %w", err)
	}
	return nil
}
