package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	delegation "github.com/armatrix/agent-delegation-go"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a durable AgentRegistry/EdgeStore/TraceRecorder backed by a
// single SQLite database file.
//
// Edge mutations take writeMu, the single-writer section: the cycle guard's
// read of the tenant's edge set and the insertion commit inside one
// transaction under the lock, so concurrent inserts serialize and the guard
// never races a graph state another writer already changed.
type SQLiteStore struct {
	db      *sql.DB
	writeMu sync.Mutex
	logger  zerolog.Logger
}

var (
	_ delegation.AgentRegistry = (*SQLiteStore)(nil)
	_ delegation.EdgeStore     = (*SQLiteStore)(nil)
	_ delegation.TraceRecorder = (*SQLiteStore)(nil)
)

// SQLiteOption configures a SQLiteStore.
type SQLiteOption func(*SQLiteStore)

// WithSQLiteLogger sets the store's structured logger. The default discards
// everything.
func WithSQLiteLogger(l zerolog.Logger) SQLiteOption {
	return func(s *SQLiteStore) { s.logger = l }
}

const schema = `
CREATE TABLE IF NOT EXISTS agents (
	tenant_id  TEXT NOT NULL,
	id         TEXT NOT NULL,
	tier       TEXT NOT NULL,
	name       TEXT NOT NULL,
	namespaces TEXT NOT NULL,
	policy     TEXT NOT NULL,
	enabled    INTEGER NOT NULL DEFAULT 1,
	PRIMARY KEY (tenant_id, id)
);

CREATE TABLE IF NOT EXISTS edges (
	id               TEXT PRIMARY KEY,
	tenant_id        TEXT NOT NULL,
	parent_agent_id  TEXT NOT NULL,
	child_agent_id   TEXT NOT NULL,
	delegation_mode  TEXT NOT NULL,
	budget_share     TEXT NOT NULL,
	max_depth        INTEGER NOT NULL,
	tool_add         TEXT NOT NULL,
	tool_remove      TEXT NOT NULL,
	namespace_suffix TEXT NOT NULL DEFAULT '',
	UNIQUE (tenant_id, parent_agent_id, child_agent_id)
);
CREATE INDEX IF NOT EXISTS idx_edges_from ON edges (tenant_id, parent_agent_id);
CREATE INDEX IF NOT EXISTS idx_edges_to   ON edges (tenant_id, child_agent_id);

CREATE TABLE IF NOT EXISTS traces (
	id         TEXT PRIMARY KEY,
	tenant_id  TEXT NOT NULL,
	session_id TEXT NOT NULL,
	created_at TEXT NOT NULL,
	payload    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_traces_tenant ON traces (tenant_id, created_at);
`

// OpenSQLite opens (creating if needed) the database at path and applies the
// schema.
func OpenSQLite(path string, opts ...SQLiteOption) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	s := &SQLiteStore{db: db, logger: zerolog.Nop()}
	for _, fn := range opts {
		fn(s)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- AgentRegistry ---

// PutAgent creates or replaces an agent record after validation.
func (s *SQLiteStore) PutAgent(ctx context.Context, agent *delegation.Agent) error {
	if err := agent.Validate(); err != nil {
		return err
	}
	namespaces, err := json.Marshal(agent.AssignedNamespaces)
	if err != nil {
		return fmt.Errorf("marshal namespaces: %w", err)
	}
	policy, err := json.Marshal(agent.Policy)
	if err != nil {
		return fmt.Errorf("marshal policy: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO agents (tenant_id, id, tier, name, namespaces, policy, enabled)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id, id) DO UPDATE SET
			tier = excluded.tier,
			name = excluded.name,
			namespaces = excluded.namespaces,
			policy = excluded.policy,
			enabled = excluded.enabled`,
		agent.TenantID, agent.ID, string(agent.Tier), agent.Name,
		string(namespaces), string(policy), boolToInt(agent.Enabled))
	return err
}

// DisableAgent soft-deletes an agent. Its record and edges persist for
// audit history.
func (s *SQLiteStore) DisableAgent(ctx context.Context, tenantID, agentID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE agents SET enabled = 0 WHERE tenant_id = ? AND id = ?`, tenantID, agentID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return delegation.ErrAgentNotFound
	}
	return nil
}

func (s *SQLiteStore) GetAgent(ctx context.Context, tenantID, agentID string) (*delegation.Agent, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT tenant_id, id, tier, name, namespaces, policy, enabled
		FROM agents WHERE tenant_id = ? AND id = ?`, tenantID, agentID)
	agent, err := scanAgent(row)
	if err == sql.ErrNoRows {
		return nil, delegation.ErrAgentNotFound
	}
	return agent, err
}

func (s *SQLiteStore) ListEnabledAgents(ctx context.Context, tenantID string) ([]*delegation.Agent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tenant_id, id, tier, name, namespaces, policy, enabled
		FROM agents WHERE tenant_id = ? AND enabled = 1 ORDER BY id`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*delegation.Agent
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, agent)
	}
	return out, rows.Err()
}

// --- EdgeStore ---

// InsertEdge validates, normalizes, and atomically inserts an edge. The
// guard's read and the insert commit in one transaction inside the
// single-writer section.
func (s *SQLiteStore) InsertEdge(ctx context.Context, edge *delegation.Edge) error {
	edge.Normalize()
	if err := edge.Validate(); err != nil {
		return err
	}
	if edge.ID == "" {
		edge.ID = uuid.NewString()
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	existing, err := queryEdges(ctx, tx, `
		SELECT id, tenant_id, parent_agent_id, child_agent_id, delegation_mode,
		       budget_share, max_depth, tool_add, tool_remove, namespace_suffix
		FROM edges WHERE tenant_id = ? ORDER BY id`, edge.TenantID)
	if err != nil {
		return err
	}
	for _, e := range existing {
		if e.ParentAgentID == edge.ParentAgentID && e.ChildAgentID == edge.ChildAgentID {
			return ErrDuplicateEdge
		}
	}
	if delegation.WouldCreateCycle(existing, edge.ParentAgentID, edge.ChildAgentID) {
		s.logger.Debug().
			Str("tenant_id", edge.TenantID).
			Str("parent", edge.ParentAgentID).
			Str("child", edge.ChildAgentID).
			Msg("edge rejected: cycle")
		return delegation.ErrCycleRejected
	}

	toolAdd, toolRemove, err := marshalDelta(edge.ToolDelta)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO edges (id, tenant_id, parent_agent_id, child_agent_id,
			delegation_mode, budget_share, max_depth, tool_add, tool_remove, namespace_suffix)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		edge.ID, edge.TenantID, edge.ParentAgentID, edge.ChildAgentID,
		string(edge.Mode), edge.BudgetShare.String(), edge.MaxDepth,
		toolAdd, toolRemove, edge.NamespaceSuffix); err != nil {
		return err
	}
	return tx.Commit()
}

// UpdateEdge replaces an edge's mutable attributes in place. Endpoints are
// immutable; re-parenting is a delete plus insert so the guard always runs.
func (s *SQLiteStore) UpdateEdge(ctx context.Context, edge *delegation.Edge) error {
	edge.Normalize()
	if err := edge.Validate(); err != nil {
		return err
	}
	toolAdd, toolRemove, err := marshalDelta(edge.ToolDelta)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE edges SET delegation_mode = ?, budget_share = ?, max_depth = ?,
			tool_add = ?, tool_remove = ?, namespace_suffix = ?
		WHERE tenant_id = ? AND id = ?
			AND parent_agent_id = ? AND child_agent_id = ?`,
		string(edge.Mode), edge.BudgetShare.String(), edge.MaxDepth,
		toolAdd, toolRemove, edge.NamespaceSuffix,
		edge.TenantID, edge.ID, edge.ParentAgentID, edge.ChildAgentID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return delegation.ErrEdgeNotFound
	}
	return nil
}

// DeleteEdge hard-deletes an edge. No tombstone remains.
func (s *SQLiteStore) DeleteEdge(ctx context.Context, tenantID, edgeID string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM edges WHERE tenant_id = ? AND id = ?`, tenantID, edgeID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return delegation.ErrEdgeNotFound
	}
	return nil
}

func (s *SQLiteStore) ListEdges(ctx context.Context, tenantID string) ([]delegation.Edge, error) {
	return queryEdges(ctx, s.db, `
		SELECT id, tenant_id, parent_agent_id, child_agent_id, delegation_mode,
		       budget_share, max_depth, tool_add, tool_remove, namespace_suffix
		FROM edges WHERE tenant_id = ? ORDER BY id`, tenantID)
}

func (s *SQLiteStore) EdgesFrom(ctx context.Context, tenantID, parentAgentID string) ([]delegation.Edge, error) {
	return queryEdges(ctx, s.db, `
		SELECT id, tenant_id, parent_agent_id, child_agent_id, delegation_mode,
		       budget_share, max_depth, tool_add, tool_remove, namespace_suffix
		FROM edges WHERE tenant_id = ? AND parent_agent_id = ? ORDER BY id`, tenantID, parentAgentID)
}

func (s *SQLiteStore) EdgesTo(ctx context.Context, tenantID, childAgentID string) ([]delegation.Edge, error) {
	return queryEdges(ctx, s.db, `
		SELECT id, tenant_id, parent_agent_id, child_agent_id, delegation_mode,
		       budget_share, max_depth, tool_add, tool_remove, namespace_suffix
		FROM edges WHERE tenant_id = ? AND child_agent_id = ? ORDER BY id`, tenantID, childAgentID)
}

// --- TraceRecorder ---

// Append stores a trace as a JSON payload row. Traces are append-only.
func (s *SQLiteStore) Append(ctx context.Context, trace *delegation.Trace) error {
	payload, err := json.Marshal(trace)
	if err != nil {
		return fmt.Errorf("marshal trace: %w", err)
	}
	id := trace.ID
	if id == "" {
		id = uuid.NewString()
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO traces (id, tenant_id, session_id, created_at, payload)
		VALUES (?, ?, ?, ?, ?)`,
		id, trace.TenantID, trace.SessionID,
		trace.CreatedAt.UTC().Format(time.RFC3339Nano), string(payload))
	return err
}

// Traces returns the tenant's traces in append order.
func (s *SQLiteStore) Traces(ctx context.Context, tenantID string) ([]delegation.Trace, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM traces WHERE tenant_id = ? ORDER BY created_at, id`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []delegation.Trace
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var trace delegation.Trace
		if err := json.Unmarshal([]byte(payload), &trace); err != nil {
			return nil, fmt.Errorf("unmarshal trace: %w", err)
		}
		out = append(out, trace)
	}
	return out, rows.Err()
}

// --- helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAgent(row rowScanner) (*delegation.Agent, error) {
	var agent delegation.Agent
	var tier, namespaces, policy string
	var enabled int
	if err := row.Scan(&agent.TenantID, &agent.ID, &tier, &agent.Name, &namespaces, &policy, &enabled); err != nil {
		return nil, err
	}
	agent.Tier = delegation.Tier(tier)
	agent.Enabled = enabled != 0
	if err := json.Unmarshal([]byte(namespaces), &agent.AssignedNamespaces); err != nil {
		return nil, fmt.Errorf("unmarshal namespaces: %w", err)
	}
	if err := json.Unmarshal([]byte(policy), &agent.Policy); err != nil {
		return nil, fmt.Errorf("unmarshal policy: %w", err)
	}
	return &agent, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func queryEdges(ctx context.Context, q querier, query string, args ...any) ([]delegation.Edge, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []delegation.Edge
	for rows.Next() {
		var e delegation.Edge
		var mode, share, toolAdd, toolRemove string
		if err := rows.Scan(&e.ID, &e.TenantID, &e.ParentAgentID, &e.ChildAgentID,
			&mode, &share, &e.MaxDepth, &toolAdd, &toolRemove, &e.NamespaceSuffix); err != nil {
			return nil, err
		}
		e.Mode = delegation.DelegationMode(mode)
		e.BudgetShare, err = decimal.NewFromString(share)
		if err != nil {
			return nil, fmt.Errorf("parse budget share: %w", err)
		}
		if err := unmarshalList(toolAdd, &e.ToolDelta.Add); err != nil {
			return nil, err
		}
		if err := unmarshalList(toolRemove, &e.ToolDelta.Remove); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func marshalDelta(delta delegation.ToolDelta) (string, string, error) {
	add, err := json.Marshal(emptyIfNil(delta.Add))
	if err != nil {
		return "", "", fmt.Errorf("marshal tool delta: %w", err)
	}
	remove, err := json.Marshal(emptyIfNil(delta.Remove))
	if err != nil {
		return "", "", fmt.Errorf("marshal tool delta: %w", err)
	}
	return string(add), string(remove), nil
}

func unmarshalList(raw string, dst *[]string) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("unmarshal tool delta: %w", err)
	}
	if len(*dst) == 0 {
		*dst = nil
	}
	return nil
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
