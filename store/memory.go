package store

import (
	"context"
	"sort"
	"sync"

	delegation "github.com/armatrix/agent-delegation-go"
)

// MemoryStore is an in-memory implementation of AgentRegistry, EdgeStore and
// TraceRecorder backed by sync.RWMutex-protected maps. Records are copied on
// write and read so callers cannot mutate store state.
//
// One mutex per store serializes all edge mutations, which trivially gives
// the insert-if-no-cycle atomicity the engine requires: the cycle guard's
// read of the edge set and the insertion happen under the same lock.
type MemoryStore struct {
	mu     sync.RWMutex
	agents map[string]map[string]delegation.Agent // tenant → id → agent
	edges  map[string]map[string]delegation.Edge  // tenant → id → edge
	traces []delegation.Trace
}

var (
	_ delegation.AgentRegistry = (*MemoryStore)(nil)
	_ delegation.EdgeStore     = (*MemoryStore)(nil)
	_ delegation.TraceRecorder = (*MemoryStore)(nil)
)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		agents: make(map[string]map[string]delegation.Agent),
		edges:  make(map[string]map[string]delegation.Edge),
	}
}

// --- AgentRegistry ---

// PutAgent creates or replaces an agent record after validation.
func (s *MemoryStore) PutAgent(_ context.Context, agent *delegation.Agent) error {
	if err := agent.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tenant := s.agents[agent.TenantID]
	if tenant == nil {
		tenant = make(map[string]delegation.Agent)
		s.agents[agent.TenantID] = tenant
	}
	tenant[agent.ID] = *agent
	return nil
}

// DisableAgent soft-deletes an agent: the record and its edges persist for
// audit history, but the engine will never invoke it again.
func (s *MemoryStore) DisableAgent(_ context.Context, tenantID, agentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	agent, ok := s.agents[tenantID][agentID]
	if !ok {
		return delegation.ErrAgentNotFound
	}
	agent.Enabled = false
	s.agents[tenantID][agentID] = agent
	return nil
}

func (s *MemoryStore) GetAgent(_ context.Context, tenantID, agentID string) (*delegation.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	agent, ok := s.agents[tenantID][agentID]
	if !ok {
		return nil, delegation.ErrAgentNotFound
	}
	out := agent
	return &out, nil
}

func (s *MemoryStore) ListEnabledAgents(_ context.Context, tenantID string) ([]*delegation.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*delegation.Agent
	for _, agent := range s.agents[tenantID] {
		if !agent.Enabled {
			continue
		}
		a := agent
		out = append(out, &a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// --- EdgeStore ---

// InsertEdge validates, normalizes, and inserts an edge. The cycle check and
// the insertion run under one critical section, so two concurrent inserts
// can never both pass the guard against a graph the other changed.
func (s *MemoryStore) InsertEdge(_ context.Context, edge *delegation.Edge) error {
	edge.Normalize()
	if err := edge.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tenant := s.edges[edge.TenantID]
	for _, e := range tenant {
		if e.ParentAgentID == edge.ParentAgentID && e.ChildAgentID == edge.ChildAgentID {
			return ErrDuplicateEdge
		}
	}

	existing := make([]delegation.Edge, 0, len(tenant))
	for _, e := range tenant {
		existing = append(existing, e)
	}
	if delegation.WouldCreateCycle(existing, edge.ParentAgentID, edge.ChildAgentID) {
		return delegation.ErrCycleRejected
	}

	if edge.ID == "" {
		edge.ID = delegation.GenerateID(delegation.PrefixEdge)
	}
	if tenant == nil {
		tenant = make(map[string]delegation.Edge)
		s.edges[edge.TenantID] = tenant
	}
	tenant[edge.ID] = *edge
	return nil
}

// UpdateEdge replaces an edge's mutable attributes in place. Endpoints are
// immutable; re-parenting is a delete plus insert so the guard always runs.
func (s *MemoryStore) UpdateEdge(_ context.Context, edge *delegation.Edge) error {
	edge.Normalize()
	if err := edge.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.edges[edge.TenantID][edge.ID]
	if !ok {
		return delegation.ErrEdgeNotFound
	}
	if current.ParentAgentID != edge.ParentAgentID || current.ChildAgentID != edge.ChildAgentID {
		return &delegation.ValidationError{Field: "edge", Reason: "endpoints are immutable; delete and re-insert to re-parent"}
	}
	s.edges[edge.TenantID][edge.ID] = *edge
	return nil
}

// DeleteEdge hard-deletes an edge. No tombstone remains.
func (s *MemoryStore) DeleteEdge(_ context.Context, tenantID, edgeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.edges[tenantID][edgeID]; !ok {
		return delegation.ErrEdgeNotFound
	}
	delete(s.edges[tenantID], edgeID)
	return nil
}

func (s *MemoryStore) ListEdges(_ context.Context, tenantID string) ([]delegation.Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.edgesWhere(tenantID, func(delegation.Edge) bool { return true }), nil
}

func (s *MemoryStore) EdgesFrom(_ context.Context, tenantID, parentAgentID string) ([]delegation.Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.edgesWhere(tenantID, func(e delegation.Edge) bool { return e.ParentAgentID == parentAgentID }), nil
}

func (s *MemoryStore) EdgesTo(_ context.Context, tenantID, childAgentID string) ([]delegation.Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.edgesWhere(tenantID, func(e delegation.Edge) bool { return e.ChildAgentID == childAgentID }), nil
}

// edgesWhere collects matching edges sorted by ID for deterministic reads.
// Callers hold the read lock.
func (s *MemoryStore) edgesWhere(tenantID string, keep func(delegation.Edge) bool) []delegation.Edge {
	var out []delegation.Edge
	for _, e := range s.edges[tenantID] {
		if keep(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// --- TraceRecorder ---

// Append stores a trace. Traces are append-only; there is no update path.
func (s *MemoryStore) Append(_ context.Context, trace *delegation.Trace) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.traces = append(s.traces, *trace)
	return nil
}

// Traces returns a copy of all recorded traces in append order.
func (s *MemoryStore) Traces() []delegation.Trace {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]delegation.Trace, len(s.traces))
	copy(out, s.traces)
	return out
}
