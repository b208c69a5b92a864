// Package store provides EdgeStore, AgentRegistry and TraceRecorder
// backends: MemoryStore for tests and single-process embedding, SQLiteStore
// for durable single-node deployments.
//
// Both enforce the graph invariants at the write boundary: edge validation
// and normalization, and insert-if-no-cycle atomicity via a per-tenant
// serializing section.
package store

import (
	"errors"
)

// ErrDuplicateEdge is returned when an active edge between the same
// parent and child already exists in the tenant.
var ErrDuplicateEdge = errors.New("store: edge between these agents already exists")
