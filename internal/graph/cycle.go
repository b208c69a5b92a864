// Package graph holds the cycle guard for the delegation edge set.
// The edge set is stored flat; traversal builds an adjacency snapshot per
// check, which keeps the guard pure and O(V+E).
package graph

// Edge is the minimal view of a delegation edge the guard needs.
type Edge struct {
	ParentID string
	ChildID  string
}

// WouldCreateCycle reports whether inserting parentID→childID into the given
// edge set would close a directed cycle. It walks breadth-first from childID
// along existing outgoing edges; reaching parentID means the candidate edge
// closes a loop. A self-loop is a cycle unconditionally.
//
// Pure read-only traversal: callers run it inside the same serialized
// section that applies the insert, so the snapshot it sees is the graph the
// insert lands on.
func WouldCreateCycle(edges []Edge, parentID, childID string) bool {
	if parentID == childID {
		return true
	}

	out := make(map[string][]string, len(edges))
	for _, e := range edges {
		out[e.ParentID] = append(out[e.ParentID], e.ChildID)
	}

	seen := map[string]bool{childID: true}
	queue := []string{childID}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		for _, next := range out[node] {
			if next == parentID {
				return true
			}
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}
	return false
}
