package graph

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func edge(parent, child string) Edge {
	return Edge{ParentID: parent, ChildID: child}
}

func TestWouldCreateCycle_SelfLoop(t *testing.T) {
	assert.True(t, WouldCreateCycle(nil, "a", "a"))
}

func TestWouldCreateCycle_EmptyGraph(t *testing.T) {
	assert.False(t, WouldCreateCycle(nil, "a", "b"))
}

func TestWouldCreateCycle_DirectBackEdge(t *testing.T) {
	edges := []Edge{edge("x", "y")}

	// y→x would close x→y→x.
	assert.True(t, WouldCreateCycle(edges, "y", "x"))
}

func TestWouldCreateCycle_TransitivePath(t *testing.T) {
	// Existing path y→m→n→x; inserting x→y closes the loop.
	edges := []Edge{
		edge("y", "m"),
		edge("m", "n"),
		edge("n", "x"),
	}

	assert.True(t, WouldCreateCycle(edges, "x", "y"))
	// The reverse direction is fine: y already reaches x.
	assert.False(t, WouldCreateCycle(edges, "y", "x"))
}

func TestWouldCreateCycle_DiamondIsNotACycle(t *testing.T) {
	// a→b, a→c, b→d, c→d: two paths to d, still acyclic.
	edges := []Edge{
		edge("a", "b"),
		edge("a", "c"),
		edge("b", "d"),
		edge("c", "d"),
	}

	assert.False(t, WouldCreateCycle(edges, "a", "d"))
	assert.True(t, WouldCreateCycle(edges, "d", "a"))
}

func TestWouldCreateCycle_DisconnectedComponents(t *testing.T) {
	edges := []Edge{
		edge("a", "b"),
		edge("x", "y"),
	}

	assert.False(t, WouldCreateCycle(edges, "b", "x"))
}

func TestWouldCreateCycle_LongChain(t *testing.T) {
	var edges []Edge
	for i := 0; i < 100; i++ {
		edges = append(edges, edge(fmt.Sprintf("n%d", i), fmt.Sprintf("n%d", i+1)))
	}

	assert.True(t, WouldCreateCycle(edges, "n100", "n0"))
	assert.False(t, WouldCreateCycle(edges, "n0", "n100"))
}
