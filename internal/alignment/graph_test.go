package alignment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryEdgeStore struct {
	edges map[string][]string
}

func newMemoryEdgeStore() *memoryEdgeStore {
	return &memoryEdgeStore{edges: make(map[string][]string)}
}

func (m *memoryEdgeStore) InsertEdge(_ context.Context, sourceID, targetID string) error {
	for _, t := range m.edges[sourceID] {
		if t == targetID {
			return nil
		}
	}
	m.edges[sourceID] = append(m.edges[sourceID], targetID)
	return nil
}

func (m *memoryEdgeStore) DeleteEdge(_ context.Context, sourceID, targetID string) error {
	targets := m.edges[sourceID]
	for i, t := range targets {
		if t == targetID {
			m.edges[sourceID] = append(targets[:i], targets[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *memoryEdgeStore) ListEdgesFrom(_ context.Context, sourceID string) ([]string, error) {
	return m.edges[sourceID], nil
}

func (m *memoryEdgeStore) HasEdge(_ context.Context, sourceID, targetID string) (bool, error) {
	for _, t := range m.edges[sourceID] {
		if t == targetID {
			return true, nil
		}
	}
	return false, nil
}

func TestGraph_EdgesAreDirected(t *testing.T) {
	g := NewGraph(newMemoryEdgeStore())
	ctx := context.Background()

	require.NoError(t, g.AddEdge(ctx, "alice", "bob"))

	aligned, err := g.IsAligned(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.True(t, aligned)

	reverse, err := g.IsAligned(ctx, "bob", "alice")
	require.NoError(t, err)
	assert.False(t, reverse, "alignment does not imply the reverse edge")
}

func TestGraph_AddEdgeIdempotent(t *testing.T) {
	g := NewGraph(newMemoryEdgeStore())
	ctx := context.Background()

	require.NoError(t, g.AddEdge(ctx, "alice", "bob"))
	require.NoError(t, g.AddEdge(ctx, "alice", "bob"))

	targets, err := g.TargetsOf(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, targets)
}

func TestGraph_RemoveEdgeIdempotent(t *testing.T) {
	g := NewGraph(newMemoryEdgeStore())
	ctx := context.Background()

	require.NoError(t, g.AddEdge(ctx, "alice", "bob"))
	require.NoError(t, g.RemoveEdge(ctx, "alice", "bob"))
	require.NoError(t, g.RemoveEdge(ctx, "alice", "bob"), "removing a missing edge is a no-op")

	targets, err := g.TargetsOf(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, targets)
}

func TestGraph_SelfEdgeIgnored(t *testing.T) {
	g := NewGraph(newMemoryEdgeStore())
	ctx := context.Background()

	require.NoError(t, g.AddEdge(ctx, "alice", "alice"))

	targets, err := g.TargetsOf(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, targets)
}

func TestGraph_TargetsPreserveInsertionOrder(t *testing.T) {
	g := NewGraph(newMemoryEdgeStore())
	ctx := context.Background()

	require.NoError(t, g.AddEdge(ctx, "alice", "bob"))
	require.NoError(t, g.AddEdge(ctx, "alice", "carol"))
	require.NoError(t, g.AddEdge(ctx, "alice", "dave"))

	targets, err := g.TargetsOf(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob", "carol", "dave"}, targets)
}
