// Package alignment exposes the directed "who compares against whom" relation
// as a read view plus idempotent mutation, independent of which store backs
// the edges.
package alignment

import (
	"context"

	"go.uber.org/zap"

	"github.com/alignlens/backend/pkg/logger"
)

// EdgeStore is the persistence contract for alignment edges. Both the sqlite
// client and the neo4j store satisfy it.
type EdgeStore interface {
	InsertEdge(ctx context.Context, sourceID, targetID string) error
	DeleteEdge(ctx context.Context, sourceID, targetID string) error
	ListEdgesFrom(ctx context.Context, sourceID string) ([]string, error)
	HasEdge(ctx context.Context, sourceID, targetID string) (bool, error)
}

type Graph struct {
	store EdgeStore
}

func NewGraph(store EdgeStore) *Graph {
	return &Graph{store: store}
}

// TargetsOf returns the people whose self-answers are the comparison baseline
// for the given person, in stable store order.
func (g *Graph) TargetsOf(ctx context.Context, personID string) ([]string, error) {
	return g.store.ListEdgesFrom(ctx, personID)
}

func (g *Graph) IsAligned(ctx context.Context, sourceID, targetID string) (bool, error) {
	return g.store.HasEdge(ctx, sourceID, targetID)
}

// AddEdge is idempotent; adding an existing edge is not an error. Self-edges
// are ignored since a person's self-perception needs no edge to be in scope.
func (g *Graph) AddEdge(ctx context.Context, sourceID, targetID string) error {
	if sourceID == targetID {
		return nil
	}
	if err := g.store.InsertEdge(ctx, sourceID, targetID); err != nil {
		return err
	}
	logger.Debug("Alignment edge ensured",
		zap.String("source", sourceID),
		zap.String("target", targetID),
	)
	return nil
}

// RemoveEdge is idempotent; removing a non-existent edge is not an error.
func (g *Graph) RemoveEdge(ctx context.Context, sourceID, targetID string) error {
	return g.store.DeleteEdge(ctx, sourceID, targetID)
}
