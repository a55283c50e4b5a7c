// Package neo4j backs the alignment relation with a graph database. The
// relation is a plain directed edge set, so the store only speaks MERGE and
// MATCH over (:Person)-[:ALIGNS_WITH]->(:Person).
package neo4j

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/alignlens/backend/pkg/logger"
	"github.com/alignlens/backend/pkg/retry"
)

type Store struct {
	driver      neo4j.DriverWithContext
	database    string
	retryConfig retry.Config
}

func NewStore(uri, username, password, database string) (*Store, error) {
	driver, err := neo4j.NewDriverWithContext(
		uri,
		neo4j.BasicAuth(username, password, ""),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	ctx := context.Background()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("failed to verify connectivity: %w", err)
	}

	retryConfig := retry.Config{
		MaxAttempts:    3,
		InitialDelay:   200 * time.Millisecond,
		MaxDelay:       3 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Logger:         logger.GetLogger(),
	}

	logger.Info("Neo4j alignment store initialized", zap.String("uri", uri))

	return &Store{
		driver:      driver,
		database:    database,
		retryConfig: retryConfig,
	}, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

func (s *Store) executeWithRetry(ctx context.Context, operation func(neo4j.SessionWithContext) error) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	return retry.Do(ctx, s.retryConfig, func() error {
		session := s.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
		defer session.Close(ctx)
		return operation(session)
	})
}

// InsertEdge is idempotent via MERGE.
func (s *Store) InsertEdge(ctx context.Context, sourceID, targetID string) error {
	query := `
		MERGE (s:Person {id: $source_id})
		MERGE (t:Person {id: $target_id})
		MERGE (s)-[r:ALIGNS_WITH]->(t)
		ON CREATE SET r.created_at = timestamp()
	`

	err := s.executeWithRetry(ctx, func(session neo4j.SessionWithContext) error {
		_, err := session.Run(ctx, query, map[string]interface{}{
			"source_id": sourceID,
			"target_id": targetID,
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to insert edge: %w", err)
	}

	logger.Debug("Alignment edge merged",
		zap.String("source", sourceID),
		zap.String("target", targetID),
	)
	return nil
}

// DeleteEdge is idempotent; deleting a missing edge matches nothing.
func (s *Store) DeleteEdge(ctx context.Context, sourceID, targetID string) error {
	query := `
		MATCH (:Person {id: $source_id})-[r:ALIGNS_WITH]->(:Person {id: $target_id})
		DELETE r
	`

	err := s.executeWithRetry(ctx, func(session neo4j.SessionWithContext) error {
		_, err := session.Run(ctx, query, map[string]interface{}{
			"source_id": sourceID,
			"target_id": targetID,
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to delete edge: %w", err)
	}
	return nil
}

func (s *Store) ListEdgesFrom(ctx context.Context, sourceID string) ([]string, error) {
	query := `
		MATCH (:Person {id: $source_id})-[r:ALIGNS_WITH]->(t:Person)
		RETURN t.id AS target_id
		ORDER BY r.created_at, t.id
	`

	var targets []string
	err := s.executeWithRetry(ctx, func(session neo4j.SessionWithContext) error {
		result, err := session.Run(ctx, query, map[string]interface{}{
			"source_id": sourceID,
		})
		if err != nil {
			return err
		}

		targets = targets[:0]
		for result.Next(ctx) {
			record := result.Record()
			if target, ok := record.Get("target_id"); ok {
				if id, ok := target.(string); ok {
					targets = append(targets, id)
				}
			}
		}
		return result.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list edges: %w", err)
	}
	return targets, nil
}

func (s *Store) HasEdge(ctx context.Context, sourceID, targetID string) (bool, error) {
	query := `
		MATCH (:Person {id: $source_id})-[r:ALIGNS_WITH]->(:Person {id: $target_id})
		RETURN count(r) > 0 AS exists
	`

	var exists bool
	err := s.executeWithRetry(ctx, func(session neo4j.SessionWithContext) error {
		result, err := session.Run(ctx, query, map[string]interface{}{
			"source_id": sourceID,
			"target_id": targetID,
		})
		if err != nil {
			return err
		}

		if result.Next(ctx) {
			if v, ok := result.Record().Get("exists"); ok {
				exists, _ = v.(bool)
			}
		}
		return result.Err()
	})
	if err != nil {
		return false, fmt.Errorf("failed to check edge: %w", err)
	}
	return exists, nil
}
