// Package graph writes nodes, edges, and schema objects to the graph store.
// All mutation goes through short explicit sessions; values are always bound
// parameters and identifiers are validated before interpolation.
package graph

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"air2graph/internal/domain"
)

// DefaultEdgeBatchSize is the page size handed to the paged edge statement.
const DefaultEdgeBatchSize = 1000

// DefaultEdgeRetries is how many times a failed edge page is retried inside
// the store before it counts as failed.
const DefaultEdgeRetries = 3

// Engine implements the graph-writer port on top of the Neo4j driver.
type Engine struct {
	driver    neo4j.DriverWithContext
	database  string
	batchSize int
	retries   int
	logger    *slog.Logger
}

// Option customizes an Engine.
type Option func(*Engine)

// WithDatabase targets a named database instead of the default.
func WithDatabase(name string) Option {
	return func(e *Engine) { e.database = name }
}

// WithEdgeBatchSize overrides the edge page size.
func WithEdgeBatchSize(n int) Option {
	return func(e *Engine) { e.batchSize = n }
}

// NewEngine creates an Engine over an already-connected driver.
func NewEngine(driver neo4j.DriverWithContext, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		driver:    driver,
		batchSize: DefaultEdgeBatchSize,
		retries:   DefaultEdgeRetries,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) session(ctx context.Context) neo4j.SessionWithContext {
	return e.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: e.database,
	})
}

// run executes one statement in its own session and discards the result.
func (e *Engine) run(ctx context.Context, cypher string, params map[string]any) error {
	session := e.session(ctx)
	defer session.Close(ctx)

	result, err := session.Run(ctx, cypher, params)
	if err != nil {
		return err
	}
	_, err = result.Consume(ctx)
	return err
}

// ProvisionIndex creates one index per column. Safe to repeat: every
// statement carries IF NOT EXISTS. A nil or empty column set is a no-op.
func (e *Engine) ProvisionIndex(ctx context.Context, label string, columns []string) error {
	for _, column := range columns {
		cypher, err := IndexQuery(label, column)
		if err != nil {
			return err
		}
		if err := e.run(ctx, cypher, nil); err != nil {
			return fmt.Errorf("create index on %s.%s: %w", label, column, err)
		}
		e.logger.Debug("index ensured", "label", label, "column", column)
	}
	return nil
}

// ProvisionConstraint creates one uniqueness constraint per column. Safe to
// repeat; empty column set is a no-op.
func (e *Engine) ProvisionConstraint(ctx context.Context, label string, columns []string) error {
	for _, column := range columns {
		cypher, err := ConstraintQuery(label, column)
		if err != nil {
			return err
		}
		if err := e.run(ctx, cypher, nil); err != nil {
			return fmt.Errorf("create constraint on %s.%s: %w", label, column, err)
		}
		e.logger.Debug("constraint ensured", "label", label, "column", column)
	}
	return nil
}

// UpsertNodes merges every node of one label in a single statement. Each node
// is matched on the id property and its stored properties are fully replaced,
// so a property cleared at the source disappears from the graph.
func (e *Engine) UpsertNodes(ctx context.Context, label string, nodes []domain.NodeRecord) error {
	if len(nodes) == 0 {
		return nil
	}

	cypher, err := NodeUpsertQuery(label)
	if err != nil {
		return err
	}

	payload := make([]map[string]any, 0, len(nodes))
	for _, node := range nodes {
		props := make(map[string]any, len(node.Properties)+1)
		for k, v := range node.Properties {
			props[k] = v
		}
		props[domain.IDProperty] = node.ID
		payload = append(payload, props)
	}

	if err := e.run(ctx, cypher, map[string]any{"nodes": payload}); err != nil {
		return fmt.Errorf("upsert %d %s nodes: %w", len(nodes), label, err)
	}
	e.logger.Info("nodes upserted", "label", label, "count", len(nodes))
	return nil
}

// UpsertEdges creates every relationship that does not already exist between
// its endpoints, paging through the batch store-side. Existence is checked in
// both directions: a same-typed relationship either way counts as already
// present. Outcomes are accumulated on a transient counter node created
// before the paged call and read back and deleted after it.
func (e *Engine) UpsertEdges(ctx context.Context, edges []domain.EdgeRecord) (domain.EdgeStats, error) {
	var stats domain.EdgeStats
	if len(edges) == 0 {
		return stats, nil
	}

	payload := make([]map[string]any, 0, len(edges))
	for _, edge := range edges {
		payload = append(payload, map[string]any{
			"source": edge.SourceID,
			"target": edge.TargetID,
			"type":   edge.Type,
		})
	}
	run := uuid.NewString()

	if err := e.run(ctx, counterCreateQuery(), map[string]any{"run": run}); err != nil {
		return stats, fmt.Errorf("create edge counter: %w", err)
	}

	session := e.session(ctx)
	defer session.Close(ctx)

	result, err := session.Run(ctx, edgeUpsertQuery(), map[string]any{
		"edges":     payload,
		"run":       run,
		"batchSize": e.batchSize,
		"retries":   e.retries,
	})
	if err != nil {
		e.dropCounter(ctx, run)
		return stats, fmt.Errorf("upsert edges: %w", err)
	}
	record, err := result.Single(ctx)
	if err != nil {
		e.dropCounter(ctx, run)
		return stats, fmt.Errorf("upsert edges: %w", err)
	}
	stats.Batches = int64Field(record, "batches")
	stats.Total = int64Field(record, "total")
	stats.Errors = int64Field(record, "failedOperations")
	stats.FailedBatches = int64Field(record, "failedBatches")

	counters, err := session.Run(ctx, counterCollectQuery(), map[string]any{"run": run})
	if err != nil {
		e.dropCounter(ctx, run)
		return stats, fmt.Errorf("collect edge counters: %w", err)
	}
	counterRecord, err := counters.Single(ctx)
	if err != nil {
		e.dropCounter(ctx, run)
		return stats, fmt.Errorf("collect edge counters: %w", err)
	}
	stats.Created = int64Field(counterRecord, "created")
	stats.Skipped = int64Field(counterRecord, "skipped")
	stats.SourcesNotFound = int64Field(counterRecord, "sourcesNotFound")
	stats.TargetsNotFound = int64Field(counterRecord, "targetsNotFound")

	e.logger.Info("edges upserted",
		"total", stats.Total,
		"created", stats.Created,
		"skipped", stats.Skipped,
		"sources_not_found", stats.SourcesNotFound,
		"targets_not_found", stats.TargetsNotFound,
		"failed_batches", stats.FailedBatches,
	)
	return stats, nil
}

// dropCounter removes a run's counter node when a failure kept the collect
// step from deleting it. Best effort.
func (e *Engine) dropCounter(ctx context.Context, run string) {
	cypher := fmt.Sprintf("MATCH (c:%s {run: $run}) DETACH DELETE c", escape(counterLabel))
	if err := e.run(ctx, cypher, map[string]any{"run": run}); err != nil {
		e.logger.Warn("orphaned edge counter not cleaned up", "run", run, "error", err)
	}
}

// Wipe removes every node and relationship. Destructive; only the explicit
// wipe path calls it.
func (e *Engine) Wipe(ctx context.Context) error {
	e.logger.Warn("wiping graph store")
	if err := e.run(ctx, wipeQuery(), nil); err != nil {
		return fmt.Errorf("wipe graph: %w", err)
	}
	return nil
}

func int64Field(record *neo4j.Record, key string) int64 {
	value, ok := record.Get(key)
	if !ok {
		return 0
	}
	n, _ := value.(int64)
	return n
}

// Compile-time check that Engine implements the graph-writer port.
var _ domain.GraphWriter = (*Engine)(nil)
