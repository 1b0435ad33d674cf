// Package app provides application-level wiring and dependency injection
// for the sync service.
package app

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"air2graph/internal/airtable"
	"air2graph/internal/config"
	"air2graph/internal/db/repository"
	"air2graph/internal/graph"
	"air2graph/internal/ingest"
	"air2graph/internal/metatable"
	"air2graph/internal/schedule"
)

// Deps holds the external dependencies that main() must provide.
// These are things the app package cannot (or should not) create itself:
// database handles, config, and the graph driver.
type Deps struct {
	Cfg     *config.Config
	Driver  neo4j.DriverWithContext
	WriteDB *sql.DB
	ReadDB  *sql.DB
	Logger  *slog.Logger
}

// App holds the fully-wired application.
type App struct {
	Tables       *airtable.Client
	Instructions *metatable.Reader
	Graph        *graph.Engine
	Runs         *repository.IngestRunRepo // write pool, used by the orchestrator
	RunsRead     *repository.IngestRunRepo // read pool, used by the HTTP surface
	Orchestrator *ingest.Orchestrator
	Scheduler    *schedule.Scheduler // nil when INGEST_SCHEDULE is unset
}

// New wires clients, the graph engine, repositories, and the orchestrator
// from the provided deps.
func New(_ context.Context, deps Deps) (*App, error) {
	cfg := deps.Cfg

	tables := airtable.NewClient(cfg.AirtableAPIKey, cfg.AirtableBaseID,
		deps.Logger.With("component", "airtable"))

	instructions := metatable.NewReader(tables,
		deps.Logger.With("component", "metatable"),
		metatable.WithTableName(cfg.MetatableName),
		metatable.WithSampleSize(cfg.ValidationSampleSize),
	)

	graphOpts := []graph.Option{graph.WithEdgeBatchSize(cfg.EdgeBatchSize)}
	if cfg.Neo4jDatabase != "" {
		graphOpts = append(graphOpts, graph.WithDatabase(cfg.Neo4jDatabase))
	}
	engine := graph.NewEngine(deps.Driver, deps.Logger.With("component", "graph"), graphOpts...)

	runs := repository.NewIngestRunRepo(deps.WriteDB)
	runsRead := repository.NewIngestRunRepo(deps.ReadDB)

	orchestrator := ingest.NewOrchestrator(
		tables, engine, instructions, runs,
		deps.Logger.With("component", "ingest"),
		ingest.WithFetchConcurrency(cfg.FetchConcurrency),
	)

	app := &App{
		Tables:       tables,
		Instructions: instructions,
		Graph:        engine,
		Runs:         runs,
		RunsRead:     runsRead,
		Orchestrator: orchestrator,
	}
	if cfg.IngestSchedule != "" {
		app.Scheduler = schedule.NewScheduler(orchestrator, cfg.IngestSchedule,
			deps.Logger.With("component", "schedule"))
	}
	return app, nil
}

// NewDriver connects to the graph store and verifies connectivity.
func NewDriver(ctx context.Context, cfg *config.Config) (neo4j.DriverWithContext, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.Neo4jURI,
		neo4j.BasicAuth(cfg.Neo4jUsername, cfg.Neo4jPassword, ""))
	if err != nil {
		return nil, err
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, err
	}
	return driver, nil
}
