package domain

import "context"

// TableClient lists and updates records in the source-table system.
type TableClient interface {
	// ListAllRecords fetches every record of a table, following pagination.
	ListAllRecords(ctx context.Context, table string) ([]SourceRecord, error)
	// UpdateRecord patches the given fields of one record.
	UpdateRecord(ctx context.Context, table, id string, fields map[string]any) (SourceRecord, error)
}

// GraphWriter performs all graph-store mutation. Each method is one or more
// explicit transactions; see the graph package for transaction scoping.
type GraphWriter interface {
	ProvisionIndex(ctx context.Context, label string, columns []string) error
	ProvisionConstraint(ctx context.Context, label string, columns []string) error
	UpsertNodes(ctx context.Context, label string, nodes []NodeRecord) error
	UpsertEdges(ctx context.Context, edges []EdgeRecord) (EdgeStats, error)
	Wipe(ctx context.Context) error
}

// InstructionStore loads per-label ingestion instructions and writes back
// last-ingested timestamps.
type InstructionStore interface {
	Load(ctx context.Context) (map[string]IngestionInstruction, error)
	Validate(ctx context.Context) (bool, error)
	UpdateLastIngested(ctx context.Context, label string, update UpdateType, ts string) error
}

// IngestRunRepository persists run bookkeeping rows.
type IngestRunRepository interface {
	Create(ctx context.Context, run *IngestRun) error
	Finish(ctx context.Context, run *IngestRun) error
	GetByID(ctx context.Context, id string) (*IngestRun, error)
	List(ctx context.Context, limit int) ([]IngestRun, error)
}
