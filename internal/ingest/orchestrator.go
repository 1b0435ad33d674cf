// Package ingest coordinates a full sync: instruction load, schema
// provisioning, table fetch, node upserts, then edge upserts.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"air2graph/internal/domain"
	"air2graph/internal/mapping"
)

// DefaultFetchConcurrency bounds how many source tables are fetched at once.
// The table client rate-limits requests globally, so this only caps in-flight
// pagination loops.
const DefaultFetchConcurrency = 4

// Options selects per-run behavior.
type Options struct {
	// Wipe removes every node and relationship before ingesting.
	Wipe bool
}

// Orchestrator runs end-to-end ingestions. All node upserts across all labels
// complete before any edge upsert starts, so edge endpoint resolution never
// races node creation.
type Orchestrator struct {
	tables       domain.TableClient
	graph        domain.GraphWriter
	instructions domain.InstructionStore
	runs         domain.IngestRunRepository
	classifier   *mapping.Classifier
	logger       *slog.Logger
	concurrency  int

	// One ingestion at a time; a second Run blocks until the first finishes.
	runMu sync.Mutex
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithFetchConcurrency overrides the table-fetch bound.
func WithFetchConcurrency(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithClassifier overrides the column classifier.
func WithClassifier(c *mapping.Classifier) Option {
	return func(o *Orchestrator) { o.classifier = c }
}

// NewOrchestrator wires an Orchestrator from its ports. runs may be nil when
// run bookkeeping is not wanted (the validate CLI path).
func NewOrchestrator(
	tables domain.TableClient,
	graph domain.GraphWriter,
	instructions domain.InstructionStore,
	runs domain.IngestRunRepository,
	logger *slog.Logger,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		tables:       tables,
		graph:        graph,
		instructions: instructions,
		runs:         runs,
		classifier:   mapping.NewClassifier(),
		logger:       logger,
		concurrency:  DefaultFetchConcurrency,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes one full ingestion and returns its bookkeeping row. The row is
// persisted before work starts and finalized whether the run succeeds or
// fails; the returned error is the run's failure cause, if any.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*domain.IngestRun, error) {
	return o.run(ctx, uuid.NewString(), opts)
}

// Start launches an ingestion in the background and returns its run id
// immediately. The outcome lands in the run repository and the log.
func (o *Orchestrator) Start(opts Options) string {
	id := uuid.NewString()
	go func() {
		// Detached from the caller: an HTTP trigger finishing must not
		// cancel the ingestion.
		if _, err := o.run(context.Background(), id, opts); err != nil {
			o.logger.Error("background ingestion failed", "run_id", id, "error", err)
		}
	}()
	return id
}

func (o *Orchestrator) run(ctx context.Context, id string, opts Options) (*domain.IngestRun, error) {
	o.runMu.Lock()
	defer o.runMu.Unlock()

	run := &domain.IngestRun{
		ID:        id,
		Status:    domain.RunStatusRunning,
		Wipe:      opts.Wipe,
		StartedAt: time.Now().UTC(),
	}
	if o.runs != nil {
		if err := o.runs.Create(ctx, run); err != nil {
			return nil, err
		}
	}
	o.logger.Info("ingestion started", "run_id", run.ID, "wipe", opts.Wipe)

	err := o.execute(ctx, opts, run)

	finished := time.Now().UTC()
	run.FinishedAt = &finished
	if err != nil {
		run.Status = domain.RunStatusFailed
		msg := err.Error()
		run.Error = &msg
		o.logger.Error("ingestion failed", "run_id", run.ID, "error", err)
	} else {
		run.Status = domain.RunStatusSuccess
		o.logger.Info("ingestion finished",
			"run_id", run.ID,
			"labels", run.Labels,
			"nodes", run.Nodes,
			"edges_created", run.Edges.Created,
			"edges_skipped", run.Edges.Skipped,
			"duration", finished.Sub(run.StartedAt),
		)
	}
	if o.runs != nil {
		if finishErr := o.runs.Finish(ctx, run); finishErr != nil {
			o.logger.Error("persist run outcome", "run_id", run.ID, "error", finishErr)
			if err == nil {
				err = finishErr
			}
		}
	}
	return run, err
}

func (o *Orchestrator) execute(ctx context.Context, opts Options, run *domain.IngestRun) error {
	instructions, err := o.instructions.Load(ctx)
	if err != nil {
		return err
	}
	run.Labels = int64(len(instructions))
	if len(instructions) == 0 {
		o.logger.Warn("no ingestion instructions, nothing to do")
		return nil
	}
	labels := sortedLabels(instructions)

	if opts.Wipe {
		if err := o.graph.Wipe(ctx); err != nil {
			return err
		}
	}

	if err := o.provision(ctx, labels, instructions); err != nil {
		return err
	}

	records, err := o.fetchAll(ctx, labels)
	if err != nil {
		return err
	}

	o.checkInstructionColumns(labels, instructions, records)

	translation := o.buildTranslation(labels, instructions, records)

	// Node phase. Every label's nodes land before any edge is attempted so
	// endpoint lookups see the full node set.
	for _, label := range labels {
		instr := instructions[label]
		nodes := make([]domain.NodeRecord, 0, len(records[label]))
		for _, rec := range records[label] {
			nodes = append(nodes, mapping.ToNodeRecord(label, rec, &instr, translation, o.classifier))
		}
		if err := o.graph.UpsertNodes(ctx, label, nodes); err != nil {
			return err
		}
		run.Nodes += int64(len(nodes))

		if err := o.recordLastIngested(ctx, label, domain.UpdateNodeProperties); err != nil {
			return err
		}
	}

	// Edge phase.
	for _, label := range labels {
		instr := instructions[label]
		var edges []domain.EdgeRecord
		for _, rec := range records[label] {
			edges = append(edges, mapping.ToEdgeRecords(rec, &instr, o.classifier)...)
		}
		edges = mapping.ApplyTranslation(edges, translation)

		stats, err := o.graph.UpsertEdges(ctx, edges)
		if err != nil {
			return err
		}
		run.Edges.Add(stats)

		if err := o.recordLastIngested(ctx, label, domain.UpdateEdges); err != nil {
			return err
		}
	}

	return nil
}

// recordLastIngested writes the phase timestamp back to the instruction
// store. An unknown label or a malformed metatable record id spoils only that
// write-back: the run keeps going with a warning. Transport and store errors
// still fail the run.
func (o *Orchestrator) recordLastIngested(ctx context.Context, label string, update domain.UpdateType) error {
	ts := domain.FormatTimestamp(time.Now())
	err := o.instructions.UpdateLastIngested(ctx, label, update, ts)
	if err == nil {
		return nil
	}
	var notFound *domain.NotFoundError
	var invalid *domain.ValidationError
	if errors.As(err, &notFound) || errors.As(err, &invalid) {
		o.logger.Warn("last-ingested write-back skipped",
			"table", label, "update", string(update), "error", err)
		return nil
	}
	return fmt.Errorf("record %s ingestion for %q: %w", update, label, err)
}

// provision ensures schema objects before any data lands. The id property
// gets a uniqueness constraint per label; the instruction's index and
// constraint columns come after.
func (o *Orchestrator) provision(ctx context.Context, labels []string, instructions map[string]domain.IngestionInstruction) error {
	for _, label := range labels {
		instr := instructions[label]
		if err := o.graph.ProvisionConstraint(ctx, label, []string{domain.IDProperty}); err != nil {
			return err
		}
		if err := o.graph.ProvisionConstraint(ctx, label, instr.ConstraintColumns); err != nil {
			return err
		}
		if err := o.graph.ProvisionIndex(ctx, label, instr.IndexColumns); err != nil {
			return err
		}
	}
	return nil
}

// fetchAll pulls every instructed table, bounded-parallel.
func (o *Orchestrator) fetchAll(ctx context.Context, labels []string) (map[string][]domain.SourceRecord, error) {
	records := make(map[string][]domain.SourceRecord, len(labels))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)
	for _, label := range labels {
		label := label
		g.Go(func() error {
			recs, err := o.tables.ListAllRecords(ctx, label)
			if err != nil {
				return fmt.Errorf("fetch table %q: %w", label, err)
			}
			o.logger.Debug("table fetched", "table", label, "records", len(recs))
			mu.Lock()
			records[label] = recs
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return records, nil
}

// checkInstructionColumns warns about declared columns that no fetched record
// carries. Stale instructions are not fatal; the run proceeds and simply
// produces nothing for the missing column. The standalone validate operation
// on the instruction store does the same check without ingesting.
func (o *Orchestrator) checkInstructionColumns(labels []string, instructions map[string]domain.IngestionInstruction,
	records map[string][]domain.SourceRecord) {

	for _, label := range labels {
		instr := instructions[label]
		observed := make(map[string]struct{})
		for _, rec := range records[label] {
			for column := range rec.Fields {
				observed[column] = struct{}{}
			}
		}
		declared := make([]string, 0,
			len(instr.IndexColumns)+len(instr.ConstraintColumns)+len(instr.NodePropertyColumns)+len(instr.EdgeColumns))
		declared = append(declared, instr.IndexColumns...)
		declared = append(declared, instr.ConstraintColumns...)
		declared = append(declared, instr.NodePropertyColumns...)
		declared = append(declared, instr.EdgeColumns...)
		for _, column := range declared {
			if _, ok := observed[column]; !ok {
				o.logger.Warn("instructed column absent from fetched records",
					"table", label, "column", column)
			}
		}
	}
}

// buildTranslation collects the id rewrites declared across all labels.
// A label with a translation column maps each record's native id to the id
// stored in that column, so nodes and edge endpoints key on the foreign id.
// Cells that are not valid record ids are skipped with a warning.
func (o *Orchestrator) buildTranslation(labels []string, instructions map[string]domain.IngestionInstruction,
	records map[string][]domain.SourceRecord) domain.TranslationIDMapping {

	translation := make(domain.TranslationIDMapping)
	for _, label := range labels {
		column := instructions[label].TranslationIDColumn
		if column == "" {
			continue
		}
		for _, rec := range records[label] {
			value, ok := rec.Fields[column]
			if !ok {
				continue
			}
			if !domain.IsRecordID(value) {
				o.logger.Warn("translation cell is not a record id, skipping",
					"table", label, "column", column, "record_id", rec.ID)
				continue
			}
			translation[rec.ID] = value.(string)
		}
	}
	if len(translation) == 0 {
		return nil
	}
	return translation
}

func sortedLabels(instructions map[string]domain.IngestionInstruction) []string {
	labels := make([]string, 0, len(instructions))
	for label := range instructions {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}
