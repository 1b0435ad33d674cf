// Package metatable loads per-label ingestion instructions from the control
// table and writes back last-ingested timestamps.
package metatable

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"air2graph/internal/domain"
)

// Metatable column names. One row per ingested table; Name carries the label,
// the directive columns carry column lists, and the two timestamp columns are
// written back after the corresponding upsert completes.
const (
	ColName              = "Name"
	ColIndexFor          = "IndexFor"
	ColConstrainFor      = "ConstrainFor"
	ColNodeProperties    = "NodeProperties"
	ColEdges             = "Edges"
	ColTranslationID     = "TranslationId"
	ColLastIngestedNodes = "LastIngestedNodeProperties"
	ColLastIngestedEdges = "LastIngestedEdges"
)

// DefaultTableName is the conventional name of the control table.
const DefaultTableName = "Metatable"

// DefaultValidationSampleSize caps how many records per table Validate
// inspects when checking that declared columns are actually observed.
const DefaultValidationSampleSize = 1000

// Reader loads instructions from the metatable and tracks the metatable
// record id behind each label for timestamp write-back.
type Reader struct {
	client     domain.TableClient
	table      string
	sampleSize int
	logger     *slog.Logger

	mu        sync.Mutex
	recordIDs map[string]string // label → metatable record id
}

// Option customizes a Reader.
type Option func(*Reader)

// WithTableName overrides the metatable name.
func WithTableName(name string) Option {
	return func(r *Reader) { r.table = name }
}

// WithSampleSize overrides the validation sample cap.
func WithSampleSize(n int) Option {
	return func(r *Reader) { r.sampleSize = n }
}

// NewReader creates a Reader over the given table client.
func NewReader(client domain.TableClient, logger *slog.Logger, opts ...Option) *Reader {
	r := &Reader{
		client:     client,
		table:      DefaultTableName,
		sampleSize: DefaultValidationSampleSize,
		logger:     logger,
		recordIDs:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load fetches the metatable and derives one instruction per labeled row.
// Rows without a Name are skipped with a warning. Load also refreshes the
// label→record-id map used by UpdateLastIngested.
func (r *Reader) Load(ctx context.Context) (map[string]domain.IngestionInstruction, error) {
	records, err := r.client.ListAllRecords(ctx, r.table)
	if err != nil {
		return nil, fmt.Errorf("list metatable %q: %w", r.table, err)
	}

	instructions := make(map[string]domain.IngestionInstruction, len(records))
	recordIDs := make(map[string]string, len(records))
	for _, rec := range records {
		label, ok := rec.Fields[ColName].(string)
		if !ok || label == "" {
			r.logger.Warn("metatable row without a table name, skipping", "record_id", rec.ID)
			continue
		}
		instructions[label] = domain.IngestionInstruction{
			Label:               label,
			IndexColumns:        columnList(rec.Fields[ColIndexFor]),
			ConstraintColumns:   columnList(rec.Fields[ColConstrainFor]),
			NodePropertyColumns: columnList(rec.Fields[ColNodeProperties]),
			EdgeColumns:         columnList(rec.Fields[ColEdges]),
			TranslationIDColumn: stringCell(rec.Fields[ColTranslationID]),
		}
		recordIDs[label] = rec.ID
	}

	r.mu.Lock()
	r.recordIDs = recordIDs
	r.mu.Unlock()

	return instructions, nil
}

// Validate re-derives the instruction set and samples each table to confirm
// every declared column is observed on at least one record. Columns that only
// appear beyond the sample cap produce a false negative; this is a best-effort
// staleness check, not a schema guarantee. Missing columns are logged and
// reported via the boolean; only fetch failures are errors.
func (r *Reader) Validate(ctx context.Context) (bool, error) {
	instructions, err := r.Load(ctx)
	if err != nil {
		return false, err
	}

	ok := true
	for label, instr := range instructions {
		records, err := r.client.ListAllRecords(ctx, label)
		if err != nil {
			return false, fmt.Errorf("list table %q: %w", label, err)
		}
		if len(records) > r.sampleSize {
			records = records[:r.sampleSize]
		}

		observed := make(map[string]struct{})
		for _, rec := range records {
			for column := range rec.Fields {
				observed[column] = struct{}{}
			}
		}

		for directive, columns := range map[string][]string{
			ColIndexFor:       instr.IndexColumns,
			ColConstrainFor:   instr.ConstraintColumns,
			ColNodeProperties: instr.NodePropertyColumns,
			ColEdges:          instr.EdgeColumns,
		} {
			for _, column := range columns {
				if _, seen := observed[column]; !seen {
					ok = false
					r.logger.Warn("declared column never observed in sample",
						"table", label,
						"directive", directive,
						"column", column,
						"sampled", len(records),
					)
				}
			}
		}
	}
	return ok, nil
}

// UpdateLastIngested writes the timestamp into the update-type-specific
// column of the label's metatable row. The label must have been seen by a
// prior Load (Load is called lazily when it was not).
func (r *Reader) UpdateLastIngested(ctx context.Context, label string, update domain.UpdateType, ts string) error {
	r.mu.Lock()
	loaded := len(r.recordIDs) > 0
	r.mu.Unlock()
	if !loaded {
		if _, err := r.Load(ctx); err != nil {
			return err
		}
	}

	r.mu.Lock()
	id, ok := r.recordIDs[label]
	r.mu.Unlock()
	if !ok {
		return domain.ErrNotFound("no metatable record for label %q", label)
	}
	if !domain.IsRecordID(id) {
		return domain.ErrValidation("metatable record id %q for label %q is not a valid record id", id, label)
	}

	column, err := timestampColumn(update)
	if err != nil {
		return err
	}

	if _, err := r.client.UpdateRecord(ctx, r.table, id, map[string]any{column: ts}); err != nil {
		return fmt.Errorf("update %s for label %q: %w", column, label, err)
	}
	return nil
}

func timestampColumn(update domain.UpdateType) (string, error) {
	switch update {
	case domain.UpdateNodeProperties:
		return ColLastIngestedNodes, nil
	case domain.UpdateEdges:
		return ColLastIngestedEdges, nil
	default:
		return "", domain.ErrValidation("unknown update type %q", update)
	}
}

// columnList parses a directive cell into column names. Cells are either
// multi-select lists or free text with comma/newline separators.
func columnList(value any) []string {
	var raw []string
	switch v := value.(type) {
	case nil:
		return nil
	case []string:
		raw = v
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				raw = append(raw, s)
			}
		}
	case string:
		raw = strings.FieldsFunc(v, func(r rune) bool {
			return r == ',' || r == '\n'
		})
	default:
		return nil
	}

	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func stringCell(value any) string {
	s, _ := value.(string)
	return strings.TrimSpace(s)
}

// Compile-time check that Reader implements the instruction-store port.
var _ domain.InstructionStore = (*Reader)(nil)
