package domain

import "time"

// IDProperty is the reserved node property that carries a record's external id.
// It is prefixed so the keep-filter discards it if it ever round-trips back
// through a source table.
const IDProperty = "_aid"

// TimestampFormat is the wire format for last-ingested timestamps written back
// to the metatable: ISO-8601 with milliseconds and a literal Z suffix.
const TimestampFormat = "2006-01-02T15:04:05.000Z"

// FormatTimestamp renders t in TimestampFormat, in UTC.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampFormat)
}

// SourceRecord is one row fetched from a source table. Immutable once fetched.
type SourceRecord struct {
	ID          string
	Fields      map[string]any
	CreatedTime string
}

// NodeRecord is the node-shaped projection of a SourceRecord.
// Properties does not include the id; the upsert engine binds it under
// IDProperty. Exactly one NodeRecord is produced per SourceRecord.
type NodeRecord struct {
	Label      string
	ID         string // external id, after translation
	Properties map[string]any
}

// EdgeRecord declares one relationship between two external ids. Endpoints are
// weak references resolved by IDProperty lookup at upsert time.
type EdgeRecord struct {
	SourceID string
	TargetID string
	Type     string
}

// IngestionInstruction holds the per-label directives loaded from the metatable.
type IngestionInstruction struct {
	Label               string
	IndexColumns        []string
	ConstraintColumns   []string
	NodePropertyColumns []string
	EdgeColumns         []string
	TranslationIDColumn string
}

// HasNodePropertyFilter reports whether node properties should be restricted
// to the declared set. An empty set means "all non-edge fields".
func (i *IngestionInstruction) HasNodePropertyFilter() bool {
	return len(i.NodePropertyColumns) > 0
}

// TranslationIDMapping rewrites external ids for sources that are themselves
// synced from another base. Missing keys pass through unchanged.
type TranslationIDMapping map[string]string

// Translate returns the mapped id, or id itself when no mapping exists.
func (m TranslationIDMapping) Translate(id string) string {
	if m == nil {
		return id
	}
	if mapped, ok := m[id]; ok && mapped != "" {
		return mapped
	}
	return id
}

// UpdateType selects which last-ingested timestamp column a write-back targets.
// Node properties and edges ingest on different cadences and track separately.
type UpdateType string

const (
	UpdateNodeProperties UpdateType = "node_properties"
	UpdateEdges          UpdateType = "edges"
)

// EdgeStats aggregates the outcome of one paged edge upsert.
type EdgeStats struct {
	Batches         int64
	Total           int64
	Errors          int64
	FailedBatches   int64
	Created         int64
	Skipped         int64
	SourcesNotFound int64
	TargetsNotFound int64
}

// Add accumulates another batch's stats into s.
func (s *EdgeStats) Add(o EdgeStats) {
	s.Batches += o.Batches
	s.Total += o.Total
	s.Errors += o.Errors
	s.FailedBatches += o.FailedBatches
	s.Created += o.Created
	s.Skipped += o.Skipped
	s.SourcesNotFound += o.SourcesNotFound
	s.TargetsNotFound += o.TargetsNotFound
}
