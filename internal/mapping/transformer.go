package mapping

import (
	"sort"

	"air2graph/internal/domain"
)

// Split is the two-way partition of a record's surviving fields.
type Split struct {
	// Properties holds fields classified as node properties.
	Properties map[string]any
	// Edges maps normalized relationship type to the declared target ids.
	Edges map[string][]string
}

// SplitFields filters a record's fields through the keep rule, then partitions
// the remainder into node properties and edge declarations. Edge columns that
// normalize to the same relationship type merge their target lists.
func SplitFields(rec domain.SourceRecord, c *Classifier) Split {
	out := Split{
		Properties: make(map[string]any),
		Edges:      make(map[string][]string),
	}
	for name, value := range rec.Fields {
		if !c.ShouldKeep(name) {
			continue
		}
		if c.IsEdgeColumn(name) {
			rel := c.NormalizeEdge(name)
			out.Edges[rel] = append(out.Edges[rel], targetIDs(value)...)
			continue
		}
		if c.IsPropertyColumn(name) {
			out.Properties[name] = value
		}
	}
	return out
}

// ToNodeRecord converts a record to its node projection under the given
// label. When the instruction declares node-property columns, properties are
// restricted to that set; otherwise all non-edge fields survive. The id is
// rewritten through the translation mapping, passing through when unmapped.
func ToNodeRecord(label string, rec domain.SourceRecord, instr *domain.IngestionInstruction,
	ids domain.TranslationIDMapping, c *Classifier) domain.NodeRecord {

	split := SplitFields(rec, c)
	props := split.Properties
	if instr != nil && instr.HasNodePropertyFilter() {
		declared := make(map[string]struct{}, len(instr.NodePropertyColumns))
		for _, col := range instr.NodePropertyColumns {
			declared[col] = struct{}{}
		}
		filtered := make(map[string]any, len(declared))
		for name, value := range props {
			if _, ok := declared[name]; ok {
				filtered[name] = value
			}
		}
		props = filtered
	}

	return domain.NodeRecord{
		Label:      label,
		ID:         ids.Translate(rec.ID),
		Properties: props,
	}
}

// ToEdgeRecords emits one EdgeRecord per declared target id. When the
// instruction names edge columns, only those present on the record are
// considered; otherwise every edge-classified column contributes.
func ToEdgeRecords(rec domain.SourceRecord, instr *domain.IngestionInstruction,
	c *Classifier) []domain.EdgeRecord {

	var edges []domain.EdgeRecord
	emit := func(column string, value any) {
		rel := c.NormalizeEdge(column)
		for _, target := range targetIDs(value) {
			edges = append(edges, domain.EdgeRecord{
				SourceID: rec.ID,
				TargetID: target,
				Type:     rel,
			})
		}
	}

	if instr != nil && len(instr.EdgeColumns) > 0 {
		for _, column := range instr.EdgeColumns {
			if value, ok := rec.Fields[column]; ok {
				emit(column, value)
			}
		}
		return edges
	}

	// No instruction: fall back to classification, in stable column order.
	columns := make([]string, 0, len(rec.Fields))
	for name := range rec.Fields {
		if c.ShouldKeep(name) && c.IsEdgeColumn(name) {
			columns = append(columns, name)
		}
	}
	sort.Strings(columns)
	for _, column := range columns {
		emit(column, rec.Fields[column])
	}
	return edges
}

// ApplyTranslation rewrites both endpoints of every edge through the mapping.
// Unmapped ids pass through unchanged. Pure: returns a new slice.
func ApplyTranslation(edges []domain.EdgeRecord, ids domain.TranslationIDMapping) []domain.EdgeRecord {
	if len(edges) == 0 {
		return nil
	}
	out := make([]domain.EdgeRecord, len(edges))
	for i, e := range edges {
		out[i] = domain.EdgeRecord{
			SourceID: ids.Translate(e.SourceID),
			TargetID: ids.Translate(e.TargetID),
			Type:     e.Type,
		}
	}
	return out
}

// targetIDs coerces an edge column value into a list of target ids. Source
// tables hand back linked-record columns as lists of ids; a bare string is
// treated as a single-element list. Anything else contributes nothing.
func targetIDs(value any) []string {
	switch v := value.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		return []string{v}
	default:
		return nil
	}
}
