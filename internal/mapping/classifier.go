// Package mapping decides how source-table columns project into the graph:
// which columns survive, which declare relationships, and how raw records
// split into node and edge batches.
package mapping

import (
	"strings"
	"unicode"
)

// ReservedPrefix marks internal columns that never reach the graph.
const ReservedPrefix = "_"

// EdgeNameDelimiter separates a relationship type from a disambiguating
// suffix in an edge column name ("CONTAINS__COMPANY" → "CONTAINS").
const EdgeNameDelimiter = "__"

// Classifier bundles the column-naming policy. The engine and transformer
// take it as injectable policy so alternate naming conventions can be
// substituted without touching either.
type Classifier struct {
	ShouldKeep       func(column any) bool
	IsEdgeColumn     func(column any) bool
	IsPropertyColumn func(column any) bool
	NormalizeEdge    func(column string) string
}

// NewClassifier returns the default naming policy: underscore-prefixed
// columns are discarded, all-uppercase columns are edges, everything else is
// a node property, and edge names are truncated at the first dunder.
func NewClassifier() *Classifier {
	return &Classifier{
		ShouldKeep:       ShouldKeep,
		IsEdgeColumn:     IsEdgeColumn,
		IsPropertyColumn: IsPropertyColumn,
		NormalizeEdge:    NormalizeEdgeName,
	}
}

// ShouldKeep reports whether a column participates in ingestion at all.
// Fails closed: non-string input is discarded, as is any name carrying the
// reserved prefix.
func ShouldKeep(column any) bool {
	s, ok := column.(string)
	if !ok {
		return false
	}
	return !strings.HasPrefix(s, ReservedPrefix)
}

// IsEdgeColumn reports whether a column name declares a relationship.
// The convention is structural: a name is an edge iff it is entirely
// upper-case (at least one cased character, none of them lower-case).
func IsEdgeColumn(column any) bool {
	s, ok := column.(string)
	if !ok {
		return false
	}
	hasCased := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) {
			hasCased = true
		}
	}
	return hasCased
}

// IsPropertyColumn is the complement of IsEdgeColumn for strings. Non-string
// input yields false on both, so the two are not a true complement there.
func IsPropertyColumn(column any) bool {
	if _, ok := column.(string); !ok {
		return false
	}
	return !IsEdgeColumn(column)
}

// NormalizeEdgeName strips everything after the first dunder, letting several
// differently-suffixed columns declare one relationship type. Idempotent on
// already-normalized names.
func NormalizeEdgeName(column string) string {
	head, _, _ := strings.Cut(column, EdgeNameDelimiter)
	return head
}
