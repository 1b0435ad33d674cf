package graph

import (
	"fmt"
	"regexp"
	"strings"

	"air2graph/internal/domain"
)

// counterLabel marks the transient node that accumulates per-edge outcome
// counters during one paged edge upsert. The node is keyed by run id, read
// once after the paged call completes, and deleted in the same statement.
const counterLabel = "EdgeUpsertCounter"

// identifierPattern accepts the label, relationship-type, and property names
// we are willing to interpolate into a statement. Values always travel as
// bound parameters; identifiers cannot, so anything outside this set is
// rejected before it reaches a backtick-escaped position.
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_ -]*$`)

// ValidIdentifier reports whether s is safe to use as a backtick-escaped
// label, relationship type, or property name.
func ValidIdentifier(s string) bool {
	return identifierPattern.MatchString(s)
}

func escape(s string) string {
	return "`" + s + "`"
}

func checkIdentifier(kind, s string) error {
	if !ValidIdentifier(s) {
		return domain.ErrValidation("invalid %s %q", kind, s)
	}
	return nil
}

// IndexQuery builds an idempotent index statement for one label/column pair.
func IndexQuery(label, column string) (string, error) {
	if err := checkIdentifier("label", label); err != nil {
		return "", err
	}
	if err := checkIdentifier("column", column); err != nil {
		return "", err
	}
	name := indexName("idx", label, column)
	return fmt.Sprintf("CREATE INDEX %s IF NOT EXISTS FOR (n:%s) ON (n.%s)",
		escape(name), escape(label), escape(column)), nil
}

// ConstraintQuery builds an idempotent uniqueness constraint statement for one
// label/column pair.
func ConstraintQuery(label, column string) (string, error) {
	if err := checkIdentifier("label", label); err != nil {
		return "", err
	}
	if err := checkIdentifier("column", column); err != nil {
		return "", err
	}
	name := indexName("uniq", label, column)
	return fmt.Sprintf("CREATE CONSTRAINT %s IF NOT EXISTS FOR (n:%s) REQUIRE n.%s IS UNIQUE",
		escape(name), escape(label), escape(column)), nil
}

// indexName derives a stable schema-object name. Spaces and hyphens are not
// valid in schema names, so they collapse to underscores.
func indexName(prefix, label, column string) string {
	sanitize := strings.NewReplacer(" ", "_", "-", "_")
	return prefix + "_" + sanitize.Replace(label) + "_" + sanitize.Replace(column)
}

// NodeUpsertQuery builds the batched node statement: one MERGE per element of
// the $nodes parameter, matched on the id property, with a full property
// overwrite so properties deleted at the source disappear from the node.
func NodeUpsertQuery(label string) (string, error) {
	if err := checkIdentifier("label", label); err != nil {
		return "", err
	}
	return fmt.Sprintf(
		"UNWIND $nodes AS node MERGE (n:%s {%s: node.%s}) SET n = node",
		escape(label), escape(domain.IDProperty), escape(domain.IDProperty)), nil
}

// counterCreateQuery creates the transient counter node for one run.
func counterCreateQuery() string {
	return fmt.Sprintf(
		"CREATE (:%s {run: $run, created: 0, skipped: 0, sourcesNotFound: 0, targetsNotFound: 0})",
		escape(counterLabel))
}

// counterCollectQuery reads the final counter values and deletes the node.
func counterCollectQuery() string {
	return fmt.Sprintf(
		"MATCH (c:%s {run: $run}) "+
			"WITH c, c.created AS created, c.skipped AS skipped, "+
			"c.sourcesNotFound AS sourcesNotFound, c.targetsNotFound AS targetsNotFound "+
			"DETACH DELETE c "+
			"RETURN created, skipped, sourcesNotFound, targetsNotFound",
		escape(counterLabel))
}

// edgeUpsertQuery builds the paged edge statement. The outer call pages the
// $edges parameter through apoc.periodic.iterate; the inner statement resolves
// both endpoints by id property, checks for an existing relationship of the
// same type in either direction, bumps the matching counter, and creates the
// relationship through apoc.create.relationship so the type stays a data
// value rather than an interpolated identifier.
func edgeUpsertQuery() string {
	inner := fmt.Sprintf(
		"MATCH (c:%s {run: $run}) "+
			"OPTIONAL MATCH (n {%s: edge.source}) "+
			"OPTIONAL MATCH (m {%s: edge.target}) "+
			"OPTIONAL MATCH (n)-[rel]-(m) "+
			"WITH c, n, m, edge, COLLECT(TYPE(rel)) AS types "+
			"FOREACH (_ IN CASE WHEN n IS NULL THEN [1] ELSE [] END | SET c.sourcesNotFound = c.sourcesNotFound + 1) "+
			"FOREACH (_ IN CASE WHEN n IS NOT NULL AND m IS NULL THEN [1] ELSE [] END | SET c.targetsNotFound = c.targetsNotFound + 1) "+
			"FOREACH (_ IN CASE WHEN n IS NOT NULL AND m IS NOT NULL AND edge.type IN types THEN [1] ELSE [] END | SET c.skipped = c.skipped + 1) "+
			"FOREACH (_ IN CASE WHEN n IS NOT NULL AND m IS NOT NULL AND NOT edge.type IN types THEN [1] ELSE [] END | SET c.created = c.created + 1) "+
			"WITH n, m, edge, types "+
			"WHERE n IS NOT NULL AND m IS NOT NULL AND NOT edge.type IN types "+
			"CALL apoc.create.relationship(n, edge.type, {}, m) YIELD rel "+
			"RETURN COUNT(rel)",
		escape(counterLabel), escape(domain.IDProperty), escape(domain.IDProperty))

	return "CALL apoc.periodic.iterate(" +
		"'UNWIND $edges AS edge RETURN edge', " +
		"\"" + inner + "\", " +
		"{batchSize: $batchSize, parallel: false, retries: $retries, params: {edges: $edges, run: $run}}) " +
		"YIELD batches, total, failedOperations, failedBatches " +
		"RETURN batches, total, failedOperations, failedBatches"
}

// wipeQuery removes every node and relationship in the database.
func wipeQuery() string {
	return "MATCH (n) DETACH DELETE n"
}
