package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"air2graph/internal/domain"
)

func TestValidIdentifier(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{name: "plain_label", input: "Person", want: true},
		{name: "relationship_type", input: "WORKS_AT", want: true},
		{name: "column_with_space", input: "First Name", want: true},
		{name: "underscore_prefix", input: "_aid", want: true},
		{name: "empty", input: "", want: false},
		{name: "leading_digit", input: "1Person", want: false},
		{name: "backtick", input: "Person`", want: false},
		{name: "quote_injection", input: `Person") DETACH DELETE n //`, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidIdentifier(tt.input))
		})
	}
}

func TestIndexQuery(t *testing.T) {
	q, err := IndexQuery("Person", "Name")
	require.NoError(t, err)
	assert.Equal(t, "CREATE INDEX `idx_Person_Name` IF NOT EXISTS FOR (n:`Person`) ON (n.`Name`)", q)

	q, err = IndexQuery("Person", "First Name")
	require.NoError(t, err)
	assert.Contains(t, q, "`idx_Person_First_Name`")
	assert.Contains(t, q, "ON (n.`First Name`)")

	_, err = IndexQuery("Person`", "Name")
	var validation *domain.ValidationError
	require.ErrorAs(t, err, &validation)
}

func TestConstraintQuery(t *testing.T) {
	q, err := ConstraintQuery("Person", "Email")
	require.NoError(t, err)
	assert.Equal(t, "CREATE CONSTRAINT `uniq_Person_Email` IF NOT EXISTS FOR (n:`Person`) REQUIRE n.`Email` IS UNIQUE", q)

	_, err = ConstraintQuery("Person", "Email`; MATCH (n)")
	var validation *domain.ValidationError
	require.ErrorAs(t, err, &validation)
}

func TestNodeUpsertQuery(t *testing.T) {
	q, err := NodeUpsertQuery("Person")
	require.NoError(t, err)
	assert.Equal(t, "UNWIND $nodes AS node MERGE (n:`Person` {`_aid`: node.`_aid`}) SET n = node", q)

	_, err = NodeUpsertQuery("")
	require.Error(t, err)
}

func TestEdgeUpsertQuery(t *testing.T) {
	q := edgeUpsertQuery()

	// Paged store-side with serial batches and in-store retries.
	assert.Contains(t, q, "CALL apoc.periodic.iterate(")
	assert.Contains(t, q, "batchSize: $batchSize")
	assert.Contains(t, q, "parallel: false")
	assert.Contains(t, q, "retries: $retries")

	// Existence check ignores direction; the type is matched as data.
	assert.Contains(t, q, "OPTIONAL MATCH (n)-[rel]-(m)")
	assert.Contains(t, q, "COLLECT(TYPE(rel)) AS types")
	assert.Contains(t, q, "NOT edge.type IN types")
	assert.Contains(t, q, "apoc.create.relationship(n, edge.type, {}, m)")

	// Every outcome increments exactly one counter.
	assert.Contains(t, q, "SET c.sourcesNotFound = c.sourcesNotFound + 1")
	assert.Contains(t, q, "SET c.targetsNotFound = c.targetsNotFound + 1")
	assert.Contains(t, q, "SET c.skipped = c.skipped + 1")
	assert.Contains(t, q, "SET c.created = c.created + 1")
}

func TestCounterQueries(t *testing.T) {
	create := counterCreateQuery()
	assert.Contains(t, create, "CREATE (:`EdgeUpsertCounter` {run: $run")
	assert.Contains(t, create, "created: 0")

	collect := counterCollectQuery()
	assert.Contains(t, collect, "MATCH (c:`EdgeUpsertCounter` {run: $run})")
	assert.Contains(t, collect, "DETACH DELETE c")
	assert.Contains(t, collect, "RETURN created, skipped, sourcesNotFound, targetsNotFound")
}

func TestWipeQuery(t *testing.T) {
	assert.Equal(t, "MATCH (n) DETACH DELETE n", wipeQuery())
}
