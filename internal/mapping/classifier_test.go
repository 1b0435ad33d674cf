package mapping

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShouldKeep(t *testing.T) {
	tests := []struct {
		name   string
		column any
		want   bool
	}{
		{name: "plain_name", column: "id", want: true},
		{name: "mixed_case", column: "Name", want: true},
		{name: "uppercase_edge_name", column: "CONTAINS", want: true},
		{name: "reserved_prefix", column: "_id", want: false},
		{name: "reserved_prefix_with_dunder", column: "_id__", want: false},
		{name: "reserved_id_property", column: "_aid", want: false},
		{name: "empty_string", column: "", want: true},
		{name: "nil_input", column: nil, want: false},
		{name: "int_input", column: 1234, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldKeep(tt.column))
		})
	}
}

func TestIsEdgeColumn(t *testing.T) {
	tests := []struct {
		name   string
		column any
		want   bool
	}{
		{name: "all_caps", column: "CONTAINS", want: true},
		{name: "caps_with_underscore", column: "CONTAINS_ENTITIES", want: true},
		{name: "caps_with_dunder_suffix", column: "CONTAINS__COMPANY", want: true},
		{name: "lowercase", column: "contains", want: false},
		{name: "mixed_case", column: "Contains", want: false},
		{name: "empty_string", column: "", want: false},
		{name: "digits_only", column: "1234", want: false},
		{name: "nil_input", column: nil, want: false},
		{name: "int_input", column: 1234, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsEdgeColumn(tt.column))
		})
	}
}

func TestIsPropertyColumn(t *testing.T) {
	tests := []struct {
		name   string
		column any
		want   bool
	}{
		{name: "lowercase", column: "contains", want: true},
		{name: "mixed_case", column: "Name", want: true},
		{name: "all_caps", column: "CONTAINS", want: false},
		{name: "caps_with_underscore", column: "CONTAINS_ENTITIES", want: false},
		{name: "nil_input", column: nil, want: false},
		{name: "int_input", column: 1234, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsPropertyColumn(tt.column))
		})
	}
}

// Every string classifies as exactly one of edge or property.
func TestEdgePropertyComplement(t *testing.T) {
	for _, column := range []string{"", "a", "A", "CONTAINS", "contains", "Name", "WORKS_AT", "x__Y", "1234"} {
		assert.NotEqual(t, IsEdgeColumn(column), IsPropertyColumn(column), "column %q", column)
	}
}

func TestNormalizeEdgeName(t *testing.T) {
	tests := []struct {
		name   string
		column string
		want   string
	}{
		{name: "already_normalized", column: "CONTAINS", want: "CONTAINS"},
		{name: "dunder_suffix", column: "CONTAINS__COMPANY", want: "CONTAINS"},
		{name: "double_suffix", column: "CONTAINS__COMPANY__OLD", want: "CONTAINS"},
		{name: "single_underscore_kept", column: "WORKS_AT", want: "WORKS_AT"},
		{name: "empty", column: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeEdgeName(tt.column)
			assert.Equal(t, tt.want, got)
			// Idempotent on its own output.
			assert.Equal(t, got, NormalizeEdgeName(got))
		})
	}
}
