package de9im

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/interlink-cli/internal/geometry"
)

func TestParseMatrix(t *testing.T) {
	m, err := ParseMatrix("2FFF1FFF2")
	require.NoError(t, err)
	assert.Equal(t, "2FFF1FFF2", m.String())

	_, err = ParseMatrix("2FF")
	require.Error(t, err)

	_, err = ParseMatrix("2FFF1FFFT")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid matrix symbol")
}

func TestPattern_SymbolAlphabets(t *testing.T) {
	tests := []struct {
		pattern string
		symbol  byte
		want    bool
	}{
		{"T", 'F', false},
		{"T", '0', true},
		{"T", '1', true},
		{"T", '2', true},
		{"F", 'F', true},
		{"F", '0', false},
		{"*", 'F', true},
		{"*", '0', true},
		{"*", '1', true},
		{"*", '2', true},
		{"1", '1', true},
		{"1", '2', false},
	}
	for _, tt := range tests {
		t.Run(tt.pattern+string(tt.symbol), func(t *testing.T) {
			p := MustParse(tt.pattern + "********")
			matrix := string(tt.symbol) + "FFFFFFFF"
			assert.Equal(t, tt.want, p.MatchesString(matrix))
		})
	}
}

func TestPattern_Variants(t *testing.T) {
	disjoint := MustParse("FF*FF****")
	intersects := MustParseNegated("FF*FF****")
	touches := MustParseOr("FT*******", "F**T*****", "F***T****")

	assert.Equal(t, Exact, disjoint.Kind())
	assert.Equal(t, Negated, intersects.Kind())
	assert.Equal(t, Or, touches.Kind())

	for _, m := range []string{"FF2FF1212", "2FFF1FFF2", "FF2F11212"} {
		assert.NotEqual(t, disjoint.MatchesString(m), intersects.MatchesString(m), m)
	}
	assert.True(t, touches.MatchesString("FF2F11212"))
	assert.False(t, touches.MatchesString("2FFF1FFF2"))
	assert.False(t, touches.MatchesString("bogus"))

	assert.Equal(t, "!FF*FF****", intersects.String())
	assert.Equal(t, "FT*******||F**T*****||F***T****", touches.String())
}

func TestPattern_ParseErrors(t *testing.T) {
	_, err := Parse("T*F")
	require.Error(t, err)
	_, err = Parse("T*F**FFFX")
	require.Error(t, err)
	_, err = ParseNegated("")
	require.Error(t, err)
	_, err = ParseOr()
	require.Error(t, err)
	_, err = ParseOr("T********", "nope")
	require.Error(t, err)

	assert.Panics(t, func() { MustParse("x") })
}

func TestClassify_Matrices(t *testing.T) {
	tests := []struct {
		name   string
		matrix string
		want   Relation
	}{
		{"identical", "2FFF1FFF2", Equals | Within | CoveredBy | Contains | Covers | Intersects},
		{"disjoint", "FF2FF1212", 0},
		{"shared edge", "FF2F11212", Touches | Intersects},
		{"partial overlap", "212101212", Overlaps | Crosses | Intersects},
		{"line crosses polygon", "101FF0212", Crosses | Overlaps | Intersects},
		{"polygon inside", "2FF1FF212", Within | CoveredBy | Crosses | Intersects},
		{"polygon around", "212FF1FF2", Contains | Covers | Crosses | Intersects},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ClassifyString(tt.matrix)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got, "got %s", got)
		})
	}
}

func TestClassifyPair_IdenticalSquares(t *testing.T) {
	a := geometry.MustWKT("POLYGON((0 0, 1 0, 1 1, 0 1, 0 0))")
	b := geometry.MustWKT("POLYGON((0 0, 1 0, 1 1, 0 1, 0 0))")

	r, err := ClassifyPair(a, b)
	require.NoError(t, err)
	assert.Equal(t, []string{"contains", "coveredBy", "covers", "equals", "intersects", "within"}, r.Labels())
	assert.Len(t, r.Each(), 6)
}

func TestClassifyPair_DisjointSquares(t *testing.T) {
	a := geometry.MustWKT("POLYGON((0 0, 1 0, 1 1, 0 1, 0 0))")
	b := geometry.MustWKT("POLYGON((3 3, 4 3, 4 4, 3 4, 3 3))")

	r, err := ClassifyPair(a, b)
	require.NoError(t, err)
	assert.True(t, r.Empty())
	assert.Empty(t, r.Labels())
	assert.Equal(t, "none", r.String())
}

func TestClassifyPair_AdjacentSquares(t *testing.T) {
	a := geometry.MustWKT("POLYGON((0 0, 1 0, 1 1, 0 1, 0 0))")
	b := geometry.MustWKT("POLYGON((1 0, 2 0, 2 1, 1 1, 1 0))")

	r, err := ClassifyPair(a, b)
	require.NoError(t, err)
	assert.True(t, r.Has(Touches))
	assert.True(t, r.Has(Intersects))
	assert.False(t, r.Has(Overlaps))
	assert.False(t, r.Has(Within))
}

func TestRelation_Helpers(t *testing.T) {
	r := Touches | Intersects
	assert.True(t, r.Has(Touches))
	assert.False(t, r.Has(Touches|Within))
	assert.False(t, r.Has(0))
	assert.Equal(t, "intersects,touches", r.String())

	got, err := ParseRelation("CoveredBy")
	require.NoError(t, err)
	assert.Equal(t, CoveredBy, got)

	_, err = ParseRelation("disjoint")
	require.Error(t, err)

	for _, rel := range Relations {
		_, ok := PatternOf(rel)
		assert.True(t, ok, rel.String())
	}
}
