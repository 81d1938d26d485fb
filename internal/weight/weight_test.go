package weight

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/interlink-cli/internal/geometry"
)

// fixedBlocks returns a preset block count per envelope.
type fixedBlocks map[geometry.Envelope]int

func (f fixedBlocks) Blocks(env geometry.Envelope) int { return f[env] }

func TestParseScheme(t *testing.T) {
	tests := []struct {
		in   string
		want Scheme
	}{
		{"CF", CoOccurrence},
		{"js_approx", ApproximateJaccard},
		{" MBR ", MBROverlap},
		{"NONE", Unweighted},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseScheme(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseScheme("KDE")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown weighting scheme")
}

func TestScheme_StringRoundTrip(t *testing.T) {
	for _, s := range []Scheme{CoOccurrence, ApproximateJaccard, MBROverlap, Unweighted} {
		got, err := ParseScheme(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
	assert.Equal(t, "UNKNOWN", Scheme(42).String())
}

func TestWeight_CoOccurrence(t *testing.T) {
	src := geometry.MustWKT("POLYGON((0 0, 1 0, 1 1, 0 1, 0 0))")
	w := NewWeighter(CoOccurrence, nil)
	assert.InDelta(t, 3.0, w.Weight(src, src, 3), 1e-12)
	assert.Equal(t, CoOccurrence, w.Scheme())
}

func TestWeight_ApproximateJaccard(t *testing.T) {
	src := geometry.MustWKT("POLYGON((0 0, 1 0, 1 1, 0 1, 0 0))")
	trg := geometry.MustWKT("POLYGON((0 0, 2 0, 2 2, 0 2, 0 0))")
	blocks := fixedBlocks{src.Envelope(): 4, trg.Envelope(): 9}

	w := NewWeighter(ApproximateJaccard, blocks)
	// 4 / (4 + 9 - 4)
	assert.InDelta(t, 4.0/9.0, w.Weight(src, trg, 4), 1e-12)
}

func TestWeight_ApproximateJaccardZeroDenominator(t *testing.T) {
	src := geometry.MustWKT("POINT(0 0)")
	w := NewWeighter(ApproximateJaccard, fixedBlocks{})
	assert.Equal(t, 0.0, w.Weight(src, src, 0))
}

func TestWeight_MBROverlap(t *testing.T) {
	src := geometry.MustWKT("POLYGON((0 0, 2 0, 2 2, 0 2, 0 0))")
	trg := geometry.MustWKT("POLYGON((1 1, 3 1, 3 3, 1 3, 1 1))")

	w := NewWeighter(MBROverlap, nil)
	// intersection 1, union 4 + 4 - 1
	assert.InDelta(t, 1.0/7.0, w.Weight(src, trg, 0), 1e-12)
	assert.InDelta(t, 1.0, w.Weight(src, src, 0), 1e-12)
}

func TestWeight_MBROverlapDegenerate(t *testing.T) {
	line := geometry.MustWKT("LINESTRING(0 0, 2 0)")
	pt := geometry.MustWKT("POINT(1 0)")

	w := NewWeighter(MBROverlap, nil)
	assert.Equal(t, 0.0, w.Weight(line, pt, 1))

	far := geometry.MustWKT("POLYGON((5 5, 6 5, 6 6, 5 6, 5 5))")
	assert.Equal(t, 0.0, w.Weight(line, far, 0))
}

func TestWeight_Unweighted(t *testing.T) {
	g := geometry.MustWKT("POINT(1 1)")
	assert.Equal(t, 1.0, NewWeighter(Unweighted, nil).Weight(g, g, 17))
}

func TestValid(t *testing.T) {
	a := geometry.MustWKT("POLYGON((0 0, 1 0, 1 1, 0 1, 0 0))")
	b := geometry.MustWKT("POLYGON((1 0, 2 0, 2 1, 1 1, 1 0))")
	c := geometry.MustWKT("POLYGON((3 3, 4 3, 4 4, 3 4, 3 3))")

	assert.True(t, Valid(a, b))
	assert.False(t, Valid(a, c))
}
