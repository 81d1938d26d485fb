// Package weight converts the co-occurrence and envelope statistics of a
// candidate pair into a scalar priority.
package weight

import (
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/interlink-cli/internal/geometry"
)

// Scheme selects how a candidate pair is weighted.
type Scheme int

const (
	// CoOccurrence weights a pair by the number of grid cells it shares.
	CoOccurrence Scheme = iota
	// ApproximateJaccard estimates the Jaccard similarity of the two cell sets.
	ApproximateJaccard
	// MBROverlap is the intersection-over-union of the two envelopes.
	MBROverlap
	// Unweighted gives every valid pair the same weight.
	Unweighted
)

// String returns the configuration name of the scheme.
func (s Scheme) String() string {
	switch s {
	case CoOccurrence:
		return "CF"
	case ApproximateJaccard:
		return "JS_APPROX"
	case MBROverlap:
		return "MBR"
	case Unweighted:
		return "NONE"
	default:
		return "UNKNOWN"
	}
}

// ParseScheme maps a configuration name to a Scheme. Matching is case-insensitive.
func ParseScheme(name string) (Scheme, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "CF":
		return CoOccurrence, nil
	case "JS_APPROX":
		return ApproximateJaccard, nil
	case "MBR":
		return MBROverlap, nil
	case "NONE":
		return Unweighted, nil
	default:
		return 0, eris.Errorf("weight: unknown weighting scheme %q", name)
	}
}

// BlockCounter reports how many grid cells cover an envelope.
type BlockCounter interface {
	Blocks(env geometry.Envelope) int
}

// Weighter computes pair weights for one scheme over one grid.
type Weighter struct {
	scheme Scheme
	grid   BlockCounter
}

// NewWeighter returns a Weighter. grid is only consulted by ApproximateJaccard.
func NewWeighter(scheme Scheme, grid BlockCounter) Weighter {
	return Weighter{scheme: scheme, grid: grid}
}

// Scheme returns the configured scheme.
func (w Weighter) Scheme() Scheme { return w.scheme }

// Valid reports whether the envelopes of the pair intersect. Only valid pairs
// are weighted and scheduled.
func Valid(source, target *geometry.Geometry) bool {
	return source.Envelope().Intersects(target.Envelope())
}

// Weight returns the priority of the pair given the number of cells the two
// envelopes share. Degenerate denominators yield 0.
func (w Weighter) Weight(source, target *geometry.Geometry, coOccurrence int) float64 {
	switch w.scheme {
	case CoOccurrence:
		return float64(coOccurrence)
	case ApproximateJaccard:
		return jaccard(coOccurrence, w.grid.Blocks(source.Envelope()), w.grid.Blocks(target.Envelope()))
	case MBROverlap:
		return mbrOverlap(source.Envelope(), target.Envelope())
	default:
		return 1.0
	}
}

func jaccard(common, sourceBlocks, targetBlocks int) float64 {
	denominator := sourceBlocks + targetBlocks - common
	if denominator <= 0 {
		return 0
	}
	return float64(common) / float64(denominator)
}

func mbrOverlap(source, target geometry.Envelope) float64 {
	inter, ok := source.Intersection(target)
	if !ok {
		return 0
	}
	interArea := inter.Area()
	denominator := source.Area() + target.Area() - interArea
	if denominator == 0 {
		return 0
	}
	return interArea / denominator
}
