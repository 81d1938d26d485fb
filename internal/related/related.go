// Package related accumulates verified topological links between source and
// target geometries and derives the quality metrics of a run from them.
package related

import (
	"go.uber.org/zap"

	"github.com/sells-group/interlink-cli/internal/de9im"
	"github.com/sells-group/interlink-cli/internal/geometry"
)

// Pair is one linked (source, target) id pair.
type Pair struct {
	SourceID int `json:"source_id" yaml:"source_id"`
	TargetID int `json:"target_id" yaml:"target_id"`
}

// Geometries records, per relation, the pairs found to satisfy it, together
// with the counters needed for recall, precision and progressive recall.
// It is not safe for concurrent use; verification results must be funneled
// to a single writer.
type Geometries struct {
	qualifyingPairs int

	pairs map[de9im.Relation][]Pair

	verifiedPairs         int
	detectedLinks         int
	interlinkedGeometries int
	pgr                   int64
	consecutiveUnrelated  int
	exceptions            int
}

// New creates an empty aggregator. qualifyingPairs is the ground-truth number
// of related pairs and may be zero when unknown.
func New(qualifyingPairs int) *Geometries {
	if qualifyingPairs < 0 {
		qualifyingPairs = 0
	}
	return &Geometries{
		qualifyingPairs: qualifyingPairs,
		pairs:           make(map[de9im.Relation][]Pair, len(de9im.Relations)),
	}
}

// Verify classifies source against target and records the outcome. A pair
// whose matrix cannot be computed counts as verified and unrelated, and as an
// exception.
func (g *Geometries) Verify(sourceID, targetID int, source, target *geometry.Geometry) bool {
	rel, err := de9im.ClassifyPair(source, target)
	if err != nil {
		g.exceptions++
		zap.L().Debug("relate failed",
			zap.String("component", "related"),
			zap.Int("source_id", sourceID),
			zap.Int("target_id", targetID),
			zap.Error(err),
		)
		return g.Record(sourceID, targetID, 0)
	}
	return g.Record(sourceID, targetID, rel)
}

// Record adds one verified pair with the relations it satisfies and reports
// whether it was related at all.
func (g *Geometries) Record(sourceID, targetID int, rel de9im.Relation) bool {
	g.verifiedPairs++

	for _, r := range rel.Each() {
		g.pairs[r] = append(g.pairs[r], Pair{SourceID: sourceID, TargetID: targetID})
		g.detectedLinks++
	}

	if rel.Empty() {
		g.consecutiveUnrelated++
		return false
	}
	g.interlinkedGeometries++
	g.pgr += int64(g.interlinkedGeometries)
	g.consecutiveUnrelated = 0
	return true
}

// Pairs returns the pairs recorded for a single relation, in verification order.
func (g *Geometries) Pairs(r de9im.Relation) []Pair { return g.pairs[r] }

// Count returns the number of pairs recorded for a single relation.
func (g *Geometries) Count(r de9im.Relation) int { return len(g.pairs[r]) }

// VerifiedPairs returns the number of pairs checked so far.
func (g *Geometries) VerifiedPairs() int { return g.verifiedPairs }

// DetectedLinks returns the number of (pair, relation) hits.
func (g *Geometries) DetectedLinks() int { return g.detectedLinks }

// InterlinkedGeometries returns the number of verified pairs with at least
// one relation.
func (g *Geometries) InterlinkedGeometries() int { return g.interlinkedGeometries }

// ConsecutiveUnrelated returns how many pairs in a row were found unrelated
// since the last related one.
func (g *Geometries) ConsecutiveUnrelated() int { return g.consecutiveUnrelated }

// Exceptions returns the number of pairs whose matrix could not be computed.
func (g *Geometries) Exceptions() int { return g.exceptions }

// Recall is interlinked geometries over qualifying pairs. ok is false when
// there are no qualifying pairs.
func (g *Geometries) Recall() (float64, bool) {
	if g.qualifyingPairs == 0 {
		return 0, false
	}
	return float64(g.interlinkedGeometries) / float64(g.qualifyingPairs), true
}

// Precision is interlinked geometries over verified pairs. ok is false
// before anything was verified.
func (g *Geometries) Precision() (float64, bool) {
	if g.verifiedPairs == 0 {
		return 0, false
	}
	return float64(g.interlinkedGeometries) / float64(g.verifiedPairs), true
}

// ProgressiveRecall normalizes the rank-weighted accumulator by qualifying
// pairs times verified pairs. It rewards finding related pairs early.
func (g *Geometries) ProgressiveRecall() (float64, bool) {
	if g.qualifyingPairs == 0 || g.verifiedPairs == 0 {
		return 0, false
	}
	return float64(g.pgr) / (float64(g.qualifyingPairs) * float64(g.verifiedPairs)), true
}
