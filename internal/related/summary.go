package related

import (
	"github.com/sells-group/interlink-cli/internal/de9im"
)

// Summary is a serializable snapshot of a Geometries aggregator. Guarded
// metrics are nil when undefined.
type Summary struct {
	QualifyingPairs       int            `json:"qualifying_pairs" yaml:"qualifying_pairs"`
	VerifiedPairs         int            `json:"verified_pairs" yaml:"verified_pairs"`
	DetectedLinks         int            `json:"detected_links" yaml:"detected_links"`
	InterlinkedGeometries int            `json:"interlinked_geometries" yaml:"interlinked_geometries"`
	ConsecutiveUnrelated  int            `json:"consecutive_unrelated" yaml:"consecutive_unrelated"`
	Exceptions            int            `json:"exceptions" yaml:"exceptions"`
	Relations             map[string]int `json:"relations" yaml:"relations"`
	Recall                *float64       `json:"recall" yaml:"recall"`
	Precision             *float64       `json:"precision" yaml:"precision"`
	ProgressiveRecall     *float64       `json:"progressive_recall" yaml:"progressive_recall"`
}

// Summary captures the current counters and derived metrics. Every relation
// appears in Relations, including those with no pairs.
func (g *Geometries) Summary() Summary {
	s := Summary{
		QualifyingPairs:       g.qualifyingPairs,
		VerifiedPairs:         g.verifiedPairs,
		DetectedLinks:         g.detectedLinks,
		InterlinkedGeometries: g.interlinkedGeometries,
		ConsecutiveUnrelated:  g.consecutiveUnrelated,
		Exceptions:            g.exceptions,
		Relations:             make(map[string]int, len(de9im.Relations)),
	}
	for _, r := range de9im.Relations {
		s.Relations[r.String()] = g.Count(r)
	}
	s.Recall = optional(g.Recall())
	s.Precision = optional(g.Precision())
	s.ProgressiveRecall = optional(g.ProgressiveRecall())
	return s
}

func optional(v float64, ok bool) *float64 {
	if !ok {
		return nil
	}
	return &v
}
