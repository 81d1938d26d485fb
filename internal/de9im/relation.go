package de9im

import (
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/interlink-cli/internal/geometry"
)

// Relation is a set of named topological relations.
type Relation uint16

// Named relations.
const (
	Contains Relation = 1 << iota
	CoveredBy
	Covers
	Crosses
	Equals
	Intersects
	Overlaps
	Touches
	Within
)

// Relations lists every named relation in reporting order.
var Relations = []Relation{Contains, CoveredBy, Covers, Crosses, Equals, Intersects, Overlaps, Touches, Within}

var labels = map[Relation]string{
	Contains:   "contains",
	CoveredBy:  "coveredBy",
	Covers:     "covers",
	Crosses:    "crosses",
	Equals:     "equals",
	Intersects: "intersects",
	Overlaps:   "overlaps",
	Touches:    "touches",
	Within:     "within",
}

// patterns holds the predicate of every single relation. The patterns do
// not look at operand dimension, so crosses and overlaps also hold for
// polygon pairs whose interior meets the other exterior.
var patterns = map[Relation]Pattern{
	Contains:   MustParse("T*****FF*"),
	CoveredBy:  MustParseOr("T*F**F***", "*TF**F***", "**FT*F***", "**F*TF***"),
	Covers:     MustParseOr("T*****FF*", "*T****FF*", "***T**FF*", "****T*FF*"),
	Crosses:    MustParseOr("0********", "T*T******", "T*****T**"),
	Equals:     MustParse("T*F**FFF*"),
	Intersects: MustParseNegated("FF*FF****"),
	Overlaps:   MustParseOr("T*T***T**", "1*T***T**"),
	Touches:    MustParseOr("FT*******", "F**T*****", "F***T****"),
	Within:     MustParse("T*F**F***"),
}

// PatternOf returns the predicate of a single named relation.
func PatternOf(r Relation) (Pattern, bool) {
	p, ok := patterns[r]
	return p, ok
}

// ParseRelation resolves a relation label, case-insensitively.
func ParseRelation(s string) (Relation, error) {
	for _, r := range Relations {
		if strings.EqualFold(labels[r], strings.TrimSpace(s)) {
			return r, nil
		}
	}
	return 0, eris.Errorf("de9im: unknown relation %q", s)
}

// Has reports whether every relation in o is in r.
func (r Relation) Has(o Relation) bool { return o != 0 && r&o == o }

// Empty reports whether no relation holds.
func (r Relation) Empty() bool { return r == 0 }

// Each returns the single relations held by r in reporting order.
func (r Relation) Each() []Relation {
	var out []Relation
	for _, s := range Relations {
		if r&s != 0 {
			out = append(out, s)
		}
	}
	return out
}

// Labels returns the names of the relations held by r in reporting order.
func (r Relation) Labels() []string {
	var out []string
	for _, s := range r.Each() {
		out = append(out, labels[s])
	}
	return out
}

func (r Relation) String() string {
	if r == 0 {
		return "none"
	}
	return strings.Join(r.Labels(), ",")
}

// Classify evaluates every named pattern against m. A matrix commonly
// satisfies several relations at once.
func Classify(m Matrix) Relation {
	var out Relation
	for _, r := range Relations {
		if patterns[r].Matches(m) {
			out |= r
		}
	}
	return out
}

// ClassifyString parses a 9-character matrix and classifies it.
func ClassifyString(s string) (Relation, error) {
	m, err := ParseMatrix(s)
	if err != nil {
		return 0, err
	}
	return Classify(m), nil
}

// ClassifyPair computes the DE-9IM matrix of a against b and classifies it.
func ClassifyPair(a, b *geometry.Geometry) (Relation, error) {
	im, err := geometry.Relate(a, b)
	if err != nil {
		return 0, err
	}
	r, err := ClassifyString(im)
	if err != nil {
		return 0, eris.Wrapf(err, "de9im: classify %q", im)
	}
	return r, nil
}
