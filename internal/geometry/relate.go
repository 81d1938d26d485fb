package geometry

import (
	sf "github.com/peterstace/simplefeatures/geom"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkb"
	"github.com/twpayne/go-geom/encoding/wkt"
)

// relateHandle is the geometry in the representation used by the DE-9IM
// engine. go-geom has no relate operation, so each geometry is bridged once
// through WKB into simplefeatures at load time.
type relateHandle = sf.Geometry

func newRelateHandle(t geom.T) (relateHandle, error) {
	data, err := wkb.Marshal(t, wkb.NDR)
	if err != nil {
		return relateHandle{}, eris.Wrap(err, "geometry: encode WKB")
	}
	// Real-world datasets carry self-touching rings and similar defects that
	// still relate correctly, so construction-time validation is skipped.
	h, err := sf.UnmarshalWKB(data, sf.NoValidate{})
	if err != nil {
		return relateHandle{}, eris.Wrap(err, "geometry: decode WKB for relate")
	}
	return h, nil
}

// FromWKT parses a WKT string into a Geometry.
func FromWKT(s string) (*Geometry, error) {
	t, err := wkt.Unmarshal(s)
	if err != nil {
		return nil, eris.Wrap(err, "geometry: parse WKT")
	}
	return New(t)
}

// MustWKT is FromWKT that panics on error. Intended for tests and fixtures.
func MustWKT(s string) *Geometry {
	g, err := FromWKT(s)
	if err != nil {
		panic(err)
	}
	return g
}

// Relate computes the DE-9IM intersection matrix of a against b as a
// 9-character string over {F,0,1,2}.
func Relate(a, b *Geometry) (string, error) {
	if a == nil || b == nil {
		return "", eris.New("geometry: relate on nil geometry")
	}
	m, err := sf.Relate(a.relate, b.relate)
	if err != nil {
		return "", eris.Wrap(err, "geometry: relate")
	}
	return m, nil
}
