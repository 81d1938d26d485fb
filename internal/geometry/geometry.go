// Package geometry holds the geometry model consumed by the interlinking core:
// immutable geometries with a bounding envelope, area, length and point count,
// plus the loaders that produce them from delimited WKT files and shapefiles.
package geometry

import (
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// ErrEmptyCollection is returned when a source or target collection holds no geometries.
var ErrEmptyCollection = eris.New("geometry: empty collection")

// ErrGeometryCollection marks a record that parsed into a GEOMETRYCOLLECTION.
// Such records are excluded from the loaded sequence and counted separately.
var ErrGeometryCollection = eris.New("geometry: geometry collection")

// Envelope is an axis-aligned bounding box.
type Envelope struct {
	MinX, MinY, MaxX, MaxY float64
}

// Width returns MaxX - MinX.
func (e Envelope) Width() float64 { return e.MaxX - e.MinX }

// Height returns MaxY - MinY.
func (e Envelope) Height() float64 { return e.MaxY - e.MinY }

// Area returns the area covered by the envelope.
func (e Envelope) Area() float64 { return e.Width() * e.Height() }

// Intersects reports whether the two envelopes share at least one point.
// Touching edges count as intersecting.
func (e Envelope) Intersects(o Envelope) bool {
	return e.MinX <= o.MaxX && o.MinX <= e.MaxX &&
		e.MinY <= o.MaxY && o.MinY <= e.MaxY
}

// Intersection returns the overlap of the two envelopes. The boolean is false
// when they do not intersect, in which case the zero Envelope is returned.
func (e Envelope) Intersection(o Envelope) (Envelope, bool) {
	if !e.Intersects(o) {
		return Envelope{}, false
	}
	return Envelope{
		MinX: math.Max(e.MinX, o.MinX),
		MinY: math.Max(e.MinY, o.MinY),
		MaxX: math.Min(e.MaxX, o.MaxX),
		MaxY: math.Min(e.MaxY, o.MaxY),
	}, true
}

// Geometry is a loaded geometry with its derived attributes. It is never
// mutated after construction and is referenced by id from index structures.
type Geometry struct {
	envelope   Envelope
	area       float64
	length     float64
	pointCount int

	shape  geom.T
	relate relateHandle
}

// Envelope returns the bounding box of the geometry.
func (g *Geometry) Envelope() Envelope { return g.envelope }

// Area returns the planar area (zero for points and lines).
func (g *Geometry) Area() float64 { return g.area }

// Length returns the planar length (perimeter for polygons).
func (g *Geometry) Length() float64 { return g.length }

// PointCount returns the number of boundary points: exterior ring
// coordinates for polygons, coordinates for lines, zero otherwise.
func (g *Geometry) PointCount() int { return g.pointCount }

// Shape returns the underlying go-geom geometry.
func (g *Geometry) Shape() geom.T { return g.shape }

// New derives the attributes of a go-geom geometry and prepares it for
// topological relate calls.
func New(t geom.T) (*Geometry, error) {
	if t == nil {
		return nil, eris.New("geometry: nil geometry")
	}
	if _, ok := t.(*geom.GeometryCollection); ok {
		return nil, ErrGeometryCollection
	}
	if len(t.FlatCoords()) == 0 {
		return nil, eris.New("geometry: empty geometry")
	}

	b := t.Bounds()
	env := Envelope{MinX: b.Min(0), MinY: b.Min(1), MaxX: b.Max(0), MaxY: b.Max(1)}
	for _, v := range []float64{env.MinX, env.MinY, env.MaxX, env.MaxY} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, eris.New("geometry: non-finite bounds")
		}
	}

	h, err := newRelateHandle(t)
	if err != nil {
		return nil, err
	}

	return &Geometry{
		envelope:   env,
		area:       areaOf(t),
		length:     lengthOf(t),
		pointCount: pointCountOf(t),
		shape:      t,
		relate:     h,
	}, nil
}

// areaOf returns the planar area. go-geom sums signed ring areas, so the
// shell and holes are measured separately and ring orientation is ignored.
func areaOf(t geom.T) float64 {
	switch g := t.(type) {
	case *geom.Polygon:
		return polygonArea(g)
	case *geom.MultiPolygon:
		area := 0.0
		for i := 0; i < g.NumPolygons(); i++ {
			area += polygonArea(g.Polygon(i))
		}
		return area
	default:
		return 0
	}
}

func polygonArea(p *geom.Polygon) float64 {
	if p.NumLinearRings() == 0 {
		return 0
	}
	area := math.Abs(p.LinearRing(0).Area())
	for i := 1; i < p.NumLinearRings(); i++ {
		area -= math.Abs(p.LinearRing(i).Area())
	}
	return math.Max(area, 0)
}

func lengthOf(t geom.T) float64 {
	switch g := t.(type) {
	case *geom.LineString:
		return g.Length()
	case *geom.MultiLineString:
		return g.Length()
	case *geom.Polygon:
		return g.Length()
	case *geom.MultiPolygon:
		return g.Length()
	default:
		return 0
	}
}

func pointCountOf(t geom.T) int {
	switch g := t.(type) {
	case *geom.Polygon:
		if g.NumLinearRings() == 0 {
			return 0
		}
		return g.LinearRing(0).NumCoords()
	case *geom.MultiPolygon:
		n := 0
		for i := 0; i < g.NumPolygons(); i++ {
			p := g.Polygon(i)
			if p.NumLinearRings() > 0 {
				n += p.LinearRing(0).NumCoords()
			}
		}
		return n
	case *geom.LineString:
		return g.NumCoords()
	default:
		return 0
	}
}
