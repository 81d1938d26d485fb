package geometry

import (
	"context"
	"errors"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
)

// ShapefileSource reads geometries from an ESRI shapefile. Attribute columns
// are ignored.
type ShapefileSource struct {
	path  string
	stats LoadStats
}

// NewShapefileSource creates a source over the .shp file at path.
func NewShapefileSource(path string) *ShapefileSource {
	return &ShapefileSource{path: path}
}

// Path returns the file the source reads from.
func (s *ShapefileSource) Path() string { return s.path }

// Stats returns the record counters. Only meaningful after the geometry
// channel returned by Stream has been closed.
func (s *ShapefileSource) Stats() LoadStats { return s.stats }

// Stream reads every shape in file order and sends the converted geometry on
// the returned channel. Null or unsupported shapes are counted as failed.
func (s *ShapefileSource) Stream(ctx context.Context) (<-chan *Geometry, <-chan error) {
	geomCh := make(chan *Geometry, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(geomCh)
		defer close(errCh)

		log := zap.L().With(zap.String("component", "geometry.shapefile"), zap.String("path", s.path))
		s.stats = LoadStats{}

		reader, err := shp.Open(s.path)
		if err != nil {
			errCh <- eris.Wrapf(err, "geometry: open shapefile %s", s.path)
			return
		}
		defer func() { _ = reader.Close() }()

		for reader.Next() {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "geometry: context cancelled")
				return
			}
			s.stats.Records++

			_, shape := reader.Shape()
			g, convErr := FromShape(shape)
			if convErr != nil {
				if errors.Is(convErr, ErrGeometryCollection) {
					s.stats.GeometryCollections++
				} else {
					s.stats.Failed++
				}
				continue
			}
			s.stats.Loaded++

			select {
			case geomCh <- g:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "geometry: context cancelled")
				return
			}
		}

		if s.stats.Failed > 0 {
			log.Warn("skipped shapefile records", zap.Int("failed", s.stats.Failed))
		}
		if err := reader.Err(); err != nil {
			errCh <- eris.Wrapf(err, "geometry: read shapefile %s", s.path)
		}
	}()

	return geomCh, errCh
}

// FromShape converts a go-shp shape into a Geometry.
func FromShape(shape shp.Shape) (*Geometry, error) {
	if shape == nil {
		return nil, eris.New("geometry: nil shape")
	}

	var t geom.T
	switch s := shape.(type) {
	case *shp.Point:
		t = geom.NewPointFlat(geom.XY, []float64{s.X, s.Y})
	case *shp.MultiPoint:
		t = geom.NewMultiPointFlat(geom.XY, pointsFlat(s.Points))
	case *shp.PolyLine:
		t = polyLineToGeom(s)
	case *shp.Polygon:
		t = polygonToGeom(s)
	default:
		return nil, eris.Errorf("geometry: unsupported shape type %T", shape)
	}

	if t == nil {
		return nil, eris.New("geometry: empty shape")
	}
	return New(t)
}

// partBounds returns the [start, end) point range of part i.
func partBounds(parts []int32, numParts int32, numPoints int, i int32) (int32, int32) {
	start := parts[i]
	end := int32(numPoints)
	if i+1 < numParts {
		end = parts[i+1]
	}
	return start, end
}

// polyLineToGeom converts a shapefile PolyLine to a LineString when it has a
// single part and to a MultiLineString otherwise.
func polyLineToGeom(pl *shp.PolyLine) geom.T {
	if pl.NumParts == 0 || len(pl.Points) == 0 {
		return nil
	}

	if pl.NumParts == 1 {
		return geom.NewLineStringFlat(geom.XY, pointsFlat(pl.Points))
	}

	mls := geom.NewMultiLineString(geom.XY)
	for i := int32(0); i < pl.NumParts; i++ {
		start, end := partBounds(pl.Parts, pl.NumParts, len(pl.Points), i)
		ls := geom.NewLineStringFlat(geom.XY, pointsFlat(pl.Points[start:end]))
		if err := mls.Push(ls); err != nil {
			zap.L().Debug("geometry: skipping malformed linestring part", zap.Int32("part", i), zap.Error(err))
			continue
		}
	}

	if mls.NumLineStrings() == 0 {
		return nil
	}
	return mls
}

// polygonToGeom converts a shapefile Polygon. Shapefile outer rings are
// clockwise and holes counter-clockwise; each clockwise ring starts a new
// polygon and the following holes attach to it.
func polygonToGeom(p *shp.Polygon) geom.T {
	if p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	var polys []*geom.Polygon
	for i := int32(0); i < p.NumParts; i++ {
		start, end := partBounds(p.Parts, p.NumParts, len(p.Points), i)
		pts := p.Points[start:end]
		if len(pts) < 4 {
			continue
		}

		ring := geom.NewLinearRingFlat(geom.XY, pointsFlat(pts))
		if signedArea(pts) <= 0 || len(polys) == 0 {
			poly := geom.NewPolygon(geom.XY)
			if err := poly.Push(ring); err != nil {
				zap.L().Debug("geometry: skipping malformed polygon ring", zap.Int32("part", i), zap.Error(err))
				continue
			}
			polys = append(polys, poly)
			continue
		}

		if err := polys[len(polys)-1].Push(ring); err != nil {
			zap.L().Debug("geometry: skipping malformed hole", zap.Int32("part", i), zap.Error(err))
		}
	}

	switch len(polys) {
	case 0:
		return nil
	case 1:
		return polys[0]
	}

	mp := geom.NewMultiPolygon(geom.XY)
	for _, poly := range polys {
		if err := mp.Push(poly); err != nil {
			zap.L().Debug("geometry: skipping malformed polygon part", zap.Error(err))
		}
	}
	return mp
}

// signedArea is the shoelace area of a ring; negative for clockwise rings.
func signedArea(pts []shp.Point) float64 {
	var sum float64
	for i := 0; i+1 < len(pts); i++ {
		sum += pts[i].X*pts[i+1].Y - pts[i+1].X*pts[i].Y
	}
	return sum / 2
}

func pointsFlat(pts []shp.Point) []float64 {
	flat := make([]float64, 0, len(pts)*2)
	for _, pt := range pts {
		flat = append(flat, pt.X, pt.Y)
	}
	return flat
}
