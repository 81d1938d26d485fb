package geometry

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelope_Intersects(t *testing.T) {
	a := Envelope{MinX: 0, MinY: 0, MaxX: 1, MaxY: 1}

	tests := []struct {
		name string
		b    Envelope
		want bool
	}{
		{"overlapping", Envelope{0.5, 0.5, 2, 2}, true},
		{"touching edge", Envelope{1, 0, 2, 1}, true},
		{"touching corner", Envelope{1, 1, 2, 2}, true},
		{"disjoint in x", Envelope{1.1, 0, 2, 1}, false},
		{"disjoint in y", Envelope{0, -2, 1, -0.1}, false},
		{"contained", Envelope{0.2, 0.2, 0.8, 0.8}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, a.Intersects(tt.b))
			assert.Equal(t, tt.want, tt.b.Intersects(a))
		})
	}
}

func TestEnvelope_Intersection(t *testing.T) {
	a := Envelope{0, 0, 2, 2}
	got, ok := a.Intersection(Envelope{1, 1, 3, 3})
	require.True(t, ok)
	assert.Equal(t, Envelope{1, 1, 2, 2}, got)
	assert.InDelta(t, 1.0, got.Area(), 1e-12)

	_, ok = a.Intersection(Envelope{5, 5, 6, 6})
	assert.False(t, ok)
}

func TestFromWKT_Polygon(t *testing.T) {
	g, err := FromWKT("POLYGON((0 0, 2 0, 2 1, 0 1, 0 0))")
	require.NoError(t, err)

	assert.Equal(t, Envelope{0, 0, 2, 1}, g.Envelope())
	assert.InDelta(t, 2.0, g.Area(), 1e-12)
	assert.InDelta(t, 6.0, g.Length(), 1e-12)
	assert.Equal(t, 5, g.PointCount())
	assert.NotNil(t, g.Shape())
}

func TestFromWKT_AreaIgnoresRingOrientation(t *testing.T) {
	tests := []struct {
		name string
		wkt  string
		want float64
	}{
		{"clockwise shell", "POLYGON((0 0, 0 1, 1 1, 1 0, 0 0))", 1},
		{"hole with shell orientation", "POLYGON((0 0, 4 0, 4 4, 0 4, 0 0), (1 1, 2 1, 2 2, 1 2, 1 1))", 15},
		{"hole opposite orientation", "POLYGON((0 0, 4 0, 4 4, 0 4, 0 0), (1 1, 1 2, 2 2, 2 1, 1 1))", 15},
		{"mixed multipolygon", "MULTIPOLYGON(((0 0, 1 0, 1 1, 0 1, 0 0)), ((5 5, 5 6, 6 6, 6 5, 5 5)))", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, MustWKT(tt.wkt).Area(), 1e-12)
		})
	}
}

func TestFromWKT_LineString(t *testing.T) {
	g, err := FromWKT("LINESTRING(0 0, 3 4)")
	require.NoError(t, err)

	assert.InDelta(t, 0.0, g.Area(), 1e-12)
	assert.InDelta(t, 5.0, g.Length(), 1e-12)
	assert.Equal(t, 2, g.PointCount())
}

func TestFromWKT_MultiPolygonPointCount(t *testing.T) {
	g, err := FromWKT("MULTIPOLYGON(((0 0, 1 0, 1 1, 0 0)), ((5 5, 6 5, 6 6, 5 6, 5 5)))")
	require.NoError(t, err)
	assert.Equal(t, 9, g.PointCount())
	assert.Equal(t, Envelope{0, 0, 6, 6}, g.Envelope())
}

func TestFromWKT_PointHasNoPoints(t *testing.T) {
	g, err := FromWKT("POINT(3 4)")
	require.NoError(t, err)
	assert.Equal(t, 0, g.PointCount())
	assert.Equal(t, Envelope{3, 4, 3, 4}, g.Envelope())
}

func TestFromWKT_GeometryCollection(t *testing.T) {
	_, err := FromWKT("GEOMETRYCOLLECTION(POINT(1 1), LINESTRING(0 0, 1 1))")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGeometryCollection)
}

func TestFromWKT_Malformed(t *testing.T) {
	_, err := FromWKT("POLYGON((0 0, 1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrGeometryCollection)
}

func TestRelate(t *testing.T) {
	sq := MustWKT("POLYGON((0 0, 1 0, 1 1, 0 1, 0 0))")

	m, err := Relate(sq, MustWKT("POLYGON((0 0, 1 0, 1 1, 0 1, 0 0))"))
	require.NoError(t, err)
	assert.Equal(t, "2FFF1FFF2", m)

	m, err = Relate(sq, MustWKT("POLYGON((5 5, 6 5, 6 6, 5 6, 5 5))"))
	require.NoError(t, err)
	assert.Equal(t, "FF2FF1212", m)

	_, err = Relate(sq, nil)
	assert.Error(t, err)
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDelimitedSource_SkipsAndCounts(t *testing.T) {
	content := strings.Join([]string{
		"POLYGON((0 0, 1 0, 1 1, 0 1, 0 0))\tfirst",
		"not a geometry\tbroken",
		"GEOMETRYCOLLECTION(POINT(1 1))\tcollection",
		"LINESTRING(0 0, 2 2)\tsecond",
		"",
		"POINT(4 4)",
	}, "\n")
	path := writeFile(t, "data.tsv", content)

	src := NewDelimitedSource(path, ReaderOptions{Delimiter: '\t'})
	geoms, err := LoadAll(context.Background(), src)
	require.NoError(t, err)

	require.Len(t, geoms, 3)
	assert.Equal(t, Envelope{0, 0, 1, 1}, geoms[0].Envelope())
	assert.Equal(t, Envelope{0, 0, 2, 2}, geoms[1].Envelope())
	assert.Equal(t, Envelope{4, 4, 4, 4}, geoms[2].Envelope())

	stats := src.Stats()
	assert.Equal(t, 5, stats.Records)
	assert.Equal(t, 3, stats.Loaded)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.GeometryCollections)
}

func TestDelimitedSource_Header(t *testing.T) {
	path := writeFile(t, "data.csv", "wkt;name\n\"POINT(1 2)\";a\n")

	src := NewDelimitedSource(path, ReaderOptions{Delimiter: ';', HasHeader: true})
	geoms, err := LoadAll(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, geoms, 1)
	assert.Equal(t, 0, src.Stats().Failed)
}

func TestDelimitedSource_QuotedWKTWithCommaDelimiter(t *testing.T) {
	path := writeFile(t, "data.csv", "\"LINESTRING(0 0, 1 1)\",x\n")

	geoms, err := LoadAll(context.Background(), NewDelimitedSource(path, ReaderOptions{Delimiter: ','}))
	require.NoError(t, err)
	require.Len(t, geoms, 1)
	assert.InDelta(t, 1.41421356, geoms[0].Length(), 1e-6)
}

func TestLoadAll_EmptyCollection(t *testing.T) {
	path := writeFile(t, "empty.tsv", "garbage\n")

	_, err := LoadAll(context.Background(), NewDelimitedSource(path, ReaderOptions{}))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmptyCollection)
}

func TestLoadAll_MissingFile(t *testing.T) {
	_, err := LoadAll(context.Background(), NewDelimitedSource(filepath.Join(t.TempDir(), "nope.tsv"), ReaderOptions{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "geometry: open")
}

func TestDelimitedSource_Cancelled(t *testing.T) {
	path := writeFile(t, "data.tsv", "POINT(1 1)\nPOINT(2 2)\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := LoadAll(ctx, NewDelimitedSource(path, ReaderOptions{}))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpen_PicksByExtension(t *testing.T) {
	assert.IsType(t, &ShapefileSource{}, Open("regions.SHP", ReaderOptions{}))
	assert.IsType(t, &DelimitedSource{}, Open("regions.tsv", ReaderOptions{}))
}

func writeShapefile(t *testing.T, polys ...*shp.Polygon) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "regions.shp")
	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)
	for _, p := range polys {
		w.Write(p)
	}
	w.Close()
	return path
}

func unitSquare(x, y float64) *shp.Polygon {
	return &shp.Polygon{
		Box:       shp.Box{MinX: x, MinY: y, MaxX: x + 1, MaxY: y + 1},
		NumParts:  1,
		Parts:     []int32{0},
		NumPoints: 5,
		Points: []shp.Point{
			{X: x, Y: y}, {X: x, Y: y + 1}, {X: x + 1, Y: y + 1}, {X: x + 1, Y: y}, {X: x, Y: y},
		},
	}
}

func TestShapefileSource_LoadAll(t *testing.T) {
	path := writeShapefile(t, unitSquare(0, 0), unitSquare(3, 3))

	src := NewShapefileSource(path)
	gs, err := LoadAll(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, gs, 2)
	assert.InDelta(t, 1.0, gs[0].Area(), 1e-9)
	assert.Equal(t, 2, src.Stats().Loaded)
}

func TestShapefileSource_TruncatedFile(t *testing.T) {
	path := writeShapefile(t, unitSquare(0, 0), unitSquare(3, 3))
	info, err := os.Stat(path)
	require.NoError(t, err)
	// Cut into the last point of the second record.
	require.NoError(t, os.Truncate(path, info.Size()-8))

	_, err = LoadAll(context.Background(), NewShapefileSource(path))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "geometry: read shapefile")
}

func TestFromShape_Polygon(t *testing.T) {
	poly := &shp.Polygon{
		NumParts: 1,
		Parts:    []int32{0},
		Points: []shp.Point{
			{X: -80.0, Y: 25.0},
			{X: -80.0, Y: 26.0},
			{X: -79.0, Y: 26.0},
			{X: -79.0, Y: 25.0},
			{X: -80.0, Y: 25.0}, // closed ring
		},
	}

	g, err := FromShape(poly)
	require.NoError(t, err)
	assert.Equal(t, Envelope{-80, 25, -79, 26}, g.Envelope())
	assert.InDelta(t, 1.0, g.Area(), 1e-9)
	assert.Equal(t, 5, g.PointCount())
}

func TestFromShape_PolygonWithHole(t *testing.T) {
	poly := &shp.Polygon{
		NumParts: 2,
		Parts:    []int32{0, 5},
		Points: []shp.Point{
			// Outer ring, clockwise
			{X: 0, Y: 0}, {X: 0, Y: 4}, {X: 4, Y: 4}, {X: 4, Y: 0}, {X: 0, Y: 0},
			// Hole, counter-clockwise
			{X: 1, Y: 1}, {X: 2, Y: 1}, {X: 2, Y: 2}, {X: 1, Y: 2}, {X: 1, Y: 1},
		},
	}

	g, err := FromShape(poly)
	require.NoError(t, err)
	assert.InDelta(t, 15.0, g.Area(), 1e-9)
	assert.Equal(t, 5, g.PointCount())
}

func TestFromShape_MultiPartPolygon(t *testing.T) {
	poly := &shp.Polygon{
		NumParts: 2,
		Parts:    []int32{0, 5},
		Points: []shp.Point{
			{X: 0, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1}, {X: 1, Y: 0}, {X: 0, Y: 0},
			{X: 5, Y: 5}, {X: 5, Y: 6}, {X: 6, Y: 6}, {X: 6, Y: 5}, {X: 5, Y: 5},
		},
	}

	g, err := FromShape(poly)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, g.Area(), 1e-9)
	assert.Equal(t, 10, g.PointCount())
	assert.Equal(t, Envelope{0, 0, 6, 6}, g.Envelope())
}

func TestFromShape_PolyLine(t *testing.T) {
	pl := &shp.PolyLine{
		NumParts: 2,
		Parts:    []int32{0, 2},
		Points: []shp.Point{
			{X: 0, Y: 0}, {X: 3, Y: 4},
			{X: 10, Y: 10}, {X: 10, Y: 12},
		},
	}

	g, err := FromShape(pl)
	require.NoError(t, err)
	assert.InDelta(t, 7.0, g.Length(), 1e-9)
}

func TestFromShape_Invalid(t *testing.T) {
	_, err := FromShape(nil)
	assert.Error(t, err)

	_, err = FromShape(&shp.Polygon{})
	assert.Error(t, err)

	_, err = FromShape(&shp.PolyLine{})
	assert.Error(t, err)
}

func TestFromShape_Point(t *testing.T) {
	g, err := FromShape(&shp.Point{X: -80.19, Y: 25.77})
	require.NoError(t, err)
	assert.Equal(t, Envelope{-80.19, 25.77, -80.19, 25.77}, g.Envelope())
}
