package geometry

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// Source yields an ordered sequence of geometries. Geometry ids are the
// 0-based positions in that sequence.
type Source interface {
	// Stream sends geometries in input order. Both channels are closed when
	// the source is exhausted or fails.
	Stream(ctx context.Context) (<-chan *Geometry, <-chan error)
	// Stats reports record counters once the stream has completed.
	Stats() LoadStats
	// Path identifies the input.
	Path() string
}

// Open returns the Source for path, chosen by file extension: .shp files are
// read as shapefiles, anything else as delimited WKT.
func Open(path string, opts ReaderOptions) Source {
	if strings.EqualFold(filepath.Ext(path), ".shp") {
		return NewShapefileSource(path)
	}
	return NewDelimitedSource(path, opts)
}

// LoadAll drains src into memory. It fails with ErrEmptyCollection when no
// geometry survives loading.
func LoadAll(ctx context.Context, src Source) ([]*Geometry, error) {
	geomCh, errCh := src.Stream(ctx)

	var out []*Geometry
	for g := range geomCh {
		out = append(out, g)
	}
	if err := <-errCh; err != nil {
		return nil, err
	}

	if len(out) == 0 {
		return nil, eris.Wrapf(ErrEmptyCollection, "geometry: %s", src.Path())
	}
	return out, nil
}
