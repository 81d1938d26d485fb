package geometry

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ReaderOptions configures the delimited WKT reader.
type ReaderOptions struct {
	Delimiter rune // default '\t'
	HasHeader bool // if true, the first record is skipped
}

// LoadStats counts what happened to the records of one input.
type LoadStats struct {
	Records             int `json:"records" yaml:"records"`
	Loaded              int `json:"loaded" yaml:"loaded"`
	Failed              int `json:"failed" yaml:"failed"`
	GeometryCollections int `json:"geometry_collections" yaml:"geometry_collections"`
}

// DelimitedSource reads geometries from a delimited text file whose first
// field holds a WKT string. Remaining fields are ignored.
type DelimitedSource struct {
	path  string
	opts  ReaderOptions
	stats LoadStats
}

// NewDelimitedSource creates a source over the file at path.
func NewDelimitedSource(path string, opts ReaderOptions) *DelimitedSource {
	if opts.Delimiter == 0 {
		opts.Delimiter = '\t'
	}
	return &DelimitedSource{path: path, opts: opts}
}

// Path returns the file the source reads from.
func (s *DelimitedSource) Path() string { return s.path }

// Stats returns the record counters. Only meaningful after the geometry
// channel returned by Stream has been closed.
func (s *DelimitedSource) Stats() LoadStats { return s.stats }

// Stream opens the file and sends each parsed geometry on the returned
// channel in input order. Malformed records and geometry collections are
// counted and skipped. Both channels are closed when processing completes.
func (s *DelimitedSource) Stream(ctx context.Context) (<-chan *Geometry, <-chan error) {
	geomCh := make(chan *Geometry, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(geomCh)
		defer close(errCh)

		f, err := os.Open(s.path)
		if err != nil {
			errCh <- eris.Wrapf(err, "geometry: open %s", s.path)
			return
		}
		defer f.Close() //nolint:errcheck

		if err := s.scan(ctx, f, geomCh); err != nil {
			errCh <- err
		}
	}()

	return geomCh, errCh
}

// scan parses records from r. It is split from Stream so it can run over
// in-memory readers.
func (s *DelimitedSource) scan(ctx context.Context, r io.Reader, out chan<- *Geometry) error {
	log := zap.L().With(zap.String("component", "geometry.delimited"), zap.String("path", s.path))
	s.stats = LoadStats{}

	reader := csv.NewReader(r)
	reader.Comma = s.opts.Delimiter
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1 // allow variable fields
	reader.ReuseRecord = true

	first := true
	for {
		if ctx.Err() != nil {
			return eris.Wrap(ctx.Err(), "geometry: context cancelled")
		}

		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		var parseErr *csv.ParseError
		if err != nil && !errors.As(err, &parseErr) {
			return eris.Wrap(err, "geometry: read record")
		}

		if first && s.opts.HasHeader {
			first = false
			continue
		}
		first = false
		s.stats.Records++

		if err != nil || len(record) == 0 {
			s.stats.Failed++
			log.Debug("skipping malformed record", zap.Int("record", s.stats.Records), zap.Error(err))
			continue
		}

		g, err := FromWKT(strings.TrimSpace(record[0]))
		if err != nil {
			if errors.Is(err, ErrGeometryCollection) {
				s.stats.GeometryCollections++
			} else {
				s.stats.Failed++
				log.Debug("skipping unparseable geometry", zap.Int("record", s.stats.Records), zap.Error(err))
			}
			continue
		}
		s.stats.Loaded++

		select {
		case out <- g:
		case <-ctx.Done():
			return eris.Wrap(ctx.Err(), "geometry: context cancelled")
		}
	}

	if s.stats.Failed > 0 || s.stats.GeometryCollections > 0 {
		log.Warn("skipped records while loading",
			zap.Int("failed", s.stats.Failed),
			zap.Int("geometry_collections", s.stats.GeometryCollections),
		)
	}
	return nil
}
