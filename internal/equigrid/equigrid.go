// Package equigrid implements a uniform spatial grid whose cell dimensions are
// the mean envelope width and height of the source collection.
//
// Covering cells are computed with one convention everywhere (insertion,
// querying and block counting): the inclusive range
// [floor(min/theta), ceil(max/theta)] on both axes.
package equigrid

import (
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/interlink-cli/internal/geometry"
)

// ErrEmptyCollection is returned when building an index over no geometries.
var ErrEmptyCollection = geometry.ErrEmptyCollection

// ErrDegenerateGrid is returned when the source geometries have zero mean
// width or height (for example, a collection of points), which leaves the
// cell size undefined.
var ErrDegenerateGrid = eris.New("equigrid: degenerate cell dimensions")

// Cell identifies one grid cell.
type Cell struct {
	X, Y int64
}

// Range is an inclusive block of cells.
type Range struct {
	MinX, MinY, MaxX, MaxY int64
}

// Count returns the number of cells in the range.
func (r Range) Count() int {
	return int((r.MaxX - r.MinX + 1) * (r.MaxY - r.MinY + 1))
}

// Index maps cells to the ids of the source geometries whose envelopes cover
// them. After Build it is read-only and safe for concurrent queries.
type Index struct {
	thetaX, thetaY float64
	cells          map[Cell][]int
	size           int // number of source ids
	entries        int // total (cell, id) postings
}

// New creates an empty index with explicit cell dimensions.
func New(thetaX, thetaY float64) (*Index, error) {
	if !(thetaX > 0) || !(thetaY > 0) || math.IsInf(thetaX, 0) || math.IsInf(thetaY, 0) {
		return nil, eris.Wrapf(ErrDegenerateGrid, "equigrid: theta %v x %v", thetaX, thetaY)
	}
	return &Index{
		thetaX: thetaX,
		thetaY: thetaY,
		cells:  make(map[Cell][]int),
	}, nil
}

// Thetas returns the mean envelope width and height of sources.
func Thetas(sources []*geometry.Geometry) (float64, float64, error) {
	if len(sources) == 0 {
		return 0, 0, eris.Wrap(ErrEmptyCollection, "equigrid: compute thetas")
	}
	var sumX, sumY float64
	for _, g := range sources {
		env := g.Envelope()
		sumX += env.Width()
		sumY += env.Height()
	}
	n := float64(len(sources))
	return sumX / n, sumY / n, nil
}

// Build computes the cell dimensions from sources and indexes every source
// geometry under its position in the slice.
func Build(sources []*geometry.Geometry) (*Index, error) {
	thetaX, thetaY, err := Thetas(sources)
	if err != nil {
		return nil, err
	}

	ix, err := New(thetaX, thetaY)
	if err != nil {
		return nil, err
	}
	for id, g := range sources {
		ix.Insert(id, g.Envelope())
	}

	zap.L().Debug("equigrid built",
		zap.Float64("theta_x", thetaX),
		zap.Float64("theta_y", thetaY),
		zap.Int("sources", len(sources)),
		zap.Int("cells", len(ix.cells)),
		zap.Int("entries", ix.entries),
	)
	return ix, nil
}

// Theta returns the cell width and height.
func (ix *Index) Theta() (float64, float64) { return ix.thetaX, ix.thetaY }

// Size returns one past the largest inserted source id.
func (ix *Index) Size() int { return ix.size }

// CellRange returns the inclusive block of cells covering env.
func (ix *Index) CellRange(env geometry.Envelope) Range {
	return Range{
		MinX: int64(math.Floor(env.MinX / ix.thetaX)),
		MinY: int64(math.Floor(env.MinY / ix.thetaY)),
		MaxX: int64(math.Ceil(env.MaxX / ix.thetaX)),
		MaxY: int64(math.Ceil(env.MaxY / ix.thetaY)),
	}
}

// Blocks returns the number of cells covering env.
func (ix *Index) Blocks(env geometry.Envelope) int {
	return ix.CellRange(env).Count()
}

// Insert adds id to every cell covering env. Not safe for use concurrently
// with queries.
func (ix *Index) Insert(id int, env geometry.Envelope) {
	r := ix.CellRange(env)
	for x := r.MinX; x <= r.MaxX; x++ {
		for y := r.MinY; y <= r.MaxY; y++ {
			c := Cell{X: x, Y: y}
			ix.cells[c] = append(ix.cells[c], id)
			ix.entries++
		}
	}
	if id >= ix.size {
		ix.size = id + 1
	}
}

// Lookup returns the ids indexed under c. The returned slice must not be
// modified.
func (ix *Index) Lookup(c Cell) []int {
	return ix.cells[c]
}

// Stats summarizes cell occupancy.
type Stats struct {
	ThetaX      float64 `json:"theta_x" yaml:"theta_x"`
	ThetaY      float64 `json:"theta_y" yaml:"theta_y"`
	Sources     int     `json:"sources" yaml:"sources"`
	Cells       int     `json:"cells" yaml:"cells"`
	Entries     int     `json:"entries" yaml:"entries"`
	MaxPerCell  int     `json:"max_per_cell" yaml:"max_per_cell"`
	MeanPerCell float64 `json:"mean_per_cell" yaml:"mean_per_cell"`
	MeanPerGeom float64 `json:"mean_cells_per_geometry" yaml:"mean_cells_per_geometry"`
}

// Stats returns occupancy statistics for the index.
func (ix *Index) Stats() Stats {
	s := Stats{
		ThetaX:  ix.thetaX,
		ThetaY:  ix.thetaY,
		Sources: ix.size,
		Cells:   len(ix.cells),
		Entries: ix.entries,
	}
	for _, ids := range ix.cells {
		if len(ids) > s.MaxPerCell {
			s.MaxPerCell = len(ids)
		}
	}
	if s.Cells > 0 {
		s.MeanPerCell = float64(s.Entries) / float64(s.Cells)
	}
	if s.Sources > 0 {
		s.MeanPerGeom = float64(s.Entries) / float64(s.Sources)
	}
	return s
}
