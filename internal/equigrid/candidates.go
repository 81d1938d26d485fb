package equigrid

import "github.com/sells-group/interlink-cli/internal/geometry"

// Generator enumerates the source candidates of query envelopes and counts
// how many cells each candidate shares with the query.
//
// Per-source frequencies live in reused arrays tagged with the epoch of the
// query that last touched them, so a query never reads a stale count. A
// Generator is not safe for concurrent use; create one per goroutine over a
// shared Index.
type Generator struct {
	index *Index
	epoch []uint64
	freq  []int
	cur   uint64
	ids   []int
}

// NewGenerator returns a Generator over ix.
func (ix *Index) NewGenerator() *Generator {
	return &Generator{
		index: ix,
		epoch: make([]uint64, ix.size),
		freq:  make([]int, ix.size),
	}
}

// Candidates returns the distinct source ids sharing at least one cell with
// env, in first-touch order. The slice is reused by the next call.
func (g *Generator) Candidates(env geometry.Envelope) []int {
	g.cur++
	g.ids = g.ids[:0]

	r := g.index.CellRange(env)
	for x := r.MinX; x <= r.MaxX; x++ {
		for y := r.MinY; y <= r.MaxY; y++ {
			for _, id := range g.index.Lookup(Cell{X: x, Y: y}) {
				if g.epoch[id] != g.cur {
					g.epoch[id] = g.cur
					g.freq[id] = 0
					g.ids = append(g.ids, id)
				}
				g.freq[id]++
			}
		}
	}
	return g.ids
}

// Frequency returns the number of cells source id shared with the most recent
// query, or zero if it was not a candidate of that query.
func (g *Generator) Frequency(id int) int {
	if id < 0 || id >= len(g.epoch) || g.epoch[id] != g.cur {
		return 0
	}
	return g.freq[id]
}
