// Package schedule turns the unordered candidate pairs of a target stream
// into a budget-bounded verification plan holding the highest-weighted pairs.
package schedule

import (
	"container/heap"
	"math"
	"sort"

	"github.com/sells-group/interlink-cli/internal/geometry"
)

// Candidate is one weighted (source, target) pair. Target is kept because
// the target collection is streamed and verification needs the geometry
// itself, not just its id.
type Candidate struct {
	Weight   float64
	SourceID int
	TargetID int
	Target   *geometry.Geometry

	seq uint64 // admission order, breaks weight ties
}

// candidateHeap is a min-heap on weight. Among equal weights the most
// recently admitted candidate sorts first, so it is the one evicted.
type candidateHeap []Candidate

func (h candidateHeap) Len() int { return len(h) }

func (h candidateHeap) Less(i, j int) bool {
	if h[i].Weight != h[j].Weight {
		return h[i].Weight < h[j].Weight
	}
	return h[i].seq > h[j].seq
}

func (h candidateHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *candidateHeap) Push(x any) { *h = append(*h, x.(Candidate)) }

func (h *candidateHeap) Pop() any {
	old := *h
	n := len(old)
	c := old[n-1]
	old[n-1] = Candidate{}
	*h = old[:n-1]
	return c
}

// RetentionSet keeps at most budget candidates with the highest weights seen.
// Once it has evicted a candidate, the evicted weight becomes the admission
// threshold; the threshold only ever rises.
type RetentionSet struct {
	budget    int
	h         candidateHeap
	threshold float64
	seq       uint64

	admitted int
	rejected int
	evicted  int
}

// NewRetentionSet creates an empty set bounded by budget. budget must be positive.
func NewRetentionSet(budget int) *RetentionSet {
	if budget < 1 {
		budget = 1
	}
	return &RetentionSet{
		budget:    budget,
		h:         make(candidateHeap, 0, min(budget+1, 1<<16)),
		threshold: math.Inf(-1),
	}
}

// Budget returns the maximum number of retained candidates.
func (r *RetentionSet) Budget() int { return r.budget }

// Len returns the number of retained candidates.
func (r *RetentionSet) Len() int { return len(r.h) }

// Threshold returns the current minimum admitted weight, or -Inf before the
// first eviction.
func (r *RetentionSet) Threshold() float64 { return r.threshold }

// TryAdmit inserts c when the set is below budget or c.Weight is at least
// the threshold, evicting the lowest-weight entry on overflow. It reports
// whether c was inserted; an inserted candidate may be the one evicted when
// it ties the current minimum.
func (r *RetentionSet) TryAdmit(c Candidate) bool {
	if len(r.h) >= r.budget && c.Weight < r.threshold {
		r.rejected++
		return false
	}

	r.seq++
	c.seq = r.seq
	heap.Push(&r.h, c)
	r.admitted++

	if len(r.h) > r.budget {
		r.EvictMin()
	}
	return true
}

// EvictMin removes the lowest-weight candidate and raises the threshold to
// its weight.
func (r *RetentionSet) EvictMin() (Candidate, bool) {
	if len(r.h) == 0 {
		return Candidate{}, false
	}
	c := heap.Pop(&r.h).(Candidate)
	if c.Weight > r.threshold {
		r.threshold = c.Weight
	}
	r.evicted++
	return c, true
}

// Merge admits every candidate of other into r. Used to combine per-worker
// partial sets.
func (r *RetentionSet) Merge(other *RetentionSet) {
	if other == nil {
		return
	}
	for _, c := range other.h {
		r.TryAdmit(c)
	}
}

// Drain removes and returns all retained candidates in descending weight
// order, ties in admission order.
func (r *RetentionSet) Drain() []Candidate {
	out := make([]Candidate, len(r.h))
	copy(out, r.h)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Weight != out[j].Weight {
			return out[i].Weight > out[j].Weight
		}
		return out[i].seq < out[j].seq
	})
	r.h = r.h[:0]
	return out
}

// Counters reports how many candidates were admitted, rejected at the
// threshold, and evicted after admission.
func (r *RetentionSet) Counters() (admitted, rejected, evicted int) {
	return r.admitted, r.rejected, r.evicted
}
