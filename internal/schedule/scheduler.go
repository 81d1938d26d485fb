package schedule

import (
	"context"
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/interlink-cli/internal/equigrid"
	"github.com/sells-group/interlink-cli/internal/geometry"
	"github.com/sells-group/interlink-cli/internal/weight"
)

// MethodName identifies the progressive scheduler in reports.
const MethodName = "progressive GIA.nt"

// Stats summarizes one scheduling pass.
//
// Admitted and Rejected count first offers of valid candidates. With several
// workers they are totals over the per-worker retention sets, so
// Admitted+Rejected equals ValidCandidates in both modes. Re-offers made while
// merging worker sets are not counted. Retained and Threshold describe the
// final merged set.
type Stats struct {
	Targets         int     `json:"targets" yaml:"targets"`
	Candidates      int     `json:"candidates" yaml:"candidates"`
	ValidCandidates int     `json:"valid_candidates" yaml:"valid_candidates"`
	Admitted        int     `json:"admitted" yaml:"admitted"`
	Rejected        int     `json:"rejected" yaml:"rejected"`
	Retained        int     `json:"retained" yaml:"retained"`
	Threshold       float64 `json:"threshold" yaml:"threshold"`
}

func (s *Stats) add(o Stats) {
	s.Targets += o.Targets
	s.Candidates += o.Candidates
	s.ValidCandidates += o.ValidCandidates
	s.Admitted += o.Admitted
	s.Rejected += o.Rejected
}

// Scheduler makes one pass over a target stream and retains the top-budget
// weighted candidate pairs against an indexed source collection.
type Scheduler struct {
	index    *equigrid.Index
	sources  []*geometry.Geometry
	weighter weight.Weighter
	budget   int
	workers  int

	stats Stats
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithWorkers spreads candidate generation and weighting over n goroutines,
// each keeping a partial retention set merged at the end. n < 2 scans
// sequentially.
func WithWorkers(n int) Option {
	return func(s *Scheduler) { s.workers = n }
}

// New creates a Scheduler. index must have been built over sources.
func New(index *equigrid.Index, sources []*geometry.Geometry, weighter weight.Weighter, budget int, opts ...Option) (*Scheduler, error) {
	if budget <= 0 {
		return nil, eris.Errorf("schedule: budget must be positive, got %d", budget)
	}
	if index == nil {
		return nil, eris.New("schedule: index is required")
	}
	if len(sources) == 0 {
		return nil, eris.Wrap(geometry.ErrEmptyCollection, "schedule: no source geometries")
	}
	s := &Scheduler{
		index:    index,
		sources:  sources,
		weighter: weighter,
		budget:   budget,
		workers:  1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Name identifies the prioritization method.
func (s *Scheduler) Name() string { return MethodName }

// Stats returns the counters of the most recent Prioritize call.
func (s *Scheduler) Stats() Stats { return s.stats }

// Prioritize consumes targets once, in order, and returns the retained pairs
// in descending weight order. Target ids are positions in the stream.
func (s *Scheduler) Prioritize(ctx context.Context, targets <-chan *geometry.Geometry) ([]Candidate, error) {
	var (
		set *RetentionSet
		err error
	)
	if s.workers > 1 {
		set, err = s.runParallel(ctx, targets)
	} else {
		set, err = s.run(ctx, targets)
	}
	if err != nil {
		return nil, err
	}

	s.stats.Retained = set.Len()
	if th := set.Threshold(); !math.IsInf(th, 0) {
		s.stats.Threshold = th
	}

	zap.L().Info("scheduling pass complete",
		zap.String("component", "schedule"),
		zap.Int("targets", s.stats.Targets),
		zap.Int("candidates", s.stats.Candidates),
		zap.Int("valid_candidates", s.stats.ValidCandidates),
		zap.Int("retained", s.stats.Retained),
		zap.Float64("threshold", s.stats.Threshold),
	)
	return set.Drain(), nil
}

func (s *Scheduler) run(ctx context.Context, targets <-chan *geometry.Geometry) (*RetentionSet, error) {
	s.stats = Stats{}
	set := NewRetentionSet(s.budget)
	gen := s.index.NewGenerator()

	targetID := 0
	for {
		select {
		case <-ctx.Done():
			return nil, eris.Wrap(ctx.Err(), "schedule: context cancelled")
		case t, ok := <-targets:
			if !ok {
				s.stats.add(setCounters(set))
				return set, nil
			}
			s.scan(gen, set, targetID, t, &s.stats)
			targetID++
		}
	}
}

type job struct {
	id     int
	target *geometry.Geometry
}

func (s *Scheduler) runParallel(ctx context.Context, targets <-chan *geometry.Geometry) (*RetentionSet, error) {
	s.stats = Stats{}
	jobs := make(chan job, s.workers*4)
	partials := make([]*RetentionSet, s.workers)
	stats := make([]Stats, s.workers)

	g, gctx := errgroup.WithContext(ctx)

	// Ids are assigned here so they follow stream order regardless of which
	// worker picks up the target.
	g.Go(func() error {
		defer close(jobs)
		targetID := 0
		for {
			select {
			case <-gctx.Done():
				return eris.Wrap(gctx.Err(), "schedule: context cancelled")
			case t, ok := <-targets:
				if !ok {
					return nil
				}
				select {
				case jobs <- job{id: targetID, target: t}:
				case <-gctx.Done():
					return eris.Wrap(gctx.Err(), "schedule: context cancelled")
				}
				targetID++
			}
		}
	})

	for w := 0; w < s.workers; w++ {
		g.Go(func() error {
			set := NewRetentionSet(s.budget)
			gen := s.index.NewGenerator()
			for j := range jobs {
				s.scan(gen, set, j.id, j.target, &stats[w])
			}
			stats[w].add(setCounters(set))
			partials[w] = set
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := NewRetentionSet(s.budget)
	for w := range partials {
		merged.Merge(partials[w])
		s.stats.add(stats[w])
	}
	return merged, nil
}

// scan generates, filters and weights the candidates of one target and
// offers them to set.
func (s *Scheduler) scan(gen *equigrid.Generator, set *RetentionSet, targetID int, target *geometry.Geometry, st *Stats) {
	st.Targets++
	ids := gen.Candidates(target.Envelope())
	st.Candidates += len(ids)

	for _, sourceID := range ids {
		source := s.sources[sourceID]
		if !weight.Valid(source, target) {
			continue
		}
		st.ValidCandidates++

		set.TryAdmit(Candidate{
			Weight:   s.weighter.Weight(source, target, gen.Frequency(sourceID)),
			SourceID: sourceID,
			TargetID: targetID,
			Target:   target,
		})
	}
}

func setCounters(set *RetentionSet) Stats {
	admitted, rejected, _ := set.Counters()
	return Stats{Admitted: admitted, Rejected: rejected}
}
