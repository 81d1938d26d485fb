// Package pipeline runs one progressive interlinking pass: load the source
// collection, index it, schedule candidate pairs over the streamed target
// collection, and verify the retained pairs.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/interlink-cli/internal/config"
	"github.com/sells-group/interlink-cli/internal/equigrid"
	"github.com/sells-group/interlink-cli/internal/geometry"
	"github.com/sells-group/interlink-cli/internal/related"
	"github.com/sells-group/interlink-cli/internal/schedule"
	"github.com/sells-group/interlink-cli/internal/weight"
)

// Prioritizer orders the candidate pairs of a target stream for verification.
type Prioritizer interface {
	Name() string
	Prioritize(ctx context.Context, targets <-chan *geometry.Geometry) ([]schedule.Candidate, error)
}

// Options configures a run.
type Options struct {
	SourcePath      string
	TargetPath      string
	Reader          geometry.ReaderOptions
	Scheme          weight.Scheme
	Budget          int
	QualifyingPairs int
	Workers         int
	VerifyLimit     int
}

// OptionsFromConfig translates the link settings of a validated config.
func OptionsFromConfig(cfg config.LinkConfig) (Options, error) {
	if cfg.Budget <= 0 {
		return Options{}, eris.Wrap(config.ErrInvalidConfiguration, "pipeline: budget must be positive")
	}
	scheme, err := weight.ParseScheme(cfg.WeightingScheme)
	if err != nil {
		return Options{}, eris.Wrap(config.ErrInvalidConfiguration, err.Error())
	}
	return Options{
		SourcePath:      cfg.SourcePath,
		TargetPath:      cfg.TargetPath,
		Reader:          geometry.ReaderOptions{Delimiter: cfg.DelimiterRune(), HasHeader: cfg.Header},
		Scheme:          scheme,
		Budget:          cfg.Budget,
		QualifyingPairs: cfg.QualifyingPairs,
		Workers:         cfg.Workers,
		VerifyLimit:     cfg.VerifyLimit,
	}, nil
}

// Result is the outcome of a run: the report and the aggregator holding the
// verified links.
type Result struct {
	Report Report
	Links  *related.Geometries
}

// Run executes one interlinking pass. The target collection is read exactly
// once, as a stream.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Budget <= 0 {
		return nil, eris.Wrap(config.ErrInvalidConfiguration, "pipeline: budget must be positive")
	}
	log := zap.L().With(
		zap.String("component", "pipeline"),
		zap.String("source", opts.SourcePath),
		zap.String("target", opts.TargetPath),
		zap.String("scheme", opts.Scheme.String()),
		zap.Int("budget", opts.Budget),
	)
	log.Info("pipeline: starting run")

	report := Report{
		Method:     schedule.MethodName,
		Scheme:     opts.Scheme.String(),
		Budget:     opts.Budget,
		SourcePath: opts.SourcePath,
		TargetPath: opts.TargetPath,
	}

	// Load sources.
	start := time.Now()
	src := geometry.Open(opts.SourcePath, opts.Reader)
	sources, err := geometry.LoadAll(ctx, src)
	report.Sources = src.Stats()
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: load sources")
	}
	report.Timings.LoadingMS = time.Since(start).Milliseconds()

	// Index sources.
	start = time.Now()
	index, err := equigrid.Build(sources)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: build index")
	}
	report.Timings.IndexingMS = time.Since(start).Milliseconds()
	report.Grid = index.Stats()
	log.Info("pipeline: indexed sources",
		zap.Int("sources", len(sources)),
		zap.Float64("theta_x", report.Grid.ThetaX),
		zap.Float64("theta_y", report.Grid.ThetaY),
		zap.Int64("duration_ms", report.Timings.IndexingMS),
	)

	scheduler, err := schedule.New(index, sources, weight.NewWeighter(opts.Scheme, index), opts.Budget,
		schedule.WithWorkers(opts.Workers))
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: create scheduler")
	}

	// Schedule over the target stream.
	start = time.Now()
	plan, err := prioritize(ctx, scheduler, opts)
	if err != nil {
		return nil, err
	}
	report.Timings.SchedulingMS = time.Since(start).Milliseconds()
	report.Schedule = scheduler.Stats()
	report.Method = scheduler.Name()

	// Verify retained pairs.
	start = time.Now()
	links := related.New(opts.QualifyingPairs)
	report.StoppedEarly = Verify(ctx, links, sources, plan, opts.VerifyLimit)
	report.Timings.VerificationMS = time.Since(start).Milliseconds()
	report.Related = links.Summary()

	log.Info("pipeline: run complete",
		zap.Int("verified_pairs", report.Related.VerifiedPairs),
		zap.Int("interlinked", report.Related.InterlinkedGeometries),
		zap.Int64("verification_ms", report.Timings.VerificationMS),
	)
	result := &Result{Report: report, Links: links}
	if err := ctx.Err(); err != nil {
		return result, eris.Wrap(err, "pipeline: verification interrupted")
	}
	return result, nil
}

// prioritize streams the target collection into p and checks that the
// stream itself completed cleanly.
func prioritize(ctx context.Context, p Prioritizer, opts Options) ([]schedule.Candidate, error) {
	tgt := geometry.Open(opts.TargetPath, opts.Reader)
	targetCh, errCh := tgt.Stream(ctx)

	plan, err := p.Prioritize(ctx, targetCh)
	if err != nil {
		// Unblock the reader before returning.
		for range targetCh {
		}
		return nil, eris.Wrap(err, "pipeline: schedule")
	}
	if err := <-errCh; err != nil {
		return nil, eris.Wrap(err, "pipeline: read targets")
	}
	if tgt.Stats().Loaded == 0 {
		return nil, eris.Wrapf(geometry.ErrEmptyCollection, "pipeline: no target geometries in %s", tgt.Path())
	}
	return plan, nil
}

// Verify checks the planned pairs in order and records them in links. With
// limit > 0 it stops once that many pairs were verified. It reports whether
// verification stopped before the plan was exhausted.
func Verify(ctx context.Context, links *related.Geometries, sources []*geometry.Geometry, plan []schedule.Candidate, limit int) bool {
	for i, c := range plan {
		if limit > 0 && links.VerifiedPairs() >= limit {
			return true
		}
		if i%1024 == 0 && ctx.Err() != nil {
			return true
		}
		links.Verify(c.SourceID, c.TargetID, sources[c.SourceID], c.Target)
	}
	return false
}
