// Package metrics exports run results as Prometheus metrics, written to a
// node-exporter textfile after each run.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"

	"github.com/sells-group/interlink-cli/internal/de9im"
	"github.com/sells-group/interlink-cli/internal/pipeline"
)

// Recorder holds the gauges of one run on a private registry.
type Recorder struct {
	registry *prometheus.Registry

	VerifiedPairs         prometheus.Gauge
	DetectedLinks         prometheus.Gauge
	InterlinkedGeometries prometheus.Gauge
	Exceptions            prometheus.Gauge
	Candidates            prometheus.Gauge
	RetainedPairs         prometheus.Gauge
	Threshold             prometheus.Gauge
	RelationPairs         *prometheus.GaugeVec
	PhaseSeconds          *prometheus.GaugeVec
	Quality               *prometheus.GaugeVec
	LastRun               prometheus.Gauge
}

// NewRecorder creates a Recorder with every metric registered.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		VerifiedPairs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "interlink_verified_pairs",
			Help: "Candidate pairs verified in the last run",
		}),
		DetectedLinks: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "interlink_detected_links",
			Help: "Pair-relation hits in the last run",
		}),
		InterlinkedGeometries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "interlink_interlinked_geometries",
			Help: "Verified pairs with at least one relation in the last run",
		}),
		Exceptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "interlink_relate_exceptions",
			Help: "Pairs whose DE-9IM matrix could not be computed",
		}),
		Candidates: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "interlink_candidates",
			Help: "Candidate pairs generated from the equigrid",
		}),
		RetainedPairs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "interlink_retained_pairs",
			Help: "Pairs kept within the verification budget",
		}),
		Threshold: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "interlink_admission_threshold",
			Help: "Final minimum weight for admission to the budget",
		}),
		RelationPairs: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "interlink_relation_pairs",
			Help: "Verified pairs per topological relation",
		}, []string{"relation"}),
		PhaseSeconds: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "interlink_phase_duration_seconds",
			Help: "Wall-clock duration of each run phase",
		}, []string{"phase"}),
		Quality: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "interlink_quality_ratio",
			Help: "Recall, precision and progressive recall; absent when undefined",
		}, []string{"metric"}),
		LastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "interlink_last_run_timestamp_seconds",
			Help: "Unix time the last run finished",
		}),
	}

	r.registry.MustRegister(
		r.VerifiedPairs,
		r.DetectedLinks,
		r.InterlinkedGeometries,
		r.Exceptions,
		r.Candidates,
		r.RetainedPairs,
		r.Threshold,
		r.RelationPairs,
		r.PhaseSeconds,
		r.Quality,
		r.LastRun,
	)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Observe sets every metric from report.
func (r *Recorder) Observe(report pipeline.Report) {
	r.VerifiedPairs.Set(float64(report.Related.VerifiedPairs))
	r.DetectedLinks.Set(float64(report.Related.DetectedLinks))
	r.InterlinkedGeometries.Set(float64(report.Related.InterlinkedGeometries))
	r.Exceptions.Set(float64(report.Related.Exceptions))
	r.Candidates.Set(float64(report.Schedule.Candidates))
	r.RetainedPairs.Set(float64(report.Schedule.Retained))
	r.Threshold.Set(report.Schedule.Threshold)

	for _, rel := range de9im.Relations {
		r.RelationPairs.WithLabelValues(rel.String()).Set(float64(report.Related.Relations[rel.String()]))
	}

	r.PhaseSeconds.WithLabelValues("loading").Set(msToSeconds(report.Timings.LoadingMS))
	r.PhaseSeconds.WithLabelValues("indexing").Set(msToSeconds(report.Timings.IndexingMS))
	r.PhaseSeconds.WithLabelValues("scheduling").Set(msToSeconds(report.Timings.SchedulingMS))
	r.PhaseSeconds.WithLabelValues("verification").Set(msToSeconds(report.Timings.VerificationMS))

	r.Quality.Reset()
	setOptional(r.Quality, "recall", report.Related.Recall)
	setOptional(r.Quality, "precision", report.Related.Precision)
	setOptional(r.Quality, "progressive_recall", report.Related.ProgressiveRecall)

	r.LastRun.Set(float64(time.Now().Unix()))
}

// WriteTextfile writes the registry in text exposition format to path,
// atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return eris.Wrapf(err, "metrics: write textfile %s", path)
	}
	return nil
}

func setOptional(v *prometheus.GaugeVec, label string, value *float64) {
	if value == nil {
		return
	}
	v.WithLabelValues(label).Set(*value)
}

func msToSeconds(ms int64) float64 {
	return float64(ms) / 1000
}
