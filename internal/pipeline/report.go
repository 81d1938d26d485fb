package pipeline

import (
	"fmt"
	"io"
	"strings"

	"github.com/sells-group/interlink-cli/internal/de9im"
	"github.com/sells-group/interlink-cli/internal/equigrid"
	"github.com/sells-group/interlink-cli/internal/geometry"
	"github.com/sells-group/interlink-cli/internal/related"
	"github.com/sells-group/interlink-cli/internal/schedule"
)

// Timings holds the wall-clock duration of each phase in milliseconds.
type Timings struct {
	LoadingMS      int64 `json:"loading_ms" yaml:"loading_ms"`
	IndexingMS     int64 `json:"indexing_ms" yaml:"indexing_ms"`
	SchedulingMS   int64 `json:"scheduling_ms" yaml:"scheduling_ms"`
	VerificationMS int64 `json:"verification_ms" yaml:"verification_ms"`
}

// Report describes one run.
type Report struct {
	Method       string             `json:"method" yaml:"method"`
	Scheme       string             `json:"weighting_scheme" yaml:"weighting_scheme"`
	Budget       int                `json:"budget" yaml:"budget"`
	SourcePath   string             `json:"source_path" yaml:"source_path"`
	TargetPath   string             `json:"target_path" yaml:"target_path"`
	Sources      geometry.LoadStats `json:"sources" yaml:"sources"`
	Grid         equigrid.Stats     `json:"grid" yaml:"grid"`
	Schedule     schedule.Stats     `json:"schedule" yaml:"schedule"`
	Timings      Timings            `json:"timings" yaml:"timings"`
	Related      related.Summary    `json:"related" yaml:"related"`
	StoppedEarly bool               `json:"stopped_early" yaml:"stopped_early"`
}

// FormatText renders the report for a terminal.
func (r Report) FormatText() string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Interlinking Report\n")
	fmt.Fprintf(&b, "Method: %s (%s weighting, budget %d)\n", r.Method, r.Scheme, r.Budget)
	fmt.Fprintf(&b, "Source: %s\n", r.SourcePath)
	fmt.Fprintf(&b, "Target: %s\n\n", r.TargetPath)

	b.WriteString("## Inputs\n")
	fmt.Fprintf(&b, "- Source geometries: %d loaded, %d failed, %d geometry collections skipped\n",
		r.Sources.Loaded, r.Sources.Failed, r.Sources.GeometryCollections)
	fmt.Fprintf(&b, "- Total target geometries: %d\n", r.Schedule.Targets)
	fmt.Fprintf(&b, "- Dimensions of equigrid: %g and %g\n\n", r.Grid.ThetaX, r.Grid.ThetaY)

	b.WriteString("## Timings\n")
	fmt.Fprintf(&b, "- Loading: %dms\n", r.Timings.LoadingMS)
	fmt.Fprintf(&b, "- Indexing: %dms\n", r.Timings.IndexingMS)
	fmt.Fprintf(&b, "- Scheduling: %dms\n", r.Timings.SchedulingMS)
	fmt.Fprintf(&b, "- Verification: %dms\n\n", r.Timings.VerificationMS)

	b.WriteString("## Scheduling\n")
	fmt.Fprintf(&b, "- Candidates: %d (%d valid)\n", r.Schedule.Candidates, r.Schedule.ValidCandidates)
	fmt.Fprintf(&b, "- Retained: %d\n", r.Schedule.Retained)
	fmt.Fprintf(&b, "- Minimum weight: %g\n\n", r.Schedule.Threshold)

	b.WriteString("## Relations\n")
	for _, rel := range de9im.Relations {
		fmt.Fprintf(&b, "- %s: %d\n", rel, r.Related.Relations[rel.String()])
	}
	b.WriteString("\n")

	b.WriteString("## Summary\n")
	fmt.Fprintf(&b, "- Qualifying pairs: %d\n", r.Related.QualifyingPairs)
	fmt.Fprintf(&b, "- Verified pairs: %d\n", r.Related.VerifiedPairs)
	fmt.Fprintf(&b, "- Detected links: %d\n", r.Related.DetectedLinks)
	fmt.Fprintf(&b, "- Interlinked geometries: %d\n", r.Related.InterlinkedGeometries)
	fmt.Fprintf(&b, "- Exceptions: %d\n", r.Related.Exceptions)
	fmt.Fprintf(&b, "- Consecutive unrelated pairs: %d\n", r.Related.ConsecutiveUnrelated)
	fmt.Fprintf(&b, "- Recall: %s\n", formatMetric(r.Related.Recall))
	fmt.Fprintf(&b, "- Precision: %s\n", formatMetric(r.Related.Precision))
	fmt.Fprintf(&b, "- Progressive geometry recall: %s\n", formatMetric(r.Related.ProgressiveRecall))
	if r.StoppedEarly {
		b.WriteString("- Verification stopped at the verify limit\n")
	}

	return b.String()
}

// WriteText writes FormatText to w.
func (r Report) WriteText(w io.Writer) error {
	_, err := io.WriteString(w, r.FormatText())
	return err
}

func formatMetric(v *float64) string {
	if v == nil {
		return "undefined"
	}
	return fmt.Sprintf("%.4f", *v)
}
