package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/interlink-cli/internal/config"
	"github.com/sells-group/interlink-cli/internal/metrics"
	"github.com/sells-group/interlink-cli/internal/pipeline"
	"github.com/sells-group/interlink-cli/internal/store"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Interlink a source and a target geometry collection",
	Long:  "Loads the source collection, builds the equigrid, schedules candidate pairs over the target stream within the budget, verifies them, and prints a report.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := applyRunFlags(cmd, cfg); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		opts, err := pipeline.OptionsFromConfig(cfg.Link)
		if err != nil {
			return err
		}

		res, err := pipeline.Run(ctx, opts)
		if err != nil {
			return eris.Wrap(err, "run")
		}

		if err := writeReport(cmd.OutOrStdout(), res.Report, cfg.Report.Format); err != nil {
			return err
		}

		if err := saveRun(cmd, cfg.Store, res); err != nil {
			return err
		}

		if path := cfg.Metrics.Textfile; path != "" {
			rec := metrics.NewRecorder()
			rec.Observe(res.Report)
			if err := rec.WriteTextfile(path); err != nil {
				return err
			}
			zap.L().Info("run: wrote metrics textfile", zap.String("path", path))
		}
		return nil
	},
}

// applyRunFlags copies explicitly set flags over the loaded configuration.
func applyRunFlags(cmd *cobra.Command, c *config.Config) error {
	f := cmd.Flags()
	var err error
	set := func(name string, apply func() error) {
		if err == nil && f.Changed(name) {
			err = apply()
		}
	}

	set("source", func() (e error) { c.Link.SourcePath, e = f.GetString("source"); return })
	set("target", func() (e error) { c.Link.TargetPath, e = f.GetString("target"); return })
	set("budget", func() (e error) { c.Link.Budget, e = f.GetInt("budget"); return })
	set("qualifying-pairs", func() (e error) { c.Link.QualifyingPairs, e = f.GetInt("qualifying-pairs"); return })
	set("delimiter", func() (e error) { c.Link.Delimiter, e = f.GetString("delimiter"); return })
	set("header", func() (e error) { c.Link.Header, e = f.GetBool("header"); return })
	set("scheme", func() (e error) { c.Link.WeightingScheme, e = f.GetString("scheme"); return })
	set("workers", func() (e error) { c.Link.Workers, e = f.GetInt("workers"); return })
	set("verify-limit", func() (e error) { c.Link.VerifyLimit, e = f.GetInt("verify-limit"); return })
	set("format", func() (e error) { c.Report.Format, e = f.GetString("format"); return })
	set("metrics-textfile", func() (e error) { c.Metrics.Textfile, e = f.GetString("metrics-textfile"); return })

	return eris.Wrap(err, "run: read flags")
}

// writeReport renders report as text, json or yaml.
func writeReport(w io.Writer, report pipeline.Report, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(report), "run: encode json report")
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return eris.Wrap(err, "run: encode yaml report")
		}
		return eris.Wrap(enc.Close(), "run: encode yaml report")
	default:
		return eris.Wrap(report.WriteText(w), "run: write report")
	}
}

// saveRun persists the run and its links when a store is configured.
func saveRun(cmd *cobra.Command, sc config.StoreConfig, res *pipeline.Result) error {
	ctx := cmd.Context()

	st, err := store.Open(ctx, sc)
	if err != nil {
		return eris.Wrap(err, "run: open store")
	}
	if st == nil {
		return nil
	}
	defer st.Close() //nolint:errcheck

	run, err := store.NewRun(res.Report)
	if err != nil {
		return err
	}
	links := store.LinksOf(res.Links)
	if err := st.SaveRun(ctx, run, links); err != nil {
		return eris.Wrap(err, "run: save")
	}
	zap.L().Info("run: saved links",
		zap.String("run_id", run.ID),
		zap.String("driver", sc.Driver),
		zap.Int("links", len(links)),
	)
	_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "run id: %s\n", run.ID)
	return nil
}

func init() {
	runCmd.Flags().String("source", "", "source collection (delimited WKT or .shp)")
	runCmd.Flags().String("target", "", "target collection, streamed once (delimited WKT or .shp)")
	runCmd.Flags().Int("budget", 0, "maximum number of pairs to verify")
	runCmd.Flags().Int("qualifying-pairs", 0, "ground-truth related pairs, for recall")
	runCmd.Flags().String("delimiter", "", `field delimiter of delimited inputs (use \t for tab)`)
	runCmd.Flags().Bool("header", false, "delimited inputs start with a header record")
	runCmd.Flags().String("scheme", "", "weighting scheme: CF, JS_APPROX, MBR or NONE")
	runCmd.Flags().Int("workers", 0, "goroutines generating and weighting candidates")
	runCmd.Flags().Int("verify-limit", 0, "stop verification after this many pairs (0 = all)")
	runCmd.Flags().String("format", "", "report format: text, json or yaml")
	runCmd.Flags().String("metrics-textfile", "", "write Prometheus metrics to this file")
	rootCmd.AddCommand(runCmd)
}
