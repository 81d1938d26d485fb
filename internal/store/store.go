// Package store persists the verified links of interlinking runs.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/interlink-cli/internal/config"
	"github.com/sells-group/interlink-cli/internal/de9im"
	"github.com/sells-group/interlink-cli/internal/pipeline"
	"github.com/sells-group/interlink-cli/internal/related"
)

// LinkStore defines the persistence interface for run results.
type LinkStore interface {
	// SaveRun stores run and its links. run.ID is assigned when empty.
	SaveRun(ctx context.Context, run *Run, links []Link) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]Run, error)
	// CountLinks returns the number of stored links per relation of a run.
	CountLinks(ctx context.Context, runID string) (map[string]int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Run is one persisted interlinking run.
type Run struct {
	ID                    string          `json:"id"`
	Method                string          `json:"method"`
	Scheme                string          `json:"weighting_scheme"`
	SourcePath            string          `json:"source_path"`
	TargetPath            string          `json:"target_path"`
	Budget                int             `json:"budget"`
	VerifiedPairs         int             `json:"verified_pairs"`
	InterlinkedGeometries int             `json:"interlinked_geometries"`
	Report                json.RawMessage `json:"report"`
	CreatedAt             time.Time       `json:"created_at"`
}

// Link is one (relation, source, target) triple.
type Link struct {
	Relation string `json:"relation"`
	SourceID int    `json:"source_id"`
	TargetID int    `json:"target_id"`
}

// NewRun builds a Run from a report, embedding the full report as JSON.
func NewRun(report pipeline.Report) (*Run, error) {
	data, err := json.Marshal(report)
	if err != nil {
		return nil, eris.Wrap(err, "store: marshal report")
	}
	return &Run{
		Method:                report.Method,
		Scheme:                report.Scheme,
		SourcePath:            report.SourcePath,
		TargetPath:            report.TargetPath,
		Budget:                report.Budget,
		VerifiedPairs:         report.Related.VerifiedPairs,
		InterlinkedGeometries: report.Related.InterlinkedGeometries,
		Report:                data,
	}, nil
}

// LinksOf flattens the per-relation pairs of g, relation by relation.
func LinksOf(g *related.Geometries) []Link {
	var links []Link
	for _, rel := range de9im.Relations {
		for _, p := range g.Pairs(rel) {
			links = append(links, Link{Relation: rel.String(), SourceID: p.SourceID, TargetID: p.TargetID})
		}
	}
	return links
}

// Open returns the store selected by cfg.Driver, already migrated. It
// returns nil for driver "none".
func Open(ctx context.Context, cfg config.StoreConfig) (LinkStore, error) {
	var (
		st  LinkStore
		err error
	)
	switch cfg.Driver {
	case "", "none":
		return nil, nil
	case "sqlite":
		st, err = NewSQLite(cfg.DatabaseURL)
	case "postgres":
		st, err = NewPostgres(ctx, cfg.DatabaseURL, &PoolConfig{ConnectAttempts: cfg.ConnectAttempts})
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

// prepare fills the generated fields of run.
func prepare(run *Run) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	if len(run.Report) == 0 {
		run.Report = json.RawMessage("{}")
	}
}
