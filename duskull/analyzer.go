package duskull

import (
	"ichor/duskull/defs"
	"ichor/duskull/pkg/ingest"
	"ichor/duskull/pkg/merge"
	"ichor/duskull/pkg/metrics"
	"ichor/duskull/pkg/reconcile"
	"ichor/duskull/pkg/stats"
	"time"

	"go.uber.org/zap"
)

// Result is everything one analysis run produces.
type Result struct {
	// Batch holds the merged raw tables. Batch.Summaries covers every day
	// with readings, before reconciliation.
	Batch defs.Batch

	Summaries []defs.DailyGlucoseSummary
	Totals    []defs.InsulinDailyTotal
	Pairs     []defs.DailyPair
	Bolus     []defs.DailyBolusSummary
	Overview  defs.Overview
}

type Analyzer struct {
	Logger   *zap.Logger
	Location *time.Location
	Metrics  *metrics.Manager

	GlucoseConfig   defs.GlucoseConfig
	MatchDateRanges bool
}

func NewAnalyzer(cfg defs.Config, m *metrics.Manager) (*Analyzer, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Analyzer{
		Logger:          logger,
		Location:        loc,
		Metrics:         m,
		GlucoseConfig:   cfg.Glucose,
		MatchDateRanges: cfg.MatchDateRanges,
	}, nil
}

func (an *Analyzer) Run(folder string) (*Result, error) {
	return an.RunMerged([]string{folder})
}

// RunMerged ingests every folder, merges the exports and analyzes the union.
// Any failing folder fails the run.
func (an *Analyzer) RunMerged(folders []string) (*Result, error) {
	started := time.Now()

	batches := make([]defs.Batch, 0, len(folders))
	for _, folder := range folders {
		batch, err := ingest.New(folder, an.Location, an.Logger).ReadAll()
		if err != nil {
			return nil, an.fail(defs.IngestStage, err)
		}

		an.Metrics.RecordIngested("glucose", len(batch.Glucose))
		an.Metrics.RecordIngested("bolus", len(batch.Bolus))
		an.Metrics.RecordIngested("basal", len(batch.Basal))
		an.Metrics.RecordIngested("insulin", len(batch.Insulin))
		batches = append(batches, batch)
	}

	merged, err := merge.Batches(batches...)
	if err != nil {
		return nil, an.fail(defs.MergeStage, err)
	}

	res := &Result{Batch: merged}
	if res.Batch.Summaries, err = stats.DailyAggregate(merged.Glucose, an.GlucoseConfig); err != nil {
		return nil, an.fail(defs.AggregateStage, err)
	}
	if res.Overview, err = stats.Overall(merged.Glucose, an.GlucoseConfig); err != nil {
		return nil, an.fail(defs.AggregateStage, err)
	}
	res.Bolus = stats.DailyBolus(merged.Bolus)

	res.Summaries, res.Totals = reconcile.MatchDateRanges(res.Batch.Summaries, reconcile.LatestTotals(merged.Insulin), an.MatchDateRanges)
	res.Pairs = reconcile.Pair(res.Summaries, res.Totals)

	an.Logger.Debug(
		"analysis complete",
		zap.Strings("folders", folders),
		zap.Int("readings", len(merged.Glucose)),
		zap.Int("days", len(res.Batch.Summaries)),
		zap.Int("matched days", len(res.Pairs)),
	)
	an.Metrics.RecordAnalysis(time.Since(started), len(res.Summaries))

	return res, nil
}

func (an *Analyzer) fail(stage defs.Stage, err error) error {
	an.Logger.Debug(
		"analysis failed",
		zap.Stringer("stage", stage),
		zap.Error(err),
	)
	an.Metrics.RecordStageError(stage)
	return &defs.StageError{Stage: stage, Err: err}
}
