package duskull

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"ichor/duskull/defs"
	"ichor/duskull/pkg/mg"
	"ichor/duskull/pkg/plot"

	"go.uber.org/zap"
)

// Snapshot persists the reconciled tables and the daily chart. It returns the
// id of the stored chart, empty when there were no days to chart. A non-empty
// replace names an earlier chart that is deleted once the new one is stored.
func Snapshot(ctx context.Context, store mg.SnapshotStore, res *Result, gc defs.GlucoseConfig, replace string, logger *zap.Logger) (string, error) {
	if err := store.WriteSummaries(ctx, res.Summaries); err != nil {
		return "", &defs.StageError{Stage: defs.SnapshotStage, Err: err}
	}
	if err := store.WriteTotals(ctx, res.Totals); err != nil {
		return "", &defs.StageError{Stage: defs.SnapshotStage, Err: err}
	}

	chart, err := plot.DailyTIR(res.Summaries, gc)
	if errors.Is(err, plot.ErrNoData) {
		return "", nil
	}
	if err != nil {
		return "", &defs.StageError{Stage: defs.PlotStage, Err: err}
	}

	fid, err := store.WriteFile(ctx, ChartFilename, bytes.NewReader(chart))
	if err != nil {
		return "", &defs.StageError{Stage: defs.SnapshotStage, Err: fmt.Errorf("unable to store chart: %w", err)}
	}
	if replace != "" && replace != fid {
		if err := store.DeleteFile(ctx, replace); err != nil {
			return fid, &defs.StageError{Stage: defs.SnapshotStage, Err: fmt.Errorf("unable to delete chart %s: %w", replace, err)}
		}
	}

	logger.Debug(
		"stored snapshot",
		zap.Int("summaries", len(res.Summaries)),
		zap.Int("totals", len(res.Totals)),
		zap.String("chart", fid),
		zap.String("replaced", replace),
	)
	return fid, nil
}
