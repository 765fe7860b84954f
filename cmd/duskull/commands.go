package main

import (
	"context"
	"fmt"
	"ichor/duskull"
	"ichor/duskull/defs"
	"ichor/duskull/pkg/discgo"
	duskhttp "ichor/duskull/pkg/http"
	"ichor/duskull/pkg/lite"
	"ichor/duskull/pkg/metrics"
	"ichor/duskull/pkg/mg"
	"ichor/duskull/pkg/plot"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

const (
	sqliteStore = "sqlite"
	mongoStore  = "mongo"
)

func (a *app) analyze(args []string) (*duskull.Result, error) {
	folders, err := a.folders(args)
	if err != nil {
		return nil, err
	}
	an, err := duskull.NewAnalyzer(a.config, nil)
	if err != nil {
		return nil, err
	}
	return an.RunMerged(folders)
}

type closingStore interface {
	mg.SnapshotStore
	io.Closer
}

type mongoCloser struct {
	*mg.MongoStore
}

func (mc mongoCloser) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), defs.TimeoutInterval)
	defer cancel()
	return mc.MongoStore.Close(ctx)
}

func (a *app) openStore(kind string) (closingStore, error) {
	switch kind {
	case sqliteStore:
		store, err := lite.OpenStore(a.config.SQLite.Path, a.logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	case mongoStore:
		ctx, cancel := context.WithTimeout(context.Background(), defs.TimeoutInterval)
		defer cancel()
		ms, err := mg.New(ctx, a.config.Mongo, a.logger)
		if err != nil {
			return nil, err
		}
		return mongoCloser{ms}, nil
	default:
		return nil, fmt.Errorf("%w: unknown store %q, expected %s or %s",
			defs.ErrConfiguration, kind, sqliteStore, mongoStore)
	}
}

func newSummaryCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "summary [folder...]",
		Short: "Print daily glucose summaries and the period overview",
		RunE: func(_ *cobra.Command, args []string) error {
			res, err := a.analyze(args)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "DAY\tCOUNT\tMEAN\tSTD\tMIN\tP25\tMEDIAN\tP75\tMAX\tCV\tBELOW\tIN\tABOVE")
			for _, ds := range res.Summaries {
				fmt.Fprintf(w, "%s\t%d\t%.1f\t%.1f\t%.0f\t%.1f\t%.1f\t%.1f\t%.0f\t%.1f\t%.1f\t%.1f\t%.1f\n",
					ds.YearDay, ds.Count, ds.Mean, ds.StdDev, ds.Min, ds.P25, ds.Median, ds.P75, ds.Max,
					ds.CoefficientOfVariation, ds.PctBelow, ds.PctInRange, ds.PctAbove)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			ov := res.Overview
			fmt.Printf("\n%s to %s, %d days, %d readings\n", ov.Start, ov.End, ov.Days, ov.Count)
			fmt.Printf("average %.1f mg/dL, deviation %.1f, cv %.1f%%, gmi %.2f%%\n", ov.Average, ov.Deviation, ov.CV, ov.GMI)
			fmt.Printf("below %.1f%%, in range %.1f%%, above %.1f%%\n", ov.BelowRange, ov.InRange, ov.AboveRange)
			return nil
		},
	}
}

func newBolusCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "bolus [folder...]",
		Short: "Print the daily split of bolus insulin into carb and correction parts",
		RunE: func(_ *cobra.Command, args []string) error {
			res, err := a.analyze(args)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "DAY\tBOLUSES\tDELIVERED\tCARB\tCORRECTION\tNO RATIO\tTDI")
			totals := make(map[string]float64, len(res.Pairs))
			for _, p := range res.Pairs {
				totals[p.YearDay] = p.TotalInsulin
			}
			for _, ds := range res.Bolus {
				tdi := "-"
				if v, ok := totals[ds.YearDay]; ok {
					tdi = fmt.Sprintf("%.1f", v)
				}
				fmt.Fprintf(w, "%s\t%d\t%.2f\t%.2f\t%.2f\t%d\t%s\n",
					ds.YearDay, ds.Count, ds.Delivered, ds.CarbCorrection, ds.InsulinCorrection, ds.Undefined, tdi)
			}
			return w.Flush()
		},
	}
}

func newPlotCommand(a *app) *cobra.Command {
	var out, kind string

	cmd := &cobra.Command{
		Use:   "plot [folder...]",
		Short: "Render a chart as PNG",
		RunE: func(_ *cobra.Command, args []string) error {
			res, err := a.analyze(args)
			if err != nil {
				return err
			}

			var data []byte
			switch kind {
			case "tir":
				data, err = plot.DailyTIR(res.Summaries, a.config.Glucose)
			case "tdi":
				data, err = plot.TIRvsTDI(res.Pairs)
			default:
				return fmt.Errorf("%w: unknown chart %q, expected tir or tdi", defs.ErrConfiguration, kind)
			}
			if err != nil {
				return &defs.StageError{Stage: defs.PlotStage, Err: err}
			}

			if err := os.WriteFile(out, data, 0o644); err != nil {
				return &defs.StageError{Stage: defs.PlotStage, Err: fmt.Errorf("unable to write %s: %w", out, err)}
			}
			fmt.Println(out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", duskull.ChartFilename, "output file")
	cmd.Flags().StringVar(&kind, "kind", "tir", "chart kind: tir (daily time in range) or tdi (time in range vs total daily insulin)")
	return cmd
}

func newSnapshotCommand(a *app) *cobra.Command {
	var kind, replace string

	cmd := &cobra.Command{
		Use:   "snapshot [folder...]",
		Short: "Store daily summaries, totals and the daily chart",
		RunE: func(_ *cobra.Command, args []string) error {
			res, err := a.analyze(args)
			if err != nil {
				return err
			}

			store, err := a.openStore(kind)
			if err != nil {
				return &defs.StageError{Stage: defs.SnapshotStage, Err: err}
			}
			defer store.Close()

			fid, err := duskull.Snapshot(context.Background(), store, res, a.config.Glucose, replace, a.logger)
			if err != nil {
				return err
			}
			fmt.Printf("stored %d days, chart %s\n", len(res.Summaries), fid)
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "store", sqliteStore, "snapshot store: sqlite or mongo")
	cmd.Flags().StringVar(&replace, "replace", "", "id of an earlier chart to delete after storing the new one")
	return cmd
}

func (a *app) newMetrics() *metrics.Manager {
	return metrics.NewManager(
		metrics.WithNamespace(a.config.Metrics.Namespace),
		metrics.WithHistogramBuckets(a.config.Metrics.DurationBuckets),
	)
}

func newServeCommand(a *app) *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve stored snapshots over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			store, err := a.openStore(kind)
			if err != nil {
				return err
			}
			defer store.Close()

			hs := duskhttp.New(store, a.config.Glucose, a.newMetrics(), a.logger)
			return hs.Run(a.config.HTTP.Addr)
		},
	}

	cmd.Flags().StringVar(&kind, "store", sqliteStore, "snapshot store: sqlite or mongo")
	return cmd
}

func newReportCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "report [folder...]",
		Short: "Send the period report to Discord",
		RunE: func(_ *cobra.Command, args []string) error {
			res, err := a.analyze(args)
			if err != nil {
				return err
			}

			d, err := discgo.New(a.config.Discord, a.logger)
			if err != nil {
				return &defs.StageError{Stage: defs.ReportStage, Err: err}
			}

			r := &duskull.Reporter{Messager: d, Logger: a.logger, GlucoseConfig: a.config.Glucose}
			return r.Report(res)
		},
	}
}
