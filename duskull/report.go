package duskull

import (
	"bytes"
	"errors"
	"fmt"
	"ichor/duskull/defs"
	"ichor/duskull/pkg/discgo"
	"ichor/duskull/pkg/plot"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

const ChartFilename = "daily_tir.png"

type Reporter struct {
	Messager      discgo.Messager
	Logger        *zap.Logger
	GlucoseConfig defs.GlucoseConfig
}

// Report sends the run's overview, a per-day table and the daily time in
// range chart.
func (r *Reporter) Report(res *Result) error {
	msgData, err := r.Message(res)
	if err != nil {
		return err
	}

	if _, err := r.Messager.SendMessage(msgData); err != nil {
		return &defs.StageError{Stage: defs.ReportStage, Err: err}
	}
	return nil
}

func (r *Reporter) Message(res *Result) (defs.MessageData, error) {
	ov := res.Overview

	msgData := defs.MessageData{
		Embeds: []defs.EmbedData{
			{
				Title:       fmt.Sprintf("%s to %s", ov.Start, ov.End),
				Description: "```" + dailyTable(res) + "```",
				Fields: []defs.EmbedField{
					{Name: "Average", Value: strconv.FormatFloat(ov.Average, 'f', 2, 64), Inline: true},
					{Name: "Deviation", Value: strconv.FormatFloat(ov.Deviation, 'f', 2, 64), Inline: true},
					{Name: "GMI", Value: strconv.FormatFloat(ov.GMI, 'f', 2, 64), Inline: true},
					{Name: "Below Range", Value: strconv.FormatFloat(ov.BelowRange, 'f', 2, 64), Inline: true},
					{Name: "In Range", Value: strconv.FormatFloat(ov.InRange, 'f', 2, 64), Inline: true},
					{Name: "Above Range", Value: strconv.FormatFloat(ov.AboveRange, 'f', 2, 64), Inline: true},
				},
			},
		},
	}

	chart, err := plot.DailyTIR(res.Summaries, r.GlucoseConfig)
	switch {
	case errors.Is(err, plot.ErrNoData):
		r.Logger.Debug("no days to chart, sending report without image")
	case err != nil:
		return defs.MessageData{}, &defs.StageError{Stage: defs.PlotStage, Err: err}
	default:
		r.Logger.Debug("adding image to embed", zap.String("name", ChartFilename))
		msgData.Embeds[0].Image = &defs.ImageData{Filename: ChartFilename}
		msgData.Files = append(msgData.Files, defs.FileData{Name: ChartFilename, Reader: bytes.NewReader(chart)})
	}

	return msgData, nil
}

func dailyTable(res *Result) string {
	totals := lo.SliceToMap(res.Pairs, func(p defs.DailyPair) (string, float64) {
		return p.YearDay, p.TotalInsulin
	})

	var b strings.Builder
	fmt.Fprintf(&b, "%8s %6s %6s %6s\n", "", "mean", "tir", "tdi")
	for _, ds := range res.Summaries {
		tdi := "-"
		if v, ok := totals[ds.YearDay]; ok {
			tdi = strconv.FormatFloat(v, 'f', 1, 64)
		}
		fmt.Fprintf(&b, "%8s %6.f %6.1f %6s\n", ds.YearDay, ds.Mean, ds.PctInRange, tdi)
	}
	return b.String()
}
