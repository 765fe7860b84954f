// Package merge combines exports whose date ranges may overlap.
package merge

import (
	"fmt"
	"ichor/duskull/defs"
	"math"
	"time"

	"github.com/samber/lo"
)

// Batches concatenates every table across batches once, then drops rows that
// are exactly equal to an earlier row. Rows differing in any field, however
// slightly, are all kept.
func Batches(batches ...defs.Batch) (defs.Batch, error) {
	if len(batches) == 0 {
		return defs.Batch{}, fmt.Errorf("%w: no batches to merge", defs.ErrConfiguration)
	}

	return defs.Batch{
		Glucose: lo.UniqBy(collect(batches, func(b defs.Batch) []defs.GlucoseReading { return b.Glucose }), glucoseKey),
		Bolus:   lo.UniqBy(collect(batches, func(b defs.Batch) []defs.BolusEvent { return b.Bolus }), bolusKey),
		Basal:   lo.UniqBy(collect(batches, func(b defs.Batch) []defs.BasalEvent { return b.Basal }), basalKey),
		Insulin: lo.UniqBy(collect(batches, func(b defs.Batch) []defs.InsulinDailyTotal { return b.Insulin }), insulinKey),
		Summaries: lo.UniqBy(
			collect(batches, func(b defs.Batch) []defs.DailyGlucoseSummary { return b.Summaries }),
			summaryKey,
		),
	}, nil
}

func collect[T any](batches []defs.Batch, table func(defs.Batch) []T) []T {
	return lo.Flatten(lo.Map(batches, func(b defs.Batch, _ int) []T { return table(b) }))
}

// Floats are compared by bit pattern so identical NaN cells still match.
type glucoseRow struct {
	time    int64
	value   uint64
	yearday string
}

func glucoseKey(gr defs.GlucoseReading) glucoseRow {
	return glucoseRow{instant(gr.Time), bits(gr.Value), gr.YearDay}
}

type bolusRow struct {
	time        int64
	insulinType string
	yearday     string
	fields      [6]uint64
}

func bolusKey(be defs.BolusEvent) bolusRow {
	return bolusRow{
		time:        instant(be.Time),
		insulinType: be.InsulinType,
		yearday:     be.YearDay,
		fields: [6]uint64{
			bits(be.BGInput), bits(be.CarbsInput), bits(be.CarbRatio),
			bits(be.InsulinDelivered), bits(be.InitialDelivery), bits(be.ExtendedDelivery),
		},
	}
}

type basalRow struct {
	time        int64
	insulinType string
	yearday     string
	fields      [4]uint64
}

func basalKey(be defs.BasalEvent) basalRow {
	return basalRow{
		time:        instant(be.Time),
		insulinType: be.InsulinType,
		yearday:     be.YearDay,
		fields: [4]uint64{
			bits(be.Duration), bits(be.Percentage), bits(be.Rate), bits(be.InsulinDelivered),
		},
	}
}

type insulinRow struct {
	time    int64
	yearday string
	fields  [3]uint64
}

func insulinKey(it defs.InsulinDailyTotal) insulinRow {
	return insulinRow{
		time:    instant(it.Time),
		yearday: it.YearDay,
		fields:  [3]uint64{bits(it.TotalBolus), bits(it.TotalInsulin), bits(it.TotalBasal)},
	}
}

type summaryRow struct {
	yearday string
	time    int64
	count   int
	fields  [11]uint64
}

func summaryKey(ds defs.DailyGlucoseSummary) summaryRow {
	return summaryRow{
		yearday: ds.YearDay,
		time:    instant(ds.Time),
		count:   ds.Count,
		fields: [11]uint64{
			bits(ds.Mean), bits(ds.StdDev), bits(ds.Min), bits(ds.P25), bits(ds.Median),
			bits(ds.P75), bits(ds.Max), bits(ds.CoefficientOfVariation),
			bits(ds.PctBelow), bits(ds.PctInRange), bits(ds.PctAbove),
		},
	}
}

func instant(t time.Time) int64 {
	return t.UnixNano()
}

// bits keys a float by value: every NaN shares one key, and -0 keys as 0.
func bits(f float64) uint64 {
	switch {
	case math.IsNaN(f):
		f = math.NaN()
	case f == 0:
		f = 0
	}
	return math.Float64bits(f)
}
