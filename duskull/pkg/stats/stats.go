package stats

import (
	"fmt"
	"ichor/duskull/defs"
	"ichor/duskull/pkg/yearday"
	"math"
	"sort"

	"github.com/montanaflynn/stats"
	"github.com/samber/lo"
)

// RangeAnalysis holds percentages, 0 to 100.
type RangeAnalysis struct {
	BelowRange float64
	InRange    float64
	AboveRange float64
}

// TimeSpentInRange counts a reading equal to lower as below range and a
// reading equal to upper as in range.
func TimeSpentInRange(trs []defs.GlucoseReading, lower, upper float64) RangeAnalysis {
	if len(trs) == 0 {
		return RangeAnalysis{}
	}

	below, above := 0.0, 0.0
	for _, tr := range trs {
		switch {
		case tr.Value <= lower:
			below++
		case tr.Value > upper:
			above++
		}
	}
	in := float64(len(trs)) - below - above

	total := float64(len(trs))
	return RangeAnalysis{
		BelowRange: below / total * 100,
		InRange:    in / total * 100,
		AboveRange: above / total * 100,
	}
}

type SummaryStatistics struct {
	Count     int
	Average   float64
	Deviation float64 // Sample deviation, 0 below two readings.
	Min       float64
	P25       float64
	Median    float64
	P75       float64
	Max       float64
}

func GlucoseSummary(trs []defs.GlucoseReading) SummaryStatistics {
	if len(trs) == 0 {
		return SummaryStatistics{}
	}

	trFloats := make([]float64, len(trs))
	for i, tr := range trs {
		trFloats[i] = tr.Value
	}
	sort.Float64s(trFloats)

	avg, _ := stats.Mean(trFloats)
	min, _ := stats.Min(trFloats)
	max, _ := stats.Max(trFloats)

	var dev float64
	if len(trFloats) > 1 {
		dev, _ = stats.StandardDeviationSample(trFloats)
	}

	return SummaryStatistics{
		Count:     len(trFloats),
		Average:   avg,
		Deviation: dev,
		Min:       min,
		P25:       percentile(trFloats, 0.25),
		Median:    percentile(trFloats, 0.5),
		P75:       percentile(trFloats, 0.75),
		Max:       max,
	}
}

// percentile interpolates linearly between the closest ranks of sorted data.
func percentile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	h := float64(len(sorted)-1) * q
	floor := math.Floor(h)
	i := int(floor)
	if i+1 >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	return sorted[i] + (h-floor)*(sorted[i+1]-sorted[i])
}

// DailyAggregate summarizes readings per calendar day. Days are returned in
// key order.
func DailyAggregate(trs []defs.GlucoseReading, gc defs.GlucoseConfig) ([]defs.DailyGlucoseSummary, error) {
	if err := gc.Validate(); err != nil {
		return nil, err
	}

	days := lo.GroupBy(trs, dayOf)
	keys := lo.Keys(days)
	sortDays(keys)

	summaries := make([]defs.DailyGlucoseSummary, 0, len(keys))
	for _, key := range keys {
		t, err := yearday.Parse(key)
		if err != nil {
			return nil, fmt.Errorf("unable to aggregate day: %w", err)
		}

		ss := GlucoseSummary(days[key])
		ra := TimeSpentInRange(days[key], gc.Low, gc.High)

		var cv float64
		if ss.Average != 0 {
			cv = ss.Deviation / ss.Average * 100
		}

		summaries = append(summaries, defs.DailyGlucoseSummary{
			YearDay:                key,
			Time:                   t,
			Count:                  ss.Count,
			Mean:                   ss.Average,
			StdDev:                 ss.Deviation,
			Min:                    ss.Min,
			P25:                    ss.P25,
			Median:                 ss.Median,
			P75:                    ss.P75,
			Max:                    ss.Max,
			CoefficientOfVariation: cv,
			PctBelow:               ra.BelowRange,
			PctInRange:             ra.InRange,
			PctAbove:               ra.AboveRange,
		})
	}

	return summaries, nil
}

// Overall summarizes a whole period of readings.
func Overall(trs []defs.GlucoseReading, gc defs.GlucoseConfig) (defs.Overview, error) {
	if err := gc.Validate(); err != nil {
		return defs.Overview{}, err
	}
	if len(trs) == 0 {
		return defs.Overview{}, nil
	}

	keys := lo.Uniq(lo.Map(trs, func(tr defs.GlucoseReading, _ int) string { return dayOf(tr) }))
	sortDays(keys)

	ss := GlucoseSummary(trs)
	ra := TimeSpentInRange(trs, gc.Low, gc.High)

	ov := defs.Overview{
		Start:      keys[0],
		End:        keys[len(keys)-1],
		Days:       len(keys),
		Count:      ss.Count,
		Average:    ss.Average,
		Deviation:  ss.Deviation,
		GMI:        3.31 + 0.02392*ss.Average,
		BelowRange: ra.BelowRange,
		InRange:    ra.InRange,
		AboveRange: ra.AboveRange,
	}
	if ss.Average != 0 {
		ov.CV = ss.Deviation / ss.Average * 100
	}

	return ov, nil
}

// DailyBolus splits each day's bolus insulin into carb and correction parts.
// Boluses without a carb ratio are counted as undefined and left out of both
// parts.
func DailyBolus(bes []defs.BolusEvent) []defs.DailyBolusSummary {
	days := lo.GroupBy(bes, func(be defs.BolusEvent) string {
		if be.YearDay != "" {
			return be.YearDay
		}
		return yearday.Key(be.Time)
	})
	keys := lo.Keys(days)
	sortDays(keys)

	summaries := make([]defs.DailyBolusSummary, 0, len(keys))
	for _, key := range keys {
		ds := defs.DailyBolusSummary{YearDay: key}
		for _, be := range days[key] {
			ds.Count++
			ds.Delivered += be.InsulinDelivered

			cc, err := be.CarbCorrection()
			if err != nil {
				ds.Undefined++
				continue
			}
			ds.CarbCorrection += cc
			ds.InsulinCorrection += be.InsulinDelivered - cc
		}
		summaries = append(summaries, ds)
	}
	return summaries
}

func dayOf(tr defs.GlucoseReading) string {
	if tr.YearDay != "" {
		return tr.YearDay
	}
	return yearday.Key(tr.Time)
}

func sortDays(keys []string) {
	sort.Slice(keys, func(i, j int) bool { return yearday.Less(keys[i], keys[j]) })
}
