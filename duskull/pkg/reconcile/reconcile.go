// Package reconcile aligns daily glucose summaries with daily insulin totals.
// It only ever filters; no day is interpolated or synthesized.
package reconcile

import (
	"ichor/duskull/defs"
	"ichor/duskull/pkg/yearday"

	"github.com/samber/lo"
)

// MatchDateRanges keeps only the days present in both tables when match is
// set, and returns both tables untouched otherwise.
func MatchDateRanges(dss []defs.DailyGlucoseSummary, its []defs.InsulinDailyTotal, match bool) ([]defs.DailyGlucoseSummary, []defs.InsulinDailyTotal) {
	if !match {
		return dss, its
	}

	common := lo.Intersect(summaryKeys(dss), totalKeys(its))
	keep := lo.SliceToMap(common, func(key string) (string, struct{}) { return key, struct{}{} })

	dss = lo.Filter(dss, func(ds defs.DailyGlucoseSummary, _ int) bool {
		_, ok := keep[ds.YearDay]
		return ok
	})
	its = lo.Filter(its, func(it defs.InsulinDailyTotal, _ int) bool {
		_, ok := keep[totalDay(it)]
		return ok
	})
	return dss, its
}

// Pair joins each summarized day with its insulin totals. Days missing from
// either side are dropped. A day with several total rows uses LatestTotals.
func Pair(dss []defs.DailyGlucoseSummary, its []defs.InsulinDailyTotal) []defs.DailyPair {
	totals := lo.KeyBy(LatestTotals(its), totalDay)

	pairs := make([]defs.DailyPair, 0, len(dss))
	for _, ds := range dss {
		it, ok := totals[ds.YearDay]
		if !ok {
			continue
		}

		pairs = append(pairs, defs.DailyPair{
			YearDay:      ds.YearDay,
			PctInRange:   ds.PctInRange,
			Mean:         ds.Mean,
			TotalInsulin: it.TotalInsulin,
			TotalBolus:   it.TotalBolus,
			TotalBasal:   it.TotalBasal,
		})
	}
	return pairs
}

// LatestTotals keeps one total row per day: the one with the latest
// timestamp, or the later row in input order on a tie. Days keep the order
// of their first appearance.
func LatestTotals(its []defs.InsulinDailyTotal) []defs.InsulinDailyTotal {
	days := lo.GroupBy(its, totalDay)
	return lo.Map(totalKeys(its), func(key string, _ int) defs.InsulinDailyTotal {
		return lo.MaxBy(days[key], func(a, b defs.InsulinDailyTotal) bool {
			return !a.Time.Before(b.Time)
		})
	})
}

func summaryKeys(dss []defs.DailyGlucoseSummary) []string {
	return lo.Uniq(lo.Map(dss, func(ds defs.DailyGlucoseSummary, _ int) string { return ds.YearDay }))
}

func totalKeys(its []defs.InsulinDailyTotal) []string {
	return lo.Uniq(lo.Map(its, func(it defs.InsulinDailyTotal, _ int) string { return totalDay(it) }))
}

func totalDay(it defs.InsulinDailyTotal) string {
	if it.YearDay != "" {
		return it.YearDay
	}
	return yearday.Key(it.Time)
}
