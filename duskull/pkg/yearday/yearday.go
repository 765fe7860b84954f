// Package yearday labels records with a calendar-day key of the form
// YYYY-DDD. Keys sort chronologically as plain strings.
package yearday

import (
	"fmt"
	"ichor/duskull/defs"
	"strconv"
	"strings"
	"time"
)

const Separator = "-"

// Key derives the calendar-day key of t, in t's own location.
func Key(t time.Time) string {
	return fmt.Sprintf("%04d%s%03d", t.Year(), Separator, t.YearDay())
}

// Label returns the key of every time point, in order. A zero timestamp means
// the record was never parsed and is rejected.
func Label[T defs.TimePoint](tps []T) ([]string, error) {
	keys := make([]string, len(tps))
	for i, tp := range tps {
		t := tp.GetTime()
		if t.IsZero() {
			return nil, fmt.Errorf("%w: record %d has no timestamp", defs.ErrMalformedRecord, i)
		}
		keys[i] = Key(t)
	}
	return keys, nil
}

// Parse maps a key back to midnight UTC of its calendar date.
func Parse(key string) (time.Time, error) {
	year, day, ok := strings.Cut(key, Separator)
	if !ok || len(year) != 4 || len(day) != 3 {
		return time.Time{}, fmt.Errorf("%w: invalid year-day key %q", defs.ErrMalformedRecord, key)
	}

	y, err := strconv.Atoi(year)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid year in %q", defs.ErrMalformedRecord, key)
	}
	d, err := strconv.Atoi(day)
	if err != nil || d < 1 || d > daysIn(y) {
		return time.Time{}, fmt.Errorf("%w: invalid day of year in %q", defs.ErrMalformedRecord, key)
	}

	return time.Date(y, time.January, d, 0, 0, 0, 0, time.UTC), nil
}

func Less(a, b string) bool {
	return a < b
}

func daysIn(year int) int {
	return time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC).YearDay()
}
