// Package ingest reads a Glooko export folder into typed tables.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"ichor/duskull/defs"
	"ichor/duskull/pkg/yearday"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Export layout, relative to the data folder.
const (
	GlucoseFile   = "cgm_data.csv"
	InsulinFolder = "Insulin data"
	BolusFile     = "bolus_data.csv"
	BasalFile     = "basal_data.csv"
	InsulinFile   = "insulin_data.csv"
)

// Every export file starts with a metadata line and a column header line.
const skipLines = 2

var timeLayouts = []string{
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"1/2/2006 15:04",
	"1/2/2006 15:04:05",
	"1/2/2006 3:04 PM",
	"1/2/2006 3:04:05 PM",
}

var (
	errNotFinite    = errors.New("value is not finite")
	errBadTimestamp = errors.New("unrecognized timestamp")
)

var (
	glucoseColumns = []string{"time", "glucose_value", "device_serial"}
	bolusColumns   = []string{
		"time", "insulin_type", "bg_input", "carbs_input", "carb_ratio",
		"insulin_delivered", "initial_delivery", "extended_delivery", "device_serial",
	}
	basalColumns = []string{
		"time", "insulin_type", "duration", "percentage", "rate", "insulin_delivered", "device_serial",
	}
	insulinColumns = []string{"time", "total_bolus", "total_insulin", "total_basal", "device_serial"}
)

type Reader struct {
	Folder   string
	Location *time.Location
	Logger   *zap.Logger
}

func New(folder string, loc *time.Location, logger *zap.Logger) *Reader {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{Folder: folder, Location: loc, Logger: logger}
}

func (r *Reader) GlucosePath() string {
	return filepath.Join(r.Folder, GlucoseFile)
}

func (r *Reader) BolusPath() string {
	return filepath.Join(r.Folder, InsulinFolder, BolusFile)
}

func (r *Reader) BasalPath() string {
	return filepath.Join(r.Folder, InsulinFolder, BasalFile)
}

func (r *Reader) InsulinPath() string {
	return filepath.Join(r.Folder, InsulinFolder, InsulinFile)
}

// ReadAll reads the four sources. Any failure fails the whole batch.
func (r *Reader) ReadAll() (defs.Batch, error) {
	var batch defs.Batch
	var err error

	if batch.Glucose, err = r.ReadGlucose(); err != nil {
		return defs.Batch{}, err
	}
	if batch.Bolus, err = r.ReadBolus(); err != nil {
		return defs.Batch{}, err
	}
	if batch.Basal, err = r.ReadBasal(); err != nil {
		return defs.Batch{}, err
	}
	if batch.Insulin, err = r.ReadInsulin(); err != nil {
		return defs.Batch{}, err
	}

	return batch, nil
}

func (r *Reader) ReadGlucose() ([]defs.GlucoseReading, error) {
	trs := make([]defs.GlucoseReading, 0)
	err := r.readSource(r.GlucosePath(), glucoseColumns, func(rec record) error {
		t, err := rec.time(0)
		if err != nil {
			return err
		}
		value, err := rec.float(1, true)
		if err != nil {
			return err
		}

		trs = append(trs, defs.GlucoseReading{Time: t, Value: value})
		return nil
	})
	if err == nil {
		err = label(trs, func(tr *defs.GlucoseReading, key string) { tr.YearDay = key })
	}
	if err != nil {
		return nil, fmt.Errorf("unable to read glucose: %w", err)
	}
	return trs, nil
}

func (r *Reader) ReadBolus() ([]defs.BolusEvent, error) {
	bes := make([]defs.BolusEvent, 0)
	err := r.readSource(r.BolusPath(), bolusColumns, func(rec record) error {
		t, err := rec.time(0)
		if err != nil {
			return err
		}

		be := defs.BolusEvent{Time: t, InsulinType: rec.str(1)}
		for _, f := range []struct {
			col      int
			dst      *float64
			required bool
		}{
			{2, &be.BGInput, false},
			{3, &be.CarbsInput, false},
			{4, &be.CarbRatio, false},
			{5, &be.InsulinDelivered, true},
			{6, &be.InitialDelivery, false},
			{7, &be.ExtendedDelivery, false},
		} {
			if *f.dst, err = rec.float(f.col, f.required); err != nil {
				return err
			}
		}

		bes = append(bes, be)
		return nil
	})
	if err == nil {
		err = label(bes, func(be *defs.BolusEvent, key string) { be.YearDay = key })
	}
	if err != nil {
		return nil, fmt.Errorf("unable to read bolus: %w", err)
	}
	return bes, nil
}

func (r *Reader) ReadBasal() ([]defs.BasalEvent, error) {
	bes := make([]defs.BasalEvent, 0)
	err := r.readSource(r.BasalPath(), basalColumns, func(rec record) error {
		t, err := rec.time(0)
		if err != nil {
			return err
		}

		be := defs.BasalEvent{Time: t, InsulinType: rec.str(1)}
		for _, f := range []struct {
			col      int
			dst      *float64
			required bool
		}{
			{2, &be.Duration, false},
			{3, &be.Percentage, false},
			{4, &be.Rate, false},
			{5, &be.InsulinDelivered, true},
		} {
			if *f.dst, err = rec.float(f.col, f.required); err != nil {
				return err
			}
		}

		bes = append(bes, be)
		return nil
	})
	if err == nil {
		err = label(bes, func(be *defs.BasalEvent, key string) { be.YearDay = key })
	}
	if err != nil {
		return nil, fmt.Errorf("unable to read basal: %w", err)
	}
	return bes, nil
}

func (r *Reader) ReadInsulin() ([]defs.InsulinDailyTotal, error) {
	its := make([]defs.InsulinDailyTotal, 0)
	err := r.readSource(r.InsulinPath(), insulinColumns, func(rec record) error {
		t, err := rec.time(0)
		if err != nil {
			return err
		}

		it := defs.InsulinDailyTotal{Time: t}
		if it.TotalBolus, err = rec.float(1, true); err != nil {
			return err
		}
		if it.TotalInsulin, err = rec.float(2, true); err != nil {
			return err
		}
		if it.TotalBasal, err = rec.float(3, true); err != nil {
			return err
		}

		its = append(its, it)
		return nil
	})
	if err == nil {
		err = label(its, func(it *defs.InsulinDailyTotal, key string) { it.YearDay = key })
	}
	if err != nil {
		return nil, fmt.Errorf("unable to read insulin totals: %w", err)
	}
	return its, nil
}

// label stamps every row with the calendar-day key of its own timestamp.
func label[T defs.TimePoint](rows []T, set func(*T, string)) error {
	keys, err := yearday.Label(rows)
	if err != nil {
		return err
	}
	for i := range rows {
		set(&rows[i], keys[i])
	}
	return nil
}

func (r *Reader) readSource(path string, columns []string, handle func(record) error) error {
	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return fmt.Errorf("unable to open %s: %w", path, defs.ErrSourceNotFound)
	}
	if err != nil {
		return fmt.Errorf("unable to open %s: %w", path, err)
	}
	defer file.Close()

	cr := csv.NewReader(file)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	read, count := 0, 0
	for {
		fields, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			line := 0
			if errors.As(err, &pe) {
				line = pe.Line
			}
			return &defs.RecordError{Source: path, Line: line, Err: err}
		}

		read++
		if read <= skipLines {
			continue
		}

		line, _ := cr.FieldPos(0)
		rec := record{source: path, line: line, columns: columns, fields: fields, loc: r.Location}
		// The trailing device serial is never read and may be absent.
		if len(fields) < len(columns)-1 {
			return &defs.RecordError{
				Source: path,
				Line:   line,
				Err:    fmt.Errorf("expected %d columns, got %d", len(columns)-1, len(fields)),
			}
		}
		if err := handle(rec); err != nil {
			return err
		}
		count++
	}

	r.Logger.Debug(
		"read source",
		zap.String("source", path),
		zap.Int("rows", count),
	)

	return nil
}

type record struct {
	source  string
	line    int
	columns []string
	fields  []string
	loc     *time.Location
}

func (rec record) fail(col int, err error) error {
	return &defs.RecordError{
		Source: rec.source,
		Line:   rec.line,
		Column: rec.columns[col],
		Value:  rec.fields[col],
		Err:    err,
	}
}

func (rec record) str(col int) string {
	return strings.TrimSpace(rec.fields[col])
}

func (rec record) time(col int) (time.Time, error) {
	raw := rec.str(col)
	if raw == "" {
		return time.Time{}, rec.fail(col, errors.New("missing timestamp"))
	}

	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, raw, rec.loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, rec.fail(col, errBadTimestamp)
}

// float reads a numeric cell. Blank optional cells read as 0.
func (rec record) float(col int, required bool) (float64, error) {
	raw := rec.str(col)
	if raw == "" {
		if required {
			return 0, rec.fail(col, errors.New("missing value"))
		}
		return 0, nil
	}

	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, rec.fail(col, err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, rec.fail(col, errNotFinite)
	}
	return f, nil
}
