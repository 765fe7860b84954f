// Package lite keeps analysis snapshots in a local sqlite database.
package lite

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"ichor/duskull/defs"
	"ichor/duskull/pkg/reconcile"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

var ErrFileNotFound = errors.New("file not found")

type Store struct {
	db     *sql.DB
	Logger *zap.Logger
}

func OpenStore(path string, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("unable to create db dir: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("unable to open db: %w", err)
	}

	store := NewStore(db, logger)
	if err := store.Init(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func NewStore(db *sql.DB, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, Logger: logger}
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Init(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS summaries (
			yearday TEXT PRIMARY KEY,
			time TEXT NOT NULL,
			count INTEGER NOT NULL,
			mean REAL NOT NULL,
			std REAL NOT NULL,
			min REAL NOT NULL,
			p25 REAL NOT NULL,
			median REAL NOT NULL,
			p75 REAL NOT NULL,
			max REAL NOT NULL,
			cv REAL NOT NULL,
			pct_below REAL NOT NULL,
			pct_in_range REAL NOT NULL,
			pct_above REAL NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS totals (
			yearday TEXT PRIMARY KEY,
			time TEXT NOT NULL,
			total_bolus REAL NOT NULL,
			total_insulin REAL NOT NULL,
			total_basal REAL NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS files (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			data BLOB NOT NULL,
			created_at TEXT NOT NULL
		);`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("unable to init schema: %w", err)
		}
	}
	return nil
}

// WriteSummaries replaces the stored summary of every day present in dss.
func (s *Store) WriteSummaries(ctx context.Context, dss []defs.DailyGlucoseSummary) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("unable to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, ds := range dss {
		_, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO summaries (
			yearday, time, count, mean, std, min, p25, median, p75, max, cv,
			pct_below, pct_in_range, pct_above
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			ds.YearDay, formatTime(ds.Time), ds.Count, ds.Mean, ds.StdDev, ds.Min,
			ds.P25, ds.Median, ds.P75, ds.Max, ds.CoefficientOfVariation,
			ds.PctBelow, ds.PctInRange, ds.PctAbove,
		)
		if err != nil {
			return fmt.Errorf("unable to write summary %s: %w", ds.YearDay, err)
		}
	}

	s.Logger.Debug("wrote summaries", zap.Int("rows", len(dss)))
	return tx.Commit()
}

func (s *Store) ReadSummaries(ctx context.Context, start, end string) ([]defs.DailyGlucoseSummary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT
			yearday, time, count, mean, std, min, p25, median, p75, max, cv,
			pct_below, pct_in_range, pct_above
		FROM summaries
		WHERE (? = '' OR yearday >= ?) AND (? = '' OR yearday <= ?)
		ORDER BY yearday`,
		start, start, end, end,
	)
	if err != nil {
		return nil, fmt.Errorf("unable to read summaries: %w", err)
	}
	defer rows.Close()

	dss := make([]defs.DailyGlucoseSummary, 0)
	for rows.Next() {
		var ds defs.DailyGlucoseSummary
		var t string
		err := rows.Scan(
			&ds.YearDay, &t, &ds.Count, &ds.Mean, &ds.StdDev, &ds.Min,
			&ds.P25, &ds.Median, &ds.P75, &ds.Max, &ds.CoefficientOfVariation,
			&ds.PctBelow, &ds.PctInRange, &ds.PctAbove,
		)
		if err != nil {
			return nil, fmt.Errorf("unable to scan summary: %w", err)
		}
		if ds.Time, err = parseTime(t); err != nil {
			return nil, err
		}
		dss = append(dss, ds)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("unable to read summaries: %w", err)
	}
	return dss, nil
}

// WriteTotals stores one row per day. Several rows for a day collapse to the
// latest one, and a later write replaces the stored day.
func (s *Store) WriteTotals(ctx context.Context, its []defs.InsulinDailyTotal) error {
	its = reconcile.LatestTotals(its)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("unable to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, it := range its {
		_, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO totals (
			yearday, time, total_bolus, total_insulin, total_basal
		) VALUES (?, ?, ?, ?, ?)`,
			it.YearDay, formatTime(it.Time), it.TotalBolus, it.TotalInsulin, it.TotalBasal,
		)
		if err != nil {
			return fmt.Errorf("unable to write totals %s: %w", it.YearDay, err)
		}
	}

	s.Logger.Debug("wrote totals", zap.Int("rows", len(its)))
	return tx.Commit()
}

func (s *Store) ReadTotals(ctx context.Context, start, end string) ([]defs.InsulinDailyTotal, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT
			yearday, time, total_bolus, total_insulin, total_basal
		FROM totals
		WHERE (? = '' OR yearday >= ?) AND (? = '' OR yearday <= ?)
		ORDER BY yearday`,
		start, start, end, end,
	)
	if err != nil {
		return nil, fmt.Errorf("unable to read totals: %w", err)
	}
	defer rows.Close()

	its := make([]defs.InsulinDailyTotal, 0)
	for rows.Next() {
		var it defs.InsulinDailyTotal
		var t string
		if err := rows.Scan(&it.YearDay, &t, &it.TotalBolus, &it.TotalInsulin, &it.TotalBasal); err != nil {
			return nil, fmt.Errorf("unable to scan totals: %w", err)
		}
		if it.Time, err = parseTime(t); err != nil {
			return nil, err
		}
		its = append(its, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("unable to read totals: %w", err)
	}
	return its, nil
}

func (s *Store) WriteFile(ctx context.Context, name string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("unable to read file contents: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO files (name, data, created_at) VALUES (?, ?, ?)`,
		name, data, formatTime(time.Now()),
	)
	if err != nil {
		return "", fmt.Errorf("unable to write file: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return "", fmt.Errorf("unable to get file id: %w", err)
	}

	s.Logger.Debug(
		"wrote file",
		zap.String("name", name),
		zap.Int64("id", id),
		zap.Int("bytes", len(data)),
	)

	return strconv.FormatInt(id, 10), nil
}

func (s *Store) ReadFile(ctx context.Context, fid string) (io.Reader, error) {
	id, err := strconv.ParseInt(fid, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("unable to parse file id %q: %w", fid, err)
	}

	var data []byte
	err = s.db.QueryRowContext(ctx, `SELECT data FROM files WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("unable to read file %s: %w", fid, ErrFileNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to read file %s: %w", fid, err)
	}

	return bytes.NewReader(data), nil
}

func (s *Store) DeleteFile(ctx context.Context, fid string) error {
	id, err := strconv.ParseInt(fid, 10, 64)
	if err != nil {
		return fmt.Errorf("unable to parse file id %q: %w", fid, err)
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM files WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("unable to delete file %s: %w", fid, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("unable to delete file %s: %w", fid, ErrFileNotFound)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("unable to parse stored time %q: %w", s, err)
	}
	return t, nil
}
