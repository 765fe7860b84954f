package lite

import (
	"bytes"
	"context"
	"database/sql"
	"ichor/duskull/defs"
	"ichor/duskull/pkg/mg"
	"ichor/duskull/pkg/yearday"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

var _ mg.SnapshotStore = (*Store)(nil)

type LiteTestSuite struct {
	suite.Suite
	store *Store
}

func TestLiteTestSuite(t *testing.T) {
	suite.Run(t, new(LiteTestSuite))
}

func (suite *LiteTestSuite) SetupTest() {
	store, err := OpenStore(filepath.Join(suite.T().TempDir(), "data", "ichor.db"), zap.NewNop())
	require.NoError(suite.T(), err)
	suite.store = store
}

func (suite *LiteTestSuite) TearDownTest() {
	assert.NoError(suite.T(), suite.store.Close())
}

func day(key string) time.Time {
	t, _ := yearday.Parse(key)
	return t
}

func (suite *LiteTestSuite) TestInitCreatesTables() {
	for _, table := range []string{"summaries", "totals", "files"} {
		var name string
		err := suite.store.db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		assert.NoError(suite.T(), err, "table %s missing", table)
	}
}

func (suite *LiteTestSuite) TestInitIsRepeatable() {
	assert.NoError(suite.T(), suite.store.Init(context.Background()))
}

func (suite *LiteTestSuite) TestReadWriteSummaries() {
	ctx := context.Background()
	dss := []defs.DailyGlucoseSummary{
		{YearDay: "2023-011", Time: day("2023-011"), Count: 2, Mean: 125, PctInRange: 50, PctBelow: 50},
		{YearDay: "2023-010", Time: day("2023-010"), Count: 3, Mean: 118.33, StdDev: 62.52,
			P25: 82.5, Median: 100, P75: 145, Max: 190, Min: 65,
			PctBelow: 100.0 / 3, PctInRange: 100.0 / 3, PctAbove: 100.0 / 3},
	}
	require.NoError(suite.T(), suite.store.WriteSummaries(ctx, dss))

	got, err := suite.store.ReadSummaries(ctx, "", "")
	require.NoError(suite.T(), err)
	require.Len(suite.T(), got, 2)
	assert.Equal(suite.T(), "2023-010", got[0].YearDay, "ordered by day")
	assert.True(suite.T(), dss[1].Time.Equal(got[0].Time))
	assert.Equal(suite.T(), dss[1].P75, got[0].P75)
	assert.Equal(suite.T(), dss[1].PctAbove, got[0].PctAbove)

	got, err = suite.store.ReadSummaries(ctx, "2023-011", "2023-011")
	require.NoError(suite.T(), err)
	require.Len(suite.T(), got, 1)
	assert.Equal(suite.T(), 2, got[0].Count)
}

func (suite *LiteTestSuite) TestWriteSummariesReplacesDay() {
	ctx := context.Background()
	ds := defs.DailyGlucoseSummary{YearDay: "2023-010", Time: day("2023-010"), PctInRange: 10}
	require.NoError(suite.T(), suite.store.WriteSummaries(ctx, []defs.DailyGlucoseSummary{ds}))
	ds.PctInRange = 90
	require.NoError(suite.T(), suite.store.WriteSummaries(ctx, []defs.DailyGlucoseSummary{ds}))

	got, err := suite.store.ReadSummaries(ctx, "", "")
	require.NoError(suite.T(), err)
	require.Len(suite.T(), got, 1)
	assert.Equal(suite.T(), 90.0, got[0].PctInRange)
}

func (suite *LiteTestSuite) TestReadWriteTotals() {
	ctx := context.Background()
	its := []defs.InsulinDailyTotal{
		{YearDay: "2023-010", Time: day("2023-010"), TotalBolus: 6.5, TotalInsulin: 27.5, TotalBasal: 21},
		{YearDay: "2023-011", Time: day("2023-011"), TotalBolus: 6, TotalInsulin: 26.4, TotalBasal: 20.4},
	}
	require.NoError(suite.T(), suite.store.WriteTotals(ctx, its))

	got, err := suite.store.ReadTotals(ctx, "", "2023-010")
	require.NoError(suite.T(), err)
	require.Len(suite.T(), got, 1)
	assert.Equal(suite.T(), 27.5, got[0].TotalInsulin)
	assert.True(suite.T(), its[0].Time.Equal(got[0].Time))
}

func (suite *LiteTestSuite) TestWriteTotalsKeepsLatestOfDay() {
	ctx := context.Background()
	its := []defs.InsulinDailyTotal{
		{YearDay: "2023-010", Time: day("2023-010").Add(23 * time.Hour), TotalInsulin: 25},
		{YearDay: "2023-010", Time: day("2023-010"), TotalInsulin: 20},
	}
	require.NoError(suite.T(), suite.store.WriteTotals(ctx, its))

	got, err := suite.store.ReadTotals(ctx, "", "")
	require.NoError(suite.T(), err)
	require.Len(suite.T(), got, 1)
	assert.Equal(suite.T(), 25.0, got[0].TotalInsulin)
}

func (suite *LiteTestSuite) TestEmptyRead() {
	got, err := suite.store.ReadTotals(context.Background(), "", "")
	assert.NoError(suite.T(), err)
	assert.Empty(suite.T(), got)
}

func (suite *LiteTestSuite) TestFiles() {
	ctx := context.Background()
	content := []byte{0x89, 'P', 'N', 'G'}

	fid, err := suite.store.WriteFile(ctx, "daily_tir.png", bytes.NewReader(content))
	require.NoError(suite.T(), err)

	r, err := suite.store.ReadFile(ctx, fid)
	require.NoError(suite.T(), err)
	read, err := io.ReadAll(r)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), content, read)

	require.NoError(suite.T(), suite.store.DeleteFile(ctx, fid))
	_, err = suite.store.ReadFile(ctx, fid)
	assert.ErrorIs(suite.T(), err, ErrFileNotFound)
	assert.ErrorIs(suite.T(), suite.store.DeleteFile(ctx, fid), ErrFileNotFound)
}

func (suite *LiteTestSuite) TestReadFileBadID() {
	_, err := suite.store.ReadFile(context.Background(), "abc")
	assert.Error(suite.T(), err)
}

func TestNewStoreOnExistingDB(t *testing.T) {
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "ichor.db"))
	require.NoError(t, err)
	defer db.Close()

	store := NewStore(db, nil)
	require.NoError(t, store.Init(context.Background()))
	assert.NotNil(t, store.Logger)
}
