package mg

import (
	"bytes"
	"context"
	"ichor/duskull/defs"
	"ichor/duskull/pkg/yearday"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

const (
	mongoURI = "mongodb://localhost:27017"
	testDB   = "test"
)

type MongoTestSuite struct {
	suite.Suite
	ms *MongoStore
}

func TestMongoTestSuiteIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	suite.Run(t, new(MongoTestSuite))
}

func (suite *MongoTestSuite) SetupSuite() {
	ms, err := New(context.Background(), defs.MongoConfig{URI: mongoURI, Database: testDB}, zap.NewExample())
	if err != nil {
		panic(err)
	}
	suite.ms = ms
}

func (suite *MongoTestSuite) TearDownSuite() {
	assert.NoError(suite.T(), suite.ms.Close(context.Background()))
}

func (suite *MongoTestSuite) AfterTest(_, _ string) {
	suite.T().Log("teardown test db")
	assert.NoError(suite.T(), suite.ms.Client.Database(testDB).Drop(context.Background()), "unable to drop test db")
}

func summary(key string, tir float64) defs.DailyGlucoseSummary {
	t, _ := yearday.Parse(key)
	return defs.DailyGlucoseSummary{YearDay: key, Time: t, Count: 3, Mean: 118.3, PctInRange: tir}
}

func (suite *MongoTestSuite) TestReadWriteSummariesIntegration() {
	ctx := context.Background()
	dss := []defs.DailyGlucoseSummary{
		summary("2023-012", 50),
		summary("2023-010", 33.3),
		summary("2022-365", 80),
	}
	require.NoError(suite.T(), suite.ms.WriteSummaries(ctx, dss))

	got, err := suite.ms.ReadSummaries(ctx, "2023-001", "2023-011")
	require.NoError(suite.T(), err)
	require.Len(suite.T(), got, 1)
	assert.Equal(suite.T(), "2023-010", got[0].YearDay)

	all, err := suite.ms.ReadSummaries(ctx, "", "")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), []string{"2022-365", "2023-010", "2023-012"},
		[]string{all[0].YearDay, all[1].YearDay, all[2].YearDay})
}

func (suite *MongoTestSuite) TestWriteSummariesReplacesDayIntegration() {
	ctx := context.Background()
	require.NoError(suite.T(), suite.ms.WriteSummaries(ctx, []defs.DailyGlucoseSummary{summary("2023-010", 10)}))
	require.NoError(suite.T(), suite.ms.WriteSummaries(ctx, []defs.DailyGlucoseSummary{summary("2023-010", 90)}))

	got, err := suite.ms.ReadSummaries(ctx, "", "")
	require.NoError(suite.T(), err)
	require.Len(suite.T(), got, 1)
	assert.Equal(suite.T(), 90.0, got[0].PctInRange)
}

func (suite *MongoTestSuite) TestReadWriteTotalsIntegration() {
	ctx := context.Background()
	its := []defs.InsulinDailyTotal{
		{YearDay: "2023-009", TotalInsulin: 39},
		{YearDay: "2023-010", TotalInsulin: 27.5},
	}
	require.NoError(suite.T(), suite.ms.WriteTotals(ctx, its))

	got, err := suite.ms.ReadTotals(ctx, "2023-010", "")
	require.NoError(suite.T(), err)
	require.Len(suite.T(), got, 1)
	assert.Equal(suite.T(), 27.5, got[0].TotalInsulin)
}

func (suite *MongoTestSuite) TestWriteTotalsKeepsLatestOfDayIntegration() {
	ctx := context.Background()
	start := summary("2023-011", 0).Time
	its := []defs.InsulinDailyTotal{
		{YearDay: "2023-011", Time: start.Add(23 * time.Hour), TotalInsulin: 25},
		{YearDay: "2023-011", Time: start, TotalInsulin: 20},
	}
	require.NoError(suite.T(), suite.ms.WriteTotals(ctx, its))

	got, err := suite.ms.ReadTotals(ctx, "2023-011", "2023-011")
	require.NoError(suite.T(), err)
	require.Len(suite.T(), got, 1)
	assert.Equal(suite.T(), 25.0, got[0].TotalInsulin)
}

func (suite *MongoTestSuite) TestFilesIntegration() {
	ctx := context.Background()
	content := []byte("not really a png")

	fid, err := suite.ms.WriteFile(ctx, "daily_tir.png", bytes.NewReader(content))
	require.NoError(suite.T(), err)

	r, err := suite.ms.ReadFile(ctx, fid)
	require.NoError(suite.T(), err)
	read, err := io.ReadAll(r)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), content, read)

	require.NoError(suite.T(), suite.ms.DeleteFile(ctx, fid))
	_, err = suite.ms.ReadFile(ctx, fid)
	assert.Error(suite.T(), err)
}

func (suite *MongoTestSuite) TestReadFileBadID() {
	_, err := suite.ms.ReadFile(context.Background(), "not-hex")
	assert.Error(suite.T(), err)
}
