package ingest

import (
	"errors"
	"ichor/duskull/defs"
	"ichor/duskull/pkg/yearday"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

const (
	exportFolder = "testdata/export"
	metadataLine = "Name:Jane Doe, Date Range:2023-01-10 - 2023-01-12\n"
)

type IngestTestSuite struct {
	suite.Suite
	dir string
}

func TestIngestTestSuite(t *testing.T) {
	suite.Run(t, new(IngestTestSuite))
}

func (suite *IngestTestSuite) SetupTest() {
	suite.dir = suite.T().TempDir()
	require.NoError(suite.T(), os.MkdirAll(filepath.Join(suite.dir, InsulinFolder), 0o755))
}

func (suite *IngestTestSuite) write(name, body string) {
	path := filepath.Join(suite.dir, name)
	require.NoError(suite.T(), os.WriteFile(path, []byte(body), 0o644))
}

func (suite *IngestTestSuite) TestReadAll() {
	batch, err := New(exportFolder, time.UTC, zap.NewNop()).ReadAll()
	require.NoError(suite.T(), err)

	require.Len(suite.T(), batch.Glucose, 7)
	assert.Equal(suite.T(), time.Date(2023, time.January, 10, 8, 0, 0, 0, time.UTC), batch.Glucose[0].Time)
	assert.Equal(suite.T(), 65.0, batch.Glucose[0].Value)
	assert.Equal(suite.T(), "2023-010", batch.Glucose[0].YearDay)
	assert.Equal(suite.T(), "2023-012", batch.Glucose[6].YearDay)

	require.Len(suite.T(), batch.Bolus, 3)
	assert.Equal(suite.T(), "Humalog", batch.Bolus[0].InsulinType)
	cc, err := batch.Bolus[0].CarbCorrection()
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), 4.0, cc)
	assert.Equal(suite.T(), 0.0, batch.Bolus[1].CarbsInput, "blank optional cells read as zero")
	_, err = batch.Bolus[1].CarbCorrection()
	assert.ErrorIs(suite.T(), err, defs.ErrDivisionUndefined)

	require.Len(suite.T(), batch.Basal, 3)
	assert.Equal(suite.T(), 16.2, batch.Basal[1].InsulinDelivered)
	assert.Equal(suite.T(), 100.0, batch.Basal[1].Percentage)

	require.Len(suite.T(), batch.Insulin, 3)
	assert.Equal(suite.T(), "2023-009", batch.Insulin[0].YearDay)
	assert.Equal(suite.T(), 27.5, batch.Insulin[1].TotalInsulin)
	assert.Empty(suite.T(), batch.Summaries)
}

func (suite *IngestTestSuite) TestEveryRowIsLabeled() {
	batch, err := New(exportFolder, time.UTC, zap.NewNop()).ReadAll()
	require.NoError(suite.T(), err)

	for _, be := range batch.Bolus {
		assert.Equal(suite.T(), yearday.Key(be.Time), be.YearDay)
	}
	for _, be := range batch.Basal {
		assert.Equal(suite.T(), yearday.Key(be.Time), be.YearDay)
	}
	for _, it := range batch.Insulin {
		assert.Equal(suite.T(), yearday.Key(it.Time), it.YearDay)
	}
}

func (suite *IngestTestSuite) TestLocationIsApplied() {
	loc := time.FixedZone("EST", -5*60*60)
	trs, err := New(exportFolder, loc, zap.NewNop()).ReadGlucose()
	require.NoError(suite.T(), err)

	assert.Equal(suite.T(), loc, trs[6].Time.Location())
	assert.Equal(suite.T(), "2023-012", trs[6].YearDay, "keys follow the export's wall clock")
}

func (suite *IngestTestSuite) TestMissingSource() {
	_, err := New(suite.dir, time.UTC, zap.NewNop()).ReadAll()
	assert.ErrorIs(suite.T(), err, defs.ErrSourceNotFound)
	assert.Contains(suite.T(), err.Error(), GlucoseFile)
}

func (suite *IngestTestSuite) TestMissingInsulinSourceFailsBatch() {
	suite.write(GlucoseFile, metadataLine+"header\n2023-01-10 08:00,100,SN\n")

	_, err := New(suite.dir, time.UTC, zap.NewNop()).ReadAll()
	assert.ErrorIs(suite.T(), err, defs.ErrSourceNotFound)
	assert.Contains(suite.T(), err.Error(), BolusFile)
}

func (suite *IngestTestSuite) TestMalformedTimestamp() {
	suite.write(GlucoseFile, metadataLine+"header\n2023-01-10 08:00,100,SN\nyesterday,110,SN\n")

	_, err := New(suite.dir, time.UTC, zap.NewNop()).ReadGlucose()
	require.ErrorIs(suite.T(), err, defs.ErrMalformedRecord)

	var re *defs.RecordError
	require.True(suite.T(), errors.As(err, &re))
	assert.Equal(suite.T(), 4, re.Line)
	assert.Equal(suite.T(), "time", re.Column)
	assert.Equal(suite.T(), "yesterday", re.Value)
}

func (suite *IngestTestSuite) TestMalformedValue() {
	suite.write(GlucoseFile, metadataLine+"header\n2023-01-10 08:00,high,SN\n")

	_, err := New(suite.dir, time.UTC, zap.NewNop()).ReadGlucose()
	var re *defs.RecordError
	require.True(suite.T(), errors.As(err, &re))
	assert.Equal(suite.T(), "glucose_value", re.Column)
	assert.Equal(suite.T(), 3, re.Line)
}

func (suite *IngestTestSuite) TestMissingRequiredValue() {
	suite.write(GlucoseFile, metadataLine+"header\n2023-01-10 08:00,,SN\n")

	_, err := New(suite.dir, time.UTC, zap.NewNop()).ReadGlucose()
	assert.ErrorIs(suite.T(), err, defs.ErrMalformedRecord)
}

func (suite *IngestTestSuite) TestNonFiniteValue() {
	suite.write(GlucoseFile, metadataLine+"header\n2023-01-10 08:00,NaN,SN\n")

	_, err := New(suite.dir, time.UTC, zap.NewNop()).ReadGlucose()
	assert.ErrorIs(suite.T(), err, defs.ErrMalformedRecord)
}

func (suite *IngestTestSuite) TestShortRow() {
	suite.write(GlucoseFile, metadataLine+"header\n2023-01-10 08:00\n")

	_, err := New(suite.dir, time.UTC, zap.NewNop()).ReadGlucose()
	assert.ErrorIs(suite.T(), err, defs.ErrMalformedRecord)
}

func (suite *IngestTestSuite) TestSerialMayBeAbsent() {
	suite.write(GlucoseFile, metadataLine+"header\n1/10/2023 8:00 PM,100\n")

	trs, err := New(suite.dir, time.UTC, zap.NewNop()).ReadGlucose()
	require.NoError(suite.T(), err)
	require.Len(suite.T(), trs, 1)
	assert.Equal(suite.T(), 20, trs[0].Time.Hour())
}

func (suite *IngestTestSuite) TestHeaderOnly() {
	suite.write(GlucoseFile, metadataLine+"header\n")

	trs, err := New(suite.dir, time.UTC, zap.NewNop()).ReadGlucose()
	assert.NoError(suite.T(), err)
	assert.Empty(suite.T(), trs)
}
