package main

import (
	"ichor/duskull/defs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().Float64Var(&a.low, "low", 0, "")
	cmd.Flags().Float64Var(&a.high, "high", 0, "")
	return cmd
}

func TestSetupAppliesOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("dataFolder: export\nglucose:\n  low: 80\n"), 0o644))

	a := &app{configFile: path, noMatch: true}
	cmd := newTestCommand(a)
	require.NoError(t, cmd.Flags().Set("high", "160"))

	require.NoError(t, a.setup(cmd))
	assert.Equal(t, defs.GlucoseConfig{Low: 80, High: 160}, a.config.Glucose)
	assert.False(t, a.config.MatchDateRanges)
	assert.NotNil(t, a.config.Logger)

	folders, err := a.folders(nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"export"}, folders)

	folders, err = a.folders([]string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, folders)
}

func TestSetupRejectsInvertedOverride(t *testing.T) {
	a := &app{configFile: filepath.Join(t.TempDir(), "missing.yaml")}
	cmd := newTestCommand(a)
	require.NoError(t, cmd.Flags().Set("low", "200"))

	assert.ErrorIs(t, a.setup(cmd), defs.ErrConfiguration)
}

func TestFoldersRequired(t *testing.T) {
	a := &app{config: defs.DefaultConfig()}
	_, err := a.folders(nil)
	assert.ErrorIs(t, err, defs.ErrConfiguration)
}

func TestOpenStoreUnknownKind(t *testing.T) {
	a := &app{config: defs.DefaultConfig()}
	_, err := a.openStore("postgres")
	assert.ErrorIs(t, err, defs.ErrConfiguration)
}

func TestMetricsFollowConfig(t *testing.T) {
	a := &app{config: defs.DefaultConfig()}
	a.config.Metrics = defs.MetricsConfig{Namespace: "home", DurationBuckets: []float64{1, 10}}

	m := a.newMetrics()
	m.RecordAnalysis(time.Second, 2)

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "home_duskull_days_summarized")
}
