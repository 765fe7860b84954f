package main

import (
	"errors"
	"fmt"
	"ichor/duskull/defs"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type app struct {
	configFile string
	verbose    bool

	// Overrides applied on top of the loaded config.
	low, high float64
	noMatch   bool

	config defs.Config
	logger *zap.Logger
}

func main() {
	a := &app{}

	root := &cobra.Command{
		Use:           "duskull",
		Short:         "duskull summarizes Glooko exports into daily time in range.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if a.logger != nil {
				a.logger.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configFile, "file", "f", "config.yaml", "config file")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "log debug output")
	flags.Float64Var(&a.low, "low", 0, "low glucose target in mg/dL, overrides config")
	flags.Float64Var(&a.high, "high", 0, "high glucose target in mg/dL, overrides config")
	flags.BoolVar(&a.noMatch, "no-match", false, "keep days missing from either glucose or insulin data")

	root.AddCommand(newSummaryCommand(a))
	root.AddCommand(newBolusCommand(a))
	root.AddCommand(newPlotCommand(a))
	root.AddCommand(newSnapshotCommand(a))
	root.AddCommand(newServeCommand(a))
	root.AddCommand(newReportCommand(a))

	if err := root.Execute(); err != nil {
		reportError(err)
		os.Exit(1)
	}
}

func (a *app) setup(cmd *cobra.Command) error {
	var err error
	if a.verbose {
		a.logger, err = zap.NewDevelopment()
	} else {
		a.logger, err = zap.NewProduction()
	}
	if err != nil {
		return fmt.Errorf("unable to create logger: %w", err)
	}

	config, err := defs.LoadConfig(a.configFile)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("low") {
		config.Glucose.Low = a.low
	}
	if flags.Changed("high") {
		config.Glucose.High = a.high
	}
	if a.noMatch {
		config.MatchDateRanges = false
	}
	if err := config.Glucose.Validate(); err != nil {
		return err
	}

	config.Logger = a.logger
	a.config = config

	a.logger.Debug("loaded config file",
		zap.String("file", a.configFile),
		zap.Strings("folders", config.Folders()),
		zap.Float64("low", config.Glucose.Low),
		zap.Float64("high", config.Glucose.High),
	)
	return nil
}

// folders picks the export folders from the command line, falling back to
// the config.
func (a *app) folders(args []string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	folders := a.config.Folders()
	if len(folders) == 0 {
		return nil, fmt.Errorf("%w: no data folder given", defs.ErrConfiguration)
	}
	return folders, nil
}

func reportError(err error) {
	var se *defs.StageError
	if errors.As(err, &se) {
		fmt.Fprintf(os.Stderr, "error in %s stage\n", se.Stage)
	}
	var re *defs.RecordError
	if errors.As(err, &re) {
		fmt.Fprintf(os.Stderr, "  file: %s\n  line: %d\n", re.Source, re.Line)
	}
	fmt.Fprintf(os.Stderr, "%v\n", err)
}
