package defs

import (
	"errors"
	"fmt"
)

var (
	ErrSourceNotFound    = errors.New("source not found")
	ErrMalformedRecord   = errors.New("malformed record")
	ErrConfiguration     = errors.New("configuration error")
	ErrDivisionUndefined = errors.New("division undefined")
)

// RecordError identifies the offending row of a source.
type RecordError struct {
	Source string
	Line   int
	Column string
	Value  string
	Err    error
}

func (re *RecordError) Error() string {
	if re.Column == "" {
		return fmt.Sprintf("%s:%d: %v", re.Source, re.Line, re.Err)
	}
	return fmt.Sprintf("%s:%d: column %s (%q): %v", re.Source, re.Line, re.Column, re.Value, re.Err)
}

func (re *RecordError) Unwrap() error {
	return re.Err
}

func (re *RecordError) Is(target error) bool {
	return target == ErrMalformedRecord
}

type Stage int

const (
	IngestStage Stage = iota
	AggregateStage
	ReconcileStage
	MergeStage
	PlotStage
	SnapshotStage
	ReportStage
)

func (s Stage) String() string {
	return [...]string{"ingest", "aggregate", "reconcile", "merge", "plot", "snapshot", "report"}[s]
}

// StageError tags an error with the analysis stage that produced it.
type StageError struct {
	Stage Stage
	Err   error
}

func (se *StageError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", se.Stage, se.Err)
}

func (se *StageError) Unwrap() error {
	return se.Err
}
