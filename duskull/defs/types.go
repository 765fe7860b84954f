package defs

import (
	"io"
	"time"
)

type TimePoint interface {
	GetTime() time.Time
}

type GlucoseReading struct {
	Time    time.Time `bson:"time" json:"time"`
	Value   float64   `bson:"value" json:"value"` // mg/dL.
	YearDay string    `bson:"yearday" json:"yearday"`
}

func (gr GlucoseReading) GetTime() time.Time {
	return gr.Time
}

type BolusEvent struct {
	Time             time.Time `bson:"time" json:"time"`
	InsulinType      string    `bson:"insulinType" json:"insulinType"`
	BGInput          float64   `bson:"bgInput" json:"bgInput"`
	CarbsInput       float64   `bson:"carbsInput" json:"carbsInput"`
	CarbRatio        float64   `bson:"carbRatio" json:"carbRatio"`
	InsulinDelivered float64   `bson:"insulinDelivered" json:"insulinDelivered"`
	InitialDelivery  float64   `bson:"initialDelivery" json:"initialDelivery"`
	ExtendedDelivery float64   `bson:"extendedDelivery" json:"extendedDelivery"`
	YearDay          string    `bson:"yearday" json:"yearday"`
}

func (be BolusEvent) GetTime() time.Time {
	return be.Time
}

// CarbCorrection is the part of the bolus covering carbs.
func (be BolusEvent) CarbCorrection() (float64, error) {
	if be.CarbRatio == 0 {
		return 0, ErrDivisionUndefined
	}
	return be.CarbsInput / be.CarbRatio, nil
}

// InsulinCorrection is the part of the bolus left after the carb correction.
func (be BolusEvent) InsulinCorrection() (float64, error) {
	cc, err := be.CarbCorrection()
	if err != nil {
		return 0, err
	}
	return be.InsulinDelivered - cc, nil
}

type BasalEvent struct {
	Time             time.Time `bson:"time" json:"time"`
	InsulinType      string    `bson:"insulinType" json:"insulinType"`
	Duration         float64   `bson:"duration" json:"duration"`
	Percentage       float64   `bson:"percentage" json:"percentage"`
	Rate             float64   `bson:"rate" json:"rate"`
	InsulinDelivered float64   `bson:"insulinDelivered" json:"insulinDelivered"`
	YearDay          string    `bson:"yearday" json:"yearday"`
}

func (be BasalEvent) GetTime() time.Time {
	return be.Time
}

type InsulinDailyTotal struct {
	Time         time.Time `bson:"time" json:"time"`
	TotalBolus   float64   `bson:"totalBolus" json:"totalBolus"`
	TotalInsulin float64   `bson:"totalInsulin" json:"totalInsulin"`
	TotalBasal   float64   `bson:"totalBasal" json:"totalBasal"`
	YearDay      string    `bson:"yearday" json:"yearday"`
}

func (it InsulinDailyTotal) GetTime() time.Time {
	return it.Time
}

type DailyGlucoseSummary struct {
	YearDay                string    `bson:"yearday" json:"yearday"`
	Time                   time.Time `bson:"time" json:"time"`
	Count                  int       `bson:"count" json:"count"`
	Mean                   float64   `bson:"mean" json:"mean"`
	StdDev                 float64   `bson:"std" json:"std"`
	Min                    float64   `bson:"min" json:"min"`
	P25                    float64   `bson:"p25" json:"p25"`
	Median                 float64   `bson:"median" json:"median"`
	P75                    float64   `bson:"p75" json:"p75"`
	Max                    float64   `bson:"max" json:"max"`
	CoefficientOfVariation float64   `bson:"cv" json:"cv"`
	PctBelow               float64   `bson:"pctBelow" json:"pctBelow"`
	PctInRange             float64   `bson:"pctInRange" json:"pctInRange"`
	PctAbove               float64   `bson:"pctAbove" json:"pctAbove"`
}

func (ds DailyGlucoseSummary) GetTime() time.Time {
	return ds.Time
}

type DailyBolusSummary struct {
	YearDay           string  `json:"yearday"`
	Count             int     `json:"count"`
	Delivered         float64 `json:"delivered"`
	CarbCorrection    float64 `json:"carbCorrection"`
	InsulinCorrection float64 `json:"insulinCorrection"`
	Undefined         int     `json:"undefined"` // Boluses without a carb ratio.
}

// DailyPair joins a day's glucose summary with that day's insulin totals.
type DailyPair struct {
	YearDay      string  `json:"yearday"`
	PctInRange   float64 `json:"pctInRange"`
	Mean         float64 `json:"mean"`
	TotalInsulin float64 `json:"totalInsulin"`
	TotalBolus   float64 `json:"totalBolus"`
	TotalBasal   float64 `json:"totalBasal"`
}

type Overview struct {
	Start      string  `json:"start"`
	End        string  `json:"end"`
	Days       int     `json:"days"`
	Count      int     `json:"count"`
	Average    float64 `json:"average"`
	Deviation  float64 `json:"deviation"`
	CV         float64 `json:"cv"`
	GMI        float64 `json:"gmi"`
	BelowRange float64 `json:"belowRange"`
	InRange    float64 `json:"inRange"`
	AboveRange float64 `json:"aboveRange"`
}

// Batch holds the tables of a single export.
type Batch struct {
	Glucose   []GlucoseReading
	Bolus     []BolusEvent
	Basal     []BasalEvent
	Insulin   []InsulinDailyTotal
	Summaries []DailyGlucoseSummary
}

type MessageData struct {
	Content string
	Embeds  []EmbedData
	Files   []FileData
}

type EmbedData struct {
	Title       string
	Description string
	Fields      []EmbedField
	Image       *ImageData
}

type EmbedField struct {
	Name   string
	Value  string
	Inline bool
}

type ImageData struct {
	Filename string
}

type FileData struct {
	Name   string
	Reader io.Reader
}

func EmptyEmbed() EmbedField {
	return EmbedField{Name: "\u200b", Value: "\u200b", Inline: true}
}
