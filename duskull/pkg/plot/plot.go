// Package plot renders daily glucose charts as PNG images.
package plot

import (
	"bytes"
	"errors"
	"fmt"
	"ichor/duskull/defs"
	"image/color"
	"image/png"
	"math"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/goregular"
)

const (
	Width  = 800
	Height = 400

	marginLeft   = 60
	marginRight  = 150
	marginTop    = 40
	marginBottom = 60

	barFill = 0.8
)

var ErrNoData = errors.New("nothing to plot")

var (
	belowColor = color.RGBA{R: 255, G: 99, B: 71, A: 255}   // tomato
	inColor    = color.RGBA{R: 100, G: 149, B: 237, A: 255} // cornflowerblue
	aboveColor = color.RGBA{R: 176, G: 196, B: 222, A: 255} // lightsteelblue
	axisColor  = color.RGBA{R: 64, G: 64, B: 64, A: 255}
)

// area is the region of the canvas inside the axes.
type area struct {
	left, top, right, bottom float64
}

func plotArea() area {
	return area{
		left:   marginLeft,
		top:    marginTop,
		right:  Width - marginRight,
		bottom: Height - marginBottom,
	}
}

func (a area) width() float64  { return a.right - a.left }
func (a area) height() float64 { return a.bottom - a.top }

// y maps a value in [0, max] to a canvas row.
func (a area) y(v, max float64) float64 {
	return a.bottom - v/max*a.height()
}

// bar returns the horizontal extent of the i-th of n bars.
func (a area) bar(i, n int) (x, w float64) {
	slot := a.width() / float64(n)
	w = slot * barFill
	x = a.left + slot*float64(i) + (slot-w)/2
	return x, w
}

func newCanvas(title string) (*gg.Context, error) {
	dc := gg.NewContext(Width, Height)
	dc.SetColor(color.White)
	dc.Clear()

	if err := loadFont(dc, 14); err != nil {
		return nil, err
	}
	dc.SetColor(color.Black)
	dc.DrawStringAnchored(title, Width/2, marginTop/2, 0.5, 0.5)

	return dc, nil
}

func loadFont(dc *gg.Context, size float64) error {
	font, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return fmt.Errorf("unable to parse font: %w", err)
	}
	dc.SetFontFace(truetype.NewFace(font, &truetype.Options{Size: size}))
	return nil
}

func encode(dc *gg.Context) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, dc.Image()); err != nil {
		return nil, fmt.Errorf("unable to encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// drawAxes draws the left and bottom spines with y ticks every yStep.
func drawAxes(dc *gg.Context, a area, yMax, yStep float64, yLabel string) {
	dc.SetColor(axisColor)
	dc.SetLineWidth(1)
	dc.DrawLine(a.left, a.top, a.left, a.bottom)
	dc.DrawLine(a.left, a.bottom, a.right, a.bottom)
	dc.Stroke()

	for v := 0.0; v <= yMax+1e-9; v += yStep {
		y := a.y(v, yMax)
		dc.DrawLine(a.left-4, y, a.left, y)
		dc.Stroke()
		dc.DrawStringAnchored(fmt.Sprintf("%g", v), a.left-8, y, 1, 0.5)
	}

	dc.Push()
	dc.RotateAbout(gg.Radians(-90), 16, (a.top+a.bottom)/2)
	dc.DrawStringAnchored(yLabel, 16, (a.top+a.bottom)/2, 0.5, 0.5)
	dc.Pop()
}

type legendEntry struct {
	label string
	color color.Color
}

func drawLegend(dc *gg.Context, a area, entries []legendEntry) {
	x := a.right + 20
	for i, e := range entries {
		y := a.top + float64(i)*22
		dc.SetColor(e.color)
		dc.DrawRectangle(x, y, 14, 14)
		dc.Fill()
		dc.SetColor(color.Black)
		dc.DrawStringAnchored(e.label, x+20, y+7, 0, 0.5)
	}
}

// DailyTIR draws one stacked bar per day: below range at the bottom, in range
// above it and above range on top.
func DailyTIR(dss []defs.DailyGlucoseSummary, gc defs.GlucoseConfig) ([]byte, error) {
	if len(dss) == 0 {
		return nil, ErrNoData
	}

	title := fmt.Sprintf("Target range: %g - %g mg/dL", gc.Low, gc.High)
	dc, err := newCanvas(title)
	if err != nil {
		return nil, err
	}

	a := plotArea()
	aboveFaded := color.NRGBA{R: aboveColor.R, G: aboveColor.G, B: aboveColor.B, A: 178}

	labelEvery := int(math.Ceil(float64(len(dss)) / 10))
	for i, ds := range dss {
		x, w := a.bar(i, len(dss))

		base := 0.0
		for _, seg := range []struct {
			pct float64
			c   color.Color
		}{
			{ds.PctBelow, belowColor},
			{ds.PctInRange, inColor},
			{ds.PctAbove, aboveFaded},
		} {
			top := a.y(base+seg.pct, 100)
			dc.SetColor(seg.c)
			dc.DrawRectangle(x, top, w, a.y(base, 100)-top)
			dc.Fill()
			base += seg.pct
		}

		if i%labelEvery == 0 {
			dc.SetColor(color.Black)
			dc.DrawStringAnchored(ds.YearDay, x+w/2, a.bottom+16, 0.5, 0.5)
		}
	}

	drawAxes(dc, a, 100, 20, "%")
	drawLegend(dc, a, []legendEntry{
		{"% above", aboveFaded},
		{"% in range", inColor},
		{"% below", belowColor},
	})

	return encode(dc)
}

// TIRvsTDI scatters each day's time in range against its total daily insulin.
func TIRvsTDI(pairs []defs.DailyPair) ([]byte, error) {
	if len(pairs) == 0 {
		return nil, ErrNoData
	}

	dc, err := newCanvas("Time in range vs total daily insulin")
	if err != nil {
		return nil, err
	}

	a := plotArea()
	xMax := 0.0
	for _, p := range pairs {
		xMax = math.Max(xMax, p.TotalInsulin)
	}
	xMax = niceCeil(xMax)

	dc.SetColor(inColor)
	for _, p := range pairs {
		x := a.left + p.TotalInsulin/xMax*a.width()
		dc.DrawCircle(x, a.y(p.PctInRange, 100), 5)
		dc.Fill()
	}

	drawAxes(dc, a, 100, 20, "% in range")

	dc.SetColor(axisColor)
	step := xMax / 5
	for v := 0.0; v <= xMax+1e-9; v += step {
		x := a.left + v/xMax*a.width()
		dc.DrawLine(x, a.bottom, x, a.bottom+4)
		dc.Stroke()
		dc.DrawStringAnchored(fmt.Sprintf("%g", v), x, a.bottom+16, 0.5, 0.5)
	}
	dc.DrawStringAnchored("total daily insulin (U)", (a.left+a.right)/2, a.bottom+40, 0.5, 0.5)

	return encode(dc)
}

// niceCeil rounds v up to a multiple of 5, with a floor of 5.
func niceCeil(v float64) float64 {
	if v <= 0 {
		return 5
	}
	return math.Ceil(v/5) * 5
}
