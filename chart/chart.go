// Package chart renders EduInsight charts as SVG with gonum/plot.
package chart

import (
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/YuminosukeSato/eduinsight/pkg/errors"
)

// Default canvas size.
const (
	DefaultWidth  = 8 * vg.Inch
	DefaultHeight = 4.5 * vg.Inch
)

// ContentType is the media type of every chart produced here.
const ContentType = "image/svg+xml"

// Palette used for series, in order.
var Palette = []color.Color{
	color.RGBA{R: 0x10, G: 0xB9, B: 0x81, A: 0xFF}, // green
	color.RGBA{R: 0x3B, G: 0x82, B: 0xF6, A: 0xFF}, // blue
	color.RGBA{R: 0xF5, G: 0x9E, B: 0x0B, A: 0xFF}, // amber
	color.RGBA{R: 0xEF, G: 0x44, B: 0x44, A: 0xFF}, // red
	color.RGBA{R: 0x8B, G: 0x5C, B: 0xF6, A: 0xFF}, // violet
}

// Series is one named line.
type Series struct {
	Name   string
	Values []float64
	Dashed bool
}

// LineChart draws series over nominal x labels.
type LineChart struct {
	Title  string
	XLabel string
	YLabel string
	Labels []string
	Series []Series
	// YMin and YMax fix the value axis when YMax > YMin.
	YMin, YMax float64
}

func (c LineChart) validate() error {
	if len(c.Labels) == 0 {
		return errors.NewValidationError("labels", "must not be empty", c.Labels)
	}
	if len(c.Series) == 0 {
		return errors.NewValidationError("series", "must not be empty", len(c.Series))
	}
	for _, s := range c.Series {
		if len(s.Values) != len(c.Labels) {
			return errors.NewDimensionError("chart.LineChart", len(c.Labels), len(s.Values), 0)
		}
	}
	return nil
}

// Plot builds the gonum plot.
func (c LineChart) Plot() (*plot.Plot, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}
	p := plot.New()
	p.Title.Text = c.Title
	p.X.Label.Text = c.XLabel
	p.Y.Label.Text = c.YLabel
	p.NominalX(c.Labels...)
	p.Legend.Top = true
	p.Add(plotter.NewGrid())

	for i, s := range c.Series {
		pts := make(plotter.XYs, len(s.Values))
		for j, v := range s.Values {
			pts[j].X = float64(j)
			pts[j].Y = v
		}
		line, points, err := plotter.NewLinePoints(pts)
		if err != nil {
			return nil, errors.Wrapf(err, "series %q", s.Name)
		}
		col := Palette[i%len(Palette)]
		line.Color = col
		line.Width = vg.Points(2)
		if s.Dashed {
			line.Dashes = []vg.Length{vg.Points(6), vg.Points(4)}
		}
		points.Color = col
		points.Shape = draw.CircleGlyph{}
		points.Radius = vg.Points(2.5)
		p.Add(line, points)
		p.Legend.Add(s.Name, line)
	}
	if c.YMax > c.YMin {
		p.Y.Min, p.Y.Max = c.YMin, c.YMax
	}
	return p, nil
}

// Render writes the chart as SVG.
func Render(w io.Writer, p *plot.Plot, width, height vg.Length) error {
	wt, err := p.WriterTo(width, height, "svg")
	if err != nil {
		return errors.Wrap(err, "failed to create SVG canvas")
	}
	if _, err := wt.WriteTo(w); err != nil {
		return errors.Wrap(err, "failed to write SVG")
	}
	return nil
}

// WriteSVG builds and renders the chart at the default size.
func (c LineChart) WriteSVG(w io.Writer) error {
	p, err := c.Plot()
	if err != nil {
		return err
	}
	return Render(w, p, DefaultWidth, DefaultHeight)
}
