package chart

import (
	"io"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/YuminosukeSato/eduinsight/insight"
	"github.com/YuminosukeSato/eduinsight/pkg/errors"
)

// TrendChart is the 6-month projection of the ANN page.
func TrendChart(t insight.Trend) LineChart {
	return LineChart{
		Title:  "Academic Performance Forecast (6-Month Projection)",
		YLabel: "Score (%)",
		Labels: t.Curves.Labels,
		Series: []Series{
			{Name: "Optimistic Forecast", Values: t.Curves.Optimistic},
			{Name: "Realistic Forecast", Values: t.Curves.Realistic},
			{Name: "Conservative Forecast", Values: t.Curves.Conservative},
			{Name: "Without Improvement", Values: t.Curves.NoImprovement, Dashed: true},
		},
		YMin: 0,
		YMax: 100,
	}
}

// Timeline is the per-period grade forecast returned by the ANN model.
type Timeline struct {
	Labels        []string
	Optimistic    []float64
	Realistic     []float64
	Conservative  []float64
	NoImprovement []float64
}

// TimelineChart plots a model forecast on the 0-20 grade scale.
func TimelineChart(tl Timeline) LineChart {
	return LineChart{
		Title:  "Grade Forecast",
		YLabel: "Grade (0-20)",
		Labels: tl.Labels,
		Series: []Series{
			{Name: "Optimistic", Values: tl.Optimistic},
			{Name: "Realistic", Values: tl.Realistic},
			{Name: "Conservative", Values: tl.Conservative},
			{Name: "No Improvement", Values: tl.NoImprovement, Dashed: true},
		},
		YMin: 0,
		YMax: 20,
	}
}

// GradeBins is the number of histogram bins, one per integer grade 0..20.
const GradeBins = 21

// GradeHistogram plots the distribution of final grades.
func GradeHistogram(grades []float64) (*plot.Plot, error) {
	if len(grades) == 0 {
		return nil, errors.NewModelError("chart.GradeHistogram", "empty data", errors.ErrEmptyData)
	}
	vals := make(plotter.Values, len(grades))
	copy(vals, grades)
	h, err := plotter.NewHist(vals, GradeBins)
	if err != nil {
		return nil, errors.Wrap(err, "histogram")
	}
	h.FillColor = Palette[1]
	h.LineStyle.Color = Palette[4]

	p := plot.New()
	p.Title.Text = "Final Grade Distribution (G3)"
	p.X.Label.Text = "G3"
	p.Y.Label.Text = "Students"
	p.Add(plotter.NewGrid(), h)
	return p, nil
}

// RegressionScatter plots predicted against actual grades with the y = x line.
func RegressionScatter(actual, predicted []float64) (*plot.Plot, error) {
	if len(actual) == 0 {
		return nil, errors.NewModelError("chart.RegressionScatter", "empty data", errors.ErrEmptyData)
	}
	if len(actual) != len(predicted) {
		return nil, errors.NewDimensionError("chart.RegressionScatter", len(actual), len(predicted), 0)
	}
	pts := make(plotter.XYs, len(actual))
	lo, hi := math.Inf(1), math.Inf(-1)
	for i := range actual {
		pts[i].X, pts[i].Y = actual[i], predicted[i]
		lo = math.Min(lo, math.Min(actual[i], predicted[i]))
		hi = math.Max(hi, math.Max(actual[i], predicted[i]))
	}
	sc, err := plotter.NewScatter(pts)
	if err != nil {
		return nil, errors.Wrap(err, "scatter")
	}
	sc.GlyphStyle.Color = Palette[1]
	sc.GlyphStyle.Shape = draw.CircleGlyph{}
	sc.GlyphStyle.Radius = vg.Points(2)

	ref, err := plotter.NewLine(plotter.XYs{{X: lo, Y: lo}, {X: hi, Y: hi}})
	if err != nil {
		return nil, errors.Wrap(err, "reference line")
	}
	ref.Color = Palette[3]
	ref.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}

	p := plot.New()
	p.Title.Text = "Linear Regression: Predicted vs Actual"
	p.X.Label.Text = "Actual G3"
	p.Y.Label.Text = "Predicted G3"
	p.Add(plotter.NewGrid(), sc, ref)
	p.Legend.Add("students", sc)
	p.Legend.Add("perfect prediction", ref)
	p.Legend.Top = true
	p.Legend.Left = true
	return p, nil
}

// WriteSVG renders p at the default size.
func WriteSVG(w io.Writer, p *plot.Plot) error {
	return Render(w, p, DefaultWidth, DefaultHeight)
}
