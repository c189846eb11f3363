package report

import (
	"fmt"
	"io"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/prashant23kumthekar/Uroflowmetry-001/internal/flow"
)

// PlotOptions fixes the axes of the flow plot.
type PlotOptions struct {
	TotalDuration float64 // x axis: 0..TotalDuration seconds
	FlowMin       float64 // y axis, mL/s
	FlowMax       float64
	Width         int
	Height        int
}

// PlotOptionsFor returns plot axes matching a calibration, 600x300 px.
func PlotOptionsFor(cal flow.Calibration) PlotOptions {
	return PlotOptions{
		TotalDuration: cal.TotalDuration,
		FlowMin:       cal.FlowMin,
		FlowMax:       cal.FlowMax,
		Width:         600,
		Height:        300,
	}
}

var flowBlue = drawing.ColorFromHex("2a9df4")

// RenderPlot writes the flow-vs-time chart of w as PNG. An empty window
// renders empty axes titled "no data".
func RenderPlot(out io.Writer, w flow.Window, opts PlotOptions) error {
	title := "Flow (mL/s)"
	var series chart.Series

	if w.Empty() {
		title = "Flow (mL/s) - no data"
		// go-chart needs one series; this one only carries the axis bounds.
		series = chart.ContinuousSeries{
			XValues: []float64{0, opts.TotalDuration},
			YValues: []float64{opts.FlowMin, opts.FlowMin},
			Style:   chart.Style{Hidden: true},
		}
	} else {
		times, flows := w.Series()
		series = chart.ContinuousSeries{
			Name:    "flow",
			XValues: times,
			YValues: flows,
			Style: chart.Style{
				StrokeColor: flowBlue,
				StrokeWidth: 1.5,
				FillColor:   flowBlue.WithAlpha(38),
			},
		}
	}

	ch := chart.Chart{
		Title:  title,
		Width:  opts.Width,
		Height: opts.Height,
		Background: chart.Style{
			Padding: chart.Box{Top: 30, Left: 16, Right: 16, Bottom: 16},
		},
		XAxis: chart.XAxis{
			Name:  "Time (s)",
			Range: &chart.ContinuousRange{Min: 0, Max: opts.TotalDuration},
		},
		YAxis: chart.YAxis{
			Name:  "Flow Rate (mL/s)",
			Range: &chart.ContinuousRange{Min: opts.FlowMin, Max: opts.FlowMax},
		},
		Series: []chart.Series{series},
	}

	if err := ch.Render(chart.PNG, out); err != nil {
		return fmt.Errorf("render flow plot: %w", err)
	}
	return nil
}
