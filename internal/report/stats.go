// Package report derives summary figures from a flow window and renders
// them for the report and display layers.
package report

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"

	"github.com/prashant23kumthekar/Uroflowmetry-001/internal/flow"
)

// Stats are the numeric summary of one window.
type Stats struct {
	Duration    float64 `json:"duration_s"`       // last - first timestamp
	AverageFlow float64 `json:"average_flow_mls"` // arithmetic mean
	Volume      float64 `json:"volume_ml"`        // trapezoidal integral
	PeakFlow    float64 `json:"peak_flow_mls"`    // Qmax
	Samples     int     `json:"samples"`
}

// Compute derives Stats from w. It is pure and recomputes on every call.
func Compute(w flow.Window) Stats {
	n := len(w.Samples)
	st := Stats{Samples: n}
	if n == 0 {
		return st
	}

	times, flows := w.Series()
	st.AverageFlow = stat.Mean(flows, nil)
	st.PeakFlow = floats.Max(flows)

	if n >= 2 {
		st.Duration = times[n-1] - times[0]
		st.Volume = integrate.Trapezoidal(times, flows)
	}
	return st
}
