// Copyright (c) 2026 The Uroflowmetry-001 Authors
// SPDX-License-Identifier: MIT

package flow

import (
	"time"

	"github.com/prashant23kumthekar/Uroflowmetry-001/internal/decode"
)

// Sample is one point of the reconstructed curve.
type Sample struct {
	Time float64 `json:"t"`    // seconds since window start
	Flow float64 `json:"flow"` // mL/s
}

// Window is the bounded, most recent slice of samples of one acquisition.
type Window struct {
	Samples    []Sample    `json:"samples"`
	Mode       decode.Mode `json:"mode"`
	AcquiredAt time.Time   `json:"acquired_at"`
}

// Empty reports whether the window holds no samples ("no data").
func (w Window) Empty() bool {
	return len(w.Samples) == 0
}

// Series splits the window into parallel time and flow slices for plotting
// and integration.
func (w Window) Series() (times, flows []float64) {
	times = make([]float64, len(w.Samples))
	flows = make([]float64, len(w.Samples))
	for i, s := range w.Samples {
		times[i] = s.Time
		flows[i] = s.Flow
	}
	return times, flows
}

// NewWindow runs reconstruction and windowing over one decoded payload.
func NewWindow(res decode.Result, cal Calibration, acquiredAt time.Time) Window {
	return Window{
		Samples:    WindowSamples(Reconstruct(res, cal), cal),
		Mode:       res.Mode,
		AcquiredAt: acquiredAt,
	}
}

// Calibration holds the per-device constants of the reconstruction.
type Calibration struct {
	SampleInterval float64 // seconds between device samples
	TotalDuration  float64 // seconds kept in the window
	FlowMin        float64 // mL/s
	FlowMax        float64 // mL/s
	RawPerUnit     float64 // raw counts per mL
}

// DefaultCalibration matches the reference device.
func DefaultCalibration() Calibration {
	return Calibration{
		SampleInterval: 0.3,
		TotalDuration:  40,
		FlowMin:        0,
		FlowMax:        50,
		RawPerUnit:     1.2,
	}
}
