package flow

import (
	"errors"
	"math"

	"github.com/prashant23kumthekar/Uroflowmetry-001/internal/decode"
)

// Reconstruct converts decoded readings to flow rates in mL/s.
//
// JSON and text readings are already flow rates and pass through. Binary
// readings are a running load-cell counter: the rate is the difference of
// consecutive counts scaled by RawPerUnit and SampleInterval. The first
// sample has nothing to differentiate against and is 0. A decreasing count
// (jitter, counter wrap) yields 0, never a negative flow.
func Reconstruct(res decode.Result, cal Calibration) []float64 {
	if len(res.Readings) == 0 {
		return nil
	}

	if res.Mode != decode.Binary16 {
		out := make([]float64, len(res.Readings))
		copy(out, res.Readings)
		return out
	}

	raw := res.Readings
	out := make([]float64, len(raw))
	for i := 1; i < len(raw); i++ {
		out[i] = math.Max(0, (raw[i]-raw[i-1])/cal.RawPerUnit/cal.SampleInterval)
	}
	return out
}

// ErrNoCounterRise is returned when a calibration pour produced no positive
// counter movement.
var ErrNoCounterRise = errors.New("calibration: counter did not rise")

// CalibrateRawPerUnit derives raw counts per mL from the counter readings of
// a pour of knownVolume mL. Only rising steps are summed, as in Reconstruct.
func CalibrateRawPerUnit(raw []float64, knownVolume float64) (float64, error) {
	if knownVolume <= 0 {
		return 0, errors.New("calibration: known volume must be positive")
	}

	var rise float64
	for i := 1; i < len(raw); i++ {
		if d := raw[i] - raw[i-1]; d > 0 {
			rise += d
		}
	}
	if rise == 0 {
		return 0, ErrNoCounterRise
	}
	return rise / knownVolume, nil
}
