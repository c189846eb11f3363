package flow

import "math"

// floorTolerance absorbs binary floating-point error in duration/interval
// ratios such as 0.9/0.3 = 2.9999999999999996.
const floorTolerance = 1e-9

// MaxSamples is the number of samples that fit in the window, at least 1.
func MaxSamples(cal Calibration) int {
	if cal.SampleInterval <= 0 {
		return 1
	}
	n := int(math.Floor(cal.TotalDuration/cal.SampleInterval + floorTolerance))
	if n < 1 {
		return 1
	}
	return n
}

// WindowSamples clamps each value into [FlowMin, FlowMax], stamps sample i
// at (i+1)*SampleInterval and keeps only the most recent MaxSamples. Older
// samples are dropped; kept samples keep their timestamps.
func WindowSamples(values []float64, cal Calibration) []Sample {
	if len(values) == 0 {
		return nil
	}

	samples := make([]Sample, len(values))
	for i, v := range values {
		samples[i] = Sample{
			Time: float64(i+1) * cal.SampleInterval,
			Flow: clamp(v, cal.FlowMin, cal.FlowMax),
		}
	}

	if limit := MaxSamples(cal); len(samples) > limit {
		samples = samples[len(samples)-limit:]
	}
	return samples
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
