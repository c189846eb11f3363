// Package metrics holds the Prometheus instruments of the acquisition
// pipeline.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/prashant23kumthekar/Uroflowmetry-001/internal/flow"
	"github.com/prashant23kumthekar/Uroflowmetry-001/internal/session"
)

// Acquisition results used as the "result" label.
const (
	ResultOK     = "ok"
	ResultEmpty  = "empty"
	ResultBusy   = "busy"
	ResultFailed = "failed"
)

// Metrics contains the acquisition metrics.
type Metrics struct {
	Acquisitions        *prometheus.CounterVec
	AcquisitionDuration prometheus.Histogram
	WindowSamples       prometheus.Gauge
	PeakFlow            prometheus.Gauge
	DeviceConnected     prometheus.Gauge
	ReportsWritten      prometheus.Counter
}

// New creates the metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Acquisitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "uroflow",
				Subsystem: "acquisition",
				Name:      "total",
				Help:      "Acquisitions by result (ok, empty, busy, failed)",
			},
			[]string{"result"},
		),
		AcquisitionDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "uroflow",
				Subsystem: "acquisition",
				Name:      "duration_seconds",
				Help:      "Time from connect to decoded window",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
		),
		WindowSamples: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "uroflow",
				Subsystem: "window",
				Name:      "samples",
				Help:      "Samples in the current window",
			},
		),
		PeakFlow: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "uroflow",
				Subsystem: "window",
				Name:      "peak_flow_mls",
				Help:      "Peak flow of the current window in mL/s",
			},
		),
		DeviceConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "uroflow",
				Subsystem: "device",
				Name:      "connected",
				Help:      "1 when the last acquisition reached the device",
			},
		),
		ReportsWritten: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "uroflow",
				Subsystem: "report",
				Name:      "written_total",
				Help:      "Reports written to disk",
			},
		),
	}

	reg.MustRegister(
		m.Acquisitions,
		m.AcquisitionDuration,
		m.WindowSamples,
		m.PeakFlow,
		m.DeviceConnected,
		m.ReportsWritten,
	)
	return m
}

// ObserveAcquisition records one Session.Acquire outcome. A nil *Metrics
// records nothing.
func (m *Metrics) ObserveAcquisition(w flow.Window, err error, elapsed time.Duration) {
	if m == nil {
		return
	}

	switch {
	case errors.Is(err, session.ErrBusy):
		m.Acquisitions.WithLabelValues(ResultBusy).Inc()
		return
	case err != nil:
		m.Acquisitions.WithLabelValues(ResultFailed).Inc()
		m.DeviceConnected.Set(0)
		return
	case w.Empty():
		m.Acquisitions.WithLabelValues(ResultEmpty).Inc()
	default:
		m.Acquisitions.WithLabelValues(ResultOK).Inc()
	}

	m.AcquisitionDuration.Observe(elapsed.Seconds())
	m.DeviceConnected.Set(1)
	m.observeWindow(w)
}

// ObserveDisconnect records a cleared window.
func (m *Metrics) ObserveDisconnect() {
	if m == nil {
		return
	}
	m.DeviceConnected.Set(0)
	m.observeWindow(flow.Window{})
}

// ObserveReport counts a written report.
func (m *Metrics) ObserveReport() {
	if m == nil {
		return
	}
	m.ReportsWritten.Inc()
}

func (m *Metrics) observeWindow(w flow.Window) {
	m.WindowSamples.Set(float64(len(w.Samples)))
	var peak float64
	for _, s := range w.Samples {
		if s.Flow > peak {
			peak = s.Flow
		}
	}
	m.PeakFlow.Set(peak)
}
