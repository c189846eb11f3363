// Copyright (c) 2026 The Uroflowmetry-001 Authors
// SPDX-License-Identifier: MIT

package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/prashant23kumthekar/Uroflowmetry-001/internal/decode"
	"github.com/prashant23kumthekar/Uroflowmetry-001/internal/flow"
)

// ErrNoSamples is returned when a report is requested for an empty window.
var ErrNoSamples = errors.New("no samples available to include in report")

const timestampLayout = "2006-01-02 15:04:05"

// Summary is the document published over MQTT and written next to the plot.
type Summary struct {
	ID         string        `json:"id"`
	Generated  time.Time     `json:"generated"`
	AcquiredAt time.Time     `json:"acquired_at"`
	Mode       decode.Mode   `json:"mode"`
	Stats      Stats         `json:"stats"`
	Samples    []flow.Sample `json:"samples,omitempty"`
}

// NewSummary computes the summary of w at the given time.
func NewSummary(w flow.Window, generated time.Time) Summary {
	return Summary{
		ID:         uuid.NewString(),
		Generated:  generated,
		AcquiredAt: w.AcquiredAt,
		Mode:       w.Mode,
		Stats:      Compute(w),
		Samples:    w.Samples,
	}
}

// Window rebuilds the acquisition window the summary was computed from.
func (s Summary) Window() flow.Window {
	return flow.Window{Samples: s.Samples, Mode: s.Mode, AcquiredAt: s.AcquiredAt}
}

// WriteText prints the summary table of the report.
func (s Summary) WriteText(out io.Writer) error {
	_, err := fmt.Fprintf(out,
		"Live Uroflowmetry Report\n"+
			"Report ID:              %s\n"+
			"Generated:              %s\n"+
			"Duration (s):           %.2f\n"+
			"Average Flow (mL/s):    %.2f\n"+
			"Estimated Volume (mL):  %.2f\n"+
			"Peak Flow (mL/s):       %.2f\n"+
			"Samples:                %d (%s)\n",
		s.ID,
		s.Generated.Format(timestampLayout),
		s.Stats.Duration,
		s.Stats.AverageFlow,
		s.Stats.Volume,
		s.Stats.PeakFlow,
		s.Stats.Samples, s.Mode,
	)
	return err
}

// Files lists the artefacts of one written report.
type Files struct {
	JSON string
	Text string
	Plot string
}

// WriteReport writes <dir>/uroflow-<stamp>.{json,txt,png} for summary,
// stamped with its Generated time. Summaries without samples are refused
// with ErrNoSamples.
func WriteReport(dir string, summary Summary, opts PlotOptions) (Files, error) {
	w := summary.Window()
	if w.Empty() {
		return Files{}, ErrNoSamples
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Files{}, fmt.Errorf("create report dir: %w", err)
	}

	base := filepath.Join(dir, "uroflow-"+summary.Generated.Format("20060102-150405"))
	files := Files{JSON: base + ".json", Text: base + ".txt", Plot: base + ".png"}

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return Files{}, fmt.Errorf("marshal summary: %w", err)
	}
	if err := os.WriteFile(files.JSON, data, 0o644); err != nil {
		return Files{}, fmt.Errorf("write summary: %w", err)
	}

	if err := writeFile(files.Text, summary.WriteText); err != nil {
		return Files{}, err
	}
	if err := writeFile(files.Plot, func(out io.Writer) error {
		return RenderPlot(out, w, opts)
	}); err != nil {
		return Files{}, err
	}

	return files, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
