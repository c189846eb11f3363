// Copyright (c) 2026 The Uroflowmetry-001 Authors
// SPDX-License-Identifier: MIT

package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/prashant23kumthekar/Uroflowmetry-001/internal/config"
	"github.com/prashant23kumthekar/Uroflowmetry-001/internal/report"
	"github.com/prashant23kumthekar/Uroflowmetry-001/internal/session"
)

// RunAcquire performs one acquisition, prints the summary to out, writes the
// report files when there is data, and publishes the result.
func RunAcquire(ctx context.Context, out io.Writer, logger *zap.Logger) error {
	cfg := config.Get()

	sess, err := NewSession(cfg, logger)
	if err != nil {
		return err
	}

	pub, err := NewPublisher(cfg, cfg.MQTTClientIDAcquire, logger)
	if err != nil {
		// the report is still worth having without the broker
		logger.Warn("publishing disabled", zap.Error(err))
		pub = nil
	}
	defer pub.Close()

	return acquireOnce(ctx, sess, pub, cfg.ReportDir, plotOptions(cfg), out, logger)
}

func acquireOnce(ctx context.Context, sess *session.Session, pub *Publisher, reportDir string, opts report.PlotOptions, out io.Writer, logger *zap.Logger) error {
	w, err := sess.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquisition: %w", err)
	}

	summary := report.NewSummary(w, time.Now())
	if err := summary.WriteText(out); err != nil {
		return err
	}
	pub.Publish(w, summary)

	files, err := report.WriteReport(reportDir, summary, opts)
	if errors.Is(err, report.ErrNoSamples) {
		logger.Warn("device returned no samples, no report written")
		return nil
	}
	if err != nil {
		return err
	}

	logger.Info("report written",
		zap.String("json", files.JSON),
		zap.String("text", files.Text),
		zap.String("plot", files.Plot),
	)
	return nil
}
