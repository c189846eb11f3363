// Copyright (c) 2026 The Uroflowmetry-001 Authors
// SPDX-License-Identifier: MIT

package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/prashant23kumthekar/Uroflowmetry-001/internal/config"
	"github.com/prashant23kumthekar/Uroflowmetry-001/internal/decode"
	"github.com/prashant23kumthekar/Uroflowmetry-001/internal/flow"
	"github.com/prashant23kumthekar/Uroflowmetry-001/internal/transport"
)

// ErrNotCounterStream is returned when the device did not answer with raw
// load-cell counts, which calibration needs.
var ErrNotCounterStream = errors.New("calibration needs the binary counter stream")

// RunCalibration guides the operator through one known-volume pour and
// prints the RAW_PER_UNIT line for the config file.
func RunCalibration(ctx context.Context, in io.Reader, out io.Writer, logger *zap.Logger) error {
	cfg := config.Get()

	acq, err := NewAcquirer(cfg)
	if err != nil {
		return err
	}

	rpu, err := calibrate(ctx, acq, cfg.DeviceCommand, in, out)
	if err != nil {
		return err
	}
	logger.Info("calibration complete",
		zap.Float64("raw_per_unit", rpu),
		zap.Float64("previous", cfg.RawPerUnit),
	)
	return nil
}

func calibrate(ctx context.Context, acq transport.Acquirer, command []byte, in io.Reader, out io.Writer) (float64, error) {
	scanner := bufio.NewScanner(in)

	fmt.Fprintln(out, "=== RAW_PER_UNIT calibration ===")
	fmt.Fprintln(out, "1. Empty and tare the collection vessel.")
	fmt.Fprintln(out, "2. Pour a measured volume of water at a steady rate.")
	fmt.Fprint(out, "3. When the pour is done, press ENTER to read the device... ")
	if !scanner.Scan() {
		return 0, errors.New("calibration aborted: no input")
	}

	payload, err := acq.Acquire(ctx, command)
	if err != nil {
		return 0, fmt.Errorf("read device: %w", err)
	}
	res := decode.Decode(payload)
	if res.Mode != decode.Binary16 {
		return 0, fmt.Errorf("%w, device sent %s", ErrNotCounterStream, res.Mode)
	}
	fmt.Fprintf(out, "Read %d counter samples.\n", len(res.Readings))

	volume, err := promptFloat(scanner, out, "Volume poured (mL): ")
	if err != nil {
		return 0, err
	}

	rpu, err := flow.CalibrateRawPerUnit(res.Readings, volume)
	if err != nil {
		return 0, err
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Add this line to the config file:")
	fmt.Fprintf(out, "RAW_PER_UNIT=%.4f\n", rpu)
	return rpu, nil
}

// promptFloat asks until a positive number is entered.
func promptFloat(scanner *bufio.Scanner, out io.Writer, prompt string) (float64, error) {
	for {
		fmt.Fprint(out, prompt)
		if !scanner.Scan() {
			return 0, errors.New("calibration aborted: no input")
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(scanner.Text()), 64)
		if err == nil && v > 0 {
			return v, nil
		}
		fmt.Fprintln(out, "Enter a positive number of millilitres.")
	}
}
