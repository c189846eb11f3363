package app

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/prashant23kumthekar/Uroflowmetry-001/internal/config"
	"github.com/prashant23kumthekar/Uroflowmetry-001/internal/flow"
	"github.com/prashant23kumthekar/Uroflowmetry-001/internal/report"
	"github.com/prashant23kumthekar/Uroflowmetry-001/internal/session"
	"github.com/prashant23kumthekar/Uroflowmetry-001/internal/transport"
)

// NewAcquirer builds the device link selected by TRANSPORT.
func NewAcquirer(cfg *config.Config) (transport.Acquirer, error) {
	switch cfg.Transport {
	case "tcp":
		return transport.NewTCPClient(cfg.DeviceHost, cfg.DevicePort, cfg.Timeout()), nil
	case "serial":
		return transport.NewSerialClient(cfg.SerialPort, cfg.SerialBaudRate, cfg.Timeout()), nil
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}
}

// CalibrationFrom maps the configuration onto reconstruction constants.
func CalibrationFrom(cfg *config.Config) flow.Calibration {
	return flow.Calibration{
		SampleInterval: cfg.SampleInterval,
		TotalDuration:  cfg.GraphTotalDuration,
		FlowMin:        cfg.FlowRateMin,
		FlowMax:        cfg.FlowRateMax,
		RawPerUnit:     cfg.RawPerUnit,
	}
}

// NewSession returns an acquisition session for the configured device.
func NewSession(cfg *config.Config, logger *zap.Logger) (*session.Session, error) {
	acq, err := NewAcquirer(cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("device link",
		zap.String("transport", cfg.Transport),
		zap.String("host", cfg.DeviceHost),
		zap.Int("port", cfg.DevicePort),
		zap.String("serial_port", cfg.SerialPort),
		zap.Duration("timeout", cfg.Timeout()),
	)
	return session.New(acq, cfg.DeviceCommand, CalibrationFrom(cfg), logger), nil
}

// plotOptions returns the plot axes of the configured calibration.
func plotOptions(cfg *config.Config) report.PlotOptions {
	return report.PlotOptionsFor(CalibrationFrom(cfg))
}
