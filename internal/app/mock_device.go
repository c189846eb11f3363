package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/prashant23kumthekar/Uroflowmetry-001/internal/config"
	"github.com/prashant23kumthekar/Uroflowmetry-001/internal/mockdevice"
)

// mockPeakFlow is the Qmax of the simulated voiding, mL/s.
const mockPeakFlow = 22.0

// RunMockDevice serves a simulated voiding on MOCK_DEVICE_PORT until ctx is
// done.
func RunMockDevice(ctx context.Context, logger *zap.Logger) error {
	cfg := config.Get()
	cal := CalibrationFrom(cfg)

	// a pour spanning three quarters of the plotted duration
	n := int(0.75 * cal.TotalDuration / cal.SampleInterval)
	payload, err := mockdevice.Payload(mockdevice.Format(cfg.MockDeviceFormat), mockdevice.Profile(n, mockPeakFlow), cal)
	if err != nil {
		return err
	}

	srv := &mockdevice.Server{
		Payload:     payload,
		Logger:      logger,
		CommandWait: 100 * time.Millisecond,
	}
	if err := srv.Listen(fmt.Sprintf(":%d", cfg.MockDevicePort)); err != nil {
		return err
	}
	logger.Info("mock device ready",
		zap.String("format", cfg.MockDeviceFormat),
		zap.Int("samples", n),
	)
	return srv.Serve(ctx)
}
