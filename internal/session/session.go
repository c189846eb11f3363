// Copyright (c) 2026 The Uroflowmetry-001 Authors
// SPDX-License-Identifier: MIT

// Package session runs the acquisition pipeline and owns its result.
package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/prashant23kumthekar/Uroflowmetry-001/internal/decode"
	"github.com/prashant23kumthekar/Uroflowmetry-001/internal/flow"
	"github.com/prashant23kumthekar/Uroflowmetry-001/internal/transport"
)

// ErrBusy is returned when an acquisition is requested while another runs.
var ErrBusy = errors.New("acquisition already in progress")

// Session wires transport, decoder, reconstruction and windowing to a Buffer.
type Session struct {
	acquirer transport.Acquirer
	command  []byte
	cal      flow.Calibration
	logger   *zap.Logger
	now      func() time.Time

	buffer    Buffer
	inFlight  sync.Mutex
	connected atomic.Bool
}

// New returns a session reading from acquirer. command may be nil.
func New(acquirer transport.Acquirer, command []byte, cal flow.Calibration, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		acquirer: acquirer,
		command:  command,
		cal:      cal,
		logger:   logger,
		now:      time.Now,
	}
}

// Acquire fetches one payload and replaces the buffer with the window built
// from it. An empty window with a nil error means the device answered with
// nothing usable. On error the buffer is left untouched and the session is
// marked disconnected.
func (s *Session) Acquire(ctx context.Context) (flow.Window, error) {
	if !s.inFlight.TryLock() {
		return flow.Window{}, ErrBusy
	}
	defer s.inFlight.Unlock()

	payload, err := s.acquirer.Acquire(ctx, s.command)
	if err != nil {
		s.connected.Store(false)
		s.logger.Warn("acquisition failed", zap.Error(err))
		return flow.Window{}, err
	}

	res := decode.Decode(payload)
	w := flow.NewWindow(res, s.cal, s.now())

	s.buffer.Set(w)
	s.connected.Store(true)

	s.logger.Info("acquisition complete",
		zap.Int("bytes", len(payload)),
		zap.Stringer("mode", res.Mode),
		zap.Int("readings", len(res.Readings)),
		zap.Int("samples", len(w.Samples)),
	)
	return w, nil
}

// Disconnect clears the buffer and marks the device disconnected.
func (s *Session) Disconnect() {
	s.buffer.Clear()
	s.connected.Store(false)
	s.logger.Info("device disconnected, samples cleared")
}

// Window returns the current window for read-only use.
func (s *Session) Window() flow.Window {
	return s.buffer.Get()
}

// Connected reports whether the last acquisition reached the device and no
// Disconnect followed.
func (s *Session) Connected() bool {
	return s.connected.Load()
}

// Calibration returns the constants used to build windows.
func (s *Session) Calibration() flow.Calibration {
	return s.cal
}
