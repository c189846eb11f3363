// Copyright (c) 2026 The Uroflowmetry-001 Authors
// SPDX-License-Identifier: MIT

// Package transport fetches one raw payload from the flow meter.
//
// An acquisition is a single exchange: connect, optionally write a command
// token, read one chunk, close. There are no retries. A read that times out
// is not an error; it yields an empty payload which callers treat as "no data".
package transport

import (
	"context"
	"errors"
	"fmt"
)

// MaxPayloadSize bounds the single read of an acquisition.
const MaxPayloadSize = 64 * 1024

var (
	// ErrConnectionFailure matches every error caused by an unreachable,
	// refusing or unresolvable device.
	ErrConnectionFailure = errors.New("device connection failed")

	// ErrInvalidEndpoint is returned before any I/O when the endpoint or
	// timeout cannot possibly work.
	ErrInvalidEndpoint = errors.New("invalid device endpoint")
)

// Acquirer performs one acquisition and returns the raw payload.
type Acquirer interface {
	Acquire(ctx context.Context, command []byte) ([]byte, error)
}

// ConnectionError describes a failed connection attempt.
type ConnectionError struct {
	Addr string
	Op   string // "dial", "open", "write" or "read"
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() []error {
	return []error{ErrConnectionFailure, e.Err}
}
