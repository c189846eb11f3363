package transport

import (
	"context"
	"fmt"
	"io"
	"time"

	serial "github.com/jacobsa/go-serial/serial"
)

// SerialClient reads the device over its USB CDC serial port instead of TCP.
// The exchange is the same: optional command, one bounded read, close.
type SerialClient struct {
	PortName string
	BaudRate int
	Timeout  time.Duration

	// open is replaced in tests.
	open func(serial.OpenOptions) (io.ReadWriteCloser, error)
}

// NewSerialClient returns a client for the given port.
func NewSerialClient(portName string, baudRate int, timeout time.Duration) *SerialClient {
	return &SerialClient{PortName: portName, BaudRate: baudRate, Timeout: timeout, open: serial.Open}
}

// Acquire opens the port, writes command if non-empty and reads one chunk.
// With MinimumReadSize 0 the driver returns after the inter-character
// timeout, so a silent device yields an empty payload.
func (c *SerialClient) Acquire(ctx context.Context, command []byte) ([]byte, error) {
	if c.PortName == "" || c.BaudRate <= 0 {
		return nil, fmt.Errorf("%w: serial port %q at %d baud", ErrInvalidEndpoint, c.PortName, c.BaudRate)
	}
	if c.Timeout <= 0 {
		return nil, fmt.Errorf("%w: timeout must be positive, got %s", ErrInvalidEndpoint, c.Timeout)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	opts := serial.OpenOptions{
		PortName:              c.PortName,
		BaudRate:              uint(c.BaudRate),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       0,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: interCharacterTimeout(c.Timeout),
	}

	open := c.open
	if open == nil {
		open = serial.Open
	}
	port, err := open(opts)
	if err != nil {
		return nil, &ConnectionError{Addr: c.PortName, Op: "open", Err: err}
	}
	defer port.Close()

	if len(command) > 0 {
		if _, err := port.Write(command); err != nil {
			return nil, &ConnectionError{Addr: c.PortName, Op: "write", Err: err}
		}
	}

	payload, err := readChunk(port)
	if err != nil {
		return nil, &ConnectionError{Addr: c.PortName, Op: "read", Err: err}
	}
	return payload, nil
}

// interCharacterTimeout converts to the driver's unit: milliseconds, rounded
// up to a multiple of 100 and capped at 25500 (VTIME is a byte of deciseconds).
func interCharacterTimeout(d time.Duration) uint {
	ms := uint((d + 99*time.Millisecond) / time.Millisecond)
	ms = (ms / 100) * 100
	if ms < 100 {
		ms = 100
	}
	if ms > 25500 {
		ms = 25500
	}
	return ms
}
