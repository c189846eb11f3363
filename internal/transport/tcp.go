package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"time"
)

// TCPClient talks to the device over a plain TCP socket.
type TCPClient struct {
	Host    string
	Port    int
	Timeout time.Duration
}

// NewTCPClient returns a client for host:port with the given connect/read timeout.
func NewTCPClient(host string, port int, timeout time.Duration) *TCPClient {
	return &TCPClient{Host: host, Port: port, Timeout: timeout}
}

func (c *TCPClient) addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Acquire dials the device, writes command if non-empty, and reads one chunk
// of at most MaxPayloadSize bytes. The connection is closed on every path.
func (c *TCPClient) Acquire(ctx context.Context, command []byte) ([]byte, error) {
	if c.Host == "" || c.Port <= 0 || c.Port > 65535 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidEndpoint, c.addr())
	}
	if c.Timeout <= 0 {
		return nil, fmt.Errorf("%w: timeout must be positive, got %s", ErrInvalidEndpoint, c.Timeout)
	}

	dialer := net.Dialer{Timeout: c.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.addr())
	if err != nil {
		return nil, &ConnectionError{Addr: c.addr(), Op: "dial", Err: err}
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(c.Timeout)); err != nil {
		return nil, &ConnectionError{Addr: c.addr(), Op: "dial", Err: err}
	}

	if len(command) > 0 {
		if _, err := conn.Write(command); err != nil {
			if isTimeout(err) {
				return []byte{}, nil
			}
			return nil, &ConnectionError{Addr: c.addr(), Op: "write", Err: err}
		}
	}

	payload, err := readChunk(conn)
	if err != nil {
		return nil, &ConnectionError{Addr: c.addr(), Op: "read", Err: err}
	}
	return payload, nil
}

// readChunk performs the single bounded read shared by all transports.
func readChunk(r io.Reader) ([]byte, error) {
	buf := make([]byte, MaxPayloadSize)
	n, err := r.Read(buf)
	if n > 0 {
		return buf[:n], nil
	}
	if err == nil || errors.Is(err, io.EOF) || isTimeout(err) {
		return []byte{}, nil
	}
	return nil, err
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
