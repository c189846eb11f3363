// Copyright (c) 2026 The Uroflowmetry-001 Authors
// SPDX-License-Identifier: MIT

// Package mockdevice simulates the flow meter: a TCP server that answers
// each connection with one payload and closes it.
package mockdevice

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/prashant23kumthekar/Uroflowmetry-001/internal/flow"
)

// Format selects the payload encoding.
type Format string

const (
	FormatBinary Format = "binary" // cumulative uint16 counter, little endian
	FormatText   Format = "text"   // set repr, "{5, 7, 8, ...}"
	FormatJSON   Format = "json"   // {"samples": [...]}
)

// maxBinarySamples keeps binary payloads within the decoder's 1600-byte limit.
const maxBinarySamples = 800

// counterBase is the tared counter value before the pour starts.
const counterBase = 1000

// Profile returns a voiding curve of n flow values in mL/s: a sin² bump
// peaking at peak, starting and ending at zero.
func Profile(n int, peak float64) []float64 {
	out := make([]float64, n)
	if n < 2 {
		return out
	}
	for i := range out {
		s := math.Sin(math.Pi * float64(i) / float64(n-1))
		out[i] = peak * s * s
	}
	return out
}

// Payload encodes flows in the given format. Binary payloads integrate the
// flows into a running counter masked to 16 bits, as the load-cell firmware
// reports it.
func Payload(format Format, flows []float64, cal flow.Calibration) ([]byte, error) {
	switch format {
	case FormatBinary:
		return binaryPayload(flows, cal), nil
	case FormatText:
		return textPayload(flows), nil
	case FormatJSON:
		doc, err := json.Marshal(map[string][]float64{"samples": round2(flows)})
		if err != nil {
			return nil, err
		}
		return padOdd(doc), nil
	default:
		return nil, fmt.Errorf("unknown payload format %q", format)
	}
}

func binaryPayload(flows []float64, cal flow.Calibration) []byte {
	if len(flows) > maxBinarySamples {
		flows = flows[len(flows)-maxBinarySamples:]
	}

	out := make([]byte, 0, 2*len(flows))
	counter := float64(counterBase)
	for i, f := range flows {
		if i > 0 {
			counter += f * cal.SampleInterval * cal.RawPerUnit
		}
		out = binary.LittleEndian.AppendUint16(out, uint16(int64(math.Round(counter))&0xFFFF))
	}
	return out
}

// textPayload renders whole mL/s values as a set literal, "{5, 7, 8}".
func textPayload(flows []float64) []byte {
	parts := make([]string, len(flows))
	for i, f := range flows {
		parts[i] = strconv.Itoa(int(math.Round(f)))
	}
	return padOdd([]byte("{" + strings.Join(parts, ", ") + "}"))
}

// padOdd appends a newline to even-length documents. An even-length text
// payload of at most 1600 bytes would be taken for binary samples.
func padOdd(doc []byte) []byte {
	if len(doc)%2 == 0 {
		return append(doc, '\n')
	}
	return doc
}

func round2(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = math.Round(v*100) / 100
	}
	return out
}

// Server answers every accepted connection with Payload and closes it.
type Server struct {
	Payload []byte
	Logger  *zap.Logger

	// CommandWait is how long to wait for an optional command token before
	// answering. Zero answers immediately.
	CommandWait time.Duration

	listener net.Listener
}

// Listen binds the server to addr ("127.0.0.1:0" picks a free port).
func (s *Server) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("mock device listen on %s: %w", addr, err)
	}
	s.listener = ln
	if s.Logger == nil {
		s.Logger = zap.NewNop()
	}
	s.Logger.Info("mock device listening", zap.String("addr", ln.Addr().String()), zap.Int("payload_bytes", len(s.Payload)))
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve accepts connections until ctx is done.
func (s *Server) Serve(ctx context.Context) error {
	if s.listener == nil {
		return errors.New("mock device: Serve called before Listen")
	}

	go func() {
		<-ctx.Done()
		s.listener.Close()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("mock device accept: %w", err)
		}
		s.handle(conn)
	}
}

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()
	remote := conn.RemoteAddr().String()

	if s.CommandWait > 0 {
		conn.SetReadDeadline(time.Now().Add(s.CommandWait))
		cmd := make([]byte, 16)
		if n, err := conn.Read(cmd); err == nil {
			s.Logger.Debug("mock device command", zap.String("remote", remote), zap.Binary("command", cmd[:n]))
		}
	}

	if _, err := conn.Write(s.Payload); err != nil {
		s.Logger.Warn("mock device write failed", zap.String("remote", remote), zap.Error(err))
		return
	}
	s.Logger.Info("mock device sent payload", zap.String("remote", remote), zap.Int("bytes", len(s.Payload)))
}
