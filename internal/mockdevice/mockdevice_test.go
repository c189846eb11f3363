package mockdevice

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prashant23kumthekar/Uroflowmetry-001/internal/decode"
	"github.com/prashant23kumthekar/Uroflowmetry-001/internal/flow"
	"github.com/prashant23kumthekar/Uroflowmetry-001/internal/report"
	"github.com/prashant23kumthekar/Uroflowmetry-001/internal/session"
	"github.com/prashant23kumthekar/Uroflowmetry-001/internal/transport"
)

func TestProfileShape(t *testing.T) {
	p := Profile(21, 20)
	require.Len(t, p, 21)
	assert.InDelta(t, 0, p[0], 1e-9)
	assert.InDelta(t, 20, p[10], 1e-9)
	assert.InDelta(t, 0, p[20], 1e-9)
}

func TestBinaryPayloadRoundTripsThroughReconstruction(t *testing.T) {
	cal := flow.DefaultCalibration()
	flows := Profile(40, 20)

	payload, err := Payload(FormatBinary, flows, cal)
	require.NoError(t, err)
	require.Len(t, payload, 80)

	res := decode.Decode(payload)
	require.Equal(t, decode.Binary16, res.Mode)

	got := flow.Reconstruct(res, cal)
	require.Len(t, got, len(flows))
	for i := 1; i < len(flows); i++ {
		// counter rounding costs at most one count per step
		assert.InDelta(t, flows[i], got[i], 1/cal.RawPerUnit/cal.SampleInterval+1e-9, "sample %d", i)
	}
}

func TestBinaryPayloadIsCappedAt800Samples(t *testing.T) {
	payload, err := Payload(FormatBinary, make([]float64, 1000), flow.DefaultCalibration())
	require.NoError(t, err)
	assert.Len(t, payload, decode.MaxBinaryPayload)
}

func TestTextPayloadDecodesAsText(t *testing.T) {
	for n := 1; n < 30; n++ {
		payload, err := Payload(FormatText, Profile(n, 20), flow.DefaultCalibration())
		require.NoError(t, err)
		assert.Equal(t, 1, len(payload)%2, "n=%d", n)
		assert.Equal(t, decode.TextNumeric, decode.Decode(payload).Mode, "n=%d", n)
	}
}

func TestJSONPayload(t *testing.T) {
	payload, err := Payload(FormatJSON, []float64{1.234, 5}, flow.DefaultCalibration())
	require.NoError(t, err)
	res := decode.Decode(payload)
	assert.Equal(t, decode.JSON, res.Mode)
	assert.Equal(t, []float64{1.23, 5}, res.Readings)
}

func TestJSONPayloadDecodesAsJSON(t *testing.T) {
	for n := 1; n <= 200; n++ {
		payload, err := Payload(FormatJSON, Profile(n, 22), flow.DefaultCalibration())
		require.NoError(t, err)
		assert.Equal(t, 1, len(payload)%2, "n=%d", n)
		assert.Equal(t, decode.JSON, decode.Decode(payload).Mode, "n=%d len=%d", n, len(payload))
	}
}

func TestPayloadUnknownFormat(t *testing.T) {
	_, err := Payload("xml", nil, flow.DefaultCalibration())
	assert.Error(t, err)
}

func startServer(t *testing.T, payload []byte, wait time.Duration) *net.TCPAddr {
	t.Helper()
	srv := &Server{Payload: payload, CommandWait: wait}
	require.NoError(t, srv.Listen("127.0.0.1:0"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})
	return srv.Addr().(*net.TCPAddr)
}

func TestEndToEndAcquisitionFromMockDevice(t *testing.T) {
	cal := flow.DefaultCalibration()
	payload, err := Payload(FormatBinary, Profile(60, 20), cal)
	require.NoError(t, err)

	addr := startServer(t, payload, 50*time.Millisecond)
	client := transport.NewTCPClient("127.0.0.1", addr.Port, time.Second)
	s := session.New(client, []byte{0x53, 0x31}, cal, nil)

	for i := 0; i < 2; i++ {
		w, err := s.Acquire(context.Background())
		require.NoError(t, err)
		assert.Equal(t, decode.Binary16, w.Mode)
		assert.Len(t, w.Samples, 60)

		st := report.Compute(w)
		assert.InDelta(t, 59*cal.SampleInterval, st.Duration, 1e-9)
		assert.Greater(t, st.Volume, 0.0)
		assert.LessOrEqual(t, st.PeakFlow, cal.FlowMax)
	}
}

func TestEndToEndTextPayload(t *testing.T) {
	addr := startServer(t, []byte("{5, 7, 8, 11, 13, 7, 19, 23, 29, 22, 19, 17, 13, 11, 7}"), 0)
	s := session.New(transport.NewTCPClient("127.0.0.1", addr.Port, time.Second), nil, flow.DefaultCalibration(), nil)

	w, err := s.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, decode.TextNumeric, w.Mode)
	require.Len(t, w.Samples, 15)
	assert.InDelta(t, 4.5, w.Samples[14].Time, 1e-12)
	assert.Equal(t, 7.0, w.Samples[14].Flow)
}
