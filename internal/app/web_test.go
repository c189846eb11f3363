package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/prashant23kumthekar/Uroflowmetry-001/internal/decode"
	"github.com/prashant23kumthekar/Uroflowmetry-001/internal/flow"
	"github.com/prashant23kumthekar/Uroflowmetry-001/internal/report"
	"github.com/prashant23kumthekar/Uroflowmetry-001/internal/session"
	"github.com/prashant23kumthekar/Uroflowmetry-001/internal/transport"
)

// scriptedDevice answers each Acquire with the next payload or error.
type scriptedDevice struct {
	mu       sync.Mutex
	payloads [][]byte
	errs     []error
	calls    int
}

func (d *scriptedDevice) Acquire(_ context.Context, _ []byte) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.calls
	d.calls++
	if i < len(d.errs) && d.errs[i] != nil {
		return nil, d.errs[i]
	}
	if i < len(d.payloads) {
		return d.payloads[i], nil
	}
	return []byte{}, nil
}

func newTestServer(t *testing.T, dev transport.Acquirer) (*httptest.Server, string) {
	t.Helper()
	dir := t.TempDir()
	sess := session.New(dev, nil, flow.DefaultCalibration(), zap.NewNop())
	srv := httptest.NewServer(NewWebServer(sess, nil, prometheus.NewRegistry(), dir, "", zap.NewNop()).Routes())
	t.Cleanup(srv.Close)
	return srv, dir
}

func decodeState(t *testing.T, body io.Reader) State {
	t.Helper()
	var st State
	require.NoError(t, json.NewDecoder(body).Decode(&st))
	return st
}

func post(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", nil)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func get(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestWebConnectAcquiresWindow(t *testing.T) {
	srv, _ := newTestServer(t, &scriptedDevice{payloads: [][]byte{[]byte("5 10 15")}})

	resp := post(t, srv.URL+"/api/connect")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	st := decodeState(t, resp.Body)
	assert.True(t, st.Connected)
	assert.Equal(t, decode.TextNumeric, st.Window.Mode)
	require.Len(t, st.Window.Samples, 3)
	assert.InDelta(t, 0.9, st.Window.Samples[2].Time, 1e-12)
	assert.Equal(t, 15.0, st.Stats.PeakFlow)

	st = decodeState(t, get(t, srv.URL+"/api/window").Body)
	assert.Len(t, st.Window.Samples, 3)
}

func TestWebConnectFailureKeepsPreviousWindow(t *testing.T) {
	dev := &scriptedDevice{
		payloads: [][]byte{[]byte("5 10 15")},
		errs:     []error{nil, &transport.ConnectionError{Addr: "pico:65432", Op: "dial", Err: errors.New("refused")}},
	}
	srv, _ := newTestServer(t, dev)

	require.Equal(t, http.StatusOK, post(t, srv.URL+"/api/connect").StatusCode)

	resp := post(t, srv.URL+"/api/connect")
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Contains(t, body["error"], "refused")

	st := decodeState(t, get(t, srv.URL+"/api/window").Body)
	assert.False(t, st.Connected)
	assert.Len(t, st.Window.Samples, 3)
}

func TestWebDisconnectClearsWindow(t *testing.T) {
	srv, _ := newTestServer(t, &scriptedDevice{payloads: [][]byte{[]byte("5 10 15")}})
	require.Equal(t, http.StatusOK, post(t, srv.URL+"/api/connect").StatusCode)

	st := decodeState(t, post(t, srv.URL+"/api/disconnect").Body)
	assert.False(t, st.Connected)
	assert.Empty(t, st.Window.Samples)
	assert.Equal(t, report.Stats{}, st.Stats)
}

func TestWebReport(t *testing.T) {
	srv, dir := newTestServer(t, &scriptedDevice{payloads: [][]byte{[]byte("0 10 20")}})

	assert.Equal(t, http.StatusNotFound, get(t, srv.URL+"/api/report").StatusCode)
	assert.Equal(t, http.StatusNotFound, post(t, srv.URL+"/api/report").StatusCode)

	require.Equal(t, http.StatusOK, post(t, srv.URL+"/api/connect").StatusCode)

	resp := get(t, srv.URL+"/api/report")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var summary report.Summary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&summary))
	assert.Equal(t, decode.TextNumeric, summary.Mode)
	assert.InDelta(t, 6, summary.Stats.Volume, 1e-9)
	assert.InDelta(t, 10, summary.Stats.AverageFlow, 1e-9)

	resp = post(t, srv.URL+"/api/report")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var files report.Files
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&files))
	assert.Equal(t, dir, filepath.Dir(files.Plot))
	_, err := os.Stat(files.JSON)
	assert.NoError(t, err)
}

func TestWebReportKeepsIDPerAcquisition(t *testing.T) {
	srv, _ := newTestServer(t, &scriptedDevice{payloads: [][]byte{[]byte("0 10 20"), []byte("5 10 15")}})
	require.Equal(t, http.StatusOK, post(t, srv.URL+"/api/connect").StatusCode)

	reportID := func() string {
		var s report.Summary
		require.NoError(t, json.NewDecoder(get(t, srv.URL+"/api/report").Body).Decode(&s))
		return s.ID
	}
	first := reportID()
	require.Len(t, first, 36)
	assert.Equal(t, first, reportID())

	var files report.Files
	require.NoError(t, json.NewDecoder(post(t, srv.URL+"/api/report").Body).Decode(&files))
	data, err := os.ReadFile(files.JSON)
	require.NoError(t, err)
	var saved report.Summary
	require.NoError(t, json.Unmarshal(data, &saved))
	assert.Equal(t, first, saved.ID)

	require.Equal(t, http.StatusOK, post(t, srv.URL+"/api/connect").StatusCode)
	assert.NotEqual(t, first, reportID())
}

func TestWebPlot(t *testing.T) {
	srv, _ := newTestServer(t, &scriptedDevice{})

	resp := get(t, srv.URL+"/api/plot.png")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(body, []byte("\x89PNG")))
}

func TestWebMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t, &scriptedDevice{})
	assert.Equal(t, http.StatusMethodNotAllowed, get(t, srv.URL+"/api/connect").StatusCode)
}

func TestWebSocketPushesState(t *testing.T) {
	srv, _ := newTestServer(t, &scriptedDevice{payloads: [][]byte{[]byte("5 10 15")}})

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var st State
	require.NoError(t, conn.ReadJSON(&st))
	assert.False(t, st.Connected)
	assert.Empty(t, st.Window.Samples)

	require.Equal(t, http.StatusOK, post(t, srv.URL+"/api/connect").StatusCode)
	require.NoError(t, conn.ReadJSON(&st))
	assert.True(t, st.Connected)
	assert.Len(t, st.Window.Samples, 3)

	post(t, srv.URL+"/api/disconnect")
	require.NoError(t, conn.ReadJSON(&st))
	assert.False(t, st.Connected)
	assert.Empty(t, st.Window.Samples)
}

func TestWebMetrics(t *testing.T) {
	dev := &scriptedDevice{
		payloads: [][]byte{[]byte("5 10 15")},
		errs:     []error{nil, &transport.ConnectionError{Addr: "pico:65432", Op: "dial", Err: errors.New("refused")}},
	}
	srv, _ := newTestServer(t, dev)
	post(t, srv.URL+"/api/connect")
	post(t, srv.URL+"/api/connect")

	resp := get(t, srv.URL+"/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	assert.Contains(t, text, `uroflow_acquisition_total{result="ok"} 1`)
	assert.Contains(t, text, `uroflow_acquisition_total{result="failed"} 1`)
	assert.Contains(t, text, "uroflow_window_samples 3")
	assert.Contains(t, text, "uroflow_device_connected 0")
}
