// Copyright (c) 2026 The Uroflowmetry-001 Authors
// SPDX-License-Identifier: MIT

package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/prashant23kumthekar/Uroflowmetry-001/internal/config"
	"github.com/prashant23kumthekar/Uroflowmetry-001/internal/flow"
	"github.com/prashant23kumthekar/Uroflowmetry-001/internal/metrics"
	"github.com/prashant23kumthekar/Uroflowmetry-001/internal/report"
	"github.com/prashant23kumthekar/Uroflowmetry-001/internal/session"
	"github.com/prashant23kumthekar/Uroflowmetry-001/internal/transport"
)

const wsWriteTimeout = 2 * time.Second

// State is what the UI renders: connection flag, current window and its
// statistics.
type State struct {
	Connected bool         `json:"connected"`
	Window    flow.Window  `json:"window"`
	Stats     report.Stats `json:"stats"`
}

// WebServer serves the acquisition UI backend.
type WebServer struct {
	session   *session.Session
	publisher *Publisher
	registry  *prometheus.Registry
	metrics   *metrics.Metrics
	plot      report.PlotOptions
	reportDir string
	staticDir string
	logger    *zap.Logger

	upgrader websocket.Upgrader
	mu       sync.Mutex
	clients  map[*websocket.Conn]struct{}

	summaryMu sync.Mutex
	summary   *report.Summary
}

// NewWebServer returns a server driving sess. pub may be nil. Metrics are
// registered on reg and served on /metrics; a nil reg disables them.
func NewWebServer(sess *session.Session, pub *Publisher, reg *prometheus.Registry, reportDir, staticDir string, logger *zap.Logger) *WebServer {
	var m *metrics.Metrics
	if reg != nil {
		m = metrics.New(reg)
	}
	return &WebServer{
		session:   sess,
		publisher: pub,
		registry:  reg,
		metrics:   m,
		plot:      report.PlotOptionsFor(sess.Calibration()),
		reportDir: reportDir,
		staticDir: staticDir,
		logger:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for local network use
			},
		},
		clients: make(map[*websocket.Conn]struct{}),
	}
}

// Routes returns the HTTP handler of the server.
func (s *WebServer) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/connect", s.handleConnect)
	mux.HandleFunc("POST /api/disconnect", s.handleDisconnect)
	mux.HandleFunc("GET /api/window", s.handleWindow)
	mux.HandleFunc("GET /api/report", s.handleReport)
	mux.HandleFunc("POST /api/report", s.handleSaveReport)
	mux.HandleFunc("GET /api/plot.png", s.handlePlot)
	mux.HandleFunc("GET /ws", s.handleWS)
	if s.registry != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}
	if s.staticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(s.staticDir)))
	}
	return mux
}

func (s *WebServer) state() State {
	w := s.session.Window()
	return State{
		Connected: s.session.Connected(),
		Window:    w,
		Stats:     report.Compute(w),
	}
}

// summaryFor returns the report of win. The cached summary is reused while
// the window is unchanged, so one acquisition keeps one report ID.
func (s *WebServer) summaryFor(win flow.Window) report.Summary {
	s.summaryMu.Lock()
	defer s.summaryMu.Unlock()
	if c := s.summary; c != nil && c.AcquiredAt.Equal(win.AcquiredAt) && len(c.Samples) == len(win.Samples) {
		return *c
	}
	sum := report.NewSummary(win, time.Now())
	s.summary = &sum
	return sum
}

func (s *WebServer) handleConnect(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	win, err := s.session.Acquire(r.Context())
	s.metrics.ObserveAcquisition(win, err, time.Since(start))
	switch {
	case errors.Is(err, session.ErrBusy):
		writeError(w, http.StatusConflict, err)
		return
	case errors.Is(err, transport.ErrInvalidEndpoint):
		writeError(w, http.StatusInternalServerError, err)
		return
	case err != nil:
		// device unreachable: the UI shows the toggle as off again
		writeError(w, http.StatusBadGateway, err)
		s.broadcast()
		return
	}

	s.publisher.Publish(win, s.summaryFor(win))
	s.broadcast()
	writeJSON(w, http.StatusOK, s.state())
}

func (s *WebServer) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	s.session.Disconnect()
	s.metrics.ObserveDisconnect()
	s.broadcast()
	writeJSON(w, http.StatusOK, s.state())
}

func (s *WebServer) handleWindow(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.state())
}

func (s *WebServer) handleReport(w http.ResponseWriter, r *http.Request) {
	win := s.session.Window()
	if win.Empty() {
		writeError(w, http.StatusNotFound, report.ErrNoSamples)
		return
	}
	writeJSON(w, http.StatusOK, s.summaryFor(win))
}

func (s *WebServer) handleSaveReport(w http.ResponseWriter, r *http.Request) {
	files, err := report.WriteReport(s.reportDir, s.summaryFor(s.session.Window()), s.plot)
	if errors.Is(err, report.ErrNoSamples) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		s.logger.Error("report write failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.metrics.ObserveReport()
	s.logger.Info("report written", zap.String("json", files.JSON), zap.String("plot", files.Plot))
	writeJSON(w, http.StatusCreated, files)
}

func (s *WebServer) handlePlot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := report.RenderPlot(w, s.session.Window(), s.plot); err != nil {
		s.logger.Error("plot render failed", zap.Error(err))
	}
}

// handleWS registers a browser for state pushes. The first message is the
// current state; later ones follow every connect and disconnect.
func (s *WebServer) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	s.mu.Lock()
	s.clients[conn] = struct{}{}
	err = s.send(conn, s.state())
	s.mu.Unlock()
	if err != nil {
		s.drop(conn)
		return
	}
	s.logger.Debug("websocket client connected", zap.String("remote", conn.RemoteAddr().String()))

	// Drain until the browser goes away; the UI never sends anything we act on.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	s.drop(conn)
}

// send writes one state message. Callers hold s.mu.
func (s *WebServer) send(conn *websocket.Conn, st State) error {
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteJSON(st)
}

func (s *WebServer) broadcast() {
	st := s.state()

	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.clients {
		if err := s.send(conn, st); err != nil {
			s.logger.Debug("websocket send failed", zap.Error(err))
			delete(s.clients, conn)
			conn.Close()
		}
	}
}

func (s *WebServer) drop(conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.clients, conn)
	s.mu.Unlock()
	conn.Close()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// RunWeb serves the UI backend on WEB_SERVER_PORT until ctx is done.
func RunWeb(ctx context.Context, logger *zap.Logger) error {
	cfg := config.Get()

	sess, err := NewSession(cfg, logger)
	if err != nil {
		return err
	}

	pub, err := NewPublisher(cfg, cfg.MQTTClientIDWeb, logger)
	if err != nil {
		logger.Warn("publishing disabled", zap.Error(err))
		pub = nil
	}
	defer pub.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.WebServerPort),
		Handler:           NewWebServer(sess, pub, reg, cfg.ReportDir, "web", logger).Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("web server listening", zap.String("addr", srv.Addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
