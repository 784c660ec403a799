// Package server exposes the job executor to a single controller over a
// websocket, plus a couple of read-only HTTP endpoints.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/webbboot/companion/pkg/errors"
	appfsm "github.com/webbboot/companion/pkg/fsm"
	"github.com/webbboot/companion/pkg/job"
	"github.com/webbboot/companion/pkg/progress"
)

// DeviceLister enumerates candidate devices.
type DeviceLister interface {
	List(ctx context.Context) ([]job.UsbDevice, error)
}

// JobRunner executes one job to completion.
type JobRunner interface {
	Run(ctx context.Context, j job.Job, sink progress.Sink) *appfsm.Result
}

// Server accepts one controller connection at a time.
type Server struct {
	devices  DeviceLister
	runner   JobRunner
	upgrader websocket.Upgrader

	// slot holds a token while a controller is connected.
	slot chan struct{}
	// waiting counts controllers queued for the slot.
	waiting atomic.Int32
}

// New creates a server.
func New(devices DeviceLister, runner JobRunner) *Server {
	return &Server{
		devices: devices,
		runner:  runner,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The controller is a web page served from another origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		slot: make(chan struct{}, 1),
	}
}

// Router builds the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(requestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/devices", s.handleDevices)
	r.Get("/", s.handleConnect)
	r.Get("/ws", s.handleConnect)

	return r
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server_listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return errors.Wrap(err, "server failed")
		}
		return nil
	case <-ctx.Done():
		slog.Info("server_shutdown", "addr", addr)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.listDevices(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, deviceSnapshot{Devices: devices})
}

// listDevices never returns a nil slice so the snapshot encodes as [].
func (s *Server) listDevices(ctx context.Context) ([]job.UsbDevice, error) {
	devices, err := s.devices.List(ctx)
	if err != nil {
		slog.Error("device_enumeration_failed", "error", err)
		return nil, err
	}
	if devices == nil {
		devices = []job.UsbDevice{}
	}
	return devices, nil
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("http_request",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"duration", time.Since(start))
	})
}
