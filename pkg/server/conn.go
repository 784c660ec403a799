package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/webbboot/companion/pkg/errors"
	"github.com/webbboot/companion/pkg/job"
	"github.com/webbboot/companion/pkg/progress"
)

// handleConnect upgrades to a websocket and serves the controller. A second
// controller waits until the first disconnects; if it goes away while
// waiting it gives up its place.
func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	if !websocket.IsWebSocketUpgrade(r) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("webbboot companion"))
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket_upgrade_failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	defer ws.Close()

	done := make(chan struct{})
	defer close(done)
	inbox := make(chan inbound)
	go readLoop(ws, inbox, done)

	// Messages sent while waiting are kept and handled in order.
	var pending []inbound
	s.waiting.Add(1)
	for acquired := false; !acquired; {
		select {
		case s.slot <- struct{}{}:
			acquired = true
		case in := <-inbox:
			if in.err != nil {
				s.waiting.Add(-1)
				slog.Info("controller_left_while_waiting", "remote", r.RemoteAddr)
				return
			}
			pending = append(pending, in)
		}
	}
	s.waiting.Add(-1)
	defer func() { <-s.slot }()

	slog.Info("controller_connected", "remote", r.RemoteAddr)
	s.serve(r.Context(), newConn(ws), pending, inbox)
	slog.Info("controller_disconnected", "remote", r.RemoteAddr)
}

// inbound is one read from the websocket.
type inbound struct {
	msgType int
	data    []byte
	err     error
}

// readLoop forwards reads until the socket fails. The channel is
// unbuffered, so at most one message is read ahead of the consumer.
func readLoop(ws *websocket.Conn, inbox chan<- inbound, done <-chan struct{}) {
	for {
		msgType, data, err := ws.ReadMessage()
		select {
		case inbox <- inbound{msgType: msgType, data: data, err: err}:
		case <-done:
			return
		}
		if err != nil {
			return
		}
	}
}

// conn serialises writes to one websocket.
type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func newConn(ws *websocket.Conn) *conn {
	return &conn{ws: ws}
}

func (c *conn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteJSON(v)
}

// Send implements progress.Sink.
func (c *conn) Send(ev progress.Event) error {
	data, err := ev.Marshal()
	if err != nil {
		return errors.Wrap(err, "encode progress")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// serve handles the controller's messages. Jobs are executed inline, so
// the next message is not handled until the current job is terminal.
func (s *Server) serve(ctx context.Context, c *conn, pending []inbound, inbox <-chan inbound) {
	devices, err := s.listDevices(ctx)
	if err != nil {
		// The controller still gets a snapshot; it just lists nothing.
		devices = []job.UsbDevice{}
	}
	if err := c.writeJSON(deviceSnapshot{Devices: devices}); err != nil {
		slog.Error("device_snapshot_send_failed", "error", err)
		return
	}

	next := func() inbound {
		if len(pending) > 0 {
			in := pending[0]
			pending = pending[1:]
			return in
		}
		return <-inbox
	}

	for {
		in := next()
		if in.err != nil {
			if !websocket.IsCloseError(in.err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Warn("websocket_read_failed", "error", in.err)
			}
			return
		}
		if in.msgType != websocket.TextMessage {
			continue
		}

		j, err := decodeJob(in.data)
		if err != nil {
			slog.Warn("invalid_job_payload", "error", err)
			if err := c.writeJSON(progress.InvalidJob); err != nil {
				slog.Error("invalid_job_reply_failed", "error", errors.Wrap(err, "write reply"))
				return
			}
			continue
		}

		slog.Info("job_received", "job", j.String())
		result := s.runner.Run(ctx, j, c)
		slog.Info("job_done", "job_id", result.JobID, "progress", result.Final.Progress)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
