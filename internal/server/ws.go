package server

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"pairchat/internal/util"
	"pairchat/pkg/domain"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The REST surface is fully open; the socket follows suit.
	CheckOrigin: func(*http.Request) bool { return true },
}

// wsInbound is a client frame. "send" runs the message pipeline,
// "typing" publishes an ephemeral typing signal.
type wsInbound struct {
	Type    string          `json:"type"`
	Message *messageRequest `json:"message,omitempty"`
	Typing  *domain.Typing  `json:"typing,omitempty"`
}

type wsError struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// wsConn serializes writes: the fan-out pump and the read loop's error
// replies share the connection.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

// handleWS upgrades the connection, attaches it to the shared broadcast
// channel and relays inbound frames. Every subscriber sees every
// message; filtering to the intended recipient happens client-side.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	raw, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "err", err,
			"request_id", util.RequestIDFromRequest(r))
		return
	}
	conn := &wsConn{conn: raw}
	sub := s.app.Hub().Subscribe()
	defer func() {
		sub.Close()
		raw.Close()
	}()

	go func() {
		for ev := range sub.C {
			if err := conn.writeJSON(ev); err != nil {
				return
			}
		}
	}()

	for {
		var in wsInbound
		if err := raw.ReadJSON(&in); err != nil {
			return
		}
		switch in.Type {
		case "send":
			if in.Message == nil {
				_ = conn.writeJSON(wsError{Type: "error", Error: "message payload required"})
				continue
			}
			if _, err := s.app.SendMessage(in.Message.toInput()); err != nil {
				_ = conn.writeJSON(wsError{Type: "error", Error: err.Error()})
			}
		case "typing":
			if in.Typing == nil {
				_ = conn.writeJSON(wsError{Type: "error", Error: "typing payload required"})
				continue
			}
			if err := s.app.Typing(*in.Typing); err != nil {
				_ = conn.writeJSON(wsError{Type: "error", Error: err.Error()})
			}
		default:
			_ = conn.writeJSON(wsError{Type: "error", Error: "unknown frame type"})
		}
	}
}
