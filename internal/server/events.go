package server

import (
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/desertthunder/hlsx/internal/tracker"
)

const (
	writeTimeout = 5 * time.Second
	pongTimeout  = 60 * time.Second
	pingInterval = pongTimeout * 9 / 10
)

// ChangeEvent is the message pushed to WebSocket clients.
type ChangeEvent struct {
	Event string `json:"event"`
}

// upgrader keeps gorilla's same-origin check: a browser page from another host cannot attach.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// EventsHandler streams tracked-set changes over WebSocket.
type EventsHandler struct {
	cache  Cache
	logger *log.Logger
}

// NewEventsHandler creates an [EventsHandler] served at /ws.
func NewEventsHandler(cache Cache, logger *log.Logger) *EventsHandler {
	return &EventsHandler{cache: cache, logger: logger}
}

func (h *EventsHandler) Routes() []string { return []string{"/ws"} }

func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	changed := make(chan struct{}, 1)
	listener := tracker.NewFuncListener(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	h.cache.AddListener(listener)
	defer h.cache.RemoveListener(listener)

	closed := make(chan struct{})
	go h.readLoop(conn, closed)

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	h.logger.Debug("WebSocket client connected", "remote", r.RemoteAddr)
	for {
		select {
		case <-closed:
			h.logger.Debug("WebSocket client disconnected", "remote", r.RemoteAddr)
			return
		case <-changed:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(ChangeEvent{Event: "changed"}); err != nil {
				h.logger.Debug("WebSocket write failed", "error", err)
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}

// readLoop discards client messages and closes done when the connection ends.
func (h *EventsHandler) readLoop(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	_ = conn.SetReadDeadline(time.Now().Add(pongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
