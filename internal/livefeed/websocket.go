package livefeed

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"emotrack/internal/logging"
)

const (
	writeDeadline = 5 * time.Second
	pingInterval  = 30 * time.Second
	pongDeadline  = 60 * time.Second
)

// WebsocketHandler streams hub events to websocket clients as JSON text frames.
type WebsocketHandler struct {
	hub      *Hub
	clock    clockwork.Clock
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewWebsocketHandler creates a handler. checkOrigin may be nil to accept
// same-origin requests only.
func NewWebsocketHandler(hub *Hub, clock clockwork.Clock, checkOrigin func(*http.Request) bool, logger *slog.Logger) *WebsocketHandler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &WebsocketHandler{
		hub:      hub,
		clock:    clock,
		upgrader: websocket.Upgrader{CheckOrigin: checkOrigin},
		logger:   logging.NewComponentLogger(logger, "livefeed"),
	}
}

func (h *WebsocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", logging.Error(err))
		return
	}
	sub := h.hub.Subscribe(defaultBuffer)
	defer sub.Cancel()

	closed := make(chan struct{})
	go h.readLoop(conn, closed)

	ticker := h.clock.NewTicker(pingInterval)
	defer ticker.Stop()
	defer conn.Close()

	for {
		select {
		case evt, ok := <-sub.Events():
			if !ok {
				return
			}
			payload, err := json.Marshal(evt)
			if err != nil {
				continue
			}
			_ = conn.SetWriteDeadline(h.clock.Now().Add(writeDeadline))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.Chan():
			_ = conn.SetWriteDeadline(h.clock.Now().Add(writeDeadline))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}

// readLoop drains client frames so pongs and close frames are processed.
func (h *WebsocketHandler) readLoop(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)
	_ = conn.SetReadDeadline(h.clock.Now().Add(pongDeadline))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(h.clock.Now().Add(pongDeadline))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
