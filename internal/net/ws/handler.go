package ws

import (
	nethttp "net/http"

	"github.com/gorilla/websocket"

	"stardrift/server/internal/telemetry"
)

// Handler upgrades HTTP requests into hub subscriptions.
type Handler struct {
	hub      *Hub
	logger   telemetry.Logger
	upgrader websocket.Upgrader
}

type HandlerConfig struct {
	Logger telemetry.Logger
}

func NewHandler(hub *Hub, cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.LoggerFunc(nil)
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *nethttp.Request) bool {
			return true
		},
	}

	return &Handler{
		hub:      hub,
		logger:   logger,
		upgrader: upgrader,
	}
}

// Handle subscribes the caller to a game's event stream. The stream is
// one-way; any message from the client just keeps the read side alive until
// the peer disconnects.
func (h *Handler) Handle(w nethttp.ResponseWriter, r *nethttp.Request) {
	gameID := r.URL.Query().Get("game")
	if gameID == "" {
		nethttp.Error(w, "missing game", nethttp.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("upgrade failed for game %s: %v", gameID, err)
		return
	}

	session := h.hub.Subscribe(gameID, conn)
	if session == nil {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		conn.Close()
		return
	}

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.hub.Unsubscribe(session)
			return
		}
	}
}
