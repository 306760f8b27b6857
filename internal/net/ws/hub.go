// Package ws pushes simulation events to subscribed websocket clients. The
// hub fans each game's events out to that game's sessions; slow readers are
// dropped rather than allowed to stall the tick loop.
package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"

	"stardrift/server/internal/events"
	"stardrift/server/internal/journal"
	"stardrift/server/internal/telemetry"
)

const sessionSendBuffer = 64

// Hub tracks live sessions per game and implements events.Notifier so the
// tick engine can publish without knowing about websockets.
type Hub struct {
	logger  telemetry.Logger
	metrics telemetry.Metrics
	journal *journal.Journal

	mu       sync.Mutex
	sessions map[string]map[*Session]struct{}
	closed   bool
}

type Config struct {
	Logger  telemetry.Logger
	Metrics telemetry.Metrics
	Journal *journal.Journal
}

func NewHub(cfg Config) *Hub {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.LoggerFunc(nil)
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = telemetry.NopMetrics()
	}
	return &Hub{
		logger:   logger,
		metrics:  metrics,
		journal:  cfg.Journal,
		sessions: make(map[string]map[*Session]struct{}),
	}
}

var _ events.Notifier = (*Hub)(nil)

// Notify broadcasts the event to every session subscribed to its game.
// Sessions whose send buffer is full are disconnected.
func (h *Hub) Notify(_ context.Context, event events.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Printf("ws: failed to marshal %s event for game %s: %v", event.Type, event.GameID, err)
		return
	}

	h.mu.Lock()
	subs := make([]*Session, 0, len(h.sessions[event.GameID]))
	for session := range h.sessions[event.GameID] {
		subs = append(subs, session)
	}
	h.mu.Unlock()

	for _, session := range subs {
		if !session.enqueue(data) {
			h.logger.Printf("ws: dropping slow session for game %s", event.GameID)
			h.remove(session)
			session.close()
		}
	}
	h.metrics.Add("ws_events_broadcast", uint64(len(subs)))
}

// Subscribe registers a connection for a game's event stream and starts its
// writer. When a journal is wired, recent entries for the game are replayed
// so late joiners see what they missed.
func (h *Hub) Subscribe(gameID string, conn *websocket.Conn) *Session {
	session := newSession(gameID, conn)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		session.close()
		return nil
	}
	if h.sessions[gameID] == nil {
		h.sessions[gameID] = make(map[*Session]struct{})
	}
	h.sessions[gameID][session] = struct{}{}
	h.mu.Unlock()

	go session.writeLoop()

	if h.journal != nil {
		for _, entry := range h.journal.Recent(gameID, 50) {
			data, err := json.Marshal(entry)
			if err != nil {
				continue
			}
			if !session.enqueue(data) {
				break
			}
		}
	}
	h.metrics.Add("ws_sessions_opened", 1)
	return session
}

// Unsubscribe removes the session and closes its connection. Safe to call
// more than once.
func (h *Hub) Unsubscribe(session *Session) {
	if session == nil {
		return
	}
	h.remove(session)
	session.close()
	h.metrics.Add("ws_sessions_closed", 1)
}

// Close disconnects every session and rejects new subscriptions.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	all := make([]*Session, 0)
	for _, set := range h.sessions {
		for session := range set {
			all = append(all, session)
		}
	}
	h.sessions = make(map[string]map[*Session]struct{})
	h.mu.Unlock()

	for _, session := range all {
		session.close()
	}
}

// Subscribers reports how many sessions are watching a game.
func (h *Hub) Subscribers(gameID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions[gameID])
}

func (h *Hub) remove(session *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.sessions[session.gameID]
	delete(set, session)
	if len(set) == 0 {
		delete(h.sessions, session.gameID)
	}
}
