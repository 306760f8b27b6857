package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"stardrift/server/internal/events"
	"stardrift/server/internal/journal"
	"stardrift/server/logging"
)

func dialTestServer(t *testing.T, server *httptest.Server, gameID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?game=" + gameID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) events.Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var event events.Event
	if err := json.Unmarshal(data, &event); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return event
}

func newTestServer(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", NewHandler(hub, HandlerConfig{}).Handle)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func waitForSubscribers(t *testing.T, hub *Hub, gameID string, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.Subscribers(gameID) == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("subscribers for %s never reached %d", gameID, want)
}

func TestHubBroadcastsToSubscribedGame(t *testing.T) {
	hub := NewHub(Config{})
	defer hub.Close()
	server := newTestServer(t, hub)

	conn := dialTestServer(t, server, "g1")
	waitForSubscribers(t, hub, "g1", 1)

	hub.Notify(context.Background(), events.Event{Type: events.TypeStarCaptured, GameID: "g1", Tick: 5})

	got := readEvent(t, conn)
	if got.Type != events.TypeStarCaptured || got.Tick != 5 {
		t.Fatalf("received event = %+v", got)
	}
}

func TestHubScopesEventsPerGame(t *testing.T) {
	hub := NewHub(Config{})
	defer hub.Close()
	server := newTestServer(t, hub)

	other := dialTestServer(t, server, "g2")
	waitForSubscribers(t, hub, "g2", 1)

	hub.Notify(context.Background(), events.Event{Type: events.TypeStarCaptured, GameID: "g1", Tick: 1})
	hub.Notify(context.Background(), events.Event{Type: events.TypeGameEnded, GameID: "g2", Tick: 2})

	got := readEvent(t, other)
	if got.GameID != "g2" || got.Type != events.TypeGameEnded {
		t.Fatalf("cross-game event leaked: %+v", got)
	}
}

func TestSubscribeReplaysJournal(t *testing.T) {
	j := journal.New(16, nil)
	j.Write(logging.Event{Type: "combat.star_clash", GameID: "g1", Tick: 3})
	j.Write(logging.Event{Type: "simulation.tick_complete", GameID: "g1", Tick: 4})

	hub := NewHub(Config{Journal: j})
	defer hub.Close()
	server := newTestServer(t, hub)

	conn := dialTestServer(t, server, "g1")

	first := readEvent(t, conn)
	second := readEvent(t, conn)
	if first.Tick != 3 || second.Tick != 4 {
		t.Fatalf("replayed ticks = %d, %d, want 3, 4", first.Tick, second.Tick)
	}
}

func TestHandlerRequiresGameParam(t *testing.T) {
	hub := NewHub(Config{})
	defer hub.Close()
	server := newTestServer(t, hub)

	resp, err := http.Get(server.URL + "/ws")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestUnsubscribeOnDisconnect(t *testing.T) {
	hub := NewHub(Config{})
	defer hub.Close()
	server := newTestServer(t, hub)

	conn := dialTestServer(t, server, "g1")
	waitForSubscribers(t, hub, "g1", 1)

	conn.Close()
	waitForSubscribers(t, hub, "g1", 0)
}

func TestClosedHubRejectsSubscribers(t *testing.T) {
	hub := NewHub(Config{})
	server := newTestServer(t, hub)
	hub.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?game=g1"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		// The server may tear the connection down before the handshake
		// completes; either way no subscription exists.
		return
	}
	defer conn.Close()

	if hub.Subscribers("g1") != 0 {
		t.Fatal("closed hub accepted a subscription")
	}
}
