package net

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/time/rate"

	"stardrift/server/internal/combat"
	"stardrift/server/internal/game"
	"stardrift/server/internal/journal"
	"stardrift/server/internal/pathfind"
	"stardrift/server/logging"
)

// fakeService satisfies Service with overridable hooks; unset hooks succeed
// with zero values.
type fakeService struct {
	createGame     func(ctx context.Context, settings game.Settings) (*game.Game, error)
	joinGame       func(ctx context.Context, gameID, alias string) (*game.Player, error)
	getGame        func(ctx context.Context, gameID string) (*game.Game, error)
	listGames      func(ctx context.Context) []GameSummary
	issueWaypoints func(ctx context.Context, gameID, playerID, carrierID string, waypoints []*game.Waypoint, loop bool) error
	findRoute      func(ctx context.Context, gameID, playerID, carrierID, fromStarID, toStarID string) (pathfind.Route, error)
}

func (f *fakeService) CreateGame(ctx context.Context, settings game.Settings) (*game.Game, error) {
	if f.createGame != nil {
		return f.createGame(ctx, settings)
	}
	return &game.Game{ID: "new", Settings: settings}, nil
}

func (f *fakeService) JoinGame(ctx context.Context, gameID, alias string) (*game.Player, error) {
	if f.joinGame != nil {
		return f.joinGame(ctx, gameID, alias)
	}
	return &game.Player{ID: "p1", Alias: alias}, nil
}

func (f *fakeService) Game(ctx context.Context, gameID string) (*game.Game, error) {
	if f.getGame != nil {
		return f.getGame(ctx, gameID)
	}
	return &game.Game{ID: gameID}, nil
}

func (f *fakeService) ListGames(ctx context.Context) []GameSummary {
	if f.listGames != nil {
		return f.listGames(ctx)
	}
	return nil
}

func (f *fakeService) IssueWaypoints(ctx context.Context, gameID, playerID, carrierID string, waypoints []*game.Waypoint, loop bool) error {
	if f.issueWaypoints != nil {
		return f.issueWaypoints(ctx, gameID, playerID, carrierID, waypoints, loop)
	}
	return nil
}

func (f *fakeService) BuildCarrier(context.Context, string, string, string, int) (*game.Carrier, error) {
	return &game.Carrier{ID: "c1"}, nil
}

func (f *fakeService) SetReady(context.Context, string, string, bool) error { return nil }

func (f *fakeService) SetResearch(context.Context, string, string, game.Technology, []game.Technology) error {
	return nil
}

func (f *fakeService) ProposeDiplomacy(context.Context, string, string, string, game.DiplomaticStatus) error {
	return nil
}

func (f *fakeService) RespondDiplomacy(context.Context, string, string, string, bool) error {
	return nil
}

func (f *fakeService) FindRoute(ctx context.Context, gameID, playerID, carrierID, fromStarID, toStarID string) (pathfind.Route, error) {
	if f.findRoute != nil {
		return f.findRoute(ctx, gameID, playerID, carrierID, fromStarID, toStarID)
	}
	return pathfind.Route{}, nil
}

func doRequest(handler http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	req.RemoteAddr = "192.0.2.1:4242"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	handler := NewHTTPHandler(&fakeService{}, nil, HTTPHandlerConfig{})
	rec := doRequest(handler, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("health = %d %q", rec.Code, rec.Body.String())
	}
}

func TestListGames(t *testing.T) {
	svc := &fakeService{listGames: func(context.Context) []GameSummary {
		return []GameSummary{{ID: "g1", Name: "official", Players: 1, Required: 2}}
	}}
	handler := NewHTTPHandler(svc, nil, HTTPHandlerConfig{})

	rec := doRequest(handler, http.MethodGet, "/games", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got []GameSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0].ID != "g1" || got[0].Required != 2 {
		t.Fatalf("listing = %+v", got)
	}
}

func TestCreateGameOverlaysDefaults(t *testing.T) {
	var received game.Settings
	svc := &fakeService{createGame: func(_ context.Context, settings game.Settings) (*game.Game, error) {
		received = settings
		return &game.Game{ID: "new", Settings: settings}, nil
	}}
	handler := NewHTTPHandler(svc, nil, HTTPHandlerConfig{})

	rec := doRequest(handler, http.MethodPost, "/games", map[string]any{
		"name":      "skirmish",
		"gameSpeed": 12,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	if received.Name != "skirmish" || received.GameSpeed != 12 {
		t.Fatalf("overrides not applied: %+v", received)
	}
	// Unmentioned knobs keep the official defaults.
	if received.ProductionTicks != 24 || received.StarsPerPlayer != 8 {
		t.Fatalf("defaults lost: %+v", received)
	}
}

func TestGetGameRequiresID(t *testing.T) {
	handler := NewHTTPHandler(&fakeService{}, nil, HTTPHandlerConfig{})
	if rec := doRequest(handler, http.MethodGet, "/games/get", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing game param = %d, want 400", rec.Code)
	}
}

func TestJoinGame(t *testing.T) {
	handler := NewHTTPHandler(&fakeService{}, nil, HTTPHandlerConfig{})

	if rec := doRequest(handler, http.MethodGet, "/games/join", nil); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET join = %d, want 405", rec.Code)
	}
	rec := doRequest(handler, http.MethodPost, "/games/join", map[string]string{"gameId": "g1"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("aliasless join = %d, want 400", rec.Code)
	}

	rec = doRequest(handler, http.MethodPost, "/games/join", map[string]string{"gameId": "g1", "alias": "Ada"})
	if rec.Code != http.StatusOK {
		t.Fatalf("join = %d body = %s", rec.Code, rec.Body.String())
	}
	var player game.Player
	if err := json.Unmarshal(rec.Body.Bytes(), &player); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if player.Alias != "Ada" {
		t.Fatalf("player = %+v", player)
	}
}

func TestInvalidBodyRejected(t *testing.T) {
	handler := NewHTTPHandler(&fakeService{}, nil, HTTPHandlerConfig{})
	req := httptest.NewRequest(http.MethodPost, "/games/join", strings.NewReader("{not json"))
	req.RemoteAddr = "192.0.2.1:4242"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid body = %d, want 400", rec.Code)
	}
}

func TestErrorStatusMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"locked", game.ErrGameLocked, http.StatusConflict},
		{"outsider", game.ErrNotParticipant, http.StatusForbidden},
		{"other", context.DeadlineExceeded, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &fakeService{issueWaypoints: func(context.Context, string, string, string, []*game.Waypoint, bool) error {
				return tc.err
			}}
			handler := NewHTTPHandler(svc, nil, HTTPHandlerConfig{})
			rec := doRequest(handler, http.MethodPost, "/carriers/waypoints", map[string]string{"gameId": "g1"})
			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d", rec.Code, tc.want)
			}
		})
	}
}

func TestRouteNotFound(t *testing.T) {
	svc := &fakeService{findRoute: func(context.Context, string, string, string, string, string) (pathfind.Route, error) {
		return pathfind.Route{}, pathfind.ErrNoRoute
	}}
	handler := NewHTTPHandler(svc, nil, HTTPHandlerConfig{})

	rec := doRequest(handler, http.MethodGet, "/carriers/route?game=g1&player=p1&carrier=c1&from=a&to=b", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unreachable route = %d, want 404", rec.Code)
	}
}

func TestCombatPreviewIsPure(t *testing.T) {
	handler := NewHTTPHandler(&fakeService{}, nil, HTTPHandlerConfig{})

	rec := doRequest(handler, http.MethodPost, "/combat/preview", map[string]any{
		"ruleset":   "classic",
		"turnBased": true,
		"defender":  map[string]int{"ships": 10, "weaponsLevel": 2},
		"attacker":  map[string]int{"ships": 20, "weaponsLevel": 3},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("preview = %d body = %s", rec.Code, rec.Body.String())
	}
	var result combat.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.After.Defender != 0 || result.After.Attacker != 14 {
		t.Fatalf("preview result = %+v", result.After)
	}
}

func TestMutatingRoutesAreRateLimited(t *testing.T) {
	handler := NewHTTPHandler(&fakeService{}, nil, HTTPHandlerConfig{
		ActionRate:  rate.Limit(0.001),
		ActionBurst: 1,
	})

	body := map[string]string{"gameId": "g1", "alias": "Ada"}
	if rec := doRequest(handler, http.MethodPost, "/games/join", body); rec.Code != http.StatusOK {
		t.Fatalf("first request = %d", rec.Code)
	}
	if rec := doRequest(handler, http.MethodPost, "/games/join", body); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request = %d, want 429", rec.Code)
	}
}

func TestJournalEndpoint(t *testing.T) {
	j := journal.New(16, nil)
	j.Write(logging.Event{Type: "test.event", GameID: "g1", Tick: 2})
	handler := NewHTTPHandler(&fakeService{}, nil, HTTPHandlerConfig{Journal: j})

	if rec := doRequest(handler, http.MethodGet, "/journal", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing game param = %d, want 400", rec.Code)
	}

	rec := doRequest(handler, http.MethodGet, "/journal?game=g1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("journal = %d", rec.Code)
	}
	var events []logging.Event
	if err := json.Unmarshal(rec.Body.Bytes(), &events); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(events) != 1 || events[0].Tick != 2 {
		t.Fatalf("journal events = %+v", events)
	}
}
