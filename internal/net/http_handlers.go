// Package net exposes the game service over HTTP. Handlers translate JSON
// requests into service calls; every mutating route passes through a
// per-client rate limiter before touching game state.
package net

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	nethttp "net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"stardrift/server/internal/combat"
	"stardrift/server/internal/game"
	"stardrift/server/internal/journal"
	"stardrift/server/internal/net/ws"
	"stardrift/server/internal/pathfind"
	"stardrift/server/internal/telemetry"
)

// GameSummary is one row of the game listing.
type GameSummary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Players   int    `json:"players"`
	Required  int    `json:"playersRequired"`
	Tick      uint64 `json:"tick"`
	Started   bool   `json:"started"`
	Finished  bool   `json:"finished"`
	TimeModel string `json:"timeModel"`
}

// Service is the game operation surface the HTTP layer requires.
type Service interface {
	CreateGame(ctx context.Context, settings game.Settings) (*game.Game, error)
	JoinGame(ctx context.Context, gameID, alias string) (*game.Player, error)
	Game(ctx context.Context, gameID string) (*game.Game, error)
	ListGames(ctx context.Context) []GameSummary
	IssueWaypoints(ctx context.Context, gameID, playerID, carrierID string, waypoints []*game.Waypoint, loop bool) error
	BuildCarrier(ctx context.Context, gameID, playerID, starID string, ships int) (*game.Carrier, error)
	SetReady(ctx context.Context, gameID, playerID string, ready bool) error
	SetResearch(ctx context.Context, gameID, playerID string, active game.Technology, queue []game.Technology) error
	ProposeDiplomacy(ctx context.Context, gameID, playerID, targetID string, status game.DiplomaticStatus) error
	RespondDiplomacy(ctx context.Context, gameID, playerID, fromPlayerID string, accept bool) error
	FindRoute(ctx context.Context, gameID, playerID, carrierID, fromStarID, toStarID string) (pathfind.Route, error)
}

type HTTPHandlerConfig struct {
	Logger  telemetry.Logger
	Metrics telemetry.Metrics
	Journal *journal.Journal

	// ActionRate throttles mutating requests per client address. Zero means
	// the default of five per second with a burst of ten.
	ActionRate  rate.Limit
	ActionBurst int
}

func NewHTTPHandler(svc Service, hub *ws.Hub, cfg HTTPHandlerConfig) nethttp.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.LoggerFunc(nil)
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = telemetry.NopMetrics()
	}

	limiters := newLimiterPool(cfg.ActionRate, cfg.ActionBurst)

	mux := nethttp.NewServeMux()

	mux.HandleFunc("/health", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/games", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		switch r.Method {
		case nethttp.MethodGet:
			writeJSON(w, svc.ListGames(r.Context()))
		case nethttp.MethodPost:
			if !limiters.allow(r) {
				httpError(w, "too many requests", nethttp.StatusTooManyRequests)
				return
			}
			settings := game.DefaultSettings()
			if !decodeBody(w, r, &settings) {
				return
			}
			g, err := svc.CreateGame(r.Context(), settings)
			if err != nil {
				httpError(w, err.Error(), nethttp.StatusBadRequest)
				return
			}
			metrics.Add("http_games_created", 1)
			writeJSON(w, g)
		default:
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/games/get", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		gameID := r.URL.Query().Get("game")
		if gameID == "" {
			httpError(w, "missing game", nethttp.StatusBadRequest)
			return
		}
		g, err := svc.Game(r.Context(), gameID)
		if err != nil {
			httpError(w, err.Error(), nethttp.StatusNotFound)
			return
		}
		writeJSON(w, g)
	})

	mux.HandleFunc("/games/join", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if !mutating(w, r, limiters) {
			return
		}
		var req struct {
			GameID string `json:"gameId"`
			Alias  string `json:"alias"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		if req.GameID == "" || req.Alias == "" {
			httpError(w, "missing gameId or alias", nethttp.StatusBadRequest)
			return
		}
		player, err := svc.JoinGame(r.Context(), req.GameID, req.Alias)
		if err != nil {
			httpError(w, err.Error(), nethttp.StatusBadRequest)
			return
		}
		writeJSON(w, player)
	})

	mux.HandleFunc("/carriers/waypoints", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if !mutating(w, r, limiters) {
			return
		}
		var req struct {
			GameID    string           `json:"gameId"`
			PlayerID  string           `json:"playerId"`
			CarrierID string           `json:"carrierId"`
			Waypoints []*game.Waypoint `json:"waypoints"`
			Loop      bool             `json:"loop"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		if err := svc.IssueWaypoints(r.Context(), req.GameID, req.PlayerID, req.CarrierID, req.Waypoints, req.Loop); err != nil {
			httpError(w, err.Error(), statusFor(err))
			return
		}
		writeJSON(w, okResponse{Status: "ok"})
	})

	mux.HandleFunc("/carriers/build", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if !mutating(w, r, limiters) {
			return
		}
		var req struct {
			GameID   string `json:"gameId"`
			PlayerID string `json:"playerId"`
			StarID   string `json:"starId"`
			Ships    int    `json:"ships"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		carrier, err := svc.BuildCarrier(r.Context(), req.GameID, req.PlayerID, req.StarID, req.Ships)
		if err != nil {
			httpError(w, err.Error(), statusFor(err))
			return
		}
		writeJSON(w, carrier)
	})

	mux.HandleFunc("/carriers/route", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		q := r.URL.Query()
		route, err := svc.FindRoute(r.Context(), q.Get("game"), q.Get("player"), q.Get("carrier"), q.Get("from"), q.Get("to"))
		if err != nil {
			if errors.Is(err, pathfind.ErrNoRoute) {
				httpError(w, err.Error(), nethttp.StatusNotFound)
				return
			}
			httpError(w, err.Error(), statusFor(err))
			return
		}
		writeJSON(w, route)
	})

	mux.HandleFunc("/players/ready", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if !mutating(w, r, limiters) {
			return
		}
		var req struct {
			GameID   string `json:"gameId"`
			PlayerID string `json:"playerId"`
			Ready    bool   `json:"ready"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		if err := svc.SetReady(r.Context(), req.GameID, req.PlayerID, req.Ready); err != nil {
			httpError(w, err.Error(), statusFor(err))
			return
		}
		writeJSON(w, okResponse{Status: "ok"})
	})

	mux.HandleFunc("/players/research", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if !mutating(w, r, limiters) {
			return
		}
		var req struct {
			GameID   string            `json:"gameId"`
			PlayerID string            `json:"playerId"`
			Active   game.Technology   `json:"active"`
			Queue    []game.Technology `json:"queue"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		if err := svc.SetResearch(r.Context(), req.GameID, req.PlayerID, req.Active, req.Queue); err != nil {
			httpError(w, err.Error(), statusFor(err))
			return
		}
		writeJSON(w, okResponse{Status: "ok"})
	})

	mux.HandleFunc("/diplomacy/propose", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if !mutating(w, r, limiters) {
			return
		}
		var req struct {
			GameID   string                `json:"gameId"`
			PlayerID string                `json:"playerId"`
			TargetID string                `json:"targetId"`
			Status   game.DiplomaticStatus `json:"status"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		if err := svc.ProposeDiplomacy(r.Context(), req.GameID, req.PlayerID, req.TargetID, req.Status); err != nil {
			httpError(w, err.Error(), statusFor(err))
			return
		}
		writeJSON(w, okResponse{Status: "ok"})
	})

	mux.HandleFunc("/diplomacy/respond", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if !mutating(w, r, limiters) {
			return
		}
		var req struct {
			GameID       string `json:"gameId"`
			PlayerID     string `json:"playerId"`
			FromPlayerID string `json:"fromPlayerId"`
			Accept       bool   `json:"accept"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		if err := svc.RespondDiplomacy(r.Context(), req.GameID, req.PlayerID, req.FromPlayerID, req.Accept); err != nil {
			httpError(w, err.Error(), statusFor(err))
			return
		}
		writeJSON(w, okResponse{Status: "ok"})
	})

	// Pure calculator for the client's pre-battle estimate. Never touches
	// game state.
	mux.HandleFunc("/combat/preview", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodPost {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		var req struct {
			Ruleset   string      `json:"ruleset"`
			TurnBased bool        `json:"turnBased"`
			Defender  combat.Side `json:"defender"`
			Attacker  combat.Side `json:"attacker"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		resolver := combat.ForRuleset(req.Ruleset)
		writeJSON(w, resolver.Resolve(req.Defender, req.Attacker, req.TurnBased))
	})

	if cfg.Journal != nil {
		mux.HandleFunc("/journal", func(w nethttp.ResponseWriter, r *nethttp.Request) {
			gameID := r.URL.Query().Get("game")
			if gameID == "" {
				httpError(w, "missing game", nethttp.StatusBadRequest)
				return
			}
			writeJSON(w, cfg.Journal.Recent(gameID, 100))
		})
	}

	if hub != nil {
		wsHandler := ws.NewHandler(hub, ws.HandlerConfig{Logger: logger})
		mux.HandleFunc("/ws", wsHandler.Handle)
	}

	return mux
}

type okResponse struct {
	Status string `json:"status"`
}

func mutating(w nethttp.ResponseWriter, r *nethttp.Request, limiters *limiterPool) bool {
	if r.Method != nethttp.MethodPost {
		httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
		return false
	}
	if !limiters.allow(r) {
		httpError(w, "too many requests", nethttp.StatusTooManyRequests)
		return false
	}
	return true
}

func decodeBody(w nethttp.ResponseWriter, r *nethttp.Request, dst any) bool {
	if r.Body == nil {
		httpError(w, "missing body", nethttp.StatusBadRequest)
		return false
	}
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		httpError(w, "invalid payload", nethttp.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w nethttp.ResponseWriter, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		httpError(w, "failed to encode", nethttp.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, game.ErrGameLocked):
		return nethttp.StatusConflict
	case errors.Is(err, game.ErrNotParticipant):
		return nethttp.StatusForbidden
	default:
		return nethttp.StatusBadRequest
	}
}

func httpError(w nethttp.ResponseWriter, msg string, code int) {
	nethttp.Error(w, msg, code)
}

// limiterPool hands out one token bucket per client address.
type limiterPool struct {
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	lastSeen map[string]time.Time
}

func newLimiterPool(limit rate.Limit, burst int) *limiterPool {
	if limit <= 0 {
		limit = rate.Limit(5)
	}
	if burst <= 0 {
		burst = 10
	}
	return &limiterPool{
		limit:    limit,
		burst:    burst,
		limiters: make(map[string]*rate.Limiter),
		lastSeen: make(map[string]time.Time),
	}
}

func (p *limiterPool) allow(r *nethttp.Request) bool {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	limiter, ok := p.limiters[host]
	if !ok {
		p.pruneLocked(now)
		limiter = rate.NewLimiter(p.limit, p.burst)
		p.limiters[host] = limiter
	}
	p.lastSeen[host] = now
	return limiter.Allow()
}

// pruneLocked drops buckets idle for over an hour so the pool cannot grow
// without bound. Caller holds p.mu.
func (p *limiterPool) pruneLocked(now time.Time) {
	if len(p.limiters) < 1024 {
		return
	}
	for host, seen := range p.lastSeen {
		if now.Sub(seen) > time.Hour {
			delete(p.limiters, host)
			delete(p.lastSeen, host)
		}
	}
}
