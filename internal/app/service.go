package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"stardrift/server/internal/galaxy"
	"stardrift/server/internal/game"
	"stardrift/server/internal/geom"
	"stardrift/server/internal/journal"
	"stardrift/server/internal/mutex"
	"stardrift/server/internal/net"
	"stardrift/server/internal/pathfind"
	"stardrift/server/internal/store"
	"stardrift/server/internal/telemetry"
	"stardrift/server/internal/tick"
	"stardrift/server/internal/travel"
	"stardrift/server/logging"
	"stardrift/server/logging/lifecycle"
)

var (
	// ErrGameNotFound rejects requests naming a game the registry has never
	// seen.
	ErrGameNotFound = errors.New("app: game not found")
	// ErrGameStarted rejects joins and starts on a game already under way.
	ErrGameStarted = errors.New("app: game already started")
	// ErrGameFull rejects joins once the player roster is complete.
	ErrGameFull = errors.New("app: game is full")
)

// Service owns the runtime game registry and serializes player actions
// against it. Every mutating entry point declares the players it touches,
// acquires their mutexes in sorted order, and releases them when done; the
// tick job runs under the same per-game serialization via the game lock.
type Service struct {
	logger    telemetry.Logger
	metrics   telemetry.Metrics
	publisher logging.Publisher
	store     *store.Store
	engine    *tick.Engine
	locks     *mutex.PlayerLocks
	journal   *journal.Journal

	mu    sync.Mutex
	games map[string]*game.Game
}

var _ net.Service = (*Service)(nil)

// ServiceConfig carries the service's collaborators. Store and Engine are
// required; the rest degrade to no-ops.
type ServiceConfig struct {
	Logger    telemetry.Logger
	Metrics   telemetry.Metrics
	Publisher logging.Publisher
	Store     *store.Store
	Engine    *tick.Engine
	Journal   *journal.Journal
}

func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.LoggerFunc(nil)
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = telemetry.NopMetrics()
	}
	publisher := cfg.Publisher
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	return &Service{
		logger:    logger,
		metrics:   metrics,
		publisher: publisher,
		store:     cfg.Store,
		engine:    cfg.Engine,
		journal:   cfg.Journal,
		locks:     mutex.NewPlayerLocks(logger),
		games:     make(map[string]*game.Game),
	}
}

// LoadOpenGames fills the registry from the store at startup. Games that
// fail to load are logged and skipped rather than blocking the rest.
func (s *Service) LoadOpenGames(ctx context.Context) error {
	ids, err := s.store.ListOpenGames(ctx)
	if err != nil {
		return err
	}
	loaded := 0
	for _, id := range ids {
		g, err := s.store.LoadGame(ctx, id)
		if err != nil {
			s.logger.Printf("app: skipping game %s: %v", id, err)
			continue
		}
		// A crash mid-tick can persist the advisory lock; nothing holds it
		// after a restart.
		g.Unlock()
		s.mu.Lock()
		s.games[id] = g
		s.mu.Unlock()
		loaded++
	}
	s.metrics.Store("games_loaded", uint64(loaded))
	return nil
}

// CreateGame registers a new unstarted game and persists it.
func (s *Service) CreateGame(ctx context.Context, settings game.Settings) (*game.Game, error) {
	if settings.Name == "" {
		settings.Name = "custom"
	}
	if settings.PlayersRequired < 2 {
		settings.PlayersRequired = 2
	}
	g := &game.Game{
		ID:       uuid.NewString(),
		Settings: settings,
		State:    game.State{TickLimit: settings.TickLimit},
	}

	if err := s.store.SaveGame(ctx, g); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.games[g.ID] = g
	s.mu.Unlock()

	lifecycle.GameCreated(ctx, s.publisher, g.ID, settings.Name)
	s.metrics.Add("games_created", 1)
	return g, nil
}

// JoinGame adds a player to an unstarted game. When the roster reaches the
// required size the galaxy is generated and the game starts.
func (s *Service) JoinGame(ctx context.Context, gameID, alias string) (*game.Player, error) {
	g, err := s.game(gameID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if g.State.StartedAt != nil {
		return nil, fmt.Errorf("%w: %s", ErrGameStarted, gameID)
	}
	if len(g.Galaxy.Players) >= g.Settings.PlayersRequired {
		return nil, fmt.Errorf("%w: %s", ErrGameFull, gameID)
	}
	for _, existing := range g.Galaxy.Players {
		if existing.Alias == alias {
			return nil, fmt.Errorf("app: alias %q already taken in game %s", alias, gameID)
		}
	}

	player := &game.Player{ID: uuid.NewString(), Alias: alias}
	g.Galaxy.Players = append(g.Galaxy.Players, player)

	if len(g.Galaxy.Players) == g.Settings.PlayersRequired {
		if err := s.startLocked(ctx, g); err != nil {
			return nil, err
		}
	}
	if err := s.store.SaveGame(ctx, g); err != nil {
		return nil, err
	}
	return player, nil
}

// startLocked generates the galaxy from the roster and marks the game
// started. Caller holds s.mu.
func (s *Service) startLocked(ctx context.Context, g *game.Game) error {
	seeds := make([]galaxy.PlayerSeed, 0, len(g.Galaxy.Players))
	for _, p := range g.Galaxy.Players {
		seeds = append(seeds, galaxy.PlayerSeed{ID: p.ID, Alias: p.Alias})
	}
	gal, err := galaxy.Generate(g.Settings, seeds, uint64(time.Now().UnixNano()))
	if err != nil {
		return fmt.Errorf("app: start game %s: %w", g.ID, err)
	}
	g.Galaxy = gal

	now := time.Now()
	g.State.StartedAt = &now
	lifecycle.GameStarted(ctx, s.publisher, g.ID)
	s.metrics.Add("games_started", 1)
	return nil
}

// Game returns the registry's copy of the game, falling back to the store
// for finished games that were evicted.
func (s *Service) Game(ctx context.Context, gameID string) (*game.Game, error) {
	g, err := s.game(gameID)
	if err == nil {
		return g, nil
	}
	g, storeErr := s.store.LoadGame(ctx, gameID)
	if storeErr != nil {
		if errors.Is(storeErr, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrGameNotFound, gameID)
		}
		return nil, storeErr
	}
	return g, nil
}

// ListGames lists the registry's games in a stable order.
func (s *Service) ListGames(_ context.Context) []net.GameSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	summaries := make([]net.GameSummary, 0, len(s.games))
	for _, g := range s.games {
		summaries = append(summaries, net.GameSummary{
			ID:        g.ID,
			Name:      g.Settings.Name,
			Players:   len(g.Galaxy.Players),
			Required:  g.Settings.PlayersRequired,
			Tick:      g.State.Tick,
			Started:   g.State.StartedAt != nil,
			Finished:  g.State.EndedAt != nil,
			TimeModel: string(g.Settings.TimeModel),
		})
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].ID < summaries[j].ID })
	return summaries
}

// IssueWaypoints replaces a carrier's route. Legs are validated against the
// owner's hyperspace range; the first leg may already be in flight, in which
// case only the remaining queue changes.
func (s *Service) IssueWaypoints(ctx context.Context, gameID, playerID, carrierID string, waypoints []*game.Waypoint, loop bool) error {
	return s.withPlayers(ctx, gameID, mutex.ActionPlayers{Acting: playerID}, func(g *game.Game, _ *game.Player) error {
		carrier := g.Galaxy.CarrierByID(carrierID)
		if carrier == nil {
			return fmt.Errorf("app: carrier %s not found in game %s", carrierID, gameID)
		}
		if carrier.OwnerID != playerID {
			return fmt.Errorf("app: carrier %s does not belong to player %s", carrierID, playerID)
		}

		prev := carrier.Location
		for i, wp := range waypoints {
			source := g.Galaxy.StarByID(wp.SourceStarID)
			dest := g.Galaxy.StarByID(wp.DestinationStarID)
			if dest == nil {
				return fmt.Errorf("app: waypoint %d names unknown star %s", i, wp.DestinationStarID)
			}
			from := prev
			if source != nil {
				from = source.Location
			}
			if !hopReachable(&g.Galaxy, carrier, source, dest, from) {
				return fmt.Errorf("app: waypoint %d to %s exceeds hyperspace range", i, dest.Name)
			}
			if wp.ID == "" {
				wp.ID = uuid.NewString()
			}
			if wp.Action == "" {
				wp.Action = game.ActionNone
			}
			prev = dest.Location
		}

		// An in-flight carrier keeps its current leg; only the queue behind
		// it may change.
		if carrier.InTransit() && len(waypoints) > 0 {
			current := carrier.Waypoints[0]
			if waypoints[0].DestinationStarID != current.DestinationStarID {
				waypoints = append([]*game.Waypoint{current}, waypoints...)
			} else {
				waypoints[0] = current
			}
		}
		carrier.Waypoints = waypoints
		carrier.WaypointsLoop = loop && len(waypoints) > 0
		if carrier.OrbitingStarID != "" && len(waypoints) > 0 {
			carrier.DelayRemaining = waypoints[0].DelayTicks
		}
		travel.RefreshETAs(&g.Galaxy, g.Settings, carrier)
		return nil
	})
}

// BuildCarrier launches a new carrier at one of the player's stars, moving
// ships from the garrison and charging the build cost.
func (s *Service) BuildCarrier(ctx context.Context, gameID, playerID, starID string, ships int) (*game.Carrier, error) {
	const carrierCost = 25

	var built *game.Carrier
	err := s.withPlayers(ctx, gameID, mutex.ActionPlayers{Acting: playerID}, func(g *game.Game, player *game.Player) error {
		star := g.Galaxy.StarByID(starID)
		if star == nil {
			return fmt.Errorf("app: star %s not found in game %s", starID, gameID)
		}
		if star.OwnerID != playerID {
			return fmt.Errorf("app: star %s does not belong to player %s", star.Name, playerID)
		}
		if ships < 1 || ships > star.Ships {
			return fmt.Errorf("app: star %s has %d ships, cannot crew %d", star.Name, star.Ships, ships)
		}
		if player.Credits < carrierCost {
			return fmt.Errorf("app: player %s cannot afford a carrier", playerID)
		}

		player.Credits -= carrierCost
		star.Ships -= ships
		built = &game.Carrier{
			ID:             uuid.NewString(),
			OwnerID:        playerID,
			Name:           fmt.Sprintf("%s I", star.Name),
			Location:       star.Location,
			OrbitingStarID: star.ID,
			Ships:          ships,
		}
		g.Galaxy.Carriers = append(g.Galaxy.Carriers, built)
		return nil
	})
	return built, err
}

// SetReady records a turn-based player's readiness for the next turn.
func (s *Service) SetReady(ctx context.Context, gameID, playerID string, ready bool) error {
	return s.withPlayers(ctx, gameID, mutex.ActionPlayers{Acting: playerID}, func(g *game.Game, player *game.Player) error {
		if !g.Settings.TurnBased() {
			return fmt.Errorf("app: game %s is not turn-based", gameID)
		}
		player.Ready = ready
		return nil
	})
}

// SetResearch switches a player's active research track and queue.
func (s *Service) SetResearch(ctx context.Context, gameID, playerID string, active game.Technology, queue []game.Technology) error {
	return s.withPlayers(ctx, gameID, mutex.ActionPlayers{Acting: playerID}, func(g *game.Game, player *game.Player) error {
		if !validTechnology(active) {
			return fmt.Errorf("app: unknown technology %q", active)
		}
		for _, tech := range queue {
			if !validTechnology(tech) {
				return fmt.Errorf("app: unknown technology %q", tech)
			}
		}
		player.Research.Active = active
		player.Research.Queue = queue
		return nil
	})
}

// ProposeDiplomacy offers a stance change to another player. Both players'
// mutexes are held so a simultaneous counter-proposal cannot interleave.
func (s *Service) ProposeDiplomacy(ctx context.Context, gameID, playerID, targetID string, status game.DiplomaticStatus) error {
	const proposalTTLTicks = 48

	action := mutex.ActionPlayers{Acting: playerID, Others: []string{targetID}}
	return s.withPlayers(ctx, gameID, action, func(g *game.Game, player *game.Player) error {
		target := g.Galaxy.PlayerByID(targetID)
		if target == nil {
			return fmt.Errorf("%w: %s in game %s", game.ErrNotParticipant, targetID, gameID)
		}
		switch status {
		case game.DiplomacyEnemies:
			// Declaring hostility needs no consent.
			if player.Diplomacy == nil {
				player.Diplomacy = map[string]game.DiplomaticStatus{}
			}
			player.Diplomacy[targetID] = game.DiplomacyEnemies
			return nil
		case game.DiplomacyNeutral, game.DiplomacyAllies:
			for _, pending := range target.Proposals {
				if pending.FromPlayerID == playerID {
					return fmt.Errorf("app: player %s already has a pending proposal to %s", playerID, targetID)
				}
			}
			target.Proposals = append(target.Proposals, game.DiplomaticProposal{
				FromPlayerID: playerID,
				ToPlayerID:   targetID,
				Status:       status,
				ExpiresTick:  g.State.Tick + proposalTTLTicks,
			})
			return nil
		default:
			return fmt.Errorf("app: unknown diplomatic status %q", status)
		}
	})
}

// RespondDiplomacy accepts or declines the pending proposal from the named
// player. Accepting applies the stance on both sides.
func (s *Service) RespondDiplomacy(ctx context.Context, gameID, playerID, fromPlayerID string, accept bool) error {
	action := mutex.ActionPlayers{Acting: playerID, Others: []string{fromPlayerID}}
	return s.withPlayers(ctx, gameID, action, func(g *game.Game, player *game.Player) error {
		idx := -1
		for i, pending := range player.Proposals {
			if pending.FromPlayerID == fromPlayerID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("app: no pending proposal from %s to %s", fromPlayerID, playerID)
		}
		proposal := player.Proposals[idx]
		player.Proposals = append(player.Proposals[:idx], player.Proposals[idx+1:]...)
		if !accept {
			return nil
		}

		other := g.Galaxy.PlayerByID(fromPlayerID)
		if other == nil {
			return fmt.Errorf("%w: %s in game %s", game.ErrNotParticipant, fromPlayerID, gameID)
		}
		if player.Diplomacy == nil {
			player.Diplomacy = map[string]game.DiplomaticStatus{}
		}
		if other.Diplomacy == nil {
			other.Diplomacy = map[string]game.DiplomaticStatus{}
		}
		player.Diplomacy[fromPlayerID] = proposal.Status
		other.Diplomacy[playerID] = proposal.Status
		return nil
	})
}

// FindRoute plans the cheapest multi-hop route for a carrier between two
// stars it could actually fly.
func (s *Service) FindRoute(ctx context.Context, gameID, playerID, carrierID, fromStarID, toStarID string) (pathfind.Route, error) {
	g, err := s.game(gameID)
	if err != nil {
		return pathfind.Route{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := g.ValidateAction(playerID); err != nil {
		return pathfind.Route{}, err
	}
	carrier := g.Galaxy.CarrierByID(carrierID)
	if carrier == nil {
		return pathfind.Route{}, fmt.Errorf("app: carrier %s not found in game %s", carrierID, gameID)
	}
	if carrier.OwnerID != playerID {
		return pathfind.Route{}, fmt.Errorf("app: carrier %s does not belong to player %s", carrierID, playerID)
	}
	return pathfind.ShortestRoute(g, carrier, fromStarID, toStarID)
}

// TickDueGames advances every started game whose tick interval has elapsed,
// persisting each advanced game. One failing game does not stop the rest.
func (s *Service) TickDueGames(ctx context.Context, tickInterval time.Duration) error {
	ids, err := s.store.ListGamesDueForTick(ctx, time.Now(), tickInterval)
	if err != nil {
		return err
	}

	var firstErr error
	for _, id := range ids {
		g, err := s.game(id)
		if err != nil {
			continue
		}

		s.mu.Lock()
		advanced, tickErr := s.engine.Tick(ctx, g)
		s.mu.Unlock()
		if tickErr != nil {
			s.logger.Printf("app: tick failed for game %s: %v", id, tickErr)
			if firstErr == nil {
				firstErr = tickErr
			}
			continue
		}
		if !advanced {
			continue
		}
		if err := s.store.SaveGame(ctx, g); err != nil {
			s.logger.Printf("app: persist failed for game %s: %v", id, err)
			if firstErr == nil {
				firstErr = err
			}
		}
		if g.State.EndedAt != nil {
			s.locks.Forget(id)
		}
	}
	return firstErr
}

// CleanupFinishedGames deletes games that finished before the retention
// cutoff, evicting them from the registry and lock service.
func (s *Service) CleanupFinishedGames(ctx context.Context, retention time.Duration) error {
	ids, err := s.store.ListFinishedBefore(ctx, time.Now().Add(-retention))
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := s.store.DeleteGame(ctx, id); err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		s.mu.Lock()
		delete(s.games, id)
		s.mu.Unlock()
		s.locks.Forget(id)
		if s.journal != nil {
			s.journal.Forget(id)
		}
		lifecycle.GameDeleted(ctx, s.publisher, id)
		s.metrics.Add("games_deleted", 1)
	}
	return nil
}

// EnsureOfficialGames keeps the configured number of joinable official games
// open.
func (s *Service) EnsureOfficialGames(ctx context.Context, settings game.Settings, desired int) error {
	open, err := s.store.CountOpenByName(ctx, settings.Name)
	if err != nil {
		return err
	}
	for i := open; i < desired; i++ {
		if _, err := s.CreateGame(ctx, settings); err != nil {
			return err
		}
	}
	return nil
}

// withPlayers runs fn with the action's player mutexes held and the action
// validated against the game lock, persisting the game when fn succeeds.
func (s *Service) withPlayers(ctx context.Context, gameID string, action mutex.ActionPlayers, fn func(*game.Game, *game.Player) error) error {
	g, err := s.game(gameID)
	if err != nil {
		return err
	}

	// Strangers fail before any mutex is taken; they must not queue behind
	// real actions.
	s.mu.Lock()
	known := g.Galaxy.PlayerByID(action.Acting) != nil
	s.mu.Unlock()
	if !known {
		return fmt.Errorf("%w: %s in game %s", game.ErrNotParticipant, action.Acting, gameID)
	}

	tokens, err := s.locks.Acquire(gameID, action)
	if err != nil {
		return err
	}
	defer s.locks.Release(gameID, tokens)

	s.mu.Lock()
	defer s.mu.Unlock()

	player, err := g.ValidateAction(action.Acting)
	if err != nil {
		return err
	}
	if err := fn(g, player); err != nil {
		return err
	}
	return s.store.SaveGame(ctx, g)
}

func (s *Service) game(gameID string) (*game.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games[gameID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrGameNotFound, gameID)
	}
	return g, nil
}

// hopReachable mirrors the pathfinding edge rule: a wormhole pair is always
// flyable, anything else must sit within the carrier's hyperspace range.
func hopReachable(gal *game.Galaxy, carrier *game.Carrier, source, dest *game.Star, from geom.Point) bool {
	if game.WormholePaired(source, dest) {
		return true
	}
	return geom.Distance(from, dest.Location) <= gal.HyperspaceRange(carrier.OwnerID, carrier)
}

func validTechnology(tech game.Technology) bool {
	for _, known := range game.Technologies {
		if tech == known {
			return true
		}
	}
	return false
}
