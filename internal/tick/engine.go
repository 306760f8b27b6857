// Package tick advances a game by exactly one discrete simulation step. The
// engine drives fixed ordered phases: movement, arrival resolution, carrier
// combat, production, research, diplomacy upkeep, victory checks and
// turn bookkeeping. It mutates the in-memory game only; callers persist the
// game after the whole tick completes, so a failed tick never half-commits.
package tick

import (
	"context"
	"fmt"
	"sort"
	"time"

	"stardrift/server/internal/combat"
	"stardrift/server/internal/events"
	"stardrift/server/internal/game"
	"stardrift/server/internal/geom"
	"stardrift/server/internal/telemetry"
	"stardrift/server/internal/travel"
	"stardrift/server/logging"
	combatlog "stardrift/server/logging/combat"
	"stardrift/server/logging/lifecycle"
	"stardrift/server/logging/simulation"
)

const (
	creditsPerEconomy   = 10
	bankingCycleBonus   = 75
	manufacturingBase   = 5
	defaultProduction   = 24
	defaultResearchCost = 100
)

// Config carries the engine's injected dependencies. Nil fields degrade to
// no-ops so tests can construct a bare engine.
type Config struct {
	Logger    telemetry.Logger
	Metrics   telemetry.Metrics
	Publisher logging.Publisher
	Notifier  events.Notifier
	Clock     logging.Clock
}

// Engine executes ticks. It is stateless across games and safe to share
// between scheduler passes as long as no game is ticked concurrently with
// itself.
type Engine struct {
	logger    telemetry.Logger
	metrics   telemetry.Metrics
	publisher logging.Publisher
	notifier  events.Notifier
	clock     logging.Clock
}

// NewEngine constructs an Engine from cfg.
func NewEngine(cfg Config) *Engine {
	e := &Engine{
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		publisher: cfg.Publisher,
		notifier:  cfg.Notifier,
		clock:     cfg.Clock,
	}
	if e.logger == nil {
		e.logger = telemetry.LoggerFunc(nil)
	}
	if e.metrics == nil {
		e.metrics = telemetry.NopMetrics()
	}
	if e.publisher == nil {
		e.publisher = logging.NopPublisher()
	}
	if e.notifier == nil {
		e.notifier = events.NopNotifier()
	}
	if e.clock == nil {
		e.clock = logging.SystemClock{}
	}
	return e
}

// arrival queues a carrier that reached its waypoint destination during the
// movement phase for resolution in the arrival phase.
type arrival struct {
	carrier  *game.Carrier
	waypoint *game.Waypoint
	star     *game.Star
}

// Tick advances g by one step. It returns false without error when the game
// declines to advance (paused, not started, finished, or a turn-based game
// still waiting on players). The advisory game lock is held for the duration
// and always cleared, success or failure.
func (e *Engine) Tick(ctx context.Context, g *game.Game) (advanced bool, err error) {
	if g == nil {
		return false, fmt.Errorf("tick: nil game")
	}
	if !g.State.Started() || g.State.Paused {
		simulation.TickSkipped(ctx, e.publisher, g.ID, g.State.Tick, "not running")
		return false, nil
	}

	now := e.clock.Now()
	forcedTurn := false
	if g.Settings.TurnBased() {
		due, forced := e.turnDue(g, now)
		if !due {
			simulation.TickSkipped(ctx, e.publisher, g.ID, g.State.Tick, "awaiting players")
			return false, nil
		}
		forcedTurn = forced
	}

	g.Lock()
	defer g.Unlock()

	start := e.clock.Now()
	newTick := g.State.Tick + 1

	arrivals := e.movementPhase(ctx, g, newTick)
	e.arrivalPhase(ctx, g, newTick, arrivals)
	e.carrierCombatPhase(ctx, g, newTick)
	cycleComplete := e.productionPhase(ctx, g, newTick)
	e.researchPhase(ctx, g, newTick)
	e.diplomacyPhase(ctx, g, newTick, cycleComplete)
	e.victoryPhase(ctx, g, newTick, now)
	if g.Settings.TurnBased() {
		e.turnPhase(ctx, g, newTick, forcedTurn)
	}

	for _, c := range g.Galaxy.Carriers {
		travel.RefreshETAs(&g.Galaxy, g.Settings, c)
	}

	g.State.Tick = newTick
	g.State.LastTickAt = &now

	duration := e.clock.Now().Sub(start)
	e.metrics.Add("tick.completed", 1)
	e.metrics.Store("tick.last_duration_ms", uint64(duration.Milliseconds()))
	simulation.TickComplete(ctx, e.publisher, g.ID, newTick, simulation.TickCompletePayload{
		DurationMillis: duration.Milliseconds(),
		Carriers:       len(g.Galaxy.Carriers),
		Stars:          len(g.Galaxy.Stars),
		ProductionTick: cycleComplete,
	})
	return true, nil
}

// turnDue reports whether a turn-based game may advance: every undefeated,
// non-AFK player confirmed readiness, or the maximum wait elapsed since the
// previous tick (or since game start, before the first tick).
func (e *Engine) turnDue(g *game.Game, now time.Time) (due, forced bool) {
	allReady := true
	for _, p := range g.Galaxy.Players {
		if p.Defeated || p.AFK {
			continue
		}
		if !p.Ready {
			allReady = false
			break
		}
	}
	if allReady {
		return true, false
	}
	if g.Settings.MaxTurnWait <= 0 {
		return false, false
	}
	// Before the first tick the wait is measured from game start.
	since := g.State.StartedAt
	if g.State.LastTickAt != nil {
		since = g.State.LastTickAt
	}
	if since == nil {
		return false, false
	}
	if now.Sub(*since) >= g.Settings.MaxTurnWait {
		return true, true
	}
	return false, false
}

// movementPhase advances every in-transit carrier by its per-tick distance.
// A carrier whose remaining distance is within this tick's travel arrives
// and is queued for arrival resolution. Wormhole legs arrive in one tick
// regardless of distance.
func (e *Engine) movementPhase(ctx context.Context, g *game.Game, tick uint64) []arrival {
	gal := &g.Galaxy
	var arrivals []arrival
	for _, c := range gal.Carriers {
		if len(c.Waypoints) == 0 {
			continue
		}
		wp := c.Waypoints[0]
		dest := gal.StarByID(wp.DestinationStarID)
		if dest == nil {
			simulation.InvariantViolation(ctx, e.publisher, g.ID, tick,
				fmt.Sprintf("waypoint destination %s no longer exists", wp.DestinationStarID),
				logging.EntityRef{ID: c.ID, Kind: logging.EntityKindCarrier})
			c.Waypoints = c.Waypoints[1:]
			c.DelayRemaining = 0
			continue
		}
		source := gal.StarByID(wp.SourceStarID)

		if c.OrbitingStarID != "" {
			if c.DelayRemaining > 0 {
				c.DelayRemaining--
				continue
			}
			c.OrbitingStarID = ""
		}

		if game.WormholePaired(source, dest) {
			c.Location = dest.Location
			arrivals = append(arrivals, arrival{carrier: c, waypoint: wp, star: dest})
			continue
		}

		speed := travel.SpeedPerTick(gal, g.Settings, c, source, dest)
		remaining := geom.Distance(c.Location, dest.Location)
		if remaining <= speed {
			c.Location = dest.Location
			arrivals = append(arrivals, arrival{carrier: c, waypoint: wp, star: dest})
			continue
		}
		c.Location = geom.Translate(c.Location, geom.Angle(c.Location, dest.Location), speed)
	}
	return arrivals
}

// arrivalPhase executes each arriving carrier's cargo action, resolves star
// combat where owners oppose, applies capture, and advances the waypoint
// queue.
func (e *Engine) arrivalPhase(ctx context.Context, g *game.Game, tick uint64, arrivals []arrival) {
	gal := &g.Galaxy
	for _, a := range arrivals {
		c, star := a.carrier, a.star
		c.OrbitingStarID = star.ID

		e.performWaypointAction(ctx, g, tick, c, star, a.waypoint)

		hostile := star.OwnerID != "" && !gal.Allied(star.OwnerID, c.OwnerID)
		if hostile {
			e.resolveStarCombat(ctx, g, tick, star, c)
		}

		// The carrier may have died in combat.
		if gal.CarrierByID(c.ID) == nil {
			continue
		}

		if star.OwnerID == "" {
			e.captureStar(ctx, g, tick, star, c.OwnerID)
		} else if hostile && star.Ships == 0 && !e.hostileCarriersRemain(gal, star, c.OwnerID) {
			e.captureStar(ctx, g, tick, star, c.OwnerID)
		}

		e.advanceWaypoints(gal, c)
	}
}

func (e *Engine) hostileCarriersRemain(gal *game.Galaxy, star *game.Star, playerID string) bool {
	for _, other := range gal.CarriersOrbiting(star.ID) {
		if !gal.Allied(other.OwnerID, playerID) {
			return true
		}
	}
	return false
}

// performWaypointAction applies the waypoint's cargo action. Cargo only
// moves at stars the carrier's owner holds or is allied with; attempting it
// at a hostile star is an invariant violation and is skipped.
func (e *Engine) performWaypointAction(ctx context.Context, g *game.Game, tick uint64, c *game.Carrier, star *game.Star, wp *game.Waypoint) {
	if wp.Action == game.ActionNone || wp.Action == "" {
		return
	}
	gal := &g.Galaxy
	if star.OwnerID != "" && !gal.Allied(star.OwnerID, c.OwnerID) {
		simulation.InvariantViolation(ctx, e.publisher, g.ID, tick,
			fmt.Sprintf("cargo action %s at hostile star %s", wp.Action, star.ID),
			logging.EntityRef{ID: c.ID, Kind: logging.EntityKindCarrier})
		return
	}

	// A carrier always keeps at least one ship.
	switch wp.Action {
	case game.ActionDrop:
		e.dropShips(c, star, wp.ActionShips)
	case game.ActionDropAll:
		e.dropShips(c, star, c.Ships-1)
	case game.ActionCollect:
		e.collectShips(c, star, wp.ActionShips)
	case game.ActionCollectAll:
		e.collectShips(c, star, star.Ships)
	case game.ActionGarrison:
		target := wp.ActionShips
		if star.Ships > target {
			e.collectShips(c, star, star.Ships-target)
		} else {
			e.dropShips(c, star, target-star.Ships)
		}
	}
}

func (e *Engine) dropShips(c *game.Carrier, star *game.Star, count int) {
	if count > c.Ships-1 {
		count = c.Ships - 1
	}
	if count <= 0 {
		return
	}
	c.Ships -= count
	star.Ships += count
}

func (e *Engine) collectShips(c *game.Carrier, star *game.Star, count int) {
	if count > star.Ships {
		count = star.Ships
	}
	if count <= 0 {
		return
	}
	star.Ships -= count
	c.Ships += count
}

// resolveStarCombat pools the defending garrison with orbiting carriers
// allied to the star's owner against the arriving carrier and any orbiting
// carriers allied with it, then applies the selected ruleset. Defender
// losses come off the garrison first, then defending carriers in galaxy
// order. Attacker losses hit supporting carriers before the arriving one.
func (e *Engine) resolveStarCombat(ctx context.Context, g *game.Game, tick uint64, star *game.Star, attacker *game.Carrier) {
	gal := &g.Galaxy
	defenderID := star.OwnerID

	var defenders, attackers []*game.Carrier
	for _, other := range gal.CarriersOrbiting(star.ID) {
		switch {
		case gal.Allied(other.OwnerID, defenderID):
			defenders = append(defenders, other)
		case other.ID == attacker.ID:
			// Appended last below so the triggering carrier absorbs losses last.
		case gal.Allied(other.OwnerID, attacker.OwnerID):
			attackers = append(attackers, other)
		}
	}
	attackers = append(attackers, attacker)

	defenderShips := star.Ships
	for _, dc := range defenders {
		defenderShips += dc.Ships
	}
	attackerShips := 0
	attackerWeapons := 1
	for _, ac := range attackers {
		attackerShips += ac.Ships
		if w := gal.CarrierWeapons(ac); w > attackerWeapons {
			attackerWeapons = w
		}
	}
	defenderWeapons := gal.EffectiveWeapons(defenderID, star, g.Settings)
	for _, dc := range defenders {
		if w := gal.CarrierWeapons(dc); w > defenderWeapons {
			defenderWeapons = w
		}
	}

	resolver := combat.ForRuleset(string(g.Settings.CombatRuleset))
	result := resolver.Resolve(
		combat.Side{Ships: defenderShips, WeaponsLevel: defenderWeapons},
		combat.Side{Ships: attackerShips, WeaponsLevel: attackerWeapons},
		g.Settings.TurnBased(),
	)

	// Garrison dies first, then defending carriers.
	lost := result.Lost.Defender
	take := min(star.Ships, lost)
	star.Ships -= take
	lost -= take
	e.applyCarrierLosses(gal, defenders, lost)
	e.applyCarrierLosses(gal, attackers, result.Lost.Attacker)

	e.metrics.Add("combat.star_clashes", 1)
	payload := combatlog.ClashPayload{
		StarID:          star.ID,
		DefenderID:      defenderID,
		AttackerID:      attacker.OwnerID,
		DefenderBefore:  result.Before.Defender,
		AttackerBefore:  result.Before.Attacker,
		DefenderAfter:   result.After.Defender,
		AttackerAfter:   result.After.Attacker,
		DefenderWeapons: result.Weapons.Defender,
		AttackerWeapons: result.Weapons.Attacker,
	}
	combatlog.StarClash(ctx, e.publisher, g.ID, tick, payload)
	e.notifier.Notify(ctx, events.Event{
		Type:   events.TypeCombatResolved,
		GameID: g.ID,
		Tick:   tick,
		Payload: events.CombatResolvedPayload{
			StarID:     star.ID,
			DefenderID: defenderID,
			AttackerID: attacker.OwnerID,
			Result:     result,
		},
	})
}

// applyCarrierLosses distributes losses across carriers in order, removing
// any that reach zero ships.
func (e *Engine) applyCarrierLosses(gal *game.Galaxy, carriers []*game.Carrier, losses int) {
	for _, c := range carriers {
		if losses <= 0 {
			return
		}
		take := min(c.Ships, losses)
		c.Ships -= take
		losses -= take
		if c.Ships <= 0 {
			gal.RemoveCarrier(c.ID)
		}
	}
}

// captureStar transfers ownership to the captor, wiping the built-up economy
// and paying the capture reward from it.
func (e *Engine) captureStar(ctx context.Context, g *game.Game, tick uint64, star *game.Star, captorID string) {
	gal := &g.Galaxy
	oldOwnerID := star.OwnerID
	reward := 0
	if oldOwnerID != "" {
		reward = star.Infrastructure.Economy * g.Settings.StarCaptureReward
		star.Infrastructure.Economy = 0
	}
	star.OwnerID = captorID
	if captor := gal.PlayerByID(captorID); captor != nil {
		captor.Credits += reward
	}
	e.metrics.Add("stars.captured", 1)
	e.notifier.Notify(ctx, events.Event{
		Type:   events.TypeStarCaptured,
		GameID: g.ID,
		Tick:   tick,
		Payload: events.StarCapturedPayload{
			StarID:        star.ID,
			StarName:      star.Name,
			OldOwnerID:    oldOwnerID,
			NewOwnerID:    captorID,
			CreditsReward: reward,
		},
	})
}

// advanceWaypoints consumes the completed waypoint. A looped queue recycles
// it to the back while the loop remains valid; otherwise it is dropped. The
// next waypoint's delay starts counting immediately.
func (e *Engine) advanceWaypoints(gal *game.Galaxy, c *game.Carrier) {
	if len(c.Waypoints) == 0 {
		return
	}
	loopable := travel.CanLoop(gal, c) || len(c.Waypoints) == 1
	consumed := c.Waypoints[0]
	c.Waypoints = c.Waypoints[1:]
	if c.WaypointsLoop {
		if loopable {
			recycled := *consumed
			recycled.Ticks = 0
			recycled.TicksEta = 0
			c.Waypoints = append(c.Waypoints, &recycled)
		} else {
			c.WaypointsLoop = false
		}
	}
	if len(c.Waypoints) > 0 {
		c.DelayRemaining = c.Waypoints[0].DelayTicks
	} else {
		c.DelayRemaining = 0
	}
}

// carrierCombatPhase resolves mid-flight collisions: in-transit carriers at
// the same location with opposing, non-allied owners. The larger force
// defends. Repeats per location until no opposing pair remains.
func (e *Engine) carrierCombatPhase(ctx context.Context, g *game.Game, tick uint64) {
	if !g.Settings.CarrierToCarrierCombat {
		return
	}
	gal := &g.Galaxy
	groups := make(map[geom.Point][]*game.Carrier)
	for _, c := range gal.Carriers {
		if c.OrbitingStarID != "" {
			continue
		}
		groups[c.Location] = append(groups[c.Location], c)
	}

	resolver := combat.ForRuleset(string(g.Settings.CombatRuleset))
	for _, group := range groups {
		for {
			defender, attacker := opposingPair(gal, group)
			if defender == nil {
				break
			}
			result := resolver.Resolve(
				combat.Side{Ships: defender.Ships, WeaponsLevel: gal.CarrierWeapons(defender)},
				combat.Side{Ships: attacker.Ships, WeaponsLevel: gal.CarrierWeapons(attacker)},
				g.Settings.TurnBased(),
			)
			defender.Ships = result.After.Defender
			attacker.Ships = result.After.Attacker

			e.metrics.Add("combat.carrier_clashes", 1)
			combatlog.CarrierClash(ctx, e.publisher, g.ID, tick, combatlog.ClashPayload{
				DefenderID:      defender.OwnerID,
				AttackerID:      attacker.OwnerID,
				DefenderBefore:  result.Before.Defender,
				AttackerBefore:  result.Before.Attacker,
				DefenderAfter:   result.After.Defender,
				AttackerAfter:   result.After.Attacker,
				DefenderWeapons: result.Weapons.Defender,
				AttackerWeapons: result.Weapons.Attacker,
			})

			group = removeDead(gal, group)
		}
	}
}

// opposingPair picks the next defender/attacker pair at one location. The
// carrier with more ships defends; ties resolve to slice order.
func opposingPair(gal *game.Galaxy, group []*game.Carrier) (defender, attacker *game.Carrier) {
	for i, a := range group {
		for _, b := range group[i+1:] {
			if gal.Allied(a.OwnerID, b.OwnerID) {
				continue
			}
			if b.Ships > a.Ships {
				return b, a
			}
			return a, b
		}
	}
	return nil, nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func removeDead(gal *game.Galaxy, group []*game.Carrier) []*game.Carrier {
	alive := group[:0]
	for _, c := range group {
		if c.Ships <= 0 {
			gal.RemoveCarrier(c.ID)
			continue
		}
		alive = append(alive, c)
	}
	return alive
}

// productionPhase grants infrastructure output on the production-tick
// boundary: ships from industry, credits from economy plus the banking
// bonus. Returns whether this tick completed a galactic cycle.
func (e *Engine) productionPhase(ctx context.Context, g *game.Game, tick uint64) bool {
	interval := g.Settings.ProductionTicks
	if interval <= 0 {
		interval = defaultProduction
	}
	if tick%uint64(interval) != 0 {
		return false
	}
	g.State.ProductionTick++

	gal := &g.Galaxy
	for _, p := range gal.Players {
		if p.Defeated {
			continue
		}
		manufacturing := p.Research.Level(game.TechManufacturing)
		shipsProduced := 0
		creditsEconomy := 0
		for _, star := range gal.StarsOwnedBy(p.ID) {
			produced := star.Infrastructure.Industry * (manufacturingBase + manufacturing) / manufacturingBase
			star.Ships += produced
			shipsProduced += produced
			creditsEconomy += star.Infrastructure.Economy * creditsPerEconomy
		}
		creditsBanking := p.Research.Level(game.TechBanking) * bankingCycleBonus
		p.Credits += creditsEconomy + creditsBanking

		e.notifier.Notify(ctx, events.Event{
			Type:   events.TypeGalacticCycleComplete,
			GameID: g.ID,
			Tick:   tick,
			Payload: events.GalacticCycleCompletePayload{
				PlayerID:       p.ID,
				CreditsEconomy: creditsEconomy,
				CreditsBanking: creditsBanking,
				ShipsProduced:  shipsProduced,
			},
		})
	}
	e.metrics.Add("production.cycles", 1)
	return true
}

// researchPhase accrues science output toward each player's active
// technology and promotes levels as thresholds are crossed.
func (e *Engine) researchPhase(ctx context.Context, g *game.Game, tick uint64) {
	gal := &g.Galaxy
	costPerLevel := g.Settings.ResearchCostLevel
	if costPerLevel <= 0 {
		costPerLevel = defaultResearchCost
	}
	for _, p := range gal.Players {
		if p.Defeated {
			continue
		}
		science := 0
		for _, star := range gal.StarsOwnedBy(p.ID) {
			science += star.Infrastructure.Science
		}
		if science == 0 {
			continue
		}
		if p.Research.Active == "" {
			p.Research.Active = game.TechWeapons
		}
		if p.Research.Progress == nil {
			p.Research.Progress = make(map[game.Technology]int)
		}
		if p.Research.Levels == nil {
			p.Research.Levels = make(map[game.Technology]int)
		}

		active := p.Research.Active
		p.Research.Progress[active] += science
		for {
			required := p.Research.Level(active) * costPerLevel
			if p.Research.Progress[active] < required {
				break
			}
			p.Research.Progress[active] -= required
			p.Research.Levels[active] = p.Research.Level(active) + 1

			e.notifier.Notify(ctx, events.Event{
				Type:   events.TypeResearchComplete,
				GameID: g.ID,
				Tick:   tick,
				Payload: events.ResearchCompletePayload{
					PlayerID:   p.ID,
					Technology: string(active),
					Level:      p.Research.Levels[active],
				},
			})

			if len(p.Research.Queue) > 0 {
				p.Research.Active = p.Research.Queue[0]
				p.Research.Queue = p.Research.Queue[1:]
				active = p.Research.Active
			}
		}
	}
}

// diplomacyPhase expires pending proposals every tick and deducts alliance
// upkeep on cycle boundaries. A player who cannot pay loses all alliances.
func (e *Engine) diplomacyPhase(ctx context.Context, g *game.Game, tick uint64, cycleComplete bool) {
	gal := &g.Galaxy
	for _, p := range gal.Players {
		if len(p.Proposals) > 0 {
			kept := p.Proposals[:0]
			for _, proposal := range p.Proposals {
				if proposal.ExpiresTick > tick {
					kept = append(kept, proposal)
				}
			}
			p.Proposals = kept
		}
	}

	if !cycleComplete || g.Settings.AllianceUpkeepCost <= 0 {
		return
	}
	for _, p := range gal.Players {
		if p.Defeated {
			continue
		}
		allies := 0
		for otherID, status := range p.Diplomacy {
			if status == game.DiplomacyAllies && gal.Allied(p.ID, otherID) {
				allies++
			}
		}
		if allies == 0 {
			continue
		}
		cost := allies * g.Settings.AllianceUpkeepCost
		if p.Credits >= cost {
			p.Credits -= cost
			continue
		}
		for otherID, status := range p.Diplomacy {
			if status == game.DiplomacyAllies {
				p.Diplomacy[otherID] = game.DiplomacyNeutral
			}
		}
		simulation.InvariantViolation(ctx, e.publisher, g.ID, tick,
			fmt.Sprintf("player %s defaulted on alliance upkeep", p.ID),
			logging.EntityRef{ID: p.ID, Kind: logging.EntityKindPlayer})
	}
}

// victoryPhase marks newly defeated players and evaluates the game's
// victory condition, ending the game when it is met.
func (e *Engine) victoryPhase(ctx context.Context, g *game.Game, tick uint64, now time.Time) {
	gal := &g.Galaxy

	for _, p := range gal.Players {
		if p.Defeated {
			continue
		}
		if e.isDefeated(gal, g.Settings, p) {
			p.Defeated = true
			p.DefeatedAt = tick
			e.metrics.Add("players.defeated", 1)
			lifecycle.PlayerDefeated(ctx, e.publisher, g.ID, tick, p.ID)
			e.notifier.Notify(ctx, events.Event{
				Type:    events.TypePlayerDefeated,
				GameID:  g.ID,
				Tick:    tick,
				Payload: events.PlayerDefeatedPayload{PlayerID: p.ID, Alias: p.Alias},
			})
		}
	}

	winnerID := e.findWinner(gal, g.Settings, tick)
	if winnerID == "" {
		return
	}
	g.State.EndedAt = &now
	g.State.WinnerID = winnerID
	e.metrics.Add("games.ended", 1)
	lifecycle.GameEnded(ctx, e.publisher, g.ID, tick, winnerID)
	e.notifier.Notify(ctx, events.Event{
		Type:   events.TypeGameEnded,
		GameID: g.ID,
		Tick:   tick,
		Payload: events.GameEndedPayload{
			WinnerID: winnerID,
			Rankings: e.rankings(gal),
		},
	})
}

func (e *Engine) isDefeated(gal *game.Galaxy, settings game.Settings, p *game.Player) bool {
	if settings.VictoryCondition == game.VictoryHomeStarElimination && p.HomeStarID != "" {
		if home := gal.StarByID(p.HomeStarID); home != nil && home.OwnerID != p.ID {
			return true
		}
	}
	if len(gal.StarsOwnedBy(p.ID)) > 0 {
		return false
	}
	for _, c := range gal.Carriers {
		if c.OwnerID == p.ID {
			return false
		}
	}
	return true
}

func (e *Engine) findWinner(gal *game.Galaxy, settings game.Settings, tick uint64) string {
	var active []*game.Player
	for _, p := range gal.Players {
		if !p.Defeated {
			active = append(active, p)
		}
	}
	if len(active) == 0 {
		return ""
	}
	if len(active) == 1 && len(gal.Players) > 1 {
		return active[0].ID
	}

	if settings.VictoryCondition == game.VictoryStarPercentage && settings.VictoryStarPercentage > 0 {
		needed := (len(gal.Stars)*settings.VictoryStarPercentage + 99) / 100
		for _, p := range active {
			if len(gal.StarsOwnedBy(p.ID)) >= needed {
				return p.ID
			}
		}
	}

	if settings.TickLimit > 0 && tick >= settings.TickLimit {
		best := active[0]
		for _, p := range active[1:] {
			if len(gal.StarsOwnedBy(p.ID)) > len(gal.StarsOwnedBy(best.ID)) {
				best = p
			}
		}
		return best.ID
	}
	return ""
}

// rankings orders players for the end-of-game standings: undefeated first,
// then by stars owned, then by total ships.
func (e *Engine) rankings(gal *game.Galaxy) []events.Ranking {
	rows := make([]events.Ranking, 0, len(gal.Players))
	for _, p := range gal.Players {
		ships := 0
		for _, star := range gal.StarsOwnedBy(p.ID) {
			ships += star.Ships
		}
		for _, c := range gal.Carriers {
			if c.OwnerID == p.ID {
				ships += c.Ships
			}
		}
		rows = append(rows, events.Ranking{
			PlayerID: p.ID,
			Alias:    p.Alias,
			Stars:    len(gal.StarsOwnedBy(p.ID)),
			Ships:    ships,
			Defeated: p.Defeated,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Defeated != rows[j].Defeated {
			return !rows[i].Defeated
		}
		if rows[i].Stars != rows[j].Stars {
			return rows[i].Stars > rows[j].Stars
		}
		return rows[i].Ships > rows[j].Ships
	})
	for i := range rows {
		rows[i].Position = i + 1
	}
	return rows
}

// turnPhase resets readiness after a turn-based tick and applies missed-turn
// bookkeeping when the turn was forced by the wait timeout.
func (e *Engine) turnPhase(ctx context.Context, g *game.Game, tick uint64, forced bool) {
	var unready []string
	for _, p := range g.Galaxy.Players {
		if p.Defeated {
			continue
		}
		if p.Ready {
			p.MissedTurns = 0
		} else if forced {
			p.MissedTurns++
			unready = append(unready, p.ID)
			if g.Settings.MissedTurnLimit > 0 && p.MissedTurns >= g.Settings.MissedTurnLimit {
				p.AFK = true
			}
		}
		p.Ready = false
	}
	if forced {
		e.notifier.Notify(ctx, events.Event{
			Type:    events.TypeTurnForced,
			GameID:  g.ID,
			Tick:    tick,
			Payload: events.TurnForcedPayload{UnreadyPlayerIDs: unready},
		})
	}
}
