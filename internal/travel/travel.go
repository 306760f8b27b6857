// Package travel computes how far a carrier moves per tick and how long its
// queued waypoints will take. It owns the speed formula (base game speed,
// warp gates, wormholes, specialist modifiers) that both the tick engine and
// the pathfinder price edges with.
package travel

import (
	"stardrift/server/internal/game"
	"stardrift/server/internal/geom"
)

// WarpSpeedMultiplier scales travel between two friendly warp gates.
const WarpSpeedMultiplier = 3.0

// SpeedPerTick returns the distance the carrier covers in one tick when
// travelling from source to dest. Warp gates only engage when both endpoints
// carry a gate, both are owned by the carrier's owner or an ally, and
// neither star hosts a warp-scrambling specialist.
func SpeedPerTick(gal *game.Galaxy, settings game.Settings, carrier *game.Carrier, source, dest *game.Star) float64 {
	speed := settings.GameSpeed
	if speed <= 0 {
		speed = 1
	}
	if warpEligible(gal, carrier, source, dest) {
		speed *= WarpSpeedMultiplier
	}
	if carrier != nil {
		speed *= carrier.Specialist.SpeedFactor()
	}
	return speed
}

func warpEligible(gal *game.Galaxy, carrier *game.Carrier, source, dest *game.Star) bool {
	if carrier == nil || source == nil || dest == nil {
		return false
	}
	if !source.WarpGate || !dest.WarpGate {
		return false
	}
	if source.Specialist.ScramblesWarp() || dest.Specialist.ScramblesWarp() {
		return false
	}
	for _, star := range []*game.Star{source, dest} {
		if star.OwnerID == "" || !gal.Allied(star.OwnerID, carrier.OwnerID) {
			return false
		}
	}
	return true
}

// TicksBetween returns the whole ticks a carrier needs from `from` to the
// destination star. Wormhole-paired stars always cost exactly one tick
// regardless of distance.
func TicksBetween(gal *game.Galaxy, settings game.Settings, carrier *game.Carrier, source, dest *game.Star, from geom.Point) int {
	if game.WormholePaired(source, dest) {
		return 1
	}
	speed := SpeedPerTick(gal, settings, carrier, source, dest)
	return ticksForDistance(geom.Distance(from, dest.Location), speed)
}

func ticksForDistance(distance, speed float64) int {
	if distance <= 0 {
		return 0
	}
	ticks := int(distance / speed)
	if float64(ticks)*speed < distance {
		ticks++
	}
	if ticks < 1 {
		ticks = 1
	}
	return ticks
}

// RefreshETAs recomputes Ticks and TicksEta for every waypoint in the
// carrier's queue. The first leg is measured from the carrier's current
// position, so an in-flight carrier reports the remaining ticks rather than
// the full leg. Waypoints referencing a destroyed star are costed at zero
// and left for the engine's arrival validation to discard.
func RefreshETAs(gal *game.Galaxy, settings game.Settings, carrier *game.Carrier) {
	if carrier == nil {
		return
	}
	cumulative := 0
	from := carrier.Location
	for i, wp := range carrier.Waypoints {
		source := gal.StarByID(wp.SourceStarID)
		dest := gal.StarByID(wp.DestinationStarID)
		ticks := 0
		if dest != nil {
			ticks = TicksBetween(gal, settings, carrier, source, dest, from)
		}
		// Delay applies while parked at the source; a carrier already in
		// flight on its first leg has spent it.
		if wp.DelayTicks > 0 && !(i == 0 && carrier.InTransit()) {
			ticks += wp.DelayTicks
		}
		wp.Ticks = ticks
		cumulative += ticks
		wp.TicksEta = cumulative
		if dest != nil {
			from = dest.Location
		}
	}
}

// CanLoop reports whether the carrier's waypoint queue may be looped: the
// last destination must be able to reach the first source in a single hop,
// either within hyperspace range or through a wormhole.
func CanLoop(gal *game.Galaxy, carrier *game.Carrier) bool {
	if carrier == nil || len(carrier.Waypoints) < 2 {
		return false
	}
	first := gal.StarByID(carrier.Waypoints[0].SourceStarID)
	last := gal.StarByID(carrier.Waypoints[len(carrier.Waypoints)-1].DestinationStarID)
	if first == nil || last == nil {
		return false
	}
	if game.WormholePaired(first, last) {
		return true
	}
	hyperspace := gal.HyperspaceRange(carrier.OwnerID, carrier)
	return geom.WithinRange(first.Location, last.Location, hyperspace)
}
