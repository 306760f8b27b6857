package game

import (
	"errors"
	"fmt"

	"stardrift/server/internal/geom"
)

// LightYear is the base distance unit hyperspace range scales by.
const LightYear = 50.0

var (
	// ErrGameLocked rejects player actions while a tick is executing.
	ErrGameLocked = errors.New("game: locked for tick processing")
	// ErrNotParticipant rejects actions by users who are not in the game.
	ErrNotParticipant = errors.New("game: player is not a participant")
)

// Lock sets the advisory tick flag. Player actions observing the flag are
// rejected until Unlock, preventing them from seeing a half-advanced galaxy.
func (g *Game) Lock() {
	g.State.Locked = true
}

// Unlock clears the advisory tick flag. Callers pair it with Lock in a defer
// so a failed tick never leaves the game wedged.
func (g *Game) Unlock() {
	g.State.Locked = false
}

// ValidateAction fails fast when the game cannot accept a player action:
// unknown player, finished game, or a tick in flight.
func (g *Game) ValidateAction(playerID string) (*Player, error) {
	if g.State.Locked {
		return nil, ErrGameLocked
	}
	if g.State.EndedAt != nil {
		return nil, fmt.Errorf("game %s has ended", g.ID)
	}
	player := g.Galaxy.PlayerByID(playerID)
	if player == nil {
		return nil, fmt.Errorf("%w: %s in game %s", ErrNotParticipant, playerID, g.ID)
	}
	return player, nil
}

// PlayerByID returns the player with the given ID, or nil.
func (gal *Galaxy) PlayerByID(id string) *Player {
	for _, p := range gal.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// StarByID returns the star with the given ID, or nil.
func (gal *Galaxy) StarByID(id string) *Star {
	for _, s := range gal.Stars {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// CarrierByID returns the carrier with the given ID, or nil.
func (gal *Galaxy) CarrierByID(id string) *Carrier {
	for _, c := range gal.Carriers {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// StarsOwnedBy returns every star owned by the player.
func (gal *Galaxy) StarsOwnedBy(playerID string) []*Star {
	var owned []*Star
	for _, s := range gal.Stars {
		if s.OwnerID == playerID {
			owned = append(owned, s)
		}
	}
	return owned
}

// CarriersOrbiting returns every carrier parked at the star.
func (gal *Galaxy) CarriersOrbiting(starID string) []*Carrier {
	var orbiting []*Carrier
	for _, c := range gal.Carriers {
		if c.OrbitingStarID == starID {
			orbiting = append(orbiting, c)
		}
	}
	return orbiting
}

// CarriersAt returns every in-transit carrier at exactly the given location.
// Orbiting carriers are excluded; star clashes are handled on arrival.
func (gal *Galaxy) CarriersAt(loc geom.Point) []*Carrier {
	var at []*Carrier
	for _, c := range gal.Carriers {
		if c.OrbitingStarID != "" {
			continue
		}
		if c.Location == loc {
			at = append(at, c)
		}
	}
	return at
}

// RemoveCarrier deletes the carrier from the galaxy.
func (gal *Galaxy) RemoveCarrier(id string) {
	for i, c := range gal.Carriers {
		if c.ID == id {
			gal.Carriers = append(gal.Carriers[:i], gal.Carriers[i+1:]...)
			return
		}
	}
}

// Allied reports whether two players are mutual allies. A player counts as
// allied with itself so own-star arrivals never trigger combat.
func (gal *Galaxy) Allied(playerA, playerB string) bool {
	if playerA == playerB {
		return true
	}
	a := gal.PlayerByID(playerA)
	b := gal.PlayerByID(playerB)
	if a == nil || b == nil {
		return false
	}
	return a.StatusToward(playerB) == DiplomacyAllies && b.StatusToward(playerA) == DiplomacyAllies
}

// EffectiveWeapons returns the weapons level a player fights with at a star,
// including the star specialist's modifier and the defender bonus when the
// player owns the star.
func (gal *Galaxy) EffectiveWeapons(playerID string, star *Star, settings Settings) int {
	player := gal.PlayerByID(playerID)
	if player == nil {
		return 1
	}
	level := player.Research.Level(TechWeapons)
	if star != nil && star.OwnerID == playerID {
		level += star.Specialist.WeaponsDelta()
		if settings.DefenderBonus {
			level++
		}
	}
	if level < 1 {
		level = 1
	}
	return level
}

// CarrierWeapons returns the weapons level a carrier fights with, including
// its own specialist's modifier.
func (gal *Galaxy) CarrierWeapons(c *Carrier) int {
	player := gal.PlayerByID(c.OwnerID)
	if player == nil {
		return 1
	}
	level := player.Research.Level(TechWeapons)
	if c.Specialist != nil {
		level += c.Specialist.WeaponsDelta()
	}
	if level < 1 {
		level = 1
	}
	return level
}

// HyperspaceRange returns the maximum single-hop distance for a player's
// carrier, scaled from the hyperspace technology level plus any carrier
// specialist adjustment.
func (gal *Galaxy) HyperspaceRange(playerID string, carrier *Carrier) float64 {
	player := gal.PlayerByID(playerID)
	level := 1
	if player != nil {
		level = player.Research.Level(TechHyperspace)
	}
	if carrier != nil && carrier.Specialist != nil {
		level += carrier.Specialist.Modifiers.HyperspaceDelta
	}
	if level < 1 {
		level = 1
	}
	return (float64(level) + 1.5) * LightYear
}

// WormholePaired reports whether two stars are joined by a wormhole.
func WormholePaired(a, b *Star) bool {
	if a == nil || b == nil {
		return false
	}
	return a.WormholeToStarID == b.ID && b.WormholeToStarID == a.ID
}
