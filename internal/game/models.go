// Package game defines the aggregate every other simulation package operates
// on: a Game holds its settings, mutable state and the galaxy of players,
// stars and carriers. The package carries no simulation logic of its own
// beyond cheap accessors; the tick engine and the travel/combat packages do
// the mutation.
package game

import (
	"time"

	"stardrift/server/internal/geom"
)

// Game is one persistent game instance. Between ticks it is owned by the
// store; the tick engine borrows it for the duration of a single tick and
// the store persists it again afterwards.
type Game struct {
	ID       string   `json:"id"`
	Settings Settings `json:"settings"`
	State    State    `json:"state"`
	Galaxy   Galaxy   `json:"galaxy"`
}

// State is the mutable per-game bookkeeping the engine advances.
type State struct {
	Tick           uint64     `json:"tick"`
	ProductionTick int        `json:"productionTick"`
	Paused         bool       `json:"paused"`
	Locked         bool       `json:"locked"`
	StartedAt      *time.Time `json:"startedAt,omitempty"`
	EndedAt        *time.Time `json:"endedAt,omitempty"`
	LastTickAt     *time.Time `json:"lastTickAt,omitempty"`
	TickLimit      uint64     `json:"tickLimit,omitempty"`
	WinnerID       string     `json:"winnerId,omitempty"`
}

// Started reports whether the game has begun and is not yet finished.
func (s State) Started() bool {
	return s.StartedAt != nil && s.EndedAt == nil
}

// Galaxy holds every entity belonging to one game.
type Galaxy struct {
	Players  []*Player  `json:"players"`
	Stars    []*Star    `json:"stars"`
	Carriers []*Carrier `json:"carriers"`
}

// Technology identifies a research track.
type Technology string

const (
	TechWeapons       Technology = "weapons"
	TechHyperspace    Technology = "hyperspace"
	TechManufacturing Technology = "manufacturing"
	TechBanking       Technology = "banking"
)

// Technologies lists every research track in a stable order.
var Technologies = []Technology{TechWeapons, TechHyperspace, TechManufacturing, TechBanking}

// Research tracks a player's per-technology levels and the progress toward
// the active track's next level.
type Research struct {
	Levels   map[Technology]int `json:"levels"`
	Progress map[Technology]int `json:"progress"`
	Active   Technology         `json:"active"`
	Queue    []Technology       `json:"queue,omitempty"`
}

// Level returns the player's level in tech, defaulting to 1 for the tracks
// every player starts with.
func (r Research) Level(tech Technology) int {
	if lvl, ok := r.Levels[tech]; ok {
		return lvl
	}
	return 1
}

// DiplomaticStatus is one player's stance toward another.
type DiplomaticStatus string

const (
	DiplomacyEnemies DiplomaticStatus = "enemies"
	DiplomacyNeutral DiplomaticStatus = "neutral"
	DiplomacyAllies  DiplomaticStatus = "allies"
)

// DiplomaticProposal is a pending stance change offered by one player to
// another. Unanswered proposals expire at ExpiresTick.
type DiplomaticProposal struct {
	FromPlayerID string           `json:"fromPlayerId"`
	ToPlayerID   string           `json:"toPlayerId"`
	Status       DiplomaticStatus `json:"status"`
	ExpiresTick  uint64           `json:"expiresTick"`
}

// Player owns stars and carriers and advances research each tick.
type Player struct {
	ID          string                      `json:"id"`
	Alias       string                      `json:"alias"`
	Credits     int                         `json:"credits"`
	HomeStarID  string                      `json:"homeStarId"`
	Defeated    bool                        `json:"defeated"`
	DefeatedAt  uint64                      `json:"defeatedAt,omitempty"`
	Ready       bool                        `json:"ready"`
	MissedTurns int                         `json:"missedTurns"`
	AFK         bool                        `json:"afk"`
	Research    Research                    `json:"research"`
	Diplomacy   map[string]DiplomaticStatus `json:"diplomacy,omitempty"`
	Proposals   []DiplomaticProposal        `json:"proposals,omitempty"`
}

// StatusToward returns p's stance toward the other player. Unset entries are
// neutral; a player is always allied with itself.
func (p *Player) StatusToward(otherID string) DiplomaticStatus {
	if p == nil {
		return DiplomacyNeutral
	}
	if p.ID == otherID {
		return DiplomacyAllies
	}
	if status, ok := p.Diplomacy[otherID]; ok {
		return status
	}
	return DiplomacyNeutral
}

// Infrastructure is a star's built-up economy/industry/science levels.
type Infrastructure struct {
	Economy  int `json:"economy"`
	Industry int `json:"industry"`
	Science  int `json:"science"`
}

// Star is a node in the galaxy graph.
type Star struct {
	ID               string         `json:"id"`
	Name             string         `json:"name"`
	Location         geom.Point     `json:"location"`
	OwnerID          string         `json:"ownerId,omitempty"`
	Ships            int            `json:"ships"`
	Infrastructure   Infrastructure `json:"infrastructure"`
	NaturalResources int            `json:"naturalResources"`
	WarpGate         bool           `json:"warpGate"`
	WormholeToStarID string         `json:"wormholeToStarId,omitempty"`
	HomeStar         bool           `json:"homeStar"`
	Specialist       *Specialist    `json:"specialist,omitempty"`
}

// WaypointAction is the cargo operation performed on arrival at a waypoint.
type WaypointAction string

const (
	ActionNone       WaypointAction = "nothing"
	ActionDrop       WaypointAction = "drop"
	ActionDropAll    WaypointAction = "dropAll"
	ActionCollect    WaypointAction = "collect"
	ActionCollectAll WaypointAction = "collectAll"
	// ActionGarrison drops or collects whatever is needed to leave exactly
	// ActionShips ships at the star.
	ActionGarrison WaypointAction = "garrison"
)

// Waypoint is one leg of a carrier's planned route. Ticks and TicksEta are
// derived every time ETAs are recomputed; they are never authoritative.
type Waypoint struct {
	ID                string         `json:"id"`
	SourceStarID      string         `json:"sourceStarId"`
	DestinationStarID string         `json:"destinationStarId"`
	Action            WaypointAction `json:"action"`
	ActionShips       int            `json:"actionShips,omitempty"`
	DelayTicks        int            `json:"delayTicks,omitempty"`

	Ticks    int `json:"ticks"`
	TicksEta int `json:"ticksEta"`
}

// Carrier ferries ships between stars along its waypoint queue. It is either
// orbiting a star (OrbitingStarID set, location equal to that star's) or in
// transit toward its first waypoint's destination.
type Carrier struct {
	ID             string      `json:"id"`
	OwnerID        string      `json:"ownerId"`
	Name           string      `json:"name"`
	Location       geom.Point  `json:"location"`
	OrbitingStarID string      `json:"orbitingStarId,omitempty"`
	Ships          int         `json:"ships"`
	Waypoints      []*Waypoint `json:"waypoints"`
	WaypointsLoop  bool        `json:"waypointsLoop"`
	Specialist     *Specialist `json:"specialist,omitempty"`

	// DelayRemaining counts down the active waypoint's departure delay while
	// the carrier sits in orbit.
	DelayRemaining int `json:"delayRemaining,omitempty"`
}

// InTransit reports whether the carrier is currently between stars.
func (c *Carrier) InTransit() bool {
	return c != nil && c.OrbitingStarID == "" && len(c.Waypoints) > 0
}

// SpecialistModifiers alter the combat, movement and economy formulas of the
// star or carrier a specialist is attached to. Zero values mean no change.
type SpecialistModifiers struct {
	SpeedFactor     float64 `json:"speedFactor,omitempty"`
	WeaponsDelta    int     `json:"weaponsDelta,omitempty"`
	HyperspaceDelta int     `json:"hyperspaceDelta,omitempty"`
	DefenderBonus   bool    `json:"defenderBonus,omitempty"`
	ScrambleWarp    bool    `json:"scrambleWarp,omitempty"`
}

// Specialist is a modifier entity attached to a star or carrier.
type Specialist struct {
	ID        string              `json:"id"`
	Name      string              `json:"name"`
	Modifiers SpecialistModifiers `json:"modifiers"`
}

// SpeedFactor returns the travel speed multiplier, 1 when absent or unset.
func (s *Specialist) SpeedFactor() float64 {
	if s == nil || s.Modifiers.SpeedFactor <= 0 {
		return 1
	}
	return s.Modifiers.SpeedFactor
}

// WeaponsDelta returns the weapons level adjustment, 0 when absent.
func (s *Specialist) WeaponsDelta() int {
	if s == nil {
		return 0
	}
	return s.Modifiers.WeaponsDelta
}

// ScramblesWarp reports whether the specialist blocks warp-gate travel at
// its star.
func (s *Specialist) ScramblesWarp() bool {
	return s != nil && s.Modifiers.ScrambleWarp
}
