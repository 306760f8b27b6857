package game

import "time"

// TimeModel selects how the raw tick advances.
type TimeModel string

const (
	// TimeRealTime advances the game on the scheduler's clock.
	TimeRealTime TimeModel = "realtime"
	// TimeTurnBased advances only when all undefeated players are ready or
	// the turn wait expires.
	TimeTurnBased TimeModel = "turnbased"
)

// CombatRuleset selects the combat resolution strategy.
type CombatRuleset string

const (
	CombatClassic  CombatRuleset = "classic"
	CombatStrength CombatRuleset = "strength"
)

// VictoryCondition selects how the end-of-game check decides a winner.
type VictoryCondition string

const (
	// VictoryStarPercentage ends the game once a player owns the configured
	// share of all stars.
	VictoryStarPercentage VictoryCondition = "starPercentage"
	// VictoryHomeStarElimination ends the game once a single player's home
	// star is the last one standing under its original owner.
	VictoryHomeStarElimination VictoryCondition = "homeStarElimination"
)

// Settings is the immutable-per-game configuration fixed at creation.
type Settings struct {
	Name                   string           `json:"name" yaml:"name"`
	TimeModel              TimeModel        `json:"timeModel" yaml:"time_model"`
	CombatRuleset          CombatRuleset    `json:"combatRuleset" yaml:"combat_ruleset"`
	CarrierToCarrierCombat bool             `json:"carrierToCarrierCombat" yaml:"carrier_to_carrier_combat"`
	DefenderBonus          bool             `json:"defenderBonus" yaml:"defender_bonus"`
	GameSpeed              float64          `json:"gameSpeed" yaml:"game_speed"`
	ProductionTicks        int              `json:"productionTicks" yaml:"production_ticks"`
	VictoryCondition       VictoryCondition `json:"victoryCondition" yaml:"victory_condition"`
	VictoryStarPercentage  int              `json:"victoryStarPercentage" yaml:"victory_star_percentage"`
	StarCaptureReward      int              `json:"starCaptureReward" yaml:"star_capture_reward"`
	AllianceUpkeepCost     int              `json:"allianceUpkeepCost" yaml:"alliance_upkeep_cost"`
	TickLimit              uint64           `json:"tickLimit" yaml:"tick_limit"`

	// Turn-based only.
	MaxTurnWait     time.Duration `json:"maxTurnWait" yaml:"max_turn_wait"`
	MissedTurnLimit int           `json:"missedTurnLimit" yaml:"missed_turn_limit"`

	// Galaxy generation.
	PlayersRequired   int     `json:"playersRequired" yaml:"players_required"`
	StarsPerPlayer    int     `json:"starsPerPlayer" yaml:"stars_per_player"`
	StartingShips     int     `json:"startingShips" yaml:"starting_ships"`
	StartingCredits   int     `json:"startingCredits" yaml:"starting_credits"`
	GalaxyRadius      float64 `json:"galaxyRadius" yaml:"galaxy_radius"`
	WormholePairs     int     `json:"wormholePairs" yaml:"wormhole_pairs"`
	ResearchCostLevel int     `json:"researchCostLevel" yaml:"research_cost_level"`
}

// DefaultSettings mirrors the official-game preset: realtime, classic
// combat, production every 24 ticks.
func DefaultSettings() Settings {
	return Settings{
		Name:                   "official",
		TimeModel:              TimeRealTime,
		CombatRuleset:          CombatClassic,
		CarrierToCarrierCombat: true,
		DefenderBonus:          true,
		GameSpeed:              5,
		ProductionTicks:        24,
		VictoryCondition:       VictoryStarPercentage,
		VictoryStarPercentage:  51,
		StarCaptureReward:      10,
		AllianceUpkeepCost:     2,
		MaxTurnWait:            24 * time.Hour,
		MissedTurnLimit:        3,
		PlayersRequired:        2,
		StarsPerPlayer:         8,
		StartingShips:          10,
		StartingCredits:        500,
		GalaxyRadius:           500,
		WormholePairs:          1,
		ResearchCostLevel:      100,
	}
}

// TurnBased reports whether the game runs under the turn-based time model.
func (s Settings) TurnBased() bool {
	return s.TimeModel == TimeTurnBased
}
