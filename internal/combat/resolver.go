// Package combat resolves a single clash between an attacking and a
// defending force. Two interchangeable rulesets exist; game settings select
// which one a tick uses. Resolution is pure: callers apply the result to the
// galaxy themselves.
package combat

import "math"

// Side is one force entering a clash. WeaponsLevel is the effective level
// after technology and specialist modifiers have been applied by the caller.
type Side struct {
	Ships        int `json:"ships"`
	WeaponsLevel int `json:"weaponsLevel"`
}

// Sides pairs defender and attacker values of one measurement.
type Sides struct {
	Defender int `json:"defender"`
	Attacker int `json:"attacker"`
}

// Result describes the outcome of one clash. It is ephemeral and never
// persisted. Needed reports the minimum ships the losing side would have
// required to win instead; clients use it to warn players before committing
// an attack.
type Result struct {
	Before  Sides  `json:"before"`
	After   Sides  `json:"after"`
	Lost    Sides  `json:"lost"`
	Weapons Sides  `json:"weapons"`
	Needed  *Sides `json:"needed,omitempty"`
}

// Resolver is a combat ruleset.
type Resolver interface {
	Resolve(defender, attacker Side, turnBased bool) Result
}

// ForRuleset maps a settings value to its resolver, defaulting to classic.
func ForRuleset(name string) Resolver {
	if name == "strength" {
		return Strength{}
	}
	return Classic{}
}

// Classic is the turn-exchange ruleset. Each side needs
// ceil(enemyShips/ownWeapons) volleys to destroy the other; the side needing
// fewer wins and pays for the volleys it absorbed meanwhile.
type Classic struct{}

// Resolve implements Resolver.
//
// In non-turn-based mode a side that cannot survive a single enemy volley
// has its weapon power clamped to 1 for the exchange. This is a deliberate
// game-balance rule, not a rounding artifact: without it a sacrificial
// single-ship carrier with high weapons tech would disproportionately thin a
// large force. The boundary is ships <= enemy weapons, inclusive.
func (Classic) Resolve(defender, attacker Side, turnBased bool) Result {
	defendPower := max(defender.WeaponsLevel, 1)
	attackPower := max(attacker.WeaponsLevel, 1)
	if !turnBased {
		if defender.Ships <= attacker.WeaponsLevel {
			defendPower = 1
		}
		if attacker.Ships <= defender.WeaponsLevel {
			attackPower = 1
		}
	}

	bonusTurn := 0
	if turnBased {
		// The defender strikes first in turn-based play, so the winning side
		// absorbs one volley fewer.
		bonusTurn = 1
	}

	defenderTurns := divCeil(attacker.Ships, defendPower)
	attackerTurns := divCeil(defender.Ships, attackPower)

	result := Result{
		Before:  Sides{Defender: defender.Ships, Attacker: attacker.Ships},
		Weapons: Sides{Defender: defendPower, Attacker: attackPower},
	}

	if defenderTurns <= attackerTurns {
		remaining := defender.Ships - (defenderTurns-bonusTurn)*attackPower
		result.After = Sides{Defender: max(remaining, 0), Attacker: 0}
		result.Needed = &Sides{Attacker: attackerTurns*defendPower + 1}
	} else {
		remaining := attacker.Ships - (attackerTurns-bonusTurn)*defendPower
		result.After = Sides{Defender: 0, Attacker: max(remaining, 0)}
		result.Needed = &Sides{Defender: (defenderTurns-1)*attackPower + 1}
	}
	result.Lost = Sides{
		Defender: result.Before.Defender - result.After.Defender,
		Attacker: result.Before.Attacker - result.After.Attacker,
	}
	return result
}

// Strength is the instantaneous ruleset: total strength is weapons x ships,
// the stronger side survives with the difference.
type Strength struct{}

// Resolve implements Resolver. In turn-based mode the defender gains a flat
// weapons-squared strength bonus for striking first.
func (Strength) Resolve(defender, attacker Side, turnBased bool) Result {
	defendPower := max(defender.WeaponsLevel, 1)
	attackPower := max(attacker.WeaponsLevel, 1)

	defenderStrength := defendPower * defender.Ships
	if turnBased {
		defenderStrength += defendPower * defendPower
	}
	attackerStrength := attackPower * attacker.Ships

	result := Result{
		Before:  Sides{Defender: defender.Ships, Attacker: attacker.Ships},
		Weapons: Sides{Defender: defendPower, Attacker: attackPower},
	}

	if defenderStrength >= attackerStrength {
		remaining := (defenderStrength - attackerStrength) / defendPower
		if remaining > defender.Ships {
			remaining = defender.Ships
		}
		result.After = Sides{Defender: remaining, Attacker: 0}
		result.Needed = &Sides{Attacker: divCeil(defenderStrength+1, attackPower)}
	} else {
		remaining := (attackerStrength - defenderStrength) / attackPower
		if remaining > attacker.Ships {
			remaining = attacker.Ships
		}
		result.After = Sides{Defender: 0, Attacker: remaining}
		result.Needed = &Sides{Defender: defenderNeededStrength(attackerStrength, defendPower, turnBased)}
	}
	result.Lost = Sides{
		Defender: result.Before.Defender - result.After.Defender,
		Attacker: result.Before.Attacker - result.After.Attacker,
	}
	return result
}

// defenderNeededStrength returns the minimum defender ship count whose total
// strength matches the attacker's, accounting for the turn-based bonus.
func defenderNeededStrength(attackerStrength, defendPower int, turnBased bool) int {
	target := attackerStrength
	if turnBased {
		target -= defendPower * defendPower
	}
	if target <= 0 {
		return 0
	}
	return divCeil(target, defendPower)
}

func divCeil(a, b int) int {
	if b <= 0 {
		b = 1
	}
	return int(math.Ceil(float64(a) / float64(b)))
}
