// Package events defines the typed notifications the simulation emits to the
// outside world. The core neither knows nor cares how they are delivered;
// the websocket hub pushes them to subscribed clients and tests capture them
// in memory.
package events

import (
	"context"

	"stardrift/server/internal/combat"
)

type Type string

const (
	TypeGameStarted           Type = "gameStarted"
	TypeGameEnded             Type = "gameEnded"
	TypePlayerDefeated        Type = "playerDefeated"
	TypeGalacticCycleComplete Type = "playerGalacticCycleComplete"
	TypeStarCaptured          Type = "starCaptured"
	TypeCombatResolved        Type = "combatResolved"
	TypeResearchComplete      Type = "researchComplete"
	TypeTurnForced            Type = "turnForced"
)

// Event is one notification. Payload is one of the typed payload structs
// below, keyed by Type.
type Event struct {
	Type    Type   `json:"type"`
	GameID  string `json:"gameId"`
	Tick    uint64 `json:"tick"`
	Payload any    `json:"payload,omitempty"`
}

// Notifier delivers events to an external channel. Implementations must not
// block the simulation; drop or buffer instead.
type Notifier interface {
	Notify(ctx context.Context, event Event)
}

type NotifierFunc func(ctx context.Context, event Event)

func (f NotifierFunc) Notify(ctx context.Context, event Event) {
	if f == nil {
		return
	}
	f(ctx, event)
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, Event) {}

func NopNotifier() Notifier {
	return nopNotifier{}
}

// Ranking is one row of the final standings attached to a game end.
type Ranking struct {
	PlayerID string `json:"playerId"`
	Alias    string `json:"alias"`
	Position int    `json:"position"`
	Stars    int    `json:"stars"`
	Ships    int    `json:"ships"`
	Defeated bool   `json:"defeated"`
}

type GameEndedPayload struct {
	WinnerID string    `json:"winnerId,omitempty"`
	Rankings []Ranking `json:"rankings"`
}

type PlayerDefeatedPayload struct {
	PlayerID string `json:"playerId"`
	Alias    string `json:"alias"`
}

type GalacticCycleCompletePayload struct {
	PlayerID       string `json:"playerId"`
	CreditsEconomy int    `json:"creditsEconomy"`
	CreditsBanking int    `json:"creditsBanking"`
	ShipsProduced  int    `json:"shipsProduced"`
}

type StarCapturedPayload struct {
	StarID        string `json:"starId"`
	StarName      string `json:"starName"`
	OldOwnerID    string `json:"oldOwnerId,omitempty"`
	NewOwnerID    string `json:"newOwnerId"`
	CreditsReward int    `json:"creditsReward"`
}

type CombatResolvedPayload struct {
	StarID     string        `json:"starId,omitempty"`
	DefenderID string        `json:"defenderId"`
	AttackerID string        `json:"attackerId"`
	Result     combat.Result `json:"result"`
}

type ResearchCompletePayload struct {
	PlayerID   string `json:"playerId"`
	Technology string `json:"technology"`
	Level      int    `json:"level"`
}

type TurnForcedPayload struct {
	UnreadyPlayerIDs []string `json:"unreadyPlayerIds"`
}
