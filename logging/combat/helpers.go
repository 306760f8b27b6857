package combat

import (
	"context"

	"stardrift/server/logging"
)

const (
	// EventStarClash is emitted when an arriving carrier fights a defended star.
	EventStarClash logging.EventType = "combat.star_clash"
	// EventCarrierClash is emitted when in-transit carriers collide mid-flight.
	EventCarrierClash logging.EventType = "combat.carrier_clash"
)

// ClashPayload summarises one resolved clash for the event stream.
type ClashPayload struct {
	StarID          string `json:"starId,omitempty"`
	DefenderID      string `json:"defenderId"`
	AttackerID      string `json:"attackerId"`
	DefenderBefore  int    `json:"defenderBefore"`
	AttackerBefore  int    `json:"attackerBefore"`
	DefenderAfter   int    `json:"defenderAfter"`
	AttackerAfter   int    `json:"attackerAfter"`
	DefenderWeapons int    `json:"defenderWeapons"`
	AttackerWeapons int    `json:"attackerWeapons"`
}

// StarClash publishes a star-case combat resolution.
func StarClash(ctx context.Context, pub logging.Publisher, gameID string, tick uint64, payload ClashPayload) {
	publishClash(ctx, pub, EventStarClash, gameID, tick, payload)
}

// CarrierClash publishes a carrier-to-carrier combat resolution.
func CarrierClash(ctx context.Context, pub logging.Publisher, gameID string, tick uint64, payload ClashPayload) {
	publishClash(ctx, pub, EventCarrierClash, gameID, tick, payload)
}

func publishClash(ctx context.Context, pub logging.Publisher, eventType logging.EventType, gameID string, tick uint64, payload ClashPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     eventType,
		GameID:   gameID,
		Tick:     tick,
		Actor:    logging.EntityRef{ID: payload.AttackerID, Kind: logging.EntityKindPlayer},
		Targets:  []logging.EntityRef{{ID: payload.DefenderID, Kind: logging.EntityKindPlayer}},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryCombat,
		Payload:  payload,
	})
}
