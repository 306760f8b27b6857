package simulation

import (
	"context"

	"stardrift/server/logging"
)

const (
	// EventTickComplete is emitted after a game advances one tick.
	EventTickComplete logging.EventType = "simulation.tick_complete"
	// EventTickSkipped is emitted when an eligible game declines to advance,
	// e.g. a turn-based game still waiting on players.
	EventTickSkipped logging.EventType = "simulation.tick_skipped"
	// EventInvariantViolation is emitted when a corrupt sub-step is skipped
	// instead of aborting the tick.
	EventInvariantViolation logging.EventType = "simulation.invariant_violation"
)

// TickCompletePayload captures timing details for one game tick.
type TickCompletePayload struct {
	DurationMillis int64 `json:"durationMillis"`
	Carriers       int   `json:"carriers"`
	Stars          int   `json:"stars"`
	ProductionTick bool  `json:"productionTick"`
}

// TickComplete publishes the per-game tick summary.
func TickComplete(ctx context.Context, pub logging.Publisher, gameID string, tick uint64, payload TickCompletePayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventTickComplete,
		GameID:   gameID,
		Tick:     tick,
		Severity: logging.SeverityInfo,
		Category: logging.CategorySimulation,
		Payload:  payload,
	})
}

// TickSkipped records that a game was polled but did not advance.
func TickSkipped(ctx context.Context, pub logging.Publisher, gameID string, tick uint64, reason string) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventTickSkipped,
		GameID:   gameID,
		Tick:     tick,
		Severity: logging.SeverityDebug,
		Category: logging.CategorySimulation,
		Extra:    map[string]any{"reason": reason},
	})
}

// InvariantViolation records a skipped sub-step. One corrupt carrier must
// not stall an entire game, so these are warnings rather than failures.
func InvariantViolation(ctx context.Context, pub logging.Publisher, gameID string, tick uint64, detail string, actor logging.EntityRef) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventInvariantViolation,
		GameID:   gameID,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: logging.CategorySimulation,
		Extra:    map[string]any{"detail": detail},
	})
}
