package lifecycle

import (
	"context"

	"stardrift/server/logging"
)

const (
	EventGameCreated    logging.EventType = "lifecycle.game_created"
	EventGameStarted    logging.EventType = "lifecycle.game_started"
	EventGameEnded      logging.EventType = "lifecycle.game_ended"
	EventGameDeleted    logging.EventType = "lifecycle.game_deleted"
	EventPlayerDefeated logging.EventType = "lifecycle.player_defeated"
)

func GameCreated(ctx context.Context, pub logging.Publisher, gameID, name string) {
	publish(ctx, pub, EventGameCreated, gameID, 0, logging.EntityRef{ID: gameID, Kind: logging.EntityKindGame}, map[string]any{"name": name})
}

func GameStarted(ctx context.Context, pub logging.Publisher, gameID string) {
	publish(ctx, pub, EventGameStarted, gameID, 0, logging.EntityRef{ID: gameID, Kind: logging.EntityKindGame}, nil)
}

func GameEnded(ctx context.Context, pub logging.Publisher, gameID string, tick uint64, winnerID string) {
	publish(ctx, pub, EventGameEnded, gameID, tick, logging.EntityRef{ID: gameID, Kind: logging.EntityKindGame}, map[string]any{"winner": winnerID})
}

func GameDeleted(ctx context.Context, pub logging.Publisher, gameID string) {
	publish(ctx, pub, EventGameDeleted, gameID, 0, logging.EntityRef{ID: gameID, Kind: logging.EntityKindGame}, nil)
}

func PlayerDefeated(ctx context.Context, pub logging.Publisher, gameID string, tick uint64, playerID string) {
	publish(ctx, pub, EventPlayerDefeated, gameID, tick, logging.EntityRef{ID: playerID, Kind: logging.EntityKindPlayer}, nil)
}

func publish(ctx context.Context, pub logging.Publisher, eventType logging.EventType, gameID string, tick uint64, actor logging.EntityRef, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     eventType,
		GameID:   gameID,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Extra:    extra,
	})
}
