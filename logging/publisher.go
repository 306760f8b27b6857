package logging

import (
	"context"
	"time"
)

type EventType string

type Severity int

const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityWarn
	SeverityError
)

type EntityKind string

const (
	EntityKindUnknown EntityKind = "unknown"
	EntityKindPlayer  EntityKind = "player"
	EntityKindStar    EntityKind = "star"
	EntityKindCarrier EntityKind = "carrier"
	EntityKindGame    EntityKind = "game"
	EntityKindJob     EntityKind = "job"
)

// Event is the structured record every component publishes. GameID scopes an
// event to one game instance; scheduler-level events leave it empty.
type Event struct {
	Type     EventType      `json:"type"`
	GameID   string         `json:"gameId,omitempty"`
	Tick     uint64         `json:"tick"`
	Time     time.Time      `json:"time"`
	Actor    EntityRef      `json:"actor"`
	Targets  []EntityRef    `json:"targets,omitempty"`
	Severity Severity       `json:"severity"`
	Category string         `json:"category,omitempty"`
	Payload  any            `json:"payload,omitempty"`
	Extra    map[string]any `json:"extra,omitempty"`
}

type EntityRef struct {
	ID   string     `json:"id"`
	Kind EntityKind `json:"kind"`
}

const (
	CategorySimulation = "simulation"
	CategoryCombat     = "combat"
	CategoryLifecycle  = "lifecycle"
	CategoryScheduler  = "scheduler"
	CategorySystem     = "system"
)

type Publisher interface {
	Publish(ctx context.Context, event Event)
}

type PublisherFunc func(ctx context.Context, event Event)

func (f PublisherFunc) Publish(ctx context.Context, event Event) {
	if f == nil {
		return
	}
	f(ctx, event)
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Event) {}

func NopPublisher() Publisher {
	return nopPublisher{}
}

// WithGame returns a publisher that stamps every event with the game ID
// before forwarding, so per-game components need not carry the ID themselves.
func WithGame(p Publisher, gameID string) Publisher {
	if p == nil {
		return NopPublisher()
	}
	if gameID == "" {
		return p
	}
	return PublisherFunc(func(ctx context.Context, event Event) {
		if event.GameID == "" {
			event.GameID = gameID
		}
		p.Publish(ctx, event)
	})
}

func cloneEvent(event Event) Event {
	cloned := event
	if len(event.Targets) > 0 {
		cloned.Targets = append([]EntityRef(nil), event.Targets...)
	}
	if event.Extra != nil {
		copied := make(map[string]any, len(event.Extra))
		for k, v := range event.Extra {
			copied[k] = v
		}
		cloned.Extra = copied
	}
	return cloned
}

type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time {
	return f()
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}
