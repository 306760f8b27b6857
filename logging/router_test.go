package logging_test

import (
	"context"
	"testing"
	"time"

	"stardrift/server/logging"
	"stardrift/server/logging/sinks"
)

func waitFor(t *testing.T, condition func() bool, message string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(message)
}

func newTestRouter(t *testing.T, cfg logging.Config) (*logging.Router, *sinks.Memory) {
	t.Helper()
	memory := sinks.NewMemory()
	router, err := logging.NewRouter(logging.SystemClock{}, cfg, []logging.NamedSink{{Name: "memory", Sink: memory}})
	if err != nil {
		t.Fatalf("new router: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		router.Close(ctx)
	})
	return router, memory
}

func TestRouterDeliversToSinks(t *testing.T) {
	router, memory := newTestRouter(t, logging.Config{})

	router.Publish(context.Background(), logging.Event{
		Type:     "test.event",
		GameID:   "g1",
		Tick:     3,
		Severity: logging.SeverityInfo,
	})

	waitFor(t, func() bool { return len(memory.Events()) == 1 }, "event never reached the sink")
	got := memory.Events()[0]
	if got.Type != "test.event" || got.GameID != "g1" || got.Tick != 3 {
		t.Fatalf("delivered event mismatch: %+v", got)
	}
	if got.Time.IsZero() {
		t.Fatal("router should stamp the event time")
	}
}

func TestRouterDropsUntypedEvents(t *testing.T) {
	router, memory := newTestRouter(t, logging.Config{})

	router.Publish(context.Background(), logging.Event{GameID: "g1"})
	router.Publish(context.Background(), logging.Event{Type: "typed", Severity: logging.SeverityInfo})

	waitFor(t, func() bool { return len(memory.Events()) == 1 }, "typed event never arrived")
	if memory.Events()[0].Type != "typed" {
		t.Fatalf("wrong event delivered: %+v", memory.Events()[0])
	}
}

func TestRouterFiltersBySeverity(t *testing.T) {
	router, memory := newTestRouter(t, logging.Config{MinimumSeverity: logging.SeverityWarn})

	router.Publish(context.Background(), logging.Event{Type: "quiet", Severity: logging.SeverityDebug})
	router.Publish(context.Background(), logging.Event{Type: "noisy", Severity: logging.SeverityError})

	waitFor(t, func() bool { return len(memory.Events()) == 1 }, "error event never arrived")
	if memory.Events()[0].Type != "noisy" {
		t.Fatalf("severity filter passed the wrong event: %+v", memory.Events()[0])
	}
	stats := router.Stats()
	if stats.EventsTotal != 1 {
		t.Fatalf("events total = %d, want 1", stats.EventsTotal)
	}
}

func TestRouterMergesAmbientFields(t *testing.T) {
	cfg := logging.Config{Fields: map[string]any{"node": "test-1"}}
	router, memory := newTestRouter(t, cfg)

	router.Publish(context.Background(), logging.Event{
		Type:     "test.event",
		Severity: logging.SeverityInfo,
		Extra:    map[string]any{"node": "explicit", "other": 1},
	})
	router.Publish(context.Background(), logging.Event{Type: "bare", Severity: logging.SeverityInfo})

	waitFor(t, func() bool { return len(memory.Events()) == 2 }, "events never arrived")
	first, second := memory.Events()[0], memory.Events()[1]
	// Explicit extras win over ambient fields.
	if first.Extra["node"] != "explicit" {
		t.Fatalf("ambient field overwrote explicit extra: %+v", first.Extra)
	}
	if second.Extra["node"] != "test-1" {
		t.Fatalf("ambient field missing: %+v", second.Extra)
	}
}

func TestRouterIgnoresPublishAfterClose(t *testing.T) {
	memory := sinks.NewMemory()
	router, err := logging.NewRouter(logging.SystemClock{}, logging.Config{}, []logging.NamedSink{{Name: "memory", Sink: memory}})
	if err != nil {
		t.Fatalf("new router: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := router.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}

	router.Publish(context.Background(), logging.Event{Type: "late", Severity: logging.SeverityInfo})
	time.Sleep(20 * time.Millisecond)
	if got := len(memory.Events()); got != 0 {
		t.Fatalf("closed router delivered %d events", got)
	}
}

func TestRouterSinkLookup(t *testing.T) {
	router, memory := newTestRouter(t, logging.Config{})
	if router.Sink("memory") != memory {
		t.Fatal("named sink lookup failed")
	}
	if router.Sink("absent") != nil {
		t.Fatal("unknown sink name should return nil")
	}
}

func TestWithGameStampsEvents(t *testing.T) {
	var got logging.Event
	inner := logging.PublisherFunc(func(_ context.Context, event logging.Event) {
		got = event
	})

	scoped := logging.WithGame(inner, "g42")
	scoped.Publish(context.Background(), logging.Event{Type: "test.event"})
	if got.GameID != "g42" {
		t.Fatalf("game id = %q, want g42", got.GameID)
	}

	scoped.Publish(context.Background(), logging.Event{Type: "test.event", GameID: "explicit"})
	if got.GameID != "explicit" {
		t.Fatalf("explicit game id overwritten: %q", got.GameID)
	}
}
