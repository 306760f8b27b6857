package sched

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"stardrift/server/internal/telemetry"
	"stardrift/server/logging"
)

// fakeClock hands out a controllable time to the scheduler.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestRegisterValidation(t *testing.T) {
	s := New(Config{})
	handler := func(context.Context) error { return nil }

	if err := s.Register(Job{Name: "", Interval: time.Second, Handler: handler}); err == nil {
		t.Fatal("nameless job accepted")
	}
	if err := s.Register(Job{Name: "a", Interval: time.Second}); err == nil {
		t.Fatal("handlerless job accepted")
	}
	if err := s.Register(Job{Name: "a", Interval: 0, Handler: handler}); err == nil {
		t.Fatal("zero-interval job accepted")
	}
	if err := s.Register(Job{Name: "a", Interval: time.Second, Handler: handler}); err != nil {
		t.Fatalf("valid job rejected: %v", err)
	}
	if err := s.Register(Job{Name: "a", Interval: time.Second, Handler: handler}); err == nil {
		t.Fatal("duplicate name accepted")
	}
}

func TestRunPassHonorsIntervals(t *testing.T) {
	clock := newFakeClock()
	s := New(Config{Clock: clock})

	runs := 0
	s.Register(Job{Name: "tick", Interval: 10 * time.Second, Handler: func(context.Context) error {
		runs++
		return nil
	}})

	s.RunPass(context.Background())
	if runs != 1 {
		t.Fatalf("job should fire on the first pass, ran %d times", runs)
	}

	// Within the interval nothing fires.
	clock.Advance(5 * time.Second)
	s.RunPass(context.Background())
	if runs != 1 {
		t.Fatalf("job fired before its interval, ran %d times", runs)
	}

	clock.Advance(5 * time.Second)
	s.RunPass(context.Background())
	if runs != 2 {
		t.Fatalf("job should fire once the interval elapsed, ran %d times", runs)
	}
}

func TestFailingJobDoesNotDisturbOthers(t *testing.T) {
	clock := newFakeClock()
	counters := telemetry.NewCounters()
	s := New(Config{Clock: clock, Metrics: counters})

	healthyRuns := 0
	s.Register(Job{Name: "broken", Interval: time.Second, Handler: func(context.Context) error {
		return errors.New("boom")
	}})
	s.Register(Job{Name: "healthy", Interval: time.Second, Handler: func(context.Context) error {
		healthyRuns++
		return nil
	}})

	s.RunPass(context.Background())
	if healthyRuns != 1 {
		t.Fatalf("healthy job should run despite the broken one, ran %d times", healthyRuns)
	}
	if got := counters.Value("sched.broken.failures"); got != 1 {
		t.Fatalf("failure counter = %d, want 1", got)
	}
	if got := counters.Value("sched.healthy.failures"); got != 0 {
		t.Fatalf("healthy job recorded %d failures", got)
	}
}

func TestPanickingJobIsContained(t *testing.T) {
	clock := newFakeClock()
	counters := telemetry.NewCounters()
	s := New(Config{Clock: clock, Metrics: counters})

	s.Register(Job{Name: "panics", Interval: time.Second, Handler: func(context.Context) error {
		panic("unexpected")
	}})

	s.RunPass(context.Background())
	if got := counters.Value("sched.panics.failures"); got != 1 {
		t.Fatalf("panic should count as a failure, counter = %d", got)
	}

	// The job stays on its schedule.
	clock.Advance(time.Second)
	s.RunPass(context.Background())
	if got := counters.Value("sched.panics.runs"); got != 2 {
		t.Fatalf("panicking job should keep its schedule, ran %d times", got)
	}
}

func TestRunFiresJobsAndStopsOnCancel(t *testing.T) {
	fired := make(chan struct{}, 1)
	s := New(Config{Poll: 5 * time.Millisecond, Clock: logging.SystemClock{}})
	s.Register(Job{Name: "once", Interval: time.Hour, Handler: func(context.Context) error {
		select {
		case fired <- struct{}{}:
		default:
		}
		return nil
	}})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("job never fired")
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop on cancel")
	}
}

func TestRegisterAfterRunRejected(t *testing.T) {
	s := New(Config{Poll: time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.Run(ctx)

	err := s.Register(Job{Name: "late", Interval: time.Second, Handler: func(context.Context) error { return nil }})
	if err == nil {
		t.Fatal("registration after Run accepted")
	}
}
