// Package sched runs the recurring jobs that drive the server: advancing
// eligible games, cleaning up finished ones, creating official games. One
// cooperative loop polls every registered job's deadline; handlers run
// sequentially and a failing or panicking handler never disturbs the others'
// schedules.
package sched

import (
	"context"
	"fmt"
	"time"

	"stardrift/server/internal/telemetry"
	"stardrift/server/logging"
	schedlog "stardrift/server/logging/scheduler"
)

// Job is one named recurring task. The handler is invoked no more often
// than Interval and, while the scheduler runs, eventually at least that
// often, independent of other jobs.
type Job struct {
	Name     string
	Interval time.Duration
	Handler  func(ctx context.Context) error
}

// Config tunes the scheduler.
type Config struct {
	Logger    telemetry.Logger
	Metrics   telemetry.Metrics
	Publisher logging.Publisher
	Clock     logging.Clock
	// Poll bounds how long the loop sleeps when no job is due. Defaults to
	// one second.
	Poll time.Duration
}

// Scheduler owns a fixed set of jobs registered before Run. There is no
// ambient registry: construct one, register jobs, run it, cancel its
// context to stop.
type Scheduler struct {
	jobs      []*jobState
	logger    telemetry.Logger
	metrics   telemetry.Metrics
	publisher logging.Publisher
	clock     logging.Clock
	poll      time.Duration
	running   bool
}

type jobState struct {
	job     Job
	nextDue time.Time
}

// New constructs a Scheduler from cfg.
func New(cfg Config) *Scheduler {
	s := &Scheduler{
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		publisher: cfg.Publisher,
		clock:     cfg.Clock,
		poll:      cfg.Poll,
	}
	if s.logger == nil {
		s.logger = telemetry.LoggerFunc(nil)
	}
	if s.metrics == nil {
		s.metrics = telemetry.NopMetrics()
	}
	if s.publisher == nil {
		s.publisher = logging.NopPublisher()
	}
	if s.clock == nil {
		s.clock = logging.SystemClock{}
	}
	if s.poll <= 0 {
		s.poll = time.Second
	}
	return s
}

// Register adds a job. Duplicate names and non-positive intervals are
// rejected; registration after Run is a caller bug.
func (s *Scheduler) Register(job Job) error {
	if s.running {
		return fmt.Errorf("sched: register %q after Run", job.Name)
	}
	if job.Name == "" || job.Handler == nil {
		return fmt.Errorf("sched: job needs a name and a handler")
	}
	if job.Interval <= 0 {
		return fmt.Errorf("sched: job %q needs a positive interval", job.Name)
	}
	for _, existing := range s.jobs {
		if existing.job.Name == job.Name {
			return fmt.Errorf("sched: job %q already registered", job.Name)
		}
	}
	s.jobs = append(s.jobs, &jobState{job: job})
	return nil
}

// Run drives the loop until ctx is cancelled. Every job fires once
// immediately on startup, then on its own interval.
func (s *Scheduler) Run(ctx context.Context) {
	s.running = true
	now := s.clock.Now()
	for _, state := range s.jobs {
		state.nextDue = now
	}

	timer := time.NewTimer(0)
	defer timer.Stop()
	if !timer.Stop() {
		<-timer.C
	}

	for {
		now = s.clock.Now()
		next := s.runDue(ctx, now)

		wait := next.Sub(s.clock.Now())
		if wait <= 0 {
			wait = time.Millisecond
		}
		if wait > s.poll {
			wait = s.poll
		}
		timer.Reset(wait)
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
	}
}

// RunPass executes every currently due job once. Exposed for tests and for
// callers embedding the scheduler in their own loop.
func (s *Scheduler) RunPass(ctx context.Context) {
	s.runDue(ctx, s.clock.Now())
}

// runDue invokes every job whose deadline passed and returns the earliest
// upcoming deadline.
func (s *Scheduler) runDue(ctx context.Context, now time.Time) time.Time {
	next := now.Add(s.poll)
	for _, state := range s.jobs {
		if ctx.Err() != nil {
			return next
		}
		if now.Before(state.nextDue) {
			if state.nextDue.Before(next) {
				next = state.nextDue
			}
			continue
		}
		s.invoke(ctx, state)
		state.nextDue = s.clock.Now().Add(state.job.Interval)
		if state.nextDue.Before(next) {
			next = state.nextDue
		}
	}
	return next
}

// invoke runs one handler, containing both returned errors and panics so a
// broken job cannot halt the process. The natural recurring interval is the
// retry mechanism; there is no backoff.
func (s *Scheduler) invoke(ctx context.Context, state *jobState) {
	start := s.clock.Now()
	err := s.safeCall(ctx, state.job.Handler)
	duration := s.clock.Now().Sub(start)

	s.metrics.Add("sched."+state.job.Name+".runs", 1)
	if err != nil {
		s.metrics.Add("sched."+state.job.Name+".failures", 1)
		s.logger.Printf("[sched] job %s failed: %v", state.job.Name, err)
		schedlog.JobFailed(ctx, s.publisher, state.job.Name, err)
	}
	if duration > state.job.Interval {
		schedlog.JobOverrun(ctx, s.publisher, state.job.Name, duration.Milliseconds(), state.job.Interval.Milliseconds())
	}
}

func (s *Scheduler) safeCall(ctx context.Context, handler func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return handler(ctx)
}
