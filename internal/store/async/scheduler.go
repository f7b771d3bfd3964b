// Package async runs suspendable store actions on a cooperative scheduler.
//
// A Scheduler hands out a single turn. A task holds the turn from the moment
// it starts until it finishes, except inside Await, where it gives the turn
// up for the duration of the awaited call. Code between two awaits therefore
// never interleaves with another task on the same scheduler, while anything
// queued may run during a suspension.
package async

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "statehouse/async"

// Scheduler serializes task execution between await points.
type Scheduler struct {
	turn     chan struct{}
	tracer   trace.Tracer
	logger   *slog.Logger
	inFlight atomic.Int64
	wg       sync.WaitGroup
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithTracerProvider sets the provider used for action spans.
func WithTracerProvider(tp trace.TracerProvider) SchedulerOption {
	return func(s *Scheduler) {
		if tp != nil {
			s.tracer = tp.Tracer(tracerName)
		}
	}
}

// WithLogger sets the scheduler logger.
func WithLogger(logger *slog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewScheduler returns an idle scheduler.
func NewScheduler(opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		turn:   make(chan struct{}, 1),
		tracer: otel.Tracer(tracerName),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.turn <- struct{}{}
	return s
}

func (s *Scheduler) acquire(ctx context.Context) error {
	select {
	case <-s.turn:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// reacquire waits for the turn without honoring cancellation; a resumed task
// must regain the turn before it can observe that it was cancelled.
func (s *Scheduler) reacquire() {
	<-s.turn
}

func (s *Scheduler) release() {
	s.turn <- struct{}{}
}

// Do runs fn while holding the turn. Synchronous actions invoked from outside
// the scheduler use it so they never interleave with a running task.
func (s *Scheduler) Do(ctx context.Context, fn func()) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()
	fn()
	return nil
}

// InFlight returns the number of started, unfinished tasks.
func (s *Scheduler) InFlight() int {
	return int(s.inFlight.Load())
}

// Drain blocks until every started task finished or ctx is done.
func (s *Scheduler) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Task is the handle an action uses to suspend.
type Task struct {
	sched *Scheduler
	name  string
	held  bool
}

// Name returns the action name the task runs.
func (t *Task) Name() string {
	return t.name
}

// Await gives up the turn, runs fn, and takes the turn back before
// returning. It is the only suspension point for a running action; whatever
// the action read before Await may be stale afterwards.
func Await[T any](ctx context.Context, t *Task, fn func(context.Context) (T, error)) (T, error) {
	if t == nil || !t.held {
		return fn(ctx)
	}
	t.held = false
	t.sched.release()
	defer func() {
		t.sched.reacquire()
		t.held = true
	}()
	return fn(ctx)
}

// Sleep suspends the task for d or until ctx is done.
func Sleep(ctx context.Context, t *Task, d time.Duration) error {
	_, err := Await(ctx, t, func(ctx context.Context) (struct{}, error) {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-timer.C:
			return struct{}{}, nil
		case <-ctx.Done():
			return struct{}{}, ctx.Err()
		}
	})
	return err
}
