package async

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	apperrors "github.com/louisbranch/statehouse/internal/platform/errors"
	"github.com/louisbranch/statehouse/internal/store"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// AsyncAction is a suspendable orchestration over a store of type St.
//
// Execute runs holding the scheduler turn and may suspend only through
// Await. Failures are returned as-is; an action that wants a failure visible
// to getters records it through one of the store's own actions.
type AsyncAction[St, O any] interface {
	Execute(ctx context.Context, task *Task, st St) (O, error)
}

// AsyncFunc adapts a function to AsyncAction.
type AsyncFunc[St, O any] func(ctx context.Context, task *Task, st St) (O, error)

// Execute implements AsyncAction.
func (f AsyncFunc[St, O]) Execute(ctx context.Context, task *Task, st St) (O, error) {
	return f(ctx, task, st)
}

// Namer is implemented by actions that report a span and log name.
type Namer interface {
	Name() string
}

type named[St, O any] struct {
	name   string
	action AsyncAction[St, O]
}

func (n named[St, O]) Name() string { return n.name }

func (n named[St, O]) Execute(ctx context.Context, task *Task, st St) (O, error) {
	return n.action.Execute(ctx, task, st)
}

// Named attaches a name to action.
func Named[St, O any](name string, action AsyncAction[St, O]) AsyncAction[St, O] {
	return named[St, O]{name: name, action: action}
}

// NameOf returns the action name or its Go type.
func NameOf(action any) string {
	if n, ok := action.(Namer); ok && n.Name() != "" {
		return n.Name()
	}
	return fmt.Sprintf("%T", action)
}

// Future is the eventual result of Run.
type Future[O any] struct {
	done  chan struct{}
	state atomic.Int32
	value O
	err   error
}

func newFuture[O any]() *Future[O] {
	f := &Future[O]{done: make(chan struct{})}
	f.state.Store(int32(store.ActionPending))
	return f
}

func (f *Future[O]) resolve(value O, err error) {
	f.value, f.err = value, err
	if err != nil {
		f.state.Store(int32(store.ActionError))
	} else {
		f.state.Store(int32(store.ActionSuccess))
	}
	close(f.done)
}

// Done is closed once the action finished.
func (f *Future[O]) Done() <-chan struct{} {
	return f.done
}

// State reports Pending until the action finished, then Success or Error.
func (f *Future[O]) State() store.ActionState {
	return store.ActionState(f.state.Load())
}

// Wait blocks for the result. Cancelling ctx stops the wait, not the action.
func (f *Future[O]) Wait(ctx context.Context) (O, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero O
		return zero, ctx.Err()
	}
}

// Run starts action against st as a new task and returns immediately.
//
// Concurrent runs of the same action are not deduplicated. Cancellation is
// whatever ctx carries; Run adds no deadline of its own.
func Run[St, O any](ctx context.Context, sched *Scheduler, st St, action AsyncAction[St, O]) *Future[O] {
	if ctx == nil {
		ctx = context.Background()
	}
	future := newFuture[O]()
	name := NameOf(action)

	attrs := []attribute.KeyValue{attribute.String("statehouse.action", name)}
	if id, ok := any(st).(store.Identifiable); ok {
		attrs = append(attrs, attribute.String("statehouse.store", id.Identity().String()))
	}

	sched.inFlight.Add(1)
	sched.wg.Add(1)
	go func() {
		defer sched.wg.Done()
		defer sched.inFlight.Add(-1)

		spanCtx, span := sched.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
		defer span.End()

		value, err := execute(spanCtx, sched, name, st, action)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, string(apperrors.CodeOf(err)))
			sched.logger.Debug("async action failed", slog.String("action", name), slog.Any("err", err))
		} else {
			span.SetStatus(otelcodes.Ok, "")
		}
		future.resolve(value, err)
	}()
	return future
}

func execute[St, O any](ctx context.Context, sched *Scheduler, name string, st St, action AsyncAction[St, O]) (value O, err error) {
	if err := sched.acquire(ctx); err != nil {
		return value, Cancelled(err)
	}
	task := &Task{sched: sched, name: name, held: true}
	defer func() {
		if r := recover(); r != nil {
			err = apperrors.WithMetadata(apperrors.CodeActionFailed, fmt.Sprintf("action panicked: %v", r), map[string]string{
				"action": name,
			})
		}
		if task.held {
			task.held = false
			sched.release()
		}
	}()
	return action.Execute(ctx, task, st)
}

// RunSync runs action and waits for it. It must not be called from inside a
// task on the same scheduler.
func RunSync[St, O any](ctx context.Context, sched *Scheduler, st St, action AsyncAction[St, O]) (O, error) {
	return Run(ctx, sched, st, action).Wait(ctx)
}

// IsContextError reports whether err came from a cancelled or expired context.
func IsContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
