package orchestrator

import (
	"context"
	"time"
)

// EventSink receives a copy of every event. Publish errors are logged and
// never affect the run.
type EventSink interface {
	Publish(ctx context.Context, ev Event) error
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(ctx context.Context, ev Event) error

func (f EventSinkFunc) Publish(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}

// eventBuffer is the capacity of the channel returned by Process.
const eventBuffer = 64

// emitter stamps and delivers the events of one run.
type emitter struct {
	runID  string
	ch     chan Event
	sinks  []EventSink
	now    func() time.Time
	logger *Logger
	seq    int
}

func newEmitter(runID string, sinks []EventSink, now func() time.Time, logger *Logger) *emitter {
	return &emitter{
		runID:  runID,
		ch:     make(chan Event, eventBuffer),
		sinks:  sinks,
		now:    now,
		logger: logger,
	}
}

// emit delivers ev to the sinks and the channel. When the caller has gone
// away (ctx done and the buffer full) the event is dropped so the run can
// still clean up.
func (e *emitter) emit(ctx context.Context, ev Event) {
	e.seq++
	ev.RunID = e.runID
	ev.Seq = e.seq
	ev.Time = e.now()

	for _, sink := range e.sinks {
		if err := sink.Publish(ctx, ev); err != nil {
			e.logger.Warn(ctx, "event sink publish failed", err)
		}
	}

	select {
	case e.ch <- ev:
		return
	default:
	}
	select {
	case e.ch <- ev:
	case <-ctx.Done():
	}
}

func (e *emitter) status(ctx context.Context, msg string) {
	e.emit(ctx, Event{Type: EventStatus, Message: msg})
}

func (e *emitter) fail(ctx context.Context, err error) {
	e.emit(ctx, Event{Type: EventError, Message: err.Error(), Err: err})
}

func (e *emitter) close() {
	close(e.ch)
}
