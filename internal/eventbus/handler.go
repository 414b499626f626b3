// Package eventbus delivers journal events to projectors and reactors, live
// after each append and from history during a replay.
package eventbus

import (
	"context"

	"github.com/denhac/memberbridge/internal/event"
)

// Handler consumes journal events.
type Handler interface {
	// Name is stable and unique per bus; it labels metrics, logs and replay
	// selection.
	Name() string
	// Handles reports whether Apply does anything for t.
	Handles(t event.Type) bool
	Apply(ctx context.Context, evt event.Event) error
}

// Projector maintains a read model. Reset must clear everything the
// projector owns before a replay re-applies history.
type Projector interface {
	Handler
	Reset(ctx context.Context) error
}

// Reactor turns events into commands. Reactors only ever see live events.
type Reactor interface {
	Handler
}

// HandlerFunc applies one event type.
type HandlerFunc func(ctx context.Context, evt event.Event) error

// HandlerTable maps event types to the function handling them. Types absent
// from the table are ignored.
type HandlerTable map[event.Type]HandlerFunc

func (t HandlerTable) Handles(eventType event.Type) bool {
	_, ok := t[eventType]
	return ok
}

// Dispatch calls the function registered for evt.Type, if any.
func (t HandlerTable) Dispatch(ctx context.Context, evt event.Event) error {
	fn, ok := t[evt.Type]
	if !ok {
		return nil
	}
	return fn(ctx, evt)
}
