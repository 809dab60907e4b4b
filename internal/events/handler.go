package events

import (
	"context"
	"fmt"
)

// Handler reacts to a dispatched event. Implementations must honor ctx
// deadlines and may be invoked concurrently for different batches.
type Handler interface {
	Handle(ctx context.Context, evt Event) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, evt Event) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, evt Event) error {
	return f(ctx, evt)
}

// HandlerError wraps a failure of one handler invocation.
type HandlerError struct {
	EventType Type
	Handler   string
	Err       error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler %s for %s: %v", e.Handler, e.EventType, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

// Flusher accepts committed events for asynchronous dispatch.
type Flusher interface {
	Flush(events []Event)
}

// Observer receives relay health signals. Implementations must be cheap and
// non-blocking.
type Observer interface {
	HandlerFailed(eventType string, handler string)
	EventsDropped(count int)
}
