package sink

import (
	"context"

	"github.com/Appsurify/rrweb/event"
)

// EventFunc is called for each event (in-process, zero serialization).
type EventFunc func(ctx context.Context, e *event.Event, isCheckout bool) error

// Callback delivers events via Go function calls — the local path when
// the stream consumer lives in the same binary.
type Callback struct {
	onEvent EventFunc
}

// NewCallback creates a Callback sink. A nil handler discards events.
func NewCallback(onEvent EventFunc) *Callback {
	return &Callback{onEvent: onEvent}
}

func (c *Callback) Send(ctx context.Context, e *event.Event, isCheckout bool) error {
	if c.onEvent != nil {
		return c.onEvent(ctx, e, isCheckout)
	}
	return nil
}

func (c *Callback) Close() error { return nil }
