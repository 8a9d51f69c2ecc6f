// Package sink defines output backends for the recorded event stream.
// Implementations deliver events to different edges (stdout, webhook,
// in-process callback, sqlite journal); the Router fans out to several
// at once. Adapt turns a sink into the recorder's EmitFunc.
package sink

import (
	"context"
	"log/slog"

	"github.com/Appsurify/rrweb/event"
	"github.com/Appsurify/rrweb/recorder"
)

// Sink is the output interface. Send is called once per event in
// stream order; isCheckout marks checkout-triggered snapshots.
type Sink interface {
	Send(ctx context.Context, e *event.Event, isCheckout bool) error
	Close() error
}

// Adapt binds a sink to a recorder EmitFunc. Sink errors are logged
// and do not interrupt the recording.
func Adapt(ctx context.Context, s Sink, logger *slog.Logger) recorder.EmitFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(e *event.Event, isCheckout bool) {
		if err := s.Send(ctx, e, isCheckout); err != nil {
			logger.Warn("sink: send failed", "type", e.Type.String(), "error", err)
		}
	}
}

// envelope is the JSON wire wrapper used by stdout and webhook sinks.
type envelope struct {
	Event      *event.Event `json:"event"`
	IsCheckout bool         `json:"isCheckout,omitempty"`
}
