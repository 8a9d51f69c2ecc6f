// Package sequential provides the sequential-id plugin: an event
// processor that attaches a monotonically increasing integer to every
// event under a configurable key.
package sequential

import (
	"sync/atomic"

	"github.com/Appsurify/rrweb/event"
	"github.com/Appsurify/rrweb/recorder"
)

// DefaultKey is the event key the id is attached under.
const DefaultKey = "id"

// Options configure the plugin.
type Options struct {
	// Key overrides the attachment key (default "id").
	Key string
	// GetID supplies ids from a shared counter, for recordings that
	// span several frames. Nil uses a local counter starting at 1.
	GetID func() int64
}

// New builds the plugin for the recorder's plugin chain.
func New(opts Options) *recorder.Plugin {
	key := opts.Key
	if key == "" {
		key = DefaultKey
	}
	next := opts.GetID
	if next == nil {
		var counter atomic.Int64
		next = func() int64 { return counter.Add(1) }
	}

	return &recorder.Plugin{
		Name:    "rrweb/sequential-id@1",
		Options: opts,
		EventProcessor: func(e *event.Event) *event.Event {
			e.SetExtra(key, next())
			return e
		},
	}
}
