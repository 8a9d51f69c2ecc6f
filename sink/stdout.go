package sink

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/Appsurify/rrweb/event"
)

// Stdout writes events as JSON lines to an io.Writer (default
// os.Stdout).
type Stdout struct {
	mu  sync.Mutex
	w   io.Writer
	enc *json.Encoder
}

// NewStdout creates a Stdout sink. If w is nil, os.Stdout is used.
func NewStdout(w io.Writer) *Stdout {
	if w == nil {
		w = os.Stdout
	}
	return &Stdout{w: w, enc: json.NewEncoder(w)}
}

func (s *Stdout) Send(_ context.Context, e *event.Event, isCheckout bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(envelope{Event: e, IsCheckout: isCheckout})
}

func (s *Stdout) Close() error { return nil }
