// Package pack provides the optional final encoder of the emit
// pipeline: events are JSON-encoded and deflate-compressed with a
// version marker, so sinks and transports move one opaque blob.
package pack

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"

	"github.com/Appsurify/rrweb/event"
)

// marker prefixes every packed blob; Unpack rejects anything else.
var marker = []byte("rrgo1\x00")

// Deflate is a recorder.PackFn: JSON + deflate with the version
// marker prefix.
func Deflate(e *event.Event) ([]byte, error) {
	raw, err := e.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("pack: marshal: %w", err)
	}

	var buf bytes.Buffer
	buf.Write(marker)
	w, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		return nil, fmt.Errorf("pack: writer: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		return nil, fmt.Errorf("pack: compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("pack: close: %w", err)
	}
	return buf.Bytes(), nil
}

// Unpack decodes a blob produced by Deflate.
func Unpack(data []byte) (*event.Event, error) {
	if !bytes.HasPrefix(data, marker) {
		return nil, fmt.Errorf("pack: missing version marker")
	}
	r := flate.NewReader(bytes.NewReader(data[len(marker):]))
	defer r.Close()

	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("pack: decompress: %w", err)
	}
	var e event.Event
	if err := e.UnmarshalJSON(raw); err != nil {
		return nil, fmt.Errorf("pack: decode: %w", err)
	}
	return &e, nil
}
