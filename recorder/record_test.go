package recorder

import (
	"errors"
	"testing"

	"github.com/Appsurify/rrweb/dom"
	"github.com/Appsurify/rrweb/event"
	"github.com/Appsurify/rrweb/snapshot"
)

type streamEntry struct {
	e        *event.Event
	checkout bool
}

type stream struct {
	entries []streamEntry
}

func (s *stream) emit(e *event.Event, isCheckout bool) {
	s.entries = append(s.entries, streamEntry{e: e, checkout: isCheckout})
}

func (s *stream) ofType(t event.Type) []*event.Event {
	var out []*event.Event
	for _, en := range s.entries {
		if en.e.Type == t {
			out = append(out, en.e)
		}
	}
	return out
}

func parseDoc(t *testing.T, html string) *dom.Document {
	t.Helper()
	doc, err := dom.Parse([]byte(html), dom.ParseOptions{
		Href:      "https://example.com/",
		Origin:    "https://example.com",
		Width:     1280,
		Height:    720,
		StartTime: 1_700_000_000_000,
	})
	if err != nil {
		t.Fatal(err)
	}
	return doc
}

func startRecording(t *testing.T, doc *dom.Document, opts Options) (*stream, *Handle) {
	t.Helper()
	s := &stream{}
	opts.Document = doc
	opts.Emit = s.emit
	handle, err := Record(opts)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	t.Cleanup(handle.Stop)
	return s, handle
}

func findSnapshotElement(root *snapshot.Node, tag string) *snapshot.Node {
	var found *snapshot.Node
	root.Walk(func(n *snapshot.Node) {
		if found == nil && n.Kind == snapshot.KindElement && n.TagName == tag {
			found = n
		}
	})
	return found
}

func TestStartStopStream(t *testing.T) {
	doc := parseDoc(t, `<!DOCTYPE html><html><body><div id="x">hi</div></body></html>`)
	s, handle := startRecording(t, doc, Options{})
	handle.Stop()

	if len(s.entries) != 2 {
		t.Fatalf("stream length %d, want 2", len(s.entries))
	}
	meta, ok := s.entries[0].e.Data.(*event.MetaData)
	if !ok || s.entries[0].e.Type != event.Meta {
		t.Fatalf("first event = %+v, want Meta", s.entries[0].e)
	}
	if meta.Href != "https://example.com/" || meta.Width != 1280 || meta.Height != 720 {
		t.Errorf("meta = %+v", meta)
	}

	full, ok := s.entries[1].e.Data.(*event.FullSnapshotData)
	if !ok || s.entries[1].e.Type != event.FullSnapshot {
		t.Fatalf("second event = %+v, want FullSnapshot", s.entries[1].e)
	}
	div := findSnapshotElement(full.Node, "div")
	if div == nil {
		t.Fatal("div missing from full snapshot")
	}
	if id, _ := div.Attr("id"); id != "x" {
		t.Errorf("div id = %v, want x", id)
	}
	if len(div.ChildNodes) != 1 || div.ChildNodes[0].TextContent != "hi" {
		t.Errorf("div children = %+v", div.ChildNodes)
	}
}

func TestInvalidConfig(t *testing.T) {
	if _, err := Record(Options{}); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("no document: err = %v, want ErrInvalidConfig", err)
	}
	doc := parseDoc(t, `<!DOCTYPE html><html><body></body></html>`)
	if _, err := Record(Options{Document: doc}); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("no emit: err = %v, want ErrInvalidConfig", err)
	}
}

func TestConcurrentRecordingsForbidden(t *testing.T) {
	doc := parseDoc(t, `<!DOCTYPE html><html><body></body></html>`)
	_, handle := startRecording(t, doc, Options{})

	_, err := Record(Options{Document: doc, Emit: func(*event.Event, bool) {}})
	if !errors.Is(err, ErrAlreadyRecording) {
		t.Fatalf("second record: err = %v, want ErrAlreadyRecording", err)
	}

	handle.Stop()
	again, err := Record(Options{Document: doc, Emit: func(*event.Event, bool) {}})
	if err != nil {
		t.Fatalf("record after stop: %v", err)
	}
	again.Stop()
}

func TestStopIsIdempotent(t *testing.T) {
	doc := parseDoc(t, `<!DOCTYPE html><html><body><div></div></body></html>`)
	s, handle := startRecording(t, doc, Options{})

	handle.Stop()
	handle.Stop()

	n := len(s.entries)
	// No further events after stop, no pending frame loop.
	div := dom.QuerySelectorAll(doc.Root(), "div")[0]
	div.SetAttribute("data-late", "1")
	doc.Scheduler().Advance(200)

	if len(s.entries) != n {
		t.Errorf("events after stop: %d new", len(s.entries)-n)
	}
	if doc.Scheduler().PendingFrames() != 0 {
		t.Errorf("pending frames after stop = %d", doc.Scheduler().PendingFrames())
	}
	if handle.Mirror().GetID(div) != snapshot.Unknown {
		t.Error("mirror not reset on stop")
	}
}

func TestMonotonicTimestamps(t *testing.T) {
	doc := parseDoc(t, `<!DOCTYPE html><html><body><div></div></body></html>`)
	s, handle := startRecording(t, doc, Options{})
	defer handle.Stop()

	div := dom.QuerySelectorAll(doc.Root(), "div")[0]
	for i := 0; i < 5; i++ {
		div.SetAttribute("data-i", string(rune('a'+i)))
		doc.Scheduler().Advance(20)
	}

	var last int64
	for i, en := range s.entries {
		if en.e.Timestamp < last {
			t.Fatalf("timestamp regressed at %d: %d < %d", i, en.e.Timestamp, last)
		}
		last = en.e.Timestamp
	}
}

func TestCustomEventQueueAfter(t *testing.T) {
	doc := parseDoc(t, `<!DOCTYPE html><html><body></body></html>`)
	doc.SetReadyState("loading")

	s := &stream{}
	handle, err := Record(Options{Document: doc, Emit: s.emit, RecordAfter: "load"})
	if err != nil {
		t.Fatal(err)
	}
	defer handle.Stop()

	handle.AddCustomEvent("marker", map[string]any{"k": 1})
	if len(s.entries) != 0 {
		t.Fatal("queued custom event emitted before start")
	}

	doc.SetReadyState("complete")

	types := make([]event.Type, len(s.entries))
	for i, en := range s.entries {
		types[i] = en.e.Type
	}
	if len(types) != 3 || types[0] != event.Meta || types[1] != event.FullSnapshot || types[2] != event.Custom {
		t.Fatalf("types = %v, want [Meta FullSnapshot Custom]", types)
	}
	custom := s.entries[2].e.Data.(*event.CustomData)
	if custom.Tag != "marker" {
		t.Errorf("custom tag = %q", custom.Tag)
	}
}

func TestCustomEventQueueBefore(t *testing.T) {
	doc := parseDoc(t, `<!DOCTYPE html><html><body></body></html>`)
	doc.SetReadyState("loading")

	s := &stream{}
	handle, err := Record(Options{
		Document: doc, Emit: s.emit,
		RecordAfter: "load", FlushCustomEvent: "before",
	})
	if err != nil {
		t.Fatal(err)
	}
	defer handle.Stop()

	handle.AddCustomEvent("early", nil)
	doc.SetReadyState("complete")

	if len(s.entries) < 3 || s.entries[0].e.Type != event.Custom {
		t.Fatalf("custom event not first: %+v", s.entries[0].e.Type)
	}
}

func TestFreezeCoalescesUntilNextEvent(t *testing.T) {
	doc := parseDoc(t, `<!DOCTYPE html><html><body><div></div></body></html>`)
	s, handle := startRecording(t, doc, Options{})
	defer handle.Stop()

	div := dom.QuerySelectorAll(doc.Root(), "div")[0]
	base := len(s.entries)

	handle.FreezePage()
	div.SetAttribute("data-a", "1")
	doc.Scheduler().Flush()
	div.SetAttribute("data-a", "2")
	doc.Scheduler().Flush()

	if len(s.entries) != base {
		t.Fatalf("frozen recording emitted %d events", len(s.entries)-base)
	}

	// The next non-mutation event flushes the backlog first.
	handle.AddCustomEvent("wake", nil)

	if len(s.entries) != base+2 {
		t.Fatalf("got %d new events, want 2 (mutation flush + custom)", len(s.entries)-base)
	}
	mut, ok := s.entries[base].e.Data.(*event.MutationData)
	if !ok {
		t.Fatalf("first post-freeze event is %T, want mutation", s.entries[base].e.Data)
	}
	if len(mut.Attributes) != 1 {
		t.Fatalf("attributes = %+v, want one coalesced entry", mut.Attributes)
	}
	if v := mut.Attributes[0].Attributes["data-a"]; v == nil || *v != "2" {
		t.Errorf("coalesced value = %v, want 2 (last wins)", v)
	}
	if s.entries[base+1].e.Type != event.Custom {
		t.Errorf("second post-freeze event = %v, want Custom", s.entries[base+1].e.Type)
	}
}

func TestLifecycleEventsForwarded(t *testing.T) {
	doc := parseDoc(t, `<!DOCTYPE html><html><body></body></html>`)
	doc.SetReadyState("loading")

	s := &stream{}
	handle, err := Record(Options{Document: doc, Emit: s.emit})
	if err != nil {
		t.Fatal(err)
	}
	defer handle.Stop()

	doc.SetReadyState("complete")

	if len(s.ofType(event.DomContentLoaded)) != 1 {
		t.Error("DomContentLoaded not emitted")
	}
	if len(s.ofType(event.Load)) != 1 {
		t.Error("Load not emitted")
	}
}
