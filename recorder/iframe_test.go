package recorder

import (
	"testing"

	"github.com/Appsurify/rrweb/dom"
	"github.com/Appsurify/rrweb/event"
	"github.com/Appsurify/rrweb/snapshot"
)

func populateFrame(t *testing.T, child *dom.Document) *dom.Node {
	t.Helper()
	htmlEl := child.CreateElement("html")
	body := child.CreateElement("body")
	btn := child.CreateElement("button")
	btn.AppendChild(child.CreateTextNode("go"))
	body.AppendChild(btn)
	htmlEl.AppendChild(body)
	child.Root().AppendChild(htmlEl)
	return btn
}

func TestSameOriginIframeAttach(t *testing.T) {
	doc := parseDoc(t, `<!DOCTYPE html><html><body></body></html>`)
	s, handle := startRecording(t, doc, Options{})
	defer handle.Stop()

	// Insert an iframe, then let its same-origin content document
	// arrive, as a late frame load does.
	iframe := doc.CreateElement("iframe")
	doc.Body().AppendChild(iframe)
	doc.Scheduler().Flush()

	iframeID := handle.Mirror().GetID(iframe)
	if iframeID <= 0 {
		t.Fatal("iframe not serialized by the add mutation")
	}

	child := iframe.AttachFrameDocument(dom.FrameOptions{
		Origin: "https://example.com", Href: "https://example.com/frame",
	})
	// Attaching dispatched "load" on an empty document; populate and
	// re-dispatch as the page's load would.
	btn := populateFrame(t, child)
	iframe.Dispatch(&dom.DOMEvent{Type: "load", Target: iframe})

	var attach *event.MutationData
	for _, m := range mutations(s) {
		if m.IsAttachIframe {
			attach = m
		}
	}
	if attach == nil {
		t.Fatal("no isAttachIframe mutation emitted")
	}
	if len(attach.Adds) != 1 || attach.Adds[0].ParentID != iframeID {
		t.Fatalf("attach adds = %+v", attach.Adds)
	}
	var button *snapshot.Node
	attach.Adds[0].Node.Walk(func(n *snapshot.Node) {
		if n.Kind == snapshot.KindElement && n.TagName == "button" {
			button = n
		}
	})
	if button == nil {
		t.Fatal("frame button missing from attach mutation")
	}
	// Ids come from the parent's id space.
	if got := handle.Mirror().GetID(btn); got != button.ID {
		t.Errorf("button id %d not registered in parent mirror (got %d)", button.ID, got)
	}
	if button.RootID != iframeID {
		t.Errorf("button rootId = %d, want %d", button.RootID, iframeID)
	}

	// Mutations inside the frame document are now observed.
	btn.SetAttribute("disabled", "")
	doc.Scheduler().Flush()
	found := false
	for _, m := range mutations(s) {
		for _, a := range m.Attributes {
			if a.ID == button.ID {
				found = true
			}
		}
	}
	if !found {
		t.Error("mutation inside attached frame not recorded")
	}
}

func TestCrossOriginIframeForwarding(t *testing.T) {
	doc := parseDoc(t, `<!DOCTYPE html><html><body><iframe id="f"></iframe></body></html>`)
	iframe := dom.QuerySelectorAll(doc.Root(), "#f")[0]
	child := iframe.AttachFrameDocument(dom.FrameOptions{
		Origin: "https://other.example", Href: "https://other.example/widget",
	})
	populateFrame(t, child)

	// Parent recording: registers the cross-origin frame during its
	// snapshot.
	s, parentHandle := startRecording(t, doc, Options{RecordCrossOriginIframes: true})
	defer parentHandle.Stop()

	parentEvents := len(s.entries)
	var maxParentID int
	full := s.ofType(event.FullSnapshot)[0].Data.(*event.FullSnapshotData)
	full.Node.Walk(func(n *snapshot.Node) {
		if n.ID > maxParentID {
			maxParentID = n.ID
		}
	})

	// Child recording in pass-through mode: no Emit needed.
	childHandle, err := Record(Options{Document: child, RecordCrossOriginIframes: true})
	if err != nil {
		t.Fatalf("child record: %v", err)
	}
	defer childHandle.Stop()

	// Three incrementals from the child.
	child.SetScroll(0, 10)
	child.SetScroll(0, 20)
	child.SetScroll(0, 30)

	// Frame-boundary messages are macrotasks.
	doc.Scheduler().Flush()

	forwarded := s.entries[parentEvents:]
	if len(forwarded) == 0 {
		t.Fatal("nothing forwarded to the parent stream")
	}
	// Child stream prefix is preserved through forwarding.
	if forwarded[0].e.Type != event.Meta || forwarded[1].e.Type != event.FullSnapshot {
		t.Fatalf("forwarded prefix = %v, %v", forwarded[0].e.Type, forwarded[1].e.Type)
	}

	var scrolls []*event.ScrollData
	for _, en := range forwarded {
		if en.e.Type == event.IncrementalSnapshot {
			if d, ok := en.e.Data.(*event.ScrollData); ok {
				scrolls = append(scrolls, d)
			}
		}
	}
	if len(scrolls) != 3 {
		t.Fatalf("forwarded scrolls = %d, want 3", len(scrolls))
	}

	// Ids were rewritten into the parent's space: beyond the parent's
	// own snapshot ids, and stable across events.
	for _, sc := range scrolls {
		if sc.ID <= maxParentID {
			t.Errorf("forwarded id %d collides with parent id space (max %d)", sc.ID, maxParentID)
		}
	}
	if scrolls[0].ID != scrolls[1].ID || scrolls[1].ID != scrolls[2].ID {
		t.Errorf("forwarded ids unstable: %d %d %d", scrolls[0].ID, scrolls[1].ID, scrolls[2].ID)
	}

	// The forwarded full snapshot was rewritten too.
	childFull := forwarded[1].e.Data.(*event.FullSnapshotData)
	childFull.Node.Walk(func(n *snapshot.Node) {
		if n.ID <= maxParentID {
			t.Errorf("forwarded tree id %d inside parent id space", n.ID)
		}
	})
}

func TestCrossOriginChildStopsWithParent(t *testing.T) {
	doc := parseDoc(t, `<!DOCTYPE html><html><body><iframe></iframe></body></html>`)
	iframe := dom.QuerySelectorAll(doc.Root(), "iframe")[0]
	child := iframe.AttachFrameDocument(dom.FrameOptions{Origin: "https://other.example"})
	populateFrame(t, child)

	s, parentHandle := startRecording(t, doc, Options{RecordCrossOriginIframes: true})

	if _, err := Record(Options{Document: child, RecordCrossOriginIframes: true}); err != nil {
		t.Fatal(err)
	}
	doc.Scheduler().Flush()

	parentHandle.Stop()
	doc.Scheduler().Flush() // deliver the stop control message

	n := len(s.entries)
	child.SetScroll(0, 99)
	doc.Scheduler().Flush()
	if len(s.entries) != n {
		t.Error("child kept forwarding after parent stop")
	}

	// The child document is free for a new recording.
	again, err := Record(Options{Document: child, Emit: func(*event.Event, bool) {}})
	if err != nil {
		t.Fatalf("child re-record after stop: %v", err)
	}
	again.Stop()
}

func TestUnregisteredOriginRejected(t *testing.T) {
	doc := parseDoc(t, `<!DOCTYPE html><html><body></body></html>`)
	s, handle := startRecording(t, doc, Options{RecordCrossOriginIframes: true})
	defer handle.Stop()

	base := len(s.entries)
	doc.PostMessage("https://rogue.example", CrossOriginMessage{
		Type:   "rrweb",
		Origin: "https://rogue.example",
		Event:  &event.Event{Type: event.IncrementalSnapshot, Data: &event.ScrollData{ID: 1}},
	})
	doc.Scheduler().Flush()

	if len(s.entries) != base {
		t.Error("message from unregistered origin re-emitted")
	}
}
