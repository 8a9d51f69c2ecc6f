package recorder

import (
	"testing"

	"github.com/Appsurify/rrweb/dom"
	"github.com/Appsurify/rrweb/event"
)

func mutations(s *stream) []*event.MutationData {
	return incrementalsOf[*event.MutationData](s)
}

func TestMutationAddEmitsSerializedSubtree(t *testing.T) {
	doc := parseDoc(t, `<!DOCTYPE html><html><body></body></html>`)
	s, handle := startRecording(t, doc, Options{})
	defer handle.Stop()

	div := doc.CreateElement("div")
	span := doc.CreateElement("span")
	span.AppendChild(doc.CreateTextNode("inner"))
	div.AppendChild(span)
	doc.Body().AppendChild(div)
	doc.Scheduler().Flush()

	muts := mutations(s)
	if len(muts) != 1 {
		t.Fatalf("mutation events = %d, want 1", len(muts))
	}
	if len(muts[0].Adds) != 1 {
		t.Fatalf("adds = %d, want 1 (nested subtree rides along)", len(muts[0].Adds))
	}
	add := muts[0].Adds[0]
	if add.ParentID != handle.Mirror().GetID(doc.Body()) {
		t.Errorf("parent id = %d", add.ParentID)
	}
	if add.Node.TagName != "div" || len(add.Node.ChildNodes) != 1 {
		t.Errorf("serialized add = %+v", add.Node)
	}
	if handle.Mirror().GetID(span) <= 0 {
		t.Error("nested node not registered in mirror")
	}
}

func TestMutationAddRemoveSameFrameCancels(t *testing.T) {
	doc := parseDoc(t, `<!DOCTYPE html><html><body></body></html>`)
	s, handle := startRecording(t, doc, Options{})
	defer handle.Stop()

	div := doc.CreateElement("div")
	doc.Body().AppendChild(div)
	doc.Body().RemoveChild(div)
	doc.Scheduler().Flush()

	if muts := mutations(s); len(muts) != 0 {
		t.Errorf("transient node produced mutations: %+v", muts)
	}
}

func TestMutationRemoveReferencesKnownID(t *testing.T) {
	doc := parseDoc(t, `<!DOCTYPE html><html><body><div id="d"></div></body></html>`)
	s, handle := startRecording(t, doc, Options{})
	defer handle.Stop()

	div := dom.QuerySelectorAll(doc.Root(), "#d")[0]
	id := handle.Mirror().GetID(div)
	if id <= 0 {
		t.Fatal("div not in baseline snapshot")
	}

	doc.Body().RemoveChild(div)
	doc.Scheduler().Flush()

	muts := mutations(s)
	if len(muts) != 1 || len(muts[0].Removes) != 1 {
		t.Fatalf("mutations = %+v", muts)
	}
	if muts[0].Removes[0].ID != id {
		t.Errorf("removed id = %d, want %d", muts[0].Removes[0].ID, id)
	}
	// The id is unmapped but never reused.
	if handle.Mirror().Has(id) {
		t.Error("removed id still mapped")
	}
}

func TestAttributeCoalescingLastWins(t *testing.T) {
	doc := parseDoc(t, `<!DOCTYPE html><html><body><div id="d"></div></body></html>`)
	s, handle := startRecording(t, doc, Options{})
	defer handle.Stop()

	div := dom.QuerySelectorAll(doc.Root(), "#d")[0]
	div.SetAttribute("data-k", "one")
	div.SetAttribute("data-k", "two")
	div.SetAttribute("data-j", "x")
	doc.Scheduler().Flush()

	muts := mutations(s)
	if len(muts) != 1 || len(muts[0].Attributes) != 1 {
		t.Fatalf("mutations = %+v", muts)
	}
	attrs := muts[0].Attributes[0].Attributes
	if v := attrs["data-k"]; v == nil || *v != "two" {
		t.Errorf("data-k = %v, want two", v)
	}
	if v := attrs["data-j"]; v == nil || *v != "x" {
		t.Errorf("data-j = %v", v)
	}
}

func TestAttributeRemovalEmitsNil(t *testing.T) {
	doc := parseDoc(t, `<!DOCTYPE html><html><body><div id="d" data-k="v"></div></body></html>`)
	s, handle := startRecording(t, doc, Options{})
	defer handle.Stop()

	div := dom.QuerySelectorAll(doc.Root(), "#d")[0]
	div.RemoveAttribute("data-k")
	doc.Scheduler().Flush()

	muts := mutations(s)
	if len(muts) != 1 {
		t.Fatalf("mutations = %d", len(muts))
	}
	attrs := muts[0].Attributes[0].Attributes
	if v, ok := attrs["data-k"]; !ok || v != nil {
		t.Errorf("removed attribute = %v (present %v), want nil marker", v, ok)
	}
}

func TestTextMutation(t *testing.T) {
	doc := parseDoc(t, `<!DOCTYPE html><html><body><p id="p">old</p></body></html>`)
	s, handle := startRecording(t, doc, Options{})
	defer handle.Stop()

	text := dom.QuerySelectorAll(doc.Root(), "#p")[0].Children()[0]
	text.SetTextContent("mid")
	text.SetTextContent("new")
	doc.Scheduler().Flush()

	muts := mutations(s)
	if len(muts) != 1 || len(muts[0].Texts) != 1 {
		t.Fatalf("mutations = %+v", muts)
	}
	if got := muts[0].Texts[0]; got.Value == nil || *got.Value != "new" {
		t.Errorf("text value = %v, want new (last wins)", got.Value)
	}
}

func TestEditsOnRemovedNodeDropped(t *testing.T) {
	doc := parseDoc(t, `<!DOCTYPE html><html><body><div id="d"></div></body></html>`)
	s, handle := startRecording(t, doc, Options{})
	defer handle.Stop()

	div := dom.QuerySelectorAll(doc.Root(), "#d")[0]
	div.SetAttribute("data-k", "v")
	doc.Body().RemoveChild(div)
	doc.Scheduler().Flush()

	muts := mutations(s)
	if len(muts) != 1 {
		t.Fatalf("mutations = %d", len(muts))
	}
	if len(muts[0].Attributes) != 0 {
		t.Errorf("attribute edit on removed node emitted: %+v", muts[0].Attributes)
	}
	if len(muts[0].Removes) != 1 {
		t.Errorf("removes = %+v", muts[0].Removes)
	}
}

func TestShadowRootMutationsObserved(t *testing.T) {
	doc := parseDoc(t, `<!DOCTYPE html><html><body><div id="host"></div></body></html>`)
	host := dom.QuerySelectorAll(doc.Root(), "#host")[0]
	root := host.AttachShadow()

	s, handle := startRecording(t, doc, Options{})
	defer handle.Stop()

	span := doc.CreateElement("span")
	root.AppendChild(span)
	doc.Scheduler().Flush()

	muts := mutations(s)
	if len(muts) != 1 || len(muts[0].Adds) != 1 {
		t.Fatalf("shadow mutations = %+v", muts)
	}
	// The shadow root resolves to its host's id.
	if muts[0].Adds[0].ParentID != handle.Mirror().GetID(host) {
		t.Errorf("shadow add parent = %d, want host id %d",
			muts[0].Adds[0].ParentID, handle.Mirror().GetID(host))
	}
}

func TestLateAttachShadowObserved(t *testing.T) {
	doc := parseDoc(t, `<!DOCTYPE html><html><body><div id="host"></div></body></html>`)
	s, handle := startRecording(t, doc, Options{})
	defer handle.Stop()

	host := dom.QuerySelectorAll(doc.Root(), "#host")[0]
	root := host.AttachShadow()
	root.AppendChild(doc.CreateElement("span"))
	doc.Scheduler().Flush()

	muts := mutations(s)
	if len(muts) != 1 {
		t.Fatalf("late shadow mutations = %d, want 1", len(muts))
	}
	_ = handle
}

func TestMaskedTextMutation(t *testing.T) {
	doc := parseDoc(t, `<!DOCTYPE html><html><body><p class="pii" id="p">abc</p></body></html>`)
	s, handle := startRecording(t, doc, Options{MaskTextClass: "pii"})
	defer handle.Stop()

	text := dom.QuerySelectorAll(doc.Root(), "#p")[0].Children()[0]
	text.SetTextContent("wxyz")
	doc.Scheduler().Flush()

	muts := mutations(s)
	if len(muts) != 1 || len(muts[0].Texts) != 1 {
		t.Fatalf("mutations = %+v", muts)
	}
	if got := *muts[0].Texts[0].Value; got != "****" {
		t.Errorf("masked mutation text = %q, want ****", got)
	}
}
