package recorder

import (
	"github.com/Appsurify/rrweb/dom"
	"github.com/Appsurify/rrweb/visibility"
)

// listenerRegistry tracks elements observed to receive listeners for
// interactive event types. Membership is monotonic for the recording's
// lifetime — elements never lose interactivity. The registry hooks the
// document's AddEventListener path (the patched-prototype equivalent)
// and scans inline on* attributes at startup and at DOMContentLoaded.
type listenerRegistry struct {
	known    map[*dom.Node]struct{}
	restores []func()
}

func newListenerRegistry() *listenerRegistry {
	return &listenerRegistry{known: make(map[*dom.Node]struct{})}
}

// install hooks one document. Safe to call for every frame document.
func (lr *listenerRegistry) install(doc *dom.Document) {
	restore := doc.OnAddEventListener(func(target *dom.Node, eventType string) {
		if visibility.InteractiveEvents[eventType] {
			lr.known[target] = struct{}{}
		}
	})
	lr.restores = append(lr.restores, restore)

	lr.scan(doc)
	lr.restores = append(lr.restores, doc.AddEventListener("DOMContentLoaded", func(*dom.DOMEvent) {
		lr.scan(doc)
	}))
}

// scan marks every element carrying an inline handler attribute.
func (lr *listenerRegistry) scan(doc *dom.Document) {
	de := doc.DocumentElement()
	if de == nil {
		return
	}
	de.Walk(func(n *dom.Node) {
		if n.Type() == dom.ElementNode && visibility.HasInlineHandler(n) {
			lr.known[n] = struct{}{}
		}
	})
}

// Known reports whether the element has an observed listener.
func (lr *listenerRegistry) Known(el *dom.Node) bool {
	_, ok := lr.known[el]
	return ok
}

// uninstall removes the hooks and listeners; the membership set is
// discarded with the recording.
func (lr *listenerRegistry) uninstall() {
	for _, restore := range lr.restores {
		restore()
	}
	lr.restores = nil
	lr.known = make(map[*dom.Node]struct{})
}
