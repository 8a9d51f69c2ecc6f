package recorder

import (
	"strconv"
	"testing"

	"github.com/Appsurify/rrweb/dom"
	"github.com/Appsurify/rrweb/event"
)

func TestCheckoutEveryNth(t *testing.T) {
	doc := parseDoc(t, `<!DOCTYPE html><html><body><div></div></body></html>`)
	s, handle := startRecording(t, doc, Options{CheckoutEveryNth: 5})
	defer handle.Stop()

	div := dom.QuerySelectorAll(doc.Root(), "div")[0]
	for i := 0; i < 12; i++ {
		div.SetAttribute("data-n", strconv.Itoa(i))
		doc.Scheduler().Flush()
	}

	fulls := s.ofType(event.FullSnapshot)
	if len(fulls) != 3 {
		t.Fatalf("full snapshots = %d, want 3 (initial + 2 checkouts)", len(fulls))
	}
	if incs := s.ofType(event.IncrementalSnapshot); len(incs) != 12 {
		t.Fatalf("incrementals = %d, want 12", len(incs))
	}

	// Each checkout full is preceded by a Meta in the same group, and
	// exactly 5 incrementals sit between consecutive fulls.
	var sinceFull int
	var gaps []int
	for i, en := range s.entries {
		switch en.e.Type {
		case event.IncrementalSnapshot:
			sinceFull++
		case event.FullSnapshot:
			if i == 0 || s.entries[i-1].e.Type != event.Meta {
				t.Errorf("full snapshot at %d not preceded by Meta", i)
			}
			if i > 1 {
				gaps = append(gaps, sinceFull)
			}
			sinceFull = 0
		}
	}
	if len(gaps) != 2 || gaps[0] != 5 || gaps[1] != 5 {
		t.Errorf("incrementals before checkouts = %v, want [5 5]", gaps)
	}

	// Checkout events carry the isCheckout flag; the initial pair
	// does not.
	var checkoutFulls int
	for _, en := range s.entries {
		if en.e.Type == event.FullSnapshot && en.checkout {
			checkoutFulls++
		}
	}
	if checkoutFulls != 2 {
		t.Errorf("checkout-flagged fulls = %d, want 2", checkoutFulls)
	}
}

func TestCheckoutEveryNms(t *testing.T) {
	doc := parseDoc(t, `<!DOCTYPE html><html><body><div></div></body></html>`)
	s, handle := startRecording(t, doc, Options{CheckoutEveryNms: 1000})
	defer handle.Stop()

	div := dom.QuerySelectorAll(doc.Root(), "div")[0]

	// Within the window: no checkout.
	div.SetAttribute("data-n", "1")
	doc.Scheduler().Flush()
	if got := len(s.ofType(event.FullSnapshot)); got != 1 {
		t.Fatalf("fulls after early incremental = %d, want 1", got)
	}

	// Past the window, the next incremental triggers one.
	doc.Scheduler().Advance(1200)
	div.SetAttribute("data-n", "2")
	doc.Scheduler().Flush()

	if got := len(s.ofType(event.FullSnapshot)); got != 2 {
		t.Fatalf("fulls after late incremental = %d, want 2", got)
	}

	// Counter reset: lastFullTimestamp equals the checkout's own
	// timestamp, so an immediate incremental does not re-trigger.
	div.SetAttribute("data-n", "3")
	doc.Scheduler().Flush()
	if got := len(s.ofType(event.FullSnapshot)); got != 2 {
		t.Errorf("fulls after reset = %d, want 2", got)
	}
}

func TestVisibilityMutationAndNvmCheckout(t *testing.T) {
	doc := parseDoc(t, `<!DOCTYPE html><html><body><section id="s" style="display:none">A</section></body></html>`)
	section := dom.QuerySelectorAll(doc.Root(), "#s")[0]
	section.SetBoundingRect(dom.Rect{Left: 0, Top: 0, Width: 300, Height: 100})

	s, handle := startRecording(t, doc, Options{CheckoutEveryNvm: 1})
	defer handle.Stop()

	// Baseline pass: suppressed.
	doc.Scheduler().Advance(120)
	for _, en := range s.entries {
		if en.e.Type == event.IncrementalSnapshot {
			if _, isVM := en.e.Data.(*event.VisibilityMutationData); isVM {
				t.Fatal("visibility mutation emitted on the initial pass")
			}
		}
	}

	section.SetAttribute("style", "display:block")
	doc.Scheduler().Advance(200)

	var vm *event.VisibilityMutationData
	for _, en := range s.entries {
		if en.e.Type == event.IncrementalSnapshot {
			if d, ok := en.e.Data.(*event.VisibilityMutationData); ok {
				vm = d
			}
		}
	}
	if vm == nil {
		t.Fatal("no visibility mutation emitted")
	}
	if len(vm.Mutations) != 1 {
		t.Fatalf("visibility batch = %+v, want one tuple", vm.Mutations)
	}
	tuple := vm.Mutations[0]
	if tuple.ID != handle.Mirror().GetID(section) {
		t.Errorf("tuple id = %d, want %d", tuple.ID, handle.Mirror().GetID(section))
	}
	if !tuple.IsVisible || tuple.Ratio < 1 {
		t.Errorf("tuple = %+v, want visible ratio 1", tuple)
	}

	// checkoutEveryNvm=1: the visibility event triggers a checkout.
	if got := len(s.ofType(event.FullSnapshot)); got != 2 {
		t.Errorf("fulls = %d, want 2 (initial + visibility checkout)", got)
	}
}

func TestAttachIframeMutationDoesNotBumpCounter(t *testing.T) {
	doc := parseDoc(t, `<!DOCTYPE html><html><body><div></div></body></html>`)
	s, handle := startRecording(t, doc, Options{CheckoutEveryNth: 1})
	defer handle.Stop()

	// A synthetic attach-iframe mutation must not trigger the Nth
	// checkout.
	base := len(s.ofType(event.FullSnapshot))
	handle.r.emitIncremental(&event.MutationData{IsAttachIframe: true})
	if got := len(s.ofType(event.FullSnapshot)); got != base {
		t.Errorf("attach-iframe mutation triggered checkout: fulls %d → %d", base, got)
	}

	div := dom.QuerySelectorAll(doc.Root(), "div")[0]
	div.SetAttribute("data-n", "1")
	doc.Scheduler().Flush()
	if got := len(s.ofType(event.FullSnapshot)); got != base+1 {
		t.Errorf("ordinary mutation did not checkout with N=1")
	}
}
