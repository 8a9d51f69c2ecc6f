package visibility

import (
	"testing"

	"github.com/Appsurify/rrweb/dom"
	"github.com/Appsurify/rrweb/event"
)

type managerHarness struct {
	doc     *dom.Document
	mgr     *Manager
	batches [][]event.VisibilityTuple
	counts  []int
	ids     map[*dom.Node]int
	nextID  int
}

func newHarness(t *testing.T, cfg ManagerConfig) *managerHarness {
	t.Helper()
	h := &managerHarness{doc: testDoc(t), ids: make(map[*dom.Node]int)}

	cfg.Document = h.doc
	cfg.GetID = func(el *dom.Node) int {
		if id, ok := h.ids[el]; ok {
			return id
		}
		h.nextID++
		h.ids[el] = h.nextID
		return h.nextID
	}
	cfg.Emit = func(muts []event.VisibilityTuple) {
		h.batches = append(h.batches, muts)
	}
	cfg.NotifyActivity = func(n int) { h.counts = append(h.counts, n) }

	h.mgr = NewManager(cfg)
	return h
}

func TestManagerInitialPassSuppressed(t *testing.T) {
	h := newHarness(t, ManagerConfig{})
	visible := addDiv(h.doc, dom.Rect{Width: 100, Height: 100})
	_ = visible

	h.mgr.Start()
	h.doc.Scheduler().Frame()

	if len(h.batches) != 0 {
		t.Fatalf("initial pass emitted %d batches", len(h.batches))
	}
}

func TestManagerEmitsOnChange(t *testing.T) {
	h := newHarness(t, ManagerConfig{})
	div := addDiv(h.doc, dom.Rect{Width: 100, Height: 100})
	div.SetAttribute("style", "display:none")

	h.mgr.Start()
	h.doc.Scheduler().Frame() // baseline

	div.SetAttribute("style", "display:block")
	h.doc.Scheduler().Frame()

	if len(h.batches) != 1 {
		t.Fatalf("got %d batches, want 1", len(h.batches))
	}
	batch := h.batches[0]
	if len(batch) != 1 {
		t.Fatalf("batch size %d, want 1", len(batch))
	}
	if !batch[0].IsVisible || batch[0].Ratio != 1 {
		t.Errorf("tuple = %+v, want visible ratio 1", batch[0])
	}
	if len(h.counts) != 1 || h.counts[0] != 1 {
		t.Errorf("activity counts = %v, want [1]", h.counts)
	}
}

func TestManagerBatchesChangesOneEventPerFrame(t *testing.T) {
	h := newHarness(t, ManagerConfig{})
	a := addDiv(h.doc, dom.Rect{Width: 10, Height: 10})
	b := addDiv(h.doc, dom.Rect{Width: 10, Height: 10})
	a.SetAttribute("style", "display:none")
	b.SetAttribute("style", "display:none")

	h.mgr.Start()
	h.doc.Scheduler().Frame()

	a.SetAttribute("style", "display:block")
	b.SetAttribute("style", "display:block")
	h.doc.Scheduler().Frame()

	if len(h.batches) != 1 {
		t.Fatalf("got %d batches, want 1", len(h.batches))
	}
	if len(h.batches[0]) != 2 {
		t.Errorf("batch carries %d tuples, want 2", len(h.batches[0]))
	}
}

func TestManagerDebounceMode(t *testing.T) {
	h := newHarness(t, ManagerConfig{Mode: FlushDebounce, DebounceMS: 100})
	div := addDiv(h.doc, dom.Rect{Width: 10, Height: 10})
	div.SetAttribute("style", "display:none")

	h.mgr.Start()
	h.doc.Scheduler().Frame()

	div.SetAttribute("style", "display:block")
	h.doc.Scheduler().Frame()

	if len(h.batches) != 0 {
		t.Fatal("debounce emitted before the quiet period")
	}
	h.doc.Scheduler().Advance(150)
	if len(h.batches) != 1 {
		t.Fatalf("debounce batches = %d, want 1", len(h.batches))
	}
}

func TestManagerThrottleMode(t *testing.T) {
	h := newHarness(t, ManagerConfig{Mode: FlushThrottle, ThrottleMS: 1000})
	div := addDiv(h.doc, dom.Rect{Width: 10, Height: 10})
	div.SetAttribute("style", "display:none")

	h.mgr.Start()
	h.doc.Scheduler().Frame()

	div.SetAttribute("style", "display:block")
	h.doc.Scheduler().Frame()
	if len(h.batches) != 1 {
		t.Fatalf("first throttled emit missing: %d", len(h.batches))
	}

	// A second change inside the throttle window is deferred.
	div.SetAttribute("style", "display:none")
	h.doc.Scheduler().Frame()
	if len(h.batches) != 1 {
		t.Fatalf("throttle window not respected: %d", len(h.batches))
	}

	// After the window passes, the buffered change goes out.
	h.doc.Scheduler().Advance(1100)
	if len(h.batches) != 2 {
		t.Errorf("buffered change not emitted after window: %d", len(h.batches))
	}
}

func TestManagerFreezeAndLockSkipEvaluation(t *testing.T) {
	h := newHarness(t, ManagerConfig{})
	div := addDiv(h.doc, dom.Rect{Width: 10, Height: 10})
	div.SetAttribute("style", "display:none")

	h.mgr.Start()
	h.doc.Scheduler().Frame()

	h.mgr.Freeze()
	div.SetAttribute("style", "display:block")
	h.doc.Scheduler().Frame()
	if len(h.batches) != 0 {
		t.Fatal("frozen manager emitted")
	}
	h.mgr.Unfreeze()
	h.doc.Scheduler().Frame()
	if len(h.batches) != 1 {
		t.Errorf("post-unfreeze batches = %d, want 1", len(h.batches))
	}
}

func TestManagerObservesAddedElements(t *testing.T) {
	h := newHarness(t, ManagerConfig{})
	h.mgr.Start()
	h.doc.Scheduler().Frame()

	// A new element arriving visible is reported on the next pass.
	div := addDiv(h.doc, dom.Rect{Width: 10, Height: 10})
	_ = div
	h.doc.Scheduler().Frame()

	if len(h.batches) != 1 || len(h.batches[0]) != 1 {
		t.Fatalf("added element not reported: %+v", h.batches)
	}
}

func TestManagerResetCancelsFrameLoop(t *testing.T) {
	h := newHarness(t, ManagerConfig{})
	h.mgr.Start()
	h.mgr.Reset()

	if h.doc.Scheduler().PendingFrames() != 0 {
		t.Errorf("pending frames after reset = %d, want 0", h.doc.Scheduler().PendingFrames())
	}
}
