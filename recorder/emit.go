package recorder

import (
	"fmt"
	"log/slog"

	"github.com/Appsurify/rrweb/event"
)

// now returns the emit timestamp: the override, or the document
// scheduler's clock, clamped monotonic within the recording.
func (r *recording) now() int64 {
	var ts int64
	if r.opts.Now != nil {
		ts = r.opts.Now()
	} else {
		ts = r.doc.Scheduler().NowMillis()
	}
	if ts < r.lastTs {
		ts = r.lastTs
	}
	r.lastTs = ts
	return ts
}

func (r *recording) logger() *slog.Logger { return r.opts.Logger }

func (r *recording) warn(op string, err error) {
	r.logger().Warn("recorder: "+op, "error", err)
	if r.opts.ErrorHandler != nil {
		r.opts.ErrorHandler(err)
	}
}

// emitIncremental wraps an incremental payload and runs the pipeline.
func (r *recording) emitIncremental(data event.IncrementalData) {
	r.emit(&event.Event{Type: event.IncrementalSnapshot, Data: data}, false)
}

func (r *recording) emitEvent(t event.Type, data any) {
	r.emit(&event.Event{Type: t, Data: data}, false)
}

// emit is the pipeline: unfreeze-on-activity → timestamp → plugin
// chain → pack → sink (or parent-frame forwarding) → checkout
// bookkeeping.
func (r *recording) emit(e *event.Event, isCheckout bool) {
	if r.stopped || e == nil {
		return
	}

	// Any non-mutation event while frozen flushes the coalesced
	// mutation backlog first, so stream order stays causal.
	if r.state == stateFrozen && !isMutationEvent(e) {
		r.unfreezeInternal()
	}

	e.Timestamp = r.now()

	for _, p := range r.opts.Plugins {
		if p.EventProcessor == nil {
			continue
		}
		if next := p.EventProcessor(e); next != nil {
			e = next
		}
	}

	r.deliver(e, isCheckout)
	r.checkoutBookkeeping(e)
}

func (r *recording) deliver(e *event.Event, isCheckout bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.warn("emit failed", fmt.Errorf("recorder: sink panic: %v", rec))
		}
	}()

	if r.passThrough {
		// Packing is skipped here; the parent packs once.
		r.doc.PostMessageToParent(CrossOriginMessage{
			Type:       "rrweb",
			Event:      e,
			Origin:     r.doc.Origin(),
			IsCheckout: isCheckout,
		})
		return
	}

	if r.opts.PackFn != nil {
		data, err := r.opts.PackFn(e)
		if err != nil {
			r.warn("pack failed", err)
			return
		}
		r.opts.EmitPacked(data, isCheckout)
		return
	}

	r.opts.Emit(e, isCheckout)
}

func isMutationEvent(e *event.Event) bool {
	if e.Type != event.IncrementalSnapshot {
		return false
	}
	_, ok := e.Data.(*event.MutationData)
	return ok
}

// notifyVisibilityActivity feeds the visibility checkout counter.
func (r *recording) notifyVisibilityActivity(count int) {
	r.vmCount += count
}

func (r *recording) checkoutBookkeeping(e *event.Event) {
	switch e.Type {
	case event.FullSnapshot:
		r.lastFullTs = e.Timestamp
		r.incCount = 0
		r.vmCount = 0
	case event.IncrementalSnapshot:
		if md, ok := e.Data.(*event.MutationData); ok && md.IsAttachIframe {
			// Counts as a full snapshot: the counter is not bumped.
			return
		}
		r.incCount++

		exceedCount := r.opts.CheckoutEveryNth > 0 && r.incCount >= r.opts.CheckoutEveryNth
		exceedTime := r.opts.CheckoutEveryNms > 0 && e.Timestamp-r.lastFullTs > r.opts.CheckoutEveryNms
		exceedVM := r.opts.CheckoutEveryNvm > 0 && r.vmCount >= r.opts.CheckoutEveryNvm

		if (exceedCount || exceedTime || exceedVM) && !r.takingSnapshot {
			if err := r.takeFullSnapshot(true); err != nil {
				r.warn("checkout snapshot", err)
			}
		}
	}
}

// takeFullSnapshot emits Meta + FullSnapshot. Mutation buffers and the
// visibility manager are locked for the duration; everything enqueued
// meanwhile flushes right after the snapshot, so the FullSnapshot
// always precedes those incrementals in the stream.
func (r *recording) takeFullSnapshot(isCheckout bool) error {
	if r.takingSnapshot || !r.opts.recordDOM() {
		return nil
	}
	r.takingSnapshot = true
	defer func() { r.takingSnapshot = false }()

	for _, b := range r.buffers {
		b.Lock()
	}
	if r.vis != nil {
		r.vis.Lock()
	}

	w, h := r.doc.Viewport()
	r.emit(&event.Event{Type: event.Meta, Data: &event.MetaData{
		Href: r.doc.Href(), Width: w, Height: h,
	}}, isCheckout)

	node, err := r.serializer.SerializeDocument(r.doc)
	if err != nil {
		r.warn("serialize document", err)
		for _, b := range r.buffers {
			b.Unlock()
		}
		if r.vis != nil {
			r.vis.Unlock()
		}
		return err
	}

	x, y := r.doc.Scroll()
	r.emit(&event.Event{Type: event.FullSnapshot, Data: &event.FullSnapshotData{
		Node:          node,
		InitialOffset: event.Offset{Top: y, Left: x},
	}}, isCheckout)

	for _, b := range r.buffers {
		b.Unlock()
	}
	if r.vis != nil {
		r.vis.Unlock()
	}
	return nil
}
