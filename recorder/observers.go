package recorder

import (
	"github.com/Appsurify/rrweb/dom"
	"github.com/Appsurify/rrweb/event"
)

// installObservers attaches the per-source incremental producers to one
// document and returns their disposers, in install order (the order
// events are emitted within one frame).
func (r *recording) installObservers(doc *dom.Document) []func() {
	var disposers []func()
	add := func(d func()) {
		if d != nil {
			disposers = append(disposers, d)
		}
	}

	add(r.installMouseMove(doc))
	add(r.installMouseInteraction(doc))
	add(r.installScroll(doc))
	add(r.installViewportResize(doc))
	add(r.installInput(doc))
	add(r.installMedia(doc))
	add(r.installSelection(doc))
	add(r.installStyleSheetObservers(doc))
	add(r.installCanvas(doc))
	add(r.installFont(doc))
	add(r.installCustomElement(doc))
	return disposers
}

// --- mouse / touch movement ---

type moveBatch struct {
	positions []event.MousePosition
	touch     bool
	start     int64
	timerID   int
}

func (r *recording) installMouseMove(doc *dom.Document) func() {
	sched := doc.Scheduler()
	batch := &moveBatch{}

	flush := func() {
		if len(batch.positions) == 0 {
			return
		}
		data := &event.MouseMoveData{Positions: batch.positions, Touch: batch.touch}
		if r.opts.Hooks.MouseMove != nil {
			r.opts.Hooks.MouseMove(data)
		}
		r.emitIncremental(data)
		batch.positions = nil
		batch.timerID = 0
	}

	handler := func(touch bool) dom.ListenerFunc {
		return func(e *dom.DOMEvent) {
			if r.isBlockedTarget(e.Target) {
				return
			}
			if len(batch.positions) > 0 && batch.touch != touch {
				if batch.timerID != 0 {
					sched.ClearTimeout(batch.timerID)
					batch.timerID = 0
				}
				flush()
			}
			now := sched.NowMillis()
			if len(batch.positions) == 0 {
				batch.start = now
				batch.touch = touch
			}
			batch.positions = append(batch.positions, event.MousePosition{
				X: e.X, Y: e.Y,
				ID:         r.mirror.GetID(e.Target),
				TimeOffset: now - batch.start,
			})
			if batch.timerID == 0 {
				batch.timerID = sched.SetTimeout(flush, r.opts.Sampling.MouseMove)
			}
		}
	}

	rm1 := doc.AddEventListener("mousemove", handler(false))
	rm2 := doc.AddEventListener("touchmove", handler(true))
	return func() {
		rm1()
		rm2()
		if batch.timerID != 0 {
			sched.ClearTimeout(batch.timerID)
		}
	}
}

// --- discrete pointer interactions ---

var interactionKinds = map[string]event.MouseInteractionKind{
	"mouseup":     event.MouseUp,
	"mousedown":   event.MouseDown,
	"click":       event.Click,
	"contextmenu": event.ContextMenu,
	"dblclick":    event.DblClick,
	"focus":       event.Focus,
	"blur":        event.Blur,
	"touchstart":  event.TouchStart,
	"touchend":    event.TouchEnd,
	"touchcancel": event.TouchCancel,
}

var interactionNames = map[event.MouseInteractionKind]string{
	event.MouseUp: "MouseUp", event.MouseDown: "MouseDown",
	event.Click: "Click", event.ContextMenu: "ContextMenu",
	event.DblClick: "DblClick", event.Focus: "Focus", event.Blur: "Blur",
	event.TouchStart: "TouchStart", event.TouchEnd: "TouchEnd",
	event.TouchCancel: "TouchCancel",
}

func (r *recording) installMouseInteraction(doc *dom.Document) func() {
	var removes []func()
	for name, kind := range interactionKinds {
		kind := kind
		if s := r.opts.Sampling.MouseInteraction; s != nil {
			if enabled, listed := s[interactionNames[kind]]; listed && !enabled {
				continue
			}
		}
		removes = append(removes, doc.AddEventListener(name, func(e *dom.DOMEvent) {
			if r.isBlockedTarget(e.Target) {
				return
			}
			id := r.mirror.GetID(e.Target)
			if id <= 0 {
				return
			}
			data := &event.MouseInteractionData{Kind: kind, ID: id, X: e.X, Y: e.Y}
			if r.opts.Hooks.MouseInteraction != nil {
				r.opts.Hooks.MouseInteraction(data)
			}
			r.emitIncremental(data)
		}))
	}
	return func() {
		for _, rm := range removes {
			rm()
		}
	}
}

// --- scroll ---

func (r *recording) installScroll(doc *dom.Document) func() {
	sched := doc.Scheduler()
	lastEmit := make(map[int]int64)

	return doc.AddEventListener("scroll", func(e *dom.DOMEvent) {
		if r.isBlockedTarget(e.Target) {
			return
		}
		id := r.mirror.GetID(e.Target)
		if id <= 0 {
			return
		}
		if wait := r.opts.Sampling.Scroll; wait > 0 {
			now := sched.NowMillis()
			if last, ok := lastEmit[id]; ok && now-last < wait {
				return
			}
			lastEmit[id] = now
		}
		var x, y float64
		if e.Target.Type() == dom.DocumentNode {
			x, y = doc.Scroll()
		} else {
			x, y = e.Target.Scroll()
		}
		data := &event.ScrollData{ID: id, X: x, Y: y}
		if r.opts.Hooks.Scroll != nil {
			r.opts.Hooks.Scroll(data)
		}
		r.emitIncremental(data)
	})
}

// --- viewport resize ---

func (r *recording) installViewportResize(doc *dom.Document) func() {
	return doc.AddEventListener("resize", func(e *dom.DOMEvent) {
		w, h := doc.Viewport()
		data := &event.ViewportResizeData{Width: w, Height: h}
		if r.opts.Hooks.ViewportResize != nil {
			r.opts.Hooks.ViewportResize(data)
		}
		r.emitIncremental(data)
	})
}

// --- input ---

type lastInput struct {
	text    string
	checked bool
	valid   bool
}

func (r *recording) installInput(doc *dom.Document) func() {
	sched := doc.Scheduler()
	last := make(map[*dom.Node]lastInput)
	timers := make(map[*dom.Node]int)

	emitFor := func(el *dom.Node, userTriggered bool) {
		id := r.mirror.GetID(el)
		if id <= 0 {
			return
		}
		text := el.Value()
		if r.serializer.ShouldMaskInputValue(el) {
			text = r.serializer.MaskInputValue(text, el)
		}
		checked := el.Checked()
		if prev, ok := last[el]; ok && prev.valid && prev.text == text && prev.checked == checked {
			return
		}
		last[el] = lastInput{text: text, checked: checked, valid: true}

		data := &event.InputData{ID: id, Text: text, IsChecked: checked}
		if r.opts.UserTriggeredOnInput {
			data.UserTriggered = userTriggered
		}
		if r.opts.Hooks.Input != nil {
			r.opts.Hooks.Input(data)
		}
		r.emitIncremental(data)
	}

	handler := func(e *dom.DOMEvent) {
		el := e.Target
		if el == nil || el.Type() != dom.ElementNode {
			return
		}
		switch el.Tag() {
		case "input", "textarea", "select":
		default:
			return
		}
		if r.isBlockedTarget(el) || r.isIgnoredTarget(el) {
			return
		}
		if r.opts.Sampling.Input == "all" {
			emitFor(el, e.UserTriggered)
			return
		}
		// "last": only the final value per quiescent burst.
		userTriggered := e.UserTriggered
		if id, ok := timers[el]; ok {
			sched.ClearTimeout(id)
		}
		timers[el] = sched.SetTimeout(func() {
			delete(timers, el)
			emitFor(el, userTriggered)
		}, inputQuiescenceMS)
	}

	rm1 := doc.AddEventListener("input", handler)
	rm2 := doc.AddEventListener("change", handler)
	return func() {
		rm1()
		rm2()
		for _, id := range timers {
			sched.ClearTimeout(id)
		}
	}
}

// inputQuiescenceMS bounds a typing burst for sampling.input = "last".
const inputQuiescenceMS = 150

// --- media ---

var mediaKinds = map[string]event.MediaKind{
	"play":         event.MediaPlay,
	"pause":        event.MediaPause,
	"seeked":       event.MediaSeeked,
	"volumechange": event.MediaVolumeChange,
}

func (r *recording) installMedia(doc *dom.Document) func() {
	sched := doc.Scheduler()
	lastEmit := make(map[*dom.Node]int64)

	var removes []func()
	for name, kind := range mediaKinds {
		kind := kind
		removes = append(removes, doc.AddEventListener(name, func(e *dom.DOMEvent) {
			el := e.Target
			if el == nil || (el.Tag() != "video" && el.Tag() != "audio") {
				return
			}
			if r.isBlockedTarget(el) {
				return
			}
			id := r.mirror.GetID(el)
			if id <= 0 {
				return
			}
			if wait := r.opts.Sampling.Media; wait > 0 {
				now := sched.NowMillis()
				if lastT, ok := lastEmit[el]; ok && now-lastT < wait {
					return
				}
				lastEmit[el] = now
			}
			volume, muted := el.Volume()
			data := &event.MediaInteractionData{
				Kind: kind, ID: id,
				CurrentTime: el.CurrentTime(),
				Volume:      volume, Muted: muted,
			}
			if r.opts.Hooks.MediaInteraction != nil {
				r.opts.Hooks.MediaInteraction(data)
			}
			r.emitIncremental(data)
		}))
	}
	return func() {
		for _, rm := range removes {
			rm()
		}
	}
}

// --- selection ---

func (r *recording) installSelection(doc *dom.Document) func() {
	return doc.AddEventListener("selectionchange", func(e *dom.DOMEvent) {
		sel := doc.GetSelection()
		if sel == nil {
			return
		}
		start := r.mirror.GetID(sel.Start)
		end := r.mirror.GetID(sel.End)
		if start <= 0 || end <= 0 {
			return
		}
		data := &event.SelectionData{Ranges: []event.SelectionRange{{
			Start: start, StartOffset: sel.StartOffset,
			End: end, EndOffset: sel.EndOffset,
		}}}
		if r.opts.Hooks.Selection != nil {
			r.opts.Hooks.Selection(data)
		}
		r.emitIncremental(data)
	})
}
