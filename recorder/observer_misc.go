package recorder

import (
	"github.com/Appsurify/rrweb/dom"
	"github.com/Appsurify/rrweb/event"
)

// --- canvas ---

// installCanvas batches captured draw commands per element per frame.
// Sampling "snapshot" emits the rendered data URL instead of commands.
func (r *recording) installCanvas(doc *dom.Document) func() {
	if !r.opts.RecordCanvas {
		return nil
	}
	sched := doc.Scheduler()
	pending := make(map[*dom.Node][]event.CanvasCommand)
	apis := make(map[*dom.Node]dom.CanvasAPI)
	var order []*dom.Node
	scheduled := false
	stopped := false

	flush := func(int64) {
		scheduled = false
		if stopped {
			return
		}
		for _, el := range order {
			cmds := pending[el]
			id := r.mirror.GetID(el)
			if id <= 0 || len(cmds) == 0 {
				continue
			}
			data := &event.CanvasMutationData{
				ID:      id,
				Context: event.CanvasContext(apis[el]),
			}
			if r.opts.Sampling.Canvas == "snapshot" {
				if c := el.Canvas(); c != nil && c.DataURL() != "" {
					data.DataURL = c.DataURL()
				} else {
					continue
				}
			} else {
				data.Commands = cmds
			}
			if r.opts.Hooks.CanvasMutation != nil {
				r.opts.Hooks.CanvasMutation(data)
			}
			r.emitIncremental(data)
		}
		pending = make(map[*dom.Node][]event.CanvasCommand)
		order = order[:0]
	}

	restore := doc.OnCanvasOp(func(el *dom.Node, op dom.CanvasOp) {
		if r.isBlockedTarget(el) {
			return
		}
		if _, ok := pending[el]; !ok {
			order = append(order, el)
		}
		pending[el] = append(pending[el], event.CanvasCommand{
			Property: op.Property, Args: op.Args, Setter: op.Setter,
		})
		apis[el] = op.API
		if !scheduled {
			scheduled = true
			sched.RequestAnimationFrame(flush)
		}
	})

	return func() {
		stopped = true
		restore()
	}
}

// --- fonts ---

func (r *recording) installFont(doc *dom.Document) func() {
	if !r.opts.CollectFonts {
		return nil
	}
	return doc.OnFontLoad(func(f dom.FontFace) {
		data := &event.FontData{
			Family:      f.Family,
			FontSource:  f.Source,
			Buffer:      f.Buffer,
			Descriptors: f.Descriptors,
		}
		if r.opts.Hooks.Font != nil {
			r.opts.Hooks.Font(data)
		}
		r.emitIncremental(data)
	})
}

// --- custom elements ---

func (r *recording) installCustomElement(doc *dom.Document) func() {
	return doc.OnCustomElement(func(name string) {
		r.emitIncremental(&event.CustomElementData{
			Define: &event.CustomElementDefine{Name: name},
		})
	})
}
