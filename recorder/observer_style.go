package recorder

import (
	"github.com/Appsurify/rrweb/dom"
	"github.com/Appsurify/rrweb/event"
)

// installStyleSheetObservers wires the three style sources of one
// document: insertRule/deleteRule, direct declaration writes, and
// adoptedStyleSheets replacement.
func (r *recording) installStyleSheetObservers(doc *dom.Document) func() {
	restoreRule := doc.OnStyleSheetRule(func(sheet *dom.StyleSheet, rule string, index int, insert bool) {
		data := &event.StyleSheetRuleData{}
		if owner := sheet.Owner(); owner != nil {
			id := r.mirror.GetID(owner)
			if id <= 0 {
				return
			}
			data.ID = id
		} else {
			data.StyleID = r.stylesheets.StyleIDFor(sheet)
		}
		if insert {
			data.Adds = []event.StyleSheetAddRule{{Rule: rule, Index: index}}
		} else {
			data.Removes = []event.StyleSheetDeleteRule{{Index: index}}
		}
		if r.opts.Hooks.StyleSheetRule != nil {
			r.opts.Hooks.StyleSheetRule(data)
		}
		r.emitIncremental(data)
	})

	restoreDecl := doc.OnStyleDeclaration(func(target *dom.Node, property, value, priority string, remove bool) {
		if r.opts.IgnoreCSSAttributes[property] {
			return
		}
		id := r.mirror.GetID(target)
		if id <= 0 {
			return
		}
		data := &event.StyleDeclarationData{ID: id, Index: []int{}}
		if remove {
			data.Remove = &event.StyleRemoveProperty{Property: property}
		} else {
			data.Set = &event.StyleSetProperty{Property: property, Value: value, Priority: priority}
		}
		if r.opts.Hooks.StyleDeclaration != nil {
			r.opts.Hooks.StyleDeclaration(data)
		}
		r.emitIncremental(data)
	})

	restoreAdopted := doc.OnAdoptedStyleSheets(func(d *dom.Document) {
		data := r.stylesheets.AdoptedData(d)
		if data == nil {
			return
		}
		r.emitIncremental(data)
	})

	return func() {
		restoreRule()
		restoreDecl()
		restoreAdopted()
	}
}
