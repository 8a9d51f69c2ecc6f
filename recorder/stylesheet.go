package recorder

import (
	"github.com/Appsurify/rrweb/dom"
	"github.com/Appsurify/rrweb/event"
	"github.com/Appsurify/rrweb/snapshot"
)

// stylesheetManager tracks constructed (adopted) sheets by stable style
// id and re-emits linked sheets once their rules become available.
type stylesheetManager struct {
	r           *recording
	styleIDs    map[*dom.StyleSheet]int
	nextStyleID int
	sentStyles  map[*dom.StyleSheet]bool
	restores    []func()
}

func newStylesheetManager(r *recording) *stylesheetManager {
	return &stylesheetManager{
		r:          r,
		styleIDs:   make(map[*dom.StyleSheet]int),
		sentStyles: make(map[*dom.StyleSheet]bool),
	}
}

// StyleIDFor returns the stable id of a constructed sheet, assigning
// one on first sight.
func (sm *stylesheetManager) StyleIDFor(sheet *dom.StyleSheet) int {
	if id, ok := sm.styleIDs[sheet]; ok {
		return id
	}
	sm.nextStyleID++
	sm.styleIDs[sheet] = sm.nextStyleID
	return sm.nextStyleID
}

// TranslateStyleID maps a child frame's style id into this manager's
// space (cross-origin forwarding).
func (sm *stylesheetManager) TranslateStyleID(mirror map[int]int, childID int) int {
	if id, ok := mirror[childID]; ok {
		return id
	}
	sm.nextStyleID++
	mirror[childID] = sm.nextStyleID
	return sm.nextStyleID
}

// AdoptedData builds the full adopted-list event for a document,
// including rule texts for sheets seen for the first time.
func (sm *stylesheetManager) AdoptedData(doc *dom.Document) *event.AdoptedStyleSheetData {
	rootID := sm.r.mirror.GetID(doc.Root())
	if rootID <= 0 {
		return nil
	}
	data := &event.AdoptedStyleSheetData{ID: rootID, StyleIDs: []int{}}
	for _, sheet := range doc.AdoptedStyleSheets() {
		id := sm.StyleIDFor(sheet)
		data.StyleIDs = append(data.StyleIDs, id)
		if !sm.sentStyles[sheet] {
			sm.sentStyles[sheet] = true
			rules := make([]string, len(sheet.Rules()))
			copy(rules, sheet.Rules())
			data.Styles = append(data.Styles, event.AdoptedStyleSheet{StyleID: id, Rules: rules})
		}
	}
	return data
}

// install hooks linked-sheet loads on one document: when a
// <link rel=stylesheet>'s rules become available after initial
// serialization, the serialized cssText is re-emitted as an attribute
// mutation on the owning element.
func (sm *stylesheetManager) install(doc *dom.Document) {
	sm.restores = append(sm.restores, doc.OnLinkSheetLoad(func(el *dom.Node, sheet *dom.StyleSheet) {
		sm.onLinkLoad(el, sheet)
	}))
}

// TrackPending registers an unloaded linked sheet discovered during
// serialization (the serializer's OnStylesheetLoad callback).
func (sm *stylesheetManager) TrackPending(el *dom.Node, sheet *dom.StyleSheet) {
	// Nothing to do eagerly; the link-load hook fires when rules land.
	_ = el
	_ = sheet
}

func (sm *stylesheetManager) onLinkLoad(el *dom.Node, sheet *dom.StyleSheet) {
	id := sm.r.mirror.GetID(el)
	if id <= 0 || !sheet.Loaded() {
		return
	}
	css := snapshot.StringifySheet(sheet)
	data := &event.MutationData{
		Texts:      []event.TextMutation{},
		Removes:    []event.RemovedNode{},
		Adds:       []event.AddedNode{},
		Attributes: []event.AttributeMutation{{
			ID:         id,
			Attributes: map[string]*string{"_cssText": &css},
		}},
	}
	sm.r.emitIncremental(data)
}

func (sm *stylesheetManager) uninstall() {
	for _, restore := range sm.restores {
		restore()
	}
	sm.restores = nil
}
