package recorder

import (
	"github.com/Appsurify/rrweb/dom"
	"github.com/Appsurify/rrweb/event"
	"github.com/Appsurify/rrweb/snapshot"
)

// CrossOriginMessage is the frame-boundary protocol: a child recorder
// posts each event to its parent, which validates the origin, rewrites
// ids through the per-iframe secondary mirrors, and re-emits.
type CrossOriginMessage struct {
	Type       string       `json:"type"` // always "rrweb"
	Event      *event.Event `json:"event"`
	Origin     string       `json:"origin"`
	IsCheckout bool         `json:"isCheckout"`
}

// ControlMessage carries parent→child lifecycle signals.
type ControlMessage struct {
	Type string `json:"type"` // "rrweb-stop"
}

// iframeManager recurses observers into same-origin frames and
// translates events forwarded by cross-origin child recorders.
type iframeManager struct {
	r          *recording
	sameOrigin map[*dom.Node]bool
	cross      map[*dom.Node]*crossFrame
	restores   []func()
}

type crossFrame struct {
	el          *dom.Node
	nodeMirror  map[int]int // child node id → parent node id
	styleMirror map[int]int // child style id → parent style id
}

func newIframeManager(r *recording) *iframeManager {
	return &iframeManager{
		r:          r,
		sameOrigin: make(map[*dom.Node]bool),
		cross:      make(map[*dom.Node]*crossFrame),
	}
}

func (im *iframeManager) install(doc *dom.Document) {
	// Frame attach after snapshot: the iframe element dispatches "load"
	// when its content document arrives.
	im.restores = append(im.restores, doc.AddEventListener("load", func(e *dom.DOMEvent) {
		if e.Target == nil || e.Target.Tag() != "iframe" {
			return
		}
		im.AttachIframe(e.Target)
	}))

	if im.r.opts.RecordCrossOriginIframes {
		im.restores = append(im.restores, doc.OnMessage(im.onMessage))
	}
}

// ObserveSameOrigin installs observers into an already-serialized
// same-origin frame document. Idempotent per frame element.
func (im *iframeManager) ObserveSameOrigin(el *dom.Node) {
	if im.sameOrigin[el] {
		return
	}
	child := el.ContentDocument()
	if child == nil {
		return
	}
	im.sameOrigin[el] = true
	im.r.installFrameDocument(child)
}

// RegisterCrossOrigin starts tracking a cross-origin iframe whose child
// recorder forwards events by postMessage.
func (im *iframeManager) RegisterCrossOrigin(el *dom.Node) {
	if !im.r.opts.RecordCrossOriginIframes {
		return
	}
	if _, ok := im.cross[el]; ok {
		return
	}
	im.cross[el] = &crossFrame{
		el:          el,
		nodeMirror:  make(map[int]int),
		styleMirror: make(map[int]int),
	}
}

// AttachIframe handles a frame whose content document arrived after the
// element was serialized: same-origin content is serialized and emitted
// as an isAttachIframe mutation, then recursed into; cross-origin
// frames are registered for message forwarding.
func (im *iframeManager) AttachIframe(el *dom.Node) {
	frameDoc := el.FrameDocument()
	if frameDoc == nil {
		return
	}
	if el.ContentDocument() == nil {
		im.RegisterCrossOrigin(el)
		return
	}

	elID := im.r.mirror.GetID(el)
	if elID <= 0 {
		// Not serialized yet; content rides along when it is.
		return
	}
	if im.sameOrigin[el] {
		return
	}

	root, err := im.r.serializer.SerializeFrameDocument(frameDoc, elID)
	if err != nil {
		im.r.warn("attach iframe", err)
		return
	}
	im.r.emitIncremental(&event.MutationData{
		Texts:          []event.TextMutation{},
		Attributes:     []event.AttributeMutation{},
		Removes:        []event.RemovedNode{},
		Adds:           []event.AddedNode{{ParentID: elID, Node: root}},
		IsAttachIframe: true,
	})
	im.ObserveSameOrigin(el)
}

// StopChildren posts the stop signal into every tracked cross-origin
// frame.
func (im *iframeManager) StopChildren() {
	for el := range im.cross {
		if fd := el.FrameDocument(); fd != nil {
			fd.PostMessage(im.r.doc.Origin(), ControlMessage{Type: "rrweb-stop"})
		}
	}
}

func (im *iframeManager) uninstall() {
	for _, restore := range im.restores {
		restore()
	}
	im.restores = nil
}

// --- cross-origin forwarding ---

func (im *iframeManager) onMessage(origin string, data any) {
	msg, ok := data.(CrossOriginMessage)
	if !ok {
		if p, isPtr := data.(*CrossOriginMessage); isPtr {
			msg = *p
		} else {
			return
		}
	}
	if msg.Type != "rrweb" || msg.Event == nil {
		return
	}

	frame := im.frameForOrigin(origin)
	if frame == nil {
		im.r.logger().Warn("recorder: rrweb message from unregistered origin", "origin", origin)
		return
	}
	if msg.Origin != origin {
		im.r.logger().Warn("recorder: rrweb message origin mismatch",
			"claimed", msg.Origin, "actual", origin)
		return
	}

	im.rewriteEvent(frame, msg.Event)
	im.r.emit(msg.Event, msg.IsCheckout)
}

func (im *iframeManager) frameForOrigin(origin string) *crossFrame {
	for _, frame := range im.cross {
		if fd := frame.el.FrameDocument(); fd != nil && fd.Origin() == origin {
			return frame
		}
	}
	return nil
}

func (im *iframeManager) translate(frame *crossFrame, childID int) int {
	if childID <= 0 {
		return childID
	}
	if id, ok := frame.nodeMirror[childID]; ok {
		return id
	}
	id := im.r.serializer.ReserveID()
	frame.nodeMirror[childID] = id
	return id
}

func (im *iframeManager) translateStyle(frame *crossFrame, childID int) int {
	if childID <= 0 {
		return childID
	}
	return im.r.stylesheets.TranslateStyleID(frame.styleMirror, childID)
}

func (im *iframeManager) rewriteEvent(frame *crossFrame, e *event.Event) {
	switch d := e.Data.(type) {
	case *event.FullSnapshotData:
		im.rewriteTree(frame, d.Node)
	case *event.MutationData:
		for i := range d.Adds {
			d.Adds[i].ParentID = im.translate(frame, d.Adds[i].ParentID)
			if d.Adds[i].NextID != nil {
				next := im.translate(frame, *d.Adds[i].NextID)
				d.Adds[i].NextID = &next
			}
			im.rewriteTree(frame, d.Adds[i].Node)
		}
		for i := range d.Removes {
			d.Removes[i].ParentID = im.translate(frame, d.Removes[i].ParentID)
			d.Removes[i].ID = im.translate(frame, d.Removes[i].ID)
		}
		for i := range d.Texts {
			d.Texts[i].ID = im.translate(frame, d.Texts[i].ID)
		}
		for i := range d.Attributes {
			d.Attributes[i].ID = im.translate(frame, d.Attributes[i].ID)
		}
	case *event.MouseMoveData:
		for i := range d.Positions {
			d.Positions[i].ID = im.translate(frame, d.Positions[i].ID)
		}
	case *event.MouseInteractionData:
		d.ID = im.translate(frame, d.ID)
	case *event.ScrollData:
		d.ID = im.translate(frame, d.ID)
	case *event.InputData:
		d.ID = im.translate(frame, d.ID)
	case *event.MediaInteractionData:
		d.ID = im.translate(frame, d.ID)
	case *event.StyleSheetRuleData:
		d.ID = im.translate(frame, d.ID)
		d.StyleID = im.translateStyle(frame, d.StyleID)
	case *event.StyleDeclarationData:
		d.ID = im.translate(frame, d.ID)
		d.StyleID = im.translateStyle(frame, d.StyleID)
	case *event.AdoptedStyleSheetData:
		d.ID = im.translate(frame, d.ID)
		for i := range d.StyleIDs {
			d.StyleIDs[i] = im.translateStyle(frame, d.StyleIDs[i])
		}
		for i := range d.Styles {
			d.Styles[i].StyleID = im.translateStyle(frame, d.Styles[i].StyleID)
		}
	case *event.CanvasMutationData:
		d.ID = im.translate(frame, d.ID)
	case *event.SelectionData:
		for i := range d.Ranges {
			d.Ranges[i].Start = im.translate(frame, d.Ranges[i].Start)
			d.Ranges[i].End = im.translate(frame, d.Ranges[i].End)
		}
	case *event.VisibilityMutationData:
		for i := range d.Mutations {
			d.Mutations[i].ID = im.translate(frame, d.Mutations[i].ID)
		}
	}
}

func (im *iframeManager) rewriteTree(frame *crossFrame, n *snapshot.Node) {
	if n == nil {
		return
	}
	n.Walk(func(sn *snapshot.Node) {
		sn.ID = im.translate(frame, sn.ID)
		if sn.RootID != 0 {
			sn.RootID = im.translate(frame, sn.RootID)
		}
	})
}
