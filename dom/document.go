package dom

// Document is one live document: the top page or the content document
// of a frame. Frame documents share the top document's scheduler —
// there is only one main loop.
type Document struct {
	sched *Scheduler
	root  *Node // DocumentNode

	href       string
	origin     string
	compatMode string

	viewportW int
	viewportH int
	scrollX   float64
	scrollY   float64

	parent       *Document
	frameElement *Node

	observers        []*MutationObserver
	pendingMutations []MutationRecord
	deliveryQueued   bool

	adopted []*StyleSheet

	fonts          []FontFace
	customElements []string
	selection      *Selection

	msgHandlers []*messageHandler

	readyState string

	hooks hooks
}

// hooks are single-consumer callbacks the recorder installs. Each
// setter returns a restore func so stop leaves the document clean.
type hooks struct {
	listener      func(target *Node, eventType string)
	styleRule     func(sheet *StyleSheet, rule string, index int, insert bool)
	styleDecl     func(target *Node, property, value, priority string, remove bool)
	adopted       func(doc *Document)
	canvas        func(el *Node, op CanvasOp)
	font          func(f FontFace)
	customElement func(name string)
	attachShadow  func(host *Node)
	linkLoad      func(el *Node, sheet *StyleSheet)
}

// DocumentOptions configure a new top-level document.
type DocumentOptions struct {
	Href      string
	Origin    string
	Width     int
	Height    int
	StartTime int64 // scheduler epoch start, milliseconds
	Scheduler *Scheduler
}

// NewDocument creates an empty live document.
func NewDocument(opts DocumentOptions) *Document {
	if opts.Width <= 0 {
		opts.Width = 1280
	}
	if opts.Height <= 0 {
		opts.Height = 720
	}
	sched := opts.Scheduler
	if sched == nil {
		sched = NewScheduler(opts.StartTime)
	}
	d := &Document{
		sched:      sched,
		href:       opts.Href,
		origin:     opts.Origin,
		compatMode: "CSS1Compat",
		viewportW:  opts.Width,
		viewportH:  opts.Height,
		readyState: "complete",
	}
	d.root = &Node{doc: d, typ: DocumentNode}
	return d
}

// Scheduler returns the shared main loop.
func (d *Document) Scheduler() *Scheduler { return d.sched }

// Root returns the document node.
func (d *Document) Root() *Node { return d.root }

// Href returns the document URL.
func (d *Document) Href() string { return d.href }

// SetHref updates the document URL (SPA navigation).
func (d *Document) SetHref(href string) { d.href = href }

// Origin returns the document origin.
func (d *Document) Origin() string { return d.origin }

// CompatMode returns "CSS1Compat" or "BackCompat".
func (d *Document) CompatMode() string { return d.compatMode }

// SetCompatMode overrides the compat mode (set by the parser).
func (d *Document) SetCompatMode(mode string) { d.compatMode = mode }

// DocumentElement returns the <html> element, or nil.
func (d *Document) DocumentElement() *Node {
	for _, k := range d.root.kids {
		if k.typ == ElementNode {
			return k
		}
	}
	return nil
}

// Body returns the <body> element, or nil.
func (d *Document) Body() *Node {
	if de := d.DocumentElement(); de != nil {
		for _, k := range de.kids {
			if k.typ == ElementNode && k.tag == "body" {
				return k
			}
		}
	}
	return nil
}

// Head returns the <head> element, or nil.
func (d *Document) Head() *Node {
	if de := d.DocumentElement(); de != nil {
		for _, k := range de.kids {
			if k.typ == ElementNode && k.tag == "head" {
				return k
			}
		}
	}
	return nil
}

// --- constructors ---

// CreateElement creates a detached element.
func (d *Document) CreateElement(tag string) *Node {
	return &Node{doc: d, typ: ElementNode, tag: lower(tag)}
}

// CreateSVGElement creates a detached element in the SVG namespace.
func (d *Document) CreateSVGElement(tag string) *Node {
	return &Node{doc: d, typ: ElementNode, tag: lower(tag), isSVG: true}
}

// CreateTextNode creates a detached text node.
func (d *Document) CreateTextNode(text string) *Node {
	return &Node{doc: d, typ: TextNode, text: text}
}

// CreateComment creates a detached comment node.
func (d *Document) CreateComment(text string) *Node {
	return &Node{doc: d, typ: CommentNode, text: text}
}

// CreateCDATA creates a detached CDATA section.
func (d *Document) CreateCDATA(text string) *Node {
	return &Node{doc: d, typ: CDATANode, text: text}
}

// CreateDoctype creates a detached doctype node.
func (d *Document) CreateDoctype(name, publicID, systemID string) *Node {
	return &Node{doc: d, typ: DoctypeNode, name: name, publicID: publicID, systemID: systemID}
}

// --- viewport ---

// Viewport returns the viewport size.
func (d *Document) Viewport() (w, h int) { return d.viewportW, d.viewportH }

// SetViewport updates the viewport size and dispatches "resize".
func (d *Document) SetViewport(w, h int) {
	d.viewportW, d.viewportH = w, h
	d.root.Dispatch(&DOMEvent{Type: "resize", Target: d.root})
}

// Scroll returns the document scroll offsets.
func (d *Document) Scroll() (x, y float64) { return d.scrollX, d.scrollY }

// SetScroll updates the document scroll offsets and dispatches "scroll"
// with the document node as target.
func (d *Document) SetScroll(x, y float64) {
	d.scrollX, d.scrollY = x, y
	d.root.Dispatch(&DOMEvent{Type: "scroll", Target: d.root})
}

// --- document-level listeners ---

// AddEventListener registers a listener on the document node.
func (d *Document) AddEventListener(eventType string, fn ListenerFunc) func() {
	return d.root.AddEventListener(eventType, fn)
}

// Dispatch dispatches an event starting at its target (or the document
// node when the event has none).
func (d *Document) Dispatch(e *DOMEvent) {
	if e.Target == nil {
		e.Target = d.root
	}
	e.Target.Dispatch(e)
}

// --- readiness ---

// ReadyState returns "loading", "interactive", or "complete".
// Parsed and newly created documents start "complete".
func (d *Document) ReadyState() string { return d.readyState }

// SetReadyState advances document readiness, dispatching
// "DOMContentLoaded" when reaching interactive and "load" when
// reaching complete.
func (d *Document) SetReadyState(state string) {
	prev := d.readyState
	d.readyState = state
	if state == "interactive" && prev == "loading" {
		d.root.Dispatch(&DOMEvent{Type: "DOMContentLoaded", Target: d.root})
	}
	if state == "complete" && prev != "complete" {
		if prev == "loading" {
			d.root.Dispatch(&DOMEvent{Type: "DOMContentLoaded", Target: d.root})
		}
		d.root.Dispatch(&DOMEvent{Type: "load", Target: d.root})
	}
}

// --- selection ---

// Selection is the current document selection as node+offset bounds.
type Selection struct {
	Start       *Node
	StartOffset int
	End         *Node
	EndOffset   int
}

// SetSelection updates the selection and dispatches "selectionchange".
func (d *Document) SetSelection(sel *Selection) {
	d.selection = sel
	d.root.Dispatch(&DOMEvent{Type: "selectionchange", Target: d.root})
}

// GetSelection returns the current selection, or nil.
func (d *Document) GetSelection() *Selection { return d.selection }

// --- fonts ---

// FontFace describes one loaded font face.
type FontFace struct {
	Family      string
	Source      string
	Buffer      bool
	Descriptors map[string]string
}

// AddFontFace registers a loaded face and notifies the font hook.
func (d *Document) AddFontFace(f FontFace) {
	d.fonts = append(d.fonts, f)
	if d.hooks.font != nil {
		d.hooks.font(f)
	}
}

// Fonts returns the loaded faces.
func (d *Document) Fonts() []FontFace { return d.fonts }

// --- custom elements ---

// DefineCustomElement records a customElements.define call and
// notifies the hook.
func (d *Document) DefineCustomElement(name string) {
	d.customElements = append(d.customElements, name)
	if d.hooks.customElement != nil {
		d.hooks.customElement(name)
	}
}

// CustomElements returns the defined custom element names.
func (d *Document) CustomElements() []string { return d.customElements }

// --- hook setters (single consumer; setter returns restore func) ---

// OnAddEventListener observes every AddEventListener call on any target
// in this document. Models the patched EventTarget.prototype.
func (d *Document) OnAddEventListener(fn func(target *Node, eventType string)) func() {
	d.hooks.listener = fn
	return func() { d.hooks.listener = nil }
}

// OnStyleSheetRule observes insertRule/deleteRule on any sheet.
func (d *Document) OnStyleSheetRule(fn func(sheet *StyleSheet, rule string, index int, insert bool)) func() {
	d.hooks.styleRule = fn
	return func() { d.hooks.styleRule = nil }
}

// OnStyleDeclaration observes setProperty/removeProperty on inline
// style declarations.
func (d *Document) OnStyleDeclaration(fn func(target *Node, property, value, priority string, remove bool)) func() {
	d.hooks.styleDecl = fn
	return func() { d.hooks.styleDecl = nil }
}

// OnAdoptedStyleSheets observes replacement of the adopted sheet list.
func (d *Document) OnAdoptedStyleSheets(fn func(doc *Document)) func() {
	d.hooks.adopted = fn
	return func() { d.hooks.adopted = nil }
}

// OnCanvasOp observes captured canvas draw commands.
func (d *Document) OnCanvasOp(fn func(el *Node, op CanvasOp)) func() {
	d.hooks.canvas = fn
	return func() { d.hooks.canvas = nil }
}

// OnFontLoad observes loaded font faces.
func (d *Document) OnFontLoad(fn func(f FontFace)) func() {
	d.hooks.font = fn
	return func() { d.hooks.font = nil }
}

// OnCustomElement observes custom element definitions.
func (d *Document) OnCustomElement(fn func(name string)) func() {
	d.hooks.customElement = fn
	return func() { d.hooks.customElement = nil }
}

// OnAttachShadow observes shadow roots attached after recording start.
func (d *Document) OnAttachShadow(fn func(host *Node)) func() {
	d.hooks.attachShadow = fn
	return func() { d.hooks.attachShadow = nil }
}

// OnLinkSheetLoad observes <link rel=stylesheet> sheets whose rules
// became available after initial serialization.
func (d *Document) OnLinkSheetLoad(fn func(el *Node, sheet *StyleSheet)) func() {
	d.hooks.linkLoad = fn
	return func() { d.hooks.linkLoad = nil }
}

func lower(s string) string {
	b := []byte(s)
	changed := false
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
			changed = true
		}
	}
	if !changed {
		return s
	}
	return string(b)
}
