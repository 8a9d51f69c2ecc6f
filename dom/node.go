package dom

// NodeType classifies a live node.
type NodeType int

const (
	ElementNode NodeType = iota
	TextNode
	CommentNode
	CDATANode
	DocumentNode
	DoctypeNode
	ShadowRootNode
)

// Attr is one attribute. Order is preserved as authored.
type Attr struct {
	Name  string
	Value string
}

// Rect is an element bounding box in viewport coordinates.
type Rect struct {
	Left   float64
	Top    float64
	Width  float64
	Height float64
}

// Area returns the rect's area.
func (r Rect) Area() float64 { return r.Width * r.Height }

// Node is one live DOM node. Element-specific state (attributes,
// listeners, geometry, shadow root, frame content) is only meaningful
// when Type() == ElementNode.
type Node struct {
	doc    *Document
	typ    NodeType
	tag    string // lowercase element tag
	attrs  []Attr
	parent *Node
	kids   []*Node
	text   string

	// doctype
	name     string
	publicID string
	systemID string

	isSVG bool

	// element extras
	listeners  map[string][]*listenerEntry
	style      *StyleDeclaration
	rect       Rect
	hasRect    bool
	value      string
	checked    bool
	scrollX    float64
	scrollY    float64
	shadowRoot *Node
	host       *Node // set on shadow root nodes
	contentDoc *Document
	canvas     *Canvas
	sheet      *StyleSheet

	media mediaState
}

type mediaState struct {
	paused      bool
	currentTime float64
	volume      float64
	muted       bool
}

// Document returns the owning document.
func (n *Node) Document() *Document { return n.doc }

// Type returns the node type.
func (n *Node) Type() NodeType { return n.typ }

// Tag returns the lowercase tag name of an element.
func (n *Node) Tag() string { return n.tag }

// Parent returns the parent node (nil at tree roots and shadow roots).
func (n *Node) Parent() *Node { return n.parent }

// Children returns the ordered child list. Callers must not mutate it.
func (n *Node) Children() []*Node { return n.kids }

// Text returns the character data of text/comment/CDATA nodes.
func (n *Node) Text() string { return n.text }

// IsSVG reports whether the element lives in the SVG namespace.
func (n *Node) IsSVG() bool { return n.isSVG }

// DoctypeName returns name, publicId, systemId of a doctype node.
func (n *Node) DoctypeName() (name, publicID, systemID string) {
	return n.name, n.publicID, n.systemID
}

// Attrs returns the ordered attribute list. Callers must not mutate it.
func (n *Node) Attrs() []Attr { return n.attrs }

// GetAttribute returns the value of the named attribute.
func (n *Node) GetAttribute(name string) (string, bool) {
	for _, a := range n.attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// HasAttribute reports whether the named attribute is present.
func (n *Node) HasAttribute(name string) bool {
	_, ok := n.GetAttribute(name)
	return ok
}

// SetAttribute sets an attribute and queues an attribute mutation.
func (n *Node) SetAttribute(name, value string) {
	old, had := n.GetAttribute(name)
	if had && old == value {
		return
	}
	if had {
		for i := range n.attrs {
			if n.attrs[i].Name == name {
				n.attrs[i].Value = value
				break
			}
		}
	} else {
		n.attrs = append(n.attrs, Attr{Name: name, Value: value})
	}
	if name == "style" {
		// Drop the cached declaration so computed style re-reads it.
		n.style = nil
	}
	if n.doc != nil {
		n.doc.queueMutation(MutationRecord{
			Kind: MutationAttributes, Target: n, AttrName: name, OldValue: old,
		})
	}
}

// RemoveAttribute removes an attribute and queues an attribute mutation
// with a removed marker.
func (n *Node) RemoveAttribute(name string) {
	for i, a := range n.attrs {
		if a.Name == name {
			n.attrs = append(n.attrs[:i], n.attrs[i+1:]...)
			if n.doc != nil {
				n.doc.queueMutation(MutationRecord{
					Kind: MutationAttributes, Target: n,
					AttrName: name, OldValue: a.Value, AttrRemoved: true,
				})
			}
			return
		}
	}
}

// SetTextContent replaces the character data of a text/comment node and
// queues a characterData mutation.
func (n *Node) SetTextContent(text string) {
	old := n.text
	if old == text {
		return
	}
	n.text = text
	if n.doc != nil {
		n.doc.queueMutation(MutationRecord{
			Kind: MutationCharacterData, Target: n, OldValue: old,
		})
	}
}

// AppendChild attaches child as the last child of n.
func (n *Node) AppendChild(child *Node) {
	n.insertAt(child, len(n.kids))
}

// InsertBefore attaches child immediately before ref. A nil ref appends.
func (n *Node) InsertBefore(child, ref *Node) {
	idx := len(n.kids)
	if ref != nil {
		for i, k := range n.kids {
			if k == ref {
				idx = i
				break
			}
		}
	}
	n.insertAt(child, idx)
}

func (n *Node) insertAt(child *Node, idx int) {
	if child.parent != nil {
		child.parent.RemoveChild(child)
	}
	child.parent = n
	child.adoptInto(n.doc)
	if idx < 0 || idx > len(n.kids) {
		idx = len(n.kids)
	}
	n.kids = append(n.kids, nil)
	copy(n.kids[idx+1:], n.kids[idx:])
	n.kids[idx] = child

	var next *Node
	if idx+1 < len(n.kids) {
		next = n.kids[idx+1]
	}
	if n.doc != nil {
		n.doc.queueMutation(MutationRecord{
			Kind: MutationChildList, Target: n,
			Added: []*Node{child}, NextSibling: next,
		})
	}
}

// RemoveChild detaches child from n.
func (n *Node) RemoveChild(child *Node) {
	for i, k := range n.kids {
		if k == child {
			n.kids = append(n.kids[:i], n.kids[i+1:]...)
			child.parent = nil
			if n.doc != nil {
				n.doc.queueMutation(MutationRecord{
					Kind: MutationChildList, Target: n, Removed: []*Node{child},
				})
			}
			return
		}
	}
}

func (n *Node) adoptInto(doc *Document) {
	if n.doc == doc {
		return
	}
	n.doc = doc
	for _, k := range n.kids {
		k.adoptInto(doc)
	}
	if n.shadowRoot != nil {
		n.shadowRoot.adoptInto(doc)
	}
}

// NextSibling returns the following sibling, or nil.
func (n *Node) NextSibling() *Node {
	if n.parent == nil {
		return nil
	}
	for i, k := range n.parent.kids {
		if k == n && i+1 < len(n.parent.kids) {
			return n.parent.kids[i+1]
		}
	}
	return nil
}

// PreviousSibling returns the preceding sibling, or nil.
func (n *Node) PreviousSibling() *Node {
	var prev *Node
	if n.parent == nil {
		return nil
	}
	for _, k := range n.parent.kids {
		if k == n {
			return prev
		}
		prev = k
	}
	return nil
}

// Contains reports whether other is n or a descendant of n, without
// crossing shadow or frame boundaries.
func (n *Node) Contains(other *Node) bool {
	for p := other; p != nil; p = p.parent {
		if p == n {
			return true
		}
	}
	return false
}

// Walk visits n and every descendant in depth-first order, descending
// into shadow roots but not frame documents.
func (n *Node) Walk(visit func(*Node)) {
	visit(n)
	for _, k := range n.kids {
		k.Walk(visit)
	}
	if n.shadowRoot != nil {
		n.shadowRoot.Walk(visit)
	}
}

// --- geometry ---

// SetBoundingRect records the element's layout box. Hosts (the browser
// bridge, tests) supply geometry; the model has no layout engine.
func (n *Node) SetBoundingRect(r Rect) {
	n.rect = r
	n.hasRect = true
}

// BoundingClientRect returns the element's box. Elements whose computed
// display is none report a zero rect, as in the browser.
func (n *Node) BoundingClientRect() Rect {
	if n.typ != ElementNode {
		return Rect{}
	}
	if n.doc != nil && n.doc.ComputedStyle(n, "display") == "none" {
		return Rect{}
	}
	if !n.hasRect {
		return Rect{}
	}
	return n.rect
}

// --- form controls ---

// Value returns the current control value.
func (n *Node) Value() string { return n.value }

// Checked returns the current checkbox/radio state.
func (n *Node) Checked() bool { return n.checked }

// SetValue updates a form control value and dispatches "input".
func (n *Node) SetValue(value string, userTriggered bool) {
	n.value = value
	n.Dispatch(&DOMEvent{Type: "input", Target: n, UserTriggered: userTriggered})
}

// SetChecked updates a checkbox/radio state and dispatches "change".
func (n *Node) SetChecked(checked bool, userTriggered bool) {
	n.checked = checked
	n.Dispatch(&DOMEvent{Type: "change", Target: n, UserTriggered: userTriggered})
}

// --- scrolling ---

// Scroll returns the element's scroll offsets.
func (n *Node) Scroll() (x, y float64) { return n.scrollX, n.scrollY }

// SetScroll updates the element's scroll offsets and dispatches "scroll".
func (n *Node) SetScroll(x, y float64) {
	n.scrollX, n.scrollY = x, y
	n.Dispatch(&DOMEvent{Type: "scroll", Target: n})
}

// --- media ---

// Play starts playback and dispatches "play".
func (n *Node) Play() {
	n.media.paused = false
	n.Dispatch(&DOMEvent{Type: "play", Target: n})
}

// Pause stops playback and dispatches "pause".
func (n *Node) Pause() {
	n.media.paused = true
	n.Dispatch(&DOMEvent{Type: "pause", Target: n})
}

// Seek moves the playhead and dispatches "seeked".
func (n *Node) Seek(t float64) {
	n.media.currentTime = t
	n.Dispatch(&DOMEvent{Type: "seeked", Target: n})
}

// SetVolume updates volume state and dispatches "volumechange".
func (n *Node) SetVolume(volume float64, muted bool) {
	n.media.volume = volume
	n.media.muted = muted
	n.Dispatch(&DOMEvent{Type: "volumechange", Target: n})
}

// CurrentTime returns the media playhead position.
func (n *Node) CurrentTime() float64 { return n.media.currentTime }

// Volume returns the media volume and muted state.
func (n *Node) Volume() (float64, bool) { return n.media.volume, n.media.muted }
