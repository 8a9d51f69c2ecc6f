package snapshot

import "github.com/Appsurify/rrweb/dom"

// Mirror is the bidirectional map between live nodes and stable ids.
// Ids are never reused within one recording. The node→meta side
// survives RemoveNodeFromMap so serialization equality checks remain
// stable across transient detaches; only Reset purges it.
type Mirror struct {
	idToNode   map[int]*dom.Node
	nodeToMeta map[*dom.Node]*Node
}

// NewMirror creates an empty mirror.
func NewMirror() *Mirror {
	return &Mirror{
		idToNode:   make(map[int]*dom.Node),
		nodeToMeta: make(map[*dom.Node]*Node),
	}
}

// Add registers a node with its serialized meta.
func (m *Mirror) Add(n *dom.Node, meta *Node) {
	if meta.ID > 0 {
		m.idToNode[meta.ID] = n
	}
	m.nodeToMeta[n] = meta
}

// Replace rebinds an id to a different live node, keeping the meta of
// the new node if it already has one.
func (m *Mirror) Replace(id int, n *dom.Node) {
	m.idToNode[id] = n
}

// GetID returns the node's id, or Unknown (-1) for nil or unmapped
// nodes.
func (m *Mirror) GetID(n *dom.Node) int {
	if n == nil {
		return Unknown
	}
	meta, ok := m.nodeToMeta[n]
	if !ok {
		return Unknown
	}
	return meta.ID
}

// GetNode returns the live node for an id, or nil.
func (m *Mirror) GetNode(id int) *dom.Node {
	return m.idToNode[id]
}

// GetMeta returns the serialized meta for a live node, or nil.
func (m *Mirror) GetMeta(n *dom.Node) *Node {
	return m.nodeToMeta[n]
}

// Has reports whether an id is currently mapped to a live node.
func (m *Mirror) Has(id int) bool {
	_, ok := m.idToNode[id]
	return ok
}

// HasNode reports whether the node has ever been serialized (and not
// reset away).
func (m *Mirror) HasNode(n *dom.Node) bool {
	_, ok := m.nodeToMeta[n]
	return ok
}

// RemoveNodeFromMap unmaps the node's id and, recursively, every
// descendant's. The node→meta side is intentionally left intact.
func (m *Mirror) RemoveNodeFromMap(n *dom.Node) {
	if meta, ok := m.nodeToMeta[n]; ok {
		delete(m.idToNode, meta.ID)
	}
	for _, c := range n.Children() {
		m.RemoveNodeFromMap(c)
	}
	if sr := n.ShadowRoot(); sr != nil {
		m.RemoveNodeFromMap(sr)
	}
}

// Reset clears both sides.
func (m *Mirror) Reset() {
	m.idToNode = make(map[int]*dom.Node)
	m.nodeToMeta = make(map[*dom.Node]*Node)
}
