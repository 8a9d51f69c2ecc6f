package snapshot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Appsurify/rrweb/dom"
)

// ErrSerializationFailed marks a document that could not be serialized
// at all (detached or empty). Branch-level failures are not errors —
// the branch is omitted and recording continues.
var ErrSerializationFailed = errors.New("snapshot: serialization failed")

// Serializer performs one-shot serialization of live subtrees,
// registering every visited node with its mirror. One serializer
// lives per recording; ids keep increasing across checkouts so nodes
// already known keep their ids.
type Serializer struct {
	mirror *Mirror
	opts   Options
	nextID int
}

// NewSerializer creates a serializer bound to a mirror.
func NewSerializer(mirror *Mirror, opts Options) *Serializer {
	return &Serializer{mirror: mirror, opts: opts}
}

// Mirror returns the bound mirror.
func (s *Serializer) Mirror() *Mirror { return s.mirror }

// Options returns the serializer's options.
func (s *Serializer) Options() Options { return s.opts }

// ReserveID allocates an id from the serializer's sequence without
// binding it to a live node. The iframe manager uses this to translate
// cross-origin child ids into the parent's id space.
func (s *Serializer) ReserveID() int {
	s.nextID++
	return s.nextID
}

func (s *Serializer) genID(n *dom.Node) int {
	if meta := s.mirror.GetMeta(n); meta != nil && meta.ID > 0 {
		return meta.ID
	}
	s.nextID++
	return s.nextID
}

type serializeContext struct {
	rootID   int
	isShadow bool
	maskText bool
}

// SerializeDocument serializes a whole document tree.
func (s *Serializer) SerializeDocument(doc *dom.Document) (*Node, error) {
	if doc == nil || doc.DocumentElement() == nil {
		return nil, fmt.Errorf("%w: document detached or empty", ErrSerializationFailed)
	}
	return s.serializeDocumentNode(doc, serializeContext{}), nil
}

func (s *Serializer) serializeDocumentNode(doc *dom.Document, ctx serializeContext) *Node {
	root := doc.Root()
	sn := &Node{
		ID:         s.genID(root),
		Kind:       KindDocument,
		CompatMode: doc.CompatMode(),
		RootID:     ctx.rootID,
	}
	s.mirror.Add(root, sn)

	for _, k := range root.Children() {
		if c := s.SerializeNodeWith(k, ctx); c != nil {
			sn.ChildNodes = append(sn.ChildNodes, c)
		}
	}
	return sn
}

// SerializeFrameDocument serializes an iframe's content document with
// every node's rootId pointing at the frame element's id. Used when a
// frame attaches after the snapshot that serialized its element.
func (s *Serializer) SerializeFrameDocument(doc *dom.Document, frameID int) (*Node, error) {
	if doc == nil || doc.DocumentElement() == nil {
		return nil, fmt.Errorf("%w: frame document detached or empty", ErrSerializationFailed)
	}
	return s.serializeDocumentNode(doc, serializeContext{rootID: frameID}), nil
}

// SerializeNode serializes a subtree with a fresh top-level context.
// It returns nil for ignored or pruned nodes.
func (s *Serializer) SerializeNode(n *dom.Node) *Node {
	ctx := serializeContext{}
	for p := n.Parent(); p != nil; p = p.Parent() {
		if s.matchesMaskText(p) {
			ctx.maskText = true
			break
		}
	}
	return s.SerializeNodeWith(n, ctx)
}

// SerializeNodeWith serializes a subtree under an explicit context.
func (s *Serializer) SerializeNodeWith(n *dom.Node, ctx serializeContext) *Node {
	switch n.Type() {
	case dom.DoctypeNode:
		name, publicID, systemID := n.DoctypeName()
		sn := &Node{
			ID: s.genID(n), Kind: KindDocumentType,
			Name: name, PublicID: publicID, SystemID: systemID,
			RootID: ctx.rootID,
		}
		s.mirror.Add(n, sn)
		return sn

	case dom.ElementNode:
		return s.serializeElement(n, ctx)

	case dom.TextNode, dom.CommentNode, dom.CDATANode:
		return s.serializeCharacterData(n, ctx)

	case dom.DocumentNode:
		if doc := n.Document(); doc != nil {
			return s.serializeDocumentNode(doc, ctx)
		}
	}
	return nil
}

func (s *Serializer) serializeElement(el *dom.Node, ctx serializeContext) *Node {
	if s.isIgnored(el) || s.slimExcluded(el) {
		s.mirror.Add(el, &Node{ID: IgnoredNode, Kind: KindElement, TagName: el.Tag()})
		return nil
	}

	sn := &Node{
		ID:           s.genID(el),
		Kind:         KindElement,
		TagName:      el.Tag(),
		IsSVG:        el.IsSVG(),
		RootID:       ctx.rootID,
		IsShadow:     ctx.isShadow,
		IsShadowHost: el.ShadowRoot() != nil,
	}

	sn.XPath = XPathOf(el)
	sn.Selector = SelectorOf(el)
	if s.opts.IsVisible != nil {
		sn.IsVisible, _ = s.opts.IsVisible(el)
	}
	if s.opts.IsInteractive != nil {
		sn.IsInteractive = s.opts.IsInteractive(el)
	}

	if s.isBlocked(el) {
		sn.NeedBlock = true
		rect := el.BoundingClientRect()
		sn.SetAttr("rr_width", fmt.Sprintf("%spx", trimFloat(rect.Width)))
		sn.SetAttr("rr_height", fmt.Sprintf("%spx", trimFloat(rect.Height)))
		s.mirror.Add(el, sn)
		s.fireOnSerialize(el, sn)
		return sn
	}

	s.serializeAttributes(el, sn)
	s.mirror.Add(el, sn)
	s.fireOnSerialize(el, sn)

	childCtx := ctx
	if s.matchesMaskText(el) {
		childCtx.maskText = true
	}

	for _, k := range el.Children() {
		if c := s.SerializeNodeWith(k, childCtx); c != nil {
			sn.ChildNodes = append(sn.ChildNodes, c)
		}
	}

	if sr := el.ShadowRoot(); sr != nil {
		shadowCtx := childCtx
		shadowCtx.isShadow = true
		for _, k := range sr.Children() {
			if c := s.SerializeNodeWith(k, shadowCtx); c != nil {
				sn.ChildNodes = append(sn.ChildNodes, c)
			}
		}
	}

	if el.Tag() == "iframe" {
		s.serializeFrameContent(el, sn, ctx)
	}

	return sn
}

func (s *Serializer) serializeFrameContent(el *dom.Node, sn *Node, ctx serializeContext) {
	child := el.ContentDocument()
	if child == nil || child.DocumentElement() == nil {
		return
	}
	frameCtx := ctx
	frameCtx.rootID = sn.ID
	root := s.serializeDocumentNode(child, frameCtx)
	if root != nil {
		sn.ChildNodes = append(sn.ChildNodes, root)
		if s.opts.OnIframeLoad != nil {
			s.opts.OnIframeLoad(el, root)
		}
	}
}

func (s *Serializer) serializeCharacterData(n *dom.Node, ctx serializeContext) *Node {
	parent := n.Parent()
	if n.Type() == dom.CommentNode && s.opts.SlimDOM.Comment {
		s.mirror.Add(n, &Node{ID: IgnoredNode, Kind: KindComment})
		return nil
	}

	sn := &Node{
		ID:          s.genID(n),
		Kind:        kindForCharacterData(n.Type()),
		TextContent: n.Text(),
		RootID:      ctx.rootID,
	}
	if parent != nil && parent.Tag() == "style" {
		sn.IsStyle = true
	}

	if n.Type() == dom.TextNode && !sn.IsStyle {
		masked := ctx.maskText || (parent != nil && s.matchesMaskText(parent))
		if masked {
			sn.TextContent = s.maskText(sn.TextContent, parent)
		}
	}

	s.mirror.Add(n, sn)
	s.fireOnSerialize(n, sn)
	return sn
}

func kindForCharacterData(t dom.NodeType) Kind {
	switch t {
	case dom.CommentNode:
		return KindComment
	case dom.CDATANode:
		return KindCDATA
	}
	return KindText
}

func (s *Serializer) fireOnSerialize(n *dom.Node, sn *Node) {
	if s.opts.OnSerialize != nil {
		s.opts.OnSerialize(n, sn)
	}
}

// --- attribute serialization ---

func (s *Serializer) serializeAttributes(el *dom.Node, sn *Node) {
	tag := el.Tag()
	for _, a := range el.Attrs() {
		if s.opts.ExcludeAttribute != nil && s.opts.ExcludeAttribute.MatchString(a.Name) {
			continue
		}
		if a.Name == "value" && isFormControl(tag) {
			continue // live value handled below
		}
		if a.Name == "src" && tag == "iframe" {
			if s.opts.KeepIframeSrcFn == nil || !s.opts.KeepIframeSrcFn(a.Value) {
				continue
			}
		}
		if a.Name == "src" && tag == "img" && s.opts.InlineImages {
			if inlined, ok := el.GetAttribute("data-rr-data-url"); ok {
				sn.SetAttr("src", inlined)
				continue
			}
		}
		sn.SetAttr(a.Name, a.Value)
	}

	if isFormControl(tag) {
		s.serializeControlValue(el, sn)
	}

	if x, y := el.Scroll(); x != 0 || y != 0 {
		sn.SetAttr("rr_scrollLeft", x)
		sn.SetAttr("rr_scrollTop", y)
	}

	switch tag {
	case "style":
		if s.opts.InlineStylesheet {
			if sheet := el.Sheet(); sheet != nil && sheet.Loaded() {
				sn.SetAttr("_cssText", s.stringifySheetForElement(el, sheet))
			}
		}
	case "link":
		if s.opts.InlineStylesheet && isStylesheetLink(el) {
			sheet := el.Sheet()
			switch {
			case sheet != nil && sheet.Loaded():
				sn.SetAttr("_cssText", StringifySheet(sheet))
			case sheet != nil && s.opts.OnStylesheetLoad != nil:
				s.opts.OnStylesheetLoad(el, sheet)
			}
		}
	case "canvas":
		if s.opts.RecordCanvas {
			if c := el.Canvas(); c != nil && !c.Blank() && c.DataURL() != "" {
				sn.SetAttr("rr_dataURL", c.DataURL())
			}
		}
	}
}

func (s *Serializer) serializeControlValue(el *dom.Node, sn *Node) {
	tag := el.Tag()
	typ, _ := el.GetAttribute("type")
	typ = strings.ToLower(typ)

	value := el.Value()
	if value == "" {
		if v, ok := el.GetAttribute("value"); ok {
			value = v
		}
	}

	if typ == "password" {
		sn.SetAttr("data-rr-is-password", true)
	}

	if value != "" {
		if s.shouldMaskInput(tag, typ, el) {
			sn.SetAttr("value", s.maskInput(value, el))
		} else {
			sn.SetAttr("value", value)
		}
	}

	if typ == "checkbox" || typ == "radio" {
		if el.Checked() {
			sn.SetAttr("checked", true)
		}
	}
}

func isFormControl(tag string) bool {
	return tag == "input" || tag == "textarea" || tag == "select" || tag == "option"
}

func isStylesheetLink(el *dom.Node) bool {
	rel, _ := el.GetAttribute("rel")
	return strings.EqualFold(strings.TrimSpace(rel), "stylesheet")
}

func trimFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
