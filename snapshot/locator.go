package snapshot

import (
	"fmt"
	"strings"

	"github.com/Appsurify/rrweb/dom"
)

// XPathOf derives an element locator at serialization time. Elements
// with an id attribute short-circuit to an id-addressed expression;
// everything else gets a positional chain from the document root.
// Locators are never re-derived on mutation.
func XPathOf(el *dom.Node) string {
	if id, ok := el.GetAttribute("id"); ok && id != "" {
		return fmt.Sprintf(`//*[@id=%q]`, id)
	}

	var parts []string
	for cur := el; cur != nil && cur.Type() == dom.ElementNode; cur = parentElement(cur) {
		parts = append([]string{xpathStep(cur)}, parts...)
	}
	if len(parts) == 0 {
		return ""
	}
	return "/" + strings.Join(parts, "/")
}

func parentElement(n *dom.Node) *dom.Node {
	p := n.Parent()
	if p == nil && n.Host() != nil {
		// Shadow content chains through the host.
		return n.Host()
	}
	if p != nil && p.Type() == dom.ShadowRootNode {
		return p.Host()
	}
	if p != nil && p.Type() != dom.ElementNode {
		return nil
	}
	return p
}

func xpathStep(el *dom.Node) string {
	tag := el.Tag()
	switch tag {
	case "html", "head", "body":
		return tag
	}

	parent := el.Parent()
	if parent == nil {
		return tag
	}
	idx, total := 0, 0
	for _, sib := range parent.Children() {
		if sib.Type() == dom.ElementNode && sib.Tag() == tag {
			total++
			if sib == el {
				idx = total
			}
		}
	}
	if total > 1 {
		return fmt.Sprintf("%s[%d]", tag, idx)
	}
	return tag
}

// SelectorOf derives a CSS selector for the element: id shortcut, then
// tag+classes+data-* attributes, verified unique against the document;
// if not unique, a positional nth-of-type chain.
func SelectorOf(el *dom.Node) string {
	doc := el.Document()
	var root *dom.Node
	if doc != nil {
		root = doc.Root()
	}

	if id, ok := el.GetAttribute("id"); ok && id != "" {
		sel := "#" + id
		if isUnique(root, sel, el) {
			return sel
		}
	}

	sel := compactSelector(el)
	if sel != "" && isUnique(root, sel, el) {
		return sel
	}

	return positionalSelector(el)
}

func compactSelector(el *dom.Node) string {
	var b strings.Builder
	b.WriteString(el.Tag())
	if cls, ok := el.GetAttribute("class"); ok {
		for _, c := range strings.Fields(cls) {
			b.WriteByte('.')
			b.WriteString(c)
		}
	}
	for _, a := range el.Attrs() {
		if strings.HasPrefix(a.Name, "data-") && a.Value != "" {
			fmt.Fprintf(&b, `[%s=%q]`, a.Name, a.Value)
		}
	}
	return b.String()
}

func positionalSelector(el *dom.Node) string {
	var parts []string
	for cur := el; cur != nil && cur.Type() == dom.ElementNode; cur = parentElement(cur) {
		step := cur.Tag()
		if n := nthOfTypeIndex(cur); n > 0 {
			step = fmt.Sprintf("%s:nth-of-type(%d)", cur.Tag(), n)
		}
		parts = append([]string{step}, parts...)
	}
	return strings.Join(parts, " > ")
}

func nthOfTypeIndex(el *dom.Node) int {
	parent := el.Parent()
	if parent == nil {
		return 0
	}
	idx, total := 0, 0
	for _, sib := range parent.Children() {
		if sib.Type() == dom.ElementNode && sib.Tag() == el.Tag() {
			total++
			if sib == el {
				idx = total
			}
		}
	}
	if total > 1 {
		return idx
	}
	return 0
}

func isUnique(root *dom.Node, selector string, el *dom.Node) bool {
	if root == nil {
		return true
	}
	matches := dom.QuerySelectorAll(root, selector)
	return len(matches) == 1 && matches[0] == el
}
