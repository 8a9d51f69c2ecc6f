package dom

import (
	"fmt"
	"strings"
)

// StyleSheet is one CSS sheet: the contents of a <style> element, a
// loaded <link rel=stylesheet>, or a constructed (adopted) sheet.
type StyleSheet struct {
	doc     *Document
	owner   *Node // nil for constructed sheets
	href    string
	rules   []string
	loaded  bool
	imports map[int]*StyleSheet
}

// NewStyleSheet creates a constructed sheet (for adoptedStyleSheets).
func (d *Document) NewStyleSheet(rules ...string) *StyleSheet {
	return &StyleSheet{doc: d, rules: rules, loaded: true}
}

// Owner returns the owning <style>/<link> element, nil for constructed
// sheets.
func (s *StyleSheet) Owner() *Node { return s.owner }

// Href returns the sheet URL for linked sheets.
func (s *StyleSheet) Href() string { return s.href }

// Loaded reports whether the sheet's rules are available. Linked sheets
// start unloaded; SetRules marks them loaded.
func (s *StyleSheet) Loaded() bool { return s.loaded }

// Rules returns the rule texts. Callers must not mutate the slice.
func (s *StyleSheet) Rules() []string { return s.rules }

// SetRules replaces the full rule list without firing the rule hook,
// used by linked-sheet loads and by hosts. Firing the link-load
// hook is the caller's job (see Node.CompleteLinkSheet).
func (s *StyleSheet) SetRules(rules []string) {
	s.rules = rules
	s.loaded = true
}

// SetImport associates the sheet loaded for an @import rule at the
// given rule index, so serialization can inline it.
func (s *StyleSheet) SetImport(index int, imported *StyleSheet) {
	if s.imports == nil {
		s.imports = make(map[int]*StyleSheet)
	}
	s.imports[index] = imported
}

// ImportAt returns the sheet behind the @import rule at index, if any.
func (s *StyleSheet) ImportAt(index int) *StyleSheet {
	return s.imports[index]
}

// InsertRule inserts a rule at index and notifies the rule hook.
func (s *StyleSheet) InsertRule(rule string, index int) error {
	if index < 0 || index > len(s.rules) {
		return fmt.Errorf("dom: insertRule index %d out of range", index)
	}
	s.rules = append(s.rules, "")
	copy(s.rules[index+1:], s.rules[index:])
	s.rules[index] = rule
	if s.doc != nil && s.doc.hooks.styleRule != nil {
		s.doc.hooks.styleRule(s, rule, index, true)
	}
	return nil
}

// DeleteRule removes the rule at index and notifies the rule hook.
func (s *StyleSheet) DeleteRule(index int) error {
	if index < 0 || index >= len(s.rules) {
		return fmt.Errorf("dom: deleteRule index %d out of range", index)
	}
	s.rules = append(s.rules[:index], s.rules[index+1:]...)
	if s.doc != nil && s.doc.hooks.styleRule != nil {
		s.doc.hooks.styleRule(s, "", index, false)
	}
	return nil
}

// Sheet returns the stylesheet attached to a <style>/<link> element,
// creating an empty one for <style> on first access.
func (n *Node) Sheet() *StyleSheet {
	if n.sheet == nil && n.typ == ElementNode && n.tag == "style" {
		n.sheet = &StyleSheet{doc: n.doc, owner: n, loaded: true}
	}
	return n.sheet
}

// AttachSheet associates a sheet with a <style>/<link> element.
func (n *Node) AttachSheet(s *StyleSheet) {
	s.owner = n
	s.doc = n.doc
	n.sheet = s
}

// SetSheetHref marks a <link> element's sheet URL (unloaded until
// CompleteLinkSheet).
func (n *Node) SetSheetHref(href string) {
	if n.sheet == nil {
		n.sheet = &StyleSheet{doc: n.doc, owner: n}
	}
	n.sheet.href = href
}

// CompleteLinkSheet supplies the rules of a linked sheet once they are
// available (load event) and notifies the link-load hook.
func (n *Node) CompleteLinkSheet(rules []string) {
	if n.sheet == nil {
		n.sheet = &StyleSheet{doc: n.doc, owner: n}
	}
	n.sheet.SetRules(rules)
	if n.doc != nil && n.doc.hooks.linkLoad != nil {
		n.doc.hooks.linkLoad(n, n.sheet)
	}
}

// SetAdoptedStyleSheets replaces the document's adopted sheet list and
// notifies the adopted hook.
func (d *Document) SetAdoptedStyleSheets(sheets []*StyleSheet) {
	d.adopted = sheets
	if d.hooks.adopted != nil {
		d.hooks.adopted(d)
	}
}

// AdoptedStyleSheets returns the adopted sheet list.
func (d *Document) AdoptedStyleSheets() []*StyleSheet { return d.adopted }

// StyleSheets returns document sheets in order: element-owned sheets in
// tree order, then adopted sheets.
func (d *Document) StyleSheets() []*StyleSheet {
	var out []*StyleSheet
	if de := d.DocumentElement(); de != nil {
		de.Walk(func(n *Node) {
			if n.sheet != nil {
				out = append(out, n.sheet)
			}
		})
	}
	out = append(out, d.adopted...)
	return out
}

// --- inline style declarations ---

// StyleDeclaration is an element's inline style (ordered properties).
type StyleDeclaration struct {
	el    *Node
	names []string
	props map[string]styleValue
}

type styleValue struct {
	value    string
	priority string
}

// Style returns the element's inline style declaration.
func (n *Node) Style() *StyleDeclaration {
	if n.style == nil {
		n.style = &StyleDeclaration{el: n, props: make(map[string]styleValue)}
		if raw, ok := n.GetAttribute("style"); ok {
			n.style.parseInline(raw)
		}
	}
	return n.style
}

func (sd *StyleDeclaration) parseInline(raw string) {
	for _, decl := range strings.Split(raw, ";") {
		k, v, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		name := strings.TrimSpace(k)
		val := strings.TrimSpace(v)
		if name == "" || val == "" {
			continue
		}
		prio := ""
		if strings.HasSuffix(val, "!important") {
			val = strings.TrimSpace(strings.TrimSuffix(val, "!important"))
			prio = "important"
		}
		sd.set(name, val, prio)
	}
}

func (sd *StyleDeclaration) set(name, value, priority string) {
	if _, ok := sd.props[name]; !ok {
		sd.names = append(sd.names, name)
	}
	sd.props[name] = styleValue{value: value, priority: priority}
}

// Get returns the declared value of a property.
func (sd *StyleDeclaration) Get(name string) string {
	return sd.props[name].value
}

// SetProperty writes a property and notifies the style-declaration
// hook. It intentionally does not record an attribute mutation — direct
// declaration writes and style-attribute rewrites are separate streams.
func (sd *StyleDeclaration) SetProperty(name, value, priority string) {
	sd.set(name, value, priority)
	if sd.el != nil && sd.el.doc != nil && sd.el.doc.hooks.styleDecl != nil {
		sd.el.doc.hooks.styleDecl(sd.el, name, value, priority, false)
	}
}

// RemoveProperty removes a property and notifies the hook.
func (sd *StyleDeclaration) RemoveProperty(name string) {
	if _, ok := sd.props[name]; !ok {
		return
	}
	delete(sd.props, name)
	for i, n := range sd.names {
		if n == name {
			sd.names = append(sd.names[:i], sd.names[i+1:]...)
			break
		}
	}
	if sd.el != nil && sd.el.doc != nil && sd.el.doc.hooks.styleDecl != nil {
		sd.el.doc.hooks.styleDecl(sd.el, name, "", "", true)
	}
}

// --- computed style ---

// ComputedStyle resolves a property for an element: inline declaration
// first, then the last matching sheet rule, then the property default.
// The cascade is deliberately last-match-wins; the model carries no
// specificity engine.
func (d *Document) ComputedStyle(el *Node, property string) string {
	if el.typ != ElementNode {
		return ""
	}
	if el.style != nil {
		if v := el.style.Get(property); v != "" {
			return v
		}
	} else if raw, ok := el.GetAttribute("style"); ok {
		if v := parseInlineProperty(raw, property); v != "" {
			return v
		}
	}

	result := ""
	for _, sheet := range d.StyleSheets() {
		for _, rule := range sheet.rules {
			sel, decls, ok := splitRule(rule)
			if !ok {
				continue
			}
			if !MatchesSelector(el, sel) {
				continue
			}
			if v := parseInlineProperty(decls, property); v != "" {
				result = v
			}
		}
	}
	if result != "" {
		return result
	}
	return styleDefault(property)
}

func parseInlineProperty(decls, property string) string {
	out := ""
	for _, decl := range strings.Split(decls, ";") {
		k, v, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		if strings.TrimSpace(k) == property {
			val := strings.TrimSpace(v)
			val = strings.TrimSpace(strings.TrimSuffix(val, "!important"))
			out = val
		}
	}
	return out
}

func splitRule(rule string) (selector, decls string, ok bool) {
	open := strings.Index(rule, "{")
	close := strings.LastIndex(rule, "}")
	if open < 0 || close < open {
		return "", "", false
	}
	return strings.TrimSpace(rule[:open]), rule[open+1 : close], true
}

func styleDefault(property string) string {
	switch property {
	case "display":
		return "block"
	case "visibility":
		return "visible"
	case "opacity":
		return "1"
	}
	return ""
}
