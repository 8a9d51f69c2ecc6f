package dom

import (
	"strconv"
	"strings"
)

// A CSS selector subset sufficient for block/ignore/mask policies and
// for verifying generated element selectors:
//
//	tag  .class  #id  [attr]  [attr=val]  :nth-of-type(n)
//	compounds thereof, descendant (space) and child (>) combinators,
//	comma-separated selector lists.
type compound struct {
	tag       string
	id        string
	classes   []string
	attrs     []attrMatch
	nthOfType int // 0 = unset
	child     bool // combinator to the left is ">"
}

type attrMatch struct {
	name  string
	value string
	exact bool
}

// MatchesSelector reports whether the element matches any selector in
// the comma-separated list. Unparseable selectors match nothing.
func MatchesSelector(el *Node, selector string) bool {
	if el == nil || el.typ != ElementNode || strings.TrimSpace(selector) == "" {
		return false
	}
	for _, single := range strings.Split(selector, ",") {
		chain, ok := parseChain(single)
		if !ok {
			continue
		}
		if matchChain(el, chain) {
			return true
		}
	}
	return false
}

// QuerySelectorAll returns all elements under root (inclusive) matching
// the selector list, in document order.
func QuerySelectorAll(root *Node, selector string) []*Node {
	var out []*Node
	if root == nil {
		return nil
	}
	root.Walk(func(n *Node) {
		if n.typ == ElementNode && MatchesSelector(n, selector) {
			out = append(out, n)
		}
	})
	return out
}

func parseChain(s string) ([]compound, bool) {
	fields := tokenizeChain(s)
	if len(fields) == 0 {
		return nil, false
	}
	var chain []compound
	child := false
	for _, f := range fields {
		if f == ">" {
			child = true
			continue
		}
		c, ok := parseCompound(f)
		if !ok {
			return nil, false
		}
		c.child = child
		child = false
		chain = append(chain, c)
	}
	if child || len(chain) == 0 {
		return nil, false
	}
	return chain, true
}

func tokenizeChain(s string) []string {
	s = strings.ReplaceAll(s, ">", " > ")
	return strings.Fields(s)
}

func parseCompound(s string) (compound, bool) {
	var c compound
	i := 0
	for i < len(s) {
		switch s[i] {
		case '#':
			j := simpleTokenEnd(s, i+1)
			if j == i+1 {
				return c, false
			}
			c.id = s[i+1 : j]
			i = j
		case '.':
			j := simpleTokenEnd(s, i+1)
			if j == i+1 {
				return c, false
			}
			c.classes = append(c.classes, s[i+1:j])
			i = j
		case '[':
			j := strings.IndexByte(s[i:], ']')
			if j < 0 {
				return c, false
			}
			body := s[i+1 : i+j]
			name, val, hasVal := strings.Cut(body, "=")
			am := attrMatch{name: strings.TrimSpace(name)}
			if hasVal {
				am.exact = true
				am.value = strings.Trim(strings.TrimSpace(val), `"'`)
			}
			if am.name == "" {
				return c, false
			}
			c.attrs = append(c.attrs, am)
			i += j + 1
		case ':':
			rest := s[i:]
			if !strings.HasPrefix(rest, ":nth-of-type(") {
				return c, false
			}
			end := strings.IndexByte(rest, ')')
			if end < 0 {
				return c, false
			}
			n, err := strconv.Atoi(rest[len(":nth-of-type("):end])
			if err != nil || n < 1 {
				return c, false
			}
			c.nthOfType = n
			i += end + 1
		default:
			j := simpleTokenEnd(s, i)
			if j == i {
				return c, false
			}
			c.tag = lower(s[i:j])
			i = j
		}
	}
	return c, true
}

func simpleTokenEnd(s string, start int) int {
	i := start
	for i < len(s) {
		ch := s[i]
		if ch == '.' || ch == '#' || ch == '[' || ch == ':' {
			break
		}
		i++
	}
	return i
}

func matchChain(el *Node, chain []compound) bool {
	last := chain[len(chain)-1]
	if !matchCompound(el, last) {
		return false
	}
	return matchAncestors(el.parent, chain[:len(chain)-1], last.child)
}

func matchAncestors(from *Node, chain []compound, childOnly bool) bool {
	if len(chain) == 0 {
		return true
	}
	c := chain[len(chain)-1]
	for p := from; p != nil; p = p.parent {
		if p.typ == ElementNode && matchCompound(p, c) {
			if matchAncestors(p.parent, chain[:len(chain)-1], c.child) {
				return true
			}
		}
		if childOnly {
			return false
		}
	}
	return false
}

func matchCompound(el *Node, c compound) bool {
	if c.tag != "" && c.tag != "*" && el.tag != c.tag {
		return false
	}
	if c.id != "" {
		id, _ := el.GetAttribute("id")
		if id != c.id {
			return false
		}
	}
	if len(c.classes) > 0 {
		cls, _ := el.GetAttribute("class")
		have := strings.Fields(cls)
		for _, want := range c.classes {
			found := false
			for _, h := range have {
				if h == want {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
	}
	for _, am := range c.attrs {
		v, ok := el.GetAttribute(am.name)
		if !ok {
			return false
		}
		if am.exact && v != am.value {
			return false
		}
	}
	if c.nthOfType > 0 {
		if nthOfType(el) != c.nthOfType {
			return false
		}
	}
	return true
}

func nthOfType(el *Node) int {
	if el.parent == nil {
		return 1
	}
	idx := 0
	for _, sib := range el.parent.kids {
		if sib.typ == ElementNode && sib.tag == el.tag {
			idx++
		}
		if sib == el {
			return idx
		}
	}
	return idx
}

// HasClass reports whether the element's class list contains name.
func HasClass(el *Node, name string) bool {
	if el == nil || el.typ != ElementNode || name == "" {
		return false
	}
	cls, _ := el.GetAttribute("class")
	for _, c := range strings.Fields(cls) {
		if c == name {
			return true
		}
	}
	return false
}
