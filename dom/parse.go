package dom

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// ParseOptions configure document materialization from HTML bytes.
type ParseOptions struct {
	Href      string
	Origin    string
	Width     int
	Height    int
	StartTime int64
	Scheduler *Scheduler
}

// Parse materializes a live document from HTML. <style> contents become
// loaded sheets; <link rel=stylesheet> elements get unloaded sheets
// keyed by href (the host completes them when rules are available).
func Parse(data []byte, opts ParseOptions) (*Document, error) {
	root, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("dom: parse html: %w", err)
	}

	doc := NewDocument(DocumentOptions{
		Href:      opts.Href,
		Origin:    opts.Origin,
		Width:     opts.Width,
		Height:    opts.Height,
		StartTime: opts.StartTime,
		Scheduler: opts.Scheduler,
	})

	sawDoctype := false
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if n := convertNode(doc, c, &sawDoctype); n != nil {
			attachParsed(doc.root, n)
		}
	}
	if !sawDoctype {
		doc.compatMode = "BackCompat"
	}

	finishStyles(doc)
	return doc, nil
}

// attachParsed wires parsed nodes without queueing mutation records —
// parsing happens before any observer exists.
func attachParsed(parent, child *Node) {
	child.parent = parent
	parent.kids = append(parent.kids, child)
}

func convertNode(doc *Document, n *html.Node, sawDoctype *bool) *Node {
	switch n.Type {
	case html.DoctypeNode:
		*sawDoctype = true
		var publicID, systemID string
		for _, a := range n.Attr {
			switch a.Key {
			case "public":
				publicID = a.Val
			case "system":
				systemID = a.Val
			}
		}
		return doc.CreateDoctype(n.Data, publicID, systemID)

	case html.ElementNode:
		var el *Node
		if n.Namespace == "svg" {
			el = doc.CreateSVGElement(n.Data)
		} else {
			el = doc.CreateElement(n.Data)
		}
		for _, a := range n.Attr {
			name := a.Key
			if a.Namespace != "" {
				name = a.Namespace + ":" + a.Key
			}
			el.attrs = append(el.attrs, Attr{Name: name, Value: a.Val})
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if k := convertNode(doc, c, sawDoctype); k != nil {
				attachParsed(el, k)
			}
		}
		if v, ok := el.GetAttribute("value"); ok {
			el.value = v
		}
		if el.HasAttribute("checked") {
			el.checked = true
		}
		return el

	case html.TextNode:
		return doc.CreateTextNode(n.Data)

	case html.CommentNode:
		return doc.CreateComment(n.Data)
	}
	return nil
}

// finishStyles creates sheets for style and stylesheet-link elements.
func finishStyles(doc *Document) {
	de := doc.DocumentElement()
	if de == nil {
		return
	}
	de.Walk(func(n *Node) {
		if n.typ != ElementNode {
			return
		}
		switch n.tag {
		case "style":
			text := textContent(n)
			sheet := &StyleSheet{doc: doc, owner: n, loaded: true}
			sheet.rules = SplitRules(text)
			n.sheet = sheet
		case "link":
			rel, _ := n.GetAttribute("rel")
			if strings.EqualFold(strings.TrimSpace(rel), "stylesheet") {
				href, _ := n.GetAttribute("href")
				n.SetSheetHref(href)
			}
		}
	})
}

func textContent(n *Node) string {
	var b strings.Builder
	n.Walk(func(k *Node) {
		if k.typ == TextNode || k.typ == CDATANode {
			b.WriteString(k.text)
		}
	})
	return b.String()
}

// TextContent returns the concatenated character data under n.
func TextContent(n *Node) string { return textContent(n) }

// SplitRules breaks raw CSS text into top-level rule strings, tracking
// brace depth so nested blocks (@media, keyframes) stay single rules.
// Statement rules (@import, @charset) end at a top-level semicolon.
func SplitRules(css string) []string {
	var rules []string
	depth := 0
	start := 0
	for i := 0; i < len(css); i++ {
		switch css[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				rule := strings.TrimSpace(css[start : i+1])
				if rule != "" {
					rules = append(rules, rule)
				}
				start = i + 1
			}
		case ';':
			if depth == 0 {
				if stmt := strings.TrimSpace(css[start : i+1]); stmt != "" {
					rules = append(rules, stmt)
				}
				start = i + 1
			}
		}
	}
	if tail := strings.TrimSpace(css[start:]); tail != "" {
		rules = append(rules, tail+";")
	}
	return rules
}
