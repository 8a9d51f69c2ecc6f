package snapshot

import (
	"fmt"

	"github.com/Appsurify/rrweb/dom"
)

// Rebuild materializes a serialized tree back into a live document.
// It exists to interpret streams (the replay baseline) and to verify
// serialization round-trips; masked or blocked content stays masked —
// rebuilding never recovers originals.
func Rebuild(root *Node, opts dom.DocumentOptions) (*dom.Document, error) {
	if root == nil || root.Kind != KindDocument {
		return nil, fmt.Errorf("snapshot: rebuild: root must be a document node")
	}
	doc := dom.NewDocument(opts)
	doc.SetCompatMode(root.CompatMode)
	for _, c := range root.ChildNodes {
		n, err := rebuildNode(doc, c)
		if err != nil {
			return nil, err
		}
		if n != nil {
			doc.Root().AppendChild(n)
		}
	}
	return doc, nil
}

func rebuildNode(doc *dom.Document, sn *Node) (*dom.Node, error) {
	switch sn.Kind {
	case KindDocumentType:
		return doc.CreateDoctype(sn.Name, sn.PublicID, sn.SystemID), nil

	case KindElement:
		var el *dom.Node
		if sn.IsSVG {
			el = doc.CreateSVGElement(sn.TagName)
		} else {
			el = doc.CreateElement(sn.TagName)
		}
		for _, a := range sn.Attributes {
			switch v := a.Value.(type) {
			case string:
				el.SetAttribute(a.Name, v)
			case bool:
				if v {
					el.SetAttribute(a.Name, "")
				}
			case float64:
				el.SetAttribute(a.Name, trimFloat(v))
			}
		}
		for _, c := range sn.ChildNodes {
			if c.Kind == KindDocument && sn.TagName == "iframe" {
				child := el.AttachFrameDocument(dom.FrameOptions{Origin: doc.Origin()})
				child.SetCompatMode(c.CompatMode)
				for _, fc := range c.ChildNodes {
					fn, err := rebuildNode(child, fc)
					if err != nil {
						return nil, err
					}
					if fn != nil {
						child.Root().AppendChild(fn)
					}
				}
				continue
			}
			child, err := rebuildNode(doc, c)
			if err != nil {
				return nil, err
			}
			if child == nil {
				continue
			}
			if c.IsShadow {
				el.AttachShadow().AppendChild(child)
			} else {
				el.AppendChild(child)
			}
		}
		return el, nil

	case KindText:
		return doc.CreateTextNode(sn.TextContent), nil
	case KindComment:
		return doc.CreateComment(sn.TextContent), nil
	case KindCDATA:
		return doc.CreateCDATA(sn.TextContent), nil
	case KindDocument:
		return nil, fmt.Errorf("snapshot: rebuild: nested document node %d outside iframe", sn.ID)
	}
	return nil, fmt.Errorf("snapshot: rebuild: unknown kind %d", sn.Kind)
}
