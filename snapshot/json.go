package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// MarshalJSON emits the per-kind wire view. Attributes are written as a
// JSON object in authored order.
func (n Node) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	writeField(&b, "id", n.ID, true)
	writeField(&b, "type", int(n.Kind), false)

	switch n.Kind {
	case KindDocument:
		writeField(&b, "compatMode", n.CompatMode, false)
		writeChildren(&b, n.ChildNodes)
	case KindDocumentType:
		writeField(&b, "name", n.Name, false)
		writeField(&b, "publicId", n.PublicID, false)
		writeField(&b, "systemId", n.SystemID, false)
	case KindElement:
		writeField(&b, "tagName", n.TagName, false)
		b.WriteString(`,"attributes":`)
		writeAttributes(&b, n.Attributes)
		writeChildren(&b, n.ChildNodes)
		if n.IsSVG {
			writeField(&b, "isSVG", true, false)
		}
		if n.NeedBlock {
			writeField(&b, "needBlock", true, false)
		}
		if n.NeedMask {
			writeField(&b, "needMask", true, false)
		}
		if n.RootID != 0 {
			writeField(&b, "rootId", n.RootID, false)
		}
		if n.IsShadowHost {
			writeField(&b, "isShadowHost", true, false)
		}
		if n.IsShadow {
			writeField(&b, "isShadow", true, false)
		}
		writeField(&b, "xpath", n.XPath, false)
		writeField(&b, "selector", n.Selector, false)
		writeField(&b, "isVisible", n.IsVisible, false)
		writeField(&b, "isInteractive", n.IsInteractive, false)
	case KindText, KindComment, KindCDATA:
		writeField(&b, "textContent", n.TextContent, false)
		if n.IsStyle {
			writeField(&b, "isStyle", true, false)
		}
		if n.RootID != 0 {
			writeField(&b, "rootId", n.RootID, false)
		}
	}

	b.WriteByte('}')
	return b.Bytes(), nil
}

func writeField(b *bytes.Buffer, name string, value any, first bool) {
	if !first {
		b.WriteByte(',')
	}
	key, _ := json.Marshal(name)
	b.Write(key)
	b.WriteByte(':')
	val, _ := json.Marshal(value)
	b.Write(val)
}

func writeChildren(b *bytes.Buffer, kids []*Node) {
	b.WriteString(`,"childNodes":`)
	if kids == nil {
		b.WriteString("[]")
		return
	}
	data, _ := json.Marshal(kids)
	b.Write(data)
}

func writeAttributes(b *bytes.Buffer, attrs []Attribute) {
	b.WriteByte('{')
	for i, a := range attrs {
		if i > 0 {
			b.WriteByte(',')
		}
		key, _ := json.Marshal(a.Name)
		b.Write(key)
		b.WriteByte(':')
		val, _ := json.Marshal(a.Value)
		b.Write(val)
	}
	b.WriteByte('}')
}

// UnmarshalJSON decodes the wire view, preserving attribute order via
// token-level decoding.
func (n *Node) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID            int             `json:"id"`
		Type          int             `json:"type"`
		CompatMode    string          `json:"compatMode"`
		Name          string          `json:"name"`
		PublicID      string          `json:"publicId"`
		SystemID      string          `json:"systemId"`
		TagName       string          `json:"tagName"`
		Attributes    json.RawMessage `json:"attributes"`
		ChildNodes    []*Node         `json:"childNodes"`
		IsSVG         bool            `json:"isSVG"`
		NeedBlock     bool            `json:"needBlock"`
		NeedMask      bool            `json:"needMask"`
		RootID        int             `json:"rootId"`
		IsShadowHost  bool            `json:"isShadowHost"`
		IsShadow      bool            `json:"isShadow"`
		XPath         string          `json:"xpath"`
		Selector      string          `json:"selector"`
		IsVisible     bool            `json:"isVisible"`
		IsInteractive bool            `json:"isInteractive"`
		TextContent   string          `json:"textContent"`
		IsStyle       bool            `json:"isStyle"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("snapshot: unmarshal node: %w", err)
	}

	n.ID = raw.ID
	n.Kind = Kind(raw.Type)
	n.CompatMode = raw.CompatMode
	n.Name, n.PublicID, n.SystemID = raw.Name, raw.PublicID, raw.SystemID
	n.TagName = raw.TagName
	n.ChildNodes = raw.ChildNodes
	n.IsSVG, n.NeedBlock, n.NeedMask = raw.IsSVG, raw.NeedBlock, raw.NeedMask
	n.RootID = raw.RootID
	n.IsShadowHost, n.IsShadow = raw.IsShadowHost, raw.IsShadow
	n.XPath, n.Selector = raw.XPath, raw.Selector
	n.IsVisible, n.IsInteractive = raw.IsVisible, raw.IsInteractive
	n.TextContent, n.IsStyle = raw.TextContent, raw.IsStyle

	if len(raw.Attributes) > 0 && !bytes.Equal(raw.Attributes, []byte("null")) {
		attrs, err := decodeOrderedAttributes(raw.Attributes)
		if err != nil {
			return err
		}
		n.Attributes = attrs
	}
	return nil
}

func decodeOrderedAttributes(raw json.RawMessage) ([]Attribute, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("snapshot: attributes: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("snapshot: attributes: expected object")
	}

	var attrs []Attribute
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("snapshot: attributes key: %w", err)
		}
		key := keyTok.(string)

		valTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("snapshot: attributes value: %w", err)
		}
		var val any
		switch v := valTok.(type) {
		case json.Number:
			f, _ := v.Float64()
			val = f
		default:
			val = v
		}
		attrs = append(attrs, Attribute{Name: key, Value: val})
	}
	return attrs, nil
}
