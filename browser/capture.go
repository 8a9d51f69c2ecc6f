package browser

import (
	"context"
	"fmt"
	"net/url"

	"github.com/Appsurify/rrweb/dom"
)

// BuildDocument materializes a capture into a live document. Captured
// geometry is applied by walking elements in the same document order
// the capture script used, and non-default visibility styles become
// inline declarations so computed-style checks agree with the page.
func BuildDocument(c *Capture, startMillis int64) (*dom.Document, error) {
	doc, err := dom.Parse([]byte(c.HTML), dom.ParseOptions{
		Href:      c.Href,
		Origin:    originOf(c.Href),
		Width:     c.Width,
		Height:    c.Height,
		StartTime: startMillis,
	})
	if err != nil {
		return nil, fmt.Errorf("browser: build document: %w", err)
	}

	applyElementStates(doc, c.Elements)

	if c.ScrollX != 0 || c.ScrollY != 0 {
		doc.SetScroll(c.ScrollX, c.ScrollY)
	}
	return doc, nil
}

func applyElementStates(doc *dom.Document, states []ElementState) {
	de := doc.DocumentElement()
	if de == nil {
		return
	}
	i := 0
	de.Walk(func(n *dom.Node) {
		if n.Type() != dom.ElementNode || i >= len(states) {
			return
		}
		st := states[i]
		i++

		n.SetBoundingRect(dom.Rect{
			Left: st.Left, Top: st.Top, Width: st.Width, Height: st.Height,
		})
		style := n.Style()
		if st.Display == "none" {
			style.SetProperty("display", "none", "")
		}
		if st.Visibility == "hidden" {
			style.SetProperty("visibility", "hidden", "")
		}
		if st.Opacity < 1 {
			style.SetProperty("opacity", fmt.Sprintf("%g", st.Opacity), "")
		}
	})
}

// PageBridge keeps a live document in step with its tab across
// periodic re-captures.
type PageBridge struct {
	Tab      *Tab
	Doc      *dom.Document
	lastHTML string
}

// NewPageBridge captures the tab once and materializes the document.
func NewPageBridge(tab *Tab, startMillis int64) (*PageBridge, error) {
	c, err := tab.Capture(context.Background())
	if err != nil {
		return nil, err
	}
	doc, err := BuildDocument(c, startMillis)
	if err != nil {
		return nil, err
	}
	return &PageBridge{Tab: tab, Doc: doc, lastHTML: c.HTML}, nil
}

// Refresh re-captures the page and applies the delta to the live
// document: viewport and scroll updates always; when the markup
// changed, the document element is replaced wholesale, surfacing as
// one coalesced mutation; geometry changes surface through the
// visibility pipeline on the next frame.
func (pb *PageBridge) Refresh(ctx context.Context) error {
	c, err := pb.Tab.Capture(ctx)
	if err != nil {
		return err
	}

	if w, h := pb.Doc.Viewport(); w != c.Width || h != c.Height {
		pb.Doc.SetViewport(c.Width, c.Height)
	}
	if x, y := pb.Doc.Scroll(); x != c.ScrollX || y != c.ScrollY {
		pb.Doc.SetScroll(c.ScrollX, c.ScrollY)
	}

	if c.HTML != pb.lastHTML {
		pb.lastHTML = c.HTML
		fresh, err := dom.Parse([]byte(c.HTML), dom.ParseOptions{
			Href:      c.Href,
			Origin:    pb.Doc.Origin(),
			Width:     c.Width,
			Height:    c.Height,
			Scheduler: pb.Doc.Scheduler(),
		})
		if err != nil {
			return fmt.Errorf("browser: refresh parse: %w", err)
		}
		old := pb.Doc.DocumentElement()
		next := fresh.DocumentElement()
		if old != nil && next != nil {
			pb.Doc.Root().RemoveChild(old)
			pb.Doc.Root().AppendChild(next)
		}
	}

	applyElementStates(pb.Doc, c.Elements)
	return nil
}

func originOf(href string) string {
	u, err := url.Parse(href)
	if err != nil || u.Scheme == "" {
		return href
	}
	return u.Scheme + "://" + u.Host
}
