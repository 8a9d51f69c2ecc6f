// Package visibility classifies elements as visible/interactive and
// batches visibility changes into incremental events on an
// animation-frame cadence.
package visibility

import (
	"math"
	"strconv"
	"strings"

	"github.com/Appsurify/rrweb/dom"
)

// Options configure one evaluation pass.
type Options struct {
	// Root confines intersection to an element's box; nil means the
	// viewport.
	Root *dom.Node
	// Threshold is the intersection ratio an element must exceed to
	// count as visible; a ratio equal to it is not visible.
	Threshold float64
	// Sensitivity is the ratio delta that reports a change even
	// without a visibility flip.
	Sensitivity float64
	// RootMargin expands the root box, CSS order top/right/bottom/left,
	// px and % units.
	RootMargin string
}

// Entry is one element's evaluated state. Entries stay inside the
// manager; only the {id, isVisible, ratio} tuple reaches the stream.
type Entry struct {
	Target         *dom.Node
	IsVisible      bool
	IsStyleVisible bool
	Ratio          float64
	Rect           dom.Rect
	OldIsVisible   bool
	OldRatio       float64
	hadOld         bool
}

// Changed reports whether this entry differs from its predecessor:
// the visibility flipped, or the ratio moved more than sensitivity.
func (e *Entry) Changed(sensitivity float64) bool {
	if !e.hadOld {
		return e.IsVisible || e.Ratio > 0
	}
	if e.IsVisible != e.OldIsVisible {
		return true
	}
	return math.Abs(e.Ratio-e.OldRatio) > sensitivity
}

// Evaluate classifies every element and returns a new state map keyed
// by the same elements. prev supplies old values for change detection.
func Evaluate(elements []*dom.Node, prev map[*dom.Node]*Entry, doc *dom.Document, opts Options) map[*dom.Node]*Entry {
	root := rootRect(doc, opts)
	next := make(map[*dom.Node]*Entry, len(elements))

	for _, el := range elements {
		entry := evaluateOne(el, doc, root, opts)
		if old, ok := prev[el]; ok {
			entry.OldIsVisible = old.IsVisible
			entry.OldRatio = old.Ratio
			entry.hadOld = true
		}
		next[el] = entry
	}
	return next
}

func evaluateOne(el *dom.Node, doc *dom.Document, root dom.Rect, opts Options) *Entry {
	rect := el.BoundingClientRect()
	inter := intersect(rect, root)

	ratio := 0.0
	if area := rect.Area(); area > 0 {
		ratio = round2(inter.Area() / area)
	}

	styleVisible := isStyleVisible(doc, el)
	return &Entry{
		Target:         el,
		IsStyleVisible: styleVisible,
		IsVisible:      styleVisible && ratio > opts.Threshold,
		Ratio:          ratio,
		Rect:           inter,
	}
}

func isStyleVisible(doc *dom.Document, el *dom.Node) bool {
	if doc.ComputedStyle(el, "display") == "none" {
		return false
	}
	if doc.ComputedStyle(el, "visibility") == "hidden" {
		return false
	}
	opacity := doc.ComputedStyle(el, "opacity")
	if opacity != "" {
		if v, err := strconv.ParseFloat(opacity, 64); err == nil && v <= 0 {
			return false
		}
	}
	return true
}

func rootRect(doc *dom.Document, opts Options) dom.Rect {
	var r dom.Rect
	if opts.Root != nil {
		r = opts.Root.BoundingClientRect()
	} else {
		w, h := doc.Viewport()
		r = dom.Rect{Width: float64(w), Height: float64(h)}
	}
	return expandByMargin(r, opts.RootMargin)
}

// expandByMargin applies a CSS-style margin string in
// top/right/bottom/left order. Percentages are relative to the root's
// own dimensions.
func expandByMargin(r dom.Rect, margin string) dom.Rect {
	fields := strings.Fields(margin)
	if len(fields) == 0 {
		return r
	}
	// CSS shorthand expansion to top/right/bottom/left.
	var t, rt, b, l string
	switch len(fields) {
	case 1:
		t, rt, b, l = fields[0], fields[0], fields[0], fields[0]
	case 2:
		t, rt, b, l = fields[0], fields[1], fields[0], fields[1]
	case 3:
		t, rt, b, l = fields[0], fields[1], fields[2], fields[1]
	default:
		t, rt, b, l = fields[0], fields[1], fields[2], fields[3]
	}
	top := parseMarginValue(t, r, 0)
	right := parseMarginValue(rt, r, 1)
	bottom := parseMarginValue(b, r, 2)
	left := parseMarginValue(l, r, 3)
	return dom.Rect{
		Left:   r.Left - left,
		Top:    r.Top - top,
		Width:  r.Width + left + right,
		Height: r.Height + top + bottom,
	}
}

func parseMarginValue(s string, r dom.Rect, side int) float64 {
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "%") {
		v, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
		if err != nil {
			return 0
		}
		if side == 0 || side == 2 {
			return v / 100 * r.Height
		}
		return v / 100 * r.Width
	}
	s = strings.TrimSuffix(s, "px")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func intersect(a, b dom.Rect) dom.Rect {
	left := math.Max(a.Left, b.Left)
	top := math.Max(a.Top, b.Top)
	right := math.Min(a.Left+a.Width, b.Left+b.Width)
	bottom := math.Min(a.Top+a.Height, b.Top+b.Height)
	if right <= left || bottom <= top {
		return dom.Rect{}
	}
	return dom.Rect{Left: left, Top: top, Width: right - left, Height: bottom - top}
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
