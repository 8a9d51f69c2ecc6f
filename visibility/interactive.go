package visibility

import (
	"strconv"
	"strings"

	"github.com/Appsurify/rrweb/dom"
)

// interactiveTags is the fixed set of tags considered capable of
// receiving user input.
var interactiveTags = map[string]bool{
	"a": true, "button": true, "input": true, "select": true,
	"textarea": true, "label": true, "details": true, "summary": true,
	"dialog": true, "video": true, "audio": true,
}

// interactiveRoles is the fixed set of ARIA roles treated as
// interactive.
var interactiveRoles = map[string]bool{
	"button": true, "link": true, "checkbox": true,
	"switch": true, "menuitem": true,
}

// InteractiveEvents is the listener-type set whose registration marks
// an element as known-interactive (see the recorder's listener
// registry).
var InteractiveEvents = map[string]bool{
	"click": true, "dblclick": true, "contextmenu": true,
	"mousedown": true, "mouseup": true, "mouseenter": true,
	"mouseleave": true, "keydown": true, "keyup": true,
	"keypress": true, "input": true, "change": true, "submit": true,
	"pointerdown": true, "pointerup": true, "touchstart": true,
	"touchmove": true, "touchend": true, "touchcancel": true,
	"focus": true, "blur": true, "dragstart": true, "drop": true,
}

// IsInteractive classifies an element (text nodes propagate from the
// parent). known reports membership in the recorder's known-interactive
// set; nil means no listener observations are available.
func IsInteractive(n *dom.Node, known func(*dom.Node) bool) bool {
	el := n
	if el != nil && el.Type() != dom.ElementNode {
		el = el.Parent()
	}
	if el == nil || el.Type() != dom.ElementNode {
		return false
	}

	if interactiveTags[el.Tag()] {
		return true
	}
	if ti, ok := el.GetAttribute("tabindex"); ok {
		if v, err := strconv.Atoi(strings.TrimSpace(ti)); err == nil && v != -1 {
			return true
		}
	}
	if role, ok := el.GetAttribute("role"); ok && interactiveRoles[strings.ToLower(role)] {
		return true
	}
	if known != nil && known(el) {
		return true
	}
	return false
}

// HasInlineHandler reports whether the element declares an on*
// attribute for an interactive event, e.g. onclick.
func HasInlineHandler(el *dom.Node) bool {
	for _, a := range el.Attrs() {
		if strings.HasPrefix(a.Name, "on") && InteractiveEvents[a.Name[2:]] {
			return true
		}
	}
	return false
}
