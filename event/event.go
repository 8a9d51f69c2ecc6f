// Package event defines the typed event stream emitted by the recorder.
// These are the public API contract: any consumer (sinks, the replayer,
// coverage tooling) imports this package to receive and decode events.
//
// The numeric values of Type and Source are normative wire constants —
// they mirror the rrweb public enums and must never be renumbered.
package event

// Type discriminates the top-level event union.
type Type int

const (
	DomContentLoaded Type = iota // 0
	Load                         // 1
	FullSnapshot                 // 2
	IncrementalSnapshot          // 3
	Meta                         // 4
	Custom                       // 5
	Plugin                       // 6
)

func (t Type) String() string {
	switch t {
	case DomContentLoaded:
		return "DomContentLoaded"
	case Load:
		return "Load"
	case FullSnapshot:
		return "FullSnapshot"
	case IncrementalSnapshot:
		return "IncrementalSnapshot"
	case Meta:
		return "Meta"
	case Custom:
		return "Custom"
	case Plugin:
		return "Plugin"
	}
	return "Unknown"
}

// Source discriminates IncrementalSnapshot payloads.
type Source int

const (
	SourceMutation           Source = iota // 0
	SourceMouseMove                        // 1
	SourceMouseInteraction                 // 2
	SourceScroll                           // 3
	SourceViewportResize                   // 4
	SourceInput                            // 5
	SourceTouchMove                        // 6
	SourceMediaInteraction                 // 7
	SourceStyleSheetRule                   // 8
	SourceCanvasMutation                   // 9
	SourceFont                             // 10
	SourceLog                              // 11
	SourceDrag                             // 12
	SourceStyleDeclaration                 // 13
	SourceSelection                        // 14
	SourceAdoptedStyleSheet                // 15
	SourceCustomElement                    // 16
	SourceVisibilityMutation               // 17
)

func (s Source) String() string {
	names := []string{
		"Mutation", "MouseMove", "MouseInteraction", "Scroll",
		"ViewportResize", "Input", "TouchMove", "MediaInteraction",
		"StyleSheetRule", "CanvasMutation", "Font", "Log", "Drag",
		"StyleDeclaration", "Selection", "AdoptedStyleSheet",
		"CustomElement", "VisibilityMutation",
	}
	if int(s) >= 0 && int(s) < len(names) {
		return names[s]
	}
	return "Unknown"
}

// Event is one element of the stream. Data holds the payload struct
// matching Type (MetaData, FullSnapshotData, one of the incremental
// payloads, CustomData, PluginData; nil for DomContentLoaded/Load).
//
// Timestamp is epoch milliseconds assigned at emit time and is
// monotonic within one recording. Extra carries plugin-attached keys
// (e.g. the sequential-id plugin's "id") and is flattened into the
// top-level JSON object on marshal.
type Event struct {
	Type      Type
	Data      any
	Timestamp int64
	Extra     map[string]any
}

// SetExtra attaches a plugin key to the event.
func (e *Event) SetExtra(key string, value any) {
	if e.Extra == nil {
		e.Extra = make(map[string]any, 1)
	}
	e.Extra[key] = value
}

// IncrementalData is implemented by every IncrementalSnapshot payload.
type IncrementalData interface {
	IncrementalSource() Source
}
