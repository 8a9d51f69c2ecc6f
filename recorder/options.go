// Package recorder converts a live document into an ordered event
// stream: one full snapshot at start, then incremental snapshots from
// the observer set, with fresh full snapshots whenever a checkout
// predicate fires.
package recorder

import (
	"errors"
	"log/slog"
	"regexp"

	"github.com/Appsurify/rrweb/dom"
	"github.com/Appsurify/rrweb/event"
	"github.com/Appsurify/rrweb/snapshot"
)

// ErrInvalidConfig is returned when the emitting frame has no sink.
var ErrInvalidConfig = errors.New("recorder: emit is required")

// ErrAlreadyRecording is returned when the document already has an
// active recording.
var ErrAlreadyRecording = errors.New("recorder: document is already being recorded")

// EmitFunc is the stream sink: one call per event, isCheckout marking
// checkout-triggered full snapshots (and their Meta).
type EmitFunc func(e *event.Event, isCheckout bool)

// PackFn encodes an event for transport; applied in the emitting frame
// only. When set, EmitPacked receives the encoded bytes.
type PackFn func(e *event.Event) ([]byte, error)

// VisibilitySampling configures the visibility pipeline.
type VisibilitySampling struct {
	Mode        string  // "none" | "debounce" | "throttle"
	Debounce    int64   // ms, for mode "debounce"
	Throttle    int64   // ms, for mode "throttle"
	Threshold   float64 // intersection ratio must exceed this to count visible
	Sensitivity float64 // ratio delta that reports without a flip
	RAFThrottle int64   // minimum ms between evaluation passes
	RootMargin  string
}

// Sampling throttles high-frequency observers.
type Sampling struct {
	// MouseMove is the position batching wait in ms (default 50).
	MouseMove int64
	// MouseInteraction disables individual interaction kinds by name
	// ("Click", "Focus", ...). Nil records all kinds.
	MouseInteraction map[string]bool
	// Scroll throttles scroll events, ms.
	Scroll int64
	// Media throttles media interaction events, ms.
	Media int64
	// Input: "all" emits every value, "last" only the final value per
	// quiescent burst (default "last").
	Input string
	// Canvas: "all" captures draw commands, "snapshot" emits data-URL
	// frames instead (default "all").
	Canvas string

	Visibility VisibilitySampling
}

// Hooks are coarse per-family callbacks invoked with the payload
// before it is emitted.
type Hooks struct {
	Mutation           func(*event.MutationData)
	MouseMove          func(*event.MouseMoveData)
	MouseInteraction   func(*event.MouseInteractionData)
	Scroll             func(*event.ScrollData)
	ViewportResize     func(*event.ViewportResizeData)
	Input              func(*event.InputData)
	MediaInteraction   func(*event.MediaInteractionData)
	StyleSheetRule     func(*event.StyleSheetRuleData)
	StyleDeclaration   func(*event.StyleDeclarationData)
	CanvasMutation     func(*event.CanvasMutationData)
	Font               func(*event.FontData)
	Selection          func(*event.SelectionData)
	VisibilityMutation func(*event.VisibilityMutationData)
}

// Plugin extends the pipeline: EventProcessor rewrites events in
// declaration order; Observer installs an extra event source emitting
// Plugin events.
type Plugin struct {
	Name           string
	EventProcessor func(e *event.Event) *event.Event
	Observer       func(doc *dom.Document, emit func(payload any)) func()
	Options        any
	GetMirror      func(m *snapshot.Mirror)
}

// Options configure one recording. Document and (in the emitting
// frame) Emit are required; everything else has working defaults.
type Options struct {
	// Document is the live document to record.
	Document *dom.Document
	// Emit is the stream sink. Required unless this is a cross-origin
	// child frame forwarding to its parent.
	Emit EmitFunc

	// Checkout predicates: a fresh full snapshot is taken when any
	// becomes true during an incremental snapshot.
	CheckoutEveryNth int   // every N incrementals
	CheckoutEveryNms int64 // after N ms since the last full snapshot
	CheckoutEveryNvm int   // after N visibility-change events

	BlockClass    string
	BlockSelector string

	IgnoreClass    string
	IgnoreSelector string

	ExcludeAttribute *regexp.Regexp

	MaskTextClass    string
	MaskTextSelector string
	MaskTextFn       func(text string, el *dom.Node) string

	MaskAllInputs    bool
	MaskInputOptions map[string]bool
	MaskInputFn      func(value string, el *dom.Node) string

	InlineStylesheet *bool // default true
	InlineImages     bool
	CollectFonts     bool

	SlimDOM snapshot.SlimDOMOptions

	Sampling Sampling
	// MousemoveWait is the legacy alias for Sampling.MouseMove.
	MousemoveWait int64

	RecordDOM                *bool // default true
	RecordCanvas             bool
	RecordCrossOriginIframes bool

	// RecordAfter defers start until the named document event:
	// "load" or "DOMContentLoaded". Empty starts immediately.
	RecordAfter string

	// FlushCustomEvent: "before" emits queued custom events before the
	// first full snapshot, "after" (default) once observers are up.
	FlushCustomEvent string

	UserTriggeredOnInput bool

	KeepIframeSrcFn func(url string) bool

	// IgnoreCSSAttributes drops the named properties from style
	// declaration mutations.
	IgnoreCSSAttributes map[string]bool

	DataURLOptions snapshot.DataURLOptions

	Plugins []*Plugin
	Hooks   Hooks

	PackFn PackFn
	// EmitPacked receives encoded events when PackFn is set.
	EmitPacked func(data []byte, isCheckout bool)

	// ErrorHandler receives per-event failures. Nil falls back to a
	// warning log.
	ErrorHandler func(err error)

	// Now overrides the timestamp source (defaults to the document
	// scheduler's clock).
	Now func() int64

	Logger *slog.Logger
}

func (o *Options) applyDefaults() {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Sampling.MouseMove <= 0 {
		if o.MousemoveWait > 0 {
			o.Sampling.MouseMove = o.MousemoveWait
		} else {
			o.Sampling.MouseMove = 50
		}
	}
	if o.Sampling.Input == "" {
		o.Sampling.Input = "last"
	}
	if o.Sampling.Canvas == "" {
		o.Sampling.Canvas = "all"
	}
	if o.Sampling.Visibility.Mode == "" {
		o.Sampling.Visibility.Mode = "none"
	}
	if o.Sampling.Visibility.RAFThrottle <= 0 {
		o.Sampling.Visibility.RAFThrottle = 100
	}
	if o.Sampling.Visibility.Sensitivity <= 0 {
		o.Sampling.Visibility.Sensitivity = 0.1
	}
	if o.FlushCustomEvent == "" {
		o.FlushCustomEvent = "after"
	}
}

func (o *Options) recordDOM() bool {
	return o.RecordDOM == nil || *o.RecordDOM
}

func (o *Options) inlineStylesheet() bool {
	return o.InlineStylesheet == nil || *o.InlineStylesheet
}
