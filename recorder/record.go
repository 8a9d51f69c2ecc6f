package recorder

import (
	"sync"

	"github.com/Appsurify/rrweb/dom"
	"github.com/Appsurify/rrweb/event"
	"github.com/Appsurify/rrweb/snapshot"
	"github.com/Appsurify/rrweb/visibility"
)

type recordingState int

const (
	stateIdle recordingState = iota
	stateStarting
	stateRecording
	stateFrozen
)

// recording owns all per-recording state. Nothing is module-level
// except the active-document guard, so two documents can record in the
// same process.
type recording struct {
	opts Options
	doc  *dom.Document

	mirror      *snapshot.Mirror
	serializer  *snapshot.Serializer
	registry    *listenerRegistry
	vis         *visibility.Manager
	buffers     []*mutationBuffer
	iframes     *iframeManager
	shadows     *shadowDomManager
	stylesheets *stylesheetManager

	installedDocs map[*dom.Document]bool
	disposers     []func()

	state       recordingState
	stopped     bool
	passThrough bool

	customQueue []event.CustomData

	lastTs         int64
	lastFullTs     int64
	incCount       int
	vmCount        int
	takingSnapshot bool
}

var (
	activeMu sync.Mutex
	active   = make(map[*dom.Document]*recording)
)

// Record starts recording a document and returns the stop handle.
// Invalid configuration (no document, no sink in the emitting frame)
// fails here; nothing is installed on failure.
func Record(opts Options) (*Handle, error) {
	if opts.Document == nil {
		return nil, ErrInvalidConfig
	}
	opts.applyDefaults()

	passThrough := opts.RecordCrossOriginIframes &&
		opts.Document.Parent() != nil && !opts.Document.SameOriginWithParent()

	if !passThrough {
		if opts.Emit == nil {
			return nil, ErrInvalidConfig
		}
		if opts.PackFn != nil && opts.EmitPacked == nil {
			return nil, ErrInvalidConfig
		}
	}

	activeMu.Lock()
	if _, busy := active[opts.Document]; busy {
		activeMu.Unlock()
		return nil, ErrAlreadyRecording
	}
	r := &recording{
		opts:          opts,
		doc:           opts.Document,
		state:         stateStarting,
		passThrough:   passThrough,
		installedDocs: make(map[*dom.Document]bool),
	}
	active[opts.Document] = r
	activeMu.Unlock()

	r.build()

	handle := &Handle{r: r}

	if passThrough {
		// Child frames stop when the parent posts the stop signal.
		r.disposers = append(r.disposers, r.doc.OnMessage(func(_ string, data any) {
			if ctl, ok := data.(ControlMessage); ok && ctl.Type == "rrweb-stop" {
				handle.Stop()
			}
		}))
	}

	if deferred := r.deferStart(); !deferred {
		r.start()
	}
	return handle, nil
}

func (r *recording) build() {
	r.mirror = snapshot.NewMirror()
	r.registry = newListenerRegistry()
	r.shadows = newShadowDomManager(r)
	r.stylesheets = newStylesheetManager(r)
	r.iframes = newIframeManager(r)

	r.serializer = snapshot.NewSerializer(r.mirror, snapshot.Options{
		BlockClass:       r.opts.BlockClass,
		BlockSelector:    r.opts.BlockSelector,
		IgnoreClass:      r.opts.IgnoreClass,
		IgnoreSelector:   r.opts.IgnoreSelector,
		ExcludeAttribute: r.opts.ExcludeAttribute,
		MaskTextClass:    r.opts.MaskTextClass,
		MaskTextSelector: r.opts.MaskTextSelector,
		MaskTextFn:       r.opts.MaskTextFn,
		MaskAllInputs:    r.opts.MaskAllInputs,
		MaskInputOptions: r.opts.MaskInputOptions,
		MaskInputFn:      r.opts.MaskInputFn,
		SlimDOM:          r.opts.SlimDOM,
		InlineStylesheet: r.opts.inlineStylesheet(),
		InlineImages:     r.opts.InlineImages,
		RecordCanvas:     r.opts.RecordCanvas,
		DataURLOptions:   r.opts.DataURLOptions,
		KeepIframeSrcFn:  r.opts.KeepIframeSrcFn,
		IsVisible:        r.classifyVisible,
		IsInteractive:    r.classifyInteractive,
		OnSerialize:      r.onSerialize,
		OnIframeLoad:     func(el *dom.Node, _ *snapshot.Node) { r.iframes.ObserveSameOrigin(el) },
		OnStylesheetLoad: r.stylesheets.TrackPending,
	})

	for _, p := range r.opts.Plugins {
		if p.GetMirror != nil {
			p.GetMirror(r.mirror)
		}
	}
}

// deferStart arranges a delayed start per RecordAfter. Returns true
// when start was deferred to a document readiness event.
func (r *recording) deferStart() bool {
	switch r.opts.RecordAfter {
	case "load":
		if r.doc.ReadyState() == "complete" {
			return false
		}
	case "DOMContentLoaded":
		if r.doc.ReadyState() != "loading" {
			return false
		}
	default:
		return false
	}

	var remove func()
	remove = r.doc.AddEventListener(r.opts.RecordAfter, func(e *dom.DOMEvent) {
		if e.Target != r.doc.Root() {
			return // frame load events bubble here too
		}
		remove()
		if !r.stopped {
			r.start()
		}
	})
	return true
}

func (r *recording) start() {
	// Lifecycle events observed during the recording are forwarded.
	// Target-checked: frame load events bubble to the same node.
	r.disposers = append(r.disposers,
		r.doc.AddEventListener("DOMContentLoaded", func(e *dom.DOMEvent) {
			if e.Target == r.doc.Root() {
				r.emitEvent(event.DomContentLoaded, nil)
			}
		}),
		r.doc.AddEventListener("load", func(e *dom.DOMEvent) {
			if e.Target == r.doc.Root() {
				r.emitEvent(event.Load, nil)
			}
		}),
	)

	r.registry.install(r.doc)
	r.installedDocs[r.doc] = true

	if r.opts.recordDOM() {
		r.buffers = append(r.buffers, newMutationBuffer(r, r.doc, r.doc.Root()))
		r.shadows.install(r.doc)
		r.stylesheets.install(r.doc)
	}
	r.iframes.install(r.doc)
	r.disposers = append(r.disposers, r.installObservers(r.doc)...)

	for _, p := range r.opts.Plugins {
		if p.Observer == nil {
			continue
		}
		p := p
		dispose := p.Observer(r.doc, func(payload any) {
			r.emitEvent(event.Plugin, &event.PluginData{Plugin: p.Name, Payload: payload})
		})
		if dispose != nil {
			r.disposers = append(r.disposers, dispose)
		}
	}

	if r.opts.FlushCustomEvent == "before" {
		r.flushCustomQueue()
	}

	if err := r.takeFullSnapshot(false); err != nil {
		r.logger().Warn("recorder: initial snapshot failed; next checkout retries", "error", err)
	}

	if r.opts.recordDOM() {
		r.startVisibility()
	}

	r.state = stateRecording

	if r.opts.FlushCustomEvent == "after" {
		r.flushCustomQueue()
	}
}

func (r *recording) startVisibility() {
	vs := r.opts.Sampling.Visibility
	r.vis = visibility.NewManager(visibility.ManagerConfig{
		Document: r.doc,
		Evaluator: visibility.Options{
			Threshold:   vs.Threshold,
			Sensitivity: vs.Sensitivity,
			RootMargin:  vs.RootMargin,
		},
		Mode:           visibility.FlushMode(vs.Mode),
		DebounceMS:     vs.Debounce,
		ThrottleMS:     vs.Throttle,
		RAFThrottle:    vs.RAFThrottle,
		GetID:          r.mirror.GetID,
		NotifyActivity: r.notifyVisibilityActivity,
		Emit: func(tuples []event.VisibilityTuple) {
			data := &event.VisibilityMutationData{Mutations: tuples}
			if r.opts.Hooks.VisibilityMutation != nil {
				r.opts.Hooks.VisibilityMutation(data)
			}
			r.emitIncremental(data)
		},
		Logger: r.opts.Logger,
	})
	r.vis.Start()
}

// installFrameDocument recurses the observer set into a same-origin
// frame document.
func (r *recording) installFrameDocument(child *dom.Document) {
	if r.installedDocs[child] {
		return
	}
	r.installedDocs[child] = true

	r.registry.install(child)
	if r.opts.recordDOM() {
		r.buffers = append(r.buffers, newMutationBuffer(r, child, child.Root()))
		r.shadows.install(child)
		r.stylesheets.install(child)
	}
	r.iframes.install(child)
	r.disposers = append(r.disposers, r.installObservers(child)...)
}

// onSerialize runs for every node the serializer visits: shadow roots
// get observers, cross-origin iframes get registered for forwarding.
func (r *recording) onSerialize(n *dom.Node, _ *snapshot.Node) {
	if n.Type() != dom.ElementNode {
		return
	}
	if n.ShadowRoot() != nil {
		r.shadows.ObserveHost(n)
	}
	if n.Tag() == "iframe" && n.FrameDocument() != nil && n.ContentDocument() == nil {
		r.iframes.RegisterCrossOrigin(n)
	}
}

// afterNodeAdded runs for every top-level subtree the mutation buffer
// serialized: late shadow roots and frames need their managers.
func (r *recording) afterNodeAdded(n *dom.Node) {
	n.Walk(func(k *dom.Node) {
		if k.Type() != dom.ElementNode {
			return
		}
		if k.ShadowRoot() != nil {
			r.shadows.ObserveHost(k)
		}
		if k.Tag() == "iframe" {
			if k.ContentDocument() != nil {
				r.iframes.ObserveSameOrigin(k)
			} else if k.FrameDocument() != nil {
				r.iframes.RegisterCrossOrigin(k)
			}
		}
	})
}

// --- classification helpers ---

func (r *recording) classifyVisible(el *dom.Node) (bool, float64) {
	vs := r.opts.Sampling.Visibility
	entries := visibility.Evaluate([]*dom.Node{el}, nil, el.Document(), visibility.Options{
		Threshold:   vs.Threshold,
		Sensitivity: vs.Sensitivity,
		RootMargin:  vs.RootMargin,
	})
	if e, ok := entries[el]; ok {
		return e.IsVisible, e.Ratio
	}
	return false, 0
}

func (r *recording) classifyInteractive(n *dom.Node) bool {
	return visibility.IsInteractive(n, r.registry.Known)
}

func (r *recording) isBlockedTarget(n *dom.Node) bool {
	for p := n; p != nil; p = p.Parent() {
		if p.Type() != dom.ElementNode {
			continue
		}
		if r.opts.BlockClass != "" && dom.HasClass(p, r.opts.BlockClass) {
			return true
		}
		if r.opts.BlockSelector != "" && dom.MatchesSelector(p, r.opts.BlockSelector) {
			return true
		}
	}
	return false
}

func (r *recording) isIgnoredTarget(n *dom.Node) bool {
	if n == nil || n.Type() != dom.ElementNode {
		return false
	}
	if r.opts.IgnoreClass != "" && dom.HasClass(n, r.opts.IgnoreClass) {
		return true
	}
	return r.opts.IgnoreSelector != "" && dom.MatchesSelector(n, r.opts.IgnoreSelector)
}

func (r *recording) maskTextApplies(el *dom.Node) bool {
	for p := el; p != nil; p = p.Parent() {
		if p.Type() != dom.ElementNode {
			continue
		}
		if r.opts.MaskTextClass != "" && dom.HasClass(p, r.opts.MaskTextClass) {
			return true
		}
		if r.opts.MaskTextSelector != "" && dom.MatchesSelector(p, r.opts.MaskTextSelector) {
			return true
		}
	}
	return false
}

func (r *recording) maskText(text string, el *dom.Node) string {
	if r.opts.MaskTextFn != nil {
		return r.opts.MaskTextFn(text, el)
	}
	masked := make([]rune, 0, len(text))
	for range text {
		masked = append(masked, '*')
	}
	return string(masked)
}

// --- custom events ---

func (r *recording) addCustomEvent(tag string, payload any) {
	data := event.CustomData{Tag: tag, Payload: payload}
	if r.state == stateRecording || r.state == stateFrozen {
		r.emitEvent(event.Custom, &data)
		return
	}
	r.customQueue = append(r.customQueue, data)
}

func (r *recording) flushCustomQueue() {
	queued := r.customQueue
	r.customQueue = nil
	for i := range queued {
		r.emitEvent(event.Custom, &queued[i])
	}
}

// --- freeze / unfreeze ---

func (r *recording) freeze() {
	if r.state != stateRecording {
		return
	}
	for _, b := range r.buffers {
		b.Freeze()
	}
	if r.vis != nil {
		r.vis.Freeze()
	}
	r.state = stateFrozen
}

func (r *recording) unfreezeInternal() {
	if r.state != stateFrozen {
		return
	}
	r.state = stateRecording
	for _, b := range r.buffers {
		b.Unfreeze()
	}
	if r.vis != nil {
		r.vis.Unfreeze()
	}
}

// --- stop ---

func (r *recording) stop() {
	if r.stopped {
		return
	}
	r.stopped = true
	r.state = stateIdle

	r.iframes.StopChildren()

	for _, dispose := range r.disposers {
		dispose()
	}
	r.disposers = nil

	for _, b := range r.buffers {
		b.Disconnect()
	}
	r.buffers = nil

	if r.vis != nil {
		r.vis.Reset()
		r.vis = nil
	}

	r.shadows.uninstall()
	r.stylesheets.uninstall()
	r.iframes.uninstall()
	r.registry.uninstall()
	r.mirror.Reset()

	activeMu.Lock()
	delete(active, r.doc)
	activeMu.Unlock()
}

// --- handle ---

// Handle controls a recording. All methods are idempotent where the
// spec requires it; Stop in particular may be called any number of
// times.
type Handle struct {
	r *recording
}

// Stop detaches every observer, cancels pending frames and timers,
// restores patched hooks, and resets the mirror.
func (h *Handle) Stop() { h.r.stop() }

// AddCustomEvent emits a Custom event, or queues it until the
// recording starts.
func (h *Handle) AddCustomEvent(tag string, payload any) {
	h.r.addCustomEvent(tag, payload)
}

// FlushCustomEventQueue emits all queued custom events now.
func (h *Handle) FlushCustomEventQueue() {
	h.r.flushCustomQueue()
}

// FreezePage pauses mutation and visibility emission; buffers keep
// coalescing until unfreeze.
func (h *Handle) FreezePage() { h.r.freeze() }

// UnfreezePage resumes emission, flushing the coalesced backlog first.
func (h *Handle) UnfreezePage() { h.r.unfreezeInternal() }

// TakeFullSnapshot forces a Meta + FullSnapshot pair.
func (h *Handle) TakeFullSnapshot(isCheckout bool) error {
	return h.r.takeFullSnapshot(isCheckout)
}

// Mirror exposes the recording's mirror, read-only by convention.
func (h *Handle) Mirror() *snapshot.Mirror { return h.r.mirror }
