package visibility

import (
	"log/slog"
	"sort"

	"github.com/Appsurify/rrweb/dom"
	"github.com/Appsurify/rrweb/event"
)

// FlushMode controls when buffered visibility changes are emitted.
type FlushMode string

const (
	FlushNone     FlushMode = "none"     // emit on the frame they occur
	FlushDebounce FlushMode = "debounce" // emit after a quiet period
	FlushThrottle FlushMode = "throttle" // emit at most every N ms
)

// ManagerConfig configures a visibility manager.
type ManagerConfig struct {
	Document    *dom.Document
	Evaluator   Options
	Mode        FlushMode
	DebounceMS  int64
	ThrottleMS  int64
	RAFThrottle int64 // minimum ms between evaluation passes

	// GetID resolves an element to its mirror id. Elements without an
	// id (not yet serialized) are skipped.
	GetID func(*dom.Node) int
	// Emit receives one batch per flush.
	Emit func(mutations []event.VisibilityTuple)
	// NotifyActivity feeds the checkout visibility counter.
	NotifyActivity func(count int)

	Logger *slog.Logger
}

// Manager drives the evaluator on every animation frame, throttled by
// RAFThrottle, and batches changes per the flush mode. The first pass
// after init never emits — it only establishes the baseline.
type Manager struct {
	cfg ManagerConfig
	doc *dom.Document

	observed map[*dom.Node]struct{}
	prev     map[*dom.Node]*Entry
	buffer   map[*dom.Node]event.VisibilityTuple

	mutObs *dom.MutationObserver

	rafID      int
	debounceID int
	lastRun    int64
	lastEmit   int64
	firstPass  bool
	frozen     bool
	locked     bool
	stopped    bool
}

// NewManager creates a manager. Call Start to begin the frame loop.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Mode == "" {
		cfg.Mode = FlushNone
	}
	return &Manager{
		cfg:       cfg,
		doc:       cfg.Document,
		observed:  make(map[*dom.Node]struct{}),
		prev:      make(map[*dom.Node]*Entry),
		buffer:    make(map[*dom.Node]event.VisibilityTuple),
		firstPass: true,
	}
}

// Start observes every element under body, installs the body mutation
// observer that keeps the observed set in sync, and begins the frame
// loop.
func (m *Manager) Start() {
	if body := m.doc.Body(); body != nil {
		body.Walk(func(n *dom.Node) {
			if n.Type() == dom.ElementNode {
				m.observed[n] = struct{}{}
			}
		})
		m.mutObs = m.doc.NewMutationObserver(m.onMutations)
		m.mutObs.Observe(body)
	}
	m.scheduleFrame()
}

func (m *Manager) onMutations(records []dom.MutationRecord) {
	for _, rec := range records {
		for _, added := range rec.Added {
			added.Walk(func(n *dom.Node) {
				if n.Type() == dom.ElementNode {
					m.observed[n] = struct{}{}
				}
			})
		}
		for _, removed := range rec.Removed {
			removed.Walk(func(n *dom.Node) {
				delete(m.observed, n)
				delete(m.prev, n)
				delete(m.buffer, n)
			})
		}
	}
}

// Observe adds a single element to the observed set.
func (m *Manager) Observe(el *dom.Node) {
	if el != nil && el.Type() == dom.ElementNode {
		m.observed[el] = struct{}{}
	}
}

// Unobserve removes an element from the observed set.
func (m *Manager) Unobserve(el *dom.Node) {
	delete(m.observed, el)
	delete(m.prev, el)
	delete(m.buffer, el)
}

// Freeze suspends evaluation until Unfreeze.
func (m *Manager) Freeze() { m.frozen = true }

// Unfreeze resumes evaluation.
func (m *Manager) Unfreeze() { m.frozen = false }

// Lock suspends evaluation while a snapshot is in progress.
func (m *Manager) Lock() { m.locked = true }

// Unlock resumes evaluation after a snapshot.
func (m *Manager) Unlock() { m.locked = false }

// Reset cancels the pending frame and timers and clears all state.
func (m *Manager) Reset() {
	m.stopped = true
	sched := m.doc.Scheduler()
	if m.rafID != 0 {
		sched.CancelAnimationFrame(m.rafID)
		m.rafID = 0
	}
	if m.debounceID != 0 {
		sched.ClearTimeout(m.debounceID)
		m.debounceID = 0
	}
	if m.mutObs != nil {
		m.mutObs.Disconnect()
		m.mutObs = nil
	}
	m.observed = make(map[*dom.Node]struct{})
	m.prev = make(map[*dom.Node]*Entry)
	m.buffer = make(map[*dom.Node]event.VisibilityTuple)
	m.firstPass = true
}

func (m *Manager) scheduleFrame() {
	m.rafID = m.doc.Scheduler().RequestAnimationFrame(m.frame)
}

func (m *Manager) frame(now int64) {
	if m.stopped {
		return
	}
	m.scheduleFrame()

	if m.cfg.RAFThrottle > 0 && m.lastRun != 0 && now-m.lastRun < m.cfg.RAFThrottle {
		return
	}
	m.lastRun = now

	if m.frozen || m.locked {
		return
	}
	if len(m.observed) == 0 {
		m.firstPass = false
		return
	}

	elements := make([]*dom.Node, 0, len(m.observed))
	for el := range m.observed {
		elements = append(elements, el)
	}

	changed := false
	next := Evaluate(elements, m.prev, m.doc, m.cfg.Evaluator)
	for el, entry := range next {
		if !entry.Changed(m.cfg.Evaluator.Sensitivity) {
			continue
		}
		id := m.cfg.GetID(el)
		if id <= 0 {
			continue
		}
		// Last writer wins per element.
		m.buffer[el] = event.VisibilityTuple{
			ID: id, IsVisible: entry.IsVisible, Ratio: entry.Ratio,
		}
		changed = true
	}
	m.prev = next

	if m.firstPass {
		// The initial pass only establishes the baseline.
		m.firstPass = false
		m.buffer = make(map[*dom.Node]event.VisibilityTuple)
		return
	}

	if len(m.buffer) == 0 {
		return
	}

	switch m.cfg.Mode {
	case FlushDebounce:
		// The timer restarts on fresh changes only; quiet frames let
		// it run out.
		if changed {
			sched := m.doc.Scheduler()
			if m.debounceID != 0 {
				sched.ClearTimeout(m.debounceID)
			}
			m.debounceID = sched.SetTimeout(func() {
				m.debounceID = 0
				m.flush(m.doc.Scheduler().NowMillis())
			}, m.cfg.DebounceMS)
		}
	case FlushThrottle:
		if m.lastEmit == 0 || now-m.lastEmit >= m.cfg.ThrottleMS {
			m.flush(now)
		}
		// Otherwise skip; a later frame reconsiders the buffer.
	default:
		m.flush(now)
	}
}

func (m *Manager) flush(now int64) {
	if len(m.buffer) == 0 {
		return
	}
	tuples := make([]event.VisibilityTuple, 0, len(m.buffer))
	for _, t := range m.buffer {
		tuples = append(tuples, t)
	}
	sort.Slice(tuples, func(i, j int) bool { return tuples[i].ID < tuples[j].ID })
	m.buffer = make(map[*dom.Node]event.VisibilityTuple)
	m.lastEmit = now

	// The checkout counter is fed first so the emitted event's own
	// checkout check sees the batch it carries.
	if m.cfg.NotifyActivity != nil {
		m.cfg.NotifyActivity(len(tuples))
	}
	if m.cfg.Emit != nil {
		m.cfg.Emit(tuples)
	}
}
