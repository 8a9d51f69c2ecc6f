package dom

// MutationKind classifies a mutation record.
type MutationKind int

const (
	MutationChildList MutationKind = iota
	MutationAttributes
	MutationCharacterData
)

// MutationRecord describes one observed DOM change.
type MutationRecord struct {
	Kind        MutationKind
	Target      *Node
	Added       []*Node
	Removed     []*Node
	NextSibling *Node
	AttrName    string
	AttrRemoved bool
	OldValue    string
}

// MutationObserver delivers batched mutation records as microtasks,
// scoped to a subtree root. Parent chains stop at shadow roots, so an
// observer on the document body never sees shadow content — attach a
// second observer to the shadow root, as the recorder's shadow manager
// does.
type MutationObserver struct {
	doc      *Document
	root     *Node
	callback func([]MutationRecord)
	active   bool
}

// NewMutationObserver creates an observer. Call Observe to activate it.
func (d *Document) NewMutationObserver(cb func([]MutationRecord)) *MutationObserver {
	return &MutationObserver{doc: d, callback: cb}
}

// Observe starts observation of the subtree rooted at root.
func (m *MutationObserver) Observe(root *Node) {
	m.root = root
	m.active = true
	for _, o := range m.doc.observers {
		if o == m {
			return
		}
	}
	m.doc.observers = append(m.doc.observers, m)
}

// Disconnect stops observation. Pending undelivered records are dropped.
func (m *MutationObserver) Disconnect() {
	m.active = false
	for i, o := range m.doc.observers {
		if o == m {
			m.doc.observers = append(m.doc.observers[:i], m.doc.observers[i+1:]...)
			return
		}
	}
}

func (d *Document) queueMutation(rec MutationRecord) {
	if len(d.observers) == 0 {
		return
	}
	d.pendingMutations = append(d.pendingMutations, rec)
	if !d.deliveryQueued {
		d.deliveryQueued = true
		d.sched.QueueMicrotask(d.deliverMutations)
	}
}

func (d *Document) deliverMutations() {
	d.deliveryQueued = false
	pending := d.pendingMutations
	d.pendingMutations = nil

	for _, obs := range d.observers {
		if !obs.active {
			continue
		}
		var scoped []MutationRecord
		for _, rec := range pending {
			if obs.inScope(rec.Target) {
				scoped = append(scoped, rec)
			}
		}
		if len(scoped) > 0 {
			obs.callback(scoped)
		}
	}
}

func (m *MutationObserver) inScope(target *Node) bool {
	if m.root == nil {
		return true
	}
	return m.root.Contains(target)
}
