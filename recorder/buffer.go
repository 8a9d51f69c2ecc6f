package recorder

import (
	"github.com/Appsurify/rrweb/dom"
	"github.com/Appsurify/rrweb/event"
)

// mutationBuffer coalesces one scope's DOM mutations (a document or a
// shadow root) into single mutation events. Observer delivery is
// per-microtask, so each delivery is one frame's worth of records.
//
// locked defers emission during a full snapshot; frozen defers it while
// the recorder is paused. In both states records keep accumulating and
// the next unlock/unfreeze flushes them as one event.
type mutationBuffer struct {
	r     *recording
	doc   *dom.Document
	scope *dom.Node
	obs   *dom.MutationObserver

	locked bool
	frozen bool

	added    map[*dom.Node]struct{}
	addOrder []*dom.Node
	removed  []removedEntry
	texts    map[*dom.Node]struct{}
	attrs    map[*dom.Node]map[string]struct{}
}

type removedEntry struct {
	parent *dom.Node
	node   *dom.Node
}

func newMutationBuffer(r *recording, doc *dom.Document, scope *dom.Node) *mutationBuffer {
	b := &mutationBuffer{r: r, doc: doc, scope: scope}
	b.reset()
	b.obs = doc.NewMutationObserver(b.onRecords)
	b.obs.Observe(scope)
	return b
}

func (b *mutationBuffer) reset() {
	b.added = make(map[*dom.Node]struct{})
	b.addOrder = nil
	b.removed = nil
	b.texts = make(map[*dom.Node]struct{})
	b.attrs = make(map[*dom.Node]map[string]struct{})
}

// Lock defers emission; records continue to accumulate.
func (b *mutationBuffer) Lock() { b.locked = true }

// Unlock flushes everything accumulated while locked as one event.
func (b *mutationBuffer) Unlock() {
	b.locked = false
	b.flush()
}

// Freeze pauses emission until Unfreeze.
func (b *mutationBuffer) Freeze() { b.frozen = true }

// Frozen reports the freeze state.
func (b *mutationBuffer) Frozen() bool { return b.frozen }

// Unfreeze resumes and flushes the coalesced backlog as one event.
func (b *mutationBuffer) Unfreeze() {
	b.frozen = false
	b.flush()
}

// Disconnect stops observation; pending records are dropped.
func (b *mutationBuffer) Disconnect() {
	b.obs.Disconnect()
}

func (b *mutationBuffer) onRecords(records []dom.MutationRecord) {
	for _, rec := range records {
		b.consume(rec)
	}
	if b.locked || b.frozen {
		return
	}
	b.flush()
}

func (b *mutationBuffer) consume(rec dom.MutationRecord) {
	switch rec.Kind {
	case dom.MutationChildList:
		for _, added := range rec.Added {
			// Added and removed within one frame cancels out.
			if b.dropPendingRemove(added) {
				continue
			}
			if _, dup := b.added[added]; !dup {
				b.added[added] = struct{}{}
				b.addOrder = append(b.addOrder, added)
			}
		}
		for _, removed := range rec.Removed {
			if _, wasAdded := b.added[removed]; wasAdded {
				b.dropPendingAdd(removed)
				continue
			}
			b.removed = append(b.removed, removedEntry{parent: rec.Target, node: removed})
		}
	case dom.MutationCharacterData:
		b.texts[rec.Target] = struct{}{}
	case dom.MutationAttributes:
		set := b.attrs[rec.Target]
		if set == nil {
			set = make(map[string]struct{})
			b.attrs[rec.Target] = set
		}
		set[rec.AttrName] = struct{}{}
	}
}

func (b *mutationBuffer) dropPendingAdd(n *dom.Node) {
	delete(b.added, n)
	for i, a := range b.addOrder {
		if a == n {
			b.addOrder = append(b.addOrder[:i], b.addOrder[i+1:]...)
			break
		}
	}
	delete(b.texts, n)
	delete(b.attrs, n)
}

func (b *mutationBuffer) dropPendingRemove(n *dom.Node) bool {
	for i, e := range b.removed {
		if e.node == n {
			b.removed = append(b.removed[:i], b.removed[i+1:]...)
			return true
		}
	}
	return false
}

// flush turns the accumulated records into one MutationData and emits
// it. Values are read from the live tree at flush time, so the last
// write within the frame wins per key.
func (b *mutationBuffer) flush() {
	if len(b.addOrder) == 0 && len(b.removed) == 0 &&
		len(b.texts) == 0 && len(b.attrs) == 0 {
		return
	}

	mirror := b.r.mirror
	data := &event.MutationData{
		Texts:      []event.TextMutation{},
		Attributes: []event.AttributeMutation{},
		Removes:    []event.RemovedNode{},
		Adds:       []event.AddedNode{},
	}

	for _, e := range b.removed {
		id := mirror.GetID(e.node)
		if id <= 0 {
			continue // never serialized; nothing to remove on replay
		}
		parent, isShadow := resolveMutationTarget(e.parent)
		parentID := mirror.GetID(parent)
		if parentID <= 0 {
			continue
		}
		data.Removes = append(data.Removes, event.RemovedNode{
			ParentID: parentID, ID: id, IsShadow: isShadow,
		})
		mirror.RemoveNodeFromMap(e.node)
	}

	for _, n := range b.addOrder {
		if !b.topLevelAdd(n) {
			continue // emitted nested inside an added ancestor
		}
		if !b.stillAttached(n) {
			continue
		}
		if b.r.serializer.SlimExcludesNode(n) {
			continue
		}
		parent, _ := resolveMutationTarget(parentScope(n))
		parentID := mirror.GetID(parent)
		if parentID <= 0 {
			continue
		}
		sn := b.r.serializer.SerializeNode(n)
		if sn == nil {
			continue
		}
		var nextID *int
		if next := n.NextSibling(); next != nil {
			if nid := mirror.GetID(next); nid > 0 {
				nextID = &nid
			}
		}
		data.Adds = append(data.Adds, event.AddedNode{
			ParentID: parentID, NextID: nextID, Node: sn,
		})
		b.r.afterNodeAdded(n)
	}

	for n := range b.texts {
		id := mirror.GetID(n)
		if id <= 0 || !mirror.Has(id) {
			continue // unknown, or removed within this frame
		}
		if _, wasAdded := b.added[n]; wasAdded {
			continue
		}
		if p := n.Parent(); p != nil && p.Tag() == "title" && !b.r.serializer.SlimKeepsTitleMutations() {
			continue
		}
		value := b.textValue(n)
		data.Texts = append(data.Texts, event.TextMutation{ID: id, Value: &value})
	}

	for n, names := range b.attrs {
		id := mirror.GetID(n)
		if id <= 0 || !mirror.Has(id) {
			continue // unknown, or removed within this frame
		}
		if _, wasAdded := b.added[n]; wasAdded {
			continue
		}
		attrs := make(map[string]*string, len(names))
		for name := range names {
			if v, ok := n.GetAttribute(name); ok {
				val := b.attrValue(n, name, v)
				attrs[name] = &val
			} else {
				attrs[name] = nil
			}
		}
		data.Attributes = append(data.Attributes, event.AttributeMutation{ID: id, Attributes: attrs})
	}

	b.reset()

	if len(data.Adds) == 0 && len(data.Removes) == 0 &&
		len(data.Texts) == 0 && len(data.Attributes) == 0 {
		return
	}
	sortAttributeMutations(data.Attributes)
	sortTextMutations(data.Texts)

	if b.r.opts.Hooks.Mutation != nil {
		b.r.opts.Hooks.Mutation(data)
	}
	b.r.emitIncremental(data)
}

// topLevelAdd reports whether no ancestor of n is itself pending
// addition; nested nodes ride along inside the ancestor's subtree.
func (b *mutationBuffer) topLevelAdd(n *dom.Node) bool {
	for p := n.Parent(); p != nil; p = p.Parent() {
		if _, ok := b.added[p]; ok {
			return false
		}
	}
	return true
}

func (b *mutationBuffer) stillAttached(n *dom.Node) bool {
	top := n
	for top.Parent() != nil {
		top = top.Parent()
	}
	if top.Type() == dom.DocumentNode {
		return true
	}
	// Shadow content: the chain ends at the shadow root, whose host
	// must itself be attached.
	if top.Type() == dom.ShadowRootNode && top.Host() != nil {
		return b.stillAttached(top.Host())
	}
	return false
}

func (b *mutationBuffer) textValue(n *dom.Node) string {
	parent := n.Parent()
	if b.r.maskTextApplies(parent) {
		return b.r.maskText(n.Text(), parent)
	}
	return n.Text()
}

func (b *mutationBuffer) attrValue(n *dom.Node, name, value string) string {
	if name == "value" && b.r.serializer.ShouldMaskInputValue(n) {
		return b.r.serializer.MaskInputValue(value, n)
	}
	return value
}

// resolveMutationTarget maps shadow-root targets to their host (the
// host carries the serialized id for shadow children).
func resolveMutationTarget(n *dom.Node) (target *dom.Node, isShadow bool) {
	if n != nil && n.Type() == dom.ShadowRootNode && n.Host() != nil {
		return n.Host(), true
	}
	return n, false
}

func parentScope(n *dom.Node) *dom.Node {
	if p := n.Parent(); p != nil {
		return p
	}
	return nil
}

func sortAttributeMutations(muts []event.AttributeMutation) {
	for i := 1; i < len(muts); i++ {
		for j := i; j > 0 && muts[j].ID < muts[j-1].ID; j-- {
			muts[j], muts[j-1] = muts[j-1], muts[j]
		}
	}
}

func sortTextMutations(muts []event.TextMutation) {
	for i := 1; i < len(muts); i++ {
		for j := i; j > 0 && muts[j].ID < muts[j-1].ID; j-- {
			muts[j], muts[j-1] = muts[j-1], muts[j]
		}
	}
}
