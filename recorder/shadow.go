package recorder

import (
	"github.com/Appsurify/rrweb/dom"
)

// shadowDomManager attaches a mutation buffer to every shadow root
// encountered — both those present at snapshot time (via the
// serializer's OnSerialize callback) and those attached later (via the
// document's attach-shadow hook).
type shadowDomManager struct {
	r        *recording
	buffers  map[*dom.Node]*mutationBuffer
	restores []func()
}

func newShadowDomManager(r *recording) *shadowDomManager {
	return &shadowDomManager{r: r, buffers: make(map[*dom.Node]*mutationBuffer)}
}

func (sd *shadowDomManager) install(doc *dom.Document) {
	sd.restores = append(sd.restores, doc.OnAttachShadow(func(host *dom.Node) {
		sd.ObserveHost(host)
	}))
}

// ObserveHost starts observing the host's shadow root. Idempotent.
func (sd *shadowDomManager) ObserveHost(host *dom.Node) {
	root := host.ShadowRoot()
	if root == nil {
		return
	}
	if _, ok := sd.buffers[root]; ok {
		return
	}
	buf := newMutationBuffer(sd.r, host.Document(), root)
	sd.buffers[root] = buf
	sd.r.buffers = append(sd.r.buffers, buf)
}

func (sd *shadowDomManager) uninstall() {
	for _, restore := range sd.restores {
		restore()
	}
	sd.restores = nil
	for _, buf := range sd.buffers {
		buf.Disconnect()
	}
	sd.buffers = make(map[*dom.Node]*mutationBuffer)
}
