package event

import "github.com/Appsurify/rrweb/snapshot"

// MetaData announces the page a stream belongs to. A valid stream
// begins with Meta immediately followed by FullSnapshot.
type MetaData struct {
	Href   string `json:"href"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Offset is the document scroll position at snapshot time.
type Offset struct {
	Top  float64 `json:"top"`
	Left float64 `json:"left"`
}

// FullSnapshotData carries the entire serialized tree. All subsequent
// incrementals are interpreted relative to the most recent one.
type FullSnapshotData struct {
	Node          *snapshot.Node `json:"node"`
	InitialOffset Offset         `json:"initialOffset"`
}

// CustomData is a host-injected event.
type CustomData struct {
	Tag     string `json:"tag"`
	Payload any    `json:"payload"`
}

// PluginData is an event produced by a plugin observer.
type PluginData struct {
	Plugin  string `json:"plugin"`
	Payload any    `json:"payload"`
}

// --- incremental payloads ---

// AddedNode is one node introduced by a mutation, serialized with its
// attachment point. NextID nil means "append as last child".
type AddedNode struct {
	ParentID int            `json:"parentId"`
	NextID   *int           `json:"nextId"`
	Node     *snapshot.Node `json:"node"`
}

// RemovedNode identifies a node detached from the tree. IsShadow marks
// removals inside a shadow root.
type RemovedNode struct {
	ParentID int  `json:"parentId"`
	ID       int  `json:"id"`
	IsShadow bool `json:"isShadow,omitempty"`
}

// TextMutation is a characterData change.
type TextMutation struct {
	ID    int     `json:"id"`
	Value *string `json:"value"`
}

// AttributeMutation carries the post-frame value of every attribute
// that changed on one element. A nil map value means "attribute removed".
type AttributeMutation struct {
	ID         int             `json:"id"`
	Attributes map[string]*string `json:"attributes"`
}

// MutationData is the coalesced DOM delta for one frame.
type MutationData struct {
	Texts          []TextMutation      `json:"texts"`
	Attributes     []AttributeMutation `json:"attributes"`
	Removes        []RemovedNode       `json:"removes"`
	Adds           []AddedNode         `json:"adds"`
	IsAttachIframe bool                `json:"isAttachIframe,omitempty"`
}

func (MutationData) IncrementalSource() Source { return SourceMutation }

// MousePosition is one sampled pointer location.
type MousePosition struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	ID         int     `json:"id"`
	TimeOffset int64   `json:"timeOffset"`
}

// MouseMoveData batches pointer positions. Touch batches use
// SourceTouchMove instead via the Touch flag.
type MouseMoveData struct {
	Positions []MousePosition `json:"positions"`
	Touch     bool            `json:"-"`
}

func (d MouseMoveData) IncrementalSource() Source {
	if d.Touch {
		return SourceTouchMove
	}
	return SourceMouseMove
}

// MouseInteractionKind enumerates discrete pointer interactions.
// Values are normative wire constants.
type MouseInteractionKind int

const (
	MouseUp MouseInteractionKind = iota // 0
	MouseDown
	Click
	ContextMenu
	DblClick
	Focus
	Blur
	TouchStart
	touchMoveDeparted // 8 — historical slot, never emitted
	TouchEnd
	TouchCancel
)

// MouseInteractionData is a single discrete pointer interaction.
type MouseInteractionData struct {
	Kind MouseInteractionKind `json:"type"`
	ID   int                  `json:"id"`
	X    float64              `json:"x"`
	Y    float64              `json:"y"`
}

func (MouseInteractionData) IncrementalSource() Source { return SourceMouseInteraction }

// ScrollData is a scroll position change for the element (or document
// root) with the given id.
type ScrollData struct {
	ID int     `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

func (ScrollData) IncrementalSource() Source { return SourceScroll }

// ViewportResizeData is the new viewport geometry.
type ViewportResizeData struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (ViewportResizeData) IncrementalSource() Source { return SourceViewportResize }

// InputData is a form-control value change, already masked per policy.
type InputData struct {
	ID            int    `json:"id"`
	Text          string `json:"text"`
	IsChecked     bool   `json:"isChecked"`
	UserTriggered bool   `json:"userTriggered,omitempty"`
}

func (InputData) IncrementalSource() Source { return SourceInput }

// MediaKind enumerates media interactions. Values are wire constants.
type MediaKind int

const (
	MediaPlay MediaKind = iota
	MediaPause
	MediaSeeked
	MediaVolumeChange
)

// MediaInteractionData describes a playback state change.
type MediaInteractionData struct {
	Kind        MediaKind `json:"type"`
	ID          int       `json:"id"`
	CurrentTime float64   `json:"currentTime,omitempty"`
	Volume      float64   `json:"volume,omitempty"`
	Muted       bool      `json:"muted,omitempty"`
}

func (MediaInteractionData) IncrementalSource() Source { return SourceMediaInteraction }

// StyleSheetAddRule is one rule inserted into a stylesheet.
type StyleSheetAddRule struct {
	Rule  string `json:"rule"`
	Index int    `json:"index"`
}

// StyleSheetDeleteRule is one rule removed from a stylesheet.
type StyleSheetDeleteRule struct {
	Index int `json:"index"`
}

// StyleSheetRuleData reports insertRule/deleteRule on a sheet owned by
// the element with ID, or on the constructed sheet with StyleID.
type StyleSheetRuleData struct {
	ID      int                    `json:"id,omitempty"`
	StyleID int                    `json:"styleId,omitempty"`
	Adds    []StyleSheetAddRule    `json:"adds,omitempty"`
	Removes []StyleSheetDeleteRule `json:"removes,omitempty"`
}

func (StyleSheetRuleData) IncrementalSource() Source { return SourceStyleSheetRule }

// StyleSetProperty is a CSSStyleDeclaration.setProperty call.
type StyleSetProperty struct {
	Property string `json:"property"`
	Value    string `json:"value"`
	Priority string `json:"priority,omitempty"`
}

// StyleRemoveProperty is a CSSStyleDeclaration.removeProperty call.
type StyleRemoveProperty struct {
	Property string `json:"property"`
}

// StyleDeclarationData reports direct style-declaration writes.
type StyleDeclarationData struct {
	ID      int                  `json:"id,omitempty"`
	StyleID int                  `json:"styleId,omitempty"`
	Set     *StyleSetProperty    `json:"set,omitempty"`
	Remove  *StyleRemoveProperty `json:"remove,omitempty"`
	Index   []int                `json:"index"`
}

func (StyleDeclarationData) IncrementalSource() Source { return SourceStyleDeclaration }

// AdoptedStyleSheetData re-emits the full adopted list of a document
// or shadow root whenever it changes.
type AdoptedStyleSheetData struct {
	ID       int                  `json:"id"`
	Styles   []AdoptedStyleSheet  `json:"styles,omitempty"`
	StyleIDs []int                `json:"styleIds"`
}

// AdoptedStyleSheet is the rule text of one constructed sheet, sent the
// first time the sheet is seen.
type AdoptedStyleSheet struct {
	StyleID int      `json:"styleId"`
	Rules   []string `json:"rules"`
}

func (AdoptedStyleSheetData) IncrementalSource() Source { return SourceAdoptedStyleSheet }

// CanvasCommand is one captured draw call.
type CanvasCommand struct {
	Property string `json:"property"`
	Args     []any  `json:"args"`
	Setter   bool   `json:"setter,omitempty"`
}

// CanvasContext identifies which canvas API produced the commands.
type CanvasContext int

const (
	CanvasContext2D CanvasContext = iota
	CanvasContextWebGL
	CanvasContextWebGL2
)

// CanvasMutationData carries either captured draw commands or a full
// data-URL snapshot of the canvas, per sampling configuration.
type CanvasMutationData struct {
	ID       int             `json:"id"`
	Context  CanvasContext   `json:"type"`
	Commands []CanvasCommand `json:"commands,omitempty"`
	DataURL  string          `json:"dataURL,omitempty"`
}

func (CanvasMutationData) IncrementalSource() Source { return SourceCanvasMutation }

// FontData describes a font face that finished loading.
type FontData struct {
	Family      string            `json:"family"`
	FontSource  string            `json:"fontSource"`
	Buffer      bool              `json:"buffer"`
	Descriptors map[string]string `json:"descriptors,omitempty"`
}

func (FontData) IncrementalSource() Source { return SourceFont }

// SelectionRange is one selection span addressed by node ids.
type SelectionRange struct {
	Start       int `json:"start"`
	StartOffset int `json:"startOffset"`
	End         int `json:"end"`
	EndOffset   int `json:"endOffset"`
}

// SelectionData reports a selectionchange.
type SelectionData struct {
	Ranges []SelectionRange `json:"ranges"`
}

func (SelectionData) IncrementalSource() Source { return SourceSelection }

// CustomElementDefine records a customElements.define call.
type CustomElementDefine struct {
	Name string `json:"name"`
}

// CustomElementData reports custom element registration.
type CustomElementData struct {
	Define *CustomElementDefine `json:"define,omitempty"`
}

func (CustomElementData) IncrementalSource() Source { return SourceCustomElement }

// VisibilityTuple is one element's visibility state change.
type VisibilityTuple struct {
	ID        int     `json:"id"`
	IsVisible bool    `json:"isVisible"`
	Ratio     float64 `json:"ratio"`
}

// VisibilityMutationData batches all visibility changes of one frame.
type VisibilityMutationData struct {
	Mutations []VisibilityTuple `json:"mutations"`
}

func (VisibilityMutationData) IncrementalSource() Source { return SourceVisibilityMutation }
