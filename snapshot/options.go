package snapshot

import (
	"regexp"

	"github.com/Appsurify/rrweb/dom"
)

// SlimDOMOptions prune scripts, comments, and common head noise from
// serialization.
type SlimDOMOptions struct {
	Script               bool
	Comment              bool
	HeadFavicon          bool
	HeadWhitespace       bool
	HeadMetaSocial       bool
	HeadMetaRobots       bool
	HeadMetaHTTPEquiv    bool
	HeadMetaVerification bool
	// The following are only pruned at the 'all' level.
	HeadMetaAuthorship   bool
	HeadMetaDescKeywords bool
	HeadTitleMutations   bool
}

// SlimDOMBasic returns the pruning set enabled by slimDOM: true.
func SlimDOMBasic() SlimDOMOptions {
	return SlimDOMOptions{
		Script:               true,
		Comment:              true,
		HeadFavicon:          true,
		HeadWhitespace:       true,
		HeadMetaSocial:       true,
		HeadMetaRobots:       true,
		HeadMetaHTTPEquiv:    true,
		HeadMetaVerification: true,
	}
}

// SlimDOMAll returns the pruning set enabled by slimDOM: 'all'.
func SlimDOMAll() SlimDOMOptions {
	o := SlimDOMBasic()
	o.HeadMetaAuthorship = true
	o.HeadMetaDescKeywords = true
	o.HeadTitleMutations = true
	return o
}

// DataURLOptions control canvas/image bitmap serialization.
type DataURLOptions struct {
	Type    string  // e.g. "image/webp"
	Quality float64 // 0..1
}

// Options configure one serializer. Zero value serializes everything
// with no pruning; only password input values are masked.
type Options struct {
	BlockClass    string
	BlockSelector string

	IgnoreClass    string
	IgnoreSelector string

	ExcludeAttribute *regexp.Regexp

	MaskTextClass    string
	MaskTextSelector string
	MaskTextFn       func(text string, el *dom.Node) string

	MaskAllInputs    bool
	MaskInputOptions map[string]bool // keyed by input type or tag
	MaskInputFn      func(value string, el *dom.Node) string

	SlimDOM SlimDOMOptions

	InlineStylesheet bool
	InlineImages     bool
	RecordCanvas     bool
	DataURLOptions   DataURLOptions

	KeepIframeSrcFn func(url string) bool

	// Visibility/interactivity classification at serialization time.
	// Wired by the recorder to its visibility evaluator and listener
	// registry; nil means not-visible / not-interactive.
	IsVisible     func(el *dom.Node) (visible bool, ratio float64)
	IsInteractive func(n *dom.Node) bool

	// OnSerialize is invoked for every serialized live node.
	OnSerialize func(n *dom.Node, sn *Node)
	// OnIframeLoad is invoked when a same-origin iframe's document was
	// serialized inline.
	OnIframeLoad func(el *dom.Node, root *Node)
	// OnStylesheetLoad is invoked for <link rel=stylesheet> elements
	// whose rules were not yet available at serialization time.
	OnStylesheetLoad func(el *dom.Node, sheet *dom.StyleSheet)
}
