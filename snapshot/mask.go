package snapshot

import (
	"strings"

	"github.com/Appsurify/rrweb/dom"
)

// maskChar is the non-reversible surrogate. Masked output preserves
// length so layout on replay matches the original.
const maskChar = "*"

func (s *Serializer) isBlocked(el *dom.Node) bool {
	if s.opts.BlockClass != "" && dom.HasClass(el, s.opts.BlockClass) {
		return true
	}
	if s.opts.BlockSelector != "" && dom.MatchesSelector(el, s.opts.BlockSelector) {
		return true
	}
	return false
}

func (s *Serializer) isIgnored(el *dom.Node) bool {
	if s.opts.IgnoreClass != "" && dom.HasClass(el, s.opts.IgnoreClass) {
		return true
	}
	if s.opts.IgnoreSelector != "" && dom.MatchesSelector(el, s.opts.IgnoreSelector) {
		return true
	}
	return false
}

func (s *Serializer) matchesMaskText(el *dom.Node) bool {
	if el == nil || el.Type() != dom.ElementNode {
		return false
	}
	if s.opts.MaskTextClass != "" && dom.HasClass(el, s.opts.MaskTextClass) {
		return true
	}
	if s.opts.MaskTextSelector != "" && dom.MatchesSelector(el, s.opts.MaskTextSelector) {
		return true
	}
	return false
}

func (s *Serializer) maskText(text string, el *dom.Node) string {
	if s.opts.MaskTextFn != nil {
		return s.opts.MaskTextFn(text, el)
	}
	return maskValue(text)
}

// shouldMaskInput decides per spec §4.2: the type or tag is listed in
// MaskInputOptions, or MaskAllInputs is set. Password inputs are always
// masked, whatever the options say. A password that was retyped after
// its element's type attribute changed stays masked via the
// data-rr-is-password marker.
func (s *Serializer) shouldMaskInput(tag, typ string, el *dom.Node) bool {
	if s.opts.MaskAllInputs {
		return true
	}
	if typ == "password" {
		return true
	}
	if _, marked := el.GetAttribute("data-rr-is-password"); marked {
		return true
	}
	if s.opts.MaskInputOptions == nil {
		return false
	}
	if typ != "" && s.opts.MaskInputOptions[typ] {
		return true
	}
	return s.opts.MaskInputOptions[tag]
}

// ShouldMaskInputValue is the policy check shared with the input
// observer (incremental events use the same decision as snapshots).
func (s *Serializer) ShouldMaskInputValue(el *dom.Node) bool {
	typ, _ := el.GetAttribute("type")
	return s.shouldMaskInput(el.Tag(), strings.ToLower(typ), el)
}

func (s *Serializer) maskInput(value string, el *dom.Node) string {
	if s.opts.MaskInputFn != nil {
		return s.opts.MaskInputFn(value, el)
	}
	return maskValue(value)
}

// MaskInputValue masks per the serializer's input policy.
func (s *Serializer) MaskInputValue(value string, el *dom.Node) string {
	return s.maskInput(value, el)
}

func maskValue(v string) string {
	return strings.Repeat(maskChar, len([]rune(v)))
}
