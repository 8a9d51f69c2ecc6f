package snapshot

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/Appsurify/rrweb/dom"
)

// splitMarker joins cssText chunks aligned with a <style> element's
// text children. The replayer recognizes the literal marker.
const splitMarker = "/* rr_split */"

// StringifySheet renders a sheet's rules as one cssText string with
// the browser workarounds applied: @import rules are recursively
// inlined (or URL-rewritten against the importer's href when the
// imported sheet is unavailable), Chrome's dropped
// -webkit-background-clip is re-inserted, and Safari's unescaped
// colons in attribute selectors are escaped.
func StringifySheet(sheet *dom.StyleSheet) string {
	var parts []string
	for i, rule := range sheet.Rules() {
		parts = append(parts, stringifyRule(sheet, rule, i))
	}
	css := strings.Join(parts, "")
	css = fixBackgroundClip(css)
	css = fixSafariColons(css)
	return absoluteURLs(css, sheet.Href())
}

func stringifyRule(sheet *dom.StyleSheet, rule string, index int) string {
	trimmed := strings.TrimSpace(rule)
	if strings.HasPrefix(trimmed, "@import") {
		if imported := sheet.ImportAt(index); imported != nil && imported.Loaded() {
			return StringifySheet(imported)
		}
		return rewriteImportURL(trimmed, sheet.Href())
	}
	return rule
}

var importURLRe = regexp.MustCompile(`@import\s+(?:url\(\s*['"]?([^'")]+)['"]?\s*\)|['"]([^'"]+)['"])`)

func rewriteImportURL(rule, baseHref string) string {
	return importURLRe.ReplaceAllStringFunc(rule, func(m string) string {
		sub := importURLRe.FindStringSubmatch(m)
		raw := sub[1]
		if raw == "" {
			raw = sub[2]
		}
		return `@import url("` + absoluteURL(raw, baseHref) + `")`
	})
}

var cssURLRe = regexp.MustCompile(`url\(\s*['"]?([^'")]+)['"]?\s*\)`)

// absoluteURLs rewrites relative url() references against the sheet's
// href so the serialized cssText resolves from anywhere.
func absoluteURLs(css, baseHref string) string {
	if baseHref == "" {
		return css
	}
	return cssURLRe.ReplaceAllStringFunc(css, func(m string) string {
		sub := cssURLRe.FindStringSubmatch(m)
		raw := sub[1]
		if strings.HasPrefix(raw, "data:") || strings.HasPrefix(raw, "#") {
			return m
		}
		return `url("` + absoluteURL(raw, baseHref) + `")`
	})
}

func absoluteURL(raw, baseHref string) string {
	base, err := url.Parse(baseHref)
	if err != nil {
		return raw
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return base.ResolveReference(ref).String()
}

// fixBackgroundClip restores -webkit-background-clip: text, which
// Chrome drops when rules are read back from CSSStyleSheet.
func fixBackgroundClip(css string) string {
	if !strings.Contains(css, "background-clip: text") {
		return css
	}
	if strings.Contains(css, "-webkit-background-clip") {
		return css
	}
	return strings.ReplaceAll(css,
		"background-clip: text",
		"-webkit-background-clip: text; background-clip: text")
}

var safariColonRe = regexp.MustCompile(`(\[[\w-]+[^\\])(:[\w-]+\])`)

// fixSafariColons escapes unescaped colons inside attribute selectors,
// which Safari emits when stringifying rules.
func fixSafariColons(css string) string {
	return safariColonRe.ReplaceAllString(css, `$1\$2`)
}

// stringifySheetForElement renders a <style> element's sheet. When the
// element has several text children, the cssText is split into chunks
// aligned with those children and joined with the split marker, so the
// replayer can map chunks back onto text nodes.
func (s *Serializer) stringifySheetForElement(el *dom.Node, sheet *dom.StyleSheet) string {
	css := StringifySheet(sheet)

	var childTexts []string
	for _, k := range el.Children() {
		if k.Type() == dom.TextNode {
			childTexts = append(childTexts, k.Text())
		}
	}
	if len(childTexts) < 2 {
		return css
	}
	return strings.Join(splitCSSText(css, childTexts), splitMarker)
}

// splitCSSText cuts css into len(childTexts) chunks, sized in
// proportion to the corresponding child's character count, cutting
// only at rule boundaries so every chunk stays parseable.
func splitCSSText(css string, childTexts []string) []string {
	total := 0
	for _, t := range childTexts {
		total += len(t)
	}
	if total == 0 {
		return []string{css}
	}

	chunks := make([]string, 0, len(childTexts))
	rest := css
	for i := 0; i < len(childTexts)-1; i++ {
		target := len(css) * len(childTexts[i]) / total
		cut := ruleBoundaryAfter(rest, target)
		chunks = append(chunks, rest[:cut])
		rest = rest[cut:]
	}
	chunks = append(chunks, rest)
	return chunks
}

func ruleBoundaryAfter(css string, target int) int {
	if target >= len(css) {
		return len(css)
	}
	depth := 0
	for i := 0; i < len(css); i++ {
		switch css[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 && i+1 >= target {
				return i + 1
			}
		}
	}
	return len(css)
}
