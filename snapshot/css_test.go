package snapshot

import (
	"strings"
	"testing"

	"github.com/Appsurify/rrweb/dom"
)

func TestStringifySheetAbsoluteURLs(t *testing.T) {
	doc := dom.NewDocument(dom.DocumentOptions{Href: "https://example.com/"})
	sheet := doc.NewStyleSheet(`.a { background: url("img/x.png") }`)
	link := doc.CreateElement("link")
	link.AttachSheet(sheet)
	link.SetSheetHref("https://example.com/css/site.css")
	sheet.SetRules([]string{`.a { background: url("img/x.png") }`})

	css := StringifySheet(sheet)
	if !strings.Contains(css, `url("https://example.com/css/img/x.png")`) {
		t.Errorf("relative url not absolutized: %s", css)
	}
}

func TestStringifySheetImportRewrite(t *testing.T) {
	doc := dom.NewDocument(dom.DocumentOptions{})
	link := doc.CreateElement("link")
	link.SetSheetHref("https://example.com/css/site.css")
	link.CompleteLinkSheet([]string{`@import url("base.css");`, `.a { color: red }`})

	css := StringifySheet(link.Sheet())
	if !strings.Contains(css, `@import url("https://example.com/css/base.css")`) {
		t.Errorf("import url not rewritten: %s", css)
	}
}

func TestStringifySheetImportInlined(t *testing.T) {
	doc := dom.NewDocument(dom.DocumentOptions{})
	imported := doc.NewStyleSheet(`.b { color: blue }`)
	link := doc.CreateElement("link")
	link.SetSheetHref("https://example.com/site.css")
	link.CompleteLinkSheet([]string{`@import url("b.css");`})
	link.Sheet().SetImport(0, imported)

	css := StringifySheet(link.Sheet())
	if !strings.Contains(css, ".b { color: blue }") {
		t.Errorf("imported sheet not inlined: %s", css)
	}
}

func TestBackgroundClipWorkaround(t *testing.T) {
	got := fixBackgroundClip(".x { background-clip: text }")
	if !strings.Contains(got, "-webkit-background-clip: text") {
		t.Errorf("webkit prefix not restored: %s", got)
	}
	// Already prefixed: untouched.
	in := ".x { -webkit-background-clip: text; background-clip: text }"
	if fixBackgroundClip(in) != in {
		t.Error("already-prefixed css rewritten")
	}
}

func TestSafariColonEscape(t *testing.T) {
	got := fixSafariColons(`[data-foo:bar] { color: red }`)
	if !strings.Contains(got, `[data-foo\:bar]`) {
		t.Errorf("colon not escaped: %s", got)
	}
}

func TestSplitCSSTextAlignsWithChildren(t *testing.T) {
	css := ".a { color: red } .b { color: blue } .c { color: green }"
	chunks := splitCSSText(css, []string{".a { color: red } ", ".b { color: blue } .c { color: green }"})
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	if strings.Join(chunks, "") != css {
		t.Errorf("chunks do not reassemble: %q", chunks)
	}
	for i, c := range chunks {
		if strings.Count(c, "{") != strings.Count(c, "}") {
			t.Errorf("chunk %d cut inside a rule: %q", i, c)
		}
	}
}

func TestStyleElementSplitMarker(t *testing.T) {
	doc := parseDoc(t, `<!DOCTYPE html><html><head><style>.a { color: red }</style></head><body></body></html>`)
	style := dom.QuerySelectorAll(doc.Root(), "style")[0]
	// Simulate a second text chunk appended by the page.
	style.AppendChild(doc.CreateTextNode(".b { color: blue }"))
	style.Sheet().SetRules([]string{".a { color: red }", ".b { color: blue }"})

	_, root := serializeDoc(t, doc, Options{InlineStylesheet: true})
	sn := findElement(root, "style")
	v, ok := sn.Attr("_cssText")
	if !ok {
		t.Fatal("_cssText missing")
	}
	if !strings.Contains(v.(string), "/* rr_split */") {
		t.Errorf("split marker missing: %v", v)
	}
}
