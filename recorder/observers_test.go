package recorder

import (
	"strings"
	"testing"

	"github.com/Appsurify/rrweb/dom"
	"github.com/Appsurify/rrweb/event"
)

func incrementalsOf[T event.IncrementalData](s *stream) []T {
	var out []T
	for _, en := range s.entries {
		if en.e.Type != event.IncrementalSnapshot {
			continue
		}
		if d, ok := en.e.Data.(T); ok {
			out = append(out, d)
		}
	}
	return out
}

func TestInputMasking(t *testing.T) {
	doc := parseDoc(t, `<!DOCTYPE html><html><body><input type="password" id="p"></body></html>`)
	s, handle := startRecording(t, doc, Options{})
	defer handle.Stop()

	input := dom.QuerySelectorAll(doc.Root(), "#p")[0]
	input.SetValue("secret", true)
	doc.Scheduler().Advance(200) // sampling "last" waits for quiescence

	inputs := incrementalsOf[*event.InputData](s)
	if len(inputs) != 1 {
		t.Fatalf("input events = %d, want 1", len(inputs))
	}
	if inputs[0].Text != "******" {
		t.Errorf("masked input = %q, want ******", inputs[0].Text)
	}
	if inputs[0].ID != handle.Mirror().GetID(input) {
		t.Errorf("input id = %d", inputs[0].ID)
	}

	// The raw value never appears anywhere in the stream.
	for _, en := range s.entries {
		raw, err := en.e.MarshalJSON()
		if err != nil {
			t.Fatal(err)
		}
		if strings.Contains(string(raw), "secret") {
			t.Fatalf("unmasked value leaked: %s", raw)
		}
	}
}

func TestInputSamplingLastCoalescesBurst(t *testing.T) {
	doc := parseDoc(t, `<!DOCTYPE html><html><body><input id="i" type="text"></body></html>`)
	s, handle := startRecording(t, doc, Options{})
	defer handle.Stop()

	input := dom.QuerySelectorAll(doc.Root(), "#i")[0]
	for _, v := range []string{"h", "he", "hel", "hell", "hello"} {
		input.SetValue(v, true)
		doc.Scheduler().Advance(20)
	}
	doc.Scheduler().Advance(300)

	inputs := incrementalsOf[*event.InputData](s)
	if len(inputs) != 1 {
		t.Fatalf("input events = %d, want 1 (last per burst)", len(inputs))
	}
	if inputs[0].Text != "hello" {
		t.Errorf("final value = %q, want hello", inputs[0].Text)
	}
}

func TestInputSamplingAll(t *testing.T) {
	doc := parseDoc(t, `<!DOCTYPE html><html><body><input id="i" type="text"></body></html>`)
	s, handle := startRecording(t, doc, Options{Sampling: Sampling{Input: "all"}})
	defer handle.Stop()

	input := dom.QuerySelectorAll(doc.Root(), "#i")[0]
	input.SetValue("a", true)
	input.SetValue("ab", true)

	inputs := incrementalsOf[*event.InputData](s)
	if len(inputs) != 2 {
		t.Fatalf("input events = %d, want 2", len(inputs))
	}
}

func TestUserTriggeredOnInput(t *testing.T) {
	doc := parseDoc(t, `<!DOCTYPE html><html><body><input id="i" type="text"></body></html>`)
	s, handle := startRecording(t, doc, Options{
		Sampling: Sampling{Input: "all"}, UserTriggeredOnInput: true,
	})
	defer handle.Stop()

	input := dom.QuerySelectorAll(doc.Root(), "#i")[0]
	input.SetValue("a", true)
	input.SetValue("ab", false)

	inputs := incrementalsOf[*event.InputData](s)
	if !inputs[0].UserTriggered || inputs[1].UserTriggered {
		t.Errorf("userTriggered flags = %v/%v, want true/false",
			inputs[0].UserTriggered, inputs[1].UserTriggered)
	}
}

func TestMouseMoveBatching(t *testing.T) {
	doc := parseDoc(t, `<!DOCTYPE html><html><body><div></div></body></html>`)
	s, handle := startRecording(t, doc, Options{})
	defer handle.Stop()

	div := dom.QuerySelectorAll(doc.Root(), "div")[0]
	doc.Dispatch(&dom.DOMEvent{Type: "mousemove", Target: div, X: 10, Y: 10})
	doc.Dispatch(&dom.DOMEvent{Type: "mousemove", Target: div, X: 20, Y: 20})
	doc.Scheduler().Advance(100)

	moves := incrementalsOf[*event.MouseMoveData](s)
	if len(moves) != 1 {
		t.Fatalf("mousemove batches = %d, want 1", len(moves))
	}
	if len(moves[0].Positions) != 2 {
		t.Fatalf("positions = %d, want 2", len(moves[0].Positions))
	}
	if moves[0].IncrementalSource() != event.SourceMouseMove {
		t.Errorf("source = %v, want MouseMove", moves[0].IncrementalSource())
	}
}

func TestTouchMoveSeparateSource(t *testing.T) {
	doc := parseDoc(t, `<!DOCTYPE html><html><body><div></div></body></html>`)
	s, handle := startRecording(t, doc, Options{})
	defer handle.Stop()

	div := dom.QuerySelectorAll(doc.Root(), "div")[0]
	doc.Dispatch(&dom.DOMEvent{Type: "touchmove", Target: div, X: 5, Y: 5})
	doc.Scheduler().Advance(100)

	moves := incrementalsOf[*event.MouseMoveData](s)
	if len(moves) != 1 || moves[0].IncrementalSource() != event.SourceTouchMove {
		t.Fatalf("touch batch = %+v", moves)
	}
}

func TestMouseInteraction(t *testing.T) {
	doc := parseDoc(t, `<!DOCTYPE html><html><body><button id="b">go</button></body></html>`)
	s, handle := startRecording(t, doc, Options{})
	defer handle.Stop()

	btn := dom.QuerySelectorAll(doc.Root(), "#b")[0]
	btn.Dispatch(&dom.DOMEvent{Type: "click", Target: btn, X: 3, Y: 4})

	clicks := incrementalsOf[*event.MouseInteractionData](s)
	if len(clicks) != 1 {
		t.Fatalf("interactions = %d, want 1", len(clicks))
	}
	if clicks[0].Kind != event.Click || clicks[0].ID != handle.Mirror().GetID(btn) {
		t.Errorf("click = %+v", clicks[0])
	}
}

func TestMouseInteractionSamplingDisables(t *testing.T) {
	doc := parseDoc(t, `<!DOCTYPE html><html><body><button id="b">go</button></body></html>`)
	s, handle := startRecording(t, doc, Options{
		Sampling: Sampling{MouseInteraction: map[string]bool{"Click": false}},
	})
	defer handle.Stop()

	btn := dom.QuerySelectorAll(doc.Root(), "#b")[0]
	btn.Dispatch(&dom.DOMEvent{Type: "click", Target: btn})
	btn.Dispatch(&dom.DOMEvent{Type: "mousedown", Target: btn})

	got := incrementalsOf[*event.MouseInteractionData](s)
	if len(got) != 1 || got[0].Kind != event.MouseDown {
		t.Fatalf("interactions = %+v, want only MouseDown", got)
	}
}

func TestBlockedTargetSuppressed(t *testing.T) {
	doc := parseDoc(t, `<!DOCTYPE html><html><body><div class="rr-block"><button id="b">x</button></div></body></html>`)
	s, handle := startRecording(t, doc, Options{BlockClass: "rr-block"})
	defer handle.Stop()

	btn := dom.QuerySelectorAll(doc.Root(), "#b")[0]
	btn.Dispatch(&dom.DOMEvent{Type: "click", Target: btn})

	if got := incrementalsOf[*event.MouseInteractionData](s); len(got) != 0 {
		t.Errorf("blocked interaction emitted: %+v", got)
	}
}

func TestScrollAndThrottle(t *testing.T) {
	doc := parseDoc(t, `<!DOCTYPE html><html><body></body></html>`)
	s, handle := startRecording(t, doc, Options{Sampling: Sampling{Scroll: 100}})
	defer handle.Stop()

	doc.SetScroll(0, 100)
	doc.SetScroll(0, 150) // inside throttle window
	doc.Scheduler().Advance(150)
	doc.SetScroll(0, 200)

	scrolls := incrementalsOf[*event.ScrollData](s)
	if len(scrolls) != 2 {
		t.Fatalf("scroll events = %d, want 2", len(scrolls))
	}
	if scrolls[0].Y != 100 || scrolls[1].Y != 200 {
		t.Errorf("scroll ys = %v/%v, want 100/200", scrolls[0].Y, scrolls[1].Y)
	}
}

func TestViewportResize(t *testing.T) {
	doc := parseDoc(t, `<!DOCTYPE html><html><body></body></html>`)
	s, handle := startRecording(t, doc, Options{})
	defer handle.Stop()

	doc.SetViewport(800, 600)

	got := incrementalsOf[*event.ViewportResizeData](s)
	if len(got) != 1 || got[0].Width != 800 || got[0].Height != 600 {
		t.Fatalf("resize = %+v", got)
	}
}

func TestMediaInteraction(t *testing.T) {
	doc := parseDoc(t, `<!DOCTYPE html><html><body><video id="v"></video></body></html>`)
	s, handle := startRecording(t, doc, Options{})
	defer handle.Stop()

	v := dom.QuerySelectorAll(doc.Root(), "#v")[0]
	v.Play()
	v.Seek(12.5)
	v.Pause()

	media := incrementalsOf[*event.MediaInteractionData](s)
	if len(media) != 3 {
		t.Fatalf("media events = %d, want 3", len(media))
	}
	if media[0].Kind != event.MediaPlay || media[1].Kind != event.MediaSeeked || media[2].Kind != event.MediaPause {
		t.Errorf("media kinds = %v %v %v", media[0].Kind, media[1].Kind, media[2].Kind)
	}
	if media[1].CurrentTime != 12.5 {
		t.Errorf("seeked currentTime = %v", media[1].CurrentTime)
	}
}

func TestSelection(t *testing.T) {
	doc := parseDoc(t, `<!DOCTYPE html><html><body><p id="p">words here</p></body></html>`)
	s, handle := startRecording(t, doc, Options{})
	defer handle.Stop()

	p := dom.QuerySelectorAll(doc.Root(), "#p")[0]
	text := p.Children()[0]
	doc.SetSelection(&dom.Selection{Start: text, StartOffset: 0, End: text, EndOffset: 5})

	sels := incrementalsOf[*event.SelectionData](s)
	if len(sels) != 1 || len(sels[0].Ranges) != 1 {
		t.Fatalf("selection events = %+v", sels)
	}
	r := sels[0].Ranges[0]
	if r.Start != handle.Mirror().GetID(text) || r.EndOffset != 5 {
		t.Errorf("range = %+v", r)
	}
}

func TestStyleSheetRuleObserver(t *testing.T) {
	doc := parseDoc(t, `<!DOCTYPE html><html><head><style>.a { color: red }</style></head><body></body></html>`)
	s, handle := startRecording(t, doc, Options{})
	defer handle.Stop()

	style := dom.QuerySelectorAll(doc.Root(), "style")[0]
	sheet := style.Sheet()
	if err := sheet.InsertRule(".b { color: blue }", 1); err != nil {
		t.Fatal(err)
	}
	if err := sheet.DeleteRule(0); err != nil {
		t.Fatal(err)
	}

	rules := incrementalsOf[*event.StyleSheetRuleData](s)
	if len(rules) != 2 {
		t.Fatalf("stylesheet rule events = %d, want 2", len(rules))
	}
	if len(rules[0].Adds) != 1 || rules[0].Adds[0].Rule != ".b { color: blue }" || rules[0].Adds[0].Index != 1 {
		t.Errorf("add = %+v", rules[0].Adds)
	}
	if len(rules[1].Removes) != 1 || rules[1].Removes[0].Index != 0 {
		t.Errorf("remove = %+v", rules[1].Removes)
	}
	if rules[0].ID != handle.Mirror().GetID(style) {
		t.Errorf("rule owner id = %d", rules[0].ID)
	}
}

func TestStyleDeclarationObserver(t *testing.T) {
	doc := parseDoc(t, `<!DOCTYPE html><html><body><div id="d"></div></body></html>`)
	s, handle := startRecording(t, doc, Options{
		IgnoreCSSAttributes: map[string]bool{"cursor": true},
	})
	defer handle.Stop()

	div := dom.QuerySelectorAll(doc.Root(), "#d")[0]
	div.Style().SetProperty("color", "red", "important")
	div.Style().SetProperty("cursor", "pointer", "") // ignored
	div.Style().RemoveProperty("color")

	decls := incrementalsOf[*event.StyleDeclarationData](s)
	if len(decls) != 2 {
		t.Fatalf("style declaration events = %d, want 2", len(decls))
	}
	if decls[0].Set == nil || decls[0].Set.Property != "color" || decls[0].Set.Priority != "important" {
		t.Errorf("set = %+v", decls[0].Set)
	}
	if decls[1].Remove == nil || decls[1].Remove.Property != "color" {
		t.Errorf("remove = %+v", decls[1].Remove)
	}
}

func TestAdoptedStyleSheets(t *testing.T) {
	doc := parseDoc(t, `<!DOCTYPE html><html><body></body></html>`)
	s, handle := startRecording(t, doc, Options{})
	defer handle.Stop()

	sheet := doc.NewStyleSheet(".x { color: red }")
	doc.SetAdoptedStyleSheets([]*dom.StyleSheet{sheet})

	adopted := incrementalsOf[*event.AdoptedStyleSheetData](s)
	if len(adopted) != 1 {
		t.Fatalf("adopted events = %d, want 1", len(adopted))
	}
	if len(adopted[0].StyleIDs) != 1 || len(adopted[0].Styles) != 1 {
		t.Fatalf("adopted = %+v", adopted[0])
	}
	if adopted[0].Styles[0].Rules[0] != ".x { color: red }" {
		t.Errorf("rules = %+v", adopted[0].Styles[0].Rules)
	}

	// Re-adoption re-emits the full list, but texts only once.
	doc.SetAdoptedStyleSheets([]*dom.StyleSheet{sheet})
	adopted = incrementalsOf[*event.AdoptedStyleSheetData](s)
	if len(adopted) != 2 {
		t.Fatalf("adopted events = %d, want 2", len(adopted))
	}
	if len(adopted[1].Styles) != 0 {
		t.Errorf("sheet text re-sent: %+v", adopted[1].Styles)
	}
	if adopted[0].StyleIDs[0] != adopted[1].StyleIDs[0] {
		t.Errorf("style id unstable: %d vs %d", adopted[0].StyleIDs[0], adopted[1].StyleIDs[0])
	}
}

func TestCanvasCommands(t *testing.T) {
	doc := parseDoc(t, `<!DOCTYPE html><html><body><canvas id="c"></canvas></body></html>`)
	s, handle := startRecording(t, doc, Options{RecordCanvas: true})
	defer handle.Stop()

	c := dom.QuerySelectorAll(doc.Root(), "#c")[0].Canvas()
	c.Record(dom.CanvasOp{API: dom.Canvas2D, Property: "fillStyle", Args: []any{"#fff"}, Setter: true})
	c.Record(dom.CanvasOp{API: dom.Canvas2D, Property: "fillRect", Args: []any{0, 0, 10, 10}})
	doc.Scheduler().Frame()

	muts := incrementalsOf[*event.CanvasMutationData](s)
	if len(muts) != 1 {
		t.Fatalf("canvas events = %d, want 1 batched", len(muts))
	}
	if len(muts[0].Commands) != 2 || muts[0].Commands[1].Property != "fillRect" {
		t.Errorf("commands = %+v", muts[0].Commands)
	}
}

func TestFontObserver(t *testing.T) {
	doc := parseDoc(t, `<!DOCTYPE html><html><body></body></html>`)
	s, handle := startRecording(t, doc, Options{CollectFonts: true})
	defer handle.Stop()

	doc.AddFontFace(dom.FontFace{
		Family: "Inter", Source: "url(inter.woff2)",
		Descriptors: map[string]string{"weight": "400"},
	})

	fonts := incrementalsOf[*event.FontData](s)
	if len(fonts) != 1 || fonts[0].Family != "Inter" {
		t.Fatalf("font events = %+v", fonts)
	}
}

func TestCustomElementObserver(t *testing.T) {
	doc := parseDoc(t, `<!DOCTYPE html><html><body></body></html>`)
	s, handle := startRecording(t, doc, Options{})
	defer handle.Stop()

	doc.DefineCustomElement("fancy-widget")

	defs := incrementalsOf[*event.CustomElementData](s)
	if len(defs) != 1 || defs[0].Define.Name != "fancy-widget" {
		t.Fatalf("custom element events = %+v", defs)
	}
}
