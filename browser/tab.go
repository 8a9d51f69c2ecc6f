package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// Tab wraps a Rod page with stealth navigation, resource blocking, and
// page-state capture.
type Tab struct {
	Page    *rod.Page
	PageURL string
	PageID  string
	manager *Manager
}

// OpenTab creates a stealth tab and navigates to the URL.
func OpenTab(ctx context.Context, mgr *Manager, pageURL, pageID string) (*Tab, error) {
	b := mgr.Browser()
	if b == nil {
		return nil, fmt.Errorf("browser: no active browser")
	}

	page, err := stealth.Page(b)
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}

	if len(mgr.cfg.ResourceBlocking) > 0 {
		if err := applyResourceBlocking(page, mgr.cfg.ResourceBlocking); err != nil {
			mgr.cfg.Logger.Warn("browser: resource blocking failed", "error", err)
		}
	}

	navCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		page.Close()
		return nil, fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		mgr.cfg.Logger.Warn("browser: wait load timeout", "url", pageURL, "error", err)
	}

	return &Tab{Page: page, PageURL: pageURL, PageID: pageID, manager: mgr}, nil
}

// Close closes the tab.
func (t *Tab) Close() error {
	if t.Page != nil {
		return t.Page.Close()
	}
	return nil
}

// captureJS collects everything the dom model needs in one round-trip:
// outer HTML, viewport, scroll offsets, and per-element geometry plus
// the computed visibility styles, in document order matching a
// depth-first walk over the parsed tree.
const captureJS = `() => {
	const els = document.querySelectorAll('*');
	const elements = [];
	for (const el of els) {
		const r = el.getBoundingClientRect();
		const cs = getComputedStyle(el);
		elements.push({
			left: r.left, top: r.top, width: r.width, height: r.height,
			display: cs.display, visibility: cs.visibility,
			opacity: parseFloat(cs.opacity),
		});
	}
	return JSON.stringify({
		html: document.documentElement.outerHTML,
		href: location.href,
		width: window.innerWidth, height: window.innerHeight,
		scrollX: window.scrollX, scrollY: window.scrollY,
		elements: elements,
	});
}`

// ElementState is one element's captured geometry and visibility
// styles.
type ElementState struct {
	Left       float64 `json:"left"`
	Top        float64 `json:"top"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	Display    string  `json:"display"`
	Visibility string  `json:"visibility"`
	Opacity    float64 `json:"opacity"`
}

// Capture is a one-shot copy of the page state.
type Capture struct {
	HTML     string         `json:"html"`
	Href     string         `json:"href"`
	Width    int            `json:"width"`
	Height   int            `json:"height"`
	ScrollX  float64        `json:"scrollX"`
	ScrollY  float64        `json:"scrollY"`
	Elements []ElementState `json:"elements"`
}

// Capture reads the page state.
func (t *Tab) Capture(ctx context.Context) (*Capture, error) {
	res, err := t.Page.Context(ctx).Eval(captureJS)
	if err != nil {
		return nil, fmt.Errorf("browser: capture %s: %w", t.PageURL, err)
	}
	var c Capture
	if err := json.Unmarshal([]byte(res.Value.Str()), &c); err != nil {
		return nil, fmt.Errorf("browser: decode capture: %w", err)
	}
	return &c, nil
}

// applyResourceBlocking intercepts requests and blocks the configured
// resource types.
func applyResourceBlocking(page *rod.Page, types []string) error {
	blockSet := make(map[string]bool, len(types))
	for _, t := range types {
		blockSet[strings.ToLower(t)] = true
	}

	router := page.HijackRequests()
	router.MustAdd("*", func(ctx *rod.Hijack) {
		if shouldBlock(blockSet, string(ctx.Request.Type())) {
			ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		ctx.ContinueRequest(&proto.FetchContinueRequest{})
	})
	go router.Run()
	return nil
}

func shouldBlock(blockSet map[string]bool, resType string) bool {
	switch strings.ToLower(resType) {
	case "image":
		return blockSet["images"]
	case "font":
		return blockSet["fonts"]
	case "media":
		return blockSet["media"]
	case "stylesheet":
		return blockSet["stylesheets"]
	}
	return blockSet[strings.ToLower(resType)]
}
