// Package config loads recorder settings from YAML. The field set is
// canonical: drifting legacy names from older settings shapes
// (checkoutEveryEvc, ignoreAttribute) are rejected at load time with
// explicit errors, as is any unknown key.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Appsurify/rrweb/recorder"
	"github.com/Appsurify/rrweb/snapshot"
)

// Config is the top-level daemon configuration.
type Config struct {
	Browser BrowserConfig  `yaml:"browser"`
	Pages   []PageConfig   `yaml:"pages"`
	Record  RecordSettings `yaml:"record"`
	Sinks   []SinkConfig   `yaml:"sinks"`
}

// BrowserConfig controls the Chrome lifecycle for the browser bridge.
type BrowserConfig struct {
	Remote           string        `yaml:"remote"`
	Stealth          string        `yaml:"stealth"` // headless | headful
	ResourceBlocking []string      `yaml:"resource_blocking"`
	RecycleInterval  time.Duration `yaml:"recycle_interval"`
}

// PageConfig defines a page to record.
type PageConfig struct {
	ID              string        `yaml:"id"`
	URL             string        `yaml:"url"`
	CaptureInterval time.Duration `yaml:"capture_interval"`
}

// SinkConfig defines an output backend.
type SinkConfig struct {
	Type string `yaml:"type"` // stdout | webhook | journal
	URL  string `yaml:"url"`  // for webhook
	Path string `yaml:"path"` // for journal
}

// VisibilitySettings configure the visibility pipeline.
type VisibilitySettings struct {
	Mode        string  `yaml:"mode"` // none | debounce | throttle
	Debounce    int64   `yaml:"debounce"`
	Throttle    int64   `yaml:"throttle"`
	Threshold   float64 `yaml:"threshold"`
	Sensitivity float64 `yaml:"sensitivity"`
	RAFThrottle int64   `yaml:"rafThrottle"`
	RootMargin  string  `yaml:"rootMargin"`
}

// SamplingSettings throttle high-frequency observers.
type SamplingSettings struct {
	MouseMove        int64              `yaml:"mousemove"`
	MouseInteraction map[string]bool    `yaml:"mouseInteraction"`
	Scroll           int64              `yaml:"scroll"`
	Media            int64              `yaml:"media"`
	Input            string             `yaml:"input"`
	Canvas           string             `yaml:"canvas"`
	Visibility       VisibilitySettings `yaml:"visibility"`
}

// RecordSettings is the serializable subset of recorder.Options.
type RecordSettings struct {
	CheckoutEveryNth int   `yaml:"checkoutEveryNth"`
	CheckoutEveryNms int64 `yaml:"checkoutEveryNms"`
	CheckoutEveryNvm int   `yaml:"checkoutEveryNvm"`

	BlockClass    string `yaml:"blockClass"`
	BlockSelector string `yaml:"blockSelector"`

	IgnoreClass    string `yaml:"ignoreClass"`
	IgnoreSelector string `yaml:"ignoreSelector"`

	ExcludeAttribute string `yaml:"excludeAttribute"`

	MaskTextClass    string   `yaml:"maskTextClass"`
	MaskTextSelector string   `yaml:"maskTextSelector"`
	MaskAllInputs    bool     `yaml:"maskAllInputs"`
	MaskInputOptions []string `yaml:"maskInputOptions"`

	InlineStylesheet *bool `yaml:"inlineStylesheet"`
	InlineImages     bool  `yaml:"inlineImages"`
	CollectFonts     bool  `yaml:"collectFonts"`

	SlimDOM string `yaml:"slimDOM"` // "" | "true" | "all"

	Sampling      SamplingSettings `yaml:"sampling"`
	MousemoveWait int64            `yaml:"mousemoveWait"`

	RecordDOM                *bool `yaml:"recordDOM"`
	RecordCanvas             bool  `yaml:"recordCanvas"`
	RecordCrossOriginIframes bool  `yaml:"recordCrossOriginIframes"`

	RecordAfter      string `yaml:"recordAfter"`
	FlushCustomEvent string `yaml:"flushCustomEvent"`

	UserTriggeredOnInput bool `yaml:"userTriggeredOnInput"`

	KeepIframeSrc       []string `yaml:"keepIframeSrc"`
	IgnoreCSSAttributes []string `yaml:"ignoreCSSAttributes"`
}

// legacyFields maps drifting field names from older settings shapes to
// their canonical replacement.
var legacyFields = map[string]string{
	"checkoutEveryEvc": "checkoutEveryNvm",
	"ignoreAttribute":  "excludeAttribute",
}

// LoadFile reads a YAML configuration file, rejecting legacy and
// unknown fields.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Load(data)
}

// Load parses YAML configuration bytes.
func Load(data []byte) (*Config, error) {
	if err := rejectLegacyFields(data); err != nil {
		return nil, err
	}

	var cfg Config
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func rejectLegacyFields(data []byte) error {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return fmt.Errorf("config: parse: %w", err)
	}
	var found error
	walkKeys(&root, func(key string) {
		if canonical, legacy := legacyFields[key]; legacy && found == nil {
			found = fmt.Errorf("config: legacy field %q is not accepted; use %q", key, canonical)
		}
	})
	return found
}

func walkKeys(n *yaml.Node, visit func(key string)) {
	if n.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(n.Content); i += 2 {
			visit(n.Content[i].Value)
			walkKeys(n.Content[i+1], visit)
		}
		return
	}
	for _, c := range n.Content {
		walkKeys(c, visit)
	}
}

func (c *Config) applyDefaults() {
	if c.Browser.Stealth == "" {
		c.Browser.Stealth = "headless"
	}
	if c.Browser.RecycleInterval <= 0 {
		c.Browser.RecycleInterval = 4 * time.Hour
	}
	for i := range c.Pages {
		if c.Pages[i].CaptureInterval <= 0 {
			c.Pages[i].CaptureInterval = time.Minute
		}
	}
	if len(c.Sinks) == 0 {
		c.Sinks = []SinkConfig{{Type: "stdout"}}
	}
}

// ToOptions compiles the serializable settings into recorder options.
// The caller supplies Document, Emit, and any funcs afterwards.
func (rs *RecordSettings) ToOptions() (recorder.Options, error) {
	opts := recorder.Options{
		CheckoutEveryNth:         rs.CheckoutEveryNth,
		CheckoutEveryNms:         rs.CheckoutEveryNms,
		CheckoutEveryNvm:         rs.CheckoutEveryNvm,
		BlockClass:               rs.BlockClass,
		BlockSelector:            rs.BlockSelector,
		IgnoreClass:              rs.IgnoreClass,
		IgnoreSelector:           rs.IgnoreSelector,
		MaskTextClass:            rs.MaskTextClass,
		MaskTextSelector:         rs.MaskTextSelector,
		MaskAllInputs:            rs.MaskAllInputs,
		InlineStylesheet:         rs.InlineStylesheet,
		InlineImages:             rs.InlineImages,
		CollectFonts:             rs.CollectFonts,
		MousemoveWait:            rs.MousemoveWait,
		RecordDOM:                rs.RecordDOM,
		RecordCanvas:             rs.RecordCanvas,
		RecordCrossOriginIframes: rs.RecordCrossOriginIframes,
		RecordAfter:              rs.RecordAfter,
		FlushCustomEvent:         rs.FlushCustomEvent,
		UserTriggeredOnInput:     rs.UserTriggeredOnInput,
		Sampling: recorder.Sampling{
			MouseMove:        rs.Sampling.MouseMove,
			MouseInteraction: rs.Sampling.MouseInteraction,
			Scroll:           rs.Sampling.Scroll,
			Media:            rs.Sampling.Media,
			Input:            rs.Sampling.Input,
			Canvas:           rs.Sampling.Canvas,
			Visibility: recorder.VisibilitySampling{
				Mode:        rs.Sampling.Visibility.Mode,
				Debounce:    rs.Sampling.Visibility.Debounce,
				Throttle:    rs.Sampling.Visibility.Throttle,
				Threshold:   rs.Sampling.Visibility.Threshold,
				Sensitivity: rs.Sampling.Visibility.Sensitivity,
				RAFThrottle: rs.Sampling.Visibility.RAFThrottle,
				RootMargin:  rs.Sampling.Visibility.RootMargin,
			},
		},
	}

	if rs.ExcludeAttribute != "" {
		re, err := regexp.Compile(rs.ExcludeAttribute)
		if err != nil {
			return opts, fmt.Errorf("config: excludeAttribute: %w", err)
		}
		opts.ExcludeAttribute = re
	}

	switch rs.SlimDOM {
	case "":
	case "true":
		opts.SlimDOM = snapshot.SlimDOMBasic()
	case "all":
		opts.SlimDOM = snapshot.SlimDOMAll()
	default:
		return opts, fmt.Errorf("config: slimDOM must be empty, \"true\" or \"all\", got %q", rs.SlimDOM)
	}

	if len(rs.MaskInputOptions) > 0 {
		opts.MaskInputOptions = make(map[string]bool, len(rs.MaskInputOptions))
		for _, k := range rs.MaskInputOptions {
			opts.MaskInputOptions[k] = true
		}
	}
	if len(rs.IgnoreCSSAttributes) > 0 {
		opts.IgnoreCSSAttributes = make(map[string]bool, len(rs.IgnoreCSSAttributes))
		for _, k := range rs.IgnoreCSSAttributes {
			opts.IgnoreCSSAttributes[k] = true
		}
	}
	if len(rs.KeepIframeSrc) > 0 {
		prefixes := append([]string(nil), rs.KeepIframeSrc...)
		opts.KeepIframeSrcFn = func(url string) bool {
			for _, p := range prefixes {
				if strings.HasPrefix(url, p) {
					return true
				}
			}
			return false
		}
	}

	return opts, nil
}
