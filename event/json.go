package event

import (
	"encoding/json"
	"fmt"
)

// MarshalJSON emits the stable rrweb wire shape:
//
//	{"type":3,"data":{"source":0,...},"timestamp":1700000000000,...extra}
//
// Incremental payloads get their "source" discriminator injected; Extra
// keys are flattened into the top-level object.
func (e Event) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, 3+len(e.Extra))
	out["type"] = int(e.Type)
	out["timestamp"] = e.Timestamp

	switch d := e.Data.(type) {
	case nil:
		out["data"] = map[string]any{}
	case IncrementalData:
		raw, err := json.Marshal(d)
		if err != nil {
			return nil, fmt.Errorf("event: marshal incremental data: %w", err)
		}
		var m map[string]any
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("event: flatten incremental data: %w", err)
		}
		m["source"] = int(d.IncrementalSource())
		out["data"] = m
	default:
		out["data"] = d
	}

	for k, v := range e.Extra {
		if k == "type" || k == "data" || k == "timestamp" {
			continue
		}
		out[k] = v
	}

	return json.Marshal(out)
}

// UnmarshalJSON decodes the wire shape back into the typed union.
// Unknown extra keys are preserved in Extra.
func (e *Event) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("event: unmarshal: %w", err)
	}

	if t, ok := raw["type"]; ok {
		var n int
		if err := json.Unmarshal(t, &n); err != nil {
			return fmt.Errorf("event: type: %w", err)
		}
		e.Type = Type(n)
	}
	if ts, ok := raw["timestamp"]; ok {
		if err := json.Unmarshal(ts, &e.Timestamp); err != nil {
			return fmt.Errorf("event: timestamp: %w", err)
		}
	}

	if d, ok := raw["data"]; ok {
		decoded, err := decodeData(e.Type, d)
		if err != nil {
			return err
		}
		e.Data = decoded
	}

	for k, v := range raw {
		switch k {
		case "type", "data", "timestamp":
			continue
		}
		var val any
		if err := json.Unmarshal(v, &val); err != nil {
			continue
		}
		e.SetExtra(k, val)
	}
	return nil
}

func decodeData(t Type, raw json.RawMessage) (any, error) {
	switch t {
	case DomContentLoaded, Load:
		return nil, nil
	case Meta:
		var d MetaData
		return &d, json.Unmarshal(raw, &d)
	case FullSnapshot:
		var d FullSnapshotData
		return &d, json.Unmarshal(raw, &d)
	case Custom:
		var d CustomData
		return &d, json.Unmarshal(raw, &d)
	case Plugin:
		var d PluginData
		return &d, json.Unmarshal(raw, &d)
	case IncrementalSnapshot:
		return decodeIncremental(raw)
	}
	return nil, fmt.Errorf("event: unknown type %d", t)
}

func decodeIncremental(raw json.RawMessage) (IncrementalData, error) {
	var probe struct {
		Source Source `json:"source"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("event: incremental source: %w", err)
	}

	unmarshal := func(d IncrementalData, err error) (IncrementalData, error) { return d, err }

	switch probe.Source {
	case SourceMutation:
		var d MutationData
		return unmarshal(&d, json.Unmarshal(raw, &d))
	case SourceMouseMove, SourceTouchMove:
		var d MouseMoveData
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, err
		}
		d.Touch = probe.Source == SourceTouchMove
		return &d, nil
	case SourceMouseInteraction:
		var d MouseInteractionData
		return unmarshal(&d, json.Unmarshal(raw, &d))
	case SourceScroll:
		var d ScrollData
		return unmarshal(&d, json.Unmarshal(raw, &d))
	case SourceViewportResize:
		var d ViewportResizeData
		return unmarshal(&d, json.Unmarshal(raw, &d))
	case SourceInput:
		var d InputData
		return unmarshal(&d, json.Unmarshal(raw, &d))
	case SourceMediaInteraction:
		var d MediaInteractionData
		return unmarshal(&d, json.Unmarshal(raw, &d))
	case SourceStyleSheetRule:
		var d StyleSheetRuleData
		return unmarshal(&d, json.Unmarshal(raw, &d))
	case SourceCanvasMutation:
		var d CanvasMutationData
		return unmarshal(&d, json.Unmarshal(raw, &d))
	case SourceFont:
		var d FontData
		return unmarshal(&d, json.Unmarshal(raw, &d))
	case SourceStyleDeclaration:
		var d StyleDeclarationData
		return unmarshal(&d, json.Unmarshal(raw, &d))
	case SourceSelection:
		var d SelectionData
		return unmarshal(&d, json.Unmarshal(raw, &d))
	case SourceAdoptedStyleSheet:
		var d AdoptedStyleSheetData
		return unmarshal(&d, json.Unmarshal(raw, &d))
	case SourceCustomElement:
		var d CustomElementData
		return unmarshal(&d, json.Unmarshal(raw, &d))
	case SourceVisibilityMutation:
		var d VisibilityMutationData
		return unmarshal(&d, json.Unmarshal(raw, &d))
	}
	return nil, fmt.Errorf("event: unknown incremental source %d", probe.Source)
}
