package event

import (
	"encoding/json"
	"testing"
)

func TestMarshalIncrementalWireShape(t *testing.T) {
	e := Event{
		Type:      IncrementalSnapshot,
		Timestamp: 1700000000123,
		Data: &ScrollData{ID: 4, X: 0, Y: 120},
	}
	raw, err := json.Marshal(e)
	if err != nil {
		t.Fatal(err)
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatal(err)
	}
	if m["type"] != float64(3) {
		t.Errorf("type = %v, want 3", m["type"])
	}
	data := m["data"].(map[string]any)
	if data["source"] != float64(3) {
		t.Errorf("data.source = %v, want 3 (Scroll)", data["source"])
	}
	if data["id"] != float64(4) || data["y"] != float64(120) {
		t.Errorf("data = %v", data)
	}
}

func TestVisibilityMutationSourceValue(t *testing.T) {
	e := Event{Type: IncrementalSnapshot, Data: &VisibilityMutationData{
		Mutations: []VisibilityTuple{{ID: 9, IsVisible: true, Ratio: 0.75}},
	}}
	raw, err := json.Marshal(e)
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	json.Unmarshal(raw, &m)
	data := m["data"].(map[string]any)
	if data["source"] != float64(17) {
		t.Errorf("visibility source = %v, want 17", data["source"])
	}
}

func TestRoundTripEvent(t *testing.T) {
	in := Event{
		Type:      IncrementalSnapshot,
		Timestamp: 42,
		Data: &InputData{ID: 7, Text: "***", IsChecked: true},
	}
	in.SetExtra("id", float64(3))

	raw, err := json.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}

	var out Event
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatal(err)
	}
	if out.Type != IncrementalSnapshot || out.Timestamp != 42 {
		t.Errorf("envelope = %+v", out)
	}
	input, ok := out.Data.(*InputData)
	if !ok {
		t.Fatalf("data decoded as %T", out.Data)
	}
	if input.ID != 7 || input.Text != "***" || !input.IsChecked {
		t.Errorf("input = %+v", input)
	}
	if out.Extra["id"] != float64(3) {
		t.Errorf("extra = %v", out.Extra)
	}
}

func TestRoundTripTouchMove(t *testing.T) {
	in := Event{Type: IncrementalSnapshot, Data: &MouseMoveData{
		Touch:     true,
		Positions: []MousePosition{{X: 1, Y: 2, ID: 3, TimeOffset: -16}},
	}}
	raw, _ := json.Marshal(in)

	var out Event
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatal(err)
	}
	move := out.Data.(*MouseMoveData)
	if !move.Touch {
		t.Error("touch flag lost through the source discriminator")
	}
}

func TestMetaRoundTrip(t *testing.T) {
	in := Event{Type: Meta, Data: &MetaData{Href: "https://x.example/", Width: 10, Height: 20}}
	raw, _ := json.Marshal(in)
	var out Event
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatal(err)
	}
	meta := out.Data.(*MetaData)
	if meta.Href != "https://x.example/" || meta.Height != 20 {
		t.Errorf("meta = %+v", meta)
	}
}

func TestEnumValuesAreNormative(t *testing.T) {
	if FullSnapshot != 2 || IncrementalSnapshot != 3 || Meta != 4 {
		t.Error("event type enum values drifted")
	}
	if SourceMutation != 0 || SourceInput != 5 || SourceCustomElement != 16 || SourceVisibilityMutation != 17 {
		t.Error("incremental source enum values drifted")
	}
	if MouseUp != 0 || Click != 2 || TouchStart != 7 || TouchCancel != 10 {
		t.Error("mouse interaction enum values drifted")
	}
}
