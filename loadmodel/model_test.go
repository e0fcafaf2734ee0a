package loadmodel

import (
	"encoding/json"
	"testing"
)

func u32(v uint32) *uint32 { return &v }

func TestResolveGPUInstancingFromRawMessage(t *testing.T) {
	raw := json.RawMessage(`{"attributes":{"TRANSLATION":0,"ROTATION":1,"SCALE":2}}`)
	got, err := resolveGPUInstancing(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Translation == nil || *got.Translation != 0 {
		t.Fatalf("TRANSLATION not resolved: %+v", got)
	}
	if got.Rotation == nil || *got.Rotation != 1 {
		t.Fatalf("ROTATION not resolved: %+v", got)
	}
	if got.Scale == nil || *got.Scale != 2 {
		t.Fatalf("SCALE not resolved: %+v", got)
	}
}

func TestResolveGPUInstancingPartialAttributes(t *testing.T) {
	raw := json.RawMessage(`{"attributes":{"TRANSLATION":5}}`)
	got, err := resolveGPUInstancing(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Translation == nil || *got.Translation != 5 {
		t.Fatalf("TRANSLATION not resolved: %+v", got)
	}
	if got.Rotation != nil || got.Scale != nil {
		t.Fatalf("expected absent attributes to stay nil: %+v", got)
	}
}

func TestResolveGPUInstancingFromGenericMap(t *testing.T) {
	// As decoded by encoding/json into interface{}, a nested extension
	// arrives as map[string]interface{} with float64 leaves.
	raw := map[string]interface{}{
		"attributes": map[string]interface{}{
			"TRANSLATION": float64(3),
		},
	}
	got, err := resolveGPUInstancing(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Translation == nil || *got.Translation != 3 {
		t.Fatalf("TRANSLATION not resolved from generic map: %+v", got)
	}
}

func TestResolveGPUInstancingInvalidJSON(t *testing.T) {
	if _, err := resolveGPUInstancing(json.RawMessage(`not json`)); err == nil {
		t.Fatalf("expected an error for invalid JSON")
	}
}

func TestHashHex(t *testing.T) {
	m := &Model{Hash: [32]byte{0xde, 0xad, 0xbe, 0xef}}
	got := m.HashHex()
	want := "deadbeef" + "00000000000000000000000000000000000000000000000000000000"
	if got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}
