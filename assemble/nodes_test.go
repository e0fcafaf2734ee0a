package assemble

import (
	"encoding/json"
	"testing"

	"github.com/qmuntal/gltf"

	"github.com/mogaika/gltf-instancer/loadmodel"
	"github.com/mogaika/gltf-instancer/xform"

	"github.com/go-gl/mathgl/mgl64"
)

func trivialMeshDoc() *gltf.Document {
	return &gltf.Document{
		Meshes: []*gltf.Mesh{{Name: "box", Primitives: []*gltf.Primitive{{Attributes: map[string]uint32{}}}}},
	}
}

func TestAddInstancedGroupEmitsExtensionPayload(t *testing.T) {
	src := trivialMeshDoc()
	instances := []xform.Components{
		xform.Identity(),
		{Translation: mgl64.Vec3{1, 0, 0}, Rotation: mgl64.Quat{W: 1}, Scale: mgl64.Vec3{1, 1, 1}},
	}

	a := New()
	errs := a.AddInstancedGroup(src, 0, 0, "box", instances, "test")
	if !errs.Clean() {
		t.Fatalf("unexpected errors: %v", errs)
	}

	if len(a.doc.Nodes) != 1 {
		t.Fatalf("expected exactly 1 node, got %d", len(a.doc.Nodes))
	}
	node := a.doc.Nodes[0]
	raw, ok := node.Extensions[loadmodel.ExtensionName]
	if !ok {
		t.Fatalf("expected %s extension on the instanced node", loadmodel.ExtensionName)
	}

	var payload struct {
		Attributes map[string]uint32 `json:"attributes"`
	}
	if err := json.Unmarshal(raw.(json.RawMessage), &payload); err != nil {
		t.Fatalf("invalid extension payload JSON: %v", err)
	}
	for _, key := range []string{"TRANSLATION", "ROTATION", "SCALE"} {
		accIdx, ok := payload.Attributes[key]
		if !ok {
			t.Fatalf("expected %s attribute in instancing payload", key)
		}
		if int(accIdx) >= len(a.doc.Accessors) {
			t.Fatalf("%s accessor index %d out of range", key, accIdx)
		}
		if a.doc.Accessors[accIdx].Count != uint32(len(instances)) {
			t.Fatalf("%s accessor count mismatch: got %d want %d", key, a.doc.Accessors[accIdx].Count, len(instances))
		}
	}

	found := false
	for _, ext := range a.doc.ExtensionsUsed {
		if ext == loadmodel.ExtensionName {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected %s registered in extensionsUsed", loadmodel.ExtensionName)
	}
}

func TestAddNonInstancedOmitsIdentityComponents(t *testing.T) {
	src := trivialMeshDoc()
	a := New()
	errs := a.AddNonInstanced(src, 0, 0, xform.Identity(), "test")
	if !errs.Clean() {
		t.Fatalf("unexpected errors: %v", errs)
	}

	node := a.doc.Nodes[0]
	if node.Translation != ([3]float32{}) {
		t.Fatalf("expected identity translation to be omitted (zero value), got %v", node.Translation)
	}
	if node.Rotation != ([4]float32{}) {
		t.Fatalf("expected identity rotation to be omitted (zero value), got %v", node.Rotation)
	}
	if node.Scale != ([3]float32{}) {
		t.Fatalf("expected identity scale to be omitted (zero value), got %v", node.Scale)
	}
}

func TestAddNonInstancedKeepsNonIdentityComponents(t *testing.T) {
	src := trivialMeshDoc()
	transform := xform.Components{
		Translation: mgl64.Vec3{5, 0, 0},
		Rotation:    mgl64.Quat{W: 1},
		Scale:       mgl64.Vec3{2, 1, 1},
	}

	a := New()
	errs := a.AddNonInstanced(src, 0, 0, transform, "test")
	if !errs.Clean() {
		t.Fatalf("unexpected errors: %v", errs)
	}

	node := a.doc.Nodes[0]
	if node.Translation[0] != 5 {
		t.Fatalf("expected non-identity translation to be kept, got %v", node.Translation)
	}
	if node.Scale[0] != 2 {
		t.Fatalf("expected non-identity scale to be kept, got %v", node.Scale)
	}
}
