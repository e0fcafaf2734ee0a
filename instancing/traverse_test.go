package instancing

import (
	"math"
	"testing"

	"github.com/qmuntal/gltf"

	"github.com/mogaika/gltf-instancer/loadmodel"
	"github.com/mogaika/gltf-instancer/meshsig"
)

func packF32(vs ...float32) []byte {
	out := make([]byte, 0, len(vs)*4)
	for _, v := range vs {
		bits := math.Float32bits(v)
		out = append(out, byte(bits), byte(bits>>8), byte(bits>>16), byte(bits>>24))
	}
	return out
}

// singleTriangleDoc builds a document with one mesh (one primitive, a
// single triangle, no index buffer) whose POSITION accessor is index 0.
func singleTriangleDoc() *gltf.Document {
	pos := packF32(0, 0, 0, 1, 0, 0, 0, 1, 0)
	doc := &gltf.Document{
		Buffers:     []*gltf.Buffer{{ByteLength: uint32(len(pos)), Data: pos}},
		BufferViews: []*gltf.BufferView{{Buffer: 0, ByteLength: uint32(len(pos))}},
		Accessors: []*gltf.Accessor{
			{BufferView: gltf.Index(0), ComponentType: gltf.ComponentFloat, Type: gltf.AccessorVec3, Count: 3,
				Min: []float32{0, 0, 0}, Max: []float32{1, 1, 0}},
		},
		Meshes: []*gltf.Mesh{{
			Primitives: []*gltf.Primitive{{Attributes: map[string]uint32{gltf.POSITION: 0}}},
		}},
	}
	return doc
}

func newWalker() *Walker {
	return &Walker{Cache: meshsig.NewCache(&meshsig.Hasher{Mode: meshsig.Exact}), Hasher: &meshsig.Hasher{Mode: meshsig.Exact}}
}

func TestWalkSingleNodeWorldTransform(t *testing.T) {
	doc := singleTriangleDoc()
	doc.Nodes = []*gltf.Node{
		{Mesh: gltf.Index(0), Translation: [3]float32{5, 0, 0}, Rotation: [4]float32{0, 0, 0, 1}, Scale: [3]float32{1, 1, 1}},
	}
	doc.Scenes = []*gltf.Scene{{Nodes: []uint32{0}}}
	doc.Scene = gltf.Index(0)

	model := &loadmodel.Model{ID: 0, Path: "t.glb", Doc: doc, NodeInstancing: map[uint32]*loadmodel.GPUInstancing{}}

	occs, errs := newWalker().Walk(model)
	if !errs.Clean() {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(occs) != 1 {
		t.Fatalf("expected 1 occurrence, got %d", len(occs))
	}
	if got := occs[0].World.Translation; got[0] != 5 {
		t.Fatalf("expected translation.x=5, got %+v", got)
	}
}

func TestWalkAccumulatesParentTransform(t *testing.T) {
	doc := singleTriangleDoc()
	doc.Nodes = []*gltf.Node{
		{Children: []uint32{1}, Translation: [3]float32{10, 0, 0}, Rotation: [4]float32{0, 0, 0, 1}, Scale: [3]float32{1, 1, 1}},
		{Mesh: gltf.Index(0), Translation: [3]float32{1, 0, 0}, Rotation: [4]float32{0, 0, 0, 1}, Scale: [3]float32{1, 1, 1}},
	}
	doc.Scenes = []*gltf.Scene{{Nodes: []uint32{0}}}
	doc.Scene = gltf.Index(0)

	model := &loadmodel.Model{ID: 0, Path: "t.glb", Doc: doc, NodeInstancing: map[uint32]*loadmodel.GPUInstancing{}}

	occs, errs := newWalker().Walk(model)
	if !errs.Clean() {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(occs) != 1 {
		t.Fatalf("expected 1 occurrence, got %d", len(occs))
	}
	if got := occs[0].World.Translation[0]; got != 11 {
		t.Fatalf("expected accumulated translation.x=11, got %v", got)
	}
}

func TestWalkExpandsGPUInstancingNode(t *testing.T) {
	doc := singleTriangleDoc()

	translations := packF32(0, 0, 0, 2, 0, 0, 4, 0, 0)
	doc.Buffers = append(doc.Buffers, &gltf.Buffer{ByteLength: uint32(len(translations)), Data: translations})
	doc.BufferViews = append(doc.BufferViews, &gltf.BufferView{Buffer: 1, ByteLength: uint32(len(translations))})
	doc.Accessors = append(doc.Accessors, &gltf.Accessor{BufferView: gltf.Index(1), ComponentType: gltf.ComponentFloat, Type: gltf.AccessorVec3, Count: 3})

	doc.Nodes = []*gltf.Node{{Mesh: gltf.Index(0)}}
	doc.Scenes = []*gltf.Scene{{Nodes: []uint32{0}}}
	doc.Scene = gltf.Index(0)

	translationAccessor := uint32(1)
	model := &loadmodel.Model{
		ID: 0, Path: "t.glb", Doc: doc,
		NodeInstancing: map[uint32]*loadmodel.GPUInstancing{
			0: {Translation: &translationAccessor},
		},
	}

	occs, errs := newWalker().Walk(model)
	if !errs.Clean() {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(occs) != 3 {
		t.Fatalf("expected 3 expanded instances, got %d", len(occs))
	}
	if occs[1].World.Translation[0] != 2 {
		t.Fatalf("expected instance 1 translation.x=2, got %+v", occs[1].World.Translation)
	}
}
