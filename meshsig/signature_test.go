package meshsig

import (
	"math"
	"testing"

	"github.com/qmuntal/gltf"
)

func packFloat32s(vs ...float32) []byte {
	out := make([]byte, 0, len(vs)*4)
	for _, v := range vs {
		bits := math.Float32bits(v)
		out = append(out, byte(bits), byte(bits>>8), byte(bits>>16), byte(bits>>24))
	}
	return out
}

// buildPrimDoc builds a one-primitive document with a POSITION and a
// NORMAL accessor (each VEC3 FLOAT, count vertices) backed by a single
// buffer, plus an index accessor.
func buildPrimDoc(positions, normals []float32, indices []uint32) *gltf.Document {
	posBytes := packFloat32s(positions...)
	normBytes := packFloat32s(normals...)

	idxBytes := make([]byte, 0, len(indices)*4)
	for _, v := range indices {
		idxBytes = append(idxBytes, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
	}

	buf := append(append([]byte{}, posBytes...), append(normBytes, idxBytes...)...)

	doc := &gltf.Document{
		Buffers: []*gltf.Buffer{{ByteLength: uint32(len(buf)), Data: buf}},
		BufferViews: []*gltf.BufferView{
			{Buffer: 0, ByteOffset: 0, ByteLength: uint32(len(posBytes))},
			{Buffer: 0, ByteOffset: uint32(len(posBytes)), ByteLength: uint32(len(normBytes))},
			{Buffer: 0, ByteOffset: uint32(len(posBytes) + len(normBytes)), ByteLength: uint32(len(idxBytes))},
		},
		Accessors: []*gltf.Accessor{
			{BufferView: gltf.Index(0), ComponentType: gltf.ComponentFloat, Type: gltf.AccessorVec3, Count: uint32(len(positions) / 3)},
			{BufferView: gltf.Index(1), ComponentType: gltf.ComponentFloat, Type: gltf.AccessorVec3, Count: uint32(len(normals) / 3)},
			{BufferView: gltf.Index(2), ComponentType: gltf.ComponentUint, Type: gltf.AccessorScalar, Count: uint32(len(indices))},
		},
		Meshes: []*gltf.Mesh{{
			Primitives: []*gltf.Primitive{{
				Attributes: map[string]uint32{gltf.POSITION: 0, gltf.NORMAL: 1},
				Indices:    gltf.Index(2),
			}},
		}},
	}
	return doc
}

func prim0(doc *gltf.Document) *gltf.Primitive {
	return doc.Meshes[0].Primitives[0]
}

func TestExactModeDetectsPositionDifference(t *testing.T) {
	a := buildPrimDoc([]float32{0, 0, 0, 1, 0, 0, 0, 1, 0}, []float32{0, 1, 0, 0, 1, 0, 0, 1, 0}, []uint32{0, 1, 2})
	b := buildPrimDoc([]float32{0, 0, 0, 1, 0, 0, 0, 1, 0.5}, []float32{0, 1, 0, 0, 1, 0, 0, 1, 0}, []uint32{0, 1, 2})

	h := &Hasher{Mode: Exact}
	sigA, errs := h.Primitive(a, prim0(a), "a")
	if !errs.Clean() {
		t.Fatalf("unexpected errors: %v", errs)
	}
	sigB, errs := h.Primitive(b, prim0(b), "b")
	if !errs.Clean() {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if sigA == sigB {
		t.Fatalf("exact mode should distinguish different POSITION data")
	}
}

func TestToleranceModeIgnoresPositionDifference(t *testing.T) {
	a := buildPrimDoc([]float32{0, 0, 0, 1, 0, 0, 0, 1, 0}, []float32{0, 1, 0, 0, 1, 0, 0, 1, 0}, []uint32{0, 1, 2})
	b := buildPrimDoc([]float32{0, 0, 0, 1, 0, 0, 0, 1, 0.5}, []float32{0, 1, 0, 0, 1, 0, 0, 1, 0}, []uint32{0, 1, 2})

	h := &Hasher{Mode: Tolerance, NormalTolerance: 1e-3}
	sigA, errs := h.Primitive(a, prim0(a), "a")
	if !errs.Clean() {
		t.Fatalf("unexpected errors: %v", errs)
	}
	sigB, errs := h.Primitive(b, prim0(b), "b")
	if !errs.Clean() {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if sigA != sigB {
		t.Fatalf("tolerance mode should ignore POSITION data entirely")
	}
}

func TestToleranceModeQuantizesNormals(t *testing.T) {
	a := buildPrimDoc([]float32{0, 0, 0}, []float32{0, 1, 0}, []uint32{0})
	b := buildPrimDoc([]float32{0, 0, 0}, []float32{0.0000001, 1, 0}, []uint32{0})

	h := &Hasher{Mode: Tolerance, NormalTolerance: 1e-3}
	sigA, _ := h.Primitive(a, prim0(a), "a")
	sigB, _ := h.Primitive(b, prim0(b), "b")
	if sigA != sigB {
		t.Fatalf("normals within tolerance should hash identically")
	}
}

func TestToleranceModeDistinguishesLargeNormalDifference(t *testing.T) {
	a := buildPrimDoc([]float32{0, 0, 0}, []float32{0, 1, 0}, []uint32{0})
	b := buildPrimDoc([]float32{0, 0, 0}, []float32{0.5, 0.866, 0}, []uint32{0})

	h := &Hasher{Mode: Tolerance, NormalTolerance: 1e-3}
	sigA, _ := h.Primitive(a, prim0(a), "a")
	sigB, _ := h.Primitive(b, prim0(b), "b")
	if sigA == sigB {
		t.Fatalf("normals outside tolerance should not hash identically")
	}
}

func TestToleranceModeWithZeroNormalToleranceHashesNormalsExactly(t *testing.T) {
	a := buildPrimDoc([]float32{0, 0, 0}, []float32{0, 1, 0}, []uint32{0})
	b := buildPrimDoc([]float32{0, 0, 0}, []float32{0.0000001, 1, 0}, []uint32{0})

	h := &Hasher{Mode: Tolerance}
	sigA, _ := h.Primitive(a, prim0(a), "a")
	sigB, _ := h.Primitive(b, prim0(b), "b")
	if sigA == sigB {
		t.Fatalf("with normal_tolerance=0, NORMAL should hash exactly like any other attribute, not quantize")
	}
}

func TestSkipAttributeDataHashExcludesNamedAttribute(t *testing.T) {
	a := buildPrimDoc([]float32{0, 0, 0}, []float32{0, 1, 0}, []uint32{0})
	b := buildPrimDoc([]float32{0, 0, 0}, []float32{1, 0, 0}, []uint32{0})

	h := &Hasher{Mode: Exact, SkipAttributeDataHash: map[string]bool{gltf.NORMAL: true}}
	sigA, _ := h.Primitive(a, prim0(a), "a")
	sigB, _ := h.Primitive(b, prim0(b), "b")
	if sigA != sigB {
		t.Fatalf("NORMAL data should be excluded by SkipAttributeDataHash")
	}
}

func TestFallbackHashUsedWhenBufferDataMissing(t *testing.T) {
	doc := buildPrimDoc([]float32{0, 0, 0}, []float32{0, 1, 0}, []uint32{0})
	doc.Buffers[0].Data = nil // simulate an unresolved external buffer

	h := &Hasher{Mode: Exact}
	sig, errs := h.Primitive(doc, prim0(doc), "a")
	if !errs.Clean() {
		t.Fatalf("a missing buffer should degrade to fallback, not error: %v", errs)
	}
	if sig == 0 {
		t.Fatalf("expected a non-zero fallback-derived signature")
	}
}

func TestOutOfRangeReadIsFatalParseError(t *testing.T) {
	doc := buildPrimDoc([]float32{0, 0, 0}, []float32{0, 1, 0}, []uint32{0})
	doc.Accessors[0].Count = 100 // now reads past the buffer's end

	h := &Hasher{Mode: Exact}
	_, errs := h.Primitive(doc, prim0(doc), "a")
	if errs.Clean() {
		t.Fatalf("expected a ParseError for an out-of-range accessor read")
	}
}

func TestCachePrimitiveMemoizes(t *testing.T) {
	doc := buildPrimDoc([]float32{0, 0, 0}, []float32{0, 1, 0}, []uint32{0})
	c := NewCache(&Hasher{Mode: Exact})

	sig1, errs := c.Primitive(0, doc, 0, 0, "a")
	if !errs.Clean() {
		t.Fatalf("unexpected errors: %v", errs)
	}
	sig2, errs := c.Primitive(0, doc, 0, 0, "a")
	if !errs.Clean() {
		t.Fatalf("unexpected errors on cached access: %v", errs)
	}
	if sig1 != sig2 {
		t.Fatalf("cached signature should be stable")
	}
}
