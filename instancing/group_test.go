package instancing

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/mogaika/gltf-instancer/internal/logx"
	"github.com/mogaika/gltf-instancer/loadmodel"
	"github.com/mogaika/gltf-instancer/meshsig"
	"github.com/mogaika/gltf-instancer/xform"
)

func occAt(sig meshsig.Signature, modelID int, x float64) Occurrence {
	c := xform.Identity()
	c.Translation = mgl64.Vec3{x, 0, 0}
	bbox := xform.BoundingBox{Min: mgl64.Vec3{0, 0, 0}, Max: mgl64.Vec3{1, 1, 1}}
	return Occurrence{
		ModelID:         modelID,
		MeshSig:         sig,
		World:           c,
		LocalBBox:       bbox,
		PrimitiveBBoxes: []xform.BoundingBox{bbox},
	}
}

func testRegistry(t *testing.T, count int) *loadmodel.Registry {
	t.Helper()
	reg := loadmodel.NewRegistry(logx.New(logx.None))
	for i := 0; i < count; i++ {
		// distinct content per call so every model gets its own ID
		data := []byte(`{"asset":{"version":"2.0","generator":"` + string(rune('a'+i)) + `"}}`)
		for len(data)%4 != 0 {
			data = append(data, ' ')
		}
		header := make([]byte, 0, 12+8+len(data))
		putU32 := func(v uint32) {
			header = append(header, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
		}
		header = append(header, 'g', 'l', 'T', 'F')
		putU32(2)
		putU32(uint32(12 + 8 + len(data)))
		putU32(uint32(len(data)))
		header = append(header, 'J', 'S', 'O', 'N')
		header = append(header, data...)
		if _, errs := reg.Load("m.glb", header); !errs.Clean() {
			t.Fatalf("unexpected load errors: %v", errs)
		}
	}
	return reg
}

func TestGroupOccurrencesMeetsThreshold(t *testing.T) {
	reg := testRegistry(t, 1)
	occs := []Occurrence{occAt(42, 0, 0), occAt(42, 0, 1), occAt(42, 0, 2)}

	res := GroupOccurrences(occs, &meshsig.Hasher{Mode: meshsig.Exact}, 3, reg)
	if len(res.Instanced) != 1 {
		t.Fatalf("expected 1 instanced group, got %d", len(res.Instanced))
	}
	if len(res.Instanced[0].Occurrences) != 3 {
		t.Fatalf("expected 3 occurrences in the group, got %d", len(res.Instanced[0].Occurrences))
	}
	if len(res.NonInstanced) != 0 {
		t.Fatalf("expected 0 non-instanced, got %d", len(res.NonInstanced))
	}
}

func TestGroupOccurrencesBelowThresholdDemoted(t *testing.T) {
	reg := testRegistry(t, 1)
	occs := []Occurrence{occAt(42, 0, 0), occAt(42, 0, 1)}

	res := GroupOccurrences(occs, &meshsig.Hasher{Mode: meshsig.Exact}, 3, reg)
	if len(res.Instanced) != 0 {
		t.Fatalf("expected 0 instanced groups below threshold, got %d", len(res.Instanced))
	}
	if len(res.NonInstanced) != 2 {
		t.Fatalf("expected 2 non-instanced occurrences, got %d", len(res.NonInstanced))
	}
}

func TestGroupOccurrencesToleranceModeSeparatesDifferentSizedBBoxes(t *testing.T) {
	reg := testRegistry(t, 1)
	smallBBox := xform.BoundingBox{Min: mgl64.Vec3{0, 0, 0}, Max: mgl64.Vec3{1, 1, 1}}
	bigBBox := xform.BoundingBox{Min: mgl64.Vec3{0, 0, 0}, Max: mgl64.Vec3{100, 100, 100}}
	small := occAt(7, 0, 0)
	small.LocalBBox = smallBBox
	small.PrimitiveBBoxes = []xform.BoundingBox{smallBBox}
	big := occAt(7, 0, 1)
	big.LocalBBox = bigBBox
	big.PrimitiveBBoxes = []xform.BoundingBox{bigBBox}

	res := GroupOccurrences([]Occurrence{small, big}, &meshsig.Hasher{Mode: meshsig.Tolerance, GeometryTolerance: 1e-3}, 2, reg)
	if len(res.Instanced) != 0 {
		t.Fatalf("expected no group to meet threshold=2 with only 1 occurrence each subgroup, got %d", len(res.Instanced))
	}
	if len(res.NonInstanced) != 2 {
		t.Fatalf("expected both occurrences demoted as separate size classes, got %d", len(res.NonInstanced))
	}
}

func TestGroupOccurrencesToleranceModeRequiresMatchingPrimitiveCount(t *testing.T) {
	reg := testRegistry(t, 1)
	bbox := xform.BoundingBox{Min: mgl64.Vec3{0, 0, 0}, Max: mgl64.Vec3{1, 1, 1}}
	one := occAt(9, 0, 0)
	one.PrimitiveBBoxes = []xform.BoundingBox{bbox}
	two := occAt(9, 0, 1)
	two.PrimitiveBBoxes = []xform.BoundingBox{bbox, bbox}

	res := GroupOccurrences([]Occurrence{one, two}, &meshsig.Hasher{Mode: meshsig.Tolerance, GeometryTolerance: 1e-3}, 2, reg)
	if len(res.Instanced) != 0 {
		t.Fatalf("expected mismatched primitive counts to stay in separate subgroups, got %d instanced groups", len(res.Instanced))
	}
	if len(res.NonInstanced) != 2 {
		t.Fatalf("expected both occurrences demoted, got %d", len(res.NonInstanced))
	}
}

// TestGroupOccurrencesGeometryToleranceGroupsNearIdenticalBoxes mirrors
// spec.md §8 scenario 2: two cubes whose bounding boxes differ by 1e-5
// per coordinate, with --tolerance 1e-4 and --normal-tolerance 0, group
// together (GeometryTolerance, not NormalTolerance, gates the bbox
// comparison).
func TestGroupOccurrencesGeometryToleranceGroupsNearIdenticalBoxes(t *testing.T) {
	reg := testRegistry(t, 1)
	a := occAt(5, 0, 0)
	a.PrimitiveBBoxes = []xform.BoundingBox{{Min: mgl64.Vec3{0, 0, 0}, Max: mgl64.Vec3{1, 1, 1}}}
	b := occAt(5, 0, 1)
	b.PrimitiveBBoxes = []xform.BoundingBox{{Min: mgl64.Vec3{0, 0, 0}, Max: mgl64.Vec3{1.00001, 1.00001, 1.00001}}}

	res := GroupOccurrences([]Occurrence{a, b}, &meshsig.Hasher{Mode: meshsig.Tolerance, GeometryTolerance: 1e-4}, 2, reg)
	if len(res.Instanced) != 1 || len(res.Instanced[0].Occurrences) != 2 {
		t.Fatalf("expected one instanced group of 2, got %d groups, non-instanced=%d", len(res.Instanced), len(res.NonInstanced))
	}
}

func TestGroupOccurrencesDifferentSignaturesStaySeparate(t *testing.T) {
	reg := testRegistry(t, 1)
	occs := []Occurrence{occAt(1, 0, 0), occAt(2, 0, 1), occAt(1, 0, 2)}

	res := GroupOccurrences(occs, &meshsig.Hasher{Mode: meshsig.Exact}, 2, reg)
	if len(res.Instanced) != 1 {
		t.Fatalf("expected signature 1 to form a group of 2, got %d groups", len(res.Instanced))
	}
	if len(res.NonInstanced) != 1 {
		t.Fatalf("expected the lone signature-2 occurrence to be non-instanced, got %d", len(res.NonInstanced))
	}
}
