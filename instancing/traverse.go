// Package instancing implements the scene-graph traversal and signature
// grouping that detect instancing candidates (spec.md §4.C), following
// the depth-first walk, per-instance-accessor decoding, and grouping
// policy of original_source/CPPAlgorithm/src/instancing_detector.cpp.
package instancing

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/qmuntal/gltf"

	"github.com/mogaika/gltf-instancer/internal/xerrors"
	"github.com/mogaika/gltf-instancer/loadmodel"
	"github.com/mogaika/gltf-instancer/meshsig"
	"github.com/mogaika/gltf-instancer/xform"
)

// Occurrence is one visit of a mesh-bearing node during traversal: either
// a conventional node+mesh pairing, or one virtual instance unpacked from
// an EXT_mesh_gpu_instancing node.
type Occurrence struct {
	ModelID      int
	NodeIndex    int
	MeshIndex    int
	World        xform.Components
	WorldBBox    xform.BoundingBox
	LocalBBox    xform.BoundingBox
	// PrimitiveBBoxes holds one local-space bounding box per primitive, in
	// mesh.Primitives order, since spec.md §4.C's tolerance-mode
	// comparison requires matching primitive count and a pairwise,
	// in-order box comparison rather than comparing the merged mesh
	// extent alone.
	PrimitiveBBoxes []xform.BoundingBox
	MeshSig         meshsig.Signature
}

// localTransform returns node's local transform: its Matrix if non-zero,
// else its TRS fields (each defaulting per the glTF spec when absent).
func localTransform(node *gltf.Node) xform.Components {
	mat := node.Matrix
	if mat != ([16]float32{}) {
		m := mgl64.Mat4{}
		for i := 0; i < 16; i++ {
			m[i] = float64(mat[i])
		}
		return xform.Decompose(m)
	}
	t := node.Translation
	r := node.Rotation
	s := node.Scale

	rot := mgl64.Quat{W: float64(r[3]), V: mgl64.Vec3{float64(r[0]), float64(r[1]), float64(r[2])}}
	if r == ([4]float32{}) {
		rot = mgl64.Quat{W: 1}
	}
	scale := mgl64.Vec3{float64(s[0]), float64(s[1]), float64(s[2])}
	if s == ([3]float32{}) {
		scale = mgl64.Vec3{1, 1, 1}
	}

	return xform.Components{
		Translation: mgl64.Vec3{float64(t[0]), float64(t[1]), float64(t[2])},
		Rotation:    rot,
		Scale:       scale,
	}
}

// Walker traverses every scene in a model and returns its mesh-bearing
// occurrences.
type Walker struct {
	Cache  *meshsig.Cache
	Hasher *meshsig.Hasher
}

// Walk visits every scene in model's document depth-first in declared
// order, accumulating world transforms, and returns one Occurrence per
// mesh-bearing node (expanded to one Occurrence per instance for nodes
// using EXT_mesh_gpu_instancing).
func (w *Walker) Walk(model *loadmodel.Model) ([]Occurrence, xerrors.List) {
	var errs xerrors.List
	var out []Occurrence

	doc := model.Doc
	visit := func(rootIndices []uint32) {
		for _, rootIdx := range rootIndices {
			w.walkNode(model, rootIdx, xform.Identity().ToMat4(), &out, &errs)
		}
	}

	for _, scene := range doc.Scenes {
		visit(scene.Nodes)
	}

	return out, errs
}

func (w *Walker) walkNode(model *loadmodel.Model, nodeIdx uint32, parentWorld mgl64.Mat4, out *[]Occurrence, errs *xerrors.List) {
	doc := model.Doc
	if int(nodeIdx) >= len(doc.Nodes) {
		errs.Add(xerrors.Newf(xerrors.Parse, model.Path, "node index %d out of range", nodeIdx))
		return
	}
	node := doc.Nodes[nodeIdx]
	local := localTransform(node)
	nodeWorld := xform.Mul(parentWorld, local.ToMat4())

	if node.Mesh != nil {
		if inst, ok := model.NodeInstancing[nodeIdx]; ok {
			w.emitInstancedNode(model, int(nodeIdx), int(*node.Mesh), inst, nodeWorld, out, errs)
		} else {
			w.emitOccurrence(model, int(nodeIdx), int(*node.Mesh), nodeWorld, out, errs)
		}
	}

	for _, childIdx := range node.Children {
		w.walkNode(model, childIdx, nodeWorld, out, errs)
	}
}

func (w *Walker) emitOccurrence(model *loadmodel.Model, nodeIdx, meshIdx int, world mgl64.Mat4, out *[]Occurrence, errs *xerrors.List) {
	sig, localBBox, primBBoxes, e := w.meshSignatureAndBBox(model, meshIdx)
	*errs = append(*errs, e...)
	if !e.Clean() {
		return
	}
	*out = append(*out, Occurrence{
		ModelID:         model.ID,
		NodeIndex:       nodeIdx,
		MeshIndex:       meshIdx,
		World:           xform.Decompose(world),
		WorldBBox:       localBBox.Transform(world),
		LocalBBox:       localBBox,
		PrimitiveBBoxes: primBBoxes,
		MeshSig:         sig,
	})
}

func (w *Walker) emitInstancedNode(model *loadmodel.Model, nodeIdx, meshIdx int, inst *loadmodel.GPUInstancing, nodeWorld mgl64.Mat4, out *[]Occurrence, errs *xerrors.List) {
	sig, localBBox, primBBoxes, e := w.meshSignatureAndBBox(model, meshIdx)
	*errs = append(*errs, e...)
	if !e.Clean() {
		return
	}

	translations, e := readVec3Accessor(model.Doc, inst.Translation, model.Path)
	*errs = append(*errs, e...)
	rotations, e := readVec4Accessor(model.Doc, inst.Rotation, model.Path)
	*errs = append(*errs, e...)
	scales, e := readVec3Accessor(model.Doc, inst.Scale, model.Path)
	*errs = append(*errs, e...)

	count := maxLen(len(translations), len(rotations), len(scales))
	for i := 0; i < count; i++ {
		local := xform.Identity()
		if i < len(translations) {
			local.Translation = translations[i]
		}
		if i < len(rotations) {
			local.Rotation = rotations[i]
		}
		if i < len(scales) {
			local.Scale = scales[i]
		}
		world := xform.Mul(nodeWorld, local.ToMat4())
		*out = append(*out, Occurrence{
			ModelID:         model.ID,
			NodeIndex:       nodeIdx,
			MeshIndex:       meshIdx,
			World:           xform.Decompose(world),
			WorldBBox:       localBBox.Transform(world),
			LocalBBox:       localBBox,
			PrimitiveBBoxes: primBBoxes,
			MeshSig:         sig,
		})
	}
}

func maxLen(a, b, c int) int {
	m := a
	if b > m {
		m = b
	}
	if c > m {
		m = c
	}
	return m
}

// meshSignatureAndBBox computes the whole-mesh structural signature (the
// ordered combination of every primitive's signature), the mesh's
// local-space bounding box (the union of every primitive's POSITION
// accessor min/max, used for the scene-level/tileset extent), and the
// per-primitive local-space boxes in primitive order (used by
// splitByBBoxSimilarity's pairwise comparison, spec.md §4.C), since
// EXT_mesh_gpu_instancing instances a node's entire mesh, not a single
// primitive.
func (w *Walker) meshSignatureAndBBox(model *loadmodel.Model, meshIdx int) (meshsig.Signature, xform.BoundingBox, []xform.BoundingBox, xerrors.List) {
	var errs xerrors.List
	doc := model.Doc
	if meshIdx >= len(doc.Meshes) {
		errs.Add(xerrors.Newf(xerrors.Parse, model.Path, "mesh index %d out of range", meshIdx))
		return 0, xform.EmptyBoundingBox(), nil, errs
	}
	mesh := doc.Meshes[meshIdx]

	seed := uint64(0)
	bbox := xform.EmptyBoundingBox()
	primBBoxes := make([]xform.BoundingBox, len(mesh.Primitives))
	for primIdx := range mesh.Primitives {
		where := model.Path
		sig, e := w.Cache.Primitive(model.ID, doc, meshIdx, primIdx, where)
		errs = append(errs, e...)
		seed = meshsig.Combine(seed, uint64(sig))

		primBBox := xform.EmptyBoundingBox()
		prim := mesh.Primitives[primIdx]
		if posIdx, ok := prim.Attributes[gltf.POSITION]; ok && int(posIdx) < len(doc.Accessors) {
			acc := doc.Accessors[posIdx]
			if len(acc.Min) == 3 && len(acc.Max) == 3 {
				primBBox = xform.BoundingBox{
					Min: mgl64.Vec3{float64(acc.Min[0]), float64(acc.Min[1]), float64(acc.Min[2])},
					Max: mgl64.Vec3{float64(acc.Max[0]), float64(acc.Max[1]), float64(acc.Max[2])},
				}
			}
		}
		primBBoxes[primIdx] = primBBox
		bbox = bbox.Merge(primBBox)
	}

	return meshsig.Signature(seed), bbox, primBBoxes, errs
}

func readVec3Accessor(doc *gltf.Document, accIdx *uint32, where string) ([]mgl64.Vec3, xerrors.List) {
	var errs xerrors.List
	if accIdx == nil {
		return nil, errs
	}
	data, resolvable, e := meshsig.ReadAccessorData(doc, *accIdx, where)
	errs = append(errs, e...)
	if !resolvable {
		return nil, errs
	}
	count := len(data) / 12
	out := make([]mgl64.Vec3, count)
	for i := 0; i < count; i++ {
		out[i] = mgl64.Vec3{
			float64(decodeFloat32(data, i*12)),
			float64(decodeFloat32(data, i*12+4)),
			float64(decodeFloat32(data, i*12+8)),
		}
	}
	return out, errs
}

func readVec4Accessor(doc *gltf.Document, accIdx *uint32, where string) ([]mgl64.Quat, xerrors.List) {
	var errs xerrors.List
	if accIdx == nil {
		return nil, errs
	}
	data, resolvable, e := meshsig.ReadAccessorData(doc, *accIdx, where)
	errs = append(errs, e...)
	if !resolvable {
		return nil, errs
	}
	count := len(data) / 16
	out := make([]mgl64.Quat, count)
	for i := 0; i < count; i++ {
		x := decodeFloat32(data, i*16)
		y := decodeFloat32(data, i*16+4)
		z := decodeFloat32(data, i*16+8)
		wComp := decodeFloat32(data, i*16+12)
		out[i] = mgl64.Quat{W: float64(wComp), V: mgl64.Vec3{float64(x), float64(y), float64(z)}}
	}
	return out, errs
}

func decodeFloat32(data []byte, offset int) float32 {
	bits := uint32(data[offset]) | uint32(data[offset+1])<<8 | uint32(data[offset+2])<<16 | uint32(data[offset+3])<<24
	return math.Float32frombits(bits)
}
