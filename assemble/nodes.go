package assemble

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/qmuntal/gltf"

	"github.com/mogaika/gltf-instancer/internal/xerrors"
	"github.com/mogaika/gltf-instancer/loadmodel"
	"github.com/mogaika/gltf-instancer/xform"
)

// identityEpsilon is the threshold below which a non-instanced node's TRS
// component is considered the identity value and omitted, matching the
// original writer's createNonInstancedNode.
const identityEpsilon = 1e-10

// AddInstancedGroup copies meshIdx from src once and emits a single node
// referencing it with an EXT_mesh_gpu_instancing extension carrying one
// TRS triple per entry in instances. The node is added as a new root.
func (a *Assembler) AddInstancedGroup(src *gltf.Document, modelID, meshIdx int, meshName string, instances []xform.Components, where string) xerrors.List {
	newMeshIdx, errs := a.copyMesh(src, modelID, meshIdx, where)
	if !errs.Clean() {
		return errs
	}

	name := meshName
	if name == "" {
		name = fmt.Sprintf("instanced_node_mesh_%d", newMeshIdx)
	}
	node := &gltf.Node{Mesh: gltf.Index(newMeshIdx), Name: name}

	transIdx, rotIdx, scaleIdx := a.createInstanceTRSAccessors(instances)
	if transIdx != nil || rotIdx != nil || scaleIdx != nil {
		attrs := make(map[string]uint32, 3)
		if transIdx != nil {
			attrs["TRANSLATION"] = *transIdx
		}
		if rotIdx != nil {
			attrs["ROTATION"] = *rotIdx
		}
		if scaleIdx != nil {
			attrs["SCALE"] = *scaleIdx
		}
		payload, _ := json.Marshal(struct {
			Attributes map[string]uint32 `json:"attributes"`
		}{Attributes: attrs})
		node.Extensions = gltf.Extensions{loadmodel.ExtensionName: json.RawMessage(payload)}
		a.useExtension(loadmodel.ExtensionName)
	}

	a.addRootNode(node)
	return errs
}

// AddNonInstanced copies meshIdx from src once and emits a single static
// node at transform, root-level, omitting any TRS component that's
// within identityEpsilon of the identity value.
func (a *Assembler) AddNonInstanced(src *gltf.Document, modelID, meshIdx int, transform xform.Components, where string) xerrors.List {
	newMeshIdx, errs := a.copyMesh(src, modelID, meshIdx, where)
	if !errs.Clean() {
		return errs
	}

	node := &gltf.Node{Mesh: gltf.Index(newMeshIdx)}
	t := transform.Translation
	if math.Abs(t[0]) > identityEpsilon || math.Abs(t[1]) > identityEpsilon || math.Abs(t[2]) > identityEpsilon {
		node.Translation = [3]float32{float32(t[0]), float32(t[1]), float32(t[2])}
	}
	r := transform.Rotation
	if math.Abs(r.V[0]) > identityEpsilon || math.Abs(r.V[1]) > identityEpsilon || math.Abs(r.V[2]) > identityEpsilon || math.Abs(r.W-1) > identityEpsilon {
		node.Rotation = [4]float32{float32(r.V[0]), float32(r.V[1]), float32(r.V[2]), float32(r.W)}
	}
	s := transform.Scale
	if math.Abs(s[0]-1) > identityEpsilon || math.Abs(s[1]-1) > identityEpsilon || math.Abs(s[2]-1) > identityEpsilon {
		node.Scale = [3]float32{float32(s[0]), float32(s[1]), float32(s[2])}
	}

	a.addRootNode(node)
	return errs
}

func (a *Assembler) addRootNode(node *gltf.Node) {
	a.doc.Nodes = append(a.doc.Nodes, node)
	idx := uint32(len(a.doc.Nodes) - 1)
	if len(a.doc.Scenes) == 0 {
		a.doc.Scenes = append(a.doc.Scenes, &gltf.Scene{})
		a.doc.Scene = gltf.Index(0)
	}
	a.doc.Scenes[0].Nodes = append(a.doc.Scenes[0].Nodes, idx)
}

// createInstanceTRSAccessors fabricates one accessor per present TRS
// channel, float32 VEC3/VEC4, one element per instance. A channel is
// omitted entirely (returns nil) if instances is empty.
func (a *Assembler) createInstanceTRSAccessors(instances []xform.Components) (trans, rot, scale *uint32) {
	if len(instances) == 0 {
		return nil, nil, nil
	}

	transData := make([]byte, 0, len(instances)*12)
	rotData := make([]byte, 0, len(instances)*16)
	scaleData := make([]byte, 0, len(instances)*12)

	for _, inst := range instances {
		transData = appendFloat32(transData, float32(inst.Translation[0]), float32(inst.Translation[1]), float32(inst.Translation[2]))
		rotData = appendFloat32(rotData, float32(inst.Rotation.V[0]), float32(inst.Rotation.V[1]), float32(inst.Rotation.V[2]), float32(inst.Rotation.W))
		scaleData = appendFloat32(scaleData, float32(inst.Scale[0]), float32(inst.Scale[1]), float32(inst.Scale[2]))
	}

	trans = gltf.Index(a.newVectorAccessor(transData, gltf.AccessorVec3, uint32(len(instances))))
	rot = gltf.Index(a.newVectorAccessor(rotData, gltf.AccessorVec4, uint32(len(instances))))
	scale = gltf.Index(a.newVectorAccessor(scaleData, gltf.AccessorVec3, uint32(len(instances))))
	return trans, rot, scale
}

func (a *Assembler) newVectorAccessor(data []byte, typ gltf.AccessorType, count uint32) uint32 {
	bv := a.addData(data, 0)
	a.doc.Accessors = append(a.doc.Accessors, &gltf.Accessor{
		BufferView:    gltf.Index(bv),
		ComponentType: gltf.ComponentFloat,
		Type:          typ,
		Count:         count,
	})
	return uint32(len(a.doc.Accessors) - 1)
}

func appendFloat32(dst []byte, vs ...float32) []byte {
	for _, v := range vs {
		bits := math.Float32bits(v)
		dst = append(dst, byte(bits), byte(bits>>8), byte(bits>>16), byte(bits>>24))
	}
	return dst
}
