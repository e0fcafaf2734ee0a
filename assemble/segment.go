package assemble

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/qmuntal/gltf"

	"github.com/mogaika/gltf-instancer/internal/xerrors"
	"github.com/mogaika/gltf-instancer/loadmodel"
)

// SegmentedMesh is one mesh extracted into its own standalone GLB
// document, as produced by Segment (spec.md §4.D mesh-segmentation mode).
type SegmentedMesh struct {
	FileName string
	Doc      *gltf.Document
}

// Segment splits every mesh of every distinct source model in reg into
// its own single-mesh, single-node output document. Grounded on
// writeMeshesAsSeparateGlbs: each mesh becomes exactly one root node,
// carrying whichever EXT_mesh_gpu_instancing attributes or plain TRS the
// first source node referencing it provided — an instancing node takes
// precedence over a plain-TRS node for the same mesh.
func Segment(reg *loadmodel.Registry) ([]SegmentedMesh, xerrors.List) {
	var errs xerrors.List
	var out []SegmentedMesh
	nameCounts := make(map[string]int)

	for _, model := range reg.Models() {
		if reg.RepresentativeOf(model.ID) != model.ID {
			continue // exact content duplicate of an already-segmented file
		}
		if len(model.Doc.Meshes) == 0 {
			continue
		}

		for meshIdx, mesh := range model.Doc.Meshes {
			asm := New()
			newMeshIdx, e := asm.copyMesh(model.Doc, model.ID, meshIdx, model.Path)
			errs = append(errs, e...)
			if !e.Clean() {
				continue
			}

			nodeName := mesh.Name
			if nodeName == "" {
				nodeName = fmt.Sprintf("%s_mesh_%d", baseName(model.Path), meshIdx)
			}
			node := &gltf.Node{Mesh: gltf.Index(newMeshIdx), Name: nodeName}

			if instancing := findInstancingNode(model, meshIdx); instancing != nil {
				attrs, e := asm.copyInstancingAttributes(model.Doc, model.ID, instancing, model.Path)
				errs = append(errs, e...)
				if len(attrs) > 0 {
					payload, _ := json.Marshal(struct {
						Attributes map[string]uint32 `json:"attributes"`
					}{Attributes: attrs})
					node.Extensions = gltf.Extensions{loadmodel.ExtensionName: json.RawMessage(payload)}
					asm.useExtension(loadmodel.ExtensionName)
				}
			} else if srcNode := findPlainTransformNode(model.Doc, meshIdx); srcNode != nil {
				node.Matrix = srcNode.Matrix
				node.Translation = srcNode.Translation
				node.Rotation = srcNode.Rotation
				node.Scale = srcNode.Scale
			}

			asm.addRootNode(node)
			if len(asm.doc.Scenes) > 0 {
				asm.doc.Scenes[0].Name = "scene_for_" + nodeName
			}

			fileName := outputFileName(model.Path, mesh.Name, meshIdx, nameCounts)
			out = append(out, SegmentedMesh{FileName: fileName, Doc: asm.Finalize()})
		}
	}

	return out, errs
}

// findInstancingNode returns the GPUInstancing attributes of the first
// node referencing meshIdx that carries EXT_mesh_gpu_instancing, or nil
// if none does.
func findInstancingNode(model *loadmodel.Model, meshIdx int) *loadmodel.GPUInstancing {
	for nodeIdx, node := range model.Doc.Nodes {
		if node.Mesh == nil || int(*node.Mesh) != meshIdx {
			continue
		}
		if gi, ok := model.NodeInstancing[uint32(nodeIdx)]; ok {
			return gi
		}
	}
	return nil
}

// findPlainTransformNode returns the first node referencing meshIdx,
// regardless of whether it carries a useful transform, so its literal
// Matrix/Translation/Rotation/Scale fields can be copied through as-is.
func findPlainTransformNode(doc *gltf.Document, meshIdx int) *gltf.Node {
	for _, node := range doc.Nodes {
		if node.Mesh != nil && int(*node.Mesh) == meshIdx {
			return node
		}
	}
	return nil
}

// copyInstancingAttributes remaps an EXT_mesh_gpu_instancing node's
// TRANSLATION/ROTATION/SCALE accessor indices into the segmented
// document, copying each referenced accessor's backing data along with
// it. A channel whose copy fails is dropped rather than aborting the
// others.
func (a *Assembler) copyInstancingAttributes(src *gltf.Document, modelID int, gi *loadmodel.GPUInstancing, where string) (map[string]uint32, xerrors.List) {
	var errs xerrors.List
	attrs := make(map[string]uint32, 3)

	copyChannel := func(name string, accIdx *uint32) {
		if accIdx == nil {
			return
		}
		idx, e := a.copyAccessor(src, modelID, *accIdx, where)
		errs = append(errs, e...)
		if e.Clean() {
			attrs[name] = idx
		}
	}
	copyChannel("TRANSLATION", gi.Translation)
	copyChannel("ROTATION", gi.Rotation)
	copyChannel("SCALE", gi.Scale)

	return attrs, errs
}

func baseName(path string) string {
	stem := path
	if i := strings.LastIndexAny(stem, `/\`); i >= 0 {
		stem = stem[i+1:]
	}
	if i := strings.LastIndex(stem, "."); i > 0 {
		stem = stem[:i]
	}
	return stem
}

// sanitizeMeshName replaces every character outside [A-Za-z0-9_.-] with
// an underscore, matching the original writer's filename sanitization.
func sanitizeMeshName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

// outputFileName mirrors the original segmentation writer's naming
// (<stem>_<sanitizedMeshName>.glb, or <stem>_mesh_<index>.glb for an
// unnamed mesh). If this exact name was already produced earlier in the
// run, a short UUID suffix disambiguates the collision.
func outputFileName(sourcePath, meshName string, meshIdx int, counts map[string]int) string {
	stem := baseName(sourcePath)
	var namePart string
	if meshName == "" {
		namePart = fmt.Sprintf("mesh_%d", meshIdx)
	} else {
		namePart = sanitizeMeshName(meshName)
	}

	base := stem + "_" + namePart
	counts[base]++
	if counts[base] == 1 {
		return base + ".glb"
	}
	return fmt.Sprintf("%s_%s.glb", base, uuid.New().String()[:8])
}
