package assemble

import (
	"github.com/qmuntal/gltf"

	"github.com/mogaika/gltf-instancer/instancing"
	"github.com/mogaika/gltf-instancer/internal/xerrors"
	"github.com/mogaika/gltf-instancer/loadmodel"
	"github.com/mogaika/gltf-instancer/xform"
)

// EmitMode selects which subset of a Result's content an output GLB
// should contain, mirroring the original writer's three entry points
// (writeInstancedGlb / writeInstancedMeshesOnly / writeNonInstancedMeshesOnly).
type EmitMode int

const (
	// Full emits both instanced groups and non-instanced leftovers.
	Full EmitMode = iota
	// InstancedOnly emits only nodes using EXT_mesh_gpu_instancing.
	InstancedOnly
	// NonInstancedOnly emits only ordinary static nodes.
	NonInstancedOnly
)

// Run builds one output document from res under mode, pulling source
// mesh data through reg. It returns the finalized document, the overall
// world-space bounding box of everything it emitted, and any errors
// encountered (individual groups/occurrences that fail are skipped
// rather than aborting the whole run, per spec.md §7).
func Run(reg *loadmodel.Registry, res instancing.Result, mode EmitMode) (*gltf.Document, xform.BoundingBox, xerrors.List) {
	var errs xerrors.List
	asm := New()
	bbox := xform.EmptyBoundingBox()

	if mode == Full || mode == InstancedOnly {
		for _, group := range res.Instanced {
			if len(group.Occurrences) == 0 {
				continue
			}
			rep := group.Occurrences[0]
			model := reg.Model(rep.ModelID)
			if model == nil {
				errs.Add(xerrors.Newf(xerrors.Parse, "", "instanced group references unknown model %d", rep.ModelID))
				continue
			}
			meshName := ""
			if rep.MeshIndex < len(model.Doc.Meshes) {
				meshName = model.Doc.Meshes[rep.MeshIndex].Name
			}

			instances := make([]xform.Components, len(group.Occurrences))
			for i, occ := range group.Occurrences {
				instances[i] = occ.World
				bbox = bbox.Merge(occ.WorldBBox)
			}

			e := asm.AddInstancedGroup(model.Doc, model.ID, rep.MeshIndex, meshName, instances, model.Path)
			errs = append(errs, e...)
		}
	}

	if mode == Full || mode == NonInstancedOnly {
		for _, occ := range res.NonInstanced {
			model := reg.Model(occ.ModelID)
			if model == nil {
				errs.Add(xerrors.Newf(xerrors.Parse, "", "non-instanced occurrence references unknown model %d", occ.ModelID))
				continue
			}
			e := asm.AddNonInstanced(model.Doc, model.ID, occ.MeshIndex, occ.World, model.Path)
			errs = append(errs, e...)
			bbox = bbox.Merge(occ.WorldBBox)
		}
	}

	return asm.Finalize(), bbox, errs
}
