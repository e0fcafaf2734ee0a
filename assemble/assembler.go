package assemble

import (
	"sort"

	"github.com/qmuntal/gltf"

	"github.com/mogaika/gltf-instancer/internal/xerrors"
	"github.com/mogaika/gltf-instancer/meshsig"
	"github.com/mogaika/gltf-instancer/xform"
)

// Assembler incrementally builds one output glTF document by copying
// resources out of source documents on demand, consolidating every
// accessor's backing bytes into a single 4-byte-padded buffer.
type Assembler struct {
	doc   *gltf.Document
	buf   []byte
	remap *resourceRemap
}

// New returns an empty Assembler ready to receive groups and nodes.
func New() *Assembler {
	doc := gltf.NewDocument()
	doc.Buffers = []*gltf.Buffer{{}}
	return &Assembler{doc: doc, remap: newResourceRemap()}
}

// addData appends data to the consolidated buffer, 4-byte-padding the
// start offset, and returns a new BufferView over it.
func (a *Assembler) addData(data []byte, stride uint32) uint32 {
	padding := (4 - (len(a.buf) % 4)) % 4
	for i := 0; i < padding; i++ {
		a.buf = append(a.buf, 0)
	}
	offset := len(a.buf)
	a.buf = append(a.buf, data...)

	bv := &gltf.BufferView{Buffer: 0, ByteOffset: uint32(offset), ByteLength: uint32(len(data))}
	if stride > 0 {
		bv.ByteStride = stride
	}
	a.doc.BufferViews = append(a.doc.BufferViews, bv)
	return uint32(len(a.doc.BufferViews) - 1)
}

// copyBufferView copies a non-accessor bufferView (an embedded image) by
// value, reading its referenced bytes straight out of the source buffer.
func (a *Assembler) copyBufferView(src *gltf.Document, modelID int, oldIdx uint32, where string) (uint32, xerrors.List) {
	var errs xerrors.List
	key := resourceKey{modelID, oldIdx}
	if idx, ok := a.remap.bufferViews[key]; ok {
		return idx, errs
	}
	if int(oldIdx) >= len(src.BufferViews) {
		errs.Add(xerrors.Newf(xerrors.Parse, where, "bufferView index %d out of range", oldIdx))
		return 0, errs
	}
	old := src.BufferViews[oldIdx]
	if int(old.Buffer) >= len(src.Buffers) || src.Buffers[old.Buffer].Data == nil {
		errs.Add(xerrors.Newf(xerrors.Parse, where, "bufferView[%d] references an unresolved buffer", oldIdx))
		return 0, errs
	}
	buf := src.Buffers[old.Buffer].Data
	start, end := int(old.ByteOffset), int(old.ByteOffset+old.ByteLength)
	if start < 0 || end > len(buf) {
		errs.Add(xerrors.Newf(xerrors.Parse, where, "bufferView[%d] out of buffer bounds", oldIdx))
		return 0, errs
	}
	newIdx := a.addData(buf[start:end], 0)
	a.remap.bufferViews[key] = newIdx
	return newIdx, errs
}

// copyAccessor copies accessor oldIdx from src into the output document,
// de-interleaving its element data into a freshly-consolidated,
// contiguous (stride == element size) bufferView. An accessor whose bytes
// can't be resolved keeps its declared metadata but gets no bufferView —
// matching the original detector's "copy definition only" fallback.
func (a *Assembler) copyAccessor(src *gltf.Document, modelID int, oldIdx uint32, where string) (uint32, xerrors.List) {
	var errs xerrors.List
	key := resourceKey{modelID, oldIdx}
	if idx, ok := a.remap.accessors[key]; ok {
		return idx, errs
	}
	if int(oldIdx) >= len(src.Accessors) {
		errs.Add(xerrors.Newf(xerrors.Parse, where, "accessor index %d out of range", oldIdx))
		return 0, errs
	}
	old := src.Accessors[oldIdx]
	newAcc := *old

	data, resolvable, dataErrs := meshsig.ReadAccessorData(src, oldIdx, where)
	errs = append(errs, dataErrs...)
	if resolvable {
		elemSize := uint32(componentSize(old.ComponentType) * typeComponentCount(old.Type))
		newBV := a.addData(data, elemSize)
		newAcc.BufferView = gltf.Index(newBV)
		newAcc.ByteOffset = 0
	} else {
		newAcc.BufferView = nil
		newAcc.ByteOffset = 0
	}

	a.doc.Accessors = append(a.doc.Accessors, &newAcc)
	newIdx := uint32(len(a.doc.Accessors) - 1)
	a.remap.accessors[key] = newIdx
	return newIdx, errs
}

func (a *Assembler) copySampler(src *gltf.Document, modelID int, oldIdx uint32) uint32 {
	key := resourceKey{modelID, oldIdx}
	if idx, ok := a.remap.samplers[key]; ok {
		return idx
	}
	old := *src.Samplers[oldIdx]
	a.doc.Samplers = append(a.doc.Samplers, &old)
	newIdx := uint32(len(a.doc.Samplers) - 1)
	a.remap.samplers[key] = newIdx
	return newIdx
}

func (a *Assembler) copyImage(src *gltf.Document, modelID int, oldIdx uint32, where string) (uint32, xerrors.List) {
	var errs xerrors.List
	key := resourceKey{modelID, oldIdx}
	if idx, ok := a.remap.images[key]; ok {
		return idx, errs
	}
	old := *src.Images[oldIdx]
	if old.BufferView != nil {
		newBV, e := a.copyBufferView(src, modelID, *old.BufferView, where)
		errs = append(errs, e...)
		old.BufferView = gltf.Index(newBV)
	}
	// External image URIs (old.URI set, BufferView nil) are carried through
	// unresolved, same as the original writer: this tool consolidates
	// geometry buffers, not sidecar image files.
	a.doc.Images = append(a.doc.Images, &old)
	newIdx := uint32(len(a.doc.Images) - 1)
	a.remap.images[key] = newIdx
	return newIdx, errs
}

func (a *Assembler) copyTexture(src *gltf.Document, modelID int, oldIdx uint32, where string) (uint32, xerrors.List) {
	var errs xerrors.List
	key := resourceKey{modelID, oldIdx}
	if idx, ok := a.remap.textures[key]; ok {
		return idx, errs
	}
	old := *src.Textures[oldIdx]
	if old.Sampler != nil {
		newSampler := a.copySampler(src, modelID, *old.Sampler)
		old.Sampler = gltf.Index(newSampler)
	}
	if old.Source != nil {
		newSource, e := a.copyImage(src, modelID, *old.Source, where)
		errs = append(errs, e...)
		old.Source = gltf.Index(newSource)
	}
	a.doc.Textures = append(a.doc.Textures, &old)
	newIdx := uint32(len(a.doc.Textures) - 1)
	a.remap.textures[key] = newIdx
	return newIdx, errs
}

func (a *Assembler) copyTextureInfo(src *gltf.Document, modelID int, info *gltf.TextureInfo, where string) (*gltf.TextureInfo, xerrors.List) {
	if info == nil {
		return nil, nil
	}
	newIdx, errs := a.copyTexture(src, modelID, info.Index, where)
	out := *info
	out.Index = newIdx
	return &out, errs
}

// copyMaterial copies a material by value, remapping each referenced
// texture and registering the material's own extensions in the output
// document's extensionsUsed, mirroring copyMaterial in the original
// writer.
func (a *Assembler) copyMaterial(src *gltf.Document, modelID int, oldIdx uint32, where string) (uint32, xerrors.List) {
	var errs xerrors.List
	key := resourceKey{modelID, oldIdx}
	if idx, ok := a.remap.materials[key]; ok {
		return idx, errs
	}
	old := *src.Materials[oldIdx]

	if old.PBRMetallicRoughness != nil {
		pbr := *old.PBRMetallicRoughness
		var e xerrors.List
		pbr.BaseColorTexture, e = a.copyTextureInfo(src, modelID, old.PBRMetallicRoughness.BaseColorTexture, where)
		errs = append(errs, e...)
		pbr.MetallicRoughnessTexture, e = a.copyTextureInfo(src, modelID, old.PBRMetallicRoughness.MetallicRoughnessTexture, where)
		errs = append(errs, e...)
		old.PBRMetallicRoughness = &pbr
	}
	if old.NormalTexture != nil {
		nt := *old.NormalTexture
		if old.NormalTexture.Index != nil {
			newIdx, e := a.copyTexture(src, modelID, *old.NormalTexture.Index, where)
			errs = append(errs, e...)
			nt.Index = gltf.Index(newIdx)
		}
		old.NormalTexture = &nt
	}
	if old.OcclusionTexture != nil {
		ot := *old.OcclusionTexture
		if old.OcclusionTexture.Index != nil {
			newIdx, e := a.copyTexture(src, modelID, *old.OcclusionTexture.Index, where)
			errs = append(errs, e...)
			ot.Index = gltf.Index(newIdx)
		}
		old.OcclusionTexture = &ot
	}
	if old.EmissiveTexture != nil {
		et, e := a.copyTextureInfo(src, modelID, old.EmissiveTexture, where)
		errs = append(errs, e...)
		old.EmissiveTexture = et
	}
	extNames := make([]string, 0, len(old.Extensions))
	for extName := range old.Extensions {
		extNames = append(extNames, extName)
	}
	sort.Strings(extNames)
	for _, extName := range extNames {
		a.useExtension(extName)
	}

	a.doc.Materials = append(a.doc.Materials, &old)
	newIdx := uint32(len(a.doc.Materials) - 1)
	a.remap.materials[key] = newIdx
	return newIdx, errs
}

func (a *Assembler) useExtension(name string) {
	for _, used := range a.doc.ExtensionsUsed {
		if used == name {
			return
		}
	}
	a.doc.ExtensionsUsed = append(a.doc.ExtensionsUsed, name)
}

// copyMesh copies mesh meshIdx's primitives (attributes, indices,
// material, morph targets) from src into the output document.
func (a *Assembler) copyMesh(src *gltf.Document, modelID int, meshIdx int, where string) (uint32, xerrors.List) {
	var errs xerrors.List
	if meshIdx >= len(src.Meshes) {
		errs.Add(xerrors.Newf(xerrors.Parse, where, "mesh index %d out of range", meshIdx))
		return 0, errs
	}
	old := src.Meshes[meshIdx]
	newMesh := &gltf.Mesh{Name: old.Name, Weights: append([]float32{}, old.Weights...)}

	for _, oldPrim := range old.Primitives {
		newPrim := &gltf.Primitive{Mode: oldPrim.Mode, Attributes: make(map[string]uint32, len(oldPrim.Attributes))}

		if oldPrim.Material != nil {
			newMat, e := a.copyMaterial(src, modelID, *oldPrim.Material, where)
			errs = append(errs, e...)
			newPrim.Material = gltf.Index(newMat)
		}
		if oldPrim.Indices != nil {
			newIdx, e := a.copyAccessor(src, modelID, *oldPrim.Indices, where)
			errs = append(errs, e...)
			newPrim.Indices = gltf.Index(newIdx)
		}
		names := make([]string, 0, len(oldPrim.Attributes))
		for name := range oldPrim.Attributes {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			newIdx, e := a.copyAccessor(src, modelID, oldPrim.Attributes[name], where)
			errs = append(errs, e...)
			newPrim.Attributes[name] = newIdx
		}
		if len(oldPrim.Targets) > 0 {
			newPrim.Targets = make([]map[string]uint32, len(oldPrim.Targets))
			for i, target := range oldPrim.Targets {
				newTarget := make(map[string]uint32, len(target))
				tnames := make([]string, 0, len(target))
				for name := range target {
					tnames = append(tnames, name)
				}
				sort.Strings(tnames)
				for _, name := range tnames {
					newIdx, e := a.copyAccessor(src, modelID, target[name], where)
					errs = append(errs, e...)
					newTarget[name] = newIdx
				}
				newPrim.Targets[i] = newTarget
			}
		}

		newMesh.Primitives = append(newMesh.Primitives, newPrim)
	}

	a.doc.Meshes = append(a.doc.Meshes, newMesh)
	return uint32(len(a.doc.Meshes) - 1), errs
}

// BoundingBox and Components aliases keep this package's public surface
// from leaking xform's own name resolution requirements onto callers that
// already import xform.
type (
	BoundingBox = xform.BoundingBox
	Components  = xform.Components
)
