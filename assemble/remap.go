// Package assemble implements the GLB writer (spec.md §4.D): copying
// resources (accessors, bufferViews, materials, textures, samplers,
// images, meshes) from one or more source documents into a single
// consolidated output document, fabricating per-instance TRS accessors
// for EXT_mesh_gpu_instancing nodes, and serializing the result.
// Grounded on original_source/CPPAlgorithm/src/glb_writer.cpp's
// ResourceRemapping/copy*/create*Node functions and on the teacher's
// pack/wad/mesh/export_gltf.go usage of github.com/qmuntal/gltf. The
// teacher's own modeler.WriteXxx helpers only cover named semantic
// attributes (POSITION, NORMAL, ...); they have no entry point for
// EXT_mesh_gpu_instancing's TRANSLATION/ROTATION/SCALE or for the raw
// accessor/bufferView byte copies this package needs, so both are
// hand-written here instead.
package assemble

import "github.com/qmuntal/gltf"

// resourceKey identifies one resource within one source document: the
// (source model ID, resource index) pair the original detector keys its
// remap maps by.
type resourceKey struct {
	modelID int
	index   uint32
}

// resourceRemap tracks, per resource category, which output-document
// index a given source resource was already copied to — so a resource
// referenced by multiple meshes/instances is copied at most once into any
// single output GLB.
type resourceRemap struct {
	bufferViews map[resourceKey]uint32
	accessors   map[resourceKey]uint32
	materials   map[resourceKey]uint32
	textures    map[resourceKey]uint32
	samplers    map[resourceKey]uint32
	images      map[resourceKey]uint32
}

func newResourceRemap() *resourceRemap {
	return &resourceRemap{
		bufferViews: make(map[resourceKey]uint32),
		accessors:   make(map[resourceKey]uint32),
		materials:   make(map[resourceKey]uint32),
		textures:    make(map[resourceKey]uint32),
		samplers:    make(map[resourceKey]uint32),
		images:      make(map[resourceKey]uint32),
	}
}

// componentSize and typeComponentCount mirror meshsig's private helpers
// of the same purpose: this package needs raw byte layout for copying,
// not hashing, so it keeps its own small copy rather than reaching across
// package boundaries for an unrelated concern.
func componentSize(ct gltf.ComponentType) int {
	switch ct {
	case gltf.ComponentByte, gltf.ComponentUbyte:
		return 1
	case gltf.ComponentShort, gltf.ComponentUshort:
		return 2
	default:
		return 4
	}
}

func typeComponentCount(t gltf.AccessorType) int {
	switch t {
	case gltf.AccessorScalar:
		return 1
	case gltf.AccessorVec2:
		return 2
	case gltf.AccessorVec3:
		return 3
	case gltf.AccessorVec4, gltf.AccessorMat2:
		return 4
	case gltf.AccessorMat3:
		return 9
	case gltf.AccessorMat4:
		return 16
	default:
		return 1
	}
}
