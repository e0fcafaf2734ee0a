package meshsig

import (
	"math"
	"sort"

	"github.com/qmuntal/gltf"

	"github.com/mogaika/gltf-instancer/internal/xerrors"
)

// Mode selects how strictly two primitives must match to share a
// signature (spec.md §4.B).
type Mode int

const (
	// Exact requires bytewise-identical attribute and index data.
	Exact Mode = iota
	// Tolerance excludes POSITION data from the hash (world-space
	// placement is handled by the per-instance transform instead) and
	// quantizes NORMAL data to NormalTolerance before hashing.
	Tolerance
)

// Signature is an opaque 64-bit structural fingerprint for one mesh
// primitive.
type Signature uint64

// Hasher computes primitive Signatures under a chosen Mode.
type Hasher struct {
	Mode Mode

	// NormalTolerance quantizes NORMAL components to
	// round(component/NormalTolerance) before hashing, in Tolerance mode,
	// when it is positive (spec.md §4.B). Ignored in Exact mode, and
	// ignored in Tolerance mode when it is <= 0 (NORMAL then hashes
	// exactly like every other attribute).
	NormalTolerance float64

	// GeometryTolerance is the CLI's --tolerance ("geometry_tolerance",
	// spec.md §4.C): the per-axis bounding-box comparison threshold used
	// to split a Tolerance-mode signature bucket by local-space extent,
	// since POSITION data is excluded from the hash itself.
	GeometryTolerance float64

	// SkipAttributeDataHash names attributes whose data is excluded from
	// the hash even in Exact mode (metadata still contributes), matching
	// the detector's configurable skip set.
	SkipAttributeDataHash map[string]bool
}

// cacheKey identifies one primitive within one model for signature
// memoization, since a mesh is reached again through every node that
// references it.
type cacheKey struct {
	modelID   int
	meshIndex int
	primIndex int
}

// Cache memoizes Hasher.Primitive results keyed by (model, mesh,
// primitive), per spec.md §4.B.
type Cache struct {
	hasher *Hasher
	memo   map[cacheKey]Signature
}

// NewCache builds a Cache around hasher.
func NewCache(hasher *Hasher) *Cache {
	return &Cache{hasher: hasher, memo: make(map[cacheKey]Signature)}
}

// Primitive returns the memoized signature for mesh meshIndex's primitive
// primIndex within doc (identified by modelID for cache-key purposes),
// computing and storing it on first access.
func (c *Cache) Primitive(modelID int, doc *gltf.Document, meshIndex, primIndex int, where string) (Signature, xerrors.List) {
	key := cacheKey{modelID, meshIndex, primIndex}
	if sig, ok := c.memo[key]; ok {
		return sig, nil
	}
	sig, errs := c.hasher.Primitive(doc, doc.Meshes[meshIndex].Primitives[primIndex], where)
	if errs.Clean() {
		c.memo[key] = sig
	}
	return sig, errs
}

// Primitive computes prim's structural signature.
func (h *Hasher) Primitive(doc *gltf.Document, prim *gltf.Primitive, where string) (Signature, xerrors.List) {
	var errs xerrors.List
	seed := uint64(0)

	if prim.Material != nil {
		seed = CombineUint64(seed, uint64(*prim.Material)+1)
	} else {
		seed = CombineUint64(seed, 0)
	}
	seed = CombineUint64(seed, uint64(prim.Mode))

	if prim.Indices != nil {
		s, e := h.hashAccessorField(doc, *prim.Indices, "INDICES", where, false)
		errs = append(errs, e...)
		seed = Combine(seed, s)
	}

	names := make([]string, 0, len(prim.Attributes))
	for name := range prim.Attributes {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		accIdx := prim.Attributes[name]
		seed = CombineString(seed, name)
		s, e := h.hashAccessorField(doc, accIdx, name, where, true)
		errs = append(errs, e...)
		seed = Combine(seed, s)
	}

	for ti, target := range prim.Targets {
		tnames := make([]string, 0, len(target))
		for name := range target {
			tnames = append(tnames, name)
		}
		sort.Strings(tnames)
		for _, name := range tnames {
			accIdx := target[name]
			seed = CombineString(seed, name)
			seed = CombineUint64(seed, uint64(ti))
			s, e := h.hashAccessorField(doc, accIdx, name, where, true)
			errs = append(errs, e...)
			seed = Combine(seed, s)
		}
	}

	return Signature(seed), errs
}

// hashAccessorField computes the hash contribution for one attribute or
// index accessor: metadata always contributes, and data contributes
// unless the Mode/attribute combination calls for exclusion.
func (h *Hasher) hashAccessorField(doc *gltf.Document, accIdx uint32, attrName, where string, isAttribute bool) (uint64, xerrors.List) {
	var errs xerrors.List
	if int(accIdx) >= len(doc.Accessors) {
		errs.Add(xerrors.Newf(xerrors.Parse, where, "accessor index %d out of range", accIdx))
		return 0, errs
	}
	acc := doc.Accessors[accIdx]

	seed := CombineString(0, string(acc.Type))
	seed = CombineUint64(seed, uint64(acc.ComponentType))
	seed = CombineUint64(seed, uint64(acc.Count))
	if acc.Normalized {
		seed = CombineUint64(seed, 1)
	}

	if isAttribute && h.excludeData(attrName) {
		return seed, errs
	}

	data, resolvable, dataErrs := ReadAccessorData(doc, accIdx, where)
	errs = append(errs, dataErrs...)
	if !resolvable {
		return Combine(seed, FallbackHash(acc)), errs
	}

	if isAttribute && attrName == "NORMAL" && h.Mode == Tolerance && h.NormalTolerance > 0 {
		return Combine(seed, h.hashQuantizedNormals(data, acc)), errs
	}

	return CombineBytes(seed, data), errs
}

// excludeData reports whether attrName's data should be left out of the
// hash (metadata still counts). POSITION is always excluded in Tolerance
// mode since world placement is carried by the per-instance transform
// instead, not by the geometry.
func (h *Hasher) excludeData(attrName string) bool {
	if h.SkipAttributeDataHash != nil && h.SkipAttributeDataHash[attrName] {
		return true
	}
	if h.Mode == Tolerance && attrName == gltf.POSITION {
		return true
	}
	return false
}

// hashQuantizedNormals re-reads normal components as float32 (NORMAL is
// always VEC3 FLOAT per the glTF spec) and hashes round(v/tolerance)
// instead of the raw bytes, so normals that differ by less than
// NormalTolerance still produce the same signature. Only called when
// h.NormalTolerance > 0.
func (h *Hasher) hashQuantizedNormals(data []byte, acc *gltf.Accessor) uint64 {
	tol := h.NormalTolerance
	const floatSize = 4
	count := len(data) / floatSize
	quantized := make([]byte, 0, count*8)
	for i := 0; i < count; i++ {
		bits := uint32(data[i*4]) | uint32(data[i*4+1])<<8 | uint32(data[i*4+2])<<16 | uint32(data[i*4+3])<<24
		f := math.Float32frombits(bits)
		q := math.Round(float64(f) / tol)
		bq := math.Float64bits(q)
		quantized = append(quantized,
			byte(bq), byte(bq>>8), byte(bq>>16), byte(bq>>24),
			byte(bq>>32), byte(bq>>40), byte(bq>>48), byte(bq>>56),
		)
	}
	return HashBytes(quantized)
}
