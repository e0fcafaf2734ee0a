package meshsig

import (
	"math"

	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"

	"github.com/mogaika/gltf-instancer/internal/xerrors"
)

// componentSize returns the byte width of a single scalar component.
func componentSize(ct gltf.ComponentType) (int, error) {
	switch ct {
	case gltf.ComponentByte, gltf.ComponentUbyte:
		return 1, nil
	case gltf.ComponentShort, gltf.ComponentUshort:
		return 2, nil
	case gltf.ComponentUint, gltf.ComponentFloat:
		return 4, nil
	default:
		return 0, errors.Errorf("unknown component type %v", ct)
	}
}

// typeComponentCount returns how many scalar components make up one
// element of an accessor of the given type.
func typeComponentCount(t gltf.AccessorType) (int, error) {
	switch t {
	case gltf.AccessorScalar:
		return 1, nil
	case gltf.AccessorVec2:
		return 2, nil
	case gltf.AccessorVec3:
		return 3, nil
	case gltf.AccessorVec4:
		return 4, nil
	case gltf.AccessorMat2:
		return 4, nil
	case gltf.AccessorMat3:
		return 9, nil
	case gltf.AccessorMat4:
		return 16, nil
	default:
		return 0, errors.Errorf("unknown accessor type %v", t)
	}
}

// ReadAccessorData de-interleaves accessor idx's elements into a
// contiguous byte slice: element_size bytes are read at
// bufferView.byte_offset + accessor.byte_offset + i*effective_stride,
// where effective_stride is the bufferView's byte_stride if set, else
// element_size itself (spec.md §4.B). It returns resolvable=false, nil
// error when the accessor's bytes simply aren't available in memory
// (sparse-only accessor, or a buffer whose data wasn't inlined/embedded
// at load time) — callers fall back to FallbackHash in that case. A
// genuine out-of-range read against bytes that ARE present is a hard
// ParseError, per spec.md §7: that indicates a malformed document, not a
// resolution gap.
func ReadAccessorData(doc *gltf.Document, idx uint32, where string) (data []byte, resolvable bool, errs xerrors.List) {
	if int(idx) >= len(doc.Accessors) {
		errs.Add(xerrors.Newf(xerrors.Parse, where, "accessor index %d out of range (have %d)", idx, len(doc.Accessors)))
		return nil, false, errs
	}
	acc := doc.Accessors[idx]
	if acc.BufferView == nil {
		return nil, false, errs
	}
	bvIdx := *acc.BufferView
	if int(bvIdx) >= len(doc.BufferViews) {
		errs.Add(xerrors.Newf(xerrors.Parse, where, "accessor[%d] references out-of-range bufferView %d", idx, bvIdx))
		return nil, false, errs
	}
	bv := doc.BufferViews[bvIdx]
	if int(bv.Buffer) >= len(doc.Buffers) {
		errs.Add(xerrors.Newf(xerrors.Parse, where, "bufferView[%d] references out-of-range buffer %d", bvIdx, bv.Buffer))
		return nil, false, errs
	}
	buf := doc.Buffers[bv.Buffer]
	if buf.Data == nil {
		return nil, false, errs
	}

	compSize, err := componentSize(acc.ComponentType)
	if err != nil {
		errs.Add(xerrors.New(xerrors.Parse, where, err))
		return nil, false, errs
	}
	numComp, err := typeComponentCount(acc.Type)
	if err != nil {
		errs.Add(xerrors.New(xerrors.Parse, where, err))
		return nil, false, errs
	}
	elemSize := compSize * numComp

	stride := int(bv.ByteStride)
	if stride == 0 {
		stride = elemSize
	}

	base := int(bv.ByteOffset) + int(acc.ByteOffset)
	out := make([]byte, 0, int(acc.Count)*elemSize)
	for i := 0; i < int(acc.Count); i++ {
		off := base + i*stride
		end := off + elemSize
		if off < 0 || end > len(buf.Data) {
			errs.Add(xerrors.Newf(xerrors.Parse, where, "accessor[%d] element %d reads [%d,%d) out of buffer[%d] bounds (len %d)", idx, i, off, end, bv.Buffer, len(buf.Data)))
			return nil, false, errs
		}
		out = append(out, buf.Data[off:end]...)
	}

	return out, true, errs
}

// FallbackHash computes a degraded signature contribution for an accessor
// whose data bytes could not be resolved. It mixes in the accessor's
// declared metadata (type, component type, count, normalized flag, and
// min/max bounds) plus a sentinel so a fallback hash can never collide
// with a data-backed hash of the same metadata (spec.md §9 open question:
// "non-fatal, always distinguishable from a real data hash").
const fallbackSentinel uint64 = 0xFA11BACCF00DCAFE

func FallbackHash(acc *gltf.Accessor) uint64 {
	seed := CombineUint64(0, fallbackSentinel)
	seed = CombineString(seed, string(acc.Type))
	seed = CombineUint64(seed, uint64(acc.ComponentType))
	seed = CombineUint64(seed, uint64(acc.Count))
	if acc.Normalized {
		seed = CombineUint64(seed, 1)
	} else {
		seed = CombineUint64(seed, 0)
	}
	for _, v := range acc.Min {
		seed = Combine(seed, uint64(math.Float32bits(v)))
	}
	for _, v := range acc.Max {
		seed = Combine(seed, uint64(math.Float32bits(v)))
	}
	return seed
}
