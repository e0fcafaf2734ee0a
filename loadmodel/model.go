// Package loadmodel implements the model loader (spec.md §4.A): parsing
// GLB byte buffers into in-memory glTF documents, computing a per-file
// SHA-256 for whole-file deduplication, assigning stable integer model
// IDs, and enumerating candidate files from a directory walk or a
// 3D-Tiles tileset manifest.
//
// The in-memory document is github.com/qmuntal/gltf's *gltf.Document —
// the same library the teacher uses end to end
// (utils/gltfutils, pack/wad/mesh/export_gltf.go) — generalized here from
// "build one export document" to "hold an arbitrary parsed source
// document for later copying."
package loadmodel

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"

	"github.com/mogaika/gltf-instancer/internal/xerrors"
)

// GPUInstancing is the typed, parse-time-resolved form of an inbound
// EXT_mesh_gpu_instancing extension payload (spec.md §9 Design Note:
// "model the extension as a typed structure consistently and resolve
// raw-JSON inputs at parse time, not at use time").
type GPUInstancing struct {
	Translation *uint32 `json:"TRANSLATION,omitempty"`
	Rotation    *uint32 `json:"ROTATION,omitempty"`
	Scale       *uint32 `json:"SCALE,omitempty"`
}

type gpuInstancingExtension struct {
	Attributes GPUInstancing `json:"attributes"`
}

// ExtensionName is the glTF extension key for GPU mesh instancing.
const ExtensionName = "EXT_mesh_gpu_instancing"

// Model is a LoadedModel: an in-memory glTF document plus the loader
// bookkeeping described in spec.md §3.
type Model struct {
	ID   int
	Path string
	Hash [32]byte
	Doc  *gltf.Document

	// NodeInstancing holds the resolved EXT_mesh_gpu_instancing payload
	// per node index, populated once at parse time.
	NodeInstancing map[uint32]*GPUInstancing
}

// HashHex renders Hash as a lowercase hex string, used as the dedup key.
func (m *Model) HashHex() string {
	return hex(m.Hash[:])
}

func hex(b []byte) string {
	const digits = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, c := range b {
		out[i*2] = digits[c>>4]
		out[i*2+1] = digits[c&0xf]
	}
	return string(out)
}

// Parse decodes raw GLB bytes into a Model. It does not assign an ID or
// register the model anywhere; use Registry.Load for the full pipeline
// step. Parse errors from individual malformed substructures (invalid
// extension JSON) are reported in the returned xerrors.List rather than
// aborting the whole parse, per spec.md §7's ParseError recoverability.
func Parse(path string, data []byte) (*Model, xerrors.List) {
	var errs xerrors.List

	doc := new(gltf.Document)
	dec := gltf.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(doc); err != nil {
		errs.Add(xerrors.New(xerrors.Parse, path, errors.Wrap(err, "decoding GLB")))
		return nil, errs
	}

	m := &Model{
		Path:           path,
		Hash:           sha256.Sum256(data),
		Doc:            doc,
		NodeInstancing: make(map[uint32]*GPUInstancing),
	}

	for i, node := range doc.Nodes {
		if node == nil || node.Extensions == nil {
			continue
		}
		raw, ok := node.Extensions[ExtensionName]
		if !ok {
			continue
		}
		inst, err := resolveGPUInstancing(raw)
		if err != nil {
			errs.Add(xerrors.New(xerrors.Parse, path, errors.Wrapf(err, "node[%d].extensions.%s", i, ExtensionName)))
			continue
		}
		m.NodeInstancing[uint32(i)] = inst
	}

	return m, errs
}

// resolveGPUInstancing accepts either a json.RawMessage (the common case
// when qmuntal/gltf has no registered extension codec for this key) or
// an already-typed map[string]interface{}, and normalizes both into a
// GPUInstancing value.
func resolveGPUInstancing(raw interface{}) (*GPUInstancing, error) {
	var data []byte
	switch v := raw.(type) {
	case json.RawMessage:
		data = v
	case []byte:
		data = v
	default:
		reencoded, err := json.Marshal(v)
		if err != nil {
			return nil, errors.Wrap(err, "re-encoding extension payload")
		}
		data = reencoded
	}

	var ext gpuInstancingExtension
	if err := json.Unmarshal(data, &ext); err != nil {
		return nil, errors.Wrap(err, "unmarshaling EXT_mesh_gpu_instancing")
	}
	return &ext.Attributes, nil
}
