package assemble

import (
	"bytes"

	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"

	"github.com/mogaika/gltf-instancer/internal/xerrors"
)

// Finalize closes out the consolidated buffer and returns the assembled
// document, ready to be encoded. Call this exactly once, after every
// AddInstancedGroup/AddNonInstanced call for this output GLB.
func (a *Assembler) Finalize() *gltf.Document {
	a.doc.Buffers[0].Data = a.buf
	a.doc.Buffers[0].ByteLength = uint32(len(a.buf))
	return a.doc
}

// IsEmpty reports whether no nodes were ever added — an output GLB with
// no content, which the caller should skip writing rather than emit an
// empty-but-valid file.
func (a *Assembler) IsEmpty() bool {
	return len(a.doc.Nodes) == 0
}

// EncodeGLB serializes doc (as produced by Finalize) to GLB bytes.
func EncodeGLB(doc *gltf.Document) ([]byte, xerrors.List) {
	var errs xerrors.List
	var buf bytes.Buffer
	enc := gltf.NewEncoder(&buf)
	enc.AsBinary = true
	if err := enc.Encode(doc); err != nil {
		errs.Add(xerrors.New(xerrors.Write, "", errors.Wrap(err, "encoding GLB")))
		return nil, errs
	}
	return buf.Bytes(), errs
}
