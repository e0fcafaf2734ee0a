package loadmodel

import (
	"github.com/mogaika/gltf-instancer/internal/logx"
	"github.com/mogaika/gltf-instancer/internal/xerrors"
)

// Registry owns model ID assignment and whole-file content-hash
// deduplication (spec.md §3: "source files with identical content are
// collapsed to a single representative model before any grouping
// happens"). IDs are assigned in load order and never reused.
type Registry struct {
	log *logx.Logger

	models []*Model

	// hashToID maps a file's HashHex to the ID of the first model loaded
	// with that content; later loads of the same content reuse that ID as
	// their RepresentativeOf result instead of getting a fresh one.
	hashToID map[string]int
}

// NewRegistry builds an empty Registry.
func NewRegistry(log *logx.Logger) *Registry {
	return &Registry{
		log:      log,
		hashToID: make(map[string]int),
	}
}

// Load parses path's data, assigns it the next sequential model ID, and
// records it for dedup lookups. Every call gets its own ID even if the
// content duplicates an earlier model — RepresentativeOf resolves the
// duplication afterward, so callers that need the canonical ID for
// grouping purposes must go through it rather than assume m.ID is already
// deduplicated.
func (r *Registry) Load(path string, data []byte) (*Model, xerrors.List) {
	m, errs := Parse(path, data)
	if m == nil {
		return nil, errs
	}

	m.ID = len(r.models)
	r.models = append(r.models, m)

	hash := m.HashHex()
	if rep, ok := r.hashToID[hash]; ok {
		r.log.Debugf("loadmodel: %s is a byte-identical duplicate of model %d (representative %d)", path, rep, rep)
	} else {
		r.hashToID[hash] = m.ID
	}

	return m, errs
}

// RepresentativeOf returns the canonical model ID for id: the ID of the
// first-loaded model whose file content is byte-identical to id's model.
// For a model with no duplicate, that's id itself.
func (r *Registry) RepresentativeOf(id int) int {
	if id < 0 || id >= len(r.models) {
		return id
	}
	hash := r.models[id].HashHex()
	if rep, ok := r.hashToID[hash]; ok {
		return rep
	}
	return id
}

// Model returns the model with the given ID, or nil if out of range.
func (r *Registry) Model(id int) *Model {
	if id < 0 || id >= len(r.models) {
		return nil
	}
	return r.models[id]
}

// Models returns all loaded models in load order.
func (r *Registry) Models() []*Model {
	return r.models
}

// UniqueModelCount returns the number of distinct representative models,
// i.e. the input model count after whole-file dedup.
func (r *Registry) UniqueModelCount() int {
	seen := make(map[string]struct{}, len(r.hashToID))
	for _, m := range r.models {
		seen[m.HashHex()] = struct{}{}
	}
	return len(seen)
}
