package instancing

import (
	"github.com/mogaika/gltf-instancer/loadmodel"
	"github.com/mogaika/gltf-instancer/meshsig"
	"github.com/mogaika/gltf-instancer/xform"
)

// Group is a set of occurrences sharing a structural signature (and, in
// Tolerance mode, a similar local-space bounding box) that meets the
// configured instance-count threshold and will be emitted as a single
// EXT_mesh_gpu_instancing node.
type Group struct {
	Signature   meshsig.Signature
	Occurrences []Occurrence
}

// Result is the outcome of grouping a traversal's occurrences: groups
// that met the instance threshold, and occurrences that didn't (emitted
// individually as ordinary static nodes).
type Result struct {
	Instanced    []Group
	NonInstanced []Occurrence
}

// GroupOccurrences buckets occs by structural signature, applies the
// Mode-specific comparison policy, and splits buckets into Instanced
// Groups vs. NonInstanced leftovers using instanceLimit. Every
// occurrence's ModelID is first rewritten to its file-hash representative
// via reg, so two byte-identical source files contribute to the same
// group (spec.md §3).
func GroupOccurrences(occs []Occurrence, hasher *meshsig.Hasher, instanceLimit int, reg *loadmodel.Registry) Result {
	normalized := make([]Occurrence, len(occs))
	for i, o := range occs {
		o.ModelID = reg.RepresentativeOf(o.ModelID)
		normalized[i] = o
	}

	buckets := make(map[meshsig.Signature][]Occurrence)
	var order []meshsig.Signature
	for _, o := range normalized {
		if _, ok := buckets[o.MeshSig]; !ok {
			order = append(order, o.MeshSig)
		}
		buckets[o.MeshSig] = append(buckets[o.MeshSig], o)
	}

	var res Result
	for _, sig := range order {
		bucket := buckets[sig]
		var subgroups [][]Occurrence
		if hasher.Mode == meshsig.Tolerance {
			subgroups = splitByBBoxSimilarity(bucket, hasher.GeometryTolerance)
		} else {
			subgroups = [][]Occurrence{bucket}
		}

		for _, sub := range subgroups {
			if len(sub) >= instanceLimit {
				res.Instanced = append(res.Instanced, Group{Signature: sig, Occurrences: sub})
			} else {
				res.NonInstanced = append(res.NonInstanced, sub...)
			}
		}
	}

	return res
}

// splitByBBoxSimilarity partitions a signature bucket into subgroups
// whose members' PrimitiveBBoxes are mutually similar, using each
// subgroup's first member as its representative. Two occurrences are
// compared only if they have the same primitive count; their boxes are
// then compared pairwise in primitive order, per spec.md §3/§4.C.
// Tolerance-mode signatures deliberately exclude POSITION data (so
// instanced geometry can vary in local placement run-to-run), which also
// makes two differently-sized meshes of identical topology hash equal;
// this bounding-box check is what tells them apart.
func splitByBBoxSimilarity(bucket []Occurrence, tolerance float64) [][]Occurrence {
	tol := tolerance
	if tol <= 0 {
		tol = 1e-6
	}
	var subgroups [][]Occurrence
	var reps [][]xform.BoundingBox

	for _, o := range bucket {
		placed := false
		for i, rep := range reps {
			if primitiveBBoxesSimilar(rep, o.PrimitiveBBoxes, tol) {
				subgroups[i] = append(subgroups[i], o)
				placed = true
				break
			}
		}
		if !placed {
			subgroups = append(subgroups, []Occurrence{o})
			reps = append(reps, o.PrimitiveBBoxes)
		}
	}
	return subgroups
}

// primitiveBBoxesSimilar reports whether a and b have the same length and
// every corresponding pair of boxes is xform.Similar within tolerance.
func primitiveBBoxesSimilar(a, b []xform.BoundingBox, tolerance float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !xform.Similar(a[i], b[i], tolerance) {
			return false
		}
	}
	return true
}
