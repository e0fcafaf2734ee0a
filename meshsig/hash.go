// Package meshsig computes structural signatures for glTF mesh
// primitives, used to detect which meshes across a collection of models
// are candidates for GPU instancing (spec.md §4.B). Two mesh primitives
// that hash to the same signature are considered structurally
// interchangeable, modulo the chosen Mode's data-comparison rules.
//
// The hash-combine step follows the boost::hash_combine-style splitmix
// mixer the original detector uses (original_source/CPPAlgorithm/src/
// instancing_detector.cpp), reimplemented over Go's hash/maphash for the
// leaf byte hashing since the example pack carries no third-party hashing
// library for either concern — see DESIGN.md.
package meshsig

import "hash/maphash"

// combineSeed is shared by every Hasher so repeated runs within one
// process are still deterministic relative to each other (maphash itself
// is keyed per-process by design; this keeps the combiner, not the leaf
// hash, reproducible across runs that only care about relative equality).
var combineSeed = maphash.MakeSeed()

// Combine folds h into seed using the mixer from the original C++
// detector: seed ^= h + 0x9E3779B9 + (seed<<6) + (seed>>2).
func Combine(seed, h uint64) uint64 {
	return seed ^ (h + 0x9E3779B9 + (seed << 6) + (seed >> 2))
}

// HashBytes returns a 64-bit hash of data.
func HashBytes(data []byte) uint64 {
	var h maphash.Hash
	h.SetSeed(combineSeed)
	h.Write(data)
	return h.Sum64()
}

// HashString returns a 64-bit hash of s, used for attribute/semantic names.
func HashString(s string) uint64 {
	var h maphash.Hash
	h.SetSeed(combineSeed)
	h.WriteString(s)
	return h.Sum64()
}

// CombineBytes is shorthand for Combine(seed, HashBytes(data)).
func CombineBytes(seed uint64, data []byte) uint64 {
	return Combine(seed, HashBytes(data))
}

// CombineString is shorthand for Combine(seed, HashString(s)).
func CombineString(seed uint64, s string) uint64 {
	return Combine(seed, HashString(s))
}

// CombineUint64 folds a raw integer value in directly, without hashing —
// used for small discrete fields (counts, enum values) where HashBytes
// would just be extra indirection over the same 8 bytes.
func CombineUint64(seed, v uint64) uint64 {
	return Combine(seed, v)
}
