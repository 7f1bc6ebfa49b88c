package flow

import (
	"hash/fnv"
	"math/rand"
)

// SelectionSource produces deterministic permutations for child selection and
// reordering. Implemented by SeededSource (production) and
// testutil.IdentitySource (tests).
//
// Determinism contract: for a fixed source, the same key always yields the
// same permutation. Traversal may therefore recompute a cluster's selection
// at any time (including read-only validity checks) and get identical
// results.
type SelectionSource interface {
	// Perm returns a permutation of [0, n) for the given key.
	Perm(key string, n int) []int
}

// SeededSource derives each permutation from a session seed plus the request
// key. Two sessions with the same seed and the same request sequence make
// identical selections; replays are reproducible.
type SeededSource struct {
	Seed int64
}

// Perm implements SelectionSource.
func (s SeededSource) Perm(key string, n int) []int {
	h := fnv.New64a()
	h.Write([]byte(key))
	r := rand.New(rand.NewSource(s.Seed ^ int64(h.Sum64())))
	return r.Perm(n)
}
