// Package testutil provides deterministic substitutes for the engine's
// injected sources, enabling reproducible scenario execution and golden
// snapshot comparison.
package testutil

// IdentitySource returns children in declared order for every selection and
// reorder request. Tests exercising randomization semantics without caring
// about the permutation use this source.
//
// Thread-safety: IdentitySource is stateless and safe for concurrent use.
type IdentitySource struct{}

// Perm returns the identity permutation of [0, n).
func (IdentitySource) Perm(key string, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// ReverseSource returns children in reverse declared order. Used to assert
// that a permutation is actually applied.
type ReverseSource struct{}

// Perm returns the reversed permutation of [0, n).
func (ReverseSource) Perm(key string, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = n - 1 - i
	}
	return out
}

// FixedIDGenerator returns the same session identifier every time.
//
// The same scenario with the same FixedIDGenerator produces byte-identical
// snapshots, which is what golden trace comparison requires.
type FixedIDGenerator struct {
	id string
}

// NewFixedIDGenerator creates a generator for the given id. An empty id
// defaults to "test-session-default".
func NewFixedIDGenerator(id string) *FixedIDGenerator {
	if id == "" {
		id = "test-session-default"
	}
	return &FixedIDGenerator{id: id}
}

// Generate returns the fixed session identifier.
func (g *FixedIDGenerator) Generate() string {
	return g.id
}
