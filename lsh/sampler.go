package lsh

import (
	"fmt"
	"math/rand"

	"github.com/bits-and-blooms/bitset"
)

// Select draws k of the n indices in [0, n) without replacement, returning
// a bitset with exactly k bits set. The distribution is only approximately
// uniform over k-subsets, but every index has non-zero selection
// probability.
//
// The algorithm is a two-phase scheme: a single sweep over indices selects
// index i when a uniform draw in [0, n) lands below k, stopping early once
// k selections are made; a second phase tops up any shortfall by drawing
// additional indices and accepting only those not yet selected. Phase one
// amortizes to O(n) for typical k/n; phase two guarantees exactly k
// selections.
func Select(n, k int, rng *rand.Rand) (*bitset.BitSet, error) {
	if k > n {
		return nil, fmt.Errorf("%w: k (%d) exceeds n (%d)", ErrInvalidParameter, k, n)
	}
	selected := bitset.New(uint(n))
	if k <= 0 {
		return selected, nil
	}

	count := 0
	for i := 0; i < n && count < k; i++ {
		if rng.Intn(n) < k {
			selected.Set(uint(i))
			count++
		}
	}

	for count < k {
		i := uint(rng.Intn(n))
		if !selected.Test(i) {
			selected.Set(i)
			count++
		}
	}

	return selected, nil
}

// SelectIndices is a convenience wrapper over Select that materializes the
// chosen indices as a sorted slice, the shape most callers of the trainer
// need when gathering rows into a sample matrix.
func SelectIndices(n, k int, rng *rand.Rand) ([]int, error) {
	bs, err := Select(n, k, rng)
	if err != nil {
		return nil, err
	}
	indices := make([]int, 0, k)
	for i, ok := bs.NextSet(0); ok; i, ok = bs.NextSet(i + 1) {
		indices = append(indices, int(i))
	}
	return indices, nil
}
