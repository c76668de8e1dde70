package lsh

import (
	"errors"
	"math/rand"
	"testing"
)

func TestSelectExactCount(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for _, tc := range []struct{ n, k int }{
		{10, 3}, {10, 10}, {10, 0}, {1, 1}, {100, 37},
	} {
		bs, err := Select(tc.n, tc.k, rng)
		if err != nil {
			t.Fatalf("Select(%d, %d) error: %v", tc.n, tc.k, err)
		}
		if got := int(bs.Count()); got != tc.k {
			t.Errorf("Select(%d, %d) selected %d bits, want %d", tc.n, tc.k, got, tc.k)
		}
	}
}

func TestSelectKGreaterThanN(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	_, err := Select(5, 10, rng)
	if !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("Select(5, 10) error = %v, want ErrInvalidParameter", err)
	}
}

func TestSelectEveryElementReachable(t *testing.T) {
	// Over many draws of k=1 from a small n, every index should eventually
	// be selected — a crude check that the distribution isn't degenerate.
	rng := rand.New(rand.NewSource(7))
	n := 5
	seen := make(map[int]bool)
	for i := 0; i < 500 && len(seen) < n; i++ {
		idx, err := SelectIndices(n, 1, rng)
		if err != nil {
			t.Fatalf("SelectIndices error: %v", err)
		}
		seen[idx[0]] = true
	}
	if len(seen) != n {
		t.Errorf("after 500 draws, saw %d/%d distinct indices: %v", len(seen), n, seen)
	}
}

func TestSelectIndicesSorted(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	idx, err := SelectIndices(20, 6, rng)
	if err != nil {
		t.Fatalf("SelectIndices error: %v", err)
	}
	for i := 1; i < len(idx); i++ {
		if idx[i] <= idx[i-1] {
			t.Errorf("SelectIndices not sorted ascending: %v", idx)
			break
		}
	}
}
